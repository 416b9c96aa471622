package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// Migrator применяет миграции схемы к базе, на которую смотрит пул pgx.
type Migrator struct {
	fs     fs.FS
	path   string
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewMigrator создает Migrator. fsys — источник SQL-файлов (обычно embed.FS),
// path — каталог миграций внутри источника.
func NewMigrator(fsys fs.FS, path string, pool *pgxpool.Pool, logger *zap.Logger) *Migrator {
	return &Migrator{
		fs:     fsys,
		path:   path,
		pool:   pool,
		logger: logger.Named("Migrator"),
	}
}

// Up применяет все недостающие миграции. Отсутствие новых миграций —
// не ошибка.
func (m *Migrator) Up() error {
	migrator, err := m.create()
	if err != nil {
		return err
	}
	defer migrator.Close()

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	m.logger.Info("database migrations applied",
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

func (m *Migrator) create() (*migrate.Migrate, error) {
	db := stdlib.OpenDBFromPool(m.pool)

	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	source, err := iofs.New(m.fs, m.path)
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	migrator.LockTimeout = 30 * time.Second
	return migrator, nil
}
