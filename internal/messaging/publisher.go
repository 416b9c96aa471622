package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// TaskPublisher публикует задачи генерации в очередь воркеров.
type TaskPublisher interface {
	PublishGenerationTask(ctx context.Context, payload GenerationTaskPayload) error
	Close() error
}

type rabbitMQTaskPublisher struct {
	channel   *amqp.Channel
	queueName string
	logger    *zap.Logger
}

// NewRabbitMQTaskPublisher открывает канал и объявляет очередь задач.
// Параметры очереди (включая DLX) должны совпадать с параметрами консьюмера,
// поэтому объявление идемпотентно повторяет топологию воркера.
func NewRabbitMQTaskPublisher(conn *amqp.Connection, queueName string, logger *zap.Logger) (TaskPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("task publisher: не удалось открыть канал: %w", err)
	}

	args := amqp.Table{
		"x-queue-mode":              "lazy",
		"x-dead-letter-exchange":    TaskDLXName,
		"x-dead-letter-routing-key": TaskDLQKey,
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, args); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("task publisher: не удалось объявить очередь '%s': %w", queueName, err)
	}

	log := logger.Named("TaskPublisher")
	log.Info("Task queue declared", zap.String("queue", queueName))
	return &rabbitMQTaskPublisher{channel: ch, queueName: queueName, logger: log}, nil
}

// PublishGenerationTask сериализует задачу и публикует её с ретраями.
func (p *rabbitMQTaskPublisher) PublishGenerationTask(ctx context.Context, payload GenerationTaskPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ошибка сериализации задачи генерации %s: %w", payload.TaskID, err)
	}
	if err := p.publishMessage(ctx, body); err != nil {
		p.logger.Error("Failed to publish generation task",
			zap.Error(err),
			zap.String("taskID", payload.TaskID.String()),
			zap.String("novelID", payload.NovelID.String()),
		)
		return fmt.Errorf("ошибка публикации задачи генерации %s: %w", payload.TaskID, err)
	}
	p.logger.Info("Generation task published",
		zap.String("taskID", payload.TaskID.String()),
		zap.String("novelID", payload.NovelID.String()),
	)
	return nil
}

func (p *rabbitMQTaskPublisher) publishMessage(ctx context.Context, body []byte) error {
	if p.channel == nil {
		return errors.New("канал RabbitMQ не инициализирован")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		err = p.channel.PublishWithContext(ctx,
			"",          // exchange (default)
			p.queueName, // routing key = имя очереди
			false,       // mandatory
			false,       // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Body:         body,
				Timestamp:    time.Now(),
				AppId:        "novel-engine-api",
			},
		)
		if err == nil {
			return nil
		}
		p.logger.Warn("Publish attempt failed",
			zap.Int("attempt", attempt),
			zap.String("queue", p.queueName),
			zap.Error(err),
		)
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	return fmt.Errorf("ошибка публикации в очередь %s после retries: %w", p.queueName, err)
}

func (p *rabbitMQTaskPublisher) Close() error {
	if p.channel == nil {
		return nil
	}
	return p.channel.Close()
}
