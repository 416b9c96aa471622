package model

import "errors"

// Стандартные ошибки доменного слоя. Хендлеры сопоставляют их
// с HTTP-статусами; сервисы оборачивают через fmt.Errorf("%w").
var (
	// ErrNotFound — запись не найдена или недоступна пользователю.
	ErrNotFound = errors.New("resource not found")

	// ErrNovelNotReady — новелла еще генерируется, играть нельзя.
	ErrNovelNotReady = errors.New("novel is not ready yet")

	// ErrNoTransition — навигационный промах движка: нет такой сцены,
	// индекс выбора вне диапазона или условие выбора не выполнено.
	// Ожидаемый, восстановимый исход; UI трактует его как
	// "действие сейчас недоступно".
	ErrNoTransition = errors.New("no transition available")

	// ErrInvalidNovel — документ новеллы не прошел валидацию схемы.
	ErrInvalidNovel = errors.New("invalid novel document")
)
