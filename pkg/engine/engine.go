package engine

import (
	"errors"

	"novel-engine/pkg/engine/condition"
)

// ErrNilNovel возвращается NewEngine при попытке сконструировать движок
// без новеллы. Это ошибка программиста, а не нарративный тупик.
var ErrNilNovel = errors.New("engine: novel is nil")

// Engine — конечный автомат одной игровой сессии над неизменяемой новеллой.
//
// Каждый экземпляр владеет своим снимком переменных и историей посещений
// и рассчитан на монопольное использование одной логической сессией:
// конкурентные вызовы к одному экземпляру должен сериализовать хост.
// Все навигационные промахи (нет сцены, индекс вне диапазона, условие
// не выполнено) возвращаются как nil, без ошибок.
type Engine struct {
	novel     *Novel
	variables map[string]any
	history   []string
}

// NewEngine создает движок над новеллой. Переменные копируются глубоко:
// мутации одного движка никогда не видны ни новелле, ни другим движкам.
func NewEngine(novel *Novel) (*Engine, error) {
	if novel == nil {
		return nil, ErrNilNovel
	}
	return &Engine{
		novel:     novel,
		variables: copyVariables(novel.Variables),
		history:   []string{},
	}, nil
}

// CurrentScene возвращает сцену по последней записи истории, при пустой
// истории — первую сцену новеллы, при пустой новелле — nil. Чистое чтение.
func (e *Engine) CurrentScene() *Scene {
	if len(e.history) > 0 {
		return e.novel.FindScene(e.history[len(e.history)-1])
	}
	if len(e.novel.Scenes) == 0 {
		return nil
	}
	return &e.novel.Scenes[0]
}

// GoToScene переходит к сцене по id. При успехе сцена дописывается
// в историю; при промахе история не меняется — неудачные переходы
// не должны засорять навигационный след.
func (e *Engine) GoToScene(sceneID string) *Scene {
	scene := e.novel.FindScene(sceneID)
	if scene == nil {
		return nil
	}
	e.history = append(e.history, sceneID)
	return scene
}

// MakeChoice применяет выбор игрока по индексу в текущей сцене.
// Возвращает nil без мутаций, если сцена не ветвится, индекс вне
// диапазона или условие выбора не выполнено на текущем снимке
// переменных (fail-closed: невычислимое условие не открывает выбор).
func (e *Engine) MakeChoice(choiceIndex int) *Scene {
	current := e.CurrentScene()
	if current == nil || len(current.Choices) == 0 {
		return nil
	}
	if choiceIndex < 0 || choiceIndex >= len(current.Choices) {
		return nil
	}
	choice := current.Choices[choiceIndex]
	if choice.Condition != "" && !condition.Evaluate(choice.Condition, e.variables) {
		return nil
	}
	return e.GoToScene(choice.NextSceneID)
}

// NextScene выполняет линейный переход по nextSceneId текущей сцены.
func (e *Engine) NextScene() *Scene {
	current := e.CurrentScene()
	if current == nil || current.NextSceneID == "" {
		return nil
	}
	return e.GoToScene(current.NextSceneID)
}

// SetVariable записывает переменную истории. Форма значения не
// проверяется: переменные определяются автором и могут быть любым
// JSON-представимым значением.
func (e *Engine) SetVariable(name string, value any) {
	e.variables[name] = value
}

// Variable читает переменную; второй результат сообщает, была ли она
// установлена.
func (e *Engine) Variable(name string) (any, bool) {
	v, ok := e.variables[name]
	return v, ok
}

// Variables возвращает защитную копию текущего снимка переменных.
func (e *Engine) Variables() map[string]any {
	return copyVariables(e.variables)
}

// History возвращает защитную копию истории посещений.
func (e *Engine) History() []string {
	out := make([]string, len(e.history))
	copy(out, e.history)
	return out
}

// Reset очищает историю и восстанавливает переменные из объявленных
// в новелле значений (свежая копия, не ссылка).
func (e *Engine) Reset() {
	e.history = []string{}
	e.variables = copyVariables(e.novel.Variables)
}
