package engine

// Snapshot — сериализуемый срез состояния сессии (история + переменные).
// Движок сам ничего не персистит: хранение и восстановление снимков между
// сессиями — обязанность хоста. Формат значений — любой JSON-представимый.
type Snapshot struct {
	History   []string       `json:"history"`
	Variables map[string]any `json:"variables"`
}

// Snapshot возвращает копию текущего состояния сессии.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		History:   e.History(),
		Variables: e.Variables(),
	}
}

// RestoreSnapshot замещает состояние сессии сохраненным снимком.
// Снимок копируется: последующие мутации движка не трогают аргумент.
func (e *Engine) RestoreSnapshot(s Snapshot) {
	e.history = make([]string, len(s.History))
	copy(e.history, s.History)
	e.variables = copyVariables(s.Variables)
}
