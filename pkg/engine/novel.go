package engine

import "encoding/json"

// Позиции персонажа на сцене.
const (
	PositionLeft   = "left"
	PositionCenter = "center"
	PositionRight  = "right"
)

// Типы визуальных эффектов сцены.
const (
	EffectShake      = "shake"
	EffectFade       = "fade"
	EffectFlash      = "flash"
	EffectTransition = "transition"
)

// CharacterPlacement описывает размещение персонажа на сцене.
// Несколько персонажей могут занимать одну и ту же позицию —
// это забота рендера, а не движка.
type CharacterPlacement struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Position   string `json:"position"`
	Expression string `json:"expression,omitempty"`
	Sprite     string `json:"sprite,omitempty"`
}

// Dialogue представляет реплику сцены. Text обязателен,
// но может быть пустой строкой. В сцене поле — указатель, чтобы
// отличать отсутствующий dialogue от пустой реплики.
type Dialogue struct {
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text"`
	Voice   string `json:"voice,omitempty"`
}

// Choice — вариант выбора игрока. Condition (если задан) — выражение
// над переменными истории, см. пакет condition.
type Choice struct {
	Text        string `json:"text"`
	NextSceneID string `json:"nextSceneId"`
	Condition   string `json:"condition,omitempty"`
}

// Effect — презентационная директива. Движок не интерпретирует эффекты,
// а передает их рендеру как есть.
type Effect struct {
	Type      string   `json:"type"`
	Duration  *float64 `json:"duration,omitempty"`
	Intensity *float64 `json:"intensity,omitempty"`
}

// Scene — один узел графа истории.
// Наличие Choices означает ветвление; NextSceneID задает линейный переход.
// Допустимы оба поля сразу: Choices управляет выбором игрока,
// NextSceneID остается доступным для программного NextScene().
type Scene struct {
	ID          string               `json:"id"`
	Background  string               `json:"background,omitempty"`
	Music       string               `json:"music,omitempty"`
	Characters  []CharacterPlacement `json:"characters,omitempty"`
	Dialogue    *Dialogue            `json:"dialogue"`
	Choices     []Choice             `json:"choices,omitempty"`
	NextSceneID string               `json:"nextSceneId,omitempty"`
	Effects     []Effect             `json:"effects,omitempty"`
}

// Route — именованный подпуть истории. Метаданные для авторинга
// и аналитики, обходом не используются.
type Route struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	StartSceneID string `json:"startSceneId"`
	EndSceneID   string `json:"endSceneId"`
}

// Novel — полный граф истории с метаданными.
// После создания считается неизменяемым: Engine никогда не мутирует Novel.
type Novel struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Author      string         `json:"author"`
	Tags        []string       `json:"tags"`
	Cover       string         `json:"cover,omitempty"`
	Scenes      []Scene        `json:"scenes"`
	Variables   map[string]any `json:"variables,omitempty"`
	Routes      []Route        `json:"routes,omitempty"`
}

// FindScene возвращает сцену по id или nil, если сцены нет.
// При дубликатах id побеждает первое совпадение.
func (n *Novel) FindScene(id string) *Scene {
	for i := range n.Scenes {
		if n.Scenes[i].ID == id {
			return &n.Scenes[i]
		}
	}
	return nil
}

// copyVariables делает глубокую копию карты переменных через JSON,
// чтобы два движка над одной новеллой не делили вложенные значения.
func copyVariables(src map[string]any) map[string]any {
	if len(src) == 0 {
		return map[string]any{}
	}
	raw, err := json.Marshal(src)
	if err != nil {
		// Переменные по контракту JSON-представимы; если нет —
		// копируем хотя бы верхний уровень.
		dst := make(map[string]any, len(src))
		for k, v := range src {
			dst[k] = v
		}
		return dst
	}
	dst := make(map[string]any, len(src))
	if err := json.Unmarshal(raw, &dst); err != nil {
		return map[string]any{}
	}
	return dst
}
