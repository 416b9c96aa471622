package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FieldError описывает одно структурное нарушение в документе новеллы.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	return e.Field + ": " + e.Message
}

// ValidationError агрегирует все нарушения схемы, найденные при проверке.
// Валидация тотальна: документ либо полностью соответствует схеме,
// либо отклоняется со списком всех проблемных полей.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "novel validation failed"
	}
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.String()
	}
	return "novel validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// ValidateOptions управляет строгостью проверки.
type ValidateOptions struct {
	// CheckSceneRefs включает раннюю проверку ссылок nextSceneId
	// (в сценах, выборах и маршрутах) на существующие сцены.
	// По умолчанию выключено: исторически битые ссылки обнаруживаются
	// лениво при обходе и дают "нет перехода", а не ошибку загрузки.
	CheckSceneRefs bool
	// AllowDuplicateSceneIDs разрешает дубликаты id сцен для старых
	// документов. Поиск сцены в любом случае берет первое совпадение.
	AllowDuplicateSceneIDs bool
}

var validPositions = map[string]bool{
	PositionLeft:   true,
	PositionCenter: true,
	PositionRight:  true,
}

var validEffectTypes = map[string]bool{
	EffectShake:      true,
	EffectFade:       true,
	EffectFlash:      true,
	EffectTransition: true,
}

// ValidateScene проверяет одну сцену. prefix — путь поля для сообщений
// об ошибках, ошибки дописываются в verr.
func validateScene(s *Scene, prefix string, verr *ValidationError) {
	if s.ID == "" {
		verr.add(prefix+".id", "required")
	}
	for i, c := range s.Characters {
		field := fmt.Sprintf("%s.characters[%d]", prefix, i)
		if c.ID == "" {
			verr.add(field+".id", "required")
		}
		if c.Name == "" {
			verr.add(field+".name", "required")
		}
		if !validPositions[c.Position] {
			verr.add(field+".position", "must be one of left, center, right (got %q)", c.Position)
		}
	}
	// dialogue обязателен; text внутри может быть пустой строкой
	if s.Dialogue == nil {
		verr.add(prefix+".dialogue", "required")
	}
	for i, c := range s.Choices {
		field := fmt.Sprintf("%s.choices[%d]", prefix, i)
		if c.Text == "" {
			verr.add(field+".text", "required")
		}
		if c.NextSceneID == "" {
			verr.add(field+".nextSceneId", "required")
		}
	}
	for i, e := range s.Effects {
		if !validEffectTypes[e.Type] {
			verr.add(fmt.Sprintf("%s.effects[%d].type", prefix, i),
				"must be one of shake, fade, flash, transition (got %q)", e.Type)
		}
	}
}

// Validate проверяет одну сцену вне контекста новеллы. Полезно там,
// где сцены появляются по одной, например при генерации.
func (s *Scene) Validate() error {
	verr := &ValidationError{}
	validateScene(s, "scene", verr)
	if len(verr.Errors) > 0 {
		return verr
	}
	return nil
}

// Validate проверяет структуру новеллы целиком и возвращает
// *ValidationError со всеми нарушениями либо nil.
func (n *Novel) Validate(opts ValidateOptions) error {
	verr := &ValidationError{}

	if n.ID == "" {
		verr.add("id", "required")
	}
	if n.Title == "" {
		verr.add("title", "required")
	}
	if n.Description == "" {
		verr.add("description", "required")
	}
	if n.Author == "" {
		verr.add("author", "required")
	}
	if n.Tags == nil {
		verr.add("tags", "required (may be empty)")
	}
	if n.Scenes == nil {
		verr.add("scenes", "required (may be empty)")
	}

	seen := make(map[string]bool, len(n.Scenes))
	for i := range n.Scenes {
		s := &n.Scenes[i]
		prefix := fmt.Sprintf("scenes[%d]", i)
		validateScene(s, prefix, verr)
		if s.ID != "" {
			if seen[s.ID] && !opts.AllowDuplicateSceneIDs {
				verr.add(prefix+".id", "duplicate scene id %q", s.ID)
			}
			seen[s.ID] = true
		}
	}

	if opts.CheckSceneRefs {
		for i := range n.Scenes {
			s := &n.Scenes[i]
			prefix := fmt.Sprintf("scenes[%d]", i)
			if s.NextSceneID != "" && !seen[s.NextSceneID] {
				verr.add(prefix+".nextSceneId", "references unknown scene %q", s.NextSceneID)
			}
			for j, c := range s.Choices {
				if c.NextSceneID != "" && !seen[c.NextSceneID] {
					verr.add(fmt.Sprintf("%s.choices[%d].nextSceneId", prefix, j),
						"references unknown scene %q", c.NextSceneID)
				}
			}
		}
		for i, r := range n.Routes {
			if r.StartSceneID != "" && !seen[r.StartSceneID] {
				verr.add(fmt.Sprintf("routes[%d].startSceneId", i), "references unknown scene %q", r.StartSceneID)
			}
			if r.EndSceneID != "" && !seen[r.EndSceneID] {
				verr.add(fmt.Sprintf("routes[%d].endSceneId", i), "references unknown scene %q", r.EndSceneID)
			}
		}
	}

	if len(verr.Errors) > 0 {
		return verr
	}
	return nil
}

// ParseNovel декодирует JSON-документ новеллы и валидирует его.
// Неизвестные поля отклоняются, чтобы опечатки в ключах не терялись молча.
func ParseNovel(data []byte, opts ValidateOptions) (*Novel, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var novel Novel
	if err := dec.Decode(&novel); err != nil {
		return nil, &ValidationError{Errors: []FieldError{{Field: "$", Message: err.Error()}}}
	}
	if novel.Variables == nil {
		novel.Variables = map[string]any{}
	}
	if err := novel.Validate(opts); err != nil {
		return nil, err
	}
	return &novel, nil
}
