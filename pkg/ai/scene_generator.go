package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"novel-engine/pkg/engine"

	"go.uber.org/zap"
)

// sceneSystemPrompt описывает модели строгий JSON-формат сцены.
// Модель обязана вернуть ровно один JSON-объект без markdown-оберток.
const sceneSystemPrompt = `You are a visual novel scene writer. Respond with a single JSON object describing one scene, with no commentary and no markdown fences.

The JSON object must have this shape:
{
  "id": "string, short kebab-case scene id",
  "background": "string, scene background description",
  "music": "string, optional mood of background music",
  "characters": [{"id": "string", "name": "string", "position": "left|center|right", "expression": "string"}],
  "dialogue": {"speaker": "string, optional", "text": "string"},
  "choices": [{"text": "string", "nextSceneId": "string"}],
  "nextSceneId": "string, optional id of the following scene"
}

Use "choices" for branching moments and "nextSceneId" for linear transitions. Keep ids consistent between scenes.`

// SceneGenerator строит engine.SceneGenerator поверх Client:
// каждая сцена — отдельный запрос к модели со строгим JSON-ответом.
func SceneGenerator(client Client, logger *zap.Logger) engine.SceneGenerator {
	log := logger.Named("SceneGenerator")
	return func(ctx context.Context, sceneDescription string) (*engine.Scene, error) {
		raw, usage, err := client.GenerateText(ctx, sceneSystemPrompt, sceneDescription)
		if err != nil {
			return nil, err
		}

		scene, err := parseScene(raw)
		if err != nil {
			log.Warn("Model returned malformed scene JSON",
				zap.Error(err),
				zap.Int("responseLen", len(raw)),
			)
			return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
		}

		log.Debug("Scene generated",
			zap.String("sceneID", scene.ID),
			zap.Int("totalTokens", usage.TotalTokens),
		)
		return scene, nil
	}
}

// parseScene строго декодирует ответ модели в сцену, предварительно
// срезав markdown-ограждения, которые модели любят добавлять вопреки промту.
func parseScene(raw string) (*engine.Scene, error) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("ответ не содержит JSON-объекта")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	dec.DisallowUnknownFields()

	var scene engine.Scene
	if err := dec.Decode(&scene); err != nil {
		return nil, fmt.Errorf("ошибка декодирования сцены: %w", err)
	}
	// Сцена проверяется сразу: иначе битый id или position всплывет
	// только в Build() после всех оставшихся запросов к модели.
	if err := scene.Validate(); err != nil {
		return nil, fmt.Errorf("сцена не прошла валидацию: %w", err)
	}
	return &scene, nil
}

// extractJSON возвращает первый JSON-объект верхнего уровня из текста.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}
