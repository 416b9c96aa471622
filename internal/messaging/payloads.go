package messaging

import "github.com/google/uuid"

// Имена очередей и обменников задач генерации. Должны совпадать у
// паблишера (API) и консьюмера (воркер).
const (
	DefaultTaskQueue = "novel_generation_tasks"
	TaskDLXName      = "novel_generation_tasks_dlx"
	TaskDLQName      = "novel_generation_tasks_dlq"
	TaskDLQKey       = "dlq"
)

// GenerationTaskPayload — задача генерации новеллы, публикуемая API
// и потребляемая воркером.
type GenerationTaskPayload struct {
	TaskID     uuid.UUID `json:"taskId"`
	NovelID    uuid.UUID `json:"novelId"`
	UserID     uuid.UUID `json:"userId"`
	Prompt     string    `json:"prompt"`
	Title      string    `json:"title,omitempty"`
	SceneCount int       `json:"sceneCount,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
}
