package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// SceneGenerator — единственная зависимость движка от внешнего генератора
// контента. Хост обычно подкладывает сюда вызов LLM; движку важно лишь,
// чтобы результат соответствовал схеме Scene.
type SceneGenerator func(ctx context.Context, sceneDescription string) (*Scene, error)

// GenerateOptions управляет сборкой новеллы из промпта.
type GenerateOptions struct {
	// Title переопределяет заголовок; по умолчанию "Generated Visual Novel".
	Title string
	// Author переопределяет автора; по умолчанию "AI Generated".
	Author string
	// SceneCount — сколько сцен запросить у генератора (минимум 1 —
	// вводная сцена).
	SceneCount int
	// CharacterContext — непрозрачный для движка контекст персонажей,
	// дописываемый к описанию каждой сцены.
	CharacterContext string
	// Tags — метки готовой новеллы.
	Tags []string
}

// GenerateFromPrompt собирает новеллу, вызывая generate по одному разу на
// каждую создаваемую сцену. Вызовы строго последовательны: поздние описания
// продолжают ранние сцены, и порядок должен быть детерминирован. Ошибка
// генератора пробрасывается без изменений — никакой молчаливой подмены
// сцены-заглушки; политика отката остается за хостом.
func GenerateFromPrompt(ctx context.Context, prompt string, generate SceneGenerator, opts GenerateOptions) (*Novel, error) {
	if generate == nil {
		return nil, fmt.Errorf("generate: scene generator is nil")
	}

	title := opts.Title
	if title == "" {
		title = "Generated Visual Novel"
	}
	author := opts.Author
	if author == "" {
		author = "AI Generated"
	}
	sceneCount := opts.SceneCount
	if sceneCount < 1 {
		sceneCount = 1
	}

	builder := NewBuilder().SetMetadata(Metadata{
		// Временная метка как id сталкивается при конкурентном создании,
		// поэтому id всегда случайный.
		ID:          "vn-" + uuid.NewString(),
		Title:       title,
		Description: prompt,
		Author:      author,
	})
	for _, tag := range opts.Tags {
		builder.AddTag(tag)
	}

	for i := 0; i < sceneCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		description := sceneDescription(prompt, i, opts.CharacterContext)
		scene, err := generate(ctx, description)
		if err != nil {
			return nil, fmt.Errorf("generate scene %d: %w", i+1, err)
		}
		if scene == nil {
			return nil, fmt.Errorf("generate scene %d: generator returned nil scene", i+1)
		}
		builder.AddScene(*scene)
	}

	return builder.Build()
}

func sceneDescription(prompt string, index int, characterContext string) string {
	var description string
	if index == 0 {
		description = fmt.Sprintf("Create an introduction scene for: %s", prompt)
	} else {
		description = fmt.Sprintf("Create scene %d, continuing the story of: %s", index+1, prompt)
	}
	if characterContext != "" {
		description += "\nCharacters: " + characterContext
	}
	return description
}
