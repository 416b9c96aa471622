package engine_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"novel-engine/pkg/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubScene(id string) *engine.Scene {
	return &engine.Scene{ID: id, Dialogue: &engine.Dialogue{Text: "scene " + id}}
}

func TestGenerateFromPrompt(t *testing.T) {
	ctx := context.Background()

	t.Run("Single intro scene by default", func(t *testing.T) {
		calls := 0
		gen := func(ctx context.Context, description string) (*engine.Scene, error) {
			calls++
			assert.Contains(t, description, "introduction scene")
			assert.Contains(t, description, "space pirates")
			return stubScene("intro"), nil
		}

		novel, err := engine.GenerateFromPrompt(ctx, "space pirates", gen, engine.GenerateOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
		require.Len(t, novel.Scenes, 1)
		assert.Equal(t, "space pirates", novel.Description)
		assert.Equal(t, "Generated Visual Novel", novel.Title)
		assert.Equal(t, "AI Generated", novel.Author)
		assert.NotEmpty(t, novel.ID)
	})

	t.Run("Ids are collision resistant", func(t *testing.T) {
		gen := func(ctx context.Context, _ string) (*engine.Scene, error) {
			return stubScene("intro"), nil
		}
		a, err := engine.GenerateFromPrompt(ctx, "p", gen, engine.GenerateOptions{})
		require.NoError(t, err)
		b, err := engine.GenerateFromPrompt(ctx, "p", gen, engine.GenerateOptions{})
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("Sequential callback per scene", func(t *testing.T) {
		var descriptions []string
		gen := func(ctx context.Context, description string) (*engine.Scene, error) {
			descriptions = append(descriptions, description)
			return stubScene(fmt.Sprintf("s%d", len(descriptions))), nil
		}

		novel, err := engine.GenerateFromPrompt(ctx, "quest", gen, engine.GenerateOptions{SceneCount: 3})
		require.NoError(t, err)
		assert.Len(t, novel.Scenes, 3)
		// Вызовы строго по порядку: поздние описания продолжают ранние.
		require.Len(t, descriptions, 3)
		assert.Contains(t, descriptions[0], "introduction")
		assert.Contains(t, descriptions[1], "scene 2")
		assert.Contains(t, descriptions[2], "scene 3")
	})

	t.Run("Character context is passed through opaquely", func(t *testing.T) {
		gen := func(ctx context.Context, description string) (*engine.Scene, error) {
			assert.Contains(t, description, "Alice, a stern librarian")
			return stubScene("intro"), nil
		}
		_, err := engine.GenerateFromPrompt(ctx, "p", gen, engine.GenerateOptions{
			CharacterContext: "Alice, a stern librarian",
		})
		require.NoError(t, err)
	})

	t.Run("Callback failure propagates unchanged", func(t *testing.T) {
		boom := errors.New("model unavailable")
		gen := func(ctx context.Context, _ string) (*engine.Scene, error) {
			return nil, boom
		}

		novel, err := engine.GenerateFromPrompt(ctx, "p", gen, engine.GenerateOptions{})
		assert.Nil(t, novel)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("Cancelled context stops generation", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		calls := 0
		gen := func(ctx context.Context, _ string) (*engine.Scene, error) {
			calls++
			return stubScene("intro"), nil
		}

		_, err := engine.GenerateFromPrompt(cancelled, "p", gen, engine.GenerateOptions{})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, calls)
	})

	t.Run("Invalid generated scene fails the build", func(t *testing.T) {
		gen := func(ctx context.Context, _ string) (*engine.Scene, error) {
			return &engine.Scene{ID: "", Dialogue: &engine.Dialogue{Text: "no id"}}, nil
		}

		_, err := engine.GenerateFromPrompt(ctx, "p", gen, engine.GenerateOptions{})
		var verr *engine.ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}
