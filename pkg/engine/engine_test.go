package engine_test

import (
	"testing"

	"novel-engine/pkg/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testNovel строит небольшую новеллу с ветвлением для тестов движка.
func testNovel() *engine.Novel {
	return &engine.Novel{
		ID:          "vn-test",
		Title:       "Test Novel",
		Description: "A tiny branching story",
		Author:      "tests",
		Tags:        []string{"test"},
		Variables:   map[string]any{"flag": false, "gold": 10},
		Scenes: []engine.Scene{
			{
				ID:       "s1",
				Dialogue: &engine.Dialogue{Text: "Hello"},
				Choices: []engine.Choice{
					{Text: "Go", NextSceneID: "s2", Condition: "flag == true"},
					{Text: "Shop", NextSceneID: "s3", Condition: "gold >= 100"},
				},
				NextSceneID: "s2",
			},
			{ID: "s2", Dialogue: &engine.Dialogue{Text: "Arrived"}},
			{ID: "s3", Dialogue: &engine.Dialogue{Text: "Shop"}, NextSceneID: "s2"},
		},
	}
}

func TestNewEngine(t *testing.T) {
	t.Run("Nil novel is a programmer error", func(t *testing.T) {
		e, err := engine.NewEngine(nil)
		assert.Nil(t, e)
		assert.ErrorIs(t, err, engine.ErrNilNovel)
	})

	t.Run("Empty novel has no current scene", func(t *testing.T) {
		novel := &engine.Novel{ID: "vn-empty", Title: "t", Description: "d", Author: "a", Tags: []string{}, Scenes: []engine.Scene{}}
		e, err := engine.NewEngine(novel)
		require.NoError(t, err)
		assert.Nil(t, e.CurrentScene())
	})
}

func TestCurrentScene(t *testing.T) {
	e, err := engine.NewEngine(testNovel())
	require.NoError(t, err)

	// При пустой истории текущая сцена — первая сцена новеллы.
	first := e.CurrentScene()
	require.NotNil(t, first)
	assert.Equal(t, "s1", first.ID)

	// Идемпотентность чтения: повторный вызов без мутаций дает ту же сцену.
	again := e.CurrentScene()
	require.NotNil(t, again)
	assert.Equal(t, first.ID, again.ID)

	// После перехода текущей становится последняя запись истории.
	require.NotNil(t, e.GoToScene("s3"))
	assert.Equal(t, "s3", e.CurrentScene().ID)
}

func TestGoToScene(t *testing.T) {
	e, err := engine.NewEngine(testNovel())
	require.NoError(t, err)

	t.Run("Miss leaves history untouched", func(t *testing.T) {
		before := e.History()
		scene := e.GoToScene("missing")
		assert.Nil(t, scene)
		assert.Equal(t, before, e.History())
	})

	t.Run("Hit appends exactly one entry", func(t *testing.T) {
		before := len(e.History())
		scene := e.GoToScene("s2")
		require.NotNil(t, scene)
		assert.Equal(t, "s2", scene.ID)
		history := e.History()
		require.Len(t, history, before+1)
		assert.Equal(t, "s2", history[len(history)-1])
	})
}

func TestMakeChoice(t *testing.T) {
	t.Run("Condition false is a closed gate", func(t *testing.T) {
		e, err := engine.NewEngine(testNovel())
		require.NoError(t, err)

		scene := e.MakeChoice(0) // flag == true, а flag по умолчанию false
		assert.Nil(t, scene)
		assert.Empty(t, e.History())
	})

	t.Run("Unknown variable in condition fails closed", func(t *testing.T) {
		novel := testNovel()
		novel.Scenes[0].Choices[0].Condition = "missingVar == true"
		e, err := engine.NewEngine(novel)
		require.NoError(t, err)

		assert.Nil(t, e.MakeChoice(0))
		assert.Empty(t, e.History())
	})

	t.Run("Out of range index", func(t *testing.T) {
		e, err := engine.NewEngine(testNovel())
		require.NoError(t, err)

		assert.Nil(t, e.MakeChoice(-1))
		assert.Nil(t, e.MakeChoice(5))
		assert.Empty(t, e.History())
	})

	t.Run("Scene without choices", func(t *testing.T) {
		e, err := engine.NewEngine(testNovel())
		require.NoError(t, err)
		require.NotNil(t, e.GoToScene("s2"))

		assert.Nil(t, e.MakeChoice(0))
	})

	t.Run("Unconditional choice follows through", func(t *testing.T) {
		novel := testNovel()
		novel.Scenes[0].Choices[0].Condition = ""
		e, err := engine.NewEngine(novel)
		require.NoError(t, err)

		scene := e.MakeChoice(0)
		require.NotNil(t, scene)
		assert.Equal(t, "s2", scene.ID)
		assert.Equal(t, []string{"s2"}, e.History())
	})

	t.Run("Choice to missing scene returns nil without history growth", func(t *testing.T) {
		novel := testNovel()
		novel.Scenes[0].Choices = []engine.Choice{{Text: "Void", NextSceneID: "nowhere"}}
		e, err := engine.NewEngine(novel)
		require.NoError(t, err)

		assert.Nil(t, e.MakeChoice(0))
		assert.Empty(t, e.History())
	})
}

func TestNextScene(t *testing.T) {
	e, err := engine.NewEngine(testNovel())
	require.NoError(t, err)

	// У s1 есть и choices, и nextSceneId: программный переход доступен.
	scene := e.NextScene()
	require.NotNil(t, scene)
	assert.Equal(t, "s2", scene.ID)

	// У s2 преемника нет — терминальная сцена.
	assert.Nil(t, e.NextScene())
	assert.Equal(t, []string{"s2"}, e.History())
}

func TestVariables(t *testing.T) {
	e, err := engine.NewEngine(testNovel())
	require.NoError(t, err)

	v, ok := e.Variable("gold")
	require.True(t, ok)
	assert.EqualValues(t, 10, v)

	_, ok = e.Variable("unset")
	assert.False(t, ok)

	e.SetVariable("gold", 100)
	v, _ = e.Variable("gold")
	assert.EqualValues(t, 100, v)
}

func TestStateIsolation(t *testing.T) {
	novel := testNovel()
	e1, err := engine.NewEngine(novel)
	require.NoError(t, err)
	e2, err := engine.NewEngine(novel)
	require.NoError(t, err)

	e1.SetVariable("gold", 100)

	// Второй движок видит объявленное в новелле значение, а не мутацию первого.
	v, ok := e2.Variable("gold")
	require.True(t, ok)
	assert.EqualValues(t, 10, v)

	// И сама новелла не затронута.
	assert.EqualValues(t, 10, novel.Variables["gold"])
}

func TestReset(t *testing.T) {
	e, err := engine.NewEngine(testNovel())
	require.NoError(t, err)

	e.SetVariable("flag", true)
	require.NotNil(t, e.MakeChoice(0))
	require.NotEmpty(t, e.History())

	e.Reset()

	assert.Empty(t, e.History())
	v, ok := e.Variable("flag")
	require.True(t, ok)
	assert.Equal(t, false, v)
}

func TestHistoryDefensiveCopy(t *testing.T) {
	e, err := engine.NewEngine(testNovel())
	require.NoError(t, err)
	require.NotNil(t, e.GoToScene("s2"))

	history := e.History()
	history[0] = "tampered"

	assert.Equal(t, []string{"s2"}, e.History())
}

func TestSnapshotRoundTrip(t *testing.T) {
	novel := testNovel()
	e1, err := engine.NewEngine(novel)
	require.NoError(t, err)

	e1.SetVariable("flag", true)
	require.NotNil(t, e1.MakeChoice(0))

	snap := e1.Snapshot()

	e2, err := engine.NewEngine(novel)
	require.NoError(t, err)
	e2.RestoreSnapshot(snap)

	assert.Equal(t, e1.History(), e2.History())
	v, ok := e2.Variable("flag")
	require.True(t, ok)
	assert.Equal(t, true, v)

	// Снимок независим от движка-источника.
	e1.SetVariable("flag", false)
	v, _ = e2.Variable("flag")
	assert.Equal(t, true, v)
}

// TestFlagGatedScenario воспроизводит сквозной сценарий: условие выбора
// закрыто, переменная выставляется, выбор открывается.
func TestFlagGatedScenario(t *testing.T) {
	novel := &engine.Novel{
		ID:          "vn-e2e",
		Title:       "E2E",
		Description: "flag gated",
		Author:      "tests",
		Tags:        []string{},
		Variables:   map[string]any{"flag": false},
		Scenes: []engine.Scene{
			{
				ID:       "s1",
				Dialogue: &engine.Dialogue{Text: "Hello"},
				Choices:  []engine.Choice{{Text: "Go", NextSceneID: "s2", Condition: "flag == true"}},
			},
			{ID: "s2", Dialogue: &engine.Dialogue{Text: "Arrived"}},
		},
	}
	e, err := engine.NewEngine(novel)
	require.NoError(t, err)

	// Условие ложно: выбор закрыт, история пуста, текущая сцена — s1.
	assert.Nil(t, e.MakeChoice(0))
	assert.Empty(t, e.History())
	assert.Equal(t, "s1", e.CurrentScene().ID)

	e.SetVariable("flag", true)

	scene := e.MakeChoice(0)
	require.NotNil(t, scene)
	assert.Equal(t, "s2", scene.ID)
	assert.Equal(t, []string{"s2"}, e.History())
}
