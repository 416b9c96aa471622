package engine

// Metadata — неизменяемые после сборки метаданные новеллы.
type Metadata struct {
	ID          string
	Title       string
	Description string
	Author      string
}

// Builder — инкрементальный валидирующий конструктор новеллы.
// Мутаторы возвращают тот же экземпляр для цепочек вызовов; готовая
// новелла появляется только из Build(), который прогоняет полную
// валидацию схемы. Builder однописательный: конкурентные AddScene
// не поддерживаются.
type Builder struct {
	novel Novel
	opts  ValidateOptions
}

// NewBuilder создает пустой Builder.
func NewBuilder() *Builder {
	return &Builder{
		novel: Novel{
			Tags:      []string{},
			Scenes:    []Scene{},
			Variables: map[string]any{},
		},
	}
}

// WithValidateOptions задает опции валидации, применяемые в Build().
func (b *Builder) WithValidateOptions(opts ValidateOptions) *Builder {
	b.opts = opts
	return b
}

// SetMetadata задает метаданные новеллы.
func (b *Builder) SetMetadata(m Metadata) *Builder {
	b.novel.ID = m.ID
	b.novel.Title = m.Title
	b.novel.Description = m.Description
	b.novel.Author = m.Author
	return b
}

// AddScene добавляет сцену в конец списка. Первая добавленная сцена
// становится точкой входа по соглашению.
func (b *Builder) AddScene(scene Scene) *Builder {
	b.novel.Scenes = append(b.novel.Scenes, scene)
	return b
}

// AddTag добавляет метку.
func (b *Builder) AddTag(tag string) *Builder {
	b.novel.Tags = append(b.novel.Tags, tag)
	return b
}

// SetVariable объявляет переменную истории со значением по умолчанию.
func (b *Builder) SetVariable(name string, defaultValue any) *Builder {
	b.novel.Variables[name] = defaultValue
	return b
}

// Build валидирует накопленное состояние и возвращает готовую новеллу.
// Ошибка, если не заданы обязательные метаданные или любая из сцен
// невалидна; тихая коэрция не выполняется.
func (b *Builder) Build() (*Novel, error) {
	novel := b.novel
	novel.Scenes = make([]Scene, len(b.novel.Scenes))
	copy(novel.Scenes, b.novel.Scenes)
	novel.Tags = make([]string, len(b.novel.Tags))
	copy(novel.Tags, b.novel.Tags)
	novel.Variables = copyVariables(b.novel.Variables)

	if err := novel.Validate(b.opts); err != nil {
		return nil, err
	}
	return &novel, nil
}
