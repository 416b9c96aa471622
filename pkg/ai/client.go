// Package ai — клиенты текстовой генерации (OpenAI-совместимые API и Ollama)
// с единым интерфейсом и метриками Prometheus.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrGenerationFailed — ошибка при генерации текста AI.
var ErrGenerationFailed = errors.New("ошибка генерации текста AI")

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novel_engine_ai_requests_total",
			Help: "Total number of requests to the AI API.",
		},
		[]string{"model", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "novel_engine_ai_request_duration_seconds",
			Help:    "Histogram of AI API request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
	aiTotalTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "novel_engine_ai_total_tokens",
			Help:    "Histogram of total token counts (prompt + completion).",
			Buckets: prometheus.LinearBuckets(350, 350, 20),
		},
		[]string{"model"},
	)
)

// Options настраивают клиента текстовой генерации.
type Options struct {
	Provider  string // openai | ollama
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// UsageInfo — использование токенов одним запросом.
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Client — интерфейс взаимодействия с AI API.
type Client interface {
	// GenerateText генерирует текст по системному промту и вводу пользователя.
	GenerateText(ctx context.Context, systemPrompt, userInput string) (string, UsageInfo, error)
}

// NewClient создает клиента в зависимости от провайдера.
func NewClient(opts Options, logger *zap.Logger) (Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	switch strings.ToLower(opts.Provider) {
	case "openai":
		cfg := openaigo.DefaultConfig(opts.APIKey)
		if opts.BaseURL != "" {
			cfg.BaseURL = opts.BaseURL
		}
		cfg.HTTPClient = &http.Client{Timeout: timeout}
		logger.Info("AI client created",
			zap.String("provider", "openai"),
			zap.String("model", opts.Model),
			zap.Duration("timeout", timeout),
		)
		return &openAIClient{
			client:    openaigo.NewClientWithConfig(cfg),
			model:     opts.Model,
			maxTokens: opts.MaxTokens,
			logger:    logger.Named("OpenAIClient"),
		}, nil
	case "ollama":
		return newOllamaClient(opts, timeout, logger)
	default:
		return nil, fmt.Errorf("неизвестный AI-провайдер: '%s'", opts.Provider)
	}
}

// --- Реализация на go-openai ---

type openAIClient struct {
	client    *openaigo.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

func (c *openAIClient) GenerateText(ctx context.Context, systemPrompt, userInput string) (string, UsageInfo, error) {
	var usage UsageInfo

	if strings.TrimSpace(systemPrompt) == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", usage, fmt.Errorf("%w: системный промт пуст", ErrGenerationFailed)
	}

	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if userInput != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{
			Role:    openaigo.ChatMessageRoleUser,
			Content: userInput,
		})
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: c.maxTokens,
	})
	duration := time.Since(start)

	if err != nil {
		c.logger.Error("AI request failed", zap.Error(err), zap.Duration("duration", duration))
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", usage, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_empty_response"}).Inc()
		return "", usage, fmt.Errorf("%w: получен пустой ответ", ErrGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())

	text := resp.Choices[0].Message.Content

	usage.PromptTokens = resp.Usage.PromptTokens
	usage.CompletionTokens = resp.Usage.CompletionTokens
	usage.TotalTokens = resp.Usage.TotalTokens
	if usage.TotalTokens == 0 {
		// Некоторые OpenAI-совместимые API не возвращают Usage; оцениваем сами
		usage = c.estimateUsage(systemPrompt, userInput, text)
	}
	if usage.TotalTokens > 0 {
		aiTotalTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usage.TotalTokens))
	}

	c.logger.Debug("AI response received",
		zap.Duration("duration", duration),
		zap.Int("responseLen", len(text)),
		zap.Int("totalTokens", usage.TotalTokens),
	)
	return text, usage, nil
}

func (c *openAIClient) estimateUsage(systemPrompt, userInput, response string) UsageInfo {
	tke, err := tiktoken.EncodingForModel(c.model)
	if err != nil {
		// Неизвестная модель — берем универсальную кодировку
		tke, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return UsageInfo{}
		}
	}
	prompt := len(tke.Encode(systemPrompt, nil, nil)) + len(tke.Encode(userInput, nil, nil))
	completion := len(tke.Encode(response, nil, nil))
	return UsageInfo{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}

// --- Реализация на ollama/api ---

type ollamaClient struct {
	client    *api.Client
	model     string
	maxTokens int
	timeout   time.Duration
	logger    *zap.Logger
}

func newOllamaClient(opts Options, timeout time.Duration, logger *zap.Logger) (Client, error) {
	// api.NewClient ожидает URL без суффикса /v1
	baseURL := strings.TrimSuffix(opts.BaseURL, "/v1")
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга Ollama Base URL '%s': %w", baseURL, err)
	}

	logger.Info("AI client created",
		zap.String("provider", "ollama"),
		zap.String("baseURL", baseURL),
		zap.String("model", opts.Model),
	)
	return &ollamaClient{
		client:    api.NewClient(parsedURL, &http.Client{Timeout: timeout}),
		model:     opts.Model,
		maxTokens: opts.MaxTokens,
		timeout:   timeout,
		logger:    logger.Named("OllamaClient"),
	}, nil
}

func (c *ollamaClient) GenerateText(ctx context.Context, systemPrompt, userInput string) (string, UsageInfo, error) {
	var usage UsageInfo

	if strings.TrimSpace(systemPrompt) == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", usage, fmt.Errorf("%w: системный промт пуст", ErrGenerationFailed)
	}

	messages := []api.Message{
		{Role: "system", Content: systemPrompt},
	}
	if userInput != "" {
		messages = append(messages, api.Message{Role: "user", Content: userInput})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]interface{}{
			"num_predict": c.maxTokens,
		},
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	var resp api.ChatResponse
	err := c.client.Chat(requestCtx, req, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Error("Ollama request timed out", zap.Duration("timeout", c.timeout), zap.Error(err))
		} else {
			c.logger.Error("Ollama request failed", zap.Error(err), zap.Duration("duration", duration))
		}
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", usage, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if resp.Message.Content == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_empty_response"}).Inc()
		return "", usage, fmt.Errorf("%w: получен пустой ответ", ErrGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())

	usage.PromptTokens = resp.PromptEvalCount
	usage.CompletionTokens = resp.EvalCount
	usage.TotalTokens = resp.PromptEvalCount + resp.EvalCount
	if usage.TotalTokens > 0 {
		aiTotalTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usage.TotalTokens))
	}

	c.logger.Debug("Ollama response received",
		zap.Duration("duration", duration),
		zap.Int("responseLen", len(resp.Message.Content)),
	)
	return resp.Message.Content, usage, nil
}
