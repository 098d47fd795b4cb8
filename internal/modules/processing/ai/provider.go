package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	appcfg "github.com/wikiquiz/server/internal/config"
	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"
	jetanthropic "go.jetify.com/ai/provider/anthropic"
	jetopenai "go.jetify.com/ai/provider/openai"
)

const (
	ProviderGemini           = "gemini"
	ProviderOpenAI           = "openai"
	ProviderOpenAICompatible = "openai-compatible"
	ProviderAnthropic        = "anthropic"
	ProviderOpenRouter       = "openrouter"

	defaultGeminiBaseURL     = "https://generativelanguage.googleapis.com/v1beta/openai"
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultOpenAIBaseURL     = "https://api.openai.com/v1"

	maxErrorBodyBytes = 4096
)

var defaultModels = map[string]string{
	ProviderGemini:           "gemini-2.5-flash",
	ProviderOpenAI:           "gpt-4o-mini",
	ProviderOpenAICompatible: "gpt-4o-mini",
	ProviderAnthropic:        "claude-haiku-4-5-20251001",
	ProviderOpenRouter:       "google/gemini-2.5-flash",
}

// LanguageModel is a single-shot text completion capability. An empty reply
// is returned as "" with a nil error; only transport, auth and provider
// errors are reported.
type LanguageModel interface {
	Generate(ctx context.Context, systemPrompt, prompt string) (string, error)
}

var errMissingAPIKey = errors.New("AI provider api key is empty")

func normalizeProviderType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	t = strings.ReplaceAll(t, "_", "-")
	t = strings.ReplaceAll(t, " ", "")
	if t == "openaicompatible" {
		t = ProviderOpenAICompatible
	}
	return t
}

// NewLanguageModel builds the model selected by cfg. A missing API key is
// not a construction error; every call on the result fails instead so the
// server can still start and serve stored quizzes.
func NewLanguageModel(cfg appcfg.AIConfig, httpClient *http.Client) (LanguageModel, error) {
	providerType := normalizeProviderType(cfg.Type)
	if _, ok := defaultModels[providerType]; !ok {
		return nil, fmt.Errorf("unsupported AI provider type %q", cfg.Type)
	}
	modelID := strings.TrimSpace(cfg.Model)
	if modelID == "" {
		modelID = defaultModels[providerType]
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return unavailableModel{err: errMissingAPIKey}, nil
	}

	switch providerType {
	case ProviderGemini, ProviderOpenAICompatible, ProviderOpenRouter:
		if httpClient == nil {
			httpClient = &http.Client{}
		}
		return &compatibleModel{
			url:       chatCompletionsURL(providerType, cfg.Endpoint),
			apiKey:    apiKey,
			model:     modelID,
			maxTokens: cfg.MaxOutputTokens,
			timeout:   timeout,
			client:    httpClient,
		}, nil
	default:
		model := buildLanguageModel(providerType, apiKey, modelID, cfg.Endpoint)
		return &jetifyModel{model: model, maxTokens: cfg.MaxOutputTokens, timeout: timeout}, nil
	}
}

func buildLanguageModel(providerType, apiKey, modelID, endpoint string) jetapi.LanguageModel {
	endpoint = strings.TrimSpace(endpoint)

	if providerType == ProviderAnthropic {
		opts := []anthropicoption.RequestOption{
			anthropicoption.WithAPIKey(apiKey),
			anthropicoption.WithMaxRetries(0),
		}
		if endpoint != "" {
			opts = append(opts, anthropicoption.WithBaseURL(strings.TrimRight(endpoint, "/")))
		}

		client := anthropicclient.NewClient(opts...)
		return jetanthropic.NewLanguageModel(modelID, jetanthropic.WithClient(client))
	}

	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(apiKey),
		openaioption.WithMaxRetries(0),
	}
	if normalized := normalizeOpenAIBaseURL(endpoint); normalized != "" {
		opts = append(opts, openaioption.WithBaseURL(normalized))
	}

	client := openaiclient.NewClient(opts...)
	return jetopenai.NewLanguageModel(modelID, jetopenai.WithClient(client))
}

// jetifyModel adapts a go.jetify.com/ai model to LanguageModel.
type jetifyModel struct {
	model     jetapi.LanguageModel
	maxTokens int
	timeout   time.Duration
}

func (m *jetifyModel) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	resp, err := jetai.GenerateText(
		ctx,
		buildAIPromptMessages(systemPrompt, prompt),
		jetai.WithModel(m.model),
		jetai.WithMaxOutputTokens(m.maxTokens),
	)
	if err != nil {
		return "", err
	}
	return extractTextFromAIResponse(resp), nil
}

func buildAIPromptMessages(systemPrompt, prompt string) []jetapi.Message {
	messages := make([]jetapi.Message, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, &jetapi.SystemMessage{Content: systemPrompt})
	}
	messages = append(messages, &jetapi.UserMessage{Content: jetapi.ContentFromText(prompt)})
	return messages
}

func extractTextFromAIResponse(resp *jetapi.Response) string {
	if resp == nil {
		return ""
	}
	var full strings.Builder
	for _, block := range resp.Content {
		textBlock, ok := block.(*jetapi.TextBlock)
		if !ok || textBlock.Text == "" {
			continue
		}
		full.WriteString(textBlock.Text)
	}
	return full.String()
}

// compatibleModel speaks the OpenAI chat-completions wire format directly.
// Gemini and OpenRouter expose the same endpoint shape.
type compatibleModel struct {
	url       string
	apiKey    string
	model     string
	maxTokens int
	timeout   time.Duration
	client    *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (m *compatibleModel) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(chatRequest{Model: m.model, Messages: messages, MaxTokens: m.maxTokens})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if len(respBody) > maxErrorBodyBytes {
			respBody = respBody[:maxErrorBodyBytes]
		}
		return "", fmt.Errorf("chat completions HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode chat completions response: %w", err)
	}
	if result.Error != nil && strings.TrimSpace(result.Error.Message) != "" {
		return "", fmt.Errorf("chat completions error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", nil
	}
	return result.Choices[0].Message.Content, nil
}

// unavailableModel fails every call with err.
type unavailableModel struct{ err error }

func (m unavailableModel) Generate(context.Context, string, string) (string, error) {
	return "", m.err
}

// chatCompletionsURL resolves the request URL for compatible providers. A
// bare host gets "/v1"; any explicit base path is used as is.
func chatCompletionsURL(providerType, endpoint string) string {
	base := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if base == "" {
		switch providerType {
		case ProviderGemini:
			base = defaultGeminiBaseURL
		case ProviderOpenRouter:
			base = defaultOpenRouterBaseURL
		default:
			base = defaultOpenAIBaseURL
		}
	}
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	if parsed, err := neturl.Parse(base); err == nil && parsed.Host != "" && strings.Trim(parsed.Path, "/") == "" {
		return base + "/v1/chat/completions"
	}
	return base + "/chat/completions"
}

func normalizeOpenAIBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return ""
	}
	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimRight(base, "/")
	}

	path := strings.TrimRight(parsed.Path, "/")
	if !strings.HasSuffix(path, "/v1") {
		path += "/v1"
	}
	parsed.Path = path
	return strings.TrimRight(parsed.String(), "/")
}
