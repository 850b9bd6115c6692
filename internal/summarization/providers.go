package summarization

import (
	"context"
	"errors"
	"fmt"
	neturl "net/url"
	"strings"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"
	jetanthropic "go.jetify.com/ai/provider/anthropic"
	jetopenai "go.jetify.com/ai/provider/openai"
	"google.golang.org/genai"

	"github.com/codebuildervaibhav/video-summarizer/internal/config"
)

// ProviderBuilder returns a BuildFunc that wires catalog entries to the
// OpenAI, Anthropic and Gemini clients using keys.
func ProviderBuilder(keys config.APIKeys) BuildFunc {
	return func(ctx context.Context, entry config.ModelEntry) (Generator, error) {
		switch entry.Provider {
		case "openai":
			return newOpenAIGenerator(entry, keys.OpenAI)
		case "anthropic":
			return newAnthropicGenerator(entry, keys.Anthropic)
		case "gemini":
			return newGeminiGenerator(ctx, entry, keys.Gemini)
		default:
			return nil, fmt.Errorf("unknown provider %q", entry.Provider)
		}
	}
}

// languageModelGenerator adapts a jetify LanguageModel.
type languageModelGenerator struct {
	model jetapi.LanguageModel
}

func newOpenAIGenerator(entry config.ModelEntry, apiKey string) (Generator, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}

	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(apiKey),
		openaioption.WithMaxRetries(0),
	}
	if normalized := normalizeOpenAIBaseURL(entry.Endpoint); normalized != "" {
		opts = append(opts, openaioption.WithBaseURL(normalized))
	}

	client := openaiclient.NewClient(opts...)
	return &languageModelGenerator{
		model: jetopenai.NewLanguageModel(entry.ModelID, jetopenai.WithClient(client)),
	}, nil
}

func newAnthropicGenerator(entry config.ModelEntry, apiKey string) (Generator, error) {
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY is not set")
	}

	opts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(apiKey),
		anthropicoption.WithMaxRetries(0),
	}
	if endpoint := strings.TrimSpace(entry.Endpoint); endpoint != "" {
		opts = append(opts, anthropicoption.WithBaseURL(strings.TrimRight(endpoint, "/")))
	}

	client := anthropicclient.NewClient(opts...)
	return &languageModelGenerator{
		model: jetanthropic.NewLanguageModel(entry.ModelID, jetanthropic.WithClient(client)),
	}, nil
}

func (g *languageModelGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	messages := make([]jetapi.Message, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, &jetapi.SystemMessage{Content: req.System})
	}
	messages = append(messages, &jetapi.UserMessage{Content: jetapi.ContentFromText(req.Prompt)})

	resp, err := jetai.GenerateText(ctx, messages,
		jetai.WithModel(g.model),
		jetai.WithMaxOutputTokens(req.MaxOutputTokens),
		jetai.WithTemperature(req.Temperature),
	)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", errors.New("empty response from model")
	}

	var full strings.Builder
	for _, block := range resp.Content {
		textBlock, ok := block.(*jetapi.TextBlock)
		if !ok || textBlock.Text == "" {
			continue
		}
		full.WriteString(textBlock.Text)
	}
	if strings.TrimSpace(full.String()) == "" {
		return "", errors.New("empty response from model")
	}
	return full.String(), nil
}

type geminiGenerator struct {
	client *genai.Client
	model  string
}

func newGeminiGenerator(ctx context.Context, entry config.ModelEntry, apiKey string) (Generator, error) {
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return &geminiGenerator{client: client, model: entry.ModelID}, nil
}

func (g *geminiGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: int32(req.MaxOutputTokens),
	}
	if strings.TrimSpace(req.System) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	if result != nil && len(result.Candidates) > 0 && result.Candidates[0].Content != nil {
		var text strings.Builder
		for _, part := range result.Candidates[0].Content.Parts {
			if part.Text != "" {
				text.WriteString(part.Text)
			}
		}
		if text.Len() > 0 {
			return text.String(), nil
		}
	}
	return "", errors.New("empty response from Gemini")
}

// normalizeOpenAIBaseURL appends /v1 to custom endpoints that lack it.
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
