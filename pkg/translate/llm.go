package translate

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	retry "github.com/avast/retry-go/v4"
	openai "github.com/sashabaranov/go-openai"

	"github.com/lingodesk/lingodesk/pkg/logger"
)

// modelFallback hands translation to an OpenAI-compatible chat endpoint when
// the whole cascade struck out. A typical deployment points it at a small
// self-hosted instruct model.
type modelFallback struct {
	client *openai.Client
	model  string
}

func newModelFallback(cfg Config) *modelFallback {
	if cfg.LLMBaseURL == "" || cfg.LLMModel == "" {
		return nil
	}
	clientConfig := openai.DefaultConfig(cfg.LLMAPIKey)
	clientConfig.BaseURL = cfg.LLMBaseURL
	return &modelFallback{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.LLMModel,
	}
}

// translate returns the model's translation of text into target, or "" when
// the fallback is disabled or the model call fails.
func (m *modelFallback) translate(ctx context.Context, text, target string) string {
	if m == nil {
		return ""
	}

	system, user := translationPrompts(text, target)
	req := openai.ChatCompletionRequest{
		Model: m.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		// A literal 0 would be dropped by omitempty; this is the documented
		// way to request temperature zero.
		Temperature: math.SmallestNonzeroFloat32,
		MaxTokens:   tokenBudget(text),
	}

	var resp openai.ChatCompletionResponse
	err := retry.Do(
		func() error {
			var apiErr error
			resp, apiErr = m.client.CreateChatCompletion(ctx, req)
			return apiErr
		},
		retry.Attempts(2),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		logger.G(ctx).WithError(err).WithField("model", m.model).Warn("model translation fallback failed")
		return ""
	}
	if len(resp.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

// translationPrompts returns a language-specific system prompt and the user
// message carrying the text. The prompts insist on translation-only output so
// downstream consumers never see model chatter.
func translationPrompts(text, target string) (string, string) {
	switch target {
	case "zh":
		return "你是一名专业翻译，仅负责把给定文本翻译成简体中文。只输出译文，不要任何解释或前后缀。",
			"将以下内容翻译成简体中文：\n\n" + text
	case "fr":
		return "Vous êtes un traducteur professionnel. Traduisez le texte fourni en français. Répondez uniquement par la traduction, sans explications.",
			"Traduisez en français:\n\n" + text
	default:
		return "You are a professional translator. Translate the provided text into the target language. Output only the translation, with no extra text.",
			fmt.Sprintf("Target language: %s\nText:\n%s", target, text)
	}
}

// tokenBudget scales the completion allowance with the input length, clamped
// to [128, 2048].
func tokenBudget(text string) int {
	n := utf8.RuneCountInString(text) * 3
	if n < 128 {
		return 128
	}
	if n > 2048 {
		return 2048
	}
	return n
}
