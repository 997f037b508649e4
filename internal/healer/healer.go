// Package healer подбирает новые локаторы через OpenAI, когда все
// кандидаты из page object не сработали.
package healer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"autotest/internal/config"
	"autotest/internal/locator"
	"autotest/internal/retry"
)

// maxSuggestions ограничивает число кандидатов, которые пробует locator.Utility.
const maxSuggestions = 5

const systemPrompt = "You are an expert in web test automation. " +
	"You find robust Playwright locators for elements in HTML pages."

// ChatClient часть openai.Client, которая нужна healer.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Client struct {
	api       ChatClient
	model     string
	maxTokens int
	retries   int
	baseDelay time.Duration
	limiter   *rateLimiter
	log       *zap.Logger
}

// New создает healer по настройкам OpenAI. Без ключа возвращает ошибку.
func New(cfg config.OpenAI, log *zap.Logger) (*Client, error) {
	if cfg.KeyAI == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}
	c := NewWithAPI(openai.NewClient(cfg.KeyAI), cfg.Model, log)
	if cfg.MaxTokens > 0 {
		c.maxTokens = cfg.MaxTokens
	}
	return c, nil
}

func NewWithAPI(api ChatClient, model string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if model == "" {
		model = openai.GPT4o
	}
	return &Client{
		api:       api,
		model:     model,
		maxTokens: 1000,
		retries:   2,
		baseDelay: time.Second,
		limiter:   newRateLimiter(30),
		log:       log,
	}
}

// suggestion ответ модели.
type suggestion struct {
	Locators  []locator.Locator `json:"locators"`
	Element   map[string]any    `json:"element"`
	Reasoning string            `json:"reasoning"`
}

// Suggest реализует locator.Healer.
func (c *Client) Suggest(ctx context.Context, name string, failed []locator.Locator, html string) ([]locator.Locator, error) {
	if err := c.limiter.allow(); err != nil {
		return nil, err
	}

	prompt := buildPrompt(name, failed, PrepareHTML(html))
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	var resp openai.ChatCompletionResponse
	err := retry.WithBackoff(ctx, c.retries, c.baseDelay, func() error {
		var err error
		resp, err = c.api.CreateChatCompletion(ctx, req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("healer request for %q: %w", name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from LLM")
	}

	locs, reasoning, err := ParseSuggestion(resp.Choices[0].Message.Content, failed)
	if err != nil {
		return nil, err
	}

	c.log.Info("Healer suggested locators",
		zap.String("element", name),
		zap.Int("count", len(locs)),
		zap.String("reasoning", reasoning),
		zap.Int("tokens", resp.Usage.TotalTokens),
	)
	return locs, nil
}

func buildPrompt(name string, failed []locator.Locator, html string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Element %q was not found on the page. These locators failed:\n", name)
	for i, l := range failed {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, l)
	}
	sb.WriteString(`
Find the same element in the HTML below and respond in JSON format:
{
  "locators": [{"type": "css|xpath|id|text|role|testid|placeholder|label", "value": "..."}],
  "element": {"tag": "...", "id": "...", "name": "...", "class": "...", "data-testid": "...",
              "role": "...", "aria-label": "...", "text": "..."},
  "reasoning": "short explanation"
}
Order locators from the most to the least robust. Do not repeat the failed ones.

HTML:
`)
	sb.WriteString(html)
	return sb.String()
}

// ParseSuggestion разбирает JSON ответа модели. Явные локаторы идут первыми,
// за ними кандидаты, построенные по атрибутам элемента. Невалидные и уже
// провалившиеся локаторы отбрасываются.
func ParseSuggestion(content string, failed []locator.Locator) ([]locator.Locator, string, error) {
	var s suggestion
	if err := json.Unmarshal([]byte(content), &s); err != nil {
		return nil, "", fmt.Errorf("failed to parse healer response: %w", err)
	}

	seen := make(map[locator.Locator]bool, len(failed))
	for _, f := range failed {
		seen[normalize(f)] = true
	}

	var out []locator.Locator
	add := func(l locator.Locator) {
		l = normalize(l)
		if l.Value == "" || !knownType(l.Type) || seen[l] {
			return
		}
		if l.Type == locator.TypeCSS || l.Type == locator.TypeXPath {
			if locator.ValidateSelector(l.Value) != nil {
				return
			}
		}
		if l.Type == locator.TypeCSS {
			l.Value, _ = locator.NormalizeSelector(l.Value)
		}
		seen[l] = true
		out = append(out, l)
	}

	for _, l := range s.Locators {
		add(l)
	}
	if len(s.Element) > 0 {
		for _, l := range locator.Suggest(s.Element) {
			add(l)
		}
	}

	if len(out) == 0 {
		return nil, s.Reasoning, errors.New("healer returned no usable locators")
	}
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out, s.Reasoning, nil
}

func normalize(l locator.Locator) locator.Locator {
	return locator.Locator{
		Type:  strings.ToLower(strings.TrimSpace(l.Type)),
		Value: strings.TrimSpace(l.Value),
	}
}

func knownType(t string) bool {
	switch t {
	case locator.TypeXPath, locator.TypeCSS, locator.TypeID, locator.TypeText,
		locator.TypeRole, locator.TypeTestID, locator.TypePlaceholder, locator.TypeLabel:
		return true
	}
	return false
}
