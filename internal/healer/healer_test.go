package healer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autotest/internal/config"
	"autotest/internal/locator"
)

type fakeChat struct {
	content string
	err     error
	calls   int
	lastReq openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: f.content}}},
	}, nil
}

func TestParseSuggestion(t *testing.T) {
	failed := []locator.Locator{locator.CSS("#old-search")}
	content := `{
		"locators": [
			{"type": "CSS", "value": "#old-search"},
			{"type": "css", "value": "input#filter_keyword"},
			{"type": "magic", "value": "whatever"},
			{"type": "css", "value": ""},
			{"type": "xpath", "value": "https://example.com"}
		],
		"element": {"tag": "input", "id": "filter_keyword", "name": "filter_keyword"},
		"reasoning": "id changed"
	}`

	locs, reasoning, err := ParseSuggestion(content, failed)
	require.NoError(t, err)
	assert.Equal(t, "id changed", reasoning)
	assert.Equal(t, []locator.Locator{
		locator.CSS("input#filter_keyword"),
		locator.ID("filter_keyword"),
		locator.CSS("input[name='filter_keyword']"),
	}, locs[:3])
	assert.LessOrEqual(t, len(locs), maxSuggestions)
}

func TestParseSuggestion_NormalizesCSS(t *testing.T) {
	locs, _, err := ParseSuggestion(`{"locators":[{"type":"css","value":"button:contains('Login')"}]}`, nil)
	require.NoError(t, err)
	assert.Equal(t, `button:has-text('Login')`, locs[0].Value)
}

func TestParseSuggestion_Errors(t *testing.T) {
	_, _, err := ParseSuggestion("not json", nil)
	assert.Error(t, err)

	_, _, err = ParseSuggestion(`{"locators": [], "reasoning": "no idea"}`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no usable locators")
}

func TestSuggest(t *testing.T) {
	chat := &fakeChat{content: `{"locators":[{"type":"testid","value":"search"}],"reasoning":"testid"}`}
	c := NewWithAPI(chat, "", nil)

	html := `<html><script>var token = "x";</script><input data-testid="search" value="qa@example.com"></html>`
	locs, err := c.Suggest(context.Background(), "Search Input", []locator.Locator{locator.CSS("#gone")}, html)
	require.NoError(t, err)
	assert.Equal(t, []locator.Locator{locator.TestID("search")}, locs)

	assert.Equal(t, openai.GPT4o, chat.lastReq.Model)
	prompt := chat.lastReq.Messages[1].Content
	assert.Contains(t, prompt, `"Search Input"`)
	assert.Contains(t, prompt, "CSS: #gone")
	assert.NotContains(t, prompt, "<script>")
	assert.NotContains(t, prompt, "qa@example.com")
}

func TestSuggest_APIError(t *testing.T) {
	chat := &fakeChat{err: errors.New("invalid api key")}
	c := NewWithAPI(chat, "gpt-4o-mini", nil)
	c.baseDelay = 1

	_, err := c.Suggest(context.Background(), "Logo", nil, "<html></html>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Logo")
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(config.OpenAI{}, nil)
	assert.Error(t, err)

	c, err := New(config.OpenAI{KeyAI: "sk-test", Model: "gpt-4o-mini", MaxTokens: 300}, nil)
	require.NoError(t, err)
	assert.Equal(t, 300, c.maxTokens)
	assert.Equal(t, "gpt-4o-mini", c.model)
}

func TestPrepareHTML(t *testing.T) {
	html := `<div>  <!-- hidden -->
		<style>.a{}</style>
		<input type="password" value="hunter22">
		<span>Card 4111 1111 1111 1111</span>
		<a href="tel:+7 (999) 123-45-67">call</a>
	</div>`

	got := PrepareHTML(html)
	assert.NotContains(t, got, "hidden")
	assert.NotContains(t, got, ".a{}")
	assert.NotContains(t, got, "hunter22")
	assert.NotContains(t, got, "4111")
	assert.Contains(t, got, "[FILTERED_PHONE]")

	assert.NotContains(t, got, "<!--")
	assert.Contains(t, got, "<body>")

	long := PrepareHTML(strings.Repeat("a", maxHTML+10))
	assert.True(t, strings.HasSuffix(long, "[TRUNCATED]"))
}

func TestPrepareHTML_ParsesTricky(t *testing.T) {
	raw := `<html><head><title>Shop</title></head><body>
		<script>var s = "</scr" + "ipt>"; var t = '-->';</script>
		<button data-testid="buy" title="a --> b" onclick="buy()">Buy</button>
		<input type="password" value="s3cret">
	</body></html>`

	got := PrepareHTML(raw)
	assert.NotContains(t, got, "var s")
	assert.NotContains(t, got, "var t")
	assert.NotContains(t, got, "Shop")
	assert.NotContains(t, got, "onclick")
	assert.NotContains(t, got, "s3cret")
	assert.Contains(t, got, `data-testid="buy"`)
	assert.Contains(t, got, `title="a --&gt; b"`)
	assert.Contains(t, got, ">Buy</button>")
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2)
	require.NoError(t, rl.allow())
	require.NoError(t, rl.allow())
	assert.Error(t, rl.allow())
}
