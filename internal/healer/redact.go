package healer

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// maxHTML ограничивает размер разметки в промпте.
const maxHTML = 15000

type rule struct {
	re   *regexp.Regexp
	repl string
}

// Правила маскировки чувствительных данных в разметке перед отправкой в LLM.
var redactRules = []rule{
	{regexp.MustCompile(`(?i)(<input[^>]*type=["']password["'][^>]*value=["'])([^"']+)`), `${1}[FILTERED]`},
	{regexp.MustCompile(`(?i)(password|пароль|passwd|pwd)(\s*[:=]\s*["']?)([^"'\s<]{3,})`), `${1}${2}[FILTERED]`},
	{regexp.MustCompile(`(?i)(bearer\s+)([a-zA-Z0-9_.-]{20,})`), `${1}[FILTERED]`},
	{regexp.MustCompile(`(?i)((?:api|secret|access)[_-]?(?:key|token|secret)\s*[:=]\s*["']?)([a-zA-Z0-9_-]{20,})`), `${1}[FILTERED]`},
	{regexp.MustCompile(`(?i)((?:session[_-]?(?:id|token)|csrf[_-]?token)["']?\s*[:=]\s*["']?)([a-zA-Z0-9_-]{10,})`), `${1}[FILTERED]`},
	{regexp.MustCompile(`\b(?:sk|pk)[-_][a-zA-Z0-9]{32,}\b`), `[FILTERED]`},
	{regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`), `[FILTERED]`},
	{regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`), `[FILTERED_EMAIL]`},
	{regexp.MustCompile(`(?:\+7|8)\s?\(?\d{3}\)?\s?\d{3}[-.\s]?\d{2}[-.\s]?\d{2}\b`), `[FILTERED_PHONE]`},
}

var spaceRe = regexp.MustCompile(`\s{2,}`)

// Redact маскирует пароли, токены, карты, email и телефоны.
func Redact(text string) string {
	for _, r := range redactRules {
		text = r.re.ReplaceAllString(text, r.repl)
	}
	return text
}

// PrepareHTML оставляет от страницы только <body> без скриптов, стилей
// и комментариев, маскирует данные и обрезает разметку до maxHTML символов.
func PrepareHTML(raw string) string {
	out := raw
	if doc, err := html.Parse(strings.NewReader(raw)); err == nil {
		root := findBody(doc)
		if root == nil {
			root = doc
		}
		cleanNode(root)
		var sb strings.Builder
		if err := html.Render(&sb, root); err == nil {
			out = sb.String()
		}
	}

	out = spaceRe.ReplaceAllString(out, " ")
	out = Redact(strings.TrimSpace(out))

	if r := []rune(out); len(r) > maxHTML {
		out = string(r[:maxHTML]) + "...[TRUNCATED]"
	}
	return out
}

var dropTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "svg": true,
	"iframe": true, "link": true, "meta": true, "head": true, "title": true,
}

var dropAttrs = map[string]bool{
	"style": true, "srcset": true, "sizes": true, "loading": true, "decoding": true,
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

// cleanNode удаляет комментарии и мусорные теги. data-* и aria-* атрибуты
// остаются: по ним строятся локаторы.
func cleanNode(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch {
		case c.Type == html.CommentNode:
			n.RemoveChild(c)
		case c.Type == html.ElementNode && dropTags[c.Data]:
			n.RemoveChild(c)
		case c.Type == html.ElementNode:
			c.Attr = filterAttrs(c)
			cleanNode(c)
		}
		c = next
	}
}

func filterAttrs(n *html.Node) []html.Attribute {
	password := false
	for _, a := range n.Attr {
		if a.Key == "type" && strings.EqualFold(a.Val, "password") {
			password = true
		}
	}

	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if dropAttrs[a.Key] || strings.HasPrefix(a.Key, "on") {
			continue
		}
		if password && a.Key == "value" {
			a.Val = "[FILTERED]"
		}
		kept = append(kept, a)
	}
	return kept
}
