package locator

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	colonSpacePattern   = regexp.MustCompile(`^([\w.#-]+):\s+(.+)$`)
	containsDoubleQuote = regexp.MustCompile(`:contains\("([^"]*)"\)`)
	containsSingleQuote = regexp.MustCompile(`:contains\('([^']*)'\)`)
	containsBare        = regexp.MustCompile(`:contains\(([^)'"]+)\)`)

	pseudoClasses = []string{
		":hover", ":focus", ":active", ":visited", ":link", ":checked",
		":disabled", ":enabled", ":first-child", ":last-child", ":nth-child",
		":nth-of-type", ":has-text", ":has", ":not", ":contains", ":text",
	}
)

// NormalizeSelector приводит CSS селектор к виду, который понимает Playwright:
// jQuery :contains() превращается в :has-text(), а запись "button: Войти"
// в button:has-text("Войти"), если перед двоеточием стоит только тег, класс
// или id. Второе значение сообщает, был ли селектор изменен.
func NormalizeSelector(selector string) (string, bool) {
	if selector == "" {
		return selector, false
	}

	normalized := selector
	changed := false

	if m := colonSpacePattern.FindStringSubmatch(normalized); m != nil {
		tag := strings.TrimSpace(m[1])
		text := strings.TrimSpace(m[2])
		if tag != "" && text != "" && !hasPseudoClass(normalized, tag) {
			text = strings.ReplaceAll(text, `"`, `\"`)
			normalized = tag + `:has-text("` + text + `")`
			changed = true
		}
	}

	normalized = containsDoubleQuote.ReplaceAllStringFunc(normalized, func(match string) string {
		changed = true
		text := containsDoubleQuote.FindStringSubmatch(match)[1]
		text = strings.ReplaceAll(text, `\`, `\\`)
		return `:has-text("` + text + `")`
	})

	normalized = containsSingleQuote.ReplaceAllStringFunc(normalized, func(match string) string {
		changed = true
		text := containsSingleQuote.FindStringSubmatch(match)[1]
		text = strings.ReplaceAll(text, `\`, `\\`)
		return `:has-text('` + text + `')`
	})

	normalized = containsBare.ReplaceAllStringFunc(normalized, func(match string) string {
		changed = true
		text := strings.TrimSpace(containsBare.FindStringSubmatch(match)[1])
		return `:has-text("` + text + `")`
	})

	return normalized, changed
}

func hasPseudoClass(selector, tag string) bool {
	for _, pseudo := range pseudoClasses {
		if strings.HasSuffix(tag, pseudo) || strings.Contains(selector, pseudo+"(") {
			return true
		}
	}
	return false
}

// ValidateSelector отклоняет пустые селекторы и URL, переданные вместо селектора.
func ValidateSelector(selector string) error {
	trimmed := strings.TrimSpace(selector)
	if trimmed == "" {
		return fmt.Errorf("селектор не может быть пустым")
	}

	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return fmt.Errorf("селектор не может быть URL, для перехода используй NavigateTo. Получен URL: %s", selector)
	}

	if strings.Contains(trimmed, "://") {
		return fmt.Errorf("селектор не может содержать протокол (://). Получен: %s", selector)
	}

	return nil
}
