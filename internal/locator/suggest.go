package locator

import (
	"fmt"
	"sort"
	"strings"
)

type scored struct {
	loc   Locator
	score int
}

// Suggest строит список кандидатов по атрибутам элемента, от самого
// надежного к наименее надежному. Поддерживаемые ключи: id, data-testid, name,
// role, aria-label, class, tag, text, nth-child, parent-selector.
func Suggest(attrs map[string]any) []Locator {
	var candidates []scored
	add := func(l Locator, score int) {
		for _, c := range candidates {
			if c.loc == l {
				return
			}
		}
		candidates = append(candidates, scored{loc: l, score: score})
	}

	id := stringAttr(attrs, "id")
	tag := stringAttr(attrs, "tag")
	text := strings.TrimSpace(stringAttr(attrs, "text"))
	ariaLabel := stringAttr(attrs, "aria-label")
	role := stringAttr(attrs, "role")

	if id != "" && isUniqueID(id) {
		add(ID(id), 100)
	}

	if testID := stringAttr(attrs, "data-testid"); testID != "" {
		add(TestID(testID), 95)
	}

	if name := stringAttr(attrs, "name"); name != "" {
		add(CSS(withTag(tag, "[name='"+name+"']")), 90)
	}

	if role != "" && ariaLabel != "" {
		add(CSS("[role='"+role+"'][aria-label='"+ariaLabel+"']"), 85)
	}

	if text != "" && len(text) < 50 {
		add(Text(text), 75)
	}

	if className := stringAttr(attrs, "class"); className != "" && tag != "" {
		if classes := strings.Fields(className); len(classes) > 0 && !isCommonClass(classes[0]) {
			add(CSS(tag+"."+classes[0]), 70)
		}
	}

	if xp := xpathFor(tag, id, text, ariaLabel); xp != "" {
		add(XPath(xp), 60)
	}

	if tag != "" {
		if nth := intAttr(attrs, "nth-child"); nth > 0 {
			if parent := stringAttr(attrs, "parent-selector"); parent != "" {
				add(CSS(fmt.Sprintf("%s > %s:nth-child(%d)", parent, tag, nth)), 50)
			} else {
				add(CSS(fmt.Sprintf("%s:nth-child(%d)", tag, nth)), 40)
			}
		} else {
			add(CSS(tag), 30)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	out := make([]Locator, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.loc)
	}
	return out
}

func withTag(tag, attr string) string {
	if tag == "" {
		return attr
	}
	return tag + attr
}

func xpathFor(tag, id, text, ariaLabel string) string {
	if tag == "" {
		return ""
	}
	switch {
	case id != "":
		return "//" + tag + "[@id='" + id + "']"
	case text != "" && len(text) < 50:
		return "//" + tag + "[contains(text(), " + xpathLiteral(text) + ")]"
	case ariaLabel != "":
		return "//" + tag + "[@aria-label=" + xpathLiteral(ariaLabel) + "]"
	}
	return ""
}

// xpathLiteral оборачивает строку в кавычки XPath 1.0. Строки с обоими видами
// кавычек собираются через concat().
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	for i, p := range parts {
		parts[i] = "'" + p + "'"
	}
	return "concat(" + strings.Join(parts, `, "'", `) + ")"
}

func stringAttr(attrs map[string]any, key string) string {
	if s, ok := attrs[key].(string); ok {
		return s
	}
	return ""
}

func intAttr(attrs map[string]any, key string) int {
	switch v := attrs[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func isUniqueID(id string) bool {
	switch strings.ToLower(id) {
	case "", "content", "main", "header", "footer", "nav", "menu":
		return false
	}
	return true
}

func isCommonClass(class string) bool {
	commonClasses := []string{
		"container", "wrapper", "row", "col", "btn", "button",
		"active", "disabled", "hidden", "visible", "flex", "grid",
	}
	lower := strings.ToLower(class)
	for _, common := range commonClasses {
		if strings.Contains(lower, common) {
			return true
		}
	}
	return false
}
