package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// StrictPolicy removes all HTML tags and attributes.
var StrictPolicy = bluemonday.StrictPolicy()

// bluemonday escapes text for HTML output; values here are stored as plain
// text and served as JSON, so quotes and ampersands are restored. Angle
// brackets stay escaped.
var plainText = strings.NewReplacer("&amp;", "&", "&#39;", "'", "&#34;", `"`)

// Text strips all HTML and surrounding whitespace. Use for event names,
// locations, descriptions, tags, categories, and link titles.
func Text(input string) string {
	if input == "" {
		return ""
	}
	return strings.TrimSpace(plainText.Replace(StrictPolicy.Sanitize(input)))
}

// TextSlice applies Text to each element, dropping elements left empty.
func TextSlice(inputs []string) []string {
	if inputs == nil {
		return nil
	}
	out := make([]string, 0, len(inputs))
	for _, input := range inputs {
		if clean := Text(input); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}
