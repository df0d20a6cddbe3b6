package service

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var markup = bluemonday.StrictPolicy()

// plainText drops every tag from value and decodes the entities the policy escaped,
// so prose such as "2 < 3 & 5 > 4" is stored as typed.
func plainText(value string) string {
	return strings.TrimSpace(html.UnescapeString(markup.Sanitize(value)))
}

func plainTextPtr(value *string) *string {
	if value == nil {
		return nil
	}
	clean := plainText(*value)
	return &clean
}
