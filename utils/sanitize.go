package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizer strips scripts, event handlers and other unsafe markup
// from course content before it is stored.
type ContentSanitizer struct {
	policy *bluemonday.Policy
}

func NewContentSanitizer() *ContentSanitizer {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Globally()
	return &ContentSanitizer{policy: p}
}

func (s *ContentSanitizer) Sanitize(html string) string {
	return strings.TrimSpace(s.policy.Sanitize(html))
}

