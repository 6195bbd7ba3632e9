package ingest

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"newsdigest/internal/model"
)

// Normalizer turns provider articles into records fit for the daily log.
type Normalizer struct {
	policy *bluemonday.Policy
}

// NewNormalizer creates a Normalizer that strips all markup from text fields.
func NewNormalizer() *Normalizer {
	return &Normalizer{policy: bluemonday.StrictPolicy()}
}

// Normalize converts raw into an ArticleRecord. It returns false when the
// article has no identifier and must be dropped.
func (n *Normalizer) Normalize(raw model.RawArticle) (model.ArticleRecord, bool) {
	if strings.TrimSpace(raw.ID) == "" {
		return model.ArticleRecord{}, false
	}
	return model.ArticleRecord{
		ID:          raw.ID,
		Title:       n.text(raw.Title),
		Description: n.text(raw.Description),
		Link:        strings.TrimSpace(raw.Link),
		Source:      strings.TrimSpace(raw.SourceName),
		PublishedAt: strings.TrimSpace(raw.PublishedAt),
	}, true
}

// text strips markup, unescapes entities and collapses whitespace.
func (n *Normalizer) text(s string) string {
	if s == "" {
		return ""
	}
	s = html.UnescapeString(n.policy.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}
