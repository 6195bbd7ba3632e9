// Package filter implements keyword rules applied to articles before dedup.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"newsdigest/internal/model"
)

type rule struct {
	filter model.Filter
	word   string
	re     *regexp.Regexp
}

// Engine holds a compiled set of filter rules.
// Include rules use OR logic (at least one must match).
// Exclude rules use AND logic (none must match).
// An engine without rules passes every article.
type Engine struct {
	includes []rule
	excludes []rule
}

// Compile validates filters and prepares them for matching.
func Compile(filters []model.Filter) (*Engine, error) {
	e := &Engine{}
	for _, f := range filters {
		r := rule{filter: f}
		switch f.Kind {
		case model.FilterInclude, model.FilterExclude:
			r.word = strings.ToLower(strings.TrimSpace(f.Value))
			if r.word == "" {
				return nil, fmt.Errorf("empty %s filter", f.Kind)
			}
		case model.FilterIncludeRe, model.FilterExcludeRe:
			re, err := regexp.Compile("(?i)" + f.Value)
			if err != nil {
				return nil, fmt.Errorf("invalid regex %q: %w", f.Value, err)
			}
			r.re = re
		default:
			return nil, fmt.Errorf("unknown filter kind %q", f.Kind)
		}

		switch f.Kind {
		case model.FilterInclude, model.FilterIncludeRe:
			e.includes = append(e.includes, r)
		default:
			e.excludes = append(e.excludes, r)
		}
	}
	return e, nil
}

// Len returns the number of compiled rules.
func (e *Engine) Len() int {
	if e == nil {
		return 0
	}
	return len(e.includes) + len(e.excludes)
}

// Match reports whether the article passes the rules.
func (e *Engine) Match(a model.ArticleRecord) bool {
	if e.Len() == 0 {
		return true
	}
	for _, r := range e.excludes {
		if r.matches(a) {
			return false
		}
	}
	if len(e.includes) == 0 {
		return true
	}
	for _, r := range e.includes {
		if r.matches(a) {
			return true
		}
	}
	return false
}

func (r rule) matches(a model.ArticleRecord) bool {
	text := textForScope(a, r.filter.Scope)
	if r.re != nil {
		return r.re.MatchString(text)
	}
	return strings.Contains(strings.ToLower(text), r.word)
}

func textForScope(a model.ArticleRecord, scope model.FilterScope) string {
	switch scope {
	case model.ScopeTitle:
		return a.Title
	case model.ScopeContent:
		return a.Description
	default:
		return a.Title + " " + a.Description
	}
}

// ParseRule parses a rule written as "[kind:][scope:]value", for example
// "exclude_re:title:^sponsored" or "include:election". Kind defaults to
// defaultKind and scope to all.
func ParseRule(s string, defaultKind model.FilterKind) (model.Filter, error) {
	f := model.Filter{Kind: defaultKind, Scope: model.ScopeAll}
	rest := strings.TrimSpace(s)

	if head, tail, ok := strings.Cut(rest, ":"); ok {
		switch model.FilterKind(head) {
		case model.FilterInclude, model.FilterExclude, model.FilterIncludeRe, model.FilterExcludeRe:
			f.Kind = model.FilterKind(head)
			rest = tail
		}
	}
	if head, tail, ok := strings.Cut(rest, ":"); ok {
		switch model.FilterScope(head) {
		case model.ScopeTitle, model.ScopeContent, model.ScopeAll:
			f.Scope = model.FilterScope(head)
			rest = tail
		}
	}

	f.Value = strings.TrimSpace(rest)
	if f.Value == "" {
		return model.Filter{}, fmt.Errorf("filter value is required in %q", s)
	}
	return f, nil
}

// ParseRules parses include and exclude rule lists.
func ParseRules(include, exclude []string) ([]model.Filter, error) {
	var filters []model.Filter
	for _, s := range include {
		f, err := ParseRule(s, model.FilterInclude)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	for _, s := range exclude {
		f, err := ParseRule(s, model.FilterExclude)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}
