package bot

import (
	"fmt"
	"strings"

	"newsdigest/internal/dailylog"
	"newsdigest/internal/model"
	"newsdigest/internal/storage"
)

const (
	// Telegram rejects messages longer than 4096 characters.
	maxMessageRunes   = 4096
	maxLatestArticles = 10
	timeLayout        = "2006-01-02 15:04 UTC"
)

// FormatStatus describes a day's log.
func FormatStatus(day string, l *dailylog.Log) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Daily log %s\n", day)
	fmt.Fprintf(&b, "Batches: %d\n", len(l.Batches))
	fmt.Fprintf(&b, "Articles: %d\n", l.ArticleCount())
	if tail := l.Tail(1); len(tail) > 0 {
		last := tail[0]
		fmt.Fprintf(&b, "Last batch: %s, %d new from %s\n", last.IngestedAt.Format(timeLayout), last.Count, last.Source)
	}
	return b.String()
}

// FormatSummary renders a stored summary.
func FormatSummary(day string, obj *storage.Object) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summary for %s", day)
	if !obj.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, " (updated %s)", obj.UpdatedAt.UTC().Format(timeLayout))
	}
	b.WriteString("\n\n")
	b.Write(obj.Body)
	return b.String()
}

// FormatBatch lists up to limit articles of a batch.
func FormatBatch(batch model.BatchRecord, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s, %d new\n", batch.Source, batch.IngestedAt.Format(timeLayout), batch.Count)
	for i, a := range batch.Articles {
		if i == limit {
			fmt.Fprintf(&b, "\n...and %d more", len(batch.Articles)-limit)
			break
		}
		fmt.Fprintf(&b, "\n%s", a.Title)
		if a.Link != "" {
			fmt.Fprintf(&b, "\n%s", a.Link)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatFilterList formats the keyword rules grouped by kind.
func FormatFilterList(filters []model.Filter) string {
	if len(filters) == 0 {
		return "No filters configured. Every article with an id is kept."
	}

	groups := map[string][]model.Filter{}
	for _, f := range filters {
		name := groupName(f.Kind)
		groups[name] = append(groups[name], f)
	}

	var b strings.Builder
	b.WriteString("Filters:\n")

	order := []string{"Include (word)", "Include (regex)", "Exclude (word)", "Exclude (regex)"}
	for _, name := range order {
		fs := groups[name]
		if len(fs) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s:\n", name)
		for _, f := range fs {
			fmt.Fprintf(&b, "  %s (%s)\n", f.Value, scopeLabel(f.Scope))
		}
	}
	return b.String()
}

func groupName(k model.FilterKind) string {
	switch k {
	case model.FilterInclude:
		return "Include (word)"
	case model.FilterIncludeRe:
		return "Include (regex)"
	case model.FilterExclude:
		return "Exclude (word)"
	default:
		return "Exclude (regex)"
	}
}

func scopeLabel(s model.FilterScope) string {
	switch s {
	case model.ScopeTitle:
		return "title only"
	case model.ScopeContent:
		return "content only"
	default:
		return "title+content"
	}
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxMessageRunes {
		return s
	}
	return string(r[:maxMessageRunes-1]) + "…"
}
