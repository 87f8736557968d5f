package disambiguate

import (
	"strconv"
	"strings"

	"github.com/meilan-group/mallops-cli/internal/recognize"
)

// ordinal prefixes and suffixes users wrap around a bare number
// ("第2个", "1号").
var ordinalTrim = []string{"第", "个", "家", "号", "选", "."}

// ResolveReply maps the user's answer to a clarification prompt back to a
// candidate from the short-list. It accepts a bare ordinal indexing the list,
// else a substring match against candidate names. A nil return means the
// reply resolved nothing and the caller must re-prompt.
func ResolveReply(reply string, shortlist []recognize.Candidate) *recognize.Candidate {
	if len(shortlist) == 0 {
		return nil
	}

	trimmed := strings.TrimSpace(reply)
	for _, affix := range ordinalTrim {
		trimmed = strings.ReplaceAll(trimmed, affix, "")
	}
	if n, err := strconv.Atoi(trimmed); err == nil {
		if n >= 1 && n <= len(shortlist) {
			c := shortlist[n-1]
			return &c
		}
		return nil
	}

	norm := recognize.Normalize(reply)
	if norm == "" {
		return nil
	}
	for _, c := range shortlist {
		name := recognize.Normalize(c.Name)
		core := recognize.StripNameSuffix(name)
		if strings.Contains(norm, name) || strings.Contains(name, norm) || strings.Contains(norm, core) {
			out := c
			return &out
		}
	}
	return nil
}
