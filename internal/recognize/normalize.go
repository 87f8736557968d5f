package recognize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/width"
)

// Sentence-final particles that carry no referential content. Stripped only
// from the tail of the input so particles inside a name survive.
var trailingParticles = []string{"吧", "呢", "吗", "嘛", "呀", "啊", "哦", "喔", "么", "咯"}

var caseFolder = cases.Fold()

// Normalize prepares text for matching: full-width forms are folded to
// half-width, letters are case-folded, and whitespace, punctuation and
// trailing particles are dropped.
func Normalize(text string) string {
	s := width.Narrow.String(text)
	s = caseFolder.String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()

	for changed := true; changed; {
		changed = false
		for _, p := range trailingParticles {
			if strings.HasSuffix(out, p) {
				out = strings.TrimSuffix(out, p)
				changed = true
			}
		}
	}
	return out
}

// Category-style suffixes commonly appended to merchant display names.
// Stripping them lets "海底捞" match the registered name "海底捞火锅".
var nameSuffixes = []string{
	"火锅店", "火锅", "烤肉店", "烤肉", "餐厅", "饭店", "酒楼", "小吃",
	"旗舰店", "专卖店", "体验店", "门店", "店", "坊", "馆", "屋", "阁", "轩", "居", "铺",
}

// StripNameSuffix removes one trailing category-style suffix from a
// normalized merchant name. Returns the input unchanged when no suffix
// applies or when stripping would leave fewer than two runes.
func StripNameSuffix(name string) string {
	for _, suf := range nameSuffixes {
		if strings.HasSuffix(name, suf) {
			core := strings.TrimSuffix(name, suf)
			if len([]rune(core)) >= 2 {
				return core
			}
		}
	}
	return name
}
