package parser

import (
	"regexp"
	"strings"
)

// stopwords are excluded from the token-overlap alias match.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {},
	"season": {}, "part": {}, "episode": {}, "no": {}, "ko": {},
}

var nonWordNonCJK = regexp.MustCompile(`[^\p{Han}\p{Hiragana}\p{Katakana}\w]+`)

// normalize lowercases and collapses runs of non-word, non-CJK characters to
// a single space, so titles differing only in punctuation/casing compare equal.
func normalize(s string) string {
	s = strings.ToLower(s)
	s = nonWordNonCJK.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func tokens(s string) []string {
	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		if _, skip := stopwords[f]; skip {
			continue
		}
		out = append(out, f)
	}
	return out
}

// AliasScore scores how well a release title matches a show's known aliases.
// +40 if the shortest-first normalized alias is a substring of the
// normalized title; else +30 if at least two non-stopword tokens of length
// >= 3 overlap between title and any alias; else 0.
func AliasScore(title string, aliases []string) int {
	normTitle := normalize(title)
	if normTitle == "" || len(aliases) == 0 {
		return 0
	}

	sorted := append([]string(nil), aliases...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && len(sorted[j]) < len(sorted[j-1]); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	for _, alias := range sorted {
		na := normalize(alias)
		if na == "" {
			continue
		}
		if strings.Contains(normTitle, na) {
			return 40
		}
	}

	titleTokens := make(map[string]struct{})
	for _, t := range tokens(normTitle) {
		titleTokens[t] = struct{}{}
	}
	for _, alias := range sorted {
		overlap := 0
		for _, t := range tokens(normalize(alias)) {
			if _, ok := titleTokens[t]; ok {
				overlap++
				if overlap >= 2 {
					return 30
				}
			}
		}
	}
	return 0
}

var preferred1080 = regexp.MustCompile(`1080`)

// ReleaseScore computes the overall release score used to rank candidates
// for a single target episode: alias match, +40 exact episode match, +20 for
// a preferred subgroup hit, +10 for a 1080p marker.
func ReleaseScore(title string, aliases []string, parsedEpisode, targetEpisode int, subgroup string, preferredSubgroups []string) int {
	score := AliasScore(title, aliases)
	if parsedEpisode == targetEpisode {
		score += 40
	}
	for _, pref := range preferredSubgroups {
		if pref == "" {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(pref), strings.TrimSpace(subgroup)) {
			score += 20
			break
		}
	}
	if preferred1080.MatchString(title) {
		score += 10
	}
	return score
}
