package reconciler

import (
	"regexp"
	"time"

	"github.com/animarr/animarr/internal/parser"
)

// Decision is the outcome of classifying one incoming video file.
const (
	DecisionExtraKnown  = "extra_known"
	DecisionNeedsReview = "needs_review"
	DecisionConfident   = "episode_confident"
)

// extraKeywordsLatin matches the word-style "extra" markers with word
// boundaries, so e.g. "special" in "special.mkv" hits but "specialized" would
// not (it wouldn't anyway, but the boundary also avoids matching inside a
// show's own title).
var extraKeywordsLatin = regexp.MustCompile(`(?i)\b(pv|trailer|teaser|ncop|nced|creditless|menu|bonus|extra|special|interview|talk|free\s*talk|cast)\b`)

// extraKeywordsCJK matches CJK equivalents by substring; CJK text carries no
// word boundaries in Go's regex engine.
var extraKeywordsCJK = regexp.MustCompile(`(访谈|特典|预告|菜单|花絮|彩蛋|片头曲|片尾曲)`)

// HasExtraKeyword reports whether relPath carries a PV/trailer/OP-NC/bonus/
// interview marker identifying it as a non-episode extra.
func HasExtraKeyword(relPath string) bool {
	return extraKeywordsLatin.MatchString(relPath) || extraKeywordsCJK.MatchString(relPath)
}

// Classification is the result of classifying one incoming file.
type Classification struct {
	Decision        string
	ExtraKeywordHit bool
	Season          int
	Episode         int
	Reasons         []string
}

// Classify applies the extra-keyword, explicit-episode-signal, range and
// runtime-outlier rules to decide what to do with an incoming file.
// medianDuration and sampleCount describe the show's previously-organized
// episodes; sampleCount below minOutlierSamples disables the outlier check.
func Classify(relPath string, totalEps *int, medianDuration time.Duration, sampleCount, minOutlierSamples int, duration time.Duration) Classification {
	extraHit := HasExtraKeyword(relPath)
	explicitEpisode := parser.HasExplicitEpisodeSignal(relPath)

	season, hasSeason := parser.ExtractSeason(relPath)
	if !hasSeason {
		season = 1
	}

	if extraHit && explicitEpisode {
		return Classification{Decision: DecisionNeedsReview, ExtraKeywordHit: true, Season: season, Reasons: []string{"extra_keyword_with_explicit_episode"}}
	}
	if extraHit {
		return Classification{Decision: DecisionExtraKnown, ExtraKeywordHit: true, Season: season, Reasons: []string{"extra_keyword"}}
	}

	epNo, confident := parser.ExtractEpisode(relPath)
	if !confident {
		return Classification{Decision: DecisionNeedsReview, Season: season, Reasons: []string{"episode_not_confident"}}
	}
	if totalEps != nil && epNo > *totalEps {
		return Classification{Decision: DecisionNeedsReview, Season: season, Episode: epNo, Reasons: []string{"episode_out_of_range"}}
	}
	if sampleCount >= minOutlierSamples && isRuntimeOutlier(duration, medianDuration) {
		return Classification{Decision: DecisionNeedsReview, Season: season, Episode: epNo, Reasons: []string{"runtime_outlier"}}
	}

	return Classification{Decision: DecisionConfident, Season: season, Episode: epNo}
}

// isRuntimeOutlier reports whether duration falls outside [0.55, 1.8] times
// the median of the show's previously-organized episodes.
func isRuntimeOutlier(duration, median time.Duration) bool {
	if median <= 0 || duration <= 0 {
		return false
	}
	ratio := float64(duration) / float64(median)
	return ratio < 0.55 || ratio > 1.8
}
