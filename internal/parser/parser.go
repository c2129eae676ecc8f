// Package parser is a pure function library that extracts season, episode,
// episode-range, subgroup and quality information from anime release titles
// and filenames. Deterministic, regex-based, with ordered patterns covering
// both Latin and CJK conventions.
package parser

import (
	"regexp"
	"strconv"
)

// Season patterns, tried in order of confidence.
var (
	seasonSxx     = regexp.MustCompile(`(?i)\bS0?(\d{1,2})\b`)
	seasonOrdinal = regexp.MustCompile(`(?i)(\d{1,2})(?:st|nd|rd|th)\s+Season\b`)
	seasonCJK     = regexp.MustCompile(`第\s*(\d{1,2})\s*[季期]`)
	seasonSpelled = regexp.MustCompile(`(?i)\bSeason\s+(\d{1,2})\b`)
)

// ExtractSeason returns the season number embedded in text, if any, in [1, 30].
func ExtractSeason(text string) (int, bool) {
	for _, pattern := range []*regexp.Regexp{seasonSxx, seasonOrdinal, seasonCJK, seasonSpelled} {
		if m := pattern.FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= 30 {
				return n, true
			}
		}
	}
	return 0, false
}

// Episode patterns, tried in descending order of confidence.
var (
	episodeSxExx      = regexp.MustCompile(`(?i)\bS\d{1,2}E(\d{1,3})\b`)
	episodeEorEP      = regexp.MustCompile(`(?i)\bE(?:P)?\.?\s?(\d{1,3})\b`)
	episodeCJK        = regexp.MustCompile(`第\s*(\d{1,3})\s*[话話集]`)
	episodeBracket    = regexp.MustCompile(`[\[\(]\s*(\d{1,3})\s*[\]\)]`)
	episodeDashed     = regexp.MustCompile(`-\s*(\d{1,3})\b`)
	episodeLastResort = regexp.MustCompile(`\b(\d{1,3})\b`)
)

var rejectedNumbers = map[int]bool{
	264: true, 265: true, 480: true, 540: true, 576: true,
	720: true, 1080: true, 1440: true, 2160: true,
}

func validEpisode(n int) bool {
	if n <= 0 || n > 300 {
		return false
	}
	if rejectedNumbers[n] {
		return false
	}
	if n >= 1900 && n <= 2100 {
		return false
	}
	return true
}

// ExtractEpisode extracts the single most-confident episode number from text,
// trying patterns in descending confidence order. Returns false if nothing
// in [1, 300] (excluding the resolution/codec and year rejection sets) is found.
func ExtractEpisode(text string) (int, bool) {
	for _, pattern := range []*regexp.Regexp{episodeSxExx, episodeEorEP, episodeCJK, episodeBracket, episodeDashed, episodeLastResort} {
		matches := pattern.FindAllStringSubmatch(text, -1)
		for _, m := range matches {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if validEpisode(n) {
				return n, true
			}
		}
	}
	return 0, false
}

// HasExplicitEpisodeSignal reports whether text contains an unambiguous
// episode marker (SxxEyy, E/EP xx, or a CJK episode marker) as opposed to a
// bare number that could be anything.
func HasExplicitEpisodeSignal(text string) bool {
	return episodeSxExx.MatchString(text) || episodeEorEP.MatchString(text) || episodeCJK.MatchString(text)
}

var episodeRangePattern = regexp.MustCompile(`\b(\d{1,3})\s*[-~]\s*(\d{1,3})\b`)

// ExtractEpisodeRange extracts a batch-pack episode range such as "01-13" or
// "01~13". Both ends must be valid episode numbers with start <= end.
func ExtractEpisodeRange(text string) (start, end int, ok bool) {
	for _, m := range episodeRangePattern.FindAllStringSubmatch(text, -1) {
		s, err1 := strconv.Atoi(m[1])
		e, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil {
			continue
		}
		if !validEpisode(s) || !validEpisode(e) || s > e {
			continue
		}
		return s, e, true
	}
	return 0, 0, false
}

// badReleaseKeywords are word-boundary-matched Latin markers that flag a
// release as unwanted (not a numbered episode).
var badReleaseKeywords = regexp.MustCompile(`(?i)\b(cam|telesync|creditless|pv|trailer|teaser|ncop|nced|menu|bonus|extra|special|interview|talk|freetalk|cast)\b`)

// badReleaseCJK are CJK markers matched by substring (CJK text has no word
// boundaries in the Go regex engine's \b sense).
var badReleaseCJK = regexp.MustCompile(`(访谈|特典|预告|菜单)`)

// IsBadRelease reports whether text carries a cam/telesync/creditless/PV/
// trailer/menu/bonus/extra/special/OVA marker that disqualifies it as a
// numbered episode candidate.
func IsBadRelease(text string) bool {
	if badReleaseKeywords.MatchString(text) {
		return true
	}
	if ovaPattern.MatchString(text) {
		return true
	}
	return badReleaseCJK.MatchString(text)
}

var ovaPattern = regexp.MustCompile(`(?i)\bOVA\b`)
