// Package textx provides small text utilities used across the project.
package textx

import (
	"strings"
)

// SanitizeText removes control characters except tab/newline/CR and trims spaces.
func SanitizeText(s string) string {
	// strip control chars outside tab/newline/carriage return
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// resumeIndicators are terms whose presence suggests extracted text really
// is a resume rather than scanner noise or a cover image.
var resumeIndicators = []string{
	"experience", "education", "skill", "project", "work",
	"university", "degree", "employment", "summary", "objective",
}

// minExtractedChars is the minimum plausible length for extracted resume text.
const minExtractedChars = 100

// minIndicatorHits is how many distinct indicator terms must appear.
const minIndicatorHits = 2

// LooksLikeResume validates extracted text: at least 100 characters and at
// least two distinct resume-indicator terms.
func LooksLikeResume(text string) bool {
	if len(text) < minExtractedChars {
		return false
	}
	lower := strings.ToLower(text)
	hits := 0
	for _, ind := range resumeIndicators {
		if strings.Contains(lower, ind) {
			hits++
			if hits >= minIndicatorHits {
				return true
			}
		}
	}
	return false
}

// SplitSentences breaks text into trimmed sentences on terminal punctuation
// and newlines, dropping fragments shorter than a few characters. Used to
// build per-sentence embedding matrices.
func SplitSentences(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n' || r == '\r'
	})
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if len(s) >= 3 {
			out = append(out, s)
		}
	}
	return out
}
