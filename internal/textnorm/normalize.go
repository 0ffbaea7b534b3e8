// Package textnorm canonicalizes extracted PDF text and splits it into
// size-bounded chunks for model input.
package textnorm

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const softHyphen = "\u00ad"

// ws is the Unicode whitespace set (Go's \s only covers ASCII).
const ws = `[\t\n\v\f\r \x{1c}-\x{1f}\x{85}\p{Z}]`

var (
	hyphenBreak = regexp.MustCompile(`-` + ws + `*\n` + ws + `*`)
	lineBreak   = regexp.MustCompile(ws + `*\n` + ws + `*`)
	spaceRun    = regexp.MustCompile(ws + `+`)
)

// Spec describes the normalization applied by Normalize. It is stored next to
// each summary as provenance.
type Spec struct {
	Unicode            string `json:"unicode"`
	UnwrapHyphenation  bool   `json:"unwrap_hyphenation"`
	CollapseWhitespace bool   `json:"collapse_whitespace"`
}

// CurrentSpec is the Spec implemented by Normalize.
var CurrentSpec = Spec{
	Unicode:            "NFKC",
	UnwrapHyphenation:  true,
	CollapseWhitespace: true,
}

// Normalize returns the canonical form of raw extracted text: NFKC with soft
// hyphens removed, words split across line breaks re-joined, and every run of
// whitespace (line breaks included) collapsed to a single space.
//
// Normalize is deterministic and idempotent.
func Normalize(text string) string {
	t := norm.NFKC.String(text)
	t = strings.ReplaceAll(t, softHyphen, "")
	t = hyphenBreak.ReplaceAllString(t, "")
	t = lineBreak.ReplaceAllString(t, " ")
	t = spaceRun.ReplaceAllString(t, " ")
	// Removals can leave a base letter next to a combining mark.
	t = norm.NFKC.String(t)
	return strings.TrimSpace(t)
}
