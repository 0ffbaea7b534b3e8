package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"hyphenated line break", "co-\noperative", "cooperative"},
		{"hyphen with surrounding spaces", "co-  \n  operative", "cooperative"},
		{"plain line break", "line one\nline two", "line one line two"},
		{"crlf line break", "line one\r\nline two", "line one line two"},
		{"whitespace runs", "  a \t\t b   c  ", "a b c"},
		{"soft hyphen removed", "infor\u00admation", "information"},
		{"nfkc ligature", "\ufb01nance", "finance"},
		{"nfkc no-break space", "a\u00a0\u00a0b", "a b"},
		{"unicode line separator", "a\u2028b", "a b"},
		{"hyphen without break kept", "state-of-the-art", "state-of-the-art"},
		{"blank lines", "para one\n\n\npara two", "para one para two"},
		{"soft hyphen before combining mark", "e\u00ad\u0301", "\u00e9"},
		{"hyphen break before combining mark", "e-\n\u0301", "\u00e9"},
		{"empty", "", ""},
		{"only whitespace", " \n\t ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalizeIsFixedPoint(t *testing.T) {
	inputs := []string{
		"co-\noperative",
		"Deep  Learning\nfor Graphs -\n based models\r\n\r\nwith \ufb01ne tuning",
		"  trailing and leading  ",
		"x-\n-\ny",
		"\u3000full width\u3000space",
		"e\u00ad\u0301",
		"e-\n\u0301",
		"caf e\u00ad \u0301",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	in := "Re-\nsults show a 3\u00bd\u00d7 speed-\nup."
	assert.Equal(t, Normalize(in), Normalize(in))
}

