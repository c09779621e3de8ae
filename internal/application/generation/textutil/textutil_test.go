package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountWords(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"## Intro", 1},
		{"Don't stop, well-known solar-panels rock.", 5},
		{"- bullet one\n- bullet two", 4},
		{"costs 1,200 dollars -- roughly", 5},
		{"trailing hyphen- and 'quoted'", 4},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CountWords(c.in), c.in)
	}
}

func TestFindOccurrences(t *testing.T) {
	text := "Solar panels are great. SOLAR PANELS again; solar panels, solar panels."
	spans := FindOccurrences(text, "solar panels")
	require.Len(t, spans, 4)
	assert.Equal(t, "Solar panels", text[spans[0].Start:spans[0].End])
	assert.Equal(t, "SOLAR PANELS", text[spans[1].Start:spans[1].End])

	assert.Equal(t, 2, CountOccurrences("aaaa", "aa"))
	assert.Equal(t, 0, CountOccurrences("anything", "  "))
	assert.Equal(t, 1, CountOccurrences("Über cool", "über"))
}

func TestExtractHeadings(t *testing.T) {
	src := "# Solar Guide\n\nIntro\n\nSome text about panels.\n\n**Benefits**\n\nMore text here.\n\nConclusion:\nWrap it up now.\n\nSetext Title\n---\n\nJust a closing sentence.\n"
	hs := ExtractHeadings(src)

	var names []string
	for _, h := range hs {
		names = append(names, h.Text)
	}
	assert.Equal(t, []string{"Solar Guide", "Intro", "Benefits", "Conclusion", "Setext Title"}, names)

	assert.Equal(t, "# Solar Guide", src[hs[0].Line.Start:hs[0].Line.End])
	assert.Equal(t, "**Benefits**", src[hs[2].Line.Start:hs[2].Line.End])
}

func TestStripHeadings(t *testing.T) {
	src := "## Intro\nBody one.\n\n## Benefits\nBody two."
	out := StripHeadings(src)
	assert.NotContains(t, out, "Intro")
	assert.Contains(t, out, "Body one.")
	assert.Contains(t, out, "Body two.")
}

func TestNormalizeHeading(t *testing.T) {
	assert.Equal(t, "benefits of solar", NormalizeHeading("  Benefits -- of SOLAR! "))
	assert.Equal(t, "", NormalizeHeading("**"))
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("One two. Three? Four!  Five\n\nSix")
	assert.Equal(t, []string{"One two.", "Three?", "Four!", "Five", "Six"}, got)
}

func TestFleschKincaidGrade_Ordering(t *testing.T) {
	simple := "The cat sat. The dog ran. We had fun. It was a good day."
	complex := "Photovoltaic installations fundamentally transform residential electricity consumption, " +
		"substantially diminishing dependency on centralized infrastructure while simultaneously " +
		"generating considerable long-term financial advantages for environmentally conscientious homeowners."
	assert.Less(t, FleschKincaidGrade(simple), 4.0)
	assert.Greater(t, FleschKincaidGrade(complex), 16.0)
	assert.Equal(t, 0.0, FleschKincaidGrade(""))
}

func TestSyllables(t *testing.T) {
	assert.Equal(t, 1, Syllables("cat"))
	assert.Equal(t, 2, Syllables("panel"))
	assert.Equal(t, 1, Syllables("make"))
	assert.Equal(t, 3, Syllables("energy"))
}

func TestSpansHelpers(t *testing.T) {
	merged := MergeSpans([]Span{{10, 12}, {0, 3}, {2, 5}, {12, 14}})
	assert.Equal(t, []Span{{0, 5}, {10, 14}}, merged)
	assert.True(t, AnyOverlap(merged, Span{4, 6}))
	assert.False(t, AnyOverlap(merged, Span{5, 10}))

	text := "See https://example.com/a for details [1] and [23]."
	assert.Len(t, URLSpans(text), 1)
	assert.Equal(t, 2, CountCitationMarkers(text))
}
