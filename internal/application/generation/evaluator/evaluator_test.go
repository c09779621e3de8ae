package evaluator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-writer-ai-api/internal/domain/entity"
)

const (
	keywordSentence = "Solar panels turn sunlight into electricity for the household."
	fillerSentence  = "Homeowners often compare installation costs with long term energy savings."
)

// article 每个标题一行，关键词句集中在第一节，填充句均分到各节
func article(headings []string, keywordSentences, fillers int) string {
	var b strings.Builder
	per := fillers / len(headings)
	extra := fillers % len(headings)
	for i, h := range headings {
		b.WriteString("## " + h + "\n\n")
		n := per
		if i == 0 {
			n += extra
			for k := 0; k < keywordSentences; k++ {
				b.WriteString(keywordSentence + " ")
			}
		}
		for k := 0; k < n; k++ {
			b.WriteString(fillerSentence + " ")
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

func solarRequest() entity.GenerationRequest {
	return entity.GenerationRequest{
		RequestID:        "req-1",
		ContentType:      "blog post",
		TargetWordCount:  500,
		RequiredKeywords: []entity.KeywordRequirement{{Keyword: "solar panels", MinOccurrences: 3}},
		RequiredSections: []string{"Intro", "Benefits", "Conclusion"},
		GradeLevel:       entity.GradeHighSchool,
	}
}

func TestSuite_SolarScenarioPasses(t *testing.T) {
	text := article([]string{"Intro", "Benefits", "Conclusion"}, 3, 47)
	ev := NewSuite(DefaultConfig()).Evaluate(text, solarRequest())

	assert.Equal(t, 500, ev.WordCount)
	assert.True(t, ev.Report.Passed(), "failing: %v", ev.Report.Failing())
	assert.Zero(t, ev.Penalty)
	require.Contains(t, ev.Report, "keyword:solar panels")
	assert.Equal(t, float64(0), ev.Report["keyword:solar panels"].Distance)
	assert.NotContains(t, ev.Report, entity.ConstraintCitations)
}

func TestWordCount(t *testing.T) {
	req := solarRequest()
	text := article([]string{"Intro", "Benefits", "Conclusion"}, 3, 10)

	checks := WordCount{Tolerance: 0.10}.Evaluate(text, req)
	require.Len(t, checks, 1)
	c := checks[0]
	assert.False(t, c.Outcome.Passed)
	assert.InDelta(t, -0.74, c.Outcome.Distance, 1e-9)
	assert.Greater(t, c.Penalty, 0.0)
	assert.Equal(t, "actual=130 target=500", c.Outcome.Detail)

	// 边界：正好 10%
	req.TargetWordCount = 100
	c = WordCount{Tolerance: 0.10}.Evaluate(strings.Repeat("word ", 110), req)[0]
	assert.True(t, c.Outcome.Passed)
	assert.Zero(t, c.Penalty)
}

func TestKeywords(t *testing.T) {
	req := solarRequest()
	req.RequiredKeywords = append(req.RequiredKeywords, entity.KeywordRequirement{Keyword: "Net Metering", MinOccurrences: 1})

	checks := Keywords{}.Evaluate("SOLAR PANELS are here. net metering helps.", req)
	require.Len(t, checks, 2)

	assert.Equal(t, "keyword:solar panels", checks[0].Name)
	assert.False(t, checks[0].Outcome.Passed)
	assert.Equal(t, float64(2), checks[0].Outcome.Distance)
	assert.InDelta(t, 2.0/3.0, checks[0].Penalty, 1e-9)

	assert.Equal(t, "keyword:net metering", checks[1].Name)
	assert.True(t, checks[1].Outcome.Passed)
	assert.Equal(t, float64(0), checks[1].Outcome.Distance)
}

func TestSections(t *testing.T) {
	req := solarRequest()

	t.Run("prefix and numbering tolerated", func(t *testing.T) {
		text := "## 1. Intro to the topic\n\nBody text here.\n\n## Benefits for homeowners\n\nMore body.\n\n**Conclusion:**\n\nDone now."
		c := Sections{}.Evaluate(text, req)[0]
		assert.True(t, c.Outcome.Passed, c.Outcome.Detail)
	})

	t.Run("out of order counts as missing", func(t *testing.T) {
		text := article([]string{"Benefits", "Intro", "Conclusion"}, 0, 3)
		c := Sections{}.Evaluate(text, req)[0]
		assert.False(t, c.Outcome.Passed)
		assert.Equal(t, float64(1), c.Outcome.Distance)
		assert.Contains(t, c.Outcome.Detail, "Benefits")
	})

	t.Run("not required", func(t *testing.T) {
		req.RequiredSections = nil
		assert.Empty(t, Sections{}.Evaluate("## Intro", req))
	})
}

func TestReadingLevel(t *testing.T) {
	simple := "The cat sat. The dog ran."
	req := solarRequest()

	c := ReadingLevel{}.Evaluate(simple, req)[0]
	assert.False(t, c.Outcome.Passed)
	assert.Equal(t, float64(-2), c.Outcome.Distance)

	req.GradeLevel = entity.GradeMiddleSchool
	c = ReadingLevel{}.Evaluate(simple, req)[0]
	assert.True(t, c.Outcome.Passed)

	assert.Equal(t, entity.GradeElementary, GradeBucket(3))
	assert.Equal(t, entity.GradeMiddleSchool, GradeBucket(6))
	assert.Equal(t, entity.GradeHighSchool, GradeBucket(12.9))
	assert.Equal(t, entity.GradeCollege, GradeBucket(13))
}

func TestCitations(t *testing.T) {
	req := solarRequest()
	assert.Empty(t, Citations{}.Evaluate("no citations", req))

	req.IncludeCitations = true
	req.RequiredSources = []entity.Source{
		{Label: "DOE", URL: "https://energy.gov/solar"},
		{Label: "NREL"},
	}

	c := Citations{}.Evaluate("Costs fell sharply [1]. See https://energy.gov/solar.", req)[0]
	assert.False(t, c.Outcome.Passed)
	assert.Equal(t, float64(1), c.Outcome.Distance)
	assert.Contains(t, c.Outcome.Detail, "NREL")

	c = Citations{}.Evaluate("Costs fell [1] per DOE and nrel data.", req)[0]
	assert.True(t, c.Outcome.Passed)

	c = Citations{}.Evaluate("Costs fell per DOE and NREL data.", req)[0]
	assert.False(t, c.Outcome.Passed, "a marker is required")
}

func TestSuite_HardAndSoft(t *testing.T) {
	req := solarRequest()
	ev := NewSuite(DefaultConfig()).Evaluate("The cat sat. The dog ran.", req)

	assert.True(t, ev.Report[entity.ConstraintWordCount].Hard)
	assert.True(t, ev.Report["keyword:solar panels"].Hard)
	assert.True(t, ev.Report[entity.ConstraintSections].Hard)
	assert.False(t, ev.Report[entity.ConstraintReadingLevel].Hard)
	assert.False(t, ev.Report.HardPassed())
}

func TestSuite_IsPure(t *testing.T) {
	req := solarRequest()
	text := article([]string{"Intro", "Benefits", "Conclusion"}, 2, 20)
	s := NewSuite(DefaultConfig())
	assert.Equal(t, s.Evaluate(text, req), s.Evaluate(text, req))
}

type bannedWords struct{}

func (bannedWords) Kind() string { return "banned" }

func (bannedWords) Evaluate(text string, _ entity.GenerationRequest) []Check {
	hit := strings.Contains(strings.ToLower(text), "delve")
	c := Check{Name: "banned", Outcome: entity.ConstraintOutcome{Passed: !hit}}
	if hit {
		c.Outcome.Distance = 1
		c.Penalty = 1
	}
	return []Check{c}
}

func TestSuite_CustomEvaluator(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights["banned"] = 5
	cfg.SoftConstraints = append(cfg.SoftConstraints, "banned")
	s := NewSuiteWith(cfg, bannedWords{})

	ev := s.Evaluate("Let us delve in.", solarRequest())
	require.Len(t, ev.Report, 1)
	assert.False(t, ev.Report["banned"].Passed)
	assert.False(t, ev.Report["banned"].Hard)
	assert.Equal(t, 5.0, ev.Penalty)
	assert.False(t, s.IsHard("banned"))
}

func TestBetter(t *testing.T) {
	pass := entity.ConstraintOutcome{Passed: true}
	fail := entity.ConstraintOutcome{Passed: false}

	low := Evaluation{Penalty: 1}
	high := Evaluation{Penalty: 2}
	assert.True(t, Better(low, high))
	assert.False(t, Better(high, low))

	// 惩罚相同时按字数、关键词通过数、章节、阅读等级依次比较
	a := Evaluation{Penalty: 1, Report: entity.ConstraintReport{
		entity.ConstraintWordCount: pass, "keyword:a": fail, "keyword:b": fail,
	}}
	b := Evaluation{Penalty: 1, Report: entity.ConstraintReport{
		entity.ConstraintWordCount: fail, "keyword:a": pass, "keyword:b": pass,
	}}
	assert.True(t, Better(a, b))
	assert.False(t, Better(b, a))

	c := Evaluation{Penalty: 1, Report: entity.ConstraintReport{
		entity.ConstraintWordCount: pass, "keyword:a": pass, "keyword:b": fail,
	}}
	assert.True(t, Better(c, a))

	d := Evaluation{Penalty: 1, Report: entity.ConstraintReport{
		entity.ConstraintWordCount: pass, "keyword:a": pass, "keyword:b": fail, entity.ConstraintSections: fail,
	}}
	assert.True(t, Better(c, d))

	assert.False(t, Better(c, c), "identical drafts keep the earlier one")
}
