package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-writer-ai-api/internal/domain/entity"
	wfmodel "z-writer-ai-api/internal/workflow/model"
)

func solarRequest() entity.GenerationRequest {
	return entity.GenerationRequest{
		RequestID:        "req-1",
		ContentType:      "blog_post",
		Prompt:           "Explain why homeowners install solar panels.",
		Tone:             "friendly",
		WritingStyle:     "informative",
		BrandArchetype:   "sage",
		GradeLevel:       entity.GradeHighSchool,
		TargetWordCount:  500,
		RequiredKeywords: []entity.KeywordRequirement{{Keyword: "solar panels", MinOccurrences: 3}},
		RequiredSections: []string{"Intro", "Benefits", "Conclusion"},
		IncludeCitations: true,
		RequiredSources: []entity.Source{
			{Label: "NREL", URL: "https://nrel.gov", Priority: 2},
			{Label: "DOE", URL: "https://energy.gov", Priority: 1},
		},
		LanguageVariant: entity.LanguageUK,
	}
}

func TestCompile_Deterministic(t *testing.T) {
	c := NewCompiler(Config{WordCountTolerance: 0.1}, nil)
	req := solarRequest()

	a, err := c.Compile(context.Background(), req)
	require.NoError(t, err)
	b, err := NewCompiler(Config{WordCountTolerance: 0.1}, nil).Compile(context.Background(), req.Clone())
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, a.String(), b.String())
}

func TestCompile_RendersEveryConstraint(t *testing.T) {
	p, err := NewCompiler(Config{WordCountTolerance: 0.1}, nil).Compile(context.Background(), solarRequest())
	require.NoError(t, err)

	assert.Equal(t, "draft", p.Workflow)
	require.Len(t, p.Messages, 2)
	assert.Equal(t, wfmodel.RoleSystem, p.Messages[0].Role)
	assert.Contains(t, p.Messages[0].Content, "British English")
	assert.Contains(t, p.Messages[0].Content, "the sage archetype")

	user := p.Messages[1].Content
	assert.Contains(t, user, "aim for 500 words")
	assert.Contains(t, user, "450-550 words")
	assert.Contains(t, user, `"solar panels" at least 3 times`)
	assert.Contains(t, user, "## Intro | ## Benefits | ## Conclusion")
	assert.Contains(t, user, "Source [1] must be cited and listed: DOE (https://energy.gov)")
	assert.Contains(t, user, "Source [2] must be cited and listed: NREL (https://nrel.gov)")
	assert.Contains(t, user, "high school readers")
}

func TestCompile_DoesNotMutateRequest(t *testing.T) {
	req := solarRequest()
	before := req.Clone()
	_, err := NewCompiler(Config{}, nil).Compile(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, before, req)
}

func TestCompileRepair_ListsOnlyFailing(t *testing.T) {
	c := NewCompiler(Config{WordCountTolerance: 0.1}, nil)
	req := solarRequest()
	draft := "## Intro\nSolar panels are useful.\n\n## Benefits\nThey save money.\n\n## Conclusion\nDone."
	report := entity.ConstraintReport{
		entity.ConstraintWordCount:               {Passed: true},
		entity.KeywordConstraint("solar panels"): {Passed: false, Distance: 2},
		entity.ConstraintSections:                {Passed: true},
		entity.ConstraintCitations:               {Passed: false, Distance: 1},
	}

	p1, err := c.CompileRepair(context.Background(), req, draft, report)
	require.NoError(t, err)
	p2, err := c.CompileRepair(context.Background(), req, draft, report.Clone())
	require.NoError(t, err)
	assert.Equal(t, p1, p2)

	assert.Equal(t, "repair", p1.Workflow)
	user := p1.Messages[1].Content
	assert.Contains(t, user, draft)
	assert.Contains(t, user, `"solar panels" appears 1 time; use it at least 3 times (2 more)`)
	assert.Contains(t, user, "Citations: add numbered inline markers")
	assert.NotContains(t, user, "Length: the draft has")
}

func TestCompileRepair_WordCountDirection(t *testing.T) {
	c := NewCompiler(Config{WordCountTolerance: 0.1}, nil)
	req := solarRequest()
	report := entity.ConstraintReport{entity.ConstraintWordCount: {Passed: false, Distance: -0.9}}

	p, err := c.CompileRepair(context.Background(), req, "only a few words here", report)
	require.NoError(t, err)
	assert.Contains(t, p.Messages[1].Content, "the draft has 5 words but must have 450-550; add about 495 words")

	_, err = c.CompileRepair(context.Background(), req, "x", entity.ConstraintReport{entity.ConstraintWordCount: {Passed: true}})
	assert.Error(t, err)
}

func TestCompileRevision(t *testing.T) {
	c := NewCompiler(Config{}, nil)
	p, err := c.CompileRevision(context.Background(), solarRequest(), "old text", "  make it punchier ")
	require.NoError(t, err)
	assert.Equal(t, "revision", p.Workflow)
	assert.Contains(t, p.Messages[1].Content, "old text")
	assert.Contains(t, p.Messages[1].Content, "make it punchier")

	_, err = c.CompileRevision(context.Background(), solarRequest(), "old text", " ")
	assert.Error(t, err)
}
