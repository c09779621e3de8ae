package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-writer-ai-api/internal/application/generation/brief"
	"z-writer-ai-api/internal/application/generation/compiler"
	"z-writer-ai-api/internal/application/generation/evaluator"
	"z-writer-ai-api/internal/application/generation/humanize"
	"z-writer-ai-api/internal/application/generation/refine"
	"z-writer-ai-api/internal/application/generation/textutil"
	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/domain/service"
	wfmodel "z-writer-ai-api/internal/workflow/model"
	"z-writer-ai-api/internal/workflow/port"
	apperrors "z-writer-ai-api/pkg/errors"
)

const (
	keywordSentence = "Solar panels turn sunlight into electricity for the household."
	fillerSentence  = "Homeowners often compare installation costs with long term energy savings, and their bills drop."
)

// article 三节文章：3 个标题词 + keywordSentences*9 + fillers*14 个词
func article(keywordSentences, fillers int) string {
	headings := []string{"Intro", "Benefits", "Conclusion"}
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

// passing 3 + 27 + 33*14 = 492 词
func passing() string { return article(3, 33) }

type fakeEngine struct {
	mu    sync.Mutex
	calls []wfmodel.PromptPayload
	reply func(n int) (wfmodel.Completion, error)
}

func (e *fakeEngine) Generate(_ context.Context, payload wfmodel.PromptPayload, _ wfmodel.SamplingConfig) (wfmodel.Completion, error) {
	e.mu.Lock()
	e.calls = append(e.calls, payload)
	n := len(e.calls)
	e.mu.Unlock()
	return e.reply(n)
}

func always(text string) func(int) (wfmodel.Completion, error) {
	return func(int) (wfmodel.Completion, error) {
		return wfmodel.Completion{
			Text:     text,
			Provider: "fake",
			Model:    "fake-1",
			Usage:    entity.TokenUsage{PromptTokens: 100, CompletionTokens: 700, TotalTokens: 800},
		}, nil
	}
}

func newPipeline(engine port.Engine, h Humanizer) *Pipeline {
	comp := compiler.NewCompiler(compiler.Config{WordCountTolerance: 0.1}, nil)
	rcfg := refine.DefaultConfig()
	rcfg.BackoffInitial = time.Millisecond
	rcfg.BackoffMax = time.Millisecond
	ctrl := refine.NewController(rcfg, engine, comp, evaluator.NewSuite(evaluator.DefaultConfig()), nil)
	if h == nil {
		h = humanize.NewHumanizer(humanize.DefaultConfig())
	}
	return NewPipeline(Config{InternalRetries: 1, WordCountSlack: 0.02}, comp, ctrl, h)
}

func normalize(t *testing.T, raw brief.RawBrief) entity.GenerationRequest {
	t.Helper()
	req, err := brief.NewNormalizer(brief.DefaultConfig()).Normalize(raw)
	require.NoError(t, err)
	return req
}

func solarBrief() brief.RawBrief {
	return brief.RawBrief{
		RequestID:        "req-solar",
		UserID:           "user-1",
		ContentType:      "blog post",
		Prompt:           "Why homeowners install solar panels",
		TargetWordCount:  500,
		RequiredKeywords: []brief.RawKeyword{{Keyword: "solar panels", MinOccurrences: 3}},
		RequiredSections: []string{"Intro", "Benefits", "Conclusion"},
	}
}

func sectionOrder(t *testing.T, text string) []string {
	t.Helper()
	var out []string
	for _, h := range textutil.ExtractHeadings(text) {
		out = append(out, h.Text)
	}
	return out
}

func TestGenerate_SolarScenario(t *testing.T) {
	engine := &fakeEngine{reply: always(passing())}
	p := newPipeline(engine, nil)

	res, err := p.Generate(context.Background(), normalize(t, solarBrief()))
	require.NoError(t, err)

	assert.False(t, res.Partial)
	assert.GreaterOrEqual(t, res.WordCount, 450)
	assert.LessOrEqual(t, res.WordCount, 550)
	assert.GreaterOrEqual(t, textutil.CountOccurrences(res.Text, "solar panels"), 3)
	assert.Equal(t, []string{"Intro", "Benefits", "Conclusion"}, sectionOrder(t, res.Text))
	assert.Equal(t, 1, res.IterationCount)
	assert.Equal(t, 800, res.TokenUsage.TotalTokens)
	assert.GreaterOrEqual(t, res.ProcessingTimeMs, int64(0))
	assert.False(t, res.Humanized)
	assert.Equal(t, "req-solar", res.RequestID)
	assert.True(t, res.Report.Passed())

	require.Len(t, engine.calls, 1)
	assert.Equal(t, service.WorkflowDraft, engine.calls[0].Workflow)
}

func TestGenerate_HumanizedKeepsKeywordsAndBand(t *testing.T) {
	raw := solarBrief()
	raw.AntiAIDetection = true
	raw.HumanizationRates = brief.RawRates{Typos: 4, GrammarMistakes: 4, MiscErrors: 4}
	req := normalize(t, raw)

	engine := &fakeEngine{reply: always(passing())}
	res, err := newPipeline(engine, nil).Generate(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, res.Humanized)
	assert.Positive(t, res.HumanizerEdits)
	assert.Equal(t, textutil.CountOccurrences(passing(), "solar panels"), textutil.CountOccurrences(res.Text, "solar panels"))
	dev := float64(res.WordCount-500) / 500
	assert.LessOrEqual(t, dev, 0.12)
	assert.GreaterOrEqual(t, dev, -0.12)
	assert.Equal(t, []string{"Intro", "Benefits", "Conclusion"}, sectionOrder(t, res.Text))
}

func TestGenerate_EngineRejected(t *testing.T) {
	engine := &fakeEngine{reply: func(int) (wfmodel.Completion, error) {
		return wfmodel.Completion{}, port.Rejected(errors.New("content policy violation"))
	}}
	res, err := newPipeline(engine, nil).Generate(context.Background(), normalize(t, solarBrief()))

	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, port.ErrEngineRejected)
	assert.Equal(t, 0, IterationsOf(err))
	assert.Len(t, engine.calls, 1, "rejections are not retried")
	assert.Equal(t, apperrors.CodeEngineRejected, ToAppError(err).Code)
}

func TestGenerate_PartialResult(t *testing.T) {
	engine := &fakeEngine{reply: always(article(0, 5))}
	res, err := newPipeline(engine, nil).Generate(context.Background(), normalize(t, solarBrief()))
	require.NoError(t, err)

	assert.True(t, res.Partial)
	assert.Equal(t, 5, res.IterationCount)
	assert.NotEmpty(t, res.Report.Failing())
	assert.Equal(t, 5*800, res.TokenUsage.TotalTokens)
}

// flakyHumanizer 前 failures 次调用失败（panic 或返回错误）
type flakyHumanizer struct {
	mu       sync.Mutex
	calls    int
	failures int
	panics   bool
}

func (h *flakyHumanizer) Humanize(text string, _ entity.GenerationRequest, _ int) (humanize.Outcome, error) {
	h.mu.Lock()
	h.calls++
	n := h.calls
	h.mu.Unlock()
	if n <= h.failures {
		if h.panics {
			panic("index out of range")
		}
		return humanize.Outcome{}, humanize.ErrKeywordIntegrity
	}
	return humanize.Outcome{Text: text, Edits: map[string]int{humanize.PassTypos: 1}}, nil
}

func humanizedBrief() brief.RawBrief {
	raw := solarBrief()
	raw.AntiAIDetection = true
	raw.HumanizationRates = brief.RawRates{Typos: 1}
	return raw
}

func TestGenerate_InternalFailureRetriesWholeGeneration(t *testing.T) {
	engine := &fakeEngine{reply: always(passing())}
	h := &flakyHumanizer{failures: 1, panics: true}
	res, err := newPipeline(engine, h).Generate(context.Background(), normalize(t, humanizedBrief()))
	require.NoError(t, err)

	assert.Equal(t, 2, h.calls)
	assert.Len(t, engine.calls, 2)
	assert.True(t, res.Humanized)
}

func TestGenerate_InternalFailureSurfacesAsUnavailable(t *testing.T) {
	engine := &fakeEngine{reply: always(passing())}
	h := &flakyHumanizer{failures: 100}
	_, err := newPipeline(engine, h).Generate(context.Background(), normalize(t, humanizedBrief()))
	require.Error(t, err)

	assert.ErrorIs(t, err, port.ErrEngineUnavailable)
	assert.Equal(t, 2, h.calls)
	appErr := ToAppError(err)
	assert.Equal(t, apperrors.CodeEngineUnavailable, appErr.Code)
	assert.NotContains(t, appErr.Message, "keyword")
}

func TestGenerate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine := &fakeEngine{reply: always(passing())}

	_, err := newPipeline(engine, nil).Generate(ctx, normalize(t, solarBrief()))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, engine.calls)
}

func TestRevise(t *testing.T) {
	engine := &fakeEngine{reply: always(passing())}
	p := newPipeline(engine, nil)

	raw := solarBrief()
	raw.RequestID = "req-solar-rev-1"
	res, err := p.Revise(context.Background(), normalize(t, raw), "old draft text", "Make the intro punchier.")
	require.NoError(t, err)
	assert.Equal(t, "req-solar-rev-1", res.RequestID)

	require.Len(t, engine.calls, 1)
	assert.Equal(t, service.WorkflowRevision, engine.calls[0].Workflow)
	assert.Contains(t, engine.calls[0].String(), "Make the intro punchier.")
	assert.Contains(t, engine.calls[0].String(), "old draft text")

	_, err = p.Revise(context.Background(), normalize(t, raw), "old", "  ")
	require.Error(t, err)
}

func TestAssemble(t *testing.T) {
	req := entity.GenerationRequest{RequestID: "r", UserID: "u", TargetWordCount: 10}
	report := entity.ConstraintReport{entity.ConstraintWordCount: {Passed: true}}
	out := refine.Outcome{
		Iterations: 2,
		Usage:      entity.TokenUsage{TotalTokens: 9},
		Evaluation: evaluator.Evaluation{Report: report, WordCount: 99},
		Provider:   "p",
		Model:      "m",
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))

	res := Assemble(req, out, "one two three", 3, 1500*time.Millisecond, now)
	assert.Equal(t, 3, res.WordCount, "word count is recounted")
	assert.Equal(t, int64(1500), res.ProcessingTimeMs)
	assert.Equal(t, 2, res.IterationCount)
	assert.True(t, res.Humanized)
	assert.Equal(t, time.UTC, res.CreatedAt.Location())

	report[entity.ConstraintWordCount] = entity.ConstraintOutcome{Passed: false}
	assert.True(t, res.Report[entity.ConstraintWordCount].Passed)
}

func TestToAppError(t *testing.T) {
	raw := solarBrief()
	raw.TargetWordCount = 100000
	_, err := brief.NewNormalizer(brief.DefaultConfig()).Normalize(raw)
	require.Error(t, err)

	appErr := ToAppError(err)
	assert.Equal(t, apperrors.CodeValidationFailed, appErr.Code)
	assert.Contains(t, appErr.Detail, "targetWordCount")

	assert.Nil(t, ToAppError(nil))
	assert.Equal(t, apperrors.CodeEngineUnavailable, ToAppError(port.Unavailable(errors.New("x"))).Code)
	assert.Equal(t, apperrors.CodeJobNotFound, ToAppError(apperrors.ErrJobNotFound).Code)
	assert.Equal(t, apperrors.CodeServiceUnavailable, ToAppError(context.Canceled).Code)
}
