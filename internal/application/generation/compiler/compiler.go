// Package compiler 将规范化需求确定性地渲染为引擎指令
package compiler

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"

	"z-writer-ai-api/internal/application/generation/textutil"
	"z-writer-ai-api/internal/domain/entity"
	llmctx "z-writer-ai-api/internal/domain/service"
	wfmodel "z-writer-ai-api/internal/workflow/model"
	workflowprompt "z-writer-ai-api/internal/workflow/prompt"
)

// Config 编译参数
type Config struct {
	// WordCountTolerance 字数容差（相对值），需与评估器一致
	WordCountTolerance float64
}

// Compiler 提示词编译器。相同输入必然得到逐字节相同的载荷
type Compiler struct {
	cfg      Config
	registry *workflowprompt.Registry
}

func NewCompiler(cfg Config, registry *workflowprompt.Registry) *Compiler {
	if cfg.WordCountTolerance <= 0 {
		cfg.WordCountTolerance = 0.10
	}
	if registry == nil {
		registry = workflowprompt.NewRegistry()
	}
	return &Compiler{cfg: cfg, registry: registry}
}

// Compile 生成首轮写作指令
func (c *Compiler) Compile(ctx context.Context, req entity.GenerationRequest) (wfmodel.PromptPayload, error) {
	vars := c.baseVars(req)
	return c.render(ctx, workflowprompt.PromptGenerationV1, llmctx.WorkflowDraft, vars)
}

// CompileRepair 针对未通过的约束生成定向修改指令，上一版草稿作为上下文
func (c *Compiler) CompileRepair(ctx context.Context, req entity.GenerationRequest, draft string, report entity.ConstraintReport) (wfmodel.PromptPayload, error) {
	failing := report.Failing()
	if len(failing) == 0 {
		return wfmodel.PromptPayload{}, fmt.Errorf("repair requested for a draft with no failing constraints")
	}
	vars := c.baseVars(req)
	vars["failures"] = c.failureLines(req, draft, report, failing)
	vars["draft"] = draft
	return c.render(ctx, workflowprompt.PromptRepairV1, llmctx.WorkflowRepair, vars)
}

// CompileRevision 基于已交付文本与审阅意见生成修订指令
func (c *Compiler) CompileRevision(ctx context.Context, req entity.GenerationRequest, previous, comment string) (wfmodel.PromptPayload, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return wfmodel.PromptPayload{}, fmt.Errorf("revision comment is required")
	}
	vars := c.baseVars(req)
	vars["previous"] = strings.TrimSpace(previous)
	vars["comment"] = comment
	return c.render(ctx, workflowprompt.PromptRevisionV1, llmctx.WorkflowRevision, vars)
}

func (c *Compiler) render(ctx context.Context, id workflowprompt.PromptID, workflow string, vars map[string]any) (wfmodel.PromptPayload, error) {
	tpl, err := c.registry.ChatTemplate(id)
	if err != nil {
		return wfmodel.PromptPayload{}, err
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return wfmodel.PromptPayload{}, fmt.Errorf("render prompt %s: %w", id, err)
	}

	payload := wfmodel.PromptPayload{Workflow: workflow, Messages: make([]wfmodel.Message, 0, len(msgs))}
	for _, m := range msgs {
		payload.Messages = append(payload.Messages, wfmodel.Message{Role: roleOf(m.Role), Content: m.Content})
	}
	return payload, nil
}

func roleOf(r schema.RoleType) wfmodel.Role {
	switch r {
	case schema.System:
		return wfmodel.RoleSystem
	case schema.Assistant:
		return wfmodel.RoleAssistant
	default:
		return wfmodel.RoleUser
	}
}

func (c *Compiler) baseVars(req entity.GenerationRequest) map[string]any {
	archetype := ""
	if req.BrandArchetype != "" {
		archetype = fmt.Sprintf(" Brand voice: the %s archetype.", humanize(req.BrandArchetype))
	}
	return map[string]any{
		"content_type":     humanize(req.ContentType),
		"language_variant": languageDescriptor(req.LanguageVariant),
		"tone":             humanize(req.Tone),
		"writing_style":    humanize(req.WritingStyle),
		"archetype_line":   archetype,
		"grade_descriptor": gradeDescriptor(req.GradeLevel),
		"prompt":           req.Prompt,
		"requirements":     c.requirementLines(req),
	}
}

// WordRange 容差范围内允许的字数区间
func (c *Compiler) WordRange(target int) (lo, hi int) {
	lo = int(math.Ceil(float64(target) * (1 - c.cfg.WordCountTolerance)))
	hi = int(math.Floor(float64(target) * (1 + c.cfg.WordCountTolerance)))
	return lo, hi
}

func (c *Compiler) requirementLines(req entity.GenerationRequest) string {
	var lines []string
	lo, hi := c.WordRange(req.TargetWordCount)
	lines = append(lines, fmt.Sprintf("Length: aim for %d words in total, headings included; anything outside %d-%d words is rejected.", req.TargetWordCount, lo, hi))

	for _, k := range req.RequiredKeywords {
		lines = append(lines, fmt.Sprintf("Keyword: use the exact phrase %q at least %d %s (any capitalization).", k.Keyword, k.MinOccurrences, plural(k.MinOccurrences, "time", "times")))
	}

	if len(req.RequiredSections) > 0 {
		heads := make([]string, 0, len(req.RequiredSections))
		for _, s := range req.RequiredSections {
			heads = append(heads, "## "+s)
		}
		lines = append(lines, fmt.Sprintf("Sections: include these headings in exactly this order, each on its own line: %s.", strings.Join(heads, " | ")))
	}

	if req.IncludeCitations {
		lines = append(lines, "Citations: support claims with numbered inline markers such as [1] and finish with a References list.")
		for i, s := range orderedSources(req.RequiredSources) {
			lines = append(lines, fmt.Sprintf("Source [%d] must be cited and listed: %s", i+1, sourceText(s)))
		}
	}

	lines = append(lines, fmt.Sprintf("Reading level: suitable for %s.", gradeDescriptor(req.GradeLevel)))
	lines = append(lines, fmt.Sprintf("Voice: keep a %s tone and a %s style throughout.", humanize(req.Tone), humanize(req.WritingStyle)))
	return numbered(lines)
}

func (c *Compiler) failureLines(req entity.GenerationRequest, draft string, report entity.ConstraintReport, failing []string) string {
	lines := make([]string, 0, len(failing))
	for _, name := range failing {
		outcome := report[name]
		switch name {
		case entity.ConstraintWordCount:
			lo, hi := c.WordRange(req.TargetWordCount)
			actual := textutil.CountWords(draft)
			verb, delta := "add", req.TargetWordCount-actual
			if delta < 0 {
				verb, delta = "cut", -delta
			}
			lines = append(lines, fmt.Sprintf("Length: the draft has %d words but must have %d-%d; %s about %d words.", actual, lo, hi, verb, delta))
		case entity.ConstraintSections:
			heads := make([]string, 0, len(req.RequiredSections))
			for _, s := range req.RequiredSections {
				heads = append(heads, "## "+s)
			}
			line := fmt.Sprintf("Sections: the headings must appear in this order as their own lines: %s.", strings.Join(heads, " | "))
			if outcome.Detail != "" {
				line += " Problem: " + outcome.Detail + "."
			}
			lines = append(lines, line)
		case entity.ConstraintReadingLevel:
			direction := "use more precise vocabulary and longer, more varied sentences"
			if outcome.Distance > 0 {
				direction = "use shorter sentences and simpler words"
			}
			lines = append(lines, fmt.Sprintf("Reading level: rewrite for %s; %s.", gradeDescriptor(req.GradeLevel), direction))
		case entity.ConstraintCitations:
			line := "Citations: add numbered inline markers such as [1] and a References list"
			if len(req.RequiredSources) > 0 {
				parts := make([]string, 0, len(req.RequiredSources))
				for _, s := range orderedSources(req.RequiredSources) {
					parts = append(parts, sourceText(s))
				}
				line += " that includes " + strings.Join(parts, "; ")
			}
			lines = append(lines, line+".")
		default:
			if kw, ok := entity.KeywordOf(name); ok {
				kr := keywordRequirement(req, kw)
				actual := textutil.CountOccurrences(draft, kr.Keyword)
				lines = append(lines, fmt.Sprintf("Keyword: the phrase %q appears %d %s; use it at least %d times (%d more).",
					kr.Keyword, actual, plural(actual, "time", "times"), kr.MinOccurrences, kr.MinOccurrences-actual))
				continue
			}
			lines = append(lines, fmt.Sprintf("Constraint %s is not met.", name))
		}
	}
	return numbered(lines)
}

func keywordRequirement(req entity.GenerationRequest, lowered string) entity.KeywordRequirement {
	for _, k := range req.RequiredKeywords {
		if strings.ToLower(k.Keyword) == lowered {
			return k
		}
	}
	return entity.KeywordRequirement{Keyword: lowered, MinOccurrences: 1}
}

// orderedSources 按优先级（数值小者优先）稳定排序
func orderedSources(in []entity.Source) []entity.Source {
	out := append([]entity.Source(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

func sourceText(s entity.Source) string {
	switch {
	case s.URL == "":
		return s.Label
	case s.Label == "":
		return s.URL
	default:
		return fmt.Sprintf("%s (%s)", s.Label, s.URL)
	}
}

func numbered(lines []string) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, l)
	}
	return b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func humanize(tag string) string {
	return strings.ReplaceAll(tag, "_", " ")
}

func languageDescriptor(v entity.LanguageVariant) string {
	if v == entity.LanguageUK {
		return "British English with UK spelling"
	}
	return "American English with US spelling"
}

func gradeDescriptor(g entity.GradeLevel) string {
	switch g {
	case entity.GradeElementary:
		return "elementary school readers (short sentences, everyday words)"
	case entity.GradeMiddleSchool:
		return "middle school readers (clear sentences, common vocabulary)"
	case entity.GradeCollege:
		return "college-educated readers (complex sentences and precise terminology are fine)"
	default:
		return "high school readers (varied sentences, general-audience vocabulary)"
	}
}
