package evaluator

import (
	"fmt"
	"strings"

	"z-writer-ai-api/internal/application/generation/textutil"
	"z-writer-ai-api/internal/domain/entity"
)

func detailf(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}

// Sections 章节约束：要求的标题按给定顺序作为子序列出现，不要求相邻
type Sections struct{}

func (Sections) Kind() string { return entity.ConstraintSections }

func (Sections) Evaluate(text string, req entity.GenerationRequest) []Check {
	if len(req.RequiredSections) == 0 {
		return nil
	}
	found := textutil.ExtractHeadings(text)
	headings := make([]string, 0, len(found))
	for _, h := range found {
		headings = append(headings, stripOrdinal(textutil.NormalizeHeading(h.Text)))
	}

	var missing []string
	pos := 0
	for _, want := range req.RequiredSections {
		norm := stripOrdinal(textutil.NormalizeHeading(want))
		matched := false
		for j := pos; j < len(headings); j++ {
			if headingMatches(headings[j], norm) {
				pos = j + 1
				matched = true
				break
			}
		}
		if !matched {
			missing = append(missing, want)
		}
	}

	c := Check{
		Name: entity.ConstraintSections,
		Outcome: entity.ConstraintOutcome{
			Passed:   len(missing) == 0,
			Distance: float64(len(missing)),
		},
	}
	if len(missing) > 0 {
		c.Outcome.Detail = "missing or out of order: " + strings.Join(missing, ", ")
		c.Penalty = float64(len(missing)) / float64(len(req.RequiredSections))
	}
	return []Check{c}
}

// headingMatches 完全相同，或草稿标题以要求的标题为前缀（"Benefits of Solar" 匹配 "Benefits"）
func headingMatches(heading, want string) bool {
	if want == "" {
		return false
	}
	return heading == want || strings.HasPrefix(heading, want+" ")
}

// stripOrdinal 去掉 "1 intro"、"step 2 benefits" 之类的序号前缀
func stripOrdinal(s string) string {
	fields := strings.Fields(s)
	for len(fields) > 1 {
		f := fields[0]
		if f == "step" || f == "part" || f == "section" || isNumeral(f) {
			fields = fields[1:]
			continue
		}
		break
	}
	return strings.Join(fields, " ")
}

func isNumeral(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Citations 引用约束，仅在需求开启引用时生效：至少一个 [n] 标记，且每个指定来源的 URL 或名称出现在文中
type Citations struct{}

func (Citations) Kind() string { return entity.ConstraintCitations }

func (Citations) Evaluate(text string, req entity.GenerationRequest) []Check {
	if !req.IncludeCitations {
		return nil
	}
	markers := textutil.CountCitationMarkers(text)
	lower := strings.ToLower(text)

	var missing []string
	for _, s := range req.RequiredSources {
		if (s.URL != "" && strings.Contains(lower, strings.ToLower(s.URL))) ||
			(s.Label != "" && strings.Contains(lower, strings.ToLower(s.Label))) {
			continue
		}
		missing = append(missing, s.Label)
	}

	distance := len(missing)
	if markers == 0 {
		distance++
	}
	c := Check{
		Name: entity.ConstraintCitations,
		Outcome: entity.ConstraintOutcome{
			Passed:   distance == 0,
			Distance: float64(distance),
			Detail:   detailf("markers=%d missing_sources=%s", markers, strings.Join(missing, "|")),
		},
	}
	if distance > 0 {
		c.Penalty = float64(distance) / float64(1+len(req.RequiredSources))
	}
	return []Check{c}
}
