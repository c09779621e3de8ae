package pipeline

import (
	"time"

	"z-writer-ai-api/internal/application/generation/refine"
	"z-writer-ai-api/internal/application/generation/textutil"
	"z-writer-ai-api/internal/domain/entity"
)

// Assemble 组装最终结果。字数在润色后重新统计；报告为副本
func Assemble(req entity.GenerationRequest, out refine.Outcome, text string, humanizerEdits int, elapsed time.Duration, now time.Time) entity.GenerationResult {
	return entity.GenerationResult{
		RequestID:        req.RequestID,
		UserID:           req.UserID,
		Text:             text,
		WordCount:        textutil.CountWords(text),
		TargetWordCount:  req.TargetWordCount,
		IterationCount:   out.Iterations,
		ProcessingTimeMs: elapsed.Milliseconds(),
		TokenUsage:       out.Usage,
		Partial:          out.Partial,
		Report:           out.Evaluation.Report.Clone(),
		Humanized:        humanizerEdits > 0,
		HumanizerEdits:   humanizerEdits,
		Provider:         out.Provider,
		Model:            out.Model,
		CreatedAt:        now.UTC(),
	}
}
