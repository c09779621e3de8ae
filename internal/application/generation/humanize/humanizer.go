// Package humanize 在最终草稿上按比率注入拼写、语法与风格瑕疵
package humanize

import (
	"errors"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/cespare/xxhash/v2"

	"z-writer-ai-api/internal/application/generation/textutil"
	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/pkg/metrics"
)

// ErrKeywordIntegrity 润色后关键词出现次数发生变化
var ErrKeywordIntegrity = errors.New("humanizer changed keyword occurrences")

// 处理阶段名
const (
	PassTypos   = "typos"
	PassGrammar = "grammar"
	PassMisc    = "misc"
)

// Config 润色配置
type Config struct {
	SeedSalt string
	// TypoNeighbors 小写字母到相邻键的映射，用于替换型拼写错误
	TypoNeighbors map[string]string
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		SeedSalt: "z-writer",
		TypoNeighbors: map[string]string{
			"a": "qwsz", "e": "wsdr", "i": "ujko", "o": "iklp", "u": "yhji",
			"n": "bhjm", "r": "edft", "s": "awedxz", "t": "rfgy", "l": "kop",
		},
	}
}

// Outcome 润色结果
type Outcome struct {
	Text string
	// Edits 各阶段实际生效的修改数
	Edits map[string]int
}

// Total 总修改数
func (o Outcome) Total() int {
	n := 0
	for _, v := range o.Edits {
		n += v
	}
	return n
}

// edit 对 [Start, End) 的替换；guard 为选点时用于去重与保护检查的区间
type edit struct {
	start, end int
	text       string
	guard      textutil.Span
}

type planner func(h *Humanizer, text string, words []textutil.Span, protected []textutil.Span, n int, rng *rand.Rand) []edit

type pass struct {
	name string
	rate func(entity.HumanizationRates) float64
	plan planner
}

var passes = []pass{
	{name: PassTypos, rate: func(r entity.HumanizationRates) float64 { return r.Typos }, plan: planTypos},
	{name: PassGrammar, rate: func(r entity.HumanizationRates) float64 { return r.GrammarMistakes }, plan: planGrammar},
	{name: PassMisc, rate: func(r entity.HumanizationRates) float64 { return r.MiscErrors }, plan: planMisc},
}

// Humanizer 无共享可变状态，随机源按请求创建
type Humanizer struct {
	cfg Config
}

// NewHumanizer 创建润色器
func NewHumanizer(cfg Config) *Humanizer {
	return &Humanizer{cfg: cfg}
}

// Seed 由请求 ID 派生的随机种子
func (h *Humanizer) Seed(requestID string) uint64 {
	return xxhash.Sum64String(requestID + "\x00" + h.cfg.SeedSalt)
}

func (h *Humanizer) rngFor(requestID string) *rand.Rand {
	seed := h.Seed(requestID)
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Humanize 依次执行拼写、语法、风格三个阶段。
// 标题行、URL、引用标记与关键词出现位置不会被修改；任一修改若改变关键词计数或使字数偏移超过 maxWordDelta 则放弃。
func (h *Humanizer) Humanize(text string, req entity.GenerationRequest, maxWordDelta int) (Outcome, error) {
	out := Outcome{Text: text, Edits: make(map[string]int, len(passes))}
	if !req.AntiAIDetection || !req.HumanizationRates.Any() {
		return out, nil
	}
	if maxWordDelta < 0 {
		maxWordDelta = 0
	}

	rng := h.rngFor(req.RequestID)
	terms := req.KeywordTerms()
	baseline := keywordCounts(text, terms)
	baseWords := textutil.CountWords(text)

	cur := text
	for _, p := range passes {
		rate := p.rate(req.HumanizationRates)
		if rate <= 0 {
			continue
		}
		words := textutil.WordSpans(cur)
		n := int(math.Round(float64(len(words)) * rate / 100))
		if n == 0 {
			continue
		}

		edits := p.plan(h, cur, words, protectedSpans(cur, terms), n, rng)
		// 从后往前应用，已应用的修改不影响前面的偏移
		sort.Slice(edits, func(i, j int) bool { return edits[i].start > edits[j].start })
		for _, e := range edits {
			next := cur[:e.start] + e.text + cur[e.end:]
			if abs(textutil.CountWords(next)-baseWords) > maxWordDelta {
				continue
			}
			if !sameCounts(keywordCounts(next, terms), baseline) {
				continue
			}
			cur = next
			out.Edits[p.name]++
		}
		metrics.HumanizerEdits.WithLabelValues(p.name).Add(float64(out.Edits[p.name]))
	}

	if !sameCounts(keywordCounts(cur, terms), baseline) {
		return Outcome{}, ErrKeywordIntegrity
	}
	out.Text = cur
	return out, nil
}

// protectedSpans 不允许修改的区间，已合并排序
func protectedSpans(text string, terms []string) []textutil.Span {
	var spans []textutil.Span
	for _, t := range terms {
		spans = append(spans, textutil.FindOccurrences(text, t)...)
	}
	spans = append(spans, textutil.HeadingLineSpans(text)...)
	spans = append(spans, textutil.URLSpans(text)...)
	spans = append(spans, textutil.CitationSpans(text)...)
	return textutil.MergeSpans(spans)
}

// choose 随机选取至多 n 个 guard 互不相交且不触及保护区的候选
func choose(cands []edit, protected []textutil.Span, n int, rng *rand.Rand) []edit {
	var picked []edit
	var taken []textutil.Span
	for _, i := range rng.Perm(len(cands)) {
		if len(picked) >= n {
			break
		}
		c := cands[i]
		if textutil.AnyOverlap(protected, c.guard) || overlapsAny(taken, c.guard) {
			continue
		}
		picked = append(picked, c)
		taken = append(taken, c.guard)
	}
	return picked
}

func overlapsAny(spans []textutil.Span, s textutil.Span) bool {
	for _, t := range spans {
		if t.Overlaps(s) {
			return true
		}
	}
	return false
}

func keywordCounts(text string, terms []string) []int {
	counts := make([]int, len(terms))
	for i, t := range terms {
		counts[i] = textutil.CountOccurrences(text, t)
	}
	return counts
}

func sameCounts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
