// Package brief 校验并规范化用户提交的写作需求
package brief

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"z-writer-ai-api/internal/domain/entity"
)

const (
	// MaxHumanizationRate 拟人化比率上限（百分比）
	MaxHumanizationRate = 5.0
	// MaxRequestIDLength 请求 ID 最大长度，与持久化列宽留出修订后缀的余量
	MaxRequestIDLength = 112
)

// ValidationError 需求字段校验失败
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid brief field %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// RawKeyword 原始关键词要求
type RawKeyword struct {
	Keyword        string `json:"keyword"`
	MinOccurrences int    `json:"minOccurrences"`
}

// RawSource 原始引用来源
type RawSource struct {
	Label    string `json:"label"`
	URL      string `json:"url"`
	Priority int    `json:"priority"`
}

// RawRates 原始拟人化比率
type RawRates struct {
	Typos           float64 `json:"typos"`
	GrammarMistakes float64 `json:"grammarMistakes"`
	MiscErrors      float64 `json:"miscErrors"`
}

// RawBrief 调用方提交的原始需求，字段均未校验
type RawBrief struct {
	RequestID string `json:"requestId"`
	UserID    string `json:"userId"`

	ContentType    string `json:"contentType"`
	Prompt         string `json:"prompt"`
	Tone           string `json:"tone"`
	WritingStyle   string `json:"writingStyle"`
	BrandArchetype string `json:"brandArchetype"`
	GradeLevel     string `json:"gradeLevel"`

	TargetWordCount int `json:"targetWordCount"`
	// KeywordFrequency 调用方开启了关键词频次要求，此时至少需要一个关键词
	KeywordFrequency bool         `json:"keywordFrequency"`
	RequiredKeywords []RawKeyword `json:"requiredKeywords"`
	RequiredSections []string     `json:"requiredSections"`

	IncludeCitations bool        `json:"includeCitations"`
	RequiredSources  []RawSource `json:"requiredSources"`

	AntiAIDetection   bool     `json:"antiAIDetection"`
	HumanizationRates RawRates `json:"humanizationRates"`

	LanguageVariant string `json:"languageVariant"`
	RevisionRounds  int    `json:"revisionRounds"`
}

// Config 规范化规则
type Config struct {
	MinWordCount      int
	MaxWordCount      int
	DefaultTone       string
	DefaultStyle      string
	DefaultGradeLevel entity.GradeLevel
	MaxRevisionRounds int
}

// DefaultConfig 默认规则：字数 50-10000，professional / informative / high_school
func DefaultConfig() Config {
	return Config{
		MinWordCount:      50,
		MaxWordCount:      10000,
		DefaultTone:       "professional",
		DefaultStyle:      "informative",
		DefaultGradeLevel: entity.GradeHighSchool,
		MaxRevisionRounds: 10,
	}
}

// Normalizer 需求规范化器，无副作用
type Normalizer struct {
	cfg Config
}

func NewNormalizer(cfg Config) *Normalizer {
	def := DefaultConfig()
	if cfg.MinWordCount <= 0 {
		cfg.MinWordCount = def.MinWordCount
	}
	if cfg.MaxWordCount < cfg.MinWordCount {
		cfg.MaxWordCount = def.MaxWordCount
	}
	if t := canonicalTag(cfg.DefaultTone); tones[t] {
		cfg.DefaultTone = t
	} else {
		cfg.DefaultTone = def.DefaultTone
	}
	if s := canonicalTag(cfg.DefaultStyle); styles[s] {
		cfg.DefaultStyle = s
	} else {
		cfg.DefaultStyle = def.DefaultStyle
	}
	if !cfg.DefaultGradeLevel.Valid() {
		cfg.DefaultGradeLevel = def.DefaultGradeLevel
	}
	if cfg.MaxRevisionRounds <= 0 {
		cfg.MaxRevisionRounds = def.MaxRevisionRounds
	}
	return &Normalizer{cfg: cfg}
}

// Normalize 校验原始需求并生成不可变的 GenerationRequest
func (n *Normalizer) Normalize(raw RawBrief) (entity.GenerationRequest, error) {
	var req entity.GenerationRequest

	req.RequestID = strings.TrimSpace(raw.RequestID)
	if req.RequestID == "" {
		return req, invalid("requestId", "is required")
	}
	if len(req.RequestID) > MaxRequestIDLength {
		return req, invalid("requestId", "must be at most %d characters", MaxRequestIDLength)
	}
	req.UserID = strings.TrimSpace(raw.UserID)

	req.ContentType = canonicalTag(raw.ContentType)
	if req.ContentType == "" {
		return req, invalid("contentType", "is required")
	}
	req.Prompt = strings.TrimSpace(raw.Prompt)
	if req.Prompt == "" {
		return req, invalid("prompt", "is required")
	}

	if raw.TargetWordCount < n.cfg.MinWordCount || raw.TargetWordCount > n.cfg.MaxWordCount {
		return req, invalid("targetWordCount", "must be between %d and %d, got %d",
			n.cfg.MinWordCount, n.cfg.MaxWordCount, raw.TargetWordCount)
	}
	req.TargetWordCount = raw.TargetWordCount

	keywords, err := mergeKeywords(raw.RequiredKeywords)
	if err != nil {
		return req, err
	}
	if raw.KeywordFrequency && len(keywords) == 0 {
		return req, invalid("requiredKeywords", "at least one keyword is required when keyword frequency is set")
	}
	req.RequiredKeywords = keywords

	sections := make([]string, 0, len(raw.RequiredSections))
	for i, s := range raw.RequiredSections {
		s = strings.Join(strings.Fields(s), " ")
		if s == "" {
			return req, invalid(fmt.Sprintf("requiredSections[%d]", i), "must not be empty")
		}
		sections = append(sections, s)
	}
	req.RequiredSections = sections

	req.IncludeCitations = raw.IncludeCitations
	sources, err := normalizeSources(raw.RequiredSources)
	if err != nil {
		return req, err
	}
	req.RequiredSources = sources

	req.Tone = pick(canonicalTag(raw.Tone), tones, n.cfg.DefaultTone)
	req.WritingStyle = pick(canonicalTag(raw.WritingStyle), styles, n.cfg.DefaultStyle)
	req.BrandArchetype = pick(canonicalTag(raw.BrandArchetype), archetypes, "")
	req.GradeLevel = parseGradeLevel(raw.GradeLevel, n.cfg.DefaultGradeLevel)
	req.LanguageVariant = parseLanguageVariant(raw.LanguageVariant)

	req.AntiAIDetection = raw.AntiAIDetection
	req.HumanizationRates = entity.HumanizationRates{
		Typos:           clampRate(raw.HumanizationRates.Typos),
		GrammarMistakes: clampRate(raw.HumanizationRates.GrammarMistakes),
		MiscErrors:      clampRate(raw.HumanizationRates.MiscErrors),
	}

	if raw.RevisionRounds < 0 || raw.RevisionRounds > n.cfg.MaxRevisionRounds {
		return req, invalid("revisionRounds", "must be between 0 and %d", n.cfg.MaxRevisionRounds)
	}
	req.RevisionRounds = raw.RevisionRounds

	return req, nil
}

// mergeKeywords 去除空白、按不区分大小写合并重复项（保留首次出现的写法，次数取最大值）
func mergeKeywords(raw []RawKeyword) ([]entity.KeywordRequirement, error) {
	out := make([]entity.KeywordRequirement, 0, len(raw))
	index := make(map[string]int, len(raw))
	for i, k := range raw {
		kw := strings.Join(strings.Fields(k.Keyword), " ")
		if kw == "" {
			return nil, invalid(fmt.Sprintf("requiredKeywords[%d].keyword", i), "must not be empty")
		}
		minOcc := k.MinOccurrences
		if minOcc < 1 {
			minOcc = 1
		}
		key := strings.ToLower(kw)
		if at, ok := index[key]; ok {
			if minOcc > out[at].MinOccurrences {
				out[at].MinOccurrences = minOcc
			}
			continue
		}
		index[key] = len(out)
		out = append(out, entity.KeywordRequirement{Keyword: kw, MinOccurrences: minOcc})
	}
	return out, nil
}

func normalizeSources(raw []RawSource) ([]entity.Source, error) {
	out := make([]entity.Source, 0, len(raw))
	for i, s := range raw {
		label := strings.TrimSpace(s.Label)
		link := strings.TrimSpace(s.URL)
		if link == "" && label == "" {
			return nil, invalid(fmt.Sprintf("requiredSources[%d]", i), "needs a label or url")
		}
		if link != "" {
			u, err := url.Parse(link)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return nil, invalid(fmt.Sprintf("requiredSources[%d].url", i), "must be an absolute http(s) url")
			}
			if label == "" {
				label = u.Host
			}
		}
		out = append(out, entity.Source{Label: label, URL: link, Priority: s.Priority})
	}
	return out, nil
}

func clampRate(r float64) float64 {
	if math.IsNaN(r) || r < 0 {
		return 0
	}
	return math.Min(r, MaxHumanizationRate)
}
