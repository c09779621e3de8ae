package brief

import (
	"strings"

	"z-writer-ai-api/internal/domain/entity"
)

var tones = setOf(
	"professional", "casual", "friendly", "formal", "persuasive", "humorous",
	"authoritative", "empathetic", "enthusiastic", "conversational", "inspirational", "neutral",
)

var styles = setOf(
	"informative", "narrative", "descriptive", "persuasive", "expository",
	"conversational", "technical", "analytical", "storytelling",
)

// archetypes 十二种品牌原型
var archetypes = setOf(
	"innocent", "sage", "explorer", "outlaw", "magician", "hero",
	"lover", "jester", "everyman", "caregiver", "ruler", "creator",
)

var gradeAliases = map[string]entity.GradeLevel{
	"elementary":    entity.GradeElementary,
	"primary":       entity.GradeElementary,
	"middle_school": entity.GradeMiddleSchool,
	"middle":        entity.GradeMiddleSchool,
	"high_school":   entity.GradeHighSchool,
	"high":          entity.GradeHighSchool,
	"college":       entity.GradeCollege,
	"university":    entity.GradeCollege,
	"graduate":      entity.GradeCollege,
}

func setOf(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

// canonicalTag 小写并把空白、连字符统一为下划线
func canonicalTag(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	return strings.Join(strings.Fields(s), "_")
}

func pick(tag string, known map[string]bool, def string) string {
	if known[tag] {
		return tag
	}
	return def
}

func parseGradeLevel(s string, def entity.GradeLevel) entity.GradeLevel {
	if g, ok := gradeAliases[canonicalTag(s)]; ok {
		return g
	}
	return def
}

func parseLanguageVariant(s string) entity.LanguageVariant {
	switch canonicalTag(s) {
	case "uk", "gb", "en_gb", "british", "british_english":
		return entity.LanguageUK
	default:
		return entity.LanguageUS
	}
}
