// Package textutil 提供草稿文本的分词、计数与结构识别
package textutil

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Span 文本中的字节区间 [Start, End)
type Span struct {
	Start int
	End   int
}

// Overlaps 两个区间是否相交
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isJoiner(r rune) bool {
	return r == '\'' || r == '’' || r == '-'
}

// WordSpans 返回所有单词的位置。
// 单词为连续的字母或数字，中间可由单个撇号或连字符连接（don't、well-known）。
func WordSpans(text string) []Span {
	var spans []Span
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isWordRune(r) {
			i += size
			continue
		}
		start := i
		i += size
		for i < len(text) {
			r, size = utf8.DecodeRuneInString(text[i:])
			if isWordRune(r) {
				i += size
				continue
			}
			if isJoiner(r) && i+size < len(text) {
				next, _ := utf8.DecodeRuneInString(text[i+size:])
				if isWordRune(next) {
					i += size
					continue
				}
			}
			break
		}
		spans = append(spans, Span{Start: start, End: i})
	}
	return spans
}

// CountWords 统计单词数
func CountWords(text string) int {
	return len(WordSpans(text))
}

// FindOccurrences 大小写不敏感、不重叠地查找 term 的所有出现位置
func FindOccurrences(text, term string) []Span {
	if strings.TrimSpace(term) == "" {
		return nil
	}
	var spans []Span
	i := 0
	for i < len(text) {
		if end, ok := matchFoldAt(text, i, term); ok {
			spans = append(spans, Span{Start: i, End: end})
			i = end
			continue
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
	}
	return spans
}

// CountOccurrences 大小写不敏感的子串出现次数（不重叠）
func CountOccurrences(text, term string) int {
	return len(FindOccurrences(text, term))
}

func matchFoldAt(text string, i int, term string) (int, bool) {
	j := i
	for _, tr := range term {
		if j >= len(text) {
			return 0, false
		}
		r, size := utf8.DecodeRuneInString(text[j:])
		if r != tr && unicode.ToLower(r) != unicode.ToLower(tr) {
			return 0, false
		}
		j += size
	}
	return j, true
}

var (
	urlPattern      = regexp.MustCompile(`https?://[^\s)\]>"]+`)
	citationPattern = regexp.MustCompile(`\[\d{1,3}\]`)
)

// URLSpans 文本中 URL 的位置
func URLSpans(text string) []Span {
	return toSpans(urlPattern.FindAllStringIndex(text, -1))
}

// CitationSpans 文本中 [n] 引用标记的位置
func CitationSpans(text string) []Span {
	return toSpans(citationPattern.FindAllStringIndex(text, -1))
}

// CountCitationMarkers [n] 引用标记数量
func CountCitationMarkers(text string) int {
	return len(citationPattern.FindAllStringIndex(text, -1))
}

func toSpans(idx [][]int) []Span {
	spans := make([]Span, 0, len(idx))
	for _, p := range idx {
		spans = append(spans, Span{Start: p[0], End: p[1]})
	}
	return spans
}

// MergeSpans 排序并合并相交或相邻的区间
func MergeSpans(spans []Span) []Span {
	if len(spans) == 0 {
		return nil
	}
	sorted := append([]Span(nil), spans...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	out := []Span{sorted[0]}
	for _, s := range sorted[1:] {
		last := &out[len(out)-1]
		if s.Start <= last.End {
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

// AnyOverlap s 是否与 merged 中任一区间相交，merged 需已排序
func AnyOverlap(merged []Span, s Span) bool {
	i := sort.Search(len(merged), func(i int) bool { return merged[i].End > s.Start })
	return i < len(merged) && merged[i].Start < s.End
}
