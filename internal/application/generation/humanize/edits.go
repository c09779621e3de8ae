package humanize

import (
	"math/rand/v2"
	"strings"
	"unicode"

	"z-writer-ai-api/internal/application/generation/textutil"
)

// minTypoWordLen 只对足够长的纯字母单词制造拼写错误，首字母保持不变
const minTypoWordLen = 4

func planTypos(h *Humanizer, text string, words []textutil.Span, protected []textutil.Span, n int, rng *rand.Rand) []edit {
	var cands []edit
	for _, w := range words {
		word := text[w.Start:w.End]
		if len(word) < minTypoWordLen || !asciiLetters(word) {
			continue
		}
		cands = append(cands, edit{start: w.Start, end: w.End, guard: w})
	}
	picked := choose(cands, protected, n, rng)
	out := picked[:0]
	for _, e := range picked {
		if typo, ok := h.typo(text[e.start:e.end], rng); ok {
			e.text = typo
			out = append(out, e)
		}
	}
	return out
}

// typo 对单词内部一个字母做交换、删除、重复或相邻键替换
func (h *Humanizer) typo(word string, rng *rand.Rand) (string, bool) {
	i := 1 + rng.IntN(len(word)-2)
	var out string
	switch rng.IntN(4) {
	case 0:
		if word[i] != word[i+1] {
			out = word[:i] + string(word[i+1]) + string(word[i]) + word[i+2:]
		} else {
			out = word[:i] + word[i+1:]
		}
	case 1:
		out = word[:i] + word[i+1:]
	case 2:
		out = word[:i+1] + word[i:]
	default:
		nb := h.cfg.TypoNeighbors[strings.ToLower(word[i:i+1])]
		if nb == "" {
			out = word[:i] + word[i+1:]
			break
		}
		c := nb[rng.IntN(len(nb))]
		if unicode.IsUpper(rune(word[i])) {
			c = byte(unicode.ToUpper(rune(c)))
		}
		out = word[:i] + string(c) + word[i+1:]
	}
	return out, out != word
}

// planGrammar 只在句子边界处改动低风险的词和标点：
// 句首冠词 a/an 互换、省略句首 The、删掉句子的第一个逗号、省略段末句号
func planGrammar(_ *Humanizer, text string, words []textutil.Span, protected []textutil.Span, n int, rng *rand.Rand) []edit {
	var cands []edit
	for _, w := range words {
		if !sentenceStart(text, w.Start) {
			continue
		}
		word := text[w.Start:w.End]
		switch strings.ToLower(word) {
		case "a":
			cands = append(cands, edit{start: w.Start, end: w.End, text: matchCase(word, "an"), guard: w})
		case "an":
			cands = append(cands, edit{start: w.Start, end: w.End, text: matchCase(word, "a"), guard: w})
		case "the":
			// "The results" -> "Results"
			if w.End+1 < len(text) && text[w.End] == ' ' && isLowerASCII(text[w.End+1]) {
				s := textutil.Span{Start: w.Start, End: w.End + 2}
				cands = append(cands, edit{start: s.Start, end: s.End, text: strings.ToUpper(text[w.End+1 : w.End+2]), guard: s})
			}
		}
	}

	sawComma := false
	for i := 0; i < len(text); i++ {
		switch c := text[i]; {
		case c == '.' || c == '!' || c == '?' || c == '\n':
			sawComma = false
			// 段末句号
			if c == '.' && i > 0 && isLetterASCII(text[i-1]) && (i+1 == len(text) || text[i+1] == '\n') {
				s := textutil.Span{Start: i - 1, End: i + 1}
				cands = append(cands, edit{start: i, end: i + 1, guard: s})
			}
		case c == ',' && !sawComma:
			sawComma = true
			if i+1 < len(text) && text[i+1] == ' ' {
				s := textutil.Span{Start: i, End: i + 2}
				cands = append(cands, edit{start: i, end: i + 1, guard: s})
			}
		}
	}
	return choose(cands, protected, n, rng)
}

// planMisc 标点与空格上的小瑕疵：句首小写、多余空格、逗号后缺空格、and 写作 &、引号风格不一致
func planMisc(_ *Humanizer, text string, words []textutil.Span, protected []textutil.Span, n int, rng *rand.Rand) []edit {
	var cands []edit
	for i := 0; i+2 < len(text); i++ {
		switch {
		case text[i] == '.' && text[i+1] == ' ' && isUpperASCII(text[i+2]):
			s := textutil.Span{Start: i, End: i + 3}
			cands = append(cands,
				edit{start: i + 2, end: i + 3, text: strings.ToLower(text[i+2 : i+3]), guard: s},
				edit{start: i + 1, end: i + 1, text: " ", guard: s},
			)
		case text[i] == ',' && text[i+1] == ' ' && text[i+2] != ' ':
			s := textutil.Span{Start: i, End: i + 3}
			cands = append(cands, edit{start: i + 1, end: i + 2, guard: s})
		}
	}
	// 单个直引号换成弯引号，同一段落中两种引号混用
	for i := 0; i < len(text); i++ {
		if text[i] != '"' {
			continue
		}
		curly := "\u201d"
		if i == 0 || text[i-1] == ' ' || text[i-1] == '\n' || text[i-1] == '(' {
			curly = "\u201c"
		}
		s := textutil.Span{Start: i, End: i + 1}
		cands = append(cands, edit{start: i, end: i + 1, text: curly, guard: s})
	}
	for _, w := range words {
		if text[w.Start:w.End] == "and" {
			cands = append(cands, edit{start: w.Start, end: w.End, text: "&", guard: w})
		}
	}
	return choose(cands, protected, n, rng)
}

// sentenceStart pos 之前只有空白，且紧挨着句末标点、换行或文本开头
func sentenceStart(text string, pos int) bool {
	i := pos - 1
	for i >= 0 && (text[i] == ' ' || text[i] == '\t') {
		i--
	}
	if i < 0 {
		return true
	}
	switch text[i] {
	case '.', '!', '?', '\n':
		return true
	}
	return false
}

func asciiLetters(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z') && !(c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

func isUpperASCII(c byte) bool {
	return c >= 'A' && c <= 'Z'
}

func isLowerASCII(c byte) bool {
	return c >= 'a' && c <= 'z'
}

func isLetterASCII(c byte) bool {
	return isUpperASCII(c) || isLowerASCII(c)
}

// matchCase 按原词首字母大小写调整替换词
func matchCase(orig, repl string) string {
	if orig == "" || repl == "" {
		return repl
	}
	if unicode.IsUpper(rune(orig[0])) {
		return strings.ToUpper(repl[:1]) + repl[1:]
	}
	return repl
}
