package textutil

import (
	"strings"
	"unicode"
)

// SplitSentences 按 . ! ? 后跟空白或结尾切分句子，忽略空句
func SplitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		cur.WriteRune(r)
		terminal := r == '.' || r == '!' || r == '?'
		if r == '\n' && i+1 < len(runes) && runes[i+1] == '\n' {
			terminal = true
		}
		if terminal && (i+1 == len(runes) || unicode.IsSpace(runes[i+1])) {
			if s := strings.TrimSpace(cur.String()); s != "" && CountWords(s) > 0 {
				out = append(out, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" && CountWords(s) > 0 {
		out = append(out, s)
	}
	return out
}

// Syllables 英语音节数的启发式估计：元音组计数，去掉词尾不发音的 e，至少为 1
func Syllables(word string) int {
	w := strings.ToLower(word)
	w = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' {
			return r
		}
		return -1
	}, w)
	if w == "" {
		return 1
	}
	if len(w) <= 3 {
		return 1
	}
	if strings.HasSuffix(w, "es") || strings.HasSuffix(w, "ed") {
		if !strings.HasSuffix(w, "tes") && !strings.HasSuffix(w, "des") && !strings.HasSuffix(w, "ted") && !strings.HasSuffix(w, "ded") {
			w = w[:len(w)-2]
		}
	} else if strings.HasSuffix(w, "e") && !strings.HasSuffix(w, "le") {
		w = w[:len(w)-1]
	}

	count := 0
	prevVowel := false
	for i, r := range w {
		vowel := strings.ContainsRune("aeiou", r) || (r == 'y' && i > 0)
		if vowel && !prevVowel {
			count++
		}
		prevVowel = vowel
	}
	if count == 0 {
		return 1
	}
	return count
}

// FleschKincaidGrade Flesch–Kincaid 年级分数：0.39·词/句 + 11.8·音节/词 − 15.59，标题行不参与
func FleschKincaidGrade(text string) float64 {
	body := StripHeadings(text)
	sentences := SplitSentences(body)
	spans := WordSpans(body)
	if len(sentences) == 0 || len(spans) == 0 {
		return 0
	}
	syllables := 0
	for _, s := range spans {
		syllables += Syllables(body[s.Start:s.End])
	}
	words := float64(len(spans))
	return 0.39*(words/float64(len(sentences))) + 11.8*(float64(syllables)/words) - 15.59
}
