package textutil

import (
	"bytes"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New()

// standaloneMaxWords 独立短行被视为标题的最大词数
const standaloneMaxWords = 8

// Heading 草稿中识别出的章节标题
type Heading struct {
	Text string
	// Line 标题所在整行的位置
	Line Span
}

// ExtractHeadings 按出现顺序识别章节标题：
// Markdown 标题（ATX 与 Setext），以及加粗或以冒号结尾的独立短行、无结尾标点的单行短段落。
func ExtractHeadings(src string) []Heading {
	source := []byte(src)
	doc := markdown.Parser().Parse(text.NewReader(source))

	var out []Heading
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			t := strings.TrimSpace(inlineText(node, source))
			if t != "" && node.Lines().Len() > 0 {
				out = append(out, Heading{Text: t, Line: lineAround(source, node.Lines().At(0))})
			}
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph:
			if h, ok := standaloneHeading(node, source); ok {
				out = append(out, h)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return out
}

func inlineText(n ast.Node, source []byte) string {
	var b bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		default:
			b.WriteString(inlineText(c, source))
		}
	}
	return b.String()
}

func standaloneHeading(p *ast.Paragraph, source []byte) (Heading, bool) {
	lines := p.Lines()
	if lines.Len() == 0 {
		return Heading{}, false
	}
	seg := lines.At(0)
	raw := strings.TrimSpace(string(seg.Value(source)))
	if raw == "" {
		return Heading{}, false
	}

	bold := len(raw) > 4 && (strings.HasPrefix(raw, "**") || strings.HasPrefix(raw, "__")) &&
		(strings.HasSuffix(raw, "**") || strings.HasSuffix(raw, "__") ||
			strings.HasSuffix(raw, "**:") || strings.HasSuffix(raw, "__:"))
	colon := strings.HasSuffix(raw, ":")
	label := strings.TrimSpace(strings.Trim(strings.TrimSuffix(raw, ":"), "*_ "))
	label = strings.TrimSpace(strings.TrimSuffix(label, ":"))
	if label == "" || CountWords(label) > standaloneMaxWords {
		return Heading{}, false
	}

	single := lines.Len() == 1 && !strings.ContainsAny(lastRune(label), ".!?;,") && CountWords(label) <= 6
	if !bold && !colon && !single {
		return Heading{}, false
	}
	return Heading{Text: label, Line: lineAround(source, seg)}, true
}

func lastRune(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return ""
	}
	return string(r[len(r)-1])
}

func lineAround(source []byte, seg text.Segment) Span {
	start := seg.Start
	for start > 0 && source[start-1] != '\n' {
		start--
	}
	end := seg.Stop
	if end > len(source) {
		end = len(source)
	}
	for end < len(source) && source[end] != '\n' {
		end++
	}
	// 段落行的 Stop 可能包含换行符
	for end > start && (source[end-1] == '\n' || source[end-1] == '\r') {
		end--
	}
	return Span{Start: start, End: end}
}

// HeadingLineSpans 所有标题行的位置
func HeadingLineSpans(src string) []Span {
	hs := ExtractHeadings(src)
	spans := make([]Span, 0, len(hs))
	for _, h := range hs {
		spans = append(spans, h.Line)
	}
	return spans
}

// StripHeadings 移除标题行，保留正文
func StripHeadings(src string) string {
	spans := MergeSpans(HeadingLineSpans(src))
	if len(spans) == 0 {
		return src
	}
	var b strings.Builder
	prev := 0
	for _, s := range spans {
		b.WriteString(src[prev:s.Start])
		prev = s.End
	}
	b.WriteString(src[prev:])
	return b.String()
}

// NormalizeHeading 小写化并把非字母数字折叠为单个空格，用于标题比较
func NormalizeHeading(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}
