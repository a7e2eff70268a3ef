package document

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const (
	// 字形宽度缺失时按字号的该比例估算
	glyphWidthRatio = 0.5
	// 同一行内两个字形的间距超过字号的该比例时补一个空格
	wordGapRatio = 0.2
	// 基线变化超过字号的该比例时认为换行
	lineBreakRatio = 0.5
)

// glyph 页面上的一个字符及其包围盒
type glyph struct {
	r   rune
	box Rect
}

// textLine 页面上的一行文本
type textLine struct {
	glyphs []glyph
}

func (l textLine) String() string {
	var b strings.Builder
	for _, g := range l.glyphs {
		b.WriteRune(g.r)
	}
	return b.String()
}

// textPage 一页的文本布局
type textPage struct {
	lines []textLine
}

// Text 页面文本，行之间以换行分隔
func (p textPage) Text() string {
	parts := make([]string, len(p.lines))
	for i, l := range p.lines {
		parts[i] = l.String()
	}
	return strings.Join(parts, "\n")
}

// textLayer 基于 ledongthuc/pdf 的带坐标文本层
type textLayer struct {
	pages []textPage
}

// loadTextLayer 解析PDF内容流，按页构建文本布局
// 单页解析失败时该页视为空页
func loadTextLayer(data []byte) (*textLayer, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	n := r.NumPage()
	layer := &textLayer{pages: make([]textPage, n)}
	for i := 1; i <= n; i++ {
		page, err := readPage(r, i)
		if err != nil {
			continue
		}
		layer.pages[i-1] = page
	}
	return layer, nil
}

func readPage(r *pdf.Reader, num int) (tp textPage, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page %d: %v", num, rec)
		}
	}()

	p := r.Page(num)
	if p.V.IsNull() {
		return textPage{}, nil
	}
	return layoutPage(p.Content().Text), nil
}

// layoutPage 将字形序列按基线分组为行
// 字形宽度缺失时根据字号估算，并把同一位置上叠放的字形依次向右排开
func layoutPage(texts []pdf.Text) textPage {
	var page textPage
	var cur []glyph
	var lastY, lastX1, lastSize float64
	started := false

	flush := func() {
		if len(cur) > 0 {
			page.lines = append(page.lines, textLine{glyphs: cur})
		}
		cur = nil
	}

	for _, t := range texts {
		if t.S == "" {
			continue
		}
		size := t.FontSize
		if size <= 0 {
			size = 1
		}

		if started && math.Abs(t.Y-lastY) > lineBreakRatio*math.Max(size, lastSize) {
			flush()
		}

		n := utf8.RuneCountInString(t.S)
		width := t.W
		x := t.X
		if width <= 0 {
			width = glyphWidthRatio * size * float64(n)
			if len(cur) > 0 && x < lastX1 {
				x = lastX1
			}
		} else if len(cur) > 0 && x-lastX1 > wordGapRatio*size {
			prev := cur[len(cur)-1]
			if !unicode.IsSpace(prev.r) && !strings.HasPrefix(t.S, " ") {
				cur = append(cur, glyph{r: ' ', box: Rect{X0: lastX1, Y0: prev.box.Y0, X1: x, Y1: prev.box.Y1}})
			}
		}

		step := width / float64(n)
		i := 0
		for _, r := range t.S {
			if r == '\n' || r == '\r' {
				continue
			}
			x0 := x + step*float64(i)
			cur = append(cur, glyph{r: r, box: Rect{
				X0: x0,
				Y0: t.Y - 0.25*size,
				X1: x0 + step,
				Y1: t.Y + 0.85*size,
			}})
			i++
		}

		lastY = t.Y
		lastX1 = x + width
		lastSize = size
		started = true
	}
	flush()
	return page
}

// Lines 全文按行切分，每页之后追加一个换行
func (l *textLayer) Lines() []string {
	var b strings.Builder
	for _, p := range l.pages {
		b.WriteString(p.Text())
		b.WriteString("\n")
	}
	return strings.Split(b.String(), "\n")
}

// PageCount 页数
func (l *textLayer) PageCount() int {
	return len(l.pages)
}

// Search 在单页内搜索，大小写不敏感
// 行与行之间视为以一个空格连接，跨行命中时每行返回一个区域
func (l *textLayer) Search(page int, query string) ([]Fragment, error) {
	if page < 1 || page > len(l.pages) {
		return nil, fmt.Errorf("%w: page %d of %d", ErrInvalidTarget, page, len(l.pages))
	}
	needle := foldRunes(query)
	if len(needle) == 0 {
		return nil, nil
	}

	// 展开为一维序列，line 记录每个位置所属的行号，-1 表示行间的虚拟空格
	var seq []rune
	var pos []int
	var lineOf []int
	p := l.pages[page-1]
	for li, line := range p.lines {
		if li > 0 {
			seq = append(seq, ' ')
			pos = append(pos, -1)
			lineOf = append(lineOf, -1)
		}
		for gi, g := range line.glyphs {
			seq = append(seq, unicode.ToLower(g.r))
			pos = append(pos, gi)
			lineOf = append(lineOf, li)
		}
	}

	var frags []Fragment
	for i := 0; i+len(needle) <= len(seq); {
		if !matchAt(seq, needle, i) {
			i++
			continue
		}
		frags = append(frags, p.fragment(pos[i:i+len(needle)], lineOf[i:i+len(needle)]))
		i += len(needle)
	}
	return frags, nil
}

// fragment 根据命中位置计算每行的包围盒
func (p textPage) fragment(pos, lineOf []int) Fragment {
	var text strings.Builder
	var regions []Rect
	current := -1
	for k, li := range lineOf {
		if li < 0 {
			text.WriteRune(' ')
			continue
		}
		g := p.lines[li].glyphs[pos[k]]
		text.WriteRune(g.r)
		if li != current {
			regions = append(regions, g.box)
			current = li
			continue
		}
		regions[len(regions)-1] = regions[len(regions)-1].Union(g.box)
	}
	return Fragment{Text: text.String(), Regions: regions}
}

func matchAt(seq, needle []rune, i int) bool {
	for j, r := range needle {
		if seq[i+j] != r {
			return false
		}
	}
	return true
}

func foldRunes(s string) []rune {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		out = append(out, unicode.ToLower(r))
	}
	return out
}
