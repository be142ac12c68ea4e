package pdf

import (
	"math"
	"sort"
	"strings"
)

// run is one positioned piece of text on a page, in PDF user space
// (origin at the bottom-left corner).
type run struct {
	s    string
	x, y float64
	w    float64
	size float64
}

type line struct {
	runs []run
	y    float64
	size float64
	x0   float64
	x1   float64
}

// block is a group of neighbouring lines that becomes one document element.
type block struct {
	text     string
	size     float64
	x0, x1   float64
	top, bot float64 // baselines of the first and last line
}

func (r run) width() float64 {
	if r.w > 0 {
		return r.w
	}
	return 0.5 * r.size * float64(len([]rune(r.s)))
}

// stalled reports whether b was drawn at the pen position of a without the
// pen moving, which happens when the font has no glyph widths.
func stalled(a, b run) bool {
	return a.w == 0 && b.w == 0 && math.Abs(a.x-b.x) < 0.01 && math.Abs(a.y-b.y) < 0.01
}

func hasStalledPen(runs []run) bool {
	for i := 1; i < len(runs); i++ {
		if stalled(runs[i-1], runs[i]) {
			return true
		}
	}
	return false
}

// advancePen walks runs in drawing order and moves every stalled glyph past
// its predecessor by the predecessor's estimated width.
func advancePen(runs []run) []run {
	out := append([]run(nil), runs...)
	for i := 1; i < len(out); i++ {
		if stalled(runs[i-1], runs[i]) {
			out[i].x = out[i-1].x + out[i-1].width()
		}
	}
	return out
}

// groupLines assembles runs sharing a baseline into lines ordered top to bottom.
func groupLines(runs []run) []line {
	if len(runs) == 0 {
		return nil
	}
	sorted := append([]run(nil), runs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if math.Abs(sorted[i].y-sorted[j].y) > tolerance(sorted[i], sorted[j]) {
			return sorted[i].y > sorted[j].y
		}
		return sorted[i].x < sorted[j].x
	})

	var lines []line
	for _, r := range sorted {
		n := len(lines)
		if n > 0 && math.Abs(lines[n-1].y-r.y) <= tolerance(r, run{size: lines[n-1].size}) {
			l := &lines[n-1]
			l.runs = append(l.runs, r)
			l.size = math.Max(l.size, r.size)
			l.x0 = math.Min(l.x0, r.x)
			l.x1 = math.Max(l.x1, r.x+r.width())
			continue
		}
		lines = append(lines, line{runs: []run{r}, y: r.y, size: r.size, x0: r.x, x1: r.x + r.width()})
	}
	for i := range lines {
		sort.SliceStable(lines[i].runs, func(a, b int) bool { return lines[i].runs[a].x < lines[i].runs[b].x })
	}
	return lines
}

func tolerance(a, b run) float64 {
	return 0.5 * math.Max(math.Max(a.size, b.size), 1)
}

func (l line) text() string {
	var sb strings.Builder
	for i, r := range l.runs {
		if i > 0 {
			prev := l.runs[i-1]
			if r.x-(prev.x+prev.width()) > 0.2*math.Max(r.size, 1) {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(r.s)
	}
	return sb.String()
}

// groupBlocks merges consecutive lines of similar size and spacing.
func groupBlocks(lines []line) []block {
	var blocks []block
	var cur *block
	var prev line
	for i, l := range lines {
		t := Sanitize(l.text())
		if t == "" {
			continue
		}
		if cur != nil && i > 0 && continues(prev, l) {
			cur.text += " " + t
			cur.size = math.Max(cur.size, l.size)
			cur.x0 = math.Min(cur.x0, l.x0)
			cur.x1 = math.Max(cur.x1, l.x1)
			cur.bot = l.y
		} else {
			blocks = append(blocks, block{text: t, size: l.size, x0: l.x0, x1: l.x1, top: l.y, bot: l.y})
			cur = &blocks[len(blocks)-1]
		}
		prev = l
	}
	return blocks
}

func continues(prev, next line) bool {
	gap := prev.y - next.y
	if gap <= 0 || gap > 1.6*math.Max(prev.size, next.size) {
		return false
	}
	lo, hi := math.Min(prev.size, next.size), math.Max(prev.size, next.size)
	return lo > 0 && hi/lo <= 1.2
}

// bodySize is the median font size across runs, used as the reference for titles.
func bodySize(runs []run) float64 {
	if len(runs) == 0 {
		return 0
	}
	sizes := make([]float64, len(runs))
	for i, r := range runs {
		sizes[i] = r.size
	}
	sort.Float64s(sizes)
	return sizes[len(sizes)/2]
}

func category(b block, body float64) string {
	switch {
	case strings.HasPrefix(b.text, "•"), strings.HasPrefix(b.text, "- "), strings.HasPrefix(b.text, "* "):
		return "ListItem"
	case body > 0 && b.size >= 1.2*body:
		return "Title"
	default:
		return "NarrativeText"
	}
}

// coordinates describes the block's bounding box in pixel space
// (origin at the top-left corner of a page of the given size).
func coordinates(b block, width, height float64) map[string]any {
	top := height - (b.top + b.size)
	bot := height - b.bot
	return map[string]any{
		"points": [][]float64{
			{b.x0, top},
			{b.x0, bot},
			{b.x1, bot},
			{b.x1, top},
		},
		"system":        "PixelSpace",
		"layout_width":  width,
		"layout_height": height,
	}
}
