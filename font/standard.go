package font

import "strings"

// Widths of the printable ASCII range 32-126 for the standard 14 fonts,
// in glyph units (1000 per em), from the Adobe font metrics.
var (
	helveticaWidths = [95]int{
		278, 278, 355, 556, 556, 889, 667, 191, 333, 333, 389, 584, 278, 333, 278, 278,
		556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 278, 278, 584, 584, 584, 556,
		1015, 667, 667, 722, 722, 667, 611, 778, 722, 278, 500, 667, 556, 833, 722, 778,
		667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611, 278, 278, 278, 469, 556,
		333, 556, 556, 500, 556, 556, 278, 556, 556, 222, 222, 500, 222, 833, 556, 556,
		556, 556, 333, 500, 278, 556, 500, 722, 500, 500, 500, 334, 260, 334, 584,
	}
	helveticaBoldWidths = [95]int{
		278, 333, 474, 556, 556, 889, 722, 238, 333, 333, 389, 584, 278, 333, 278, 278,
		556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 333, 333, 584, 584, 584, 611,
		975, 722, 722, 722, 722, 667, 611, 778, 722, 278, 556, 722, 611, 833, 722, 778,
		667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611, 333, 278, 333, 584, 556,
		333, 556, 611, 556, 611, 556, 333, 611, 611, 278, 278, 556, 278, 889, 611, 611,
		611, 611, 389, 556, 333, 611, 556, 778, 556, 556, 500, 389, 280, 389, 584,
	}
	timesWidths = [95]int{
		250, 333, 408, 500, 500, 833, 778, 180, 333, 333, 500, 564, 250, 333, 250, 278,
		500, 500, 500, 500, 500, 500, 500, 500, 500, 500, 278, 278, 564, 564, 564, 444,
		921, 722, 667, 667, 722, 611, 556, 722, 722, 333, 389, 722, 611, 889, 722, 722,
		556, 722, 667, 556, 611, 722, 722, 944, 722, 722, 611, 333, 278, 333, 469, 500,
		333, 444, 500, 444, 500, 444, 333, 500, 500, 278, 278, 500, 278, 778, 500, 500,
		500, 500, 333, 389, 278, 500, 500, 722, 500, 500, 444, 480, 200, 480, 541,
	}
	timesBoldWidths = [95]int{
		250, 333, 555, 500, 500, 1000, 833, 278, 333, 333, 500, 570, 250, 333, 250, 278,
		500, 500, 500, 500, 500, 500, 500, 500, 500, 500, 333, 333, 570, 570, 570, 500,
		930, 722, 667, 722, 722, 667, 611, 778, 778, 389, 500, 778, 667, 944, 722, 778,
		611, 778, 722, 556, 667, 722, 722, 1000, 722, 722, 667, 333, 278, 333, 581, 500,
		333, 500, 556, 444, 556, 444, 333, 500, 556, 278, 333, 556, 278, 833, 556, 500,
		556, 556, 444, 389, 333, 556, 500, 722, 500, 500, 444, 394, 220, 394, 520,
	}
)

// standardMetrics describes one of the standard 14 fonts.
type standardMetrics struct {
	widths  *[95]int
	fixed   int // monospaced width, when widths is nil
	ascent  float64
	descent float64
}

// lookupStandard finds metrics for a base font name, ignoring subset
// prefixes and common aliases such as Arial.
func lookupStandard(baseFont string) (standardMetrics, bool) {
	name := baseFont
	if i := strings.IndexByte(name, '+'); i == 6 {
		name = name[i+1:]
	}
	name = strings.ReplaceAll(name, ",", "-")
	bold := strings.Contains(name, "Bold")

	switch {
	case strings.HasPrefix(name, "Helvetica"), strings.HasPrefix(name, "Arial"):
		if bold {
			return standardMetrics{widths: &helveticaBoldWidths, ascent: 718, descent: -207}, true
		}
		return standardMetrics{widths: &helveticaWidths, ascent: 718, descent: -207}, true
	case strings.HasPrefix(name, "Times"):
		if bold {
			return standardMetrics{widths: &timesBoldWidths, ascent: 683, descent: -217}, true
		}
		return standardMetrics{widths: &timesWidths, ascent: 683, descent: -217}, true
	case strings.HasPrefix(name, "Courier"):
		return standardMetrics{fixed: 600, ascent: 629, descent: -157}, true
	case name == "Symbol", name == "ZapfDingbats":
		return standardMetrics{fixed: 500, ascent: 800, descent: -200}, true
	}
	return standardMetrics{}, false
}

// width returns the advance width of r in glyph units.
func (m standardMetrics) width(r rune) float64 {
	if m.widths == nil {
		return float64(m.fixed)
	}
	if r >= 32 && r <= 126 {
		return float64(m.widths[r-32])
	}
	return 500
}
