package text

import (
	"strings"

	"github.com/alzaheer/privacyshield/model"
)

// Match is one occurrence of a literal in a layout.
type Match struct {
	Start, End int // byte range in Layout.Text
	// First and Last are the first and last glyph indices covered; every
	// glyph in between belongs to the match, including glyphs without text.
	First, Last int
	// Lines holds one rectangle per line the match runs over, top line
	// first; Rect is their union.
	Lines []model.Rect
	Rect  model.Rect
}

// Glyphs returns the indices of the glyphs covered by m.
func (m Match) Glyphs() []int {
	out := make([]int, 0, m.Last-m.First+1)
	for i := m.First; i <= m.Last; i++ {
		out = append(out, i)
	}
	return out
}

// Search returns every non-overlapping occurrence of literal, left to
// right. Occurrences made only of separators are skipped.
func (l *Layout) Search(literal string) []Match {
	if literal == "" {
		return nil
	}
	var out []Match
	for from := 0; from < len(l.Text); {
		i := strings.Index(l.Text[from:], literal)
		if i < 0 {
			break
		}
		start := from + i
		end := start + len(literal)
		from = end

		m := Match{Start: start, End: end, First: -1, Last: -1}
		var line model.Rect
		open := false
		for b := start; b < end; b++ {
			g := l.owner[b]
			if g < 0 {
				if l.Text[b] == '\n' && open {
					m.Lines = append(m.Lines, line)
					open = false
				}
				continue
			}
			if m.First < 0 {
				m.First = g
			}
			m.Last = g
			if box := l.Glyphs[g].Box; open {
				line = line.Union(box)
			} else {
				line, open = box, true
			}
		}
		if m.First < 0 {
			continue
		}
		if open {
			m.Lines = append(m.Lines, line)
		}
		m.Rect = m.Lines[0]
		for _, r := range m.Lines[1:] {
			m.Rect = m.Rect.Union(r)
		}
		out = append(out, m)
	}
	return out
}

// GlyphAt returns the index of the glyph that produced byte offset, or -1
// for separators and out-of-range offsets.
func (l *Layout) GlyphAt(offset int) int {
	if offset < 0 || offset >= len(l.owner) {
		return -1
	}
	return l.owner[offset]
}
