package redact

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/alzaheer/privacyshield/contentstream"
	"github.com/alzaheer/privacyshield/core"
	"github.com/alzaheer/privacyshield/document"
	"github.com/alzaheer/privacyshield/font"
	"github.com/alzaheer/privacyshield/model"
	"github.com/alzaheer/privacyshield/pages"
	"github.com/alzaheer/privacyshield/text"
)

// DefaultLabel is drawn over every redacted region.
const DefaultLabel = "[REDACTED]"

const labelFontKey = "PSRedact"

// PageRedactor removes literal text from pages and covers the place it
// occupied with a labelled black box.
type PageRedactor struct {
	doc    *document.Document
	label  string
	logger zerolog.Logger
}

// NewPageRedactor creates a redactor for pages of doc.
func NewPageRedactor(doc *document.Document, logger zerolog.Logger) *PageRedactor {
	return &PageRedactor{doc: doc, label: DefaultLabel, logger: logger}
}

// WithLabel sets the label drawn over regions.
func (r *PageRedactor) WithLabel(label string) *PageRedactor {
	r.label = label
	return r
}

// Redact re-extracts the page text, finds every occurrence of each span's
// literal and applies all of them in one step: matching glyphs are
// removed from the content stream or the form XObject that shows them,
// replaced by equivalent TJ displacements, and a covering box with the
// label is drawn over each line of each occurrence. The page is only
// modified when everything succeeded.
func (r *PageRedactor) Redact(ctx context.Context, page *pages.Page, spans []model.ResolvedSpan) ([]model.RedactionRegion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(spans) == 0 {
		return nil, nil
	}

	layout, err := text.NewExtractor(r.doc.MustResolve).ExtractPage(page)
	if err != nil {
		return nil, newError(PageRedactionFailed, page.Index, -1, err)
	}

	var regions []model.RedactionRegion
	remove := make(map[int]bool)
	seen := make(map[string]bool)
	for _, s := range spans {
		if seen[s.Literal] {
			continue
		}
		seen[s.Literal] = true

		matches := layout.Search(s.Literal)
		if len(matches) == 0 {
			r.logger.Debug().
				Int("page", page.Index).
				Str("entity", s.EntityType).
				Str("kind", TextInstanceNotFound.String()).
				Msg("literal not found on page")
			continue
		}
		for _, m := range matches {
			for _, g := range m.Glyphs() {
				remove[g] = true
			}
			for _, line := range m.Lines {
				regions = append(regions, model.RedactionRegion{Page: page.Index, Rect: line, Label: r.label})
			}
		}
	}
	if len(regions) == 0 {
		return nil, nil
	}

	// anything else drawn inside a region goes too
	for i, g := range layout.Glyphs {
		if remove[i] || g.Box.IsEmpty() {
			continue
		}
		c := g.Box.Center()
		for _, reg := range regions {
			if reg.Rect.Contains(c) {
				remove[i] = true
				break
			}
		}
	}

	res, err := page.Resources()
	if err != nil {
		return nil, newError(PageRedactionFailed, page.Index, -1, err)
	}
	newRes, fontName := r.withLabelFont(res)
	pageOps, newRes, err := r.rewrite(layout, remove, newRes)
	if err != nil {
		return nil, newError(PageRedactionFailed, page.Index, -1, err)
	}

	var buf bytes.Buffer
	buf.WriteString("q\n")
	buf.Write(contentstream.Write(pageOps))
	buf.WriteString("Q\n")
	buf.Write(contentstream.Write(coverOps(regions, fontName, r.label)))

	if err := r.doc.SetPageContent(page, buf.Bytes()); err != nil {
		return nil, newError(PageRedactionFailed, page.Index, -1, err)
	}
	page.Dict()["Resources"] = newRes
	return regions, nil
}

// withLabelFont returns a copy of res whose /Font holds Helvetica under a
// free name, and that name.
func (r *PageRedactor) withLabelFont(res core.Dict) (core.Dict, string) {
	out := res.Clone()
	fonts := core.Dict{}
	if f, ok := r.doc.MustResolve(res["Font"]).(core.Dict); ok {
		fonts = f.Clone()
	}
	name := labelFontKey
	for i := 1; fonts.Has(name); i++ {
		name = labelFontKey + strconv.Itoa(i)
	}
	fonts[name] = core.Dict{
		"Type":     core.Name("Font"),
		"Subtype":  core.Name("Type1"),
		"BaseFont": core.Name("Helvetica"),
		"Encoding": core.Name("WinAnsiEncoding"),
	}
	out["Font"] = fonts
	return out, name
}

// glyphCode identifies a character code within a stream's operations.
type glyphCode struct{ op, elem, code int }

// rewrite removes the glyphs in remove from the page contents and from
// the forms they are painted through. Changed forms are copied, since
// other pages may paint the originals, and every resources dictionary on
// the way from the page to a copy is updated to point at it. It returns
// the page's new operations and resources.
func (r *PageRedactor) rewrite(layout *text.Layout, remove map[int]bool, pageRes core.Dict) ([]contentstream.Operation, core.Dict, error) {
	streams := layout.Streams

	// a form painted several times under the same name is one stream
	type slot struct {
		parent int
		name   string
	}
	canon := make([]int, len(streams))
	first := make(map[slot]int)
	for i := 1; i < len(streams); i++ {
		k := slot{canon[streams[i].Parent], streams[i].Name}
		if j, ok := first[k]; ok {
			canon[i] = j
			continue
		}
		first[k] = i
		canon[i] = i
	}

	removed := make(map[int]map[glyphCode]bool)
	for gi := range remove {
		g := layout.Glyphs[gi]
		c := canon[g.Stream]
		if removed[c] == nil {
			removed[c] = make(map[glyphCode]bool)
		}
		removed[c][glyphCode{g.Op, g.Elem, g.Code}] = true
	}

	dirty := make(map[int]bool)
	for c := range removed {
		for i := c; i > 0 && !dirty[i]; i = canon[streams[i].Parent] {
			dirty[i] = true
		}
	}
	order := make([]int, 0, len(dirty))
	for i := range dirty {
		order = append(order, i)
	}
	// children before parents
	sort.Sort(sort.Reverse(sort.IntSlice(order)))

	copies := make(map[int]core.IndirectRef)
	for _, i := range order {
		s := streams[i]
		dict := s.Form.Dict.Clone()
		dict["Resources"] = r.repoint(s.Resources, i, streams, canon, copies)
		form, err := core.NewFlateStream(dict, contentstream.Write(purge(layout, i, removed[i])))
		if err != nil {
			return nil, nil, fmt.Errorf("form %s: %w", s.Name, err)
		}
		copies[i] = r.doc.Add(form)
	}
	return purge(layout, 0, removed[0]), r.repoint(pageRes, 0, streams, canon, copies), nil
}

// repoint returns a copy of res whose XObject entries for the copied
// children of stream parent refer to the copies.
func (r *PageRedactor) repoint(res core.Dict, parent int, streams []text.Stream, canon []int, copies map[int]core.IndirectRef) core.Dict {
	out := res.Clone()
	xobjs, _ := r.doc.MustResolve(res["XObject"]).(core.Dict)
	xobjs = xobjs.Clone()
	changed := false
	for child, ref := range copies {
		if canon[streams[child].Parent] == parent {
			xobjs[streams[child].Name] = ref
			changed = true
		}
	}
	if changed {
		out["XObject"] = xobjs
	}
	return out
}

// purge rewrites the operations of stream idx without the removed codes.
// Each affected string operator becomes a TJ in which removed codes are
// replaced by their displacement, so the remaining text keeps its place.
func purge(layout *text.Layout, idx int, removed map[glyphCode]bool) []contentstream.Operation {
	type key struct{ op, elem int }
	byElem := make(map[key][]int)
	touched := make(map[int]bool)
	gone := func(g text.Glyph) bool { return removed[glyphCode{g.Op, g.Elem, g.Code}] }
	for i, g := range layout.Glyphs {
		if g.Stream != idx {
			continue
		}
		k := key{g.Op, g.Elem}
		byElem[k] = append(byElem[k], i)
		if gone(g) {
			touched[g.Op] = true
		}
	}

	// rewrite builds the TJ elements for one string operand.
	rewrite := func(op, elem int, out core.Array) core.Array {
		var cur []byte
		pending, hasPending := 0.0, false
		flush := func() {
			if hasPending {
				out = append(out, core.Real(pending))
				pending, hasPending = 0, false
			}
		}
		for _, gi := range byElem[key{op, elem}] {
			g := layout.Glyphs[gi]
			if gone(g) {
				if cur != nil {
					out = append(out, core.String(cur))
					cur = nil
				}
				pending += g.Displacement
				hasPending = true
				continue
			}
			flush()
			cur = append(cur, g.Bytes...)
		}
		flush()
		if cur != nil {
			out = append(out, core.String(cur))
		}
		return out
	}

	src := layout.Streams[idx].Ops
	ops := make([]contentstream.Operation, 0, len(src))
	for i, op := range src {
		if !touched[i] {
			ops = append(ops, op)
			continue
		}
		switch op.Operator {
		case "Tj":
			ops = append(ops, contentstream.Op("TJ", rewrite(i, 0, nil)))
		case "'":
			ops = append(ops, contentstream.Op("T*"), contentstream.Op("TJ", rewrite(i, 0, nil)))
		case "\"":
			ops = append(ops,
				contentstream.Op("Tw", op.Operands[0]),
				contentstream.Op("Tc", op.Operands[1]),
				contentstream.Op("T*"),
				contentstream.Op("TJ", rewrite(i, 0, nil)))
		case "TJ":
			arr := op.Operands[0].(core.Array)
			var out core.Array
			for j, item := range arr {
				if _, ok := item.(core.String); ok {
					out = rewrite(i, j, out)
					continue
				}
				out = append(out, item)
			}
			ops = append(ops, contentstream.Op("TJ", out))
		default:
			ops = append(ops, op)
		}
	}
	return ops
}

// coverOps draws an opaque black box over each region with the label in
// white, sized to fit.
func coverOps(regions []model.RedactionRegion, fontName, label string) []contentstream.Operation {
	f := font.Default()
	encoded, canLabel := f.Encode(label)
	var labelWidth float64
	for _, c := range f.Split(encoded) {
		labelWidth += f.Width(c) / 1000
	}

	var ops []contentstream.Operation
	for _, reg := range regions {
		r := reg.Rect
		ops = append(ops,
			contentstream.Op("q"),
			contentstream.Op("g", contentstream.Nums(0)...),
			contentstream.Op("re", contentstream.Nums(r.X0, r.Y0, r.Width(), r.Height())...),
			contentstream.Op("f"),
		)
		if canLabel && labelWidth > 0 {
			size := r.Height() * 0.8
			if fit := (r.Width() - 1) / labelWidth; fit < size {
				size = fit
			}
			if size >= 2 {
				x := r.X0 + (r.Width()-labelWidth*size)/2
				y := r.Y0 + (r.Height()-size*0.7)/2
				ops = append(ops,
					contentstream.Op("BT"),
					contentstream.Op("g", contentstream.Nums(1)...),
					contentstream.Op("Tf", core.Name(fontName), core.Real(size)),
					contentstream.Op("Td", contentstream.Nums(x, y)...),
					contentstream.Op("Tj", core.String(encoded)),
					contentstream.Op("ET"),
				)
			}
		}
		ops = append(ops, contentstream.Op("Q"))
	}
	return ops
}
