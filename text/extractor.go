package text

import (
	"fmt"
	"math"
	"strings"

	"github.com/alzaheer/privacyshield/contentstream"
	"github.com/alzaheer/privacyshield/core"
	"github.com/alzaheer/privacyshield/font"
	"github.com/alzaheer/privacyshield/graphicsstate"
	"github.com/alzaheer/privacyshield/model"
	"github.com/alzaheer/privacyshield/pages"
)

// maxFormDepth bounds the nesting of form XObjects followed by Do.
const maxFormDepth = 8

// Glyph is one character code shown by a text operator.
type Glyph struct {
	// Stream is the index in Layout.Streams of the content stream that
	// showed the glyph. Op is the index of the showing operation in that
	// stream's Ops, Elem the index of the string inside a TJ array (0 for
	// the other operators) and Code the index of the code inside that
	// string.
	Stream, Op, Elem, Code int

	Text  string
	Bytes []byte // the character code as it appears in the operand
	Box   model.Rect

	// Displacement is the TJ number that moves the pen exactly as far as
	// showing this glyph did.
	Displacement float64

	// Start and End delimit the glyph's bytes in Layout.Text.
	Start, End int
}

// Stream is a content stream whose text is part of a layout: the page
// contents, or a form XObject painted from them with Do.
type Stream struct {
	Ops []contentstream.Operation
	// Resources is the dictionary the operators refer to.
	Resources core.Dict
	// Form is the form XObject, nil for the page contents. Ref is its
	// reference, zero when the form is a direct object.
	Form *core.Stream
	Ref  core.IndirectRef
	// Name is the XObject resource name the form was painted under and
	// Parent the index of the stream that painted it, -1 for the page.
	Name   string
	Parent int
}

// Layout is the text of a page, with every byte traced back to the glyph
// that produced it.
type Layout struct {
	Text   string
	Glyphs []Glyph
	// Ops are the operations of the page contents, Streams[0].
	Ops []contentstream.Operation
	// Streams lists the page contents followed by every form painted
	// while laying them out, in painting order. A form painted twice
	// appears twice.
	Streams []Stream

	// owner maps each byte of Text to a glyph index, or -1 for the
	// separators inserted between words and lines.
	owner []int
}

// Extractor lays out the text of content streams.
type Extractor struct {
	fonts   map[string]*font.Font
	resolve font.Resolver
}

// NewExtractor creates an extractor; resolve follows indirect references
// inside font and XObject dictionaries.
func NewExtractor(resolve font.Resolver) *Extractor {
	return &Extractor{fonts: make(map[string]*font.Font), resolve: resolve}
}

// RegisterFont registers a font under its resource name.
func (e *Extractor) RegisterFont(name string, f *font.Font) {
	e.fonts[name] = f
}

// RegisterFontsFromResources loads every font of a resources dictionary.
// Fonts that cannot be read are left out and fall back to Helvetica.
func (e *Extractor) RegisterFontsFromResources(resources core.Dict) {
	e.loadFonts(resources, e.fonts)
}

func (e *Extractor) loadFonts(resources core.Dict, into map[string]*font.Font) {
	fonts, ok := e.resolve(resources.Get("Font")).(core.Dict)
	if !ok {
		return
	}
	for name, obj := range fonts {
		if dict, ok := e.resolve(obj).(core.Dict); ok {
			into[name] = font.Load(dict, e.resolve)
		}
	}
}

// Font returns the font registered under name, or the default font.
func (e *Extractor) Font(name string) *font.Font {
	return fontIn(e.fonts, name)
}

func fontIn(fonts map[string]*font.Font, name string) *font.Font {
	if f, ok := fonts[name]; ok {
		return f
	}
	f := font.Default()
	fonts[name] = f
	return f
}

// ExtractPage lays out the text drawn by a page's content streams,
// including text inside the form XObjects they paint.
func (e *Extractor) ExtractPage(page *pages.Page) (*Layout, error) {
	resources, err := page.Resources()
	if err != nil {
		return nil, err
	}
	e.RegisterFontsFromResources(resources)

	data, err := page.ContentData()
	if err != nil {
		return nil, err
	}
	ops, err := contentstream.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse content stream: %w", err)
	}
	return e.extract(ops, resources), nil
}

// ExtractFromBytes parses content stream data and lays out its text.
func (e *Extractor) ExtractFromBytes(data []byte) (*Layout, error) {
	ops, err := contentstream.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse content stream: %w", err)
	}
	return e.Extract(ops), nil
}

// Extract lays out the text shown by ops. Without resources, Do
// operators are not followed.
func (e *Extractor) Extract(ops []contentstream.Operation) *Layout {
	return e.extract(ops, nil)
}

func (e *Extractor) extract(ops []contentstream.Operation, resources core.Dict) *Layout {
	b := &builder{layout: &Layout{
		Ops:     ops,
		Streams: []Stream{{Ops: ops, Resources: resources, Parent: -1}},
	}}
	e.run(b, 0, e.fonts, graphicsstate.NewGraphicsState(), 0)
	b.layout.Text = b.sb.String()
	return b.layout
}

// run lays out the text of stream idx, starting from state gs.
func (e *Extractor) run(b *builder, idx int, fonts map[string]*font.Font, gs *graphicsstate.GraphicsState, depth int) {
	for i, op := range b.layout.Streams[idx].Ops {
		if gs.Apply(op) {
			continue
		}
		switch op.Operator {
		case "Tj", "'", "\"":
			if s, ok := gs.PrepareShow(op); ok {
				e.show(b, gs, fonts, glyphPos{stream: idx, op: i}, s)
			}
		case "TJ":
			if len(op.Operands) != 1 {
				continue
			}
			arr, ok := op.Operands[0].(core.Array)
			if !ok {
				continue
			}
			for j, item := range arr {
				switch v := item.(type) {
				case core.String:
					e.show(b, gs, fonts, glyphPos{stream: idx, op: i, elem: j}, v)
				case core.Int, core.Real:
					n, _ := core.Number(v)
					gs.Advance(gs.AdjustmentAdvance(n))
				}
			}
		case "Do":
			if depth < maxFormDepth && len(op.Operands) == 1 {
				if name, ok := op.Operands[0].(core.Name); ok {
					e.form(b, idx, string(name), fonts, gs, depth)
				}
			}
		}
	}
}

// form lays out the text of the form XObject painted as name from
// stream parent. Anything that is not a readable form is ignored.
func (e *Extractor) form(b *builder, parent int, name string, fonts map[string]*font.Font, gs *graphicsstate.GraphicsState, depth int) {
	res := b.layout.Streams[parent].Resources
	if res == nil {
		return
	}
	xobjs, ok := e.resolve(res.Get("XObject")).(core.Dict)
	if !ok {
		return
	}
	raw := xobjs[name]
	stream, ok := e.resolve(raw).(*core.Stream)
	if !ok {
		return
	}
	if t, _ := stream.Dict.GetName("Subtype"); t != "Form" {
		return
	}
	data, err := stream.Decode()
	if err != nil {
		return
	}
	ops, err := contentstream.Parse(data)
	if err != nil {
		return
	}

	m := model.Identity()
	if arr, ok := e.resolve(stream.Dict["Matrix"]).(core.Array); ok {
		if v, ok := arr.Floats(); ok {
			if fm, ok := model.MatrixFrom(v); ok {
				m = fm
			}
		}
	}
	formFonts := fonts
	formRes, ok := e.resolve(stream.Dict["Resources"]).(core.Dict)
	if ok {
		formFonts = make(map[string]*font.Font, len(fonts))
		for k, f := range fonts {
			formFonts[k] = f
		}
		e.loadFonts(formRes, formFonts)
	} else {
		formRes = res
	}

	ref, _ := raw.(core.IndirectRef)
	idx := len(b.layout.Streams)
	b.layout.Streams = append(b.layout.Streams, Stream{
		Ops:       ops,
		Resources: formRes,
		Form:      stream,
		Ref:       ref,
		Name:      name,
		Parent:    parent,
	})

	inner := graphicsstate.WithCTM(m.Multiply(gs.CTM))
	inner.Text = gs.Text
	e.run(b, idx, formFonts, inner, depth+1)
}

// glyphPos locates a string operand within the layout's streams.
type glyphPos struct {
	stream, op, elem int
}

// show lays out one string operand and advances the text matrix.
func (e *Extractor) show(b *builder, gs *graphicsstate.GraphicsState, fonts map[string]*font.Font, pos glyphPos, s core.String) {
	f := fontIn(fonts, gs.Text.FontName)
	fs := gs.Text.FontSize
	for k, code := range f.Split([]byte(s)) {
		w := f.Width(code)
		space := f.IsSpace(code)
		trm := gs.RenderingMatrix()
		box := model.NewRect(0, f.Descent/1000, w/1000, f.Ascent/1000).Transform(trm)

		disp := -w
		if fs != 0 {
			extra := gs.Text.CharSpacing
			if space {
				extra += gs.Text.WordSpacing
			}
			disp -= extra * 1000 / fs
		}

		b.add(Glyph{
			Stream:       pos.stream,
			Op:           pos.op,
			Elem:         pos.elem,
			Code:         k,
			Text:         f.Text(code),
			Bytes:        code.Bytes,
			Box:          box,
			Displacement: disp,
		}, trm, w/1000)
		gs.Advance(gs.GlyphAdvance(w/1000, space))
	}
}

// builder accumulates glyphs and inserts separators by geometry: a new
// baseline gives "\n", a gap along the baseline gives " ".
type builder struct {
	layout *Layout
	sb     strings.Builder

	has     bool
	lastEnd model.Point
	dir     model.Point
	size    float64
}

func (b *builder) add(g Glyph, trm model.Matrix, w0 float64) {
	origin := trm.Transform(model.Point{})
	unitX := trm.Transform(model.Point{X: 1})
	unitY := trm.Transform(model.Point{Y: 1})
	dir := model.Point{X: unitX.X - origin.X, Y: unitX.Y - origin.Y}
	if l := math.Hypot(dir.X, dir.Y); l > 0 {
		dir = model.Point{X: dir.X / l, Y: dir.Y / l}
	} else {
		dir = model.Point{X: 1}
	}

	if b.has && g.Text != "" {
		b.separate(origin, g.Text)
	}

	g.Start = b.sb.Len()
	b.sb.WriteString(g.Text)
	g.End = b.sb.Len()
	idx := len(b.layout.Glyphs)
	for i := g.Start; i < g.End; i++ {
		b.layout.owner = append(b.layout.owner, idx)
	}
	b.layout.Glyphs = append(b.layout.Glyphs, g)

	if g.Text != "" {
		b.lastEnd = trm.Transform(model.Point{X: w0})
		b.dir = dir
		b.size = math.Max(math.Hypot(unitY.X-origin.X, unitY.Y-origin.Y), 1e-6)
		b.has = true
	}
}

func (b *builder) separate(origin model.Point, next string) {
	dx, dy := origin.X-b.lastEnd.X, origin.Y-b.lastEnd.Y
	along := dx*b.dir.X + dy*b.dir.Y
	perp := -dx*b.dir.Y + dy*b.dir.X

	var sep string
	switch {
	case math.Abs(perp) > b.size*0.5, along < -b.size:
		sep = "\n"
	case along > b.size*0.2:
		sep = " "
	}
	if sep == "" {
		return
	}
	text := b.sb.String()
	if sep == " " && (strings.HasSuffix(text, " ") || strings.HasPrefix(next, " ")) {
		return
	}
	b.sb.WriteString(sep)
	for range sep {
		b.layout.owner = append(b.layout.owner, -1)
	}
}
