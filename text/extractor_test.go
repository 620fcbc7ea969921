package text

import (
	"math"
	"testing"

	"github.com/alzaheer/privacyshield/core"
	"github.com/alzaheer/privacyshield/document"
	"github.com/alzaheer/privacyshield/internal/pdftest"
)

func identity(o core.Object) core.Object { return o }

func extract(t *testing.T, content string) *Layout {
	t.Helper()
	layout, err := NewExtractor(identity).ExtractFromBytes([]byte(content))
	if err != nil {
		t.Fatalf("ExtractFromBytes: %v", err)
	}
	return layout
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestLayoutText(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"single show", "BT /F1 12 Tf 72 720 Td (Hello World) Tj ET", "Hello World"},
		{"next line", "BT /F1 12 Tf 14 TL 72 720 Td (line one) Tj T* (line two) Tj ET", "line one\nline two"},
		{"quote operator", "BT /F1 12 Tf 14 TL 72 720 Td (a) Tj (b) ' ET", "a\nb"},
		{"kerning gap", "BT /F1 12 Tf 72 720 Td [(Hello) -2000 (World)] TJ ET", "Hello World"},
		{"tight kerning", "BT /F1 12 Tf 72 720 Td [(Wo) 80 (rld)] TJ ET", "World"},
		{"separate objects same line", "BT /F1 12 Tf 72 720 Td (left) Tj ET BT /F1 12 Tf 300 720 Td (right) Tj ET", "left right"},
		{"explicit space not doubled", "BT /F1 12 Tf 72 720 Td (a ) Tj ET BT /F1 12 Tf 300 720 Td (b) Tj ET", "a b"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extract(t, tt.content).Text; got != tt.want {
				t.Errorf("Text = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGlyphGeometry(t *testing.T) {
	l := extract(t, "BT /F1 10 Tf 1 Tc 72 700 Td (AB) Tj ET")
	if len(l.Glyphs) != 2 {
		t.Fatalf("got %d glyphs", len(l.Glyphs))
	}
	a, b := l.Glyphs[0], l.Glyphs[1]

	// Helvetica A is 667 units wide
	if !near(a.Box.X0, 72) || !near(a.Box.X1, 72+6.67) {
		t.Errorf("A box = %+v", a.Box)
	}
	if !near(a.Box.Y0, 700-2.07) || !near(a.Box.Y1, 700+7.18) {
		t.Errorf("A box = %+v", a.Box)
	}
	// B starts after A's advance plus 1pt character spacing
	if !near(b.Box.X0, 72+6.67+1) {
		t.Errorf("B x0 = %v", b.Box.X0)
	}
	if !near(a.Displacement, -(667 + 100)) {
		t.Errorf("Displacement = %v", a.Displacement)
	}
	if a.Op != 4 || a.Code != 0 || b.Code != 1 {
		t.Errorf("glyph indices = %+v %+v", a, b)
	}
}

func TestTransformedText(t *testing.T) {
	l := extract(t, "q 2 0 0 2 100 100 cm BT /F1 10 Tf 0 0 Td (A) Tj ET Q")
	box := l.Glyphs[0].Box
	if !near(box.X0, 100) || !near(box.X1, 100+2*6.67) {
		t.Errorf("box = %+v", box)
	}
}

func TestTJElementIndices(t *testing.T) {
	l := extract(t, "BT /F1 12 Tf [(ab) -50 (c)] TJ ET")
	want := []struct{ elem, code int }{{0, 0}, {0, 1}, {2, 0}}
	for i, w := range want {
		g := l.Glyphs[i]
		if g.Elem != w.elem || g.Code != w.code {
			t.Errorf("glyph %d: elem %d code %d, want %d %d", i, g.Elem, g.Code, w.elem, w.code)
		}
	}
}

func TestSearch(t *testing.T) {
	l := extract(t, "BT /F1 12 Tf 14 TL 72 720 Td (John Smith met John Smith) Tj T* (and John Smith) Tj ET")

	matches := l.Search("John Smith")
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3", len(matches))
	}
	for _, m := range matches {
		if got := l.Text[m.Start:m.End]; got != "John Smith" {
			t.Errorf("match text = %q", got)
		}
		if m.Last-m.First+1 != len("John Smith") {
			t.Errorf("match covers %d glyphs", m.Last-m.First+1)
		}
		if m.Rect.IsEmpty() {
			t.Error("empty match rectangle")
		}
	}
	if matches[2].Rect.Y0 >= matches[0].Rect.Y0 {
		t.Error("third match should be on the lower line")
	}

	if got := l.Search("nobody"); len(got) != 0 {
		t.Errorf("unexpected matches: %v", got)
	}
	if got := l.Search("aa"); len(got) != 0 {
		t.Errorf("unexpected matches: %v", got)
	}
	if got := extract(t, "BT /F1 12 Tf (aaaa) Tj ET").Search("aa"); len(got) != 2 {
		t.Errorf("overlapping search returned %d matches, want 2", len(got))
	}
}

func TestGlyphAt(t *testing.T) {
	l := extract(t, "BT /F1 12 Tf 14 TL (ab) Tj T* (c) Tj ET")
	want := []int{0, 1, -1, 2}
	for i, w := range want {
		if got := l.GlyphAt(i); got != w {
			t.Errorf("GlyphAt(%d) = %d, want %d", i, got, w)
		}
	}
	if l.GlyphAt(99) != -1 {
		t.Error("out of range offset should give -1")
	}
}

func TestExtractPage(t *testing.T) {
	doc, err := document.OpenBytes(pdftest.TextDocument("Name: John Smith\nSSN: 123-45-6789"))
	if err != nil {
		t.Fatal(err)
	}
	defer doc.Close()
	page, err := doc.Page(0)
	if err != nil {
		t.Fatal(err)
	}
	l, err := NewExtractor(doc.MustResolve).ExtractPage(page)
	if err != nil {
		t.Fatalf("ExtractPage: %v", err)
	}
	if l.Text != "Name: John Smith\nSSN: 123-45-6789" {
		t.Errorf("Text = %q", l.Text)
	}
}

func TestExtractPageFollowsForms(t *testing.T) {
	b := pdftest.New()
	photo := b.AddImage(pdftest.JPEG(pdftest.Gradient(4, 4)), 4, 4)
	form := b.Add(&core.Stream{
		Dict: core.Dict{
			"Type":      core.Name("XObject"),
			"Subtype":   core.Name("Form"),
			"BBox":      core.Array{core.Int(0), core.Int(0), core.Int(612), core.Int(792)},
			"Matrix":    core.Array{core.Int(1), core.Int(0), core.Int(0), core.Int(1), core.Int(0), core.Int(-100)},
			"Resources": core.Dict{"Font": core.Dict{"F1": core.IndirectRef{Number: 3}}},
		},
		Data: []byte("BT /F1 12 Tf 72 720 Td (SSN: 123-45-6789) Tj ET"),
	})
	b.AddPage(pdftest.Page{
		Content: pdftest.Text("Name: John Smith") + "/Fm1 Do\n" + pdftest.DrawImage("Im1", 0, 0, 10, 10),
		Images:  map[string]core.IndirectRef{"Fm1": form, "Im1": photo},
	})
	doc, err := document.OpenBytes(b.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	defer doc.Close()
	page, err := doc.Page(0)
	if err != nil {
		t.Fatal(err)
	}

	l, err := NewExtractor(doc.MustResolve).ExtractPage(page)
	if err != nil {
		t.Fatalf("ExtractPage: %v", err)
	}
	if l.Text != "Name: John Smith\nSSN: 123-45-6789" {
		t.Errorf("Text = %q", l.Text)
	}
	if len(l.Streams) != 2 {
		t.Fatalf("got %d streams, want page and form", len(l.Streams))
	}
	fs := l.Streams[1]
	if fs.Name != "Fm1" || fs.Parent != 0 || fs.Ref != form || fs.Form == nil {
		t.Errorf("form stream = %+v", fs)
	}

	m := l.Search("123-45-6789")
	if len(m) != 1 {
		t.Fatalf("got %d matches", len(m))
	}
	g := l.Glyphs[m[0].First]
	if g.Stream != 1 || g.Op != 3 {
		t.Errorf("glyph stream/op = %d/%d, want 1/3", g.Stream, g.Op)
	}
	// the form matrix moves the text down 100pt
	if !near(m[0].Rect.Y0, 620-2.484) {
		t.Errorf("match rect = %+v", m[0].Rect)
	}
}
