// Package pdftest builds small PDF files for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strings"

	"github.com/alzaheer/privacyshield/core"
)

// Page describes one page of a test document.
type Page struct {
	Width, Height float64
	Content       string
	// Images maps resource names to image objects added with AddImage.
	Images map[string]core.IndirectRef
}

// Builder accumulates objects and writes them as a PDF with a classic
// xref table. Object 1 is the catalog, 2 the page tree root and 3 the
// Helvetica font registered as /F1 on every page.
type Builder struct {
	objs  []core.Object
	pages core.Array
}

// New returns an empty builder.
func New() *Builder {
	b := &Builder{}
	b.objs = []core.Object{
		core.Dict{"Type": core.Name("Catalog"), "Pages": core.IndirectRef{Number: 2}},
		nil,
		core.Dict{
			"Type":     core.Name("Font"),
			"Subtype":  core.Name("Type1"),
			"BaseFont": core.Name("Helvetica"),
			"Encoding": core.Name("WinAnsiEncoding"),
		},
	}
	return b
}

// Add appends an object and returns its reference.
func (b *Builder) Add(obj core.Object) core.IndirectRef {
	b.objs = append(b.objs, obj)
	return core.IndirectRef{Number: len(b.objs)}
}

// AddImage adds an image XObject holding JPEG data.
func (b *Builder) AddImage(jpg []byte, width, height int) core.IndirectRef {
	return b.Add(&core.Stream{
		Dict: core.Dict{
			"Type":             core.Name("XObject"),
			"Subtype":          core.Name("Image"),
			"Width":            core.Int(width),
			"Height":           core.Int(height),
			"ColorSpace":       core.Name("DeviceRGB"),
			"BitsPerComponent": core.Int(8),
			"Filter":           core.Name("DCTDecode"),
		},
		Data: jpg,
	})
}

// AddRawImage adds an uncompressed image XObject.
func (b *Builder) AddRawImage(data []byte, width, height int, colorSpace string, bpc int) core.IndirectRef {
	return b.Add(&core.Stream{
		Dict: core.Dict{
			"Type":             core.Name("XObject"),
			"Subtype":          core.Name("Image"),
			"Width":            core.Int(width),
			"Height":           core.Int(height),
			"ColorSpace":       core.Name(colorSpace),
			"BitsPerComponent": core.Int(bpc),
		},
		Data: data,
	})
}

// AddForm adds a form XObject painting content, with /F1 and the given
// XObjects in its resources.
func (b *Builder) AddForm(content string, xobjects map[string]core.IndirectRef) core.IndirectRef {
	res := core.Dict{"Font": core.Dict{"F1": core.IndirectRef{Number: 3}}}
	if len(xobjects) > 0 {
		xobj := core.Dict{}
		for name, ref := range xobjects {
			xobj[name] = ref
		}
		res["XObject"] = xobj
	}
	return b.Add(&core.Stream{
		Dict: core.Dict{
			"Type":      core.Name("XObject"),
			"Subtype":   core.Name("Form"),
			"BBox":      core.Array{core.Int(0), core.Int(0), core.Int(612), core.Int(792)},
			"Resources": res,
		},
		Data: []byte(content),
	})
}

// AddPage appends a page. Zero dimensions default to US Letter.
func (b *Builder) AddPage(p Page) *Builder {
	if p.Width == 0 {
		p.Width = 612
	}
	if p.Height == 0 {
		p.Height = 792
	}
	res := core.Dict{"Font": core.Dict{"F1": core.IndirectRef{Number: 3}}}
	if len(p.Images) > 0 {
		xobj := core.Dict{}
		for name, ref := range p.Images {
			xobj[name] = ref
		}
		res["XObject"] = xobj
	}
	contents := b.Add(&core.Stream{Dict: core.Dict{}, Data: []byte(p.Content)})
	ref := b.Add(core.Dict{
		"Type":      core.Name("Page"),
		"Parent":    core.IndirectRef{Number: 2},
		"MediaBox":  core.Array{core.Int(0), core.Int(0), core.Real(p.Width), core.Real(p.Height)},
		"Resources": res,
		"Contents":  contents,
	})
	b.pages = append(b.pages, ref)
	return b
}

// Bytes serializes the document.
func (b *Builder) Bytes() []byte {
	b.objs[1] = core.Dict{
		"Type":  core.Name("Pages"),
		"Kids":  b.pages,
		"Count": core.Int(len(b.pages)),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
	offsets := make([]int, len(b.objs))
	for i, obj := range b.objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n", i+1)
		_ = core.WriteObject(&buf, obj)
		buf.WriteString("\nendobj\n")
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(b.objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	buf.WriteString("trailer\n")
	_ = core.WriteObject(&buf, core.Dict{"Size": core.Int(len(b.objs) + 1), "Root": core.IndirectRef{Number: 1}})
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xref)
	return buf.Bytes()
}

// Text returns content that shows each line in 12pt /F1, starting at
// (72, 720) with 14pt leading.
func Text(lines ...string) string {
	var sb strings.Builder
	sb.WriteString("BT\n/F1 12 Tf\n14 TL\n72 720 Td\n")
	for i, line := range lines {
		if i > 0 {
			sb.WriteString("T*\n")
		}
		sb.WriteString(core.Format(core.String(line)))
		sb.WriteString(" Tj\n")
	}
	sb.WriteString("ET\n")
	return sb.String()
}

// DrawImage returns content that paints image name into the rectangle
// (x, y, w, h).
func DrawImage(name string, x, y, w, h float64) string {
	return fmt.Sprintf("q\n%g 0 0 %g %g %g cm\n/%s Do\nQ\n", w, h, x, y, name)
}

// TextDocument builds a document with one text page per entry; each
// entry is split into lines on "\n".
func TextDocument(pages ...string) []byte {
	b := New()
	for _, p := range pages {
		b.AddPage(Page{Content: Text(strings.Split(p, "\n")...)})
	}
	return b.Bytes()
}

// Gradient returns a w×h RGB image with a smooth gradient.
func Gradient(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 255 / w), uint8(y * 255 / h), 128, 255})
		}
	}
	return img
}

// JPEG encodes img at quality 90.
func JPEG(img image.Image) []byte {
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	return buf.Bytes()
}
