package redact

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sort"

	"github.com/rs/zerolog"

	"github.com/alzaheer/privacyshield/contentstream"
	"github.com/alzaheer/privacyshield/core"
	"github.com/alzaheer/privacyshield/document"
	"github.com/alzaheer/privacyshield/graphicsstate"
	"github.com/alzaheer/privacyshield/model"
	"github.com/alzaheer/privacyshield/pages"
)

// DefaultPlacement is where an image is drawn when no operator on the
// page draws it.
var DefaultPlacement = model.NewRect(0, 0, 100, 100)

const maxFormDepth = 8

// errUnsupported marks image encodings that cannot be handed to the blurrer.
var errUnsupported = fmt.Errorf("unsupported image encoding")

// SanitizeStats counts what happened to a page's images.
type SanitizeStats struct {
	Found    int
	Replaced int
	Skipped  int
	Failed   int
	// Errors holds one *Error per skipped or failed image.
	Errors []error
}

// ImageSanitizer replaces every raster image on a page with the output of
// a Blurrer.
type ImageSanitizer struct {
	doc      *document.Document
	blurrer  Blurrer
	logger   zerolog.Logger
	replaced map[int]bool
}

// NewImageSanitizer creates a sanitizer for pages of doc. Images shared
// by several pages are replaced once, on the first page that draws them.
func NewImageSanitizer(doc *document.Document, blurrer Blurrer, logger zerolog.Logger) *ImageSanitizer {
	return &ImageSanitizer{doc: doc, blurrer: blurrer, logger: logger, replaced: make(map[int]bool)}
}

// pageImage is an ImageRef together with what is needed to replace it.
type pageImage struct {
	model.ImageRef
	ref    core.IndirectRef // zero for an image stored directly in the resources
	stream *core.Stream
}

// Images lists the raster images of a page: those drawn by the content
// stream (also through form XObjects) in drawing order, followed by the
// undrawn images of the page resources.
func (s *ImageSanitizer) Images(page *pages.Page) ([]model.ImageRef, error) {
	imgs, err := s.collect(page)
	if err != nil {
		return nil, err
	}
	out := make([]model.ImageRef, len(imgs))
	for i, img := range imgs {
		out[i] = img.ImageRef
	}
	return out, nil
}

func (s *ImageSanitizer) collect(page *pages.Page) ([]pageImage, error) {
	res, err := page.Resources()
	if err != nil {
		return nil, err
	}
	data, err := page.ContentData()
	if err != nil {
		return nil, err
	}
	ops, err := contentstream.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse content stream: %w", err)
	}

	var found []pageImage
	seen := make(map[*core.Stream]bool)
	s.walk(ops, res, model.Identity(), 0, page.Index, func(img pageImage) {
		if !seen[img.stream] {
			seen[img.stream] = true
			found = append(found, img)
		}
	})

	// images in the resources that nothing draws
	xobjs, _ := s.doc.MustResolve(res["XObject"]).(core.Dict)
	names := make([]string, 0, len(xobjs))
	for name := range xobjs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		img, ok := s.lookup(xobjs, name, page.Index)
		if !ok || seen[img.stream] {
			continue
		}
		if t, _ := img.stream.Dict.GetName("Subtype"); t != "Image" {
			continue
		}
		seen[img.stream] = true
		found = append(found, img)
	}
	return found, nil
}

// lookup resolves an XObject resource into a pageImage without placement.
func (s *ImageSanitizer) lookup(xobjs core.Dict, name string, pageIndex int) (pageImage, bool) {
	raw := xobjs[name]
	stream, ok := s.doc.MustResolve(raw).(*core.Stream)
	if !ok {
		return pageImage{}, false
	}
	ref, isRef := raw.(core.IndirectRef)
	if isRef {
		ref = s.doc.Current(ref)
	}
	return pageImage{
		ImageRef: model.ImageRef{
			Number:     ref.Number,
			Name:       name,
			Page:       pageIndex,
			Descriptor: describe(stream, s.doc.MustResolve),
			Data:       stream.Data,
		},
		ref:    ref,
		stream: stream,
	}, true
}

// walk follows the graphics state through ops and reports every image
// drawn with Do, descending into form XObjects.
func (s *ImageSanitizer) walk(ops []contentstream.Operation, res core.Dict, ctm model.Matrix, depth, pageIndex int, emit func(pageImage)) {
	gs := graphicsstate.WithCTM(ctm)
	xobjs, _ := s.doc.MustResolve(res["XObject"]).(core.Dict)
	for _, op := range ops {
		if gs.Apply(op) || op.Operator != "Do" || len(op.Operands) != 1 {
			continue
		}
		name, ok := op.Operands[0].(core.Name)
		if !ok {
			continue
		}
		img, ok := s.lookup(xobjs, string(name), pageIndex)
		if !ok {
			continue
		}
		switch t, _ := img.stream.Dict.GetName("Subtype"); t {
		case "Image":
			img.Placement = model.NewRect(0, 0, 1, 1).Transform(gs.CTM)
			img.HasPlacement = true
			emit(img)
		case "Form":
			if depth >= maxFormDepth {
				continue
			}
			m := model.Identity()
			if arr, ok := s.doc.MustResolve(img.stream.Dict["Matrix"]).(core.Array); ok {
				if v, ok := arr.Floats(); ok {
					if fm, ok := model.MatrixFrom(v); ok {
						m = fm
					}
				}
			}
			formRes, ok := s.doc.MustResolve(img.stream.Dict["Resources"]).(core.Dict)
			if !ok {
				formRes = res
			}
			data, err := img.stream.Decode()
			if err != nil {
				continue
			}
			formOps, err := contentstream.Parse(data)
			if err != nil {
				continue
			}
			s.walk(formOps, formRes, m.Multiply(gs.CTM), depth+1, pageIndex, emit)
		}
	}
}

// Sanitize replaces each image of the page with the blurrer's output.
// The blurrer is called for every supported image and its result always
// installed, even when it equals the input. Per-image failures are
// logged and counted; the returned error is only for failures that
// prevent looking at the page at all.
func (s *ImageSanitizer) Sanitize(ctx context.Context, page *pages.Page) (SanitizeStats, error) {
	var stats SanitizeStats
	err := s.sanitize(ctx, page, &stats)
	return stats, err
}

// sanitize is Sanitize counting into stats as each image is handled.
func (s *ImageSanitizer) sanitize(ctx context.Context, page *pages.Page, stats *SanitizeStats) error {
	imgs, err := s.collect(page)
	if err != nil {
		return newError(ImageReplaceFailed, page.Index, -1, err)
	}

	var fallback []string
	for i, img := range imgs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if img.ref.Number != 0 && s.replaced[img.ref.Number] {
			continue
		}
		stats.Found++

		fail := func(kind Kind, err error) {
			e := newError(kind, page.Index, i, err)
			stats.Errors = append(stats.Errors, e)
			ev := s.logger.Warn()
			if kind == ImageDecodeUnsupported {
				stats.Skipped++
				ev = s.logger.Info()
			} else {
				stats.Failed++
			}
			ev.Int("page", page.Index).Int("image", i).Str("name", img.Name).
				Str("kind", kind.String()).Err(err).Msg("image not replaced")
		}

		input, err := encodeForBlur(img.stream, img.Descriptor)
		if err != nil {
			fail(ImageDecodeUnsupported, err)
			continue
		}
		output := s.blurrer.Blur(ctx, input)
		repl, err := imageStream(output, img.stream)
		if err != nil {
			fail(ImageReplaceFailed, err)
			continue
		}

		if img.ref.Number == 0 {
			*img.stream = *repl
		} else {
			newRef, err := s.doc.ReplaceObject(img.ref, repl)
			if err != nil {
				fail(ImageReplaceFailed, err)
				continue
			}
			s.replaced[img.ref.Number] = true
			s.replaced[newRef.Number] = true
		}
		stats.Replaced++
		if !img.HasPlacement {
			fallback = append(fallback, img.Name)
		}
		s.logger.Debug().Int("page", page.Index).Int("image", i).Str("name", img.Name).
			Bool("placed", img.HasPlacement).Msg("image replaced")
	}

	if len(fallback) > 0 {
		if err := s.drawAtDefault(page, fallback); err != nil {
			return newError(ImageReplaceFailed, page.Index, -1, err)
		}
	}
	return nil
}

// drawAtDefault appends operators that paint the named images at
// DefaultPlacement.
func (s *ImageSanitizer) drawAtDefault(page *pages.Page, names []string) error {
	data, err := page.ContentData()
	if err != nil {
		return err
	}
	r := DefaultPlacement
	var ops []contentstream.Operation
	for _, name := range names {
		ops = append(ops,
			contentstream.Op("q"),
			contentstream.Op("cm", contentstream.Nums(r.Width(), 0, 0, r.Height(), r.X0, r.Y0)...),
			contentstream.Op("Do", core.Name(name)),
			contentstream.Op("Q"),
		)
	}
	var buf bytes.Buffer
	buf.WriteString("q\n")
	buf.Write(data)
	buf.WriteString("\nQ\n")
	buf.Write(contentstream.Write(ops))
	return s.doc.SetPageContent(page, buf.Bytes())
}

// describe reads the encoding parameters of an image XObject.
func describe(s *core.Stream, resolve func(core.Object) core.Object) model.ImageDescriptor {
	d := model.ImageDescriptor{}
	if w, ok := core.Number(resolve(s.Dict["Width"])); ok {
		d.Width = int(w)
	}
	if h, ok := core.Number(resolve(s.Dict["Height"])); ok {
		d.Height = int(h)
	}
	if bpc, ok := core.Number(resolve(s.Dict["BitsPerComponent"])); ok {
		d.BitsPerComponent = int(bpc)
	}
	if names, _ := s.Filters(); len(names) > 0 {
		d.Filter = names[len(names)-1]
	}
	if mask, _ := s.Dict.GetBool("ImageMask"); mask {
		d.ColorSpace, d.Components, d.BitsPerComponent = "ImageMask", 1, 1
		return d
	}

	switch cs := resolve(s.Dict["ColorSpace"]).(type) {
	case core.Name:
		d.ColorSpace = string(cs)
	case core.Array:
		if n, ok := cs.Get(0).(core.Name); ok {
			d.ColorSpace = string(n)
		}
		if d.ColorSpace == "ICCBased" {
			if icc, ok := resolve(cs.Get(1)).(*core.Stream); ok {
				if n, ok := icc.Dict.GetInt("N"); ok {
					d.Components = int(n)
				}
			}
		}
	}
	switch d.ColorSpace {
	case "DeviceGray", "CalGray", "G":
		d.Components = 1
	case "DeviceRGB", "CalRGB", "RGB":
		d.Components = 3
	case "DeviceCMYK", "CMYK":
		d.Components = 4
	case "Indexed", "I", "Separation", "DeviceN", "Pattern", "Lab":
		d.Components = 0
	}
	return d
}

// encodeForBlur returns the image as JPEG or PNG bytes, or an error
// wrapping errUnsupported.
func encodeForBlur(s *core.Stream, d model.ImageDescriptor) ([]byte, error) {
	if d.ColorSpace == "ImageMask" {
		return nil, fmt.Errorf("%w: stencil mask", errUnsupported)
	}
	data, codec, err := s.DecodeImage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUnsupported, err)
	}

	switch codec {
	case "DCTDecode":
		if d.Components == 4 {
			return nil, fmt.Errorf("%w: CMYK JPEG", errUnsupported)
		}
		if _, err := jpeg.DecodeConfig(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("%w: %v", errUnsupported, err)
		}
		return data, nil
	case "":
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupported, codec)
	}

	img, err := rasterize(data, d, decodeInverted(s))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeInverted reports a /Decode array of [1 0], the only remapping
// supported for gray images.
func decodeInverted(s *core.Stream) bool {
	arr, ok := s.Dict.GetArray("Decode")
	if !ok || len(arr) < 2 {
		return false
	}
	v, ok := arr.Floats()
	return ok && v[0] == 1 && v[1] == 0
}

// rasterize turns decoded samples into an image. Supported: 8-bit gray
// and RGB, and 1-bit gray.
func rasterize(data []byte, d model.ImageDescriptor, invert bool) (image.Image, error) {
	w, h := d.Width, d.Height
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: bad dimensions %dx%d", errUnsupported, w, h)
	}
	switch {
	case d.Components == 1 && d.BitsPerComponent == 8:
		if len(data) < w*h {
			return nil, fmt.Errorf("%w: short image data", errUnsupported)
		}
		img := image.NewGray(image.Rect(0, 0, w, h))
		copy(img.Pix, data[:w*h])
		if invert {
			for i := range img.Pix {
				img.Pix[i] = 255 - img.Pix[i]
			}
		}
		return img, nil
	case d.Components == 1 && d.BitsPerComponent == 1:
		stride := (w + 7) / 8
		if len(data) < stride*h {
			return nil, fmt.Errorf("%w: short image data", errUnsupported)
		}
		img := image.NewGray(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			row := data[y*stride:]
			for x := 0; x < w; x++ {
				bit := row[x/8]>>(7-uint(x%8))&1 == 1
				if bit != invert {
					img.Pix[y*w+x] = 255
				}
			}
		}
		return img, nil
	case d.Components == 3 && d.BitsPerComponent == 8:
		if len(data) < w*h*3 {
			return nil, fmt.Errorf("%w: short image data", errUnsupported)
		}
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		for i := 0; i < w*h; i++ {
			img.Pix[i*4] = data[i*3]
			img.Pix[i*4+1] = data[i*3+1]
			img.Pix[i*4+2] = data[i*3+2]
			img.Pix[i*4+3] = 255
		}
		return img, nil
	}
	return nil, fmt.Errorf("%w: %s with %d components at %d bits", errUnsupported, d.ColorSpace, d.Components, d.BitsPerComponent)
}

// imageStream builds the replacement XObject for encoded image bytes.
// JPEG data is stored as is; anything else is decoded and stored as
// Flate-compressed samples. Soft masks carry over when the size matches.
func imageStream(data []byte, orig *core.Stream) (*core.Stream, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("blurred image unreadable: %w", err)
	}
	dict := core.Dict{
		"Type":             core.Name("XObject"),
		"Subtype":          core.Name("Image"),
		"Width":            core.Int(cfg.Width),
		"Height":           core.Int(cfg.Height),
		"BitsPerComponent": core.Int(8),
	}
	ow, _ := orig.Dict.GetInt("Width")
	oh, _ := orig.Dict.GetInt("Height")
	if int(ow) == cfg.Width && int(oh) == cfg.Height {
		for _, k := range []string{"SMask", "Mask", "Interpolate", "Intent"} {
			if v, ok := orig.Dict[k]; ok {
				dict[k] = v
			}
		}
	}

	if format == "jpeg" {
		switch cfg.ColorModel {
		case color.GrayModel:
			dict["ColorSpace"] = core.Name("DeviceGray")
		case color.CMYKModel:
			return nil, fmt.Errorf("blurred image is CMYK")
		default:
			dict["ColorSpace"] = core.Name("DeviceRGB")
		}
		dict["Filter"] = core.Name("DCTDecode")
		return &core.Stream{Dict: dict, Data: data}, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("blurred image unreadable: %w", err)
	}
	b := img.Bounds()
	var samples []byte
	if g, ok := img.(*image.Gray); ok {
		dict["ColorSpace"] = core.Name("DeviceGray")
		samples = make([]byte, 0, b.Dx()*b.Dy())
		for y := b.Min.Y; y < b.Max.Y; y++ {
			samples = append(samples, g.Pix[g.PixOffset(b.Min.X, y):g.PixOffset(b.Max.X, y)]...)
		}
	} else {
		dict["ColorSpace"] = core.Name("DeviceRGB")
		samples = make([]byte, 0, b.Dx()*b.Dy()*3)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
				samples = append(samples, c.R, c.G, c.B)
			}
		}
	}
	return core.NewFlateStream(dict, samples)
}
