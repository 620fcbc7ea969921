package redact

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alzaheer/privacyshield/core"
	"github.com/alzaheer/privacyshield/document"
	"github.com/alzaheer/privacyshield/internal/pdftest"
	"github.com/alzaheer/privacyshield/model"
)

func openDoc(t *testing.T, data []byte) *document.Document {
	t.Helper()
	doc, err := document.OpenBytes(data)
	require.NoError(t, err)
	t.Cleanup(func() { _ = doc.Close() })
	return doc
}

func imageDoc(t *testing.T) (*document.Document, core.IndirectRef, []byte) {
	t.Helper()
	jpg := pdftest.JPEG(pdftest.Gradient(32, 24))
	b := pdftest.New()
	img := b.AddImage(jpg, 32, 24)
	b.AddPage(pdftest.Page{
		Content: pdftest.Text("Photo below") + pdftest.DrawImage("Im1", 100, 200, 50, 60),
		Images:  map[string]core.IndirectRef{"Im1": img},
	})
	return openDoc(t, b.Bytes()), img, jpg
}

func TestImagesPlacement(t *testing.T) {
	doc, ref, jpg := imageDoc(t)
	page, err := doc.Page(0)
	require.NoError(t, err)

	imgs, err := NewImageSanitizer(doc, &recordingBlurrer{}, nopLogger()).Images(page)
	require.NoError(t, err)
	require.Len(t, imgs, 1)

	img := imgs[0]
	assert.Equal(t, ref.Number, img.Number)
	assert.Equal(t, "Im1", img.Name)
	assert.True(t, img.HasPlacement)
	assert.Equal(t, model.NewRect(100, 200, 150, 260), img.Placement)
	assert.Equal(t, model.ImageDescriptor{
		Width: 32, Height: 24, ColorSpace: "DeviceRGB", Components: 3, BitsPerComponent: 8, Filter: "DCTDecode",
	}, img.Descriptor)
	assert.Equal(t, jpg, img.Data)
}

func TestSanitizeUnchangedBlurStillReplaces(t *testing.T) {
	doc, ref, jpg := imageDoc(t)
	page, err := doc.Page(0)
	require.NoError(t, err)
	blur := &recordingBlurrer{}
	s := NewImageSanitizer(doc, blur, nopLogger())

	stats, err := s.Sanitize(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Found)
	assert.Equal(t, 1, stats.Replaced)
	require.Equal(t, 1, blur.calls())
	assert.Equal(t, jpg, blur.inputs[0])

	assert.False(t, doc.Has(ref), "old image object must be gone")
	imgs, err := s.Images(page)
	require.NoError(t, err)
	require.Len(t, imgs, 1)
	assert.NotEqual(t, ref.Number, imgs[0].Number)
	assert.Equal(t, model.NewRect(100, 200, 150, 260), imgs[0].Placement)

	var buf bytes.Buffer
	require.NoError(t, doc.Save(&buf))
	out := openDoc(t, buf.Bytes())
	outPage, err := out.Page(0)
	require.NoError(t, err)
	outImgs, err := NewImageSanitizer(out, blur, nopLogger()).Images(outPage)
	require.NoError(t, err)
	assert.Len(t, outImgs, 1)
	assert.Equal(t, jpg, outImgs[0].Data)
}

func TestSanitizeInstallsBlurredImage(t *testing.T) {
	doc, _, _ := imageDoc(t)
	page, err := doc.Page(0)
	require.NoError(t, err)

	gray := image.NewGray(image.Rect(0, 0, 16, 12))
	blurred := pdftest.JPEG(gray)
	s := NewImageSanitizer(doc, &recordingBlurrer{out: blurred}, nopLogger())
	_, err = s.Sanitize(context.Background(), page)
	require.NoError(t, err)

	imgs, err := s.Images(page)
	require.NoError(t, err)
	require.Len(t, imgs, 1)
	assert.Equal(t, blurred, imgs[0].Data)
	assert.Equal(t, 16, imgs[0].Descriptor.Width)
	assert.Equal(t, "DeviceGray", imgs[0].Descriptor.ColorSpace)
	assert.Equal(t, model.NewRect(100, 200, 150, 260), imgs[0].Placement, "placement is unchanged")
}

func TestSanitizeSharedImageOnce(t *testing.T) {
	b := pdftest.New()
	img := b.AddImage(pdftest.JPEG(pdftest.Gradient(8, 8)), 8, 8)
	for i := 0; i < 2; i++ {
		b.AddPage(pdftest.Page{
			Content: pdftest.DrawImage("Im1", 0, 0, 10, 10),
			Images:  map[string]core.IndirectRef{"Im1": img},
		})
	}
	doc := openDoc(t, b.Bytes())
	blur := &recordingBlurrer{}
	s := NewImageSanitizer(doc, blur, nopLogger())

	p0, err := doc.Page(0)
	require.NoError(t, err)
	p1, err := doc.Page(1)
	require.NoError(t, err)

	st0, err := s.Sanitize(context.Background(), p0)
	require.NoError(t, err)
	st1, err := s.Sanitize(context.Background(), p1)
	require.NoError(t, err)

	assert.Equal(t, 1, st0.Replaced)
	assert.Equal(t, 0, st1.Found)
	assert.Equal(t, 1, blur.calls())

	i0, _ := s.Images(p0)
	i1, _ := s.Images(p1)
	require.Len(t, i0, 1)
	require.Len(t, i1, 1)
	assert.Equal(t, i0[0].Number, i1[0].Number)
	assert.NotEqual(t, img.Number, i0[0].Number)
}

func TestSanitizeRawImages(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		w, h  int
		cs    string
		bpc   int
		check func(t *testing.T, img image.Image)
	}{
		{
			name: "8-bit gray", data: []byte{0, 64, 128, 255, 10, 20, 30, 40}, w: 4, h: 2, cs: "DeviceGray", bpc: 8,
			check: func(t *testing.T, img image.Image) {
				assert.Equal(t, color.Gray{Y: 128}, color.GrayModel.Convert(img.At(2, 0)))
			},
		},
		{
			name: "1-bit gray", data: []byte{0xF0}, w: 8, h: 1, cs: "DeviceGray", bpc: 1,
			check: func(t *testing.T, img image.Image) {
				assert.Equal(t, color.Gray{Y: 255}, color.GrayModel.Convert(img.At(0, 0)))
				assert.Equal(t, color.Gray{Y: 0}, color.GrayModel.Convert(img.At(7, 0)))
			},
		},
		{
			name: "8-bit rgb", data: []byte{255, 0, 0, 0, 255, 0}, w: 2, h: 1, cs: "DeviceRGB", bpc: 8,
			check: func(t *testing.T, img image.Image) {
				r, g, _, _ := img.At(1, 0).RGBA()
				assert.Zero(t, r)
				assert.Equal(t, uint32(0xffff), g)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := pdftest.New()
			ref := b.AddRawImage(tt.data, tt.w, tt.h, tt.cs, tt.bpc)
			b.AddPage(pdftest.Page{
				Content: pdftest.DrawImage("Im1", 10, 10, 20, 20),
				Images:  map[string]core.IndirectRef{"Im1": ref},
			})
			doc := openDoc(t, b.Bytes())
			page, err := doc.Page(0)
			require.NoError(t, err)
			blur := &recordingBlurrer{}

			stats, err := NewImageSanitizer(doc, blur, nopLogger()).Sanitize(context.Background(), page)
			require.NoError(t, err)
			assert.Equal(t, 1, stats.Replaced)
			require.Equal(t, 1, blur.calls())

			img, err := png.Decode(bytes.NewReader(blur.inputs[0]))
			require.NoError(t, err)
			assert.Equal(t, image.Rect(0, 0, tt.w, tt.h), img.Bounds())
			tt.check(t, img)
		})
	}
}

func TestSanitizeSkipsUnsupported(t *testing.T) {
	b := pdftest.New()
	ref := b.AddRawImage(make([]byte, 16), 2, 2, "DeviceCMYK", 8)
	b.AddPage(pdftest.Page{
		Content: pdftest.DrawImage("Im1", 0, 0, 10, 10),
		Images:  map[string]core.IndirectRef{"Im1": ref},
	})
	doc := openDoc(t, b.Bytes())
	page, err := doc.Page(0)
	require.NoError(t, err)
	blur := &recordingBlurrer{}

	stats, err := NewImageSanitizer(doc, blur, nopLogger()).Sanitize(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Found)
	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, stats.Replaced)
	assert.Zero(t, blur.calls())
	require.Len(t, stats.Errors, 1)
	assert.Equal(t, ImageDecodeUnsupported, KindOf(stats.Errors[0]))
	assert.True(t, doc.Has(ref))
}

func TestSanitizeUnreadableBlurOutput(t *testing.T) {
	doc, ref, _ := imageDoc(t)
	page, err := doc.Page(0)
	require.NoError(t, err)

	stats, err := NewImageSanitizer(doc, &recordingBlurrer{out: []byte("not an image")}, nopLogger()).
		Sanitize(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	require.Len(t, stats.Errors, 1)
	assert.Equal(t, ImageReplaceFailed, KindOf(stats.Errors[0]))
	assert.True(t, doc.Has(ref), "image stays when its replacement is unusable")
}

func TestSanitizeWithoutPlacement(t *testing.T) {
	b := pdftest.New()
	ref := b.AddImage(pdftest.JPEG(pdftest.Gradient(8, 8)), 8, 8)
	b.AddPage(pdftest.Page{
		Content: pdftest.Text("no drawing operator"),
		Images:  map[string]core.IndirectRef{"Im1": ref},
	})
	doc := openDoc(t, b.Bytes())
	page, err := doc.Page(0)
	require.NoError(t, err)
	s := NewImageSanitizer(doc, &recordingBlurrer{}, nopLogger())

	imgs, err := s.Images(page)
	require.NoError(t, err)
	require.Len(t, imgs, 1)
	assert.False(t, imgs[0].HasPlacement)

	stats, err := s.Sanitize(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Replaced)

	imgs, err = s.Images(page)
	require.NoError(t, err)
	require.Len(t, imgs, 1)
	assert.True(t, imgs[0].HasPlacement)
	assert.Equal(t, DefaultPlacement, imgs[0].Placement)
	assert.Contains(t, docTexts(t, doc)[0], "no drawing operator")
}

func TestImagesInsideForm(t *testing.T) {
	b := pdftest.New()
	img := b.AddImage(pdftest.JPEG(pdftest.Gradient(4, 4)), 4, 4)
	form := b.Add(&core.Stream{
		Dict: core.Dict{
			"Type":      core.Name("XObject"),
			"Subtype":   core.Name("Form"),
			"BBox":      core.Array{core.Int(0), core.Int(0), core.Int(100), core.Int(100)},
			"Matrix":    core.Array{core.Int(2), core.Int(0), core.Int(0), core.Int(2), core.Int(10), core.Int(10)},
			"Resources": core.Dict{"XObject": core.Dict{"Im1": img}},
		},
		Data: []byte("q 20 0 0 10 0 0 cm /Im1 Do Q"),
	})
	b.AddPage(pdftest.Page{
		Content: "q 1 0 0 1 100 100 cm /Fm1 Do Q",
		Images:  map[string]core.IndirectRef{"Fm1": form},
	})
	doc := openDoc(t, b.Bytes())
	page, err := doc.Page(0)
	require.NoError(t, err)
	s := NewImageSanitizer(doc, &recordingBlurrer{}, nopLogger())

	imgs, err := s.Images(page)
	require.NoError(t, err)
	require.Len(t, imgs, 1)
	assert.Equal(t, img.Number, imgs[0].Number)
	assert.Equal(t, model.NewRect(110, 110, 150, 130), imgs[0].Placement)

	stats, err := s.Sanitize(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Replaced)
	assert.False(t, doc.Has(img))
}
