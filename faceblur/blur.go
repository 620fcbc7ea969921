package faceblur

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/image/draw"
)

var tracer = otel.Tracer("github.com/alzaheer/privacyshield/faceblur")

const (
	// DefaultStrength is the blur kernel size in pixels.
	DefaultStrength = 50
	// DefaultQuality is the JPEG quality of blurred images.
	DefaultQuality = 95
)

// Blurrer blurs the faces found by a Detector. It never fails: when an
// image cannot be processed its input is returned unchanged.
type Blurrer struct {
	detector Detector
	strength int
	quality  int
	logger   zerolog.Logger
}

// Option configures a Blurrer.
type Option func(*Blurrer)

// WithStrength sets the blur kernel size; even values are rounded up to
// the next odd one.
func WithStrength(px int) Option {
	return func(b *Blurrer) { b.strength = px }
}

// WithQuality sets the output JPEG quality (1-100).
func WithQuality(q int) Option {
	return func(b *Blurrer) { b.quality = q }
}

// WithLogger sets the logger; the global zerolog logger is used otherwise.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Blurrer) { b.logger = l }
}

// New creates a Blurrer. A nil detector finds no faces.
func New(detector Detector, opts ...Option) *Blurrer {
	b := &Blurrer{
		detector: detector,
		strength: DefaultStrength,
		quality:  DefaultQuality,
		logger:   log.Logger,
	}
	for _, o := range opts {
		o(b)
	}
	if b.strength < 1 {
		b.strength = 1
	}
	if b.strength%2 == 0 {
		b.strength++
	}
	if b.quality < 1 || b.quality > 100 {
		b.quality = DefaultQuality
	}
	return b
}

// Blur decodes a JPEG or PNG image, blurs every detected face and
// returns the result as JPEG.
func (b *Blurrer) Blur(ctx context.Context, data []byte) []byte {
	_, span := tracer.Start(ctx, "faceblur.blur")
	defer span.End()

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		b.logger.Warn().Err(err).Msg("image not decodable; kept as is")
		return data
	}
	out, faces, err := b.BlurImage(img)
	if err != nil {
		b.logger.Warn().Err(err).Msg("face detection failed; image kept as is")
		return data
	}
	span.SetAttributes(attribute.Int("faces", len(faces)))

	enc, err := b.encode(out)
	if err != nil {
		b.logger.Warn().Err(err).Msg("encoding blurred image failed; image kept as is")
		return data
	}
	b.logger.Debug().Int("faces", len(faces)).Msg("image blurred")
	return enc
}

// BlurImage returns a copy of img with every detected face blurred, and
// the faces.
func (b *Blurrer) BlurImage(img image.Image) (image.Image, []Face, error) {
	faces, err := b.detect(img)
	if err != nil {
		return nil, nil, err
	}
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, img, bounds.Min, draw.Src)
	for _, f := range faces {
		b.blurRegion(out, f.Rect)
	}
	return out, faces, nil
}

func (b *Blurrer) detect(img image.Image) ([]Face, error) {
	if b.detector == nil {
		return nil, nil
	}
	return b.detector.Detect(img)
}

// blurRegion smooths r by shrinking it to about four samples per kernel
// width and scaling it back with Catmull-Rom.
func (b *Blurrer) blurRegion(dst *image.RGBA, r image.Rectangle) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	step := b.strength / 4
	if step < 1 {
		step = 1
	}
	sw, sh := (r.Dx()+step-1)/step, (r.Dy()+step-1)/step
	small := image.NewRGBA(image.Rect(0, 0, sw, sh))
	draw.CatmullRom.Scale(small, small.Bounds(), dst, r, draw.Src, nil)
	draw.CatmullRom.Scale(dst, r, small, small.Bounds(), draw.Src, nil)
}

func (b *Blurrer) encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: b.quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Stats describes the faces found in an image.
type Stats struct {
	Faces  int               `json:"num_faces"`
	Rects  []image.Rectangle `json:"face_regions"`
	Width  int               `json:"width"`
	Height int               `json:"height"`
}

// Stats detects faces without changing the image.
func (b *Blurrer) Stats(data []byte) (Stats, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Stats{}, fmt.Errorf("decoding image: %w", err)
	}
	faces, err := b.detect(img)
	if err != nil {
		return Stats{}, fmt.Errorf("detecting faces: %w", err)
	}
	s := Stats{Faces: len(faces), Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}
	for _, f := range faces {
		s.Rects = append(s.Rects, f.Rect)
	}
	return s, nil
}

var outline = color.RGBA{G: 255, A: 255}

// Preview returns the image as JPEG with a green frame around every
// detected face, or the input when it cannot be processed.
func (b *Blurrer) Preview(data []byte) []byte {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}
	faces, err := b.detect(img)
	if err != nil {
		return data
	}
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	for _, f := range faces {
		frame(out, f.Rect, 2)
	}
	enc, err := b.encode(out)
	if err != nil {
		return data
	}
	return enc
}

func frame(dst *image.RGBA, r image.Rectangle, width int) {
	u := image.NewUniform(outline)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width),
		image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y),
		image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), u, image.Point{}, draw.Src)
	}
}
