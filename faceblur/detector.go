package faceblur

import (
	_ "embed"
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
)

// facefinder is pigo's frontal face cascade.
//
//go:embed cascade/facefinder
var facefinder []byte

// Face is a detected face: its bounding box and detection quality.
type Face struct {
	Rect    image.Rectangle
	Quality float32
}

// Detector finds faces in an image.
type Detector interface {
	Detect(img image.Image) ([]Face, error)
}

// PigoDetector detects faces with a pigo cascade.
type PigoDetector struct {
	classifier *pigo.Pigo
	minSize    int
	shift      float64
	scale      float64
	iou        float64
	minQuality float32
}

// PigoOption tunes a PigoDetector.
type PigoOption func(*PigoDetector)

// WithMinSize sets the smallest face size searched, in pixels (default 30).
func WithMinSize(px int) PigoOption {
	return func(d *PigoDetector) { d.minSize = px }
}

// WithMinQuality drops detections scoring below q (default 5).
func WithMinQuality(q float32) PigoOption {
	return func(d *PigoDetector) { d.minQuality = q }
}

// NewPigoDetector unpacks a pigo cascade such as pigo's "facefinder".
func NewPigoDetector(cascade []byte, opts ...PigoOption) (*PigoDetector, error) {
	classifier, err := unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpacking face cascade: %w", err)
	}
	d := &PigoDetector{
		classifier: classifier,
		minSize:    30,
		shift:      0.1,
		scale:      1.1,
		iou:        0.2,
		minQuality: 5,
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// unpack guards against pigo indexing past the end of a truncated cascade.
func unpack(cascade []byte) (classifier *pigo.Pigo, err error) {
	defer func() {
		if r := recover(); r != nil {
			classifier, err = nil, fmt.Errorf("corrupt cascade: %v", r)
		}
	}()
	return pigo.NewPigo().Unpack(cascade)
}

// NewDefaultDetector returns a detector using the bundled facefinder
// cascade.
func NewDefaultDetector(opts ...PigoOption) (*PigoDetector, error) {
	return NewPigoDetector(facefinder, opts...)
}

// LoadPigoDetector reads the cascade at path.
func LoadPigoDetector(path string, opts ...PigoOption) (*PigoDetector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading face cascade: %w", err)
	}
	return NewPigoDetector(data, opts...)
}

// Detect runs the cascade over the grayscale image and returns clustered
// detections clipped to the image.
func (d *PigoDetector) Detect(img image.Image) ([]Face, error) {
	b := img.Bounds()
	cols, rows := b.Dx(), b.Dy()
	if cols == 0 || rows == 0 {
		return nil, nil
	}
	maxSize := cols
	if rows > maxSize {
		maxSize = rows
	}
	params := pigo.CascadeParams{
		MinSize:     d.minSize,
		MaxSize:     maxSize,
		ShiftFactor: d.shift,
		ScaleFactor: d.scale,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(img),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}
	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, d.iou)

	var faces []Face
	for _, det := range dets {
		if det.Q < d.minQuality {
			continue
		}
		half := det.Scale / 2
		r := image.Rect(det.Col-half, det.Row-half, det.Col+half, det.Row+half).
			Add(b.Min).Intersect(b)
		if r.Empty() {
			continue
		}
		faces = append(faces, Face{Rect: r, Quality: det.Q})
	}
	return faces, nil
}
