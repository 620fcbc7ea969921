package filters

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// FlateDecode inflates zlib data and reverses any predictor named in params.
//
// Truncated or corrupt streams are common in the wild; whatever inflated
// before the error is returned without error.
func FlateDecode(data []byte, params Params) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("flate: %w", err)
	}
	defer zr.Close()

	var out bytes.Buffer
	if _, err := io.Copy(&out, zr); err != nil && out.Len() == 0 {
		return nil, fmt.Errorf("flate: %w", err)
	}
	return unpredict(out.Bytes(), params)
}

// FlateEncode deflates data at the default compression level.
func FlateEncode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("flate encode: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("flate encode: %w", err)
	}
	return buf.Bytes(), nil
}

// unpredict reverses the Predictor transform shared by Flate and LZW.
func unpredict(data []byte, params Params) ([]byte, error) {
	predictor := intParam(params, "Predictor", 1)
	switch {
	case predictor <= 1:
		return data, nil
	case predictor == 2:
		return tiffUnpredict(data, params)
	case predictor >= 10 && predictor <= 15:
		return pngUnpredict(data, params)
	}
	return nil, fmt.Errorf("predictor %d: %w", predictor, ErrUnsupported)
}

type rowGeometry struct {
	colors, bpc, columns int
}

func geometry(params Params) rowGeometry {
	return rowGeometry{
		colors:  intParam(params, "Colors", 1),
		bpc:     intParam(params, "BitsPerComponent", 8),
		columns: intParam(params, "Columns", 1),
	}
}

func (g rowGeometry) rowBytes() int {
	return (g.columns*g.colors*g.bpc + 7) / 8
}

func (g rowGeometry) pixelBytes() int {
	n := g.colors * g.bpc / 8
	if n < 1 {
		return 1
	}
	return n
}

// tiffUnpredict handles TIFF predictor 2 for 8-bit components.
func tiffUnpredict(data []byte, params Params) ([]byte, error) {
	g := geometry(params)
	if g.bpc != 8 {
		return nil, fmt.Errorf("tiff predictor with %d bits per component: %w", g.bpc, ErrUnsupported)
	}
	row := g.rowBytes()
	if row <= 0 || len(data)%row != 0 {
		return nil, fmt.Errorf("tiff predictor: data length %d is not a multiple of row length %d", len(data), row)
	}
	out := make([]byte, len(data))
	copy(out, data)
	for start := 0; start < len(out); start += row {
		for i := start + g.colors; i < start+row; i++ {
			out[i] += out[i-g.colors]
		}
	}
	return out, nil
}

// pngUnpredict reverses PNG row filters. Every row carries its own filter
// type byte, so the specific predictor value 10-15 is only a hint.
func pngUnpredict(data []byte, params Params) ([]byte, error) {
	g := geometry(params)
	row := g.rowBytes()
	bpp := g.pixelBytes()
	stride := row + 1
	if row <= 0 {
		return nil, fmt.Errorf("png predictor: invalid row length %d", row)
	}
	if len(data)%stride != 0 {
		return nil, fmt.Errorf("png predictor: data length %d is not a multiple of row length %d", len(data), stride)
	}

	rows := len(data) / stride
	out := make([]byte, rows*row)
	prev := make([]byte, row)
	for r := 0; r < rows; r++ {
		kind := data[r*stride]
		src := data[r*stride+1 : (r+1)*stride]
		cur := out[r*row : (r+1)*row]
		for i := 0; i < row; i++ {
			var left, upLeft byte
			if i >= bpp {
				left = cur[i-bpp]
				upLeft = prev[i-bpp]
			}
			up := prev[i]
			switch kind {
			case 0:
				cur[i] = src[i]
			case 1:
				cur[i] = src[i] + left
			case 2:
				cur[i] = src[i] + up
			case 3:
				cur[i] = src[i] + byte((int(left)+int(up))/2)
			case 4:
				cur[i] = src[i] + paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("png predictor: unknown filter type %d in row %d", kind, r)
			}
		}
		prev = cur
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := absInt(p-int(a)), absInt(p-int(b)), absInt(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
