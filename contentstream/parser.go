package contentstream

import (
	"errors"
	"fmt"

	"github.com/alzaheer/privacyshield/core"
)

// Operation represents a single content stream operation: an operator and
// the operands that precede it.
type Operation struct {
	Operator string
	Operands []core.Object

	// Image is set for inline images, where Operator is "BI".
	Image *InlineImage
}

// InlineImage holds a BI ... ID ... EI sequence.
type InlineImage struct {
	Dict core.Dict
	Data []byte
}

// Parse parses a content stream and returns all operations in order.
// Trailing operands without an operator are discarded.
func Parse(data []byte) ([]Operation, error) {
	p := core.NewContentParser(data)
	var ops []Operation
	var operands []core.Object
	for {
		obj, kw, err := p.Next()
		if errors.Is(err, core.ErrEOF) {
			return ops, nil
		}
		if err != nil {
			return ops, fmt.Errorf("content stream at offset %d: %w", p.Lexer().Pos(), err)
		}
		if kw == nil {
			operands = append(operands, obj)
			continue
		}

		op := Operation{Operator: string(kw), Operands: operands}
		operands = nil
		if op.Operator == "BI" {
			img, err := parseInlineImage(p.Lexer())
			if err != nil {
				return ops, err
			}
			op.Image = img
		}
		ops = append(ops, op)
	}
}

// parseInlineImage reads the key/value pairs after BI, then the raw data
// between ID and EI.
func parseInlineImage(l *core.Lexer) (*InlineImage, error) {
	p := core.NewContentParser(l.Data())
	p.Seek(l.Pos())
	dict := core.Dict{}
	for {
		obj, kw, err := p.Next()
		if err != nil {
			return nil, fmt.Errorf("inline image: %w", err)
		}
		if kw != nil {
			if string(kw) != "ID" {
				return nil, fmt.Errorf("inline image: unexpected %q before ID", kw)
			}
			break
		}
		key, ok := obj.(core.Name)
		if !ok {
			return nil, fmt.Errorf("inline image: key is %s, not a name", obj.Type())
		}
		val, kw, err := p.Next()
		if err != nil || kw != nil {
			return nil, fmt.Errorf("inline image: missing value for /%s", key)
		}
		dict[string(key)] = val
	}

	data := l.Data()
	start := p.Lexer().Pos()
	if start < len(data) && core.IsWhitespace(data[start]) {
		start++
	}
	end := findEI(data, start)
	if end < 0 {
		return nil, fmt.Errorf("inline image at offset %d has no EI", start)
	}
	stop := end
	if stop > start && core.IsWhitespace(data[stop-1]) {
		stop--
	}
	img := &InlineImage{Dict: dict, Data: data[start:stop]}
	l.Seek(end + 2)
	return img, nil
}

// findEI returns the offset of the EI operator that ends inline image data
// starting at from: "EI" preceded by white-space and followed by
// white-space or end of data.
func findEI(data []byte, from int) int {
	for i := from; i+1 < len(data); i++ {
		if data[i] != 'E' || data[i+1] != 'I' {
			continue
		}
		if i > from && !core.IsWhitespace(data[i-1]) {
			continue
		}
		if i+2 < len(data) && !core.IsWhitespace(data[i+2]) && !core.IsDelimiter(data[i+2]) {
			continue
		}
		return i
	}
	return -1
}
