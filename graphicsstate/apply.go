package graphicsstate

import (
	"github.com/alzaheer/privacyshield/contentstream"
	"github.com/alzaheer/privacyshield/core"
	"github.com/alzaheer/privacyshield/model"
)

// Apply updates the state for the graphics and text state operators in op
// and reports whether op was one of them. Text showing, painting and
// XObject operators are left to the caller. Malformed operands leave the
// state unchanged.
func (gs *GraphicsState) Apply(op contentstream.Operation) bool {
	n := nums(op.Operands)
	switch op.Operator {
	case "q":
		gs.Save()
	case "Q":
		// unbalanced Q is ignored
		_ = gs.Restore()
	case "cm":
		if m, ok := model.MatrixFrom(n); ok {
			gs.Concat(m)
		}
	case "BT":
		gs.BeginText()
	case "ET":
	case "Tf":
		if len(op.Operands) == 2 {
			name, _ := op.Operands[0].(core.Name)
			size, _ := core.Number(op.Operands[1])
			gs.SetFont(string(name), size)
		}
	case "Tc":
		if len(n) == 1 {
			gs.Text.CharSpacing = n[0]
		}
	case "Tw":
		if len(n) == 1 {
			gs.Text.WordSpacing = n[0]
		}
	case "Tz":
		if len(n) == 1 {
			gs.Text.HorizontalScaling = n[0]
		}
	case "TL":
		if len(n) == 1 {
			gs.Text.Leading = n[0]
		}
	case "Ts":
		if len(n) == 1 {
			gs.Text.Rise = n[0]
		}
	case "Tr":
		if len(n) == 1 {
			gs.Text.RenderingMode = int(n[0])
		}
	case "Tm":
		if m, ok := model.MatrixFrom(n); ok {
			gs.SetTextMatrix(m)
		}
	case "Td":
		if len(n) == 2 {
			gs.TranslateText(n[0], n[1])
		}
	case "TD":
		if len(n) == 2 {
			gs.TranslateTextSetLeading(n[0], n[1])
		}
	case "T*":
		gs.NextLine()
	default:
		return false
	}
	return true
}

// PrepareShow performs the line movement that the ' and " operators do
// before showing their string, and returns the string operand.
func (gs *GraphicsState) PrepareShow(op contentstream.Operation) (core.String, bool) {
	switch op.Operator {
	case "Tj":
		if len(op.Operands) == 1 {
			s, ok := op.Operands[0].(core.String)
			return s, ok
		}
	case "'":
		if len(op.Operands) == 1 {
			gs.NextLine()
			s, ok := op.Operands[0].(core.String)
			return s, ok
		}
	case "\"":
		if len(op.Operands) == 3 {
			if aw, ok := core.Number(op.Operands[0]); ok {
				gs.Text.WordSpacing = aw
			}
			if ac, ok := core.Number(op.Operands[1]); ok {
				gs.Text.CharSpacing = ac
			}
			gs.NextLine()
			s, ok := op.Operands[2].(core.String)
			return s, ok
		}
	}
	return "", false
}

// nums returns the operands as numbers, or nil if any is not numeric.
func nums(operands []core.Object) []float64 {
	out := make([]float64, 0, len(operands))
	for _, o := range operands {
		f, ok := core.Number(o)
		if !ok {
			return nil
		}
		out = append(out, f)
	}
	return out
}
