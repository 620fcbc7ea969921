package graphicsstate

import (
	"fmt"

	"github.com/alzaheer/privacyshield/model"
)

// GraphicsState represents the parts of the PDF graphics state that affect
// where things land on the page.
type GraphicsState struct {
	// Current Transformation Matrix
	CTM model.Matrix

	// Text state
	Text TextState

	// Graphics state stack (for q/Q operators)
	stack []saved
}

type saved struct {
	ctm  model.Matrix
	text TextState
}

// TextState represents text-specific state
type TextState struct {
	// Font resource name and size (Tf)
	FontName string
	FontSize float64

	CharSpacing float64 // Tc
	WordSpacing float64 // Tw

	// Horizontal scaling in percent (Tz)
	HorizontalScaling float64

	Leading       float64 // TL
	RenderingMode int     // Tr
	Rise          float64 // Ts

	TextMatrix     model.Matrix
	TextLineMatrix model.Matrix
}

// NewGraphicsState creates a new graphics state with default values
func NewGraphicsState() *GraphicsState {
	return &GraphicsState{
		CTM: model.Identity(),
		Text: TextState{
			HorizontalScaling: 100,
			TextMatrix:        model.Identity(),
			TextLineMatrix:    model.Identity(),
		},
	}
}

// WithCTM creates a graphics state whose CTM starts at m, as used for
// form XObjects painted under an outer transformation.
func WithCTM(m model.Matrix) *GraphicsState {
	gs := NewGraphicsState()
	gs.CTM = m
	return gs
}

// Depth returns the number of saved states.
func (gs *GraphicsState) Depth() int { return len(gs.stack) }

// Save pushes the current graphics state onto the stack (q operator)
func (gs *GraphicsState) Save() {
	gs.stack = append(gs.stack, saved{ctm: gs.CTM, text: gs.Text})
}

// Restore pops a graphics state from the stack (Q operator)
func (gs *GraphicsState) Restore() error {
	if len(gs.stack) == 0 {
		return fmt.Errorf("graphics state stack underflow")
	}
	s := gs.stack[len(gs.stack)-1]
	gs.stack = gs.stack[:len(gs.stack)-1]
	gs.CTM = s.ctm
	// the text matrices are not part of the saved graphics state
	tm, tlm := gs.Text.TextMatrix, gs.Text.TextLineMatrix
	gs.Text = s.text
	gs.Text.TextMatrix, gs.Text.TextLineMatrix = tm, tlm
	return nil
}

// Concat premultiplies the CTM by m (cm operator)
func (gs *GraphicsState) Concat(m model.Matrix) {
	gs.CTM = m.Multiply(gs.CTM)
}

// SetFont sets the current font (Tf operator)
func (gs *GraphicsState) SetFont(name string, size float64) {
	gs.Text.FontName = name
	gs.Text.FontSize = size
}

// BeginText resets the text matrices (BT operator)
func (gs *GraphicsState) BeginText() {
	gs.Text.TextMatrix = model.Identity()
	gs.Text.TextLineMatrix = model.Identity()
}

// SetTextMatrix sets the text matrix (Tm operator)
func (gs *GraphicsState) SetTextMatrix(m model.Matrix) {
	gs.Text.TextMatrix = m
	gs.Text.TextLineMatrix = m
}

// TranslateText starts a new line offset from the current one (Td operator)
func (gs *GraphicsState) TranslateText(tx, ty float64) {
	gs.Text.TextLineMatrix = model.Translate(tx, ty).Multiply(gs.Text.TextLineMatrix)
	gs.Text.TextMatrix = gs.Text.TextLineMatrix
}

// TranslateTextSetLeading translates text and sets leading (TD operator)
func (gs *GraphicsState) TranslateTextSetLeading(tx, ty float64) {
	gs.Text.Leading = -ty
	gs.TranslateText(tx, ty)
}

// NextLine moves to next line (T* operator)
func (gs *GraphicsState) NextLine() {
	gs.TranslateText(0, -gs.Text.Leading)
}

// Advance moves the text matrix along the baseline by tx text-space units
// after a glyph or a TJ adjustment.
func (gs *GraphicsState) Advance(tx float64) {
	gs.Text.TextMatrix = model.Translate(tx, 0).Multiply(gs.Text.TextMatrix)
}

// Scale returns the horizontal scaling as a factor.
func (gs *GraphicsState) Scale() float64 {
	return gs.Text.HorizontalScaling / 100
}

// RenderingMatrix returns the text rendering matrix that maps glyph space
// (already divided by 1000) into page space.
func (gs *GraphicsState) RenderingMatrix() model.Matrix {
	t := gs.Text
	m := model.Matrix{t.FontSize * gs.Scale(), 0, 0, t.FontSize, 0, t.Rise}
	return m.Multiply(t.TextMatrix).Multiply(gs.CTM)
}

// GlyphAdvance returns the horizontal displacement, in text space, of a
// glyph of width w0 (glyph units / 1000). Word spacing applies only to
// the single-byte code 32.
func (gs *GraphicsState) GlyphAdvance(w0 float64, isSpace bool) float64 {
	t := gs.Text
	tx := w0*t.FontSize + t.CharSpacing
	if isSpace {
		tx += t.WordSpacing
	}
	return tx * gs.Scale()
}

// AdjustmentAdvance returns the displacement of a TJ number n.
func (gs *GraphicsState) AdjustmentAdvance(n float64) float64 {
	return -n / 1000 * gs.Text.FontSize * gs.Scale()
}
