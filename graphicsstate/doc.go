// Package graphicsstate tracks the PDF graphics state while a content
// stream is interpreted: the CTM, the q/Q stack and the text state with
// its text and line matrices.
//
//	gs := graphicsstate.NewGraphicsState()
//	for _, op := range ops {
//	    if gs.Apply(op) {
//	        continue
//	    }
//	    // text showing, painting, Do ...
//	}
//
// [GraphicsState.RenderingMatrix] and [GraphicsState.GlyphAdvance] give
// the position and advance of each shown glyph, which is what text layout
// and redaction need.
package graphicsstate
