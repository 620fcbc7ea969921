// Package pages flattens the PDF page tree and gives access to page
// attributes.
//
// [PageTree] walks /Kids depth first, collecting the inheritable
// attributes (MediaBox, CropBox, Resources, Rotate) of every ancestor so a
// [Page] can answer them without following /Parent. Cycles and absurdly
// deep trees are reported as errors.
//
// Page dictionaries are the document's own objects: writing to
// [Page.Dict] changes what gets saved.
package pages
