// Package faceblur finds faces in raster images and blurs them.
//
// Detection uses a pigo cascade; blurring shrinks each face region and
// scales it back up with a Catmull-Rom kernel. Blurred images are
// re-encoded as JPEG.
package faceblur
