// Package model holds the value types shared across the de-identification
// pipeline: page geometry (points, rectangles, affine matrices) and the
// records that flow between the analyzer, the span resolver and the page
// redactor.
//
// All coordinates are PDF user-space units with the origin at the
// bottom-left of the page.
package model
