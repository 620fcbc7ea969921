package model

import (
	"math"
	"testing"
)

func TestMatrixMultiplyOrder(t *testing.T) {
	// scale then translate
	m := Scale(2, 2).Multiply(Translate(10, 5))
	got := m.Transform(Point{1, 1})
	if got != (Point{12, 7}) {
		t.Errorf("got %v, want {12 7}", got)
	}
}

func TestRectTransform(t *testing.T) {
	r := Rect{0, 0, 1, 1}.Transform(Matrix{100, 0, 0, 50, 72, 600})
	want := Rect{72, 600, 172, 650}
	if r != want {
		t.Errorf("got %v, want %v", r, want)
	}

	// 90 degree rotation keeps bounds normalized
	rot := Matrix{0, 1, -1, 0, 0, 0}
	r = Rect{0, 0, 10, 20}.Transform(rot)
	if r != (Rect{-20, 0, 0, 10}) {
		t.Errorf("rotated = %v", r)
	}
}

func TestRectOps(t *testing.T) {
	a := NewRect(10, 10, 0, 0)
	if a != (Rect{0, 0, 10, 10}) {
		t.Fatalf("NewRect not normalized: %v", a)
	}
	b := Rect{5, 5, 20, 8}
	if !a.Intersects(b) {
		t.Error("expected intersection")
	}
	if a.Intersects(Rect{10, 0, 20, 10}) {
		t.Error("touching edges should not intersect")
	}
	if u := a.Union(b); u != (Rect{0, 0, 20, 10}) {
		t.Errorf("union = %v", u)
	}
	if !a.Contains(a.Center()) {
		t.Error("rect should contain its center")
	}
	if (Rect{0, 0, 0, 5}).Area() != 0 || !(Rect{0, 0, 0, 5}).IsEmpty() {
		t.Error("degenerate rect should be empty")
	}
	if e := a.Expand(1); math.Abs(e.Width()-12) > 1e-9 {
		t.Errorf("expand width = %v", e.Width())
	}
}

func TestRectFromPoints(t *testing.T) {
	r := RectFromPoints(Point{3, 4}, Point{-1, 9}, Point{2, 0})
	if r != (Rect{-1, 0, 3, 9}) {
		t.Errorf("got %v", r)
	}
	if RectFromPoints() != (Rect{}) {
		t.Error("no points should give zero rect")
	}
}

func TestPageOffsetRangeContains(t *testing.T) {
	r := PageOffsetRange{Page: 1, Start: 10, End: 20}
	for off, want := range map[int]bool{9: false, 10: true, 19: true, 20: false} {
		if r.Contains(off) != want {
			t.Errorf("Contains(%d) = %v", off, !want)
		}
	}
}
