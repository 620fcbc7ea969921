package core

import (
	"bytes"
	"fmt"
	"testing"
)

// buildClassic writes objects with a classic xref table and returns the file.
func buildClassic(objs []string, trailer string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n%s\nstartxref\n%d\n%%%%EOF\n", trailer, xref)
	return buf.Bytes()
}

func TestLoadXRefClassic(t *testing.T) {
	data := buildClassic([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [] /Count 0 >>",
	}, "<< /Size 3 /Root 1 0 R >>")

	table, err := LoadXRef(data)
	if err != nil {
		t.Fatalf("LoadXRef: %v", err)
	}
	if len(table.Entries) != 3 {
		t.Errorf("entries = %d, want 3", len(table.Entries))
	}
	e, ok := table.Get(2)
	if !ok || e.Kind != XRefInUse {
		t.Fatalf("entry 2 = %+v", e)
	}
	p := NewParser(data)
	p.Seek(e.Offset)
	ind, err := p.ParseIndirectObject()
	if err != nil {
		t.Fatal(err)
	}
	if ty, _ := ind.Object.(Dict).GetName("Type"); ty != "Pages" {
		t.Errorf("object 2 type = %q", ty)
	}
	if root, _ := table.Trailer.GetIndirectRef("Root"); root.Number != 1 {
		t.Errorf("root = %v", root)
	}
}

func TestLoadXRefStream(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.5\n")
	off1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	off2 := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n")
	xrefOff := buf.Len()

	// W [1 2 1]: type, offset, generation
	rows := []byte{
		0, 0, 0, 255,
		1, byte(off1 >> 8), byte(off1), 0,
		1, byte(off2 >> 8), byte(off2), 0,
		2, 0, 9, 4,
	}
	fmt.Fprintf(&buf, "3 0 obj\n<< /Type /XRef /Size 4 /W [1 2 1] /Root 1 0 R /Length %d >>\nstream\n", len(rows))
	buf.Write(rows)
	fmt.Fprintf(&buf, "\nendstream\nendobj\nstartxref\n%d\n%%%%EOF\n", xrefOff)

	table, err := LoadXRef(buf.Bytes())
	if err != nil {
		t.Fatalf("LoadXRef: %v", err)
	}
	if e, _ := table.Get(1); e.Kind != XRefInUse || e.Offset != off1 {
		t.Errorf("entry 1 = %+v, want offset %d", e, off1)
	}
	if e, _ := table.Get(3); e.Kind != XRefCompressed || e.Stream != 9 || e.Index != 4 {
		t.Errorf("entry 3 = %+v", e)
	}
	if e, _ := table.Get(0); e.Kind != XRefFree {
		t.Errorf("entry 0 = %+v", e)
	}
}

func TestLoadXRefIncremental(t *testing.T) {
	base := buildClassic([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [] /Count 0 >>",
	}, "<< /Size 3 /Root 1 0 R >>")
	firstXRef, _ := FindStartXRef(base)

	var buf bytes.Buffer
	buf.Write(base)
	off := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 0 /Updated true >>\nendobj\n")
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n2 1\n%010d 00000 n \ntrailer\n<< /Size 3 /Root 1 0 R /Prev %d >>\nstartxref\n%d\n%%%%EOF\n", off, firstXRef, xref)

	table, err := LoadXRef(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if e, _ := table.Get(2); e.Offset != off {
		t.Errorf("entry 2 offset = %d, want updated %d", e.Offset, off)
	}
	if _, ok := table.Get(1); !ok {
		t.Error("entry 1 from the original section is missing")
	}
}

func TestReconstructXRef(t *testing.T) {
	data := buildClassic([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [] /Count 0 >>",
	}, "<< /Size 3 /Root 1 0 R >>")
	// break the startxref pointer
	broken := bytes.Replace(data, []byte("startxref"), []byte("startxrex"), 1)
	if _, err := LoadXRef(broken); err == nil {
		t.Fatal("expected LoadXRef to fail")
	}
	table, err := ReconstructXRef(broken)
	if err != nil {
		t.Fatal(err)
	}
	if len(table.Entries) != 2 {
		t.Errorf("entries = %d, want 2", len(table.Entries))
	}
	if _, ok := table.Trailer["Root"]; !ok {
		t.Error("trailer lost /Root")
	}
}

func TestObjectStream(t *testing.T) {
	body := "10 0 11 6 (one) <</A 2>>"
	header := "10 0 11 6 "
	s, err := NewFlateStream(Dict{"Type": Name("ObjStm"), "N": Int(2), "First": Int(len(header))}, []byte(body))
	if err != nil {
		t.Fatal(err)
	}
	os, err := NewObjectStream(s)
	if err != nil {
		t.Fatal(err)
	}
	if os.N() != 2 {
		t.Fatalf("N = %d", os.N())
	}
	num, obj, err := os.Object(1)
	if err != nil {
		t.Fatal(err)
	}
	if num != 11 || Format(obj) != "<</A 2>>" {
		t.Errorf("object 1 = %d %s", num, Format(obj))
	}
	if o, ok := os.Find(10); !ok || o.(String) != "one" {
		t.Errorf("Find(10) = %v, %v", o, ok)
	}
}
