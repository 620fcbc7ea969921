package core

import (
	"fmt"
	"strconv"
)

// ObjectStream represents a decoded object stream (Type /ObjStm). The
// header of N "objnum offset" pairs is parsed once; objects are parsed on
// demand.
type ObjectStream struct {
	data    []byte
	first   int
	numbers []int
	offsets []int
}

// NewObjectStream decodes s and parses its header.
func NewObjectStream(s *Stream) (*ObjectStream, error) {
	if s == nil {
		return nil, fmt.Errorf("object stream is nil")
	}
	if t, _ := s.Dict.GetName("Type"); t != "ObjStm" {
		return nil, fmt.Errorf("stream has /Type %q, not ObjStm", t)
	}
	n, ok := s.Dict.GetInt("N")
	if !ok || n < 0 {
		return nil, fmt.Errorf("object stream has invalid /N")
	}
	first, ok := s.Dict.GetInt("First")
	if !ok || first < 0 {
		return nil, fmt.Errorf("object stream has invalid /First")
	}
	data, err := s.Decode()
	if err != nil {
		return nil, fmt.Errorf("object stream: %w", err)
	}
	if int(first) > len(data) {
		return nil, fmt.Errorf("object stream /First %d beyond data length %d", first, len(data))
	}

	os := &ObjectStream{data: data, first: int(first)}
	l := NewLexer(data[:first])
	for i := 0; i < int(n); i++ {
		num, err1 := nextInt(l)
		off, err2 := nextInt(l)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("object stream header truncated at pair %d", i)
		}
		os.numbers = append(os.numbers, num)
		os.offsets = append(os.offsets, off)
	}
	return os, nil
}

func nextInt(l *Lexer) (int, error) {
	tok, err := l.NextToken()
	if err != nil {
		return 0, err
	}
	if tok.Type != TokenInteger {
		return 0, fmt.Errorf("expected integer")
	}
	return strconv.Atoi(string(tok.Value))
}

// N returns the number of objects stored in the stream.
func (os *ObjectStream) N() int { return len(os.numbers) }

// Object parses the object at index i and returns its object number.
func (os *ObjectStream) Object(i int) (int, Object, error) {
	if i < 0 || i >= len(os.numbers) {
		return 0, nil, fmt.Errorf("object stream index %d out of range", i)
	}
	start := os.first + os.offsets[i]
	if start > len(os.data) {
		return 0, nil, fmt.Errorf("object %d offset beyond stream data", os.numbers[i])
	}
	p := NewParser(os.data)
	p.Seek(start)
	obj, err := p.ParseObject()
	if err != nil {
		return 0, nil, fmt.Errorf("object %d in object stream: %w", os.numbers[i], err)
	}
	return os.numbers[i], obj, nil
}

// Find returns the object with the given number, if stored here.
func (os *ObjectStream) Find(num int) (Object, bool) {
	for i, n := range os.numbers {
		if n == num {
			_, obj, err := os.Object(i)
			return obj, err == nil
		}
	}
	return nil, false
}
