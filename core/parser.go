package core

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// ReferenceResolver is an interface for resolving indirect references.
// The parser uses it for stream lengths stored as separate objects.
type ReferenceResolver interface {
	ResolveReference(ref IndirectRef) (Object, error)
}

// ErrEOF is returned by ParseObject when the input is exhausted.
var ErrEOF = errors.New("end of input")

// Parser parses PDF objects from a byte slice using a Lexer.
type Parser struct {
	lexer    *Lexer
	resolver ReferenceResolver
	noRefs   bool
}

// NewParser creates a new PDF parser for data.
func NewParser(data []byte) *Parser {
	return &Parser{lexer: NewLexer(data)}
}

// NewContentParser creates a parser for content streams, where "n n R"
// never denotes a reference.
func NewContentParser(data []byte) *Parser {
	return &Parser{lexer: NewLexer(data), noRefs: true}
}

// SetReferenceResolver sets the resolver used for indirect stream lengths.
func (p *Parser) SetReferenceResolver(resolver ReferenceResolver) {
	p.resolver = resolver
}

// Lexer exposes the underlying lexer for callers that need raw access.
func (p *Parser) Lexer() *Lexer { return p.lexer }

// Seek positions the parser at an absolute offset.
func (p *Parser) Seek(pos int) { p.lexer.Seek(pos) }

// next returns the next non-comment token.
func (p *Parser) next() (Token, error) {
	for {
		tok, err := p.lexer.NextToken()
		if err != nil || tok.Type != TokenComment {
			return tok, err
		}
	}
}

// ParseObject parses and returns the next PDF object from the input.
func (p *Parser) ParseObject() (Object, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	obj, kw, err := p.objectFrom(tok)
	if err != nil {
		return nil, err
	}
	if kw != nil {
		return nil, fmt.Errorf("unexpected keyword %q at offset %d", kw, tok.Pos)
	}
	return obj, nil
}

// Next parses the next item of a content stream: either an operand object
// or an operator keyword. At end of input it returns ErrEOF.
func (p *Parser) Next() (Object, []byte, error) {
	tok, err := p.next()
	if err != nil {
		return nil, nil, err
	}
	return p.objectFrom(tok)
}

// objectFrom builds an object starting at tok. Keywords other than true,
// false and null are returned as the second value.
func (p *Parser) objectFrom(tok Token) (Object, []byte, error) {
	switch tok.Type {
	case TokenEOF:
		return nil, nil, ErrEOF
	case TokenKeyword:
		switch string(tok.Value) {
		case "null":
			return Null{}, nil, nil
		case "true":
			return Bool(true), nil, nil
		case "false":
			return Bool(false), nil, nil
		}
		return nil, tok.Value, nil
	case TokenIndirectRef:
		return nil, tok.Value, nil
	case TokenInteger:
		return p.parseInteger(tok)
	case TokenReal:
		f, err := strconv.ParseFloat(string(tok.Value), 64)
		if err != nil {
			// malformed numbers such as "--1" or "1.2.3" read as zero
			return Real(0), nil, nil
		}
		return Real(f), nil, nil
	case TokenString, TokenHexString:
		return String(tok.Value), nil, nil
	case TokenName:
		return Name(tok.Value), nil, nil
	case TokenArrayStart:
		arr, err := p.parseArray()
		return arr, nil, err
	case TokenDictStart:
		d, err := p.parseDict()
		return d, nil, err
	}
	return nil, nil, fmt.Errorf("unexpected token at offset %d", tok.Pos)
}

// parseInteger parses an integer or, by looking two tokens ahead, an
// indirect reference "num gen R".
func (p *Parser) parseInteger(tok Token) (Object, []byte, error) {
	n, err := strconv.ParseInt(string(tok.Value), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(string(tok.Value), 64)
		if ferr != nil {
			return Int(0), nil, nil
		}
		return Real(f), nil, nil
	}
	if p.noRefs {
		return Int(n), nil, nil
	}

	mark := p.lexer.Pos()
	gen, err := p.lexer.NextToken()
	if err == nil && gen.Type == TokenInteger {
		r, err := p.lexer.NextToken()
		if err == nil && r.Type == TokenIndirectRef {
			g, _ := strconv.Atoi(string(gen.Value))
			return IndirectRef{Number: int(n), Generation: g}, nil, nil
		}
	}
	p.lexer.Seek(mark)
	return Int(n), nil, nil
}

func (p *Parser) parseArray() (Array, error) {
	arr := Array{}
	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case TokenArrayEnd:
			return arr, nil
		case TokenEOF:
			return nil, fmt.Errorf("unterminated array")
		}
		obj, kw, err := p.objectFrom(tok)
		if err != nil {
			return nil, err
		}
		if kw != nil {
			// stray keywords inside arrays are dropped
			continue
		}
		arr = append(arr, obj)
	}
}

func (p *Parser) parseDict() (Dict, error) {
	d := Dict{}
	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case TokenDictEnd:
			return d, nil
		case TokenEOF:
			return nil, fmt.Errorf("unterminated dictionary")
		case TokenName:
		default:
			return nil, fmt.Errorf("dictionary key at offset %d is not a name", tok.Pos)
		}
		key := string(tok.Value)

		vtok, err := p.next()
		if err != nil {
			return nil, err
		}
		if vtok.Type == TokenDictEnd {
			// key without value
			return d, nil
		}
		val, kw, err := p.objectFrom(vtok)
		if err != nil {
			return nil, fmt.Errorf("value for /%s: %w", key, err)
		}
		if kw != nil {
			continue
		}
		// a null value is equivalent to an absent key
		if _, isNull := val.(Null); isNull {
			continue
		}
		d[key] = val
	}
}

// ParseIndirectObject parses "num gen obj <object> endobj", including
// stream objects.
func (p *Parser) ParseIndirectObject() (*IndirectObject, error) {
	num, err := p.expectInt("object number")
	if err != nil {
		return nil, err
	}
	gen, err := p.expectInt("generation number")
	if err != nil {
		return nil, err
	}
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	if tok.Type != TokenKeyword || string(tok.Value) != "obj" {
		return nil, fmt.Errorf("expected 'obj' at offset %d", tok.Pos)
	}

	obj, err := p.ParseObject()
	if err != nil {
		return nil, fmt.Errorf("object %d %d: %w", num, gen, err)
	}

	mark := p.lexer.Pos()
	tok, err = p.next()
	if err != nil {
		return nil, err
	}
	if tok.Type == TokenKeyword && string(tok.Value) == "stream" {
		dict, ok := obj.(Dict)
		if !ok {
			return nil, fmt.Errorf("object %d %d: stream must follow a dictionary", num, gen)
		}
		s, err := p.parseStream(dict)
		if err != nil {
			return nil, fmt.Errorf("object %d %d: %w", num, gen, err)
		}
		obj = s
		mark = p.lexer.Pos()
		tok, err = p.next()
		if err != nil {
			return nil, err
		}
	}
	if tok.Type != TokenKeyword || string(tok.Value) != "endobj" {
		// tolerate a missing endobj
		p.lexer.Seek(mark)
	}

	return &IndirectObject{
		Ref:    IndirectRef{Number: num, Generation: gen},
		Object: obj,
	}, nil
}

func (p *Parser) expectInt(what string) (int, error) {
	tok, err := p.next()
	if err != nil {
		return 0, err
	}
	if tok.Type != TokenInteger {
		return 0, fmt.Errorf("expected %s at offset %d", what, tok.Pos)
	}
	n, err := strconv.Atoi(string(tok.Value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", what, err)
	}
	return n, nil
}

var endstream = []byte("endstream")

// parseStream reads the stream body after the "stream" keyword. The
// declared /Length is trusted only when "endstream" follows it; otherwise
// the body runs to the next "endstream" marker.
func (p *Parser) parseStream(dict Dict) (*Stream, error) {
	p.lexer.SkipStreamEOL()
	start := p.lexer.Pos()
	data := p.lexer.Data()

	if length, ok := p.streamLength(dict); ok && length >= 0 && start+length <= len(data) {
		end := start + length
		q := end
		for q < len(data) && isWhitespace(data[q]) {
			q++
		}
		if bytes.HasPrefix(data[q:], endstream) {
			p.lexer.Seek(q + len(endstream))
			return &Stream{Dict: dict, Data: data[start:end]}, nil
		}
	}

	idx := bytes.Index(data[start:], endstream)
	if idx < 0 {
		return nil, fmt.Errorf("stream at offset %d has no endstream", start)
	}
	end := start + idx
	if end > start && data[end-1] == '\n' {
		end--
	}
	if end > start && data[end-1] == '\r' {
		end--
	}
	p.lexer.Seek(start + idx + len(endstream))
	return &Stream{Dict: dict, Data: data[start:end]}, nil
}

func (p *Parser) streamLength(dict Dict) (int, bool) {
	switch v := dict["Length"].(type) {
	case Int:
		return int(v), true
	case IndirectRef:
		if p.resolver == nil {
			return 0, false
		}
		obj, err := p.resolver.ResolveReference(v)
		if err != nil {
			return 0, false
		}
		if n, ok := obj.(Int); ok {
			return int(n), true
		}
	}
	return 0, false
}
