package core

import (
	"fmt"

	"github.com/alzaheer/privacyshield/internal/filters"
)

// Filters returns the stream's filter chain in application order together
// with the decode parameters for each filter.
func (s *Stream) Filters() ([]string, []filters.Params) {
	var names []string
	switch f := s.Dict["Filter"].(type) {
	case Name:
		names = []string{string(f)}
	case Array:
		for _, e := range f {
			if n, ok := e.(Name); ok {
				names = append(names, string(n))
			}
		}
	}

	params := make([]filters.Params, len(names))
	parms := s.Dict["DecodeParms"]
	if parms == nil {
		parms = s.Dict["DP"]
	}
	switch p := parms.(type) {
	case Dict:
		if len(params) > 0 {
			params[0] = dictToParams(p)
		}
	case Array:
		for i := range params {
			if d, ok := p.Get(i).(Dict); ok {
				params[i] = dictToParams(d)
			}
		}
	}
	return names, params
}

// Decode applies every filter of the stream. Streams that end in an image
// codec such as DCTDecode fail with an error wrapping filters.ErrImageCodec;
// use DecodeImage for those.
func (s *Stream) Decode() ([]byte, error) {
	data, codec, err := s.DecodeImage()
	if err != nil {
		return nil, err
	}
	if codec != "" {
		return nil, fmt.Errorf("%s: %w", codec, filters.ErrImageCodec)
	}
	return data, nil
}

// DecodeImage applies the stream's byte-level filters and stops at a final
// image codec filter, returning the still-encoded image bytes and the codec
// name. The codec is empty when the data is fully decoded.
func (s *Stream) DecodeImage() ([]byte, string, error) {
	names, params := s.Filters()
	data := s.Data
	for i, name := range names {
		if filters.IsImageCodec(name) {
			if i != len(names)-1 {
				return nil, "", fmt.Errorf("image codec %s is not the last filter", name)
			}
			return data, filters.Canonical(name), nil
		}
		var err error
		data, err = filters.Decode(name, data, params[i])
		if err != nil {
			return nil, "", fmt.Errorf("filter %d (%s): %w", i, name, err)
		}
	}
	return data, "", nil
}

// SetContent replaces the stream body with content compressed by
// FlateDecode. Any previous filter chain and its parameters are dropped.
func (s *Stream) SetContent(content []byte) error {
	enc, err := filters.FlateEncode(content)
	if err != nil {
		return err
	}
	if s.Dict == nil {
		s.Dict = Dict{}
	}
	delete(s.Dict, "DecodeParms")
	delete(s.Dict, "DP")
	s.Dict["Filter"] = Name("FlateDecode")
	s.Dict["Length"] = Int(len(enc))
	s.Data = enc
	return nil
}

// NewFlateStream creates a stream holding content compressed with FlateDecode.
func NewFlateStream(dict Dict, content []byte) (*Stream, error) {
	if dict == nil {
		dict = Dict{}
	}
	s := &Stream{Dict: dict}
	if err := s.SetContent(content); err != nil {
		return nil, err
	}
	return s, nil
}

// dictToParams converts a decode parameter dictionary to filters.Params.
func dictToParams(dict Dict) filters.Params {
	if dict == nil {
		return nil
	}
	params := make(filters.Params, len(dict))
	for k, v := range dict {
		switch obj := v.(type) {
		case Int:
			params[k] = int(obj)
		case Real:
			params[k] = float64(obj)
		case Bool:
			params[k] = bool(obj)
		case String:
			params[k] = string(obj)
		case Name:
			params[k] = string(obj)
		}
	}
	return params
}
