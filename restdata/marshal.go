// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"io"
	"mime"
	"reflect"

	"github.com/ugorji/go/codec"
)

// jsonHandle is shared by every encoder and decoder.  Handles are safe
// for concurrent use once configured.
var jsonHandle = newJSONHandle()

func newJSONHandle() *codec.JsonHandle {
	h := &codec.JsonHandle{}
	// Nested objects decode to string-keyed maps, so that job
	// metadata can be handed to mapstructure
	h.MapType = reflect.TypeOf(map[string]interface{}(nil))
	return h
}

// Decode tries to decode a restdata object from a reader, such as an
// HTTP request or response.  out must be a pointer type.  Fields of
// the input that have no counterpart in out are skipped.
func Decode(contentType string, r io.Reader, out interface{}) error {
	if contentType == "" {
		// RFC 7231 section 3.1.1.5
		contentType = "application/octet-stream"
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return err
	}

	switch mediaType {
	case "text/json", JSONMediaType, "application/problem+json":
		decoder := codec.NewDecoder(r, jsonHandle)
		return decoder.Decode(out)
	default:
		return ErrUnsupportedMediaType{Type: mediaType}
	}
}

// DecodeBytes decodes a JSON document held in memory.
func DecodeBytes(in []byte, out interface{}) error {
	decoder := codec.NewDecoderBytes(in, jsonHandle)
	return decoder.Decode(out)
}

// Encode writes the JSON encoding of in to w.
func Encode(w io.Writer, in interface{}) error {
	encoder := codec.NewEncoder(w, jsonHandle)
	return encoder.Encode(in)
}

// EncodeBytes returns the JSON encoding of in.
func EncodeBytes(in interface{}) (out []byte, err error) {
	encoder := codec.NewEncoderBytes(&out, jsonHandle)
	err = encoder.Encode(in)
	return
}
