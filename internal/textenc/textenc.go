// Package textenc holds the single text encoding both ends of a transfer agree on.
package textenc

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var (
	// ErrDecode is matched by every *DecodeError.
	ErrDecode = errors.New("decode error")
	// ErrUnknownEncoding is returned by Lookup.
	ErrUnknownEncoding = errors.New("unknown encoding")
)

// DecodeError reports the first byte offset that is invalid under an encoding.
type DecodeError struct {
	Encoding string
	Offset   int
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid %s at byte %d: %v", e.Encoding, e.Offset, e.Err)
}

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

func (e *DecodeError) Unwrap() error { return e.Err }

// Encoding converts between wire bytes and text.
type Encoding interface {
	Name() string
	Decode(b []byte) (string, error)
	Encode(s string) ([]byte, error)
	// MultiByte reports whether one character can take more than one byte.
	MultiByte() bool
}

// Default is used when nothing is configured.
const Default = "utf-8"

// Names lists the supported encodings.
var Names = []string{"utf-8", "ascii", "latin1"}

// Lookup returns the encoding registered under name.
func Lookup(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return utf8Encoding{}, nil
	case "ascii", "us-ascii":
		return asciiEncoding{}, nil
	case "latin1", "latin-1", "iso-8859-1":
		return latin1Encoding{}, nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownEncoding, name, strings.Join(Names, ", "))
	}
}

// MustLookup panics on unknown names. For package-level defaults only.
func MustLookup(name string) Encoding {
	enc, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return enc
}

// Validate checks that b decodes cleanly.
func Validate(enc Encoding, b []byte) error {
	_, err := enc.Decode(b)
	return err
}

// Reverse decodes b, reverses it character by character and encodes the result.
func Reverse(enc Encoding, b []byte) ([]byte, error) {
	s, err := enc.Decode(b)
	if err != nil {
		return nil, err
	}
	return enc.Encode(ReverseString(s))
}

// ReverseString reverses s by code point.
func ReverseString(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

type utf8Encoding struct{}

func (utf8Encoding) Name() string    { return "utf-8" }
func (utf8Encoding) MultiByte() bool { return true }

func (e utf8Encoding) Decode(b []byte) (string, error) {
	_, n, err := transform.Bytes(encoding.UTF8Validator, b)
	if err != nil {
		return "", &DecodeError{Encoding: e.Name(), Offset: n, Err: err}
	}
	return string(b), nil
}

func (utf8Encoding) Encode(s string) ([]byte, error) {
	return []byte(s), nil
}

type asciiEncoding struct{}

func (asciiEncoding) Name() string    { return "ascii" }
func (asciiEncoding) MultiByte() bool { return false }

func (e asciiEncoding) Decode(b []byte) (string, error) {
	for i, c := range b {
		if c >= 0x80 {
			return "", &DecodeError{Encoding: e.Name(), Offset: i, Err: fmt.Errorf("byte 0x%02x out of range", c)}
		}
	}
	return string(b), nil
}

func (e asciiEncoding) Encode(s string) ([]byte, error) {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return nil, fmt.Errorf("%s cannot encode byte %d of %q", e.Name(), i, s)
		}
	}
	return []byte(s), nil
}

type latin1Encoding struct{}

func (latin1Encoding) Name() string    { return "latin1" }
func (latin1Encoding) MultiByte() bool { return false }

func (e latin1Encoding) Decode(b []byte) (string, error) {
	out, n, err := transform.Bytes(charmap.ISO8859_1.NewDecoder(), b)
	if err != nil {
		return "", &DecodeError{Encoding: e.Name(), Offset: n, Err: err}
	}
	return string(out), nil
}

func (e latin1Encoding) Encode(s string) ([]byte, error) {
	out, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%s cannot encode %q: %w", e.Name(), s, err)
	}
	return out, nil
}
