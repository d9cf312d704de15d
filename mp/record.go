package mp

import (
	"fmt"
	"unicode/utf8"
)

// RecordSet is the flattened contents of a recording container: one entry
// per dataset leaf, keyed by the '/'-joined path without a leading slash
// (e.g. "movie/configuration/acq_camera/frame_rate").
//
// A RecordSet is built once per file by Flatten. Read removes the frame
// stack and, after a verified decode, the keyframe entry; beyond that it is
// never mutated.
type RecordSet map[string]Entry

// Entry is a single leaf value: a scalar number, a UTF-8 string, or a
// numeric array.
type Entry struct {
	kind entryKind
	num  float64
	str  string
	arr  *Array
}

type entryKind int

const (
	kindScalar entryKind = iota
	kindString
	kindArray
)

// ScalarEntry returns an Entry holding a scalar number.
func ScalarEntry(v float64) Entry { return Entry{kind: kindScalar, num: v} }

// StringEntry returns an Entry holding a string.
func StringEntry(s string) Entry { return Entry{kind: kindString, str: s} }

// ArrayEntry returns an Entry holding a numeric array.
func ArrayEntry(a *Array) Entry { return Entry{kind: kindArray, arr: a} }

// IsArray returns true if the entry holds a numeric array.
func (e Entry) IsArray() bool { return e.kind == kindArray }

// Float returns the entry as a scalar number.
func (e Entry) Float() (float64, error) {
	if e.kind != kindScalar {
		return 0, fmt.Errorf("entry is not a scalar")
	}
	return e.num, nil
}

// Int returns the entry as an integer scalar.
func (e Entry) Int() (int, error) {
	f, err := e.Float()
	if err != nil {
		return 0, err
	}
	n := int(f)
	if float64(n) != f {
		return 0, fmt.Errorf("scalar %v is not an integer", f)
	}
	return n, nil
}

// Text returns the entry as a UTF-8 string. Byte-sequence values are
// accepted and decoded.
func (e Entry) Text() (string, error) {
	switch e.kind {
	case kindString:
		return e.str, nil
	case kindArray:
		// Instrument names are occasionally stored as raw byte arrays.
		if e.arr != nil && e.arr.U8 != nil {
			s := string(e.arr.U8)
			if !utf8.ValidString(s) {
				return "", fmt.Errorf("byte array is not valid UTF-8")
			}
			return s, nil
		}
	}
	return "", fmt.Errorf("entry is not a string")
}

// Arr returns the entry as a numeric array.
func (e Entry) Arr() (*Array, error) {
	if e.kind != kindArray || e.arr == nil {
		return nil, fmt.Errorf("entry is not an array")
	}
	return e.arr, nil
}

// float looks up a key and returns it as a scalar number.
func (rs RecordSet) float(key string) (float64, error) {
	e, ok := rs[key]
	if !ok {
		return 0, fmt.Errorf("missing entry %q", key)
	}
	v, err := e.Float()
	if err != nil {
		return 0, fmt.Errorf("entry %q: %w", key, err)
	}
	return v, nil
}

// intval looks up a key and returns it as an integer.
func (rs RecordSet) intval(key string) (int, error) {
	e, ok := rs[key]
	if !ok {
		return 0, fmt.Errorf("missing entry %q", key)
	}
	v, err := e.Int()
	if err != nil {
		return 0, fmt.Errorf("entry %q: %w", key, err)
	}
	return v, nil
}

// strval looks up a key and returns it as a string.
func (rs RecordSet) strval(key string) (string, error) {
	e, ok := rs[key]
	if !ok {
		return "", fmt.Errorf("missing entry %q", key)
	}
	v, err := e.Text()
	if err != nil {
		return "", fmt.Errorf("entry %q: %w", key, err)
	}
	return v, nil
}

// array looks up a key and returns it as a numeric array.
func (rs RecordSet) array(key string) (*Array, error) {
	e, ok := rs[key]
	if !ok {
		return nil, fmt.Errorf("missing entry %q", key)
	}
	a, err := e.Arr()
	if err != nil {
		return nil, fmt.Errorf("entry %q: %w", key, err)
	}
	return a, nil
}
