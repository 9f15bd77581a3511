// Package record decodes SQLite payload records: a varint header_size,
// followed by one serial-type varint per column, followed by the column
// bodies laid out back-to-back in header order.
package record

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/hgye/litescan/internal/litescanerr"
	"github.com/hgye/litescan/internal/varint"
)

// SerialType is the per-column tag read from a record header.
type SerialType uint64

// StorageClass groups serial types into the four SQLite storage classes.
type StorageClass int

const (
	ClassNull StorageClass = iota
	ClassInteger
	ClassReal
	ClassText
	ClassBlob
)

// Class maps a serial type to its storage class.
func (st SerialType) Class() StorageClass {
	switch {
	case st == 0:
		return ClassNull
	case st >= 1 && st <= 6, st == 8, st == 9:
		return ClassInteger
	case st == 7:
		return ClassReal
	case st >= 12 && st%2 == 0:
		return ClassBlob
	case st >= 13 && st%2 == 1:
		return ClassText
	default:
		return ClassNull
	}
}

// Size returns the number of body bytes a column of this serial type
// consumes. Serial types 10 and 11 are reserved and have no defined size;
// callers must reject them before calling Size (see Decode).
func (st SerialType) Size() int {
	switch {
	case st == 0, st == 8, st == 9:
		return 0
	case st >= 1 && st <= 4:
		return int(st)
	case st == 5:
		return 6
	case st == 6, st == 7:
		return 8
	case st >= 12 && st%2 == 0:
		return int((st - 12) / 2)
	case st >= 13 && st%2 == 1:
		return int((st - 13) / 2)
	default:
		return 0
	}
}

// Record is a decoded view over a payload buffer. Column byte slices are
// zero-copy references into the original payload; callers must not hold a
// Record past the lifetime of the page buffer it was decoded from.
type Record struct {
	payload     []byte
	serialTypes []SerialType
	offsets     []int // body start offset per column, within payload
}

// Decode parses a payload buffer into a Record. It fails with
// ErrMalformedRecord if header varints overrun header_size, if a reserved
// serial type (10 or 11) appears, or if column sizes overrun the payload.
func Decode(payload []byte) (*Record, error) {
	headerSize, pos, err := varint.ReadAt(payload, 0)
	if err != nil {
		return nil, litescanerr.Wrap("record.Decode", fmt.Errorf("%w: %v", litescanerr.ErrMalformedRecord, err), nil)
	}
	if headerSize == 0 || int(headerSize) > len(payload) {
		return nil, litescanerr.Wrap("record.Decode", fmt.Errorf("%w: header_size %d exceeds payload length %d", litescanerr.ErrMalformedRecord, headerSize, len(payload)), nil)
	}

	headerEnd := int(headerSize)
	var serialTypes []SerialType
	for pos < headerEnd {
		st, next, err := varint.ReadAt(payload, pos)
		if err != nil {
			return nil, litescanerr.Wrap("record.Decode", fmt.Errorf("%w: %v", litescanerr.ErrMalformedRecord, err), nil)
		}
		if st == 10 || st == 11 {
			return nil, litescanerr.Wrap("record.Decode", fmt.Errorf("%w: reserved serial type %d", litescanerr.ErrMalformedRecord, st), nil)
		}
		serialTypes = append(serialTypes, SerialType(st))
		pos = next
	}
	if pos != headerEnd {
		return nil, litescanerr.Wrap("record.Decode", fmt.Errorf("%w: header varints overran header_size", litescanerr.ErrMalformedRecord), nil)
	}

	offsets := make([]int, len(serialTypes))
	body := headerEnd
	for i, st := range serialTypes {
		offsets[i] = body
		body += st.Size()
	}
	if body != len(payload) {
		return nil, litescanerr.Wrap("record.Decode", fmt.Errorf("%w: column sizes sum to %d, payload is %d bytes", litescanerr.ErrMalformedRecord, body, len(payload)), nil)
	}

	return &Record{payload: payload, serialTypes: serialTypes, offsets: offsets}, nil
}

// ColumnCount returns the number of columns in the record.
func (r *Record) ColumnCount() int { return len(r.serialTypes) }

// SerialTypeAt returns the serial type of column i.
func (r *Record) SerialTypeAt(i int) SerialType { return r.serialTypes[i] }

// ColumnBytes returns the zero-copy body slice for column i.
func (r *Record) ColumnBytes(i int) []byte {
	st := r.serialTypes[i]
	start := r.offsets[i]
	return r.payload[start : start+st.Size()]
}

// IsNull reports whether column i holds SQL NULL.
func (r *Record) IsNull(i int) bool {
	return r.serialTypes[i] == 0
}

// AsInteger extracts column i as an int64. Defined for serial types
// 0 (NULL, returned as 0),1,2,3,4,5,6,8,9.
func (r *Record) AsInteger(i int) (int64, error) {
	st := r.serialTypes[i]
	b := r.ColumnBytes(i)
	switch {
	case st == 0:
		return 0, nil
	case st == 8:
		return 0, nil
	case st == 9:
		return 1, nil
	case st == 1:
		return int64(int8(b[0])), nil
	case st == 2:
		return int64(int16(uint16(b[0])<<8 | uint16(b[1]))), nil
	case st == 3:
		v := uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
		sv := int32(v << 8) >> 8 // sign-extend 24 -> 32
		return int64(sv), nil
	case st == 4:
		v := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
		return int64(int32(v)), nil
	case st == 5:
		var v uint64
		for _, x := range b {
			v = v<<8 | uint64(x)
		}
		sv := int64(v << 16) >> 16 // sign-extend 48 -> 64
		return sv, nil
	case st == 6:
		var v uint64
		for _, x := range b {
			v = v<<8 | uint64(x)
		}
		return int64(v), nil
	default:
		return 0, litescanerr.Wrap("record.AsInteger", fmt.Errorf("%w: serial type %d is not an integer", litescanerr.ErrTypeMismatch, st), nil)
	}
}

// AsReal extracts column i as a float64. Defined only for serial type 7
// (IEEE-754 double, big-endian).
func (r *Record) AsReal(i int) (float64, error) {
	st := r.serialTypes[i]
	if st != 7 {
		return 0, litescanerr.Wrap("record.AsReal", fmt.Errorf("%w: serial type %d is not real", litescanerr.ErrTypeMismatch, st), nil)
	}
	b := r.ColumnBytes(i)
	var bits uint64
	for _, x := range b {
		bits = bits<<8 | uint64(x)
	}
	return math.Float64frombits(bits), nil
}

// AsText extracts column i as a string. Defined only for odd serial types
// ≥13. Invalid UTF-8 sequences are replaced per utf8.DecodeRune's lossy
// fallback, matching the source's tolerant text handling.
func (r *Record) AsText(i int) (string, error) {
	st := r.serialTypes[i]
	if st < 13 || st%2 != 1 {
		return "", litescanerr.Wrap("record.AsText", fmt.Errorf("%w: serial type %d is not text", litescanerr.ErrTypeMismatch, st), nil)
	}
	b := r.ColumnBytes(i)
	if utf8.Valid(b) {
		return string(b), nil
	}
	var sb strings.Builder
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		sb.WriteRune(r)
		b = b[size:]
	}
	return sb.String(), nil
}

// AsBlob extracts column i as a raw byte slice. Defined only for even
// serial types ≥12.
func (r *Record) AsBlob(i int) ([]byte, error) {
	st := r.serialTypes[i]
	if st < 12 || st%2 != 0 {
		return nil, litescanerr.Wrap("record.AsBlob", fmt.Errorf("%w: serial type %d is not blob", litescanerr.ErrTypeMismatch, st), nil)
	}
	return r.ColumnBytes(i), nil
}
