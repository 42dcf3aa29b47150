// Package resp implements the wire codec for the RESP request/response
// protocol: a tagged union of four value types, encoded as CRLF-terminated
// frames over a byte stream.
package resp

import "fmt"

// Kind identifies which of the four RESP cases a Value holds.
type Kind byte

const (
	SimpleString Kind = '+'
	Integer      Kind = ':'
	BulkString   Kind = '$'
	Array        Kind = '*'
)

// Value is a decoded (or to-be-encoded) RESP value. Only the field
// matching Kind is meaningful:
//   - SimpleString: Str
//   - Integer:      Int
//   - BulkString:   Bulk (nil means the null bulk string)
//   - Array:        Items (nil means the null array)
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Bulk  []byte
	Items []Value
}

// ProtocolError is returned for any malformed frame: a bulk string
// without its CRLF terminator, an unknown tag byte, or a non-numeric
// or invalid negative length. The connection that produced it must be
// closed. Truncated input is reported as ErrIncomplete instead.
type ProtocolError struct {
	Offset int
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("resp: protocol error at offset %d: %s", e.Offset, e.Reason)
}

// NewSimpleString builds a SimpleString value.
func NewSimpleString(s string) Value { return Value{Kind: SimpleString, Str: s} }

// NewInteger builds an Integer value.
func NewInteger(n int64) Value { return Value{Kind: Integer, Int: n} }

// NewBulkString builds a BulkString value; a nil b yields the null
// bulk string.
func NewBulkString(b []byte) Value { return Value{Kind: BulkString, Bulk: b} }

// NullBulkString is the null BulkString ("$-1\r\n").
func NullBulkString() Value { return Value{Kind: BulkString, Bulk: nil} }

// NewArray builds an Array value; a nil items yields the null array,
// while a non-nil empty slice yields the empty array.
func NewArray(items []Value) Value { return Value{Kind: Array, Items: items} }

// NullArray is the null Array ("*-1\r\n").
func NullArray() Value { return Value{Kind: Array, Items: nil} }

// IsNullBulk reports whether v is the null bulk string.
func (v Value) IsNullBulk() bool { return v.Kind == BulkString && v.Bulk == nil }

// IsNullArray reports whether v is the null array.
func (v Value) IsNullArray() bool { return v.Kind == Array && v.Items == nil }
