package resp

import (
	"bytes"
	"strconv"
)

var crlf = []byte("\r\n")

// Encode serializes v into its RESP wire form:
//
//	SimpleString s  -> "+" s CRLF
//	Integer n       -> ":" decimal(n) CRLF
//	BulkString nil  -> "$-1" CRLF
//	BulkString b    -> "$" len(b) CRLF b CRLF
//	Array nil       -> "*-1" CRLF
//	Array [x1..xn]  -> "*" n CRLF x1 .. xn
//
// The BulkString length prefix is the raw byte length, never the
// code-point count.
func Encode(v Value) []byte {
	var buf bytes.Buffer
	encodeInto(&buf, v)
	return buf.Bytes()
}

func encodeInto(buf *bytes.Buffer, v Value) {
	switch v.Kind {
	case SimpleString:
		buf.WriteByte(byte(SimpleString))
		buf.WriteString(v.Str)
		buf.Write(crlf)

	case Integer:
		buf.WriteByte(byte(Integer))
		buf.WriteString(strconv.FormatInt(v.Int, 10))
		buf.Write(crlf)

	case BulkString:
		buf.WriteByte(byte(BulkString))
		if v.Bulk == nil {
			buf.WriteString("-1")
			buf.Write(crlf)
			return
		}
		buf.WriteString(strconv.Itoa(len(v.Bulk)))
		buf.Write(crlf)
		buf.Write(v.Bulk)
		buf.Write(crlf)

	case Array:
		buf.WriteByte(byte(Array))
		if v.Items == nil {
			buf.WriteString("-1")
			buf.Write(crlf)
			return
		}
		buf.WriteString(strconv.Itoa(len(v.Items)))
		buf.Write(crlf)
		for _, item := range v.Items {
			encodeInto(buf, item)
		}
	}
}
