package snapshot

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
)

// readByte reads a single byte.
func (p *reader) readByte() (byte, error) {
	return p.r.ReadByte()
}

// peekByte inspects the next byte without consuming it.
func (p *reader) peekByte() (byte, error) {
	buf, err := p.r.Peek(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (p *reader) readUint32LE() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(p.r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (p *reader) readUint64LE() (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(p.r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// readSize parses the RDB-style size encoding. It
// returns (length, isSpecial, error) uniformly across all four
// branches.
//
//	00|XXXXXX              -> 6-bit length, 1 byte total
//	01|XXXXXX XXXXXXXX     -> 14-bit big-endian length, 2 bytes total
//	10|XXXXXX XXXXXXXX*4   -> 32-bit big-endian length, 5 bytes total
//	11|XXXXXX              -> special string encoding, selector in low 6 bits
func (p *reader) readSize() (uint64, bool, error) {
	first, err := p.readByte()
	if err != nil {
		return 0, false, err
	}

	switch (first >> 6) & 0x03 {
	case 0:
		return uint64(first & 0x3F), false, nil

	case 1:
		next, err := p.readByte()
		if err != nil {
			return 0, false, err
		}
		return (uint64(first&0x3F) << 8) | uint64(next), false, nil

	case 2:
		var buf [4]byte
		if _, err := io.ReadFull(p.r, buf[:]); err != nil {
			return 0, false, err
		}
		return uint64(binary.BigEndian.Uint32(buf[:])), false, nil

	default: // 3: special encoding
		return uint64(first & 0x3F), true, nil
	}
}

// readString decodes one RDB string: a size followed either by that
// many raw bytes, or — for special encodings — by a fixed-width
// little-endian integer rendered as decimal text.
func (p *reader) readString() (string, error) {
	length, special, err := p.readSize()
	if err != nil {
		return "", fmt.Errorf("reading string length: %w", err)
	}
	if !special {
		if length == 0 {
			return "", nil
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(p.r, buf); err != nil {
			return "", fmt.Errorf("reading %d string bytes: %w", length, err)
		}
		return string(buf), nil
	}
	return p.readSpecialString(length)
}

// readSpecialString renders the integer special encodings (0xC0..0xC2)
// as decimal text. 0xC3 (LZF) is explicitly unimplemented.
func (p *reader) readSpecialString(selector uint64) (string, error) {
	switch selector {
	case encInt8:
		var buf [1]byte
		if _, err := io.ReadFull(p.r, buf[:]); err != nil {
			return "", err
		}
		return strconv.FormatInt(int64(int8(buf[0])), 10), nil

	case encInt16:
		var buf [2]byte
		if _, err := io.ReadFull(p.r, buf[:]); err != nil {
			return "", err
		}
		return strconv.FormatInt(int64(int16(binary.LittleEndian.Uint16(buf[:]))), 10), nil

	case encInt32:
		var buf [4]byte
		if _, err := io.ReadFull(p.r, buf[:]); err != nil {
			return "", err
		}
		return strconv.FormatInt(int64(int32(binary.LittleEndian.Uint32(buf[:]))), 10), nil

	case encLZF:
		return "", ErrUnsupportedEncoding

	default:
		return "", fmt.Errorf("snapshot: unknown special string encoding %d", selector)
	}
}
