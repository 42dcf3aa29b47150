// Package snapshot parses the on-disk binary dump used to seed the key
// space at startup. The layout is: a fixed magic, a version payload,
// zero or more metadata pairs, one database section, and a terminator.
package snapshot

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"respd/internal/store"
)

const (
	opMetadataStart = 0xFA
	opDBStart       = 0xFE
	opHashTableSize = 0xFB
	opExpireMs      = 0xFC
	opExpireSec     = 0xFD
	opEOF           = 0xFF

	valueTypeString = 0x00

	encInt8  = 0x00
	encInt16 = 0x01
	encInt32 = 0x02
	encLZF   = 0x03
)

var magic = [5]byte{'R', 'E', 'D', 'I', 'S'}

// ErrUnsupportedEncoding is returned when the snapshot uses the
// 0xC3 LZF-compressed string encoding, which this reader does not
// implement.
var ErrUnsupportedEncoding = errors.New("snapshot: LZF string encoding is not implemented")

// ErrUnsupportedValueType is returned for any value-type tag other
// than 0x00 (string).
type ErrUnsupportedValueType struct{ Type byte }

func (e *ErrUnsupportedValueType) Error() string {
	return fmt.Sprintf("snapshot: unsupported value type 0x%02x", e.Type)
}

// MarkerError reports that a required marker byte did not match.
type MarkerError struct {
	Want, Got byte
	Context   string
}

func (e *MarkerError) Error() string {
	return fmt.Sprintf("snapshot: expected %s marker 0x%02x, got 0x%02x", e.Context, e.Want, e.Got)
}

// LoadFile discovers and loads the snapshot named dbfilename inside
// dir. If dir or dbfilename is empty, or the file does not exist, it
// returns a fresh empty Store and no error. Any other failure to
// read or parse the file is fatal.
func LoadFile(dir, dbfilename string) (*store.Store, error) {
	s := store.New()
	if dir == "" || dbfilename == "" {
		return s, nil
	}

	path := filepath.Join(dir, dbfilename)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("snapshot: opening %s: %w", path, err)
	}
	defer f.Close()

	if err := Load(f, s); err != nil {
		return nil, fmt.Errorf("snapshot: parsing %s: %w", path, err)
	}
	return s, nil
}

// Load parses an RDB-style stream from r and applies every entry it
// contains to s.
func Load(r io.Reader, s *store.Store) error {
	p := &reader{r: bufio.NewReader(r)}
	return p.run(s)
}

type reader struct {
	r        *bufio.Reader
	expireMs int64 // pending expiry for the next entry, 0 if none
}

func (p *reader) run(s *store.Store) error {
	if err := p.readMagicAndVersion(); err != nil {
		return err
	}
	if err := p.skipMetadata(); err != nil {
		return err
	}
	if err := p.readDatabase(s); err != nil {
		return err
	}
	return p.readTerminator()
}

func (p *reader) readMagicAndVersion() error {
	var got [5]byte
	if _, err := io.ReadFull(p.r, got[:]); err != nil {
		return fmt.Errorf("reading magic: %w", err)
	}
	if got != magic {
		return fmt.Errorf("snapshot: bad magic %q, want %q", got[:], magic[:])
	}

	// Version payload: printable bytes up to (not including) the first
	// metadata-start or database-start byte.
	for {
		b, err := p.peekByte()
		if err != nil {
			return fmt.Errorf("reading version: %w", err)
		}
		if b == opMetadataStart || b == opDBStart {
			return nil
		}
		if _, err := p.readByte(); err != nil {
			return err
		}
	}
}

func (p *reader) skipMetadata() error {
	for {
		b, err := p.peekByte()
		if err != nil {
			return fmt.Errorf("reading metadata: %w", err)
		}
		if b != opMetadataStart {
			if b != opDBStart {
				return &MarkerError{Want: opDBStart, Got: b, Context: "database start"}
			}
			return nil
		}
		if _, err := p.readByte(); err != nil { // consume 0xFA
			return err
		}
		if _, err := p.readString(); err != nil { // metadata key
			return fmt.Errorf("reading metadata key: %w", err)
		}
		if _, err := p.readString(); err != nil { // metadata value
			return fmt.Errorf("reading metadata value: %w", err)
		}
	}
}

func (p *reader) readDatabase(s *store.Store) error {
	marker, err := p.readByte()
	if err != nil {
		return fmt.Errorf("reading database marker: %w", err)
	}
	if marker != opDBStart {
		return &MarkerError{Want: opDBStart, Got: marker, Context: "database start"}
	}

	if _, _, err := p.readSize(); err != nil { // database index; unused
		return fmt.Errorf("reading database index: %w", err)
	}

	hashMarker, err := p.readByte()
	if err != nil {
		return fmt.Errorf("reading hash-table-size marker: %w", err)
	}
	if hashMarker != opHashTableSize {
		return &MarkerError{Want: opHashTableSize, Got: hashMarker, Context: "hash-table-size"}
	}
	totalKeys, _, err := p.readSize()
	if err != nil {
		return fmt.Errorf("reading total key count: %w", err)
	}
	if _, _, err := p.readSize(); err != nil { // keys-with-expiry; unused
		return fmt.Errorf("reading expiring key count: %w", err)
	}

	for i := uint64(0); i < totalKeys; i++ {
		if err := p.readEntry(s); err != nil {
			return fmt.Errorf("reading entry %d/%d: %w", i+1, totalKeys, err)
		}
	}
	return nil
}

func (p *reader) readEntry(s *store.Store) error {
	p.expireMs = 0

	typeByte, err := p.readByte()
	if err != nil {
		return err
	}

	switch typeByte {
	case opExpireMs:
		ms, err := p.readUint64LE()
		if err != nil {
			return fmt.Errorf("reading millisecond expiry: %w", err)
		}
		p.expireMs = int64(ms)
		typeByte, err = p.readByte()
		if err != nil {
			return err
		}

	case opExpireSec:
		sec, err := p.readUint32LE()
		if err != nil {
			return fmt.Errorf("reading second expiry: %w", err)
		}
		p.expireMs = int64(sec) * 1000
		typeByte, err = p.readByte()
		if err != nil {
			return err
		}
	}

	if typeByte != valueTypeString {
		return &ErrUnsupportedValueType{Type: typeByte}
	}

	key, err := p.readString()
	if err != nil {
		return fmt.Errorf("reading key: %w", err)
	}
	value, err := p.readString()
	if err != nil {
		return fmt.Errorf("reading value: %w", err)
	}

	s.Set(key, []byte(value), p.expireMs)
	return nil
}

func (p *reader) readTerminator() error {
	b, err := p.readByte()
	if err != nil {
		return fmt.Errorf("reading terminator: %w", err)
	}
	if b != opEOF {
		return &MarkerError{Want: opEOF, Got: b, Context: "terminator"}
	}
	return nil
}
