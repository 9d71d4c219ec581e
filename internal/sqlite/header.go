package sqlite

import (
	"encoding/binary"
	"fmt"
)

// Database file header constants.
const (
	// HeaderSize is the size of the database file header (first 100 bytes).
	HeaderSize = 100

	// MagicHeaderString is the magic header string for SQLite 3 database files.
	// Exactly 16 bytes including the null terminator.
	MagicHeaderString = "SQLite format 3\x00"

	// Header byte offsets. All multi-byte fields are big-endian.
	offsetPageSize      = 16
	offsetWriteVersion  = 18
	offsetReadVersion   = 19
	offsetChangeCounter = 24
	offsetPageCount     = 28
	offsetFreelistCount = 36
	offsetSchemaCookie  = 40
	offsetTextEncoding  = 56
	offsetUserVersion   = 60
	offsetApplicationID = 68
)

// Header is the decoded 100-byte database file header.
type Header struct {
	PageSize      int    // bytes per page; the stored value 1 means 65536
	WriteVersion  byte   // 1 legacy journal, 2 WAL
	ReadVersion   byte   // 1 legacy journal, 2 WAL
	ChangeCounter uint32 // incremented on every modification
	PageCount     uint32 // database size in pages
	FreelistCount uint32 // number of freelist pages
	SchemaCookie  uint32 // incremented on every schema change
	TextEncoding  uint32 // 1 UTF-8, 2 UTF-16le, 3 UTF-16be
	UserVersion   int32  // PRAGMA user_version
	ApplicationID uint32 // PRAGMA application_id
}

// SizeBytes returns the database size in bytes per the header fields.
func (h Header) SizeBytes() int64 {
	return int64(h.PageSize) * int64(h.PageCount)
}

// EncodingName returns a human-readable text encoding name.
func (h Header) EncodingName() string {
	switch h.TextEncoding {
	case 1:
		return "UTF-8"
	case 2:
		return "UTF-16le"
	case 3:
		return "UTF-16be"
	default:
		return fmt.Sprintf("unknown (%d)", h.TextEncoding)
	}
}

// ParseHeader decodes the database file header from data, which must
// hold at least the first HeaderSize bytes of the file.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("header too short: %d bytes, need %d", len(data), HeaderSize)
	}
	if string(data[:len(MagicHeaderString)]) != MagicHeaderString {
		return Header{}, fmt.Errorf("not a SQLite 3 database: bad magic")
	}

	pageSize := int(binary.BigEndian.Uint16(data[offsetPageSize:]))
	if pageSize == 1 {
		pageSize = 65536
	}

	return Header{
		PageSize:      pageSize,
		WriteVersion:  data[offsetWriteVersion],
		ReadVersion:   data[offsetReadVersion],
		ChangeCounter: binary.BigEndian.Uint32(data[offsetChangeCounter:]),
		PageCount:     binary.BigEndian.Uint32(data[offsetPageCount:]),
		FreelistCount: binary.BigEndian.Uint32(data[offsetFreelistCount:]),
		SchemaCookie:  binary.BigEndian.Uint32(data[offsetSchemaCookie:]),
		TextEncoding:  binary.BigEndian.Uint32(data[offsetTextEncoding:]),
		UserVersion:   int32(binary.BigEndian.Uint32(data[offsetUserVersion:])),
		ApplicationID: binary.BigEndian.Uint32(data[offsetApplicationID:]),
	}, nil
}
