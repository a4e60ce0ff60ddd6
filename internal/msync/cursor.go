// Package msync implements incremental mailbox synchronisation driven by
// Microsoft Graph delta queries.
package msync

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

// CursorVersion is the current cursor format version.
const CursorVersion = 1

// ErrInvalidCursor indicates the cursor could not be decoded.
var ErrInvalidCursor = errors.New("msync: invalid cursor format")

// Cursor tracks one folder's sync position using Graph delta queries.
type Cursor struct {
	// Version is the cursor format version for future compatibility.
	Version int `json:"v"`
	// DeltaLink is the continuation URL from Microsoft Graph. It may be a
	// deltaLink (folder fully drained) or a nextLink (mid-round page
	// boundary); both resume correctly.
	DeltaLink string `json:"delta_link"`
}

// NewCursor creates a new empty cursor.
func NewCursor() *Cursor {
	return &Cursor{
		Version: CursorVersion,
	}
}

// Encode serialises the cursor to a base64 string for storage.
func (c *Cursor) Encode() string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeCursor deserialises a cursor from a base64 string.
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return NewCursor(), nil
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var cursor Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, ErrInvalidCursor
	}

	// Version check for future migrations
	if cursor.Version > CursorVersion {
		return nil, ErrInvalidCursor
	}

	return &cursor, nil
}

// IsEmpty returns true if the cursor has no sync state.
func (c *Cursor) IsEmpty() bool {
	return c.DeltaLink == ""
}

// SetDeltaLink updates the continuation URL.
func (c *Cursor) SetDeltaLink(deltaLink string) {
	c.DeltaLink = deltaLink
}
