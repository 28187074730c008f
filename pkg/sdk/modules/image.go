package modules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Addr is an address in the process. It is rendered as 0x-prefixed hex in
// JSON and YAML payloads.
type Addr uint64

// String returns the address as 0x-prefixed hex.
func (a Addr) String() string {
	return fmt.Sprintf("0x%x", uint64(a))
}

// MarshalText implements encoding.TextMarshaler.
func (a Addr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Addr) UnmarshalText(text []byte) error {
	s := strings.TrimPrefix(strings.TrimPrefix(string(text), "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", text, err)
	}
	*a = Addr(v)
	return nil
}

// Image describes one loaded ELF image in the shape of a debug-meta image of
// an event payload.
type Image struct {
	// Type is always "elf".
	Type      string `json:"type" yaml:"type"`
	ImageAddr Addr   `json:"image_addr" yaml:"image_addr"`
	// ImageSize is the extent of the image in its file, not the size of the
	// mapped memory.
	ImageSize uint64 `json:"image_size" yaml:"image_size"`
	CodeFile  string `json:"code_file" yaml:"code_file"`
	// CodeID is the hex encoded build-id. Empty when the debug id comes from
	// the .text fingerprint.
	CodeID  string    `json:"code_id,omitempty" yaml:"code_id,omitempty"`
	DebugID uuid.UUID `json:"debug_id" yaml:"debug_id"`
}

// Value returns the image as a generic object, ready to be embedded in a
// report payload.
func (img Image) Value() map[string]any {
	v := map[string]any{
		"type":       img.Type,
		"image_addr": img.ImageAddr.String(),
		"image_size": img.ImageSize,
		"code_file":  img.CodeFile,
		"debug_id":   img.DebugID.String(),
	}
	if img.CodeID != "" {
		v["code_id"] = img.CodeID
	}
	return v
}
