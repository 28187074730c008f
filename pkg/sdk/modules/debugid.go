package modules

import (
	"github.com/google/uuid"
)

// NewDebugID converts raw identifier bytes (a build-id or the .text
// fingerprint) to a debug identifier.
//
// Up to 16 bytes are used, shorter input is zero padded. Symbol servers treat
// the identifier as a little-endian GUID, so the first three fields are byte
// swapped while the trailing 8 bytes are kept as they are.
func NewDebugID(codeID []byte) uuid.UUID {
	var id uuid.UUID
	copy(id[:], codeID)

	id[0], id[1], id[2], id[3] = id[3], id[2], id[1], id[0]
	id[4], id[5] = id[5], id[4]
	id[6], id[7] = id[7], id[6]
	return id
}
