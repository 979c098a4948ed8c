// Package hashid derives the opaque external identifiers shown to clients.
package hashid

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/speps/go-hashids/v2"
)

// Generator encodes internal ids with a salted hashids alphabet. It is safe
// for concurrent use.
type Generator struct {
	h *hashids.HashID
}

func New(salt string, minLength int) (*Generator, error) {
	hd := hashids.NewData()
	hd.Salt = salt
	hd.MinLength = minLength
	h, err := hashids.NewWithData(hd)
	if err != nil {
		return nil, fmt.Errorf("hashid: %w", err)
	}
	return &Generator{h: h}, nil
}

// Generate returns the external id of a profile.
func (g *Generator) Generate(id uint32) (string, error) {
	return g.h.EncodeInt64([]int64{int64(id)})
}

// GenerateFromUUID returns the external id of a contact.
func (g *Generator) GenerateFromUUID(id uuid.UUID) (string, error) {
	return g.h.EncodeHex(hex.EncodeToString(id[:]))
}
