// Package chanid defines the stable identifier used to name a channel
// across the lifetime of its enforcement state.
package chanid

import (
	"encoding/hex"
	"fmt"
)

// Size is the length in bytes of a ChannelId.
const Size = 32

// ChannelId is a 32-byte opaque identifier for a channel. It is stable for
// the lifetime of the channel and is hashable/comparable by value, making it
// usable directly as a map key.
//
// Note this is distinct from the BOLT #2 wire channel_id; it is an internal
// handle chosen by the embedding node when the channel is created.
type ChannelId [Size]byte

// New builds a ChannelId from a byte slice, which must be exactly Size
// bytes long.
func New(b []byte) (ChannelId, error) {
	var id ChannelId
	if len(b) != Size {
		return id, fmt.Errorf("channel id must be %d bytes, got %d",
			Size, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// String returns the lower-case hex encoding of the id.
func (c ChannelId) String() string {
	return hex.EncodeToString(c[:])
}

// IsZero reports whether this is the unset, all-zero channel id.
func (c ChannelId) IsZero() bool {
	return c == ChannelId{}
}
