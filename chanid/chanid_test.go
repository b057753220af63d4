package chanid

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsWrongSize(t *testing.T) {
	_, err := New(bytes.Repeat([]byte{0xaa}, 31))
	require.Error(t, err)

	_, err = New(bytes.Repeat([]byte{0xaa}, 33))
	require.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte{0x42}, Size)
	id, err := New(raw)
	require.NoError(t, err)
	require.False(t, id.IsZero())
	require.Equal(t, "4242424242424242424242424242424242424242424242424242424242424242", id.String())

	var zero ChannelId
	require.True(t, zero.IsZero())
}

func TestEqualityByValue(t *testing.T) {
	a, _ := New(bytes.Repeat([]byte{0x01}, Size))
	b, _ := New(bytes.Repeat([]byte{0x01}, Size))
	c, _ := New(bytes.Repeat([]byte{0x02}, Size))

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)

	m := map[ChannelId]int{a: 1}
	_, ok := m[b]
	require.True(t, ok)
}
