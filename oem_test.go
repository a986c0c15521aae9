package fatfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCP437ConverterRoundTripsASCII(t *testing.T) {
	conv := CP437Converter{}
	for _, b := range []byte("HELLO123") {
		r, ok := conv.Decode(b)
		require.True(t, ok)
		back, ok := conv.Encode(r)
		require.True(t, ok)
		require.Equal(t, b, back)
	}
}

func TestAsciiOemCpConverterRejectsHighBytes(t *testing.T) {
	conv := AsciiOemCpConverter{}
	_, ok := conv.Decode(0x80)
	require.False(t, ok)
}
