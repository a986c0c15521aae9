package fatfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateShortNameBasic(t *testing.T) {
	body, ext, loss := GenerateShortName("readme.txt", AsciiOemCpConverter{})
	require.Equal(t, "README", body)
	require.Equal(t, "TXT", ext)
	require.False(t, loss)
}

func TestGenerateShortNameTruncatesLong(t *testing.T) {
	body, _, loss := GenerateShortName("areallylongfilename.txt", AsciiOemCpConverter{})
	require.True(t, loss)
	require.LessOrEqual(t, len(body), 8)
}

func TestShortNameChecksumStable(t *testing.T) {
	raw := encodeRawShortName("README", "TXT")
	c1 := sfnChecksum(raw)
	c2 := sfnChecksum(raw)
	require.Equal(t, c1, c2)

	other := encodeRawShortName("README", "BAK")
	require.NotEqual(t, c1, sfnChecksum(other))
}

func TestLFNFragmentRoundTrip(t *testing.T) {
	name := "a very long file name indeed.txt"
	frags := lfnFragments(name)
	require.NotEmpty(t, frags)
	got := lfnUnitsToString(frags)
	require.Equal(t, name, got)
}

func TestNumericTailSuffixGrowsWithCollisions(t *testing.T) {
	s1 := numericTailSuffix("README", "readme.txt", 1)
	s2 := numericTailSuffix("README", "readme.txt", 2)
	require.NotEqual(t, s1, s2)

	hashed := numericTailSuffix("README", "readme.txt", 7)
	require.NotEmpty(t, hashed)
}

// TestNumericTailSuffixMatchesCollisionCascade runs the long name
// "TextFile.Mine.txt" through the plain ~1..~4 tails and the first two
// hashed tails (~1, ~2): the first four collisions get a plain tail, the
// fifth onward switches to the checksum-derived form.
func TestNumericTailSuffixMatchesCollisionCascade(t *testing.T) {
	const long = "TextFile.Mine.txt"
	body, ext, loss := GenerateShortName(long, AsciiOemCpConverter{})
	require.True(t, loss)
	require.Equal(t, "TEXTFILE", body)
	require.Equal(t, "TXT", ext)

	for seq, want := range map[int]string{1: "TEXTFI~1", 2: "TEXTFI~2", 3: "TEXTFI~3", 4: "TEXTFI~4"} {
		require.Equal(t, want, numericTailSuffix(body, long, seq), "seq=%d", seq)
	}
	for seq, want := range map[int]string{5: "TE527D~1", 6: "TE527D~2"} {
		require.Equal(t, want, numericTailSuffix(body, long, seq), "seq=%d", seq)
	}
}
