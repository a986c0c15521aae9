package fatfs

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileWriteReadAcrossClusters(t *testing.T) {
	fs := mountFreshFAT16(t, 16*1024*1024)
	f, err := fs.OpenFile("big.bin", true)
	require.NoError(t, err)

	bpc := fs.bytesPerCluster()
	payload := make([]byte, bpc*3+17)
	for i := range payload {
		payload[i] = byte(i)
	}
	n, err := f.Write(payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.NoError(t, f.Close())

	f2, err := fs.OpenFile("big.bin", false)
	require.NoError(t, err)
	got, err := io.ReadAll(f2)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestFileSeekAndTruncate(t *testing.T) {
	fs := mountFreshFAT16(t, 16*1024*1024)
	f, err := fs.OpenFile("seek.bin", true)
	require.NoError(t, err)

	_, err = f.Write([]byte("0123456789"))
	require.NoError(t, err)

	off, err := f.Seek(3, io.SeekStart)
	require.NoError(t, err)
	require.EqualValues(t, 3, off)

	buf := make([]byte, 4)
	n, err := f.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "3456", string(buf[:n]))

	require.NoError(t, f.Truncate(5))
	require.EqualValues(t, 5, f.Size())

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	all, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "01234", string(all))
}

func TestFileTruncateToZeroFreesChain(t *testing.T) {
	fs := mountFreshFAT16(t, 16*1024*1024)
	f, err := fs.OpenFile("zero.bin", true)
	require.NoError(t, err)
	_, err = f.Write([]byte("some content"))
	require.NoError(t, err)

	require.NoError(t, f.Truncate(0))
	require.EqualValues(t, 0, f.Size())
	require.NoError(t, f.Close())
}
