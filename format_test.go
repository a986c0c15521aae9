package fatfs

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatMountRoundTrip(t *testing.T) {
	dev := newMemDevice(32 * 1024 * 1024)
	err := Format(dev, FormatOptions{FATType: FAT16, VolumeLabel: "TESTVOL"})
	require.NoError(t, err)

	fs, warnings, err := Mount(dev, MountOptions{})
	require.NoError(t, err)
	require.Nil(t, warnings)
	require.Equal(t, FAT16, fs.FATType())

	label, err := fs.VolumeLabel()
	require.NoError(t, err)
	require.Equal(t, "TESTVOL", label)

	free, total, bpc, err := fs.Stats()
	require.NoError(t, err)
	require.Greater(t, total, uint32(0))
	require.LessOrEqual(t, free, total)
	require.Greater(t, bpc, uint32(0))

	require.NoError(t, fs.Unmount())
}

func TestFormatFAT32AutoSelect(t *testing.T) {
	dev := newMemDevice(512 * 1024 * 1024)
	require.NoError(t, Format(dev, FormatOptions{}))

	fs, _, err := Mount(dev, MountOptions{})
	require.NoError(t, err)
	require.Equal(t, FAT32, fs.FATType())
	require.NoError(t, fs.Unmount())
}

func TestFormatThenCreateAndReadFile(t *testing.T) {
	dev := newMemDevice(16 * 1024 * 1024)
	require.NoError(t, Format(dev, FormatOptions{FATType: FAT16}))

	fs, _, err := Mount(dev, MountOptions{})
	require.NoError(t, err)

	f, err := fs.OpenFile("hello.txt", true)
	require.NoError(t, err)
	n, err := f.Write([]byte("Hello World!"))
	require.NoError(t, err)
	require.Equal(t, 12, n)
	require.NoError(t, f.Close())
	require.NoError(t, fs.Unmount())

	fs2, _, err := Mount(dev, MountOptions{ReadOnly: true})
	require.NoError(t, err)
	f2, err := fs2.OpenFile("hello.txt", false)
	require.NoError(t, err)
	buf, err := io.ReadAll(f2)
	require.NoError(t, err)
	require.Equal(t, "Hello World!", string(buf))
	require.NoError(t, fs2.Unmount())
}
