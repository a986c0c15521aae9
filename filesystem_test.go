package fatfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMountRejectsGarbageDevice(t *testing.T) {
	dev := newMemDevice(64 * 1024)
	_, _, err := Mount(dev, MountOptions{})
	require.Error(t, err)
}

func TestOpenFileRejectsMissingParent(t *testing.T) {
	fs := mountFreshFAT16(t, 16*1024*1024)
	_, err := fs.OpenFile("nodir/file.txt", true)
	require.Error(t, err)
}

func TestOpenFileRejectsOpeningDirectoryAsFile(t *testing.T) {
	fs := mountFreshFAT16(t, 16*1024*1024)
	root, err := fs.RootDir()
	require.NoError(t, err)
	_, err = root.Create("sub", attrDir)
	require.NoError(t, err)

	_, err = fs.OpenFile("sub", false)
	require.Error(t, err)
}

func TestVolumeLabelFallsBackToBootSector(t *testing.T) {
	fs := mountFreshFAT16(t, 16*1024*1024)
	label, err := fs.VolumeLabel()
	require.NoError(t, err)
	require.Equal(t, fs.bootSector.VolumeLabel(), label)
}
