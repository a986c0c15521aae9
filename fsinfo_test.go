package fatfs

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildFSInfoSector(t *testing.T, freeCount, nextFree uint32) *memDevice {
	t.Helper()
	dev := newMemDevice(sectorSize)
	fi := NewFSInfo()
	binary.LittleEndian.PutUint32(fi.buf[fsiFreeCount:], freeCount)
	binary.LittleEndian.PutUint32(fi.buf[fsiNextFree:], nextFree)
	require.NoError(t, fi.WriteTo(dev, sectorSize, 0))
	return dev
}

func TestReadFSInfoClampsFreeCountToTotalClusters(t *testing.T) {
	dev := buildFSInfoSector(t, 1_000_000, 2)
	fi, err := ReadFSInfo(dev, sectorSize, 0, 1000, false)
	require.NoError(t, err)
	require.EqualValues(t, -1, fi.FreeClusterCount(), "out-of-range hint must be discarded as unknown")
}

func TestReadFSInfoKeepsPlausibleFreeCount(t *testing.T) {
	dev := buildFSInfoSector(t, 500, 10)
	fi, err := ReadFSInfo(dev, sectorSize, 0, 1000, false)
	require.NoError(t, err)
	require.EqualValues(t, 500, fi.FreeClusterCount())
}

func TestReadFSInfoDiscardsFreeCountWhenDirty(t *testing.T) {
	dev := buildFSInfoSector(t, 500, 10)
	fi, err := ReadFSInfo(dev, sectorSize, 0, 1000, true)
	require.NoError(t, err)
	require.EqualValues(t, -1, fi.FreeClusterCount(), "an unclean prior session invalidates the free-count hint")
}

func TestReadFSInfoClampsNextFreeHint(t *testing.T) {
	dev := buildFSInfoSector(t, 500, 5_000_000)
	fi, err := ReadFSInfo(dev, sectorSize, 0, 1000, false)
	require.NoError(t, err)
	require.EqualValues(t, -1, fi.NextFreeCluster())
}
