package fatfs

import (
	"encoding/binary"
	"testing"

	"github.com/go-fatfs/fatfs/internal/mbr"
	"github.com/stretchr/testify/require"
)

func buildMBR(t *testing.T, diskSize int64) *memDevice {
	t.Helper()
	dev := newMemDevice(diskSize)
	var sector [512]byte
	bs, err := mbr.ToBootSector(sector[:])
	require.NoError(t, err)

	pte := mbr.MakePTE(mbr.DriveAttrsBootable, mbr.PartitionTypeFAT32LBA, 2048, 20480, mbr.NewCHS(0, 0, 0), mbr.NewCHS(0, 0, 0))
	bs.SetPartitionTable(0, pte)
	binary.LittleEndian.PutUint16(sector[510:512], mbr.BootSignature)

	_, err = dev.WriteAt(sector[:], 0)
	require.NoError(t, err)
	return dev
}

func TestOpenPartitionLocatesFATVolume(t *testing.T) {
	dev := buildMBR(t, 16*1024*1024)
	slice, err := OpenPartition(dev, 0)
	require.NoError(t, err)
	require.EqualValues(t, 2048*512, slice.Offset)
	require.EqualValues(t, 20480*512, slice.Length)
}

func TestOpenPartitionRejectsUnusedSlot(t *testing.T) {
	dev := buildMBR(t, 16*1024*1024)
	_, err := OpenPartition(dev, 1)
	require.Error(t, err)
}

func TestListPartitions(t *testing.T) {
	dev := buildMBR(t, 16*1024*1024)
	parts, err := ListPartitions(dev)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	require.True(t, parts[0].IsFAT)
}
