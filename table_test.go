package fatfs

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func mountFreshFAT16(t *testing.T, size int64) *FileSystem {
	t.Helper()
	dev := newMemDevice(size)
	require.NoError(t, Format(dev, FormatOptions{FATType: FAT16}))
	fs, _, err := Mount(dev, MountOptions{})
	require.NoError(t, err)
	return fs
}

func TestTableAllocAndFreeChain(t *testing.T) {
	fs := mountFreshFAT16(t, 16*1024*1024)
	tbl := fs.table

	freeBefore, _, err := tbl.Stats()
	require.NoError(t, err)

	c1, err := tbl.Alloc(0)
	require.NoError(t, err)
	c2, err := tbl.Alloc(c1)
	require.NoError(t, err)
	require.NotEqual(t, c1, c2)

	v, err := tbl.Get(c1)
	require.NoError(t, err)
	require.Equal(t, c2, v)

	v2, err := tbl.Get(c2)
	require.NoError(t, err)
	require.True(t, tbl.IsEOC(v2))

	require.NoError(t, tbl.FreeChain(c1))

	freeAfter, _, err := tbl.Stats()
	require.NoError(t, err)
	require.Equal(t, freeBefore, freeAfter)
}

func TestTableTruncateChain(t *testing.T) {
	fs := mountFreshFAT16(t, 16*1024*1024)
	tbl := fs.table

	c1, err := tbl.Alloc(0)
	require.NoError(t, err)
	c2, err := tbl.Alloc(c1)
	require.NoError(t, err)
	_, err = tbl.Alloc(c2)
	require.NoError(t, err)

	require.NoError(t, tbl.TruncateChain(c1, c2))

	v, err := tbl.Get(c2)
	require.NoError(t, err)
	require.True(t, tbl.IsEOC(v))
}

func TestStatusFlagsRoundTrip(t *testing.T) {
	fs := mountFreshFAT16(t, 16*1024*1024)

	flags, err := fs.ReadStatusFlags()
	require.NoError(t, err)
	require.False(t, flags.Dirty)
	require.False(t, flags.IOErrorSeen)

	require.NoError(t, fs.SetStatusFlags(StatusFlags{Dirty: true}))
	flags, err = fs.ReadStatusFlags()
	require.NoError(t, err)
	require.True(t, flags.Dirty)
	require.False(t, flags.IOErrorSeen)
}

// TestStatusFlagsFAT12UsesBPBShadowOnly covers the one FAT variant with no
// FAT entry-1 flag bits at all: the BPB reserved_1 shadow byte must still
// carry the dirty bit on its own.
func TestStatusFlagsFAT12UsesBPBShadowOnly(t *testing.T) {
	dev := newMemDevice(8 * 1024 * 1024)
	require.NoError(t, Format(dev, FormatOptions{FATType: FAT12}))
	fs, _, err := Mount(dev, MountOptions{})
	require.NoError(t, err)
	require.Equal(t, FAT12, fs.FATType())

	flags, err := fs.ReadStatusFlags()
	require.NoError(t, err)
	require.False(t, flags.Dirty)

	require.NoError(t, fs.SetStatusFlags(StatusFlags{Dirty: true, IOErrorSeen: true}))
	flags, err = fs.ReadStatusFlags()
	require.NoError(t, err)
	require.True(t, flags.Dirty)
	require.True(t, flags.IOErrorSeen)
}

// TestReadStatusFlagsORsBPBAndFATBits exercises testable property #7: the
// reported status is the logical OR of the BPB shadow byte and the
// FAT-entry-1 bits, so either mechanism alone is enough to report dirty.
func TestReadStatusFlagsORsBPBAndFATBits(t *testing.T) {
	fs := mountFreshFAT16(t, 16*1024*1024)

	require.NoError(t, fs.bootSector.SetBPBStatusFlags(fs.device, StatusFlags{}))
	require.NoError(t, fs.table.setEntry1Flags(StatusFlags{Dirty: true}))
	flags, err := fs.ReadStatusFlags()
	require.NoError(t, err)
	require.True(t, flags.Dirty, "FAT-entry-1 bit alone should still report dirty")

	require.NoError(t, fs.table.setEntry1Flags(StatusFlags{}))
	require.NoError(t, fs.bootSector.SetBPBStatusFlags(fs.device, StatusFlags{Dirty: true}))
	flags, err = fs.ReadStatusFlags()
	require.NoError(t, err)
	require.True(t, flags.Dirty, "BPB shadow byte alone should still report dirty")
}

// TestAllocMarksDirtyAutomatically covers the "first write through a FAT"
// rule: callers never call SetStatusFlags themselves before mutating the
// FAT, Alloc must mark the volume dirty on their behalf.
func TestAllocMarksDirtyAutomatically(t *testing.T) {
	fs := mountFreshFAT16(t, 16*1024*1024)

	flags, err := fs.ReadStatusFlags()
	require.NoError(t, err)
	require.False(t, flags.Dirty)

	_, err = fs.table.Alloc(0)
	require.NoError(t, err)

	flags, err = fs.ReadStatusFlags()
	require.NoError(t, err)
	require.True(t, flags.Dirty)

	require.NoError(t, fs.Unmount())
	flags, err = fs.ReadStatusFlags()
	require.NoError(t, err)
	require.False(t, flags.Dirty)
}

// TestTableMirrorDisabledWritesActiveFATOnly covers FAT32 extended_flags
// bit 7 (mirroring disabled): a Set must land only on the active FAT copy,
// leaving the others untouched.
func TestTableMirrorDisabledWritesActiveFATOnly(t *testing.T) {
	dev := newMemDevice(512 * 1024 * 1024)
	require.NoError(t, Format(dev, FormatOptions{FATType: FAT32, NumFATs: 2}))

	bs, err := ReadBootSector(dev)
	require.NoError(t, err)
	require.Equal(t, FAT32, bs.FATType())

	// Disable mirroring, naming FAT copy 1 (the second copy) as active.
	var flagsBuf [2]byte
	binary.LittleEndian.PutUint16(flagsBuf[:], 0x80|1)
	_, err = dev.WriteAt(flagsBuf[:], 40) // bpbExtFlags32
	require.NoError(t, err)

	fs, _, err := Mount(dev, MountOptions{})
	require.NoError(t, err)

	c1, err := fs.table.Alloc(0)
	require.NoError(t, err)

	fatStart := int64(bs.ReservedSectors()) * int64(bs.BytesPerSector())
	fatSize := int64(bs.SectorsPerFAT()) * int64(bs.BytesPerSector())
	off := int64(c1) * 4

	var primary, active [4]byte
	_, err = dev.ReadAt(primary[:], fatStart+off)
	require.NoError(t, err)
	_, err = dev.ReadAt(active[:], fatStart+fatSize+off)
	require.NoError(t, err)

	require.EqualValues(t, 0, binary.LittleEndian.Uint32(primary[:])&0x0FFFFFFF,
		"mirroring disabled: FAT copy 0 must not receive the write")
	require.NotEqualValues(t, 0, binary.LittleEndian.Uint32(active[:])&0x0FFFFFFF,
		"mirroring disabled: FAT copy 1 (active) must receive the write")
}
