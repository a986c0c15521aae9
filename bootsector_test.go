package fatfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadBootSectorRejectsMissingSignature(t *testing.T) {
	dev := newMemDevice(1024)
	_, err := ReadBootSector(dev)
	require.Error(t, err)
}

func TestFormattedBootSectorValidates(t *testing.T) {
	dev := newMemDevice(16 * 1024 * 1024)
	require.NoError(t, Format(dev, FormatOptions{FATType: FAT16}))

	bs, err := ReadBootSector(dev)
	require.NoError(t, err)
	warnings, err := bs.Validate()
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, FAT16, bs.FATType())
	require.EqualValues(t, 512, bs.BytesPerSector())
}

func TestValidateFlagsZeroNumFATs(t *testing.T) {
	dev := newMemDevice(16 * 1024 * 1024)
	require.NoError(t, Format(dev, FormatOptions{FATType: FAT16}))
	bs, err := ReadBootSector(dev)
	require.NoError(t, err)

	bs.buf[bpbNumFATs] = 0
	_, err = bs.Validate()
	require.Error(t, err)
}

func TestValidateRejectsNonPowerOfTwoBytesPerSector(t *testing.T) {
	dev := newMemDevice(16 * 1024 * 1024)
	require.NoError(t, Format(dev, FormatOptions{FATType: FAT16}))
	bs, err := ReadBootSector(dev)
	require.NoError(t, err)

	bs.putU16(bpbBytsPerSec, 1536) // a multiple of 512 but not a power of two
	_, err = bs.Validate()
	require.Error(t, err)
}

func TestValidateRejectsNonPowerOfTwoSectorsPerCluster(t *testing.T) {
	dev := newMemDevice(16 * 1024 * 1024)
	require.NoError(t, Format(dev, FormatOptions{FATType: FAT16}))
	bs, err := ReadBootSector(dev)
	require.NoError(t, err)

	bs.buf[bpbSecPerClus] = 3
	_, err = bs.Validate()
	require.Error(t, err)
}

func TestValidateRejectsNonzeroFSVersion(t *testing.T) {
	dev := newMemDevice(512 * 1024 * 1024)
	require.NoError(t, Format(dev, FormatOptions{FATType: FAT32}))
	bs, err := ReadBootSector(dev)
	require.NoError(t, err)
	require.Equal(t, FAT32, bs.FATType())

	bs.putU16(bpbFSVer32, 1)
	_, err = bs.Validate()
	require.Error(t, err)
}

func TestValidateRejectsTotalSectorsNotExceedingFirstDataSector(t *testing.T) {
	dev := newMemDevice(16 * 1024 * 1024)
	require.NoError(t, Format(dev, FormatOptions{FATType: FAT16}))
	bs, err := ReadBootSector(dev)
	require.NoError(t, err)

	bs.putU32(bpbTotSec32, 1)
	bs.putU16(bpbTotSec16, 1)
	_, err = bs.Validate()
	require.Error(t, err)
}

func TestValidateRejectsZeroReservedSectors(t *testing.T) {
	dev := newMemDevice(16 * 1024 * 1024)
	require.NoError(t, Format(dev, FormatOptions{FATType: FAT16}))
	bs, err := ReadBootSector(dev)
	require.NoError(t, err)

	bs.putU16(bpbRsvdSecCnt, 0)
	_, err = bs.Validate()
	require.Error(t, err)
}

func TestValidateRejectsMismatchedFATTypeDetermination(t *testing.T) {
	dev := newMemDevice(16 * 1024 * 1024)
	require.NoError(t, Format(dev, FormatOptions{FATType: FAT16}))
	bs, err := ReadBootSector(dev)
	require.NoError(t, err)

	// bpbFATSz16 == 0 claims FAT32, but the volume is far too small in
	// cluster count to be FAT32: the two discriminators disagree. The FAT
	// size is carried over into the 32-bit field so the geometry checks
	// still pass and the type-determination check is the one that fails.
	spf := bs.SectorsPerFAT()
	bs.putU16(bpbFATSz16, 0)
	bs.putU32(bpbFATSz32, spf)
	_, err = bs.Validate()
	require.Error(t, err)
}

func TestDetermineFATTypeClassifiesByClusterCount(t *testing.T) {
	dev := newMemDevice(16 * 1024 * 1024)
	require.NoError(t, Format(dev, FormatOptions{FATType: FAT16}))
	bs, err := ReadBootSector(dev)
	require.NoError(t, err)
	require.Equal(t, FAT16, bs.clusterCountFATType())
}
