package fatfs

import (
	"encoding/binary"
	"fmt"
)

// Byte offsets into the first sector of a FAT volume (the BIOS Parameter
// Block and its FAT16/FAT32-specific extensions). Names and offsets carried
// over from the FatFs convention the teacher used.
const (
	bsJmpBoot     = 0  // x86 jump instruction (3 bytes)
	bsOEMName     = 3  // OEM name (8 bytes)
	bpbBytsPerSec = 11 // Bytes per sector (WORD)
	bpbSecPerClus = 13 // Sectors per cluster (BYTE)
	bpbRsvdSecCnt = 14 // Reserved sector count (WORD)
	bpbNumFATs    = 16 // Number of FATs (BYTE)
	bpbRootEntCnt = 17 // Root directory entry count, FAT12/16 only (WORD)
	bpbTotSec16   = 19 // Total sectors, 16-bit (WORD)
	bpbMedia      = 21 // Media descriptor (BYTE)
	bpbFATSz16    = 22 // Sectors per FAT, FAT12/16 (WORD)
	bpbSecPerTrk  = 24 // Sectors per track, legacy geometry (WORD)
	bpbNumHeads   = 26 // Number of heads, legacy geometry (WORD)
	bpbHiddSec    = 28 // Hidden sectors before this volume (DWORD)
	bpbTotSec32   = 32 // Total sectors, 32-bit (DWORD)

	// FAT12/16 extended BPB.
	bsDrvNum     = 36 // Physical drive number (BYTE)
	bsReserved1  = 37 // Reserved (BYTE)
	bsBootSig    = 38 // Extended boot signature, 0x29 expected (BYTE)
	bsVolID      = 39 // Volume serial number (DWORD)
	bsVolLab     = 43 // Volume label (11 bytes)
	bsFilSysType = 54 // Filesystem type string (8 bytes)

	// FAT32 extended BPB (the drive-number tail shifts by 28, 36 -> 64,
	// relative to FAT12/16).
	bpbFATSz32     = 36 // Sectors per FAT (DWORD)
	bpbExtFlags32  = 40 // Extended flags (WORD)
	bpbFSVer32     = 42 // Filesystem version (WORD)
	bpbRootClus32  = 44 // Root directory start cluster (DWORD)
	bpbFSInfo32    = 48 // FSInfo sector number (WORD)
	bpbBkBootSec32 = 50 // Backup boot sector number (WORD)
	bsDrvNum32     = 64
	bsReserved132  = 65
	bsBootSig32    = 66
	bsVolID32      = 67
	bsVolLab32     = 71
	bsFilSysType32 = 82

	bs55AA = 510 // Boot sector signature word, must read 0x55, 0xAA

	sectorSize = 512 // Boot sector (and FSInfo sector) size in bytes
)

// FATType identifies which on-disk variant a mounted volume uses.
type FATType int

const (
	FAT12 FATType = iota + 1
	FAT16
	FAT32
)

func (t FATType) String() string {
	switch t {
	case FAT12:
		return "FAT12"
	case FAT16:
		return "FAT16"
	case FAT32:
		return "FAT32"
	default:
		return "unknown"
	}
}

// Cluster-count thresholds that discriminate FAT12/FAT16/FAT32, matching
// both the original implementation and dargueta-disko's independent
// DetermineFATVersion.
const (
	maxClustersFAT12 = 4085
	maxClustersFAT16 = 65525
)

// BootSector is a decoded view of the first sector of a FAT volume (BPB +
// FAT12/16/32 extended fields). It holds its own 512-byte backing buffer so
// it can be re-serialized verbatim (including reserved/unused bytes) when
// mirrored to the backup boot sector on FAT32.
type BootSector struct {
	buf     [sectorSize]byte
	fatType FATType
}

// ReadBootSector reads and decodes the boot sector at byte offset 0 of dev.
func ReadBootSector(dev Device) (*BootSector, error) {
	bs := &BootSector{}
	if _, err := dev.ReadAt(bs.buf[:], 0); err != nil {
		return nil, newErr(KindDeviceIO, "ReadBootSector", "", err)
	}
	if bs.buf[bs55AA] != 0x55 || bs.buf[bs55AA+1] != 0xAA {
		return nil, newErr(KindCorruptedFileSystem, "ReadBootSector", "", nil)
	}
	bs.fatType = bs.determineFATType()
	return bs, nil
}

func (b *BootSector) u16(off int) uint16 { return binary.LittleEndian.Uint16(b.buf[off:]) }
func (b *BootSector) u32(off int) uint32 { return binary.LittleEndian.Uint32(b.buf[off:]) }
func (b *BootSector) putU16(off int, v uint16) { binary.LittleEndian.PutUint16(b.buf[off:], v) }
func (b *BootSector) putU32(off int, v uint32) { binary.LittleEndian.PutUint32(b.buf[off:], v) }

func (b *BootSector) BytesPerSector() uint16    { return b.u16(bpbBytsPerSec) }
func (b *BootSector) SectorsPerCluster() uint8  { return b.buf[bpbSecPerClus] }
func (b *BootSector) ReservedSectors() uint16   { return b.u16(bpbRsvdSecCnt) }
func (b *BootSector) NumFATs() uint8            { return b.buf[bpbNumFATs] }
func (b *BootSector) RootEntryCount() uint16    { return b.u16(bpbRootEntCnt) }
func (b *BootSector) HiddenSectors() uint32     { return b.u32(bpbHiddSec) }

// TotalSectors returns the 16-bit total sector count field when it is
// nonzero, falling back to the 32-bit field otherwise.
func (b *BootSector) TotalSectors() uint32 {
	if v := b.u16(bpbTotSec16); v != 0 {
		return uint32(v)
	}
	return b.u32(bpbTotSec32)
}

// SectorsPerFAT returns bpbFATSz16 for FAT12/16 or bpbFATSz32 for FAT32.
func (b *BootSector) SectorsPerFAT() uint32 {
	if v := b.u16(bpbFATSz16); v != 0 {
		return uint32(v)
	}
	return b.u32(bpbFATSz32)
}

func (b *BootSector) RootCluster() uint32 {
	if b.fatType != FAT32 {
		return 0
	}
	return b.u32(bpbRootClus32)
}

func (b *BootSector) FSInfoSector() uint16 {
	if b.fatType != FAT32 {
		return 0
	}
	return b.u16(bpbFSInfo32)
}

// ExtFlags32 returns the FAT32 extended_flags word (zero for FAT12/16,
// which have no such field and always mirror every FAT copy). Bit 7 set
// means mirroring is disabled; bits 0-3 then name the single active FAT.
func (b *BootSector) ExtFlags32() uint16 {
	if b.fatType != FAT32 {
		return 0
	}
	return b.u16(bpbExtFlags32)
}

func (b *BootSector) BackupBootSector() uint16 {
	if b.fatType != FAT32 {
		return 0
	}
	return b.u16(bpbBkBootSec32)
}

func (b *BootSector) VolumeID() uint32 {
	if b.fatType == FAT32 {
		return b.u32(bsVolID32)
	}
	return b.u32(bsVolID)
}

func (b *BootSector) VolumeLabel() string {
	off := bsVolLab
	if b.fatType == FAT32 {
		off = bsVolLab32
	}
	return trimTrailingSpace(b.buf[off : off+11])
}

func (b *BootSector) SetVolumeLabel(label string) {
	off := bsVolLab
	if b.fatType == FAT32 {
		off = bsVolLab32
	}
	copyPadded(b.buf[off:off+11], label, ' ')
}

func (b *BootSector) OEMName() string {
	return trimTrailingSpace(b.buf[bsOEMName : bsOEMName+8])
}

func (b *BootSector) FATType() FATType { return b.fatType }

// reserved1Offset returns the offset of the reserved_1 BPB byte that shadows
// the dirty/IO-error status flags: 0x025 for FAT12/16, 0x041 for FAT32.
func (b *BootSector) reserved1Offset() int {
	if b.fatType == FAT32 {
		return bsReserved132
	}
	return bsReserved1
}

// BPBStatusFlags decodes the dirty/IO-error bits from the reserved_1 shadow
// byte. Unlike the FAT entry-1 convention (where a cleared bit means the
// flag is set), a set bit here directly means the flag is true. This is the
// only status mechanism FAT12 has.
func (b *BootSector) BPBStatusFlags() StatusFlags {
	v := b.buf[b.reserved1Offset()]
	return StatusFlags{Dirty: v&0x01 != 0, IOErrorSeen: v&0x02 != 0}
}

// SetBPBStatusFlags updates the in-memory reserved_1 byte and writes only
// that single byte to dev; the BPB is never rewritten wholesale at runtime
// except by the formatter.
func (b *BootSector) SetBPBStatusFlags(dev Device, flags StatusFlags) error {
	off := b.reserved1Offset()
	var v byte
	if flags.Dirty {
		v |= 0x01
	}
	if flags.IOErrorSeen {
		v |= 0x02
	}
	b.buf[off] = v
	if _, err := dev.WriteAt(b.buf[off:off+1], int64(off)); err != nil {
		return newErr(KindDeviceIO, "SetBPBStatusFlags", "", err)
	}
	return nil
}

// RootDirSectors returns the number of sectors occupied by the fixed root
// directory region. It is zero for FAT32, where the root directory is an
// ordinary cluster chain.
func (b *BootSector) RootDirSectors() uint32 {
	bps := uint32(b.BytesPerSector())
	if bps == 0 {
		return 0
	}
	return (uint32(b.RootEntryCount())*32 + bps - 1) / bps
}

// FirstDataSector returns the sector number where cluster 2 begins.
func (b *BootSector) FirstDataSector() uint32 {
	return uint32(b.ReservedSectors()) + uint32(b.NumFATs())*b.SectorsPerFAT() + b.RootDirSectors()
}

// FirstRootDirSector returns the sector number where the fixed-size root
// directory begins (FAT12/16 only; meaningless for FAT32).
func (b *BootSector) FirstRootDirSector() uint32 {
	return uint32(b.ReservedSectors()) + uint32(b.NumFATs())*b.SectorsPerFAT()
}

// TotalClusters returns the number of data clusters addressable by the FAT,
// i.e. total data sectors divided by sectors per cluster.
func (b *BootSector) TotalClusters() uint32 {
	spc := uint32(b.SectorsPerCluster())
	if spc == 0 {
		return 0
	}
	dataSectors := b.TotalSectors() - b.FirstDataSector()
	return dataSectors / spc
}

// clusterCountFATType classifies the volume purely from its cluster count,
// independent of which sectors-per-FAT field the BPB populates.
func (b *BootSector) clusterCountFATType() FATType {
	n := b.TotalClusters()
	switch {
	case n < maxClustersFAT12:
		return FAT12
	case n < maxClustersFAT16:
		return FAT16
	default:
		return FAT32
	}
}

func (b *BootSector) determineFATType() FATType {
	// The authoritative discriminator for FAT32 is whether the 16-bit
	// sectors-per-FAT field is zero (FAT32 always stores it in the 32-bit
	// field instead); cluster count then further splits FAT12 vs FAT16.
	if b.u16(bpbFATSz16) == 0 {
		return FAT32
	}
	return b.clusterCountFATType()
}

// ClusterToSector converts a cluster number (>=2) to its first sector.
func (b *BootSector) ClusterToSector(cluster uint32) uint32 {
	return b.FirstDataSector() + (cluster-2)*uint32(b.SectorsPerCluster())
}

func isPowerOfTwo(v uint32) bool { return v != 0 && v&(v-1) == 0 }

// Validate re-checks a decoded boot sector against the invariants that abort
// a mount (returned as err) and the ones that are merely unusual (returned
// as warnings for the caller to surface, e.g. via MountWarnings).
func (b *BootSector) Validate() (warnings []string, err error) {
	fail := func(reason string) ([]string, error) {
		return nil, newErr(KindCorruptedFileSystem, "Validate", "", fmt.Errorf("%s", reason))
	}

	if !isPowerOfTwo(uint32(b.BytesPerSector())) {
		return fail("bytes_per_sector is not a power of two")
	}
	if !isPowerOfTwo(uint32(b.SectorsPerCluster())) {
		return fail("sectors_per_cluster is not a power of two")
	}
	if b.NumFATs() == 0 {
		return fail("zero FATs")
	}
	if b.ReservedSectors() == 0 {
		return fail("zero reserved sectors")
	}
	if b.fatType == FAT32 && b.u16(bpbFSVer32) != 0 {
		return fail("fs_version is nonzero")
	}
	if b.TotalSectors() <= b.FirstDataSector() {
		return fail("total_sectors does not exceed first_data_sector")
	}

	sizeIsFAT32 := b.u16(bpbFATSz16) == 0
	clusterType := b.clusterCountFATType()
	if sizeIsFAT32 != (clusterType == FAT32) {
		return fail(fmt.Sprintf(
			"mismatched FAT32 determination: FATSz16 zero=%v, cluster-count type=%s",
			sizeIsFAT32, clusterType))
	}

	if b.NumFATs() > 2 {
		warnings = append(warnings, "boot sector: more than two FATs is unusual")
	}
	if b.fatType != FAT32 && b.ReservedSectors() != 1 {
		warnings = append(warnings, "boot sector: unusual reserved sector count for FAT12/16")
	}
	if cs := uint32(b.BytesPerSector()) * uint32(b.SectorsPerCluster()); cs > 32*1024 {
		warnings = append(warnings, "boot sector: cluster size exceeds 32 KiB")
	}
	if b.fatType != FAT32 && b.RootEntryCount() == 0 {
		return fail("zero root entry count on FAT12/16")
	}
	if b.fatType != FAT32 && (uint32(b.RootEntryCount())*32)%uint32(b.BytesPerSector()) != 0 {
		warnings = append(warnings, "boot sector: root entry count does not fill whole sectors")
	}
	return warnings, nil
}

func trimTrailingSpace(b []byte) string {
	i := len(b)
	for i > 0 && b[i-1] == ' ' {
		i--
	}
	return string(b[:i])
}

func copyPadded(dst []byte, s string, pad byte) {
	n := copy(dst, s)
	for ; n < len(dst); n++ {
		dst[n] = pad
	}
}
