package fatfs

import (
	"encoding/binary"
	"time"
)

// fat16ClusterSizeTable maps a volume size threshold (in bytes, inclusive
// upper bound) to the cluster size Windows/DOS conventionally use for
// FAT16 volumes of that size, corroborated against the sizing table
// rafalh/rust-fatfs's format_volume uses; the teacher's own format.go left
// this table as a commented-out TODO.
var fat16ClusterSizeTable = []struct {
	maxBytes          int64
	sectorsPerCluster uint8
}{
	{4 * 1024 * 1024, 0}, // too small for FAT16
	{16 * 1024 * 1024, 1},
	{128 * 1024 * 1024, 4},
	{256 * 1024 * 1024, 8},
	{512 * 1024 * 1024, 16},
	{1024 * 1024 * 1024, 32},
	{2 * 1024 * 1024 * 1024, 64},
}

var fat32ClusterSizeTable = []struct {
	maxBytes          int64
	sectorsPerCluster uint8
}{
	{260 * 1024 * 1024, 0}, // too small for FAT32
	{8 * 1024 * 1024 * 1024, 8},
	{16 * 1024 * 1024 * 1024, 16},
	{32 * 1024 * 1024 * 1024, 32},
	{1 << 40, 64},
}

// FormatOptions configures Format. FATType, if zero, is chosen
// automatically from the device size the way spec's formatter describes.
type FormatOptions struct {
	FATType         FATType
	VolumeLabel     string
	BytesPerSector  uint16 // defaults to 512
	ReservedSectors uint16 // defaults to 1 (FAT12/16) or 32 (FAT32)
	NumFATs         uint8  // defaults to 2
}

// Format writes a fresh BPB, FAT(s), FSInfo (FAT32), backup boot sector
// (FAT32) and empty root directory to dev, sized to fill it. When
// VolumeLabel is set it mounts the new volume briefly to add the label
// entry and unmounts it again; in every case the caller mounts afterward.
func Format(dev Device, opts FormatOptions) error {
	size := dev.Size()
	bytesPerSector := opts.BytesPerSector
	if bytesPerSector == 0 {
		bytesPerSector = 512
	}
	fatType := opts.FATType
	if fatType == 0 {
		fatType = chooseFATType(size)
	}
	numFATs := opts.NumFATs
	if numFATs == 0 {
		numFATs = 2
	}
	reserved := opts.ReservedSectors
	if reserved == 0 {
		reserved = 1
		if fatType == FAT32 {
			reserved = 32
		}
	}
	spc := chooseSectorsPerCluster(fatType, size)
	if spc == 0 {
		return newErr(KindInvalidInput, "Format", "", nil)
	}

	totalSectors := uint32(size / int64(bytesPerSector))
	rootEntries := uint16(512)
	if fatType == FAT32 {
		rootEntries = 0
	}
	rootDirSectors := (uint32(rootEntries)*32 + uint32(bytesPerSector) - 1) / uint32(bytesPerSector)

	sectorsPerFAT := estimateSectorsPerFAT(fatType, totalSectors, uint32(reserved), uint32(numFATs), rootDirSectors, uint32(spc), uint32(bytesPerSector))

	bs := &BootSector{}
	copy(bs.buf[bsOEMName:bsOEMName+8], "FATFS4GO")
	bs.putU16(bpbBytsPerSec, bytesPerSector)
	bs.buf[bpbSecPerClus] = spc
	bs.putU16(bpbRsvdSecCnt, reserved)
	bs.buf[bpbNumFATs] = numFATs
	bs.putU16(bpbRootEntCnt, rootEntries)
	if totalSectors < 0x10000 {
		bs.putU16(bpbTotSec16, uint16(totalSectors))
	} else {
		bs.putU32(bpbTotSec32, totalSectors)
	}
	bs.buf[bpbMedia] = 0xF8
	if fatType == FAT32 {
		bs.putU32(bpbFATSz32, sectorsPerFAT)
		bs.putU32(bpbRootClus32, 2)
		bs.putU16(bpbFSInfo32, 1)
		bs.putU16(bpbBkBootSec32, 6)
		bs.buf[bsBootSig32] = 0x29
		bs.putU32(bsVolID32, uint32(time.Now().UnixNano()))
		copyPadded(bs.buf[bsVolLab32:bsVolLab32+11], opts.VolumeLabel, ' ')
		copy(bs.buf[bsFilSysType32:bsFilSysType32+8], "FAT32   ")
	} else {
		bs.putU16(bpbFATSz16, uint16(sectorsPerFAT))
		bs.buf[bsBootSig] = 0x29
		bs.putU32(bsVolID, uint32(time.Now().UnixNano()))
		copyPadded(bs.buf[bsVolLab:bsVolLab+11], opts.VolumeLabel, ' ')
		label := "FAT16   "
		if fatType == FAT12 {
			label = "FAT12   "
		}
		copy(bs.buf[bsFilSysType:bsFilSysType+8], label)
	}
	bs.buf[bs55AA] = 0x55
	bs.buf[bs55AA+1] = 0xAA
	bs.fatType = fatType

	if _, err := dev.WriteAt(bs.buf[:], 0); err != nil {
		return newErr(KindDeviceIO, "Format", "", err)
	}

	if fatType == FAT32 {
		backupOff := int64(6) * int64(bytesPerSector)
		if _, err := dev.WriteAt(bs.buf[:], backupOff); err != nil {
			return newErr(KindDeviceIO, "Format", "", err)
		}
		fi := NewFSInfo()
		fi.SetFreeClusterCount(-1)
		fi.SetNextFreeCluster(-1)
		if err := fi.WriteTo(dev, bytesPerSector, 1); err != nil {
			return err
		}
		backupFI := int64(7) * int64(bytesPerSector)
		if _, err := dev.WriteAt(fi.buf[:], backupFI); err != nil {
			return newErr(KindDeviceIO, "Format", "", err)
		}
	}

	fatStart := int64(reserved) * int64(bytesPerSector)
	fatBytes := int64(sectorsPerFAT) * int64(bytesPerSector)
	zero := make([]byte, fatBytes)
	for i := uint8(0); i < numFATs; i++ {
		if _, err := dev.WriteAt(zero, fatStart+int64(i)*fatBytes); err != nil {
			return newErr(KindDeviceIO, "Format", "", err)
		}
	}
	// Reserve the first two FAT entries (media descriptor + EOC marker),
	// matching the convention every FAT implementation follows.
	if err := initReservedEntries(dev, fatStart, fatBytes, fatType, numFATs); err != nil {
		return err
	}

	rootOff := fatStart + int64(numFATs)*fatBytes
	if fatType == FAT32 {
		zeroCluster := make([]byte, int64(spc)*int64(bytesPerSector))
		if _, err := dev.WriteAt(zeroCluster, rootOff); err != nil {
			return newErr(KindDeviceIO, "Format", "", err)
		}
	} else {
		zeroRoot := make([]byte, int64(rootDirSectors)*int64(bytesPerSector))
		if _, err := dev.WriteAt(zeroRoot, rootOff); err != nil {
			return newErr(KindDeviceIO, "Format", "", err)
		}
	}

	if err := dev.Flush(); err != nil {
		return newErr(KindDeviceIO, "Format", "", err)
	}

	if opts.VolumeLabel != "" {
		fs, _, err := Mount(dev, MountOptions{})
		if err != nil {
			return err
		}
		root, err := fs.RootDir()
		if err != nil {
			return err
		}
		if err := root.CreateVolumeID(opts.VolumeLabel); err != nil {
			return err
		}
		return fs.Unmount()
	}
	return nil
}

func chooseFATType(size int64) FATType {
	if size < 260*1024*1024 {
		return FAT16
	}
	return FAT32
}

func chooseSectorsPerCluster(fatType FATType, size int64) uint8 {
	if fatType == FAT12 {
		spc := uint8(1)
		for spc < 128 && size/512/int64(spc) >= maxClustersFAT12 {
			spc *= 2
		}
		return spc
	}
	table := fat16ClusterSizeTable
	if fatType == FAT32 {
		table = fat32ClusterSizeTable
	}
	for _, row := range table {
		if size <= row.maxBytes {
			return row.sectorsPerCluster
		}
	}
	return table[len(table)-1].sectorsPerCluster
}

// estimateSectorsPerFAT solves for the sectors-per-FAT fixed point: the FAT
// region's own size affects how many data sectors remain, which in turn
// affects how many clusters (and thus FAT entries) are needed. A handful
// of iterations converge in practice for any realistic volume size.
func estimateSectorsPerFAT(fatType FATType, totalSectors, reserved, numFATs, rootDirSectors, spc, bytesPerSector uint32) uint32 {
	entrySize := uint32(2)
	if fatType == FAT32 {
		entrySize = 4
	}
	guess := uint32(1)
	for i := 0; i < 6; i++ {
		dataSectors := totalSectors - reserved - numFATs*guess - rootDirSectors
		clusters := dataSectors / spc
		bytesNeeded := (clusters + 2) * entrySize
		sectorsNeeded := (bytesNeeded + bytesPerSector - 1) / bytesPerSector
		if sectorsNeeded == guess {
			break
		}
		guess = sectorsNeeded
	}
	if guess == 0 {
		guess = 1
	}
	return guess
}

func initReservedEntries(dev Device, fatStart, fatBytes int64, fatType FATType, numFATs uint8) error {
	for i := uint8(0); i < numFATs; i++ {
		base := fatStart + int64(i)*fatBytes
		switch fatType {
		case FAT12:
			buf := []byte{0xF8, 0xFF, 0xFF}
			if _, err := dev.WriteAt(buf, base); err != nil {
				return newErr(KindDeviceIO, "initReservedEntries", "", err)
			}
		case FAT16:
			buf := make([]byte, 4)
			binary.LittleEndian.PutUint16(buf[0:], 0xFFF8)
			binary.LittleEndian.PutUint16(buf[2:], 0xFFFF)
			if _, err := dev.WriteAt(buf, base); err != nil {
				return newErr(KindDeviceIO, "initReservedEntries", "", err)
			}
		default: // FAT32
			buf := make([]byte, 12)
			binary.LittleEndian.PutUint32(buf[0:], 0x0FFFFFF8)
			binary.LittleEndian.PutUint32(buf[4:], 0x0FFFFFFF)
			binary.LittleEndian.PutUint32(buf[8:], 0x0FFFFFFF) // cluster 2 (root) is EOC
			if _, err := dev.WriteAt(buf, base); err != nil {
				return newErr(KindDeviceIO, "initReservedEntries", "", err)
			}
		}
	}
	return nil
}
