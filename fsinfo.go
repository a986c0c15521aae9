package fatfs

import "encoding/binary"

// Byte offsets within the FAT32 FSInfo sector.
const (
	fsiLeadSig    = 0   // 0x41615252
	fsiStrucSig   = 484 // 0x61417272
	fsiFreeCount  = 488 // Last known free cluster count, 0xFFFFFFFF if unknown
	fsiNextFree   = 492 // Hint: next cluster to search from, 0xFFFFFFFF if unknown
	fsiTrailSig   = 508 // 0xAA550000
	fsiLeadSigVal = 0x41615252
	fsiStrucVal   = 0x61417272
	fsiTrailVal   = 0xAA550000
	unknownHint32 = 0xFFFFFFFF
)

// FSInfo is the decoded FAT32 FSInfo sector. It exists only for FAT32
// volumes; FAT12/16 have no equivalent and track free-cluster count purely
// by scanning the FAT.
type FSInfo struct {
	buf [sectorSize]byte
}

// ReadFSInfo reads the FSInfo sector at the given sector number (bpbFSInfo32
// from the boot sector), validating its three signatures. The hints are then
// sanitized against totalClusters: free_cluster_count is discarded as
// unknown if it exceeds totalClusters, or if wasDirty reports the volume
// was not cleanly unmounted last session; next_free_cluster is discarded
// as unknown if it exceeds totalClusters+1.
func ReadFSInfo(dev Device, bytesPerSector uint16, sector uint16, totalClusters uint32, wasDirty bool) (*FSInfo, error) {
	fi := &FSInfo{}
	off := int64(sector) * int64(bytesPerSector)
	if _, err := dev.ReadAt(fi.buf[:], off); err != nil {
		return nil, newErr(KindDeviceIO, "ReadFSInfo", "", err)
	}
	if binary.LittleEndian.Uint32(fi.buf[fsiLeadSig:]) != fsiLeadSigVal ||
		binary.LittleEndian.Uint32(fi.buf[fsiStrucSig:]) != fsiStrucVal ||
		binary.LittleEndian.Uint32(fi.buf[fsiTrailSig:]) != fsiTrailVal {
		return nil, newErr(KindCorruptedFileSystem, "ReadFSInfo", "", nil)
	}
	if wasDirty || fi.FreeClusterCount() > int64(totalClusters) {
		fi.SetFreeClusterCount(-1)
	}
	if next := fi.NextFreeCluster(); next > int64(totalClusters)+1 {
		fi.SetNextFreeCluster(-1)
	}
	return fi, nil
}

// NewFSInfo builds a fresh, correctly-signed FSInfo sector with unknown
// hints, used by the formatter.
func NewFSInfo() *FSInfo {
	fi := &FSInfo{}
	binary.LittleEndian.PutUint32(fi.buf[fsiLeadSig:], fsiLeadSigVal)
	binary.LittleEndian.PutUint32(fi.buf[fsiStrucSig:], fsiStrucVal)
	binary.LittleEndian.PutUint32(fi.buf[fsiFreeCount:], unknownHint32)
	binary.LittleEndian.PutUint32(fi.buf[fsiNextFree:], unknownHint32)
	binary.LittleEndian.PutUint32(fi.buf[fsiTrailSig:], fsiTrailVal)
	return fi
}

// FreeClusterCount returns the cached free cluster count hint, or -1 if the
// hint is marked unknown and must be recomputed by scanning the FAT.
func (f *FSInfo) FreeClusterCount() int64 {
	v := binary.LittleEndian.Uint32(f.buf[fsiFreeCount:])
	if v == unknownHint32 {
		return -1
	}
	return int64(v)
}

// SetFreeClusterCount stores a new hint. A value < 0 or >= unknownHint32
// stores the unknown marker instead, per spec: hints are clamped rather
// than allowed to carry a bogus value forward.
func (f *FSInfo) SetFreeClusterCount(n int64) {
	if n < 0 || n >= unknownHint32 {
		binary.LittleEndian.PutUint32(f.buf[fsiFreeCount:], unknownHint32)
		return
	}
	binary.LittleEndian.PutUint32(f.buf[fsiFreeCount:], uint32(n))
}

// NextFreeCluster returns the hinted cluster to resume allocation search
// from, or -1 if unknown.
func (f *FSInfo) NextFreeCluster() int64 {
	v := binary.LittleEndian.Uint32(f.buf[fsiNextFree:])
	if v == unknownHint32 || v < 2 {
		return -1
	}
	return int64(v)
}

// SetNextFreeCluster stores a new allocation-search hint.
func (f *FSInfo) SetNextFreeCluster(n int64) {
	if n < 2 {
		binary.LittleEndian.PutUint32(f.buf[fsiNextFree:], unknownHint32)
		return
	}
	binary.LittleEndian.PutUint32(f.buf[fsiNextFree:], uint32(n))
}

// WriteTo flushes the FSInfo sector back to dev at the given sector number.
// Per spec, FSInfo is only written at unmount (or explicit Flush), never on
// every allocation, to bound write amplification.
func (f *FSInfo) WriteTo(dev Device, bytesPerSector uint16, sector uint16) error {
	off := int64(sector) * int64(bytesPerSector)
	n, err := dev.WriteAt(f.buf[:], off)
	if err != nil {
		return newErr(KindDeviceIO, "FSInfo.WriteTo", "", err)
	}
	if n != len(f.buf) {
		return newErr(KindWriteZero, "FSInfo.WriteTo", "", nil)
	}
	return nil
}
