package fatfs

import "encoding/binary"

const (
	clusterFree    = 0
	clusterBad12   = 0xFF7
	clusterBad16   = 0xFFF7
	clusterBad32   = 0x0FFFFFF7
	clusterEOC12   = 0xFFF
	clusterEOC16   = 0xFFFF
	clusterEOC32   = 0x0FFFFFFF
	clusterMask32  = 0x0FFFFFFF
	firstDataClust = 2
)

// Table is the FAT engine: it owns the on-disk File Allocation Table(s) and
// exposes cluster-chain primitives (get/set/alloc/free/truncate) in terms
// of cluster numbers, independent of FAT12/16/32 entry encoding.
type Table struct {
	dev            Device
	fatType        FATType
	bytesPerSector uint16
	sectorsPerFAT  uint32
	numFATs        uint8
	fatStartByte   int64
	totalClusters  uint32
	fsinfo         *FSInfo // nil for FAT12/16
	fsinfoSector   uint16
	nextFreeHint   uint32
	logger         *logger

	// mirrorFATs is false when FAT32 extended_flags disables mirroring
	// (bit 7 set); writes then target only activeFAT instead of every copy.
	mirrorFATs bool
	activeFAT  uint8

	// onDirty is invoked before every entry write; Mount wires it to
	// FileSystem.markDirtyOnce, which sets the volume's dirty status flag on
	// the first call of the session only. It is nil unless Mount sets it.
	onDirty func() error
}

func newTable(dev Device, bs *BootSector, fi *FSInfo, lg *logger) *Table {
	t := &Table{
		dev:            dev,
		fatType:        bs.FATType(),
		bytesPerSector: bs.BytesPerSector(),
		sectorsPerFAT:  bs.SectorsPerFAT(),
		numFATs:        bs.NumFATs(),
		fatStartByte:   int64(bs.ReservedSectors()) * int64(bs.BytesPerSector()),
		totalClusters:  bs.TotalClusters(),
		fsinfo:         fi,
		fsinfoSector:   bs.FSInfoSector(),
		logger:         lg,
		mirrorFATs:     true,
	}
	if ef := bs.ExtFlags32(); ef&0x80 != 0 {
		t.mirrorFATs = false
		t.activeFAT = uint8(ef & 0x0F)
	}
	if fi != nil {
		if hint := fi.NextFreeCluster(); hint >= 2 {
			t.nextFreeHint = uint32(hint)
		}
	}
	if t.nextFreeHint < firstDataClust {
		t.nextFreeHint = firstDataClust
	}
	return t
}

// entryByteOffset returns the byte offset (within one FAT copy) of the
// entry for cluster n, along with how many bytes must be read to cover it
// (2 for FAT12 since entries straddle byte boundaries, 2 for FAT16, 4 for
// FAT32).
func (t *Table) entryByteOffset(n uint32) (off int64, width int) {
	switch t.fatType {
	case FAT12:
		return int64(n + n/2), 2
	case FAT16:
		return int64(n) * 2, 2
	default: // FAT32
		return int64(n) * 4, 4
	}
}

// Get returns the raw entry value for cluster n (next cluster in chain, or
// a free/bad/EOC marker).
func (t *Table) Get(n uint32) (uint32, error) {
	if n < firstDataClust || n >= t.totalClusters+firstDataClust {
		return 0, newErr(KindInvalidInput, "Table.Get", "", nil)
	}
	off, width := t.entryByteOffset(n)
	buf := make([]byte, width)
	if _, err := t.dev.ReadAt(buf, t.fatCopyBases()[0]+off); err != nil {
		return 0, newErr(KindDeviceIO, "Table.Get", "", err)
	}
	switch t.fatType {
	case FAT12:
		v := binary.LittleEndian.Uint16(buf)
		if n%2 == 0 {
			return uint32(v & 0x0FFF), nil
		}
		return uint32(v >> 4), nil
	case FAT16:
		return uint32(binary.LittleEndian.Uint16(buf)), nil
	default:
		return binary.LittleEndian.Uint32(buf) & clusterMask32, nil
	}
}

// fatCopyBases returns the byte offset of the start of each FAT copy a write
// must reach: every copy when mirroring is enabled (the common case), or
// just the single active FAT when FAT32 extended_flags disables mirroring.
func (t *Table) fatCopyBases() []int64 {
	fatSize := int64(t.sectorsPerFAT) * int64(t.bytesPerSector)
	if !t.mirrorFATs {
		return []int64{t.fatStartByte + int64(t.activeFAT)*fatSize}
	}
	bases := make([]int64, t.numFATs)
	for i := range bases {
		bases[i] = t.fatStartByte + int64(i)*fatSize
	}
	return bases
}

// Set writes a new entry value for cluster n, mirroring the write to every
// FAT copy unless extended_flags names a single active FAT (bpbNumFATs,
// §4.4). For FAT32, the top 4 reserved bits of the existing on-disk entry
// are preserved, per spec.
func (t *Table) Set(n uint32, value uint32) error {
	if n < firstDataClust || n >= t.totalClusters+firstDataClust {
		return newErr(KindInvalidInput, "Table.Set", "", nil)
	}
	if t.onDirty != nil {
		if err := t.onDirty(); err != nil {
			return err
		}
	}
	off, width := t.entryByteOffset(n)
	for _, base := range t.fatCopyBases() {
		switch t.fatType {
		case FAT12:
			buf := make([]byte, 2)
			if _, err := t.dev.ReadAt(buf, base+off); err != nil {
				return newErr(KindDeviceIO, "Table.Set", "", err)
			}
			v := binary.LittleEndian.Uint16(buf)
			if n%2 == 0 {
				v = (v & 0xF000) | uint16(value&0x0FFF)
			} else {
				v = (v & 0x000F) | uint16(value&0x0FFF)<<4
			}
			binary.LittleEndian.PutUint16(buf, v)
			if _, err := t.dev.WriteAt(buf, base+off); err != nil {
				return newErr(KindDeviceIO, "Table.Set", "", err)
			}
		case FAT16:
			buf := make([]byte, 2)
			binary.LittleEndian.PutUint16(buf, uint16(value))
			if _, err := t.dev.WriteAt(buf, base+off); err != nil {
				return newErr(KindDeviceIO, "Table.Set", "", err)
			}
		default: // FAT32
			buf := make([]byte, 4)
			if _, err := t.dev.ReadAt(buf, base+off); err != nil {
				return newErr(KindDeviceIO, "Table.Set", "", err)
			}
			existing := binary.LittleEndian.Uint32(buf)
			newVal := (existing &^ clusterMask32) | (value & clusterMask32)
			binary.LittleEndian.PutUint32(buf, newVal)
			if _, err := t.dev.WriteAt(buf, base+off); err != nil {
				return newErr(KindDeviceIO, "Table.Set", "", err)
			}
		}
	}
	return nil
}

// IsEOC reports whether v marks the end of a cluster chain for this
// variant.
func (t *Table) IsEOC(v uint32) bool {
	switch t.fatType {
	case FAT12:
		return v >= 0xFF8
	case FAT16:
		return v >= 0xFFF8
	default:
		return v >= 0x0FFFFFF8
	}
}

// IsBad reports whether v marks a bad cluster for this variant.
func (t *Table) IsBad(v uint32) bool {
	switch t.fatType {
	case FAT12:
		return v == clusterBad12
	case FAT16:
		return v == clusterBad16
	default:
		return v == clusterBad32
	}
}

func (t *Table) eocValue() uint32 {
	switch t.fatType {
	case FAT12:
		return clusterEOC12
	case FAT16:
		return clusterEOC16
	default:
		return clusterEOC32
	}
}

// ClusterChain iterates the cluster numbers of a chain starting at first,
// in order, stopping at EOC. It validates that every entry it crosses is in
// range and not a bad-cluster marker, surfacing KindCorruptedFileSystem
// otherwise.
type ClusterChain struct {
	t       *Table
	current uint32
	done    bool
	err     error
}

// Chain returns an iterator over the cluster chain starting at first. A
// first of 0 yields an immediately-exhausted iterator (used for empty
// files/directories).
func (t *Table) Chain(first uint32) *ClusterChain {
	return &ClusterChain{t: t, current: first, done: first == 0}
}

// Next advances to and returns the next cluster in the chain. ok is false
// once the chain is exhausted (check Err to distinguish clean EOC from a
// corruption error).
func (c *ClusterChain) Next() (cluster uint32, ok bool) {
	if c.done || c.err != nil {
		return 0, false
	}
	cluster = c.current
	next, err := c.t.Get(cluster)
	if err != nil {
		c.err = err
		c.done = true
		return cluster, true
	}
	if c.t.IsEOC(next) {
		c.done = true
	} else if c.t.IsBad(next) || next < firstDataClust || next >= c.t.totalClusters+firstDataClust {
		c.err = newErr(KindCorruptedFileSystem, "ClusterChain.Next", "", nil)
		c.done = true
	} else {
		c.current = next
	}
	return cluster, true
}

// Err returns any corruption error encountered while walking the chain.
func (c *ClusterChain) Err() error { return c.err }

// Alloc finds one free cluster, marks it EOC, and links it directly after
// last, which is expected to be the chain's tail (last == 0 means start a
// brand-new chain).
// It returns the newly allocated cluster number.
func (t *Table) Alloc(last uint32) (uint32, error) {
	found, err := t.findFree()
	if err != nil {
		return 0, err
	}
	if err := t.Set(found, t.eocValue()); err != nil {
		return 0, err
	}
	if last != 0 {
		if err := t.Set(last, found); err != nil {
			return 0, err
		}
	}
	t.nextFreeHint = found + 1
	if t.fsinfo != nil {
		if hint := t.fsinfo.FreeClusterCount(); hint >= 0 {
			t.fsinfo.SetFreeClusterCount(hint - 1)
		}
		t.fsinfo.SetNextFreeCluster(int64(t.nextFreeHint))
	}
	return found, nil
}

func (t *Table) findFree() (uint32, error) {
	max := t.totalClusters + firstDataClust
	start := t.nextFreeHint
	if start < firstDataClust || start >= max {
		start = firstDataClust
	}
	for n := start; n < max; n++ {
		v, err := t.Get(n)
		if err != nil {
			return 0, err
		}
		if v == clusterFree {
			return n, nil
		}
	}
	for n := uint32(firstDataClust); n < start; n++ {
		v, err := t.Get(n)
		if err != nil {
			return 0, err
		}
		if v == clusterFree {
			return n, nil
		}
	}
	return 0, newErr(KindNotEnoughSpace, "Table.Alloc", "", nil)
}

// FreeChain marks every cluster in the chain beginning at first as free.
func (t *Table) FreeChain(first uint32) error {
	chain := t.Chain(first)
	for {
		cluster, ok := chain.Next()
		if !ok {
			break
		}
		if err := t.Set(cluster, clusterFree); err != nil {
			return err
		}
		if t.fsinfo != nil {
			if hint := t.fsinfo.FreeClusterCount(); hint >= 0 {
				t.fsinfo.SetFreeClusterCount(hint + 1)
			}
		}
	}
	return chain.Err()
}

// TruncateChain frees every cluster in the chain after keepLast (keepLast
// itself is retained and marked EOC). If keepLast is 0, the entire chain is
// freed.
func (t *Table) TruncateChain(first, keepLast uint32) error {
	if keepLast == 0 {
		return t.FreeChain(first)
	}
	next, err := t.Get(keepLast)
	if err != nil {
		return err
	}
	if t.IsEOC(next) {
		return nil // already the tail
	}
	if err := t.Set(keepLast, t.eocValue()); err != nil {
		return err
	}
	return t.FreeChain(next)
}

// Stats scans the FAT and returns the free and total cluster counts. If a
// FSInfo hint is available and non-negative it is trusted instead of
// scanning, matching spec's guidance that FSInfo is a cache, not a source
// of truth, but is used when present and plausible.
func (t *Table) Stats() (free, total uint32, err error) {
	total = t.totalClusters
	if t.fsinfo != nil {
		if hint := t.fsinfo.FreeClusterCount(); hint >= 0 && uint32(hint) <= total {
			return uint32(hint), total, nil
		}
	}
	var count uint32
	for n := uint32(firstDataClust); n < total+firstDataClust; n++ {
		v, err := t.Get(n)
		if err != nil {
			return 0, total, err
		}
		if v == clusterFree {
			count++
		}
	}
	if t.fsinfo != nil {
		t.fsinfo.SetFreeClusterCount(int64(count))
	}
	return count, total, nil
}

// rawEntry1 returns the unmasked value of FAT entry 1, whose reserved high
// bits carry the dirty/IO-error status flags on FAT16/FAT32.
func (t *Table) rawEntry1() (uint32, error) {
	off, width := t.entryByteOffset(1)
	buf := make([]byte, width)
	if _, err := t.dev.ReadAt(buf, t.fatCopyBases()[0]+off); err != nil {
		return 0, newErr(KindDeviceIO, "Table.rawEntry1", "", err)
	}
	if width == 2 {
		return uint32(binary.LittleEndian.Uint16(buf)), nil
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// setEntry1Flags updates the dirty/IO-error bits of FAT entry 1 without
// disturbing the low bits that (for entry 1, which is never a real cluster
// in a chain) are conventionally all set.
func (t *Table) setEntry1Flags(flags StatusFlags) error {
	raw, err := t.rawEntry1()
	if err != nil {
		return err
	}
	var dirtyBit, ioBit uint32
	if t.fatType == FAT16 {
		dirtyBit, ioBit = 0x8000, 0x4000
	} else {
		dirtyBit, ioBit = 0x08000000, 0x04000000
	}
	if flags.Dirty {
		raw &^= dirtyBit
	} else {
		raw |= dirtyBit
	}
	if flags.IOErrorSeen {
		raw &^= ioBit
	} else {
		raw |= ioBit
	}
	off, width := t.entryByteOffset(1)
	for _, base := range t.fatCopyBases() {
		buf := make([]byte, width)
		if width == 2 {
			binary.LittleEndian.PutUint16(buf, uint16(raw))
		} else {
			binary.LittleEndian.PutUint32(buf, raw)
		}
		if _, err := t.dev.WriteAt(buf, base+off); err != nil {
			return newErr(KindDeviceIO, "Table.setEntry1Flags", "", err)
		}
	}
	return nil
}

// FlushFSInfo writes back the FSInfo sector if this table tracks one
// (FAT32 only). Called by FileSystem.Sync (and so Unmount), never
// per-operation.
func (t *Table) FlushFSInfo() error {
	if t.fsinfo == nil {
		return nil
	}
	return t.fsinfo.WriteTo(t.dev, t.bytesPerSector, t.fsinfoSector)
}
