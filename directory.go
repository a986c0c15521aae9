package fatfs

import (
	"strings"
	"time"
)

// DirEntry is the logical view of one named directory member: the
// combination of zero-or-more LFN fragments plus the short-name entry they
// describe, exactly as spec's directory engine bundles them while
// iterating. It also records where on disk the entry's slots live, so
// Directory.Delete/Rename can find them again without a second scan.
type DirEntry struct {
	Name         string // long name if present, else the decoded short name
	ShortName    string
	IsDir        bool
	IsReadOnly   bool
	IsHidden     bool
	IsSystem     bool
	Size         uint32
	FirstCluster uint32
	ModTime      time.Time
	CreateTime   time.Time

	dir        *Directory
	slotStart  int // index of the first slot (LFN or short) backing this entry
	slotCount  int // number of 32-byte slots occupied (LFN fragments + 1)
}

// Directory is a handle onto one directory's contents. It borrows its
// FileSystem and must not outlive it, matching spec's single-owner
// concurrency model: FileSystem owns the Device, Directory/File handles
// only ever read/write through it.
type Directory struct {
	fs           *FileSystem
	firstCluster uint32 // 0 for the FAT12/16 fixed root
	region       *dirRegion
}

// dirRegion abstracts over the two physical layouts a directory's slots can
// have: the FAT12/16 root directory lives in a fixed sector range sized by
// the boot sector's RootEntryCount, while every subdirectory (and the
// FAT32 root) is an ordinary cluster chain that can be extended.
type dirRegion struct {
	fs       *FileSystem
	fixed    bool
	fixedOff int64 // byte offset of the fixed root region
	fixedCap int   // slot capacity of the fixed root region
	clusters []uint32
}

func newFixedRegion(fs *FileSystem) *dirRegion {
	bs := fs.bootSector
	return &dirRegion{
		fs:       fs,
		fixed:    true,
		fixedOff: int64(bs.FirstRootDirSector()) * int64(bs.BytesPerSector()),
		fixedCap: int(bs.RootEntryCount()),
	}
}

func newChainRegion(fs *FileSystem, firstCluster uint32) (*dirRegion, error) {
	r := &dirRegion{fs: fs}
	chain := fs.table.Chain(firstCluster)
	for {
		c, ok := chain.Next()
		if !ok {
			break
		}
		r.clusters = append(r.clusters, c)
	}
	if err := chain.Err(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *dirRegion) bytesPerCluster() int64 {
	bs := r.fs.bootSector
	return int64(bs.BytesPerSector()) * int64(bs.SectorsPerCluster())
}

func (r *dirRegion) slotCount() int {
	if r.fixed {
		return r.fixedCap
	}
	return len(r.clusters) * int(r.bytesPerCluster()/direntSize)
}

func (r *dirRegion) slotOffset(i int) int64 {
	if r.fixed {
		return r.fixedOff + int64(i)*direntSize
	}
	perCluster := int(r.bytesPerCluster() / direntSize)
	clusterIdx := i / perCluster
	withinCluster := i % perCluster
	clusterByte := r.fs.bootSector.ClusterToSector(r.clusters[clusterIdx]) * uint32(r.fs.bootSector.BytesPerSector())
	return int64(clusterByte) + int64(withinCluster)*direntSize
}

func (r *dirRegion) readSlot(i int) (rawEntry, error) {
	var e rawEntry
	off := r.slotOffset(i)
	if _, err := r.fs.device.ReadAt(e.buf[:], off); err != nil {
		return e, newErr(KindDeviceIO, "readSlot", "", err)
	}
	return e, nil
}

func (r *dirRegion) writeSlot(i int, e rawEntry) error {
	off := r.slotOffset(i)
	n, err := r.fs.device.WriteAt(e.buf[:], off)
	if err != nil {
		return newErr(KindDeviceIO, "writeSlot", "", err)
	}
	if n != direntSize {
		return newErr(KindWriteZero, "writeSlot", "", nil)
	}
	return nil
}

// extend grows a chain-backed region by one cluster, zeroing it, and
// returns the number of new slots made available. Fixed (FAT12/16 root)
// regions cannot be extended; spec treats running out of fixed root slots
// as NotEnoughSpace rather than a recoverable condition.
func (r *dirRegion) extend() (int, error) {
	if r.fixed {
		return 0, newErr(KindNotEnoughSpace, "dirRegion.extend", "", nil)
	}
	var last uint32
	if len(r.clusters) > 0 {
		last = r.clusters[len(r.clusters)-1]
	}
	nc, err := r.fs.table.Alloc(last)
	if err != nil {
		return 0, err
	}
	zero := make([]byte, r.bytesPerCluster())
	off := int64(r.fs.bootSector.ClusterToSector(nc)) * int64(r.fs.bootSector.BytesPerSector())
	if _, err := r.fs.device.WriteAt(zero, off); err != nil {
		return 0, newErr(KindDeviceIO, "dirRegion.extend", "", err)
	}
	r.clusters = append(r.clusters, nc)
	return int(r.bytesPerCluster() / direntSize), nil
}

// rootDirectory builds the Directory handle for the volume root, which is a
// fixed region on FAT12/16 and a cluster chain on FAT32.
func rootDirectory(fs *FileSystem) (*Directory, error) {
	if fs.bootSector.FATType() == FAT32 {
		region, err := newChainRegion(fs, fs.bootSector.RootCluster())
		if err != nil {
			return nil, err
		}
		return &Directory{fs: fs, firstCluster: fs.bootSector.RootCluster(), region: region}, nil
	}
	return &Directory{fs: fs, firstCluster: 0, region: newFixedRegion(fs)}, nil
}

func openDirectoryAt(fs *FileSystem, firstCluster uint32) (*Directory, error) {
	if firstCluster == 0 {
		// A ".." entry pointing at the root directory stores cluster 0.
		return rootDirectory(fs)
	}
	region, err := newChainRegion(fs, firstCluster)
	if err != nil {
		return nil, err
	}
	return &Directory{fs: fs, firstCluster: firstCluster, region: region}, nil
}

// OpenSubdir returns a handle to the subdirectory named by e, which must
// have come from this Directory's FindPath or ForEach and have IsDir set.
func (d *Directory) OpenSubdir(e DirEntry) (*Directory, error) {
	if !e.IsDir {
		return nil, newErr(KindInvalidInput, "OpenSubdir", e.Name, nil)
	}
	return openDirectoryAt(d.fs, e.FirstCluster)
}

// iterEntry is one raw slot plus its index, yielded while scanning.
type iterEntry struct {
	idx int
	raw rawEntry
}

// scan walks every occupied slot front to back, calling fn for each
// non-free, non-deleted slot. Scanning stops early if fn returns false.
func (d *Directory) scan(fn func(iterEntry) bool) error {
	n := d.region.slotCount()
	for i := 0; i < n; i++ {
		e, err := d.region.readSlot(i)
		if err != nil {
			return err
		}
		if e.isEndOfDir() {
			return nil
		}
		if e.isDeleted() {
			continue
		}
		if !fn(iterEntry{idx: i, raw: e}) {
			return nil
		}
	}
	return nil
}

// ForEach iterates the logical entries of the directory (bundling LFN
// fragments with the short entry they describe), calling fn for each.
// Iteration stops early if fn returns false. "." and ".." are included,
// matching the teacher's get_fileinfo behavior.
func (d *Directory) ForEach(fn func(DirEntry) bool) error {
	var pendingLFN []iterEntry
	stop := false
	err := d.scan(func(e iterEntry) bool {
		if stop {
			return false
		}
		if e.raw.isLFN() {
			pendingLFN = append(pendingLFN, e)
			return true
		}
		if e.raw.isVolumeID() {
			pendingLFN = nil
			return true
		}
		de := d.buildDirEntry(e, pendingLFN)
		pendingLFN = nil
		if !fn(de) {
			stop = true
			return false
		}
		return true
	})
	return err
}

func (d *Directory) buildDirEntry(short iterEntry, lfnSlots []iterEntry) DirEntry {
	sn := short.raw.shortName()
	decoded := sn.Decode(d.fs.oem)
	name := decoded
	start := short.idx
	count := 1
	if len(lfnSlots) > 0 && validLFNChain(lfnSlots, sn) {
		// LFN fragments are stored last-fragment-first ahead of the short
		// entry; reverse into name order (first fragment = earliest text).
		ordered := make([][lfnUnitsLen]uint16, len(lfnSlots))
		for i, s := range lfnSlots {
			_, _, _, units := decodeLFNEntry(s.raw.buf[:])
			ordered[len(lfnSlots)-1-i] = units
		}
		name = lfnUnitsToString(ordered)
		start = lfnSlots[0].idx
		count = len(lfnSlots) + 1
	}
	return DirEntry{
		Name:         name,
		ShortName:    decoded,
		IsDir:        short.raw.isDir(),
		IsReadOnly:   short.raw.attr()&attrReadOnly != 0,
		IsHidden:     short.raw.attr()&attrHidden != 0,
		IsSystem:     short.raw.attr()&attrSystem != 0,
		Size:         short.raw.fileSize(),
		FirstCluster: short.raw.firstCluster(),
		ModTime:      short.raw.modTime(),
		CreateTime:   short.raw.createTime(),
		dir:          d,
		slotStart:    start,
		slotCount:    count,
	}
}

// validLFNChain checks the LFN fragments immediately preceding a short
// entry actually describe it: correct checksum and a contiguous, properly
// ordered ordinal sequence ending at the "last" fragment. Per spec, a
// violation discards the LFN rather than failing the scan; the short name
// alone is used instead.
func validLFNChain(slots []iterEntry, sn ShortName) bool {
	checksum := sfnChecksum(sn.raw)
	for i, s := range slots {
		ord, last, chk, _ := decodeLFNEntry(s.raw.buf[:])
		if chk != checksum {
			return false
		}
		if i == 0 && !last {
			return false
		}
		if ord != len(slots)-i {
			return false
		}
	}
	return true
}

// splitPath breaks a '/'-separated path into its components, ignoring
// leading/trailing/duplicate separators. "." and ".." components are kept
// as-is for FindPath to resolve.
func splitPath(path string) []string {
	raw := strings.Split(path, "/")
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// FindPath resolves a '/'-separated path relative to d, following "." and
// ".." components and performing case-insensitive name comparison on each
// segment, matching spec's path resolution rule. "." and ".." are looked up
// as on-disk entries, so they resolve inside subdirectories only; the root
// directory has no such entries.
func (d *Directory) FindPath(path string) (DirEntry, error) {
	cur := d
	parts := splitPath(path)
	if len(parts) == 0 {
		return DirEntry{}, newErr(KindInvalidInput, "FindPath", path, nil)
	}
	for i, part := range parts {
		last := i == len(parts)-1
		entry, err := cur.findName(part)
		if err != nil {
			return DirEntry{}, newErr(KindNotFound, "FindPath", path, err)
		}
		if last {
			return entry, nil
		}
		if !entry.IsDir {
			return DirEntry{}, newErr(KindInvalidInput, "FindPath", path, nil)
		}
		next, err := openDirectoryAt(d.fs, entry.FirstCluster)
		if err != nil {
			return DirEntry{}, err
		}
		cur = next
	}
	return DirEntry{}, newErr(KindNotFound, "FindPath", path, nil)
}

func (d *Directory) findName(name string) (DirEntry, error) {
	var found DirEntry
	ok := false
	err := d.ForEach(func(e DirEntry) bool {
		if strings.EqualFold(e.Name, name) || strings.EqualFold(e.ShortName, name) {
			found = e
			ok = true
			return false
		}
		return true
	})
	if err != nil {
		return DirEntry{}, err
	}
	if !ok {
		return DirEntry{}, newErr(KindNotFound, "findName", name, nil)
	}
	return found, nil
}

// findFreeRun locates `need` consecutive free/deleted slots, extending the
// region (for chain-backed directories) if none are found, matching the
// UnexpectedEof-triggers-extension recovery spec describes.
func (d *Directory) findFreeRun(need int) (int, error) {
	run := 0
	start := -1
	n := d.region.slotCount()
	for i := 0; i < n; i++ {
		e, err := d.region.readSlot(i)
		if err != nil {
			return 0, err
		}
		if e.isFree() || e.isDeleted() {
			if run == 0 {
				start = i
			}
			run++
			if run >= need {
				return start, nil
			}
		} else {
			run = 0
		}
	}
	added, err := d.region.extend()
	if err != nil {
		return 0, err
	}
	if run == 0 {
		start = n
	}
	if run+added < need {
		return 0, newErr(KindNotEnoughSpace, "findFreeRun", "", nil)
	}
	return start, nil
}

// needsLFN reports whether name requires LFN fragments: either the
// short-name generation was lossy, or the decoded short name does not
// round-trip to an identical string (case differences count as lossy).
func needsLFN(name string, body, ext string, loss bool) bool {
	if loss {
		return true
	}
	want := body
	if ext != "" {
		want += "." + ext
	}
	return want != name
}

// Create adds a new directory entry named name with the given attribute
// byte and, for directories, a freshly allocated first cluster containing
// synthesized "." and ".." entries. It returns KindAlreadyExists if name
// already resolves within d.
func (d *Directory) Create(name string, attr byte) (DirEntry, error) {
	d.fs.logger.trace("directory:create", "name", name)
	units := 0
	for _, r := range name {
		units++
		if r >= 0x10000 {
			units++
		}
	}
	if units == 0 || units > 255 {
		return DirEntry{}, newErr(KindInvalidInput, "Create", name, nil)
	}
	if _, err := d.findName(name); err == nil {
		return DirEntry{}, newErr(KindAlreadyExists, "Create", name, nil)
	}
	body, ext, loss := GenerateShortName(name, d.fs.oem)
	raw := encodeRawShortName(body, ext)
	if err := d.resolveShortNameCollision(&raw, name); err != nil {
		return DirEntry{}, err
	}

	var firstCluster uint32
	if attr&attrDir != 0 {
		nc, err := d.fs.table.Alloc(0)
		if err != nil {
			return DirEntry{}, err
		}
		firstCluster = nc
		if err := d.initSubdirectory(nc, d.selfCluster()); err != nil {
			return DirEntry{}, err
		}
	}

	needLFN := needsLFN(name, body, ext, loss)
	slots := 1
	var frags [][lfnUnitsLen]uint16
	if needLFN {
		frags = lfnFragments(name)
		slots += len(frags)
	}
	start, err := d.findFreeRun(slots)
	if err != nil {
		return DirEntry{}, err
	}

	now := d.fs.now()
	if needLFN {
		checksum := sfnChecksum(raw)
		for i, frag := range frags {
			var e rawEntry
			// Disk order is last-fragment-first.
			diskIdx := len(frags) - 1 - i
			encodeLFNEntry(e.buf[:], frag, i, i == len(frags)-1, checksum)
			if err := d.region.writeSlot(start+diskIdx, e); err != nil {
				return DirEntry{}, err
			}
		}
	}
	var short rawEntry
	copy(short.buf[deName:deName+11], raw[:])
	short.setAttr(attr)
	short.setFirstCluster(firstCluster)
	short.setFileSize(0)
	short.setModTime(now)
	short.setCreateTime(now)
	if err := d.region.writeSlot(start+slots-1, short); err != nil {
		return DirEntry{}, err
	}
	de := d.buildDirEntry(iterEntry{idx: start + slots - 1, raw: short}, nil)
	if needLFN {
		de.Name = name
	}
	de.slotStart = start
	de.slotCount = slots
	return de, nil
}

func (d *Directory) selfCluster() uint32 { return d.firstCluster }

// initSubdirectory writes the synthesized "." and ".." entries a freshly
// allocated directory cluster needs.
func (d *Directory) initSubdirectory(selfCluster, parentCluster uint32) error {
	bs := d.fs.bootSector
	off := int64(bs.ClusterToSector(selfCluster)) * int64(bs.BytesPerSector())
	now := d.fs.now()
	mk := func(name string, cluster uint32) rawEntry {
		var e rawEntry
		var raw [11]byte
		for i := range raw {
			raw[i] = ' '
		}
		copy(raw[:], name)
		copy(e.buf[deName:deName+11], raw[:])
		e.setAttr(attrDir)
		e.setFirstCluster(cluster)
		e.setModTime(now)
		e.setCreateTime(now)
		return e
	}
	dot := mk(".", selfCluster)
	dotdot := mk("..", parentCluster)
	buf := make([]byte, direntSize*2)
	copy(buf[0:], dot.buf[:])
	copy(buf[direntSize:], dotdot.buf[:])
	n, err := d.fs.device.WriteAt(buf, off)
	if err != nil {
		return newErr(KindDeviceIO, "initSubdirectory", "", err)
	}
	if n != len(buf) {
		return newErr(KindWriteZero, "initSubdirectory", "", nil)
	}
	return nil
}

// resolveShortNameCollision mutates raw in place, applying the
// NAME~N/NA<hash>~N numeric-tail scheme when the short name was generated
// lossily from longName or collides with an existing entry in d, until the
// result no longer collides.
func (d *Directory) resolveShortNameCollision(raw *[11]byte, longName string) error {
	body := strings.TrimRight(string(raw[:8]), " ")
	ext := strings.TrimRight(string(raw[8:11]), " ")
	collides := func(candidate [11]byte) (bool, error) {
		found := false
		err := d.scan(func(e iterEntry) bool {
			if e.raw.isLFN() || e.raw.isVolumeID() {
				return true
			}
			if e.raw.shortName().raw == candidate {
				found = true
				return false
			}
			return true
		})
		return found, err
	}
	clash, err := collides(*raw)
	if err != nil {
		return err
	}
	_, _, lossy := GenerateShortName(longName, d.fs.oem)
	if !clash && !lossy {
		return nil
	}
	const maxNumericTailSeq = maxPlainNumericTail + maxHashedNumericTail
	for seq := 1; seq <= maxNumericTailSeq; seq++ {
		tailed := numericTailSuffix(body, longName, seq)
		next := encodeRawShortName(tailed, ext)
		clash, err := collides(next)
		if err != nil {
			return err
		}
		if !clash {
			*raw = next
			return nil
		}
	}
	return newErr(KindAlreadyExists, "resolveShortNameCollision", longName, nil)
}

// Delete removes the directory entry e from its parent. Deleting a
// directory whose contents are more than "." and ".." is rejected with
// KindDirectoryNotEmpty; the caller must empty it first.
func (d *Directory) Delete(e DirEntry) error {
	d.fs.logger.trace("directory:delete", "name", e.Name)
	if e.IsDir {
		empty, err := d.isEmptyDir(e.FirstCluster)
		if err != nil {
			return err
		}
		if !empty {
			return newErr(KindDirectoryNotEmpty, "Delete", e.Name, nil)
		}
		if err := d.fs.table.FreeChain(e.FirstCluster); err != nil {
			return err
		}
	} else if e.FirstCluster != 0 {
		if err := d.fs.table.FreeChain(e.FirstCluster); err != nil {
			return err
		}
	}
	for i := 0; i < e.slotCount; i++ {
		slot, err := d.region.readSlot(e.slotStart + i)
		if err != nil {
			return err
		}
		slot.buf[deName] = deletedMarker
		if err := d.region.writeSlot(e.slotStart+i, slot); err != nil {
			return err
		}
	}
	return nil
}

func (d *Directory) isEmptyDir(firstCluster uint32) (bool, error) {
	sub, err := openDirectoryAt(d.fs, firstCluster)
	if err != nil {
		return false, err
	}
	empty := true
	err = sub.ForEach(func(e DirEntry) bool {
		if e.Name == "." || e.Name == ".." {
			return true
		}
		empty = false
		return false
	})
	return empty, err
}

// Rename moves/renames entry e to newName, optionally into newParent (nil
// means the same directory). When the destination directory differs from
// the source, entries are written fresh there and removed from the source,
// matching the two-case rename spec.md describes (same-parent is a
// fast in-place rewrite of the short name and any LFN fragments; different
// parent is create+delete).
func (d *Directory) Rename(e DirEntry, newParent *Directory, newName string) error {
	d.fs.logger.trace("directory:rename", "from", e.Name, "to", newName)
	if newParent == nil || newParent == d {
		return d.renameInPlace(e, newName)
	}
	attr := byte(0)
	if e.IsReadOnly {
		attr |= attrReadOnly
	}
	if e.IsHidden {
		attr |= attrHidden
	}
	if e.IsSystem {
		attr |= attrSystem
	}
	if e.IsDir {
		attr |= attrDir
	}
	created, err := newParent.Create(newName, attr)
	if err != nil {
		return err
	}
	if !e.IsDir {
		// Create leaves a file's first cluster at 0 and allocates nothing;
		// link the moved file's existing cluster chain, then fix size/times.
		if err := newParent.overwriteClusterAndSize(created, e.FirstCluster, e.Size, e.ModTime); err != nil {
			return err
		}
	} else {
		if err := newParent.overwriteClusterAndSize(created, e.FirstCluster, 0, e.ModTime); err != nil {
			return err
		}
		if err := d.fs.fixParentLink(e.FirstCluster, newParent.selfCluster()); err != nil {
			return err
		}
	}
	for i := 0; i < e.slotCount; i++ {
		slot, err := d.region.readSlot(e.slotStart + i)
		if err != nil {
			return err
		}
		slot.buf[deName] = deletedMarker
		if err := d.region.writeSlot(e.slotStart+i, slot); err != nil {
			return err
		}
	}
	return nil
}

func (d *Directory) overwriteClusterAndSize(e DirEntry, cluster, size uint32, modTime time.Time) error {
	slot, err := d.region.readSlot(e.slotStart + e.slotCount - 1)
	if err != nil {
		return err
	}
	slot.setFirstCluster(cluster)
	slot.setFileSize(size)
	slot.setModTime(modTime)
	return d.region.writeSlot(e.slotStart+e.slotCount-1, slot)
}

// fixParentLink rewrites the ".." entry of the directory starting at
// childCluster to point at newParentCluster, required whenever a directory
// is moved to a new parent.
func (fs *FileSystem) fixParentLink(childCluster, newParentCluster uint32) error {
	sub, err := openDirectoryAt(fs, childCluster)
	if err != nil {
		return err
	}
	slot, err := sub.region.readSlot(1) // ".." is always slot 1
	if err != nil {
		return err
	}
	slot.setFirstCluster(newParentCluster)
	return sub.region.writeSlot(1, slot)
}

func (d *Directory) renameInPlace(e DirEntry, newName string) error {
	body, ext, loss := GenerateShortName(newName, d.fs.oem)
	raw := encodeRawShortName(body, ext)
	// Exclude e's own current slots from the collision scan.
	if err := d.resolveShortNameCollisionExcluding(&raw, newName, e.slotStart, e.slotCount); err != nil {
		return err
	}
	needLFN := needsLFN(newName, body, ext, loss)
	newSlots := 1
	var frags [][lfnUnitsLen]uint16
	if needLFN {
		frags = lfnFragments(newName)
		newSlots += len(frags)
	}
	shortSlot, err := d.region.readSlot(e.slotStart + e.slotCount - 1)
	if err != nil {
		return err
	}
	copy(shortSlot.buf[deName:deName+11], raw[:])

	if newSlots <= e.slotCount {
		// Reuse the existing run, marking any leftover slots deleted.
		start := e.slotStart + e.slotCount - newSlots
		if needLFN {
			checksum := sfnChecksum(raw)
			for i, frag := range frags {
				var le rawEntry
				diskIdx := len(frags) - 1 - i
				encodeLFNEntry(le.buf[:], frag, i, i == len(frags)-1, checksum)
				if err := d.region.writeSlot(start+diskIdx, le); err != nil {
					return err
				}
			}
		}
		if err := d.region.writeSlot(start+newSlots-1, shortSlot); err != nil {
			return err
		}
		for i := e.slotStart; i < start; i++ {
			old, err := d.region.readSlot(i)
			if err != nil {
				return err
			}
			old.buf[deName] = deletedMarker
			if err := d.region.writeSlot(i, old); err != nil {
				return err
			}
		}
		return nil
	}

	// Need more slots than before: mark the old run deleted and find a new
	// free run, same as Create.
	for i := 0; i < e.slotCount; i++ {
		old, err := d.region.readSlot(e.slotStart + i)
		if err != nil {
			return err
		}
		old.buf[deName] = deletedMarker
		if err := d.region.writeSlot(e.slotStart+i, old); err != nil {
			return err
		}
	}
	start, err := d.findFreeRun(newSlots)
	if err != nil {
		return err
	}
	if needLFN {
		checksum := sfnChecksum(raw)
		for i, frag := range frags {
			var le rawEntry
			diskIdx := len(frags) - 1 - i
			encodeLFNEntry(le.buf[:], frag, i, i == len(frags)-1, checksum)
			if err := d.region.writeSlot(start+diskIdx, le); err != nil {
				return err
			}
		}
	}
	return d.region.writeSlot(start+newSlots-1, shortSlot)
}

func (d *Directory) resolveShortNameCollisionExcluding(raw *[11]byte, longName string, excludeStart, excludeCount int) error {
	collides := func(candidate [11]byte) (bool, error) {
		found := false
		err := d.scan(func(e iterEntry) bool {
			if e.idx >= excludeStart && e.idx < excludeStart+excludeCount {
				return true
			}
			if e.raw.isLFN() || e.raw.isVolumeID() {
				return true
			}
			if e.raw.shortName().raw == candidate {
				found = true
				return false
			}
			return true
		})
		return found, err
	}
	clash, err := collides(*raw)
	if err != nil {
		return err
	}
	_, _, lossy := GenerateShortName(longName, d.fs.oem)
	if !clash && !lossy {
		return nil
	}
	body := strings.TrimRight(string(raw[:8]), " ")
	ext := strings.TrimRight(string(raw[8:11]), " ")
	const maxNumericTailSeq = maxPlainNumericTail + maxHashedNumericTail
	for seq := 1; seq <= maxNumericTailSeq; seq++ {
		tailed := numericTailSuffix(body, longName, seq)
		next := encodeRawShortName(tailed, ext)
		clash, err := collides(next)
		if err != nil {
			return err
		}
		if !clash {
			*raw = next
			return nil
		}
	}
	return newErr(KindAlreadyExists, "resolveShortNameCollisionExcluding", longName, nil)
}

// CreateVolumeID writes (or rewrites) the root directory's volume-label
// entry, the companion to the label stored in the boot sector's
// bsVolLab/bsVolLab32 field. Used only by the formatter.
func (d *Directory) CreateVolumeID(label string) error {
	raw := encodeRawShortName(strings.ToUpper(label), "")
	var found = -1
	err := d.scan(func(e iterEntry) bool {
		if e.raw.isVolumeID() {
			found = e.idx
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	var e rawEntry
	copy(e.buf[deName:deName+11], raw[:])
	e.setAttr(attrVolumeID)
	e.setModTime(d.fs.now())
	idx := found
	if idx == -1 {
		idx, err = d.findFreeRun(1)
		if err != nil {
			return err
		}
	}
	return d.region.writeSlot(idx, e)
}
