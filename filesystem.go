package fatfs

import (
	"log/slog"
	"time"
)

// TimeProvider supplies the current time for new directory entries'
// creation/modification timestamps. The default, UTCTimeProvider, calls
// time.Now(); tests and embedded targets without a battery-backed clock can
// inject a fixed or monotonic-only provider instead.
type TimeProvider interface {
	Now() time.Time
}

// UTCTimeProvider is the default TimeProvider.
type UTCTimeProvider struct{}

func (UTCTimeProvider) Now() time.Time { return time.Now().UTC() }

// FixedTimeProvider always returns the same instant, useful for
// reproducible formatting/tests and for devices with no RTC, where every
// new entry should carry a fixed epoch rather than a meaningless clock
// value.
type FixedTimeProvider struct{ T time.Time }

func (f FixedTimeProvider) Now() time.Time { return f.T }

// StatusFlags reports the dirty/IO-error bits a volume keeps in the BPB
// reserved_1 shadow byte (all FAT variants, the only location on FAT12)
// and, on FAT16/FAT32, in the reserved high bits of FAT entry 1.
type StatusFlags struct {
	Dirty       bool
	IOErrorSeen bool
}

// MountOptions configures Mount. The zero value is the safe,
// dependency-free default (ASCII OEM mapping, UTC wall-clock time).
type MountOptions struct {
	OEM      OemCpConverter
	Time     TimeProvider
	Logger   *slog.Logger
	ReadOnly bool
}

// FileSystem is the embeddable façade over one mounted FAT volume. It owns
// the Device; Directory and File handles borrow it and must not outlive
// it. There is no internal locking: per spec's concurrency model, exactly
// one goroutine drives a FileSystem (and any handles derived from it) at a
// time.
type FileSystem struct {
	device      Device
	bootSector  *BootSector
	fsinfo      *FSInfo
	table       *Table
	oem         OemCpConverter
	time        TimeProvider
	logger      *logger
	readOnly    bool
	dirtyMarked bool
}

// Mount parses the boot sector (and, for FAT32, the FSInfo sector) of dev
// and returns a ready-to-use FileSystem. Non-fatal problems noticed along
// the way (unusual FAT count, unusual reserved-sector count, etc.) are returned as
// warnings rather than failing the mount; a nil *MountWarnings (or one with
// HasWarnings()==false) means nothing was noticed.
func Mount(dev Device, opts MountOptions) (*FileSystem, *MountWarnings, error) {
	bs, err := ReadBootSector(dev)
	if err != nil {
		return nil, nil, newErr(KindCorruptedFileSystem, "Mount", "", err)
	}
	warnStrings, err := bs.Validate()
	if err != nil {
		return nil, nil, err
	}
	warnings := &MountWarnings{}
	for _, w := range warnStrings {
		warnings.add("%s", w)
	}

	bpbFlags := bs.BPBStatusFlags()

	var fi *FSInfo
	if bs.FATType() == FAT32 {
		fi, err = ReadFSInfo(dev, bs.BytesPerSector(), bs.FSInfoSector(), bs.TotalClusters(), bpbFlags.Dirty)
		if err != nil {
			warnings.add("fsinfo sector invalid, free-cluster count will be computed by scan: %v", err)
			fi = nil
		}
	}

	lg := newLogger(opts.Logger)
	table := newTable(dev, bs, fi, lg)

	fs := &FileSystem{
		device:     dev,
		bootSector: bs,
		fsinfo:     fi,
		table:      table,
		oem:        opts.OEM,
		time:       opts.Time,
		logger:     lg,
		readOnly:   opts.ReadOnly,
	}
	if fs.oem == nil {
		fs.oem = AsciiOemCpConverter{}
	}
	if fs.time == nil {
		fs.time = UTCTimeProvider{}
	}
	table.onDirty = fs.markDirtyOnce

	initial, err := fs.ReadStatusFlags()
	if err != nil {
		return nil, nil, err
	}
	if initial.Dirty {
		warnings.add("volume was not cleanly unmounted last session")
	}
	if initial.IOErrorSeen {
		warnings.add("volume reported an I/O error in a previous session")
	}

	lg.info("mounted", "fatType", bs.FATType().String(), "bytesPerSector", bs.BytesPerSector())
	if !warnings.HasWarnings() {
		warnings = nil
	}
	return fs, warnings, nil
}

func (fs *FileSystem) now() time.Time { return fs.time.Now() }

// FATType returns which on-disk variant the mounted volume uses.
func (fs *FileSystem) FATType() FATType { return fs.bootSector.FATType() }

// VolumeID returns the 32-bit volume serial number from the boot sector.
func (fs *FileSystem) VolumeID() uint32 { return fs.bootSector.VolumeID() }

// VolumeLabel returns the volume label, preferring the root directory's
// volume-ID entry when present and falling back to the boot sector field,
// matching spec's "also from the volume-ID root entry on demand" note.
func (fs *FileSystem) VolumeLabel() (string, error) {
	root, err := fs.RootDir()
	if err != nil {
		return "", err
	}
	var label string
	err = root.scan(func(e iterEntry) bool {
		if e.raw.isVolumeID() {
			label = e.raw.shortName().Decode(fs.oem)
			return false
		}
		return true
	})
	if err != nil {
		return "", err
	}
	if label != "" {
		return label, nil
	}
	return fs.bootSector.VolumeLabel(), nil
}

// Stats returns free/total cluster counts plus the bytes-per-cluster
// multiplier needed to turn them into byte counts.
func (fs *FileSystem) Stats() (freeClusters, totalClusters uint32, bytesPerCluster uint32, err error) {
	free, total, err := fs.table.Stats()
	if err != nil {
		return 0, 0, 0, err
	}
	return free, total, uint32(fs.bytesPerCluster()), nil
}

// ReadStatusFlags reports the dirty/IO-error status as the OR of the BPB
// reserved_1 shadow byte (the only mechanism FAT12 has, and the one the
// formatter and every FAT variant share) and, for FAT16/32, the reserved
// high bits of FAT entry 1 (testable property #7).
func (fs *FileSystem) ReadStatusFlags() (StatusFlags, error) {
	flags := fs.bootSector.BPBStatusFlags()
	if fs.bootSector.FATType() == FAT12 {
		return flags, nil
	}
	raw, err := fs.table.rawEntry1()
	if err != nil {
		return StatusFlags{}, err
	}
	switch fs.bootSector.FATType() {
	case FAT16:
		flags.Dirty = flags.Dirty || raw&0x8000 == 0
		flags.IOErrorSeen = flags.IOErrorSeen || raw&0x4000 == 0
	default: // FAT32
		flags.Dirty = flags.Dirty || raw&0x08000000 == 0
		flags.IOErrorSeen = flags.IOErrorSeen || raw&0x04000000 == 0
	}
	return flags, nil
}

// SetStatusFlags writes the dirty/IO-error bits to the BPB shadow byte
// (every FAT variant) and, for FAT16/32, mirrors them into FAT entry 1.
func (fs *FileSystem) SetStatusFlags(flags StatusFlags) error {
	if err := fs.bootSector.SetBPBStatusFlags(fs.device, flags); err != nil {
		return err
	}
	if fs.bootSector.FATType() == FAT12 {
		return nil
	}
	return fs.table.setEntry1Flags(flags)
}

// markDirtyOnce sets the dirty bit on the first FAT-mutating operation of
// the session (Table.Set, driven by Alloc/FreeChain/TruncateChain), leaving
// it set until Unmount clears it. A no-op after the first call, and on a
// read-only mount.
func (fs *FileSystem) markDirtyOnce() error {
	if fs.readOnly || fs.dirtyMarked {
		return nil
	}
	cur, err := fs.ReadStatusFlags()
	if err != nil {
		return err
	}
	if cur.Dirty {
		fs.dirtyMarked = true
		return nil
	}
	cur.Dirty = true
	if err := fs.SetStatusFlags(cur); err != nil {
		return err
	}
	fs.dirtyMarked = true
	return nil
}

// RootDir returns a handle to the volume's root directory.
func (fs *FileSystem) RootDir() (*Directory, error) {
	return rootDirectory(fs)
}

// OpenFile opens (or, with create, makes) the file named by path, resolved
// relative to the root directory. Intermediate path components must be
// directories that already exist; OpenFile does not create them.
func (fs *FileSystem) OpenFile(path string, create bool) (*File, error) {
	root, err := fs.RootDir()
	if err != nil {
		return nil, err
	}
	parentPath, name := splitParent(path)
	parent := root
	if parentPath != "" {
		de, err := root.FindPath(parentPath)
		if err != nil {
			return nil, err
		}
		if !de.IsDir {
			return nil, newErr(KindInvalidInput, "OpenFile", path, nil)
		}
		parent, err = openDirectoryAt(fs, de.FirstCluster)
		if err != nil {
			return nil, err
		}
	}
	entry, err := parent.findName(name)
	if err != nil {
		if !create {
			return nil, newErr(KindNotFound, "OpenFile", path, err)
		}
		entry, err = parent.Create(name, 0)
		if err != nil {
			return nil, err
		}
	} else if entry.IsDir {
		return nil, newErr(KindInvalidInput, "OpenFile", path, nil)
	}
	return openFile(fs, parent, entry), nil
}

func splitParent(path string) (dir, name string) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return "", parts[0]
	}
	name = parts[len(parts)-1]
	for i, p := range parts[:len(parts)-1] {
		if i > 0 {
			dir += "/"
		}
		dir += p
	}
	return dir, name
}

// Sync flushes FSInfo (FAT32 only) and the underlying Device.
func (fs *FileSystem) Sync() error {
	if err := fs.table.FlushFSInfo(); err != nil {
		return err
	}
	return fs.device.Flush()
}

// Unmount flushes any pending metadata and the Device. After Unmount
// returns, the FileSystem and every handle derived from it must not be
// used again.
func (fs *FileSystem) Unmount() error {
	fs.logger.info("unmount")
	if !fs.readOnly {
		if err := fs.SetStatusFlags(StatusFlags{}); err != nil {
			return err
		}
		fs.dirtyMarked = false
	}
	return fs.Sync()
}
