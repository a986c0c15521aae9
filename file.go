package fatfs

import (
	"io"
	"time"
)

// MaxFileSize is the largest file size FAT's 32-bit DIR_FileSize field can
// represent.
const MaxFileSize = 0xFFFFFFFF

// File is a handle onto one file's data, borrowing its FileSystem and the
// Directory entry that names it. Per spec's concurrency model there is no
// internal locking: a single goroutine is expected to drive one File at a
// time, and a File must not outlive the FileSystem it was opened from.
type File struct {
	fs           *FileSystem
	dir          *Directory
	entry        DirEntry
	firstCluster uint32
	size         uint32
	offset       int64

	curCluster    uint32 // cluster containing offset, 0 if offset==0 && empty
	curClusterIdx uint32 // index of curCluster within the chain, for Seek
	dirty         bool   // size/cluster changed since open; needs dirent flush
}

func openFile(fs *FileSystem, dir *Directory, entry DirEntry) *File {
	f := &File{
		fs:           fs,
		dir:          dir,
		entry:        entry,
		firstCluster: entry.FirstCluster,
		size:         entry.Size,
	}
	f.curCluster = entry.FirstCluster
	return f
}

func (f *FileSystem) bytesPerCluster() int64 {
	bs := f.bootSector
	return int64(bs.BytesPerSector()) * int64(bs.SectorsPerCluster())
}

// clusterForOffset walks (or rewinds and re-walks) the chain to the
// cluster containing byte offset off, allocating new clusters along the
// way if grow is true and the chain isn't long enough yet.
func (f *File) clusterForOffset(off int64, grow bool) (uint32, error) {
	bpc := f.fs.bytesPerCluster()
	wantIdx := uint32(off / bpc)
	if f.firstCluster == 0 {
		if !grow {
			return 0, newErr(KindUnexpectedEOF, "File", "", nil)
		}
		nc, err := f.fs.table.Alloc(0)
		if err != nil {
			return 0, err
		}
		f.firstCluster = nc
		f.curCluster = nc
		f.curClusterIdx = 0
		f.dirty = true
	}
	cur := f.firstCluster
	idx := uint32(0)
	if f.curCluster != 0 && f.curClusterIdx <= wantIdx {
		cur = f.curCluster
		idx = f.curClusterIdx
	}
	for idx < wantIdx {
		next, err := f.fs.table.Get(cur)
		if err != nil {
			return 0, err
		}
		if f.fs.table.IsEOC(next) {
			if !grow {
				return 0, newErr(KindUnexpectedEOF, "File", "", nil)
			}
			nc, err := f.fs.table.Alloc(cur)
			if err != nil {
				return 0, err
			}
			next = nc
		}
		cur = next
		idx++
	}
	f.curCluster = cur
	f.curClusterIdx = idx
	return cur, nil
}

// Read implements io.Reader, crossing cluster boundaries transparently and
// never reading past the file's recorded size.
func (f *File) Read(p []byte) (int, error) {
	if f.offset >= int64(f.size) {
		return 0, io.EOF
	}
	bpc := f.fs.bytesPerCluster()
	total := 0
	for total < len(p) && f.offset < int64(f.size) {
		cluster, err := f.clusterForOffset(f.offset, false)
		if err != nil {
			return total, err
		}
		withinCluster := f.offset % bpc
		clusterByte := int64(f.fs.bootSector.ClusterToSector(cluster)) * int64(f.fs.bootSector.BytesPerSector())
		remaining := int64(f.size) - f.offset
		chunk := bpc - withinCluster
		if chunk > remaining {
			chunk = remaining
		}
		if want := int64(len(p) - total); chunk > want {
			chunk = want
		}
		n, err := f.fs.device.ReadAt(p[total:total+int(chunk)], clusterByte+withinCluster)
		total += n
		f.offset += int64(n)
		if err != nil && err != io.EOF {
			return total, newErr(KindDeviceIO, "File.Read", "", err)
		}
		if int64(n) < chunk {
			return total, newErr(KindUnexpectedEOF, "File.Read", "", nil)
		}
	}
	return total, nil
}

// Write implements io.Writer, allocating new clusters lazily as the file
// grows and never exceeding MaxFileSize.
func (f *File) Write(p []byte) (int, error) {
	if int64(f.size)+int64(len(p)) > MaxFileSize {
		return 0, newErr(KindInvalidInput, "File.Write", "", nil)
	}
	bpc := f.fs.bytesPerCluster()
	total := 0
	for total < len(p) {
		cluster, err := f.clusterForOffset(f.offset, true)
		if err != nil {
			return total, err
		}
		withinCluster := f.offset % bpc
		clusterByte := int64(f.fs.bootSector.ClusterToSector(cluster)) * int64(f.fs.bootSector.BytesPerSector())
		chunk := bpc - withinCluster
		if want := int64(len(p) - total); chunk > want {
			chunk = want
		}
		n, err := f.fs.device.WriteAt(p[total:total+int(chunk)], clusterByte+withinCluster)
		if err != nil {
			return total, newErr(KindDeviceIO, "File.Write", "", err)
		}
		if int64(n) != chunk {
			return total, newErr(KindWriteZero, "File.Write", "", nil)
		}
		total += n
		f.offset += int64(n)
		if f.offset > int64(f.size) {
			f.size = uint32(f.offset)
			f.dirty = true
		}
	}
	return total, nil
}

// Seek implements io.Seeker. A target past the end of the file is clamped
// to the current size, so the returned offset never exceeds Size.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	var newOff int64
	switch whence {
	case io.SeekStart:
		newOff = offset
	case io.SeekCurrent:
		newOff = f.offset + offset
	case io.SeekEnd:
		newOff = int64(f.size) + offset
	default:
		return 0, newErr(KindInvalidInput, "File.Seek", "", nil)
	}
	if newOff < 0 {
		return 0, newErr(KindInvalidInput, "File.Seek", "", nil)
	}
	if newOff > int64(f.size) {
		newOff = int64(f.size)
	}
	if newOff < f.offset || f.curCluster == 0 {
		// Walking only ever moves forward; rewind to the start.
		f.curCluster = f.firstCluster
		f.curClusterIdx = 0
	}
	f.offset = newOff
	return f.offset, nil
}

// Truncate sets the file's size to n, freeing any clusters beyond the new
// end (or, if n grows the file, leaving the gap's content unspecified
// until written, matching FAT's lack of guaranteed zero-fill on truncate-up
// - callers that need zero-fill should Write zeroes explicitly).
func (f *File) Truncate(n uint32) error {
	bpc := f.fs.bytesPerCluster()
	if n < f.size {
		if n == 0 {
			if f.firstCluster != 0 {
				if err := f.fs.table.FreeChain(f.firstCluster); err != nil {
					return err
				}
			}
			f.firstCluster = 0
			f.curCluster = 0
			f.curClusterIdx = 0
		} else {
			keepIdx := uint32((int64(n) - 1) / bpc)
			keepCluster, err := f.clusterForOffset(int64(keepIdx)*bpc, false)
			if err != nil {
				return err
			}
			if err := f.fs.table.TruncateChain(f.firstCluster, keepCluster); err != nil {
				return err
			}
		}
	}
	f.size = n
	f.dirty = true
	if f.offset > int64(n) {
		f.offset = int64(n)
	}
	return nil
}

// Flush writes the file's updated size/first-cluster/mtime back to its
// directory entry. It does not call Device.Flush; FileSystem.Sync/Unmount
// own that boundary.
func (f *File) Flush() error {
	if !f.dirty {
		return nil
	}
	if err := f.dir.overwriteClusterAndSize(f.entry, f.firstCluster, f.size, time.Now()); err != nil {
		return err
	}
	f.dirty = false
	return nil
}

// Close flushes pending metadata changes. Per spec's resource model, File
// does not own the Device and Close never calls Device.Flush.
func (f *File) Close() error {
	return f.Flush()
}

// Size returns the file's current logical size in bytes.
func (f *File) Size() uint32 { return f.size }
