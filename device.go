package fatfs

import "io"

// Device is the byte-positioned random-access contract fatfs mounts over.
// Unlike a block device, callers may read or write at any byte offset and
// of any length; implementations that only support whole-sector transfers
// should buffer internally.
//
// A Device must support concurrent calls to ReadAt/WriteAt from a single
// goroutine at a time; fatfs never issues overlapping calls itself (see the
// FileSystem doc's concurrency model), but does not serialize calls on the
// caller's behalf either.
type Device interface {
	io.ReaderAt
	io.WriterAt
	// Flush commits any buffering the Device performs internally to
	// stable storage. Format, FileSystem.Sync and Unmount call Flush at the
	// boundaries that matter (after writing FSInfo and the FATs); Mount
	// does not;
	// fatfs never assumes Flush is cheap enough to call per-operation.
	Flush() error
	// Size returns the total addressable size of the device in bytes.
	Size() int64
}

// DiskSlice is a bounded, offset-shifted view over a Device, restricting
// reads and writes to the half-open byte range [Offset, Offset+Length) of
// the underlying device. Mounting a FileSystem against a DiskSlice rather
// than the raw Device is how a single partition of a larger disk image is
// addressed without copying it.
type DiskSlice struct {
	dev    Device
	Offset int64
	Length int64
}

// NewDiskSlice returns a view over dev restricted to [offset, offset+length).
// It does not validate offset+length against dev.Size(); out-of-range
// accesses surface as errors from the underlying dev at access time.
func NewDiskSlice(dev Device, offset, length int64) *DiskSlice {
	return &DiskSlice{dev: dev, Offset: offset, Length: length}
}

func (s *DiskSlice) checkBounds(off int64, n int) error {
	if off < 0 || int64(n) < 0 {
		return newErr(KindInvalidInput, "DiskSlice", "", nil)
	}
	if off+int64(n) > s.Length {
		return newErr(KindUnexpectedEOF, "DiskSlice", "", nil)
	}
	return nil
}

// ReadAt implements Device.
func (s *DiskSlice) ReadAt(p []byte, off int64) (int, error) {
	if err := s.checkBounds(off, len(p)); err != nil {
		return 0, err
	}
	n, err := s.dev.ReadAt(p, s.Offset+off)
	if err != nil && err != io.EOF {
		return n, newErr(KindDeviceIO, "DiskSlice.ReadAt", "", err)
	}
	return n, err
}

// WriteAt implements Device.
func (s *DiskSlice) WriteAt(p []byte, off int64) (int, error) {
	if err := s.checkBounds(off, len(p)); err != nil {
		return 0, err
	}
	n, err := s.dev.WriteAt(p, s.Offset+off)
	if err != nil {
		return n, newErr(KindDeviceIO, "DiskSlice.WriteAt", "", err)
	}
	if n != len(p) {
		return n, newErr(KindWriteZero, "DiskSlice.WriteAt", "", nil)
	}
	return n, nil
}

// Flush implements Device by flushing the underlying device. DiskSlice
// passes every write straight through, so it has no buffering of its own
// to commit.
func (s *DiskSlice) Flush() error { return s.dev.Flush() }

// Size implements Device.
func (s *DiskSlice) Size() int64 { return s.Length }
