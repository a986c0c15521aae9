package fatfs

import (
	"github.com/go-fatfs/fatfs/internal/mbr"
)

// OpenPartition reads the Master Boot Record at the start of dev and
// returns a DiskSlice bounded to the index'th partition table entry (0-3),
// ready to be handed to Mount or Format. It mirrors rust-fatfs's Partition
// wrapper, which similarly narrows a whole-disk stream to one partition's
// byte range ahead of FileSystem construction.
func OpenPartition(dev Device, index int) (*DiskSlice, error) {
	var sector [512]byte
	if _, err := dev.ReadAt(sector[:], 0); err != nil {
		return nil, newErr(KindDeviceIO, "OpenPartition", "", err)
	}
	bs, err := mbr.ToBootSector(sector[:])
	if err != nil {
		return nil, newErr(KindCorruptedFileSystem, "OpenPartition", "", err)
	}
	pte, err := bs.FindFATPartition(index)
	if err != nil {
		return nil, newErr(KindInvalidInput, "OpenPartition", "", err)
	}
	const sectorSize = 512
	start := int64(pte.StartLBA()) * sectorSize
	size := int64(pte.NumberOfLBA()) * sectorSize
	return NewDiskSlice(dev, start, size), nil
}

// PartitionInfo summarizes one MBR partition table entry, for callers that
// want to enumerate partitions before choosing one to open.
type PartitionInfo struct {
	Index    int
	Type     mbr.PartitionType
	Bootable bool
	StartLBA uint32
	NumLBA   uint32
	IsFAT    bool
}

// ListPartitions reads the MBR at the start of dev and returns its
// non-empty partition table entries.
func ListPartitions(dev Device) ([]PartitionInfo, error) {
	var sector [512]byte
	if _, err := dev.ReadAt(sector[:], 0); err != nil {
		return nil, newErr(KindDeviceIO, "ListPartitions", "", err)
	}
	bs, err := mbr.ToBootSector(sector[:])
	if err != nil {
		return nil, newErr(KindCorruptedFileSystem, "ListPartitions", "", err)
	}
	if bs.BootSignature() != mbr.BootSignature {
		return nil, newErr(KindCorruptedFileSystem, "ListPartitions", "", nil)
	}
	var out []PartitionInfo
	for i := 0; i < 4; i++ {
		pte := bs.PartitionTable(i)
		if pte.PartitionType() == mbr.PartitionTypeUnused {
			continue
		}
		out = append(out, PartitionInfo{
			Index:    i,
			Type:     pte.PartitionType(),
			Bootable: pte.Attributes().IsBootable(),
			StartLBA: pte.StartLBA(),
			NumLBA:   pte.NumberOfLBA(),
			IsFAT:    pte.IsFATType(),
		})
	}
	return out, nil
}
