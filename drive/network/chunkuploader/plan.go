package chunkuploader

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/bitrise-io/go-drivetransfer/errkind"
)

const (
	// MaxParts is the upper limit of parts in a single multipart upload.
	MaxParts = uint64(manager.MaxUploadParts)

	// DefaultMinChunkSize is the smallest part size the object store accepts (except for the last part).
	DefaultMinChunkSize = uint64(manager.MinUploadPartSize)
)

// Plan is the layout of a payload split into equally sized chunks and a trailing one.
//
// ChunkSize*(ChunkCount-1)+LastChunkSize == TotalSize and 0 < LastChunkSize <= ChunkSize.
type Plan struct {
	ChunkSize     uint64
	ChunkCount    int
	LastChunkSize uint64
	TotalSize     uint64
}

// NewPlan computes the chunk layout of totalSize bytes.
// The chunk size is at least minChunkSize and large enough to fit the payload into MaxParts parts.
func NewPlan(totalSize, minChunkSize uint64) (Plan, error) {
	if totalSize == 0 {
		return Plan{}, errkind.New("plan", errkind.ErrInvalidInput, fmt.Errorf("total size must be greater than zero"))
	}
	if minChunkSize == 0 {
		return Plan{}, errkind.New("plan", errkind.ErrInvalidInput, fmt.Errorf("min chunk size must be greater than zero"))
	}

	chunkSize := totalSize / MaxParts
	if totalSize%MaxParts != 0 {
		chunkSize++
	}
	if chunkSize < minChunkSize {
		chunkSize = minChunkSize
	}

	count := totalSize / chunkSize
	last := totalSize % chunkSize
	if last == 0 {
		last = chunkSize
	} else {
		count++
	}

	return Plan{
		ChunkSize:     chunkSize,
		ChunkCount:    int(count),
		LastChunkSize: last,
		TotalSize:     totalSize,
	}, nil
}

// Offset returns the byte offset of the chunk at the given index.
func (p Plan) Offset(index int) uint64 {
	return uint64(index) * p.ChunkSize
}

// Length returns the size of the chunk at the given index.
func (p Plan) Length(index int) uint64 {
	if index == p.ChunkCount-1 {
		return p.LastChunkSize
	}
	return p.ChunkSize
}

// PartNumber returns the 1-based part number of the chunk at the given index.
func (p Plan) PartNumber(index int) int32 {
	return int32(index + 1)
}

func (p Plan) validIndex(index int) error {
	if index < 0 || index >= p.ChunkCount {
		return fmt.Errorf("chunk index %d out of range [0, %d)", index, p.ChunkCount)
	}
	return nil
}
