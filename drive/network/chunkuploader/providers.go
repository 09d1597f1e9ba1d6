package chunkuploader

import (
	"fmt"
	"io"
	"os"
)

// MemoryChunkProvider slices chunks out of an in-memory payload.
type MemoryChunkProvider struct {
	data []byte
	plan Plan
}

// NewMemoryChunkProvider creates a ChunkProvider over data split by plan.
func NewMemoryChunkProvider(data []byte, plan Plan) (*MemoryChunkProvider, error) {
	if uint64(len(data)) != plan.TotalSize {
		return nil, fmt.Errorf("payload size (%d) does not match plan total size (%d)", len(data), plan.TotalSize)
	}
	return &MemoryChunkProvider{data: data, plan: plan}, nil
}

// Plan ...
func (p *MemoryChunkProvider) Plan() Plan {
	return p.plan
}

// GetChunk returns the chunk at the given index without copying.
func (p *MemoryChunkProvider) GetChunk(index int) ([]byte, error) {
	if err := p.plan.validIndex(index); err != nil {
		return nil, err
	}

	offset := p.plan.Offset(index)
	return p.data[offset : offset+p.plan.Length(index)], nil
}

// FileChunkProvider reads chunks from a file on disk.
// Thread-safe for parallel chunk reads, every read is positional.
type FileChunkProvider struct {
	file *os.File
	plan Plan
}

// NewFileChunkProvider opens the file at path and plans its chunks.
func NewFileChunkProvider(path string, minChunkSize uint64) (*FileChunkProvider, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}

	plan, err := NewPlan(uint64(info.Size()), minChunkSize)
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	return &FileChunkProvider{file: file, plan: plan}, nil
}

// Plan ...
func (p *FileChunkProvider) Plan() Plan {
	return p.plan
}

// GetChunk reads the chunk at the given index into memory to allow for retries.
func (p *FileChunkProvider) GetChunk(index int) ([]byte, error) {
	if err := p.plan.validIndex(index); err != nil {
		return nil, err
	}

	offset := int64(p.plan.Offset(index))
	chunk := make([]byte, p.plan.Length(index))
	n, err := p.file.ReadAt(chunk, offset)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read chunk %d at offset %d: %w", index+1, offset, err)
	}
	if n != len(chunk) {
		return nil, fmt.Errorf("short read of chunk %d: got %d of %d bytes", index+1, n, len(chunk))
	}

	return chunk, nil
}

// Close closes the underlying file.
func (p *FileChunkProvider) Close() error {
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}
