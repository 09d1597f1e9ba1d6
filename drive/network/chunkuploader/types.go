// Package chunkuploader splits a payload into parts and uploads them to a multipart
// store in parallel, with bounded concurrency, retries and hung request detection.
package chunkuploader

import (
	"context"
)

// Part describes a successfully uploaded chunk. It is immutable once produced.
type Part struct {
	// Number is the 1-based part number, Number == index+1.
	Number int32
	ETag   string
	Offset uint64
	Length uint64
}

// Store uploads a single part of an open multipart transfer.
// Implementations return errors classified with the errkind package.
type Store interface {
	UploadPart(ctx context.Context, partNumber int32, body []byte) (string, error)
}

// ChunkProvider provides chunk data for upload.
// Implementations can read from memory buffers or files.
type ChunkProvider interface {
	// Plan returns the layout the chunks follow.
	Plan() Plan

	// GetChunk returns the bytes of the chunk at the given index.
	// For retries, GetChunk is called once and the bytes are reused.
	GetChunk(index int) ([]byte, error)
}
