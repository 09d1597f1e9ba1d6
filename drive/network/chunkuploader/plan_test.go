package chunkuploader

import (
	"errors"
	"testing"

	"github.com/bitrise-io/go-drivetransfer/errkind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPlan(t *testing.T) {
	tests := []struct {
		name         string
		totalSize    uint64
		minChunkSize uint64
		want         Plan
	}{
		{
			name:         "exact multiple",
			totalSize:    15000,
			minChunkSize: 5000,
			want:         Plan{ChunkSize: 5000, ChunkCount: 3, LastChunkSize: 5000, TotalSize: 15000},
		},
		{
			name:         "trailing chunk",
			totalSize:    12345,
			minChunkSize: 5000,
			want:         Plan{ChunkSize: 5000, ChunkCount: 3, LastChunkSize: 2345, TotalSize: 12345},
		},
		{
			name:         "smaller than one chunk",
			totalSize:    10,
			minChunkSize: 5000,
			want:         Plan{ChunkSize: 5000, ChunkCount: 1, LastChunkSize: 10, TotalSize: 10},
		},
		{
			name:         "chunk size grows to fit max parts",
			totalSize:    100001,
			minChunkSize: 1,
			want:         Plan{ChunkSize: 11, ChunkCount: 9091, LastChunkSize: 11, TotalSize: 100001},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewPlan(tt.totalSize, tt.minChunkSize)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewPlan_InvalidInput(t *testing.T) {
	_, err := NewPlan(0, DefaultMinChunkSize)
	assert.True(t, errors.Is(err, errkind.ErrInvalidInput))

	_, err = NewPlan(100, 0)
	assert.True(t, errors.Is(err, errkind.ErrInvalidInput))
}

func TestNewPlan_Properties(t *testing.T) {
	sizes := []uint64{1, 2, 4999, 5000, 5001, 12345, 15000, 49999999, 50000000, 50000001, 1 << 40}
	minSizes := []uint64{1, 7, 5000, DefaultMinChunkSize}

	for _, total := range sizes {
		for _, minSize := range minSizes {
			plan, err := NewPlan(total, minSize)
			require.NoError(t, err)

			assert.GreaterOrEqual(t, plan.ChunkCount, 1)
			assert.LessOrEqual(t, uint64(plan.ChunkCount), MaxParts)
			assert.GreaterOrEqual(t, plan.ChunkSize, minSize)
			assert.Greater(t, plan.LastChunkSize, uint64(0))
			assert.LessOrEqual(t, plan.LastChunkSize, plan.ChunkSize)

			// Chunks are contiguous and cover the payload.
			var sum uint64
			for i := 0; i < plan.ChunkCount; i++ {
				if plan.Offset(i) != sum || plan.PartNumber(i) != int32(i+1) {
					t.Fatalf("chunk %d of plan %+v is not contiguous", i, plan)
				}
				sum += plan.Length(i)
			}
			assert.Equal(t, total, sum, "total=%d min=%d", total, minSize)
		}
	}
}
