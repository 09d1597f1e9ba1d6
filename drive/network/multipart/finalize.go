package multipart

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/bitrise-io/go-drivetransfer/drive/network/chunkuploader"
	"github.com/bitrise-io/go-drivetransfer/errkind"
	"github.com/bitrise-io/go-utils/retry"
)

// Complete finalizes the upload with the given parts. The parts may be in any order,
// they are sent sorted by part number and must form the contiguous range 1..n.
// A session can be completed once.
func (s *Session) Complete(ctx context.Context, parts []chunkuploader.Part) error {
	sorted, err := sortParts(parts)
	if err != nil {
		return errkind.New("completeMultipartUpload", errkind.ErrProtocol, err)
	}

	s.mu.Lock()
	if s.state != stateOpen {
		state := s.state
		s.mu.Unlock()
		return errkind.New("completeMultipartUpload", errkind.ErrProtocol, fmt.Errorf("upload session is %s", state))
	}
	s.state = stateCompleting
	s.mu.Unlock()

	completed := make([]types.CompletedPart, 0, len(sorted))
	for _, part := range sorted {
		completed = append(completed, types.CompletedPart{
			PartNumber: aws.Int32(part.Number),
			ETag:       aws.String(part.ETag),
		})
	}

	err = retry.Times(numRetries).Wait(s.retryWait).TryWithAbort(func(attempt uint) (error, bool) {
		if err := ctx.Err(); err != nil {
			return err, true
		}
		if attempt > 0 {
			s.logger.Debugf("Retrying multipart upload completion... (attempt %d)", attempt+1)
		}

		_, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
			Bucket:          aws.String(s.Bucket),
			Key:             aws.String(s.Key),
			UploadId:        aws.String(s.UploadID),
			MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
		})
		if err != nil {
			err = classify("completeMultipartUpload", err)
			return err, !errkind.IsTransient(err)
		}
		return nil, true
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		// The session stays usable for Abort.
		s.state = stateOpen
		return err
	}
	s.state = stateCompleted

	s.logger.Debugf("Multipart upload completed with %d parts (key: %s)", len(completed), s.Key)
	return nil
}

// sortParts returns a sorted copy of parts and validates that it is a complete part list.
func sortParts(parts []chunkuploader.Part) ([]chunkuploader.Part, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("no parts to complete")
	}

	sorted := make([]chunkuploader.Part, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	for i, part := range sorted {
		if part.Number != int32(i+1) {
			return nil, fmt.Errorf("part list is not contiguous: expected part %d, got %d", i+1, part.Number)
		}
		if part.ETag == "" {
			return nil, fmt.Errorf("part %d has no ETag", part.Number)
		}
	}

	return sorted, nil
}
