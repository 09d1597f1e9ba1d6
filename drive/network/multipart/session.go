package multipart

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bitrise-io/go-drivetransfer/errkind"
	"github.com/bitrise-io/go-utils/retry"
	"github.com/bitrise-io/go-utils/v2/log"
)

const (
	numRetries       = 3
	defaultRetryWait = 5 * time.Second
)

type sessionState int

const (
	stateOpen sessionState = iota
	stateCompleting
	stateCompleted
	stateAborted
)

func (s sessionState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateCompleting:
		return "completing"
	case stateCompleted:
		return "completed"
	case stateAborted:
		return "aborted"
	}
	return "unknown"
}

// Session is an open multipart upload. It is safe to upload parts concurrently.
type Session struct {
	Bucket   string
	Key      string
	UploadID string

	client    S3API
	logger    log.Logger
	retryWait time.Duration

	mu    sync.Mutex
	state sessionState
}

// Create starts a multipart upload of key in bucket.
func Create(ctx context.Context, client S3API, bucket, key string, logger log.Logger) (*Session, error) {
	if bucket == "" {
		return nil, errkind.New("createMultipartUpload", errkind.ErrInvalidInput, fmt.Errorf("bucket must not be empty"))
	}
	if key == "" {
		return nil, errkind.New("createMultipartUpload", errkind.ErrInvalidInput, fmt.Errorf("key must not be empty"))
	}

	var uploadID string
	err := retry.Times(numRetries).Wait(defaultRetryWait).TryWithAbort(func(attempt uint) (error, bool) {
		if attempt > 0 {
			logger.Debugf("Retrying multipart upload creation... (attempt %d)", attempt+1)
		}

		out, err := client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			err = classify("createMultipartUpload", err)
			return err, !errkind.IsTransient(err)
		}
		if out.UploadId == nil || *out.UploadId == "" {
			return errkind.New("createMultipartUpload", errkind.ErrProtocol, fmt.Errorf("no upload id in response")), true
		}

		uploadID = *out.UploadId
		return nil, true
	})
	if err != nil {
		return nil, err
	}

	logger.Debugf("Multipart upload created (key: %s, upload id: %s)", key, uploadID)

	return &Session{
		Bucket:    bucket,
		Key:       key,
		UploadID:  uploadID,
		client:    client,
		logger:    logger,
		retryWait: defaultRetryWait,
	}, nil
}

// UploadPart uploads a single part and returns its ETag. A single call, no retries.
func (s *Session) UploadPart(ctx context.Context, partNumber int32, body []byte) (string, error) {
	if state := s.currentState(); state != stateOpen {
		return "", errkind.New("uploadPart", errkind.ErrProtocol, fmt.Errorf("upload session is %s", state))
	}

	out, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(s.Bucket),
		Key:           aws.String(s.Key),
		UploadId:      aws.String(s.UploadID),
		PartNumber:    aws.Int32(partNumber),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", classify("uploadPart", err)
	}

	return aws.ToString(out.ETag), nil
}

// Abort cancels the multipart upload so the store can drop the uploaded parts.
// Aborting a completed session is an error, aborting twice is not.
func (s *Session) Abort(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case stateAborted:
		s.mu.Unlock()
		return nil
	case stateCompleted, stateCompleting:
		state := s.state
		s.mu.Unlock()
		return errkind.New("abortMultipartUpload", errkind.ErrProtocol, fmt.Errorf("upload session is %s", state))
	}
	s.state = stateAborted
	s.mu.Unlock()

	s.logger.Debugf("Aborting multipart upload (key: %s, upload id: %s)", s.Key, s.UploadID)

	return retry.Times(numRetries).Wait(s.retryWait).TryWithAbort(func(attempt uint) (error, bool) {
		if err := ctx.Err(); err != nil {
			return err, true
		}

		_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(s.Bucket),
			Key:      aws.String(s.Key),
			UploadId: aws.String(s.UploadID),
		})
		if err != nil {
			err = classify("abortMultipartUpload", err)
			return err, !errkind.IsTransient(err)
		}
		return nil, true
	})
}

func (s *Session) currentState() sessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PutObject uploads body as a single object, used for payloads too small to plan (empty files).
func PutObject(ctx context.Context, client S3API, bucket, key string, body []byte) error {
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return classify("putObject", err)
	}
	return nil
}
