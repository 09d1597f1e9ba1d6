package multipart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/bitrise-io/go-drivetransfer/drive/network/chunkuploader"
	"github.com/bitrise-io/go-drivetransfer/errkind"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu sync.Mutex

	createErr   error
	uploadErr   error
	completeErr []error
	abortErr    error

	uploaded      map[int32][]byte
	completeCalls []*s3.CompleteMultipartUploadInput
	abortCalls    int
	putCalls      []*s3.PutObjectInput
}

func newFakeS3() *fakeS3 {
	return &fakeS3{uploaded: map[int32][]byte{}}
}

func (f *fakeS3) CreateMultipartUpload(_ context.Context, params *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &s3.CreateMultipartUploadOutput{
		Bucket:   params.Bucket,
		Key:      params.Key,
		UploadId: aws.String("upload-1"),
	}, nil
}

func (f *fakeS3) UploadPart(_ context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}

	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded[aws.ToInt32(params.PartNumber)] = body

	return &s3.UploadPartOutput{ETag: aws.String(fmt.Sprintf("\"etag-%d\"", aws.ToInt32(params.PartNumber)))}, nil
}

func (f *fakeS3) CompleteMultipartUpload(_ context.Context, params *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.completeCalls = append(f.completeCalls, params)
	if len(f.completeErr) > 0 {
		err := f.completeErr[0]
		f.completeErr = f.completeErr[1:]
		return nil, err
	}
	return &s3.CompleteMultipartUploadOutput{Key: params.Key}, nil
}

func (f *fakeS3) AbortMultipartUpload(_ context.Context, _ *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.abortCalls++
	return &s3.AbortMultipartUploadOutput{}, f.abortErr
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.putCalls = append(f.putCalls, params)
	return &s3.PutObjectOutput{}, nil
}

func newTestSession(t *testing.T, client *fakeS3) *Session {
	session, err := Create(context.Background(), client, "bucket", "prefix/file.bin", log.NewLogger())
	require.NoError(t, err)
	session.retryWait = time.Millisecond
	return session
}

func testParts(n int) []chunkuploader.Part {
	parts := make([]chunkuploader.Part, n)
	for i := range parts {
		parts[i] = chunkuploader.Part{
			Number: int32(i + 1),
			ETag:   fmt.Sprintf("\"etag-%d\"", i+1),
			Offset: uint64(i) * 10,
			Length: 10,
		}
	}
	return parts
}

func TestCreate(t *testing.T) {
	session := newTestSession(t, newFakeS3())

	assert.Equal(t, "bucket", session.Bucket)
	assert.Equal(t, "prefix/file.bin", session.Key)
	assert.Equal(t, "upload-1", session.UploadID)
}

func TestCreate_InvalidInput(t *testing.T) {
	_, err := Create(context.Background(), newFakeS3(), "", "key", log.NewLogger())
	assert.True(t, errors.Is(err, errkind.ErrInvalidInput))
}

func TestCreate_AuthError(t *testing.T) {
	client := newFakeS3()
	client.createErr = &smithy.GenericAPIError{Code: "ExpiredToken", Message: "The provided token has expired."}

	_, err := Create(context.Background(), client, "bucket", "key", log.NewLogger())
	assert.True(t, errors.Is(err, errkind.ErrAuth))
}

func TestSession_UploadPart(t *testing.T) {
	client := newFakeS3()
	session := newTestSession(t, client)

	etag, err := session.UploadPart(context.Background(), 2, []byte("data"))
	require.NoError(t, err)

	assert.Equal(t, "\"etag-2\"", etag)
	assert.Equal(t, []byte("data"), client.uploaded[2])
}

func TestSession_Complete_SortsParts(t *testing.T) {
	client := newFakeS3()
	session := newTestSession(t, client)

	parts := testParts(50)
	shuffled := make([]chunkuploader.Part, len(parts))
	copy(shuffled, parts)
	rand.New(rand.NewSource(42)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	require.NoError(t, session.Complete(context.Background(), shuffled))

	require.Len(t, client.completeCalls, 1)
	completed := client.completeCalls[0].MultipartUpload.Parts
	require.Len(t, completed, 50)
	for i, part := range completed {
		assert.Equal(t, int32(i+1), aws.ToInt32(part.PartNumber))
		assert.Equal(t, parts[i].ETag, aws.ToString(part.ETag))
	}
	assert.Equal(t, "upload-1", aws.ToString(client.completeCalls[0].UploadId))
}

func TestSession_Complete_Twice(t *testing.T) {
	client := newFakeS3()
	session := newTestSession(t, client)

	require.NoError(t, session.Complete(context.Background(), testParts(3)))

	err := session.Complete(context.Background(), testParts(3))
	assert.True(t, errors.Is(err, errkind.ErrProtocol))
	assert.Len(t, client.completeCalls, 1)

	_, err = session.UploadPart(context.Background(), 4, []byte("late"))
	assert.True(t, errors.Is(err, errkind.ErrProtocol))
}

func TestSession_Complete_InvalidParts(t *testing.T) {
	tests := []struct {
		name  string
		parts []chunkuploader.Part
	}{
		{name: "empty", parts: nil},
		{name: "gap", parts: []chunkuploader.Part{{Number: 1, ETag: "a"}, {Number: 3, ETag: "c"}}},
		{name: "duplicate", parts: []chunkuploader.Part{{Number: 1, ETag: "a"}, {Number: 1, ETag: "a"}}},
		{name: "not starting at 1", parts: []chunkuploader.Part{{Number: 2, ETag: "b"}}},
		{name: "missing etag", parts: []chunkuploader.Part{{Number: 1, ETag: ""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeS3()
			session := newTestSession(t, client)

			err := session.Complete(context.Background(), tt.parts)
			assert.True(t, errors.Is(err, errkind.ErrProtocol))
			assert.Empty(t, client.completeCalls)
		})
	}
}

func TestSession_Complete_RetriesTransientErrors(t *testing.T) {
	client := newFakeS3()
	client.completeErr = []error{
		&smithy.GenericAPIError{Code: "InternalError", Message: "We encountered an internal error."},
	}
	session := newTestSession(t, client)

	require.NoError(t, session.Complete(context.Background(), testParts(2)))
	assert.Len(t, client.completeCalls, 2)
}

func TestSession_Complete_ProtocolErrorIsNotRetried(t *testing.T) {
	client := newFakeS3()
	client.completeErr = []error{
		&smithy.GenericAPIError{Code: "InvalidPart", Message: "One or more of the specified parts could not be found."},
	}
	session := newTestSession(t, client)

	err := session.Complete(context.Background(), testParts(2))
	assert.True(t, errors.Is(err, errkind.ErrProtocol))
	assert.Len(t, client.completeCalls, 1)

	// A failed session can still be aborted.
	require.NoError(t, session.Abort(context.Background()))
	assert.Equal(t, 1, client.abortCalls)
}

func TestSession_Abort(t *testing.T) {
	client := newFakeS3()
	session := newTestSession(t, client)

	require.NoError(t, session.Abort(context.Background()))
	require.NoError(t, session.Abort(context.Background()))
	assert.Equal(t, 1, client.abortCalls)

	err := session.Complete(context.Background(), testParts(1))
	assert.True(t, errors.Is(err, errkind.ErrProtocol))
}

func TestPutObject(t *testing.T) {
	client := newFakeS3()

	require.NoError(t, PutObject(context.Background(), client, "bucket", "prefix/empty.txt", nil))

	require.Len(t, client.putCalls, 1)
	assert.Equal(t, "prefix/empty.txt", aws.ToString(client.putCalls[0].Key))
	assert.Equal(t, int64(0), aws.ToInt64(client.putCalls[0].ContentLength))
}

func TestClassify(t *testing.T) {
	responseErr := func(status int) error {
		return &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
			Err:      errors.New("response error"),
		}
	}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "access denied", err: &smithy.GenericAPIError{Code: "AccessDenied"}, want: errkind.ErrAuth},
		{name: "signature", err: &smithy.GenericAPIError{Code: "SignatureDoesNotMatch"}, want: errkind.ErrAuth},
		{name: "no such upload", err: &smithy.GenericAPIError{Code: "NoSuchUpload"}, want: errkind.ErrProtocol},
		{name: "invalid part order", err: &smithy.GenericAPIError{Code: "InvalidPartOrder"}, want: errkind.ErrProtocol},
		{name: "slow down", err: &smithy.GenericAPIError{Code: "SlowDown"}, want: errkind.ErrTransientIO},
		{name: "403", err: responseErr(http.StatusForbidden), want: errkind.ErrAuth},
		{name: "503", err: responseErr(http.StatusServiceUnavailable), want: errkind.ErrTransientIO},
		{name: "network", err: errors.New("connection reset by peer"), want: errkind.ErrTransientIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("uploadPart", tt.err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.True(t, errors.Is(err, tt.err))
		})
	}

	assert.Equal(t, context.Canceled, classify("uploadPart", context.Canceled))
	assert.Nil(t, classify("uploadPart", nil))
}
