package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bitrise-io/go-drivetransfer/drive/network"
	"github.com/bitrise-io/go-drivetransfer/drive/network/multipart"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/require"
)

// fakeDrive serves the account and file API of the drive.
type fakeDrive struct {
	t      *testing.T
	server *httptest.Server

	mu          sync.Mutex
	files       map[string]network.FileDetail
	jobStates   map[string][]string
	checkedJobs []string
	requests    map[string]map[string]interface{}
	listSize    int
	listCalls   int
	content     []byte
}

func newFakeDrive(t *testing.T) *fakeDrive {
	d := &fakeDrive{
		t:         t,
		files:     map[string]network.FileDetail{},
		jobStates: map[string][]string{},
		requests:  map[string]map[string]interface{}{},
	}
	d.server = httptest.NewServer(http.HandlerFunc(d.handle))
	t.Cleanup(d.server.Close)
	return d
}

func (d *fakeDrive) addFile(detail network.FileDetail) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[detail.Path] = detail
}

func (d *fakeDrive) request(route string) map[string]interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.requests[route]
}

func (d *fakeDrive) jobs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.checkedJobs...)
}

func (d *fakeDrive) handle(w http.ResponseWriter, r *http.Request) {
	route := r.Method + " " + r.URL.Path

	var body map[string]interface{}
	if r.Body != nil && r.Method != http.MethodGet {
		data, err := io.ReadAll(r.Body)
		require.NoError(d.t, err)
		if len(data) > 0 {
			require.NoError(d.t, json.Unmarshal(data, &body))
		}
	}

	d.mu.Lock()
	d.requests[route] = body
	d.mu.Unlock()

	switch route {
	case "POST /refreshtoken":
		d.write(w, map[string]interface{}{"uid": "host-1", "idToken": "id-token", "refreshToken": "refresh-token", "customClaims": map[string]string{"plan": "skf"}})
	case "POST /v1/check/upload":
		file := body["file"].([]interface{})[0].(map[string]interface{})
		d.write(w, map[string]interface{}{
			"bucket":    "drive-bucket",
			"region":    "ap-northeast-1",
			"prefix":    "host-1/" + body["path"].(string),
			"upload_id": "upload-1",
			"file":      []interface{}{map[string]interface{}{"path": file["path"], "size": file["size"]}},
		})
	case "GET /v1/filelink/token":
		d.write(w, map[string]interface{}{"AccessKeyId": "AKIA", "SecretAccessKey": "secret", "SessionToken": "session", "Expiration": time.Now().Add(time.Hour)})
	case "POST /v3/files/check":
		d.write(w, map[string]interface{}{"action": "test", "state": d.nextJobState(body["key"].(string))})
	case "POST /v1/file":
		d.mu.Lock()
		detail, ok := d.files[body["path"].(string)]
		d.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"SENDY_ERR_FILE_NO_SUCH_KEY"}`))
			return
		}
		d.write(w, map[string]interface{}{"file": detail})
	case "POST /v1/files":
		d.writeListPage(w, int(body["from"].(float64)), int(body["to"].(float64)))
	case "POST /v1/files/create":
		w.WriteHeader(http.StatusNoContent)
	case "PUT /v3/files/move", "POST /v3/files/copy", "PUT /v3/files/rename", "DELETE /v3/files":
		d.write(w, map[string]string{"key": "job-1"})
	case "POST /v1/filelink/download":
		d.write(w, map[string]string{"url": d.server.URL + "/blob/file"})
	case "GET /blob/file":
		http.ServeContent(w, r, "file", time.Time{}, bytes.NewReader(d.content))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(fmt.Sprintf("unexpected request: %s", route)))
	}
}

func (d *fakeDrive) nextJobState(key string) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.checkedJobs = append(d.checkedJobs, key)
	states := d.jobStates[key]
	if len(states) == 0 {
		return "complete"
	}
	d.jobStates[key] = states[1:]
	return states[0]
}

func (d *fakeDrive) writeListPage(w http.ResponseWriter, from, to int) {
	d.mu.Lock()
	d.listCalls++
	size := d.listSize
	d.mu.Unlock()

	var files []network.ListedFile
	for i := from; i < to && i < size; i++ {
		files = append(files, network.ListedFile{Path: fmt.Sprintf("docs/file-%03d.txt", i), Size: int64(i)})
	}
	d.write(w, map[string]interface{}{"count": size, "file": files, "last_page": to >= size})
}

func (d *fakeDrive) write(w http.ResponseWriter, response interface{}) {
	w.Header().Set("Content-Type", "application/json")
	require.NoError(d.t, json.NewEncoder(w).Encode(response))
}

// fakeStore is an in-memory multipart.S3API.
type fakeStore struct {
	mu sync.Mutex

	uploadErr error

	key        string
	parts      map[int32][]byte
	completed  []int32
	aborted    bool
	putObjects map[string][]byte
	creds      multipart.Credentials
}

func newFakeStore() *fakeStore {
	return &fakeStore{parts: map[int32][]byte{}, putObjects: map[string][]byte{}}
}

func (f *fakeStore) factory(_ context.Context, creds multipart.Credentials) (multipart.S3API, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds = creds
	return f, nil
}

func (f *fakeStore) CreateMultipartUpload(_ context.Context, params *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.key = aws.ToString(params.Key)
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String("s3-upload-1")}, nil
}

func (f *fakeStore) UploadPart(_ context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}

	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.parts[aws.ToInt32(params.PartNumber)] = body
	return &s3.UploadPartOutput{ETag: aws.String(fmt.Sprintf("etag-%d", aws.ToInt32(params.PartNumber)))}, nil
}

func (f *fakeStore) CompleteMultipartUpload(_ context.Context, params *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, part := range params.MultipartUpload.Parts {
		f.completed = append(f.completed, aws.ToInt32(part.PartNumber))
	}
	return &s3.CompleteMultipartUploadOutput{}, nil
}

func (f *fakeStore) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted = true
	return &s3.AbortMultipartUploadOutput{}, nil
}

func (f *fakeStore) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.putObjects[aws.ToString(params.Key)] = body
	return &s3.PutObjectOutput{}, nil
}

// assembled joins the uploaded parts in part number order.
func (f *fakeStore) assembled() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	numbers := make([]int, 0, len(f.parts))
	for number := range f.parts {
		numbers = append(numbers, int(number))
	}
	sort.Ints(numbers)

	var data []byte
	for _, number := range numbers {
		data = append(data, f.parts[int32(number)]...)
	}
	return data
}

func newTestClient(t *testing.T, drive *fakeDrive, store *fakeStore) *Client {
	t.Setenv("DRIVE_SESSION_ID", "")

	config := Config{
		RefreshToken:        "refresh-token",
		FileAPIURL:          drive.server.URL,
		AccountAPIURL:       drive.server.URL,
		MinChunkSizeBytes:   5,
		DownloadConcurrency: 2,
		JobPollInterval:     time.Millisecond,
		JobTimeout:          10 * time.Second,
	}
	client := NewClient(config, env.NewRepository(), log.NewLogger(), store.factory)
	client.httpClient.RetryMax = 1
	client.httpClient.RetryWaitMin = time.Millisecond
	client.httpClient.RetryWaitMax = time.Millisecond
	t.Cleanup(client.Close)

	return client
}
