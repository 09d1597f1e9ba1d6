package network

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/bitrise-io/go-drivetransfer/drive/network/jobwatch"
	"github.com/bitrise-io/go-drivetransfer/errkind"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	// DefaultFileAPIURL is the base URL of the drive file API.
	DefaultFileAPIURL = "https://forest.sendy.jp/cloud/service/file"
	// DefaultAccountAPIURL is the base URL of the drive account API.
	DefaultAccountAPIURL = "https://www.rakuten-drive.com/api/account"

	// AppVersion is sent along with download link requests.
	AppVersion = "v21.11.10"

	thumbnailSize = 130
)

// APIClient is a JSON client of the drive file API.
type APIClient struct {
	httpClient *retryablehttp.Client
	baseURL    string
	auth       TokenSource
	logger     log.Logger
}

// NewAPIClient ...
func NewAPIClient(client *retryablehttp.Client, baseURL string, auth TokenSource, logger log.Logger) *APIClient {
	return &APIClient{
		httpClient: client,
		baseURL:    baseURL,
		auth:       auth,
		logger:     logger,
	}
}

// HostID ...
func (c *APIClient) HostID(ctx context.Context) (string, error) {
	return c.auth.HostID(ctx)
}

// CheckUpload announces files to upload and returns their object store location.
func (c *APIClient) CheckUpload(ctx context.Context, request CheckUploadRequest) (CheckUploadResponse, error) {
	hostID, err := c.auth.HostID(ctx)
	if err != nil {
		return CheckUploadResponse{}, err
	}
	request.HostID = hostID

	var response CheckUploadResponse
	if err := c.do(ctx, "checkUpload", http.MethodPost, "/v1/check/upload", request, http.StatusOK, &response); err != nil {
		return CheckUploadResponse{}, err
	}
	if len(response.File) == 0 || response.Bucket == "" || response.UploadID == "" {
		return CheckUploadResponse{}, errkind.New("checkUpload", errkind.ErrProtocol, fmt.Errorf("incomplete upload location in response"))
	}

	return response, nil
}

// GetUploadCredentials returns temporary credentials of the object store.
func (c *APIClient) GetUploadCredentials(ctx context.Context) (UploadCredentials, error) {
	hostID, err := c.auth.HostID(ctx)
	if err != nil {
		return UploadCredentials{}, err
	}

	query := url.Values{}
	query.Set("host_id", hostID)
	query.Set("path", "hello")

	var response UploadCredentials
	if err := c.do(ctx, "getUploadCredentials", http.MethodGet, "/v1/filelink/token?"+query.Encode(), nil, http.StatusOK, &response); err != nil {
		return UploadCredentials{}, err
	}
	if response.AccessKeyID == "" || response.SecretAccessKey == "" {
		return UploadCredentials{}, errkind.New("getUploadCredentials", errkind.ErrAuth, fmt.Errorf("no credentials in response"))
	}

	return response, nil
}

// CheckJobStatus returns the state of a server side job.
func (c *APIClient) CheckJobStatus(ctx context.Context, key string) (jobwatch.Job, error) {
	var response checkActionResponse
	if err := c.do(ctx, "checkJobStatus", http.MethodPost, "/v3/files/check", checkActionRequest{Key: key}, http.StatusOK, &response); err != nil {
		return jobwatch.Job{}, err
	}

	return jobwatch.Job{
		Key:    key,
		Action: response.Action,
		State:  jobwatch.State(response.State),
		Detail: response.Message,
	}, nil
}

// ListFiles returns a single page of a folder listing.
func (c *APIClient) ListFiles(ctx context.Context, request ListFilesRequest) (ListFilesResponse, error) {
	hostID, err := c.auth.HostID(ctx)
	if err != nil {
		return ListFilesResponse{}, err
	}
	request.HostID = hostID
	if request.SortType == "" {
		request.SortType = SortByName
	}
	if request.ThumbnailSize == 0 {
		request.ThumbnailSize = thumbnailSize
	}

	var response ListFilesResponse
	if err := c.do(ctx, "listFiles", http.MethodPost, "/v1/files", request, http.StatusOK, &response); err != nil {
		return ListFilesResponse{}, err
	}
	return response, nil
}

// FileDetail returns the details of a file or folder.
// A missing file results in an error matching ErrFileNotFound.
func (c *APIClient) FileDetail(ctx context.Context, path string) (FileDetail, error) {
	hostID, err := c.auth.HostID(ctx)
	if err != nil {
		return FileDetail{}, err
	}

	var response fileDetailResponse
	request := fileDetailRequest{HostID: hostID, Path: path, ThumbnailSize: thumbnailSize}
	if err := c.do(ctx, "fileDetail", http.MethodPost, "/v1/file", request, http.StatusOK, &response); err != nil {
		return FileDetail{}, err
	}
	return response.File, nil
}

// DeleteFiles moves files to the trash (or deletes them) and returns the key of the job.
func (c *APIClient) DeleteFiles(ctx context.Context, request DeleteRequest) (string, error) {
	hostID, err := c.auth.HostID(ctx)
	if err != nil {
		return "", err
	}
	request.HostID = hostID

	return c.jobRequest(ctx, "deleteFiles", http.MethodDelete, "/v3/files", request)
}

// MoveFiles returns the key of the move job.
func (c *APIClient) MoveFiles(ctx context.Context, request TransferRequest) (string, error) {
	hostID, err := c.auth.HostID(ctx)
	if err != nil {
		return "", err
	}
	request.HostID = hostID
	if request.TargetID == "" {
		request.TargetID = hostID
	}

	return c.jobRequest(ctx, "moveFiles", http.MethodPut, "/v3/files/move", request)
}

// CopyFiles returns the key of the copy job.
func (c *APIClient) CopyFiles(ctx context.Context, request TransferRequest) (string, error) {
	hostID, err := c.auth.HostID(ctx)
	if err != nil {
		return "", err
	}
	request.HostID = hostID
	if request.TargetID == "" {
		request.TargetID = hostID
	}

	return c.jobRequest(ctx, "copyFiles", http.MethodPost, "/v3/files/copy", request)
}

// RenameFile returns the key of the rename job.
func (c *APIClient) RenameFile(ctx context.Context, request RenameRequest) (string, error) {
	hostID, err := c.auth.HostID(ctx)
	if err != nil {
		return "", err
	}
	request.HostID = hostID

	return c.jobRequest(ctx, "renameFile", http.MethodPut, "/v3/files/rename", request)
}

// CreateFolder creates the folder name in the parent folder request.Path.
func (c *APIClient) CreateFolder(ctx context.Context, request CreateFolderRequest) error {
	hostID, err := c.auth.HostID(ctx)
	if err != nil {
		return err
	}
	request.HostID = hostID

	return c.do(ctx, "createFolder", http.MethodPost, "/v1/files/create", request, http.StatusNoContent, nil)
}

// GetDownloadLink returns a signed URL the file can be downloaded from.
func (c *APIClient) GetDownloadLink(ctx context.Context, request DownloadLinkRequest) (string, error) {
	hostID, err := c.auth.HostID(ctx)
	if err != nil {
		return "", err
	}
	request.HostID = hostID
	if request.AppVersion == "" {
		request.AppVersion = AppVersion
	}

	var response downloadLinkResponse
	if err := c.do(ctx, "getDownloadLink", http.MethodPost, "/v1/filelink/download", request, http.StatusOK, &response); err != nil {
		return "", err
	}
	if response.URL == "" {
		return "", errkind.New("getDownloadLink", errkind.ErrProtocol, fmt.Errorf("no url in response"))
	}
	return response.URL, nil
}

// jobRequest sends a request that starts a server side job and returns the key of the job.
func (c *APIClient) jobRequest(ctx context.Context, op, method, path string, request interface{}) (string, error) {
	var response jobKeyResponse
	if err := c.do(ctx, op, method, path, request, http.StatusOK, &response); err != nil {
		return "", err
	}
	if response.Key == "" {
		return "", errkind.New(op, errkind.ErrProtocol, fmt.Errorf("no job key in response"))
	}
	return response.Key, nil
}

func (c *APIClient) do(ctx context.Context, op, method, path string, requestBody interface{}, expectedStatus int, response interface{}) error {
	token, err := c.auth.Token(ctx)
	if err != nil {
		return err
	}

	var body []byte
	if requestBody != nil {
		body, err = json.Marshal(requestBody)
		if err != nil {
			return err
		}
	}

	req, err := retryablehttp.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	if requestBody != nil {
		req.Header.Set("Content-type", "application/json")
	}

	dump, err := httputil.DumpRequest(req.Request, false)
	if err != nil {
		c.logger.Warnf("error while dumping request: %s", err)
	}
	c.logger.Debugf("%s request dump: %s", op, string(dump))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
		return errkind.New(op, errkind.ErrTransientIO, err)
	}
	defer func(body io.ReadCloser) {
		err := body.Close()
		if err != nil {
			c.logger.Printf(err.Error())
		}
	}(resp.Body)

	if resp.StatusCode != expectedStatus {
		return unwrapError(op, resp)
	}
	if response == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return errkind.New(op, errkind.ErrProtocol, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
