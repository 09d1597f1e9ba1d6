package network

import "time"

// SortType orders file listings.
type SortType string

// Sort types.
const (
	SortByName     SortType = "name"
	SortByModified SortType = "modified"
	SortBySize     SortType = "size"
)

type refreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshTokenResponse struct {
	UID          string `json:"uid"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	RefreshToken string `json:"refreshToken"`
	IDToken      string `json:"idToken"`
	CustomClaims struct {
		Plan string `json:"plan"`
	} `json:"customClaims"`
}

// UploadFile is a file announced to the drive before uploading.
type UploadFile struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// CheckUploadRequest ...
type CheckUploadRequest struct {
	HostID   string       `json:"host_id"`
	Path     string       `json:"path"`
	UploadID string       `json:"upload_id"`
	File     []UploadFile `json:"file"`
}

// CheckUploadFile is a file accepted for upload.
type CheckUploadFile struct {
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	LastModified string `json:"last_modified"`
	VersionID    string `json:"version_id"`
}

// CheckUploadResponse tells where the announced files have to be uploaded.
type CheckUploadResponse struct {
	Bucket   string            `json:"bucket"`
	Region   string            `json:"region"`
	Prefix   string            `json:"prefix"`
	UploadID string            `json:"upload_id"`
	File     []CheckUploadFile `json:"file"`
}

// UploadCredentials are temporary object store credentials.
type UploadCredentials struct {
	AccessKeyID     string    `json:"AccessKeyId"`
	SecretAccessKey string    `json:"SecretAccessKey"`
	SessionToken    string    `json:"SessionToken"`
	Expiration      time.Time `json:"Expiration"`
}

type checkActionRequest struct {
	Key string `json:"key"`
}

type checkActionResponse struct {
	Action    string `json:"action"`
	State     string `json:"state"`
	UsageSize *int64 `json:"usage_size"`
	Message   string `json:"message"`
}

type jobKeyResponse struct {
	Key string `json:"key"`
}

// ListFilesRequest ...
type ListFilesRequest struct {
	HostID        string   `json:"host_id"`
	Path          string   `json:"path"`
	From          int      `json:"from"`
	To            int      `json:"to"`
	SortType      SortType `json:"sort_type"`
	Reverse       bool     `json:"reverse"`
	ThumbnailSize int      `json:"thumbnail_size"`
}

// ListedFile is an entry of a folder listing.
type ListedFile struct {
	Path           string `json:"Path"`
	Size           int64  `json:"Size"`
	IsFolder       bool   `json:"IsFolder"`
	HasChildFolder bool   `json:"HasChildFolder"`
	IsBackedUp     bool   `json:"IsBackedUp"`
	IsLatest       bool   `json:"IsLatest"`
	IsShare        string `json:"IsShare"`
	LastModified   string `json:"LastModified"`
	OwnerID        string `json:"OwnerID"`
	Thumbnail      string `json:"Thumbnail"`
	VersionID      string `json:"VersionID"`
}

// ListFilesResponse is a single page of a folder listing.
type ListFilesResponse struct {
	AccessLevel string       `json:"access_level"`
	Count       int64        `json:"count"`
	File        []ListedFile `json:"file"`
	LastPage    bool         `json:"last_page"`
	Owner       string       `json:"owner"`
	Prefix      string       `json:"prefix"`
	UsageSize   int64        `json:"usage_size"`
}

type fileDetailRequest struct {
	HostID        string `json:"host_id"`
	Path          string `json:"path"`
	ThumbnailSize int    `json:"thumbnail_size"`
}

// FileDetail ...
type FileDetail struct {
	Path           string `json:"Path"`
	Size           int64  `json:"Size"`
	IsFolder       bool   `json:"IsFolder"`
	HasChildFolder bool   `json:"HasChildFolder"`
	ItemsCount     int64  `json:"ItemsCount"`
	AccessLevel    string `json:"AccessLevel"`
	HostID         string `json:"HostID"`
	OwnerID        string `json:"OwnerID"`
	LastModifierID string `json:"LastModifierID"`
	LastModified   string `json:"LastModified"`
	IsShare        string `json:"IsShare"`
	Thumbnail      string `json:"Thumbnail"`
	VersionID      string `json:"VersionID"`
}

type fileDetailResponse struct {
	AccessLevel string     `json:"access_level"`
	File        FileDetail `json:"file"`
	Owner       string     `json:"owner"`
	Prefix      string     `json:"prefix"`
	UsageSize   int64      `json:"usage_size"`
}

// FileRef identifies a specific version of a file in modifying requests.
type FileRef struct {
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	LastModified string `json:"last_modified"`
	VersionID    string `json:"version_id"`
}

// NewFileRef ...
func NewFileRef(detail FileDetail) FileRef {
	return FileRef{
		Path:         detail.Path,
		Size:         detail.Size,
		LastModified: detail.LastModified,
		VersionID:    detail.VersionID,
	}
}

// TransferRequest moves or copies files to another folder.
type TransferRequest struct {
	HostID   string    `json:"host_id"`
	Prefix   string    `json:"prefix"`
	TargetID string    `json:"target_id"`
	ToPath   string    `json:"to_path"`
	File     []FileRef `json:"file"`
}

// RenameRequest ...
type RenameRequest struct {
	HostID string  `json:"host_id"`
	Prefix string  `json:"prefix"`
	Name   string  `json:"name"`
	File   FileRef `json:"file"`
}

// DeleteRequest ...
type DeleteRequest struct {
	HostID string    `json:"host_id"`
	Prefix string    `json:"prefix"`
	Trash  bool      `json:"trash"`
	File   []FileRef `json:"file"`
}

// CreateFolderRequest ...
type CreateFolderRequest struct {
	HostID string `json:"host_id"`
	Name   string `json:"name"`
	Path   string `json:"path"`
}

// DownloadLinkRequest ...
type DownloadLinkRequest struct {
	AppVersion string       `json:"app_version"`
	HostID     string       `json:"host_id"`
	Path       string       `json:"path"`
	File       []UploadFile `json:"file"`
}

type downloadLinkResponse struct {
	URL string `json:"url"`
}
