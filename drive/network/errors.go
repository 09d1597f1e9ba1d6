package network

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bitrise-io/go-drivetransfer/errkind"
)

// ErrFileNotFound is matched by a DriveError reporting a missing file or folder.
var ErrFileNotFound = errors.New("file not found")

// Drive error codes.
const (
	ErrCodeNoFolder        = "SENDY_ERR_FILE_NO_FOLDER"
	ErrCodeNoSuchKey       = "SENDY_ERR_FILE_NO_SUCH_KEY"
	ErrCodeAlreadyExist    = "SENDY_ERR_FILE_ALREADY_EXIST_FILE_NAME"
	ErrCodeLongKey         = "SENDY_ERR_FILE_LONG_KEY"
	ErrCodeExceededStorage = "SENDY_ERR_EXCEEDED_FOLDER_MAX_STORAGE"
	ErrCodeExceededTraffic = "SENDY_ERR_EXCEEDED_TRAFFIC"
	ErrCodeServer          = "SENDY_ERR_SERVER"
	ErrCodeAlreadyRunning  = "SENDY_ERR_ALREADY_RUNNING"
	ErrCodeWrongPath       = "SENDY_ERR_FILE_WRONG_PATH"
	ErrCodeNoPermission    = "SENDY_ERR_FILE_NO_PERMISSION"
)

const (
	driveErrorCodePrefix = "SENDY_ERR_"
	maxErrorBodySize     = 1024
)

// DriveError is an error reported by the drive API in its response body.
type DriveError struct {
	StatusCode int
	Code       string
}

// Error ...
func (e *DriveError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Code)
}

// Is makes missing files match ErrFileNotFound.
func (e *DriveError) Is(target error) bool {
	return target == ErrFileNotFound && (e.Code == ErrCodeNoSuchKey || e.Code == ErrCodeNoFolder)
}

type driveErrorBody struct {
	Error string `json:"error"`
}

func parseDriveError(statusCode int, body []byte) *DriveError {
	var errBody driveErrorBody
	if err := json.Unmarshal(body, &errBody); err != nil {
		return nil
	}
	if !strings.HasPrefix(errBody.Error, driveErrorCodePrefix) {
		return nil
	}
	return &DriveError{StatusCode: statusCode, Code: errBody.Error}
}

// unwrapError reads the body of a failed response and classifies it.
func unwrapError(op string, resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil {
		return errkind.New(op, errkind.ErrTransientIO, err)
	}

	var cause error = fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	driveErr := parseDriveError(resp.StatusCode, body)
	if driveErr != nil {
		cause = driveErr
	}

	return errkind.New(op, classifyStatus(resp.StatusCode, driveErr), cause)
}

func classifyStatus(statusCode int, driveErr *DriveError) error {
	if driveErr != nil {
		switch driveErr.Code {
		case ErrCodeServer, ErrCodeAlreadyRunning:
			return errkind.ErrTransientIO
		case ErrCodeNoPermission:
			return errkind.ErrAuth
		}
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return errkind.ErrAuth
	case statusCode == http.StatusTooManyRequests || statusCode == http.StatusRequestTimeout || statusCode >= 500:
		return errkind.ErrTransientIO
	case statusCode >= 400:
		return errkind.ErrInvalidInput
	}
	return errkind.ErrProtocol
}
