package multipart

import (
	"context"
	"errors"
	"net/http"

	"github.com/aws/smithy-go"
	"github.com/bitrise-io/go-drivetransfer/errkind"
)

var authErrorCodes = map[string]bool{
	"AccessDenied":          true,
	"InvalidAccessKeyId":    true,
	"ExpiredToken":          true,
	"InvalidToken":          true,
	"SignatureDoesNotMatch": true,
}

var protocolErrorCodes = map[string]bool{
	"NoSuchUpload":     true,
	"NoSuchBucket":     true,
	"InvalidPart":      true,
	"InvalidPartOrder": true,
	"EntityTooSmall":   true,
}

// httpStatusError is implemented by the response errors of the aws sdk.
type httpStatusError interface {
	HTTPStatusCode() int
}

// classify wraps an object store error with its errkind. Context errors are returned as is.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch code := apiErr.ErrorCode(); {
		case authErrorCodes[code]:
			return errkind.New(op, errkind.ErrAuth, err)
		case protocolErrorCodes[code]:
			return errkind.New(op, errkind.ErrProtocol, err)
		}
	}

	var statusErr httpStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.HTTPStatusCode() {
		case http.StatusUnauthorized, http.StatusForbidden:
			return errkind.New(op, errkind.ErrAuth, err)
		case http.StatusNotFound:
			return errkind.New(op, errkind.ErrProtocol, err)
		}
	}

	return errkind.New(op, errkind.ErrTransientIO, err)
}
