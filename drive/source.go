package drive

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/bitrise-io/go-utils/v2/filedownloader"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
)

const (
	fileScheme  = "file://"
	httpScheme  = "http://"
	httpsScheme = "https://"
)

// SourceResolver returns the local file an upload reads from.
type SourceResolver interface {
	// LocalPath returns the absolute local path of path.
	// A `file://` scheme is stripped, plain paths are made absolute and remote
	// (http:// or https://) files are downloaded to a temporary directory first.
	LocalPath(ctx context.Context, path string) (string, error)
}

type sourceResolver struct {
	downloader   filedownloader.Downloader
	pathProvider pathutil.PathProvider
	pathModifier pathutil.PathModifier
}

// NewSourceResolver ...
func NewSourceResolver(logger log.Logger) SourceResolver {
	return newSourceResolver(filedownloader.NewDownloader(logger), pathutil.NewPathProvider(), pathutil.NewPathModifier())
}

func newSourceResolver(downloader filedownloader.Downloader, pathProvider pathutil.PathProvider, pathModifier pathutil.PathModifier) SourceResolver {
	return &sourceResolver{
		downloader:   downloader,
		pathProvider: pathProvider,
		pathModifier: pathModifier,
	}
}

func (r *sourceResolver) LocalPath(ctx context.Context, path string) (string, error) {
	if strings.HasPrefix(path, httpScheme) || strings.HasPrefix(path, httpsScheme) {
		return r.downloadToLocalPath(ctx, path)
	}

	return r.pathModifier.AbsPath(strings.TrimPrefix(path, fileScheme))
}

func (r *sourceResolver) downloadToLocalPath(ctx context.Context, urlPath string) (string, error) {
	tmpDir, err := r.pathProvider.CreateTempDir("drive-upload")
	if err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}

	parsedURL, err := url.Parse(urlPath)
	if err != nil {
		return "", fmt.Errorf("failed to extract filename from URL %s: %w", urlPath, err)
	}
	fileName := filepath.Base(parsedURL.Path)
	if fileName == "." || fileName == "/" {
		return "", fmt.Errorf("no file name in URL %s", urlPath)
	}

	localPath := filepath.Join(tmpDir, fileName)
	if err := r.downloader.Download(ctx, localPath, urlPath); err != nil {
		return "", fmt.Errorf("failed to download file from %s: %w", urlPath, err)
	}

	return localPath, nil
}
