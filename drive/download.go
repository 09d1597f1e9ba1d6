package drive

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitrise-io/go-drivetransfer/drive/network"
	"github.com/bitrise-io/go-drivetransfer/errkind"
	"github.com/docker/go-units"
)

// Download downloads the file at path into the local folder destDir and returns the local path.
// An empty destDir means the working directory.
func (c *Client) Download(ctx context.Context, path, destDir string) (string, error) {
	if destDir == "" {
		destDir = "."
	}
	dir, err := c.pathModifier.AbsPath(destDir)
	if err != nil {
		return "", err
	}
	exists, err := c.pathChecker.IsDirExists(dir)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", errkind.New("download", errkind.ErrInvalidInput, fmt.Errorf("dir does not exist: %s", dir))
	}

	file, err := c.api.FileDetail(ctx, path)
	if err != nil {
		return "", err
	}
	if file.IsFolder {
		return "", errkind.New("download", errkind.ErrInvalidInput, fmt.Errorf("%s is a folder", path))
	}

	url, err := c.api.GetDownloadLink(ctx, network.DownloadLinkRequest{
		Path: strings.TrimSuffix(parentPrefix(path), "/"),
		File: []network.UploadFile{{Path: path, Size: file.Size}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to get download link: %w", err)
	}

	dest := filepath.Join(dir, baseName(path))
	c.logger.Infof("Downloading %s (%s) to %s", path, units.HumanSizeWithPrecision(float64(file.Size), 3), dest)
	startTime := time.Now()

	if err := network.DownloadFile(ctx, c.httpClient.StandardClient(), url, dest, c.config.DownloadConcurrency); err != nil {
		return "", fmt.Errorf("failed to download %s: %w", path, err)
	}

	downloadTime := time.Since(startTime).Round(time.Second)
	c.tracker.logFileDownloaded(downloadTime, file.Size)
	c.logger.Donef("Downloaded %s in %s", path, downloadTime)

	return dest, nil
}
