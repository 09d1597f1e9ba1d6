package drive

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bitrise-io/go-drivetransfer/drive/network"
	"github.com/bitrise-io/go-drivetransfer/errkind"
)

const listPageSize = 40

// ErrAlreadyExists is returned when the target of a move or copy already exists.
var ErrAlreadyExists = errors.New("file already exists")

// Info returns the details of the file or folder at path.
func (c *Client) Info(ctx context.Context, path string) (network.FileDetail, error) {
	return c.api.FileDetail(ctx, path)
}

// List returns every entry of the folder, fetching the listing page by page.
func (c *Client) List(ctx context.Context, folder string) (network.ListFilesResponse, error) {
	var files []network.ListedFile
	var response network.ListFilesResponse

	for from := 0; ; {
		page, err := c.api.ListFiles(ctx, network.ListFilesRequest{
			Path: folder,
			From: from,
			To:   from + listPageSize,
		})
		if err != nil {
			return network.ListFilesResponse{}, fmt.Errorf("failed to list %s: %w", folder, err)
		}

		files = append(files, page.File...)
		response = page
		if page.LastPage || len(page.File) == 0 {
			break
		}
		from += len(page.File)
	}

	response.File = files
	response.LastPage = true
	return response, nil
}

// Mkdir creates the folder name in the parent folder ("" is the root folder).
func (c *Client) Mkdir(ctx context.Context, name, parent string) error {
	if err := validateName("mkdir", name); err != nil {
		return err
	}

	if err := c.api.CreateFolder(ctx, network.CreateFolderRequest{Name: name, Path: parent}); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", name, err)
	}

	c.logger.Donef("Created: %s", parent+name)
	return nil
}

// Rename renames the file or folder at path to name, keeping it in the same folder.
func (c *Client) Rename(ctx context.Context, path, name string) error {
	if err := validateName("rename", name); err != nil {
		return err
	}

	file, err := c.api.FileDetail(ctx, path)
	if err != nil {
		return err
	}

	key, err := c.api.RenameFile(ctx, network.RenameRequest{
		Prefix: parentPrefix(path),
		Name:   name,
		File:   network.NewFileRef(file),
	})
	if err != nil {
		return fmt.Errorf("failed to rename %s: %w", path, err)
	}

	if err := c.awaitJob(ctx, "rename", key); err != nil {
		return err
	}

	c.logger.Donef("Renamed.")
	return nil
}

// Move moves the file or folder at path into the folder destination, which must end with "/".
func (c *Client) Move(ctx context.Context, path, destination string) error {
	request, err := c.transferRequest(ctx, "move", path, destination)
	if err != nil {
		return err
	}

	key, err := c.api.MoveFiles(ctx, request)
	if err != nil {
		return fmt.Errorf("failed to move %s: %w", path, err)
	}

	if err := c.awaitJob(ctx, "move", key); err != nil {
		return err
	}

	c.logger.Donef("Moved.")
	return nil
}

// Copy copies the file or folder at path into the folder destination, which must end with "/".
func (c *Client) Copy(ctx context.Context, path, destination string) error {
	request, err := c.transferRequest(ctx, "copy", path, destination)
	if err != nil {
		return err
	}

	key, err := c.api.CopyFiles(ctx, request)
	if err != nil {
		return fmt.Errorf("failed to copy %s: %w", path, err)
	}

	if err := c.awaitJob(ctx, "copy", key); err != nil {
		return err
	}

	c.logger.Donef("Copied.")
	return nil
}

// Delete moves the file or folder at path to the trash. Folders are only deleted when recursive is set.
func (c *Client) Delete(ctx context.Context, path string, recursive bool) error {
	file, err := c.api.FileDetail(ctx, path)
	if err != nil {
		return err
	}
	if file.IsFolder && !recursive {
		return errkind.New("delete", errkind.ErrInvalidInput, fmt.Errorf("%s is a folder, deleting it has to be recursive", path))
	}

	key, err := c.api.DeleteFiles(ctx, network.DeleteRequest{
		Trash: true,
		File:  []network.FileRef{network.NewFileRef(file)},
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}

	if err := c.awaitJob(ctx, "delete", key); err != nil {
		return err
	}

	c.logger.Donef("Deleted.")
	return nil
}

func (c *Client) transferRequest(ctx context.Context, op, path, destination string) (network.TransferRequest, error) {
	if !strings.HasSuffix(destination, "/") {
		return network.TransferRequest{}, errkind.New(op, errkind.ErrInvalidInput, fmt.Errorf("destination should be a folder ending with /: %s", destination))
	}

	file, err := c.api.FileDetail(ctx, path)
	if err != nil {
		return network.TransferRequest{}, err
	}

	target := destination + baseName(path)
	_, err = c.api.FileDetail(ctx, target)
	switch {
	case err == nil:
		return network.TransferRequest{}, errkind.New(op, errkind.ErrInvalidInput, fmt.Errorf("%w: %s", ErrAlreadyExists, target))
	case !errors.Is(err, network.ErrFileNotFound):
		return network.TransferRequest{}, err
	}

	return network.TransferRequest{
		Prefix: parentPrefix(path),
		ToPath: destination,
		File:   []network.FileRef{network.NewFileRef(file)},
	}, nil
}

func validateName(op, name string) error {
	if name == "" {
		return errkind.New(op, errkind.ErrInvalidInput, fmt.Errorf("name must not be empty"))
	}
	if strings.Contains(name, "/") {
		return errkind.New(op, errkind.ErrInvalidInput, fmt.Errorf("name must not contain /: %s", name))
	}
	return nil
}

// parentPrefix returns the folder of path with a trailing slash, "" for the root folder.
func parentPrefix(path string) string {
	path = strings.TrimSuffix(path, "/")
	idx := strings.LastIndex(path, "/")
	if idx == -1 {
		return ""
	}
	return path[:idx+1]
}

func baseName(path string) string {
	path = strings.TrimSuffix(path, "/")
	return path[strings.LastIndex(path, "/")+1:]
}
