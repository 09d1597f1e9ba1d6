//go:build integration
// +build integration

package integration

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/bitrise-io/go-drivetransfer/drive"
	"github.com/bitrise-io/go-utils/v2/log"
)

var logger = log.NewLogger()

func checksumOf(bytes []byte) string {
	hash := sha256.New()
	hash.Write(bytes)
	return hex.EncodeToString(hash.Sum(nil))
}

// newClient creates a client for the drive account of DRIVE_REFRESH_TOKEN.
func newClient(t *testing.T) *drive.Client {
	if os.Getenv("DRIVE_REFRESH_TOKEN") == "" {
		t.Skip("DRIVE_REFRESH_TOKEN is not set")
	}

	logger.EnableDebugLog(true)
	client, err := drive.NewClientFromEnv(logger)
	if err != nil {
		t.Fatalf(err.Error())
	}
	t.Cleanup(client.Close)

	return client
}

// randomFile writes size random bytes to a temporary file and returns its path and content.
func randomFile(t *testing.T, name string, size int) (string, []byte) {
	content := make([]byte, size)
	if _, err := rand.Read(content); err != nil {
		t.Fatalf(err.Error())
	}

	pth := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(pth, content, 0644); err != nil {
		t.Fatalf(err.Error())
	}
	return pth, content
}

func testFolder(t *testing.T) string {
	return fmt.Sprintf("integration-%s/", t.Name())
}
