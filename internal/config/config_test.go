package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTempDirDefaultsOutsideUploadDir(t *testing.T) {
	t.Setenv("UPLOAD_DIR", "uploads")
	t.Setenv("TEMP_DIR", "")

	cfg := Load()
	assert.NotEqual(t, cfg.UploadDir, cfg.TempDir)
	assert.False(t, strings.HasPrefix(cfg.TempDir, cfg.UploadDir+string(filepath.Separator)),
		"temp files hold decrypted plaintext and must not default under the served upload root")
}

func TestTempDirOverride(t *testing.T) {
	t.Setenv("TEMP_DIR", "/var/tmp/coffre")
	cfg := Load()
	assert.Equal(t, "/var/tmp/coffre", cfg.TempDir)
}
