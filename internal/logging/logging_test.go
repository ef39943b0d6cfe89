package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/willibrandon/mtlog/core"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, core.VerboseLevel, ParseLevel("verbose"))
	assert.Equal(t, core.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, core.WarningLevel, ParseLevel("warn"))
	assert.Equal(t, core.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, core.InformationLevel, ParseLevel("info"))
	assert.Equal(t, core.InformationLevel, ParseLevel("no-such-level"))
}

func TestNewWithUnwritableLogFileStillReturnsALogger(t *testing.T) {
	// A path under a nonexistent directory cannot be opened; New must
	// fall back to stderr-only rather than fail startup.
	bad := filepath.Join(t.TempDir(), "missing", "deep", "daemon.log")
	logger := New(bad, "info")
	assert.NotNil(t, logger)
	logger.Information("still alive")
}
