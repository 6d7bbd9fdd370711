package sourcelink

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sourcelink.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, HardRowCeiling, config.Spreadsheet.MaxRowWindow)
	assert.Equal(t, "auto", config.Spreadsheet.WriteBackend)
	assert.Equal(t, DefaultMaxDepth, config.Parser.MaxDepth)
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
spreadsheet:
  max_row_window: 200
  write_backend: compat
parser:
  max_depth: 32
`)

	config, err := LoadConfig(path)
	assert.NoError(t, err)
	assert.Equal(t, 200, config.Spreadsheet.MaxRowWindow)
	assert.Equal(t, "compat", config.Spreadsheet.WriteBackend)
	assert.Equal(t, 32, config.Parser.MaxDepth)
}

func TestLoadConfigTailWindow(t *testing.T) {
	path := writeConfig(t, `
spreadsheet:
  tail_row_window: 50
`)

	config, err := LoadConfig(path)
	assert.NoError(t, err)
	assert.Equal(t, 50, config.Spreadsheet.TailRowWindow)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	config, err := LoadConfig("")
	assert.NoError(t, err)
	assert.Equal(t, HardRowCeiling, config.Spreadsheet.MaxRowWindow)
}

func TestLoadConfigExplicitMissingFileFails(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.IsError(t, err, ErrConfigFileNotFound)
}

func TestLoadConfigClampsCeiling(t *testing.T) {
	path := writeConfig(t, `
spreadsheet:
  max_row_window: 100000
parser:
  max_depth: 100000
`)

	config, err := LoadConfig(path)
	assert.NoError(t, err)

	// The ceiling can be lowered from config but never raised
	assert.Equal(t, HardRowCeiling, config.Spreadsheet.MaxRowWindow)
	assert.Equal(t, DefaultMaxDepth, config.Parser.MaxDepth)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown backend", content: "spreadsheet:\n  write_backend: turbo\n"},
		{name: "negative window", content: "spreadsheet:\n  max_row_window: -1\n"},
		{name: "negative tail", content: "spreadsheet:\n  tail_row_window: -1\n"},
		{name: "negative depth", content: "parser:\n  max_depth: -5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
			assert.IsError(t, err, ErrConfigValidation)
		})
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err      error
		expected Status
	}{
		{err: nil, expected: StatusOK},
		{err: ErrFileNotFound, expected: StatusFileNotFound},
		{err: ErrKeyNotFound, expected: StatusKeyNotFound},
		{err: ErrSheetNotFound, expected: StatusKeyNotFound},
		{err: ErrColumnNotFound, expected: StatusKeyNotFound},
		{err: ErrRowOutOfRange, expected: StatusKeyNotFound},
		{err: ErrInvalidPath, expected: StatusInvalidPath},
		{err: ErrParseFailed, expected: StatusParseError},
		{err: errors.New("anything else"), expected: StatusParseError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, StatusForError(tt.err))
	}
}
