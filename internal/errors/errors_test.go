package errors

import (
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMatching(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		code     int
	}{
		{"missing configuration", MissingConfiguration("message"), ErrMissingConfiguration, 2},
		{"io", IO("a.txt", fs.ErrNotExist), ErrIO, 3},
		{"path transform", PathTransform("x/a.txt", "src"), ErrPathTransform, 4},
		{"conflict", PathConflict("dist/x.txt", "build/a/x.txt", "build/b/x.txt"), ErrPathConflict, 5},
		{"mode", UnsupportedMode("a.txt", 0o200), ErrUnsupportedMode, 6},
		{"remote", RemoteOperation("create blob", fmt.Errorf("boom")), ErrRemoteOperation, 7},
		{"ref", RefUpdateRejected("refs/heads/main", "a", "b"), ErrRefUpdateRejected, 8},
		{"boundary", WorkspaceBoundary("../out", "/ws"), ErrWorkspaceBoundary, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("executing: %w", tt.err)
			assert.True(t, Is(wrapped, tt.sentinel))
			assert.Equal(t, tt.code, ExitCode(wrapped))
			assert.Equal(t, tt.sentinel.(*Error).Type, TypeOf(wrapped))
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	err := IO("a.txt", fs.ErrNotExist)
	assert.True(t, Is(err, fs.ErrNotExist))
	assert.Contains(t, err.Error(), "a.txt")
	assert.False(t, Is(err, ErrPathConflict))
}

func TestConflictDetails(t *testing.T) {
	var target *Error
	require.True(t, As(fmt.Errorf("wrap: %w", PathConflict("dist/x.txt", "p", "o")), &target))

	conflict, ok := target.Details.(Conflict)
	require.True(t, ok)
	assert.Equal(t, "dist/x.txt", conflict.Destination)
	assert.Equal(t, "p", conflict.Path)
	assert.Equal(t, "o", conflict.Other)
}

func TestExitCodeUntyped(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(fmt.Errorf("plain")))
}
