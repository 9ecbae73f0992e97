package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPathValidator(t *testing.T) {
	_, err := NewPathValidator("")
	assert.Error(t, err)

	v, err := NewPathValidator(".")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(v.Base()))
}

func TestResolve(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "books"), 0o750))
	v, err := NewPathValidator(base)
	require.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{"relative", "books/a.pdf", filepath.Join(base, "books", "a.pdf"), false},
		{"absolute inside", filepath.Join(base, "b.pdf"), filepath.Join(base, "b.pdf"), false},
		{"base itself", base, base, false},
		{"dot dot escape", "../outside.pdf", "", true},
		{"absolute outside", "/etc/passwd", "", true},
		{"null bytes stripped", "books/a\x00.pdf", filepath.Join(base, "books", "a.pdf"), false},
		{"empty", "  ", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Resolve(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_SymlinkEscape(t *testing.T) {
	base := t.TempDir()
	outside := t.TempDir()
	target := filepath.Join(outside, "secret.pdf")
	require.NoError(t, os.WriteFile(target, []byte("%PDF"), 0o600))
	link := filepath.Join(base, "link.pdf")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	v, err := NewPathValidator(base)
	require.NoError(t, err)
	_, err = v.Resolve("link.pdf")
	assert.Error(t, err)
}
