package permissions

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NoFile(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, ".llamagent", "perms.json"))
	require.NoError(t, err)

	assert.False(t, s.IsToolTrusted("shell_command"))
	assert.Empty(t, s.TrustedTools())
}

func TestTrustTool(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "perms.json"))
	require.NoError(t, err)

	require.NoError(t, s.TrustTool("calculator"))
	assert.True(t, s.IsToolTrusted("calculator"))
	assert.False(t, s.IsToolTrusted("shell_command"))
}

func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "perms.json")

	s1, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s1.TrustTool("shell_command"))
	require.NoError(t, s1.TrustTool("calculator"))

	// Second store loads from the same file.
	s2, err := New(path)
	require.NoError(t, err)
	assert.True(t, s2.IsToolTrusted("shell_command"))
	assert.Equal(t, []string{"calculator", "shell_command"}, s2.TrustedTools())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"trusted_tools":["calculator","shell_command"]}`, string(data))
}

func TestRevokeTool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perms.json")

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.TrustTool("calculator"))
	require.NoError(t, s.RevokeTool("calculator"))
	assert.False(t, s.IsToolTrusted("calculator"))

	s2, err := New(path)
	require.NoError(t, err)
	assert.False(t, s2.IsToolTrusted("calculator"))
}

func TestLoad_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perms.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))

	s, err := New(path)
	require.NoError(t, err)
	assert.Empty(t, s.TrustedTools())
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perms.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := New(path)
	assert.ErrorContains(t, err, "permissions: parse file")
}

func TestNewMemory(t *testing.T) {
	s := NewMemory()
	require.NoError(t, s.TrustTool("calculator"))
	assert.True(t, s.IsToolTrusted("calculator"))
	assert.Empty(t, s.Path())
}

func TestConcurrentTrust(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "perms.json"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, name := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.TrustTool(name))
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{"a", "b", "c", "d"}, s.TrustedTools())
}
