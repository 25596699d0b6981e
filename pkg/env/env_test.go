package env

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetters(t *testing.T) {
	t.Setenv("VL_STR", "hello")
	t.Setenv("VL_INT", "42")
	t.Setenv("VL_BAD_INT", "forty")
	t.Setenv("VL_BOOL", "true")
	t.Setenv("VL_DUR", "1500ms")
	t.Setenv("VL_LIST", " a, b ,,c ")

	assert.Equal(t, "hello", GetString("VL_STR", "x"))
	assert.Equal(t, "x", GetString("VL_MISSING", "x"))
	assert.Equal(t, 42, GetInt("VL_INT", 1))
	assert.Equal(t, 1, GetInt("VL_BAD_INT", 1))
	assert.True(t, GetBool("VL_BOOL", false))
	assert.Equal(t, 1500*time.Millisecond, GetDuration("VL_DUR", time.Second))
	assert.Equal(t, []string{"a", "b", "c"}, GetStringSlice("VL_LIST", nil))
	assert.Equal(t, []string{"d"}, GetStringSlice("VL_MISSING", []string{"d"}))
}

func TestGetStringFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daily_api_key")
	require.NoError(t, os.WriteFile(path, []byte("secret-key\n"), 0o600))

	t.Setenv("VL_SECRET", "from-env")
	assert.Equal(t, "from-env", GetStringFromFile("VL_SECRET", ""))

	t.Setenv("VL_SECRET_FILE", path)
	assert.Equal(t, "secret-key", GetStringFromFile("VL_SECRET", ""))

	t.Setenv("VL_SECRET_FILE", filepath.Join(dir, "missing"))
	assert.Equal(t, "from-env", GetStringFromFile("VL_SECRET", ""))
}
