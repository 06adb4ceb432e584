package blob

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSystemPutGetRoundTrip(t *testing.T) {
	fs, err := NewFileSystem(t.TempDir())
	require.NoError(t, err)

	_, err = fs.Put("task_attachments/t1/1_photo.png", strings.NewReader("png bytes"))
	require.NoError(t, err)

	f, err := fs.Get("task_attachments/t1/1_photo.png")
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "png bytes", string(data))
}

func TestFileSystemRejectsEscapingPaths(t *testing.T) {
	base := t.TempDir()
	fs, err := NewFileSystem(filepath.Join(base, "uploads"))
	require.NoError(t, err)

	// paths carry user input (task ids, file names), so dot-dot segments
	// must never resolve outside the storage folder
	_, err = fs.Put("task_attachments/../../escape/1_evil.txt", strings.NewReader("x"))
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(base, "escape", "1_evil.txt"))
	assert.True(t, os.IsNotExist(statErr))

	_, err = fs.Get("../outside.txt")
	assert.Error(t, err)
	assert.Error(t, fs.Delete("../outside.txt"))
	_, err = fs.List("../..")
	assert.Error(t, err)
}

func TestOSSDeleteCannotEscapeViaURL(t *testing.T) {
	base := t.TempDir()
	victim := filepath.Join(base, "victim.txt")
	require.NoError(t, os.WriteFile(victim, []byte("keep"), 0o644))

	o, err := New(&Config{
		Provider:   "filesystem",
		Bucket:     filepath.Join(base, "uploads"),
		PublicBase: "http://localhost:8080/files",
	})
	require.NoError(t, err)

	// a stored comment URL is attacker-controlled; a traversal in it must
	// not delete anything outside the folder
	assert.Error(t, o.Delete(context.Background(), "http://localhost:8080/files/../victim.txt"))
	_, statErr := os.Stat(victim)
	assert.NoError(t, statErr)
}

func TestFileSystemDeleteMissingIsNil(t *testing.T) {
	fs, err := NewFileSystem(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, fs.Delete("never/uploaded.png"))
}

func TestFileSystemList(t *testing.T) {
	fs, err := NewFileSystem(t.TempDir())
	require.NoError(t, err)
	_, err = fs.Put("a/one.txt", strings.NewReader("1"))
	require.NoError(t, err)
	_, err = fs.Put("a/two.txt", strings.NewReader("2"))
	require.NoError(t, err)

	objects, err := fs.List("a")
	require.NoError(t, err)
	assert.Len(t, objects, 2)
}

func TestOSSUploadBuildsPublicURL(t *testing.T) {
	dir := t.TempDir()
	o, err := New(&Config{Provider: "filesystem", Bucket: dir, PublicBase: "http://localhost:8080/files/"})
	require.NoError(t, err)

	url, err := o.Upload(context.Background(), "task_attachments/t1/1_a.png", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/task_attachments/t1/1_a.png", url)

	// delete resolves the storage path back out of the public URL
	require.NoError(t, o.Delete(context.Background(), url))
	_, err = o.storage.Get("task_attachments/t1/1_a.png")
	assert.Error(t, err)
}

func TestOSSDeleteMissingTolerated(t *testing.T) {
	o, err := New(&Config{Provider: "filesystem", Bucket: t.TempDir(), PublicBase: "http://localhost:8080/files"})
	require.NoError(t, err)
	assert.NoError(t, o.Delete(context.Background(), "http://localhost:8080/files/never/there.png"))
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(&Config{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestNewMinioRequiresCredentials(t *testing.T) {
	_, err := New(&Config{Provider: "minio", Bucket: "attachments"})
	assert.Error(t, err)
}
