package blob

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/casdoor/oss"
)

// LocalFileSystem stores blobs under a base folder. It satisfies
// oss.StorageInterface so the factory can treat it like the cloud providers;
// development and tests run against it with no external service.
type LocalFileSystem struct {
	Folder string
}

// NewFileSystem creates the base folder if missing.
func NewFileSystem(folder string) (*LocalFileSystem, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, fmt.Errorf("resolve storage folder: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage folder: %w", err)
	}
	return &LocalFileSystem{Folder: abs}, nil
}

// fullPath resolves p inside the storage folder. Paths carry user input
// (task ids, file names, URLs from stored comments), so anything that cleans
// to a location outside the folder is rejected rather than joined.
func (fs *LocalFileSystem) fullPath(p string) (string, error) {
	p = strings.TrimPrefix(p, fs.Folder)
	fp := filepath.Join(fs.Folder, p)
	if fp != fs.Folder && !strings.HasPrefix(fp, fs.Folder+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the storage folder", p)
	}
	return fp, nil
}

func (fs *LocalFileSystem) Get(p string) (*os.File, error) {
	fp, err := fs.fullPath(p)
	if err != nil {
		return nil, err
	}
	return os.Open(fp)
}

func (fs *LocalFileSystem) GetStream(p string) (io.ReadCloser, error) {
	fp, err := fs.fullPath(p)
	if err != nil {
		return nil, err
	}
	return os.Open(fp)
}

func (fs *LocalFileSystem) Put(p string, r io.Reader) (*oss.Object, error) {
	fp, err := fs.fullPath(p)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	dst, err := os.Create(fp)
	if err != nil {
		return nil, fmt.Errorf("create blob file: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, r); err != nil {
		return nil, fmt.Errorf("write blob file: %w", err)
	}
	return &oss.Object{Path: p, Name: filepath.Base(p), StorageInterface: fs}, nil
}

func (fs *LocalFileSystem) Delete(p string) error {
	fp, err := fs.fullPath(p)
	if err != nil {
		return err
	}
	err = os.Remove(fp)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (fs *LocalFileSystem) List(p string) ([]*oss.Object, error) {
	root, err := fs.fullPath(p)
	if err != nil {
		return nil, err
	}
	var objects []*oss.Object
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			mt := info.ModTime()
			objects = append(objects, &oss.Object{
				Path:             strings.TrimPrefix(path, fs.Folder),
				Name:             info.Name(),
				LastModified:     &mt,
				Size:             info.Size(),
				StorageInterface: fs,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	return objects, nil
}

func (fs *LocalFileSystem) GetEndpoint() string {
	return "/"
}

func (fs *LocalFileSystem) GetURL(p string) (string, error) {
	return p, nil
}
