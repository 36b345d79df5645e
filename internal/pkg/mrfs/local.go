package mrfs

import (
	"io"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// LocalFileSystem stores files on the local disk.
type LocalFileSystem struct{}

// ListFiles matches a glob pattern (doublestar syntax, so ** works) against
// the local disk. A plain directory path lists the files directly inside it.
func (*LocalFileSystem) ListFiles(pattern string) ([]FileInfo, error) {
	if info, err := os.Stat(pattern); err == nil && info.IsDir() {
		pattern = filepath.Join(pattern, "*")
	}

	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, err
	}

	var files []FileInfo
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, FileInfo{Name: match, Size: info.Size()})
	}
	return files, nil
}

func (*LocalFileSystem) Stat(path string) (FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{Name: path, Size: info.Size()}, nil
}

func (*LocalFileSystem) OpenReader(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

func (*LocalFileSystem) OpenWriter(path string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.Create(path)
}

func (*LocalFileSystem) MakeDir(path string) error {
	return os.MkdirAll(path, 0755)
}

func (*LocalFileSystem) Delete(path string) error {
	return os.Remove(path)
}

func (*LocalFileSystem) Join(elem ...string) string {
	return filepath.Join(elem...)
}
