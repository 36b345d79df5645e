// Package mrfs abstracts the storage backends a job reads input from and
// writes output to. Paths are engine-native: local paths and s3:// URIs.
package mrfs

import (
	"io"
	"strings"
)

// FileInfo describes a single stored object.
type FileInfo struct {
	Name string
	Size int64
}

// FileSystem provides the harness's storage operations.
type FileSystem interface {
	ListFiles(pattern string) ([]FileInfo, error)
	Stat(path string) (FileInfo, error)
	OpenReader(path string) (io.ReadCloser, error)
	OpenWriter(path string) (io.WriteCloser, error)
	MakeDir(path string) error
	Delete(path string) error
	Join(elem ...string) string
}

// FileSystemType identifies a storage backend.
type FileSystemType int

// Identifiers of supported backends
const (
	Local FileSystemType = iota
	S3
)

// InferFilesystem picks a backend from a path's scheme.
func InferFilesystem(path string) FileSystem {
	if strings.HasPrefix(path, "s3://") {
		return newS3FileSystem()
	}
	return &LocalFileSystem{}
}

// InitFilesystem initializes a backend by type.
func InitFilesystem(fsType FileSystemType) FileSystem {
	if fsType == S3 {
		return newS3FileSystem()
	}
	return &LocalFileSystem{}
}
