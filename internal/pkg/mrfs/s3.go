package mrfs

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	lru "github.com/hashicorp/golang-lru"
	"github.com/mattetti/filebuffer"
)

const statCacheSize = 512

// S3FileSystem stores objects in S3. Writers buffer the whole object in
// memory and upload on Close; S3 has no append.
type S3FileSystem struct {
	client    s3iface.S3API
	statCache *lru.Cache
}

func newS3FileSystem() *S3FileSystem {
	sess := session.Must(session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	}))
	cache, _ := lru.New(statCacheSize)
	return &S3FileSystem{
		client:    s3.New(sess),
		statCache: cache,
	}
}

// parseS3URI splits s3://bucket/key into bucket and key.
func parseS3URI(uri string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(uri, "s3://")
	if trimmed == uri {
		return "", "", fmt.Errorf("not an s3 path: %s", uri)
	}
	bucket, key, _ = strings.Cut(trimmed, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("no bucket in s3 path: %s", uri)
	}
	return bucket, key, nil
}

// ListFiles lists objects matching a pattern. Only a trailing single-level
// glob is supported; everything before the first metacharacter is used as the
// listing prefix.
func (fs *S3FileSystem) ListFiles(pattern string) ([]FileInfo, error) {
	bucket, keyPattern, err := parseS3URI(pattern)
	if err != nil {
		return nil, err
	}

	prefix := keyPattern
	if idx := strings.IndexAny(keyPattern, "*?["); idx != -1 {
		prefix = keyPattern[:idx]
	}

	var files []FileInfo
	err = fs.client.ListObjectsV2Pages(&s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, object := range page.Contents {
			key := aws.StringValue(object.Key)
			if matched, _ := path.Match(keyPattern, key); !matched && keyPattern != prefix {
				continue
			}
			files = append(files, FileInfo{
				Name: fmt.Sprintf("s3://%s/%s", bucket, key),
				Size: aws.Int64Value(object.Size),
			})
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (fs *S3FileSystem) Stat(filePath string) (FileInfo, error) {
	if cached, ok := fs.statCache.Get(filePath); ok {
		return cached.(FileInfo), nil
	}

	bucket, key, err := parseS3URI(filePath)
	if err != nil {
		return FileInfo{}, err
	}

	head, err := fs.client.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return FileInfo{}, err
	}

	info := FileInfo{Name: filePath, Size: aws.Int64Value(head.ContentLength)}
	fs.statCache.Add(filePath, info)
	return info, nil
}

func (fs *S3FileSystem) OpenReader(filePath string) (io.ReadCloser, error) {
	bucket, key, err := parseS3URI(filePath)
	if err != nil {
		return nil, err
	}

	object, err := fs.client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	return object.Body, nil
}

func (fs *S3FileSystem) OpenWriter(filePath string) (io.WriteCloser, error) {
	bucket, key, err := parseS3URI(filePath)
	if err != nil {
		return nil, err
	}
	return &s3Writer{
		client: fs.client,
		bucket: bucket,
		key:    key,
		buffer: filebuffer.New(nil),
	}, nil
}

// MakeDir is a no-op: S3 has no directories.
func (fs *S3FileSystem) MakeDir(path string) error {
	return nil
}

func (fs *S3FileSystem) Delete(filePath string) error {
	bucket, key, err := parseS3URI(filePath)
	if err != nil {
		return err
	}
	_, err = fs.client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	fs.statCache.Remove(filePath)
	return err
}

func (fs *S3FileSystem) Join(elem ...string) string {
	return strings.Join(elem, "/")
}

// s3Writer accumulates writes in an in-memory file buffer and uploads the
// object when closed.
type s3Writer struct {
	client s3iface.S3API
	bucket string
	key    string
	buffer *filebuffer.Buffer
}

func (w *s3Writer) Write(p []byte) (int, error) {
	return w.buffer.Write(p)
}

func (w *s3Writer) Close() error {
	w.buffer.Seek(0, io.SeekStart)
	_, err := w.client.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(w.key),
		Body:   w.buffer,
	})
	return err
}
