package mrfs

import (
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
)

type codec struct {
	extension string
	compress  func(io.Writer) (io.WriteCloser, error)
}

// Supported compression codec identifiers: Hadoop codec class names plus a
// short alias. The identifier is chosen by the caller and matched verbatim.
var codecs = map[string]codec{
	"org.apache.hadoop.io.compress.GzipCodec": {
		extension: ".gz",
		compress: func(w io.Writer) (io.WriteCloser, error) {
			return gzip.NewWriter(w), nil
		},
	},
	"gzip": {
		extension: ".gz",
		compress: func(w io.Writer) (io.WriteCloser, error) {
			return gzip.NewWriter(w), nil
		},
	},
	"org.apache.hadoop.io.compress.DefaultCodec": {
		extension: ".deflate",
		compress: func(w io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(w, flate.DefaultCompression)
		},
	},
}

// CodecExtension returns the file extension for a codec identifier. An empty
// identifier means no compression.
func CodecExtension(name string) (string, error) {
	if name == "" {
		return "", nil
	}
	c, ok := codecs[name]
	if !ok {
		return "", fmt.Errorf("unsupported compression codec: %s", name)
	}
	return c.extension, nil
}

// OpenCodecWriter opens a writer at path plus the codec's extension that
// compresses with the named codec. With an empty codec name it writes
// plainly. Returns the final path actually written.
func OpenCodecWriter(fs FileSystem, path, name string) (io.WriteCloser, string, error) {
	if name == "" {
		writer, err := fs.OpenWriter(path)
		return writer, path, err
	}

	c, ok := codecs[name]
	if !ok {
		return nil, "", fmt.Errorf("unsupported compression codec: %s", name)
	}

	finalPath := path + c.extension
	sink, err := fs.OpenWriter(finalPath)
	if err != nil {
		return nil, "", err
	}
	compressor, err := c.compress(sink)
	if err != nil {
		sink.Close()
		return nil, "", err
	}
	return &codecWriter{compressor: compressor, sink: sink}, finalPath, nil
}

// codecWriter closes the compressor before the underlying sink so trailers
// are flushed.
type codecWriter struct {
	compressor io.WriteCloser
	sink       io.WriteCloser
}

func (w *codecWriter) Write(p []byte) (int, error) {
	return w.compressor.Write(p)
}

func (w *codecWriter) Close() error {
	if err := w.compressor.Close(); err != nil {
		w.sink.Close()
		return err
	}
	return w.sink.Close()
}
