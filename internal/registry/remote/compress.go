// Package remote implements the optional out-of-process plugin
// transport (SPEC_FULL.md domain stack: a gRPC boundary a CodecPlugin/DemuxerPlugin
// implementation can proxy through to a remote plugin host).
package remote

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/dsnet/compress/bzip2"
	"github.com/ulikunitz/xz"
)

// Compressor shrinks CODEC_DATA/MEDIA_CODEC_CONFIG payloads before they
// cross the gRPC boundary (internal/config.RemotePluginConfig.Compression).
type Compressor interface {
	Compress(p []byte) ([]byte, error)
	Decompress(p []byte) ([]byte, error)
}

// NewCompressor resolves a Compressor by the config scheme name: "none",
// "brotli", "xz", or "bzip2".
func NewCompressor(scheme string) (Compressor, error) {
	switch scheme {
	case "", "none":
		return noneCompressor{}, nil
	case "brotli":
		return brotliCompressor{}, nil
	case "xz":
		return xzCompressor{}, nil
	case "bzip2":
		return bzip2Compressor{}, nil
	default:
		return nil, fmt.Errorf("remote: unknown compression scheme %q", scheme)
	}
}

type noneCompressor struct{}

func (noneCompressor) Compress(p []byte) ([]byte, error)   { return p, nil }
func (noneCompressor) Decompress(p []byte) ([]byte, error) { return p, nil }

type brotliCompressor struct{}

func (brotliCompressor) Compress(p []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write(p); err != nil {
		return nil, fmt.Errorf("remote: brotli compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("remote: brotli compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (brotliCompressor) Decompress(p []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(p))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("remote: brotli decompress: %w", err)
	}
	return out, nil
}

type xzCompressor struct{}

func (xzCompressor) Compress(p []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("remote: xz compress: %w", err)
	}
	if _, err := w.Write(p); err != nil {
		return nil, fmt.Errorf("remote: xz compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("remote: xz compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (xzCompressor) Decompress(p []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(p))
	if err != nil {
		return nil, fmt.Errorf("remote: xz decompress: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("remote: xz decompress: %w", err)
	}
	return out, nil
}

type bzip2Compressor struct{}

func (bzip2Compressor) Compress(p []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := bzip2.NewWriter(&buf, nil)
	if err != nil {
		return nil, fmt.Errorf("remote: bzip2 compress: %w", err)
	}
	if _, err := w.Write(p); err != nil {
		return nil, fmt.Errorf("remote: bzip2 compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("remote: bzip2 compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (bzip2Compressor) Decompress(p []byte) ([]byte, error) {
	r, err := bzip2.NewReader(bytes.NewReader(p), nil)
	if err != nil {
		return nil, fmt.Errorf("remote: bzip2 decompress: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("remote: bzip2 decompress: %w", err)
	}
	return out, nil
}
