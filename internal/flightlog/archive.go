package flightlog

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const archiveExt = ".zst"

// Archive compresses path to path.zst and removes the original.
func Archive(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("flightlog: %w", err)
	}
	defer in.Close()

	dst := path + archiveExt
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("flightlog: %w", err)
	}
	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		_ = out.Close()
		return "", fmt.Errorf("flightlog: %w", err)
	}
	if _, err := io.Copy(enc, in); err != nil {
		_ = enc.Close()
		_ = out.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("flightlog: archive %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("flightlog: archive %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("flightlog: %w", err)
	}
	_ = in.Close()
	if err := os.Remove(path); err != nil {
		return dst, fmt.Errorf("flightlog: %w", err)
	}
	return dst, nil
}

type zstdReadCloser struct {
	dec *zstd.Decoder
	f   *os.File
}

func (z *zstdReadCloser) Read(p []byte) (int, error) { return z.dec.Read(p) }

func (z *zstdReadCloser) Close() error {
	z.dec.Close()
	return z.f.Close()
}

// Open opens a log for reading, transparently decompressing .zst archives.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("flightlog: %w", err)
	}
	if !strings.HasSuffix(path, archiveExt) {
		return f, nil
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("flightlog: %w", err)
	}
	return &zstdReadCloser{dec: dec, f: f}, nil
}
