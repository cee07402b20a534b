package courier

import (
	"bytes"
	"fmt"
	"io"

	gzip "github.com/klauspost/compress/gzip"
	zstd "github.com/klauspost/compress/zstd"
)

const (
	CompressionNone = "none"
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
)

// Compress encodes a payload with the negotiated algorithm. "none"
// passes data through untouched.
func Compress(algorithm string, data []byte) ([]byte, error) {
	switch algorithm {
	case "", CompressionNone:
		return data, nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		out := enc.EncodeAll(data, nil)
		enc.Close()
		return out, nil
	case CompressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("courier: unknown compression %q", algorithm)
	}
}

// Decompress reverses Compress for the same algorithm name.
func Decompress(algorithm string, data []byte) ([]byte, error) {
	switch algorithm {
	case "", CompressionNone:
		return data, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	case CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	default:
		return nil, fmt.Errorf("courier: unknown compression %q", algorithm)
	}
}

// pickCompression selects the first algorithm of ours that the peer
// also advertises, falling back to "none".
func pickCompression(ours []string, theirs []string) string {
	for _, algo := range ours {
		for _, other := range theirs {
			if algo == other {
				return algo
			}
		}
	}
	return CompressionNone
}
