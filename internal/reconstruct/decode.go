package reconstruct

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"

	"WebReplay/WebReplay-Go-Agent/internal/flow"
)

var gzipMagic = []byte{0x1f, 0x8b}

// Decode decompresses a response body according to its declared content
// encoding. Bodies with no declared encoding pass through, except that a
// gzip magic number is honored even when the header was missing. A decode
// failure is reported to the caller, which degrades the single record
// rather than the batch.
func Decode(body []byte, enc flow.Encoding) ([]byte, error) {
	switch enc {
	case flow.EncodingGzip:
		out, err := gunzip(body)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return out, nil
	case flow.EncodingDeflate:
		out, err := inflate(body)
		if err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		return out, nil
	case flow.EncodingBrotli:
		out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("brotli: %w", err)
		}
		return out, nil
	default:
		// Some servers gzip without declaring it.
		if bytes.HasPrefix(body, gzipMagic) {
			if out, err := gunzip(body); err == nil {
				return out, nil
			}
		}
		return body, nil
	}
}

func gunzip(body []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// inflate handles both zlib-wrapped and raw deflate streams; both appear in
// the wild under the "deflate" token.
func inflate(body []byte) ([]byte, error) {
	if r, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
		defer r.Close()
		if out, err := io.ReadAll(r); err == nil {
			return out, nil
		}
	}
	r := flate.NewReader(bytes.NewReader(body))
	defer r.Close()
	return io.ReadAll(r)
}
