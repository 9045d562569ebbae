package exchange

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	log "github.com/sirupsen/logrus"
)

// decodeBody reverses the Content-Encoding of a response body.
// Identity and unknown encodings are returned unchanged. Decoded output longer than
// maxBodyBytes is truncated to the limit and reported as ErrBodyTooLarge.
func decodeBody(data []byte, contentEncoding string, maxBodyBytes int64) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "", "identity":
		return data, nil
	case "gzip", "x-gzip":
		return decompressGzip(data, maxBodyBytes)
	case "br":
		return decompressBrotli(data, maxBodyBytes)
	case "zstd":
		return decompressZstd(data, maxBodyBytes)
	default:
		log.Debugf("exchange: leaving unsupported content encoding %q as-is", contentEncoding)
		return data, nil
	}
}

func decompressGzip(data []byte, maxBodyBytes int64) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("exchange: failed to create gzip reader: %w", err)
	}
	defer func() {
		if errClose := reader.Close(); errClose != nil {
			log.WithError(errClose).Warn("exchange: failed to close gzip reader")
		}
	}()

	decompressed, err := readLimited(reader, maxBodyBytes)
	if err != nil {
		return decompressed, wrapDecompressError("gzip", err)
	}
	return decompressed, nil
}

func decompressBrotli(data []byte, maxBodyBytes int64) ([]byte, error) {
	reader := brotli.NewReader(bytes.NewReader(data))
	decompressed, err := readLimited(reader, maxBodyBytes)
	if err != nil {
		return decompressed, wrapDecompressError("brotli", err)
	}
	return decompressed, nil
}

func decompressZstd(data []byte, maxBodyBytes int64) ([]byte, error) {
	decoder, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("exchange: failed to create zstd reader: %w", err)
	}
	defer decoder.Close()

	decompressed, err := readLimited(decoder, maxBodyBytes)
	if err != nil {
		return decompressed, wrapDecompressError("zstd", err)
	}
	return decompressed, nil
}

// readLimited reads at most maxBodyBytes from reader. When more data follows, the first
// maxBodyBytes are returned together with ErrBodyTooLarge.
func readLimited(reader io.Reader, maxBodyBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(reader, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBodyBytes {
		return data[:maxBodyBytes], fmt.Errorf("%w: decoded body exceeds %d bytes", ErrBodyTooLarge, maxBodyBytes)
	}
	return data, nil
}

func wrapDecompressError(encoding string, err error) error {
	if errors.Is(err, ErrBodyTooLarge) {
		return err
	}
	return fmt.Errorf("exchange: failed to decompress %s data: %w", encoding, err)
}
