// File: internal/network/compression.go
package network

import (
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

const acceptEncoding = "br, gzip, deflate"

var (
	gzipReaderPool = sync.Pool{New: func() interface{} { return new(gzip.Reader) }}

	brotliReaderPool = sync.Pool{New: func() interface{} { return brotli.NewReader(nil) }}

	emptyReader = strings.NewReader("")
)

// CompressionMiddleware advertises br/gzip/deflate on outgoing requests and
// transparently decodes the response body.
type CompressionMiddleware struct {
	Transport http.RoundTripper
}

// NewCompressionMiddleware wraps transport; nil means http.DefaultTransport.
func NewCompressionMiddleware(transport http.RoundTripper) *CompressionMiddleware {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &CompressionMiddleware{Transport: transport}
}

func (cm *CompressionMiddleware) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}

	resp, err := cm.Transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if err := DecompressResponse(resp); err != nil {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to initialize response decompression: %w", err)
	}
	return resp, nil
}

// decodedBody closes the decoder and the original body, and returns pooled
// readers on close.
type decodedBody struct {
	io.Reader
	closer  io.Closer
	release func()
	source  io.ReadCloser
}

func (b *decodedBody) Close() error {
	var err error
	if b.closer != nil {
		err = b.closer.Close()
	}
	if b.release != nil {
		b.release()
		b.release = nil
	}
	return errors.Join(err, b.source.Close())
}

// DecompressResponse wraps resp.Body according to Content-Encoding, decoding
// layered encodings in reverse order of application.
func DecompressResponse(resp *http.Response) error {
	if resp == nil || resp.Body == nil {
		return nil
	}
	encodings := resp.Header.Values("Content-Encoding")
	if len(encodings) == 0 {
		return nil
	}

	for i := len(encodings) - 1; i >= 0; i-- {
		body := &decodedBody{source: resp.Body}

		switch strings.ToLower(strings.TrimSpace(encodings[i])) {
		case "gzip":
			zr := gzipReaderPool.Get().(*gzip.Reader)
			if err := zr.Reset(resp.Body); err != nil {
				gzipReaderPool.Put(zr)
				return fmt.Errorf("gzip initialization error: %w", err)
			}
			body.Reader, body.closer = zr, zr
			body.release = func() {
				_ = zr.Reset(emptyReader)
				gzipReaderPool.Put(zr)
			}
		case "br":
			br := brotliReaderPool.Get().(*brotli.Reader)
			if err := br.Reset(resp.Body); err != nil {
				brotliReaderPool.Put(br)
				return fmt.Errorf("brotli initialization error: %w", err)
			}
			body.Reader = br
			body.release = func() {
				_ = br.Reset(emptyReader)
				brotliReaderPool.Put(br)
			}
		case "deflate":
			zr, err := zlib.NewReader(resp.Body)
			if err != nil {
				return fmt.Errorf("deflate initialization error: %w", err)
			}
			body.Reader, body.closer = zr, zr
		case "identity", "":
			continue
		default:
			return fmt.Errorf("unsupported Content-Encoding layer: %s", encodings[i])
		}
		resp.Body = body
	}

	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}
