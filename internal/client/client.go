// Package client posts spreadsheets to a unify server.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// FieldName is the multipart field carrying the files.
const FieldName = "files"

// FallbackMessage is reported when a failure response carries no usable detail.
const FallbackMessage = "Error al procesar archivos."

// File is one file to upload.
type File interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// Result is a successful response.
type Result struct {
	Payload []byte
}

// RemoteError is a non-2xx response from the server.
type RemoteError struct {
	Status int
	Detail string
}

func (e *RemoteError) Error() string {
	return e.Detail
}

// UserMessage returns the text to show for the failure.
func (e *RemoteError) UserMessage() string {
	return e.Detail
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Retries int           // 0 disables retries
	Timeout time.Duration // 0 means no timeout
	Logger  zerolog.Logger
}

// Client talks to the /unificar endpoint.
type Client struct {
	http     *retryablehttp.Client
	endpoint string
	log      zerolog.Logger
}

// retryLogger implements the retryablehttp.LeveledLogger interface
type retryLogger struct {
	log zerolog.Logger
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Error().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.Trace().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Warn().Fields(keysAndValues).Msg(msg)
}

// New creates a client for the server at opts.BaseURL.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", opts.BaseURL)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.Retries
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = retryLogger{log: opts.Logger}
	rc.HTTPClient.Timeout = opts.Timeout
	rc.CheckRetry = checkRetry
	// hand the last response back instead of a generic "giving up" error
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		http:     rc,
		endpoint: base.String() + "/unificar",
		log:      opts.Logger,
	}, nil
}

// checkRetry retries connection errors and gateway failures only. A 500
// from /unificar is a processing error and sending the files again will
// not change it.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp != nil && resp.StatusCode < http.StatusBadGateway {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Unify uploads files in a single multipart request.
func (c *Client) Unify(ctx context.Context, files []File) (*Result, error) {
	boundary := multipart.NewWriter(io.Discard).Boundary()

	// NewRequestWithContext calls this once to probe for a length and closes
	// the result unread.
	body := func() (io.Reader, error) {
		return &lazyBody{start: func() *io.PipeReader {
			return streamFiles(files, boundary)
		}}, nil
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, retryablehttp.ReaderFunc(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Int("status", resp.StatusCode).
		Int("files", len(files)).
		Dur("elapsed", time.Since(start)).
		Msg("unify response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteError{Status: resp.StatusCode, Detail: readDetail(resp.Body)}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &Result{Payload: payload}, nil
}

// transportError strips the *url.Error wrapper, leaving the method and URL
// out of the message.
func transportError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

// lazyBody starts streaming on the first Read.
type lazyBody struct {
	mu     sync.Mutex
	start  func() *io.PipeReader
	pr     *io.PipeReader
	closed bool
}

func (b *lazyBody) Read(p []byte) (int, error) {
	b.mu.Lock()
	if b.pr == nil {
		if b.closed {
			b.mu.Unlock()
			return 0, io.ErrClosedPipe
		}
		b.pr = b.start()
	}
	pr := b.pr
	b.mu.Unlock()
	return pr.Read(p)
}

func (b *lazyBody) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.pr == nil {
		return nil
	}
	return b.pr.Close()
}

// streamFiles writes the multipart body from a goroutine so files are never
// held in memory as a whole.
func streamFiles(files []File, boundary string) *io.PipeReader {
	pr, pw := io.Pipe()
	go func() {
		mw := multipart.NewWriter(pw)
		if err := mw.SetBoundary(boundary); err != nil {
			pw.CloseWithError(err)
			return
		}
		for _, f := range files {
			if err := writePart(mw, f); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		pw.CloseWithError(mw.Close())
	}()
	return pr
}

func writePart(mw *multipart.Writer, f File) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", f.Name(), err)
	}
	defer rc.Close()

	part, err := mw.CreateFormFile(FieldName, f.Name())
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, rc); err != nil {
		return fmt.Errorf("reading %s: %w", f.Name(), err)
	}
	return nil
}

// readDetail extracts a string "detail" from a JSON error body.
func readDetail(r io.Reader) string {
	var body struct {
		Detail any `json:"detail"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return FallbackMessage
	}
	if s, ok := body.Detail.(string); ok && s != "" {
		return s
	}
	return FallbackMessage
}
