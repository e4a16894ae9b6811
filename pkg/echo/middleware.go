// Package echo provides idempotent-replay middleware for the Echo framework.
//
// It is the Echo counterpart of the Gin middleware in pkg/gin; both share the
// same ledger semantics: one admitted execution per key, 2xx responses
// recorded and replayed byte-identically, failures released for retry.
package echo

import (
	"bytes"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskpay-foundation/taskpay/go/ledger"
)

// DefaultHeader is the request header carrying the idempotency key.
const DefaultHeader = "X-Idempotency-Key"

// IdempotencyOptions is the options for the IdempotencyMiddleware.
type IdempotencyOptions struct {
	Header     string
	RequireKey bool
	Generator  ledger.KeyGenerator
}

// Options is the type for the options for the IdempotencyMiddleware.
type Options func(*IdempotencyOptions)

// WithHeader sets the header carrying the idempotency key.
func WithHeader(header string) Options {
	return func(options *IdempotencyOptions) {
		options.Header = header
	}
}

// WithOptionalKey lets requests without a key pass straight through instead
// of being rejected.
func WithOptionalKey() Options {
	return func(options *IdempotencyOptions) {
		options.RequireKey = false
	}
}

// WithKeyGenerator derives a key from the request body when the header is
// absent, deduplicating on content.
func WithKeyGenerator(gen ledger.KeyGenerator) Options {
	return func(options *IdempotencyOptions) {
		options.Generator = gen
	}
}

// IdempotencyMiddleware enforces at-most-once execution per idempotency key.
// See the Gin variant for the full protocol description.
func IdempotencyMiddleware(store ledger.Store, opts ...Options) echo.MiddlewareFunc {
	options := &IdempotencyOptions{
		Header:     DefaultHeader,
		RequireKey: true,
	}
	for _, opt := range opts {
		opt(options)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Request().Header.Get(options.Header)
			if key == "" && options.Generator != nil {
				body, err := io.ReadAll(c.Request().Body)
				if err != nil {
					return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
				}
				c.Request().Body = io.NopCloser(bytes.NewReader(body))
				key = options.Generator(body)
			}
			if key == "" {
				if !options.RequireKey {
					return next(c)
				}
				return echo.NewHTTPError(http.StatusBadRequest, options.Header+" header is required")
			}

			for {
				status, result, done := store.CheckAndMark(key)

				switch status {
				case ledger.StatusRecorded:
					return replay(c, result)

				case ledger.StatusInFlight:
					result, err := store.WaitForResult(c.Request().Context(), key, done)
					if err != nil {
						return echo.NewHTTPError(http.StatusServiceUnavailable,
							"request cancelled while waiting for duplicate in-flight request")
					}
					if result != nil {
						return replay(c, result)
					}
					// The admitted request failed without recording; re-contend.
					continue

				case ledger.StatusNotFound:
					return runAdmitted(c, next, store, key, done)
				}
			}
		}
	}
}

func runAdmitted(c echo.Context, next echo.HandlerFunc, store ledger.Store, key string, done chan struct{}) error {
	settled := false
	defer func() {
		if !settled {
			store.Fail(key, done)
		}
	}()

	res := c.Response()
	original := res.Writer
	writer := &responseWriter{ResponseWriter: original, statusCode: http.StatusOK}
	res.Writer = writer

	err := next(c)

	res.Writer = original
	if err != nil {
		// The error handler writes the response; nothing is recorded.
		settled = true
		store.Fail(key, done)
		return err
	}

	body := writer.body.Bytes()
	if writer.statusCode >= 200 && writer.statusCode < 300 {
		store.Complete(key, &ledger.Result{StatusCode: writer.statusCode, Body: body}, done)
	} else {
		store.Fail(key, done)
	}
	settled = true

	original.WriteHeader(writer.statusCode)
	original.Write(body)
	return nil
}

func replay(c echo.Context, result *ledger.Result) error {
	c.Response().Header().Set("X-Idempotent-Replay", "true")
	return c.Blob(result.StatusCode, echo.MIMEApplicationJSON, result.Body)
}

// responseWriter captures the downstream response instead of forwarding it.
type responseWriter struct {
	http.ResponseWriter
	body       bytes.Buffer
	statusCode int
	written    bool
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.written {
		w.statusCode = code
		w.written = true
	}
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.body.Write(b)
}
