// Package gin provides idempotent-replay middleware for the Gin framework.
package gin

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

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

// WithHeader is an option for the IdempotencyMiddleware to set the header
// carrying the idempotency key.
func WithHeader(header string) Options {
	return func(options *IdempotencyOptions) {
		options.Header = header
	}
}

// WithOptionalKey is an option for the IdempotencyMiddleware that lets
// requests without a key pass straight through instead of being rejected.
func WithOptionalKey() Options {
	return func(options *IdempotencyOptions) {
		options.RequireKey = false
	}
}

// WithKeyGenerator is an option for the IdempotencyMiddleware to derive a key
// from the request body when the header is absent, deduplicating on content.
func WithKeyGenerator(gen ledger.KeyGenerator) Options {
	return func(options *IdempotencyOptions) {
		options.Generator = gen
	}
}

// IdempotencyMiddleware enforces at-most-once execution per idempotency key.
//
// For an admitted request the downstream handler runs with a capturing
// response writer; a 2xx response is recorded in the ledger and replayed
// byte-identically, with the original status code, to every later request
// bearing the same key. Non-2xx responses leave no record, so a legitimate
// retry re-executes.
//
// Concurrent duplicates block until the admitted request completes. If the
// admitted request fails or its connection drops mid-flight, its slot is
// released and one of the waiters is re-admitted; the side effect never runs
// twice for a key that produced a recorded result.
func IdempotencyMiddleware(store ledger.Store, opts ...Options) gin.HandlerFunc {
	options := &IdempotencyOptions{
		Header:     DefaultHeader,
		RequireKey: true,
	}
	for _, opt := range opts {
		opt(options)
	}

	return func(c *gin.Context) {
		key := c.GetHeader(options.Header)
		if key == "" && options.Generator != nil {
			body, err := c.GetRawData()
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"message": "failed to read request body",
				})
				return
			}
			restoreBody(c, body)
			key = options.Generator(body)
		}
		if key == "" {
			if !options.RequireKey {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"message": options.Header + " header is required",
			})
			return
		}

		for {
			status, result, done := store.CheckAndMark(key)

			switch status {
			case ledger.StatusRecorded:
				replay(c, result)
				return

			case ledger.StatusInFlight:
				// Wait for the admitted request to finish, respecting
				// cancellation of our own request.
				result, err := store.WaitForResult(c.Request.Context(), key, done)
				if err != nil {
					c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
						"message": "request cancelled while waiting for duplicate in-flight request",
					})
					return
				}
				if result != nil {
					replay(c, result)
					return
				}
				// The admitted request failed without recording; re-contend.
				continue

			case ledger.StatusNotFound:
				runAdmitted(c, store, key, done)
				return
			}
		}
	}
}

// runAdmitted executes the downstream handler as the single admitted caller
// for key, recording a 2xx response and releasing the slot otherwise.
func runAdmitted(c *gin.Context, store ledger.Store, key string, done chan struct{}) {
	settled := false
	// A panicking handler must not wedge waiters forever.
	defer func() {
		if !settled {
			store.Fail(key, done)
		}
	}()

	writer := &responseWriter{
		ResponseWriter: c.Writer,
		body:           &strings.Builder{},
		statusCode:     http.StatusOK,
	}
	c.Writer = writer

	c.Next()

	body := []byte(writer.body.String())
	if writer.statusCode >= 200 && writer.statusCode < 300 {
		store.Complete(key, &ledger.Result{StatusCode: writer.statusCode, Body: body}, done)
	} else {
		store.Fail(key, done)
	}
	settled = true

	// Write the captured response through to the client.
	c.Writer = writer.ResponseWriter
	c.Writer.WriteHeader(writer.statusCode)
	c.Writer.Write(body)
}

// restoreBody puts the consumed request body back so the downstream handler
// can bind it.
func restoreBody(c *gin.Context, body []byte) {
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
}

// replay serves a previously recorded response verbatim.
func replay(c *gin.Context, result *ledger.Result) {
	c.Header("X-Idempotent-Replay", "true")
	c.Abort()
	c.Data(result.StatusCode, "application/json", result.Body)
}

// responseWriter is a custom response writer that captures the response
type responseWriter struct {
	gin.ResponseWriter
	body       *strings.Builder
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
	w.body.Write(b)
	return len(b), nil
}

func (w *responseWriter) WriteString(s string) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.body.WriteString(s)
}
