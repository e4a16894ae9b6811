package echo

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/taskpay-foundation/taskpay/go/ledger"
)

func newTestServer(store ledger.Store, executions *atomic.Int64, opts ...Options) *echo.Echo {
	e := echo.New()
	e.POST("/payments", func(c echo.Context) error {
		n := executions.Add(1)
		return c.JSON(http.StatusCreated, map[string]interface{}{"execution": n, "status": "SUCCESS"})
	}, IdempotencyMiddleware(store, opts...))
	return e
}

func post(e *echo.Echo, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(DefaultHeader, key)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func TestIdempotencyMiddleware_RequiresKey(t *testing.T) {
	var executions atomic.Int64
	e := newTestServer(ledger.NewInMemoryStore(0), &executions)

	w := post(e, "", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without a key, got %d", w.Code)
	}
	if executions.Load() != 0 {
		t.Error("Handler must not run without a key")
	}
}

func TestIdempotencyMiddleware_Replay(t *testing.T) {
	var executions atomic.Int64
	e := newTestServer(ledger.NewInMemoryStore(0), &executions)

	first := post(e, "key-1", `{}`)
	second := post(e, "key-1", `{}`)

	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("Expected 201 on both calls, got %d and %d", first.Code, second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Errorf("Replay must be byte-identical: %q vs %q", first.Body.String(), second.Body.String())
	}
	if second.Header().Get("X-Idempotent-Replay") != "true" {
		t.Error("Expected replay marker header on the second response")
	}
	if executions.Load() != 1 {
		t.Errorf("Expected 1 execution, got %d", executions.Load())
	}
}

func TestIdempotencyMiddleware_ConcurrentDuplicates(t *testing.T) {
	var executions atomic.Int64
	e := newTestServer(ledger.NewInMemoryStore(0), &executions)

	const duplicates = 8
	var wg sync.WaitGroup
	bodies := make([]string, duplicates)

	for i := 0; i < duplicates; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			bodies[idx] = post(e, "key-burst", `{}`).Body.String()
		}(i)
	}
	wg.Wait()

	if executions.Load() != 1 {
		t.Errorf("Expected exactly 1 execution, got %d", executions.Load())
	}
	for i := 1; i < duplicates; i++ {
		if bodies[i] != bodies[0] {
			t.Errorf("Duplicate %d saw a different body: %q vs %q", i, bodies[i], bodies[0])
		}
	}
}

func TestIdempotencyMiddleware_HandlerErrorNotRecorded(t *testing.T) {
	var executions atomic.Int64
	store := ledger.NewInMemoryStore(0)

	e := echo.New()
	e.POST("/payments", func(c echo.Context) error {
		if executions.Add(1) == 1 {
			return echo.NewHTTPError(http.StatusBadGateway, "provider unavailable")
		}
		return c.JSON(http.StatusCreated, map[string]string{"status": "SUCCESS"})
	}, IdempotencyMiddleware(store))

	first := post(e, "key-retry", `{}`)
	if first.Code != http.StatusBadGateway {
		t.Fatalf("Expected 502 on first call, got %d", first.Code)
	}

	second := post(e, "key-retry", `{}`)
	if second.Code != http.StatusCreated {
		t.Errorf("Expected retry to be re-admitted, got %d", second.Code)
	}
	if executions.Load() != 2 {
		t.Errorf("Expected 2 executions, got %d", executions.Load())
	}
}
