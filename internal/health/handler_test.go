// AngelaMos | 2026
// handler_test.go

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okChecker() Checker {
	return CheckerFunc(func(context.Context) error { return nil })
}

func failingChecker() Checker {
	return CheckerFunc(func(context.Context) error { return errors.New("connection refused") })
}

func serve(h *Handler, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestReadiness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		deps       []Dependency
		wantStatus int
		wantBody   string
	}{
		{
			name:       "all healthy",
			deps:       []Dependency{{"database", okChecker()}, {"redis", okChecker()}},
			wantStatus: http.StatusOK,
			wantBody:   "ok",
		},
		{
			name:       "one failing",
			deps:       []Dependency{{"database", okChecker()}, {"redis", failingChecker()}},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "degraded",
		},
		{
			name:       "unconfigured",
			deps:       []Dependency{{"database", nil}},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := serve(NewHandler(tt.deps...), "/readyz")
			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp ReadinessResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantBody, resp.Status)
			require.Len(t, resp.Checks, len(tt.deps))
			for i, dep := range tt.deps {
				assert.Equal(t, dep.Name, resp.Checks[i].Name)
			}
		})
	}
}

func TestShutdownFlipsProbes(t *testing.T) {
	t.Parallel()
	h := NewHandler(Dependency{"database", okChecker()})

	assert.Equal(t, http.StatusOK, serve(h, "/livez").Code)

	h.SetReady(false)
	assert.Equal(t, http.StatusServiceUnavailable, serve(h, "/readyz").Code)
	assert.Equal(t, http.StatusOK, serve(h, "/healthz").Code)

	h.SetShutdown(true)
	assert.Equal(t, http.StatusServiceUnavailable, serve(h, "/healthz").Code)
}
