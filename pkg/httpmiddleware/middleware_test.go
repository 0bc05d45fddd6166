package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"
)

func TestWrap_Order(t *testing.T) {
	var calls []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls = append(calls, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Wrap(okHandler(), mark("outer"), mark("inner"))
	get(h, nil)
	assert.Equal(t, []string{"outer", "inner"}, calls)
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		reuse    bool
	}{
		{name: "missing"},
		{name: "valid", incoming: "abc-123", reuse: true},
		{name: "control chars", incoming: "bad\x01id"},
		{name: "too long", incoming: strings.Repeat("a", 129)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromContext(r.Context())
			}))
			w := get(h, func(r *http.Request) {
				if tt.incoming != "" {
					r.Header.Set(RequestIDHeader, tt.incoming)
				}
			})
			require.NotEmpty(t, seen)
			assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
			if tt.reuse {
				assert.Equal(t, tt.incoming, seen)
			} else {
				assert.NotEqual(t, tt.incoming, seen)
			}
		})
	}
}

func TestLogRequests(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	r := chi.NewRouter()
	r.Get("/products/{slug}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	h := Wrap(r, RequestID(), InjectLogger(zap.New(core)), LogRequests())

	get(h, func(r *http.Request) {
		r.URL.Path = "/products/shirt_1"
		r.Header.Set(RequestIDHeader, "req-1")
	})
	get(h, func(r *http.Request) { r.URL.Path = "/boom" })

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)

	first := entries[0].ContextMap()
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "/products/{slug}", first["route"])
	assert.Equal(t, int64(http.StatusTeapot), first["status"])
	assert.Equal(t, "req-1", first["request_id"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "/boom", entries[1].ContextMap()["route"])
}

type noopTelemetry struct{}

func (noopTelemetry) TracerProvider() trace.TracerProvider { return tracenoop.NewTracerProvider() }
func (noopTelemetry) MeterProvider() metric.MeterProvider  { return metricnoop.NewMeterProvider() }

func TestInstrument(t *testing.T) {
	r := chi.NewRouter()
	var pattern string
	r.Get("/orders/{id}", func(w http.ResponseWriter, req *http.Request) {
		pattern = chi.RouteContext(req.Context()).RoutePattern()
		w.WriteHeader(http.StatusOK)
	})
	h := Wrap(r, Instrument("storefront", noopTelemetry{}))

	w := get(h, func(r *http.Request) { r.URL.Path = "/orders/42" })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/orders/{id}", pattern)
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})
	h := Wrap(panicking, InjectLogger(zap.New(core)), Recovery())

	w := get(h, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"ok":false,"message":"internal error"}`, w.Body.String())
	require.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}

func TestRecovery_AbortHandler(t *testing.T) {
	h := Recovery()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() { get(h, nil) })
}

func TestInjectLogger_Default(t *testing.T) {
	var lg *zap.Logger
	h := InjectLogger(zap.NewNop())(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		lg = zctx.From(r.Context())
	}))
	get(h, nil)
	assert.NotNil(t, lg)
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		cfg        CORSConfig
		method     string
		origin     string
		preflight  bool
		wantCode   int
		wantOrigin string
		wantCreds  bool
	}{
		{
			name:       "any origin simple",
			method:     http.MethodGet,
			origin:     "https://shop.example",
			wantCode:   http.StatusOK,
			wantOrigin: "*",
		},
		{
			name:       "listed origin is echoed in configured case",
			cfg:        CORSConfig{AllowOrigins: []string{"https://Shop.example"}},
			method:     http.MethodGet,
			origin:     "https://shop.example",
			wantCode:   http.StatusOK,
			wantOrigin: "https://Shop.example",
		},
		{
			name:     "unlisted origin",
			cfg:      CORSConfig{AllowOrigins: []string{"https://shop.example"}},
			method:   http.MethodGet,
			origin:   "https://evil.example",
			wantCode: http.StatusOK,
		},
		{
			name:       "credentials echo the origin",
			cfg:        CORSConfig{AllowOrigins: []string{"*"}, AllowCredentials: true},
			method:     http.MethodOptions,
			origin:     "https://shop.example",
			preflight:  true,
			wantCode:   http.StatusNoContent,
			wantOrigin: "https://shop.example",
			wantCreds:  true,
		},
		{
			name:      "preflight from unlisted origin",
			cfg:       CORSConfig{AllowOrigins: []string{"https://shop.example"}},
			method:    http.MethodOptions,
			origin:    "https://evil.example",
			preflight: true,
			wantCode:  http.StatusNoContent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := CORS(tt.cfg)(okHandler())
			r := httptest.NewRequest(tt.method, "/", nil)
			r.Header.Set("Origin", tt.origin)
			if tt.preflight {
				r.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantCreds {
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
			}
			if tt.preflight && tt.wantOrigin != "" {
				assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "api_key")
			}
		})
	}
}

func TestThrottle(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	th := NewThrottle(rate.Every(time.Minute), 2)
	th.now = c.now

	assert.True(t, th.Allow("a@example.com"))
	assert.True(t, th.Allow("a@example.com"))
	assert.False(t, th.Allow("a@example.com"))
	assert.True(t, th.Allow("b@example.com"))

	c.t = c.t.Add(time.Minute)
	assert.True(t, th.Allow("a@example.com"))
	assert.False(t, th.Allow("a@example.com"))

	th.Reset("a@example.com")
	assert.True(t, th.Allow("a@example.com"))

	c.t = c.t.Add(time.Hour)
	assert.Equal(t, 2, th.Prune(time.Minute))
}
