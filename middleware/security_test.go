package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/beatbridge/beatbridge/config"
)

func newTestMiddleware(enabled, devMode bool) *SecurityHeaders {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	return NewSecurityHeaders(&config.Config{
		SecurityHeadersEnabled: enabled,
		DevMode:                devMode,
	}, logger)
}

func serveRequest(t *testing.T, mw *SecurityHeaders, host, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "http://"+host+"/health", nil)
	req.Host = host
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestProductionHeaders(t *testing.T) {
	mw := newTestMiddleware(true, false)
	w := serveRequest(t, mw, "beatbridge.example.com", "203.0.113.10:44321")

	expected := map[string]string{
		"X-Content-Type-Options":    XContentTypeOptions,
		"X-Frame-Options":           XFrameOptions,
		"X-XSS-Protection":          XXSSProtection,
		"Content-Security-Policy":   ContentSecurityPolicy,
		"Referrer-Policy":           ReferrerPolicy,
		"Strict-Transport-Security": StrictTransportSecurity,
	}
	for name, value := range expected {
		if got := w.Header().Get(name); got != value {
			t.Errorf("%s = %q, want %q", name, got, value)
		}
	}
}

func TestDevelopmentHeaders(t *testing.T) {
	mw := newTestMiddleware(true, true)
	w := serveRequest(t, mw, "beatbridge.example.com", "203.0.113.10:44321")

	if got := w.Header().Get("X-Frame-Options"); got != DevXFrameOptions {
		t.Errorf("X-Frame-Options = %q, want %q", got, DevXFrameOptions)
	}
	if got := w.Header().Get("Content-Security-Policy"); got != DevContentSecurityPolicy {
		t.Errorf("Content-Security-Policy = %q, want %q", got, DevContentSecurityPolicy)
	}
	if got := w.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("HSTS should be absent in development mode, got %q", got)
	}
}

func TestHeadersDisabled(t *testing.T) {
	mw := newTestMiddleware(false, false)
	w := serveRequest(t, mw, "beatbridge.example.com", "203.0.113.10:44321")

	if got := w.Header().Get("X-Content-Type-Options"); got != "" {
		t.Errorf("Headers should be skipped when disabled, got X-Content-Type-Options=%q", got)
	}
}

func TestLocalhostDetection(t *testing.T) {
	tests := []struct {
		name       string
		host       string
		remoteAddr string
		devHeaders bool
	}{
		{"localhost with port", "localhost:8080", "203.0.113.10:44321", true},
		{"loopback IPv4", "127.0.0.1:8080", "203.0.113.10:44321", true},
		{"IPv6 loopback in brackets", "[::1]:8080", "203.0.113.10:44321", true},
		{"loopback remote address", "beatbridge.example.com", "127.0.0.1:50123", true},
		{"public host and remote", "beatbridge.example.com", "203.0.113.10:44321", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := newTestMiddleware(true, false)
			w := serveRequest(t, mw, tt.host, tt.remoteAddr)

			gotDev := w.Header().Get("X-Frame-Options") == DevXFrameOptions
			if gotDev != tt.devHeaders {
				t.Errorf("dev headers = %v, want %v", gotDev, tt.devHeaders)
			}
		})
	}
}
