package middleware

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/beatbridge/beatbridge/config"
)

const (
	ContentSecurityPolicy   = "default-src 'self'; frame-ancestors 'none';"
	XContentTypeOptions     = "nosniff"
	XFrameOptions           = "DENY"
	XXSSProtection          = "1; mode=block"
	ReferrerPolicy          = "strict-origin-when-cross-origin"
	StrictTransportSecurity = "max-age=31536000; includeSubDomains"

	// Development mode CSP - more permissive for local development
	DevContentSecurityPolicy = "default-src 'self' 'unsafe-inline' 'unsafe-eval'; connect-src 'self' ws: wss:; img-src 'self' data: blob:;"
	// Development mode frame options - allow same origin for development tools
	DevXFrameOptions = "SAMEORIGIN"
)

// SecurityHeaders middleware adds security headers to HTTP responses
type SecurityHeaders struct {
	config *config.Config
	logger *logrus.Logger
}

// NewSecurityHeaders creates a new security headers middleware
func NewSecurityHeaders(cfg *config.Config, logger *logrus.Logger) *SecurityHeaders {
	return &SecurityHeaders{
		config: cfg,
		logger: logger,
	}
}

// Handler returns the middleware handler function
func (s *SecurityHeaders) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.config.SecurityHeadersEnabled {
			next.ServeHTTP(w, r)
			return
		}

		if s.isDevModeRequest(r) {
			s.logger.Debug("Applying development mode security headers")
			s.addDevelopmentHeaders(w)
		} else {
			s.logger.Debug("Applying production security headers")
			s.addProductionHeaders(w)
		}

		next.ServeHTTP(w, r)
	})
}

// isDevModeRequest determines if this is a development mode request
func (s *SecurityHeaders) isDevModeRequest(r *http.Request) bool {
	if s.config.IsDevMode() {
		return true
	}

	host := r.Host
	remoteAddr := r.RemoteAddr

	// Extract just the host part (remove port if present)
	// Handle IPv6 addresses in brackets like [::1]:8080
	if strings.HasPrefix(host, "[") {
		if closeBracket := strings.Index(host, "]"); closeBracket != -1 {
			host = host[1:closeBracket]
		}
	} else if colonIndex := strings.LastIndex(host, ":"); colonIndex != -1 {
		host = host[:colonIndex]
	}

	localhostPatterns := []string{
		"localhost",
		"127.0.0.1",
		"::1",
		"0.0.0.0",
	}

	for _, pattern := range localhostPatterns {
		if host == pattern || strings.HasPrefix(remoteAddr, pattern) {
			return true
		}
	}

	return false
}

// addDevelopmentHeaders adds relaxed security headers for development
func (s *SecurityHeaders) addDevelopmentHeaders(w http.ResponseWriter) {
	header := w.Header()

	header.Set("X-Content-Type-Options", XContentTypeOptions)
	header.Set("X-Frame-Options", DevXFrameOptions)
	header.Set("X-XSS-Protection", XXSSProtection)
	header.Set("Content-Security-Policy", DevContentSecurityPolicy)
	header.Set("Referrer-Policy", ReferrerPolicy)

	// Skip HSTS in development (only applies to HTTPS anyway)
}

// addProductionHeaders adds full security headers for production
func (s *SecurityHeaders) addProductionHeaders(w http.ResponseWriter) {
	header := w.Header()

	header.Set("X-Content-Type-Options", XContentTypeOptions)
	header.Set("X-Frame-Options", XFrameOptions)
	header.Set("X-XSS-Protection", XXSSProtection)
	header.Set("Content-Security-Policy", ContentSecurityPolicy)
	header.Set("Referrer-Policy", ReferrerPolicy)
	header.Set("Strict-Transport-Security", StrictTransportSecurity)
}
