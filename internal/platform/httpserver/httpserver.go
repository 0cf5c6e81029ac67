package httpserver

import (
	"net/http"
	"time"
)

// Capture payloads dominate request bodies, so the read budget is generous;
// the write timeout must outlast the router's request timeout or slow
// authentications get cut off mid-response.
const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 75 * time.Second
	idleTimeout       = 2 * time.Minute
)

// New builds the HTTP server with timeouts sized for biometric capture
// uploads.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}
