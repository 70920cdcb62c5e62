/*
Package logx provides a structured logging wrapper based on zerolog.

This file holds the HTTP middleware that logs each request (method, URI, status, latency)
with an anonymized client IP and injects a request-scoped logger into the context.
*/
package logx

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// anonymizeIP zeros the last IPv4 octet or keeps only the first half of an IPv6 address.
func anonymizeIP(ipStr string) string {
	host, _, err := net.SplitHostPort(ipStr)
	if err == nil {
		ipStr = host
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return "unknown_ip"
	}

	if ip.IsLoopback() {
		return "127.0.0.1"
	}

	if v4 := ip.To4(); v4 != nil {
		return net.IPv4(v4[0], v4[1], v4[2], 0).String()
	}

	v6 := make(net.IP, net.IPv6len)
	copy(v6, ip.To16()[:8])
	return v6.String()
}

// probePaths are polled by orchestrators and only logged at debug level.
var probePaths = map[string]bool{
	"/health":        true,
	"/health/speech": true,
	"/metrics":       true,
}

// RequestLogger returns middleware that logs the request lifecycle. Uploads are
// reported by their declared size; websocket upgrades are logged once the live
// session ends, with its total duration.
func RequestLogger() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			logger := Logger().With().
				Str("component", "http").
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("remote_ip", anonymizeIP(r.RemoteAddr)).
				Str("request_method", r.Method).
				Str("request_path", r.URL.Path).
				Logger()

			next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context())))

			status := ww.Status()
			upgraded := isUpgrade(r) && status == 0

			var event *zerolog.Event
			switch {
			case status >= 500:
				event = logger.Error()
			case status >= 400:
				event = logger.Warn()
			case probePaths[r.URL.Path]:
				event = logger.Debug()
			default:
				event = logger.Info()
			}

			if r.ContentLength > 0 {
				event = event.Int64("request_bytes", r.ContentLength)
			}

			if upgraded {
				event.Dur("session_duration", time.Since(start)).Msg("Live session ended")
				return
			}

			event.
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("latency", time.Since(start)).
				Msg("Request completed")
		})
	}
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
