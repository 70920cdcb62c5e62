package logx

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "ipv4 with port", in: "203.0.113.77:5123", want: "203.0.113.0"},
		{name: "bare ipv4", in: "198.51.100.9", want: "198.51.100.0"},
		{name: "loopback", in: "127.0.0.1:80", want: "127.0.0.1"},
		{name: "ipv6", in: "[2001:db8:abcd:12:1:2:3:4]:443", want: "2001:db8:abcd:12::"},
		{name: "garbage", in: "not-an-ip", want: "unknown_ip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, anonymizeIP(tt.in))
		})
	}
}

func TestRequestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	initWithWriter(&buf, false)
	t.Cleanup(func() { initWithWriter(io.Discard, false) })

	h := RequestLogger()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/health", "/api/profile", "/boom"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	out := buf.String()
	assert.NotContains(t, out, `"request_path":"/health"`)
	assert.Contains(t, out, `"request_path":"/api/profile"`)
	assert.Contains(t, out, `"level":"error"`)
}
