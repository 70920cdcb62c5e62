package limiter

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"speechquest/internal/pkg/auth/jwt"
)

func TestMiddlewareRejectsBurstOverflow(t *testing.T) {
	l := New("test", rate.Every(time.Hour), 2, nil)
	defer l.Stop()

	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodPost, "/api/missions/1/attempts", nil)
		r.RemoteAddr = "198.51.100.7:5000"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestClientKeyPrefersProfile(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.9:1234"
	assert.Equal(t, "ip:203.0.113.9", ClientKey(r))

	r = r.WithContext(jwt.ContextWithPayload(r.Context(), &jwt.Payload{ProfileID: "p-1"}))
	assert.Equal(t, "profile:p-1", ClientKey(r))
}

func TestPruneDropsRefilledBuckets(t *testing.T) {
	l := New("test", rate.Every(time.Millisecond), 1, nil)
	defer l.Stop()

	assert.True(t, l.Allow("a"))
	assert.Equal(t, 1, l.Size())

	removed, remaining := l.prune(time.Now().Add(time.Second))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, remaining)
}
