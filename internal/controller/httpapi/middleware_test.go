package httpapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimit_IgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	api := newTestAPI(t, 1)

	first := api.doFrom(t, http.MethodPost, "/api/lecturers", gin.H{"name": "A"}, "198.51.100.1")
	require.Equal(t, http.StatusCreated, first.Code)

	// подмена X-Forwarded-For не даёт новый бакет
	for _, spoofed := range []string{"198.51.100.2", "203.0.113.7", "10.0.0.1"} {
		rec := api.doFrom(t, http.MethodPost, "/api/lecturers", gin.H{"name": "B"}, spoofed)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code, spoofed)
	}
}

func TestRateLimit_TrustedProxyForwardsClientIP(t *testing.T) {
	// httptest.NewRequest выставляет RemoteAddr 192.0.2.1
	api := newTestAPI(t, 1, func(d *Deps) { d.TrustedProxies = []string{"192.0.2.0/24"} })

	rec := api.doFrom(t, http.MethodPost, "/api/lecturers", gin.H{"name": "A"}, "198.51.100.1")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.doFrom(t, http.MethodPost, "/api/lecturers", gin.H{"name": "B"}, "198.51.100.2")
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = api.doFrom(t, http.MethodPost, "/api/lecturers", gin.H{"name": "C"}, "198.51.100.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimit_InvalidTrustedProxiesTrustNobody(t *testing.T) {
	api := newTestAPI(t, 1, func(d *Deps) { d.TrustedProxies = []string{"not-an-ip"} })

	rec := api.doFrom(t, http.MethodPost, "/api/lecturers", gin.H{"name": "A"}, "198.51.100.1")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.doFrom(t, http.MethodPost, "/api/lecturers", gin.H{"name": "B"}, "198.51.100.2")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestIPRateLimiter_EvictsIdleEntries(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	l := newIPRateLimiter(1)
	l.now = func() time.Time { return now }

	require.True(t, l.get("198.51.100.1").Allow())
	l.get("198.51.100.2")
	assert.Equal(t, 2, l.size())

	now = now.Add(limiterIdleTTL / 2)
	l.get("198.51.100.2")

	now = now.Add(limiterIdleTTL)
	l.get("198.51.100.3")
	// первый IP простаивал дольше TTL, второй тоже
	assert.Equal(t, 1, l.size())

	// вернувшийся клиент получает свежий бакет
	assert.True(t, l.get("198.51.100.1").Allow())
}

func TestIPRateLimiter_KeepsActiveEntries(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	l := newIPRateLimiter(1)
	l.now = func() time.Time { return now }

	require.True(t, l.get("198.51.100.1").Allow())
	for i := 0; i < 5; i++ {
		now = now.Add(limiterIdleTTL / 2)
		l.get("198.51.100.1")
	}
	assert.Equal(t, 1, l.size())
}
