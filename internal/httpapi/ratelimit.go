package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// throttle is a fixed-window per-client request limiter. Windows reset a
// minute after the client's first request in the window.
type throttle struct {
	mu        sync.Mutex
	limit     int
	clients   map[string]*clientWindow
	lastSweep time.Time
	now       func() time.Time
}

type clientWindow struct {
	count int
	start time.Time
}

func newThrottle(limit int) *throttle {
	return &throttle{
		limit:   limit,
		clients: make(map[string]*clientWindow),
		now:     time.Now,
	}
}

func (t *throttle) allow(client string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if now.Sub(t.lastSweep) > 5*time.Minute {
		t.sweepLocked(now)
	}

	w, ok := t.clients[client]
	if !ok || now.Sub(w.start) >= time.Minute {
		t.clients[client] = &clientWindow{count: 1, start: now}
		return true
	}
	if w.count >= t.limit {
		return false
	}
	w.count++
	return true
}

// sweepLocked drops windows idle long enough that they can never deny a
// request again.
func (t *throttle) sweepLocked(now time.Time) {
	t.lastSweep = now
	for client, w := range t.clients {
		if now.Sub(w.start) > 5*time.Minute {
			delete(t.clients, client)
		}
	}
}

// middleware keys windows by remote IP and answers 429 when exhausted.
func (t *throttle) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !t.allow(c.RealIP()) {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
		}
		return next(c)
	}
}
