package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type bucket struct {
	tokens     int
	lastRefill time.Time
}

var (
	rlMu        sync.Mutex
	buckets     = map[string]*bucket{}
	window      = 10 * time.Second
	capacity    = 5
	refillPerWd = capacity

	dupMu   sync.Mutex
	lastAct = map[string]struct {
		action string
		ts     time.Time
	}{}
	dupTTL = 45 * time.Second
)

func SetRateLimitConfig(win time.Duration, cap int) {
	rlMu.Lock()
	window = win
	capacity = cap
	refillPerWd = cap
	rlMu.Unlock()
}

func SetDuplicateTTL(ttl time.Duration) {
	dupMu.Lock()
	dupTTL = ttl
	dupMu.Unlock()
}

func clientIP(c *gin.Context) string {
	ip := strings.TrimSpace(c.ClientIP())
	if ip == "" {
		host, _, _ := net.SplitHostPort(strings.TrimSpace(c.Request.RemoteAddr))
		ip = host
	}
	return ip
}

func userKey(c *gin.Context) string {
	uidRaw, _ := c.Get(ContextUserIDKey)
	uid, _ := uidRaw.(string)
	return uid + "@" + clientIP(c)
}

// RateLimit is a token-bucket limiter keyed by user+IP, applied to the
// chat-write endpoints and the websocket handshake.
func RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := userKey(c)
		now := time.Now()

		rlMu.Lock()
		b := buckets[key]
		if b == nil {
			b = &bucket{tokens: capacity, lastRefill: now}
			buckets[key] = b
		}
		elapsed := now.Sub(b.lastRefill)
		if elapsed > 0 {
			add := int(float64(refillPerWd) * (float64(elapsed) / float64(window)))
			if add > 0 {
				b.tokens += add
				if b.tokens > capacity {
					b.tokens = capacity
				}
				b.lastRefill = now
			}
		}
		if b.tokens <= 0 {
			rlMu.Unlock()
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"msg": "too many requests"})
			return
		}
		b.tokens--
		rlMu.Unlock()

		c.Next()
	}
}

// DuplicateGuard rejects a repeat of the same action for the same key
// within the TTL window. Used to throttle verification-code resends per
// phone number. Returns true when the action is allowed.
func DuplicateGuard(key string, action string) bool {
	now := time.Now()
	dupMu.Lock()
	entry, ok := lastAct[key]
	if ok && entry.action == action && now.Sub(entry.ts) < dupTTL {
		dupMu.Unlock()
		return false
	}
	lastAct[key] = struct {
		action string
		ts     time.Time
	}{action: action, ts: now}
	dupMu.Unlock()
	return true
}
