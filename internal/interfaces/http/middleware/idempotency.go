package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agrimarket.walletd/internal/domain/repositories"
	"agrimarket.walletd/pkg/logger"
)

const (
	IdempotencyHeader    = "Idempotency-Key"
	IdempotencyHitHeader = "X-Idempotency-Hit"
	idempotencyKeyPrefix = "agrimarket:idempotency:"

	// RetentionDuration bounds how long a stored response is replayed
	RetentionDuration = 24 * time.Hour
)

type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

type storedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// Idempotency replays the first successful response for a repeated Idempotency-Key.
// Keys are scoped to the connected account so a switched wallet never sees another's result.
type Idempotency struct {
	store     repositories.KVStore
	account   func() string
	retention time.Duration

	mu         sync.Mutex
	processing map[string]bool
}

// NewIdempotency creates the middleware state; account returns the connected wallet
func NewIdempotency(store repositories.KVStore, account func() string) *Idempotency {
	return &Idempotency{
		store:      store,
		account:    account,
		retention:  RetentionDuration,
		processing: make(map[string]bool),
	}
}

// Middleware guards a route with the Idempotency-Key header. Requests without it pass through.
func (i *Idempotency) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		storageKey := idempotencyKeyPrefix + i.account() + ":" + c.FullPath() + ":" + key

		raw, found, err := i.store.Get(ctx, storageKey)
		if err != nil {
			logger.Warn(ctx, "Idempotency lookup failed, processing request", zap.Error(err))
			c.Next()
			return
		}
		if found {
			var cached storedResponse
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				c.Header(IdempotencyHitHeader, "true")
				c.Data(cached.Status, "application/json; charset=utf-8", cached.Body)
				c.Abort()
				return
			}
		}

		i.mu.Lock()
		if i.processing[storageKey] {
			i.mu.Unlock()
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"code":    "IDEMPOTENCY_CONFLICT",
				"message": "Request already in progress.",
			})
			return
		}
		i.processing[storageKey] = true
		i.mu.Unlock()
		defer func() {
			i.mu.Lock()
			delete(i.processing, storageKey)
			i.mu.Unlock()
		}()

		w := &responseWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 || !json.Valid(w.body.Bytes()) {
			return
		}
		encoded, err := json.Marshal(storedResponse{Status: status, Body: w.body.Bytes()})
		if err != nil {
			return
		}
		if err := i.store.Set(ctx, storageKey, string(encoded), i.retention); err != nil {
			logger.Warn(ctx, "Failed to store idempotent response", zap.Error(err))
		}
	}
}
