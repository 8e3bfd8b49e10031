package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agrimarket.walletd/internal/domain/entities"
	"agrimarket.walletd/internal/interfaces/http/response"
	"agrimarket.walletd/internal/usecases"
	"agrimarket.walletd/pkg/logger"
)

const (
	defaultStreamBuffer    = 32
	defaultStreamHeartbeat = 15 * time.Second
)

type subscribeFunc func(names []string, handler usecases.EventHandler) (dispose func(), err error)

type subscriptionLister interface {
	Subscriptions() []entities.EventSubscription
	Listening() bool
}

// EventsHandler streams contract events to the UI over Server-Sent Events
type EventsHandler struct {
	subscribe subscribeFunc
	lister    subscriptionLister
	buffer    int
	heartbeat time.Duration
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(events *usecases.EventSubscriptionManager) *EventsHandler {
	return &EventsHandler{
		subscribe: func(names []string, handler usecases.EventHandler) (func(), error) {
			sub, err := events.Subscribe(names, handler)
			if err != nil {
				return nil, err
			}
			return sub.Dispose, nil
		},
		lister:    events,
		buffer:    defaultStreamBuffer,
		heartbeat: defaultStreamHeartbeat,
	}
}

// ListSubscriptions returns the active subscriptions and whether every watch is attached
// GET /api/v1/events/subscriptions
func (h *EventsHandler) ListSubscriptions(c *gin.Context) {
	subs := h.lister.Subscriptions()
	if subs == nil {
		subs = []entities.EventSubscription{}
	}
	response.Success(c, http.StatusOK, gin.H{
		"listening":     h.lister.Listening(),
		"subscriptions": subs,
	})
}

// Stream subscribes to the named events (all when empty) until the client goes away.
// A slow client loses events rather than stalling delivery to other subscribers.
// GET /api/v1/events?names=OrderPlaced,BatchCreated
func (h *EventsHandler) Stream(c *gin.Context) {
	names := parseEventNames(c.Query("names"))
	ctx := c.Request.Context()

	events := make(chan entities.ContractEvent, h.buffer)
	dispose, err := h.subscribe(names, func(ev entities.ContractEvent) {
		if !offer(events, ev) {
			logger.Warn(ctx, "Dropping contract event for slow stream client", zap.String("event", ev.Name))
		}
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	defer dispose()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"events": names})
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev := <-events:
			c.SSEvent(ev.Name, ev)
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
}

func offer(ch chan<- entities.ContractEvent, ev entities.ContractEvent) bool {
	select {
	case ch <- ev:
		return true
	default:
		return false
	}
}

func parseEventNames(raw string) []string {
	var names []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return append([]string(nil), entities.MarketplaceEvents...)
	}
	return names
}
