// Package effects carries the follow-up work triggered by send status
// changes out of the request that caused them.
package effects

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jordanlanch/leadflow/pkg/logger"
	"github.com/jordanlanch/leadflow/pkg/models"
)

// Kind names the work an effect asks for
type Kind string

const (
	// KindUpdateSendStatus moves a send to Status at time At
	KindUpdateSendStatus Kind = "update_send_status"
	// KindRecomputeCampaignStats refreshes a campaign's counters
	KindRecomputeCampaignStats Kind = "recompute_campaign_stats"
)

// Effect is one unit of deferred work
type Effect struct {
	Kind              Kind              `json:"kind"`
	SendID            uint              `json:"sendId,omitempty"`
	CampaignID        uint              `json:"campaignId,omitempty"`
	Status            models.SendStatus `json:"status,omitempty"`
	At                time.Time         `json:"at"`
	ProviderMessageID string            `json:"providerMessageId,omitempty"`
	ErrorMessage      string            `json:"errorMessage,omitempty"`
}

// UpdateSendStatus builds a send status effect
func UpdateSendStatus(sendID uint, status models.SendStatus, at time.Time) Effect {
	return Effect{Kind: KindUpdateSendStatus, SendID: sendID, Status: status, At: at}
}

// RecomputeCampaignStats builds a campaign stats effect
func RecomputeCampaignStats(campaignID uint, at time.Time) Effect {
	return Effect{Kind: KindRecomputeCampaignStats, CampaignID: campaignID, At: at}
}

// Validate checks that the effect carries what its kind needs
func (e Effect) Validate() error {
	switch e.Kind {
	case KindUpdateSendStatus:
		if e.SendID == 0 || e.Status == "" {
			return fmt.Errorf("effect %s needs a send id and status", e.Kind)
		}
	case KindRecomputeCampaignStats:
		if e.CampaignID == 0 {
			return fmt.Errorf("effect %s needs a campaign id", e.Kind)
		}
	default:
		return fmt.Errorf("unknown effect kind %q", e.Kind)
	}
	return nil
}

// Handler performs an effect
type Handler func(ctx context.Context, e Effect) error

// Queue accepts effects for eventual handling
type Queue interface {
	Enqueue(ctx context.Context, e Effect) error
}

// InlineQueue handles effects in the enqueuing goroutine, in FIFO order.
// Effects enqueued by a handler join the drain that invoked it and run
// after it returns instead of nesting. Drains belong to a single Enqueue
// call, so concurrent callers never run or report each other's effects.
type InlineQueue struct {
	mu      sync.Mutex
	handler Handler
	logger  logger.Logger
}

// drain is the FIFO owned by one outermost Enqueue call
type drain struct {
	queue   *InlineQueue
	mu      sync.Mutex
	pending []Effect
}

type drainKey struct{}

func (d *drain) push(e Effect) {
	d.mu.Lock()
	d.pending = append(d.pending, e)
	d.mu.Unlock()
}

func (d *drain) pop() (Effect, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) == 0 {
		return Effect{}, false
	}
	next := d.pending[0]
	d.pending = d.pending[1:]
	return next, true
}

// NewInlineQueue creates an inline queue. A handler must be set before the
// first Enqueue.
func NewInlineQueue(log logger.Logger) *InlineQueue {
	return &InlineQueue{logger: log}
}

// SetHandler installs the handler
func (q *InlineQueue) SetHandler(h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handler = h
}

// Enqueue records e. Called from inside a handler it appends to the
// running drain and returns nil; otherwise it starts a drain of its own
// and handles every effect that drain collects. A failing handler does not
// stop the drain; the first failure is returned to the caller that
// started it.
func (q *InlineQueue) Enqueue(ctx context.Context, e Effect) error {
	if err := e.Validate(); err != nil {
		return err
	}

	q.mu.Lock()
	h := q.handler
	q.mu.Unlock()
	if h == nil {
		return fmt.Errorf("effects queue has no handler")
	}

	if d, ok := ctx.Value(drainKey{}).(*drain); ok && d.queue == q {
		d.push(e)
		return nil
	}

	d := &drain{queue: q, pending: []Effect{e}}
	ctx = context.WithValue(ctx, drainKey{}, d)

	var firstErr error
	for {
		next, ok := d.pop()
		if !ok {
			return firstErr
		}
		if err := h(ctx, next); err != nil {
			q.logger.Error("effect failed", "kind", next.Kind, "send_id", next.SendID, "campaign_id", next.CampaignID, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("effect %s: %w", next.Kind, err)
			}
		}
	}
}
