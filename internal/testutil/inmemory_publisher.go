package testutil

import (
	"context"
	"sync"

	"github.com/medbill/ledger/internal/publisher"
	"github.com/medbill/ledger/internal/types"
	"github.com/samber/lo"
)

var _ publisher.EventPublisher = (*InMemoryPublisher)(nil)

// InMemoryPublisher records published ledger events
type InMemoryPublisher struct {
	mu     sync.Mutex
	events []*publisher.LedgerEvent
}

func NewInMemoryPublisher() *InMemoryPublisher {
	return &InMemoryPublisher{events: make([]*publisher.LedgerEvent, 0)}
}

func (p *InMemoryPublisher) Publish(ctx context.Context, event *publisher.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *InMemoryPublisher) Close() error {
	return nil
}

// Events returns the published events of the given types, or all when none are given
func (p *InMemoryPublisher) Events(eventTypes ...types.LedgerEventType) []*publisher.LedgerEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(eventTypes) == 0 {
		return append([]*publisher.LedgerEvent(nil), p.events...)
	}
	return lo.Filter(p.events, func(e *publisher.LedgerEvent, _ int) bool {
		return lo.Contains(eventTypes, e.Type)
	})
}

func (p *InMemoryPublisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = p.events[:0]
}
