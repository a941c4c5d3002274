package ledgerevents

import (
	"context"
	"sync"
)

// Publisher is a concurrent-safe service that notifies subscribers of htlc
// events. Every notification is kept per key, so a subscriber arriving
// after the fact still receives it.
type Publisher struct {
	mu sync.Mutex

	funded   *Feed[Funded]
	redeemed *Feed[Redeemed]
	refunded *Feed[Refunded]

	fundedHist   map[string][]Funded
	redeemedHist map[string][]Redeemed
	refundedHist map[string][]Refunded
}

func NewPublisher() *Publisher {
	return &Publisher{
		funded:       NewFeed[Funded](),
		redeemed:     NewFeed[Redeemed](),
		refunded:     NewFeed[Refunded](),
		fundedHist:   map[string][]Funded{},
		redeemedHist: map[string][]Redeemed{},
		refundedHist: map[string][]Refunded{},
	}
}

func (p *Publisher) SubscribeFunded(ctx context.Context, key string) <-chan Funded {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.funded.Subscribe(ctx, key, p.fundedHist[key]...)
}

func (p *Publisher) SubscribeRedeemed(ctx context.Context, key string) <-chan Redeemed {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.redeemed.Subscribe(ctx, key, p.redeemedHist[key]...)
}

func (p *Publisher) SubscribeRefunded(ctx context.Context, key string) <-chan Refunded {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refunded.Subscribe(ctx, key, p.refundedHist[key]...)
}

func (p *Publisher) NotifyFunded(key string, f Funded) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fundedHist[key] = append(p.fundedHist[key], f)
	p.funded.Publish(key, f)
}

func (p *Publisher) NotifyRedeemed(key string, r Redeemed) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.redeemedHist[key] = append(p.redeemedHist[key], r)
	p.redeemed.Publish(key, r)
}

func (p *Publisher) NotifyRefunded(key string, r Refunded) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refundedHist[key] = append(p.refundedHist[key], r)
	p.refunded.Publish(key, r)
}

// Subscribed reports whether anyone still listens on key.
func (p *Publisher) Subscribed(key string) bool {
	return p.funded.Has(key) || p.redeemed.Has(key) || p.refunded.Has(key)
}

// Forget drops the history kept for key.
func (p *Publisher) Forget(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.fundedHist, key)
	delete(p.redeemedHist, key)
	delete(p.refundedHist, key)
}

// Subscribers is the number of live subscriptions, to check releases.
func (p *Publisher) Subscribers() int {
	return p.funded.Len() + p.redeemed.Len() + p.refunded.Len()
}
