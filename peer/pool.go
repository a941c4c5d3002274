package peer

import (
	"context"
	"sort"
	"sync"

	logger "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/TEENet-io/swap-go/rpc"
)

// Pool keeps one client connection per remote address.
type Pool struct {
	self     string
	dialOpts []grpc.DialOption

	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

// NewPool creates a pool stamping self as the sender of every message.
// Without options connections use no transport security.
func NewPool(self string, opts ...grpc.DialOption) *Pool {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	return &Pool{self: self, dialOpts: opts, conns: make(map[string]*grpc.ClientConn)}
}

// Self is the address peers reach this node at.
func (p *Pool) Self() string { return p.self }

func (p *Pool) conn(addr string) (*grpc.ClientConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.conns[addr]; ok {
		return c, nil
	}
	c, err := grpc.NewClient(addr, p.dialOpts...)
	if err != nil {
		return nil, err
	}
	p.conns[addr] = c
	return c, nil
}

// Send delivers msg to the node listening on addr.
func (p *Pool) Send(ctx context.Context, addr string, msg *Message) error {
	c, err := p.conn(addr)
	if err != nil {
		return err
	}
	logger.WithFields(logger.Fields{
		"type":   msg.Type,
		"swapID": msg.SwapID,
		"to":     addr,
	}).Debug("sending peer message")
	_, err = rpc.NewPeerClient(c).Deliver(ctx, msg.toProto(p.self))
	return err
}

// Peers lists the addresses a connection was opened to.
func (p *Pool) Peers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	addrs := make([]string, 0, len(p.conns))
	for addr := range p.conns {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for addr, c := range p.conns {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.conns, addr)
	}
	return firstErr
}
