/*
Package node runs the swaps of one party. Alice initiates; Bob receives the
request over the peer transport and accepts or declines it. Every accepted
swap gets a runner that follows both ledgers until the swap is final, and
runners are resumed for unfinished swaps when the node starts.
*/
package node

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/swap-go/action"
	"github.com/TEENet-io/swap-go/deps"
	"github.com/TEENet-io/swap-go/htlc"
	"github.com/TEENet-io/swap-go/ledger"
	"github.com/TEENet-io/swap-go/peer"
	"github.com/TEENet-io/swap-go/secret"
	"github.com/TEENet-io/swap-go/statestore"
	"github.com/TEENet-io/swap-go/swap"
)

const sendTimeout = 30 * time.Second

type Config struct {
	ClockRecheck  time.Duration
	RetryInterval time.Duration
}

type Service struct {
	deps deps.Dependencies
	cfg  Config
	now  func() time.Time

	mu      sync.Mutex
	ctx     context.Context
	runners map[uuid.UUID]*runnerHandle
	wg      sync.WaitGroup
}

type runnerHandle struct {
	runner *swap.Runner
	cancel context.CancelFunc
}

// InitiateRequest is what Alice asks for. Bitcoin identities are always
// derived from the seed, since the node signs those spends; ethereum
// identities may be given, otherwise they are derived too.
type InitiateRequest struct {
	Peer                string     `json:"peer"`
	Alpha               htlc.Terms `json:"alpha"`
	Beta                htlc.Terms `json:"beta"`
	AlphaRefundIdentity string     `json:"alpha_ledger_refund_identity,omitempty"`
	BetaRedeemIdentity  string     `json:"beta_ledger_redeem_identity,omitempty"`
}

// AcceptRequest is Bob's side of the same choice.
type AcceptRequest struct {
	AlphaRedeemIdentity string `json:"alpha_ledger_redeem_identity,omitempty"`
	BetaRefundIdentity  string `json:"beta_ledger_refund_identity,omitempty"`
}

type DeclineBody struct {
	Reason string `json:"reason"`
}

func New(d deps.Dependencies, cfg Config) (*Service, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &Service{
		deps:    d,
		cfg:     cfg,
		now:     time.Now,
		runners: make(map[uuid.UUID]*runnerHandle),
	}, nil
}

// Start resumes every swap left in progress. Runners live until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	ids, err := s.deps.MetadataStore.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active swaps: %w", err)
	}
	for _, id := range ids {
		sw, err := s.deps.StateStore.Load(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load swap %s: %w", id, err)
		}
		if err := s.startRunner(sw); err != nil {
			return err
		}
	}
	logger.WithField("resumed", len(ids)).Info("node service started")
	return nil
}

// Wait blocks until every runner has returned.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) source(id uuid.UUID) secret.Source {
	return s.deps.Seed.SwapSource(id)
}

// ownIdentity is the identity the node takes on kind. Bitcoin identities
// are always the node's key, since the node signs those spends; an ethereum
// identity may be any address the user gives.
func ownIdentity(kind ledger.Kind, given string, key *btcec.PrivateKey) (string, error) {
	switch kind {
	case ledger.Bitcoin:
		id := ledger.BitcoinIdentityFromPubKey(key.PubKey()).String()
		if given != "" && given != id {
			return "", ErrIdentityNotOwned
		}
		return id, nil
	case ledger.Ethereum:
		if given == "" {
			return ledger.EthereumIdentityFromPubKey(key.PubKey()).Hex(), nil
		}
		if _, err := ledger.ParseEthereumIdentity(given); err != nil {
			return "", err
		}
		return given, nil
	}
	return "", ledger.ErrUnsupportedLedger
}

// Initiate creates a swap as Alice and sends the request to the peer. A
// request the peer refuses leaves the swap declined.
func (s *Service) Initiate(ctx context.Context, in InitiateRequest) (*swap.Swap, error) {
	if in.Peer == "" {
		return nil, ErrMissingPeer
	}
	id := uuid.New()
	src := s.source(id)

	refund, err := ownIdentity(in.Alpha.Ledger, in.AlphaRefundIdentity, src.RefundKey())
	if err != nil {
		return nil, fmt.Errorf("alpha refund identity: %w", err)
	}
	redeem, err := ownIdentity(in.Beta.Ledger, in.BetaRedeemIdentity, src.RedeemKey())
	if err != nil {
		return nil, fmt.Errorf("beta redeem identity: %w", err)
	}
	req := swap.Request{
		ID:                  id,
		Alpha:               in.Alpha,
		Beta:                in.Beta,
		SecretHash:          src.Secret().Hash(),
		AlphaRefundIdentity: refund,
		BetaRedeemIdentity:  redeem,
	}
	sw, err := swap.NewRequest(swap.RoleAlice, in.Peer, req, s.deps.Policy)
	if err != nil {
		return nil, err
	}
	if err := s.deps.StateStore.Save(ctx, sw); err != nil {
		return nil, err
	}
	s.recordRequest(ctx, sw)

	log := logger.WithFields(logger.Fields{"swap": id, "peer": in.Peer})
	msg, err := peer.NewMessage(peer.TypeSwapRequest, id, req)
	if err != nil {
		return nil, err
	}
	if err := s.send(ctx, in.Peer, msg); err != nil {
		log.WithError(err).Warn("swap request not delivered")
		if derr := sw.Decline(err.Error()); derr != nil {
			return nil, derr
		}
		if serr := s.deps.StateStore.Save(ctx, sw); serr != nil {
			return nil, serr
		}
		return sw, fmt.Errorf("swap request refused: %w", err)
	}
	log.Info("swap request sent")
	return sw, nil
}

// HandleMessage consumes one peer message.
func (s *Service) HandleMessage(ctx context.Context, msg *peer.Message) error {
	switch msg.Type {
	case peer.TypeSwapRequest:
		var req swap.Request
		if err := msg.Decode(&req); err != nil {
			return err
		}
		return s.received(ctx, msg.From, req)

	case peer.TypeSwapAccept:
		var a swap.Accept
		if err := msg.Decode(&a); err != nil {
			return err
		}
		return s.accepted(ctx, msg.From, msg.SwapID, a)

	case peer.TypeSwapDecline:
		var body DeclineBody
		if err := msg.Decode(&body); err != nil {
			return err
		}
		return s.declined(ctx, msg.From, msg.SwapID, body.Reason)
	}
	return peer.ErrUnknownMessage
}

func (s *Service) received(ctx context.Context, from string, req swap.Request) error {
	if _, err := s.deps.StateStore.Load(ctx, req.ID); err == nil {
		return ErrDuplicateSwap
	} else if !errors.Is(err, swap.ErrSwapNotFound) {
		return err
	}
	sw, err := swap.NewRequest(swap.RoleBob, from, req, s.deps.Policy)
	if err != nil {
		return err
	}
	if err := s.deps.StateStore.Save(ctx, sw); err != nil {
		return err
	}
	s.recordRequest(ctx, sw)
	logger.WithFields(logger.Fields{"swap": req.ID, "peer": from}).Info("swap request received")
	return nil
}

func (s *Service) counterpartySwap(ctx context.Context, from string, id uuid.UUID, role swap.Role) (*swap.Swap, error) {
	sw, err := s.deps.StateStore.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sw.Role != role {
		return nil, ErrRoleMismatch(id, role, sw.Role)
	}
	if sw.Peer != from {
		return nil, ErrUnexpectedPeer
	}
	return sw, nil
}

func (s *Service) accepted(ctx context.Context, from string, id uuid.UUID, a swap.Accept) error {
	sw, err := s.counterpartySwap(ctx, from, id, swap.RoleAlice)
	if err != nil {
		return err
	}
	if err := sw.Accept(a); err != nil {
		return err
	}
	if err := s.deps.StateStore.Save(ctx, sw); err != nil {
		return err
	}
	s.recordAccept(ctx, sw)
	logger.WithField("swap", id).Info("swap accepted by peer")
	return s.startRunner(sw)
}

func (s *Service) declined(ctx context.Context, from string, id uuid.UUID, reason string) error {
	sw, err := s.counterpartySwap(ctx, from, id, swap.RoleAlice)
	if err != nil {
		return err
	}
	if err := sw.Decline(reason); err != nil {
		return err
	}
	logger.WithFields(logger.Fields{"swap": id, "reason": reason}).Info("swap declined by peer")
	return s.deps.StateStore.Save(ctx, sw)
}

// Accept answers a received request as Bob. The swap is only stored as
// accepted once Alice got the answer.
func (s *Service) Accept(ctx context.Context, id uuid.UUID, in AcceptRequest) (*swap.Swap, error) {
	sw, err := s.deps.StateStore.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sw.Role != swap.RoleBob {
		return nil, ErrRoleMismatch(id, swap.RoleBob, sw.Role)
	}
	src := s.source(id)
	redeem, err := ownIdentity(sw.Request.Alpha.Ledger, in.AlphaRedeemIdentity, src.RedeemKey())
	if err != nil {
		return nil, fmt.Errorf("alpha redeem identity: %w", err)
	}
	refund, err := ownIdentity(sw.Request.Beta.Ledger, in.BetaRefundIdentity, src.RefundKey())
	if err != nil {
		return nil, fmt.Errorf("beta refund identity: %w", err)
	}
	a := swap.Accept{AlphaRedeemIdentity: redeem, BetaRefundIdentity: refund}
	if err := sw.Accept(a); err != nil {
		return nil, err
	}

	msg, err := peer.NewMessage(peer.TypeSwapAccept, id, a)
	if err != nil {
		return nil, err
	}
	if err := s.send(ctx, sw.Peer, msg); err != nil {
		return nil, fmt.Errorf("failed to deliver accept: %w", err)
	}
	if err := s.deps.StateStore.Save(ctx, sw); err != nil {
		return nil, err
	}
	s.recordAccept(ctx, sw)
	logger.WithField("swap", id).Info("swap accepted")
	return sw, s.startRunner(sw)
}

func (s *Service) Decline(ctx context.Context, id uuid.UUID, reason string) (*swap.Swap, error) {
	sw, err := s.deps.StateStore.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sw.Role != swap.RoleBob {
		return nil, ErrRoleMismatch(id, swap.RoleBob, sw.Role)
	}
	if err := sw.Decline(reason); err != nil {
		return nil, err
	}
	msg, err := peer.NewMessage(peer.TypeSwapDecline, id, DeclineBody{Reason: reason})
	if err != nil {
		return nil, err
	}
	if err := s.send(ctx, sw.Peer, msg); err != nil {
		return nil, fmt.Errorf("failed to deliver decline: %w", err)
	}
	if err := s.deps.StateStore.Save(ctx, sw); err != nil {
		return nil, err
	}
	logger.WithFields(logger.Fields{"swap": id, "reason": reason}).Info("swap declined")
	return sw, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*swap.Swap, error) {
	return s.deps.StateStore.Load(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*statestore.Summary, error) {
	return s.deps.MetadataStore.List(ctx)
}

func (s *Service) Peers() []string {
	return s.deps.ConnectionPool.Peers()
}

func (s *Service) NextActions(ctx context.Context, id uuid.UUID) ([]action.Action, error) {
	sw, err := s.deps.StateStore.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return sw.NextActions(s.now(), s.source(id))
}

func (s *Service) Action(ctx context.Context, id uuid.UUID, kind action.Kind) (action.Action, error) {
	sw, err := s.deps.StateStore.Load(ctx, id)
	if err != nil {
		return action.Action{}, err
	}
	return sw.Action(kind, s.now(), s.source(id))
}

// Abandon stops following a swap that holds nothing. It is resumed on the
// next start if it is still in progress. A running swap is checked by its
// runner, so a funding applied concurrently is never missed.
func (s *Service) Abandon(ctx context.Context, id uuid.UUID) error {
	sw, err := s.deps.StateStore.Load(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	h, ok := s.runners[id]
	s.mu.Unlock()
	if !ok {
		return sw.CanAbandon()
	}

	err = h.runner.Abandon(ctx)
	if err != nil && !errors.Is(err, swap.ErrRunnerStopped) {
		return err
	}
	s.stopRunner(id, h)
	return nil
}

// Running reports whether a runner follows the swap.
func (s *Service) Running(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.runners[id]
	return ok
}

func (s *Service) send(ctx context.Context, addr string, msg *peer.Message) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	return s.deps.ConnectionPool.Send(ctx, addr, msg)
}

func (s *Service) startRunner(sw *swap.Swap) error {
	r, err := swap.NewRunner(sw, swap.RunnerConfig{
		Watchers:      s.deps.LedgerEvents,
		Store:         s.deps.StateStore,
		Policy:        s.deps.Policy,
		ClockRecheck:  s.cfg.ClockRecheck,
		RetryInterval: s.cfg.RetryInterval,
		OnChange:      s.onChange,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return ErrNotStarted
	}
	if _, ok := s.runners[sw.ID]; ok {
		return nil
	}
	ctx, cancel := context.WithCancel(s.ctx)
	h := &runnerHandle{runner: r, cancel: cancel}
	s.runners[sw.ID] = h

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.stopRunner(sw.ID, h)

		err := r.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, swap.ErrAbandoned) {
			logger.WithField("swap", sw.ID).WithError(err).Error("swap runner failed")
		}
	}()
	return nil
}

// stopRunner releases h unless a newer runner took its place.
func (s *Service) stopRunner(id uuid.UUID, h *runnerHandle) {
	h.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runners[id] == h {
		delete(s.runners, id)
	}
}
