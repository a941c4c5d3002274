/*
Package ethsync follows the ethereum chain for the htlc contracts swaps
subscribed to: their deployment (funding) and the Redeemed and Refunded logs
they emit when spent.
*/
package ethsync

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/swap-go/common"
	"github.com/TEENet-io/swap-go/etherman"
	"github.com/TEENet-io/swap-go/ethhtlc"
	"github.com/TEENet-io/swap-go/htlc"
	"github.com/TEENet-io/swap-go/ledger"
	"github.com/TEENet-io/swap-go/ledgerevents"
	"github.com/TEENet-io/swap-go/secret"
)

const (
	MinTickerDuration = 100 * time.Millisecond
	LookbackBlocks    = 7200
)

type Synchronizer struct {
	cfg       *Config
	etherman  *etherman.Etherman
	Publisher *ledgerevents.Publisher

	mu       sync.Mutex
	fundings map[string]*fundingWatch
	spends   map[ethcommon.Address]*spendWatch
}

type fundingWatch struct {
	key   string
	code  []byte
	next  int64 // next block to scan, -1 until resolved
	found []foundContract
}

type foundContract struct {
	height uint64
	hash   ethcommon.Hash
	event  ledgerevents.Funded
}

type spendWatch struct {
	key  string
	hash secret.Hash
	next int64
	done bool
}

type deployment struct {
	key   string
	event ledgerevents.Funded
}

func New(etherman *etherman.Etherman, cfg *Config) (*Synchronizer, error) {
	chainID := etherman.ChainID()
	if cfg.EthChainID != nil && chainID.Cmp(cfg.EthChainID) != 0 {
		return nil, ErrChainIDUnmatched(cfg.EthChainID, chainID)
	}
	if cfg.FrequencyToCheckFinalizedBlock < MinTickerDuration {
		cfg.FrequencyToCheckFinalizedBlock = MinTickerDuration
	}
	return &Synchronizer{
		cfg:       cfg,
		etherman:  etherman,
		Publisher: ledgerevents.NewPublisher(),
		fundings:  make(map[string]*fundingWatch),
		spends:    make(map[ethcommon.Address]*spendWatch),
	}, nil
}

func (s *Synchronizer) ethereumParams(p htlc.Params) (*htlc.EthereumParams, error) {
	ep, ok := p.(*htlc.EthereumParams)
	if !ok {
		return nil, ErrNotEthereum
	}
	if ep.Network().ChainID == nil || ep.Network().ChainID.Cmp(s.etherman.ChainID()) != 0 {
		return nil, ErrNetworkMismatch
	}
	return ep, nil
}

func (s *Synchronizer) SubscribeFunded(ctx context.Context, p htlc.Params) (<-chan ledgerevents.Funded, error) {
	ep, err := s.ethereumParams(p)
	if err != nil {
		return nil, err
	}
	code, err := ep.Representation()
	if err != nil {
		return nil, err
	}
	key, err := ledgerevents.FundedKey(ep)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fundings[key]; !ok {
		s.fundings[key] = &fundingWatch{key: key, code: code, next: -1}
	}
	return s.Publisher.SubscribeFunded(ctx, key), nil
}

func (s *Synchronizer) SubscribeRedeemed(ctx context.Context, p htlc.Params, loc ledger.HtlcLocation) (<-chan ledgerevents.Redeemed, error) {
	key, err := s.watchSpend(p, loc)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.Publisher.SubscribeRedeemed(ctx, key), nil
}

func (s *Synchronizer) SubscribeRefunded(ctx context.Context, p htlc.Params, loc ledger.HtlcLocation) (<-chan ledgerevents.Refunded, error) {
	key, err := s.watchSpend(p, loc)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.Publisher.SubscribeRefunded(ctx, key), nil
}

// watchSpend registers the contract and returns with s.mu held on success.
func (s *Synchronizer) watchSpend(p htlc.Params, loc ledger.HtlcLocation) (string, error) {
	ep, err := s.ethereumParams(p)
	if err != nil {
		return "", err
	}
	el, ok := loc.(ledger.EthereumLocation)
	if !ok {
		return "", htlc.ErrLocationMismatch
	}
	key := ledgerevents.SpendKey(el)

	s.mu.Lock()
	if _, ok := s.spends[el.Address]; !ok {
		s.spends[el.Address] = &spendWatch{key: key, hash: ep.SecretHash(), next: s.deployHeight(el.Address)}
	}
	return key, nil
}

func (s *Synchronizer) deployHeight(addr ethcommon.Address) int64 {
	for _, w := range s.fundings {
		for _, f := range w.found {
			if loc, ok := f.event.Funding.Location.(ledger.EthereumLocation); ok && loc.Address == addr {
				return int64(f.height)
			}
		}
	}
	return -1
}

// LedgerTime is the timestamp of the head block, which is what the htlc
// compares its expiry with.
func (s *Synchronizer) LedgerTime(ctx context.Context) (time.Time, error) {
	return s.etherman.LatestBlockTime(ctx)
}

// Scan processes every finalized block some watch has not seen yet.
func (s *Synchronizer) Scan(ctx context.Context) error {
	finalized, err := s.etherman.GetLatestFinalizedBlockNumber(ctx)
	if errors.Is(err, etherman.ErrNoFinalizedBlock) {
		return nil
	}
	if err != nil {
		return err
	}

	from, err := s.prepare(ctx, finalized)
	if err != nil {
		return err
	}
	if from < 0 {
		return nil
	}
	logger.WithFields(logger.Fields{
		"from":      from,
		"finalized": finalized,
	}).Debug("Scanning eth blocks")

	for num := uint64(from); num <= finalized; num++ {
		if err := s.scanBlock(ctx, num); err != nil {
			return err
		}
	}
	return nil
}

func (s *Synchronizer) prepare(ctx context.Context, finalized uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := int64(s.cfg.StartBlock)
	if start == 0 {
		start = max(int64(finalized)-LookbackBlocks, 0)
	}

	for key := range s.fundings {
		if !s.Publisher.Subscribed(key) {
			delete(s.fundings, key)
			s.Publisher.Forget(key)
		}
	}
	for addr, w := range s.spends {
		if !s.Publisher.Subscribed(w.key) {
			delete(s.spends, addr)
			s.Publisher.Forget(w.key)
		}
	}

	from := int64(-1)
	for _, w := range s.fundings {
		if w.next < 0 {
			w.next = start
		}
		if err := s.checkReorg(ctx, w); err != nil {
			return 0, err
		}
		if from < 0 || w.next < from {
			from = w.next
		}
	}
	for _, w := range s.spends {
		if w.next < 0 {
			w.next = start
		}
		if !w.done && (from < 0 || w.next < from) {
			from = w.next
		}
	}
	return from, nil
}

func (s *Synchronizer) checkReorg(ctx context.Context, w *fundingWatch) error {
	kept := w.found[:0]
	for _, f := range w.found {
		header, err := s.etherman.Client().HeaderByNumber(ctx, new(big.Int).SetUint64(f.height))
		if err != nil {
			return err
		}
		if header.Hash() == f.hash {
			kept = append(kept, f)
			continue
		}

		logger.WithFields(logger.Fields{
			"deployTx": f.event.TxID,
			"blockNum": f.height,
		}).Warn("Htlc deployment retracted by reorg")

		retracted := f.event
		retracted.Retracted = true
		s.Publisher.NotifyFunded(w.key, retracted)
		w.next = min(w.next, int64(f.height))
	}
	w.found = kept
	return nil
}

// due lists what a block at num needs to be checked for.
func (s *Synchronizer) due(num uint64) (map[string][]byte, []ethcommon.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()

	codes := make(map[string][]byte)
	for key, w := range s.fundings {
		if covers(w.next, num) {
			codes[key] = w.code
		}
	}
	var addrs []ethcommon.Address
	for addr, w := range s.spends {
		if !w.done && covers(w.next, num) {
			addrs = append(addrs, addr)
		}
	}
	return codes, addrs
}

// covers reports whether a watch starting at next includes block num.
// Watches registered during a scan start with the next prepare.
func covers(next int64, num uint64) bool {
	return next >= 0 && next <= int64(num)
}

func (s *Synchronizer) scanBlock(ctx context.Context, num uint64) error {
	client := s.etherman.Client()
	block, err := client.BlockByNumber(ctx, new(big.Int).SetUint64(num))
	if err != nil {
		return err
	}
	codes, addrs := s.due(num)

	var deployed []deployment
	for _, tx := range block.Transactions() {
		if tx.To() != nil {
			continue
		}
		for key, code := range codes {
			if !bytes.Equal(tx.Data(), code) {
				continue
			}
			receipt, err := client.TransactionReceipt(ctx, tx.Hash())
			if err != nil {
				return err
			}
			if receipt.Status != types.ReceiptStatusSuccessful {
				logger.WithField("deployTx", common.Shorten(tx.Hash().Hex(), 8)).Warn("Failed htlc deployment ignored")
				continue
			}
			deployed = append(deployed, deployment{
				key: key,
				event: ledgerevents.Funded{
					Funding: htlc.Funding{
						Location: ledger.EthereumLocation{Address: receipt.ContractAddress},
						Amount:   ledger.NewEtherQuantity(tx.Value()),
					},
					TxID:      tx.Hash().Hex(),
					BlockHash: block.Hash().Hex(),
				},
			})
		}
	}

	var logs []types.Log
	if len(addrs) > 0 {
		hash := block.Hash()
		logs, err = client.FilterLogs(ctx, ethereum.FilterQuery{
			BlockHash: &hash,
			Addresses: addrs,
			Topics:    [][]ethcommon.Hash{{ethhtlc.RedeemedTopic, ethhtlc.RefundedTopic}},
		})
		if err != nil {
			return err
		}
	}

	s.apply(num, block, deployed, logs)
	return nil
}

func (s *Synchronizer) apply(num uint64, block *types.Block, deployed []deployment, logs []types.Log) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range deployed {
		w, ok := s.fundings[d.key]
		if !ok || w.reported(d.event.TxID, block.Hash()) {
			continue
		}
		logger.WithFields(logger.Fields{
			"deployTx": d.event.TxID,
			"htlc":     d.event.Funding.Location.String(),
			"amount":   d.event.Funding.Amount.String(),
			"blockNum": num,
		}).Info("Htlc Deployment Found")
		w.found = append(w.found, foundContract{height: num, hash: block.Hash(), event: d.event})
		s.Publisher.NotifyFunded(w.key, d.event)
	}

	blockTime := time.Unix(int64(block.Time()), 0)
	for _, l := range logs {
		w, ok := s.spends[l.Address]
		if !ok || w.done || l.Removed || len(l.Topics) == 0 {
			continue
		}
		fields := logger.Fields{"txHash": l.TxHash.Hex(), "htlc": l.Address.Hex()}

		switch l.Topics[0] {
		case ethhtlc.RedeemedTopic:
			sec, err := secret.FromBytes(l.Data)
			if err != nil || !w.hash.Matches(sec) {
				logger.WithFields(fields).Warn("Redeemed log without a matching secret")
				continue
			}
			w.done = true
			logger.WithFields(fields).Info("Htlc Redeem Found")
			s.Publisher.NotifyRedeemed(w.key, ledgerevents.Redeemed{Secret: sec, TxID: l.TxHash.Hex(), BlockTime: blockTime})
		case ethhtlc.RefundedTopic:
			w.done = true
			logger.WithFields(fields).Info("Htlc Refund Found")
			s.Publisher.NotifyRefunded(w.key, ledgerevents.Refunded{TxID: l.TxHash.Hex(), BlockTime: blockTime})
		}
	}

	for _, w := range s.fundings {
		if covers(w.next, num) {
			w.next = int64(num) + 1
		}
	}
	for _, w := range s.spends {
		if !w.done && covers(w.next, num) {
			w.next = int64(num) + 1
		}
	}
}

func (w *fundingWatch) reported(txID string, hash ethcommon.Hash) bool {
	for _, f := range w.found {
		if f.hash == hash && f.event.TxID == txID {
			return true
		}
	}
	return false
}

// Sync scans on every tick until ctx is done.
func (s *Synchronizer) Sync(ctx context.Context) error {
	logger.Debug("starting Eth synchronization")
	defer func() {
		logger.Debug("stopping Eth synchronization")
	}()

	ethTicker := time.NewTicker(s.cfg.FrequencyToCheckFinalizedBlock)
	defer ethTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ethTicker.C:
			if err := s.Scan(ctx); err != nil {
				logger.Warnf("eth sync error: %v", err)
			}
		}
	}
}
