/*
Package btcsync syncs with the BTC blockchain and reports the funding and the
spends of swap htlc outputs.
*/
package btcsync

/*
BTC monitor is a ledger watcher.
It scans the btc chain for the htlcs swaps subscribed to:
1) outputs paying to an htlc script (funding)
2) inputs spending a funded htlc outpoint (redeem or refund)

A funding is only reported once it is Confirmations deep. If a reorg takes
its block away, a retraction is reported and the range is scanned again.
*/

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/TEENet-io/swap-go/btchtlc"
	"github.com/TEENet-io/swap-go/htlc"
	"github.com/TEENet-io/swap-go/ledger"
	"github.com/TEENet-io/swap-go/ledgerevents"
	"github.com/TEENet-io/swap-go/secret"
)

const (
	CONSIDER_FINALIZED = 1                // confirmations before a funding is reported
	SCAN_INTERVAL      = 10 * time.Second // then we scan again
	LOOKBACK_BLOCKS    = 144              // how far back a new watch starts without a start block
)

var (
	ErrNotBitcoin      = errors.New("htlc params are not bitcoin params")
	ErrNetworkMismatch = errors.New("htlc is on another bitcoin network")
)

// BlockSource is the part of the bitcoin rpc the monitor reads from.
// *rpc.RpcClient satisfies it.
type BlockSource interface {
	GetLatestBlockHeight() (int64, error)
	GetBlockHash(height int64) (*chainhash.Hash, error)
	GetBlock(hash *chainhash.Hash) (*wire.MsgBlock, error)
	MedianTime() (time.Time, error)
}

type Config struct {
	ChainConfig   *chaincfg.Params // which btc chain
	Confirmations int64
	ScanInterval  time.Duration
	// StartBlock is where new watches begin scanning. Zero means
	// LOOKBACK_BLOCKS below the tip at the time of the first scan.
	StartBlock int64
}

type BTCMonitor struct {
	ChainConfig   *chaincfg.Params
	Confirmations int64
	ScanInterval  time.Duration
	StartBlock    int64
	Publisher     *ledgerevents.Publisher
	Source        BlockSource

	mu       sync.Mutex
	fundings map[string]*fundingWatch
	spends   map[wire.OutPoint]*spendWatch
	// last btc block height visited
	LastVisitedBlockHeight int64
}

type fundingWatch struct {
	key      string
	pkScript []byte
	next     int64 // next height to scan, -1 until resolved
	found    []foundOutput
}

// reported is true when loc was already reported from the block hash,
// which happens when a reorg rewinds the watch below a surviving funding.
func (w *fundingWatch) reported(loc ledger.BitcoinLocation, hash chainhash.Hash) bool {
	for _, f := range w.found {
		if f.hash == hash && f.event.Funding.Location == loc {
			return true
		}
	}
	return false
}

type foundOutput struct {
	height int64
	hash   chainhash.Hash
	event  ledgerevents.Funded
}

type spendWatch struct {
	key    string
	script []byte
	hash   secret.Hash
	next   int64
	done   bool
}

func NewBTCMonitor(cfg *Config, source BlockSource) *BTCMonitor {
	conf := cfg.Confirmations
	if conf < 1 {
		conf = CONSIDER_FINALIZED
	}
	interval := cfg.ScanInterval
	if interval <= 0 {
		interval = SCAN_INTERVAL
	}
	return &BTCMonitor{
		ChainConfig:            cfg.ChainConfig,
		Confirmations:          conf,
		ScanInterval:           interval,
		StartBlock:             cfg.StartBlock,
		Publisher:              ledgerevents.NewPublisher(),
		Source:                 source,
		fundings:               make(map[string]*fundingWatch),
		spends:                 make(map[wire.OutPoint]*spendWatch),
		LastVisitedBlockHeight: -1,
	}
}

func (m *BTCMonitor) bitcoinParams(p htlc.Params) (*htlc.BitcoinParams, error) {
	bp, ok := p.(*htlc.BitcoinParams)
	if !ok {
		return nil, ErrNotBitcoin
	}
	if m.ChainConfig != nil && bp.Network() != ledger.BitcoinNetworkFromParams(m.ChainConfig) {
		return nil, ErrNetworkMismatch
	}
	return bp, nil
}

func (m *BTCMonitor) SubscribeFunded(ctx context.Context, p htlc.Params) (<-chan ledgerevents.Funded, error) {
	bp, err := m.bitcoinParams(p)
	if err != nil {
		return nil, err
	}
	pkScript, err := bp.Representation()
	if err != nil {
		return nil, err
	}
	key, err := ledgerevents.FundedKey(bp)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.fundings[key]; !ok {
		m.fundings[key] = &fundingWatch{key: key, pkScript: pkScript, next: -1}
	}
	return m.Publisher.SubscribeFunded(ctx, key), nil
}

func (m *BTCMonitor) SubscribeRedeemed(ctx context.Context, p htlc.Params, loc ledger.HtlcLocation) (<-chan ledgerevents.Redeemed, error) {
	key, err := m.watchSpend(p, loc)
	if err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	return m.Publisher.SubscribeRedeemed(ctx, key), nil
}

func (m *BTCMonitor) SubscribeRefunded(ctx context.Context, p htlc.Params, loc ledger.HtlcLocation) (<-chan ledgerevents.Refunded, error) {
	key, err := m.watchSpend(p, loc)
	if err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	return m.Publisher.SubscribeRefunded(ctx, key), nil
}

// watchSpend registers the outpoint and returns with m.mu held on success.
func (m *BTCMonitor) watchSpend(p htlc.Params, loc ledger.HtlcLocation) (string, error) {
	bp, err := m.bitcoinParams(p)
	if err != nil {
		return "", err
	}
	bl, ok := loc.(ledger.BitcoinLocation)
	if !ok {
		return "", htlc.ErrLocationMismatch
	}
	script, err := bp.Script()
	if err != nil {
		return "", err
	}
	key := ledgerevents.SpendKey(bl)

	m.mu.Lock()
	if _, ok := m.spends[bl.OutPoint]; !ok {
		m.spends[bl.OutPoint] = &spendWatch{
			key:    key,
			script: script,
			hash:   bp.SecretHash(),
			next:   m.fundingHeight(bl.OutPoint),
		}
	}
	return key, nil
}

// fundingHeight is the height the outpoint was seen funded at, or -1.
// A spend cannot precede it.
func (m *BTCMonitor) fundingHeight(op wire.OutPoint) int64 {
	for _, w := range m.fundings {
		for _, f := range w.found {
			if loc, ok := f.event.Funding.Location.(ledger.BitcoinLocation); ok && loc.OutPoint == op {
				return f.height
			}
		}
	}
	return -1
}

// LedgerTime is the median time past of the tip, which is what
// OP_CHECKLOCKTIMEVERIFY is evaluated against.
func (m *BTCMonitor) LedgerTime(context.Context) (time.Time, error) {
	return m.Source.MedianTime()
}

// Scan represents a single round of scanning the blockchain.
// It will return nothing if success, otherwise an error.
func (m *BTCMonitor) Scan() error {
	latestBlockHeight, err := m.Source.GetLatestBlockHeight()
	if err != nil {
		return fmt.Errorf("failed to get latest block height: %v", err)
	}
	final := latestBlockHeight - m.Confirmations + 1

	from, err := m.prepare(latestBlockHeight)
	if err != nil {
		return err
	}

	logger.WithFields(logger.Fields{
		"latestBlockHeight": latestBlockHeight,
		"from":              from,
		"final":             final,
	}).Debug("Scanning btc blocks")

	for height := from; height >= 0 && height <= final; height++ {
		hash, err := m.Source.GetBlockHash(height)
		if err != nil {
			return fmt.Errorf("failed to get block hash at %d: %v", height, err)
		}
		block, err := m.Source.GetBlock(hash)
		if err != nil {
			return fmt.Errorf("failed to get block %s: %v", hash, err)
		}
		m.process(height, block)
	}
	return nil
}

// prepare prunes unwatched entries, resolves start heights, checks reported
// fundings against the current chain and returns the lowest height due.
func (m *BTCMonitor) prepare(tip int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := m.StartBlock
	if start <= 0 {
		start = max(tip-LOOKBACK_BLOCKS, 0)
	}

	for key := range m.fundings {
		if !m.Publisher.Subscribed(key) {
			delete(m.fundings, key)
			m.Publisher.Forget(key)
		}
	}
	for op, w := range m.spends {
		if !m.Publisher.Subscribed(w.key) {
			delete(m.spends, op)
			m.Publisher.Forget(w.key)
		}
	}

	for _, w := range m.fundings {
		if w.next < 0 {
			w.next = start
		}
		if err := m.checkReorg(w); err != nil {
			return 0, err
		}
	}
	for _, w := range m.spends {
		if w.next < 0 {
			w.next = start
		}
	}

	from := int64(-1)
	for _, w := range m.fundings {
		if from < 0 || w.next < from {
			from = w.next
		}
	}
	for _, w := range m.spends {
		if !w.done && (from < 0 || w.next < from) {
			from = w.next
		}
	}
	return from, nil
}

func (m *BTCMonitor) checkReorg(w *fundingWatch) error {
	kept := w.found[:0]
	for _, f := range w.found {
		hash, err := m.Source.GetBlockHash(f.height)
		if err != nil {
			return fmt.Errorf("failed to get block hash at %d: %v", f.height, err)
		}
		if hash.IsEqual(&f.hash) {
			kept = append(kept, f)
			continue
		}

		logger.WithFields(logger.Fields{
			"btcTxId":  f.event.TxID,
			"blockNum": f.height,
		}).Warn("Funding retracted by reorg")

		retracted := f.event
		retracted.Retracted = true
		m.Publisher.NotifyFunded(w.key, retracted)
		w.next = min(w.next, f.height)
	}
	w.found = kept
	return nil
}

func (m *BTCMonitor) process(height int64, block *wire.MsgBlock) {
	m.mu.Lock()
	defer m.mu.Unlock()

	blockHash := block.BlockHash()
	for _, tx := range block.Transactions {
		txHash := tx.TxHash()

		for _, w := range m.fundings {
			if !due(w.next, height) {
				continue
			}
			for vout, out := range tx.TxOut {
				if !bytes.Equal(out.PkScript, w.pkScript) {
					continue
				}
				loc := ledger.NewBitcoinLocation(txHash, uint32(vout))
				if w.reported(loc, blockHash) {
					continue
				}
				ev := ledgerevents.Funded{
					Funding: htlc.Funding{
						Location: loc,
						Amount:   ledger.NewBitcoinQuantity(out.Value),
					},
					TxID:      txHash.String(),
					BlockHash: blockHash.String(),
				}
				logger.WithFields(logger.Fields{
					"btcTxId":  ev.TxID,
					"vout":     vout,
					"amount":   out.Value,
					"blockNum": height,
				}).Info("Htlc Funding Found")

				w.found = append(w.found, foundOutput{height: height, hash: blockHash, event: ev})
				m.Publisher.NotifyFunded(w.key, ev)
			}
		}

		for _, in := range tx.TxIn {
			w, ok := m.spends[in.PreviousOutPoint]
			if !ok || w.done || !due(w.next, height) {
				continue
			}
			m.spent(w, txHash, in.Witness, block.Header.Timestamp)
		}
	}

	for _, w := range m.fundings {
		if due(w.next, height) {
			w.next = height + 1
		}
	}
	for _, w := range m.spends {
		if !w.done && due(w.next, height) {
			w.next = height + 1
		}
	}
	m.LastVisitedBlockHeight = max(m.LastVisitedBlockHeight, height)
}

// due reports whether a watch starting at next covers height. Watches
// registered during a scan are resolved by the next prepare.
func due(next, height int64) bool {
	return next >= 0 && next <= height
}

func (m *BTCMonitor) spent(w *spendWatch, txHash chainhash.Hash, witness wire.TxWitness, blockTime time.Time) {
	fields := logger.Fields{"btcTxId": txHash.String(), "htlc": w.key}

	switch {
	case btchtlc.IsRedeemWitness(witness, w.script):
		s, err := btchtlc.ExtractSecret(witness, w.hash)
		if err != nil {
			logger.WithFields(fields).Warnf("redeem witness without secret: %v", err)
			return
		}
		w.done = true
		logger.WithFields(fields).Info("Htlc Redeem Found")
		m.Publisher.NotifyRedeemed(w.key, ledgerevents.Redeemed{
			Secret:    s,
			TxID:      txHash.String(),
			BlockTime: blockTime,
		})
	case btchtlc.IsRefundWitness(witness, w.script):
		w.done = true
		logger.WithFields(fields).Info("Htlc Refund Found")
		m.Publisher.NotifyRefunded(w.key, ledgerevents.Refunded{
			TxID:      txHash.String(),
			BlockTime: blockTime,
		})
	default:
		logger.WithFields(fields).Warn("htlc spent by an unknown witness")
	}
}

// ScanLoop continuously scans the blockchain until ctx is done.
func (m *BTCMonitor) ScanLoop(ctx context.Context) {
	ticker := time.NewTicker(m.ScanInterval)
	defer ticker.Stop()

	for {
		if err := m.Scan(); err != nil {
			logger.Warnf("BTC ScanLoop error: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
