package etherman

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/swap-go/common"
)

var ErrNoFinalizedBlock = errors.New("chain is shorter than the confirmation depth")

func ErrChainIDUnmatched(expected, actual *big.Int) error {
	return fmt.Errorf("chain ID mismatch: expected=%v, actual=%v", expected, actual)
}

// Client is the part of ethclient.Client the node uses. The simulated
// backend client satisfies it as well.
type Client interface {
	ethereum.ChainReader
	ethereum.ChainStateReader
	ethereum.TransactionReader
	ethereum.TransactionSender
	ethereum.LogFilterer
	ethereum.GasPricer
	ethereum.PendingStateReader

	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

type Etherman struct {
	client        Client
	chainID       *big.Int
	confirmations uint64
}

// NewEtherman wraps a connected client and checks it is on the expected chain.
func NewEtherman(client Client, cfg *Config) (*Etherman, error) {
	chainID, err := client.ChainID(context.Background())
	if err != nil {
		logger.Error("failed to get eth chain ID")
		return nil, err
	}
	if cfg.ChainID != nil && chainID.Cmp(cfg.ChainID) != 0 {
		return nil, ErrChainIDUnmatched(cfg.ChainID, chainID)
	}
	return &Etherman{client: client, chainID: chainID, confirmations: cfg.Confirmations}, nil
}

func (e *Etherman) Client() Client { return e.client }

// Close closes the underlying connection, if the client holds one.
func (e *Etherman) Close() {
	if c, ok := e.client.(interface{ Close() }); ok {
		c.Close()
	}
}

func (e *Etherman) ChainID() *big.Int { return common.BigIntClone(e.chainID) }

// GetLatestFinalizedBlockNumber returns head - confirmations.
func (e *Etherman) GetLatestFinalizedBlockNumber(ctx context.Context) (uint64, error) {
	head, err := e.client.BlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	if head < e.confirmations {
		return 0, ErrNoFinalizedBlock
	}
	return head - e.confirmations, nil
}

// LatestBlockTime is the timestamp of the head block, the clock htlc expiries
// are checked against.
func (e *Etherman) LatestBlockTime(ctx context.Context) (time.Time, error) {
	header, err := e.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(header.Time), 0), nil
}

// SendTx signs a legacy transaction with key and submits it. to == nil
// creates a contract.
func (e *Etherman) SendTx(ctx context.Context, key *ecdsa.PrivateKey, to *ethcommon.Address, value *big.Int, data []byte, gas uint64) (*types.Transaction, error) {
	from := crypto.PubkeyToAddress(key.PublicKey)
	nonce, err := e.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, err
	}
	gasPrice, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	if value == nil {
		value = new(big.Int)
	}

	tx, err := types.SignNewTx(key, types.LatestSignerForChainID(e.chainID), &types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       to,
		Value:    value,
		Data:     data,
	})
	if err != nil {
		return nil, err
	}
	if err := e.client.SendTransaction(ctx, tx); err != nil {
		return nil, err
	}
	logger.WithFields(logger.Fields{
		"txHash": tx.Hash().Hex(),
		"from":   from.Hex(),
		"value":  value.String(),
	}).Debug("eth tx sent")
	return tx, nil
}
