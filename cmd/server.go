// Server = btc watcher + eth watcher + db/state + peer transport + node + http api.
// All components are configured via environment variables (strings!).

package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	logger "github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	btcrpc "github.com/TEENet-io/swap-go/btcman/rpc"
	"github.com/TEENet-io/swap-go/btcsync"
	"github.com/TEENet-io/swap-go/database"
	"github.com/TEENet-io/swap-go/deps"
	"github.com/TEENet-io/swap-go/etherman"
	"github.com/TEENet-io/swap-go/ethsync"
	"github.com/TEENet-io/swap-go/ledgerevents"
	"github.com/TEENet-io/swap-go/node"
	"github.com/TEENet-io/swap-go/peer"
	"github.com/TEENet-io/swap-go/reporter"
	"github.com/TEENet-io/swap-go/statestore"
	"github.com/TEENet-io/swap-go/swap"
	"github.com/TEENet-io/swap-go/trade"
)

// Default params for server.
// More often we don't recommend users to tweak those.
// So we list them here.
const (
	// swap runner config
	clockRecheck  = 30 * time.Second // re-read ledger clocks while waiting for an expiry
	retryInterval = 5 * time.Second  // resubscribe after a watcher dropped a stream
)

// Keep the configuration's fields as "text" as possible.
// Its easier to load it from env vars or a config file.
type SwapServerConfig struct {
	// state side
	DbFilePath string // db file path
	Seed       string // hex encoded 32 byte seed, or
	Mnemonic   string // bip39 mnemonic the seed is derived from

	// btc side
	BtcRpcServer     string           // btc rpc server info
	BtcRpcPort       string           // btc rpc server info
	BtcRpcUsername   string           // btc rpc server info
	BtcRpcPwd        string           // btc rpc server info
	BtcChainConfig   *chaincfg.Params // regtest, testnet, mainnet?
	BtcConfirmations int64
	BtcPollInterval  time.Duration
	BtcStartBlk      int64 // start block for btc monitor to scan (0=lookback from tip, -1=latest, other=specific block)

	// eth side
	EthRpcUrl        string // json rpc url
	EthChainID       int64  // 0 skips the check
	EthConfirmations uint64
	EthPollInterval  time.Duration
	EthStartBlk      uint64 // 0=lookback from the finalized head

	// peer side
	PeerListen  string          // eg. 0.0.0.0:9939
	PeerAddress string          // address peers reach this node at, defaults to PeerListen
	PeerTLS     *peer.TLSConfig // nil for plaintext

	// Http side
	HttpIp   string // eg. 0.0.0.0
	HttpPort string // eg. 8080

	Policy swap.Policy
}

// SwapServer holds the objects that consists of the swap server.
type SwapServer struct {
	Db         *sql.DB
	StateStore *statestore.StateStore
	Trades     *trade.Log

	// Btc side
	BtcRpcClient *btcrpc.RpcClient
	MyBtcMonitor *btcsync.BTCMonitor

	// Eth side
	MyEtherman *etherman.Etherman
	MyEthSync  *ethsync.Synchronizer

	PeerPool   *peer.Pool
	PeerServer *peer.Server
	Node       *node.Service
	Reporter   *reporter.HttpReporter
}

// NewSwapServer creates a new swap server and starts its routines.
// ctx is used for parental context to cancel the operation of swap server.
// wg is used to wait for all the goroutines inside the server (monitor, synchronizer, runners) to finish.
func NewSwapServer(ssc *SwapServerConfig, ctx context.Context, wg *sync.WaitGroup) (*SwapServer, error) {
	seed, err := ParseSeed(ssc.Seed, ssc.Mnemonic)
	if err != nil {
		return nil, err
	}

	// Create sql db, and the stores over it.
	db, err := database.OpenSQLite(ssc.DbFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open db file: %w", err)
	}
	st, err := statestore.New(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create state store: %w", err)
	}
	trades, err := trade.NewLog(db)
	if err != nil {
		st.Close()
		db.Close()
		return nil, fmt.Errorf("failed to create trade log: %w", err)
	}
	srv := &SwapServer{Db: db, StateStore: st, Trades: trades}

	fail := func(err error) (*SwapServer, error) {
		srv.Close()
		return nil, err
	}

	// BTC side
	srv.BtcRpcClient, err = SetupBtcRpc(ssc.BtcRpcServer, ssc.BtcRpcPort, ssc.BtcRpcUsername, ssc.BtcRpcPwd)
	if err != nil {
		return fail(err)
	}
	startBlk := ssc.BtcStartBlk
	if startBlk == -1 {
		if startBlk, err = srv.BtcRpcClient.GetLatestBlockHeight(); err != nil {
			return fail(fmt.Errorf("failed to get latest btc block: %w", err))
		}
	}
	srv.MyBtcMonitor = btcsync.NewBTCMonitor(&btcsync.Config{
		ChainConfig:   ssc.BtcChainConfig,
		Confirmations: ssc.BtcConfirmations,
		ScanInterval:  ssc.BtcPollInterval,
		StartBlock:    startBlk,
	}, srv.BtcRpcClient)

	// ETH side
	var chainID *big.Int
	if ssc.EthChainID != 0 {
		chainID = big.NewInt(ssc.EthChainID)
	}
	srv.MyEtherman, err = etherman.Dial(&etherman.Config{
		URL:           ssc.EthRpcUrl,
		ChainID:       chainID,
		Confirmations: ssc.EthConfirmations,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to create etherman: %w", err))
	}
	srv.MyEthSync, err = ethsync.New(srv.MyEtherman, &ethsync.Config{
		FrequencyToCheckFinalizedBlock: ssc.EthPollInterval,
		EthChainID:                     chainID,
		StartBlock:                     ssc.EthStartBlk,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to create eth synchronizer: %w", err))
	}

	// Peer side
	self := ssc.PeerAddress
	if self == "" {
		self = ssc.PeerListen
	}
	var dialOpts []grpc.DialOption
	var serverOpts []grpc.ServerOption
	if ssc.PeerTLS != nil {
		clientCreds, err := peer.ClientCredentials(ssc.PeerTLS)
		if err != nil {
			return fail(err)
		}
		serverCreds, err := peer.ServerCredentials(ssc.PeerTLS)
		if err != nil {
			return fail(err)
		}
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(clientCreds))
		serverOpts = append(serverOpts, grpc.Creds(serverCreds))
	}
	srv.PeerPool = peer.NewPool(self, dialOpts...)

	d := deps.FromStore(st, deps.Dependencies{
		LedgerEvents: &ledgerevents.Set{
			Bitcoin:  srv.MyBtcMonitor,
			Ethereum: srv.MyEthSync,
		},
		ConnectionPool: srv.PeerPool,
		Trades:         trades,
		Seed:           seed,
		Policy:         ssc.Policy,
	})
	srv.Node, err = node.New(d, node.Config{ClockRecheck: clockRecheck, RetryInterval: retryInterval})
	if err != nil {
		return fail(err)
	}
	srv.PeerServer = peer.NewServer(srv.Node, serverOpts...)
	lis, err := net.Listen("tcp", ssc.PeerListen)
	if err != nil {
		return fail(fmt.Errorf("failed to listen on %s: %w", ssc.PeerListen, err))
	}

	// Resume unfinished swaps. Their subscriptions are served once the
	// watchers below start scanning.
	if err := srv.Node.Start(ctx); err != nil {
		lis.Close()
		return fail(fmt.Errorf("failed to start node: %w", err))
	}

	// Important: Turn on the watchers!
	wg.Add(1)
	go func() {
		defer wg.Done()
		srv.MyBtcMonitor.ScanLoop(ctx) // btc-side monitor
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.MyEthSync.Sync(ctx); err != nil { // eth-side synchronizer
			logger.Errorf("eth synchronizer stopped: %v", err)
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		srv.Node.Wait()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.WithField("addr", lis.Addr().String()).Info("peer server listening")
		if err := srv.PeerServer.Serve(lis); err != nil {
			logger.Errorf("peer server stopped: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		srv.PeerServer.Stop()
	}()

	// *** Setup a http server for users ***
	srv.Reporter = reporter.NewHttpReporter(ssc.HttpIp, ssc.HttpPort, srv.Node)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Reporter.Run(ctx); err != nil {
			logger.Errorf("http api stopped: %v", err)
		}
	}()

	return srv, nil
}

// Close releases connections and stores. Call it after the routines are done.
func (s *SwapServer) Close() {
	if s.PeerPool != nil {
		s.PeerPool.Close()
	}
	if s.MyEtherman != nil {
		s.MyEtherman.Close()
	}
	if s.BtcRpcClient != nil {
		s.BtcRpcClient.Close()
	}
	s.Trades.Close()
	s.StateStore.Close()
	s.Db.Close()
}

// Create, then start the swap server and wait.
// Press Ctrl-C to kill the server.
func StartSwapServerAndWait(ssc *SwapServerConfig) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up a signal channel to listen for Ctrl-C (SIGINT) or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Launch a new goroutine to handle the signal
	go func() {
		sig := <-sigCh
		logger.Infof("received signal: %v, cancelling context", sig)
		cancel()
	}()

	var wg sync.WaitGroup

	srv, err := NewSwapServer(ssc, ctx, &wg)
	if err != nil {
		logger.Fatalf("failed to create swap server: %v", err)
		return
	}

	// wait for all routines to finish
	wg.Wait()
	srv.Close()
}
