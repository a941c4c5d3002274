package reporter

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/swap-go/action"
	"github.com/TEENet-io/swap-go/htlc"
	"github.com/TEENet-io/swap-go/ledger"
	"github.com/TEENet-io/swap-go/node"
	"github.com/TEENet-io/swap-go/secret"
	"github.com/TEENet-io/swap-go/statestore"
	"github.com/TEENet-io/swap-go/swap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeService keeps alice's swaps in memory.
type fakeService struct {
	mu      sync.Mutex
	now     time.Time
	swaps   map[uuid.UUID]*swap.Swap
	sources map[uuid.UUID]secret.Source
	peers   []string
	failGet error
}

func newFakeService(now time.Time) *fakeService {
	return &fakeService{
		now:     now,
		swaps:   map[uuid.UUID]*swap.Swap{},
		sources: map[uuid.UUID]secret.Source{},
	}
}

func (f *fakeService) Initiate(_ context.Context, in node.InitiateRequest) (*swap.Swap, error) {
	if in.Peer == "" {
		return nil, node.ErrMissingPeer
	}
	now, _ := f.clock(uuid.Nil)
	req, _, parties := swap.RandRequest(now)
	req.Alpha, req.Beta = in.Alpha, in.Beta
	sw, err := swap.NewRequest(swap.RoleAlice, in.Peer, req, swap.DefaultPolicy())
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.swaps[sw.ID] = sw
	f.sources[sw.ID] = parties.Alice
	return sw, nil
}

func (f *fakeService) Accept(_ context.Context, id uuid.UUID, _ node.AcceptRequest) (*swap.Swap, error) {
	sw, err := f.Get(context.Background(), id)
	if err != nil {
		return nil, err
	}
	if sw.Role != swap.RoleBob {
		return nil, fmt.Errorf("%w: accept as %s", node.ErrWrongRole, sw.Role)
	}
	return sw, nil
}

func (f *fakeService) Decline(ctx context.Context, id uuid.UUID, reason string) (*swap.Swap, error) {
	return f.Accept(ctx, id, node.AcceptRequest{})
}

func (f *fakeService) Get(_ context.Context, id uuid.UUID) (*swap.Swap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return nil, f.failGet
	}
	sw, ok := f.swaps[id]
	if !ok {
		return nil, swap.ErrSwapNotFound
	}
	return sw, nil
}

func (f *fakeService) List(context.Context) ([]*statestore.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*statestore.Summary
	for _, sw := range f.swaps {
		out = append(out, &statestore.Summary{ID: sw.ID, Role: sw.Role, Peer: sw.Peer, Phase: sw.Phase, Status: sw.Status()})
	}
	return out, nil
}

func (f *fakeService) Peers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peers
}

func (f *fakeService) NextActions(ctx context.Context, id uuid.UUID) ([]action.Action, error) {
	sw, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now, src := f.clock(id)
	return sw.NextActions(now, src)
}

func (f *fakeService) Action(ctx context.Context, id uuid.UUID, kind action.Kind) (action.Action, error) {
	sw, err := f.Get(ctx, id)
	if err != nil {
		return action.Action{}, err
	}
	now, src := f.clock(id)
	return sw.Action(kind, now, src)
}

var fundingOutpoint = ledger.NewBitcoinLocation(chainhash.Hash{0x01}, 1)

// fundedSwap is an accepted swap whose alpha leg alice has funded.
func (f *fakeService) fundedSwap(t *testing.T) *swap.Swap {
	now, _ := f.clock(uuid.Nil)
	req, accept, parties := swap.RandRequest(now)
	sw, err := swap.NewRequest(swap.RoleAlice, "bob", req, swap.DefaultPolicy())
	require.NoError(t, err)
	require.NoError(t, sw.Accept(accept))
	require.NoError(t, sw.ObserveFunded(swap.Alpha, htlc.Funding{
		Location: fundingOutpoint,
		Amount:   ledger.NewBitcoinQuantity(100_000_000),
	}, fundingOutpoint.OutPoint.Hash.String(), swap.DefaultPolicy()))

	f.mu.Lock()
	defer f.mu.Unlock()
	f.swaps[sw.ID] = sw
	f.sources[sw.ID] = parties.Alice
	return sw
}

func (f *fakeService) clock(id uuid.UUID) (time.Time, secret.Source) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now, f.sources[id]
}

func (f *fakeService) setNow(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

func startReporter(t *testing.T, svc SwapService) (*HttpReader, *httptest.Server) {
	srv := httptest.NewServer(NewHttpReporter("", "", svc).SetupRouter())
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	return NewHttpReader(host, port), srv
}

func statusOf(t *testing.T, err error) *StatusError {
	var se *StatusError
	require.True(t, errors.As(err, &se), "unexpected error %v", err)
	return se
}

func regtestAddress(t *testing.T) btcutil.Address {
	addr, err := btcutil.NewAddressWitnessPubKeyHash(make([]byte, 20), &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	return addr
}

func TestHello(t *testing.T) {
	hr, _ := startReporter(t, newFakeService(time.Now()))
	msg, err := hr.GetHello()
	require.NoError(t, err)
	assert.Equal(t, "world", msg)
}

func TestInitiateAndGet(t *testing.T) {
	now := time.Now()
	svc := newFakeService(now)
	hr, _ := startReporter(t, svc)

	in := node.InitiateRequest{
		Peer:  "bob:9000",
		Alpha: htlc.NewTerms(ledger.NewBitcoinQuantity(100_000_000), string(ledger.BitcoinRegtest), now.Add(24*time.Hour)),
		Beta:  htlc.NewTerms(ledger.NewBitcoinQuantity(5_000), string(ledger.BitcoinRegtest), now.Add(12*time.Hour)),
	}
	_, err := hr.Initiate(in)
	se := statusOf(t, err)
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.Contains(t, se.Body, `"type":"swap-not-supported"`)

	req, _, _ := swap.RandRequest(now)
	in.Beta = req.Beta
	id, err := hr.Initiate(in)
	require.NoError(t, err)

	view, err := hr.GetSwap(id)
	require.NoError(t, err)
	assert.Equal(t, id.String(), view["id"])
	assert.Equal(t, "alice", view["role"])
	assert.Equal(t, "bob:9000", view["counterparty"])
	assert.Equal(t, "requested", view["status"])
	assert.Empty(t, view["actions"])

	swaps, err := hr.ListSwaps()
	require.NoError(t, err)
	require.Len(t, swaps, 1)
	assert.Equal(t, id.String(), swaps[0]["id"])
}

func TestInitiateBadRequest(t *testing.T) {
	hr, srv := startReporter(t, newFakeService(time.Now()))

	_, err := hr.Initiate(node.InitiateRequest{})
	se := statusOf(t, err)
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.Contains(t, se.Body, `"title":"Bad Request"`)
	assert.Contains(t, se.Body, "unsupported ledger")

	// well formed but without a peer
	resp, err := http.Post(srv.URL+ROUTE_RFC003, "application/json", bytes.NewBufferString("{}"))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), node.ErrMissingPeer.Error())

	resp, err = http.Post(srv.URL+ROUTE_RFC003, "application/json", bytes.NewBufferString("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, problemContentType, resp.Header.Get("Content-Type"))
}

func TestUnknownSwap(t *testing.T) {
	hr, srv := startReporter(t, newFakeService(time.Now()))

	_, err := hr.GetSwap(uuid.New())
	assert.Equal(t, http.StatusNotFound, statusOf(t, err).Status)

	resp, err := http.Get(srv.URL + ROUTE_RFC003 + "/not-a-uuid")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAcceptWrongRole(t *testing.T) {
	svc := newFakeService(time.Now())
	hr, _ := startReporter(t, svc)
	sw := svc.fundedSwap(t)

	se := statusOf(t, hr.Accept(sw.ID, node.AcceptRequest{}))
	assert.Equal(t, http.StatusBadRequest, se.Status)
	se = statusOf(t, hr.Decline(sw.ID, "no"))
	assert.Equal(t, http.StatusBadRequest, se.Status)
}

func TestRefundAction(t *testing.T) {
	now := time.Now()
	svc := newFakeService(now)
	hr, _ := startReporter(t, svc)
	sw := svc.fundedSwap(t)

	view, err := hr.GetSwap(sw.ID)
	require.NoError(t, err)
	assert.Empty(t, view["actions"])
	alpha := view["alpha_ledger"].(map[string]interface{})
	assert.Equal(t, "funded", alpha["state"])
	assert.Equal(t, fundingOutpoint.String(), alpha["htlc_location"])

	query := url.Values{"address": {regtestAddress(t).EncodeAddress()}, "fee_per_byte": {"10"}}
	_, err = hr.GetAction(sw.ID, action.KindRefund, query)
	se := statusOf(t, err)
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.Contains(t, se.Body, `"type":"timelock-not-elapsed"`)

	svc.setNow(now.Add(25 * time.Hour))
	view, err = hr.GetSwap(sw.ID)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{ROUTE_RFC003 + "/" + sw.ID.String() + "/refund"}, view["actions"])

	_, err = hr.GetAction(sw.ID, action.KindRefund, nil)
	se = statusOf(t, err)
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.Contains(t, se.Body, "address")

	out, err := hr.GetAction(sw.ID, action.KindRefund, query)
	require.NoError(t, err)
	assert.Equal(t, "bitcoin-broadcast-signed-transaction", out["type"])
	payload := out["payload"].(map[string]interface{})
	assert.Equal(t, string(ledger.BitcoinRegtest), payload["network"])
	assert.Equal(t, float64(now.Add(24*time.Hour).Unix()), payload["min_median_block_time"])

	raw, err := hex.DecodeString(payload["hex"].(string))
	require.NoError(t, err)
	var tx wire.MsgTx
	require.NoError(t, tx.Deserialize(bytes.NewReader(raw)))
	require.Len(t, tx.TxIn, 1)
	assert.Equal(t, fundingOutpoint.OutPoint, tx.TxIn[0].PreviousOutPoint)
	assert.Equal(t, tx.TxHash().String(), payload["txid"])
	require.Len(t, tx.TxOut, 1)
	assert.Less(t, tx.TxOut[0].Value, int64(100_000_000))
}

func TestActionRoutes(t *testing.T) {
	svc := newFakeService(time.Now())
	hr, srv := startReporter(t, svc)
	sw := svc.fundedSwap(t)

	// alice's fund is done, bob has not funded beta yet
	_, err := hr.GetAction(sw.ID, action.KindRedeem, nil)
	se := statusOf(t, err)
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.Contains(t, se.Body, "action-not-available")

	resp, err := http.Get(srv.URL + ROUTE_RFC003 + "/" + sw.ID.String() + "/launch")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInternalErrorHidesDetail(t *testing.T) {
	svc := newFakeService(time.Now())
	svc.failGet = errors.New("disk on fire")
	hr, _ := startReporter(t, svc)

	_, err := hr.GetSwap(uuid.New())
	se := statusOf(t, err)
	assert.Equal(t, http.StatusInternalServerError, se.Status)
	assert.NotContains(t, se.Body, "disk on fire")
}

func TestPeersAndCors(t *testing.T) {
	svc := newFakeService(time.Now())
	hr, srv := startReporter(t, svc)

	peers, err := hr.GetPeers()
	require.NoError(t, err)
	assert.Empty(t, peers)

	svc.mu.Lock()
	svc.peers = []string{"bob:9000"}
	svc.mu.Unlock()
	peers, err = hr.GetPeers()
	require.NoError(t, err)
	assert.Equal(t, []string{"bob:9000"}, peers)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+ROUTE_RFC003, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(resp.Header.Get("Access-Control-Allow-Methods"), "POST"))
}

func TestRunStopsWithContext(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, err := net.SplitHostPort(lis.Addr().String())
	require.NoError(t, err)
	require.NoError(t, lis.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewHttpReporter("127.0.0.1", port, newFakeService(time.Now())).Run(ctx)
	}()

	hr := NewHttpReader("127.0.0.1", port)
	require.Eventually(t, func() bool {
		_, err := hr.GetHello()
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("reporter did not stop")
	}
}
