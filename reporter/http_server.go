// This is the http api of a swap node.
// It reads swaps from the node service and publishes them on http routes,
// and forwards initiate/accept/decline commands to the service.

package reporter

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/swap-go/action"
	"github.com/TEENet-io/swap-go/node"
	"github.com/TEENet-io/swap-go/statestore"
	"github.com/TEENet-io/swap-go/swap"
)

const (
	ROUTE_HELLO   = "/hello"
	ROUTE_SWAPS   = "/swaps"
	ROUTE_RFC003  = "/swaps/rfc003"
	ROUTE_SWAP    = "/swaps/rfc003/:id"
	ROUTE_ACCEPT  = "/swaps/rfc003/:id/accept"
	ROUTE_DECLINE = "/swaps/rfc003/:id/decline"
	ROUTE_ACTION  = "/swaps/rfc003/:id/:action"
	ROUTE_PEERS   = "/peers"

	shutdownTimeout = 5 * time.Second
)

// SwapService is what the routes need from the node.
type SwapService interface {
	Initiate(ctx context.Context, in node.InitiateRequest) (*swap.Swap, error)
	Accept(ctx context.Context, id uuid.UUID, in node.AcceptRequest) (*swap.Swap, error)
	Decline(ctx context.Context, id uuid.UUID, reason string) (*swap.Swap, error)
	Get(ctx context.Context, id uuid.UUID) (*swap.Swap, error)
	List(ctx context.Context) ([]*statestore.Summary, error)
	Peers() []string
	NextActions(ctx context.Context, id uuid.UUID) ([]action.Action, error)
	Action(ctx context.Context, id uuid.UUID, kind action.Kind) (action.Action, error)
}

type HttpReporter struct {
	serverIP   string // listen ip
	serverPort string // listen port

	svc SwapService
}

func NewHttpReporter(serverIP string, serverPort string, svc SwapService) *HttpReporter {
	return &HttpReporter{
		serverIP:   serverIP,
		serverPort: serverPort,
		svc:        svc,
	}
}

// Hook up routes & handlers
func (h *HttpReporter) SetupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), cors())

	router.GET(ROUTE_HELLO, Hello)
	router.GET(ROUTE_SWAPS, h.ListSwaps)
	router.POST(ROUTE_RFC003, h.Initiate)
	router.GET(ROUTE_SWAP, h.GetSwap)
	router.POST(ROUTE_ACCEPT, h.Accept)
	router.POST(ROUTE_DECLINE, h.Decline)
	router.GET(ROUTE_ACTION, h.Action)
	router.GET(ROUTE_PEERS, h.Peers)

	return router
}

// Run serves until ctx is done.
func (h *HttpReporter) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    h.serverIP + ":" + h.serverPort,
		Handler: h.SetupRouter(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", srv.Addr).Info("http api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Info("http api stopped")
		return nil
	}
}

func Hello(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "world",
	})
}

func (h *HttpReporter) ListSwaps(c *gin.Context) {
	summaries, err := h.svc.List(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	if summaries == nil {
		summaries = []*statestore.Summary{}
	}
	c.JSON(http.StatusOK, gin.H{"swaps": summaries})
}

func (h *HttpReporter) Initiate(c *gin.Context) {
	var in node.InitiateRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		abortWithProblem(c, badRequest(err.Error()))
		return
	}
	sw, err := h.svc.Initiate(c.Request.Context(), in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Location", ROUTE_RFC003+"/"+sw.ID.String())
	c.JSON(http.StatusCreated, gin.H{"id": sw.ID})
}

func (h *HttpReporter) GetSwap(c *gin.Context) {
	id, ok := swapID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	sw, err := h.svc.Get(ctx, id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	actions, err := h.svc.NextActions(ctx, id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSwapView(sw, actions))
}

func (h *HttpReporter) Accept(c *gin.Context) {
	id, ok := swapID(c)
	if !ok {
		return
	}
	var in node.AcceptRequest
	// an empty body derives both identities
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&in); err != nil {
			abortWithProblem(c, badRequest(err.Error()))
			return
		}
	}
	if _, err := h.svc.Accept(c.Request.Context(), id, in); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *HttpReporter) Decline(c *gin.Context) {
	id, ok := swapID(c)
	if !ok {
		return
	}
	var in node.DeclineBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&in); err != nil {
			abortWithProblem(c, badRequest(err.Error()))
			return
		}
	}
	if _, err := h.svc.Decline(c.Request.Context(), id, in.Reason); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// Action returns one action of the swap. A bitcoin spend comes back as a
// signed transaction paying to the address query parameter.
func (h *HttpReporter) Action(c *gin.Context) {
	id, ok := swapID(c)
	if !ok {
		return
	}
	kind, err := action.ParseKind(c.Param("action"))
	if err != nil {
		abortWithProblem(c, problem{
			Type:   "about:blank",
			Title:  "Not Found",
			Status: http.StatusNotFound,
			Detail: err.Error(),
		})
		return
	}
	a, err := h.svc.Action(c.Request.Context(), id, kind)
	if err != nil {
		abortWithError(c, err)
		return
	}

	spend, ok := a.Payload.(action.SpendOutput)
	if !ok {
		c.JSON(http.StatusOK, a)
		return
	}
	signed, err := signSpend(c, spend)
	if err != nil {
		abortWithProblem(c, badRequest(err.Error()))
		return
	}
	if a.InvalidUntil != nil {
		ts := a.InvalidUntil.Unix()
		signed.MinMedianBlockTime = &ts
	}
	c.JSON(http.StatusOK, gin.H{
		"type":    "bitcoin-broadcast-signed-transaction",
		"payload": signed,
	})
}

func (h *HttpReporter) Peers(c *gin.Context) {
	peers := h.svc.Peers()
	if peers == nil {
		peers = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"peers": peers})
}

type signedTx struct {
	Hex                string `json:"hex"`
	TxID               string `json:"txid"`
	Network            string `json:"network"`
	MinMedianBlockTime *int64 `json:"min_median_block_time,omitempty"`
}

var (
	errMissingAddress = errors.New("query parameter address is required")
	errMissingFeeRate = errors.New("query parameter fee_per_byte is required")
)

func signSpend(c *gin.Context, spend action.SpendOutput) (*signedTx, error) {
	addrStr := c.Query("address")
	if addrStr == "" {
		return nil, errMissingAddress
	}
	feeStr := c.Query("fee_per_byte")
	if feeStr == "" {
		return nil, errMissingFeeRate
	}
	params, err := spend.Network.Params()
	if err != nil {
		return nil, err
	}
	dest, err := btcutil.DecodeAddress(addrStr, params)
	if err != nil {
		return nil, err
	}
	if !dest.IsForNet(params) {
		return nil, errors.New("address belongs to another network")
	}
	fee, err := strconv.ParseUint(feeStr, 10, 32)
	if err != nil {
		return nil, errors.New("fee_per_byte must be a positive integer")
	}
	tx, err := spend.SpendTo(dest, btcutil.Amount(fee))
	if err != nil {
		return nil, err
	}
	raw, err := serializeTx(tx)
	if err != nil {
		return nil, err
	}
	return &signedTx{
		Hex:     hex.EncodeToString(raw),
		TxID:    tx.TxHash().String(),
		Network: string(spend.Network),
	}, nil
}

func swapID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithProblem(c, badRequest("invalid swap id"))
		return uuid.Nil, false
	}
	return id, true
}
