package reporter

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/swap-go/action"
	"github.com/TEENet-io/swap-go/htlc"
	"github.com/TEENet-io/swap-go/ledger"
	"github.com/TEENet-io/swap-go/node"
	"github.com/TEENet-io/swap-go/secret"
	"github.com/TEENet-io/swap-go/swap"
)

const problemContentType = "application/problem+json"

// problem is an http error body in the RFC 7807 form.
type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func badRequest(detail string) problem {
	return problem{Type: "about:blank", Title: "Bad Request", Status: http.StatusBadRequest, Detail: detail}
}

// Errors caused by the caller's input.
var invalidInput = []error{
	swap.ErrMissingID,
	swap.ErrTimelockGap,
	swap.ErrInvalidPhase,
	node.ErrWrongRole,
	node.ErrMissingPeer,
	node.ErrIdentityNotOwned,
	node.ErrDuplicateSwap,
	htlc.ErrZeroAmount,
	htlc.ErrMalformedParams,
	ledger.ErrInvalidIdentity,
	ledger.ErrUnknownNetwork,
	ledger.ErrInvalidQuantity,
	ledger.ErrInvalidExpiry,
	ledger.ErrAssetMismatch,
	secret.ErrInvalidHash,
}

func problemFor(err error) problem {
	switch {
	case errors.Is(err, swap.ErrSwapNotFound):
		return problem{Type: "about:blank", Title: "Swap not found", Status: http.StatusNotFound}
	case errors.Is(err, swap.ErrSwapNotSupported), errors.Is(err, ledger.ErrUnsupportedLedger):
		return problem{Type: "swap-not-supported", Title: "Swap not supported", Status: http.StatusBadRequest, Detail: err.Error()}
	case errors.Is(err, action.ErrTimelockNotElapsed):
		return problem{Type: "timelock-not-elapsed", Title: "Timelock not elapsed", Status: http.StatusBadRequest, Detail: err.Error()}
	case errors.Is(err, swap.ErrActionNotAvailable):
		return problem{Type: "action-not-available", Title: "Action not available", Status: http.StatusNotFound}
	case errors.Is(err, swap.ErrVersionConflict):
		return problem{Type: "about:blank", Title: "Conflict", Status: http.StatusConflict, Detail: err.Error()}
	}
	for _, target := range invalidInput {
		if errors.Is(err, target) {
			return badRequest(err.Error())
		}
	}
	return problem{Type: "about:blank", Title: "Internal Server Error", Status: http.StatusInternalServerError}
}

func abortWithProblem(c *gin.Context, p problem) {
	c.Header("Content-Type", problemContentType)
	c.AbortWithStatusJSON(p.Status, p)
}

func abortWithError(c *gin.Context, err error) {
	p := problemFor(err)
	if p.Status == http.StatusInternalServerError {
		logger.WithFields(logger.Fields{
			"path":  c.Request.URL.Path,
			"error": err,
		}).Error("request failed")
	}
	abortWithProblem(c, p)
}

// cors echoes the caller's origin so browser clients on any origin may
// call the api.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logger.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start),
		}).Debug("http request")
	}
}
