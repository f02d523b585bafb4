package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"

	"stakereferral/internal/models"
	"stakereferral/internal/referral"
)

const (
	HeaderCaller        = "X-Caller"
	HeaderOperatorIndex = "X-Operator-Index"
	HeaderOperatorProof = "X-Operator-Proof"

	defaultLimit = 50
	maxLimit     = 500
)

// AccountStore is the ledger backend behind the token account endpoints.
type AccountStore interface {
	referral.Store
	OpenAccount(ctx context.Context, account models.TokenAccount) error
	Approve(ctx context.Context, address, owner, delegate string) error
	ListAccounts(ctx context.Context, owner string) ([]models.TokenAccount, error)
}

// QueuePublisher is satisfied by *config.Publisher.
type QueuePublisher interface {
	Publish(ctx context.Context, queueName string, message interface{}) error
}

// 由 cmd/api 在启动时注入
var (
	Engine       *referral.Engine
	Accounts     AccountStore
	SettleQueue  QueuePublisher
	RPCEndpoints []string
)

// statusFor maps an engine error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	switch referral.KindOf(err) {
	case referral.KindAuthorization:
		return http.StatusForbidden
	case referral.KindValidation:
		return http.StatusBadRequest
	case referral.KindState:
		return http.StatusConflict
	case referral.KindNotFound:
		return http.StatusNotFound
	case referral.KindArithmetic:
		return http.StatusUnprocessableEntity
	case referral.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error(), "kind": referral.KindOf(err).String()})
}

// callerFrom reads the acting identity. It writes the error response and
// returns false when the header is missing or malformed.
func callerFrom(c *gin.Context) (solana.PublicKey, bool) {
	raw := c.GetHeader(HeaderCaller)
	if raw == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing " + HeaderCaller + " header"})
		return solana.PublicKey{}, false
	}
	key, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + HeaderCaller + " header"})
		return solana.PublicKey{}, false
	}
	return key, true
}

// proofFrom reads an optional merkle operator proof. No index header means
// no proof.
func proofFrom(c *gin.Context) (*referral.OperatorProof, bool) {
	rawIndex := c.GetHeader(HeaderOperatorIndex)
	if rawIndex == "" {
		return nil, true
	}
	index, err := strconv.ParseUint(rawIndex, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + HeaderOperatorIndex + " header"})
		return nil, false
	}
	proof, err := referral.ParseOperatorProof(index, c.GetHeader(HeaderOperatorProof))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return proof, true
}

// authFrom reads the caller and the optional proof.
func authFrom(c *gin.Context) (solana.PublicKey, *referral.OperatorProof, bool) {
	caller, ok := callerFrom(c)
	if !ok {
		return caller, nil, false
	}
	proof, ok := proofFrom(c)
	return caller, proof, ok
}

func parseKey(field, value string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %s %q", referral.ErrInvalidAddress, field, value)
	}
	return key, nil
}

// keyParser decodes several base58 fields and keeps the first error.
type keyParser struct{ err error }

func (p *keyParser) key(field, value string) solana.PublicKey {
	if p.err != nil {
		return solana.PublicKey{}
	}
	key, err := parseKey(field, value)
	p.err = err
	return key
}

func partnerParam(c *gin.Context) (solana.PublicKey, bool) {
	key, err := parseKey("partner", c.Param("partner"))
	if err != nil {
		respondError(c, err)
		return key, false
	}
	return key, true
}

func limitQuery(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
