package handlers

import (
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"stakereferral/internal/events"
	"stakereferral/internal/models"
	"stakereferral/internal/referral"
	"stakereferral/pkg/config"
)

type CreatePartnerRequest struct {
	Partner       string `json:"partner" binding:"required"`
	PayoutAccount string `json:"payout_account" binding:"required"`
	Name          string `json:"name" binding:"required"`
}

// UpdatePartnerRequest 只更新非空字段
type UpdatePartnerRequest struct {
	PayoutAccount    *string               `json:"payout_account"`
	Name             *string               `json:"name"`
	Pause            *bool                 `json:"pause"`
	TransferDuration *uint32               `json:"transfer_duration"`
	OperationFees    *models.OperationFees `json:"operation_fees"`
}

type SetPauseRequest struct {
	Pause *bool `json:"pause" binding:"required"`
}

// SetTierRequest carries fees in basis points
type SetTierRequest struct {
	BaseFee     uint32 `json:"base_fee"`
	MaxFee      uint32 `json:"max_fee"`
	MaxNetStake uint64 `json:"max_net_stake"`
}

// ListPartners returns every partner record
func ListPartners(c *gin.Context) {
	partners, err := Engine.ListPartners(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, partners)
}

// GetPartner returns one partner record
func GetPartner(c *gin.Context) {
	partner, ok := partnerParam(c)
	if !ok {
		return
	}
	state, err := Engine.Partner(c.Request.Context(), partner)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// CreatePartner registers a partner with the configured defaults
func CreatePartner(c *gin.Context) {
	caller, proof, ok := authFrom(c)
	if !ok {
		return
	}
	var request CreatePartnerRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var p keyParser
	in := referral.CreatePartnerInput{
		Partner:       p.key("partner", request.Partner),
		PayoutAccount: p.key("payout_account", request.PayoutAccount),
		Name:          request.Name,
	}
	if p.err != nil {
		respondError(c, p.err)
		return
	}
	state, err := Engine.CreatePartner(c.Request.Context(), caller, proof, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, state)
}

// UpdatePartner applies a partial update
func UpdatePartner(c *gin.Context) {
	caller, proof, ok := authFrom(c)
	if !ok {
		return
	}
	partner, ok := partnerParam(c)
	if !ok {
		return
	}
	var request UpdatePartnerRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in := referral.UpdatePartnerInput{
		Partner:          partner,
		Name:             request.Name,
		Pause:            request.Pause,
		TransferDuration: request.TransferDuration,
		OperationFees:    request.OperationFees,
	}
	if request.PayoutAccount != nil {
		payout, err := parseKey("payout_account", *request.PayoutAccount)
		if err != nil {
			respondError(c, err)
			return
		}
		in.PayoutAccount = &payout
	}
	state, err := Engine.UpdatePartner(c.Request.Context(), caller, proof, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// SetPartnerPause pauses or resumes a partner
func SetPartnerPause(c *gin.Context) {
	caller, proof, ok := authFrom(c)
	if !ok {
		return
	}
	partner, ok := partnerParam(c)
	if !ok {
		return
	}
	var request SetPauseRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := Engine.SetPause(c.Request.Context(), caller, proof, partner, *request.Pause); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"partner": partner.String(), "pause": *request.Pause})
}

// SetPartnerTier replaces the revenue share tier
func SetPartnerTier(c *gin.Context) {
	caller, proof, ok := authFrom(c)
	if !ok {
		return
	}
	partner, ok := partnerParam(c)
	if !ok {
		return
	}
	var request SetTierRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := Engine.SetTier(c.Request.Context(), caller, proof, partner, request.BaseFee, request.MaxFee, request.MaxNetStake)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

// DeletePartner removes a partner record. Admin only.
func DeletePartner(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	partner, ok := partnerParam(c)
	if !ok {
		return
	}
	if err := Engine.DeletePartner(c.Request.Context(), caller, partner); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Partner deleted successfully"})
}

// ListPartnerOperations returns recent proxied operations, newest first
func ListPartnerOperations(c *gin.Context) {
	partner, ok := partnerParam(c)
	if !ok {
		return
	}
	records, err := Engine.Operations(c.Request.Context(), partner, limitQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// ListPartnerSettlements returns recent settlements, newest first
func ListPartnerSettlements(c *gin.Context) {
	partner, ok := partnerParam(c)
	if !ok {
		return
	}
	records, err := Engine.Settlements(c.Request.Context(), partner, limitQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// SettlePartner pays the partner share. With ?async=true the request is
// queued for the worker instead.
func SettlePartner(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	partner, ok := partnerParam(c)
	if !ok {
		return
	}
	if c.Query("async") == "true" {
		enqueueSettle(c, caller, partner)
		return
	}
	record, err := Engine.Settle(c.Request.Context(), caller, partner)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func enqueueSettle(c *gin.Context, caller, partner solana.PublicKey) {
	if SettleQueue == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "settlement queue not configured"})
		return
	}
	// 先检查合作方存在，避免 worker 收到无效消息
	if _, err := Engine.Partner(c.Request.Context(), partner); err != nil {
		respondError(c, err)
		return
	}
	request := events.SettleRequest{
		Partner:     partner.String(),
		Caller:      caller.String(),
		RequestedAt: time.Now().UTC(),
	}
	if err := SettleQueue.Publish(c.Request.Context(), config.SettleRequestsQueue, request); err != nil {
		log.WithError(err).WithField("partner", request.Partner).Error("failed to queue settlement")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, request)
}

// ResetDelayedUnstake clears the delayed unstake counters
func ResetDelayedUnstake(c *gin.Context) {
	caller, proof, ok := authFrom(c)
	if !ok {
		return
	}
	partner, ok := partnerParam(c)
	if !ok {
		return
	}
	if err := Engine.ResetDelayedUnstake(c.Request.Context(), caller, proof, partner); err != nil {
		respondError(c, err)
		return
	}
	state, err := Engine.Partner(c.Request.Context(), partner)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// ListDuePartners returns partners whose transfer window has elapsed
func ListDuePartners(c *gin.Context) {
	partners, err := Engine.DuePartners(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, partners)
}

// SettleDue settles every due partner and reports how many were paid
func SettleDue(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	n, err := Engine.SettleDue(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settled": n})
}
