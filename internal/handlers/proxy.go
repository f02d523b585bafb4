package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stakereferral/internal/referral"
)

type DepositRequest struct {
	Partner       string `json:"partner" binding:"required"`
	PayoutAccount string `json:"payout_account" binding:"required"`
	TransferFrom  string `json:"transfer_from" binding:"required"`
	MintTo        string `json:"mint_to" binding:"required"`
	Lamports      uint64 `json:"lamports" binding:"required"`
}

type DepositStakeAccountRequest struct {
	Partner        string `json:"partner" binding:"required"`
	PayoutAccount  string `json:"payout_account" binding:"required"`
	StakeAccount   string `json:"stake_account" binding:"required"`
	MintTo         string `json:"mint_to" binding:"required"`
	ValidatorIndex uint32 `json:"validator_index"`
}

type LiquidUnstakeRequest struct {
	Partner       string `json:"partner" binding:"required"`
	PayoutAccount string `json:"payout_account" binding:"required"`
	GetMsolFrom   string `json:"get_msol_from" binding:"required"`
	TransferSolTo string `json:"transfer_sol_to" binding:"required"`
	MsolAmount    uint64 `json:"msol_amount" binding:"required"`
}

type OrderUnstakeRequest struct {
	Partner       string `json:"partner" binding:"required"`
	PayoutAccount string `json:"payout_account" binding:"required"`
	BurnMsolFrom  string `json:"burn_msol_from" binding:"required"`
	TicketAccount string `json:"ticket_account" binding:"required"`
	MsolAmount    uint64 `json:"msol_amount" binding:"required"`
}

func respondOperation(c *gin.Context, result *referral.OperationResult, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ProxyDeposit stakes SOL through the proxy
func ProxyDeposit(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var request DepositRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var p keyParser
	req := referral.DepositRequest{
		Partner:       p.key("partner", request.Partner),
		PayoutAccount: p.key("payout_account", request.PayoutAccount),
		TransferFrom:  p.key("transfer_from", request.TransferFrom),
		MintTo:        p.key("mint_to", request.MintTo),
		Lamports:      request.Lamports,
	}
	if p.err != nil {
		respondError(c, p.err)
		return
	}
	result, err := Engine.Deposit(c.Request.Context(), caller, req)
	respondOperation(c, result, err)
}

// ProxyDepositStakeAccount converts a stake position through the proxy
func ProxyDepositStakeAccount(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var request DepositStakeAccountRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var p keyParser
	req := referral.DepositStakeRequest{
		Partner:        p.key("partner", request.Partner),
		PayoutAccount:  p.key("payout_account", request.PayoutAccount),
		StakeAccount:   p.key("stake_account", request.StakeAccount),
		MintTo:         p.key("mint_to", request.MintTo),
		ValidatorIndex: request.ValidatorIndex,
	}
	if p.err != nil {
		respondError(c, p.err)
		return
	}
	result, err := Engine.DepositStakeAccount(c.Request.Context(), caller, req)
	respondOperation(c, result, err)
}

// ProxyLiquidUnstake swaps mSOL for SOL through the proxy
func ProxyLiquidUnstake(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var request LiquidUnstakeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var p keyParser
	req := referral.LiquidUnstakeRequest{
		Partner:       p.key("partner", request.Partner),
		PayoutAccount: p.key("payout_account", request.PayoutAccount),
		GetMsolFrom:   p.key("get_msol_from", request.GetMsolFrom),
		TransferSolTo: p.key("transfer_sol_to", request.TransferSolTo),
		MsolAmount:    request.MsolAmount,
	}
	if p.err != nil {
		respondError(c, p.err)
		return
	}
	result, err := Engine.LiquidUnstake(c.Request.Context(), caller, req)
	respondOperation(c, result, err)
}

// ProxyOrderUnstake opens a delayed unstake ticket through the proxy
func ProxyOrderUnstake(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var request OrderUnstakeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var p keyParser
	req := referral.OrderUnstakeRequest{
		Partner:       p.key("partner", request.Partner),
		PayoutAccount: p.key("payout_account", request.PayoutAccount),
		BurnMsolFrom:  p.key("burn_msol_from", request.BurnMsolFrom),
		TicketAccount: p.key("ticket_account", request.TicketAccount),
		MsolAmount:    request.MsolAmount,
	}
	if p.err != nil {
		respondError(c, p.err)
		return
	}
	result, err := Engine.OrderUnstake(c.Request.Context(), caller, req)
	respondOperation(c, result, err)
}
