package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"stakereferral/internal/models"
	"stakereferral/internal/referral"
)

type TokenAccountRequest struct {
	OwnerAddress   string `json:"owner_address" binding:"required"`
	Mint           string `json:"mint" binding:"required"`
	AccountAddress string `json:"account_address" binding:"required"`
}

type ApproveDelegateRequest struct {
	Delegate string `json:"delegate"`
}

// ListTokenAccounts returns ledger accounts, filtered by ?owner= when given
func ListTokenAccounts(c *gin.Context) {
	owner := c.Query("owner")
	if owner != "" {
		if _, err := parseKey("owner", owner); err != nil {
			respondError(c, err)
			return
		}
	}
	accounts, err := Accounts.ListAccounts(c.Request.Context(), owner)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, accounts)
}

// GetTokenAccount returns a specific token account by address
func GetTokenAccount(c *gin.Context) {
	address, err := parseKey("address", c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}
	var account *models.TokenAccount
	err = Accounts.Atomic(c.Request.Context(), func(tx referral.Tx) error {
		account, err = tx.Ledger().Account(c.Request.Context(), address)
		return err
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// CreateTokenAccount opens an empty ledger account. Balances only change
// through proxied operations.
func CreateTokenAccount(c *gin.Context) {
	var request TokenAccountRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	account := models.TokenAccount{
		OwnerAddress:   request.OwnerAddress,
		Mint:           request.Mint,
		AccountAddress: request.AccountAddress,
	}
	if err := Accounts.OpenAccount(c.Request.Context(), account); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

// ApproveDelegate sets or clears the delegate of an account. The caller
// must own it.
func ApproveDelegate(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	address, err := parseKey("address", c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}
	var request ApproveDelegateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if request.Delegate != "" {
		if _, err := parseKey("delegate", request.Delegate); err != nil {
			respondError(c, err)
			return
		}
	}
	err = Accounts.Approve(c.Request.Context(), address.String(), caller.String(), request.Delegate)
	if errors.Is(err, referral.ErrUnauthorized) {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "kind": referral.KindAuthorization.String()})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_address": address.String(), "delegate_address": request.Delegate})
}
