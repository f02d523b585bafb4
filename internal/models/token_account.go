package models

import "time"

// TokenAccount is one balance in the custodial ledger. Native SOL balances
// use the wrapped-SOL mint so every balance has the same shape.
type TokenAccount struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerAddress    string    `gorm:"size:100;not null;index" json:"owner_address"`
	DelegateAddress string    `gorm:"size:100" json:"delegate_address"`
	Mint            string    `gorm:"size:100;not null" json:"mint"`
	AccountAddress  string    `gorm:"size:100;uniqueIndex;not null" json:"account_address"`
	Amount          uint64    `gorm:"not null;default:0" json:"amount"`
	IsClose         bool      `gorm:"default:false" json:"is_close"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TokenAccount) TableName() string {
	return "token_account"
}

// Authorizes reports whether signer may move funds out of the account.
func (a *TokenAccount) Authorizes(signer string) bool {
	return signer != "" && (signer == a.OwnerAddress || signer == a.DelegateAddress)
}
