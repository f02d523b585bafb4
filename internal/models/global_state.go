package models

import "time"

const (
	OperatorStrategyList   = "list"
	OperatorStrategyMerkle = "merkle"
)

// GlobalState 全局注册表，只有一行
type GlobalState struct {
	ID                  uint     `gorm:"primarykey" json:"id"`
	AdminAccount        string   `gorm:"column:admin_account;size:44;not null" json:"admin_account"`
	OperatorStrategy    string   `gorm:"column:operator_strategy;size:16;not null;default:list" json:"operator_strategy"`
	Foremen             []string `gorm:"column:foremen;type:text;serializer:json" json:"foremen"`
	OperatorRoot        string   `gorm:"column:operator_root;size:64" json:"operator_root"` // hex
	MsolMint            string   `gorm:"column:msol_mint;size:44;not null" json:"msol_mint"`
	TreasuryMsolAccount string   `gorm:"column:treasury_msol_account;size:44;not null" json:"treasury_msol_account"`
	TreasuryAuthority   string   `gorm:"column:treasury_authority;size:44;not null" json:"treasury_authority"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (GlobalState) TableName() string {
	return "global_state"
}
