package models

import (
	"time"

	"gorm.io/gorm"
)

// DBPriceTick represents a streamed underlying price in the database
type DBPriceTick struct {
	gorm.Model
	Symbol    string    `gorm:"index:idx_tick_symbol_timestamp"`
	Timestamp time.Time `gorm:"index:idx_tick_symbol_timestamp"`
	Price     float64
	Source    string
}

// DBChainSnapshot represents one computed option chain and its inputs
type DBChainSnapshot struct {
	gorm.Model
	Symbol          string `gorm:"index"`
	UnderlyingPrice float64
	Expiry          time.Time
	RiskFreeRate    float64
	Volatility      float64
	StrikeRange     float64
	StrikeStep      float64
	ComputedAt      time.Time    `gorm:"index"`
	Rows            []DBChainRow `gorm:"foreignKey:SnapshotID;constraint:OnDelete:CASCADE"`
}

// DBChainRow represents a single strike of a stored chain
type DBChainRow struct {
	gorm.Model
	SnapshotID uint `gorm:"index"`
	Strike     float64
	IsATM      bool

	// Call side
	CallPrice float64
	CallDelta float64
	CallGamma float64
	CallTheta float64
	CallVega  float64
	CallRho   float64

	// Put side
	PutPrice float64
	PutDelta float64
	PutGamma float64
	PutTheta float64
	PutVega  float64
	PutRho   float64
}

// TableName overrides for cleaner table names
func (DBPriceTick) TableName() string {
	return "price_ticks"
}

func (DBChainSnapshot) TableName() string {
	return "chain_snapshots"
}

func (DBChainRow) TableName() string {
	return "chain_rows"
}
