package model

import (
	"time"

	"gorm.io/datatypes"
)

// OrderEventModel is one persisted engine state transition. The ledger
// is an observer of the engine, never an owner: engine state lives in
// memory and is rebuilt fresh per session.
type OrderEventModel struct {
	ID        uint           `gorm:"primaryKey;autoIncrement"`
	OrderID   string         `gorm:"index;size:64"`
	OrderKind string         `gorm:"size:16"`
	Symbol    string         `gorm:"index;size:32"`
	EventType string         `gorm:"size:24"`
	Detail    datatypes.JSON `gorm:"type:json"`
	At        time.Time      `gorm:"index"`
	CreatedAt time.Time
}

func (OrderEventModel) TableName() string { return "order_events" }

// FillModel is one persisted execution record.
type FillModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	OrderID   string `gorm:"index;size:64"`
	Symbol    string `gorm:"index;size:32"`
	Side      string `gorm:"size:8"`
	Amount    float64
	Price     float64
	Fee       float64
	Reference string `gorm:"size:64"`
	Timestamp time.Time
	CreatedAt time.Time
}

func (FillModel) TableName() string { return "fills" }
