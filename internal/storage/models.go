package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertRecord captures an emitted alert for auditing and reporting.
type AlertRecord struct {
	ID        int64
	Kind      string
	SubLabel  string
	TxHash    string
	Block     int64
	Amount    decimal.Decimal
	Channel   string
	Delivered bool
	CreatedAt time.Time
}
