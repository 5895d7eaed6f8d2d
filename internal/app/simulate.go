package app

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"chain-alerts/internal/alerting"
)

// SimulateAlert 构造一个合成告警并走真实的路由与推送流程。
func (a *App) SimulateAlert(ctx context.Context, kind string, amount decimal.Decimal) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	router := a.newRouter()
	if router == nil {
		return errors.New("未配置任何告警通道")
	}

	alertKind := alerting.Kind(kind)
	if err := router.Validate([]alerting.Kind{alertKind}); err != nil {
		return err
	}

	alert := alerting.Alert{
		Kind:        alertKind,
		SubLabel:    "simulated",
		TxHash:      common.Hash{},
		Block:       0,
		At:          time.Now().UTC(),
		Participant: common.Address{},
		Amounts: []alerting.Amount{
			{Label: "Amount", Value: amount, Symbol: "TEST"},
		},
		Position: -1,
	}

	a.Logger.Info().Str("kind", kind).Msg("dispatching simulated alert")
	return router.Route(ctx, alert)
}
