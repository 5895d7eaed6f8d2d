package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateKind   string
	simulateAmount float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "构造一个合成告警并触发真实推送",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateKind == "" {
			return errors.New("--kind 不能为空")
		}
		if simulateAmount < 0 {
			return errors.New("--amount 不能为负数")
		}

		amount := decimal.NewFromFloat(simulateAmount)
		return getApp().SimulateAlert(cmd.Context(), simulateKind, amount)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateKind, "kind", "", "告警类型 (large-mint, solver-settlement, ...)")
	simulateCmd.Flags().Float64Var(&simulateAmount, "amount", 0, "合成告警携带的数量")
}
