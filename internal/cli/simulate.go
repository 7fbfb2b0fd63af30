package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	simulateApproved int64
	simulateTotal    int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次低通过率并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateTotal <= 0 || simulateApproved < 0 {
			return errors.New("--total 必须大于 0 且 --approved 不能为负")
		}
		return getApp().SimulateAlert(cmd.Context(), simulateApproved, simulateTotal)
	},
}

func init() {
	simulateCmd.Flags().Int64Var(&simulateApproved, "approved", 0, "通过交易数")
	simulateCmd.Flags().Int64Var(&simulateTotal, "total", 0, "总交易数")
}
