package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meilan-group/mallops-cli/internal/model"
	"github.com/meilan-group/mallops-cli/pkg/notion"
)

var reportPeriod string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Push the risk summary to the operations team's Notion database",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("report"); err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		merchants, err := st.GetAllMerchants(ctx)
		if err != nil {
			return err
		}

		var rows []notion.ReportRow
		for _, m := range merchants {
			if m.RiskLevel.Severity() < model.RiskMedium.Severity() {
				continue
			}
			rows = append(rows, notion.ReportRow{
				MerchantID:  m.ID,
				Name:        m.Name,
				RiskLevel:   string(m.RiskLevel),
				HealthScore: m.HealthScore,
				Summary:     fmt.Sprintf("健康分 %.1f，位于 %s，业态 %s", m.HealthScore, m.Floor, m.Category),
			})
		}

		period := reportPeriod
		if period == "" {
			year, week := time.Now().ISOWeek()
			period = fmt.Sprintf("%d-W%02d", year, week)
		}

		client := notion.NewClient(cfg.Notion.Token)
		res, err := notion.UpsertRiskSummary(ctx, client, cfg.Notion.RiskDB, period, rows)
		if err != nil {
			return eris.Wrap(err, "report")
		}

		zap.L().Info("report complete",
			zap.String("period", period),
			zap.Int("rows", len(rows)),
			zap.Int("created", res.Created),
			zap.Int("updated", res.Updated),
		)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportPeriod, "period", "", "report period label (default: current ISO week)")
	rootCmd.AddCommand(reportCmd)
}
