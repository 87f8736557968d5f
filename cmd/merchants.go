package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/meilan-group/mallops-cli/internal/model"
)

var merchantsRisk string

var merchantsCmd = &cobra.Command{
	Use:   "merchants",
	Short: "Inspect the merchant roster",
}

var merchantsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List merchants, worst health first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("merchants"); err != nil {
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

		if merchantsRisk != "" {
			level, ok := model.ParseRiskLevel(merchantsRisk)
			if !ok {
				return fmt.Errorf("unknown risk level %q", merchantsRisk)
			}
			filtered := merchants[:0]
			for _, m := range merchants {
				if m.RiskLevel == level {
					filtered = append(filtered, m)
				}
			}
			merchants = filtered
		}

		sort.Slice(merchants, func(i, j int) bool {
			return merchants[i].HealthScore < merchants[j].HealthScore
		})

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tFLOOR\tHEALTH\tRISK")
		for _, m := range merchants {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1f\t%s\n",
				m.ID, m.Name, m.Category, m.Floor, m.HealthScore, m.RiskLevel)
		}
		return w.Flush()
	},
}

func init() {
	merchantsListCmd.Flags().StringVar(&merchantsRisk, "risk", "", "filter by risk level (none|low|medium|high|critical)")
	merchantsCmd.AddCommand(merchantsListCmd)
	rootCmd.AddCommand(merchantsCmd)
}
