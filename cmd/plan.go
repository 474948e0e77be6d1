package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/pipeline-reports/internal/report"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate and inspect deal action plans",
}

// -- plan generate --

var planGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Draft a new action plan for a deal and store it",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("plan"); err != nil {
			return err
		}

		tenant, _ := cmd.Flags().GetString("tenant")
		pipeline, _ := cmd.Flags().GetString("pipeline")
		dealID, _ := cmd.Flags().GetString("deal")
		if tenant == "" || pipeline == "" || dealID == "" {
			return eris.New("plan generate: --tenant, --pipeline and --deal are required")
		}
		force, _ := cmd.Flags().GetBool("force")

		svc, err := initReportService()
		if err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		deal, err := svc.Deal(ctx, report.Request{TenantID: tenant, PipelineID: pipeline}, dealID)
		if err != nil {
			return err
		}

		gen := initPlanGenerator(st)
		if force {
			p, err := gen.Generate(ctx, tenant, *deal)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), p)
		}
		p, err := gen.GetOrGenerate(ctx, tenant, *deal)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), p)
	},
}

// -- plan show --

var planShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored action plan for a deal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		tenant, _ := cmd.Flags().GetString("tenant")
		dealID, _ := cmd.Flags().GetString("deal")
		if tenant == "" || dealID == "" {
			return eris.New("plan show: --tenant and --deal are required")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		p, err := st.GetPlan(ctx, tenant, dealID)
		if err != nil {
			return eris.Wrap(err, "plan show")
		}
		if p == nil {
			fmt.Fprintln(os.Stderr, "No live plan for this deal.")
			return nil
		}
		return writeJSON(cmd.OutOrStdout(), p)
	},
}

func init() {
	planCmd.PersistentFlags().String("tenant", "", "tenant ID (required)")
	planCmd.PersistentFlags().String("deal", "", "HubSpot deal ID (required)")
	planGenerateCmd.Flags().String("pipeline", "", "HubSpot pipeline ID (required)")
	planGenerateCmd.Flags().Bool("force", false, "replace a live plan instead of reusing it")

	planCmd.AddCommand(planGenerateCmd, planShowCmd)
	rootCmd.AddCommand(planCmd)
}
