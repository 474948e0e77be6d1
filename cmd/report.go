package main

import (
	"encoding/json"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pipeline-reports/internal/export"
	"github.com/sells-group/pipeline-reports/internal/report"
)

const dateFlagLayout = "2006-01-02"

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build a pipeline report and print it as JSON",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return cfg.Validate("report")
	},
}

// reportRunner builds one report for req and returns the value to print.
type reportRunner func(cmd *cobra.Command, svc *report.Service, req report.Request) (any, error)

func newReportCmd(use, short string, run reportRunner) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := requestFromFlags(cmd)
			if err != nil {
				return err
			}
			svc, err := initReportService()
			if err != nil {
				return err
			}

			out, err := run(cmd, svc, req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
}

var reportDailyCmd = newReportCmd("daily", "Composite daily report (cached, paced)",
	func(cmd *cobra.Command, svc *report.Service, req report.Request) (any, error) {
		return svc.DailyReport(cmd.Context(), req)
	})

var reportPipelineCmd = newReportCmd("pipeline", "Won, lost and open partition with per-stage metrics",
	func(cmd *cobra.Command, svc *report.Service, req report.Request) (any, error) {
		return svc.PipelineReport(cmd.Context(), req)
	})

var reportSeguimientoCmd = newReportCmd("seguimiento", "Deals in follow-up stages, split by urgency",
	func(cmd *cobra.Command, svc *report.Service, req report.Request) (any, error) {
		return svc.SeguimientoReport(cmd.Context(), req)
	})

var reportPricesCmd = newReportCmd("prices", "Price per m² against zone benchmarks",
	func(cmd *cobra.Command, svc *report.Service, req report.Request) (any, error) {
		return svc.PriceReport(cmd.Context(), req)
	})

var reportPedidosCmd = newReportCmd("pedidos", "Confirmed orders with payment terms",
	func(cmd *cobra.Command, svc *report.Service, req report.Request) (any, error) {
		view, err := svc.PedidosReport(cmd.Context(), req)
		if err != nil {
			return nil, err
		}
		if path, _ := cmd.Flags().GetString("xlsx"); path != "" {
			f, err := export.PedidosWorkbook(view.Data)
			if err != nil {
				return nil, err
			}
			if err := export.Save(path, f); err != nil {
				return nil, err
			}
			zap.L().Info("report: wrote workbook", zap.String("path", path))
		}
		return view, nil
	})

var reportItemsCmd = newReportCmd("items", "Line items of deals created in a date range",
	func(cmd *cobra.Command, svc *report.Service, req report.Request) (any, error) {
		view, err := svc.ItemsReport(cmd.Context(), req)
		if err != nil {
			return nil, err
		}
		if path, _ := cmd.Flags().GetString("xlsx"); path != "" {
			f, err := export.ItemsWorkbook(view.Data)
			if err != nil {
				return nil, err
			}
			if err := export.Save(path, f); err != nil {
				return nil, err
			}
			zap.L().Info("report: wrote workbook", zap.String("path", path))
		}
		return view, nil
	})

func requestFromFlags(cmd *cobra.Command) (report.Request, error) {
	tenant, _ := cmd.Flags().GetString("tenant")
	pipeline, _ := cmd.Flags().GetString("pipeline")
	date, _ := cmd.Flags().GetString("date")
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")

	if tenant == "" || pipeline == "" {
		return report.Request{}, eris.New("report: --tenant and --pipeline are required")
	}

	loc, err := cfg.Reports.Location()
	if err != nil {
		return report.Request{}, err
	}
	from, err := parseDateFlag("from", fromStr, loc, false)
	if err != nil {
		return report.Request{}, err
	}
	to, err := parseDateFlag("to", toStr, loc, true)
	if err != nil {
		return report.Request{}, err
	}

	return report.Request{
		TenantID:   tenant,
		PipelineID: pipeline,
		Date:       date,
		From:       from,
		To:         to,
	}, nil
}

// parseDateFlag parses a YYYY-MM-DD flag. endOfDay moves the result to the
// last instant of that day.
func parseDateFlag(name, value string, loc *time.Location, endOfDay bool) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(dateFlagLayout, value, loc)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "invalid --%s %q", name, value)
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "encode json")
	}
	return nil
}

func init() {
	reportCmd.PersistentFlags().String("tenant", "", "tenant ID (required)")
	reportCmd.PersistentFlags().String("pipeline", "", "HubSpot pipeline ID (required)")
	reportDailyCmd.Flags().String("date", "", "build the daily report as of this day (YYYY-MM-DD)")
	reportItemsCmd.Flags().String("from", "", "first creation day (YYYY-MM-DD, default start of month)")
	reportItemsCmd.Flags().String("to", "", "last creation day (YYYY-MM-DD)")
	reportItemsCmd.Flags().String("xlsx", "", "also write the report to this XLSX file")
	reportPedidosCmd.Flags().String("xlsx", "", "also write the report to this XLSX file")

	reportCmd.AddCommand(reportDailyCmd, reportPipelineCmd, reportSeguimientoCmd,
		reportPedidosCmd, reportItemsCmd, reportPricesCmd)
	rootCmd.AddCommand(reportCmd)
}

