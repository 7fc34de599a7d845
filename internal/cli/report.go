package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mamadbah2/kisaan/internal/service/reporting"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate, store and publish the inventory report once",
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, _ []string) error {
	a, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	svc, err := a.reportingService(cmd.Context())
	if err != nil {
		return err
	}

	report, err := svc.Run(cmd.Context(), time.Now())
	if err != nil {
		return fmt.Errorf("inventory report failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), reporting.FormatSummary(report))
	return nil
}
