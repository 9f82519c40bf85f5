package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tcncore/internal/crypto"
	"tcncore/internal/domain"
)

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Fetch new reports from the relay and match them",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := appCtx.Matching.Sync(cmd.Context())
			printBatch(cmd, res)
			return err
		},
	}
}

func processCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process <file>...",
		Short: "Match reports read from files, one base64 report per line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var batch [][]byte
			for _, path := range args {
				reports, err := readReportFile(path)
				if err != nil {
					return err
				}
				batch = append(batch, reports...)
			}
			res, err := appCtx.Matching.ProcessNewReports(cmd.Context(), batch)
			printBatch(cmd, res)
			return err
		},
	}
}

func readReportFile(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out [][]byte
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		raw, err := crypto.UnB64(text)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		out = append(out, raw)
	}
	return out, sc.Err()
}

func printBatch(cmd *cobra.Command, res domain.BatchResult) {
	out(cmd, "matched %d, no match %d, rejected %d, already processed %d\n",
		res.Matched, res.NoMatch, res.Rejected, res.Duplicate)
}

func alertsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List exposure alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := appCtx.Alerts.List()
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}
			if len(list) == 0 {
				out(cmd, "no alerts\n")
				return nil
			}
			for _, a := range list {
				mark := " "
				if !a.Read {
					mark = "*"
				}
				out(cmd, "%s %s  %s .. %s  min %.1fm avg %.1fm  %d samples\n",
					mark, a.ReportID,
					a.ContactStart.Local().Format("2006-01-02 15:04"),
					a.ContactEnd.Local().Format("2006-01-02 15:04"),
					a.MinDistance, a.AvgDistance, a.Samples)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print alerts as JSON")
	return cmd
}

func readCmd() *cobra.Command {
	var unread bool
	cmd := &cobra.Command{
		Use:   "read <report-id>",
		Short: "Mark an alert read or unread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return appCtx.Alerts.MarkRead(domain.ReportID(args[0]), !unread)
		},
	}
	cmd.Flags().BoolVar(&unread, "unread", false, "mark as unread instead")
	return cmd
}

func dismissCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss <report-id>",
		Short: "Dismiss an alert for good",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := appCtx.Alerts.Delete(domain.ReportID(args[0])); err != nil {
				return err
			}
			out(cmd, "dismissed\n")
			return nil
		},
	}
}
