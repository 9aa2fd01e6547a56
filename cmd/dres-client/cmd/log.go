package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/dres-client/internal/domain/dres"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Send result or interaction logs",
	Long: `Send a log body read from FILE, or from stdin when FILE is "-".
The body is sent as given; its content is not validated.`,
}

var logResultsCmd = &cobra.Command{
	Use:   "results FILE",
	Short: "Send a result log (timestamp, sortType, resultSetAvailability, results, events)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var body dres.QueryResultLog
		if err := readLogBody(cmd, args[0], &body); err != nil {
			return err
		}
		a, err := currentApp()
		if err != nil {
			return err
		}
		client, err := a.login(cmd.Context())
		if err != nil {
			return err
		}
		status, err := client.LogResults(cmd.Context(), body.Timestamp, body.SortType, body.ResultSetAvailability, body.Results, body.Events)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), status)
	},
}

var logEventsCmd = &cobra.Command{
	Use:   "events FILE",
	Short: "Send an interaction log (timestamp, events)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var body dres.QueryEventLog
		if err := readLogBody(cmd, args[0], &body); err != nil {
			return err
		}
		a, err := currentApp()
		if err != nil {
			return err
		}
		client, err := a.login(cmd.Context())
		if err != nil {
			return err
		}
		status, err := client.LogQueryEvents(cmd.Context(), body.Timestamp, body.Events)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), status)
	},
}

func init() {
	logCmd.AddCommand(logResultsCmd, logEventsCmd)
	rootCmd.AddCommand(logCmd)
}

// readLogBody decodes the JSON log body from path, or stdin for "-".
func readLogBody(cmd *cobra.Command, path string, v any) error {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		r = f
	}

	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("failed to parse log body: %w", err)
	}
	return nil
}
