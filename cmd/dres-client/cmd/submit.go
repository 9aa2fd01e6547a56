package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/dres-client/internal/service"
)

var (
	submitEvaluation string
	submitStart      int64
	submitEnd        int64
	submitCollection string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit an item or a text answer",
	Long: `Submit an answer to an evaluation. Without --evaluation there is no
selected evaluation and the submission is refused before anything is sent.

Examples:
  dres-client submit item v_00123 --start 1000 --end 4000 --evaluation E1
  dres-client submit text "red car" --evaluation E1`,
}

var submitItemCmd = &cobra.Command{
	Use:   "item NAME",
	Short: "Submit a media item, optionally with a time range in milliseconds",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmitItem,
}

var submitTextCmd = &cobra.Command{
	Use:   "text TEXT",
	Short: "Submit a free-text answer",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmitText,
}

func init() {
	submitCmd.PersistentFlags().StringVar(&submitEvaluation, "evaluation", "", "evaluation id")
	submitItemCmd.Flags().Int64Var(&submitStart, "start", 0, "segment start in milliseconds")
	submitItemCmd.Flags().Int64Var(&submitEnd, "end", 0, "segment end in milliseconds")
	submitItemCmd.Flags().StringVar(&submitCollection, "collection", "", "media collection name")

	submitCmd.AddCommand(submitItemCmd, submitTextCmd)
	rootCmd.AddCommand(submitCmd)
}

func runSubmitItem(cmd *cobra.Command, args []string) error {
	a, err := currentApp()
	if err != nil {
		return err
	}
	client, err := a.loginWithEvaluation(cmd.Context(), submitEvaluation)
	if err != nil {
		return err
	}

	opts := service.SubmitOptions{Collection: submitCollection}
	if cmd.Flags().Changed("start") {
		start := submitStart
		opts.Start = &start
	}
	if cmd.Flags().Changed("end") {
		end := submitEnd
		opts.End = &end
	}

	status, err := client.SubmitItem(cmd.Context(), args[0], opts)
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), status)
}

func runSubmitText(cmd *cobra.Command, args []string) error {
	a, err := currentApp()
	if err != nil {
		return err
	}
	client, err := a.loginWithEvaluation(cmd.Context(), submitEvaluation)
	if err != nil {
		return err
	}

	status, err := client.SubmitText(cmd.Context(), args[0], "")
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), status)
}
