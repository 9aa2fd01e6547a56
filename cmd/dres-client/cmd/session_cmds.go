package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

var taskEvaluation string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and print the user",
	Long: `Log in with the configured credentials and print the user DRES
returned, including the session id.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := currentApp()
		if err != nil {
			return err
		}
		client, err := a.login(cmd.Context())
		if err != nil {
			return err
		}
		user, _ := client.User()
		return render(cmd.OutOrStdout(), user)
	},
}

var evaluationsCmd = &cobra.Command{
	Use:     "evaluations",
	Aliases: []string{"evals"},
	Short:   "List the evaluations visible to the user",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := currentApp()
		if err != nil {
			return err
		}
		client, err := a.login(cmd.Context())
		if err != nil {
			return err
		}
		evaluations, err := client.ListEvaluations(cmd.Context())
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), evaluations)
	},
}

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Print the current task of an evaluation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := currentApp()
		if err != nil {
			return err
		}
		client, err := a.loginWithEvaluation(cmd.Context(), taskEvaluation)
		if err != nil {
			return err
		}
		task, err := client.CurrentTask(cmd.Context(), "")
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), task)
	},
}

type statusView struct {
	Endpoint   string    `json:"endpoint"`
	TimeStamp  int64     `json:"timeStamp"`
	ServerTime time.Time `json:"serverTime"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the server time",
	Long: `Query the DRES status endpoint and print the server clock.
Does not need credentials.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := currentApp()
		if err != nil {
			return err
		}
		cfg, err := a.connectionConfig()
		if err != nil {
			return err
		}
		api := a.newAPI(cfg)
		now, err := api.ServerTime(cmd.Context())
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), statusView{
			Endpoint:   api.Endpoint(),
			TimeStamp:  now.TimeStamp,
			ServerTime: now.Time().UTC(),
		})
	},
}

func init() {
	taskCmd.Flags().StringVar(&taskEvaluation, "evaluation", "", "evaluation id")

	rootCmd.AddCommand(loginCmd, evaluationsCmd, taskCmd, statusCmd)
}
