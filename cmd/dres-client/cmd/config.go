package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/dres-client/internal/config"
)

var (
	saveHost string
	savePort int
	saveTLS  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show, save or locate the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration",
	Long: `Print the configuration after applying defaults, dresapi.json,
credentials.json and DRES_* environment variables. The password is masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Write the connection settings to dresapi.json",
	Long: `Write host, port and TLS to dresapi.json in the data directory.
Flags override the currently resolved values. Credentials are never written.

Examples:
  dres-client config save --host dres.example.org --port 443 --tls`,
	Args: cobra.NoArgs,
	RunE: runConfigSave,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration and credentials file paths",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

func init() {
	configSaveCmd.Flags().StringVar(&saveHost, "host", "", "DRES host name")
	configSaveCmd.Flags().IntVar(&savePort, "port", config.DefaultPort, "DRES port")
	configSaveCmd.Flags().BoolVar(&saveTLS, "tls", false, "connect with https")

	configCmd.AddCommand(configShowCmd, configSaveCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}

type configView struct {
	*config.Configuration
	Endpoint        string `json:"endpoint"`
	HasCredentials  bool   `json:"hasCredentials"`
	ConfigPath      string `json:"configPath"`
	CredentialsPath string `json:"credentialsPath"`
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	a, err := currentApp()
	if err != nil {
		return err
	}
	cfg, err := a.connectionConfig()
	if err != nil {
		return err
	}

	paths := a.resolver.Paths()
	return render(cmd.OutOrStdout(), configView{
		Configuration:   cfg.Redacted(),
		Endpoint:        cfg.Endpoint(),
		HasCredentials:  cfg.HasCredentials(),
		ConfigPath:      paths.ConfigPath(),
		CredentialsPath: paths.CredentialsPath(),
	})
}

func runConfigSave(cmd *cobra.Command, _ []string) error {
	a, err := currentApp()
	if err != nil {
		return err
	}
	cfg, err := a.resolver.LoadRaw()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = saveHost
	}
	if flags.Changed("port") {
		cfg.Port = savePort
	}
	if flags.Changed("tls") {
		cfg.TLS = saveTLS
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	store := config.NewStore(a.resolver.Paths().ConfigPath(), a.logger)
	if err := store.Save(cfg); err != nil {
		return err
	}
	a.resolver.Replace(nil)

	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (endpoint %s)\n", store.Path(), cfg.Endpoint())
	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	a, err := currentApp()
	if err != nil {
		return err
	}
	paths := a.resolver.Paths()
	fmt.Fprintln(cmd.OutOrStdout(), paths.ConfigPath())
	fmt.Fprintln(cmd.OutOrStdout(), paths.CredentialsPath())
	return nil
}
