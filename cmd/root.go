package cmd

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"hermannm.dev/devlog"
)

var (
	dbType   string
	dbDSN    string
	debug    bool
	logLevel slog.LevelVar
)

var rootCmd = &cobra.Command{
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	Use:   "corectl",
	Short: "Credential-store core for a hardware password-manager device",
	Long: `corectl runs the credential-store core: the command dispatcher,
node/credential store, device-auth engine, and settings table a
hardware password-manager device exposes over USB-HID and BLE-HID.
`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to
// happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	slog.SetDefault(slog.New(devlog.NewHandler(os.Stdout, &devlog.Options{
		Level: &logLevel,
	})))

	rootCmd.PersistentFlags().Bool("debug", false, "Print debug contents")
	rootCmd.PersistentFlags().String("db", "sqlite", "Database driver (sqlite or postgres)")
	rootCmd.PersistentFlags().String("db-dsn", "", "Database data source name")
	rootCmd.PersistentFlags().String("config", "", "Pathname of the configuration file")
}

// rootCmdLoadConfig binds persistent flags into viper, reads a config
// file if one was given, and resolves the shared db/debug settings.
// Subcommands call this after binding their own flags.
func rootCmdLoadConfig(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return err
	}

	if configFilePath, _ := cmd.Flags().GetString("config"); configFilePath != "" {
		slog.Debug("loading configuration file", "path", configFilePath)
		viper.SetConfigFile(configFilePath)
		if err := viper.ReadInConfig(); err != nil {
			return errors.New("configuration file read failed: " + err.Error())
		}
	}

	debug = viper.GetBool("debug")
	if debug {
		logLevel.Set(slog.LevelDebug)
	}
	dbType = viper.GetString("db")
	dbDSN = viper.GetString("db-dsn")
	if dbDSN == "" {
		return errors.New("missing required database dsn (--db-dsn)")
	}
	return nil
}
