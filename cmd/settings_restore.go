package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/keysafe/corectl/internal/settings"
	"github.com/keysafe/corectl/internal/store"
)

// settingsEntry is one raw settings-file entry before it is decoded
// into a settings.Settings key/value pair.
type settingsEntry struct {
	Key      uint16 `mapstructure:"key"`
	ValueHex string `mapstructure:"value_hex"`
}

var restoreSettingsCmd = &cobra.Command{
	Use:   "restore-settings",
	Short: "Restore the settings table from a list of key/value_hex entries in the config file",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return rootCmdLoadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := viper.Get("settings")
		if raw == nil {
			return fmt.Errorf("restore-settings: no 'settings' list found in the configuration file")
		}
		var rawEntries []map[string]interface{}
		if err := mapstructure.Decode(raw, &rawEntries); err != nil {
			return fmt.Errorf("restore-settings: decode settings list: %w", err)
		}

		values := make(map[uint16][]byte, len(rawEntries))
		for i, rawEntry := range rawEntries {
			var entry settingsEntry
			if err := mapstructure.Decode(rawEntry, &entry); err != nil {
				return fmt.Errorf("restore-settings: entry %d: %w", i, err)
			}
			value, err := hex.DecodeString(entry.ValueHex)
			if err != nil {
				return fmt.Errorf("restore-settings: entry %d: value_hex must be hex: %w", i, err)
			}
			values[entry.Key] = value
		}

		cfg, err := loadDeviceConfig()
		if err != nil {
			return err
		}
		s, err := cfg.Storage.getState()
		if err != nil {
			return err
		}
		set := settings.New(store.NewCustom(s), store.NewCPZLUT(s))
		if err := set.RestoreAll(values); err != nil {
			return fmt.Errorf("restore-settings: %w", err)
		}
		fmt.Printf("restored %d settings entries\n", len(values))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(restoreSettingsCmd)
}
