package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/keysafe/corectl/internal/settings"
	"github.com/keysafe/corectl/internal/store"
)

var inspectUserID uint32

// inspectCmd is a read-only diagnostic dump over a device's storage,
// for use while no dispatch loop is running against it.
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print settings and CPZ-LUT state for a provisioned user",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return rootCmdLoadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !viper.IsSet("user-id") {
			return fmt.Errorf("the user id (--user-id) is required")
		}
		inspectUserID = uint32(viper.GetInt("user-id"))

		cfg, err := loadDeviceConfig()
		if err != nil {
			return err
		}
		s, err := cfg.Storage.getState()
		if err != nil {
			return err
		}
		custom := store.NewCustom(s)
		cpzlut := store.NewCPZLUT(s)
		set := settings.New(custom, cpzlut)

		entry, err := set.Entry(inspectUserID)
		if err != nil {
			return fmt.Errorf("inspect: %w", err)
		}
		if entry == nil {
			return fmt.Errorf("inspect: no CPZ-LUT entry for user %d", inspectUserID)
		}
		fmt.Fprintf(os.Stdout, "user_id: %d\n", entry.UserID)
		fmt.Fprintf(os.Stdout, "cpz: %x\n", entry.CPZ)
		fmt.Fprintf(os.Stdout, "auth_counter: %d\n", entry.AuthCounter)
		fmt.Fprintf(os.Stdout, "lang_id: %d\n", entry.LangID)
		fmt.Fprintf(os.Stdout, "usb_keyboard_id: %d\n", entry.USBKeyboardID)
		fmt.Fprintf(os.Stdout, "ble_keyboard_id: %d\n", entry.BLEKeyboardID)

		values, err := set.DumpAll()
		if err != nil {
			return fmt.Errorf("inspect: %w", err)
		}
		fmt.Fprintf(os.Stdout, "settings_count: %d\n", len(values))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().Int("user-id", 0, "Numeric user id to inspect")
}
