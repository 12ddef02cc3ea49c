package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/keysafe/corectl/internal/devauth"
	"github.com/keysafe/corectl/internal/devstate"
	"github.com/keysafe/corectl/internal/dispatch"
	"github.com/keysafe/corectl/internal/node"
	"github.com/keysafe/corectl/internal/policy"
	"github.com/keysafe/corectl/internal/server"
	"github.com/keysafe/corectl/internal/settings"
	"github.com/keysafe/corectl/internal/store"
	"github.com/keysafe/corectl/internal/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the credential-store dispatch loop over USB-HID and BLE-HID",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return rootCmdLoadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadDeviceConfig()
		if err != nil {
			return err
		}
		return runServe(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("usb-device", "", "Path to the USB-HID report pipe")
	serveCmd.Flags().String("ble-device", "", "Path to the BLE-HID characteristic pipe")
	serveCmd.Flags().String("ops-key", "", "Hex-encoded 32-byte device operations key")
}

func runServe(cfg *DeviceConfig) error {
	s, err := cfg.Storage.getState()
	if err != nil {
		return err
	}

	opsKeyHex := viper.GetString("ops-key")
	if opsKeyHex != "" {
		cfg.Crypto.DeviceOpsKeyHex = opsKeyHex
	}
	opsKey, err := cfg.Crypto.key()
	if err != nil {
		return err
	}

	flash := store.NewFlash(s, cfg.PagesTotal, cfg.SlotsPerPage)
	profiles := store.NewProfiles(s)
	custom := store.NewCustom(s)
	cpzlut := store.NewCPZLUT(s)

	nodes := node.NewManager(flash, profiles)
	pol := policy.New(nodes)
	pol.SetPasswordPolicy(cfg.Policy.toPolicy())
	set := settings.New(custom, cpzlut)
	state := devstate.New()
	flags := devstate.NewUserFlags(profiles)

	da, err := devauth.NewEngine(opsKey, cfg.SerialNumber)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	d := dispatch.New(nodes, pol, set, state, flags, da, cfg.SerialNumber)
	loop := server.New(d)

	if usbPath := firstNonEmpty(viper.GetString("usb-device"), cfg.Transport.USBDevicePath); cfg.Transport.USBEnabled && usbPath != "" {
		f, err := os.OpenFile(usbPath, os.O_RDWR, 0)
		if err != nil {
			return fmt.Errorf("serve: open usb device: %w", err)
		}
		loop.AddLink("usb", transport.NewUSB(f))
	}
	if blePath := firstNonEmpty(viper.GetString("ble-device"), cfg.Transport.BLEDevicePath); cfg.Transport.BLEEnabled && blePath != "" {
		f, err := os.OpenFile(blePath, os.O_RDWR, 0)
		if err != nil {
			return fmt.Errorf("serve: open ble device: %w", err)
		}
		loop.AddLink("ble", transport.NewBLE(f))
	}

	slog.Info("serve: starting dispatch loop", "serial", cfg.SerialNumber)
	return loop.Run(context.Background())
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
