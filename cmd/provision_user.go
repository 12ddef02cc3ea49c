package cmd

import (
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/keysafe/corectl/internal/rng"
	"github.com/keysafe/corectl/internal/signing"
	"github.com/keysafe/corectl/internal/smartcard"
	"github.com/keysafe/corectl/internal/store"
)

var (
	provisionUserID uint32
	provisionPIN    string
	provisionKeyS   string
)

// provisionUserCmd bonds a new user to a fresh smartcard.Stub session
// and writes its user profile and CPZ-LUT entry, printing the
// resulting signing public key the way print-owner-pubkey prints one.
var provisionUserCmd = &cobra.Command{
	Use:   "provision-user",
	Short: "Provision a new user profile and bond it to a card",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return rootCmdLoadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !viper.IsSet("user-id") {
			return fmt.Errorf("the user id (--user-id) is required")
		}
		provisionUserID = uint32(viper.GetInt("user-id"))
		provisionPIN = viper.GetString("pin")
		provisionKeyS = viper.GetString("key-type")
		if provisionPIN == "" {
			return fmt.Errorf("the card PIN (--pin) is required")
		}

		cfg, err := loadDeviceConfig()
		if err != nil {
			return err
		}
		s, err := cfg.Storage.getState()
		if err != nil {
			return err
		}
		profiles := store.NewProfiles(s)
		cpzlut := store.NewCPZLUT(s)

		cardKey, err := rng.Bytes(32)
		if err != nil {
			return err
		}
		cpz, err := rng.Bytes(16)
		if err != nil {
			return err
		}
		nonce, err := rng.Bytes(16)
		if err != nil {
			return err
		}

		var cardKeyArr [32]byte
		var cpzArr [16]byte
		copy(cardKeyArr[:], cardKey)
		copy(cpzArr[:], cpz)
		card := smartcard.NewStub(cardKeyArr, cpzArr, []byte(provisionPIN))
		defer card.Disconnect()
		if err := card.VerifyPIN([]byte(provisionPIN)); err != nil {
			return fmt.Errorf("provision-user: %w", err)
		}

		if err := profiles.Save(store.UserProfileRow{
			UserID: provisionUserID, Nonce: nonce, Formatted: true,
		}); err != nil {
			return fmt.Errorf("provision-user: save profile: %w", err)
		}
		if err := cpzlut.Store(store.CPZLUTRow{
			CPZ: cpz, UserID: provisionUserID, Nonce: nonce,
			AuthCounter: 0xFFFFFFFF,
		}); err != nil {
			return fmt.Errorf("provision-user: store cpz-lut entry: %w", err)
		}

		pub, err := provisionSigningKey(provisionKeyS)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "user %d bonded to card cpz=%s\n", provisionUserID, hex.EncodeToString(cpz))
		return pem.Encode(os.Stdout, &pem.Block{Type: "PUBLIC KEY", Bytes: pub})
	},
}

func provisionSigningKey(keyType string) ([]byte, error) {
	switch keyType {
	case "ed25519", "":
		pub, _, err := signing.GenerateEd25519Key()
		if err != nil {
			return nil, fmt.Errorf("provision-user: %w", err)
		}
		return x509.MarshalPKIXPublicKey(pub)
	case "ecdsa-p256":
		entropy, err := rng.Bytes(32)
		if err != nil {
			return nil, err
		}
		drbg, err := signing.NewDRBG(entropy, []byte("corectl-provision-user"))
		if err != nil {
			return nil, fmt.Errorf("provision-user: %w", err)
		}
		key, err := signing.NewECDSASigner().GenerateECDSAKey(drbg)
		if err != nil {
			return nil, fmt.Errorf("provision-user: %w", err)
		}
		return x509.MarshalPKIXPublicKey(&key.PublicKey)
	default:
		return nil, fmt.Errorf("provision-user: unsupported key type %q (must be ed25519 or ecdsa-p256)", keyType)
	}
}

func init() {
	rootCmd.AddCommand(provisionUserCmd)
	provisionUserCmd.Flags().Int("user-id", 0, "Numeric user id to provision")
	provisionUserCmd.Flags().String("pin", "", "Card PIN to verify during bonding")
	provisionUserCmd.Flags().String("key-type", "ed25519", "Signing key type (ed25519 or ecdsa-p256)")
}
