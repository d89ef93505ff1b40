package main

import (
	"fmt"
	"os"
	"time"

	"github.com/capiscio/capiscio-cards/pkg/crypto"
	"github.com/capiscio/capiscio-cards/pkg/keystorage"
	"github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	keyOutPrivate string
	keyOutPublic  string
	keyID         string
	keyFile       string
	keyMeta       []string
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage Cryptographic Keys",
}

var keyGenCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate a new Ed25519 Key Pair",
	Long: `Generate a new Ed25519 key pair.

Both keys are written in JWK format. Use the private key to sign cards and
access tokens, and distribute the public key to verifiers.`,
	Example: `  # Generate keys with default names
  capiscio-cards key gen

  # Generate keys with a fixed key id
  capiscio-cards key gen --kid api-key-1 --out-priv api.jwk --out-pub api.pub.jwk`,
	RunE: func(_ *cobra.Command, _ []string) error {
		keys, err := crypto.NewEd25519Crypto().GenerateKeys()
		if err != nil {
			return fmt.Errorf("failed to generate key: %w", err)
		}

		kid := keyID
		if kid == "" {
			kid = uuid.NewString()
		}

		privJwk := &jose.JSONWebKey{
			Key:       keys.PrivateKey,
			KeyID:     kid,
			Algorithm: string(jose.EdDSA),
			Use:       "sig",
		}
		if err := writeJWK(keyOutPrivate, privJwk, 0600); err != nil {
			return fmt.Errorf("failed to write private key: %w", err)
		}
		fmt.Printf("✅ Private Key saved to %s\n", keyOutPrivate)

		pubJwk, err := crypto.PublicJWK(keys.PublicKey, kid)
		if err != nil {
			return err
		}
		if err := writeJWK(keyOutPublic, pubJwk, 0644); err != nil {
			return fmt.Errorf("failed to write public key: %w", err)
		}
		fmt.Printf("✅ Public Key saved to %s\n", keyOutPublic)
		fmt.Printf("🔑 Key ID: %s\n", kid)

		return nil
	},
}

var keyStoreCmd = &cobra.Command{
	Use:     "store <name>",
	Short:   "Store a private key in the configured key storage",
	Example: `  capiscio-cards key store alice --key private.jwk --meta identity=alice`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		storage, closeStorage, err := privateKeyStorageFromConfig()
		if err != nil {
			return err
		}
		defer closeStorage()

		priv, _, err := loadPrivateKey(keyFile)
		if err != nil {
			return err
		}
		meta, err := parseMeta(keyMeta)
		if err != nil {
			return err
		}

		if err := storage.Store(cmd.Context(), args[0], priv, meta); err != nil {
			return err
		}
		fmt.Printf("✅ Private key stored as %q\n", args[0])
		return nil
	},
}

var keyLoadCmd = &cobra.Command{
	Use:   "load <name>",
	Short: "Export a stored private key to a JWK file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		storage, closeStorage, err := privateKeyStorageFromConfig()
		if err != nil {
			return err
		}
		defer closeStorage()

		entry, err := storage.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("no private key stored as %q", args[0])
		}

		data, err := crypto.NewJWKExporter(args[0]).ExportPrivateKey(entry.PrivateKey)
		if err != nil {
			return err
		}
		if err := os.WriteFile(keyOutPrivate, data, 0600); err != nil {
			return fmt.Errorf("failed to write private key: %w", err)
		}
		fmt.Printf("✅ Private Key saved to %s\n", keyOutPrivate)
		for k, v := range entry.Meta {
			fmt.Printf("   %s=%s\n", k, v)
		}
		return nil
	},
}

var keyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored private keys",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		storage, closeStorage, err := openStorage(cfg)
		if err != nil {
			return err
		}
		defer closeStorage()

		entries, err := storage.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No keys stored.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%-32s created %s\n", e.Name, e.CreatedAt.Local().Format(time.RFC3339))
		}
		return nil
	},
}

var keyDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored private key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		storage, closeStorage, err := privateKeyStorageFromConfig()
		if err != nil {
			return err
		}
		defer closeStorage()

		if err := storage.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("🗑️  Deleted %q\n", args[0])
		return nil
	},
}

// privateKeyStorageFromConfig opens the configured backend as JWK-encoded
// private key storage.
func privateKeyStorageFromConfig() (*keystorage.PrivateKeyStorage, func() error, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	backend, closeStorage, err := openStorage(cfg)
	if err != nil {
		return nil, nil, err
	}
	storage, err := keystorage.NewPrivateKeyStorage(crypto.NewJWKExporter(""), backend)
	if err != nil {
		_ = closeStorage()
		return nil, nil, err
	}
	return storage, closeStorage, nil
}

func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keyGenCmd, keyStoreCmd, keyLoadCmd, keyListCmd, keyDeleteCmd)

	keyGenCmd.Flags().StringVar(&keyOutPrivate, "out-priv", "private.jwk", "Output path for private key (JWK format)")
	keyGenCmd.Flags().StringVar(&keyOutPublic, "out-pub", "public.jwk", "Output path for public key (JWK format)")
	keyGenCmd.Flags().StringVar(&keyID, "kid", "", "Key ID to embed in the JWKs (default: random UUID)")

	keyStoreCmd.Flags().StringVar(&keyFile, "key", "private.jwk", "Private key file (JWK format)")
	keyStoreCmd.Flags().StringArrayVar(&keyMeta, "meta", nil, "Metadata as key=value (repeatable)")

	keyLoadCmd.Flags().StringVar(&keyOutPrivate, "out-priv", "private.jwk", "Output path for private key (JWK format)")
}
