package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/capiscio/capiscio-cards/pkg/crypto"
	"github.com/capiscio/capiscio-cards/pkg/jwt"
	"github.com/spf13/cobra"
)

var (
	tokenIdentity string
	tokenData     string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue and verify access tokens",
}

var tokenGenCmd = &cobra.Command{
	Use:   "gen",
	Short: "Issue an access token signed with the application key",
	Long: `Issue an access token for an identity.

Requires app_id, api_key_id and api_key_path in the configuration.`,
	Example: `  capiscio-cards token gen --identity alice
  capiscio-cards token gen --identity alice --data '{"role":"admin"}'`,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		identity := tokenIdentity
		if identity == "" {
			identity = cfg.Identity
		}
		if identity == "" {
			return fmt.Errorf("--identity is required")
		}

		var additionalData map[string]any
		if tokenData != "" {
			if err := json.Unmarshal([]byte(tokenData), &additionalData); err != nil {
				return fmt.Errorf("invalid --data JSON: %w", err)
			}
		}

		generator, err := newGenerator(cfg)
		if err != nil {
			return err
		}
		token, err := generator.Generate(identity, additionalData)
		if err != nil {
			return err
		}

		fmt.Println(token.String())
		fmt.Fprintf(os.Stderr, "Expires: %s\n", token.ExpiresAt().Local().Format(time.RFC3339))
		return nil
	},
}

var tokenVerifyCmd = &cobra.Command{
	Use:   "verify <token>",
	Short: "Verify an access token against the application public key",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.APIPublicKeyPath == "" {
			return fmt.Errorf("api_public_key_path is required")
		}

		pub, kid, err := loadPublicKey(cfg.APIPublicKeyPath)
		if err != nil {
			return err
		}
		if cfg.APIKeyID != "" {
			kid = cfg.APIKeyID
		}

		verifier, err := jwt.NewVerifier(jwt.VerifierConfig{
			APIKeyID:     kid,
			APIPublicKey: pub,
			Signer:       crypto.NewTokenSigner(),
		})
		if err != nil {
			return err
		}

		token, err := jwt.Parse(args[0])
		if err != nil {
			return err
		}

		if !verifier.Verify(token) {
			fmt.Println("❌ Token signature is INVALID")
			return fmt.Errorf("token verification failed")
		}
		if token.IsExpired(time.Now()) {
			fmt.Println("❌ Token is EXPIRED")
			return fmt.Errorf("token expired at %s", token.ExpiresAt().Local().Format(time.RFC3339))
		}

		identity, err := token.Identity()
		if err != nil {
			return err
		}
		appID, err := token.AppID()
		if err != nil {
			return err
		}

		fmt.Println("✅ Token is VALID")
		fmt.Printf("   Identity: %s\n", identity)
		fmt.Printf("   App:      %s\n", appID)
		fmt.Printf("   Expires:  %s\n", token.ExpiresAt().Local().Format(time.RFC3339))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenGenCmd, tokenVerifyCmd)

	tokenGenCmd.Flags().StringVar(&tokenIdentity, "identity", "", "Token subject (default: identity from config)")
	tokenGenCmd.Flags().StringVar(&tokenData, "data", "", "Additional data as a JSON object")
}
