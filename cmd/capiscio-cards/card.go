package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/capiscio/capiscio-cards/pkg/card"
	"github.com/capiscio/capiscio-cards/pkg/crypto"
	"github.com/spf13/cobra"
)

var (
	cardIdentity string
	cardKeyFile  string
	cardPrevious string
	cardJSON     bool
	cardExtra    []string
)

var cardCmd = &cobra.Command{
	Use:   "card",
	Short: "Create, inspect and publish identity cards",
}

var cardNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a self-signed card without publishing it",
	Example: `  capiscio-cards card new --identity alice --key private.jwk
  capiscio-cards card new --identity alice --key new.jwk --previous <card-id> --json`,
	RunE: func(_ *cobra.Command, _ []string) error {
		model, err := newSelfSignedModel()
		if err != nil {
			return err
		}
		return printModel(model)
	},
}

var cardInspectCmd = &cobra.Command{
	Use:   "inspect <card>",
	Short: "Decode an exported card and check its self signature",
	Long: `Decode a card exported as base64 or JSON, print its fields and check
the self signature.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		model, err := importModel(args[0])
		if err != nil {
			return err
		}

		c := crypto.NewEd25519Crypto()
		parsed, err := card.ParseRawSignedModel(c, model, false)
		if err != nil {
			return err
		}
		printCard(parsed)

		verifier, err := card.NewTrustVerifier(c, card.TrustVerifierConfig{VerifySelfSignature: true})
		if err != nil {
			return err
		}
		result := verifier.Verify(parsed)
		if !result.Valid {
			fmt.Println("❌ Self signature is INVALID")
			for _, e := range result.Errors {
				fmt.Printf("   - %s\n", e)
			}
			return fmt.Errorf("card verification failed")
		}
		fmt.Println("✅ Self signature is VALID")
		return nil
	},
}

var cardPublishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Create a card and publish it to the card service",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		manager, err := newManager(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		model, err := newSelfSignedModel()
		if err != nil {
			return err
		}
		published, err := manager.PublishRawCard(cmd.Context(), model)
		if err != nil {
			return err
		}
		fmt.Println("✅ Card published")
		printCard(published)
		return nil
	},
}

var cardGetCmd = &cobra.Command{
	Use:   "get <card-id>",
	Short: "Fetch and verify a card by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		manager, err := newManager(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		c, err := manager.GetCard(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printCard(c)
		return nil
	},
}

var cardSearchCmd = &cobra.Command{
	Use:   "search <identity>",
	Short: "Find the current cards of an identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		manager, err := newManager(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		cards, err := manager.SearchCards(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(cards) == 0 {
			fmt.Printf("No cards found for %q.\n", args[0])
			return nil
		}
		for i, c := range cards {
			if i > 0 {
				fmt.Println()
			}
			printCard(c)
			for prev := c.PreviousCard; prev != nil; prev = prev.PreviousCard {
				fmt.Printf("   supersedes %s (%s)\n", prev.ID, prev.CreatedAt.Local().Format(time.RFC3339))
			}
		}
		return nil
	},
}

// newSelfSignedModel builds a card from the card flags.
func newSelfSignedModel() (*card.RawSignedModel, error) {
	if cardIdentity == "" {
		return nil, fmt.Errorf("--identity is required")
	}
	priv, _, err := loadPrivateKey(cardKeyFile)
	if err != nil {
		return nil, err
	}
	extra, err := parseMeta(cardExtra)
	if err != nil {
		return nil, err
	}

	c := crypto.NewEd25519Crypto()
	model, err := card.GenerateRawSignedModel(c, card.GenerateParams{
		Identity:       cardIdentity,
		PublicKey:      priv.Public(),
		PreviousCardID: cardPrevious,
	})
	if err != nil {
		return nil, err
	}
	if err := card.NewModelSigner(c).SelfSign(model, priv, extra); err != nil {
		return nil, err
	}
	return model, nil
}

// importModel accepts the base64 or JSON export of a card.
func importModel(s string) (*card.RawSignedModel, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		return card.ImportRawSignedModelFromJSON([]byte(s))
	}
	return card.ImportRawSignedModelFromString(s)
}

func printModel(model *card.RawSignedModel) error {
	if cardJSON {
		data, err := json.MarshalIndent(model, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	s, err := model.ExportAsString()
	if err != nil {
		return err
	}
	fmt.Println(s)
	return nil
}

func printCard(c *card.Card) {
	fmt.Printf("Card:     %s\n", c.ID)
	fmt.Printf("Identity: %s\n", c.Identity)
	fmt.Printf("Created:  %s\n", c.CreatedAt.Local().Format(time.RFC3339))
	fmt.Printf("Version:  %s\n", c.Version)
	if c.PreviousCardID != "" {
		fmt.Printf("Previous: %s\n", c.PreviousCardID)
	}
	if c.IsOutdated {
		fmt.Println("Status:   OUTDATED")
	}
	for _, s := range c.Signatures {
		fmt.Printf("Signed by %s", s.Signer)
		if len(s.ExtraFields) > 0 {
			fmt.Printf(" %v", s.ExtraFields)
		}
		fmt.Println()
	}
}

func init() {
	rootCmd.AddCommand(cardCmd)
	cardCmd.AddCommand(cardNewCmd, cardInspectCmd, cardPublishCmd, cardGetCmd, cardSearchCmd)

	for _, cmd := range []*cobra.Command{cardNewCmd, cardPublishCmd} {
		cmd.Flags().StringVar(&cardIdentity, "identity", "", "Identity the card binds the key to")
		cmd.Flags().StringVar(&cardKeyFile, "key", "private.jwk", "Private key file (JWK format)")
		cmd.Flags().StringVar(&cardPrevious, "previous", "", "Id of the card this one replaces")
		cmd.Flags().StringArrayVar(&cardExtra, "extra", nil, "Signed extra field as key=value (repeatable)")
	}
	cardNewCmd.Flags().BoolVar(&cardJSON, "json", false, "Print JSON instead of base64")
}
