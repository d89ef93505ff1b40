// Package cardmanager combines card construction, the card service client,
// access token providers and card verification into one entry point.
package cardmanager

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/capiscio/capiscio-cards/pkg/card"
	"github.com/capiscio/capiscio-cards/pkg/cardclient"
	"github.com/capiscio/capiscio-cards/pkg/crypto"
	"github.com/capiscio/capiscio-cards/pkg/sdkerr"
	"github.com/capiscio/capiscio-cards/pkg/snapshot"
	"github.com/capiscio/capiscio-cards/pkg/tokenprovider"
)

// Service name passed to token providers.
const ServiceName = "cards"

// Operation names passed to token providers.
const (
	OperationPublish = "publish"
	OperationGet     = "get"
	OperationSearch  = "search"
)

// SignCallback lets an application add its own signatures before a card is
// published, typically by sending the model to a backend.
type SignCallback func(ctx context.Context, model *card.RawSignedModel) (*card.RawSignedModel, error)

// Config holds the manager's collaborators.
type Config struct {
	Crypto        crypto.CardCrypto
	TokenProvider tokenprovider.Provider
	Verifier      card.Verifier
	Client        *cardclient.Client

	// SignCallback is optional.
	SignCallback SignCallback

	// RetryOnUnauthorized repeats a request once with a force-reloaded
	// token when the service answers 401.
	RetryOnUnauthorized bool
}

// Manager publishes, fetches and verifies cards.
type Manager struct {
	config Config
	signer *card.ModelSigner
}

// NewManager validates config and creates a Manager.
func NewManager(config Config) (*Manager, error) {
	if config.Crypto == nil {
		return nil, sdkerr.New(sdkerr.CodeValidation, "card crypto is required")
	}
	if config.TokenProvider == nil {
		return nil, sdkerr.New(sdkerr.CodeValidation, "token provider is required")
	}
	if config.Verifier == nil {
		return nil, sdkerr.New(sdkerr.CodeValidation, "card verifier is required")
	}
	if config.Client == nil {
		return nil, sdkerr.New(sdkerr.CodeValidation, "card client is required")
	}
	return &Manager{config: config, signer: card.NewModelSigner(config.Crypto)}, nil
}

// GenerateRawCard builds and self-signs a new card model.
func (m *Manager) GenerateRawCard(params card.GenerateParams, privateKey crypto.PrivateKey, extraFields map[string]string) (*card.RawSignedModel, error) {
	model, err := card.GenerateRawSignedModel(m.config.Crypto, params)
	if err != nil {
		return nil, err
	}
	if err := m.signer.SelfSign(model, privateKey, extraFields); err != nil {
		return nil, err
	}
	return model, nil
}

// PublishCard generates, self-signs and publishes a new card.
func (m *Manager) PublishCard(ctx context.Context, params card.GenerateParams, privateKey crypto.PrivateKey, extraFields map[string]string) (*card.Card, error) {
	model, err := m.GenerateRawCard(params, privateKey, extraFields)
	if err != nil {
		return nil, err
	}
	return m.PublishRawCard(ctx, model)
}

// PublishRawCard publishes a signed model and returns the verified card
// stored by the service.
func (m *Manager) PublishRawCard(ctx context.Context, model *card.RawSignedModel) (*card.Card, error) {
	if model == nil {
		return nil, sdkerr.New(sdkerr.CodeValidation, "raw signed model is required")
	}

	if m.config.SignCallback != nil {
		signed, err := m.config.SignCallback(ctx, model)
		if err != nil {
			return nil, err
		}
		if signed == nil {
			return nil, sdkerr.New(sdkerr.CodeValidation, "sign callback returned no model")
		}
		model = signed
	}

	content, err := snapshot.Parse[card.RawCardContent](model.ContentSnapshot)
	if err != nil {
		return nil, err
	}

	tc := &tokenprovider.TokenContext{Identity: content.Identity, Service: ServiceName, Operation: OperationPublish}
	var published *card.RawSignedModel
	err = m.withToken(ctx, tc, func(token string) error {
		var err error
		published, err = m.config.Client.PublishCard(ctx, model, token)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !bytes.Equal(published.ContentSnapshot, model.ContentSnapshot) {
		return nil, sdkerr.New(sdkerr.CodeCardVerification, "published card content does not match the card sent")
	}
	return m.parseAndVerify(published, false)
}

// GetCard fetches and verifies the card with the given id.
func (m *Manager) GetCard(ctx context.Context, id string) (*card.Card, error) {
	tc := &tokenprovider.TokenContext{Service: ServiceName, Operation: OperationGet}
	var (
		model      *card.RawSignedModel
		superseded bool
	)
	err := m.withToken(ctx, tc, func(token string) error {
		var err error
		model, superseded, err = m.config.Client.GetCard(ctx, id, token)
		return err
	})
	if err != nil {
		return nil, err
	}

	c, err := m.parseAndVerify(model, superseded)
	if err != nil {
		return nil, err
	}
	if c.ID != id {
		return nil, sdkerr.Newf(sdkerr.CodeCardVerification, "card id %s does not match requested id %s", c.ID, id)
	}
	return c, nil
}

// SearchCards returns the current cards for identity. Superseded cards are
// reachable through Card.PreviousCard.
func (m *Manager) SearchCards(ctx context.Context, identity string) ([]*card.Card, error) {
	tc := &tokenprovider.TokenContext{Service: ServiceName, Operation: OperationSearch}
	var models []*card.RawSignedModel
	err := m.withToken(ctx, tc, func(token string) error {
		var err error
		models, err = m.config.Client.SearchCards(ctx, identity, token)
		return err
	})
	if err != nil {
		return nil, err
	}

	cards := make([]*card.Card, 0, len(models))
	for _, model := range models {
		c, err := m.parseAndVerify(model, false)
		if err != nil {
			return nil, err
		}
		if c.Identity != identity {
			return nil, sdkerr.Newf(sdkerr.CodeCardVerification, "card %s has identity %q, searched for %q", c.ID, c.Identity, identity)
		}
		cards = append(cards, c)
	}
	return card.LinkedCardList(cards)
}

// ImportCard parses and verifies a raw signed model.
func (m *Manager) ImportCard(model *card.RawSignedModel) (*card.Card, error) {
	return m.parseAndVerify(model, false)
}

// ImportCardFromString imports the output of ExportCardAsString.
func (m *Manager) ImportCardFromString(s string) (*card.Card, error) {
	model, err := card.ImportRawSignedModelFromString(s)
	if err != nil {
		return nil, err
	}
	return m.ImportCard(model)
}

// ImportCardFromJSON imports the output of ExportCardAsJSON.
func (m *Manager) ImportCardFromJSON(data []byte) (*card.Card, error) {
	model, err := card.ImportRawSignedModelFromJSON(data)
	if err != nil {
		return nil, err
	}
	return m.ImportCard(model)
}

// ExportCardAsRawModel converts a card to its wire form.
func (m *Manager) ExportCardAsRawModel(c *card.Card) *card.RawSignedModel {
	return card.ExportRawSignedModel(c)
}

// ExportCardAsString exports a card as base64 wire JSON.
func (m *Manager) ExportCardAsString(c *card.Card) (string, error) {
	return card.ExportRawSignedModel(c).ExportAsString()
}

// ExportCardAsJSON exports a card as wire JSON.
func (m *Manager) ExportCardAsJSON(c *card.Card) ([]byte, error) {
	return card.ExportRawSignedModel(c).ExportAsJSON()
}

func (m *Manager) parseAndVerify(model *card.RawSignedModel, isOutdated bool) (*card.Card, error) {
	c, err := card.ParseRawSignedModel(m.config.Crypto, model, isOutdated)
	if err != nil {
		return nil, err
	}
	if !m.config.Verifier.VerifyCard(c) {
		return nil, sdkerr.Newf(sdkerr.CodeCardVerification, "card %s failed verification", c.ID)
	}
	return c, nil
}

// withToken runs call with a token from the provider, retrying once with a
// reloaded token on 401 when configured.
func (m *Manager) withToken(ctx context.Context, tc *tokenprovider.TokenContext, call func(token string) error) error {
	token, err := m.getToken(ctx, tc)
	if err != nil {
		return err
	}
	err = call(token.String())

	var httpErr *cardclient.HTTPError
	if !m.config.RetryOnUnauthorized || !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusUnauthorized {
		return err
	}

	reload := *tc
	reload.ForceReload = true
	token, err = m.getToken(ctx, &reload)
	if err != nil {
		return err
	}
	return call(token.String())
}

func (m *Manager) getToken(ctx context.Context, tc *tokenprovider.TokenContext) (tokenprovider.AccessToken, error) {
	token, err := m.config.TokenProvider.GetToken(ctx, tc)
	if err != nil {
		return nil, err
	}
	if tokenprovider.IsNil(token) {
		return nil, sdkerr.New(sdkerr.CodeValidation, "token provider returned no token")
	}
	return token, nil
}
