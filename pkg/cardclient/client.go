// Package cardclient talks to the card service: publish, search and get raw
// signed models. It does not verify cards; see package cardmanager for that.
package cardclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/capiscio/capiscio-cards/pkg/card"
	"github.com/capiscio/capiscio-cards/pkg/sdkerr"
)

// Card service endpoints.
const (
	PublishPath = "/card/v5"
	SearchPath  = "/card/v5/actions/search"
	GetPath     = "/card/v5/"

	// SupersededHeader is "true" on a get-by-id response for an outdated card.
	SupersededHeader = "X-Card-Superseded"
)

// HTTPError is a non-2xx response from the card service.
type HTTPError struct {
	StatusCode int
	ErrorCode  int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.ErrorCode != 0 {
		return fmt.Sprintf("card service returned status %d (code %d): %s", e.StatusCode, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("card service returned status %d: %s", e.StatusCode, e.Message)
}

// Unwrap lets errors.Is match sdkerr.ErrHTTP.
func (e *HTTPError) Unwrap() error {
	return sdkerr.ErrHTTP
}

// Client calls the card service endpoints.
type Client struct {
	conn Connection
}

// NewClient creates a client over conn.
func NewClient(conn Connection) (*Client, error) {
	if conn == nil {
		return nil, sdkerr.New(sdkerr.CodeValidation, "connection is required")
	}
	return &Client{conn: conn}, nil
}

// PublishCard sends model and returns the model stored by the service,
// which carries the authority signature.
func (c *Client) PublishCard(ctx context.Context, model *card.RawSignedModel, token string) (*card.RawSignedModel, error) {
	if model == nil {
		return nil, sdkerr.New(sdkerr.CodeValidation, "raw signed model is required")
	}
	body, err := model.ExportAsJSON()
	if err != nil {
		return nil, err
	}

	resp, err := c.conn.Post(ctx, PublishPath, token, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	return decodeModel(resp.Body)
}

// SearchCards returns the models published for identity.
func (c *Client) SearchCards(ctx context.Context, identity, token string) ([]*card.RawSignedModel, error) {
	if identity == "" {
		return nil, sdkerr.New(sdkerr.CodeValidation, "identity is required")
	}
	body, err := json.Marshal(struct {
		Identity string `json:"identity"`
	}{Identity: identity})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.conn.Post(ctx, SearchPath, token, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var models []*card.RawSignedModel
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeParse, "failed to parse search response", err)
	}
	return models, nil
}

// GetCard fetches a model by card id. superseded reports whether the
// service marked the card as replaced by a newer one.
func (c *Client) GetCard(ctx context.Context, id, token string) (model *card.RawSignedModel, superseded bool, err error) {
	if id == "" {
		return nil, false, sdkerr.New(sdkerr.CodeValidation, "card id is required")
	}

	resp, err := c.conn.Get(ctx, GetPath+url.PathEscape(id), token)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, false, err
	}

	model, err = decodeModel(resp.Body)
	if err != nil {
		return nil, false, err
	}
	superseded = strings.EqualFold(resp.Header.Get(SupersededHeader), "true")
	return model, superseded, nil
}

func decodeModel(r io.Reader) (*card.RawSignedModel, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return card.ImportRawSignedModelFromJSON(data)
}

// checkResponse converts a non-2xx response into an *HTTPError.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	httpErr := &HTTPError{StatusCode: resp.StatusCode}

	var errResp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(respBody, &errResp); err == nil && (errResp.Code != 0 || errResp.Message != "") {
		httpErr.ErrorCode = errResp.Code
		httpErr.Message = errResp.Message
	} else {
		httpErr.Message = strings.TrimSpace(string(respBody))
	}
	if httpErr.Message == "" {
		httpErr.Message = http.StatusText(resp.StatusCode)
	}
	return httpErr
}
