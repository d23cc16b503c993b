package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/DarkSmileee/BlockShelf/pkg/config"
	"github.com/DarkSmileee/BlockShelf/pkg/logger"
)

// RebrickablePart is the parts endpoint response, trimmed to the fields
// the pipeline stores.
type RebrickablePart struct {
	PartNum    string `json:"part_num"`
	Name       string `json:"name"`
	PartImgURL string `json:"part_img_url"`
}

// RebrickableElement is the elements endpoint response: part and color
// arrive together.
type RebrickableElement struct {
	Part struct {
		PartNum    string `json:"part_num"`
		Name       string `json:"name"`
		PartImgURL string `json:"part_img_url"`
	} `json:"part"`
	Color struct {
		ID      int    `json:"id"`
		Name    string `json:"name"`
		RGB     string `json:"rgb"`
		IsTrans bool   `json:"is_trans"`
	} `json:"color"`
	ElementID string `json:"element_id"`
}

// RebrickableClient talks to the Rebrickable v3 API. A nil part result
// with a nil error is a clean 404 miss; transport and non-200 failures
// are errors the pipeline treats as soft.
type RebrickableClient struct {
	http    *http.Client
	baseURL string
	logg    *logger.Logger
}

// NewRebrickableClient builds the API client with the configured timeout.
func NewRebrickableClient(cfg config.RebrickableConfig, timeout time.Duration, logg *logger.Logger) *RebrickableClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RebrickableClient{
		http:    &http.Client{Timeout: timeout},
		baseURL: cfg.BaseURL,
		logg:    logg,
	}
}

// GetPart fetches a part by number.
func (c *RebrickableClient) GetPart(ctx context.Context, apiKey, partNum string) (*RebrickablePart, error) {
	endpoint := fmt.Sprintf("%s/lego/parts/%s/", c.baseURL, url.PathEscape(partNum))
	body, found, err := c.get(ctx, apiKey, endpoint)
	if err != nil || !found {
		return nil, err
	}
	var part RebrickablePart
	if err := json.Unmarshal(body, &part); err != nil {
		return nil, fmt.Errorf("decode part response: %w", err)
	}
	return &part, nil
}

// GetElement fetches an element by its manufacturer ID.
func (c *RebrickableClient) GetElement(ctx context.Context, apiKey, elementID string) (*RebrickableElement, error) {
	endpoint := fmt.Sprintf("%s/lego/elements/%s/", c.baseURL, url.PathEscape(elementID))
	body, found, err := c.get(ctx, apiKey, endpoint)
	if err != nil || !found {
		return nil, err
	}
	var element RebrickableElement
	if err := json.Unmarshal(body, &element); err != nil {
		return nil, fmt.Errorf("decode element response: %w", err)
	}
	return &element, nil
}

func (c *RebrickableClient) get(ctx context.Context, apiKey, endpoint string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Authorization", "key "+apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, nil
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("rebrickable returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}
