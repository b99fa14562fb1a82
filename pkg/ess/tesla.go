package ess

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/tousync/pkg/common"
	"github.com/raterudder/tousync/pkg/log"
	"github.com/raterudder/tousync/pkg/types"
)

var errNoEnergySite = errors.New("no energy site found")

// Tesla implements the System interface for a Tesla energy site using the
// owner API. It only reads and writes the site's tariff.
type Tesla struct {
	client      *http.Client
	baseURL     string
	accessToken string

	mu       sync.Mutex
	siteID   string
	location *time.Location
}

// configuredTesla sets up flags for Tesla and returns the instance.
func configuredTesla() *Tesla {
	t := &Tesla{
		client: common.HTTPClient(time.Minute),
	}
	baseURL := lflag.String("tesla-api-url", "https://owner-api.teslamotors.com", "Base URL for the Tesla API")
	token := lflag.String("tesla-access-token", "", "OAuth access token for the Tesla API")
	siteID := lflag.String("tesla-site-id", "", "Energy site ID, discovered from the account's products if empty")

	lflag.Do(func() {
		t.baseURL = strings.TrimRight(*baseURL, "/")
		t.accessToken = *token
		t.siteID = *siteID
	})

	return t
}

// Validate ensures the configuration is valid.
func (t *Tesla) Validate() error {
	if t.accessToken == "" {
		return fmt.Errorf("tesla-access-token is required")
	}
	if _, err := url.Parse(t.baseURL); err != nil {
		return fmt.Errorf("failed to parse tesla url (%s): %w", t.baseURL, err)
	}
	return nil
}

type teslaResponse struct {
	Response json.RawMessage `json:"response"`
	Error    string          `json:"error"`
}

// do sends a request and decodes the response envelope into dest.
func (t *Tesla) do(ctx context.Context, method, path string, body any, dest any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var tr teslaResponse
	decodeErr := json.Unmarshal(raw, &tr)
	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && tr.Error != "" {
			return fmt.Errorf("tesla api returned status %d: %s", resp.StatusCode, tr.Error)
		}
		return fmt.Errorf("tesla api returned status: %d", resp.StatusCode)
	}
	if decodeErr != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to decode tesla response", slog.Any("error", decodeErr), slog.String("body", string(raw)))
		return fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if tr.Error != "" {
		return fmt.Errorf("tesla api error: %s", tr.Error)
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(tr.Response, dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// energySiteID returns the configured site or the only energy site on the
// account.
func (t *Tesla) energySiteID(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.siteID != "" {
		return t.siteID, nil
	}

	var products []struct {
		EnergySiteID *json.Number `json:"energy_site_id"`
		SiteName     string       `json:"site_name"`
	}
	if err := t.do(ctx, http.MethodGet, "/api/1/products", nil, &products); err != nil {
		return "", fmt.Errorf("failed to list products: %w", err)
	}
	var ids []string
	for _, p := range products {
		if p.EnergySiteID != nil {
			ids = append(ids, p.EnergySiteID.String())
		}
	}
	switch len(ids) {
	case 0:
		return "", errNoEnergySite
	case 1:
	default:
		return "", fmt.Errorf("found %d energy sites, set tesla-site-id to one of %v", len(ids), ids)
	}
	log.Ctx(ctx).InfoContext(ctx, "discovered tesla energy site", slog.String("siteID", ids[0]))
	t.siteID = ids[0]
	return t.siteID, nil
}

func (t *Tesla) sitePath(ctx context.Context, endpoint string) (string, error) {
	id, err := t.energySiteID(ctx)
	if err != nil {
		return "", err
	}
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return "", fmt.Errorf("invalid energy site id: %s", id)
	}
	return "/api/1/energy_sites/" + id + "/" + endpoint, nil
}

// GetTariff implements System.
func (t *Tesla) GetTariff(ctx context.Context) (types.Tariff, error) {
	path, err := t.sitePath(ctx, "tariff_rate")
	if err != nil {
		return nil, err
	}
	var tariff types.Tariff
	if err := t.do(ctx, http.MethodGet, path, nil, &tariff); err != nil {
		return nil, fmt.Errorf("failed to get tariff: %w", err)
	}
	if tariff == nil {
		tariff = types.Tariff{}
	}
	return tariff, nil
}

// SetTariff implements System.
func (t *Tesla) SetTariff(ctx context.Context, tariff types.Tariff) error {
	path, err := t.sitePath(ctx, "time_of_use_settings")
	if err != nil {
		return err
	}
	body := map[string]any{
		"tou_settings": map[string]any{
			"tariff_content": tariff,
		},
	}
	var result struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := t.do(ctx, http.MethodPost, path, body, &result); err != nil {
		return fmt.Errorf("failed to set tariff: %w", err)
	}
	log.Ctx(ctx).DebugContext(
		ctx,
		"set tesla tariff",
		slog.Int("code", result.Code),
		slog.String("message", result.Message),
	)
	return nil
}

// InstallationTimeZone implements System. The timezone is cached after the
// first successful lookup.
func (t *Tesla) InstallationTimeZone(ctx context.Context) (*time.Location, error) {
	t.mu.Lock()
	loc := t.location
	t.mu.Unlock()
	if loc != nil {
		return loc, nil
	}

	path, err := t.sitePath(ctx, "site_info")
	if err != nil {
		return nil, err
	}
	var info struct {
		InstallationTimeZone string `json:"installation_time_zone"`
	}
	if err := t.do(ctx, http.MethodGet, path, nil, &info); err != nil {
		return nil, fmt.Errorf("failed to get site info: %w", err)
	}
	if info.InstallationTimeZone == "" {
		return nil, fmt.Errorf("site has no installation timezone")
	}
	loc, err = time.LoadLocation(info.InstallationTimeZone)
	if err != nil {
		return nil, fmt.Errorf("failed to load installation timezone (%s): %w", info.InstallationTimeZone, err)
	}

	t.mu.Lock()
	t.location = loc
	t.mu.Unlock()
	return loc, nil
}
