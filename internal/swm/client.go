package swm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nerrad567/factory-data-core/internal/apperr"
	"github.com/nerrad567/factory-data-core/internal/infrastructure/config"
	"github.com/nerrad567/factory-data-core/internal/infrastructure/logging"
)

// maxResponseBytes caps how much of an SWM response body is read.
const maxResponseBytes = 1 << 20

// errUnauthorized is returned by do when SWM rejects the session.
var errUnauthorized = errors.New("swm: session rejected")

// Client mirrors vehicle lifecycle changes into SWM. It is safe for
// concurrent use.
type Client struct {
	cfg      config.SWMConfig
	baseURL  string
	http     *http.Client
	sessions *SessionCache
	logger   *logging.Logger
}

// NewClient creates an SWM client from configuration. Outbound calls are
// traced through otelhttp and bounded by cfg.Timeout.
func NewClient(cfg config.SWMConfig, logger *logging.Logger) (*Client, error) {
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parsing swm base url: %w", err)
	}
	if logger == nil {
		logger = logging.Default()
	}

	c := &Client{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.TimeoutDuration(),
		},
		logger: logger.With("component", "swm"),
	}
	c.sessions = NewSessionCache(cfg.SessionTTLDuration(), c.login)
	return c, nil
}

// Sessions exposes the session cache.
func (c *Client) Sessions() *SessionCache {
	return c.sessions
}

// CreateVehicle creates the vehicles of req in SWM. Each model code is
// resolved to an SWM model id, falling back to the configured default. A
// result code of 0, or a failure whose message equals the configured
// already-exists message, counts as success. An empty already-exists
// message matches nothing.
func (c *Client) CreateVehicle(ctx context.Context, req CreateVehicleRequest) (bool, error) {
	if len(req.Vehicles) == 0 {
		return false, apperr.ErrSwmCreate.Withf("no vehicles to create")
	}

	vehicles := make([]Vehicle, len(req.Vehicles))
	for i, v := range req.Vehicles {
		v.VehicleModelID = c.resolveModelID(ctx, v.ModelCode)
		vehicles[i] = v
	}

	var resp createVehiclesResponse
	if _, err := c.do(ctx, http.MethodPost, c.cfg.Paths.CreateVehicle, nil, createVehiclesBody{Vehicles: vehicles}, &resp); err != nil {
		return false, mirrorError(apperr.ErrSwmCreate, err)
	}

	if len(resp.ActionResults) == 0 {
		return false, apperr.ErrSwmCreate.Withf("SWM returned no action results")
	}

	result := resp.ActionResults[0]
	switch {
	case result.Code == successCode:
		return true, nil
	case c.cfg.AlreadyExistsMessage != "" && result.Message == c.cfg.AlreadyExistsMessage:
		c.logger.Info("vehicle already exists in SWM", "vin", vehicles[0].Vin)
		return true, nil
	default:
		return false, apperr.ErrSwmCreate.Withf("SWM rejected vehicle creation: code %d: %s", result.Code, result.Message)
	}
}

// UpdateVehicle updates the SWM vehicle carrying req.Vin. A VIN unknown to
// SWM is a failure.
func (c *Client) UpdateVehicle(ctx context.Context, req UpdateVehicleRequest) (bool, error) {
	id, found, err := c.findVehicleID(ctx, req.Vin)
	if err != nil {
		return false, mirrorError(apperr.ErrSwmUpdate, err)
	}
	if !found {
		return false, apperr.ErrSwmUpdate.Withf("no SWM vehicle with vin %q", req.Vin)
	}

	body := updateVehicleBody{
		ID:                  id,
		Vin:                 req.Vin,
		Region:              req.Region,
		PlatformVersion:     req.PlatformVersion,
		PackageSerialNumber: req.PackageSerialNumber,
	}
	if req.ModelCode != "" {
		body.VehicleModelID = c.resolveModelID(ctx, req.ModelCode)
	}

	status, err := c.do(ctx, http.MethodPut, c.cfg.Paths.UpdateVehicle, nil, body, nil)
	if err != nil {
		return false, mirrorError(apperr.ErrSwmUpdate, err)
	}
	return status == http.StatusOK, nil
}

// DeleteVehicle deletes the SWM vehicle carrying req.Vin. It reports false
// without an error when SWM has no such vehicle.
func (c *Client) DeleteVehicle(ctx context.Context, req DeleteVehicleRequest) (bool, error) {
	id, found, err := c.findVehicleID(ctx, req.Vin)
	if err != nil {
		return false, mirrorError(apperr.ErrSwmDelete, err)
	}
	if !found {
		return false, nil
	}

	status, err := c.do(ctx, http.MethodPut, c.cfg.Paths.DeleteVehicle, nil, deleteVehiclesBody{VehicleIDs: []int64{id}}, nil)
	if err != nil {
		return false, mirrorError(apperr.ErrSwmDelete, err)
	}
	return status == http.StatusOK, nil
}

// resolveModelID maps a model code to its SWM id by exact match. Any lookup
// failure or miss falls back to the configured default id.
func (c *Client) resolveModelID(ctx context.Context, modelCode string) int64 {
	var resp listModelsResponse
	if _, err := c.do(ctx, http.MethodGet, c.cfg.Paths.ListModels, nil, nil, &resp); err != nil {
		c.logger.Warn("listing SWM vehicle models failed, using default model",
			"model_code", modelCode, "default_model_id", c.cfg.DefaultModelID, "error", err)
		return c.cfg.DefaultModelID
	}

	for _, m := range resp.VehicleModels {
		if m.ModelCode == modelCode {
			return m.ID
		}
	}

	c.logger.Debug("model code not found in SWM, using default model",
		"model_code", modelCode, "default_model_id", c.cfg.DefaultModelID)
	return c.cfg.DefaultModelID
}

// findVehicleID looks up the SWM id of the vehicle carrying vin.
func (c *Client) findVehicleID(ctx context.Context, vin string) (int64, bool, error) {
	var resp listVehiclesResponse
	query := url.Values{"vin": []string{vin}}
	if _, err := c.do(ctx, http.MethodGet, c.cfg.Paths.ListVehicles, query, nil, &resp); err != nil {
		return 0, false, err
	}

	for _, v := range resp.Vehicles {
		if strings.EqualFold(v.Vin, vin) {
			return v.ID, true, nil
		}
	}
	return 0, false, nil
}

// login exchanges the configured credentials for a session id.
func (c *Client) login(ctx context.Context) (string, error) {
	body, err := json.Marshal(loginRequest{Username: c.cfg.Username, Password: c.cfg.Password})
	if err != nil {
		return "", fmt.Errorf("encoding login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.cfg.Paths.Login, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login returned status %d", resp.StatusCode)
	}

	var out loginResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding login response: %w", err)
	}

	c.logger.Debug("SWM session issued")
	return out.SessionID, nil
}

// do sends an authenticated JSON request and decodes a 2xx response into out
// when out is non-nil. A 401 drops the cached session and fails the call.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) (int, error) {
	session, err := c.sessions.Get(ctx)
	if err != nil {
		return 0, err
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encoding %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, fmt.Errorf("creating %s %s: %w", method, path, err)
	}
	req.Header.Set(SessionHeader, session)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("calling %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.sessions.Invalidate()
		return resp.StatusCode, errUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("%s %s returned status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

// mirrorError classifies err under base, letting session failures through
// unchanged so callers can tell them apart.
func mirrorError(base *apperr.Error, err error) error {
	if errors.Is(err, apperr.ErrSessionNull) {
		return err
	}
	return base.Wrap(err)
}
