package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"smart-parking/internal/parking"
	"smart-parking/internal/server"
)

// Client talks to a running smart-parking server over its HTTP API.
type Client struct {
	httpClient *resty.Client
}

func New(baseURL string) *Client {
	restyClient := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(15 * time.Second)

	return &Client{httpClient: restyClient}
}

// Park admits a vehicle and returns its slot.
func (c *Client) Park(ctx context.Context, plate, owner string, category parking.Category) (int, error) {
	result := new(server.ParkResponse)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"plate": plate,
			"owner": owner,
			"type":  string(category),
		}).
		SetResult(result).
		Post("/park")
	if err != nil {
		return 0, fmt.Errorf("park %s: %w", plate, err)
	}
	if err := checkStatus(resp); err != nil {
		return 0, err
	}
	if !result.Success {
		return 0, errorFor(result.Code, result.Message)
	}
	return result.Slot, nil
}

// Exit releases a vehicle and returns the fee billed.
func (c *Client) Exit(ctx context.Context, plate string) (float64, error) {
	result := new(server.FeeResponse)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{"plate": plate}).
		SetResult(result).
		Post("/exit")
	if err != nil {
		return 0, fmt.Errorf("exit %s: %w", plate, err)
	}
	return feeResult(resp, result)
}

// QuoteFee returns the fee a vehicle would pay if it left now.
func (c *Client) QuoteFee(ctx context.Context, plate string) (float64, error) {
	result := new(server.FeeResponse)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("plate", plate).
		SetResult(result).
		Get("/fee")
	if err != nil {
		return 0, fmt.Errorf("quote fee %s: %w", plate, err)
	}
	return feeResult(resp, result)
}

func (c *Client) Find(ctx context.Context, plate string) (server.VehicleDocument, error) {
	var result struct {
		Success bool                   `json:"success"`
		Data    server.VehicleDocument `json:"data"`
		Error   string                 `json:"error"`
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("plate", plate).
		SetResult(&result).
		SetError(&result).
		Get("/find/{plate}")
	if err != nil {
		return server.VehicleDocument{}, fmt.Errorf("find %s: %w", plate, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return server.VehicleDocument{}, parking.ErrNotFound
	}
	if err := checkStatus(resp); err != nil {
		return server.VehicleDocument{}, err
	}
	return result.Data, nil
}

func (c *Client) Snapshot(ctx context.Context) (server.SnapshotDocument, error) {
	var result server.SnapshotDocument

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/data")
	if err != nil {
		return server.SnapshotDocument{}, fmt.Errorf("fetch snapshot: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		return server.SnapshotDocument{}, err
	}
	return result, nil
}

func (c *Client) Health(ctx context.Context) (server.HealthResponse, error) {
	var result server.HealthResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/health")
	if err != nil {
		return server.HealthResponse{}, fmt.Errorf("health check: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		return server.HealthResponse{}, err
	}
	return result, nil
}

func feeResult(resp *resty.Response, result *server.FeeResponse) (float64, error) {
	if err := checkStatus(resp); err != nil {
		return 0, err
	}
	if !result.Success {
		return 0, errorFor(result.Code, result.Message)
	}
	return float64(result.Fee), nil
}

func checkStatus(resp *resty.Response) error {
	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("smart-parking api error: status=%d, body=%s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}

// errorFor maps a response code back to the ledger error it came from.
func errorFor(code, message string) error {
	switch code {
	case server.CodeAtCapacity:
		return parking.ErrAtCapacity
	case server.CodeAlreadyParked:
		return parking.ErrAlreadyParked
	case server.CodeNotFound:
		return parking.ErrNotFound
	default:
		return errors.New(message)
	}
}
