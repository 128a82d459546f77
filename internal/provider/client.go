package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/viltskaa/prometei/config"
	"github.com/viltskaa/prometei/internal/domain"
)

// Error is the provider's error envelope. Any non-2xx response, and any body
// that does not match the expected shape, is reported as one of these.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Client talks to the booking provider backend. All payloads are plain JSON.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg config.ProviderConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) GetAirports(ctx context.Context) ([]domain.Airport, error) {
	var airports []domain.Airport
	if err := c.do(ctx, http.MethodGet, "/flight/getAirports", nil, nil, &airports); err != nil {
		return nil, err
	}
	return airports, nil
}

func (c *Client) GetFlight(ctx context.Context, id string) (*domain.FlightLeg, error) {
	var leg domain.FlightLeg
	query := url.Values{"flightId": {id}}
	if err := c.do(ctx, http.MethodGet, "/flight/get", query, nil, &leg); err != nil {
		return nil, err
	}
	return &leg, nil
}

func (c *Client) GetFlightFavors(ctx context.Context, id string) ([]domain.Favor, error) {
	var favors []domain.Favor
	query := url.Values{"flightId": {id}}
	if err := c.do(ctx, http.MethodGet, "/flight/getFlightFavors", query, nil, &favors); err != nil {
		return nil, err
	}
	return favors, nil
}

func (c *Client) GetTicketsByFlight(ctx context.Context, flightID string) ([]domain.SeatTicket, error) {
	var tickets []domain.SeatTicket
	query := url.Values{"flightId": {flightID}}
	if err := c.do(ctx, http.MethodGet, "/ticket/getByFlight", query, nil, &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (c *Client) AddFavorsToTicket(ctx context.Context, ticketID string, favors []domain.Favor) (string, error) {
	var result string
	query := url.Values{"ticketId": {ticketID}}
	if err := c.do(ctx, http.MethodPost, "/ticket/addAdditionalFavors", query, favors, &result); err != nil {
		return "", err
	}
	return result, nil
}

func (c *Client) CreatePurchase(ctx context.Context, draft domain.PurchaseDraft) (string, error) {
	var hash string
	if err := c.do(ctx, http.MethodPost, "/purchase/create", nil, draft, &hash); err != nil {
		return "", err
	}
	return hash, nil
}

func (c *Client) ConfirmPayment(ctx context.Context, hash string) (bool, error) {
	var ok bool
	query := url.Values{"paymentHash": {hash}}
	if err := c.do(ctx, http.MethodPatch, "/payment/confirmPay", query, nil, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (c *Client) CheckPaymentStatus(ctx context.Context, hash string) (string, error) {
	var status string
	query := url.Values{"paymentHash": {hash}}
	if err := c.do(ctx, http.MethodGet, "/payment/check", query, nil, &status); err != nil {
		return "", err
	}
	return status, nil
}

func (c *Client) CancelPayment(ctx context.Context, hash string) (bool, error) {
	var ok bool
	query := url.Values{"paymentHash": {hash}}
	if err := c.do(ctx, http.MethodPatch, "/payment/cancelPay", query, nil, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (c *Client) SendConfirmationEmail(ctx context.Context, email, hash string) (string, error) {
	var result string
	query := url.Values{"email": {email}, "hash": {hash}}
	if err := c.do(ctx, http.MethodGet, "/email/htmlEmail", query, nil, &result); err != nil {
		return "", err
	}
	return result, nil
}

func (c *Client) HeatMap(ctx context.Context, userID string, model domain.AircraftModel) ([]domain.HeatMap, error) {
	var maps []domain.HeatMap
	query := url.Values{"userId": {userID}, "airplaneModel": {string(model)}}
	if err := c.do(ctx, http.MethodGet, "/statistic/heatMap", query, nil, &maps); err != nil {
		return nil, err
	}
	return maps, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return &Error{Code: "ERR_ENCODE", Message: err.Error()}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return &Error{Code: "ERR_REQUEST", Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Code: "ERR_NETWORK", Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Code: "ERR_READ", Message: err.Error()}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var perr Error
		if json.Unmarshal(data, &perr) == nil && perr.Code != "" {
			return &perr
		}
		return &Error{Code: resp.Status, Message: string(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		// Plain-text bodies are tolerated for string results.
		if s, ok := out.(*string); ok {
			*s = string(data)
			return nil
		}
		return &Error{Code: "ERR_DECODE", Message: err.Error()}
	}
	return nil
}
