package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	errors "github.com/jameskipngetich/paymentService/internal"
)

const (
	tokenPath       = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath     = "/mpesa/stkpush/v1/processrequest"
	transactionType = "CustomerPayBillOnline"

	// ResponseCode the gateway returns when a push was accepted for
	// processing. Acceptance is not the final outcome; that arrives on
	// the callback.
	ResponseCodeAccepted = "0"
)

// Config carries the Daraja credentials and endpoints for one client.
type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
	RequestTimeout time.Duration
}

// Client talks to the Daraja OAuth and STK push endpoints. A client fetches
// one bearer token at construction and reuses it for its lifetime; callers
// rebuild the client (or call RefreshToken) when the token expires.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time

	// mu guards accessToken: RefreshToken may run while pushes are in
	// flight on other goroutines.
	mu          sync.RWMutex
	accessToken string
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

// STKPushAck is the gateway's synchronous acknowledgment of a push request.
type STKPushAck struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// NewClient builds a client and exchanges credentials for a bearer token.
// An auth failure here is fatal to the instance.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
		now:    time.Now,
	}

	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	c.setToken(token)

	return c, nil
}

// Authenticate exchanges the configured consumer key/secret for a
// short-lived bearer token.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+tokenPath, nil)
	if err != nil {
		return "", errors.NewAuthError("failed to build token request", err)
	}

	basic := base64.StdEncoding.EncodeToString([]byte(c.cfg.ConsumerKey + ":" + c.cfg.ConsumerSecret))
	req.Header.Set("Authorization", "Basic "+basic)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.NewAuthError("token request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.NewAuthError("failed to read token response", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("mpesa token endpoint returned error",
			"status", resp.StatusCode,
			"response", string(body))
		return "", errors.NewAuthError(fmt.Sprintf("token endpoint returned status %d", resp.StatusCode), nil)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", errors.NewAuthError("malformed token response", err)
	}
	if tr.AccessToken == "" {
		return "", errors.NewAuthError("token response missing access_token", nil)
	}

	return tr.AccessToken, nil
}

// RefreshToken replaces the cached bearer token. Hardening over the
// fetch-once baseline for long-lived processes.
func (c *Client) RefreshToken(ctx context.Context) error {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return err
	}
	c.setToken(token)
	return nil
}

// Password derives the push-request password: base64(shortcode + passkey +
// timestamp), with the timestamp formatted as YYYYMMDDHHmmss.
func (c *Client) Password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.Passkey + timestamp))
}

// InitiateSTKPush validates its inputs, then submits one push request to
// the gateway. Validation failures never reach the network. The returned
// ack only means the gateway accepted the push for processing.
func (c *Client) InitiateSTKPush(ctx context.Context, phoneNumber string, amount decimal.Decimal, accountReference string) (*STKPushAck, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, errors.NewValidationError("amount must be positive", errors.ErrCodeInvalidAmount)
	}

	normalized, appErr := NormalizePhone(phoneNumber)
	if appErr != nil {
		return nil, appErr
	}

	timestamp := c.now().Format("20060102150405")

	payload := stkPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          c.Password(timestamp),
		Timestamp:         timestamp,
		TransactionType:   transactionType,
		Amount:            amount.IntPart(),
		PartyA:            normalized,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       normalized,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  accountReference,
		TransactionDesc:   "Member payment",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.NewInternalError("failed to marshal push request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+stkPushPath, bytes.NewBuffer(body))
	if err != nil {
		return nil, errors.NewInternalError("failed to build push request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token())
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info("initiating stk push",
		"phone_number", normalized,
		"amount", amount.String(),
		"account_reference", accountReference)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewGatewayRejectedError("push request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewGatewayRejectedError("failed to read push response", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("mpesa push endpoint returned error",
			"status", resp.StatusCode,
			"response", string(respBody))
		return nil, errors.NewGatewayRejectedError(gatewayErrorMessage(resp.StatusCode, respBody), nil)
	}

	var ack STKPushAck
	if err := json.Unmarshal(respBody, &ack); err != nil {
		return nil, errors.NewGatewayRejectedError("malformed push response", err)
	}
	if ack.ResponseCode == "" {
		return nil, errors.NewGatewayRejectedError("push response missing ResponseCode", nil)
	}

	if ack.ResponseCode != ResponseCodeAccepted {
		c.logger.Warn("stk push not accepted",
			"response_code", ack.ResponseCode,
			"description", ack.ResponseDescription)
		return &ack, errors.NewGatewayRejectedError(
			fmt.Sprintf("push rejected with response code %s", ack.ResponseCode), nil)
	}

	c.logger.Info("stk push accepted",
		"merchant_request_id", ack.MerchantRequestID,
		"checkout_request_id", ack.CheckoutRequestID)

	return &ack, nil
}

func gatewayErrorMessage(status int, body []byte) string {
	var apiErr struct {
		ErrorMessage string `json:"errorMessage"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.ErrorMessage != "" {
		return fmt.Sprintf("HTTP %d: %s", status, apiErr.ErrorMessage)
	}
	return fmt.Sprintf("HTTP %d: %s", status, string(body))
}
