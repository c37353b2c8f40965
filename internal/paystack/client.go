// Package paystack предоставляет клиент платёжного шлюза для пополнения кошелька.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL задаёт адрес API шлюза по умолчанию.
const DefaultBaseURL = "https://api.paystack.co"

// StatusSuccess обозначает успешную оплату в ответе verify.
const StatusSuccess = "success"

// ErrTransport оборачивает сбои связи со шлюзом: сеть, таймаут, нечитаемый ответ.
var ErrTransport = errors.New("payment gateway unavailable")

// GatewayError описывает отказ шлюза с сообщением для пользователя.
type GatewayError struct {
	Message string
}

func (e *GatewayError) Error() string {
	if e.Message == "" {
		return "gateway error: unknown error"
	}
	return "gateway error: " + e.Message
}

// Client инкапсулирует HTTP-взаимодействие с платёжным шлюзом.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// InitializeRequest содержит параметры инициализации платежа.
type InitializeRequest struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"`
	CallbackURL string `json:"callback_url,omitempty"`
}

// InitializeResult описывает принятый шлюзом платёж.
type InitializeResult struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
}

// VerifyResult описывает состояние платежа по данным шлюза.
type VerifyResult struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
}

// Successful сообщает, подтвердил ли шлюз оплату.
func (r *VerifyResult) Successful() bool {
	return r != nil && r.Status == StatusSuccess
}

type envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    *T     `json:"data"`
}

// NewClient создаёт HTTP-клиент шлюза по указанному адресу и секретному ключу.
func NewClient(baseURL, secretKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Initialize регистрирует платёж в шлюзе и возвращает ссылку на страницу оплаты.
func (c *Client) Initialize(ctx context.Context, in InitializeRequest) (*InitializeResult, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	var res envelope[InitializeResult]
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", bytes.NewReader(body), &res); err != nil {
		return nil, err
	}

	if !res.Status || res.Data == nil || res.Data.Reference == "" {
		return nil, &GatewayError{Message: res.Message}
	}

	return res.Data, nil
}

// Verify запрашивает у шлюза состояние платежа по reference.
func (c *Client) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	var res envelope[VerifyResult]
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &res); err != nil {
		return nil, err
	}

	if !res.Status || res.Data == nil {
		return nil, &GatewayError{Message: res.Message}
	}

	return res.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body *bytes.Reader, out any) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("payment gateway client not configured")
	}

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: do request: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	// Шлюз отвечает JSON-конвертом и на ошибках (4xx), поэтому тело декодируем всегда
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%w: unexpected status: %d", ErrTransport, resp.StatusCode)
		}
		return fmt.Errorf("%w: decode response: %w", ErrTransport, err)
	}

	return nil
}
