// Package pg is the client of the external payment gateway. Every call goes
// through a resilience policy: bounded retries around a circuit breaker.
package pg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/apperr"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/config"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/metrics"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/resilience"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/domain"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	userHeader    = "X-USER-ID"
	resultSuccess = "SUCCESS"
)

// ErrTransient marks failures worth retrying: timeouts, connection errors,
// 5xx and 429 responses.
var ErrTransient = fmt.Errorf("payment gateway unavailable: %w", apperr.ErrExternalDependency)

type TransactionStatus string

const (
	TransactionPending TransactionStatus = "PENDING"
	TransactionSuccess TransactionStatus = "SUCCESS"
	TransactionFailed  TransactionStatus = "FAILED"
)

type PaymentRequest struct {
	OrderID  int64
	UserID   int64
	CardType string
	CardNo   string
	Amount   int64
}

type Transaction struct {
	TransactionKey string            `json:"transactionKey"`
	Status         TransactionStatus `json:"status"`
	Reason         string            `json:"reason"`
}

type Client interface {
	RequestPayment(ctx context.Context, req PaymentRequest) (*Transaction, error)
	GetTransaction(ctx context.Context, userID int64, transactionKey string) (*Transaction, error)
}

type requestBody struct {
	OrderID     string `json:"orderId"`
	CardType    string `json:"cardType"`
	CardNo      string `json:"cardNo"`
	Amount      string `json:"amount"`
	CallbackURL string `json:"callbackUrl"`
}

type responseBody struct {
	Meta struct {
		Result    string `json:"result"`
		ErrorCode string `json:"errorCode"`
		Message   string `json:"message"`
	} `json:"meta"`
	Data *Transaction `json:"data"`
}

type httpClient struct {
	baseURL     string
	callbackURL string
	http        *http.Client
	policy      *resilience.Policy
	logger      *zap.Logger
	tracer      trace.Tracer
}

func NewClient(cfg config.PaymentGateway, policy *resilience.Policy, logger *zap.Logger) Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
	}

	return &httpClient{
		baseURL:     cfg.BaseURL,
		callbackURL: cfg.CallbackURL,
		http: &http.Client{
			Transport: otelhttp.NewTransport(transport),
			Timeout:   cfg.ConnectTimeout + cfg.ReadTimeout,
		},
		policy: policy,
		logger: logger,
		tracer: otel.Tracer("client/pg"),
	}
}

// NewPolicy builds the gateway policy. Business rejections count as
// successes for the breaker and are never retried.
func NewPolicy(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) *resilience.Policy {
	breakerSettings := resilience.BreakerSettingsFrom("payment-gateway", cfg.Breaker)
	breakerSettings.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, domain.ErrPaymentRejected)
	}

	return resilience.NewPolicy(
		resilience.NewBreaker(breakerSettings, m, logger),
		resilience.NewRetry(resilience.RetrySettingsFrom("payment-gateway", cfg.Retry, IsTransient), m, logger),
	)
}

func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

func (c *httpClient) RequestPayment(ctx context.Context, req PaymentRequest) (*Transaction, error) {
	ctx, span := c.tracer.Start(ctx, "PaymentGateway.RequestPayment")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", req.OrderID),
		attribute.Int64("amount", req.Amount),
	)

	body, err := json.Marshal(requestBody{
		OrderID:     fmt.Sprintf("%06d", req.OrderID),
		CardType:    req.CardType,
		CardNo:      req.CardNo,
		Amount:      decimal.NewFromInt(req.Amount).String(),
		CallbackURL: c.callbackURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode payment request: %w", err)
	}

	trx, err := resilience.Execute(ctx, c.policy, func(ctx context.Context) (*Transaction, error) {
		return c.do(ctx, http.MethodPost, c.baseURL+"/api/v1/payments", req.UserID, body)
	})
	if err != nil {
		span.RecordError(err)

		mylogger.Warn(
			ctx,
			c.logger,
			"Payment request failed",
			zap.Int64("order_id", req.OrderID),
			zap.Error(err),
		)

		return nil, err
	}

	return trx, nil
}

func (c *httpClient) GetTransaction(ctx context.Context, userID int64, transactionKey string) (*Transaction, error) {
	ctx, span := c.tracer.Start(ctx, "PaymentGateway.GetTransaction")
	defer span.End()

	span.SetAttributes(attribute.String("transaction_key", transactionKey))

	trx, err := resilience.Execute(ctx, c.policy, func(ctx context.Context) (*Transaction, error) {
		return c.do(ctx, http.MethodGet, c.baseURL+"/api/v1/payments/"+transactionKey, userID, nil)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return trx, nil
}

func (c *httpClient) do(ctx context.Context, method, url string, userID int64, body []byte) (*Transaction, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(userHeader, fmt.Sprintf("%d", userID))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: status %d", ErrTransient, resp.StatusCode)
	}

	var out responseBody
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("%w: status %d", domain.ErrPaymentRejected, resp.StatusCode)
		}

		return nil, fmt.Errorf("%w: malformed response: %v", ErrTransient, err)
	}

	if resp.StatusCode >= http.StatusBadRequest || out.Meta.Result != resultSuccess || out.Data == nil {
		return nil, fmt.Errorf("%w: status %d, %s %s", domain.ErrPaymentRejected, resp.StatusCode, out.Meta.ErrorCode, out.Meta.Message)
	}

	return out.Data, nil
}
