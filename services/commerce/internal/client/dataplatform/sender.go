// Package dataplatform forwards order and payment facts to the analytics
// collector. Dispatch is best effort; callers log failures and move on.
package dataplatform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/config"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Sender interface {
	SendOrderPlaced(ctx context.Context, order *domain.Order) error
	SendPaymentResult(ctx context.Context, payment *domain.Payment) error
}

type record struct {
	Kind       string    `json:"kind"`
	OrderID    int64     `json:"orderId"`
	UserID     int64     `json:"userId"`
	Amount     int64     `json:"amount"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurredAt"`
}

type httpSender struct {
	url    string
	client *http.Client
	logger *zap.Logger
	tracer trace.Tracer
}

func NewHTTPSender(cfg config.DataPlatform, logger *zap.Logger) Sender {
	return &httpSender{
		url: cfg.URL,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.Timeout,
		},
		logger: logger,
		tracer: otel.Tracer("dataplatform/sender"),
	}
}

func (s *httpSender) SendOrderPlaced(ctx context.Context, order *domain.Order) error {
	ctx, span := s.tracer.Start(ctx, "dataplatform.SendOrderPlaced")
	defer span.End()

	span.SetAttributes(attribute.Int64("order_id", order.ID))

	return s.send(ctx, record{
		Kind:       "ORDER_PLACED",
		OrderID:    order.ID,
		UserID:     order.UserID,
		Amount:     order.FinalPrice,
		Status:     string(order.Status),
		OccurredAt: order.CreatedAt,
	})
}

func (s *httpSender) SendPaymentResult(ctx context.Context, payment *domain.Payment) error {
	ctx, span := s.tracer.Start(ctx, "dataplatform.SendPaymentResult")
	defer span.End()

	span.SetAttributes(attribute.Int64("order_id", payment.OrderID))

	return s.send(ctx, record{
		Kind:       "PAYMENT_RESULT",
		OrderID:    payment.OrderID,
		UserID:     payment.UserID,
		Amount:     payment.Amount,
		Status:     string(payment.Status),
		OccurredAt: payment.UpdatedAt,
	})
}

func (s *httpSender) send(ctx context.Context, rec record) error {
	if s.url == "" {
		mylogger.Debug(
			ctx,
			s.logger,
			"Data platform disabled, dropping record",
			zap.String("kind", rec.Kind),
			zap.Int64("order_id", rec.OrderID),
		)

		return nil
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	mylogger.Info(
		ctx,
		s.logger,
		"Sending record to data platform",
		zap.String("kind", rec.Kind),
		zap.Int64("order_id", rec.OrderID),
	)

	resp, err := s.client.Do(req)
	if err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
		return fmt.Errorf("failed to send %s: %w", rec.Kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("data platform answered %d for %s", resp.StatusCode, rec.Kind)
	}

	return nil
}
