package kafka

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	HeaderOriginalTopic     = "x-original-topic"
	HeaderOriginalPartition = "x-original-partition"
	HeaderOriginalOffset    = "x-original-offset"
	HeaderErrorMessage      = "x-error-message"
	HeaderFailedAt          = "x-failed-at"
)

type DeadLetterSink interface {
	Send(ctx context.Context, msg *sarama.ConsumerMessage, cause error) error
	Close() error
}

type DeadLetterWriter struct {
	writer *kafkago.Writer
	suffix string
	logger *zap.Logger
	tracer trace.Tracer
}

// NewDeadLetterWriter routes failed messages to "<topic><suffix>", keeping
// the original key and value and recording where the message came from.
func NewDeadLetterWriter(brokers []string, suffix string, logger *zap.Logger) *DeadLetterWriter {
	return &DeadLetterWriter{
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(brokers...),
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireAll,
			AllowAutoTopicCreation: true,
			WriteTimeout:           5 * time.Second,
		},
		suffix: suffix,
		logger: logger,
		tracer: otel.Tracer("pkg/kafka/dead_letter"),
	}
}

func (w *DeadLetterWriter) Send(ctx context.Context, msg *sarama.ConsumerMessage, cause error) error {
	dlt := msg.Topic + w.suffix

	ctx, span := w.tracer.Start(ctx, "DeadLetterWriter.Send")
	defer span.End()

	span.SetAttributes(
		attribute.String("dlt.topic", dlt),
		attribute.String("dlt.original_topic", msg.Topic),
	)

	errMsg := ""
	if cause != nil {
		errMsg = cause.Error()
	}

	headers := []kafkago.Header{
		{Key: HeaderOriginalTopic, Value: []byte(msg.Topic)},
		{Key: HeaderOriginalPartition, Value: []byte(strconv.Itoa(int(msg.Partition)))},
		{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		{Key: HeaderErrorMessage, Value: []byte(errMsg)},
		{Key: HeaderFailedAt, Value: []byte(time.Now().UTC().Format(time.RFC3339))},
	}

	err := w.writer.WriteMessages(ctx, kafkago.Message{
		Topic:   dlt,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to write dead letter to %s: %w", dlt, err)
	}

	mylogger.Warn(
		ctx,
		w.logger,
		"Message dead-lettered",
		zap.String("dlt_topic", dlt),
		zap.String("original_topic", msg.Topic),
		zap.Int32("original_partition", msg.Partition),
		zap.Int64("original_offset", msg.Offset),
		zap.String("error", errMsg),
	)

	return nil
}

func (w *DeadLetterWriter) Close() error {
	return w.writer.Close()
}
