package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rabbitmq/amqp091-go"

	"costnest/internal/core"
	"costnest/internal/log"
	"costnest/internal/messages"
)

// Handler answers one raw message envelope. *messages.Dispatcher satisfies it.
type Handler interface {
	HandleRaw(ctx context.Context, raw []byte) (messages.Response, error)
}

type publishFunc func(ctx context.Context, exchange, routingKey string, msg amqp091.Publishing) error

// outcome is what process did with a delivery.
type outcome int

const (
	acked outcome = iota
	rejected
	requeued
)

// process handles one delivery. Domain errors are answered and acked,
// malformed payloads are answered and dropped, and storage failures are
// requeued once before being dropped.
func process(ctx context.Context, h Handler, d amqp091.Delivery, publish publishFunc) outcome {
	logger := log.FromContext(ctx).With("correlation_id", d.CorrelationId)

	resp, err := h.HandleRaw(ctx, d.Body)

	if errors.Is(err, core.ErrStorage) && !d.Redelivered {
		logger.ErrorContext(ctx, "Request failed on storage, requeueing", log.FieldError, err.Error())
		settle(ctx, logger, "nack", d.Nack(false, true))
		return requeued
	}

	if d.ReplyTo != "" {
		if replyErr := reply(ctx, d, resp, publish); replyErr != nil {
			logger.ErrorContext(ctx, "Failed to publish reply", log.FieldError, replyErr.Error(), "reply_to", d.ReplyTo)
		}
	}

	switch {
	case errors.Is(err, core.ErrFormat):
		logger.WarnContext(ctx, "Rejected malformed message", log.FieldError, err.Error())
		settle(ctx, logger, "nack", d.Nack(false, false))
		return rejected
	case errors.Is(err, core.ErrStorage):
		logger.ErrorContext(ctx, "Request failed again on storage, dropping", log.FieldError, err.Error())
		settle(ctx, logger, "nack", d.Nack(false, false))
		return rejected
	case err != nil:
		logger.InfoContext(ctx, "Request answered with error", log.FieldError, err.Error())
	default:
		logger.DebugContext(ctx, "Request handled")
	}
	settle(ctx, logger, "ack", d.Ack(false))
	return acked
}

// settle logs a failed ack or nack. The broker redelivers an unsettled
// message once the channel closes.
func settle(ctx context.Context, logger *log.Logger, action string, err error) {
	if err != nil {
		logger.ErrorContext(ctx, "Failed to settle delivery", "action", action, log.FieldError, err.Error())
	}
}

// reply publishes resp to the delivery's ReplyTo queue through the default
// exchange.
func reply(ctx context.Context, d amqp091.Delivery, resp messages.Response, publish publishFunc) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	return publish(ctx, "", d.ReplyTo, amqp091.Publishing{
		ContentType:   "application/json",
		CorrelationId: d.CorrelationId,
		Body:          body,
	})
}
