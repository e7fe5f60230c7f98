// Package dispatch drives the sequential, throttled send loop over a
// batch of rendered messages.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/festal-inc/haishin/internal/domain"
	"github.com/festal-inc/haishin/internal/mail"
)

// Operator-visible result messages. The ledger's message field always
// carries one of these unless the provider supplied its own detail.
const (
	MessageSent      = "送信成功"
	MessageRejected  = "送信失敗"
	MessageTransport = "ネットワークエラー"
	MessageCanceled  = "送信キャンセル"
)

// OnResult is invoked after every ledger append with a copy of the new
// entry, for live progress reporting. May be nil.
type OnResult func(domain.DispatchResult)

// Orchestrator runs one batch at a time: exactly one send in flight,
// a fixed delay between sends, per-recipient failure isolation, and an
// append-only result ledger in strict input order.
type Orchestrator struct {
	sender mail.Sender
	logger *slog.Logger

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration)
}

// NewOrchestrator creates a dispatch orchestrator over the given sender
// capability.
func NewOrchestrator(sender mail.Sender, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		sender: sender,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Dispatch sends every message in order as senderEmail, waiting delay
// between consecutive sends (none after the last). The returned ledger
// always has exactly len(messages) entries: a recipient's failure is
// recorded, never propagated, and cancellation marks the remaining
// recipients failed instead of truncating the ledger.
func (o *Orchestrator) Dispatch(ctx context.Context, messages []domain.RenderedMessage, senderEmail string, delay time.Duration, onResult OnResult) []domain.DispatchResult {
	results := make([]domain.DispatchResult, 0, len(messages))

	for i, msg := range messages {
		var result domain.DispatchResult

		select {
		case <-ctx.Done():
			result = domain.DispatchResult{
				Index:          i + 1,
				RecipientEmail: msg.Recipient.Email,
				Success:        false,
				Message:        MessageCanceled,
			}
		default:
			result = o.sendOne(ctx, i+1, msg, senderEmail)
		}

		results = append(results, result)
		if onResult != nil {
			onResult(result)
		}

		if result.Success {
			sendsTotal.WithLabelValues("success").Inc()
		} else {
			sendsTotal.WithLabelValues("failure").Inc()
		}

		// Throttle between sends; the final item gets no trailing delay.
		if i < len(messages)-1 && ctx.Err() == nil {
			o.sleep(ctx, delay)
		}
	}

	return results
}

// sendOne performs a single send and maps the outcome to a ledger entry.
// A transport error is caught here: one recipient's failure must never
// abort the batch.
func (o *Orchestrator) sendOne(ctx context.Context, index int, msg domain.RenderedMessage, senderEmail string) domain.DispatchResult {
	result, err := o.sender.Send(ctx, &mail.Message{
		From:    senderEmail,
		To:      msg.Recipient.Email,
		Subject: msg.Subject,
		Body:    msg.Body,
	})
	if err != nil || result == nil {
		// A nil result without an error is a broken Sender; record it as
		// a transport failure rather than panicking the batch goroutine.
		o.logger.Error("dispatch: transport failure",
			"index", index,
			"recipient", msg.Recipient.Email,
			"error", err,
		)
		return domain.DispatchResult{
			Index:          index,
			RecipientEmail: msg.Recipient.Email,
			Success:        false,
			Message:        MessageTransport,
		}
	}

	message := result.Detail
	if message == "" {
		if result.Accepted {
			message = MessageSent
		} else {
			message = MessageRejected
		}
	}

	o.logger.Info("dispatch: send completed",
		"index", index,
		"recipient", msg.Recipient.Email,
		"accepted", result.Accepted,
	)

	return domain.DispatchResult{
		Index:          index,
		RecipientEmail: msg.Recipient.Email,
		Success:        result.Accepted,
		Message:        message,
	}
}

// sleepContext waits for d or until ctx is canceled, whichever is first.
func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
