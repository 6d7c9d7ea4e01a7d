// Package dispatch implements the notification fan-out pipeline: for one
// broadcast request it loads every subscription, multicasts the message,
// prunes permanently dead tokens and records a terminal status.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shaharia-lab/muster/internal/eventbus"
	"github.com/shaharia-lab/muster/internal/push"
	"github.com/shaharia-lab/muster/internal/storage"
)

const (
	defaultTitle   = "Squadron Notice"
	defaultTimeout = 2 * time.Minute
)

// FinalizeTimeout bounds terminal writes, which run detached from the
// pipeline deadline so they still land after a timeout. A claim can be held
// for at most Config.Timeout plus FinalizeTimeout.
const FinalizeTimeout = 15 * time.Second

var tracer = otel.Tracer("github.com/shaharia-lab/muster/internal/dispatch")

// Config holds the engine configuration.
type Config struct {
	// Title is the notification title shown on every device.
	Title string
	// MaxBatchSize caps the tokens per gateway call. Values outside
	// (0, push.MaxMulticastTokens] use the gateway maximum.
	MaxBatchSize int
	// Timeout bounds load, send and prune for one request.
	Timeout time.Duration
	// DeadTokenCodes lists the error codes that cause pruning.
	// Defaults to DefaultDeadTokenCodes.
	DeadTokenCodes []string
}

// Trigger is the request snapshot an invocation starts from.
type Trigger struct {
	RequestID string
	Status    storage.RequestStatus
	Message   string
}

// TriggerFromEvent converts an EventRequestCreated event into a Trigger.
func TriggerFromEvent(e eventbus.Event) Trigger {
	return Trigger{
		RequestID: e.Payload["id"],
		Status:    storage.RequestStatus(e.Payload["status"]),
		Message:   e.Payload["message"],
	}
}

// Outcome summarizes one invocation. It is informational; the durable
// record is the request row itself.
type Outcome struct {
	RequestID   string
	Skipped     bool
	Status      storage.RequestStatus
	SentCount   int
	FailedCount int
	Pruned      int64
	Err         error
}

// Engine runs the load → send → classify → prune → finalize sequence.
type Engine struct {
	requests  storage.RequestStore
	subs      storage.SubscriptionStore
	gateway   push.Gateway
	cfg       Config
	deadCodes map[string]bool
	logger    *slog.Logger
	metrics   *Metrics

	now        func() time.Time
	newClaimID func() string
}

// New creates an Engine. A nil metrics gets an unregistered set.
func New(
	requests storage.RequestStore,
	subs storage.SubscriptionStore,
	gateway push.Gateway,
	cfg Config,
	logger *slog.Logger,
	metrics *Metrics,
) *Engine {
	if cfg.Title == "" {
		cfg.Title = defaultTitle
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if len(cfg.DeadTokenCodes) == 0 {
		cfg.DeadTokenCodes = DefaultDeadTokenCodes
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	deadCodes := make(map[string]bool, len(cfg.DeadTokenCodes))
	for _, c := range cfg.DeadTokenCodes {
		deadCodes[c] = true
	}

	return &Engine{
		requests:   requests,
		subs:       subs,
		gateway:    gateway,
		cfg:        cfg,
		deadCodes:  deadCodes,
		logger:     logger,
		metrics:    metrics,
		now:        func() time.Time { return time.Now().UTC() },
		newClaimID: func() string { return uuid.New().String() },
	}
}

// HandleEvent is an eventbus.Listener that dispatches created requests.
func (e *Engine) HandleEvent(ev eventbus.Event) {
	if ev.Type != eventbus.EventRequestCreated {
		return
	}
	e.Dispatch(context.Background(), TriggerFromEvent(ev))
}

// Dispatch processes one request. It never returns an error: every pipeline
// failure is recorded on the request as a terminal failed status.
func (e *Engine) Dispatch(ctx context.Context, trig Trigger) (out Outcome) {
	out.RequestID = trig.RequestID

	if trig.Status != storage.RequestStatusPending {
		e.logger.Debug("request not pending, skipping dispatch",
			"request_id", trig.RequestID, "status", trig.Status)
		return e.skipped(out, trig.Status)
	}

	ctx, span := tracer.Start(ctx, "dispatch.request",
		trace.WithAttributes(attribute.String("request.id", trig.RequestID)))
	defer span.End()

	start := time.Now()
	claimID := e.newClaimID()

	defer func() {
		if r := recover(); r != nil {
			out = e.fail(ctx, trig.RequestID, claimID, fmt.Errorf("panic during dispatch: %v", r), start)
		}
		if out.Err != nil {
			span.RecordError(out.Err)
			span.SetStatus(codes.Error, out.Err.Error())
		}
	}()

	claimed, err := e.requests.ClaimRequest(ctx, trig.RequestID, claimID, e.now())
	if err != nil {
		return e.fail(ctx, trig.RequestID, "", fmt.Errorf("claiming request: %w", err), start)
	}
	if !claimed {
		e.logger.Info("request already claimed or finalized, skipping dispatch",
			"request_id", trig.RequestID)
		return e.skipped(out, trig.Status)
	}

	d, err := e.deliver(ctx, trig)
	if err != nil {
		return e.fail(ctx, trig.RequestID, claimID, err, start)
	}

	writeCtx, cancel := detached(ctx)
	defer cancel()
	if err := e.requests.CompleteRequest(writeCtx, trig.RequestID, claimID, d.sent, d.failed, e.now()); err != nil {
		return e.fail(ctx, trig.RequestID, claimID, fmt.Errorf("finalizing request: %w", err), start)
	}

	e.metrics.Requests.WithLabelValues(string(storage.RequestStatusCompleted)).Inc()
	e.metrics.Duration.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int("dispatch.sent", d.sent),
		attribute.Int("dispatch.failed", d.failed),
		attribute.Int64("dispatch.pruned", d.pruned),
	)
	e.logger.Info("dispatch completed",
		"request_id", trig.RequestID,
		"subscriptions", d.subscriptions,
		"sent", d.sent,
		"failed", d.failed,
		"pruned", d.pruned,
		"duration", time.Since(start))

	out.Status = storage.RequestStatusCompleted
	out.SentCount = d.sent
	out.FailedCount = d.failed
	out.Pruned = d.pruned
	return out
}

type delivery struct {
	subscriptions int
	sent          int
	failed        int
	pruned        int64
}

// deliver loads subscriptions, sends, classifies and prunes within the
// configured timeout.
func (e *Engine) deliver(ctx context.Context, trig Trigger) (delivery, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	var d delivery

	subs, err := e.subs.ListSubscriptions(ctx)
	if err != nil {
		return d, fmt.Errorf("loading subscriptions: %w", err)
	}
	d.subscriptions = len(subs)
	if len(subs) == 0 {
		return d, nil
	}

	tokens := make([]string, len(subs))
	for i, s := range subs {
		tokens[i] = s.Token
	}

	data := map[string]string{
		"message":   trig.Message,
		"timestamp": e.now().Format(time.RFC3339),
	}

	dead := make(map[string]struct{})
	batches := chunkTokens(tokens, e.cfg.MaxBatchSize)
	attempted := 0
	for i, batch := range batches {
		resp, err := e.sendBatch(ctx, batch, trig.Message, data)
		if err != nil {
			if attempted > 0 {
				return d, fmt.Errorf("sending batch %d of %d after %d tokens attempted: %w",
					i+1, len(batches), attempted, err)
			}
			return d, fmt.Errorf("sending multicast via %s: %w", e.gateway.Name(), err)
		}
		attempted += len(batch)

		d.sent += resp.SuccessCount
		d.failed += resp.FailureCount
		e.recordOutcomes(trig.RequestID, batch, resp)
		collectDead(batch, resp, e.deadCodes, dead)
	}

	ids := subscriptionsToPrune(subs, dead)
	if len(ids) == 0 {
		return d, nil
	}
	n, err := e.subs.DeleteSubscriptions(ctx, ids)
	if err != nil {
		return d, fmt.Errorf("pruning %d subscriptions: %w", len(ids), err)
	}
	d.pruned = n
	e.metrics.Pruned.Add(float64(n))
	e.logger.Info("pruned dead subscriptions",
		"request_id", trig.RequestID, "tokens", len(dead), "subscriptions", n)
	return d, nil
}

func (e *Engine) sendBatch(
	ctx context.Context, batch []string, message string, data map[string]string,
) (*push.BatchResponse, error) {
	ctx, span := tracer.Start(ctx, "dispatch.send_multicast",
		trace.WithAttributes(attribute.Int("dispatch.tokens", len(batch))))
	defer span.End()

	resp, err := e.gateway.SendMulticast(ctx, &push.MulticastMessage{
		Tokens: batch,
		Title:  e.cfg.Title,
		Body:   message,
		Data:   data,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if resp == nil || len(resp.Responses) != len(batch) {
		got := 0
		if resp != nil {
			got = len(resp.Responses)
		}
		return nil, fmt.Errorf("gateway returned %d results for %d tokens", got, len(batch))
	}
	return resp, nil
}

func (e *Engine) recordOutcomes(requestID string, batch []string, resp *push.BatchResponse) {
	for i, r := range resp.Responses {
		if r.Success {
			e.metrics.Deliveries.WithLabelValues("success", "ok").Inc()
			continue
		}
		e.metrics.Deliveries.WithLabelValues("failure", r.ErrorCode).Inc()
		attrs := []any{
			"request_id", requestID,
			"token_suffix", tokenSuffix(batch[i]),
			"code", r.ErrorCode,
			"permanent", e.deadCodes[r.ErrorCode],
		}
		if r.Err != nil {
			attrs = append(attrs, "error", r.Err)
		}
		e.logger.Warn("delivery failed", attrs...)
	}
}

// fail records a terminal failed status. Errors writing it are logged, never
// returned: the sweeper fails abandoned claims later.
func (e *Engine) fail(ctx context.Context, id, claimID string, cause error, start time.Time) Outcome {
	writeCtx, cancel := detached(ctx)
	defer cancel()

	e.metrics.Requests.WithLabelValues(string(storage.RequestStatusFailed)).Inc()
	e.metrics.Duration.Observe(time.Since(start).Seconds())
	e.logger.Error("dispatch failed", "request_id", id, "error", cause)

	if err := e.requests.FailRequest(writeCtx, id, claimID, cause.Error(), e.now()); err != nil {
		if errors.Is(err, storage.ErrRequestNotPending) {
			e.logger.Warn("request finalized elsewhere, failure not recorded",
				"request_id", id, "error", err)
		} else {
			e.logger.Error("failed to record dispatch failure",
				"request_id", id, "error", err)
		}
	}
	return Outcome{RequestID: id, Status: storage.RequestStatusFailed, Err: cause}
}

// skipped marks out as a no-op. Status is the status the trigger carried.
func (e *Engine) skipped(out Outcome, status storage.RequestStatus) Outcome {
	e.metrics.Requests.WithLabelValues("skipped").Inc()
	out.Skipped = true
	out.Status = status
	return out
}

func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), FinalizeTimeout)
}

// tokenSuffix returns the last few characters of a token for log correlation.
func tokenSuffix(token string) string {
	const n = 6
	if len(token) <= n {
		return token
	}
	return token[len(token)-n:]
}
