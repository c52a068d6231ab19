package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pms-assistant/internal/correlation"
	"pms-assistant/internal/metrics"
	"pms-assistant/internal/models"
	"pms-assistant/internal/resilience"
)

const (
	TargetPrimary   = "primary"
	TargetSecondary = "secondary"

	primaryDefaultConfidence   = 0.85
	secondaryDefaultConfidence = 0.9

	chatPath = "/api/chat"
)

type AIClientConfig struct {
	PrimaryURL       string
	SecondaryURL     string
	Model            string
	PrimaryTimeout   time.Duration
	SecondaryTimeout time.Duration
	RetryAttempts    int
	RetryBackoff     time.Duration
	FailureThreshold int
	Cooldown         time.Duration
}

// ResilientAIClient answers chat requests through the PRIMARY, SECONDARY and
// DEFAULT tiers in that order. Chat never fails: the last tier is canned.
type ResilientAIClient struct {
	primary   *resty.Client
	secondary *resty.Client
	model     string
	tracer    trace.Tracer

	primaryPolicy   resilience.Policy
	secondaryPolicy resilience.Policy
}

// tierOutcome is either a reply or the reason the tier produced none.
type tierOutcome struct {
	reply   models.ChatReply
	failure *resilience.Failure
}

func (o tierOutcome) ok() bool { return o.failure == nil }

type primaryRequest struct {
	Message       string                  `json:"message"`
	Context       []models.ContextMessage `json:"context"`
	RetrievedDocs []string                `json:"retrieved_docs"`
}

type secondaryRequest struct {
	UserID  string                  `json:"userId"`
	Message string                  `json:"message"`
	Context []models.ContextMessage `json:"context"`
}

// upstreamReply is the response shape shared by both upstream services.
type upstreamReply struct {
	Reply       *string   `json:"reply"`
	Confidence  *float64  `json:"confidence"`
	Suggestions *[]string `json:"suggestions"`
}

// NewResilientAIClient builds a client with one circuit breaker per target.
// Extra breaker options apply to both breakers.
func NewResilientAIClient(cfg AIClientConfig, opts ...resilience.BreakerOption) *ResilientAIClient {
	opts = append([]resilience.BreakerOption{resilience.WithStateListener(recordCircuitState)}, opts...)

	newBreaker := func(name string) *resilience.Breaker {
		metrics.CircuitState.WithLabelValues(name).Set(float64(resilience.StateClosed))
		return resilience.NewBreaker(name, cfg.FailureThreshold, cfg.Cooldown, opts...)
	}

	return &ResilientAIClient{
		primary:   newUpstreamClient(cfg.PrimaryURL),
		secondary: newUpstreamClient(cfg.SecondaryURL),
		model:     cfg.Model,
		tracer:    otel.Tracer("pms-assistant/services"),
		primaryPolicy: resilience.Policy{
			Name:     TargetPrimary,
			Attempts: cfg.RetryAttempts,
			Timeout:  cfg.PrimaryTimeout,
			Backoff:  cfg.RetryBackoff,
			Breaker:  newBreaker(TargetPrimary),
		},
		secondaryPolicy: resilience.Policy{
			Name:     TargetSecondary,
			Attempts: 1,
			Timeout:  cfg.SecondaryTimeout,
			Breaker:  newBreaker(TargetSecondary),
		},
	}
}

func newUpstreamClient(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
}

func recordCircuitState(name string, from, to resilience.State) {
	metrics.CircuitState.WithLabelValues(name).Set(float64(to))
	log.Warn().Str("target", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
}

// CircuitStates reports the breaker bookkeeping per target.
func (c *ResilientAIClient) CircuitStates() map[string]resilience.CircuitState {
	return map[string]resilience.CircuitState{
		TargetPrimary:   c.primaryPolicy.Breaker.Snapshot(),
		TargetSecondary: c.secondaryPolicy.Breaker.Snapshot(),
	}
}

// Chat runs the cascade for env. userID is only forwarded to the secondary service.
func (c *ResilientAIClient) Chat(ctx context.Context, userID string, env models.ChatRequestEnvelope) models.ChatReply {
	logger := zerolog.Ctx(ctx)

	out := c.callPrimary(ctx, env)
	if out.ok() {
		return c.finish(ctx, out.reply)
	}
	logger.Warn().Err(out.failure).Str("kind", out.failure.Kind.String()).Msg("primary AI tier failed, falling back to secondary")

	out = c.callSecondary(ctx, userID, env)
	if out.ok() {
		return c.finish(ctx, out.reply)
	}
	logger.Error().Err(out.failure).Str("kind", out.failure.Kind.String()).Msg("secondary AI tier failed, using default reply")

	return c.finish(ctx, c.callDefault(ctx, env.Message))
}

func (c *ResilientAIClient) finish(ctx context.Context, reply models.ChatReply) models.ChatReply {
	metrics.AIRepliesTotal.WithLabelValues(string(reply.Tier)).Inc()
	zerolog.Ctx(ctx).Info().
		Str("tier", string(reply.Tier)).
		Float64("confidence", reply.Confidence).
		Msg("AI reply produced")
	return reply
}

func (c *ResilientAIClient) callPrimary(ctx context.Context, env models.ChatRequestEnvelope) tierOutcome {
	ctx, span := c.startSpan(ctx, "ai.primary")
	defer span.End()

	body := primaryRequest{
		Message:       env.Message,
		Context:       nonNil(env.ContextMessages),
		RetrievedDocs: nonNil(env.RetrievedDocs),
	}
	span.SetAttributes(attribute.Int("ai.retrieved_docs", len(body.RetrievedDocs)))

	reply, err := resilience.Execute(ctx, c.primaryPolicy, func(ctx context.Context) (models.ChatReply, error) {
		return c.post(ctx, c.primary, TargetPrimary, body, primaryDefaultConfidence)
	})
	return c.outcome(span, TargetPrimary, models.TierPrimary, reply, err)
}

func (c *ResilientAIClient) callSecondary(ctx context.Context, userID string, env models.ChatRequestEnvelope) tierOutcome {
	ctx, span := c.startSpan(ctx, "ai.secondary")
	defer span.End()

	body := secondaryRequest{
		UserID:  userID,
		Message: env.Message,
		Context: nonNil(env.ContextMessages),
	}

	reply, err := resilience.Execute(ctx, c.secondaryPolicy, func(ctx context.Context) (models.ChatReply, error) {
		return c.post(ctx, c.secondary, TargetSecondary, body, secondaryDefaultConfidence)
	})
	return c.outcome(span, TargetSecondary, models.TierSecondary, reply, err)
}

func (c *ResilientAIClient) callDefault(ctx context.Context, message string) models.ChatReply {
	_, span := c.startSpan(ctx, "ai.default")
	defer span.End()
	return DefaultReply(message)
}

func (c *ResilientAIClient) outcome(span trace.Span, target string, tier models.Tier, reply models.ChatReply, err error) tierOutcome {
	if err != nil {
		f := resilience.Classify(err)
		metrics.AIUpstreamFailures.WithLabelValues(target, f.Kind.String()).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, f.Kind.String())
		return tierOutcome{failure: f}
	}

	reply.Tier = tier
	span.SetAttributes(attribute.Float64("ai.confidence", reply.Confidence))
	return tierOutcome{reply: reply}
}

func (c *ResilientAIClient) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("correlation_id", correlation.FromContext(ctx)),
		attribute.String("ai.model", c.model),
	))
}

// post makes one attempt against target and strictly decodes the answer.
func (c *ResilientAIClient) post(ctx context.Context, client *resty.Client, target string, body any, defaultConfidence float64) (models.ChatReply, error) {
	start := time.Now()
	defer func() {
		metrics.AIUpstreamDuration.WithLabelValues(target).Observe(time.Since(start).Seconds())
	}()

	req := client.R().SetContext(ctx).SetBody(body)
	if id := correlation.FromContext(ctx); id != "" {
		req.SetHeader(correlation.HeaderName, id)
	}

	resp, err := req.Post(chatPath)
	if err != nil {
		return models.ChatReply{}, fmt.Errorf("%s AI call: %w", target, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return models.ChatReply{}, resilience.StatusFailure(resp.StatusCode())
	}

	return decodeUpstreamReply(resp.Body(), defaultConfidence)
}

// decodeUpstreamReply fails closed: anything but a JSON object with a
// non-blank string reply is malformed.
func decodeUpstreamReply(raw []byte, defaultConfidence float64) (models.ChatReply, error) {
	var payload upstreamReply
	if err := json.Unmarshal(raw, &payload); err != nil {
		return models.ChatReply{}, resilience.Malformed("decode reply: %v", err)
	}
	if payload.Reply == nil || strings.TrimSpace(*payload.Reply) == "" {
		return models.ChatReply{}, resilience.Malformed("reply is missing or blank")
	}

	confidence := defaultConfidence
	if payload.Confidence != nil {
		confidence = *payload.Confidence
		if confidence < 0 || confidence > 1 {
			return models.ChatReply{}, resilience.Malformed("confidence %v out of range", confidence)
		}
	}

	suggestions := []string{}
	if payload.Suggestions != nil {
		suggestions = *payload.Suggestions
	}

	return models.ChatReply{
		Reply:       *payload.Reply,
		Confidence:  confidence,
		Suggestions: nonNil(suggestions),
	}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
