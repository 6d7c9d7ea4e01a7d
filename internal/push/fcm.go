package push

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	fcm "google.golang.org/api/fcm/v1"
	"google.golang.org/api/option"
)

// FirebaseMessagingScope is the OAuth2 scope required by the FCM HTTP v1 API.
const FirebaseMessagingScope = "https://www.googleapis.com/auth/firebase.messaging"

const defaultFCMConcurrency = 10

// FCMConfig holds connection parameters for the FCM gateway.
type FCMConfig struct {
	ProjectID string
	// Endpoint overrides the API base URL (tests, emulators). Must end with "/".
	Endpoint string
	// Concurrency bounds the number of in-flight per-token requests.
	Concurrency int
	// RatePerSecond paces per-token requests. Zero disables pacing.
	RatePerSecond float64
}

// FCMGateway delivers multicast messages through the FCM HTTP v1 API. The v1
// API addresses one token per request, so a multicast call fans out into
// parallel per-token sends and reassembles the outcomes in input order.
type FCMGateway struct {
	svc         *fcm.Service
	parent      string
	concurrency int
	limiter     *rate.Limiter
}

// LoadCredentials resolves Google credentials for FCM. With an empty path the
// application-default credentials are used.
func LoadCredentials(ctx context.Context, path string) (*google.Credentials, error) {
	if path == "" {
		creds, err := google.FindDefaultCredentials(ctx, FirebaseMessagingScope)
		if err != nil {
			return nil, fmt.Errorf("finding default google credentials: %w", err)
		}
		return creds, nil
	}

	//nolint:gosec // path comes from operator configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file %q: %w", path, err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, FirebaseMessagingScope) //nolint:staticcheck
	if err != nil {
		return nil, fmt.Errorf("parsing credentials file %q: %w", path, err)
	}
	return creds, nil
}

// NewFCMGateway creates a gateway for cfg.ProjectID. Authentication is
// supplied through opts (option.WithTokenSource in production).
func NewFCMGateway(ctx context.Context, cfg FCMConfig, opts ...option.ClientOption) (*FCMGateway, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("fcm: project id is required")
	}

	clientOpts := make([]option.ClientOption, 0, len(opts)+1)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.Endpoint))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := fcm.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating fcm service: %w", err)
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultFCMConcurrency
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), max(1, int(cfg.RatePerSecond)))
	}

	return &FCMGateway{
		svc:         svc,
		parent:      "projects/" + cfg.ProjectID,
		concurrency: concurrency,
		limiter:     limiter,
	}, nil
}

// Name returns the gateway identifier.
func (g *FCMGateway) Name() string { return "fcm" }

// SendMulticast delivers msg to every token, at most g.concurrency at a time.
func (g *FCMGateway) SendMulticast(ctx context.Context, msg *MulticastMessage) (*BatchResponse, error) {
	if len(msg.Tokens) == 0 {
		return nil, errors.New("fcm: multicast message has no tokens")
	}
	if len(msg.Tokens) > MaxMulticastTokens {
		return nil, fmt.Errorf("fcm: %d tokens exceeds the multicast limit of %d",
			len(msg.Tokens), MaxMulticastTokens)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fcm: %w", err)
	}

	responses := make([]SendResponse, len(msg.Tokens))
	waitErrs := make([]error, len(msg.Tokens))
	sem := make(chan struct{}, g.concurrency)
	var wg sync.WaitGroup

	for i, token := range msg.Tokens {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			responses[i], waitErrs[i] = g.sendOne(ctx, token, msg)
		}()
	}
	wg.Wait()

	// A canceled context leaves outcomes unknown for part of the batch.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fcm: multicast interrupted: %w", err)
	}
	// Tokens the limiter gave up on were never sent, so they have no outcome.
	if err := errors.Join(waitErrs...); err != nil {
		return nil, fmt.Errorf("fcm: rate limit budget exhausted before every token was sent: %w", err)
	}

	br := &BatchResponse{Responses: responses}
	for _, r := range responses {
		if r.Success {
			br.SuccessCount++
		} else {
			br.FailureCount++
		}
	}
	return br, nil
}

// sendOne returns an error only when the token could not be sent at all.
func (g *FCMGateway) sendOne(ctx context.Context, token string, msg *MulticastMessage) (SendResponse, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return SendResponse{Token: token}, err
		}
	}

	req := &fcm.SendMessageRequest{
		Message: &fcm.Message{
			Token: token,
			Notification: &fcm.Notification{
				Title: msg.Title,
				Body:  msg.Body,
			},
			Data: msg.Data,
		},
	}

	resp, err := g.svc.Projects.Messages.Send(g.parent, req).Context(ctx).Do()
	if err != nil {
		return SendResponse{Token: token, ErrorCode: ErrorCode(err), Err: err}, nil
	}
	return SendResponse{Token: token, Success: true, MessageID: resp.Name}, nil
}
