package client

import (
	"context"
	"time"

	"posterstudio/internal/domain"
	"posterstudio/internal/generation"
)

const (
	DefaultPollInterval = 1500 * time.Millisecond
	DefaultPollTimeout  = 60 * time.Second

	FailedMessage   = "Generation failed — try again"
	TimedOutMessage = "Generation timed out — try again"
)

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed_out"
)

type PollOptions struct {
	Interval time.Duration
	Timeout  time.Duration
	// OnStatus, when set, observes every non-terminal status.
	OnStatus func(domain.GenerationStatus)
}

type PollResult struct {
	Outcome    Outcome
	Generation *generation.View
	// SignedURL is set on success.
	SignedURL string
	// Message is set on failure and timeout.
	Message string
}

// StatusGetter is satisfied by *Client.
type StatusGetter interface {
	Get(ctx context.Context, id string) (*generation.View, error)
}

// Poll fetches the generation every Interval until it reaches a terminal
// status or Timeout elapses. A timeout does not cancel the server job. A
// failed status request ends polling with its error.
func Poll(ctx context.Context, api StatusGetter, id string, opts PollOptions) (*PollResult, error) {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultPollTimeout
	}
	deadline := time.Now().Add(opts.Timeout)

	for {
		view, err := api.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		switch {
		case view.Status == domain.StatusSucceeded && view.SignedURL != nil:
			return &PollResult{Outcome: OutcomeSucceeded, Generation: view, SignedURL: *view.SignedURL}, nil
		case view.Status == domain.StatusFailed:
			msg := FailedMessage
			if view.Error != nil && *view.Error != "" {
				msg = *view.Error
			}
			return &PollResult{Outcome: OutcomeFailed, Generation: view, Message: msg}, nil
		}
		if opts.OnStatus != nil {
			opts.OnStatus(view.Status)
		}
		if time.Now().After(deadline) {
			return &PollResult{Outcome: OutcomeTimedOut, Generation: view, Message: TimedOutMessage}, nil
		}

		timer := time.NewTimer(opts.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
