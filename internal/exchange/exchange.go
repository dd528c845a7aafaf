// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package exchange runs one request/response cycle with the chat endpoint:
// build the request from the conversation, stream the reply to the
// renderer, and commit the result.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/morganforge/muse/internal/model"
	"github.com/morganforge/muse/internal/provider"
	"github.com/morganforge/muse/internal/settings"
	"github.com/morganforge/muse/internal/stream"
)

// ErrUnknownCharacter is returned for a character id missing from the
// catalog.
var ErrUnknownCharacter = errors.New("unknown character")

// errorAnnotationFormat is appended to partial replies of failed exchanges.
const errorAnnotationFormat = "\n\n**An error occurred:** *%s*"

// =============================================================================
// COLLABORATORS
// =============================================================================

// Renderer displays an exchange as it progresses.
type Renderer interface {
	// Delta is called for each fragment, in arrival order.
	Delta(characterID, fragment, accumulated string)
	// Final re-renders a completed reply.
	Final(characterID, content string)
	// Failed shows the partial reply followed by the error annotation.
	Failed(characterID, content string, err error)
	// Notice shows an inline message, e.g. missing settings.
	Notice(err error)
}

// Conversations is the message log the exchange reads and commits to.
type Conversations interface {
	Conversation(characterID string) []model.Message
	Append(characterID string, role model.Role, content string) (model.Message, error)
}

// Settings provides the API settings snapshot.
type Settings interface {
	Get() settings.Settings
}

// Catalog resolves characters.
type Catalog interface {
	Lookup(id string) (model.Character, bool)
}

// Result summarizes a finished exchange.
type Result struct {
	Status Status
	// Content is what was committed, or for a failure without a commit,
	// what was rendered.
	Content string
	Err     error
	// Fragments is the number of non-empty deltas received.
	Fragments int
	// Committed reports whether an assistant message was appended.
	Committed bool
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator runs exchanges. One Orchestrator may run several exchanges
// concurrently; admission control is the caller's job.
type Orchestrator struct {
	conversations Conversations
	settings      Settings
	catalog       Catalog
	transport     provider.Transport
	renderer      Renderer
	logger        zerolog.Logger
	observer      Observer
}

// New creates an Orchestrator.
func New(conversations Conversations, st Settings, catalog Catalog, transport provider.Transport, renderer Renderer, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		conversations: conversations,
		settings:      st,
		catalog:       catalog,
		transport:     transport,
		renderer:      renderer,
		logger:        logger.With().Str("component", "exchange").Logger(),
	}
}

// SetObserver installs an observer for status transitions. Call before Run.
func (o *Orchestrator) SetObserver(obs Observer) {
	o.observer = obs
}

// run carries the state of one exchange.
type run struct {
	o           *Orchestrator
	characterID string
	status      Status
	started     time.Time
	logger      zerolog.Logger
}

func (r *run) transition(to Status) {
	from := r.status
	r.status = to
	r.logger.Debug().Stringer("from", from).Stringer("to", to).Msg("exchange transition")
	if r.o.observer != nil {
		r.o.observer.OnTransition(from, to)
	}
}

// Run executes one exchange for characterID. The conversation must already
// end with the user's message. Run blocks until the exchange is terminal.
func (o *Orchestrator) Run(ctx context.Context, characterID string) Result {
	r := &run{
		o:           o,
		characterID: characterID,
		status:      Idle,
		started:     time.Now(),
		logger:      o.logger.With().Str("character", characterID).Logger(),
	}

	r.transition(BuildingRequest)

	req, err := o.buildRequest(characterID)
	if err != nil {
		r.transition(Failed)
		o.renderer.Notice(err)
		r.logger.Info().Err(err).Msg("exchange rejected before sending")
		return Result{Status: Failed, Err: err}
	}

	body, err := o.transport.Open(ctx, req)
	if err != nil {
		return r.fail("", 0, err)
	}
	r.transition(Streaming)

	// Closing the body unblocks a pending read when ctx ends.
	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer stop()
	defer body.Close()

	decoder := stream.NewDecoder(body, stream.WithLogger(r.logger))
	var acc strings.Builder
	fragments := 0

	if err := ctx.Err(); err != nil {
		return r.fail("", 0, err)
	}
	// A fragment is always rendered before cancellation is observed.
	for fragment, err := range decoder.All() {
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			return r.fail(acc.String(), fragments, err)
		}
		acc.WriteString(fragment)
		fragments++
		o.renderer.Delta(characterID, fragment, acc.String())
		if err := ctx.Err(); err != nil {
			return r.fail(acc.String(), fragments, err)
		}
	}

	if decoder.Skipped() > 0 {
		r.logger.Debug().Int("skipped", decoder.Skipped()).Int("frames", decoder.Frames()).Msg("malformed frames skipped")
	}

	r.transition(Finalizing)
	content := acc.String()

	if content != "" {
		if _, err := o.conversations.Append(characterID, model.RoleAssistant, content); err != nil {
			r.transition(Failed)
			rendered := content + Annotation(err)
			o.renderer.Failed(characterID, rendered, err)
			r.logger.Error().Err(err).Msg("could not commit reply")
			return Result{Status: Failed, Content: rendered, Err: err, Fragments: fragments}
		}
	}

	r.transition(Completed)
	o.renderer.Final(characterID, content)
	r.logger.Info().
		Int("fragments", fragments).
		Int("chars", len(content)).
		Dur("duration", time.Since(r.started)).
		Msg("exchange completed")
	return Result{Status: Completed, Content: content, Fragments: fragments, Committed: content != ""}
}

// fail commits the partial reply followed by an error annotation. With no
// partial text the annotation alone becomes the assistant message.
func (r *run) fail(partial string, fragments int, err error) Result {
	r.transition(Failed)
	o := r.o

	res := Result{Status: Failed, Err: err, Fragments: fragments}
	res.Content = partial + Annotation(err)
	if partial == "" {
		res.Content = strings.TrimLeft(res.Content, "\n")
	}

	if _, commitErr := o.conversations.Append(r.characterID, model.RoleAssistant, res.Content); commitErr != nil {
		r.logger.Error().Err(commitErr).Msg("could not commit failed reply")
	} else {
		res.Committed = true
	}
	o.renderer.Failed(r.characterID, res.Content, err)
	r.logger.Warn().Err(err).Int("fragments", fragments).Msg("exchange failed")
	return res
}

// buildRequest validates settings and assembles the payload: the persona
// directive followed by the full history.
func (o *Orchestrator) buildRequest(characterID string) (provider.Request, error) {
	ch, ok := o.catalog.Lookup(characterID)
	if !ok {
		return provider.Request{}, fmt.Errorf("%w: %q", ErrUnknownCharacter, characterID)
	}

	s := o.settings.Get()
	if err := s.Validate(); err != nil {
		return provider.Request{}, err
	}
	endpoint, err := s.Endpoint()
	if err != nil {
		return provider.Request{}, err
	}

	history := o.conversations.Conversation(characterID)
	messages := make([]provider.ChatMessage, 0, len(history)+1)
	messages = append(messages, provider.ChatMessage{Role: string(model.RoleSystem), Content: ch.SystemPrompt()})
	for _, m := range history {
		messages = append(messages, provider.ChatMessage{Role: string(m.Role), Content: m.Content})
	}

	return provider.Request{
		Endpoint:   endpoint,
		Credential: s.APIKey,
		Body: provider.ChatRequest{
			Model:    s.ModelOrDefault(),
			Messages: messages,
			Stream:   true,
		},
	}, nil
}

// Annotation formats the error marker appended to a failed reply.
func Annotation(err error) string {
	return fmt.Sprintf(errorAnnotationFormat, failureMessage(err))
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "The reply was cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "The reply timed out."
	default:
		return err.Error()
	}
}
