// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/morganforge/muse/internal/exchange"
	"github.com/morganforge/muse/internal/model"
	"github.com/morganforge/muse/internal/util"
)

var (
	// ErrBusy is returned by TrySend while another exchange is in flight.
	ErrBusy = errors.New("a reply is already in progress")

	// ErrEmptyMessage is returned for input that is blank after trimming.
	ErrEmptyMessage = errors.New("message is empty")
)

// Conversations is the subset of the conversation store the coordinator
// needs.
type Conversations interface {
	EnsureConversation(characterID string) error
	Select(characterID string) error
	Append(characterID string, role model.Role, content string) (model.Message, error)
	Active() (string, bool)
	ResetActive() error
}

// Validator checks the settings before a message is accepted.
type Validator interface {
	ValidateForExchange() error
}

// Runner executes one exchange.
type Runner interface {
	Run(ctx context.Context, characterID string) exchange.Result
}

// Notifier shows inline notices.
type Notifier interface {
	Notice(err error)
}

// =============================================================================
// HANDLE
// =============================================================================

// Handle is an exchange started by TrySend.
type Handle struct {
	characterID string
	started     time.Time
	cancel      context.CancelFunc
	done        chan struct{}
	result      exchange.Result
}

// CharacterID returns the character the exchange replies as.
func (h *Handle) CharacterID() string {
	return h.characterID
}

// Done is closed when the exchange is terminal.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the exchange is terminal and returns its result.
func (h *Handle) Wait() exchange.Result {
	<-h.done
	return h.result
}

// Cancel stops the exchange. Text received so far is committed with an
// error annotation.
func (h *Handle) Cancel() {
	h.cancel()
}

// =============================================================================
// COORDINATOR
// =============================================================================

// Coordinator admits at most one exchange at a time across all characters.
type Coordinator struct {
	convs    Conversations
	settings Validator
	runner   Runner
	notifier Notifier
	logger   zerolog.Logger

	sessionID string
	startTime time.Time

	busy      atomic.Bool
	exchanges atomic.Int64

	mu      sync.Mutex
	current *Handle
	last    exchange.Result
}

// New creates a Coordinator.
func New(convs Conversations, settings Validator, runner Runner, notifier Notifier, logger zerolog.Logger) *Coordinator {
	id := uuid.NewString()
	return &Coordinator{
		convs:     convs,
		settings:  settings,
		runner:    runner,
		notifier:  notifier,
		logger:    logger.With().Str("component", "session").Str("session", id[:8]).Logger(),
		sessionID: id,
		startTime: time.Now(),
	}
}

// TrySend appends the user's message to characterID's conversation and
// starts an exchange in the background. It fails without side effects when
// the text is blank, another exchange is running, or the settings are
// incomplete.
func (c *Coordinator) TrySend(ctx context.Context, characterID, text string) (*Handle, error) {
	text = util.CleanInput(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if !c.busy.CompareAndSwap(false, true) {
		c.logger.Debug().Str("character", characterID).Msg("send rejected while busy")
		return nil, ErrBusy
	}

	if err := c.settings.ValidateForExchange(); err != nil {
		c.busy.Store(false)
		c.notifier.Notice(err)
		return nil, err
	}
	if err := c.convs.EnsureConversation(characterID); err != nil {
		c.busy.Store(false)
		return nil, err
	}
	if _, err := c.convs.Append(characterID, model.RoleUser, text); err != nil {
		c.busy.Store(false)
		return nil, fmt.Errorf("append message: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		characterID: characterID,
		started:     time.Now(),
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	c.mu.Lock()
	c.current = h
	c.mu.Unlock()
	c.exchanges.Add(1)

	go c.run(runCtx, h)
	return h, nil
}

func (c *Coordinator) run(ctx context.Context, h *Handle) {
	defer h.cancel()

	res := c.runner.Run(ctx, h.characterID)
	h.result = res

	c.mu.Lock()
	c.last = res
	c.mu.Unlock()

	c.logger.Debug().
		Str("character", h.characterID).
		Stringer("status", res.Status).
		Str("took", FormatDuration(time.Since(h.started))).
		Msg("exchange finished")

	// Released before done closes so that Busy is false once Wait returns.
	c.busy.Store(false)
	close(h.done)
}

// SwitchCharacter makes characterID active, seeding its conversation if
// needed. A running exchange is left alone.
func (c *Coordinator) SwitchCharacter(characterID string) error {
	if err := c.convs.Select(characterID); err != nil {
		return err
	}
	c.logger.Debug().Str("character", characterID).Bool("busy", c.Busy()).Msg("character selected")
	return nil
}

// Reset returns to the character picker. A running exchange is left alone.
func (c *Coordinator) Reset() error {
	return c.convs.ResetActive()
}

// Active returns the active character, if any.
func (c *Coordinator) Active() (string, bool) {
	return c.convs.Active()
}

// Busy reports whether an exchange is in flight.
func (c *Coordinator) Busy() bool {
	return c.busy.Load()
}

// Wait blocks until the most recent exchange is terminal. It returns at
// once when none was started.
func (c *Coordinator) Wait() {
	c.mu.Lock()
	h := c.current
	c.mu.Unlock()
	if h != nil {
		<-h.done
	}
}

// =============================================================================
// SESSION STATUS
// =============================================================================

// Status summarizes the session.
type Status struct {
	SessionID  string
	StartTime  time.Time
	Duration   time.Duration
	Busy       bool
	Exchanges  int64
	LastStatus exchange.Status
}

// Status returns the current session status.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	last := c.last.Status
	c.mu.Unlock()
	return Status{
		SessionID:  c.sessionID,
		StartTime:  c.startTime,
		Duration:   time.Since(c.startTime),
		Busy:       c.Busy(),
		Exchanges:  c.exchanges.Load(),
		LastStatus: last,
	}
}

// FormatDuration returns a short human-readable duration.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
	}
	if d < time.Minute {
		return strconv.Itoa(int(d.Seconds())) + "s"
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if secs == 0 {
		return strconv.Itoa(mins) + "m"
	}
	return strconv.Itoa(mins) + "m " + strconv.Itoa(secs) + "s"
}
