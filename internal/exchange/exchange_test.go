// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package exchange

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morganforge/muse/internal/catalog"
	"github.com/morganforge/muse/internal/conversation"
	"github.com/morganforge/muse/internal/model"
	"github.com/morganforge/muse/internal/provider"
	"github.com/morganforge/muse/internal/settings"
	"github.com/morganforge/muse/internal/state"
	"github.com/morganforge/muse/internal/storage"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

type recorder struct {
	mu          sync.Mutex
	fragments   []string
	accumulated []string
	finals      []string
	failures    []string
	failErrs    []error
	notices     []error
	deltaSignal chan string
}

func (r *recorder) Delta(_, fragment, accumulated string) {
	r.mu.Lock()
	r.fragments = append(r.fragments, fragment)
	r.accumulated = append(r.accumulated, accumulated)
	sig := r.deltaSignal
	r.mu.Unlock()
	if sig != nil {
		sig <- fragment
	}
}

func (r *recorder) Final(_, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finals = append(r.finals, content)
}

func (r *recorder) Failed(_, content string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, content)
	r.failErrs = append(r.failErrs, err)
}

func (r *recorder) Notice(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, err)
}

type fakeTransport struct {
	calls atomic.Int32
	last  atomic.Pointer[provider.Request]
	open  func(ctx context.Context) (io.ReadCloser, error)
}

func (f *fakeTransport) Open(ctx context.Context, req provider.Request) (io.ReadCloser, error) {
	f.calls.Add(1)
	f.last.Store(&req)
	return f.open(ctx)
}

func body(s string) func(context.Context) (io.ReadCloser, error) {
	return func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(s)), nil
	}
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func frame(content string) string {
	return `data: {"choices":[{"delta":{"content":` + strconv.Quote(content) + `}}]}` + "\n\n"
}

const done = "data: [DONE]\n\n"

type fixture struct {
	orch      *Orchestrator
	convs     *conversation.Store
	settings  *settings.Registry
	renderer  *recorder
	transport *fakeTransport
}

func newFixture(t *testing.T, open func(context.Context) (io.ReadCloser, error)) *fixture {
	t.Helper()
	backing := storage.NewMemoryStore()
	cat := catalog.New()

	st, err := state.NewManager(backing, state.WithThemeDetector(func() string { return state.ThemeDark }))
	require.NoError(t, err)
	convs, err := conversation.New(backing, cat, st, zerolog.Nop())
	require.NoError(t, err)
	reg, err := settings.NewRegistry(backing, settings.WithEnvironment(map[string]string{}))
	require.NoError(t, err)
	require.NoError(t, reg.Update(settings.Partial{APIKey: settings.String("sk-test")}))

	f := &fixture{
		convs:     convs,
		settings:  reg,
		renderer:  &recorder{},
		transport: &fakeTransport{open: open},
	}
	f.orch = New(convs, reg, cat, f.transport, f.renderer, zerolog.Nop())
	return f
}

func (f *fixture) userSays(t *testing.T, characterID, text string) {
	t.Helper()
	require.NoError(t, f.convs.Select(characterID))
	_, err := f.convs.Append(characterID, model.RoleUser, text)
	require.NoError(t, err)
}

// =============================================================================
// TESTS
// =============================================================================

func TestRun_StreamsAndCommits(t *testing.T) {
	f := newFixture(t, body(frame("Ave")+frame(", traveler.")+done))
	f.userSays(t, "dante", "Hello")

	var transitions []string
	f.orch.SetObserver(ObserverFunc(func(from, to Status) {
		transitions = append(transitions, from.String()+">"+to.String())
	}))

	res := f.orch.Run(context.Background(), "dante")

	require.Equal(t, Completed, res.Status)
	assert.NoError(t, res.Err)
	assert.Equal(t, "Ave, traveler.", res.Content)
	assert.Equal(t, 2, res.Fragments)
	assert.True(t, res.Committed)

	assert.Equal(t, []string{"Ave", ", traveler."}, f.renderer.fragments)
	assert.Equal(t, []string{"Ave", "Ave, traveler."}, f.renderer.accumulated)
	assert.Equal(t, []string{"Ave, traveler."}, f.renderer.finals)
	assert.Empty(t, f.renderer.failures)

	conv := f.convs.Conversation("dante")
	require.Len(t, conv, 3)
	assert.Equal(t, model.RoleAssistant, conv[0].Role)
	assert.Equal(t, model.NewUserMessage("Hello"), conv[1])
	assert.Equal(t, model.NewAssistantMessage("Ave, traveler."), conv[2])

	assert.Equal(t, []string{
		"idle>building-request",
		"building-request>streaming",
		"streaming>finalizing",
		"finalizing>completed",
	}, transitions)
}

func TestRun_RequestPayload(t *testing.T) {
	f := newFixture(t, body(done))
	f.userSays(t, "dante", "Hello")

	f.orch.Run(context.Background(), "dante")

	req := f.transport.last.Load()
	require.NotNil(t, req)
	assert.Equal(t, settings.OpenAIEndpoint, req.Endpoint)
	assert.Equal(t, "sk-test", req.Credential)
	assert.Equal(t, settings.DefaultModel, req.Body.Model)
	assert.True(t, req.Body.Stream)

	require.Len(t, req.Body.Messages, 3)
	ch, _ := catalog.New().Lookup("dante")
	assert.Equal(t, provider.ChatMessage{Role: "system", Content: ch.SystemPrompt()}, req.Body.Messages[0])
	assert.Equal(t, "assistant", req.Body.Messages[1].Role)
	assert.Equal(t, ch.Greeting, req.Body.Messages[1].Content)
	assert.Equal(t, provider.ChatMessage{Role: "user", Content: "Hello"}, req.Body.Messages[2])
}

func TestRun_CustomModelAndEndpoint(t *testing.T) {
	f := newFixture(t, body(done))
	require.NoError(t, f.settings.Update(settings.Partial{
		Provider:  settings.String(settings.ProviderCustom),
		CustomURL: settings.String("http://localhost:8080/v1/chat/completions"),
		Model:     settings.String("llama3"),
	}))
	f.userSays(t, "austen", "Good day")

	f.orch.Run(context.Background(), "austen")

	req := f.transport.last.Load()
	require.NotNil(t, req)
	assert.Equal(t, "http://localhost:8080/v1/chat/completions", req.Endpoint)
	assert.Equal(t, "llama3", req.Body.Model)
}

func TestRun_MissingCredentialMakesNoCall(t *testing.T) {
	f := newFixture(t, body(frame("never")+done))
	require.NoError(t, f.settings.Update(settings.Partial{APIKey: settings.String("")}))
	f.userSays(t, "dante", "Hello")

	res := f.orch.Run(context.Background(), "dante")

	assert.Equal(t, Failed, res.Status)
	assert.ErrorIs(t, res.Err, settings.ErrMissingCredential)
	assert.False(t, res.Committed)
	assert.Equal(t, int32(0), f.transport.calls.Load())
	require.Len(t, f.renderer.notices, 1)
	assert.ErrorIs(t, f.renderer.notices[0], settings.ErrMissingCredential)
	assert.Equal(t, 2, f.convs.Len("dante"))
}

func TestRun_UnknownCharacter(t *testing.T) {
	f := newFixture(t, body(done))

	res := f.orch.Run(context.Background(), "homer")

	assert.Equal(t, Failed, res.Status)
	assert.ErrorIs(t, res.Err, ErrUnknownCharacter)
	assert.Equal(t, int32(0), f.transport.calls.Load())
}

func TestRun_OpenFailureCommitsAnnotation(t *testing.T) {
	netErr := &provider.NetworkError{Status: 401, Message: "Incorrect API key provided"}
	f := newFixture(t, func(context.Context) (io.ReadCloser, error) { return nil, netErr })
	f.userSays(t, "tolstoy", "Hello")

	var transitions []Status
	f.orch.SetObserver(ObserverFunc(func(_, to Status) { transitions = append(transitions, to) }))

	res := f.orch.Run(context.Background(), "tolstoy")

	assert.Equal(t, Failed, res.Status)
	assert.ErrorIs(t, res.Err, provider.ErrNetworkFailure)
	assert.True(t, res.Committed)
	assert.Equal(t, 0, res.Fragments)

	want := "**An error occurred:** *API Error (401): Incorrect API key provided*"
	assert.Equal(t, want, res.Content)
	assert.Equal(t, []string{want}, f.renderer.failures)
	assert.Empty(t, f.renderer.fragments)

	conv := f.convs.Conversation("tolstoy")
	require.Len(t, conv, 3)
	assert.Equal(t, model.NewAssistantMessage(want), conv[2])
	assert.Equal(t, []Status{BuildingRequest, Failed}, transitions)
}

func TestRun_MidStreamFailureKeepsPartial(t *testing.T) {
	reset := errors.New("connection reset by peer")
	f := newFixture(t, func(context.Context) (io.ReadCloser, error) {
		r := io.MultiReader(strings.NewReader(frame("Hello")+frame(" wor")), failingReader{reset})
		return io.NopCloser(r), nil
	})
	f.userSays(t, "shakespeare", "Speak")

	res := f.orch.Run(context.Background(), "shakespeare")

	require.Equal(t, Failed, res.Status)
	assert.ErrorIs(t, res.Err, reset)
	assert.True(t, res.Committed)
	assert.Equal(t, 2, res.Fragments)

	want := "Hello wor\n\n**An error occurred:** *connection reset by peer*"
	assert.Equal(t, want, res.Content)
	assert.Equal(t, []string{want}, f.renderer.failures)
	assert.Empty(t, f.renderer.finals)

	conv := f.convs.Conversation("shakespeare")
	require.Len(t, conv, 3, "exactly one assistant message is committed")
	assert.Equal(t, model.NewAssistantMessage(want), conv[2])
}

func TestRun_EmptyReplyCompletesWithoutCommit(t *testing.T) {
	f := newFixture(t, body(frame("")+done))
	f.userSays(t, "goethe", "Hallo")

	res := f.orch.Run(context.Background(), "goethe")

	assert.Equal(t, Completed, res.Status)
	assert.False(t, res.Committed)
	assert.Equal(t, 0, res.Fragments)
	assert.Equal(t, []string{""}, f.renderer.finals)
	assert.Equal(t, 2, f.convs.Len("goethe"))
}

func TestRun_MalformedFramesSkipped(t *testing.T) {
	stream := frame("Bon") + "data: {not json}\n\n" + ": keep-alive\n\n" + frame("jour") + done
	f := newFixture(t, body(stream))
	f.userSays(t, "hugo", "Salut")

	res := f.orch.Run(context.Background(), "hugo")

	assert.Equal(t, Completed, res.Status)
	assert.Equal(t, "Bonjour", res.Content)
	assert.Empty(t, f.renderer.notices)
}

func TestRun_CancelledMidStream(t *testing.T) {
	pr, pw := io.Pipe()
	f := newFixture(t, func(context.Context) (io.ReadCloser, error) { return pr, nil })
	f.renderer.deltaSignal = make(chan string, 4)
	f.userSays(t, "dante", "Hello")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan Result, 1)
	go func() { results <- f.orch.Run(ctx, "dante") }()

	_, err := pw.Write([]byte(frame("Nel mezzo")))
	require.NoError(t, err)
	select {
	case got := <-f.renderer.deltaSignal:
		require.Equal(t, "Nel mezzo", got)
	case <-time.After(2 * time.Second):
		t.Fatal("no delta rendered")
	}
	cancel()

	var res Result
	select {
	case res = <-results:
	case <-time.After(2 * time.Second):
		t.Fatal("exchange did not stop after cancellation")
	}

	assert.Equal(t, Failed, res.Status)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, "Nel mezzo\n\n**An error occurred:** *The reply was cancelled.*", res.Content)
	assert.Equal(t, 3, f.convs.Len("dante"))
}

// cancelOnRead delivers data and cancels the exchange within the same Read.
type cancelOnRead struct {
	r      io.Reader
	cancel context.CancelFunc
}

func (c *cancelOnRead) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.cancel()
	return n, err
}

func TestRun_FragmentArrivingWithCancellationIsKept(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(&cancelOnRead{r: strings.NewReader(frame("Hello")), cancel: cancel}), nil
	})
	f.userSays(t, "austen", "Good morning")

	res := f.orch.Run(ctx, "austen")

	require.Equal(t, Failed, res.Status)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, 1, res.Fragments)
	assert.Equal(t, []string{"Hello"}, f.renderer.fragments)
	assert.True(t, res.Committed)

	want := "Hello\n\n**An error occurred:** *The reply was cancelled.*"
	assert.Equal(t, want, res.Content)
	conv := f.convs.Conversation("austen")
	require.Len(t, conv, 3)
	assert.Equal(t, model.NewAssistantMessage(want), conv[2])
}

func TestStatus(t *testing.T) {
	tests := []struct {
		status   Status
		name     string
		terminal bool
	}{
		{Idle, "idle", false},
		{BuildingRequest, "building-request", false},
		{Streaming, "streaming", false},
		{Finalizing, "finalizing", false},
		{Completed, "completed", true},
		{Failed, "failed", true},
		{Status(42), "unknown", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.status.String())
			assert.Equal(t, tt.terminal, tt.status.Terminal())
		})
	}
}

func TestAnnotation(t *testing.T) {
	assert.Equal(t, "\n\n**An error occurred:** *boom*", Annotation(errors.New("boom")))
	assert.Equal(t, "\n\n**An error occurred:** *The reply timed out.*", Annotation(context.DeadlineExceeded))
}
