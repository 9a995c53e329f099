// File: internal/usecase/chat_request.go
package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"chat-stream-engine/internal/domain"
	"chat-stream-engine/internal/domain/model"
	"chat-stream-engine/internal/domain/ports/adapter"
	"chat-stream-engine/internal/domain/ports/repository"
	"chat-stream-engine/internal/infra/logging"
	"chat-stream-engine/internal/infra/metrics"
	"chat-stream-engine/internal/infra/stream"
)

const (
	completionsPath = "/v1/chat/completions"
	readBufferSize  = 32 << 10
	maxErrorBody    = 64 << 10
)

// RequestOptions is the caller input for one turn.
type RequestOptions struct {
	TabIndex int
	Message  string
}

func (o *RequestOptions) validate() error {
	if o == nil {
		return domain.InvalidArgument("request options are required")
	}
	if strings.TrimSpace(o.Message) == "" {
		return domain.InvalidArgument("message is empty")
	}
	if o.TabIndex < 0 {
		return domain.InvalidArgument("tab index is negative")
	}
	return nil
}

// TurnState is the lifecycle position of a turn.
type TurnState int

const (
	TurnIdle TurnState = iota
	TurnBuilding
	TurnSending
	TurnStreaming
	TurnCompleted
	TurnCancelled
	TurnFailed
)

func (s TurnState) String() string {
	switch s {
	case TurnIdle:
		return "idle"
	case TurnBuilding:
		return "building"
	case TurnSending:
		return "sending"
	case TurnStreaming:
		return "streaming"
	case TurnCompleted:
		return "completed"
	case TurnCancelled:
		return "cancelled"
	case TurnFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s TurnState) Terminal() bool {
	return s == TurnCompleted || s == TurnCancelled || s == TurnFailed
}

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Spawner runs the asynchronous part of a turn. It returns an error when
// the task could not be scheduled. The task's ctx ending means shutdown:
// a task started with a done ctx fails its turn, and a running one aborts.
type Spawner func(task func(ctx context.Context)) error

func goSpawner(task func(ctx context.Context)) error {
	go task(context.Background())
	return nil
}

type Option func(*ChatRequest)

func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *ChatRequest) { c.client = doer }
}

func WithSpawner(s Spawner) Option {
	return func(c *ChatRequest) { c.spawn = s }
}

func WithLogger(l *zerolog.Logger) Option {
	return func(c *ChatRequest) { c.log = l }
}

type completionRequest struct {
	Messages    []model.ChatMessage `json:"messages"`
	Model       string              `json:"model"`
	Stream      bool                `json:"stream"`
	Temperature float64             `json:"temperature"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
}

// ChatRequest drives the turns of one chat. At most one turn is live at a
// time; the tab a turn writes to must not be mutated by anything else until
// the turn ends.
type ChatRequest struct {
	sink    repository.ConversationStateSink
	configs repository.ConfigProvider
	builder *ContextBuilder
	client  HTTPDoer
	spawn   Spawner
	log     *zerolog.Logger

	mu      sync.Mutex
	chat    model.ChatInfo
	session *Turn
}

func NewChatRequest(chat model.ChatInfo, sink repository.ConversationStateSink, configs repository.ConfigProvider, tokens adapter.TokenEstimator, opts ...Option) *ChatRequest {
	nop := zerolog.Nop()
	c := &ChatRequest{
		sink:    sink,
		configs: configs,
		builder: NewContextBuilder(tokens),
		client:  &http.Client{},
		spawn:   goSpawner,
		log:     &nop,
		chat:    chat,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chat returns the chat definition used for the next turn.
func (c *ChatRequest) Chat() model.ChatInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chat
}

// SetChat replaces the chat definition. A live turn keeps the one it started with.
func (c *ChatRequest) SetChat(chat model.ChatInfo) {
	c.mu.Lock()
	c.chat = chat
	c.mu.Unlock()
}

// Current returns the live turn or nil.
func (c *ChatRequest) Current() *Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// SendMessage starts a turn and returns once the request has been handed to
// the spawner. Errors returned here happened before anything was written to
// the sink; later failures are recorded in the assistant message and
// reported by Turn.Err. onUpdate runs after every sink mutation while the
// turn lock is held, so it must not call Cancel synchronously.
func (c *ChatRequest) SendMessage(ctx context.Context, opts *RequestOptions, onUpdate func()) (*Turn, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if onUpdate == nil {
		onUpdate = func() {}
	}

	c.mu.Lock()
	if c.session != nil {
		c.mu.Unlock()
		return nil, domain.ErrTurnInProgress
	}
	chat := c.chat
	t := newTurn(ctx, chat.ID, opts.TabIndex, onUpdate, c.log)
	c.session = t
	c.mu.Unlock()

	log := t.log
	defer logging.TraceDuration(log, "ChatRequest.SendMessage")()

	req, window, err := c.prepare(t, chat, opts.Message)
	if err != nil {
		c.abandon(t, err)
		return nil, err
	}

	registered, err := c.register(t, opts.Message)
	if err != nil {
		if !registered {
			c.abandon(t, err)
			return nil, err
		}
		c.fail(t, err)
		return t, nil
	}
	if !registered {
		// Cancelled while building.
		return t, nil
	}

	metrics.ObserveWindow(t.model, len(window.History()), window.Tokens)
	log.Debug().
		Str("model", t.model).
		Int("messages", len(window.Messages)).
		Int("tokens", window.Tokens).
		Int("dropped", window.Dropped).
		Msg("context window built")

	if err := c.spawn(func(ctx context.Context) { c.run(ctx, t, req) }); err != nil {
		c.fail(t, fmt.Errorf("schedule turn: %w", err))
	}
	return t, nil
}

// prepare resolves the session config, builds the window and the HTTP
// request. Nothing is written to the sink here.
func (c *ChatRequest) prepare(t *Turn, chat model.ChatInfo, message string) (*http.Request, ConversationWindow, error) {
	base, err := c.configs.BaseConfig(t.sinkCtx)
	if err != nil {
		return nil, ConversationWindow{}, fmt.Errorf("load base config: %w", err)
	}
	cfg, err := model.ResolveSessionConfig(chat, base)
	if err != nil {
		return nil, ConversationWindow{}, err
	}
	t.setModel(cfg.Model)

	history, err := c.sink.GetTabHistory(t.sinkCtx, t.chatID, t.tabIndex)
	if err != nil {
		return nil, ConversationWindow{}, fmt.Errorf("read tab history: %w", err)
	}
	window, err := c.builder.BuildWindow(history, model.UserMessage(message), chat.Prompt, cfg)
	if err != nil {
		return nil, ConversationWindow{}, err
	}

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = base.APIURL
	}
	body, err := json.Marshal(completionRequest{
		Messages:    window.Messages,
		Model:       cfg.Model,
		Stream:      true,
		Temperature: cfg.Temperature,
		MaxTokens:   max(cfg.ResponseMaxTokens, 0),
	})
	if err != nil {
		return nil, ConversationWindow{}, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(t.ctx, http.MethodPost, strings.TrimRight(apiURL, "/")+completionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, ConversationWindow{}, domain.InvalidArgument(fmt.Sprintf("api url %q: %v", apiURL, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+base.APIKey)
	return req, window, nil
}

// register records the user message and the assistant placeholder and sets
// generating. registered is false when nothing reached the sink.
func (c *ChatRequest) register(t *Turn, message string) (registered bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false, nil
	}
	if err := c.sink.AddUserMessage(t.sinkCtx, t.chatID, t.tabIndex, message); err != nil {
		return false, fmt.Errorf("add user message: %w", err)
	}
	t.registered = true
	t.onUpdate()
	if err := c.sink.AddAssistantPlaceholder(t.sinkCtx, t.chatID, t.tabIndex); err != nil {
		return true, fmt.Errorf("add assistant placeholder: %w", err)
	}
	t.onUpdate()
	if err := c.sink.SetGenerating(t.sinkCtx, t.chatID, t.tabIndex, true); err != nil {
		return true, fmt.Errorf("set generating: %w", err)
	}
	t.state = TurnSending
	return true, nil
}

func (c *ChatRequest) run(ctx context.Context, t *Turn, req *http.Request) {
	if ctx.Err() != nil {
		c.fail(t, fmt.Errorf("turn not started: %w", domain.ErrShuttingDown))
		return
	}
	stop := context.AfterFunc(ctx, func() {
		c.abort(t, TurnFailed, domain.ErrShuttingDown)
	})
	defer stop()

	resp, err := c.client.Do(req)
	if err != nil {
		c.fail(t, fmt.Errorf("send request: %w", err))
		return
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		metrics.IncUpstreamHTTPError(resp.StatusCode)
		c.fail(t, &domain.HTTPStatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))})
		return
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		if resp.Body != nil {
			_ = resp.Body.Close()
		}
		c.fail(t, &domain.HTTPStatusError{Status: resp.StatusCode, NoBody: true})
		return
	}
	defer resp.Body.Close()
	if !t.attach(resp.Body) {
		return
	}
	c.drain(t, resp.Body)
}

// drain reads the body chunk by chunk until end of input, the done
// sentinel, an error or cancellation.
func (c *ChatRequest) drain(t *Turn, body io.Reader) {
	parser := stream.NewParser()
	buf := make([]byte, readBufferSize)
	for {
		if t.isStopped() {
			return
		}
		n, readErr := body.Read(buf)
		if n > 0 {
			events, err := parser.Parse(buf[:n])
			for _, ev := range events {
				if ev.Kind != stream.EventTextDelta {
					continue
				}
				applied, err := c.applyDelta(t, ev.Content)
				if err != nil {
					c.fail(t, err)
					return
				}
				if !applied {
					return
				}
			}
			if err != nil {
				c.fail(t, err)
				return
			}
			if parser.Finished() {
				c.finish(t)
				return
			}
		}
		if readErr != nil {
			switch {
			case errors.Is(readErr, io.EOF):
				c.finish(t)
			case t.isStopped():
				t.log.Debug().Err(readErr).Msg("read aborted")
			default:
				c.fail(t, fmt.Errorf("read stream: %w", readErr))
			}
			return
		}
	}
}

// applyDelta appends one delta unless the turn has stopped.
func (c *ChatRequest) applyDelta(t *Turn, delta string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false, nil
	}
	if err := c.sink.AppendAssistantContent(t.sinkCtx, t.chatID, t.tabIndex, delta); err != nil {
		return false, fmt.Errorf("append assistant content: %w", err)
	}
	metrics.IncDelta(t.model)
	if t.firstDelta.IsZero() {
		t.firstDelta = time.Now()
		metrics.ObserveFirstDelta(t.model, t.firstDelta.Sub(t.started))
	}
	t.onUpdate()
	return true, nil
}

// Cancel stops the live turn. Calling it with no live turn, or twice, does nothing.
func (c *ChatRequest) Cancel() {
	c.mu.Lock()
	t := c.session
	c.mu.Unlock()
	if t == nil {
		return
	}
	c.abort(t, TurnCancelled, domain.ErrCancelled)
}

// abort ends t from outside the read loop: it aborts the exchange and
// closes the body so a blocked Read returns.
func (c *ChatRequest) abort(t *Turn, state TurnState, err error) {
	if !t.terminate(state, err) {
		return
	}
	if state == TurnFailed {
		t.log.Warn().Err(err).Msg("turn aborted")
	}
	t.cancel()
	if body := t.detach(); body != nil {
		if err := body.Close(); err != nil {
			t.log.Debug().Err(err).Msg("close stream on abort")
		}
	}
	c.complete(t)
}

func (c *ChatRequest) finish(t *Turn) {
	if t.terminate(TurnCompleted, nil) {
		c.complete(t)
	}
}

func (c *ChatRequest) fail(t *Turn, err error) {
	if !t.terminate(TurnFailed, err) {
		t.log.Debug().Err(err).Msg("error after turn ended")
		return
	}
	t.log.Warn().Err(err).Msg("turn failed")
	c.complete(t)
}

// abandon ends a turn that never reached the sink.
func (c *ChatRequest) abandon(t *Turn, err error) {
	if t.terminate(TurnFailed, err) {
		c.complete(t)
	}
}

// complete runs once per turn, after terminate.
func (c *ChatRequest) complete(t *Turn) {
	t.mu.Lock()
	state, err, registered, onUpdate := t.state, t.err, t.registered, t.onUpdate
	t.mu.Unlock()

	if registered {
		if state == TurnFailed {
			if serr := c.sink.SetAssistantError(t.sinkCtx, t.chatID, t.tabIndex, err.Error()); serr != nil {
				t.log.Error().Err(serr).Msg("record turn error")
			}
		}
		if serr := c.sink.SetGenerating(t.sinkCtx, t.chatID, t.tabIndex, false); serr != nil {
			t.log.Error().Err(serr).Msg("clear generating")
		}
		if state != TurnCancelled {
			onUpdate()
		}
		metrics.ObserveTurn(t.model, state.String(), time.Since(t.started))
		t.log.Info().Str("outcome", state.String()).Dur("duration", time.Since(t.started)).Msg("turn finished")
	}

	t.cancel()
	c.mu.Lock()
	if c.session == t {
		c.session = nil
	}
	c.mu.Unlock()
	close(t.done)
}

// Turn is the runtime state of one request/response exchange.
type Turn struct {
	id       string
	chatID   string
	tabIndex int
	started  time.Time

	// sinkCtx carries the caller's values but not its cancellation; ctx
	// additionally aborts the HTTP exchange on Cancel.
	sinkCtx context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	log     *zerolog.Logger

	mu         sync.Mutex
	model      string
	state      TurnState
	err        error
	stopped    bool
	registered bool
	onUpdate   func()
	body       io.ReadCloser
	firstDelta time.Time

	done chan struct{}
}

func newTurn(parent context.Context, chatID string, tabIndex int, onUpdate func(), log *zerolog.Logger) *Turn {
	id := ulid.Make().String()
	base := context.WithoutCancel(parent)
	base = logging.WithChatID(base, chatID)
	base = logging.WithTabIndex(base, tabIndex)
	base = logging.WithTurnID(base, id)
	ctx, cancel := context.WithCancel(base)
	return &Turn{
		id:       id,
		chatID:   chatID,
		tabIndex: tabIndex,
		started:  time.Now(),
		sinkCtx:  base,
		ctx:      ctx,
		cancel:   cancel,
		log:      logging.With(base, log),
		state:    TurnBuilding,
		onUpdate: onUpdate,
		done:     make(chan struct{}),
	}
}

func (t *Turn) ID() string            { return t.id }
func (t *Turn) ChatID() string        { return t.chatID }
func (t *Turn) TabIndex() int         { return t.tabIndex }
func (t *Turn) Done() <-chan struct{} { return t.done }

func (t *Turn) State() TurnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err is the failure cause, ErrCancelled after Cancel, or nil.
func (t *Turn) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Wait blocks until the turn ends or ctx is done.
func (t *Turn) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Turn) setModel(m string) {
	t.mu.Lock()
	t.model = m
	t.mu.Unlock()
}

func (t *Turn) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// attach publishes the body so Cancel can close it.
func (t *Turn) attach(body io.ReadCloser) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	t.body = body
	t.state = TurnStreaming
	return true
}

func (t *Turn) detach() io.ReadCloser {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.body
	t.body = nil
	return b
}

// terminate moves the turn to a terminal state. Only the first call wins.
func (t *Turn) terminate(state TurnState, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() {
		return false
	}
	t.state = state
	t.err = err
	t.stopped = true
	if state == TurnCancelled {
		t.onUpdate = func() {}
	}
	return true
}
