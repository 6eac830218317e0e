// Package conversation keeps the visible transcript of one conversation in
// step with the remote service and the local cache.
//
// An Engine moves through Idle -> Loading -> Ready once, then Ready ->
// Sending -> Ready for every message. Tearing it down (Close) moves it to
// Closed from any state; results that arrive afterwards are dropped.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/comigor/chatsync-go/internal/history"
)

// State of an Engine.
type State string

const (
	StateIdle    State = "Idle"
	StateLoading State = "Loading"
	StateReady   State = "Ready"
	StateSending State = "Sending"
	StateClosed  State = "Closed"
)

// Trigger moves an Engine between states.
type Trigger string

const (
	TriggerLoad   Trigger = "Load"
	TriggerLoaded Trigger = "Loaded"
	TriggerSend   Trigger = "Send"
	TriggerSent   Trigger = "Sent"
	TriggerClose  Trigger = "Close"
)

// DefaultHistoryTimeout bounds the initial history fetch.
const DefaultHistoryTimeout = 5 * time.Second

// Error indicator texts exposed through Engine.Error.
const (
	LoadFailedMessage = "Could not fetch chat history"
	SendFailedMessage = "Failed to send message"
)

var (
	ErrBusy          = errors.New("conversation: a message is already being sent")
	ErrNotReady      = errors.New("conversation: history not loaded yet")
	ErrAlreadyLoaded = errors.New("conversation: history already loaded")
	ErrClosed        = errors.New("conversation: closed")
)

// Remote is the subset of the conversation service the engine needs.
type Remote interface {
	History(ctx context.Context, userID string) ([]history.Message, error)
	Send(ctx context.Context, content, userID string) (string, error)
}

// Options tune an Engine. The zero value is usable.
type Options struct {
	// HistoryTimeout bounds the initial fetch; DefaultHistoryTimeout if zero.
	HistoryTimeout time.Duration
	// PersistFailures also caches failed sends, with the notice marked synthetic.
	PersistFailures bool
	// Hook receives lifecycle events; LogHook(logger.L) if nil.
	Hook Hook
	// Now is the clock used to stamp messages.
	Now func() time.Time
}

// Engine owns the in-memory view of one conversation.
type Engine struct {
	remote Remote
	store  *history.Store
	opts   Options

	mu       sync.Mutex
	fsm      *stateless.StateMachine
	messages []history.Message
	input    string
	errMsg   string
	userID   string
}

// New creates an Engine in the Idle state.
func New(remote Remote, store *history.Store, opts Options) *Engine {
	if opts.HistoryTimeout <= 0 {
		opts.HistoryTimeout = DefaultHistoryTimeout
	}
	if opts.Hook == nil {
		opts.Hook = DefaultHook()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	fsm := stateless.NewStateMachine(StateIdle)
	fsm.Configure(StateIdle).
		Permit(TriggerLoad, StateLoading).
		Permit(TriggerClose, StateClosed)
	fsm.Configure(StateLoading).
		Permit(TriggerLoaded, StateReady).
		Permit(TriggerClose, StateClosed)
	fsm.Configure(StateReady).
		Permit(TriggerSend, StateSending).
		Permit(TriggerClose, StateClosed)
	fsm.Configure(StateSending).
		Permit(TriggerSent, StateReady).
		Permit(TriggerClose, StateClosed)
	fsm.Configure(StateClosed).
		Ignore(TriggerClose).
		Ignore(TriggerLoaded).
		Ignore(TriggerSent)

	return &Engine{
		remote:   remote,
		store:    store,
		opts:     opts,
		fsm:      fsm,
		messages: []history.Message{},
	}
}

// Load reconciles remote and cached history and publishes the result. It may
// only run once. Remote failures are not returned: they degrade to an empty
// remote history.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	switch e.stateLocked() {
	case StateIdle:
	case StateClosed:
		e.mu.Unlock()
		return ErrClosed
	default:
		e.mu.Unlock()
		return ErrAlreadyLoaded
	}
	if err := e.fsm.Fire(TriggerLoad); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("start load: %w", err)
	}
	e.mu.Unlock()

	started := e.opts.Now()
	userID := e.store.UserID()
	e.emit(ctx, Event{Name: EventLoadStart, Attrs: []any{"userId", userID}})

	merged, remoteErr, err := e.reconcile(ctx, userID)
	fellBack := err != nil
	if fellBack {
		merged = e.store.ReadAll()
	}

	e.mu.Lock()
	if e.stateLocked() == StateClosed {
		e.mu.Unlock()
		e.emit(ctx, Event{Name: EventLoadEnd, Attrs: []any{"discarded", true}})
		return ErrClosed
	}
	e.userID = userID
	e.messages = merged
	if fellBack {
		e.errMsg = LoadFailedMessage
	} else {
		e.store.Replace(merged)
	}
	if ferr := e.fsm.Fire(TriggerLoaded); ferr != nil {
		e.mu.Unlock()
		return fmt.Errorf("finish load: %w", ferr)
	}
	e.mu.Unlock()

	endErr := remoteErr
	if fellBack {
		endErr = err
	}
	e.emit(ctx, Event{
		Name:  EventLoadEnd,
		Attrs: []any{"messages", len(merged), "fallback", fellBack, "elapsed", e.opts.Now().Sub(started)},
		Err:   endErr,
	})
	return nil
}

// reconcile fetches and merges both histories. remoteErr is the recovered
// fetch failure; err is set only when the reconcile path itself broke.
func (e *Engine) reconcile(ctx context.Context, userID string) (merged []history.Message, remoteErr, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reconcile history: %v", r)
		}
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, e.opts.HistoryTimeout)
	defer cancel()

	remoteMsgs, remoteErr := e.remote.History(fetchCtx, userID)
	if remoteErr != nil {
		remoteMsgs = nil
	}

	local := e.store.ReadAll()
	merged = history.Merge(remoteMsgs, local)
	e.emit(ctx, Event{
		Name:  EventMergeResult,
		Attrs: []any{"remote", len(remoteMsgs), "local", len(local), "merged", len(merged)},
	})
	return merged, remoteErr, nil
}

// Send sends the current input. An empty or blank input is a no-op.
//
// A failed send is not returned as an error: the view gets the user message
// followed by a failure notice and Error reports the problem. Errors are
// returned only when the send was refused (ErrBusy, ErrNotReady, ErrClosed).
func (e *Engine) Send(ctx context.Context) error {
	e.mu.Lock()
	content := e.input
	if strings.TrimSpace(content) == "" {
		e.mu.Unlock()
		return nil
	}
	switch e.stateLocked() {
	case StateReady:
	case StateSending:
		e.mu.Unlock()
		return ErrBusy
	case StateClosed:
		e.mu.Unlock()
		return ErrClosed
	default:
		e.mu.Unlock()
		return ErrNotReady
	}
	if err := e.fsm.Fire(TriggerSend); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("start send: %w", err)
	}
	userID := e.userID
	e.mu.Unlock()

	userMsg := history.NewUserMessage(content, userID, e.opts.Now())
	e.emit(ctx, Event{Name: EventSendStart, Attrs: []any{"userId", userID, "length", len(content)}})

	reply, sendErr := e.remote.Send(ctx, content, userID)

	e.mu.Lock()
	if e.stateLocked() == StateClosed {
		e.mu.Unlock()
		e.emit(ctx, Event{Name: EventSendEnd, Attrs: []any{"discarded", true}, Err: sendErr})
		return ErrClosed
	}
	if sendErr != nil {
		notice := history.NewFailureNotice(userID, e.opts.Now())
		e.messages = append(e.messages, userMsg, notice)
		e.errMsg = SendFailedMessage
		if e.opts.PersistFailures {
			e.store.Append(userMsg)
			e.store.Append(notice)
		}
	} else {
		aiMsg := history.NewAssistantMessage(reply, userID, e.opts.Now())
		e.messages = append(e.messages, userMsg, aiMsg)
		e.store.Append(userMsg)
		e.store.Append(aiMsg)
		e.input = ""
		e.errMsg = ""
	}
	if err := e.fsm.Fire(TriggerSent); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("finish send: %w", err)
	}
	e.mu.Unlock()

	e.emit(ctx, Event{Name: EventSendEnd, Attrs: []any{"userId", userID, "ok", sendErr == nil}, Err: sendErr})
	return nil
}

// SendText sets the input to text and sends it.
func (e *Engine) SendText(ctx context.Context, text string) error {
	e.SetInput(text)
	return e.Send(ctx)
}

// Clear empties the view and the cache. The user id is kept.
func (e *Engine) Clear(ctx context.Context) {
	e.mu.Lock()
	if e.stateLocked() == StateClosed {
		e.mu.Unlock()
		return
	}
	e.messages = []history.Message{}
	e.store.Clear()
	e.mu.Unlock()

	e.emit(ctx, Event{Name: EventClear})
}

// Close tears the engine down. It is safe to call more than once.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	_ = e.fsm.Fire(TriggerClose)
}

// SetInput replaces the input buffer.
func (e *Engine) SetInput(text string) {
	e.mu.Lock()
	e.input = text
	e.mu.Unlock()
}

// Input returns the input buffer.
func (e *Engine) Input() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.input
}

// Messages returns a copy of the current view.
func (e *Engine) Messages() []history.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]history.Message, len(e.messages))
	copy(out, e.messages)
	return out
}

// Error returns the error indicator, or "" when there is none.
func (e *Engine) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errMsg
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

// Busy reports whether a send is in flight.
func (e *Engine) Busy() bool {
	return e.State() == StateSending
}

// UserID returns the user id messages are attributed to.
func (e *Engine) UserID() string {
	return e.store.UserID()
}

func (e *Engine) stateLocked() State {
	return e.fsm.MustState().(State)
}

func (e *Engine) emit(ctx context.Context, ev Event) {
	e.opts.Hook(ctx, ev)
}
