// Package typing implements the per-room typing indicator: one shared flag on
// the room document, raised on the first keystroke and lowered after a quiet
// debounce interval.
package typing

import (
	"chatroom/backend/internal/apperr"
	"chatroom/backend/internal/config"
	"chatroom/backend/internal/decoder"
	"chatroom/backend/internal/models"
	"chatroom/backend/internal/storage"
	"context"
	"log"
	"time"
)

// State is the machine state.
type State int

const (
	Idle State = iota
	LocalTyping
	RemoteTyping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case LocalTyping:
		return "local"
	case RemoteTyping:
		return "remote"
	}
	return "unknown"
}

// Runner starts a remote write. It may run task inline or on another goroutine.
type Runner func(task func())

// Inline runs tasks on the caller's goroutine.
func Inline(task func()) { task() }

// Config describes the local user in one room.
type Config struct {
	RoomID string
	UserID string
	// Indicator is the "X is typing…" line written with the flag.
	Indicator string
	// Debounce defaults to config.TypingDebounceInterval.
	Debounce time.Duration
	// OnChange is called on the machine's context after every state change.
	OnChange func(models.TypingState)
	// OnWriteError is called from the Runner when a flag write fails.
	OnWriteError func(error)
}

// Machine is not safe for concurrent use; all methods, including timer
// callbacks delivered through the Scheduler, must run on one context.
type Machine struct {
	cfg   Config
	ctx   context.Context
	store storage.DocumentStore
	sched Scheduler
	run   Runner

	state      State
	remoteUser string
	remoteText string
	deadline   time.Time
	timer      Timer
	lastRemote *decoder.TypingRecord
	closed     bool
	// gen invalidates timer callbacks that were already queued when the timer was re-armed or cancelled.
	gen uint64
}

// New creates an Idle machine. ctx bounds flag writes issued while the room is active.
func New(ctx context.Context, cfg Config, store storage.DocumentStore, sched Scheduler, run Runner) *Machine {
	if cfg.Debounce <= 0 {
		cfg.Debounce = config.TypingDebounceInterval
	}
	if run == nil {
		run = Inline
	}
	return &Machine{cfg: cfg, ctx: ctx, store: store, sched: sched, run: run}
}

func (m *Machine) State() State { return m.state }

// Typing returns the published view of the machine.
func (m *Machine) Typing() models.TypingState {
	ts := models.TypingState{RoomID: m.cfg.RoomID}
	switch m.state {
	case LocalTyping:
		ts.TypingUserID = m.cfg.UserID
		ts.ExpiresAt = m.deadline
	case RemoteTyping:
		ts.TypingUserID = m.remoteUser
		ts.Text = m.remoteText
		ts.Remote = true
	}
	return ts
}

// Keystroke records local input. Only the edge into LocalTyping writes the flag;
// further keystrokes just push the deadline back.
func (m *Machine) Keystroke() {
	if m.closed {
		return
	}
	wasLocal := m.state == LocalTyping
	m.arm()
	if !wasLocal {
		m.transition(LocalTyping, "", "")
		m.write(m.ctx, true)
	}
}

// ApplyRemote feeds the typing fields of a room snapshot. Snapshots arrive for
// every room change, so a record equal to the previous one is ignored. A record
// written by the local user is an echo and never changes state.
func (m *Machine) ApplyRemote(rec decoder.TypingRecord) {
	if m.closed {
		return
	}
	if m.lastRemote != nil && sameRecord(*m.lastRemote, rec) {
		return
	}
	m.lastRemote = &rec
	if rec.UserID != "" && rec.UserID == m.cfg.UserID {
		return
	}

	switch {
	case rec.IsTyping:
		m.disarm()
		m.transition(RemoteTyping, rec.UserID, rec.Text)
	case m.state == LocalTyping:
		// A lowered flag from someone else was written before our raise, or the
		// document never carried one. We still hold the flag and only our own
		// debounce lowers it.
	case m.state != Idle:
		m.transition(Idle, "", "")
	}
}

func sameRecord(a, b decoder.TypingRecord) bool {
	return a.IsTyping == b.IsTyping && a.UserID == b.UserID && a.Text == b.Text && a.UpdatedAt.Equal(b.UpdatedAt)
}

// Teardown forces the machine to Idle. When the local user held the flag it
// returns the write that lowers it; the caller runs it with a context that
// survives the room's own cancellation. Otherwise it returns nil.
// The machine ignores all input afterwards.
func (m *Machine) Teardown() func(context.Context) error {
	if m.closed {
		return nil
	}
	m.closed = true
	wasLocal := m.state == LocalTyping
	m.disarm()
	if m.state != Idle {
		m.transition(Idle, "", "")
	}
	if !wasLocal {
		return nil
	}
	return func(ctx context.Context) error {
		return m.setFlag(ctx, false)
	}
}

func (m *Machine) arm() {
	m.disarm()
	gen := m.gen
	m.deadline = m.sched.Now().Add(m.cfg.Debounce)
	m.timer = m.sched.AfterFunc(m.cfg.Debounce, func() { m.expire(gen) })
}

func (m *Machine) disarm() {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.deadline = time.Time{}
}

func (m *Machine) expire(gen uint64) {
	if gen != m.gen || m.state != LocalTyping {
		return
	}
	m.timer = nil
	m.deadline = time.Time{}
	m.transition(Idle, "", "")
	m.write(m.ctx, false)
}

func (m *Machine) transition(to State, who, text string) {
	m.state = to
	m.remoteUser = who
	m.remoteText = text
	m.notify()
}

func (m *Machine) notify() {
	if m.cfg.OnChange != nil {
		m.cfg.OnChange(m.Typing())
	}
}

func (m *Machine) write(ctx context.Context, typing bool) {
	m.run(func() {
		if err := m.setFlag(ctx, typing); err != nil && m.cfg.OnWriteError != nil {
			m.cfg.OnWriteError(err)
		}
	})
}

func (m *Machine) setFlag(ctx context.Context, typing bool) error {
	text := ""
	if typing {
		text = m.cfg.Indicator
	}
	err := m.store.SetData(ctx, config.RoomPath(m.cfg.RoomID), models.Document{
		"isTyping":        typing,
		"typingUserId":    m.cfg.UserID,
		"typingText":      text,
		"typingUpdatedAt": storage.ServerTimestamp,
	}, true)
	if err != nil {
		log.Printf("ERROR: Failed to write typing=%t for %s in room %s: %v", typing, m.cfg.UserID, m.cfg.RoomID, err)
		return apperr.Write("set typing", err)
	}
	return nil
}
