package chathub

import (
	"chatroom/backend/internal/apperr"
	"chatroom/backend/internal/config"
	"chatroom/backend/internal/decoder"
	"chatroom/backend/internal/localization"
	"chatroom/backend/internal/messagelog"
	"chatroom/backend/internal/metrics"
	"chatroom/backend/internal/models"
	"chatroom/backend/internal/notify"
	"chatroom/backend/internal/presence"
	"chatroom/backend/internal/storage"
	"chatroom/backend/internal/subscription"
	"chatroom/backend/internal/typing"
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// RoomRecorder remembers which rooms an account has entered.
type RoomRecorder interface {
	AddAccountRoom(accountID, roomID string) error
}

// SessionDeps are the collaborators shared by all room sessions.
type SessionDeps struct {
	Store     storage.DocumentStore
	Decoder   *decoder.Decoder
	Sender    *messagelog.Sender
	Presence  *presence.Writer
	Notifier  notify.Notifier
	Localizer *localization.Localizer
	Rooms     RoomRecorder
	// Scheduler defaults to a typing.LoopScheduler on the session's loop.
	Scheduler typing.Scheduler
	Debounce  time.Duration
}

// SessionConfig identifies the local user in one room.
type SessionConfig struct {
	RoomID      string
	UserID      string
	DisplayName string
	Lang        string
}

// Notice is the payload of an EventNotice frame.
type Notice struct {
	Key        string `json:"key"`
	Text       string `json:"text"`
	Stream     string `json:"stream,omitempty"`
	Persistent bool   `json:"persistent"`
}

// DraftState is the payload of an EventDraft frame.
type DraftState struct {
	Text    string `json:"text"`
	Pending bool   `json:"pending"`
}

// RoomSession binds the message log, presence tracker and typing machine of
// one user in one room to the remote store. All methods must run on the
// execution context behind post.
type RoomSession struct {
	cfg     SessionConfig
	deps    SessionDeps
	post    func(func())
	publish func(models.ServerEvent)

	ctx    context.Context
	cancel context.CancelFunc

	subs    *subscription.Manager
	scope   *subscription.Scope
	log     *messagelog.Log
	tracker *presence.Tracker
	typing  *typing.Machine
	draft   messagelog.Draft

	// inflight counts sends awaiting their acknowledgement; several may overlap.
	inflight    int
	unavailable map[subscription.Kind]bool
	closed      bool
	online      chan struct{}
}

// NewRoomSession creates a session. post must enqueue onto a single execution
// context; publish receives every event for the session's clients and is called on it.
func NewRoomSession(parent context.Context, cfg SessionConfig, deps SessionDeps, post func(func()), publish func(models.ServerEvent)) *RoomSession {
	ctx, cancel := context.WithCancel(parent)
	s := &RoomSession{
		cfg:         cfg,
		deps:        deps,
		post:        post,
		publish:     publish,
		ctx:         ctx,
		cancel:      cancel,
		log:         messagelog.New(cfg.RoomID, deps.Decoder),
		tracker:     presence.NewTracker(cfg.RoomID, deps.Decoder),
		unavailable: make(map[subscription.Kind]bool),
	}
	s.subs = subscription.NewManager(deps.Store, post)
	s.scope = s.subs.NewScope()

	sched := deps.Scheduler
	if sched == nil {
		sched = typing.LoopScheduler{Post: post}
	}
	s.typing = typing.New(ctx, typing.Config{
		RoomID:    cfg.RoomID,
		UserID:    cfg.UserID,
		Indicator: s.text(localization.KeyTypingIndicator, cfg.DisplayName),
		Debounce:  deps.Debounce,
		OnChange: func(ts models.TypingState) {
			s.emit(models.EventTyping, ts)
		},
		OnWriteError: func(err error) {
			metrics.ObserveWrite("typing", err)
		},
	}, deps.Store, sched, func(task func()) { go task() })
	return s
}

func (s *RoomSession) RoomID() string { return s.cfg.RoomID }
func (s *RoomSession) UserID() string { return s.cfg.UserID }

// Open subscribes to the room streams and marks the user online.
// A stream that cannot be opened is reported as a persistent notice; the
// remaining streams stay usable.
func (s *RoomSession) Open() error {
	var errs []error
	streams := []struct {
		kind subscription.Kind
		fn   subscription.Handler
	}{
		{subscription.Messages, s.onMessages},
		{subscription.Typing, s.onTyping},
		{subscription.Presence, s.onPresence},
	}
	for _, st := range streams {
		key := subscription.Key{RoomID: s.cfg.RoomID, Kind: st.kind}
		if _, err := s.scope.Subscribe(s.ctx, key, st.fn); err != nil {
			errs = append(errs, err)
			kind := st.kind
			s.post(func() { s.markUnavailable(kind) })
		}
	}

	s.online = make(chan struct{})
	go func() {
		defer close(s.online)
		err := s.deps.Presence.SetOnline(s.ctx, s.cfg.RoomID, s.cfg.UserID, true)
		metrics.ObserveWrite("presence", err)
	}()

	if s.deps.Rooms != nil {
		go func() {
			if err := s.deps.Rooms.AddAccountRoom(s.cfg.UserID, s.cfg.RoomID); err != nil {
				log.Printf("WARNING: Failed to record room %s for %s: %v", s.cfg.RoomID, s.cfg.UserID, err)
			}
		}()
	}

	metrics.ActiveRooms.Inc()
	log.Printf("INFO: %s joined room %s", s.cfg.UserID, s.cfg.RoomID)
	return errors.Join(errs...)
}

func (s *RoomSession) onMessages(ev subscription.Event) {
	if s.closed {
		return
	}
	if ev.Err != nil {
		s.markUnavailable(subscription.Messages)
		return
	}
	s.recover(subscription.Messages)
	s.countDecodeErrors(subscription.Messages, s.log.Ingest(ev.Document.Data))
	s.emit(models.EventMessages, s.log.Messages())
}

func (s *RoomSession) onTyping(ev subscription.Event) {
	if s.closed {
		return
	}
	if ev.Err != nil {
		s.markUnavailable(subscription.Typing)
		return
	}
	s.recover(subscription.Typing)
	s.typing.ApplyRemote(s.deps.Decoder.Typing(ev.Document.Data))
}

func (s *RoomSession) onPresence(ev subscription.Event) {
	if s.closed {
		return
	}
	if ev.Err != nil {
		s.markUnavailable(subscription.Presence)
		return
	}
	s.recover(subscription.Presence)
	s.countDecodeErrors(subscription.Presence, s.tracker.Ingest(ev.Results))
	s.emit(models.EventPresence, s.tracker.State())
}

func (s *RoomSession) countDecodeErrors(kind subscription.Kind, errs []error) {
	if len(errs) == 0 {
		return
	}
	metrics.DecodeErrors.WithLabelValues(kind.String()).Add(float64(len(errs)))
	for _, err := range errs {
		log.Printf("WARNING: Skipping %s entry in room %s: %v", kind, s.cfg.RoomID, err)
	}
}

func (s *RoomSession) markUnavailable(kind subscription.Kind) {
	if s.closed || s.unavailable[kind] {
		return
	}
	s.unavailable[kind] = true
	s.notice(localization.KeyRoomUnavailable, kind.String(), true)
}

func (s *RoomSession) recover(kind subscription.Kind) {
	delete(s.unavailable, kind)
}

// Unavailable reports whether stream kind has failed.
func (s *RoomSession) Unavailable(kind subscription.Kind) bool { return s.unavailable[kind] }

// Handle applies one client command.
func (s *RoomSession) Handle(cmd models.ClientCommand) {
	if s.closed {
		return
	}
	switch cmd.Type {
	case models.CommandDraft:
		s.draft.Set(cmd.Text)
	case models.CommandKeystroke:
		if cmd.Text != "" {
			s.draft.Set(cmd.Text)
		}
		s.typing.Keystroke()
	case models.CommandSend:
		if cmd.Text != "" {
			s.draft.Set(cmd.Text)
		}
		s.send()
	default:
		log.Printf("WARNING: Unknown command %q from %s", cmd.Type, s.cfg.UserID)
	}
}

func (s *RoomSession) send() {
	text, rev := s.draft.Capture()
	if strings.TrimSpace(text) == "" {
		s.notice(localization.KeyEmptyMessage, "", false)
		return
	}
	s.inflight++
	s.emit(models.EventDraft, DraftState{Text: text, Pending: true})

	go func() {
		msg, err := s.deps.Sender.Send(s.ctx, s.cfg.RoomID, s.cfg.UserID, text)
		metrics.ObserveWrite("message", err)
		s.post(func() { s.sent(msg, rev, err) })
	}()
}

func (s *RoomSession) sent(msg models.Message, rev uint64, err error) {
	s.inflight--
	if s.closed {
		return
	}
	s.draft.Settle(rev, err)
	s.emit(models.EventDraft, DraftState{Text: s.draft.Text(), Pending: s.inflight > 0})

	switch {
	case err == nil:
		s.announce(msg)
	case apperr.IsValidation(err):
		s.notice(localization.KeyEmptyMessage, "", false)
	default:
		s.notice(localization.KeySendFailed, "", false)
	}
}

// announce pushes a notification without blocking the loop.
func (s *RoomSession) announce(msg models.Message) {
	if s.deps.Notifier == nil {
		return
	}
	n := notify.Notification{RoomID: msg.RoomID, Author: msg.Author, Text: msg.Text}
	go func() {
		if err := s.deps.Notifier.Notify(s.ctx, n); err != nil {
			log.Printf("WARNING: Failed to notify about message %s: %v", msg.ID, err)
		}
	}()
}

// Snapshot publishes the current state, for a client that attaches late.
func (s *RoomSession) Snapshot() {
	if s.tracker.Loaded() {
		s.emit(models.EventPresence, s.tracker.State())
	}
	s.emit(models.EventMessages, s.log.Messages())
	s.emit(models.EventTyping, s.typing.Typing())
	s.emit(models.EventDraft, DraftState{Text: s.draft.Text(), Pending: s.inflight > 0})
}

// Messages returns the visible message sequence.
func (s *RoomSession) Messages() []models.Message { return s.log.Messages() }

// Presence returns the online set.
func (s *RoomSession) Presence() presence.Online { return s.tracker.State() }

// Typing returns the typing indicator.
func (s *RoomSession) Typing() models.TypingState { return s.typing.Typing() }

// Draft returns the current draft text.
func (s *RoomSession) Draft() string { return s.draft.Text() }

// Close stops the streams and publishing. It returns the teardown writes
// (typing flag, offline presence), which the caller runs off the loop.
// They use a context detached from the session's and bounded by
// config.TeardownWriteTimeout.
func (s *RoomSession) Close() func() error {
	if s.closed {
		return func() error { return nil }
	}
	s.closed = true
	flushTyping := s.typing.Teardown()
	scopeErr := s.scope.Close()
	metrics.ActiveRooms.Dec()

	online := s.online
	return func() error {
		defer s.cancel()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), config.TeardownWriteTimeout)
		defer cancel()

		if online != nil {
			select {
			case <-online:
			case <-ctx.Done():
			}
		}

		g, gctx := errgroup.WithContext(ctx)
		if flushTyping != nil {
			g.Go(func() error { return flushTyping(gctx) })
		}
		g.Go(func() error {
			err := s.deps.Presence.SetOnline(gctx, s.cfg.RoomID, s.cfg.UserID, false)
			metrics.ObserveWrite("presence", err)
			return err
		})
		err := errors.Join(scopeErr, g.Wait())
		log.Printf("INFO: %s left room %s", s.cfg.UserID, s.cfg.RoomID)
		return err
	}
}

func (s *RoomSession) notice(key, stream string, persistent bool) {
	s.emit(models.EventNotice, Notice{Key: key, Text: s.text(key), Stream: stream, Persistent: persistent})
}

func (s *RoomSession) text(key string, args ...any) string {
	if s.deps.Localizer == nil {
		return key
	}
	lang := s.cfg.Lang
	if lang == "" {
		lang = config.DefaultLanguage
	}
	if len(args) > 0 {
		return s.deps.Localizer.Format(lang, key, args...)
	}
	return s.deps.Localizer.GetString(lang, key)
}

func (s *RoomSession) emit(eventType string, payload any) {
	if s.closed {
		return
	}
	ev, err := models.NewServerEvent(eventType, s.cfg.RoomID, payload)
	if err != nil {
		log.Printf("ERROR: Failed to encode %s event: %v", eventType, err)
		return
	}
	s.publish(ev)
}
