package chathub

import (
	"chatroom/backend/internal/config"
	"chatroom/backend/internal/directory"
	"chatroom/backend/internal/localization"
	"chatroom/backend/internal/metrics"
	"chatroom/backend/internal/models"
	"chatroom/backend/internal/subscription"
	"context"
	"log"
	"sync"
)

type sessionKey struct {
	roomID string
	userID string
}

// roomEntry is one session and the connections attached to it.
type roomEntry struct {
	session *RoomSession
	clients map[string]Client
}

// Hub owns the realtime clients, one RoomSession per (room, user), and the
// room directory. Everything except the channels runs on the hub's loop.
type Hub struct {
	Clients map[string]Client

	// Channels
	RegisterCh   chan Client
	UnregisterCh chan Client
	IncomingCh   chan Inbound

	deps SessionDeps
	loop *Loop

	sessions  map[sessionKey]*roomEntry
	directory *directory.Directory
	dirSubs   *subscription.Manager
	viewers   map[string]Client
	// unavailableText is shown to viewers while the directory stream is down.
	unavailableText string

	ctx      context.Context
	done     chan struct{}
	teardown sync.WaitGroup
}

// NewHub creates a hub. The directory placeholder uses the default language.
func NewHub(deps SessionDeps) *Hub {
	placeholder := localization.KeyNoRecentMessages
	unavailable := localization.KeyRoomsUnavailable
	if deps.Localizer != nil {
		placeholder = deps.Localizer.GetString(config.DefaultLanguage, localization.KeyNoRecentMessages)
		unavailable = deps.Localizer.GetString(config.DefaultLanguage, localization.KeyRoomsUnavailable)
	}
	loop := NewLoop()
	return &Hub{
		Clients:         make(map[string]Client),
		RegisterCh:      make(chan Client),
		UnregisterCh:    make(chan Client),
		IncomingCh:      make(chan Inbound),
		deps:            deps,
		loop:            loop,
		sessions:        make(map[sessionKey]*roomEntry),
		directory:       directory.New(deps.Decoder, placeholder),
		dirSubs:         subscription.NewManager(deps.Store, loop.Post),
		viewers:         make(map[string]Client),
		unavailableText: unavailable,
		done:            make(chan struct{}),
	}
}

// Done is closed when Run returns.
func (h *Hub) Done() <-chan struct{} { return h.done }

// Post runs task on the hub's loop.
func (h *Hub) Post(task func()) { h.loop.Post(task) }

// Run is the hub's loop. It returns after ctx is cancelled and all sessions
// have finished their teardown writes.
func (h *Hub) Run(ctx context.Context) {
	h.ctx = ctx
	defer close(h.done)

	if _, err := h.dirSubs.Subscribe(ctx, subscription.Key{Kind: subscription.Directory}, h.onDirectory); err != nil {
		log.Printf("ERROR: Room directory unavailable: %v", err)
		h.directory.Fail(h.unavailableText)
	}
	log.Println("INFO: Hub started.")

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.RegisterCh:
			h.register(client)
		case client := <-h.UnregisterCh:
			h.unregister(client)
		case in := <-h.IncomingCh:
			h.handleCommand(in)
		case <-h.loop.Wake():
			h.loop.Drain()
		}
	}
}

func (h *Hub) register(client Client) {
	h.Clients[client.GetClientID()] = client
	metrics.ConnectedClients.Inc()
	log.Printf("INFO: Client %s registered (user %s).", client.GetClientID(), client.GetUserID())

	if client.GetRoomID() == "" {
		h.viewers[client.GetClientID()] = client
		h.sendTo(client, h.directoryEvent())
		return
	}

	key := sessionKey{roomID: client.GetRoomID(), userID: client.GetUserID()}
	entry, ok := h.sessions[key]
	if !ok {
		cfg := SessionConfig{
			RoomID:      key.roomID,
			UserID:      key.userID,
			DisplayName: client.GetDisplayName(),
			Lang:        client.GetLang(),
		}
		entry = &roomEntry{clients: make(map[string]Client)}
		entry.session = NewRoomSession(h.ctx, cfg, h.deps, h.loop.Post, func(ev models.ServerEvent) {
			h.broadcast(key, ev)
		})
		h.sessions[key] = entry
		entry.clients[client.GetClientID()] = client
		if err := entry.session.Open(); err != nil {
			log.Printf("WARNING: Room %s opened partially for %s: %v", key.roomID, key.userID, err)
		}
		return
	}

	entry.clients[client.GetClientID()] = client
	entry.session.Snapshot()
}

func (h *Hub) unregister(client Client) {
	id := client.GetClientID()
	if _, ok := h.Clients[id]; !ok {
		return
	}
	delete(h.Clients, id)
	delete(h.viewers, id)
	client.Close()
	metrics.ConnectedClients.Dec()
	log.Printf("INFO: Client %s unregistered.", id)

	key := sessionKey{roomID: client.GetRoomID(), userID: client.GetUserID()}
	entry, ok := h.sessions[key]
	if !ok {
		return
	}
	delete(entry.clients, id)
	if len(entry.clients) == 0 {
		delete(h.sessions, key)
		h.closeSession(entry.session)
	}
}

func (h *Hub) closeSession(s *RoomSession) {
	flush := s.Close()
	h.teardown.Add(1)
	go func() {
		defer h.teardown.Done()
		if err := flush(); err != nil {
			log.Printf("WARNING: Teardown of room %s for %s incomplete: %v", s.RoomID(), s.UserID(), err)
		}
	}()
}

func (h *Hub) handleCommand(in Inbound) {
	client, ok := h.Clients[in.ClientID]
	if !ok {
		return
	}
	entry, ok := h.sessions[sessionKey{roomID: client.GetRoomID(), userID: client.GetUserID()}]
	if !ok {
		log.Printf("WARNING: Command from %s outside a room ignored.", in.ClientID)
		return
	}
	entry.session.Handle(in.Command)
}

// onDirectory republishes the room list. A stream error keeps the last good
// list but marks it unavailable until the next snapshot.
func (h *Hub) onDirectory(ev subscription.Event) {
	if ev.Err != nil {
		log.Printf("ERROR: Room directory stream failed: %v", ev.Err)
		h.directory.Fail(h.unavailableText)
	} else if errs := h.directory.Ingest(ev.Results); len(errs) > 0 {
		metrics.DecodeErrors.WithLabelValues(subscription.Directory.String()).Add(float64(len(errs)))
	}
	view := h.directoryEvent()
	for _, c := range h.viewers {
		h.sendTo(c, view)
	}
}

func (h *Hub) directoryEvent() models.ServerEvent {
	ev, err := models.NewServerEvent(models.EventDirectory, "", h.directory.View())
	if err != nil {
		log.Printf("ERROR: Failed to encode directory: %v", err)
	}
	return ev
}

// Directory returns the current room directory view. Safe from any goroutine
// while the hub is running.
func (h *Hub) Directory(ctx context.Context) (directory.View, error) {
	result := make(chan directory.View, 1)
	h.loop.Post(func() { result <- h.directory.View() })
	select {
	case v := <-result:
		return v, nil
	case <-ctx.Done():
		return directory.View{}, ctx.Err()
	case <-h.done:
		return directory.View{}, context.Canceled
	}
}

func (h *Hub) broadcast(key sessionKey, ev models.ServerEvent) {
	entry, ok := h.sessions[key]
	if !ok {
		return
	}
	for _, c := range entry.clients {
		h.sendTo(c, ev)
	}
}

// sendTo drops clients that cannot keep up.
func (h *Hub) sendTo(c Client, ev models.ServerEvent) {
	select {
	case c.GetSendChannel() <- ev:
	default:
		log.Printf("WARNING: Client %s is too slow, disconnecting.", c.GetClientID())
		h.loop.Post(func() { h.unregister(c) })
	}
}

func (h *Hub) shutdown() {
	log.Println("INFO: Hub shutting down...")
	for _, c := range h.Clients {
		h.unregister(c)
	}
	if err := h.dirSubs.CloseAll(); err != nil {
		log.Printf("WARNING: Failed to close directory stream: %v", err)
	}
	h.teardown.Wait()
	log.Println("INFO: Hub stopped.")
}
