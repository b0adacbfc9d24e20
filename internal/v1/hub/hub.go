// Package hub is the message router: the single serialization point for all
// room, session, and game mutations. Sessions decode frames and call into the
// hub; the hub pushes events into their sinks and never blocks on them.
package hub

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openconquer/generals-server/internal/v1/logging"
	"github.com/openconquer/generals-server/internal/v1/metrics"
	"github.com/openconquer/generals-server/internal/v1/protocol"
	"github.com/openconquer/generals-server/internal/v1/room"
)

const (
	// DisconnectGrace is how long a dropped session keeps its memberships.
	DisconnectGrace = 30 * time.Second

	// TurnInterval is the half-turn cadence of every running game.
	TurnInterval = 500 * time.Millisecond

	expireSweepInterval  = 10 * time.Second
	cleanupSweepInterval = 60 * time.Second
	emptyRoomTTL         = time.Hour
)

var (
	ErrAlreadyOnline = errors.New("user already online")
	ErrRoomExists    = errors.New("room id already exists")
)

// Sink is the outbound half of a session. Send must not block; a full or
// closed sink drops the event and the next map update resynchronizes the
// client.
type Sink interface {
	Send(event protocol.Event)
	Close()
}

type session struct {
	userID string
	name   string
	sink   Sink
}

type disconnectRecord struct {
	name string
	at   time.Time
}

// Hub owns every room and session record. A single mutex serializes all
// mutations; handlers finish without blocking so the lock is never pinned
// across waits.
type Hub struct {
	mu          sync.Mutex
	sessions    map[string]*session
	rooms       map[string]*room.Room
	disconnects map[string]disconnectRecord
	timers      map[string]*time.Timer

	// rng seeds map generation in tests; nil uses the wall clock.
	rng *rand.Rand

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a hub with the global lobby in place. Sweepers start on Run.
func New() *Hub {
	h := &Hub{
		sessions:    make(map[string]*session),
		rooms:       make(map[string]*room.Room),
		disconnects: make(map[string]disconnectRecord),
		timers:      make(map[string]*time.Timer),
		done:        make(chan struct{}),
	}
	h.rooms[room.GlobalRoomID] = room.NewGlobal()
	metrics.ActiveRooms.Set(1)
	return h
}

// Run starts the periodic sweeps and blocks until Stop.
func (h *Hub) Run() {
	expire := time.NewTicker(expireSweepInterval)
	cleanup := time.NewTicker(cleanupSweepInterval)
	defer expire.Stop()
	defer cleanup.Stop()

	for {
		select {
		case <-h.done:
			return
		case now := <-expire.C:
			h.ExpireDisconnected(now)
		case now := <-cleanup.C:
			h.CleanupRooms(now)
		}
	}
}

// Stop halts the sweeps, cancels every room timer, tells members of playing
// rooms the game is over, and closes all session sinks.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, t := range h.timers {
		t.Stop()
		delete(h.timers, id)
	}
	for _, r := range h.rooms {
		if r.Status == room.StatusPlaying {
			h.broadcastLocked(r, protocol.NewEndGame(r.ID))
		}
	}
	for _, s := range h.sessions {
		s.sink.Close()
	}
}

// Attach registers a session. A user inside the disconnect grace window
// resumes their prior memberships; a second live session for the same id is
// rejected.
func (h *Hub) Attach(userID, name string, sink Sink) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, online := h.sessions[userID]; online {
		return ErrAlreadyOnline
	}
	if rec, ok := h.disconnects[userID]; ok {
		delete(h.disconnects, userID)
		if name == "" {
			name = rec.name
		}
	}

	h.sessions[userID] = &session{userID: userID, name: name, sink: sink}

	global := h.rooms[room.GlobalRoomID]
	global.AddMember(userID, name)
	metrics.RoomMembers.WithLabelValues(room.GlobalRoomID).Set(float64(len(global.Members())))

	sink.Send(protocol.NewConnected(userID, name))
	h.broadcastLocked(global, h.roomInfoLocked(global))

	logging.Info(context.Background(), "Session attached",
		zap.String("user_id", userID), zap.String("username", name))
	return nil
}

// Detach removes the sink and opens the grace window. Memberships survive
// until the window expires.
func (h *Hub) Detach(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[userID]
	if !ok {
		return
	}
	delete(h.sessions, userID)
	h.disconnects[userID] = disconnectRecord{name: s.name, at: time.Now()}

	for _, r := range h.roomsOfLocked(userID) {
		h.broadcastLocked(r, protocol.NewChatMessage(r.ID, protocol.SystemSender,
			fmt.Sprintf("%s disconnected", s.name)))
	}

	logging.Info(context.Background(), "Session detached",
		zap.String("user_id", userID), zap.String("username", s.name))
}

// ExpireDisconnected strips users whose grace window has lapsed from every
// room. Run by the 10-second sweep; exported so tests can drive time.
func (h *Hub) ExpireDisconnected(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, rec := range h.disconnects {
		if now.Sub(rec.at) <= DisconnectGrace {
			continue
		}
		delete(h.disconnects, userID)
		for _, r := range h.roomsOfLocked(userID) {
			h.removeFromRoomLocked(r, userID, rec.name)
		}
		logging.Info(context.Background(), "Disconnect grace expired",
			zap.String("user_id", userID), zap.String("username", rec.name))
	}
}

// CleanupRooms drops members that have neither a session nor a grace record,
// then deletes non-global rooms empty for over an hour. Run by the 60-second
// sweep.
func (h *Hub) CleanupRooms(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, r := range h.rooms {
		if r.IsGlobal() {
			continue
		}
		for _, m := range append([]room.Member(nil), r.Members()...) {
			_, online := h.sessions[m.ID]
			_, graced := h.disconnects[m.ID]
			if !online && !graced {
				h.removeFromRoomLocked(r, m.ID, m.Name)
			}
		}
		if len(r.Members()) == 0 && !r.EmptySince.IsZero() && now.Sub(r.EmptySince) > emptyRoomTTL {
			h.stopTimerLocked(id)
			delete(h.rooms, id)
			metrics.ActiveRooms.Dec()
			metrics.RoomMembers.DeleteLabelValues(id)
			logging.Info(context.Background(), "Deleted stale room", zap.String("room_id", id))
		}
	}
}

// CreateRoom registers a room on behalf of the HTTP API. An empty id draws a
// random unused one.
func (h *Hub) CreateRoom(id, name, color string, maxPlayers int, password *string, hostID, hostName string, isPublic bool) (room.Summary, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if id == "" {
		id = h.randomRoomIDLocked()
	} else if _, exists := h.rooms[id]; exists {
		return room.Summary{}, ErrRoomExists
	}

	r := room.New(id, name, color, maxPlayers, password, isPublic)
	r.Host = hostID
	r.HostName = hostName
	h.rooms[id] = r
	metrics.ActiveRooms.Inc()

	logging.Info(context.Background(), "Room created",
		zap.String("room_id", id), zap.String("host", hostName))
	return r.Summarize(), nil
}

// randomRoomIDLocked draws a decimal id in [100000, 9999999] not yet in use.
func (h *Hub) randomRoomIDLocked() string {
	for {
		n := 100000 + h.intn(9999999-100000+1)
		id := fmt.Sprintf("%d", n)
		if _, exists := h.rooms[id]; !exists {
			return id
		}
	}
}

func (h *Hub) intn(n int) int {
	if h.rng != nil {
		return h.rng.Intn(n)
	}
	return rand.Intn(n)
}

// ListRooms returns the public, non-global rooms ordered by creation time.
func (h *Hub) ListRooms() []room.Summary {
	h.mu.Lock()
	defer h.mu.Unlock()

	var visible []*room.Room
	for _, r := range h.rooms {
		if r.IsGlobal() || !r.IsPublic {
			continue
		}
		visible = append(visible, r)
	}
	sort.Slice(visible, func(i, j int) bool {
		if visible[i].CreatedAt.Equal(visible[j].CreatedAt) {
			return visible[i].ID < visible[j].ID
		}
		return visible[i].CreatedAt.Before(visible[j].CreatedAt)
	})

	summaries := make([]room.Summary, len(visible))
	for i, r := range visible {
		summaries[i] = r.Summarize()
	}
	return summaries
}

// roomsOfLocked returns every room the user is currently a member of.
func (h *Hub) roomsOfLocked(userID string) []*room.Room {
	var result []*room.Room
	for _, r := range h.rooms {
		if r.HasMember(userID) {
			result = append(result, r)
		}
	}
	return result
}

// sendToLocked pushes an event to a user's sink if they are online.
func (h *Hub) sendToLocked(userID string, event protocol.Event) {
	if s, ok := h.sessions[userID]; ok {
		s.sink.Send(event)
	}
}

// broadcastLocked pushes an event to every online member of the room.
func (h *Hub) broadcastLocked(r *room.Room, event protocol.Event) {
	for _, m := range r.Members() {
		h.sendToLocked(m.ID, event)
	}
}

// systemChatLocked broadcasts a server-authored chat line to the room.
func (h *Hub) systemChatLocked(r *room.Room, format string, args ...any) {
	h.broadcastLocked(r, protocol.NewChatMessage(r.ID, protocol.SystemSender, fmt.Sprintf(format, args...)))
}

// disconnectedInLocked returns which members of the room are inside the grace
// window.
func (h *Hub) disconnectedInLocked(r *room.Room) map[string]bool {
	out := make(map[string]bool)
	for _, m := range r.Members() {
		if _, ok := h.disconnects[m.ID]; ok {
			out[m.ID] = true
		}
	}
	return out
}

func (h *Hub) roomInfoLocked(r *room.Room) protocol.RoomInfo {
	players := make([]protocol.RoomPlayer, 0, len(r.Members()))
	for _, m := range r.Members() {
		players = append(players, protocol.RoomPlayer{
			Name:       m.Name,
			Group:      r.Groups[m.ID],
			IsHost:     m.ID == r.Host,
			IsAdmin:    r.Admin != "" && m.ID == r.Admin,
			ForceStart: r.ForceStart.Has(m.ID),
		})
	}
	required, _ := r.StartThreshold()
	return protocol.NewRoomInfo(r.ID, r.Name, r.Color, string(r.Status), r.MaxPlayers, required, players)
}
