// Package room holds per-room state: membership, groups, the force-start
// quorum, kick lockouts, and the in-game turn counters. Rooms are plain data
// guarded by their owning router; nothing here locks.
package room

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"k8s.io/utils/set"

	"github.com/openconquer/generals-server/internal/v1/game"
)

// GlobalRoomID names the lobby room every session is a member of. It is never
// deleted, never locked, and never hosts a game.
const GlobalRoomID = "global"

const (
	// SpectatorGroup is the non-playing group. Groups 0-7 are player seats.
	SpectatorGroup = 8
	maxGroupSize   = 2

	// KickLockout is how long a kicked user is barred from rejoining.
	KickLockout = 5 * time.Minute

	MinPlayers = 2
	MaxPlayers = 16
)

var (
	ErrWrongPassword    = errors.New("密码错误")
	ErrPasswordRequired = errors.New("需要密码")
	ErrRoomFull         = errors.New("room is full")
	ErrKickLocked       = errors.New("you were kicked from this room recently")
	ErrNotMember        = errors.New("not a member of this room")
	ErrBadGroup         = errors.New("invalid group")
)

// Status is the room lifecycle phase.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusPlaying Status = "playing"
	StatusEnded   Status = "ended"
)

// Half marks which half of a turn the scheduler is in.
type Half uint8

const (
	FirstHalf Half = iota
	SecondHalf
)

// Member is one room occupant. Name is captured at join time so rosters stay
// renderable through a disconnect grace window.
type Member struct {
	ID   string
	Name string
}

// Room is the complete state of one room. All fields are mutated only under
// the router's serialization.
type Room struct {
	ID         string
	Name       string
	Color      string
	MaxPlayers int
	Password   *string // nil means open
	IsPublic   bool

	Host     string // member id, immutable once set
	HostName string
	Admin    string // member id, "" when unset

	Status    Status
	CreatedAt time.Time

	// EmptySince is the zero value while the room has members; the cleanup
	// sweep deletes rooms empty for over an hour.
	EmptySince time.Time

	members    []Member       // join order
	Groups     map[string]int // member id -> group 0-8
	Teams      map[string]string
	ForceStart set.Set[string]
	Kicks      map[string]time.Time // member id -> kick timestamp

	// Game state, valid while Status is playing or ended.
	Map     *game.Map
	Turn    int
	Half    Half
	Actions map[string]string // member id -> last opaque action
	Winner  string
}

// New creates a waiting room with the given settings.
func New(id, name, color string, maxPlayers int, password *string, isPublic bool) *Room {
	return &Room{
		ID:         id,
		Name:       name,
		Color:      color,
		MaxPlayers: maxPlayers,
		Password:   password,
		IsPublic:   isPublic,
		Status:     StatusWaiting,
		CreatedAt:  time.Now(),
		Groups:     make(map[string]int),
		Teams:      make(map[string]string),
		ForceStart: set.New[string](),
		Kicks:      make(map[string]time.Time),
		Actions:    make(map[string]string),
	}
}

// NewDefault creates a room with default name and color, used for implicit
// creation on first join of an unknown id.
func NewDefault(id string) *Room {
	return New(id, id, "#663399", MaxPlayers, nil, true)
}

// NewGlobal creates the lobby room.
func NewGlobal() *Room {
	return New(GlobalRoomID, "global", "#663399", 0, nil, true)
}

// IsGlobal reports whether this is the lobby room.
func (r *Room) IsGlobal() bool {
	return r.ID == GlobalRoomID
}

// Members returns the occupants in join order.
func (r *Room) Members() []Member {
	return r.members
}

// HasMember reports membership by user id.
func (r *Room) HasMember(userID string) bool {
	for _, m := range r.members {
		if m.ID == userID {
			return true
		}
	}
	return false
}

// MemberByName returns the member with the given display name.
func (r *Room) MemberByName(name string) (Member, bool) {
	for _, m := range r.members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

// IsFull reports whether the room is at capacity. The lobby has no cap.
func (r *Room) IsFull() bool {
	return r.MaxPlayers > 0 && len(r.members) >= r.MaxPlayers
}

// CheckPassword validates a join attempt against the room password.
func (r *Room) CheckPassword(supplied *string) error {
	if r.Password == nil || *r.Password == "" {
		return nil
	}
	if supplied == nil {
		return ErrPasswordRequired
	}
	if *supplied != *r.Password {
		return ErrWrongPassword
	}
	return nil
}

// KickLockedUntil returns the end of the user's kick lockout, or the zero
// time if none is active.
func (r *Room) KickLockedUntil(userID string, now time.Time) time.Time {
	at, ok := r.Kicks[userID]
	if !ok {
		return time.Time{}
	}
	until := at.Add(KickLockout)
	if now.After(until) {
		delete(r.Kicks, userID)
		return time.Time{}
	}
	return until
}

// RecordKick starts the 5-minute lockout for a user.
func (r *Room) RecordKick(userID string, now time.Time) {
	r.Kicks[userID] = now
}

// AddMember inserts the user and assigns a group. In a waiting room the user
// takes the least occupied player seat with a free slot; otherwise they
// spectate. In a playing room a returning user keeps their prior group. The
// first member of a fresh room becomes host, and admin if none is set. The
// lobby assigns no groups beyond spectator and never takes a host.
func (r *Room) AddMember(userID, name string) {
	if r.HasMember(userID) {
		return
	}
	wasEmpty := len(r.members) == 0
	r.members = append(r.members, Member{ID: userID, Name: name})
	r.EmptySince = time.Time{}

	switch {
	case r.IsGlobal():
		r.Groups[userID] = SpectatorGroup
	case r.Status == StatusWaiting:
		r.Groups[userID] = r.smallestOpenGroup()
	default:
		if _, ok := r.Groups[userID]; !ok {
			r.Groups[userID] = SpectatorGroup
		}
	}

	if wasEmpty && r.Host == "" && !r.IsGlobal() {
		r.Host = userID
		r.HostName = name
	}
	if len(r.members) == 1 && r.Admin == "" && !r.IsGlobal() {
		r.Admin = userID
	}
}

// smallestOpenGroup picks the group 0-7 with the fewest occupants and a free
// slot, lowest id on ties, or spectator when every seat pair is taken. New
// joiners spread across empty seats before doubling up, so auto-seated
// players land on distinct teams.
func (r *Room) smallestOpenGroup() int {
	counts := make([]int, SpectatorGroup)
	for _, g := range r.Groups {
		if g >= 0 && g < SpectatorGroup {
			counts[g]++
		}
	}
	best, bestCount := SpectatorGroup, maxGroupSize
	for g, n := range counts {
		if n < bestCount {
			best, bestCount = g, n
		}
	}
	return best
}

// RemoveMember strips the user from members, groups, teams, and the
// force-start set. Remaining votes are voided when the active-player count
// drops below the start minimum. If the leaver was admin the seat is cleared;
// with the host gone and members remaining, the first remaining member is
// auto-promoted. The returned name is the promoted member's, "" if no
// promotion happened.
func (r *Room) RemoveMember(userID string) (promoted string) {
	for i, m := range r.members {
		if m.ID == userID {
			r.members = append(r.members[:i], r.members[i+1:]...)
			break
		}
	}
	delete(r.Groups, userID)
	r.ForceStart.Delete(userID)
	if r.Status == StatusWaiting {
		delete(r.Teams, userID)
	}
	delete(r.Actions, userID)

	if r.Status == StatusWaiting && r.ForceStart.Len() > 0 && len(r.ActivePlayers()) < MinPlayers {
		r.ForceStart = set.New[string]()
	}

	if r.Admin == userID {
		r.Admin = ""
	}
	if len(r.members) == 0 {
		r.EmptySince = time.Now()
		return ""
	}
	if !r.HasMember(r.Host) && r.Admin == "" && !r.IsGlobal() {
		r.Admin = r.members[0].ID
		return r.members[0].Name
	}
	return ""
}

// CanModerate reports whether the user may kick in this room.
func (r *Room) CanModerate(userID string) bool {
	return userID == r.Host || (r.Admin != "" && userID == r.Admin)
}

// ChangeGroup moves a member to the target group 0-8.
func (r *Room) ChangeGroup(userID string, target int) error {
	if !r.HasMember(userID) {
		return ErrNotMember
	}
	if target < 0 || target > SpectatorGroup {
		return ErrBadGroup
	}
	r.Groups[userID] = target
	return nil
}

// ActivePlayers returns the members sitting in player groups 0-7, in join
// order.
func (r *Room) ActivePlayers() []Member {
	var active []Member
	for _, m := range r.members {
		if g, ok := r.Groups[m.ID]; ok && g < SpectatorGroup {
			active = append(active, m)
		}
	}
	return active
}

// forceStartThreshold maps non-spectator count N to the votes needed to
// start. N outside [2,16] has no threshold.
var forceStartThreshold = map[int]int{
	2: 2, 3: 3, 4: 3, 5: 4, 6: 4, 7: 5, 8: 5,
	9: 6, 10: 6, 11: 7, 12: 7, 13: 8, 14: 8, 15: 9, 16: 9,
}

// StartThreshold returns the force-start quorum for the current active-player
// count; ok is false when starting is impossible at this count.
func (r *Room) StartThreshold() (votes int, ok bool) {
	votes, ok = forceStartThreshold[len(r.ActivePlayers())]
	return votes, ok
}

// CountedVotes returns how many force-start votes come from current active
// players. Votes from members who moved to spectator or left do not count.
func (r *Room) CountedVotes() int {
	votes := 0
	for _, m := range r.ActivePlayers() {
		if r.ForceStart.Has(m.ID) {
			votes++
		}
	}
	return votes
}

// ClearForceStart voids every pending start vote.
func (r *Room) ClearForceStart() {
	r.ForceStart = set.New[string]()
}

// ShouldStart reports whether the force-start quorum is met.
func (r *Room) ShouldStart() bool {
	threshold, ok := r.StartThreshold()
	if !ok {
		return false
	}
	return r.CountedVotes() >= threshold
}

// StartGame transitions the room into play: teams are derived from groups,
// a map is generated and generals are dealt to the distinct teams. rng may
// be nil for wall-clock seeding.
func (r *Room) StartGame(rng *rand.Rand) {
	r.Status = StatusPlaying
	r.Turn = 1
	r.Half = FirstHalf
	r.ForceStart = set.New[string]()
	r.Actions = make(map[string]string)
	r.Teams = make(map[string]string)
	r.Winner = ""

	active := r.ActivePlayers()
	seen := make(map[int]bool)
	var teams []string
	for _, m := range active {
		g := r.Groups[m.ID]
		r.Teams[m.ID] = teamForGroup(g)
		if !seen[g] {
			seen[g] = true
			teams = append(teams, teamForGroup(g))
		}
	}

	if rng == nil {
		r.Map = game.Generate(teams, len(active))
	} else {
		r.Map = game.GenerateSeeded(teams, len(active), rng)
	}
}

func teamForGroup(g int) string {
	return fmt.Sprintf("team_%d", g)
}

// Ticks returns the half-tick counter used by city growth.
func (r *Room) Ticks() int {
	t := 2 * r.Turn
	if r.Half == SecondHalf {
		t++
	}
	return t
}

// GrowTick applies the growth rules for the current turn and half.
func (r *Room) GrowTick() {
	if r.Half == FirstHalf {
		r.Map.GrowGenerals()
		if r.Turn%25 == 0 {
			r.Map.GrowAll()
		}
	}
	r.Map.GrowCities(r.Ticks())
}

// CheckWin reports whether at most one team still owns tiles, and the sole
// survivor if any. The caller decides when to act on it.
func (r *Room) CheckWin() (winner string, over bool) {
	teams := r.Map.ActiveTeams()
	if len(teams) > 1 {
		return "", false
	}
	if len(teams) == 1 {
		return teams[0], true
	}
	return "", true
}

// EndGame marks the room ended and remembers the winner.
func (r *Room) EndGame(winner string) {
	r.Status = StatusEnded
	r.Winner = winner
}

// AdvanceHalf flips the half-turn; a wrap back to the first half increments
// the turn.
func (r *Room) AdvanceHalf() {
	if r.Half == FirstHalf {
		r.Half = SecondHalf
		return
	}
	r.Half = FirstHalf
	r.Turn++
}

// PlayerStatus is a roster entry's liveness state.
const (
	StatusActive       = "active"
	StatusDefeated     = "defeated"
	StatusDisconnected = "disconnected"
	StatusObserver     = "observer"
)

// RosterEntry is one non-spectator line of a map update's roster.
type RosterEntry struct {
	Name   string
	Group  int
	Power  int
	Status string
}

// Roster builds the per-player power list for map updates. disconnected
// holds the user ids currently inside the grace window.
func (r *Room) Roster(disconnected map[string]bool) []RosterEntry {
	var roster []RosterEntry
	for _, m := range r.members {
		g, ok := r.Groups[m.ID]
		if !ok || g == SpectatorGroup {
			continue
		}
		entry := RosterEntry{Name: m.Name, Group: g}
		team, onTeam := r.Teams[m.ID]
		switch {
		case !onTeam:
			entry.Status = StatusObserver
		case disconnected[m.ID]:
			entry.Status = StatusDisconnected
			entry.Power = r.Map.TeamPower(team)
		case r.Map.TeamPower(team) == 0:
			entry.Status = StatusDefeated
		default:
			entry.Status = StatusActive
			entry.Power = r.Map.TeamPower(team)
		}
		roster = append(roster, entry)
	}
	return roster
}

// ViewFor projects the map for the given member: spectators and observers see
// everything, players see their team's fog.
func (r *Room) ViewFor(userID string) []game.TileView {
	team, onTeam := r.Teams[userID]
	return r.Map.ViewFor(team, !onTeam)
}

// Summary is the listing shape for the room directory.
type Summary struct {
	ID              string `json:"room_id"`
	Name            string `json:"name"`
	HostName        string `json:"host_name"`
	Status          Status `json:"status"`
	PlayerCount     int    `json:"player_count"`
	MaxPlayers      int    `json:"max_players"`
	Color           string `json:"room_color"`
	RequiredToStart int    `json:"required_to_start"`
	IsActive        bool   `json:"is_active"`
	HasPassword     bool   `json:"has_password"`
}

// Summarize returns the room's listing entry. RequiredToStart is zero while
// the active-player count has no start threshold.
func (r *Room) Summarize() Summary {
	required, _ := r.StartThreshold()
	return Summary{
		ID:              r.ID,
		Name:            r.Name,
		HostName:        r.HostName,
		Status:          r.Status,
		PlayerCount:     len(r.members),
		MaxPlayers:      r.MaxPlayers,
		Color:           r.Color,
		RequiredToStart: required,
		IsActive:        r.Status == StatusPlaying,
		HasPassword:     r.Password != nil && *r.Password != "",
	}
}
