package protocol

// Outbound event types.
const (
	EvtConnected        = "connected"
	EvtChatMessage      = "chat_message"
	EvtJoinRoom         = "join_room"
	EvtLeaveRoom        = "leave_room"
	EvtRoomInfo         = "room_info"
	EvtOk               = "ok"
	EvtMoveOk           = "move_ok"
	EvtError            = "error"
	EvtRedirectToHome   = "redirect_to_home"
	EvtRedirectToGame   = "redirect_to_game"
	EvtStartGame        = "start_game"
	EvtEndGame          = "end_game"
	EvtGameTurnUpdate   = "game_turn_update"
	EvtMapUpdate        = "map_update"
	EvtGameWin          = "game_win"
	EvtPlayerEliminated = "player_eliminated"
)

// SystemSender names the server itself in chat broadcasts.
const SystemSender = "system"

// Event is any outbound frame. Implementations are plain structs whose Type
// field is fixed by their constructor.
type Event interface {
	EventType() string
}

type typed struct {
	Type string `json:"type"`
}

func (t typed) EventType() string { return t.Type }

// Connected acknowledges a successful attach.
type Connected struct {
	typed
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

func NewConnected(userID, username string) Connected {
	return Connected{typed: typed{EvtConnected}, UserID: userID, Username: username}
}

// ChatMessage carries a chat line, player or system authored.
type ChatMessage struct {
	typed
	RoomID  string `json:"room_id"`
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

func NewChatMessage(roomID, sender, message string) ChatMessage {
	return ChatMessage{typed: typed{EvtChatMessage}, RoomID: roomID, Sender: sender, Message: message}
}

// JoinRoom announces a member joining to the room.
type JoinRoom struct {
	typed
	RoomID     string `json:"room_id"`
	PlayerName string `json:"player_name"`
}

func NewJoinRoom(roomID, playerName string) JoinRoom {
	return JoinRoom{typed: typed{EvtJoinRoom}, RoomID: roomID, PlayerName: playerName}
}

// LeaveRoom announces a member leaving.
type LeaveRoom struct {
	typed
	RoomID     string `json:"room_id"`
	PlayerName string `json:"player_name"`
}

func NewLeaveRoom(roomID, playerName string) LeaveRoom {
	return LeaveRoom{typed: typed{EvtLeaveRoom}, RoomID: roomID, PlayerName: playerName}
}

// RoomPlayer is one member line of a room info snapshot.
type RoomPlayer struct {
	Name       string `json:"name"`
	Group      int    `json:"group_id"`
	IsHost     bool   `json:"is_host"`
	IsAdmin    bool   `json:"is_admin"`
	ForceStart bool   `json:"force_start"`
}

// RoomInfo is the reply to get_room_info and the broadcast after membership
// changes.
type RoomInfo struct {
	typed
	RoomID          string       `json:"room_id"`
	RoomName        string       `json:"room_name"`
	Color           string       `json:"room_color"`
	Status          string       `json:"status"`
	MaxPlayers      int          `json:"max_players"`
	PlayerCount     int          `json:"player_count"`
	RequiredToStart int          `json:"required_to_start"`
	Players         []RoomPlayer `json:"players"`
}

func NewRoomInfo(roomID, roomName, color, status string, maxPlayers, requiredToStart int, players []RoomPlayer) RoomInfo {
	return RoomInfo{
		typed:           typed{EvtRoomInfo},
		RoomID:          roomID,
		RoomName:        roomName,
		Color:           color,
		Status:          status,
		MaxPlayers:      maxPlayers,
		PlayerCount:     len(players),
		RequiredToStart: requiredToStart,
		Players:         players,
	}
}

// Ok is a generic acknowledgment. ShouldStart is set only on should_start
// replies.
type Ok struct {
	typed
	Detail      string `json:"detail,omitempty"`
	ShouldStart *bool  `json:"should_start,omitempty"`
}

func NewOk(detail string) Ok {
	return Ok{typed: typed{EvtOk}, Detail: detail}
}

func NewShouldStart(shouldStart bool) Ok {
	return Ok{typed: typed{EvtOk}, ShouldStart: &shouldStart}
}

// MoveOk acknowledges an accepted move by id.
type MoveOk struct {
	typed
	MoveID string `json:"move_id"`
}

func NewMoveOk(moveID string) MoveOk {
	return MoveOk{typed: typed{EvtMoveOk}, MoveID: moveID}
}

// Error carries a human-readable failure message.
type Error struct {
	typed
	Message string `json:"message"`
}

func NewError(message string) Error {
	return Error{typed: typed{EvtError}, Message: message}
}

// RedirectToHome tells the client to leave the room view.
type RedirectToHome struct {
	typed
	Reason string `json:"reason"`
}

func NewRedirectToHome(reason string) RedirectToHome {
	return RedirectToHome{typed: typed{EvtRedirectToHome}, Reason: reason}
}

// RedirectToGame tells a late joiner a game is already running.
type RedirectToGame struct {
	typed
	RoomID string `json:"room_id"`
}

func NewRedirectToGame(roomID string) RedirectToGame {
	return RedirectToGame{typed: typed{EvtRedirectToGame}, RoomID: roomID}
}

// StartGame announces the game beginning.
type StartGame struct {
	typed
	RoomID string `json:"room_id"`
}

func NewStartGame(roomID string) StartGame {
	return StartGame{typed: typed{EvtStartGame}, RoomID: roomID}
}

// EndGame announces the game ending.
type EndGame struct {
	typed
	RoomID string `json:"room_id"`
}

func NewEndGame(roomID string) EndGame {
	return EndGame{typed: typed{EvtEndGame}, RoomID: roomID}
}

// GameTurnUpdate reports the turn counters with each player's last action,
// "waiting" when none arrived. Actions encode as [name, action] pairs.
type GameTurnUpdate struct {
	typed
	Turn     int         `json:"turn"`
	TurnHalf string      `json:"turn_half"` // "first" or "second"
	Actions  [][2]string `json:"actions"`
}

func NewGameTurnUpdate(turn int, secondHalf bool, actions [][2]string) GameTurnUpdate {
	half := "first"
	if secondHalf {
		half = "second"
	}
	return GameTurnUpdate{typed: typed{EvtGameTurnUpdate}, Turn: turn, TurnHalf: half, Actions: actions}
}

// MapUpdate is a per-viewer snapshot of the board plus the roster and the
// move ids accepted since the last update for this viewer.
type MapUpdate struct {
	typed
	RoomID              string        `json:"room_id"`
	VisibleTiles        []VisibleTile `json:"visible_tiles"`
	SuccessfulMoveSends []string      `json:"successful_move_sends"`
	PlayerPowers        []PlayerPower `json:"player_powers"`
}

func NewMapUpdate(roomID string, tiles []VisibleTile, moveIDs []string, powers []PlayerPower) MapUpdate {
	if moveIDs == nil {
		moveIDs = []string{}
	}
	return MapUpdate{
		typed:               typed{EvtMapUpdate},
		RoomID:              roomID,
		VisibleTiles:        tiles,
		SuccessfulMoveSends: moveIDs,
		PlayerPowers:        powers,
	}
}

// GameWin announces the sole surviving team.
type GameWin struct {
	typed
	Winner string `json:"winner"`
}

func NewGameWin(winner string) GameWin {
	return GameWin{typed: typed{EvtGameWin}, Winner: winner}
}

// PlayerEliminated announces a general capture.
type PlayerEliminated struct {
	typed
	EliminatedPlayer string `json:"eliminated_player"`
	EliminatedBy     string `json:"eliminated_by"`
}

func NewPlayerEliminated(eliminated, by string) PlayerEliminated {
	return PlayerEliminated{typed: typed{EvtPlayerEliminated}, EliminatedPlayer: eliminated, EliminatedBy: by}
}
