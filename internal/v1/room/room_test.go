package room

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openconquer/generals-server/internal/v1/game"
)

func TestAddMember_SeatsSpreadBeforeDoublingUp(t *testing.T) {
	r := NewDefault("r1")

	for i := 0; i < 10; i++ {
		r.AddMember(fmt.Sprintf("u%d", i), fmt.Sprintf("player%d", i))
	}

	for i := 0; i < 8; i++ {
		assert.Equal(t, i, r.Groups[fmt.Sprintf("u%d", i)], "each joiner takes an empty seat first")
	}
	assert.Equal(t, 0, r.Groups["u8"], "then seats fill to pairs, lowest id first")
	assert.Equal(t, 1, r.Groups["u9"])
}

func TestAddMember_SeventeenthJoinerSpectates(t *testing.T) {
	r := NewDefault("r1")
	r.MaxPlayers = 20

	for i := 0; i < 17; i++ {
		r.AddMember(fmt.Sprintf("u%d", i), fmt.Sprintf("player%d", i))
	}

	assert.Equal(t, SpectatorGroup, r.Groups["u16"], "every seat pair taken")
}

func TestAddMember_HostAndAdmin(t *testing.T) {
	r := NewDefault("r1")

	r.AddMember("u1", "alice")
	r.AddMember("u2", "bob")

	assert.Equal(t, "u1", r.Host)
	assert.Equal(t, "u1", r.Admin)
}

func TestAddMember_JoinDuringGameSpectates(t *testing.T) {
	r := NewDefault("r1")
	r.AddMember("u1", "alice")
	r.AddMember("u2", "bob")
	r.StartGame(rand.New(rand.NewSource(1)))

	r.AddMember("u3", "carol")

	assert.Equal(t, SpectatorGroup, r.Groups["u3"])
	_, onTeam := r.Teams["u3"]
	assert.False(t, onTeam)
}

func TestAddMember_GlobalNeverSeats(t *testing.T) {
	r := NewGlobal()

	r.AddMember("u1", "alice")

	assert.Equal(t, SpectatorGroup, r.Groups["u1"])
	assert.Empty(t, r.Host, "the lobby has no host")
	assert.Empty(t, r.Admin, "the lobby has no admin")
}

func TestRemoveMember_AdminPromotion(t *testing.T) {
	r := NewDefault("r1")
	r.AddMember("u1", "alice")
	r.AddMember("u2", "bob")
	r.AddMember("u3", "carol")

	promoted := r.RemoveMember("u1")

	assert.Equal(t, "bob", promoted, "host and admin gone, first remaining member promoted")
	assert.Equal(t, "u2", r.Admin)
	assert.False(t, r.HasMember("u1"))
}

func TestRemoveMember_NoPromotionWhileHostPresent(t *testing.T) {
	r := NewDefault("r1")
	r.AddMember("u1", "alice")
	r.AddMember("u2", "bob")
	r.Admin = "u2"

	promoted := r.RemoveMember("u2")

	assert.Empty(t, promoted)
	assert.Empty(t, r.Admin, "leaving admin just clears the seat")
}

func TestRemoveMember_LastLeaverMarksEmpty(t *testing.T) {
	r := NewDefault("r1")
	r.AddMember("u1", "alice")

	r.RemoveMember("u1")

	assert.False(t, r.EmptySince.IsZero())
}

func TestRemoveMember_VoidsVotesBelowMinimum(t *testing.T) {
	r := NewDefault("r1")
	r.AddMember("u1", "alice")
	r.AddMember("u2", "bob")
	r.ForceStart.Insert("u1")

	r.RemoveMember("u2")

	assert.Zero(t, r.ForceStart.Len(), "a lone player cannot hold a start vote")
}

func TestCheckPassword(t *testing.T) {
	secret := "hunter2"
	wrong := "guess"
	r := New("r1", "room", "#663399", 8, &secret, true)

	assert.ErrorIs(t, r.CheckPassword(nil), ErrPasswordRequired)
	assert.ErrorIs(t, r.CheckPassword(&wrong), ErrWrongPassword)
	assert.NoError(t, r.CheckPassword(&secret))

	open := NewDefault("r2")
	assert.NoError(t, open.CheckPassword(nil))
}

func TestKickLockout(t *testing.T) {
	r := NewDefault("r1")
	now := time.Now()
	r.RecordKick("u1", now)

	assert.False(t, r.KickLockedUntil("u1", now.Add(time.Minute)).IsZero())
	assert.True(t, r.KickLockedUntil("u1", now.Add(6*time.Minute)).IsZero(), "lockout expires after five minutes")
	assert.True(t, r.KickLockedUntil("u2", now).IsZero())
}

func TestStartThreshold(t *testing.T) {
	tests := []struct {
		players int
		want    int
		ok      bool
	}{
		{1, 0, false},
		{2, 2, true},
		{3, 3, true},
		{4, 3, true},
		{8, 5, true},
		{16, 9, true},
	}
	for _, tt := range tests {
		r := NewDefault("r1")
		r.MaxPlayers = 20
		for i := 0; i < tt.players; i++ {
			r.AddMember(fmt.Sprintf("u%d", i), fmt.Sprintf("p%d", i))
		}

		got, ok := r.StartThreshold()
		assert.Equal(t, tt.ok, ok, "players=%d", tt.players)
		if ok {
			assert.Equal(t, tt.want, got, "players=%d", tt.players)
		}
	}
}

func TestShouldStart_SpectatorVotesDoNotCount(t *testing.T) {
	r := NewDefault("r1")
	r.AddMember("u1", "alice")
	r.AddMember("u2", "bob")
	r.ForceStart.Insert("u1")
	r.ForceStart.Insert("u2")

	assert.True(t, r.ShouldStart())

	require.NoError(t, r.ChangeGroup("u2", SpectatorGroup))
	assert.False(t, r.ShouldStart(), "one active player cannot meet any threshold")
	assert.Equal(t, 1, r.CountedVotes())
}

func TestStartGame_AutoSeatedPairFightsAsTwoTeams(t *testing.T) {
	r := NewDefault("r1")
	r.AddMember("u1", "alice")
	r.AddMember("u2", "bob")

	r.StartGame(rand.New(rand.NewSource(5)))

	assert.NotEqual(t, r.Teams["u1"], r.Teams["u2"], "a two-player room must have two teams")
	teams := r.Map.ActiveTeams()
	assert.Len(t, teams, 2)
	assert.Contains(t, teams, r.Teams["u1"])
	assert.Contains(t, teams, r.Teams["u2"])
}

func TestStartGame_TeamsShareGroups(t *testing.T) {
	r := NewDefault("r1")
	r.AddMember("u1", "alice")
	r.AddMember("u2", "bob")
	r.AddMember("u3", "carol")
	require.NoError(t, r.ChangeGroup("u2", 0))
	require.NoError(t, r.ChangeGroup("u3", SpectatorGroup))

	r.StartGame(rand.New(rand.NewSource(7)))

	assert.Equal(t, StatusPlaying, r.Status)
	assert.Equal(t, 1, r.Turn)
	assert.Equal(t, FirstHalf, r.Half)
	assert.Equal(t, r.Teams["u1"], r.Teams["u2"], "same seat group shares a team")
	_, spectatorHasTeam := r.Teams["u3"]
	assert.False(t, spectatorHasTeam)
	assert.Zero(t, r.ForceStart.Len())

	require.NotNil(t, r.Map)
	generals := 0
	for y := 0; y < r.Map.Size; y++ {
		for x := 0; x < r.Map.Size; x++ {
			if r.Map.Tiles[y][x].Kind == game.General {
				generals++
				assert.Equal(t, r.Teams["u1"], r.Map.Tiles[y][x].Owner)
			}
		}
	}
	assert.Equal(t, 1, generals, "one general per distinct team")
}

func TestTicksAndAdvance(t *testing.T) {
	r := NewDefault("r1")
	r.Turn = 1
	r.Half = FirstHalf

	assert.Equal(t, 2, r.Ticks())
	r.AdvanceHalf()
	assert.Equal(t, SecondHalf, r.Half)
	assert.Equal(t, 3, r.Ticks())
	r.AdvanceHalf()
	assert.Equal(t, 2, r.Turn)
	assert.Equal(t, FirstHalf, r.Half)
}

func TestGrowTick(t *testing.T) {
	r := NewDefault("r1")
	r.AddMember("u1", "alice")
	r.AddMember("u2", "bob")
	require.NoError(t, r.ChangeGroup("u2", 1))
	r.StartGame(rand.New(rand.NewSource(3)))

	team := r.Teams["u1"]
	before := r.Map.TeamPower(team)

	r.GrowTick()

	assert.Equal(t, before+1, r.Map.TeamPower(team), "general grows on the first half")

	r.AdvanceHalf()
	mid := r.Map.TeamPower(team)
	r.GrowTick()
	assert.Equal(t, mid, r.Map.TeamPower(team), "second half grows no generals")
}

func TestGrowTick_TurnTwentyFiveBoostsTerritory(t *testing.T) {
	r := NewDefault("r1")
	r.AddMember("u1", "alice")
	r.AddMember("u2", "bob")
	require.NoError(t, r.ChangeGroup("u2", 1))
	r.StartGame(rand.New(rand.NewSource(3)))
	r.Turn = 25

	team := r.Teams["u1"]
	before := r.Map.TeamPower(team)

	r.GrowTick()

	// One general owned: +1 from general growth, +1 from the all-tiles rule.
	assert.Equal(t, before+2, r.Map.TeamPower(team))
}

func TestCheckWinAndEndGame(t *testing.T) {
	r := NewDefault("r1")
	r.AddMember("u1", "alice")
	r.AddMember("u2", "bob")
	require.NoError(t, r.ChangeGroup("u2", 1))
	r.StartGame(rand.New(rand.NewSource(3)))

	_, over := r.CheckWin()
	assert.False(t, over, "two teams hold tiles")

	loser := r.Teams["u2"]
	for y := 0; y < r.Map.Size; y++ {
		for x := 0; x < r.Map.Size; x++ {
			if r.Map.Tiles[y][x].OwnedBy(loser) {
				r.Map.Tiles[y][x] = game.NewWilderness()
			}
		}
	}

	winner, over := r.CheckWin()
	require.True(t, over)
	assert.Equal(t, r.Teams["u1"], winner)

	r.EndGame(winner)
	assert.Equal(t, StatusEnded, r.Status)
	assert.Equal(t, winner, r.Winner)
}

func TestRoster_Statuses(t *testing.T) {
	r := NewDefault("r1")
	r.AddMember("u1", "alice")
	r.AddMember("u2", "bob")
	require.NoError(t, r.ChangeGroup("u2", 1))
	r.StartGame(rand.New(rand.NewSource(3)))

	r.AddMember("u3", "carol")                      // spectator, never listed
	r.AddMember("u4", "dave")                       // spectator...
	require.NoError(t, r.ChangeGroup("u4", 2))      // ...seated mid-game: observer
	loser := r.Teams["u2"]
	for y := 0; y < r.Map.Size; y++ {
		for x := 0; x < r.Map.Size; x++ {
			if r.Map.Tiles[y][x].OwnedBy(loser) {
				r.Map.Tiles[y][x] = game.NewWilderness()
			}
		}
	}

	roster := r.Roster(map[string]bool{"u1": true})

	require.Len(t, roster, 3)
	byName := make(map[string]RosterEntry)
	for _, e := range roster {
		byName[e.Name] = e
	}
	assert.Equal(t, StatusDisconnected, byName["alice"].Status)
	assert.Positive(t, byName["alice"].Power)
	assert.Equal(t, StatusDefeated, byName["bob"].Status)
	assert.Zero(t, byName["bob"].Power)
	assert.Equal(t, StatusObserver, byName["dave"].Status)
	_, listed := byName["carol"]
	assert.False(t, listed)
}

func TestViewFor_SpectatorSeesAll(t *testing.T) {
	r := NewDefault("r1")
	r.AddMember("u1", "alice")
	r.AddMember("u2", "bob")
	require.NoError(t, r.ChangeGroup("u2", 1))
	r.StartGame(rand.New(rand.NewSource(3)))
	r.AddMember("u3", "carol")

	for _, v := range r.ViewFor("u3") {
		assert.True(t, v.HasVision)
	}

	fogged := false
	for _, v := range r.ViewFor("u1") {
		if !v.HasVision {
			fogged = true
			break
		}
	}
	assert.True(t, fogged, "players see fog")
}

func TestSummarize(t *testing.T) {
	secret := "pw"
	r := New("1234", "my room", "#ff0000", 8, &secret, true)
	r.AddMember("u1", "alice")

	s := r.Summarize()

	assert.Equal(t, "1234", s.ID)
	assert.Equal(t, "alice", s.HostName)
	assert.Equal(t, 1, s.PlayerCount)
	assert.Equal(t, 8, s.MaxPlayers)
	assert.Equal(t, StatusWaiting, s.Status)
	assert.Zero(t, s.RequiredToStart, "one player has no threshold")
	assert.False(t, s.IsActive)
	assert.True(t, s.HasPassword)
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("alice"))
	assert.ErrorIs(t, ValidateName(""), ErrNameEmpty)
	assert.ErrorIs(t, ValidateName("<script>"), ErrNameBadChars)
	assert.ErrorIs(t, ValidateName(`a"b`), ErrNameBadChars)
	assert.ErrorIs(t, ValidateName("Ekans"), ErrNameForbidden)
	assert.ErrorIs(t, ValidateName("geEK"), ErrNameForbidden)
	long := make([]byte, 51)
	for i := range long {
		long[i] = 'a'
	}
	assert.ErrorIs(t, ValidateName(string(long)), ErrNameTooLong)
}

func TestValidateRoomID(t *testing.T) {
	assert.NoError(t, ValidateRoomID("1234"))
	assert.NoError(t, ValidateRoomID("abcDE12345"))
	assert.ErrorIs(t, ValidateRoomID(""), ErrBadRoomID)
	assert.ErrorIs(t, ValidateRoomID("abcde123456"), ErrBadRoomID)
	assert.ErrorIs(t, ValidateRoomID("room-1"), ErrBadRoomID)
	assert.ErrorIs(t, ValidateRoomID("a b"), ErrBadRoomID)
}
