package game

import (
	"errors"
	"sort"
)

// Move resolution errors. Each maps to a single outbound error frame for the
// offending session; the map is left untouched on any of them.
var (
	ErrOutOfBounds = errors.New("move out of bounds")
	ErrNotAdjacent = errors.New("target is not adjacent")
	ErrNotOwned    = errors.New("source tile is not owned by your team")
	ErrTooFew      = errors.New("source tile needs at least 2 units")
	ErrImpassable  = errors.New("cannot move into impassable terrain")
)

// Map is the square game grid. It is an owned value per room; all mutation
// happens in place under the router's serialization.
type Map struct {
	Size  int
	Tiles [][]Tile
}

// NewMap allocates a size×size grid of Wilderness.
func NewMap(size int) *Map {
	tiles := make([][]Tile, size)
	for y := range tiles {
		tiles[y] = make([]Tile, size)
		for x := range tiles[y] {
			tiles[y][x] = NewWilderness()
		}
	}
	return &Map{Size: size, Tiles: tiles}
}

// InBounds reports whether (x, y) is on the grid.
func (m *Map) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.Size && y < m.Size
}

// At returns a pointer to the tile at (x, y). Callers must check InBounds first.
func (m *Map) At(x, y int) *Tile {
	return &m.Tiles[y][x]
}

// MoveOutcome reports the side effects of an accepted move.
type MoveOutcome struct {
	Eliminated string // team whose general was captured, "" if none
	Winner     string // sole remaining team after an elimination, "" if none
}

// ApplyMove resolves a move of units from (fromX, fromY) to the orthogonally
// adjacent (toX, toY) on behalf of team. With half set, half the source count
// (rounded down) moves; otherwise all but one unit moves.
func (m *Map) ApplyMove(team string, fromX, fromY, toX, toY int, half bool) (MoveOutcome, error) {
	if !m.InBounds(fromX, fromY) || !m.InBounds(toX, toY) {
		return MoveOutcome{}, ErrOutOfBounds
	}
	dx, dy := toX-fromX, toY-fromY
	if abs(dx)+abs(dy) != 1 {
		return MoveOutcome{}, ErrNotAdjacent
	}

	src := m.At(fromX, fromY)
	if (src.Kind != Territory && src.Kind != General) || !src.OwnedBy(team) {
		return MoveOutcome{}, ErrNotOwned
	}
	if src.Count <= 1 {
		return MoveOutcome{}, ErrTooFew
	}

	dst := m.At(toX, toY)
	if !dst.Passable() {
		return MoveOutcome{}, ErrImpassable
	}

	moveCount := src.Count - 1
	if half {
		moveCount = src.Count / 2
	}
	if moveCount < 1 {
		moveCount = 1
	}
	if moveCount > src.Count-1 {
		moveCount = src.Count - 1
	}
	src.Count -= moveCount

	switch {
	case dst.Kind == Wilderness:
		*dst = NewTerritory(moveCount, team)

	case dst.OwnedBy(team):
		dst.Count += moveCount

	case dst.Kind == Territory:
		if moveCount > dst.Count {
			*dst = NewTerritory(moveCount-dst.Count, team)
		} else {
			dst.Count -= moveCount
		}

	case dst.Kind == General:
		if moveCount > dst.Count {
			defeated := dst.Owner
			// The captured capital becomes a tower: it keeps the general
			// glyph but behaves as territory of the attacker.
			*dst = NewGeneral(moveCount-dst.Count, team)
			m.transferHoldings(defeated, team)
			outcome := MoveOutcome{Eliminated: defeated}
			if teams := m.ActiveTeams(); len(teams) == 1 {
				outcome.Winner = teams[0]
			}
			return outcome, nil
		}
		dst.Count -= moveCount

	case dst.Kind == City:
		if moveCount > dst.Count {
			*dst = NewOwnedCity(moveCount-dst.Count, team, dst.City)
		} else {
			dst.Count -= moveCount
		}
	}

	return MoveOutcome{}, nil
}

// transferHoldings hands every tile of the defeated team to the attacker at
// half strength. Territories that drop to zero revert to wilderness; cities
// that drop to zero go neutral.
func (m *Map) transferHoldings(defeated, attacker string) {
	for y := 0; y < m.Size; y++ {
		for x := 0; x < m.Size; x++ {
			t := &m.Tiles[y][x]
			if !t.OwnedBy(defeated) {
				continue
			}
			halved := t.Count / 2
			switch t.Kind {
			case Territory, General:
				if halved == 0 {
					*t = NewWilderness()
				} else {
					t.Count = halved
					t.Owner = attacker
				}
			case City:
				if halved == 0 {
					*t = NewNeutralCity(0, t.City)
				} else {
					t.Count = halved
					t.Owner = attacker
				}
			}
		}
	}
}

// RemoveTeam strips every holding of a team that forfeited: territories and
// generals revert to wilderness, cities go neutral with an empty garrison.
func (m *Map) RemoveTeam(team string) {
	for y := 0; y < m.Size; y++ {
		for x := 0; x < m.Size; x++ {
			t := &m.Tiles[y][x]
			if !t.OwnedBy(team) {
				continue
			}
			if t.Kind == City {
				*t = NewNeutralCity(0, t.City)
			} else {
				*t = NewWilderness()
			}
		}
	}
}

// ActiveTeams returns the sorted set of teams that still own at least one tile.
func (m *Map) ActiveTeams() []string {
	seen := make(map[string]struct{})
	for y := 0; y < m.Size; y++ {
		for x := 0; x < m.Size; x++ {
			if owner := m.Tiles[y][x].Owner; owner != "" {
				seen[owner] = struct{}{}
			}
		}
	}
	teams := make([]string, 0, len(seen))
	for t := range seen {
		teams = append(teams, t)
	}
	sort.Strings(teams)
	return teams
}

// TeamPower returns the sum of counts over all tiles the team owns.
func (m *Map) TeamPower(team string) int {
	power := 0
	for y := 0; y < m.Size; y++ {
		for x := 0; x < m.Size; x++ {
			if m.Tiles[y][x].OwnedBy(team) {
				power += m.Tiles[y][x].Count
			}
		}
	}
	return power
}

// GrowGenerals adds one unit to every general. Runs on the first half of
// every turn.
func (m *Map) GrowGenerals() {
	for y := 0; y < m.Size; y++ {
		for x := 0; x < m.Size; x++ {
			if m.Tiles[y][x].Kind == General {
				m.Tiles[y][x].Count++
			}
		}
	}
}

// GrowCities applies per-half-tick city growth. ticks counts half-ticks since
// game start: 2*turn plus one on the second half. Only owned cities grow, and
// nothing grows at ticks zero.
func (m *Map) GrowCities(ticks int) {
	if ticks == 0 {
		return
	}
	for y := 0; y < m.Size; y++ {
		for x := 0; x < m.Size; x++ {
			t := &m.Tiles[y][x]
			if t.Kind != City || !t.Owned() {
				continue
			}
			switch t.City {
			case Settlement:
				if ticks%4 == 0 {
					t.Count++
				}
			case SmallCity:
				if ticks%2 == 0 {
					t.Count++
				}
			case LargeCity:
				if ticks%2 == 0 {
					t.Count += 2
				}
			}
		}
	}
}

// GrowAll adds one unit to every territory and general. Runs every 25 turns
// on the first half.
func (m *Map) GrowAll() {
	for y := 0; y < m.Size; y++ {
		for x := 0; x < m.Size; x++ {
			k := m.Tiles[y][x].Kind
			if k == Territory || k == General {
				m.Tiles[y][x].Count++
			}
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
