// Package game implements the authoritative map model: the tile grid, combat
// resolution, tick-based growth, fog-of-war projection, and the random map
// generator.
package game

import "fmt"

// TileKind discriminates the tile variants on the grid.
type TileKind uint8

const (
	Wilderness TileKind = iota // unowned, passable, no count
	Territory                  // owned land with an army count
	General                    // a capital; losing it eliminates the team
	City                       // neutral until captured
	Mountain                   // impassable
	Void                       // impassable placeholder
	Unknown                    // view-only: a fogged tile in a projection
)

// CityKind grades cities by size; it drives growth rate and initial garrison.
type CityKind uint8

const (
	Settlement CityKind = iota
	SmallCity
	LargeCity
)

// Tile is one cell of the grid. Owner is set only for owned variants; the
// constructors below are the only places owned tiles are built, which keeps
// the owner/kind pairing consistent.
type Tile struct {
	Kind  TileKind
	Count int
	Owner string   // team id, "" when unowned
	City  CityKind // meaningful only when Kind == City
}

// NewWilderness returns an empty passable tile.
func NewWilderness() Tile {
	return Tile{Kind: Wilderness}
}

// NewTerritory returns an owned land tile.
func NewTerritory(count int, owner string) Tile {
	return Tile{Kind: Territory, Count: count, Owner: owner}
}

// NewGeneral returns a capital tile for the given team.
func NewGeneral(count int, owner string) Tile {
	return Tile{Kind: General, Count: count, Owner: owner}
}

// NewNeutralCity returns an uncaptured city with its starting garrison.
func NewNeutralCity(count int, kind CityKind) Tile {
	return Tile{Kind: City, Count: count, City: kind}
}

// NewOwnedCity returns a captured city.
func NewOwnedCity(count int, owner string, kind CityKind) Tile {
	return Tile{Kind: City, Count: count, Owner: owner, City: kind}
}

// NewMountain returns an impassable tile.
func NewMountain() Tile {
	return Tile{Kind: Mountain}
}

// NewVoid returns an impassable placeholder tile.
func NewVoid() Tile {
	return Tile{Kind: Void}
}

// Passable reports whether armies may traverse or occupy this tile.
func (t Tile) Passable() bool {
	return t.Kind != Mountain && t.Kind != Void
}

// Owned reports whether the tile currently belongs to a team.
func (t Tile) Owned() bool {
	return t.Owner != ""
}

// OwnedBy reports whether the tile belongs to the given team.
func (t Tile) OwnedBy(team string) bool {
	return t.Owner != "" && t.Owner == team
}

func (k TileKind) String() string {
	switch k {
	case Wilderness:
		return "wilderness"
	case Territory:
		return "territory"
	case General:
		return "general"
	case City:
		return "city"
	case Mountain:
		return "mountain"
	case Void:
		return "void"
	case Unknown:
		return "unknown"
	default:
		return fmt.Sprintf("tilekind(%d)", uint8(k))
	}
}

func (k CityKind) String() string {
	switch k {
	case Settlement:
		return "settlement"
	case SmallCity:
		return "smallcity"
	case LargeCity:
		return "largecity"
	default:
		return fmt.Sprintf("citykind(%d)", uint8(k))
	}
}
