package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/openconquer/generals-server/internal/v1/game"
)

// Wire tile kinds.
const (
	KindWilderness = "w"
	KindTerritory  = "t"
	KindMountain   = "m"
	KindGeneral    = "g"
	KindVoid       = "v"
	KindSettlement = "c_settlement"
	KindSmallCity  = "c_smallcity"
	KindLargeCity  = "c_largecity"
	KindUnknown    = "unknown"
)

// VisibleTile is one projected tile, encoded as the compact tuple
// [x, y, kind, count, owner, has_vision] with a null owner for unowned or
// fogged tiles.
type VisibleTile game.TileView

// TileKindString maps a projected tile to its wire kind.
func TileKindString(v game.TileView) string {
	switch v.Kind {
	case game.Wilderness:
		return KindWilderness
	case game.Territory:
		return KindTerritory
	case game.Mountain:
		return KindMountain
	case game.General:
		return KindGeneral
	case game.Void:
		return KindVoid
	case game.Unknown:
		return KindUnknown
	case game.City:
		switch v.City {
		case game.SmallCity:
			return KindSmallCity
		case game.LargeCity:
			return KindLargeCity
		default:
			return KindSettlement
		}
	default:
		return KindUnknown
	}
}

func tileKindFromString(kind string) (game.TileKind, game.CityKind, error) {
	switch kind {
	case KindWilderness:
		return game.Wilderness, game.Settlement, nil
	case KindTerritory:
		return game.Territory, game.Settlement, nil
	case KindMountain:
		return game.Mountain, game.Settlement, nil
	case KindGeneral:
		return game.General, game.Settlement, nil
	case KindVoid:
		return game.Void, game.Settlement, nil
	case KindUnknown:
		return game.Unknown, game.Settlement, nil
	case KindSettlement:
		return game.City, game.Settlement, nil
	case KindSmallCity:
		return game.City, game.SmallCity, nil
	case KindLargeCity:
		return game.City, game.LargeCity, nil
	default:
		return 0, 0, fmt.Errorf("unknown tile kind %q", kind)
	}
}

func (v VisibleTile) MarshalJSON() ([]byte, error) {
	var owner any
	if v.Owner != "" {
		owner = v.Owner
	}
	return json.Marshal([]any{v.X, v.Y, TileKindString(game.TileView(v)), v.Count, owner, v.HasVision})
}

func (v *VisibleTile) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) != 6 {
		return fmt.Errorf("visible tile: want 6 elements, got %d", len(tuple))
	}
	var kind string
	if err := unmarshalAll(tuple, &v.X, &v.Y, &kind, &v.Count, nil, &v.HasVision); err != nil {
		return err
	}
	k, city, err := tileKindFromString(kind)
	if err != nil {
		return err
	}
	v.Kind, v.City = k, city
	v.Owner = ""
	if string(tuple[4]) != "null" {
		if err := json.Unmarshal(tuple[4], &v.Owner); err != nil {
			return err
		}
	}
	return nil
}

// ProjectTiles wraps a projection in its wire encoding.
func ProjectTiles(views []game.TileView) []VisibleTile {
	tiles := make([]VisibleTile, len(views))
	for i, v := range views {
		tiles[i] = VisibleTile(v)
	}
	return tiles
}

// PlayerPower is one roster line, encoded as [name, group_id, power, status].
type PlayerPower struct {
	Name   string
	Group  int
	Power  int
	Status string
}

func (p PlayerPower) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.Name, p.Group, p.Power, p.Status})
}

func (p *PlayerPower) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) != 4 {
		return fmt.Errorf("player power: want 4 elements, got %d", len(tuple))
	}
	return unmarshalAll(tuple, &p.Name, &p.Group, &p.Power, &p.Status)
}

// unmarshalAll decodes each raw element into the matching target; nil targets
// are skipped.
func unmarshalAll(raw []json.RawMessage, targets ...any) error {
	for i, t := range targets {
		if t == nil {
			continue
		}
		if err := json.Unmarshal(raw[i], t); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}
