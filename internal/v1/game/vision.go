package game

// TileView is one projected tile in a map update. Count and Owner are zeroed
// for tiles outside the viewer's vision; HasVision distinguishes a truly seen
// tile from a position-only silhouette.
type TileView struct {
	X         int
	Y         int
	Kind      TileKind
	City      CityKind
	Count     int
	Owner     string
	HasVision bool
}

// ViewFor projects the map for the given team. Every owned tile of the team
// grants vision over its 3x3 neighborhood. Outside that, mountains, cities,
// and void cells stay position-visible with counts and owners hidden;
// everything else projects as Unknown. A spectator sees the whole map.
func (m *Map) ViewFor(team string, spectator bool) []TileView {
	visible := make([][]bool, m.Size)
	for y := range visible {
		visible[y] = make([]bool, m.Size)
	}
	if spectator {
		for y := range visible {
			for x := range visible[y] {
				visible[y][x] = true
			}
		}
	} else {
		for y := 0; y < m.Size; y++ {
			for x := 0; x < m.Size; x++ {
				if !m.Tiles[y][x].OwnedBy(team) {
					continue
				}
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny := x+dx, y+dy
						if m.InBounds(nx, ny) {
							visible[ny][nx] = true
						}
					}
				}
			}
		}
	}

	views := make([]TileView, 0, m.Size*m.Size)
	for y := 0; y < m.Size; y++ {
		for x := 0; x < m.Size; x++ {
			t := m.Tiles[y][x]
			v := TileView{X: x, Y: y, Kind: t.Kind, City: t.City, HasVision: visible[y][x]}
			switch {
			case visible[y][x]:
				v.Count = t.Count
				v.Owner = t.Owner
			case t.Kind == Mountain || t.Kind == City || t.Kind == Void:
				// Position-visible silhouette: kind survives, count and
				// owner do not.
			default:
				v.Kind = Unknown
			}
			views = append(views, v)
		}
	}
	return views
}
