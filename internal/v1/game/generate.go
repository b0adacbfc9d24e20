package game

import (
	"math/rand"
	"time"
)

const (
	generalMargin      = 3    // minimum distance from any border
	generalMinDistance = 15   // pairwise Manhattan distance between generals
	placeAttempts      = 1000 // rejection attempts per general
	mapAttempts        = 100  // full-map restarts before the fallback
	generalSeedCount   = 2
)

// Generate builds a random map with one general per team, sized for the
// number of seated players (not teams, which can be fewer). The result is
// always connected: every general can reach every other through passable
// tiles.
func Generate(teams []string, players int) *Map {
	return GenerateSeeded(teams, players, rand.New(rand.NewSource(time.Now().Unix())))
}

// GenerateSeeded is Generate with a caller-supplied source, for reproducible
// maps in tests.
func GenerateSeeded(teams []string, players int, rng *rand.Rand) *Map {
	size := sideFor(players) + rng.Intn(11) - 5
	if size < 20 {
		size = 20
	}
	if size > 60 {
		size = 60
	}

	for attempt := 0; attempt < mapAttempts; attempt++ {
		m, ok := tryGenerate(size, len(teams), rng)
		if ok {
			assignTeams(m, teams)
			return m
		}
	}

	m := fallbackMap(size, len(teams), rng)
	assignTeams(m, teams)
	return m
}

func sideFor(players int) int {
	switch {
	case players <= 1:
		return 20
	case players == 2:
		return 25
	case players <= 4:
		return 30
	case players <= 6:
		return 35
	case players <= 8:
		return 40
	case players <= 12:
		return 45
	default:
		return 50
	}
}

type point struct{ x, y int }

func tryGenerate(size, generals int, rng *rand.Rand) (*Map, bool) {
	m := NewMap(size)

	placed := make([]point, 0, generals)
	for g := 0; g < generals; g++ {
		ok := false
		for attempt := 0; attempt < placeAttempts; attempt++ {
			p := point{
				x: generalMargin + rng.Intn(size-2*generalMargin),
				y: generalMargin + rng.Intn(size-2*generalMargin),
			}
			if tooClose(p, placed) {
				continue
			}
			placed = append(placed, p)
			ok = true
			break
		}
		if !ok {
			return nil, false
		}
	}
	for _, p := range placed {
		m.Tiles[p.y][p.x] = NewGeneral(generalSeedCount, "")
	}

	sprinkle(m, 0.10+rng.Float64()*0.10, rng, func() Tile { return NewMountain() })
	sprinkle(m, 0.08+rng.Float64()*0.07, rng, func() Tile { return randomCity(rng) })

	if !connected(m, placed) {
		return nil, false
	}
	return m, true
}

// sprinkle makes density*size*size placement attempts, writing only over
// wilderness.
func sprinkle(m *Map, density float64, rng *rand.Rand, make func() Tile) {
	attempts := int(density * float64(m.Size*m.Size))
	for i := 0; i < attempts; i++ {
		x, y := rng.Intn(m.Size), rng.Intn(m.Size)
		if m.Tiles[y][x].Kind == Wilderness {
			m.Tiles[y][x] = make()
		}
	}
}

func randomCity(rng *rand.Rand) Tile {
	roll := rng.Float64()
	switch {
	case roll < 0.20:
		return NewNeutralCity(75+rng.Intn(31), LargeCity)
	case roll < 0.50:
		return NewNeutralCity(35+rng.Intn(21), SmallCity)
	default:
		return NewNeutralCity(15+rng.Intn(11), Settlement)
	}
}

func tooClose(p point, placed []point) bool {
	for _, q := range placed {
		if abs(p.x-q.x)+abs(p.y-q.y) < generalMinDistance {
			return true
		}
	}
	return false
}

// connected runs a BFS from the first general across passable tiles and
// checks every other general is reached.
func connected(m *Map, generals []point) bool {
	if len(generals) <= 1 {
		return true
	}
	seen := make([][]bool, m.Size)
	for y := range seen {
		seen[y] = make([]bool, m.Size)
	}
	queue := []point{generals[0]}
	seen[generals[0].y][generals[0].x] = true
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, d := range [4]point{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := p.x+d.x, p.y+d.y
			if !m.InBounds(nx, ny) || seen[ny][nx] || !m.Tiles[ny][nx].Passable() {
				continue
			}
			seen[ny][nx] = true
			queue = append(queue, point{nx, ny})
		}
	}
	for _, g := range generals[1:] {
		if !seen[g.y][g.x] {
			return false
		}
	}
	return true
}

// fallbackMap places generals one per quadrant with a small offset and thin
// terrain. The low densities keep the board connected in practice.
func fallbackMap(size, generals int, rng *rand.Rand) *Map {
	m := NewMap(size)
	quarter := size / 4
	centers := [4]point{
		{quarter, quarter},
		{size - quarter - 1, quarter},
		{quarter, size - quarter - 1},
		{size - quarter - 1, size - quarter - 1},
	}
	for g := 0; g < generals; g++ {
		var x, y int
		if g < len(centers) {
			c := centers[g]
			x = clamp(c.x+rng.Intn(5)-2, generalMargin, size-generalMargin-1)
			y = clamp(c.y+rng.Intn(5)-2, generalMargin, size-generalMargin-1)
		} else {
			// Beyond four generals the quadrant trick runs out; take any
			// free margin-respecting cell.
			for {
				x = generalMargin + rng.Intn(size-2*generalMargin)
				y = generalMargin + rng.Intn(size-2*generalMargin)
				if m.Tiles[y][x].Kind == Wilderness {
					break
				}
			}
		}
		m.Tiles[y][x] = NewGeneral(generalSeedCount, "")
	}
	sprinkle(m, 0.04, rng, func() Tile { return NewMountain() })
	sprinkle(m, 0.05, rng, func() Tile { return randomCity(rng) })
	return m
}

// assignTeams hands the placeholder generals to teams in order.
func assignTeams(m *Map, teams []string) {
	i := 0
	for y := 0; y < m.Size; y++ {
		for x := 0; x < m.Size; x++ {
			t := &m.Tiles[y][x]
			if t.Kind == General && t.Owner == "" {
				if i < len(teams) {
					t.Owner = teams[i]
					i++
				}
			}
		}
	}
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
