// Realm atlas: a hex map of the world's terrain with every known location
// pinned to a tile. Uses axial coordinates (q, r) for the hex grid. The atlas
// is never stored; it is regenerated from the seed kept in the world state.
package world

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Atlas generation parameters.
const (
	atlasRadius   = 9
	seaLevel      = 0.25
	mountainLevel = 0.72
	placeSpacing  = 3
)

// HexCoord represents a position on the hex grid using axial coordinates.
// The third cube coordinate s is derived: s = -q - r.
type HexCoord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// S returns the implicit third cube coordinate.
func (h HexCoord) S() int {
	return -h.Q - h.R
}

var hexDirections = [6]HexCoord{
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
}

// Neighbors returns the six adjacent hex coordinates.
func (h HexCoord) Neighbors() [6]HexCoord {
	var result [6]HexCoord
	for i, dir := range hexDirections {
		result[i] = HexCoord{Q: h.Q + dir.Q, R: h.R + dir.R}
	}
	return result
}

// Distance returns the hex distance between two coordinates.
func Distance(a, b HexCoord) int {
	return max(abs(a.Q-b.Q), abs(a.R-b.R), abs(a.S()-b.S()))
}

// Terrain of a hex tile.
type Terrain uint8

const (
	TerrainPlains Terrain = iota
	TerrainForest
	TerrainMountain
	TerrainCoast
	TerrainRiver
	TerrainDesert
	TerrainSwamp
	TerrainTundra
	TerrainOcean
)

var terrainNames = [...]string{"plains", "forest", "mountain", "coast", "river", "desert", "swamp", "tundra", "ocean"}

// terrainGlyphs draw the text map.
var terrainGlyphs = [...]byte{'.', 'f', '^', ':', '~', '_', '%', '*', ' '}

func (t Terrain) String() string {
	if int(t) < len(terrainNames) {
		return terrainNames[t]
	}
	return "unknown"
}

// MarshalText encodes the terrain by name.
func (t Terrain) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a terrain name.
func (t *Terrain) UnmarshalText(b []byte) error {
	for i, name := range terrainNames {
		if name == string(b) {
			*t = Terrain(i)
			return nil
		}
	}
	return fmt.Errorf("unknown terrain %q", b)
}

// Hex is a single tile of the atlas.
type Hex struct {
	Coord       HexCoord `json:"coord"`
	Terrain     Terrain  `json:"terrain"`
	Elevation   float64  `json:"elevation"`
	Rainfall    float64  `json:"rainfall"`
	Temperature float64  `json:"temperature"`
	Location    string   `json:"location,omitempty"`
}

// Place is a location pinned to the atlas.
type Place struct {
	Name    string   `json:"name"`
	Coord   HexCoord `json:"coord"`
	Terrain Terrain  `json:"terrain"`
}

// Atlas is the generated map of a world.
type Atlas struct {
	Radius int
	Seed   int64

	hexes  map[HexCoord]*Hex
	coords []HexCoord // generation order, for deterministic walks
	places map[string]HexCoord
	order  []string
}

// NewAtlas generates the terrain for seed and pins each location to a land
// tile, keeping places apart where the land allows. The same seed and
// locations always give the same atlas.
func NewAtlas(seed int64, locations []string) *Atlas {
	a := &Atlas{
		Radius: atlasRadius,
		Seed:   seed,
		hexes:  make(map[HexCoord]*Hex),
		places: make(map[string]HexCoord),
	}
	a.generateTerrain()
	a.markCoast()
	a.placeRivers()
	a.placeLocations(locations)
	return a
}

// Get returns the hex at coord, or nil if out of bounds.
func (a *Atlas) Get(coord HexCoord) *Hex {
	return a.hexes[coord]
}

// HexCount returns the number of tiles.
func (a *Atlas) HexCount() int {
	return len(a.hexes)
}

// Places lists pinned locations in placement order.
func (a *Atlas) Places() []Place {
	out := make([]Place, 0, len(a.order))
	for _, name := range a.order {
		c := a.places[name]
		out = append(out, Place{Name: name, Coord: c, Terrain: a.hexes[c].Terrain})
	}
	return out
}

// Locate returns where a location sits.
func (a *Atlas) Locate(name string) (Place, bool) {
	c, ok := a.places[name]
	if !ok {
		return Place{}, false
	}
	return Place{Name: name, Coord: c, Terrain: a.hexes[c].Terrain}, true
}

// Travel returns the hex distance between two locations.
func (a *Atlas) Travel(from, to string) (int, bool) {
	fc, ok1 := a.places[from]
	tc, ok2 := a.places[to]
	if !ok1 || !ok2 {
		return 0, false
	}
	return Distance(fc, tc), true
}

// TerrainCounts returns how many tiles of each terrain exist.
func (a *Atlas) TerrainCounts() map[Terrain]int {
	counts := make(map[Terrain]int)
	for _, h := range a.hexes {
		counts[h.Terrain]++
	}
	return counts
}

// MarshalJSON encodes the atlas with tiles in generation order.
func (a *Atlas) MarshalJSON() ([]byte, error) {
	hexes := make([]*Hex, 0, len(a.coords))
	for _, c := range a.coords {
		hexes = append(hexes, a.hexes[c])
	}
	return json.Marshal(struct {
		Radius int     `json:"radius"`
		Seed   int64   `json:"seed"`
		Places []Place `json:"places"`
		Hexes  []*Hex  `json:"hexes"`
	}{a.Radius, a.Seed, a.Places(), hexes})
}

// Render draws the atlas as text, one row per r, with a legend numbering
// the places.
func (a *Atlas) Render() string {
	index := make(map[HexCoord]int, len(a.order))
	for i, name := range a.order {
		index[a.places[name]] = i + 1
	}

	var b strings.Builder
	for r := -a.Radius; r <= a.Radius; r++ {
		b.WriteString(strings.Repeat(" ", abs(r)))
		for q := -a.Radius; q <= a.Radius; q++ {
			h := a.hexes[HexCoord{Q: q, R: r}]
			if h == nil {
				continue
			}
			if n, ok := index[h.Coord]; ok {
				b.WriteByte(placeGlyph(n))
			} else {
				b.WriteByte(terrainGlyphs[h.Terrain])
			}
			b.WriteByte(' ')
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	for i, p := range a.Places() {
		fmt.Fprintf(&b, "%c  %s (%s, %d,%d)\n", placeGlyph(i+1), p.Name, p.Terrain, p.Coord.Q, p.Coord.R)
	}
	return b.String()
}

// placeGlyph labels places 1-9 then A-Z then a-z.
func placeGlyph(n int) byte {
	const glyphs = "123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	if n-1 < len(glyphs) {
		return glyphs[n-1]
	}
	return '#'
}

func (a *Atlas) generateTerrain() {
	// Three noise generators for independent layers.
	elevNoise := opensimplex.NewNormalized(a.Seed)
	rainNoise := opensimplex.NewNormalized(a.Seed + 1)
	tempNoise := opensimplex.NewNormalized(a.Seed + 2)

	for q := -a.Radius; q <= a.Radius; q++ {
		for r := -a.Radius; r <= a.Radius; r++ {
			coord := HexCoord{Q: q, R: r}
			if Distance(coord, HexCoord{}) > a.Radius {
				continue
			}

			// Hex axial to cartesian: x = q + r/2, y = r * sqrt(3)/2.
			x := float64(q) + float64(r)*0.5
			y := float64(r) * math.Sqrt(3.0) / 2.0

			elev := octaveNoise(elevNoise, x, y, 4, 0.15, 0.5)
			rain := octaveNoise(rainNoise, x, y, 3, 0.12, 0.5)
			temp := octaveNoise(tempNoise, x, y, 3, 0.10, 0.5)

			// Sink the rim so the realm is an island.
			dist := math.Sqrt(x*x+y*y) / float64(a.Radius)
			elev *= math.Max(0, 1.0-math.Pow(dist, 3.5))

			// Colder with height and towards the poles.
			temp = temp*0.6 + (1.0-math.Abs(y)/float64(a.Radius))*0.3 + (1.0-elev)*0.1

			a.hexes[coord] = &Hex{
				Coord:       coord,
				Terrain:     deriveTerrain(elev, rain, temp),
				Elevation:   elev,
				Rainfall:    rain,
				Temperature: temp,
			}
			a.coords = append(a.coords, coord)
		}
	}
}

func deriveTerrain(elev, rain, temp float64) Terrain {
	switch {
	case elev < seaLevel:
		return TerrainOcean
	case elev > mountainLevel:
		return TerrainMountain
	case temp < 0.25:
		return TerrainTundra
	case rain < 0.25 && temp > 0.5:
		return TerrainDesert
	case rain > 0.7 && elev < 0.45:
		return TerrainSwamp
	case rain > 0.45 && elev > 0.45:
		return TerrainForest
	}
	return TerrainPlains
}

// markCoast turns low plains and forest beside the sea into coast.
func (a *Atlas) markCoast() {
	var shore []*Hex
	for _, c := range a.coords {
		h := a.hexes[c]
		if h.Terrain != TerrainPlains && h.Terrain != TerrainForest || h.Elevation >= 0.5 {
			continue
		}
		for _, n := range c.Neighbors() {
			if nh := a.hexes[n]; nh != nil && nh.Terrain == TerrainOcean {
				shore = append(shore, h)
				break
			}
		}
	}
	for _, h := range shore {
		h.Terrain = TerrainCoast
	}
}

// placeRivers traces a few rivers downhill from the highlands.
func (a *Atlas) placeRivers() {
	rng := rand.New(rand.NewSource(a.Seed + 100))

	var sources []HexCoord
	for _, c := range a.coords {
		if h := a.hexes[c]; h.Elevation > 0.65 && h.Terrain != TerrainOcean {
			sources = append(sources, c)
		}
	}
	rng.Shuffle(len(sources), func(i, j int) {
		sources[i], sources[j] = sources[j], sources[i]
	})
	n := min(max(len(sources)/8, 2), 5)
	if len(sources) > n {
		sources = sources[:n]
	}
	for _, start := range sources {
		a.traceRiver(start)
	}
}

// traceRiver follows the steepest descent from start until it reaches the
// sea or finds no lower neighbour.
func (a *Atlas) traceRiver(start HexCoord) {
	current := start
	visited := make(map[HexCoord]bool)

	for step := 0; step < 2*a.Radius+1; step++ {
		visited[current] = true
		h := a.hexes[current]
		if h == nil || h.Terrain == TerrainOcean {
			return
		}
		if h.Terrain != TerrainMountain && h.Terrain != TerrainCoast {
			h.Terrain = TerrainRiver
		}

		next, lowest := current, h.Elevation
		for _, nc := range current.Neighbors() {
			if nh := a.hexes[nc]; nh != nil && !visited[nc] && nh.Elevation < lowest {
				next, lowest = nc, nh.Elevation
			}
		}
		if next == current {
			return
		}
		current = next
	}
}

// placeLocations pins each location on the most inviting free land tile,
// relaxing the spacing when the land runs out.
func (a *Atlas) placeLocations(locations []string) {
	type scored struct {
		coord HexCoord
		score float64
	}
	var candidates []scored
	for _, c := range a.coords {
		candidates = append(candidates, scored{c, a.siteScore(c)})
	}
	// Stable over generation order, so ties resolve the same way every time.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	taken := make(map[HexCoord]bool)
	tooClose := func(c HexCoord, spacing int) bool {
		for _, name := range a.order {
			if Distance(c, a.places[name]) < spacing {
				return true
			}
		}
		return false
	}

	pending := locations
	for spacing := placeSpacing; spacing >= 0 && len(pending) > 0; spacing-- {
		var left []string
		for _, name := range pending {
			if _, dup := a.places[name]; dup {
				continue
			}
			placed := false
			for _, cand := range candidates {
				if taken[cand.coord] || cand.score <= 0 && spacing > 0 || tooClose(cand.coord, spacing) {
					continue
				}
				taken[cand.coord] = true
				a.places[name] = cand.coord
				a.order = append(a.order, name)
				a.hexes[cand.coord].Location = name
				placed = true
				break
			}
			if !placed {
				left = append(left, name)
			}
		}
		pending = left
	}
}

// siteScore rates a tile for a settlement: harbours and rivers first, then
// fertile land, with a bonus for varied surroundings. The sea scores zero.
func (a *Atlas) siteScore(c HexCoord) float64 {
	h := a.hexes[c]
	var score float64
	switch h.Terrain {
	case TerrainCoast:
		score = 4.0
	case TerrainRiver:
		score = 3.5
	case TerrainPlains:
		score = 3.0
	case TerrainForest:
		score = 1.5
	case TerrainDesert, TerrainSwamp, TerrainTundra:
		score = 0.5
	case TerrainMountain:
		score = 0.3
	default:
		return 0
	}

	kinds := make(map[Terrain]bool)
	for _, n := range c.Neighbors() {
		if nh := a.hexes[n]; nh != nil && nh.Terrain != TerrainOcean {
			kinds[nh.Terrain] = true
		}
	}
	return score + float64(len(kinds))*0.3
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
