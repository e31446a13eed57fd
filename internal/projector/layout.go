package projector

import (
	"math"
	"math/rand"
	"sort"

	"github.com/cgast/embird/internal/vectormath"
)

// Config controls the 2-D neighbor-preserving layout. The parameter names
// mirror UMAP's for familiarity even though the implementation below is a
// from-scratch force-directed layout (no UMAP library is available in this
// module's dependency set — see DESIGN.md).
type Config struct {
	NNeighbors int
	MinDist    float64
	Seed       int64
	Iterations int
}

func DefaultConfig() Config {
	return Config{NNeighbors: 15, MinDist: 0.1, Seed: 42, Iterations: 300}
}

type point struct {
	x, y float64
}

// layout computes a deterministic 2-D position for every row in vectors,
// preserving local neighborhoods: a k-nearest-neighbor graph (k=NNeighbors,
// cosine-via-L2-on-unit-vectors) pulls neighbors together, a uniform
// repulsion keeps all points from collapsing, and MinDist sets a floor
// distance below which neighbor attraction relaxes to zero.
func layout(vectors [][]float32, cfg Config) []point {
	n := len(vectors)
	if n == 0 {
		return nil
	}
	if n == 1 {
		return []point{{0, 0}}
	}

	neighbors := knnGraph(vectors, cfg.NNeighbors)
	positions := seededInitialPositions(n, cfg.Seed)

	k := cfg.NNeighbors
	if k > n-1 {
		k = n - 1
	}
	repulsionStrength := 1.0 / float64(n)

	for iter := 0; iter < cfg.Iterations; iter++ {
		forces := make([]point, n)

		for i := 0; i < n; i++ {
			for _, j := range neighbors[i] {
				dx := positions[j].x - positions[i].x
				dy := positions[j].y - positions[i].y
				dist := math.Hypot(dx, dy)
				if dist < 1e-9 {
					dist = 1e-9
				}
				attraction := dist - cfg.MinDist
				if attraction < 0 {
					attraction = 0
				}
				forces[i].x += attraction * dx / dist
				forces[i].y += attraction * dy / dist
			}

			for j := 0; j < n; j++ {
				if j == i {
					continue
				}
				dx := positions[i].x - positions[j].x
				dy := positions[i].y - positions[j].y
				distSq := dx*dx + dy*dy
				if distSq < 1e-6 {
					distSq = 1e-6
				}
				forces[i].x += repulsionStrength * dx / distSq
				forces[i].y += repulsionStrength * dy / distSq
			}
		}

		step := 0.1 * (1 - float64(iter)/float64(cfg.Iterations))
		for i := range positions {
			positions[i].x += step * forces[i].x
			positions[i].y += step * forces[i].y
		}
	}

	return normalizeLayout(positions)
}

// knnGraph returns, for each row, the indices of its NNeighbors nearest
// rows by squared L2 distance over unit-normalized vectors.
func knnGraph(vectors [][]float32, k int) [][]int {
	n := len(vectors)
	if k > n-1 {
		k = n - 1
	}
	graph := make([][]int, n)

	for i := 0; i < n; i++ {
		type cand struct {
			idx  int
			dist float64
		}
		cands := make([]cand, 0, n-1)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			cands = append(cands, cand{idx: j, dist: vectormath.L2Sq(vectors[i], vectors[j])})
		}
		sort.Slice(cands, func(a, b int) bool { return cands[a].dist < cands[b].dist })

		ids := make([]int, 0, k)
		for idx := 0; idx < k && idx < len(cands); idx++ {
			ids = append(ids, cands[idx].idx)
		}
		graph[i] = ids
	}
	return graph
}

func seededInitialPositions(n int, seed int64) []point {
	rng := rand.New(rand.NewSource(seed))
	positions := make([]point, n)
	for i := range positions {
		angle := rng.Float64() * 2 * math.Pi
		radius := rng.Float64()
		positions[i] = point{x: radius * math.Cos(angle), y: radius * math.Sin(angle)}
	}
	return positions
}

func normalizeLayout(positions []point) []point {
	if len(positions) == 0 {
		return positions
	}

	minX, maxX := positions[0].x, positions[0].x
	minY, maxY := positions[0].y, positions[0].y
	for _, p := range positions {
		minX, maxX = math.Min(minX, p.x), math.Max(maxX, p.x)
		minY, maxY = math.Min(minY, p.y), math.Max(maxY, p.y)
	}

	spanX, spanY := maxX-minX, maxY-minY
	if spanX < 1e-9 {
		spanX = 1
	}
	if spanY < 1e-9 {
		spanY = 1
	}

	out := make([]point, len(positions))
	for i, p := range positions {
		out[i] = point{
			x: (p.x-minX)/spanX*2 - 1,
			y: (p.y-minY)/spanY*2 - 1,
		}
	}
	return out
}
