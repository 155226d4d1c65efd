package world

import (
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// maxFeatures is the most notable features a location starts with.
const maxFeatures = 3

// FeatureField is a smooth noise field laid along the location list. It
// decides how many notable features each location gets at creation, so
// richly described places cluster instead of being scattered evenly.
type FeatureField struct {
	noise opensimplex.Noise
}

// NewFeatureField seeds a field.
func NewFeatureField(seed int64) FeatureField {
	return FeatureField{noise: opensimplex.NewNormalized(seed)}
}

// Counts returns the feature count, 0 to maxFeatures, for each of n
// locations. Locations are ranked by their noise value and the ranks split
// into equal bands, so every count is equally common while neighbours on
// the field still tend to share one.
func (f FeatureField) Counts(n int) []int {
	if n <= 0 {
		return nil
	}
	values := make([]float64, n)
	order := make([]int, n)
	for i := range n {
		values[i] = octaveNoise(f.noise, float64(i)*0.61, 0.5, 3, 1.0, 0.5)
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return values[order[a]] < values[order[b]]
	})

	counts := make([]int, n)
	for rank, i := range order {
		counts[i] = min(int((float64(rank)+0.5)*float64(maxFeatures+1)/float64(n)), maxFeatures)
	}
	return counts
}

// octaveNoise sums several octaves of normalized noise into [0, 1).
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
