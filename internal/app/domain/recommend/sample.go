package recommend

import (
	"math/rand/v2"

	"github.com/FACorreiaa/loci-planner/internal/app/models"
)

// samplePlaces draws a uniform random subset of size min(n, len(src)) with a
// partial Fisher-Yates shuffle over a copy of src.
func samplePlaces(r *rand.Rand, src models.ResultSet, n int) models.ResultSet {
	pool := src.Clone()
	if n > len(pool) {
		n = len(pool)
	}
	if n <= 0 {
		return models.ResultSet{}
	}
	for i := 0; i < n; i++ {
		j := i + r.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n:n]
}
