package persona

import (
	"math/rand/v2"
	"sync"
)

// Picker returns an index in [0, n).
type Picker func(n int) int

// RandomPicker picks uniformly with the global source.
func RandomPicker(n int) int { return rand.IntN(n) }

// SeededPicker returns a deterministic Picker safe for concurrent use.
func SeededPicker(seed uint64) Picker {
	var mu sync.Mutex
	r := rand.New(rand.NewPCG(seed, seed))
	return func(n int) int {
		mu.Lock()
		defer mu.Unlock()
		return r.IntN(n)
	}
}

// genericFallback is used when a persona carries no fallback pool.
const genericFallback = "O serviço está temporariamente indisponível. Tente novamente em instantes. [modo offline]"

// Fallback returns one of the persona's canned offline answers.
func Fallback(p Persona, pick Picker) string {
	n := len(p.Fallbacks)
	if n == 0 {
		return genericFallback
	}
	if pick == nil {
		pick = RandomPicker
	}
	i := pick(n)
	if i < 0 || i >= n {
		i = 0
	}
	return p.Fallbacks[i]
}
