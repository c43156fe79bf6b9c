package replay

import "math/rand/v2"

// Stream ids beyond the worker range.
const (
	streamBoundary uint64 = 1<<16 + iota
	streamProgression
)

// newStream derives an independent generator for one purpose within one
// iteration. Streams depend only on the seed, the iteration and the id,
// never on how much another stream consumed.
func newStream(seed uint64, iteration int, id uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, splitmix(uint64(iteration)<<32^id)))
}

func splitmix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
