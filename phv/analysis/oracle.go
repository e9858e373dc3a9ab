package analysis

import "github.com/joshuapare/phvkit/phv/ir"

type namePair struct{ a, b string }

func orderedPair(a, b string) namePair {
	if b < a {
		a, b = b, a
	}
	return namePair{a, b}
}

func pairSet(pairs [][2]string) map[namePair]bool {
	out := make(map[namePair]bool, len(pairs))
	for _, p := range pairs {
		out[orderedPair(p[0], p[1])] = true
	}
	return out
}

// StaticOracle answers stage and exclusivity questions from the precomputed
// facts carried by the program.
type StaticOracle struct {
	minStage     map[string]int
	sameStage    map[namePair]bool
	mutexTables  map[namePair]bool
	mutexActions map[namePair]bool
}

// NewStaticOracle indexes s. Every pair list is symmetric.
func NewStaticOracle(s ir.Stages) *StaticOracle {
	stages := make(map[string]int, len(s.MinStage))
	for t, n := range s.MinStage {
		stages[t] = n
	}
	return &StaticOracle{
		minStage:     stages,
		sameStage:    pairSet(s.SameStage),
		mutexTables:  pairSet(s.MutexTables),
		mutexActions: pairSet(s.MutexActions),
	}
}

// SameStage reports whether t1 and t2 are known to share a stage.
func (o *StaticOracle) SameStage(t1, t2 string) bool {
	return t1 == t2 || o.sameStage[orderedPair(t1, t2)]
}

// MinStage returns the estimated earliest stage of t.
func (o *StaticOracle) MinStage(t string) (int, bool) {
	n, ok := o.minStage[t]
	return n, ok
}

// TablesMutex reports whether t1 and t2 never apply to the same packet.
func (o *StaticOracle) TablesMutex(t1, t2 string) bool {
	return t1 != t2 && o.mutexTables[orderedPair(t1, t2)]
}

// ActionsMutex reports whether a1 and a2 never run on the same packet.
func (o *StaticOracle) ActionsMutex(a1, a2 string) bool {
	return a1 != a2 && o.mutexActions[orderedPair(a1, a2)]
}
