package memo

// Stats describes how often a Func had to evaluate its wrapped function.
// Hits counts calls answered from the cache; calls whose evaluation failed
// are neither hits nor evaluations.
type Stats struct {
	Name        string `json:"name"`
	Calls       uint64 `json:"calls"`
	Hits        uint64 `json:"hits"`
	Evaluations uint64 `json:"evaluations"`
	Size        int    `json:"size"`
	Capacity    int    `json:"capacity"`
}

// HitRate returns 1 - Evaluations/Calls. ok is false when Calls is zero.
func (s Stats) HitRate() (rate float64, ok bool) {
	if s.Calls == 0 {
		return 0, false
	}
	return 1 - float64(s.Evaluations)/float64(s.Calls), true
}
