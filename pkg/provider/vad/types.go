package vad

// VADEvent is the classification result for a single audio frame.
type VADEvent struct {
	// Speech reports whether the frame was judged to contain speech.
	Speech bool

	// Probability is the speech score (0.0–1.0) for backends that produce
	// one. Binary classifiers report 0 or 1.
	Probability float64
}
