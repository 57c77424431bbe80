package pipeline

// DemoPattern is a fixed per-chunk probability sequence for reproducible demo
// output: a burst of incidents at the start, a calmer middle, an intense late
// stretch, then a wind-down. It is an optional collaborator, absent by
// default, applied with a small jitter when no classifier is configured.
var DemoPattern = []float64{
	0.85, 0.87, 0.61, 0.86,
	0.76, 0.60, 0.73, 0.75, 0.58, 0.75,
	0.80, 0.92, 0.87, 0.92, 0.85, 0.92, 0.92, 0.82, 0.81, 0.82,
	0.77, 0.67, 0.70,
}
