package ports

// Policy is the orchestrator's only concurrency knob plus resume behaviour.
type Policy struct {
	Workers int
	Resume  bool
}
