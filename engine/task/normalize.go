package task

// Normalize folds the accepted input shapes into the canonical model:
// a step's single action becomes a one-element Actions list and a single
// output binding becomes a one-element Outputs list. Normalizing an already
// canonical config is a no-op, so load -> serialize -> load is idempotent.
func (t *Config) Normalize() {
	for i := range t.Steps {
		t.Steps[i].normalize()
	}
}

func (s *Step) normalize() {
	if s.Action != nil {
		s.Actions = append([]Action{*s.Action}, s.Actions...)
		s.Action = nil
	}
	if s.Output != nil {
		s.Outputs = append([]OutputBinding{*s.Output}, s.Outputs...)
		s.Output = nil
	}
}
