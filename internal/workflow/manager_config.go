package workflow

// ConfigureStages registers the concrete stage handlers the workflow will run.
func (m *Manager) ConfigureStages(set StageSet) {
	handlers := set.byType()
	m.mu.Lock()
	m.handlers = handlers
	m.mu.Unlock()
}
