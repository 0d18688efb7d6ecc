package metrics

func (m *Manager) initAuthMetrics(f factory) {
	m.authDecisions = f.counterVec("auth_decisions_total",
		"Authorization decisions by outcome", "outcome")
	m.feedClients = f.gauge("admin_feed_clients",
		"Connected admin event feed clients")
}

// RecordAuth records an authorization outcome: allowed, unauthenticated,
// forbidden or namespace_denied.
func (m *Manager) RecordAuth(outcome string) {
	if !m.Enabled() {
		return
	}
	m.authDecisions.WithLabelValues(outcome).Inc()
}

// SetFeedClients sets the number of connected admin feed clients.
func (m *Manager) SetFeedClients(n int) {
	if !m.Enabled() {
		return
	}
	m.feedClients.Set(float64(n))
}
