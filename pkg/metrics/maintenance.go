package metrics

func (m *Manager) initMaintenanceMetrics(f factory) {
	m.compactionRuns = f.counterVec("compaction_runs_total",
		"Session compactions by outcome", "status")
	m.compactionArchived = f.counter("compaction_archived_events_total",
		"Events archived by compaction")
	m.dedupGroups = f.counter("dedup_groups_total",
		"Duplicate groups found by dedup scans")
	m.dedupDeleted = f.counter("dedup_deleted_total",
		"Knowledge items deleted by dedup")
	m.backfillUpdated = f.counterVec("backfill_updated_total",
		"Rows given embeddings by backfill, by scope", "scope")
}

// RecordCompaction records one session compaction attempt.
func (m *Manager) RecordCompaction(err error, archived int) {
	if !m.Enabled() {
		return
	}
	if err != nil {
		m.compactionRuns.WithLabelValues("error").Inc()
		return
	}
	m.compactionRuns.WithLabelValues("ok").Inc()
	m.compactionArchived.Add(float64(archived))
}

// RecordDedup records the outcome of a dedup scan.
func (m *Manager) RecordDedup(groups, deleted int) {
	if !m.Enabled() {
		return
	}
	m.dedupGroups.Add(float64(groups))
	m.dedupDeleted.Add(float64(deleted))
}

// RecordBackfill records rows that received embeddings.
func (m *Manager) RecordBackfill(scope string, updated int) {
	if !m.Enabled() || updated <= 0 {
		return
	}
	m.backfillUpdated.WithLabelValues(scope).Add(float64(updated))
}
