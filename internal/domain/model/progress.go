package model

// JobProgress is the polling client's view of one job: the job row plus derived
// percentage, lock metadata when an operation of the same kind is still held,
// and timing aggregates from the audit log.
type JobProgress struct {
	Job     *Job              `json:"job"`
	Percent float64           `json:"percent"`
	Lock    *LockStatus       `json:"lock,omitempty"`
	Timing  *ChunkTimingStats `json:"timing,omitempty"`
}

// JobChunksView is the per-chunk drill-down for one job: timing aggregates
// plus the audit rows for every failed attempt.
type JobChunksView struct {
	JobID    string             `json:"job_id"`
	Timing   *ChunkTimingStats  `json:"timing,omitempty"`
	Failures []*ChunkAuditEntry `json:"failures"`
}

// ElectionResult is the aggregate of all combined chunk plaintexts. Complete is
// true only once every tally chunk has a combined result.
type ElectionResult struct {
	ElectionID     string           `json:"election_id"`
	Tallies        map[string]int64 `json:"tallies"`
	ChunksCombined int              `json:"chunks_combined"`
	TotalChunks    int              `json:"total_chunks"`
	Complete       bool             `json:"complete"`
}
