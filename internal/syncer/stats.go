package syncer

import "log/slog"

// Stats is the structured summary of one synchronization run.
type Stats struct {
	NewFiles       int `json:"new_files"`
	UpdatedFiles   int `json:"updated_files"`
	UnchangedFiles int `json:"unchanged_files"`
	DeletedFiles   int `json:"deleted_files"`
	FailedFiles    int `json:"failed_files"`

	EmbeddedChunks int `json:"embedded_chunks"`
	FailedChunks   int `json:"failed_chunks"`

	// BaselineChunks is what would have been embedded had every file
	// been reprocessed: the denominator of the savings metric.
	BaselineChunks        int     `json:"baseline_chunks"`
	ComputeSavingsPercent float64 `json:"compute_savings_percent"`

	InitialVectorCount int `json:"initial_vector_count"`
	FinalVectorCount   int `json:"final_vector_count"`

	// VectorsAdded is the signed index delta for the run. Negative when
	// cleanup removed more vectors than embedding added.
	VectorsAdded int `json:"vectors_added"`
}

// LogValue lets a Stats value be logged as one structured group.
func (s *Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("new", s.NewFiles),
		slog.Int("updated", s.UpdatedFiles),
		slog.Int("unchanged", s.UnchangedFiles),
		slog.Int("deleted", s.DeletedFiles),
		slog.Int("failed_files", s.FailedFiles),
		slog.Int("embedded_chunks", s.EmbeddedChunks),
		slog.Int("failed_chunks", s.FailedChunks),
		slog.Int("baseline_chunks", s.BaselineChunks),
		slog.Float64("compute_savings_percent", s.ComputeSavingsPercent),
		slog.Int("initial_vectors", s.InitialVectorCount),
		slog.Int("final_vectors", s.FinalVectorCount),
		slog.Int("vectors_added", s.VectorsAdded),
	)
}

// savingsPercent computes max(0, 1-embedded/baseline)*100, guarded
// against an empty baseline.
func savingsPercent(embedded, baseline int) float64 {
	if baseline <= 0 {
		return 0
	}
	savings := (1 - float64(embedded)/float64(baseline)) * 100
	if savings < 0 {
		return 0
	}
	return savings
}
