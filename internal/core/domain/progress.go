package domain

// Stage progress fractions reported while a document moves through the
// pipeline. Fractions are monotonically non-decreasing per document.
const (
	ProgressQueued     = 0.0
	ProgressExtracting = 0.1
	ProgressChunking   = 0.3
	ProgressEmbedding  = 0.5
	ProgressIndexing   = 0.8
	ProgressCompleted  = 1.0
)

// ProgressForStatus maps a pipeline status to its progress fraction.
// Failed documents keep the fraction of the stage they failed in, so
// the mapping for StatusFailed is not defined here.
func ProgressForStatus(s DocumentStatus) float64 {
	switch s {
	case StatusQueued:
		return ProgressQueued
	case StatusExtracting:
		return ProgressExtracting
	case StatusChunking:
		return ProgressChunking
	case StatusEmbedding:
		return ProgressEmbedding
	case StatusIndexing:
		return ProgressIndexing
	case StatusCompleted:
		return ProgressCompleted
	}
	return 0
}

// ProgressWithin interpolates a sub-stage fraction into a stage's span
// of the overall pipeline progress. fraction is the completed share of
// the stage's own work, clamped to [0, 1].
func ProgressWithin(s DocumentStatus, fraction float64) float64 {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	start := ProgressForStatus(s)
	var next float64
	switch s {
	case StatusQueued:
		next = ProgressExtracting
	case StatusExtracting:
		next = ProgressChunking
	case StatusChunking:
		next = ProgressEmbedding
	case StatusEmbedding:
		next = ProgressIndexing
	case StatusIndexing:
		next = ProgressCompleted
	default:
		return start
	}
	return start + fraction*(next-start)
}

// IngestionProgress is a progress event published to subscribers as a
// document transitions between pipeline stages.
type IngestionProgress struct {
	DocumentID string
	FilePath   string
	Stage      DocumentStatus
	Progress   float64
	Message    string
}

// IngestionStats summarises the document corpus.
type IngestionStats struct {
	TotalDocuments     int
	CompletedDocuments int
	FailedDocuments    int
	PendingDocuments   int
	TotalChunks        int
}
