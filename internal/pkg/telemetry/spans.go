package telemetry

// Span names used across the analysis pipeline.
const (
	// Analysis
	SpanAnalyze         = "analysis.analyze"
	SpanResolveLocation = "analysis.resolve_location"
	SpanClassify        = "analysis.classify"
	SpanArchive         = "analysis.archive"
	SpanStore           = "analysis.store"

	// Worker
	SpanReclassify = "worker.reclassify"
)
