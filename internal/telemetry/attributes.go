// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Span attribute keys.
const (
	// Laboratory attributes
	LotIDKey         = "lims.lote_id"
	AnalysisIDKey    = "lims.analisis_id"
	AnalysisKindKey  = "lims.kind"
	AnalysisStateKey = "lims.estado"

	// Import attributes
	ImportFileKey     = "import.file"
	ImportInsertedKey = "import.inserted"
	ImportSkippedKey  = "import.skipped"

	// Job attributes
	JobTypeKey     = "job.type"
	JobStatusKey   = "job.status"
	JobDurationKey = "job.duration_ms"
)

// AnalysisAttributes creates analysis-related span attributes.
func AnalysisAttributes(id, lotID int64, kind, state string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AnalysisKindKey, kind),
	}
	if id != 0 {
		attrs = append(attrs, attribute.Int64(AnalysisIDKey, id))
	}
	if lotID != 0 {
		attrs = append(attrs, attribute.Int64(LotIDKey, lotID))
	}
	if state != "" {
		attrs = append(attrs, attribute.String(AnalysisStateKey, state))
	}
	return attrs
}

// ImportAttributes creates legacy-import span attributes.
func ImportAttributes(file string, inserted, skipped int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ImportFileKey, file),
		attribute.Int(ImportInsertedKey, inserted),
		attribute.Int(ImportSkippedKey, skipped),
	}
}

// JobAttributes creates job-related span attributes.
func JobAttributes(jobType, status string, durationMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(JobTypeKey, jobType),
		attribute.String(JobStatusKey, status),
		attribute.Int64(JobDurationKey, durationMS),
	}
}
