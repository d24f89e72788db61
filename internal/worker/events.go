// Package worker holds the NSQ consumers that run the asynchronous
// pipelines: document ingestion and content generation.
package worker

// IngestTaskPayload is the message body on the ingest task topic.
type IngestTaskPayload struct {
	AssetID       string `json:"asset_id"`
	ProjectID     string `json:"project_id"`
	CorrelationID string `json:"correlation_id"`
}

// GenerateTaskPayload is the message body on the generate task topic.
type GenerateTaskPayload struct {
	GenerationID  string `json:"generation_id"`
	ProjectID     string `json:"project_id"`
	CorrelationID string `json:"correlation_id"`
}
