package config

const (
	// TopicIngestTask is the NSQ topic for asset ingestion tasks.
	TopicIngestTask = "ingest.task"

	// TopicGenerateTask is the NSQ topic for content generation tasks.
	TopicGenerateTask = "generate.task"
)
