package ingestion_engine

// IngestConfig tunes the pipeline.
//
// ChunkSize:     sliding-window length in characters (e.g., 1200).
// ChunkOverlap:  characters of context bleed between consecutive chunks (e.g., 200).
// BatchSize:     chunk texts per embedding call (e.g., 12).
// MinContentLen: extracted text below this is treated as "no usable content".
type IngestConfig struct {
	ChunkSize     int
	ChunkOverlap  int
	BatchSize     int
	MinContentLen int
}

func DefaultIngestConfig() *IngestConfig {
	return &IngestConfig{
		ChunkSize:     1200,
		ChunkOverlap:  200,
		BatchSize:     12,
		MinContentLen: 20,
	}
}
