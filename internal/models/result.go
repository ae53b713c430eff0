package models

// Source is one retrieved chunk returned alongside an answer.
// Text is truncated for display; Score is valid for ranking only within
// the result set it came from.
type Source struct {
	Text       string  `json:"text"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
}

// QueryResult is the response for a query request. QueryTime is in seconds.
type QueryResult struct {
	Answer    string   `json:"answer"`
	Sources   []Source `json:"sources"`
	Question  string   `json:"question"`
	QueryTime float64  `json:"query_time"`
}

// FileResult records the outcome of ingesting one file.
type FileResult struct {
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks"`
	Error    string `json:"error,omitempty"`
}

// IngestResult is the response for an ingest request. A failed extraction
// shows up in FilesFailed and Files without failing the batch.
type IngestResult struct {
	FilesProcessed int          `json:"files_processed"`
	FilesFailed    int          `json:"files_failed"`
	TotalChunks    int          `json:"total_chunks"`
	ChunkIDs       []string     `json:"chunk_ids"`
	Files          []FileResult `json:"files"`
}

// StatsResult reports what a tenant has stored.
type StatsResult struct {
	Tenant            string      `json:"tenant"`
	VectorCount       int64       `json:"vector_count"`
	DistinctFilenames []string    `json:"distinct_filenames"`
	Documents         []*Document `json:"documents,omitempty"`
}
