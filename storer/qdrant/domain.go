package qdrant

import (
	"encoding/json"
	"strings"
)

type qdrantEnvelope[T any] struct {
	Status qdrantStatus `json:"status"`
	Result T            `json:"result"`
}

// qdrantStatus is either "ok" or {"error": "..."}.
type qdrantStatus struct {
	State string
	Error string
}

func (s *qdrantStatus) UnmarshalJSON(b []byte) error {
	var state string
	if err := json.Unmarshal(b, &state); err == nil {
		s.State = strings.ToLower(state)
		return nil
	}

	var failed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &failed); err != nil {
		return err
	}

	if len(failed.Error) > 0 {
		s.State = "error"
		s.Error = failed.Error
	}

	return nil
}

func (s qdrantStatus) ok() bool {
	return s.State == "ok"
}

// chunkPayload keeps the record id since point ids must be UUIDs, and seq
// to order equal scores by insertion.
type chunkPayload struct {
	RecordId   string `json:"record_id"`
	ChunkIndex int    `json:"chunk_index"`
	Source     string `json:"source"`
	Content    string `json:"content"`
	Seq        int    `json:"seq"`
}

type qdrantPoint struct {
	Id      string       `json:"id"`
	Vector  []float32    `json:"vector"`
	Payload chunkPayload `json:"payload"`
}

type qdrantScoredPoint struct {
	Id      string       `json:"id"`
	Score   float64      `json:"score"`
	Payload chunkPayload `json:"payload"`
	Vector  []float32    `json:"vector"`
}

type upsertRequest struct {
	Points []qdrantPoint `json:"points"`
}

type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithVector  bool      `json:"with_vector"`
	WithPayload bool      `json:"with_payload"`
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type createCollectionRequest struct {
	Vectors vectorParams `json:"vectors"`
}
