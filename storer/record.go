package storer

// Record is one embedded chunk of a document.
type Record struct {
	Id string
	// Index is the chunk's position in its document.
	Index     int
	Source    string
	Content   string
	Embedding []float32
	// Score is the similarity to the query, set by Search.
	Score float32
}
