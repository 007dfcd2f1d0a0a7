package models

import "time"

// Note is a plain-text note stored as "<timestamp> -- <title>.txt" in the notes directory.
type Note struct {
	Filename  string    `json:"filename"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Timestamp string    `json:"timestamp"`
	CreatedAt time.Time `json:"created_at"`
}

// NoteInput is the input for creating a note. An empty Title asks for a generated one.
type NoteInput struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// RelatedNotes is the result of a related-notes lookup for one note.
type RelatedNotes struct {
	Source string `json:"source"`
	// Threshold is the similarity bar the results cleared; nil when nothing qualified.
	Threshold *float64           `json:"threshold"`
	Degraded  bool               `json:"degraded"`
	Results   []SimilarityResult `json:"results"`
}
