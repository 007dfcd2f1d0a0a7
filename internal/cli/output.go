// Package cli formats notes, related notes, search results and status for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/related"
	"github.com/hyperjump/kioku/internal/search"
	"github.com/hyperjump/kioku/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const (
	dateLayout    = "2006-01-02 15:04"
	listTitleMax  = 60
	separatorLine = "────────────────────────────────────────"
)

// Percent converts a similarity score to a rounded percentage.
func Percent(score float64) int {
	return int(math.Round(score * 100))
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteRelated writes a related-notes lookup. floor is the lowest threshold that was
// tried; it is shown when nothing qualified.
func WriteRelated(w io.Writer, rel *models.RelatedNotes, format OutputFormat, floor float64) error {
	if format == OutputJSON {
		return WriteJSON(w, rel)
	}
	fmt.Fprintln(w, "Related notes:")
	if rel.Threshold == nil || len(rel.Results) == 0 {
		fmt.Fprintf(w, "No similar notes found (>= %d%%)\n", Percent(floor))
		return nil
	}
	if rel.Degraded {
		fmt.Fprintf(w, "(similarity threshold lowered to %d%%)\n", Percent(*rel.Threshold))
	}
	for i, r := range rel.Results {
		fmt.Fprintf(w, "%d. %s (%d%%)\n", i+1, r.ID, Percent(r.Score))
	}
	return nil
}

// WriteNoteList writes notes as a numbered table (#, date, title). Numbers match
// what show and related accept.
func WriteNoteList(w io.Writer, list []models.Note, format OutputFormat) error {
	if format == OutputJSON {
		if list == nil {
			list = []models.Note{}
		}
		return WriteJSON(w, list)
	}
	if len(list) == 0 {
		fmt.Fprintln(w, "No notes yet.")
		return nil
	}
	width := len(fmt.Sprint(len(list)))
	fmt.Fprintf(w, "%*s  %-16s  %s\n", width, "#", "Date", "Title")
	for i, n := range list {
		date := n.Timestamp
		if !n.CreatedAt.IsZero() {
			date = n.CreatedAt.Local().Format(dateLayout)
		}
		fmt.Fprintf(w, "%*d  %-16s  %s\n", width, i+1, date, utils.Truncate(n.Title, listTitleMax))
	}
	return nil
}

// WriteNote writes a note's header and content.
func WriteNote(w io.Writer, n models.Note) {
	fmt.Fprintf(w, "%s\n", n.Title)
	if !n.CreatedAt.IsZero() {
		fmt.Fprintf(w, "%s\n", n.CreatedAt.Local().Format(dateLayout))
	}
	fmt.Fprintln(w, separatorLine)
	fmt.Fprintln(w, strings.TrimRight(n.Content, "\n"))
	fmt.Fprintln(w, separatorLine)
}

// WriteSearchResults writes ranked search results.
func WriteSearchResults(w io.Writer, query string, results []models.SimilarityResult, semantic bool, format OutputFormat) error {
	if format == OutputJSON {
		if results == nil {
			results = []models.SimilarityResult{}
		}
		return WriteJSON(w, map[string]interface{}{"query": query, "semantic": semantic, "results": results})
	}
	if len(results) == 0 {
		fmt.Fprintf(w, "No notes match %q\n", query)
		return nil
	}
	for i, r := range results {
		if semantic {
			fmt.Fprintf(w, "%d. %s (%d%%)\n", i+1, r.ID, Percent(r.Score))
		} else {
			fmt.Fprintf(w, "%d. %s (score %.3f)\n", i+1, r.ID, r.Score)
		}
	}
	return nil
}

// WriteHybridResults writes fused keyword and semantic results with their parts.
func WriteHybridResults(w io.Writer, query string, results []search.FusedResult, format OutputFormat) error {
	if format == OutputJSON {
		if results == nil {
			results = []search.FusedResult{}
		}
		return WriteJSON(w, map[string]interface{}{"query": query, "hybrid": true, "results": results})
	}
	if len(results) == 0 {
		fmt.Fprintf(w, "No notes match %q\n", query)
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(w, "%d. %s (%.3f: keyword %.2f, semantic %d%%)\n",
			i+1, r.ID, r.Score, r.KeywordScore, Percent(r.SemanticScore))
	}
	return nil
}

// WriteStatus writes a status report.
func WriteStatus(w io.Writer, st *related.Status, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, st)
	}
	fmt.Fprintf(w, "Notes directory: %s\n", st.NotesDir)
	if st.StorePath != "" {
		fmt.Fprintf(w, "Embedding store: %s (%s)\n", st.StorePath, FormatBytes(st.StoreBytes))
	}
	fmt.Fprintf(w, "Notes:           %d (%s)\n", st.Notes, FormatBytes(st.NotesBytes))
	fmt.Fprintf(w, "Embeddings:      %d\n", st.Embeddings)
	if st.Dimensions > 0 {
		fmt.Fprintf(w, "Dimensions:      %d\n", st.Dimensions)
	}
	if len(st.Missing) > 0 {
		fmt.Fprintf(w, "Not embedded:    %d (run \"kioku reindex\")\n", len(st.Missing))
	}
	if len(st.Stale) > 0 {
		fmt.Fprintf(w, "Stale entries:   %d (run \"kioku prune\")\n", len(st.Stale))
	}
	return nil
}

// FormatBytes renders n in B, KB or MB.
func FormatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
