// package formatter provides functions to export wraps to various formats (JSON, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/wrapped/internal/models"
	"github.com/desertthunder/wrapped/internal/shared"
)

// Format is an export format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
)

// Formats lists the supported export formats.
var Formats = []Format{FormatJSON, FormatCSV, FormatMarkdown, FormatText}

const dateLayout = "2006-01-02 15:04"

// ParseFormat returns the format named s. An empty string selects JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q (want json, csv, markdown or txt)", shared.ErrInvalidArgument, s)
	}
}

// Extension returns the file extension for f, without the dot.
func (f Format) Extension() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatText:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

// Filename returns the default file name for w exported as f, e.g. wrap_3_1-month.csv
func Filename(w *models.Wrap, f Format) string {
	return fmt.Sprintf("wrap_%d_%s.%s", w.Sequence(), slugify(w.Length()), f.Extension())
}

// slugify lowercases s and keeps only [a-z0-9-], so the result is always a single path element.
func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
		} else if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}

	slug := strings.TrimRight(b.String(), "-")
	if slug == "" {
		return "wrap"
	}
	return slug
}

// Export renders w in format f.
func Export(w *models.Wrap, f Format) ([]byte, error) {
	switch f {
	case FormatCSV:
		return ExportToCSV(w)
	case FormatMarkdown:
		return ExportToMarkdown(w)
	case FormatText:
		return ExportToText(w)
	case FormatJSON:
		return ExportToJSON(w)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, f)
	}
}

// ExportToJSON renders the wrap as indented JSON.
func ExportToJSON(w *models.Wrap) ([]byte, error) {
	return shared.MarshalJSON(w, true)
}

// ExportToCSV converts a wrap to CSV rows with columns: section, rank, value
//
// Lists are ranked from 1. Counts and descriptions have an empty rank.
func ExportToCSV(w *models.Wrap) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	stats := w.Stats()
	records := [][]string{{"section", "rank", "value"}}
	records = append(records, rankedRows("top_song", stats.TopSongs)...)
	records = append(records, rankedRows("top_artist", stats.TopArtists)...)
	records = append(records, rankedRows("top_genre", stats.TopGenres)...)
	for i, rt := range stats.RecentTracks {
		records = append(records, []string{"recent_track", strconv.Itoa(i + 1), recentLine(rt)})
	}
	records = append(records,
		[]string{"num_distinct_artists", "", strconv.Itoa(stats.NumDistinctArtists)},
		[]string{"num_genres", "", strconv.Itoa(stats.NumGenres)},
	)
	for _, lang := range models.Languages {
		if d := w.Description(lang); d != "" {
			records = append(records, []string{"description_" + string(lang), "", d})
		}
	}

	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

func rankedRows(section string, items []string) [][]string {
	rows := make([][]string, 0, len(items))
	for i, item := range items {
		rows = append(rows, []string{section, strconv.Itoa(i + 1), item})
	}
	return rows
}

func recentLine(rt models.RecentTrack) string {
	if rt.Artist == "" {
		return rt.Name
	}
	return rt.Artist + " - " + rt.Name
}

// ExportToMarkdown converts a wrap to a Markdown document. Empty lists use the same fallback lines as the slides.
func ExportToMarkdown(w *models.Wrap) ([]byte, error) {
	var buf bytes.Buffer
	stats := w.Stats()

	fmt.Fprintf(&buf, "# Your %s Wrapped\n\n", w.Length())
	fmt.Fprintf(&buf, "**Created**: %s\n", w.CreatedAt().Format(dateLayout))
	fmt.Fprintf(&buf, "**Distinct Artists**: %d\n", stats.NumDistinctArtists)
	fmt.Fprintf(&buf, "**Genres**: %d\n\n", stats.NumGenres)

	writeMarkdownList(&buf, "Top Songs", stats.TopSongs, models.FallbackSongs)
	writeMarkdownList(&buf, "Top Artists", stats.TopArtists, models.FallbackRestricted)
	writeMarkdownList(&buf, "Top Genres", stats.TopGenres, models.FallbackRestricted)

	if len(stats.RecentTracks) > 0 {
		buf.WriteString("## Recently Played\n\n")
		for _, rt := range stats.RecentTracks {
			fmt.Fprintf(&buf, "- %s\n", recentLine(rt))
		}
		buf.WriteString("\n")
	}

	for _, lang := range models.Languages {
		if d := w.Description(lang); d != "" {
			fmt.Fprintf(&buf, "## About You (%s)\n\n%s\n\n", lang.Name(), d)
		}
	}
	return append(bytes.TrimRight(buf.Bytes(), "\n"), '\n'), nil
}

func writeMarkdownList(buf *bytes.Buffer, title string, items []string, fallback string) {
	fmt.Fprintf(buf, "## %s\n\n", title)
	if len(items) == 0 {
		fmt.Fprintf(buf, "_%s_\n\n", fallback)
		return
	}
	for i, item := range items {
		fmt.Fprintf(buf, "%d. %s\n", i+1, item)
	}
	buf.WriteString("\n")
}

// ExportToText converts a wrap to plain text format
func ExportToText(w *models.Wrap) ([]byte, error) {
	var buf bytes.Buffer
	stats := w.Stats()

	fmt.Fprintf(&buf, "Wrap: %s (%s)\n", w.Length(), w.CreatedAt().Format(dateLayout))
	fmt.Fprintf(&buf, "Distinct artists: %d\n", stats.NumDistinctArtists)
	fmt.Fprintf(&buf, "Genres: %d\n\n", stats.NumGenres)

	writeTextList(&buf, "Top songs", stats.TopSongs)
	writeTextList(&buf, "Top artists", stats.TopArtists)
	writeTextList(&buf, "Top genres", stats.TopGenres)

	if d := w.Description(models.English); d != "" {
		fmt.Fprintf(&buf, "%s\n", d)
	}
	return buf.Bytes(), nil
}

func writeTextList(buf *bytes.Buffer, title string, items []string) {
	fmt.Fprintf(buf, "%s:\n", title)
	if len(items) == 0 {
		buf.WriteString("  (none)\n\n")
		return
	}
	for i, item := range items {
		fmt.Fprintf(buf, "  %d. %s\n", i+1, item)
	}
	buf.WriteString("\n")
}

// WriteExport writes w in format f to path. An empty path uses [Filename] in the current directory;
// a directory path places [Filename] inside it.
func WriteExport(w *models.Wrap, f Format, path string) (string, error) {
	if path == "" {
		path = Filename(w, f)
	} else if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, Filename(w, f))
	}

	data, err := Export(w, f)
	if err != nil {
		return "", fmt.Errorf("failed to render %s export: %w", f, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// ManifestEntry records the outcome of exporting one wrap.
type ManifestEntry struct {
	WrapID string `json:"wrap_id"`
	Length string `json:"length"`
	File   string `json:"file,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Manifest summarizes a bulk export.
type Manifest struct {
	ExportedAt time.Time       `json:"exported_at"`
	ProfileID  string          `json:"profile_id"`
	Format     Format          `json:"format"`
	Total      int             `json:"total"`
	Succeeded  int             `json:"succeeded"`
	Failed     int             `json:"failed"`
	Entries    []ManifestEntry `json:"entries"`
}

// WriteManifest writes m as indented JSON to path.
func WriteManifest(m *Manifest, path string) error {
	data, err := shared.MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
