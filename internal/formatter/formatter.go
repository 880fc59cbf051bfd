// package formatter exports movie lists and movie details to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/shared"
)

// Export formats.
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// ParseFormat normalizes a user-supplied format name.
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: format %q", shared.ErrInvalidArgument, s)
	}
}

// MovieList is a named set of movies, such as the catalog or a watchlist.
type MovieList struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Movies      []models.DisplayMovie `json:"movies"`
}

// MovieDetail is one movie with its reviews.
type MovieDetail struct {
	Movie   models.DisplayMovie `json:"movie"`
	Reviews []models.Review     `json:"reviews"`
}

// ExportToCSV converts a MovieList to CSV format with columns: ID, Title, Year, Genre, Rating, Duration, Director
func ExportToCSV(list *MovieList) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Year", "Genre", "Rating", "Duration", "Director"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, m := range list.Movies {
		record := []string{
			m.ID,
			m.Title,
			strconv.Itoa(m.Year),
			m.Genre,
			strconv.FormatFloat(m.Rating, 'f', 1, 64),
			m.Duration,
			m.Director,
		}
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

// ExportToMarkdown converts a MovieList to a Markdown table
func ExportToMarkdown(list *MovieList) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", list.Name)
	if list.Description != "" {
		fmt.Fprintf(&buf, "%s\n\n", list.Description)
	}
	fmt.Fprintf(&buf, "**Movies**: %d\n\n", len(list.Movies))

	if len(list.Movies) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("| # | Title | Year | Genre | Rating | Runtime |\n")
	buf.WriteString("|---|-------|------|-------|--------|---------|\n")
	for i, m := range list.Movies {
		fmt.Fprintf(&buf, "| %d | %s | %d | %s | %s | %s |\n",
			i+1, escapeCell(m.Title), m.Year, escapeCell(m.Genre), stars(m.Rating), m.Duration)
	}

	return buf.Bytes(), nil
}

// DetailToMarkdown renders a movie and its reviews, with an optional poster image
func DetailToMarkdown(detail *MovieDetail, posterFilename string) ([]byte, error) {
	var buf bytes.Buffer
	m := detail.Movie

	fmt.Fprintf(&buf, "# %s (%d)\n\n", m.Title, m.Year)
	if posterFilename != "" {
		fmt.Fprintf(&buf, "![Poster](%s)\n\n", posterFilename)
	}

	fmt.Fprintf(&buf, "**Rating**: %s\n", stars(m.Rating))
	fmt.Fprintf(&buf, "**Genre**: %s\n", m.Genre)
	fmt.Fprintf(&buf, "**Runtime**: %s\n", m.Duration)
	if m.Director != "" {
		fmt.Fprintf(&buf, "**Director**: %s\n", m.Director)
	}
	buf.WriteString("\n")

	if m.Description != "" {
		fmt.Fprintf(&buf, "%s\n\n", m.Description)
	}

	fmt.Fprintf(&buf, "## Reviews (%d)\n\n", len(detail.Reviews))
	for _, r := range detail.Reviews {
		fmt.Fprintf(&buf, "### %s %s\n\n", r.Username, strings.Repeat("★", r.Rating))
		fmt.Fprintf(&buf, "%s\n\n", r.Body)
		fmt.Fprintf(&buf, "_%s · %d found this helpful_\n\n", r.CreatedAt.Format(time.DateOnly), r.Helpful)
	}

	return buf.Bytes(), nil
}

// ExportToText converts a MovieList to plain text format
func ExportToText(list *MovieList) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s\n", list.Name)
	if list.Description != "" {
		fmt.Fprintf(&buf, "%s\n", list.Description)
	}
	fmt.Fprintf(&buf, "Movies: %d\n\n", len(list.Movies))

	for i, m := range list.Movies {
		fmt.Fprintf(&buf, "%d. %s (%d) - %.1f - %s\n", i+1, m.Title, m.Year, m.Rating, m.Duration)
	}

	return buf.Bytes(), nil
}

// ReviewsToCSV converts reviews to CSV format with columns: ID, Username, Rating, Helpful, Date, Review
func ReviewsToCSV(reviews []models.Review) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"ID", "Username", "Rating", "Helpful", "Date", "Review"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, r := range reviews {
		record := []string{
			r.ID,
			r.Username,
			strconv.Itoa(r.Rating),
			strconv.Itoa(r.Helpful),
			r.CreatedAt.Format(time.DateOnly),
			r.Body,
		}
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

// DetailToText renders a movie and its reviews as plain text
func DetailToText(detail *MovieDetail) ([]byte, error) {
	var buf bytes.Buffer
	m := detail.Movie

	fmt.Fprintf(&buf, "%s (%d)\n", m.Title, m.Year)
	fmt.Fprintf(&buf, "%s | %s | %.1f/5\n", m.Genre, m.Duration, m.Rating)
	if m.Director != "" {
		fmt.Fprintf(&buf, "Directed by %s\n", m.Director)
	}
	if m.Description != "" {
		fmt.Fprintf(&buf, "\n%s\n", m.Description)
	}

	fmt.Fprintf(&buf, "\nReviews: %d\n", len(detail.Reviews))
	for _, r := range detail.Reviews {
		fmt.Fprintf(&buf, "\n%s (%d/5, %d helpful)\n%s\n", r.Username, r.Rating, r.Helpful, r.Body)
	}

	return buf.Bytes(), nil
}

// ExportToJSON marshals v with indentation.
func ExportToJSON(v any) ([]byte, error) {
	return shared.MarshalJSON(v, true)
}

func stars(rating float64) string {
	return fmt.Sprintf("%.1f/5", rating)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	MoviesFile   string
	MetadataFile string
}

// WriteCSVExport exports a list to CSV format with accompanying metadata JSON file.
//
// Defaults to the list ID as the base filename & creates {base}_movies.csv and {base}_metadata.json
func WriteCSVExport(list *MovieList, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = list.ID
	}

	csvData, err := ExportToCSV(list)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	moviesFile := baseFilepath + "_movies.csv"
	if err := os.WriteFile(moviesFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	meta := struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		Count       int    `json:"count"`
	}{list.ID, list.Name, list.Description, len(list.Movies)}

	metadataJSON, err := shared.MarshalJSON(meta, true)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		MoviesFile:   moviesFile,
		MetadataFile: metadataFile,
	}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory string
	Files     []string
	Poster    string
}

// WriteMarkdownExport exports a movie and its reviews to a dedicated directory.
//
// Directory name defaults to the movie ID. When withPoster is set the poster is
// downloaded next to the README; a failed download only drops the image.
func WriteMarkdownExport(detail *MovieDetail, outputDir string, withPoster bool) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = detail.Movie.ID
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var posterFilename string
	if withPoster && detail.Movie.Poster != "" {
		if imageData, err := DownloadImage(detail.Movie.Poster); err == nil {
			posterPath := filepath.Join(outputDir, "poster.jpg")
			if err := os.WriteFile(posterPath, imageData, 0644); err == nil {
				posterFilename = "poster.jpg"
				result.Poster = posterPath
				result.Files = append(result.Files, posterPath)
			}
		}
	}

	mdData, err := DetailToMarkdown(detail, posterFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)
	return result, nil
}

// WriteTextExport exports a list to plain text format.
//
// Defaults to {list.ID}_movies.txt as the filename.
func WriteTextExport(list *MovieList, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_movies.txt", list.ID)
	}

	textData, err := ExportToText(list)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}

// WriteReviewsCSV writes reviews as CSV to path.
func WriteReviewsCSV(reviews []models.Review, path string) (string, error) {
	data, err := ReviewsToCSV(reviews)
	if err != nil {
		return "", fmt.Errorf("failed to generate CSV: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}
	return path, nil
}

// WriteDetailText writes a movie and its reviews as plain text to path.
func WriteDetailText(detail *MovieDetail, path string) (string, error) {
	data, err := DetailToText(detail)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}
	return path, nil
}

// WriteJSONExport writes v as indented JSON to path.
func WriteJSONExport(v any, path string) (string, error) {
	data, err := ExportToJSON(v)
	if err != nil {
		return "", fmt.Errorf("JSON marshal failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("JSON write failed: %w", err)
	}
	return path, nil
}

// ManifestEntry is the outcome of exporting one item.
type ManifestEntry struct {
	ID      string
	Name    string
	Success bool
	Files   []string
	Error   error
}

// Manifest summarizes a bulk export.
type Manifest struct {
	Total           int
	Successful      int
	Failed          int
	Entries         []ManifestEntry
	OutputDirectory string
}

type manifestEntryJSON struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Status string   `json:"status"`
	Files  []string `json:"files,omitempty"`
	Error  string   `json:"error,omitempty"`
}

type manifestJSON struct {
	Format     string              `json:"format"`
	ExportedAt time.Time           `json:"exported_at"`
	Directory  string              `json:"directory,omitempty"`
	Total      int                 `json:"total"`
	Successful int                 `json:"successful_exports"`
	Failed     int                 `json:"failed_exports"`
	Entries    []manifestEntryJSON `json:"entries"`
}

// WriteManifest writes a JSON summary of a bulk export to path.
func WriteManifest(m Manifest, format, path string) error {
	out := manifestJSON{
		Format:     format,
		ExportedAt: time.Now().UTC(),
		Directory:  m.OutputDirectory,
		Total:      m.Total,
		Successful: m.Successful,
		Failed:     m.Failed,
		Entries:    make([]manifestEntryJSON, 0, len(m.Entries)),
	}
	for _, e := range m.Entries {
		entry := manifestEntryJSON{ID: e.ID, Name: e.Name, Status: "success", Files: e.Files}
		if !e.Success {
			entry.Status = "failed"
		}
		if e.Error != nil {
			entry.Error = e.Error.Error()
		}
		out.Entries = append(out.Entries, entry)
	}

	if _, err := WriteJSONExport(out, path); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
