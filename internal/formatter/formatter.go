// package formatter exports the derived track list of a playlist to CSV, Markdown, plain text and JSON
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
	"time"

	"github.com/desertthunder/pureplaylist/internal/models"
	"github.com/desertthunder/pureplaylist/internal/shared"
)

// Format names accepted by [Export].
const (
	FormatText     = "text"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// TrackExport is a playlist plus its tracks in display order.
type TrackExport struct {
	Playlist models.Playlist         `json:"playlist"`
	Tracks   []models.AnnotatedTrack `json:"tracks"`
	// Features adds audio feature columns to CSV and text output.
	Features bool `json:"-"`
	// Filter is recorded in Markdown and text headers when not empty.
	Filter models.FilterCriteria `json:"filter,omitzero"`
	Sort   models.SortSpec       `json:"sort"`
}

// Export renders export in the named format.
func Export(export *TrackExport, format string) ([]byte, error) {
	switch format {
	case FormatText, "":
		return ExportToText(export)
	case FormatCSV:
		return ExportToCSV(export)
	case FormatMarkdown, "md":
		return ExportToMarkdown(export, "")
	case FormatJSON:
		return ExportToJSON(export)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, format)
	}
}

// ExportToCSV writes one row per track: Position, Index, Title, Artists, Album, Released, Duration, URI, Filtered.
// Tempo, Energy and Danceability follow when export.Features is set.
func ExportToCSV(export *TrackExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Index", "Title", "Artists", "Album", "Released", "Duration", "URI", "Filtered"}
	if export.Features {
		headers = append(headers, "Tempo", "Energy", "Danceability")
	}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range export.Tracks {
		record := []string{
			strconv.Itoa(track.Position),
			strconv.Itoa(track.OriginalIndex),
			track.Title,
			track.ArtistLine(),
			track.Album,
			releaseDate(track.ReleaseDate),
			shared.FormatDuration(track.DurationMS),
			track.URI,
			strconv.FormatBool(track.IsFiltered),
		}
		if export.Features {
			record = append(record, featureColumns(track.Features)...)
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

// ExportToMarkdown renders the playlist as a numbered list with an optional cover image.
func ExportToMarkdown(export *TrackExport, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", export.Playlist.Name)

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	if export.Playlist.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", export.Playlist.Description)
	}

	fmt.Fprintf(&buf, "**Owner**: %s\n", ownerName(export.Playlist))
	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(export.Tracks))
	fmt.Fprintf(&buf, "**Visibility**: %s\n", shared.VisibilityString(export.Playlist.Public))
	fmt.Fprintf(&buf, "**Sort**: %s\n", export.Sort)
	if !export.Filter.IsEmpty() {
		fmt.Fprintf(&buf, "**Filter**: %s\n", export.Filter)
	}
	buf.WriteString("\n## Tracks\n\n")

	for _, track := range export.Tracks {
		albumPart := ""
		if track.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		title := track.Title
		if track.IsFiltered {
			title = "**" + title + "**"
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%s]\n", track.Position, track.ArtistLine(), title, albumPart,
			shared.FormatDuration(track.DurationMS))
	}

	return buf.Bytes(), nil
}

// ExportToText renders a plain listing. Filtered rows are prefixed with an asterisk.
func ExportToText(export *TrackExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", export.Playlist.Name)
	if export.Playlist.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", export.Playlist.Description)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n", len(export.Tracks))
	if !export.Filter.IsEmpty() {
		fmt.Fprintf(&buf, "Filter: %s\n", export.Filter)
	}
	buf.WriteString("\n")

	for _, track := range export.Tracks {
		mark := " "
		if track.IsFiltered {
			mark = "*"
		}
		fmt.Fprintf(&buf, "%s%d. %s - %s", mark, track.Position, track.ArtistLine(), track.Title)
		if export.Features {
			if track.Features != nil {
				fmt.Fprintf(&buf, " [%.0f BPM]", track.Features.Tempo)
			} else {
				buf.WriteString(" [- BPM]")
			}
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToJSON renders the playlist and tracks as indented JSON.
func ExportToJSON(export *TrackExport) ([]byte, error) {
	return shared.MarshalJSON(export, true)
}

// ToMetadataJSON generates a JSON representation of playlist metadata (without tracks)
func ToMetadataJSON(playlist models.Playlist) ([]byte, error) {
	return shared.MarshalJSON(playlist, true)
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
	TracksFile   string
	MetadataFile string
}

// WriteCSVExport exports a playlist to CSV format with accompanying metadata JSON file.
//
// Defaults to playlist ID as the base filename & creates {base}_tracks.csv and {base}_metadata.json
func WriteCSVExport(export *TrackExport, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = export.Playlist.ID
	}

	csvData, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(export.Playlist)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		TracksFile:   tracksFile,
		MetadataFile: metadataFile,
	}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteMarkdownExport exports a playlist to Markdown in a dedicated directory.
//
// Directory name defaults to the playlist ID. When the playlist has an ImageURL the cover is downloaded
// next to the README; a failed download is logged and skipped.
func WriteMarkdownExport(export *TrackExport, outputDir string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = export.Playlist.ID
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var coverImageFilename string
	if imageURL := export.Playlist.ImageURL; imageURL != "" {
		logger := shared.NewLogger(os.Stderr)
		imageData, err := DownloadImage(imageURL)
		if err != nil {
			logger.Warn("failed to download cover image", "url", imageURL, "error", err)
		} else {
			coverImageFilename = "cover.jpg"
			coverImagePath := filepath.Join(outputDir, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				logger.Warn("failed to save cover image", "path", coverImagePath, "error", err)
				coverImageFilename = ""
			} else {
				result.CoverImage = coverImagePath
				result.Files = append(result.Files, coverImagePath)
			}
		}
	}

	mdData, err := ExportToMarkdown(export, coverImageFilename)
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

// WriteTextExport exports a playlist to plain text format.
//
// Defaults to {playlist.ID}_tracks.txt as the filename.
func WriteTextExport(export *TrackExport, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_tracks.txt", export.Playlist.ID)
	}

	textData, err := ExportToText(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}

// WriteJSONExport exports a playlist to JSON. Defaults to {playlist.ID}.json.
func WriteJSONExport(export *TrackExport, path string) (string, error) {
	if path == "" {
		path = export.Playlist.ID + ".json"
	}

	data, err := ExportToJSON(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate JSON: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write JSON file: %w", err)
	}

	return path, nil
}

// WriteExport writes export in the named format to path and returns the files created.
func WriteExport(export *TrackExport, format, path string) ([]string, error) {
	switch format {
	case FormatText, "":
		f, err := WriteTextExport(export, path)
		return []string{f}, err
	case FormatCSV:
		res, err := WriteCSVExport(export, path)
		if err != nil {
			return nil, err
		}
		return []string{res.TracksFile, res.MetadataFile}, nil
	case FormatMarkdown, "md":
		res, err := WriteMarkdownExport(export, path)
		if err != nil {
			return nil, err
		}
		return res.Files, nil
	case FormatJSON:
		f, err := WriteJSONExport(export, path)
		return []string{f}, err
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, format)
	}
}

func releaseDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func ownerName(p models.Playlist) string {
	if p.OwnerName != "" {
		return p.OwnerName
	}
	return p.OwnerID
}

func featureColumns(f *models.AudioFeatures) []string {
	if f == nil {
		return []string{"", "", ""}
	}
	return []string{
		strconv.FormatFloat(f.Tempo, 'f', 1, 64),
		strconv.FormatFloat(f.Energy, 'f', 3, 64),
		strconv.FormatFloat(f.Danceability, 'f', 3, 64),
	}
}
