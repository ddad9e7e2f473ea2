package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo describes a mounted pack for `packctl inspect`.
type StatusInfo struct {
	SourcePath  string    `json:"source_path"`
	Version     int       `json:"version"`
	TotalBlocks int       `json:"total_blocks"`
	TotalTerms  int       `json:"total_terms"`
	AvgBlockLen float64   `json:"avg_block_len"`
	BuildTag    string    `json:"build_tag,omitempty"`
	LastBuilt   time.Time `json:"last_built"`

	// Container size (bytes) on disk.
	PackSize int64 `json:"pack_size"`

	// Semantic section status.
	HasSemantic  bool   `json:"has_semantic"`
	SemanticDims int    `json:"semantic_dims,omitempty"`
	WatcherStatus string `json:"watcher_status"` // "running", "stopped", "n/a"
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out     io.Writer
	styles  Styles
	noColor bool
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:     out,
		styles:  GetStyles(noColor),
		noColor: noColor,
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	// Header
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Pack Status: "+info.SourcePath))

	// Pack stats
	_, _ = fmt.Fprintf(r.out, "  Version:      %d\n", info.Version)
	_, _ = fmt.Fprintf(r.out, "  Blocks:       %d\n", info.TotalBlocks)
	_, _ = fmt.Fprintf(r.out, "  Terms:        %d\n", info.TotalTerms)
	_, _ = fmt.Fprintf(r.out, "  Avg block len: %.1f\n", info.AvgBlockLen)
	if info.BuildTag != "" {
		_, _ = fmt.Fprintf(r.out, "  Build tag:    %s\n", info.BuildTag)
	}
	if !info.LastBuilt.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Last built:   %s\n", formatTime(info.LastBuilt))
	}
	_, _ = fmt.Fprintln(r.out)

	// Container size
	_, _ = fmt.Fprintf(r.out, "  Pack size: %s\n", FormatBytes(info.PackSize))
	_, _ = fmt.Fprintln(r.out)

	// Semantic section
	_, _ = fmt.Fprintln(r.out, "  Semantic:")
	_, _ = fmt.Fprintf(r.out, "    Present: %s\n", r.renderStatus(semanticStatus(info.HasSemantic)))
	if info.HasSemantic {
		_, _ = fmt.Fprintf(r.out, "    Dims:    %d\n", info.SemanticDims)
	}
	_, _ = fmt.Fprintln(r.out)

	// Watcher status
	if info.WatcherStatus != "" && info.WatcherStatus != "n/a" {
		_, _ = fmt.Fprintf(r.out, "  Watcher: %s\n", r.renderStatus(info.WatcherStatus))
	}

	return nil
}

// semanticStatus maps a bool to a status word recognized by renderStatus.
func semanticStatus(has bool) string {
	if has {
		return "ready"
	}
	return "offline"
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// renderStatus formats a status string with color.
func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "ready", "running":
		return r.styles.Success.Render(status)
	case "offline", "stopped":
		return r.styles.Warning.Render(status)
	case "error":
		return r.styles.Error.Render(status)
	default:
		return status
	}
}

// formatTime formats a time for display.
func formatTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
