package tui

import (
	"fmt"
	"strings"

	"gdrive-transfer/transfer"
)

// AuthBanner renders the authorization URL for the loopback flow.
func AuthBanner(authURL string) string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("Authorization required"))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render("Please visit this URL to authorize this application:"))
	s.WriteString("\n")
	s.WriteString(URLStyle.Render(authURL))
	s.WriteString("\n")
	s.WriteString(HelpStyle.Render("Waiting for the browser redirect... (Ctrl+C to abort)"))

	return BoxStyle.Render(s.String())
}

// Outcome renders the result of a finished transfer.
func Outcome(o *transfer.Outcome) string {
	var s strings.Builder

	switch o.Direction {
	case transfer.DirectionUpload:
		s.WriteString(SuccessStyle.Render(fmt.Sprintf("uploaded %s (%s)", o.LocalPath, formatSize(o.Bytes))))
		s.WriteString("\n")
		s.WriteString(LabelStyle.Render("view"))
		s.WriteString(URLStyle.Render(o.ViewURL))
	default:
		s.WriteString(SuccessStyle.Render(fmt.Sprintf("wrote %s (%s)", o.LocalPath, formatSize(o.Bytes))))
		if o.Bytes == 0 {
			s.WriteString("\n")
			s.WriteString(WarningStyle.Render("the export was empty"))
		}
	}
	s.WriteString("\n")
	s.WriteString(LabelStyle.Render("type"))
	s.WriteString(DimStyle.Render(o.MimeType))

	return s.String()
}

// Error renders a fatal error line.
func Error(err error) string {
	return ErrorStyle.Render("Error:") + " " + err.Error()
}

// Formats renders the supported format tags of both kinds.
func Formats(tables transfer.Tables) string {
	var s strings.Builder

	for i, kind := range []transfer.Kind{transfer.KindSheet, transfer.KindDocument} {
		if i > 0 {
			s.WriteString("\n\n")
		}

		table := tables.For(kind)
		s.WriteString(TitleStyle.Render(kind.String()))
		for _, tag := range table.Tags() {
			s.WriteString("\n")
			s.WriteString(LabelStyle.Render(tag))
			s.WriteString(DimStyle.Render(table[tag]))
		}
	}

	return s.String()
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
