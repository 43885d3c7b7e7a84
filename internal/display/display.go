// Package display provides terminal formatting for taskeroo output.
package display

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/emersion/go-message/mail"

	"github.com/taskeroo/taskeroo/internal/types"
)

var (
	// Styles
	Muted    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	Dim      = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))
	Bold     = lipgloss.NewStyle().Bold(true)
	Success  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	ErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))

	HighStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	MediumStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706"))
	LowStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
	ManualStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2563eb"))
)

// ConfidenceDot returns a colored dot for a confidence score in [0,1].
func ConfidenceDot(score float64) string {
	switch {
	case score >= 0.6:
		return HighStyle.Render("●")
	case score >= 0.3:
		return MediumStyle.Render("○")
	case score > 0:
		return LowStyle.Render("○")
	default:
		return Dim.Render("·")
	}
}

// Confidence formats a score as a percentage.
func Confidence(score float64) string {
	return fmt.Sprintf("%3.0f%%", score*100)
}

// CategoryBadge renders the effective category of e. A reviewer override is
// marked with a trailing asterisk.
func CategoryBadge(e *types.Email) string {
	cat := e.EffectiveCategory()
	if e.IsManual && e.ManuallyUpdatedCategory != "" {
		return ManualStyle.Render(cat + "*")
	}
	return Bold.Render(cat)
}

// EmailRow prints a one-line listing of e.
func EmailRow(w io.Writer, e *types.Email) {
	mark := " "
	if !e.Reviewed {
		mark = Dim.Render("•")
	}
	fmt.Fprintf(w, "%s %s %s  %s  %s  %s\n",
		mark,
		ConfidenceDot(e.ConfidenceScore),
		Muted.Render(fmt.Sprintf("%-16s", Truncate(e.ID, 16))),
		CategoryBadge(e),
		Truncate(e.Subject, 60),
		Dim.Render(SenderName(e.SenderEmail)),
	)
}

// EmailDetail prints every field a reviewer needs to judge e.
func EmailDetail(w io.Writer, e *types.Email) {
	fmt.Fprintln(w, Bold.Render(e.Subject))
	fmt.Fprintf(w, "  %s %s\n", Muted.Render("From:      "), e.SenderEmail)
	fmt.Fprintf(w, "  %s %s  %s\n", Muted.Render("Received:  "), e.Date, Dim.Render(TimeAgo(e.ReceivedTime)))
	fmt.Fprintf(w, "  %s %s %s %s\n", Muted.Render("Category:  "), CategoryBadge(e), ConfidenceDot(e.ConfidenceScore), Confidence(e.ConfidenceScore))
	if len(e.SecondaryCategories) > 0 {
		fmt.Fprintf(w, "  %s %s\n", Muted.Render("Also:      "), strings.Join(e.SecondaryCategories, ", "))
	}
	if len(e.LabelIDs) > 0 {
		fmt.Fprintf(w, "  %s %s\n", Muted.Render("Labels:    "), Dim.Render(strings.Join(e.LabelIDs, " ")))
	}
	if e.UserTags != "" {
		fmt.Fprintf(w, "  %s %s\n", Muted.Render("Tags:      "), e.UserTags)
	}
	if e.UserFeedback != "" {
		fmt.Fprintf(w, "  %s %s\n", Muted.Render("Feedback:  "), e.UserFeedback)
	}

	body := strings.TrimSpace(e.EmailBody)
	if body == "" {
		body = e.Snippet
	}
	if body == "" {
		return
	}
	fmt.Fprintln(w)
	lines := strings.Split(body, "\n")
	const maxLines = 8
	for i, line := range lines {
		if i >= maxLines {
			fmt.Fprintf(w, "  %s\n", Dim.Render(fmt.Sprintf("... (%d more lines)", len(lines)-maxLines)))
			break
		}
		fmt.Fprintf(w, "  %s %s\n", Muted.Render("│"), Truncate(strings.TrimSpace(line), 100))
	}
}

// SenderName returns the display part of a From header, falling back to the
// address. "Ann <ann@example.com>" -> "Ann".
func SenderName(from string) string {
	from = strings.TrimSpace(from)
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return strings.Trim(from, "<>")
	}
	if addr.Name != "" {
		return addr.Name
	}
	return addr.Address
}

// TimeAgo formats an ISO date string as a relative time.
func TimeAgo(isoDate string) string {
	if isoDate == "" {
		return ""
	}

	var t time.Time
	var err error
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z", "2006-01-02 15:04:05", time.RFC3339Nano} {
		t, err = time.Parse(layout, isoDate)
		if err == nil {
			break
		}
	}
	if err != nil {
		return isoDate[:min(10, len(isoDate))]
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}

// Truncate shortens a string to maxLen runes, adding ellipsis if needed.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// SuccessMsg prints a green checkmark + message.
func SuccessMsg(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, Success.Render("✓")+" "+fmt.Sprintf(format, args...))
}

// ErrorMsg prints a red X + message.
func ErrorMsg(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, ErrStyle.Render("✗")+" "+fmt.Sprintf(format, args...))
}

// Header prints a section header.
func Header(w io.Writer, title string) {
	fmt.Fprintln(w, Bold.Render(title))
}

// SubHeader prints a dim subsection label.
func SubHeader(w io.Writer, title string) {
	fmt.Fprintln(w, Muted.Render(title))
}

// Bar renders a proportional bar of width cells for count out of total.
func Bar(count, total, width int) string {
	if total <= 0 || width <= 0 {
		return ""
	}
	n := count * width / total
	if n == 0 && count > 0 {
		n = 1
	}
	return Success.Render(strings.Repeat("█", n)) + Dim.Render(strings.Repeat("░", width-n))
}
