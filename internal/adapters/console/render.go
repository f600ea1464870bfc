package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/PabloGalante/farum-chat/internal/domain"
)

var (
	userLabel      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2196F3"))
	assistantLabel = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935"))
	mutedStyle     = lipgloss.NewStyle().Faint(true)
)

func label(role domain.Role) string {
	switch role {
	case domain.RoleUser:
		return userLabel.Render("you")
	case domain.RoleAssistant:
		return assistantLabel.Render("assistant")
	default:
		return mutedStyle.Render(string(role))
	}
}

// renderMessage prints one renderable message; tool plumbing is skipped.
func renderMessage(w io.Writer, m domain.Message) {
	if !m.IsRenderable() {
		return
	}
	text := strings.TrimSpace(m.Text)
	if text == "" {
		for _, c := range m.Contents {
			switch c.Type {
			case domain.ContentText:
				text = strings.TrimSpace(c.Text)
			case domain.ContentData:
				text = fmt.Sprintf("[%s attachment, %d bytes]", c.MIMEType, len(c.Data))
			}
			if text != "" {
				break
			}
		}
	}
	fmt.Fprintf(w, "%s: %s\n", label(m.Role), text)
}

func renderError(w io.Writer, err error) {
	fmt.Fprintln(w, errorStyle.Render("error: "+err.Error()))
}

func renderThreads(w io.Writer, threads []domain.ThreadSummary) {
	fmt.Fprintln(w)
	if len(threads) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no conversations yet"))
	}
	for i, t := range threads {
		title := t.Title
		if title == "" {
			title = string(t.ThreadID)
		}
		fmt.Fprintf(w, "%2d) %s %s\n", i+1, title, mutedStyle.Render(t.CreatedAt.Local().Format("2006-01-02 15:04")))
	}
	fmt.Fprintln(w, " n) new conversation")
	fmt.Fprintln(w, " q) quit")
}
