package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/wesm/projectsview/internal/correlate"
	"github.com/wesm/projectsview/internal/parser"
)

// Display limits for console listings.
const (
	maxNameWidth     = 33
	maxTitleWidth    = 50
	maxContentChars  = 500
	maxContentLines  = 20
	ruleWidth        = 80
	truncatedSuffix  = "... [truncated]"
	noConversations  = "  (no conversations found in export)"
	largeExportAlert = "Exporting with full messages " +
		"(this may take a while and produce a large file)..."
)

// styles renders against the destination writer so that
// redirected output carries no escape sequences.
type styles struct {
	header lipgloss.Style
	rule   lipgloss.Style
	hint   lipgloss.Style
	role   lipgloss.Style
	left   func(width int) lipgloss.Style
	right  func(width int) lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		header: r.NewStyle().Bold(true),
		rule:   r.NewStyle().Foreground(lipgloss.Color("#6C6C6C")),
		hint:   r.NewStyle().Foreground(lipgloss.Color("#6C6C6C")).Italic(true),
		role:   r.NewStyle().Foreground(lipgloss.Color("#5FAFD7")),
		left: func(width int) lipgloss.Style {
			return r.NewStyle().Width(width)
		},
		right: func(width int) lipgloss.Style {
			return r.NewStyle().Width(width).Align(lipgloss.Right)
		},
	}
}

func (s styles) ruleLine() string {
	return s.rule.Render(strings.Repeat("-", ruleWidth))
}

// WriteProjectTable prints ranked project statistics followed by
// a totals line.
func WriteProjectTable(
	w io.Writer, stats []correlate.ProjectStats,
	totals correlate.Totals, loc *time.Location,
) {
	st := newStyles(w)
	fmt.Fprintln(w, st.header.Render(strings.Join([]string{
		st.left(35).Render("Project Name"),
		st.right(6).Render("Convs"),
		st.right(12).Render("Interactions"),
		st.right(12).Render("First"),
		st.right(12).Render("Last"),
	}, " ")))
	fmt.Fprintln(w, st.ruleLine())
	for _, s := range stats {
		fmt.Fprintln(w, strings.Join([]string{
			st.left(35).Render(clipRunes(s.Project.DisplayName(), maxNameWidth)),
			st.right(6).Render(fmt.Sprint(s.ConversationCount)),
			st.right(12).Render(fmt.Sprint(s.Project.Interactions())),
			st.right(12).Render(s.FirstActivity.FormatDate(loc)),
			st.right(12).Render(s.LastActivity.FormatDate(loc)),
		}, " "))
	}
	fmt.Fprintln(w, st.ruleLine())
	fmt.Fprintf(w,
		"Total: %d projects, %d project conversations, "+
			"%d non-project conversations\n",
		totals.Projects, totals.ProjectConversations,
		totals.NonProjectConversations,
	)
}

// WriteConversationList prints a project header and its
// conversations. With messages, each conversation's reconstructed
// messages follow, clipped for display.
func WriteConversationList(
	w io.Writer, p parser.Project, convs []parser.Conversation,
	opts Options, loc *time.Location,
) {
	st := newStyles(w)
	memory := parser.NotAvailable
	if p.MemoryScope != nil {
		memory = *p.MemoryScope
	}
	fmt.Fprintln(w, st.header.Render("Project: "+p.DisplayName()))
	fmt.Fprintf(w, "ID: %s\n", p.ProjectID)
	fmt.Fprintf(w, "Created: %s\n", p.CreatedAt.FormatDate(loc))
	fmt.Fprintf(w, "Interactions: %d\n", p.Interactions())
	fmt.Fprintf(w, "Memory: %s\n", memory)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Conversations (%d):\n", len(convs))
	fmt.Fprintln(w, st.ruleLine())

	if len(convs) == 0 {
		fmt.Fprintln(w, st.hint.Render(noConversations))
		return
	}
	for _, c := range convs {
		fmt.Fprintf(w, "  %s %4d msgs  %s\n",
			st.left(maxTitleWidth).Render(
				clipRunes(c.DisplayTitle(), maxTitleWidth),
			),
			c.Mapping.Len(),
			c.UpdateTime.FormatMinute(loc),
		)
		fmt.Fprintf(w, "    ID: %s\n", clipRunes(c.ID, 36))
		if !opts.WithMessages {
			continue
		}
		fmt.Fprintln(w)
		for _, m := range parser.Reconstruct(c.Mapping, opts.Policy) {
			writeMessage(w, st, m)
		}
		fmt.Fprintln(w, st.ruleLine())
	}
}

func writeMessage(w io.Writer, st styles, m parser.Message) {
	content := m.Content
	if r := []rune(content); len(r) > maxContentChars {
		content = string(r[:maxContentChars]) + truncatedSuffix
	}
	lines := strings.Split(content, "\n")
	fmt.Fprintf(w, "      %s\n",
		st.role.Render("["+strings.ToUpper(string(m.Role))+"]"))
	for _, line := range lines[:min(len(lines), maxContentLines)] {
		fmt.Fprintf(w, "        %s\n", line)
	}
	if len(lines) > maxContentLines {
		fmt.Fprintf(w, "        ... [%d more lines]\n",
			len(lines)-maxContentLines)
	}
	fmt.Fprintln(w)
}

// WriteNotFound prints guidance for a project query that matched
// nothing: the first candidates and how many more exist.
func WriteNotFound(w io.Writer, err *correlate.NotFoundError) {
	fmt.Fprintf(w, "Error: Project '%s' not found.\n", err.Query)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Available projects:")
	for _, p := range err.Candidates {
		fmt.Fprintf(w, "  - %s [%s]\n", p.DisplayName(), p.ProjectID)
	}
	if more := err.Total - len(err.Candidates); more > 0 {
		fmt.Fprintf(w, "  ... and %d more\n", more)
	}
}

// WriteLargeExportNotice warns that a full-message export may be
// slow and large.
func WriteLargeExportNotice(w io.Writer) {
	fmt.Fprintln(w, newStyles(w).hint.Render(largeExportAlert))
}

// WriteExportSummary prints the result of the export command.
func WriteExportSummary(
	w io.Writer, path string, size int64, doc *FullExport, withSize bool,
) {
	fmt.Fprintf(w, "Exported to: %s\n", path)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Summary:")
	fmt.Fprintf(w, "  Projects: %d\n", doc.Summary.Projects)
	fmt.Fprintf(w, "  Project conversations: %d\n",
		doc.Summary.ProjectConversations)
	fmt.Fprintf(w, "  Custom GPT conversations: %d\n",
		doc.NonProject.CustomGPT.Count)
	fmt.Fprintf(w, "  Regular conversations: %d\n",
		doc.NonProject.Regular.Count)
	if doc.Orphaned != nil {
		fmt.Fprintf(w, "  Orphaned project conversations: %d\n",
			doc.Orphaned.Count)
	}
	if doc.Unlinked != nil {
		fmt.Fprintf(w, "  Unlinked gizmo conversations: %d\n",
			doc.Unlinked.Count)
	}
	if withSize {
		fmt.Fprintf(w, "  File size: %s\n", FormatSize(size))
	}
}

// WriteProjectExportSummary prints the result of export-project.
func WriteProjectExportSummary(
	w io.Writer, path string, size int64, doc *ProjectExport,
) {
	fmt.Fprintf(w, "Exporting project: %s\n", doc.Project.Name)
	fmt.Fprintf(w, "Conversations: %d\n", doc.ConversationCount)
	fmt.Fprintf(w, "Exported to: %s (%s)\n", path, FormatSize(size))
}

// WriteNonProjectExportSummary prints the result of
// export-non-project.
func WriteNonProjectExportSummary(
	w io.Writer, path string, size int64, doc *NonProjectExport,
) {
	fmt.Fprintf(w, "Exported to: %s (%s)\n", path, FormatSize(size))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Summary:")
	fmt.Fprintf(w, "  Custom GPT conversations: %d\n",
		doc.Summary.CustomGPT)
	fmt.Fprintf(w, "  Regular conversations: %d\n", doc.Summary.Regular)
	if doc.Unlinked != nil {
		fmt.Fprintf(w, "  Unlinked gizmo conversations: %d\n",
			doc.Unlinked.Count)
	}
	fmt.Fprintf(w, "  Total: %d non-project conversations\n",
		doc.Summary.Total)
}

// FormatSize renders a byte count in IEC units, e.g. "1.5 MiB".
func FormatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

func clipRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
