package console

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/cosmonauts/whalewatching/pkg/types"
)

// Printer writes progress lines and result tables for humans. Colors are
// dropped automatically when w is not a terminal.
type Printer struct {
	mu sync.Mutex
	w  io.Writer

	box    lipgloss.Style
	header lipgloss.Style
	muted  lipgloss.Style
	ok     lipgloss.Style
	fail   lipgloss.Style
}

func New(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w: w,
		box: r.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1),
		header: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		muted:  r.NewStyle().Foreground(lipgloss.Color("8")),
		ok:     r.NewStyle().Foreground(lipgloss.Color("10")),
		fail:   r.NewStyle().Foreground(lipgloss.Color("9")),
	}
}

// Start prints the progress line for a collection about to be resolved.
func (p *Printer) Start(c types.Collection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "\t Getting all %s holders ...\n", c.Name)
}

// Done closes the progress line opened by Start.
func (p *Printer) Done(c types.Collection, s types.CollectionSummary, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	secs := s.Elapsed.Seconds()
	if err != nil {
		fmt.Fprintf(p.w, "\t ... %s (%.2f s): %v\n\n", p.fail.Render("failed"), secs, err)
		return
	}
	fmt.Fprintf(p.w, "\t ... %s (%.2f s)\n", p.ok.Render("done"), secs)
	fmt.Fprintln(p.w, p.muted.Render(fmt.Sprintf("\t     %d minted, %d holders", s.Minted, s.Holders)))
	fmt.Fprintln(p.w)
}

// Leaderboard prints the first top rows of rep in a box. top <= 0 prints
// every row.
func (p *Printer) Leaderboard(rep *types.Report, top int) {
	rows := rep.Rows
	if top > 0 && top < len(rows) {
		rows = rows[:top]
	}
	addrWidth := len("Address")
	for _, r := range rows {
		if len(r.Address) > addrWidth {
			addrWidth = len(r.Address)
		}
	}

	var sb strings.Builder
	sb.WriteString(p.header.Render(fmt.Sprintf("Leaderboard @ height %d", rep.Height)))
	sb.WriteString("\n")
	sb.WriteString(p.muted.Render(fmt.Sprintf("%4s  %-*s  %9s  %8s", "Rank", addrWidth, "Address", "Weight", "Share")))
	for _, r := range rows {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "%4d  %-*s  %9.4f  %7.3f%%", r.Rank, addrWidth, r.Address, r.Weight, r.WeightPerc)
	}
	sb.WriteString("\n")
	footer := fmt.Sprintf("%d addresses, total weight %.4f", len(rep.Rows), rep.TotalWeight)
	if len(rows) < len(rep.Rows) {
		footer = fmt.Sprintf("top %d of ", len(rows)) + footer
	}
	sb.WriteString(p.muted.Render(footer))

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, p.box.Render(sb.String()))
}

// Holders prints per-address token counts, largest holders first.
func (p *Printer) Holders(name string, counts types.HolderCount, top int) {
	type entry struct {
		addr string
		n    int
	}
	entries := make([]entry, 0, len(counts))
	for a, n := range counts {
		entries = append(entries, entry{a, n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].n != entries[j].n {
			return entries[i].n > entries[j].n
		}
		return entries[i].addr < entries[j].addr
	})
	shown := entries
	if top > 0 && top < len(shown) {
		shown = shown[:top]
	}

	var sb strings.Builder
	sb.WriteString(p.header.Render(fmt.Sprintf("%s holders", name)))
	for _, e := range shown {
		fmt.Fprintf(&sb, "\n%6d  %s", e.n, e.addr)
	}
	sb.WriteString("\n")
	sb.WriteString(p.muted.Render(fmt.Sprintf("%d holders, %d tokens", len(counts), counts.Total())))

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, p.box.Render(sb.String()))
}
