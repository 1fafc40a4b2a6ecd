// Package console renders a live terminal view of a download session and
// relays the two keyboard actions (toggle-pause, cancel) to its control
// plane. The download core has no dependency on this package; it consumes the
// session's snapshot accessor and log buffer only.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/parget/parget/pkg/download"
	"github.com/parget/parget/pkg/logging"
)

const (
	defaultInterval = 500 * time.Millisecond
	defaultWidth    = 80
	logTailLines    = 8
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	urlStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	destStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	barStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	barBgStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	pausedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	failStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	okStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
)

type UI struct {
	session  *download.Session
	logs     *logging.Buffer
	logger   zerolog.Logger
	out      io.Writer
	in       *os.File
	interval time.Duration
}

func New(session *download.Session, logs *logging.Buffer, logger zerolog.Logger) *UI {
	return &UI{
		session:  session,
		logs:     logs,
		logger:   logger,
		out:      os.Stdout,
		in:       os.Stdin,
		interval: defaultInterval,
	}
}

// Run redraws the session view on a fixed interval until the session reaches
// a terminal state or ctx is cancelled. While running, stdin is in raw mode
// so single keystrokes reach the control plane without a newline.
func (u *UI) Run(ctx context.Context) error {
	fd := int(u.in.Fd())
	if term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("error entering raw mode: %w", err)
		}
		defer term.Restore(fd, oldState)
		go u.readInput(ctx)
	}

	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			u.draw()
			return nil
		case <-ticker.C:
			snap := u.draw()
			if snap.State.Terminal() {
				return nil
			}
		}
	}
}

// readInput maps keystrokes to control-plane actions: p toggles pause, q (or
// ctrl-c, which raw mode delivers as a byte) requests cancellation.
func (u *UI) readInput(ctx context.Context) {
	buf := make([]byte, 1)
	for ctx.Err() == nil {
		n, err := u.in.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		switch buf[0] {
		case 'p', 'P':
			if u.session.Controls().TogglePause() {
				u.logger.Info().Msg("Download paused")
			} else {
				u.logger.Info().Msg("Download resumed")
			}
		case 'q', 'Q', 0x03:
			u.logger.Error().Msg("Download cancelled by user")
			u.session.Controls().RequestCancel()
		}
	}
}

func (u *UI) draw() download.Snapshot {
	snap := u.session.Snapshot()

	width := defaultWidth
	if f, ok := u.out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 20 {
			width = w
		}
	}

	lines := []string{
		titleStyle.Render("parget") + hintStyle.Render("  concurrent range downloader"),
		"",
		urlStyle.Render(snap.URL),
		destStyle.Render(snap.Dest),
		"",
		u.statusLine(snap),
		"",
	}
	lines = append(lines, u.workerLines(snap, width)...)
	lines = append(lines, "", u.totalsLine(snap))
	lines = append(lines, hintStyle.Render("Press p to pause/resume, q to cancel"), "")
	for _, logLine := range u.logs.Tail(logTailLines) {
		lines = append(lines, truncate(logLine, width))
	}

	// Raw mode disables output post-processing, so emit explicit CRLF.
	fmt.Fprint(u.out, "\x1b[2J\x1b[H"+strings.Join(lines, "\r\n")+"\r\n")
	return snap
}

func (u *UI) statusLine(snap download.Snapshot) string {
	switch {
	case snap.State == download.StateCancelled:
		return failStyle.Render("✗ cancelled")
	case snap.State == download.StateCompleted:
		return okStyle.Render("✓ completed")
	case snap.Paused:
		return pausedStyle.Render("‖ paused")
	default:
		return hintStyle.Render(snap.State.String())
	}
}

func (u *UI) workerLines(snap download.Snapshot, width int) []string {
	barWidth := width - 45
	if barWidth < 10 {
		barWidth = 10
	}
	lines := make([]string, 0, len(snap.Workers))
	for _, w := range snap.Workers {
		lines = append(lines, fmt.Sprintf(" %2d %s %s / %s",
			w.Index,
			renderBar(w.Downloaded, w.Total, barWidth),
			humanize.Bytes(uint64(w.Downloaded)),
			humanize.Bytes(uint64(w.Total))))
	}
	return lines
}

func (u *UI) totalsLine(snap download.Snapshot) string {
	pct := 0.0
	if snap.Expected > 0 {
		pct = float64(snap.Downloaded) / float64(snap.Expected) * 100
	}
	return fmt.Sprintf(" %s / %s (%.1f%%)  %s/s  ETA %s",
		humanize.Bytes(uint64(snap.Downloaded)),
		humanize.Bytes(uint64(snap.Expected)),
		pct,
		humanize.Bytes(uint64(snap.Speed)),
		snap.ETA.Round(time.Second))
}

func renderBar(downloaded, total int64, width int) string {
	filled := 0
	if total > 0 {
		filled = int(float64(downloaded) / float64(total) * float64(width))
		if filled > width {
			filled = width
		}
	}
	return barStyle.Render(strings.Repeat("█", filled)) +
		barBgStyle.Render(strings.Repeat("█", width-filled))
}

func truncate(s string, width int) string {
	if len(s) <= width {
		return s
	}
	return s[:width]
}
