// Package console prints feed entries to a terminal.
package console

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jakegt1/twitch-events/internal/domain"
	"github.com/jakegt1/twitch-events/internal/notify"
)

const subscriberBuffer = 64

type Renderer struct {
	out    io.Writer
	header map[domain.Severity]lipgloss.Style
	body   lipgloss.Style
	time   lipgloss.Style
}

// NewRenderer styles output for out. Pass a renderer created with lipgloss.NewRenderer(out)
// so colors follow the terminal's capabilities.
func NewRenderer(out io.Writer, lr *lipgloss.Renderer) *Renderer {
	base := lr.NewStyle().Bold(true)
	return &Renderer{
		out: out,
		header: map[domain.Severity]lipgloss.Style{
			domain.SeverityPlain:   base,
			domain.SeverityInfo:    base.Foreground(lipgloss.Color("12")),
			domain.SeveritySuccess: base.Foreground(lipgloss.Color("10")),
			domain.SeverityError:   base.Foreground(lipgloss.Color("9")),
		},
		body: lr.NewStyle().PaddingLeft(2),
		time: lr.NewStyle().Faint(true),
	}
}

// Format renders one entry as two lines: the timestamped header and the indented body.
func (r *Renderer) Format(e notify.Entry) string {
	style, ok := r.header[e.Event.Severity]
	if !ok {
		style = r.header[domain.SeverityPlain]
	}

	var b strings.Builder
	b.WriteString(r.time.Render(e.At.Format("15:04:05")))
	b.WriteString(" ")
	b.WriteString(style.Render(e.Event.Header))
	b.WriteString("\n")
	b.WriteString(r.body.Render(e.Event.Body))
	b.WriteString("\n")
	return b.String()
}

// Run prints every entry appended to feed until ctx is cancelled. Entries already in
// the feed are printed first.
func (r *Renderer) Run(ctx context.Context, feed *notify.Feed) error {
	ch, cancel := feed.Subscribe(subscriberBuffer)
	defer cancel()

	var last uint64
	for _, e := range feed.Entries() {
		if err := r.write(e); err != nil {
			return err
		}
		last = e.Seq
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			if e.Seq <= last {
				continue
			}
			// catch up on entries dropped while the buffer was full
			for _, missed := range feed.Since(last) {
				if missed.Seq > e.Seq {
					break
				}
				if err := r.write(missed); err != nil {
					return err
				}
				last = missed.Seq
			}
		}
	}
}

func (r *Renderer) write(e notify.Entry) error {
	if _, err := fmt.Fprint(r.out, r.Format(e)); err != nil {
		return fmt.Errorf("failed to write entry %d: %w", e.Seq, err)
	}
	return nil
}
