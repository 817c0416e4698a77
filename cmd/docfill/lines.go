package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Zuo-Peng/docfill/internal/preview"
	"github.com/Zuo-Peng/docfill/internal/render"
	"github.com/Zuo-Peng/docfill/internal/session"
	"github.com/Zuo-Peng/docfill/internal/workflow"
)

type lineOptions struct {
	File       string
	Dir        string
	HTMLPath   string
	Edits      [][2]string
	NoDownload bool
	Width      int
}

// lineView prints the conversation for pipes: messages and progress to out,
// alerts and notices to errOut.
type lineView struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
}

func (v *lineView) Message(m session.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if m.Sender == session.SenderUser {
		fmt.Fprintf(v.out, "> %s\n", m.Text)
		return
	}
	fmt.Fprintln(v.out, m.Text)
}

func (v *lineView) Progress(p session.Progress) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, render.ProgressBar(p, 20))
}

func (v *lineView) Phase(session.Phase) {}

func (v *lineView) Preview(string) {}

func (v *lineView) OpenEditor(session.EditForm) {}

func (v *lineView) CloseEditor() {}

func (v *lineView) Alert(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.errOut, text)
}

func (v *lineView) Notify(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.errOut, text)
}

// runLines drives one session without a terminal. Answers are read from in,
// one per line; blank lines are skipped.
func runLines(ctx context.Context, client workflow.API, opts workflow.Options, lo lineOptions, in io.Reader, out, errOut io.Writer) error {
	flow := workflow.New(client, &lineView{out: out, errOut: errOut}, opts)

	if err := flow.Upload(ctx, lo.File); err != nil {
		return errReported
	}

	scanner := bufio.NewScanner(in)
	for {
		snap := flow.Snapshot()
		if snap.Phase == session.PhasePreview {
			break
		}
		if snap.State == session.StateComplete {
			// every value is in but the preview failed; already alerted
			return errReported
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read answers: %w", err)
			}
			return fmt.Errorf("input ended at %s (%s)", snap.CurrentPlaceholder, snap.Progress)
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		// chat failures are printed inline; the same placeholder is asked again
		if err := flow.SendMessage(ctx, line); errors.Is(err, context.Canceled) {
			return err
		}
	}

	if len(lo.Edits) > 0 {
		form, err := flow.OpenEditor()
		if err != nil {
			return err
		}
		for _, e := range lo.Edits {
			if !form.Set(e[0], e[1]) {
				flow.CloseEditor()
				return fmt.Errorf("unknown placeholder %q", e[0])
			}
		}
		if err := flow.SaveEdits(ctx, form); err != nil {
			return errReported
		}
	}

	snap := flow.Snapshot()
	text, err := preview.Text(snap.PreviewHTML, lo.Width)
	if err != nil {
		return fmt.Errorf("render preview: %w", err)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, text)

	if lo.HTMLPath != "" {
		if err := preview.Save(lo.HTMLPath, snap.Filename, snap.PreviewHTML); err != nil {
			return fmt.Errorf("save preview: %w", err)
		}
		fmt.Fprintf(errOut, "Preview saved to %s\n", lo.HTMLPath)
	}

	if lo.NoDownload {
		fmt.Fprintln(errOut, flow.DownloadURL())
		return nil
	}
	if _, err := flow.Download(ctx, lo.Dir); err != nil {
		return errReported
	}
	return nil
}
