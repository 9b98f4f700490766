package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"fencecheck/internal/engine"
	"fencecheck/internal/report"
	"fencecheck/internal/source"
	"fencecheck/internal/ui"
)

type runOutcome struct {
	report report.ValidationReport
	err    error
}

// runWithUI validates pages while a progress view renders the job events.
// Quitting the view (ctrl+c) cancels the run; unstarted jobs end up skipped.
func runWithUI(ctx context.Context, title string, opts engine.Options, pages []source.Page) (report.ValidationReport, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan engine.Event, 256)
	outcomeCh := make(chan runOutcome, 1)

	opts.Progress = engine.ChannelSink{Ch: events}
	eng := engine.New(opts)
	go func() {
		rep, err := eng.Run(ctx, pages)
		outcomeCh <- runOutcome{report: rep, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, nil, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stderr), tea.WithContext(ctx))
	_, uiErr := program.Run()
	interrupted := ctx.Err() != nil

	// модель могла выйти раньше движка: отменяем и дочитываем события
	cancel()
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if outcome.err != nil {
		return outcome.report, outcome.err
	}
	if uiErr != nil && !interrupted {
		return outcome.report, uiErr
	}
	return outcome.report, nil
}
