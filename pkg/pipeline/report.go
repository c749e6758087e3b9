package pipeline

import "log/slog"

// Reporter receives progress: a human-readable phase label and the fraction
// of that phase completed, in [0, 1]. It is presentational only.
type Reporter interface {
	Report(label string, fraction float64)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(label string, fraction float64)

// Report calls f.
func (f ReporterFunc) Report(label string, fraction float64) { f(label, fraction) }

// Nop discards progress.
type Nop struct{}

// Report does nothing.
func (Nop) Report(string, float64) {}

// LogReporter writes progress to a structured logger at info level.
type LogReporter struct {
	Logger *slog.Logger
}

// Report logs the label and a percentage.
func (l LogReporter) Report(label string, fraction float64) {
	lg := l.Logger
	if lg == nil {
		lg = slog.Default()
	}
	lg.Info(label, "percent", int(fraction*100+0.5))
}
