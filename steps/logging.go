package steps

import "log/slog"

// logging is embedded by variants that warn about values they drop. Until
// the engine sets a logger they report through slog.Default
type logging struct {
	logger *slog.Logger
}

func (l *logging) SetLogger(logger *slog.Logger) {
	l.logger = logger
}

func (l *logging) log() *slog.Logger {
	if l.logger == nil {
		return slog.Default()
	}
	return l.logger
}
