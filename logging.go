package fatfs

import "log/slog"

// logger wraps a *slog.Logger with nil-safe helpers, following the
// trace/debug/info/warn/logerror helper set the teacher built around
// log/slog: directory create, delete and rename log at trace level with
// their names (FAT table operations do not log), and a nil logger silently
// no-ops rather than forcing every call site to guard.
type logger struct {
	l *slog.Logger
}

func newLogger(l *slog.Logger) *logger { return &logger{l: l} }

func (lg *logger) trace(msg string, args ...any) {
	if lg == nil || lg.l == nil {
		return
	}
	lg.l.Debug(msg, args...) // slog has no Trace level; map trace onto Debug.
}

func (lg *logger) debug(msg string, args ...any) {
	if lg == nil || lg.l == nil {
		return
	}
	lg.l.Debug(msg, args...)
}

func (lg *logger) info(msg string, args ...any) {
	if lg == nil || lg.l == nil {
		return
	}
	lg.l.Info(msg, args...)
}

func (lg *logger) warn(msg string, args ...any) {
	if lg == nil || lg.l == nil {
		return
	}
	lg.l.Warn(msg, args...)
}

func (lg *logger) logerror(msg string, args ...any) {
	if lg == nil || lg.l == nil {
		return
	}
	lg.l.Error(msg, args...)
}
