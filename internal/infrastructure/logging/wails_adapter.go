package logging

import "github.com/wailsapp/wails/v2/pkg/logger"

// WailsLoggerAdapter lets Wails write through our structured logger.
// Every entry carries source=wails so runtime output can be told apart from bridge calls.
type WailsLoggerAdapter struct {
	logger Logger
}

var _ logger.Logger = (*WailsLoggerAdapter)(nil)

// NewWailsLoggerAdapter wraps next; nil uses the default logger
func NewWailsLoggerAdapter(next Logger) *WailsLoggerAdapter {
	if next == nil {
		next = NewDefaultLogger()
	}
	return &WailsLoggerAdapter{logger: next}
}

func (w *WailsLoggerAdapter) Print(message string) {
	w.logger.Info(message, "source", "wails")
}

// Trace has no level of its own and is folded into Debug
func (w *WailsLoggerAdapter) Trace(message string) {
	w.logger.Debug(message, "source", "wails", "wails_level", "trace")
}

func (w *WailsLoggerAdapter) Debug(message string) {
	w.logger.Debug(message, "source", "wails")
}

func (w *WailsLoggerAdapter) Info(message string) {
	w.logger.Info(message, "source", "wails")
}

func (w *WailsLoggerAdapter) Warning(message string) {
	w.logger.Warn(message, "source", "wails")
}

func (w *WailsLoggerAdapter) Error(message string) {
	w.logger.Error(message, "source", "wails")
}

// Fatal is downgraded to ERROR so the bridge keeps serving the GUI
func (w *WailsLoggerAdapter) Fatal(message string) {
	w.logger.Error(message, "source", "wails", "wails_level", "fatal")
}
