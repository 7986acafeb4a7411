package app

import (
	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// WailsEvents emits front-end events through the Wails runtime.
// Only valid for an App whose Startup context came from wails.Run.
func WailsEvents() Option {
	return WithEventEmitter(runtime.EventsEmit)
}
