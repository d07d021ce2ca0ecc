package app

import (
	"github.com/la5nta/memorymap/dialog"
	"github.com/la5nta/memorymap/internal/debug"
)

// alert queues an informational dialog without waiting for it to be
// acknowledged. It lives as long as the app, not the calling request.
func (a *App) alert(title, message string) {
	if _, err := a.dialogs.Show(a.ctx, dialog.Alert(title, message)); err != nil {
		debug.Printf("Unable to show alert %q: %v", title, err)
	}
}

// reject alerts the user of a validation error and returns it.
func (a *App) reject(err error, title string) error {
	a.alert(title, userMessage(err))
	return err
}
