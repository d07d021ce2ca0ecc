package app

import (
	"log"
	"time"

	"github.com/la5nta/memorymap/api/types"
	"github.com/la5nta/memorymap/internal/debug"
)

// Notify shows a message in the target message area. Success and warning
// messages are cleared after the configured notification duration, errors
// persist.
func (a *App) Notify(target types.NotificationTarget, typ types.NotificationType, message string) {
	var d time.Duration
	if typ != types.NotificationError {
		d = a.config.NotificationDuration.Std()
	}
	a.notify(target, typ, message, d)
}

func (a *App) notify(target types.NotificationTarget, typ types.NotificationType, message string, d time.Duration) {
	debug.Printf("Notification (%s/%s): %s", target, typ, message)
	n := types.Notification{
		Type:       typ,
		Target:     target,
		Message:    message,
		DurationMS: d.Milliseconds(),
	}
	if n.DurationMS == 0 {
		a.noticesMu.Lock()
		a.notices = append(a.notices, n)
		a.noticesMu.Unlock()
	}
	hub := a.hub()
	if hub.NumClients() == 0 {
		log.Printf("%s: %s", typ, message)
	}
	hub.WriteNotification(n)
}

// ClearNotifications clears the target message area.
func (a *App) ClearNotifications(target types.NotificationTarget) {
	a.noticesMu.Lock()
	kept := a.notices[:0]
	for _, n := range a.notices {
		if n.Target != target {
			kept = append(kept, n)
		}
	}
	a.notices = kept
	a.noticesMu.Unlock()
	a.hub().WriteNotification(types.Notification{Target: target, Clear: true})
}

// PersistentNotifications returns the shown messages that persist until
// their message area is cleared, oldest first.
func (a *App) PersistentNotifications() []types.Notification {
	a.noticesMu.Lock()
	defer a.noticesMu.Unlock()
	return append([]types.Notification(nil), a.notices...)
}
