package app

import (
	"github.com/la5nta/memorymap/api/types"
	"github.com/la5nta/memorymap/dialog"
	"github.com/la5nta/memorymap/mapview"
)

// WSHub is the connection to the Web GUI clients. It presents dialogs and
// renders the map.
type WSHub interface {
	dialog.Presenter
	mapview.Sink

	UpdateStatus()
	WriteNotification(types.Notification)
	NumClients() int
	ClientAddrs() []string
	Close() error
}

type noopWSSocket struct{}

func (noopWSSocket) Present(dialog.Request)               {}
func (noopWSSocket) Dismiss(string)                       {}
func (noopWSSocket) SendMap(types.MapCommand)             {}
func (noopWSSocket) UpdateStatus()                        {}
func (noopWSSocket) WriteNotification(types.Notification) {}
func (noopWSSocket) NumClients() int                      { return 0 }
func (noopWSSocket) ClientAddrs() []string                { return []string{} }
func (noopWSSocket) Close() error                         { return nil }
