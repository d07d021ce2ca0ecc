package types

import "time"

// Status represents a status report as sent to the Web GUI
type Status struct {
	LoggedIn           bool     `json:"logged_in"`
	Username           string   `json:"username"`
	Email              string   `json:"email"`
	StatusText         string   `json:"status_text"`
	SelectedCollection string   `json:"selected_collection"`
	NumMarkers         int      `json:"num_markers"`
	NumCollections     int      `json:"num_collections"`
	DialogActive       bool     `json:"dialog_active"`
	DialogsQueued      int      `json:"dialogs_queued"`
	HTTPClients        []string `json:"http_clients"`
	ConfigHash         string   `json:"config_hash"`
}

type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

// NotificationTarget identifies the message area a notification is shown in.
type NotificationTarget string

const (
	TargetAuth NotificationTarget = "auth"
	TargetApp  NotificationTarget = "app"
)

// Notification represents a message shown in one of the Web GUI's message areas.
//
// A zero DurationMS means the message persists until cleared.
type Notification struct {
	Type       NotificationType   `json:"type"`
	Target     NotificationTarget `json:"target"`
	Message    string             `json:"message"`
	DurationMS int64              `json:"duration_ms"`
	Clear      bool               `json:"clear,omitempty"`
}

// Collection is a user-defined named grouping of markers.
type Collection struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// Marker is a user-placed point of interest.
type Marker struct {
	ID          string    `json:"id,omitempty"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type MarkerCollection struct {
	MarkerID     string `json:"marker_id"`
	CollectionID string `json:"collection_id"`
}
