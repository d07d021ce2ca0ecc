// Copyright 2025 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

package dialog

import (
	"errors"
	"fmt"

	"github.com/la5nta/memorymap/api/types"
)

const (
	KindAlert   = types.DialogAlert
	KindConfirm = types.DialogConfirm
	KindPrompt  = types.DialogPrompt
	KindForm    = types.DialogForm

	InputText     = types.InputText
	InputTextarea = types.InputTextarea
	InputNumber   = types.InputNumber
	InputColor    = types.InputColor
	InputSelect   = types.InputSelect

	ActionOK     = types.ActionOK
	ActionCancel = types.ActionCancel
	ActionEscape = types.ActionEscape
)

type (
	Request  = types.Dialog
	Kind     = types.DialogKind
	Field    = types.DialogField
	Option   = types.DialogOption
	Response = types.DialogResponse
	Action   = types.DialogAction
)

var (
	// ErrCancelled is returned by the convenience helpers when the user
	// dismissed the dialog (or it was force-closed).
	ErrCancelled = errors.New("dialog cancelled")

	// ErrInvalidRequest is wrapped by every validation error returned from Show.
	ErrInvalidRequest = errors.New("invalid dialog request")

	ErrClosed = errors.New("dialog controller closed")

	// ErrNotActive is returned when a gesture refers to a dialog that is not the active one.
	ErrNotActive = errors.New("dialog not active")
)

// Result is the outcome of one dialog request.
type Result struct {
	ID        string
	Kind      Kind
	Cancelled bool

	Confirmed bool              // Alert and Confirm
	Text      string            // Prompt
	Values    map[string]string // Form. Keys mirror the field ids.
}

// Err returns ErrCancelled if the dialog was dismissed.
func (r Result) Err() error {
	if r.Cancelled {
		return ErrCancelled
	}
	return nil
}

// Validate checks the request against the constraints of its kind.
func Validate(req Request) error {
	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
	}
	switch req.Kind {
	case KindAlert, KindConfirm, KindPrompt:
		if len(req.Fields) > 0 {
			return invalid("fields not allowed for kind %q", req.Kind)
		}
		return nil
	case KindForm:
	default:
		return invalid("unknown kind %q", req.Kind)
	}

	if len(req.Fields) == 0 {
		return invalid("form without fields")
	}
	seen := make(map[string]struct{}, len(req.Fields))
	for _, f := range req.Fields {
		if f.ID == "" {
			return invalid("field with empty id")
		}
		if _, dup := seen[f.ID]; dup {
			return invalid("duplicate field id %q", f.ID)
		}
		seen[f.ID] = struct{}{}

		switch f.Type {
		case InputText, InputTextarea, InputColor:
		case InputNumber:
			if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
				return invalid("field %q: min > max", f.ID)
			}
		case InputSelect:
			if len(f.Options) == 0 {
				return invalid("field %q: select without options", f.ID)
			}
		default:
			return invalid("field %q: unknown input type %q", f.ID, f.Type)
		}
		if f.Type != InputSelect && len(f.Options) > 0 {
			return invalid("field %q: options only allowed for select", f.ID)
		}
		if f.Type != InputNumber && (f.Min != nil || f.Max != nil) {
			return invalid("field %q: min/max only allowed for number", f.ID)
		}
	}
	return nil
}

// Convenience constructors

func Alert(title, message string) Request {
	return Request{Kind: KindAlert, Title: title, Message: message}
}

func Confirm(title, message string) Request {
	return Request{Kind: KindConfirm, Title: title, Message: message}
}

func Prompt(title, message, initial string) Request {
	return Request{Kind: KindPrompt, Title: title, Message: message, Value: initial}
}

func Form(title, message string, fields ...Field) Request {
	return Request{Kind: KindForm, Title: title, Message: message, Fields: fields}
}

func cloneRequest(req Request) Request {
	if req.Fields == nil {
		return req
	}
	fields := make([]Field, len(req.Fields))
	for i, f := range req.Fields {
		if f.Options != nil {
			f.Options = append([]Option(nil), f.Options...)
		}
		fields[i] = f
	}
	req.Fields = fields
	return req
}
