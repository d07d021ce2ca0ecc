// Copyright 2025 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

// Package dialog implements the modal dialog controller.
//
// At most one dialog is active at any time. Requests issued while a dialog
// is active are queued and presented in FIFO order once the active dialog
// settles. Every request settles exactly once, either by a terminal user
// gesture (OK, Cancel, Escape), by cancellation of the caller's context, or
// by ForceClose.
package dialog

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/la5nta/memorymap/internal/debug"
)

// Presenter renders dialogs on some surface (web GUI, terminal, ...).
//
// Present and Dismiss are only ever called by the Controller, in order.
// Implementations may call back into the Controller (Respond, Edit) from
// within Present.
type Presenter interface {
	Present(Request)
	Dismiss(id string)
}

type pending struct {
	req  Request
	resp chan Result
	stop func() bool

	text   string            // Prompt input
	values map[string]string // Form inputs
}

type Controller struct {
	mu         sync.Mutex
	presenters []Presenter
	active     *pending
	queue      []*pending
	closed     bool

	drainMu sync.Mutex
	effects []func()
}

func NewController(presenters ...Presenter) *Controller {
	return &Controller{presenters: presenters}
}

// AddPresenter registers an additional surface. If a dialog is active, it is
// presented on the new surface immediately.
func (c *Controller) AddPresenter(p Presenter) {
	c.mu.Lock()
	c.presenters = append(c.presenters, p)
	if c.active != nil {
		req := cloneRequest(c.active.req)
		c.effects = append(c.effects, func() { p.Present(req) })
	}
	c.mu.Unlock()
	c.flush()
}

// RemovePresenter unregisters a surface previously added.
func (c *Controller) RemovePresenter(p Presenter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, v := range c.presenters {
		if v == p {
			c.presenters = append(c.presenters[:i], c.presenters[i+1:]...)
			return
		}
	}
}

// Show validates and enqueues req. The returned channel receives exactly one
// Result.
//
// If ctx is cancelled before the dialog settles, the request settles as
// cancelled.
func (c *Controller) Show(ctx context.Context, req Request) (<-chan Result, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	req = cloneRequest(req)
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	p := &pending{
		req:  req,
		resp: make(chan Result, 1),
		text: req.Value,
	}
	if req.Kind == KindForm {
		p.values = make(map[string]string, len(req.Fields))
		for _, f := range req.Fields {
			p.values[f.ID] = f.Value
		}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.active == nil {
		c.activate(p)
	} else {
		debug.Printf("Dialog %s queued behind %s (%d waiting)", req.ID, c.active.req.ID, len(c.queue))
		c.queue = append(c.queue, p)
	}
	c.mu.Unlock()

	// Registered after enqueuing so that an already cancelled context
	// settles the request immediately.
	stop := context.AfterFunc(ctx, func() { c.abandon(p) })
	c.mu.Lock()
	p.stop = stop
	c.mu.Unlock()

	c.flush()
	return p.resp, nil
}

// Ask shows req and blocks until it settles.
func (c *Controller) Ask(ctx context.Context, req Request) (Result, error) {
	ch, err := c.Show(ctx, req)
	if err != nil {
		return Result{}, err
	}
	return <-ch, nil
}

// Alert shows a message and blocks until it is acknowledged.
func (c *Controller) Alert(ctx context.Context, title, message string) error {
	_, err := c.Ask(ctx, Alert(title, message))
	return err
}

// Confirm returns true only if the user activated OK.
func (c *Controller) Confirm(ctx context.Context, title, message string) (bool, error) {
	res, err := c.Ask(ctx, Confirm(title, message))
	if err != nil {
		return false, err
	}
	return res.Confirmed, nil
}

// Prompt returns the text entered, or ErrCancelled.
func (c *Controller) Prompt(ctx context.Context, title, message, initial string) (string, error) {
	res, err := c.Ask(ctx, Prompt(title, message, initial))
	if err != nil {
		return "", err
	}
	return res.Text, res.Err()
}

// Form returns the field values keyed by field id, or ErrCancelled.
func (c *Controller) Form(ctx context.Context, title, message string, fields ...Field) (map[string]string, error) {
	res, err := c.Ask(ctx, Form(title, message, fields...))
	if err != nil {
		return nil, err
	}
	return res.Values, res.Err()
}

// Respond applies a terminal gesture to the active dialog.
//
// Responses referring to any other dialog are rejected with ErrNotActive and
// have no effect.
func (c *Controller) Respond(resp Response) error {
	c.mu.Lock()
	p := c.active
	if p == nil || p.req.ID != resp.ID {
		c.mu.Unlock()
		debug.Printf("Ignoring response for inactive dialog %q", resp.ID)
		return fmt.Errorf("%w: %s", ErrNotActive, resp.ID)
	}

	res := Result{ID: p.req.ID, Kind: p.req.Kind}
	switch resp.Action {
	case ActionOK, ActionCancel, ActionEscape:
	default:
		c.mu.Unlock()
		return fmt.Errorf("unknown dialog action %q", resp.Action)
	}

	switch ok := resp.Action == ActionOK; p.req.Kind {
	case KindAlert:
		// No cancel path.
		res.Confirmed = true
	case KindConfirm:
		res.Confirmed = ok
		res.Cancelled = !ok
	case KindPrompt:
		res.Cancelled = !ok
		if ok {
			res.Text = p.text
			if resp.Value != nil {
				res.Text = *resp.Value
			}
		}
	case KindForm:
		res.Cancelled = !ok
		if ok {
			for k, v := range resp.Values {
				if _, known := p.values[k]; !known {
					debug.Printf("Dialog %s: dropping value for unknown field %q", p.req.ID, k)
					continue
				}
				p.values[k] = v
			}
			res.Values = make(map[string]string, len(p.values))
			for k, v := range p.values {
				res.Values[k] = v
			}
		}
	}
	c.settle(p, res)
	c.mu.Unlock()
	c.flush()
	return nil
}

// Cancel dismisses the active dialog with id.
func (c *Controller) Cancel(id string) error {
	return c.Respond(Response{ID: id, Action: ActionCancel})
}

// Edit records the current value of a form field. For prompts, field must be
// empty.
func (c *Controller) Edit(id, field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.active
	if p == nil || p.req.ID != id {
		return fmt.Errorf("%w: %s", ErrNotActive, id)
	}
	switch p.req.Kind {
	case KindPrompt:
		if field != "" {
			return fmt.Errorf("prompt has no field %q", field)
		}
		p.text = value
	case KindForm:
		if _, ok := p.values[field]; !ok {
			return fmt.Errorf("unknown field %q", field)
		}
		p.values[field] = value
	default:
		return fmt.Errorf("%s dialog has no input", p.req.Kind)
	}
	return nil
}

// ForceClose settles the active dialog and every queued dialog as cancelled.
//
// It is a no-op when no dialog is pending.
func (c *Controller) ForceClose() {
	c.mu.Lock()
	c.forceClose()
	c.mu.Unlock()
	c.flush()
}

func (c *Controller) forceClose() {
	queue := c.queue
	c.queue = nil
	for _, p := range queue {
		c.settle(p, cancelled(p))
	}
	if c.active != nil {
		debug.Printf("Force closing dialog %s", c.active.req.ID)
		c.settle(c.active, cancelled(c.active))
	}
}

// Close force closes pending dialogs. Subsequent calls to Show fail with ErrClosed.
func (c *Controller) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	c.closed = true
	c.forceClose()
	c.mu.Unlock()
	c.flush()
	return nil
}

// Active returns the dialog currently presented, if any.
func (c *Controller) Active() (Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return Request{}, false
	}
	return cloneRequest(c.active.req), true
}

// Pending returns the number of queued (not yet presented) dialogs.
func (c *Controller) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

func (c *Controller) abandon(p *pending) {
	c.mu.Lock()
	if c.active == p || c.queued(p) {
		debug.Printf("Dialog %s abandoned by caller", p.req.ID)
		c.settle(p, cancelled(p))
	}
	c.mu.Unlock()
	c.flush()
}

func (c *Controller) queued(p *pending) bool {
	for _, v := range c.queue {
		if v == p {
			return true
		}
	}
	return false
}

// activate must be called with c.mu held.
func (c *Controller) activate(p *pending) {
	c.active = p
	req := cloneRequest(p.req)
	for _, presenter := range c.presenters {
		presenter := presenter
		c.effects = append(c.effects, func() { presenter.Present(req) })
	}
}

// settle must be called with c.mu held.
func (c *Controller) settle(p *pending, res Result) {
	if p.stop != nil {
		p.stop()
	}
	p.resp <- res

	if c.active != p {
		for i, v := range c.queue {
			if v == p {
				c.queue = append(c.queue[:i], c.queue[i+1:]...)
				break
			}
		}
		return
	}

	c.active = nil
	id := p.req.ID
	for _, presenter := range c.presenters {
		presenter := presenter
		c.effects = append(c.effects, func() { presenter.Dismiss(id) })
	}
	if len(c.queue) > 0 {
		next := c.queue[0]
		c.queue = c.queue[1:]
		c.activate(next)
	}
}

// flush runs queued presenter calls in order. Only one goroutine drains at a
// time; re-entrant calls leave their effects to the current drainer.
func (c *Controller) flush() {
	for {
		if !c.drainMu.TryLock() {
			return
		}
		for {
			c.mu.Lock()
			if len(c.effects) == 0 {
				c.mu.Unlock()
				break
			}
			fn := c.effects[0]
			c.effects = c.effects[1:]
			c.mu.Unlock()
			fn()
		}
		c.drainMu.Unlock()

		c.mu.Lock()
		empty := len(c.effects) == 0
		c.mu.Unlock()
		if empty {
			return
		}
	}
}

func cancelled(p *pending) Result {
	return Result{ID: p.req.ID, Kind: p.req.Kind, Cancelled: true}
}
