package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/la5nta/memorymap/app"
	"github.com/la5nta/memorymap/dialog"
	"github.com/la5nta/memorymap/internal/debug"
	"github.com/la5nta/memorymap/mapview"
)

// TerminalPresenter renders dialogs as interactive terminal forms.
type TerminalPresenter struct {
	dialogs *dialog.Controller
	in      io.Reader
	out     io.Writer

	// Accessible renders plain line based prompts, for when input is not
	// a terminal.
	Accessible bool

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func NewTerminalPresenter(c *dialog.Controller, in io.Reader, out io.Writer) *TerminalPresenter {
	return &TerminalPresenter{
		dialogs: c,
		in:      in,
		out:     out,
		cancels: make(map[string]context.CancelFunc),
	}
}

// presentInTerminal registers a TerminalPresenter on stdin/stdout with a's
// dialog controller.
func presentInTerminal(a *app.App) *TerminalPresenter {
	t := NewTerminalPresenter(a.Dialogs(), os.Stdin, os.Stdout)
	t.Accessible = !isTerminal(os.Stdin)
	a.Dialogs().AddPresenter(t)
	return t
}

func (t *TerminalPresenter) Present(req dialog.Request) {
	ctx, cancel := context.WithCancel(context.Background())
	t.mu.Lock()
	t.cancels[req.ID] = cancel
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer cancel()
		state := newFormState(req)
		err := state.form().
			WithInput(t.in).
			WithOutput(t.out).
			WithTheme(huh.ThemeCharm()).
			WithAccessible(t.Accessible).
			RunWithContext(ctx)
		if ctx.Err() != nil {
			// Dismissed elsewhere.
			return
		}
		if err != nil && !errors.Is(err, huh.ErrUserAborted) {
			debug.Printf("Dialog %s: %v", req.ID, err)
		}
		if err := t.dialogs.Respond(state.response(err)); err != nil {
			debug.Printf("Dialog %s: %v", req.ID, err)
		}
	}()
}

func (t *TerminalPresenter) Dismiss(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cancel, ok := t.cancels[id]; ok {
		cancel()
		delete(t.cancels, id)
	}
}

// Wait blocks until no dialog is active or queued, or ctx is done.
func (t *TerminalPresenter) Wait(ctx context.Context) {
	if waitDialogs(ctx, t.dialogs) {
		t.wg.Wait()
	}
}

func waitDialogs(ctx context.Context, c *dialog.Controller) (idle bool) {
	for {
		if _, active := c.Active(); !active && c.Pending() == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Close unregisters the presenter and aborts any dialog it is showing.
func (t *TerminalPresenter) Close() error {
	t.dialogs.RemovePresenter(t)
	t.mu.Lock()
	for id, cancel := range t.cancels {
		cancel()
		delete(t.cancels, id)
	}
	t.mu.Unlock()
	t.wg.Wait()
	return nil
}

// formState holds the input bound to the widgets of one dialog.
type formState struct {
	req       dialog.Request
	confirmed bool
	text      string
	values    map[string]*string
}

func newFormState(req dialog.Request) *formState {
	s := &formState{req: req, text: req.Value, confirmed: true}
	if req.Kind == dialog.KindForm {
		s.values = make(map[string]*string, len(req.Fields))
		for _, f := range req.Fields {
			v := f.Value
			if f.Type == dialog.InputSelect && v == "" && len(f.Options) > 0 {
				v = f.Options[0].Value
			}
			s.values[f.ID] = &v
		}
	}
	return s
}

func (s *formState) form() *huh.Form {
	req := s.req
	var fields []huh.Field
	switch req.Kind {
	case dialog.KindAlert:
		fields = append(fields, huh.NewNote().
			Title(req.Title).
			Description(req.Message).
			Next(true).
			NextLabel("OK"))
	case dialog.KindConfirm:
		fields = append(fields, huh.NewConfirm().
			Title(req.Title).
			Description(req.Message).
			Affirmative("OK").
			Negative("Cancel").
			Value(&s.confirmed))
	case dialog.KindPrompt:
		fields = append(fields, huh.NewInput().
			Title(req.Title).
			Description(req.Message).
			Prompt("> ").
			Value(&s.text))
	case dialog.KindForm:
		if req.Title != "" || req.Message != "" {
			fields = append(fields, huh.NewNote().Title(req.Title).Description(req.Message))
		}
		for _, f := range req.Fields {
			fields = append(fields, s.field(f))
		}
		fields = append(fields, huh.NewConfirm().
			Affirmative("OK").
			Negative("Cancel").
			Value(&s.confirmed))
	}
	return huh.NewForm(huh.NewGroup(fields...))
}

func (s *formState) field(f dialog.Field) huh.Field {
	value := s.values[f.ID]
	switch f.Type {
	case dialog.InputTextarea:
		return huh.NewText().Title(f.Label).Value(value)
	case dialog.InputSelect:
		opts := make([]huh.Option[string], len(f.Options))
		for i, o := range f.Options {
			opts[i] = huh.NewOption(o.Label, o.Value)
		}
		return huh.NewSelect[string]().Title(f.Label).Options(opts...).Value(value)
	case dialog.InputNumber:
		return huh.NewInput().Title(f.Label).Value(value).Validate(validateNumber(f.Min, f.Max))
	case dialog.InputColor:
		return huh.NewInput().Title(f.Label).Placeholder(mapview.DefaultColor).Value(value).Validate(validateColor)
	default:
		return huh.NewInput().Title(f.Label).Value(value)
	}
}

// response translates the outcome of running the form into a dialog response.
func (s *formState) response(err error) dialog.Response {
	resp := dialog.Response{ID: s.req.ID, Action: dialog.ActionOK}
	switch {
	case err != nil:
		resp.Action = dialog.ActionEscape
		return resp
	case s.req.Kind == dialog.KindAlert:
		return resp
	case !s.confirmed:
		resp.Action = dialog.ActionCancel
		return resp
	}
	switch s.req.Kind {
	case dialog.KindPrompt:
		text := s.text
		resp.Value = &text
	case dialog.KindForm:
		resp.Values = make(map[string]string, len(s.values))
		for k, v := range s.values {
			resp.Values[k] = strings.TrimSpace(*v)
		}
	}
	return resp
}

func validateNumber(lo, hi *float64) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		switch {
		case err != nil:
			return fmt.Errorf("not a number")
		case lo != nil && f < *lo:
			return fmt.Errorf("must be at least %g", *lo)
		case hi != nil && f > *hi:
			return fmt.Errorf("must be at most %g", *hi)
		}
		return nil
	}
}

func validateColor(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	_, err := mapview.PinIcon(strings.TrimSpace(s))
	return err
}
