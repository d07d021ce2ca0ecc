package types

type DialogKind string

const (
	DialogAlert   DialogKind = "alert"
	DialogConfirm DialogKind = "confirm"
	DialogPrompt  DialogKind = "prompt"
	DialogForm    DialogKind = "form"
)

type InputType string

const (
	InputText     InputType = "text"
	InputTextarea InputType = "textarea"
	InputNumber   InputType = "number"
	InputColor    InputType = "color"
	InputSelect   InputType = "select"
)

// Dialog is a modal prompt as sent to the Web GUI.
type Dialog struct {
	ID      string        `json:"id"`
	Kind    DialogKind    `json:"kind"`
	Title   string        `json:"title"`
	Message string        `json:"message"`
	Value   string        `json:"value,omitempty"`  // Initial value for prompt
	Fields  []DialogField `json:"fields,omitempty"` // For form
}

type DialogField struct {
	ID      string         `json:"id"`
	Label   string         `json:"label"`
	Type    InputType      `json:"type"`
	Value   string         `json:"value,omitempty"`
	Options []DialogOption `json:"options,omitempty"` // For select
	Min     *float64       `json:"min,omitempty"`     // For number
	Max     *float64       `json:"max,omitempty"`     // For number
}

type DialogOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type DialogAction string

const (
	ActionOK     DialogAction = "ok"
	ActionCancel DialogAction = "cancel"
	ActionEscape DialogAction = "escape"
)

// DialogResponse is a terminal gesture reported by a dialog surface.
//
// Value (prompt) and Values (form) are optional. When absent, the last
// edited values are used.
type DialogResponse struct {
	ID     string            `json:"id"`
	Action DialogAction      `json:"action"`
	Value  *string           `json:"value,omitempty"`
	Values map[string]string `json:"values,omitempty"`
}

// DialogEdit reports an edit of one form field (or the prompt input when
// Field is empty).
type DialogEdit struct {
	ID    string `json:"id"`
	Field string `json:"field"`
	Value string `json:"value"`
}
