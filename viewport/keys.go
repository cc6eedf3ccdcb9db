package viewport

// KeyInput is a key press as reported by a front end. Code is the physical
// key code (e.g. "KeyA"), independent of layout.
type KeyInput struct {
	Code      string `json:"code"`
	Key       string `json:"key,omitempty"`
	Alt       bool   `json:"alt,omitempty"`
	Ctrl      bool   `json:"ctrl,omitempty"`
	Meta      bool   `json:"meta,omitempty"`
	Shift     bool   `json:"shift,omitempty"`
	Editable  bool   `json:"editable,omitempty"`  // focus is in a text input or editable element
	Composing bool   `json:"composing,omitempty"` // IME composition in progress
}

var bindings = map[string]Op{
	"KeyA": PanLeft,
	"KeyD": PanRight,
	"KeyW": Widen,
	"KeyS": Narrow,
}

// Binding maps a key press to its viewport op. Presses inside editable
// elements, during IME composition, or with Alt/Ctrl/Meta held are ignored.
// Shift is not a blocking modifier.
func Binding(k KeyInput) (Op, bool) {
	if k.Editable || k.Composing || k.Key == "Process" {
		return "", false
	}
	if k.Alt || k.Ctrl || k.Meta {
		return "", false
	}
	op, ok := bindings[k.Code]
	return op, ok
}
