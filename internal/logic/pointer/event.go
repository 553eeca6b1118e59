package pointer

// Kind identifies a pointer event.
type Kind int

const (
	Down Kind = iota
	Move
	Up
	Cancel
)

func (k Kind) String() string {
	switch k {
	case Down:
		return "down"
	case Move:
		return "move"
	case Up:
		return "up"
	case Cancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// ParseKind maps the wire names "down", "move", "up" and "cancel" to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "down":
		return Down, true
	case "move":
		return Move, true
	case "up":
		return Up, true
	case "cancel":
		return Cancel, true
	default:
		return 0, false
	}
}

// Type is the kind of device behind a pointer.
type Type string

const (
	Mouse Type = "mouse"
	Touch Type = "touch"
	Pen   Type = "pen"
)

// PrimaryButton is the Buttons bitmask of a mouse with only its main button held.
const PrimaryButton = 1

// Event is one pointer event in surface coordinates (pixels).
type Event struct {
	Kind        Kind
	PointerID   int
	PointerType Type
	Buttons     int
	X, Y        float64

	defaultPrevented bool
}

// PreventDefault asks the surface to suppress the platform's default
// gesture or scroll handling for this event.
func (e *Event) PreventDefault() {
	e.defaultPrevented = true
}

// DefaultPrevented reports whether a handler called PreventDefault.
func (e *Event) DefaultPrevented() bool {
	return e.defaultPrevented
}

// Handler reacts to a pointer event.
type Handler func(*Event)

// Surface is the area a viewer drags on.
type Surface interface {
	// Listen registers h for events of kind k and returns its removal function.
	Listen(k Kind, h Handler) (remove func())
	SetPointerCapture(id int)
	ReleasePointerCapture(id int)
	HasPointerCapture(id int) bool
}
