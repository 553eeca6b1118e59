package web

import (
	"github.com/cjeanneret/PanView/internal/logic/control"
	"github.com/cjeanneret/PanView/internal/logic/orientation"
)

// Client → server message types.
const (
	msgPointer          = "pointer"
	msgOrientation      = "orientation"
	msgPermissionResult = "permission_result"
	msgEnableMotion     = "enable_motion"
)

// Server → client message types.
const (
	msgHello             = "hello"
	msgState             = "state"
	msgPermissionRequest = "permission_request"
	msgMotionResult      = "motion_result"
	msgCapture           = "capture"
	msgError             = "error"
)

// clientMessage is the union of everything a viewer page sends.
type clientMessage struct {
	Type string `json:"type"`

	// pointer
	Kind        string  `json:"kind,omitempty"`
	ID          int     `json:"id,omitempty"`
	PointerType string  `json:"pointer_type,omitempty"`
	Buttons     int     `json:"buttons,omitempty"`
	X           float64 `json:"x,omitempty"`
	Y           float64 `json:"y,omitempty"`

	// orientation, in degrees; null when the device did not report an axis
	Alpha *float64 `json:"alpha,omitempty"`
	Beta  *float64 `json:"beta,omitempty"`
	Gamma *float64 `json:"gamma,omitempty"`

	// permission_result
	State string `json:"state,omitempty"`
}

// serverMessage is the union of everything sent to a viewer page.
type serverMessage struct {
	Type        string                   `json:"type"`
	Session     string                   `json:"session,omitempty"`
	State       *control.State           `json:"state,omitempty"`
	Orientation *orientation.Orientation `json:"orientation,omitempty"`
	Result      control.MotionResult     `json:"result,omitempty"`
	ID          *int                     `json:"id,omitempty"`
	Active      *bool                    `json:"active,omitempty"`
	Message     string                   `json:"message,omitempty"`
}

func stateMessage(st control.State) serverMessage {
	return serverMessage{Type: msgState, State: &st}
}

func orientationMessage(o orientation.Orientation) serverMessage {
	return serverMessage{Type: msgOrientation, Orientation: &o}
}

func captureMessage(id int, active bool) serverMessage {
	return serverMessage{Type: msgCapture, ID: &id, Active: &active}
}
