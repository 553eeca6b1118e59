package sensor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cjeanneret/PanView/internal/debug"
	"github.com/cjeanneret/PanView/internal/logic/orientation"
)

// FusedMessage is the payload published for each fused orientation.
type FusedMessage struct {
	Session  string  `json:"session"`
	Yaw      float64 `json:"yaw"`
	Pitch    float64 `json:"pitch"`
	YawDeg   float64 `json:"yaw_deg"`
	PitchDeg float64 `json:"pitch_deg"`
	Time     string  `json:"t"`
}

// Publisher puts fused viewer orientations on an MQTT topic.
type Publisher struct {
	broker Broker
	topic  string
}

// NewPublisher creates a publisher for topic.
func NewPublisher(broker Broker, topic string) *Publisher {
	return &Publisher{broker: broker, topic: topic}
}

// Publish sends o for session without waiting for the broker; delivery
// errors are logged.
func (p *Publisher) Publish(session string, o orientation.Orientation) error {
	yawDeg, pitchDeg := o.Degrees()
	payload, err := json.Marshal(FusedMessage{
		Session:  session,
		Yaw:      o.Yaw,
		Pitch:    o.Pitch,
		YawDeg:   yawDeg,
		PitchDeg: pitchDeg,
		Time:     time.Now().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("encode fused orientation: %w", err)
	}

	token := p.broker.Publish(p.topic, 0, false, payload)
	go func() {
		if token.Wait() && token.Error() != nil {
			debug.Warn("MQTT publish failed", token.Error())
		}
	}()
	return nil
}
