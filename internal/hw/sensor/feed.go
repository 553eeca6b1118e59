// Package sensor provides device orientation platforms that do not live in
// the viewer's browser: a shared IMU feed on an MQTT broker and a synthetic
// source for development, plus the publisher that puts fused orientations
// back on the bus.
package sensor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/cjeanneret/PanView/internal/debug"
	"github.com/cjeanneret/PanView/internal/logic/motion"
)

// Broker is the part of mqtt.Client used by this package.
type Broker interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Connect opens an MQTT connection with automatic reconnects.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	debug.Info("connected to MQTT broker at %s", broker)
	return client, nil
}

// Feed is an ambient motion.Platform fed by one MQTT topic. Every viewer
// subscribed to the feed receives every sample.
type Feed struct {
	broker Broker
	topic  string

	mu   sync.Mutex
	subs map[uint64]func(motion.RawSample)
	next uint64
}

var _ motion.Platform = (*Feed)(nil)

// NewFeed subscribes to topic on broker.
func NewFeed(broker Broker, topic string) (*Feed, error) {
	f := &Feed{
		broker: broker,
		topic:  topic,
		subs:   make(map[uint64]func(motion.RawSample)),
	}
	token := broker.Subscribe(topic, 0, f.onMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	debug.Info("subscribed to MQTT topic %s", topic)
	return f, nil
}

// Close unsubscribes from the broker.
func (f *Feed) Close() error {
	token := f.broker.Unsubscribe(f.topic)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", f.topic, err)
	}
	return nil
}

func (f *Feed) Supported() bool          { return true }
func (f *Feed) RequiresPermission() bool { return false }

// RequestPermission always grants: the feed is not gated by a prompt.
func (f *Feed) RequestPermission(context.Context) (motion.Permission, error) {
	return motion.PermissionGranted, nil
}

// Subscribe registers fn for every sample received after the call.
func (f *Feed) Subscribe(fn func(motion.RawSample)) func() {
	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

// Subscribers returns the number of registered viewers.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *Feed) onMessage(_ mqtt.Client, msg mqtt.Message) {
	sample, err := DecodeSample(msg.Payload())
	if err != nil {
		debug.Warn("orientation payload dropped", err)
		return
	}
	f.dispatch(sample)
}

func (f *Feed) dispatch(sample motion.RawSample) {
	f.mu.Lock()
	fns := make([]func(motion.RawSample), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(sample)
	}
}

type wireSample struct {
	Alpha *float64 `json:"alpha"`
	Beta  *float64 `json:"beta"`
	Gamma *float64 `json:"gamma"`

	// IMU producers publish poses as yaw/pitch/roll in degrees.
	Yaw   *float64 `json:"yaw"`
	Pitch *float64 `json:"pitch"`
	Roll  *float64 `json:"roll"`
}

// DecodeSample parses a device orientation payload. Both the browser shape
// {"alpha","beta","gamma"} and the IMU pose shape {"yaw","pitch","roll"}
// are accepted; missing axes stay nil.
func DecodeSample(payload []byte) (motion.RawSample, error) {
	var w wireSample
	if err := json.Unmarshal(payload, &w); err != nil {
		return motion.RawSample{}, fmt.Errorf("decode orientation: %w", err)
	}
	if w.Alpha == nil && w.Beta == nil && w.Gamma == nil {
		return motion.RawSample{Alpha: w.Yaw, Beta: w.Pitch, Gamma: w.Roll}, nil
	}
	return motion.RawSample{Alpha: w.Alpha, Beta: w.Beta, Gamma: w.Gamma}, nil
}
