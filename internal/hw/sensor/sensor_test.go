package sensor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjeanneret/PanView/internal/logic/motion"
	"github.com/cjeanneret/PanView/internal/logic/orientation"
)

type fakeToken struct{ err error }

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Error() error                   { return t.err }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeBroker struct {
	mu           sync.Mutex
	handler      mqtt.MessageHandler
	subscribed   string
	unsubscribed []string
	published    []published
	subErr       error
}

func (b *fakeBroker) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribed = topic
	b.handler = cb
	return fakeToken{err: b.subErr}
}

func (b *fakeBroker) Unsubscribe(topics ...string) mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unsubscribed = append(b.unsubscribed, topics...)
	return fakeToken{}
}

func (b *fakeBroker) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, published{topic, qos, retained, payload.([]byte)})
	return fakeToken{}
}

func (b *fakeBroker) deliver(payload string) {
	b.mu.Lock()
	h := b.handler
	b.mu.Unlock()
	h(nil, fakeMessage{topic: b.subscribed, payload: []byte(payload)})
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestDecodeSample(t *testing.T) {
	s, err := DecodeSample([]byte(`{"alpha":10,"beta":20,"gamma":-5}`))
	require.NoError(t, err)
	assert.Equal(t, 10.0, *s.Alpha)
	assert.Equal(t, 20.0, *s.Beta)
	assert.Equal(t, -5.0, *s.Gamma)

	s, err = DecodeSample([]byte(`{"yaw":90,"pitch":-3,"roll":1,"source":"imu"}`))
	require.NoError(t, err)
	assert.Equal(t, 90.0, *s.Alpha)
	assert.Equal(t, -3.0, *s.Beta)
	assert.Equal(t, 1.0, *s.Gamma)

	s, err = DecodeSample([]byte(`{"alpha":null,"beta":4}`))
	require.NoError(t, err)
	assert.Nil(t, s.Alpha)
	assert.Equal(t, 4.0, *s.Beta)

	_, err = DecodeSample([]byte(`not json`))
	assert.Error(t, err)
}

func TestFeed_FanOut(t *testing.T) {
	b := &fakeBroker{}
	f, err := NewFeed(b, "panview/device/orientation")
	require.NoError(t, err)
	assert.Equal(t, "panview/device/orientation", b.subscribed)

	assert.True(t, f.Supported())
	assert.False(t, f.RequiresPermission())
	p, err := f.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, motion.PermissionGranted, p)

	var first, second []motion.RawSample
	stopFirst := f.Subscribe(func(s motion.RawSample) { first = append(first, s) })
	f.Subscribe(func(s motion.RawSample) { second = append(second, s) })
	assert.Equal(t, 2, f.Subscribers())

	b.deliver(`{"alpha":1,"beta":2,"gamma":3}`)
	stopFirst()
	b.deliver(`{"alpha":4,"beta":5,"gamma":6}`)
	b.deliver(`garbage`)

	assert.Len(t, first, 1)
	assert.Len(t, second, 2)
	assert.Equal(t, 1, f.Subscribers())
	assert.Equal(t, 4.0, *second[1].Alpha)

	require.NoError(t, f.Close())
	assert.Equal(t, []string{"panview/device/orientation"}, b.unsubscribed)
}

func TestFeed_SubscribeError(t *testing.T) {
	b := &fakeBroker{subErr: errors.New("not authorized")}
	_, err := NewFeed(b, "t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not authorized")
}

func TestFeed_DrivesMotionSource(t *testing.T) {
	b := &fakeBroker{}
	f, err := NewFeed(b, "t")
	require.NoError(t, err)

	var got []orientation.Orientation
	src := motion.NewSource(f, func(o orientation.Orientation) { got = append(got, o) })
	src.Start()
	b.deliver(`{"alpha":100,"beta":0,"gamma":0}`)
	b.deliver(`{"alpha":130,"beta":45,"gamma":0}`)
	src.Dispose()
	b.deliver(`{"alpha":170,"beta":0,"gamma":0}`)

	require.Len(t, got, 2)
	assert.InDelta(t, 0, got[0].Yaw, 1e-9)
	assert.InDelta(t, 30*orientation.DegToRad, got[1].Yaw, 1e-9)
	assert.InDelta(t, 45*orientation.DegToRad, got[1].Pitch, 1e-9)
}

func TestMock_Subscribe(t *testing.T) {
	m := NewMock(5 * time.Millisecond)
	assert.True(t, m.Supported())
	assert.False(t, m.RequiresPermission())

	samples := make(chan motion.RawSample, 16)
	stop := m.Subscribe(func(s motion.RawSample) {
		select {
		case samples <- s:
		default:
		}
	})
	defer stop()

	select {
	case s := <-samples:
		require.NotNil(t, s.Alpha)
		assert.GreaterOrEqual(t, *s.Alpha, 0.0)
		assert.Less(t, *s.Alpha, 360.0)
	case <-time.After(time.Second):
		t.Fatal("no sample from mock")
	}
	stop()
	stop()
}

func TestSampleAt(t *testing.T) {
	s := SampleAt(0)
	assert.Equal(t, 0.0, *s.Alpha)
	assert.Equal(t, 15.0, *s.Beta)
	assert.Equal(t, 0.0, *s.Gamma)

	s = SampleAt(2 * time.Second)
	assert.InDelta(t, 60, *s.Alpha, 1e-9)
}

func TestPublisher_Publish(t *testing.T) {
	b := &fakeBroker{}
	p := NewPublisher(b, "panview/view/orientation")

	require.NoError(t, p.Publish("abc", orientation.Orientation{Yaw: 0.5, Pitch: -0.25}))
	require.Len(t, b.published, 1)
	msg := b.published[0]
	assert.Equal(t, "panview/view/orientation", msg.topic)
	assert.Equal(t, byte(0), msg.qos)
	assert.False(t, msg.retained)

	var fm FusedMessage
	require.NoError(t, json.Unmarshal(msg.payload, &fm))
	assert.Equal(t, "abc", fm.Session)
	assert.Equal(t, 0.5, fm.Yaw)
	assert.Equal(t, -0.25, fm.Pitch)
	assert.InDelta(t, 0.5*orientation.RadToDeg, fm.YawDeg, 1e-9)
	assert.NotEmpty(t, fm.Time)
}
