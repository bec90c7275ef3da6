package mqtt

import (
	"encoding/json"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/fleetvolt/battsched/core/model"
	"github.com/fleetvolt/battsched/infra/logger"
	"github.com/fleetvolt/battsched/internal/eventbus"
)

// SourcePush labels schedules that arrived over the broker.
const SourcePush = "push"

// Subscriber listens on the device schedule topic and forwards pushed
// schedules onto the event bus. It never touches agent state itself; the
// bus is the only handoff between the Paho delivery goroutine and the loop
// owning the active schedule.
type Subscriber struct {
	cli      pahoClient
	deviceID string
	topic    string
	bus      *eventbus.Bus[model.ScheduleMessage]
	log      logger.Logger
	qos      byte
}

// NewSubscriber connects to the broker and subscribes to the schedule topic
// for the given device. The subscription is re-established on reconnect.
func NewSubscriber(cfg Config, deviceID string, bus *eventbus.Bus[model.ScheduleMessage], log logger.Logger) (*Subscriber, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NopLogger{}
	}

	s := &Subscriber{
		deviceID: deviceID,
		topic:    ScheduleTopic(deviceID),
		bus:      bus,
		log:      log,
		qos:      cfg.qos("schedule"),
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected, subscribing to %s", s.topic)
		if token := c.Subscribe(s.topic, s.qos, s.onMessage); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}

	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	s.cli = c
	return s, nil
}

func (s *Subscriber) onMessage(_ paho.Client, msg paho.Message) {
	var m model.ScheduleMessage
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		s.log.Errorf("failed to decode schedule push: %v", err)
		return
	}
	if m.DeviceID != s.deviceID {
		s.log.Debugf("discarding schedule push for %s", m.DeviceID)
		return
	}
	m.Source = SourcePush
	s.log.Infof("received schedule push: %d entries", len(m.Schedule))
	s.bus.Publish(m)
}

// Disconnect gracefully closes the MQTT connection.
func (s *Subscriber) Disconnect() {
	if s.cli != nil && s.cli.IsConnected() {
		s.cli.Disconnect(250)
	}
}
