package mqtt

import (
	"encoding/json"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/fleetvolt/battsched/core/model"
	"github.com/fleetvolt/battsched/infra/logger"
)

// Publisher pushes schedules to device topics. It is the authority-side
// counterpart of Subscriber.
type Publisher struct {
	cli        pahoClient
	qos        byte
	maxRetries int
	backoff    time.Duration
	log        logger.Logger
}

// NewPublisher connects to the broker for schedule distribution.
func NewPublisher(cfg Config, log logger.Logger) (*Publisher, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &Publisher{
		cli:        c,
		qos:        cfg.qos("schedule"),
		maxRetries: cfg.retries(),
		backoff:    cfg.backoff(),
		log:        log,
	}, nil
}

// PublishSchedule pushes the schedule to the device topic, retrying with
// exponential backoff on publish failure.
func (p *Publisher) PublishSchedule(deviceID string, entries []model.RawEntry) error {
	payload, err := json.Marshal(model.ScheduleMessage{DeviceID: deviceID, Schedule: entries})
	if err != nil {
		return err
	}
	topic := ScheduleTopic(deviceID)

	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, p.qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.log.Infof("published schedule to %s (%d entries)", topic, len(entries))
			return nil
		}
		p.log.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		time.Sleep(p.backoff * time.Duration(1<<attempt))
	}
	return publishErr
}

// Disconnect gracefully closes the MQTT connection.
func (p *Publisher) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
