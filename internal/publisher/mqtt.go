package publisher

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/jgoulah/vandebron/internal/config"
	"github.com/jgoulah/vandebron/pkg/models"
)

// MQTTSink publishes usage readings to an MQTT broker, one message per
// point, for Home Assistant style consumers.
type MQTTSink struct {
	client      mqtt.Client
	topicPrefix string
}

// NewMQTTSink connects to the configured broker
func NewMQTTSink(cfg config.MQTTConfig) (*MQTTSink, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID("vandebron")
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}

	return &MQTTSink{
		client:      client,
		topicPrefix: cfg.GetTopicPrefix(),
	}, nil
}

// mqttReading is the message payload for one point
type mqttReading struct {
	Value float64 `json:"value"`
	Time  string  `json:"time"`
}

// PublishBucket publishes the two readings for one archived bucket to
// <prefix>/<market>/<type>
func (s *MQTTSink) PublishBucket(b models.UsageBucket) error {
	points, err := BucketPoints(b)
	if err != nil {
		return err
	}

	for _, pt := range points {
		payload, err := json.Marshal(mqttReading{
			Value: pt.Value,
			Time:  time.Unix(pt.Timestamp, 0).UTC().Format(time.RFC3339),
		})
		if err != nil {
			return fmt.Errorf("encoding reading: %w", err)
		}

		topic := fmt.Sprintf("%s/%s/%s", s.topicPrefix, pt.Measurement, pt.Type)
		if token := s.client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
			return fmt.Errorf("publishing to %s: %w", topic, token.Error())
		}
	}

	return nil
}

// Close disconnects from the MQTT broker
func (s *MQTTSink) Close() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
	}
}
