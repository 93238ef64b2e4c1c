// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/gyro_computer/internal/gyro"
)

// disconnectQuiesceMS is how long Disconnect waits for in-flight work.
const disconnectQuiesceMS = 250

// Connect opens an MQTT client to broker.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect to %s: %w", broker, token.Error())
	}
	return client, nil
}

// Publisher publishes gyro reports as retained JSON on one topic.
// It owns its client: Close disconnects it.
type Publisher struct {
	client mqtt.Client
	topic  string
	logger *zap.SugaredLogger
}

// Advertise connects to broker and returns a publisher for topic.
func Advertise(broker, clientID, topic string, logger *zap.SugaredLogger) (*Publisher, error) {
	client, err := Connect(broker, clientID)
	if err != nil {
		return nil, err
	}
	logger.Infof("advertised %s on %s", topic, broker)
	return NewPublisher(client, topic, logger), nil
}

// NewPublisher wraps an already connected client.
func NewPublisher(client mqtt.Client, topic string, logger *zap.SugaredLogger) *Publisher {
	return &Publisher{client: client, topic: topic, logger: logger}
}

// Topic returns the report topic.
func (p *Publisher) Topic() string { return p.topic }

// Client returns the underlying MQTT client.
func (p *Publisher) Client() mqtt.Client { return p.client }

// Publish implements gyro.Sink.
func (p *Publisher) Publish(r gyro.Report) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("json marshal (gyro): %w", err)
	}
	if token := p.client.Publish(p.topic, 0, true, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT publish (%s): %w", p.topic, token.Error())
	}
	return nil
}

// Close unadvertises the topic by disconnecting the client.
func (p *Publisher) Close() error {
	p.client.Disconnect(disconnectQuiesceMS)
	p.logger.Infof("unadvertised %s", p.topic)
	return nil
}

// SubscribeReports decodes every report published on topic and passes it
// to handle. Undecodable payloads are logged and skipped.
func SubscribeReports(client mqtt.Client, topic string, logger *zap.SugaredLogger, handle func(gyro.Report)) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r gyro.Report
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			logger.Warnf("gyro unmarshal error on %s: %v", msg.Topic(), err)
			return
		}
		handle(r)
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("MQTT subscribe (%s): %w", topic, token.Error())
	}
	logger.Infof("subscribed to %s", topic)
	return nil
}

// SubscribeControl applies control messages from topic to target.
func SubscribeControl(client mqtt.Client, topic string, deviceID uint32, target Controller, logger *zap.SugaredLogger) error {
	token := client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		applied, err := ApplyControl(msg.Payload(), deviceID, target)
		if err != nil {
			logger.Warnf("control message rejected: %v", err)
			return
		}
		if applied {
			logger.Infof("control applied: %s", msg.Payload())
		}
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("MQTT subscribe (%s): %w", topic, token.Error())
	}
	logger.Infof("listening for control messages on %s", topic)
	return nil
}

// SendControl publishes a control message on topic.
func SendControl(client mqtt.Client, topic string, msg ControlMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("json marshal (control): %w", err)
	}
	if token := client.Publish(topic, 1, false, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT publish (%s): %w", topic, token.Error())
	}
	return nil
}
