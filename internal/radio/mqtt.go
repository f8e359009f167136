// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package radio

import (
	"context"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// Publisher is the part of mqtt.Client the uplink needs.
type Publisher interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTUplink forwards payloads to an MQTT broker instead of a radio, e.g. a
// bench gateway bridge. The payload is published unchanged.
type MQTTUplink struct {
	client  Publisher
	topic   string
	timeout time.Duration
}

// NewMQTTUplink publishes to "<topicPrefix>/<devAddr>".
func NewMQTTUplink(client Publisher, topicPrefix, devAddr string, timeout time.Duration) *MQTTUplink {
	return &MQTTUplink{
		client:  client,
		topic:   strings.TrimSuffix(topicPrefix, "/") + "/" + devAddr,
		timeout: timeout,
	}
}

// Topic returns the publish topic.
func (u *MQTTUplink) Topic() string { return u.topic }

// Send publishes payload at QoS 1 and waits for the broker acknowledgement.
func (u *MQTTUplink) Send(ctx context.Context, payload []byte) Status {
	if !u.client.IsConnected() {
		log.WithError(ErrNotJoined).Warn("radio: mqtt uplink disconnected")
		return StatusNotJoined
	}

	token := u.client.Publish(u.topic, 1, false, payload)
	select {
	case <-token.Done():
	case <-time.After(u.timeout):
		return StatusTimeout
	case <-ctx.Done():
		return StatusTimeout
	}
	if err := token.Error(); err != nil {
		log.WithError(err).Warn("radio: mqtt publish error")
		return StatusError
	}
	return StatusOK
}
