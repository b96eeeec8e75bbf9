// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTT adapts an eclipse/paho.mqtt.golang client to Transport. Each engine
// publishes requests to requestTopic and subscribes to a dedicated reply
// topic, so responses are demultiplexed by MQTT's own topic routing rather
// than a shared connection. The client is configured with CleanSession so
// no on-disk MQTT session state is ever persisted by this transport — the
// session-file format mentioned in spec.md §6 is explicitly out of scope.
type MQTT struct {
	client       mqtt.Client
	requestTopic string
	replyTopic   string
	qos          byte

	mu    sync.Mutex
	state State
}

// MQTTDial connects to broker using sessionID to derive a dedicated reply
// topic (<baseTopic>/reply/<sessionID>), publishing requests to
// <baseTopic>/request.
func MQTTDial(ctx context.Context, brokerURL, baseTopic, sessionID string) (Transport, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(fmt.Sprintf("mcpconn-%s", sessionID)).
		SetCleanSession(true).
		SetAutoReconnect(false)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(30 * time.Second) {
		return nil, fmt.Errorf("mqtt: connect timed out")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect: %w", err)
	}

	return &MQTT{
		client:       client,
		requestTopic: baseTopic + "/request",
		replyTopic:   baseTopic + "/reply/" + sessionID,
		qos:          1,
	}, nil
}

func (m *MQTT) Start(ctx context.Context, onMessage OnMessage, onError OnError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Started {
		return nil
	}
	if m.state != Created {
		return ErrNotStarted
	}

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		if onMessage == nil {
			return
		}
		reply, ok := onMessage(msg.Payload())
		if !ok {
			return
		}
		m.publish(m.requestTopic, reply, onError)
	}

	token := m.client.Subscribe(m.replyTopic, m.qos, handler)
	if !token.WaitTimeout(30 * time.Second) {
		return fmt.Errorf("mqtt: subscribe timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: subscribe: %w", err)
	}

	m.client.AddRoute(m.replyTopic, handler)
	m.state = Started
	return nil
}

func (m *MQTT) publish(topic string, data []byte, onError OnError) error {
	token := m.client.Publish(topic, m.qos, false, data)
	if !token.WaitTimeout(30 * time.Second) {
		err := fmt.Errorf("mqtt: publish timed out")
		if onError != nil {
			onError(&FatalError{Op: "send", Err: err})
		}
		return err
	}
	if err := token.Error(); err != nil {
		if onError != nil {
			onError(&FatalError{Op: "send", Err: err})
		}
		return err
	}
	return nil
}

func (m *MQTT) Send(data []byte) error {
	m.mu.Lock()
	started := m.state == Started
	m.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	return m.publish(m.requestTopic, data, nil)
}

func (m *MQTT) SendV(buffers [][]byte) error {
	var total []byte
	for _, b := range buffers {
		total = append(total, b...)
	}
	return m.Send(total)
}

func (m *MQTT) Stop() error {
	m.mu.Lock()
	if m.state == Stopping || m.state == Destroyed {
		m.mu.Unlock()
		return nil
	}
	m.state = Stopping
	m.mu.Unlock()

	m.client.Unsubscribe(m.replyTopic)
	m.client.Disconnect(250)
	return nil
}

func (m *MQTT) Destroy() error {
	err := m.Stop()
	m.mu.Lock()
	m.state = Destroyed
	m.mu.Unlock()
	return err
}
