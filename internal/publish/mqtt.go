// Package publish fans persisted alerts out to an MQTT broker so dashboards
// and other consumers see them without polling the notification feed.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

const (
	defaultTopicPrefix = "fleet/alerts"
	publishTimeout     = 5 * time.Second
)

// Publisher announces a persisted alert.
type Publisher interface {
	Publish(ctx context.Context, alert models.Alert) error
}

// NopPublisher is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.Alert) error { return nil }

// tokenPublisher is the part of mqtt.Client used here.
type tokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTPublisher publishes alerts as JSON with QoS 1 to <prefix>/<kind>.
type MQTTPublisher struct {
	client tokenPublisher
	prefix string
}

// Event is the wire form of an alert on the bus.
type Event struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	VehicleID string         `json:"vehicle_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ConnectMQTT connects to broker and returns a publisher on topicPrefix.
func ConnectMQTT(broker, clientID, topicPrefix string) (*MQTTPublisher, mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, nil, fmt.Errorf("mqtt connect to %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		return nil, nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	return NewMQTTPublisher(client, topicPrefix), client, nil
}

// NewMQTTPublisher wraps an already connected client.
func NewMQTTPublisher(client tokenPublisher, topicPrefix string) *MQTTPublisher {
	prefix := strings.TrimRight(topicPrefix, "/")
	if prefix == "" {
		prefix = defaultTopicPrefix
	}
	return &MQTTPublisher{client: client, prefix: prefix}
}

// Topic returns the topic an alert of kind is published on.
func (p *MQTTPublisher) Topic(kind models.AlertKind) string {
	return p.prefix + "/" + string(kind)
}

func (p *MQTTPublisher) Publish(ctx context.Context, alert models.Alert) error {
	payload, err := json.Marshal(NewEvent(alert))
	if err != nil {
		return fmt.Errorf("marshal alert event: %w", err)
	}

	token := p.client.Publish(p.Topic(alert.Kind), 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("mqtt publish %s: timeout", p.Topic(alert.Kind))
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", p.Topic(alert.Kind), err)
	}
	return nil
}

// NewEvent converts an alert to its bus form.
func NewEvent(alert models.Alert) Event {
	ev := Event{
		Kind:      string(alert.Kind),
		Title:     alert.Title,
		Message:   alert.Message,
		VehicleID: alert.VehicleHex(),
		CreatedAt: alert.CreatedAt,
		Metadata:  alert.Metadata,
	}
	if !alert.ID.IsZero() {
		ev.ID = alert.ID.Hex()
	}
	return ev
}
