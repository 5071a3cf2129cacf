// Package email renders maintenance alerts and mails them to administrators.
package email

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

var errNoAddress = errors.New("recipient has no email address")

// Delivery is the outcome for one recipient.
type Delivery struct {
	Recipient models.User
	Sent      bool
	Err       error
}

// Dispatcher sends one rendered alert to every recipient independently.
type Dispatcher struct {
	transport Transport
	renderer  *Renderer
}

// NewDispatcher builds a dispatcher.
func NewDispatcher(transport Transport, renderer *Renderer) *Dispatcher {
	return &Dispatcher{transport: transport, renderer: renderer}
}

// Notify renders alert once and sends it to each recipient. A failure for one
// recipient is logged and does not stop the others.
func (d *Dispatcher) Notify(ctx context.Context, alert models.Alert, vehicle *models.Vehicle, recipients []models.User) []Delivery {
	deliveries := make([]Delivery, 0, len(recipients))
	if len(recipients) == 0 {
		return deliveries
	}

	msg, err := d.renderer.Render(alert, vehicle)
	if err != nil {
		log.WithError(err).WithField("title", alert.Title).Error("Failed to render alert email")
		for _, r := range recipients {
			deliveries = append(deliveries, Delivery{Recipient: r, Err: err})
		}
		return deliveries
	}

	for _, r := range recipients {
		if r.Email == "" {
			deliveries = append(deliveries, Delivery{Recipient: r, Err: errNoAddress})
			continue
		}
		if err := d.transport.Send(ctx, r.Email, msg.Subject, msg.HTML, msg.Text); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"recipient": r.Email,
				"title":     alert.Title,
			}).Warn("Failed to send alert email")
			deliveries = append(deliveries, Delivery{Recipient: r, Err: err})
			continue
		}
		deliveries = append(deliveries, Delivery{Recipient: r, Sent: true})
	}
	return deliveries
}
