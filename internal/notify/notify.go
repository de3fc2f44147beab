// Package notify publishes due reminders to an AMQP queue so external
// consumers (bots, mailers) can deliver them. The feature is optional; the
// planner runs without a publisher wired in.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"

	"github.com/oxifinch/dayblazer-calendar/internal/config"
	"github.com/oxifinch/dayblazer-calendar/internal/dates"
	"github.com/oxifinch/dayblazer-calendar/internal/log"
	"github.com/oxifinch/dayblazer-calendar/internal/model"
)

// Message is the wire shape of one reminder notification.
type Message struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
}

// Publisher holds one AMQP connection and the declared reminder queue.
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue

	connString string
	queueName  string
}

func New(cfg config.AMQPConfig) *Publisher {
	return &Publisher{
		connString: fmt.Sprintf(
			"amqp://%s:%s@%s:%s/",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
		),
		queueName: cfg.Queue,
	}
}

func (p *Publisher) Connect() error {
	var err error
	p.conn, err = amqp.Dial(p.connString)
	if err != nil {
		return err
	}

	p.channel, err = p.conn.Channel()
	if err != nil {
		return err
	}
	p.queue, err = p.channel.QueueDeclare(
		p.queueName,
		false,
		true,
		false,
		false,
		nil,
	)
	return err
}

func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// NotifyReminders publishes one message per reminder due on day. Used as
// the planner's notifier after each refresh.
func (p *Publisher) NotifyReminders(ctx context.Context, day dates.Date, reminders []model.Event) error {
	for _, ev := range reminders {
		if err := ctx.Err(); err != nil {
			return err
		}
		body, err := json.Marshal(Message{
			ID:        ev.ID,
			Name:      ev.Name,
			Date:      day.Key(),
			StartTime: ev.StartTime,
		})
		if err != nil {
			return fmt.Errorf("notify: encode reminder %s: %w", ev.ID, err)
		}
		if err := p.publish(body); err != nil {
			return fmt.Errorf("notify: publish reminder %s: %w", ev.ID, err)
		}
	}
	log.Info("reminders published", "day", day.Key(), "count", len(reminders))
	return nil
}

func (p *Publisher) publish(body []byte) error {
	return p.channel.Publish(
		"",           // exchange
		p.queue.Name, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
}
