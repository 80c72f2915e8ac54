package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// ReservationQueue is the durable queue that carries reservation events.
const ReservationQueue = "reservation.events"

// handshakeTimeout bounds the TCP connect and AMQP handshake when the
// caller's context carries no deadline.
const handshakeTimeout = 30 * time.Second

// Publisher sends reservation events to RabbitMQ.  A connection is dialed
// per publish; the connect and handshake honour the caller's context
// deadline and cancellation.
type Publisher struct {
	URL   string
	Queue string
	Log   logrus.FieldLogger

	// dial is replaced in tests.
	dial func(ctx context.Context, url string) (channel, func(), error)
}

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// NewPublisher returns a Publisher for the reservation events queue.
func NewPublisher(url string, log logrus.FieldLogger) *Publisher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Publisher{URL: url, Queue: ReservationQueue, Log: log, dial: dialChannel}
}

func dialChannel(ctx context.Context, url string) (channel, func(), error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Locale: "en_US",
		Dial:   contextDialer(ctx),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("channel open: %w", err)
	}
	return ch, func() {
		_ = ch.Close()
		_ = conn.Close()
	}, nil
}

// contextDialer connects under ctx and sets the handshake deadline from
// it. amqp clears the deadline once the connection is open.
func contextDialer(ctx context.Context) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		deadline, ok := ctx.Deadline()
		if !ok {
			deadline = time.Now().Add(handshakeTimeout)
		}
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

// PublishReservation publishes ev as a persistent JSON message.  Errors
// are returned to the caller, which decides how to report them.
func (p *Publisher) PublishReservation(ctx context.Context, ev ReservationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event: %w", err)
	}

	ch, closeFn, err := p.dial(ctx, p.URL)
	if err != nil {
		return fmt.Errorf("rabbitmq: %w", err)
	}
	defer closeFn()

	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: queue declare: %w", err)
	}

	msgID := ev.EventID
	if msgID == "" {
		msgID = uuid.NewString()
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msgID,
		Type:         ev.Type,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}
	p.Log.WithFields(logrus.Fields{"event_id": msgID, "event_type": ev.Type}).Debug("rabbitmq: event published")
	return nil
}
