package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/project-flogo/core/support/log"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/project-flogo/petriflow/support/event"
)

const (
	HeaderEventType = "x-event-type"
	HeaderCaseID    = "x-case-id"

	publishTimeout = 5 * time.Second
)

var logger = log.ChildLogger(log.RootLogger(), "petriflow-amqp")

// Publisher publishes messages to an exchange, *amqp.Channel is a Publisher
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Sink publishes the events of an engine to a topic exchange
type Sink struct {
	ch       Publisher
	exchange string
}

func NewSink(ch Publisher, exchange string) *Sink {
	return &Sink{ch: ch, exchange: exchange}
}

// Dial connects to the broker and declares the topic exchange events are
// published to.  Closing the returned connection stops the sink.
func Dial(url string, exchange string) (*Sink, *amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // delete when unused
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("unable to declare exchange '%s': %w", exchange, err)
	}

	return NewSink(ch, exchange), conn, nil
}

// Listener returns the sink as an engine listener
func (s *Sink) Listener() event.Listener {
	return func(evt interface{}) {
		if err := s.Publish(context.Background(), evt); err != nil {
			logger.Warnf("Unable to publish %s event: %v", event.EventType(evt), err)
		}
	}
}

// Publish sends one event to the exchange
func (s *Sink) Publish(ctx context.Context, evt interface{}) error {

	key, caseID, err := RoutingKey(evt)
	if err != nil {
		return err
	}

	msg, err := Publishing(evt)
	if err != nil {
		return err
	}
	msg.Headers[HeaderCaseID] = caseID

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if logger.DebugEnabled() {
		logger.Debugf("Publishing '%s' to exchange '%s'", key, s.exchange)
	}
	return s.ch.PublishWithContext(ctx, s.exchange, key, false, false, msg)
}

// RoutingKey returns the topic of an event: case.<caseId>.<status>,
// workitem.<caseId>.<status> or fire.<caseId>.<taskId>
func RoutingKey(evt interface{}) (key string, caseID string, err error) {
	switch t := evt.(type) {
	case *event.CaseEvent:
		return "case." + t.CaseID + "." + string(t.Status), t.CaseID, nil
	case *event.WorkItemEvent:
		return "workitem." + t.CaseID + "." + string(t.Status), t.CaseID, nil
	case *event.FireResult:
		return "fire." + t.CaseID + "." + t.TaskID, t.CaseID, nil
	default:
		return "", "", fmt.Errorf("unsupported event type %T", evt)
	}
}

// Publishing encodes an event as a persistent JSON message
func Publishing(evt interface{}) (amqp.Publishing, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return amqp.Publishing{}, err
	}

	return amqp.Publishing{
		Body:         body,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers: amqp.Table{
			HeaderEventType: event.EventType(evt),
		},
	}, nil
}
