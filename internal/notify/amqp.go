package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// AMQPConfig configures event fan-out to a message broker.
type AMQPConfig struct {
	URL        string `yaml:"url" mapstructure:"url"`
	Exchange   string `yaml:"exchange" mapstructure:"exchange"`
	RoutingKey string `yaml:"routing_key" mapstructure:"routing_key"`
}

// amqpChannel is the part of *amqp.Channel the publisher uses.
type amqpChannel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// amqpSession owns a connection and its channel; closing it closes both.
type amqpSession struct {
	*amqp.Channel
	conn *amqp.Connection
}

func (s *amqpSession) Close() error {
	chErr := s.Channel.Close()
	connErr := s.conn.Close()
	if chErr != nil {
		return chErr
	}
	return connErr
}

func dialAMQP(cfg AMQPConfig) (amqpChannel, error) {
	conn, err := amqp.DialConfig(cfg.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Dial:      amqp.DefaultDial(5 * time.Second),
	})
	if err != nil {
		return nil, eris.Wrap(err, "amqp: dial")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, eris.Wrap(err, "amqp: open channel")
	}
	if cfg.Exchange != "" {
		if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, eris.Wrapf(err, "amqp: declare exchange %s", cfg.Exchange)
		}
	}
	return &amqpSession{Channel: ch, conn: conn}, nil
}

// AMQPPublisher publishes every event as a persistent JSON message. A
// broken connection is dropped and redialed on the next event.
type AMQPPublisher struct {
	cfg  AMQPConfig
	dial func(AMQPConfig) (amqpChannel, error)
	log  *zap.Logger

	mu sync.Mutex
	ch amqpChannel
}

// NewAMQPPublisher creates a publisher. No connection is made until the
// first event.
func NewAMQPPublisher(cfg AMQPConfig) *AMQPPublisher {
	if cfg.Exchange == "" {
		cfg.Exchange = "callscore.events"
	}
	if cfg.RoutingKey == "" {
		cfg.RoutingKey = "call.analyzed"
	}
	return &AMQPPublisher{
		cfg:  cfg,
		dial: dialAMQP,
		log:  zap.L().With(zap.String("component", "amqp")),
	}
}

// Run publishes events from sub until ctx is done or sub is closed. Publish
// failures are logged and the event is dropped.
func (p *AMQPPublisher) Run(ctx context.Context, sub *Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := p.Publish(ev); err != nil {
				p.log.Warn("publish event failed", zap.String("call_id", ev.CallID), zap.Error(err))
			}
		}
	}
}

// Publish sends one event.
func (p *AMQPPublisher) Publish(ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "amqp: marshal event")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		ch, err := p.dial(p.cfg)
		if err != nil {
			return err
		}
		p.ch = ch
	}

	err = p.ch.Publish(p.cfg.Exchange, p.cfg.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.CallID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		_ = p.ch.Close()
		p.ch = nil
		return eris.Wrap(err, "amqp: publish")
	}
	return nil
}

// Close releases the connection, if any.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	p.ch = nil
	return err
}
