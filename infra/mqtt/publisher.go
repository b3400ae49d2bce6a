// Package mqtt publishes sweep rows to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/fleetplan/core/logger"
	"github.com/kilianp07/fleetplan/core/results"
	infralogger "github.com/kilianp07/fleetplan/infra/logger"
)

// ErrQueryUnsupported is returned by Query: a broker keeps no history.
var ErrQueryUnsupported = errors.New("mqtt: publisher cannot be queried")

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Publisher sends each sweep record as JSON to <prefix>/<run_id>/<index>.
// It satisfies results.Store so it can stand in for a file-backed store.
type Publisher struct {
	cli     pahoClient
	cfg     Config
	log     logger.Logger
	backoff time.Duration
}

// NewPublisher connects to the broker.
func NewPublisher(cfg Config) (*Publisher, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := infralogger.New("mqtt_publisher")
	opts.OnConnect = func(paho.Client) {
		log.Infof("MQTT connected to %s", cfg.Broker)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt: connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", cfg.Broker, err)
	}
	return &Publisher{cli: c, cfg: cfg, log: log, backoff: time.Duration(cfg.BackoffMS) * time.Millisecond}, nil
}

// Topic returns the topic a record is published on.
func (p *Publisher) Topic(rec results.Record) string {
	return p.cfg.TopicPrefix + "/" + rec.RunID + "/" + strconv.Itoa(rec.Row.Index)
}

// Publish sends rec, retrying with exponential backoff until the retry
// budget or ctx runs out. A negative MaxRetries disables retries.
func (p *Publisher) Publish(ctx context.Context, rec results.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	topic := p.Topic(rec)
	retries := max(0, p.cfg.MaxRetries)
	var publishErr error
	for attempt := 0; attempt <= retries; attempt++ {
		token := p.cli.Publish(topic, p.cfg.QoS, p.cfg.Retain, payload)
		select {
		case <-token.Done():
			publishErr = token.Error()
		case <-ctx.Done():
			return ctx.Err()
		}
		if publishErr == nil {
			p.log.Debugf("published row %d of %s to %s", rec.Row.Index, rec.RunID, topic)
			return nil
		}
		p.log.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt == retries {
			break
		}
		select {
		case <-time.After(p.backoff * time.Duration(1<<attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("mqtt: publish to %s: %w", topic, publishErr)
}

// Append implements results.Store.
func (p *Publisher) Append(ctx context.Context, rec results.Record) error {
	return p.Publish(ctx, rec)
}

// Query implements results.Store and always fails.
func (p *Publisher) Query(context.Context, results.Query) ([]results.Record, error) {
	return nil, ErrQueryUnsupported
}

// Close gracefully closes the MQTT connection.
func (p *Publisher) Close() error {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
	return nil
}
