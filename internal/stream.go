package internal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	wmamqp "github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	wmkafka "github.com/ThreeDotsLabs/watermill-kafka/pkg/kafka"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/pkg/nats"
	wmsql "github.com/ThreeDotsLabs/watermill-sql/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	stan "github.com/nats-io/stan.go"
)

// Stream publishes terminal-event notifications for external monitors.
// Publishing is best-effort: a broker outage must never fail an event.
type Stream interface {
	Publish(ctx context.Context, note Notification) error
	Close() error
}

type driverStream struct {
	driver    string
	topic     string
	publisher message.Publisher
	closeFn   func() error
}

// NewStream builds a Stream from configuration. With multiple drivers the
// notification goes to each of them; a driver that fails to initialize is
// skipped so one broker cannot take the whole core down.
func NewStream(cfg StreamConfig) (Stream, error) {
	logger := watermill.NewStdLogger(false, false)

	drivers := cfg.Drivers
	if len(drivers) == 0 && cfg.Driver != "" {
		drivers = []string{cfg.Driver}
	}
	if len(drivers) == 0 {
		drivers = []string{"gochannel"}
	}

	streams := make([]*driverStream, 0, len(drivers))
	for _, driver := range drivers {
		s, err := newDriverStream(cfg, strings.ToLower(driver), logger)
		if err != nil {
			logger.Error("outcome stream driver init failed, skipping", err, watermill.LogFields{
				"driver": driver,
			})
			continue
		}
		streams = append(streams, s)
	}
	if len(streams) == 0 {
		return nil, errors.New("no outcome stream drivers available")
	}
	return &streamMux{streams: streams}, nil
}

func newDriverStream(cfg StreamConfig, driver string, logger watermill.LoggerAdapter) (*driverStream, error) {
	out := &driverStream{driver: driver, topic: cfg.Topic}

	switch driver {
	case "gochannel":
		out.publisher = gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: cfg.GoChannel.OutputChannelBuffer,
				Persistent:          cfg.GoChannel.Persistent,
			},
			logger,
		)
	case "kafka":
		if len(cfg.Kafka.Brokers) == 0 {
			return nil, fmt.Errorf("kafka brokers are required")
		}
		pub, err := wmkafka.NewPublisher(cfg.Kafka.Brokers, wmkafka.DefaultMarshaler{}, nil, logger)
		if err != nil {
			return nil, err
		}
		out.publisher = pub
	case "nats":
		if cfg.NATS.ClusterID == "" || cfg.NATS.ClientID == "" {
			return nil, fmt.Errorf("nats cluster_id and client_id are required")
		}
		natsCfg := wmnats.StreamingPublisherConfig{
			ClusterID: cfg.NATS.ClusterID,
			ClientID:  cfg.NATS.ClientID,
			Marshaler: wmnats.GobMarshaler{},
		}
		if cfg.NATS.URL != "" {
			natsCfg.StanOptions = append(natsCfg.StanOptions, stan.NatsURL(cfg.NATS.URL))
		}
		pub, err := wmnats.NewStreamingPublisher(natsCfg, logger)
		if err != nil {
			return nil, err
		}
		out.publisher = pub
	case "amqp":
		if cfg.AMQP.URL == "" {
			return nil, fmt.Errorf("amqp url is required")
		}
		amqpCfg, err := amqpConfigFromMode(cfg.AMQP.URL, cfg.AMQP.Mode)
		if err != nil {
			return nil, err
		}
		pub, err := wmamqp.NewPublisher(amqpCfg, logger)
		if err != nil {
			return nil, err
		}
		out.publisher = pub
	case "sql":
		if cfg.SQL.Driver == "" || cfg.SQL.DSN == "" {
			return nil, fmt.Errorf("sql driver and dsn are required")
		}
		schemaAdapter, err := sqlSchemaAdapter(cfg.SQL.Dialect)
		if err != nil {
			return nil, err
		}
		db, err := sql.Open(cfg.SQL.Driver, cfg.SQL.DSN)
		if err != nil {
			return nil, err
		}
		pub, err := wmsql.NewPublisher(db, wmsql.PublisherConfig{
			SchemaAdapter:        schemaAdapter,
			AutoInitializeSchema: cfg.SQL.InitializeSchema,
		}, logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		out.publisher = pub
		out.closeFn = db.Close
	default:
		return nil, fmt.Errorf("unsupported stream driver: %s", driver)
	}

	return out, nil
}

func (s *driverStream) Publish(ctx context.Context, note Notification) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("kind", string(note.Kind))
	msg.Metadata.Set("status", string(note.Status))
	if err := s.publisher.Publish(s.topic, msg); err != nil {
		IncPublishError(s.driver)
		return err
	}
	return nil
}

func (s *driverStream) Close() error {
	err := s.publisher.Close()
	if s.closeFn != nil {
		return errors.Join(err, s.closeFn())
	}
	return err
}

type streamMux struct {
	streams []*driverStream
}

func (m *streamMux) Publish(ctx context.Context, note Notification) error {
	var err error
	for _, s := range m.streams {
		err = errors.Join(err, s.Publish(ctx, note))
	}
	return err
}

func (m *streamMux) Close() error {
	var err error
	for _, s := range m.streams {
		err = errors.Join(err, s.Close())
	}
	return err
}

func amqpConfigFromMode(url, mode string) (wmamqp.Config, error) {
	switch strings.ToLower(mode) {
	case "", "durable_queue":
		return wmamqp.NewDurableQueueConfig(url), nil
	case "nondurable_queue":
		return wmamqp.NewNonDurableQueueConfig(url), nil
	case "durable_pubsub":
		return wmamqp.NewDurablePubSubConfig(url, nil), nil
	case "nondurable_pubsub":
		return wmamqp.NewNonDurablePubSubConfig(url, nil), nil
	default:
		return wmamqp.Config{}, fmt.Errorf("unsupported amqp mode: %s", mode)
	}
}

func sqlSchemaAdapter(dialect string) (wmsql.SchemaAdapter, error) {
	switch strings.ToLower(dialect) {
	case "postgres", "postgresql":
		return wmsql.DefaultPostgreSQLSchema{}, nil
	case "mysql":
		return wmsql.DefaultMySQLSchema{}, nil
	default:
		return nil, fmt.Errorf("unsupported sql dialect: %s", dialect)
	}
}
