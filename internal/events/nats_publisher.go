package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bridge-backend/internal/config"
	"bridge-backend/internal/metrics"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// NATSPublisher publishes every envelope to <prefix>.<EventName>
type NATSPublisher struct {
	conn    *nats.Conn
	prefix  string
	publish func(msg *nats.Msg) error
	logger  *logrus.Logger
}

// NewNATSPublisher connects to NATS. With JetStream enabled the stream is
// created when missing and publishes wait for the stream ack.
func NewNATSPublisher(cfg config.NATSConfig, logger *logrus.Logger) (*NATSPublisher, error) {
	connectTimeout := 10 * time.Second
	if cfg.Timeout > 0 {
		connectTimeout = time.Duration(cfg.Timeout) * time.Second
	}
	reconnectWait := 5 * time.Second
	if cfg.ReconnectWait > 0 {
		reconnectWait = time.Duration(cfg.ReconnectWait) * time.Second
	}
	maxReconnects := -1
	if cfg.MaxReconnects != 0 {
		maxReconnects = cfg.MaxReconnects
	}

	logger.Infof("🔌 Connecting to NATS %s (timeout %v)", cfg.URL, connectTimeout)
	conn, err := nats.Connect(cfg.URL,
		nats.Name("bridge-backend"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warnf("⚠️ NATS disconnected: %v", err)
			metrics.NATSConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Infof("✅ NATS reconnected to %s", nc.ConnectedUrl())
			metrics.NATSConnectionStatus.Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect NATS: %w", err)
	}
	metrics.NATSConnectionStatus.Set(1)

	p := &NATSPublisher{
		conn:    conn,
		prefix:  cfg.SubjectPrefix,
		publish: conn.PublishMsg,
		logger:  logger,
	}

	if cfg.EnableJetStream {
		js, err := conn.JetStream()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("create JetStream context: %w", err)
		}
		if err := ensureStream(js, cfg.Stream, cfg.SubjectPrefix, logger); err != nil {
			conn.Close()
			return nil, err
		}
		p.publish = func(msg *nats.Msg) error {
			_, err := js.PublishMsg(msg)
			return err
		}
	}

	logger.Infof("✅ NATS publisher ready, subject prefix %s", cfg.SubjectPrefix)
	return p, nil
}

func ensureStream(js nats.JetStreamContext, stream, prefix string, logger *logrus.Logger) error {
	if _, err := js.StreamInfo(stream); err == nil {
		logger.Infof("📋 JetStream stream %s already exists", stream)
		return nil
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:       stream,
		Subjects:   []string{prefix + ".>"},
		Retention:  nats.LimitsPolicy,
		MaxAge:     7 * 24 * time.Hour,
		Storage:    nats.FileStorage,
		Duplicates: 10 * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", stream, err)
	}
	logger.Infof("✅ JetStream stream %s created", stream)
	return nil
}

// Subject where events with the given name are published
func (p *NATSPublisher) Subject(name string) string {
	return p.prefix + "." + name
}

// Handle publishes env. Failures are logged and counted; the bridge call is never affected.
func (p *NATSPublisher) Handle(_ context.Context, env *Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		metrics.NATSMessagesFailed.WithLabelValues(env.Name, "marshal").Inc()
		p.logger.WithError(err).WithField("event", env.Name).Error("❌ Failed to encode event")
		return
	}

	msg := nats.NewMsg(p.Subject(env.Name))
	msg.Header.Set(nats.MsgIdHdr, env.ID)
	msg.Data = data

	if err := p.publish(msg); err != nil {
		metrics.NATSMessagesFailed.WithLabelValues(env.Name, "publish").Inc()
		p.logger.WithError(err).WithFields(logrus.Fields{
			"event":   env.Name,
			"subject": msg.Subject,
			"id":      env.ID,
		}).Error("❌ Failed to publish event to NATS")
		return
	}
	metrics.NATSMessagesPublished.WithLabelValues(env.Name).Inc()
}

func (p *NATSPublisher) Close() {
	if p.conn != nil {
		if err := p.conn.Drain(); err != nil {
			p.conn.Close()
		}
	}
}
