package infra

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fystack/contract-bridge/pkg/common/config"
	"github.com/fystack/contract-bridge/pkg/common/logger"
)

// Publisher sends raw messages to a subject.
type Publisher interface {
	Publish(subject string, data []byte) error
	Close()
}

// GetNATSConnection connects to cfg.URL. Outside dev the connection uses
// mutual TLS and user credentials.
func GetNATSConnection(cfg config.NATSConfig, env config.Env) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("Disconnected from NATS", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
		nats.ErrorHandler(natsErrHandler),
	}

	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	if env == config.DevEnv {
		return nats.Connect(url, opts...)
	}

	clientCert := cfg.TLS.ClientCert
	if clientCert == "" {
		clientCert = filepath.Join(".", "certs", "client-cert.pem")
	}
	clientKey := cfg.TLS.ClientKey
	if clientKey == "" {
		clientKey = filepath.Join(".", "certs", "client-key.pem")
	}
	caCert := cfg.TLS.CACert
	if caCert == "" {
		caCert = filepath.Join(".", "certs", "rootCA.pem")
	}

	opts = append(opts,
		nats.ClientCert(clientCert, clientKey),
		nats.RootCAs(caCert),
		nats.UserInfo(cfg.Username, cfg.Password),
	)
	return nats.Connect(url, opts...)
}

func natsErrHandler(nc *nats.Conn, sub *nats.Subscription, natsErr error) {
	logger.Error("NATS error", "err", natsErr)
	if sub != nil && errors.Is(natsErr, nats.ErrSlowConsumer) {
		pending, _, err := sub.Pending()
		if err != nil {
			logger.Error("Error getting pending messages", "err", err)
			return
		}
		logger.Error("Falling behind with pending messages on subject", "pending", pending, "subject", sub.Subject)
	}
}

// NATSPublisher publishes core NATS messages.
type NATSPublisher struct {
	nc *nats.Conn
}

func NewNATSPublisher(nc *nats.Conn) *NATSPublisher {
	return &NATSPublisher{nc: nc}
}

func (p *NATSPublisher) Publish(subject string, data []byte) error {
	return p.nc.Publish(subject, data)
}

// Close flushes pending messages before closing.
func (p *NATSPublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		logger.Warn("Failed to drain NATS connection", "err", err)
		p.nc.Close()
	}
}
