// Package publish fans book updates out to NATS, one subject per symbol.
package publish

import (
	"strconv"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"tob/internal/codec"
	"tob/internal/obs"
	"tob/internal/schema"
	"tob/pkg/exception"
)

const (
	HeaderSession = "Tob-Session"
	HeaderSeq     = "Tob-Seq"
	HeaderStale   = "Tob-Stale"

	defaultPrefix = "tob"
)

// Config controls the NATS connection.
type Config struct {
	URL            string        `yaml:"url"`
	Name           string        `yaml:"name"`
	SubjectPrefix  string        `yaml:"subject_prefix"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReconnectWait  time.Duration `yaml:"reconnect_wait"`
	MaxReconnects  int           `yaml:"max_reconnects"`
	FlushTimeout   time.Duration `yaml:"flush_timeout"`
}

// DefaultConfig returns a local NATS configuration.
func DefaultConfig() Config {
	return Config{
		URL:            nats.DefaultURL,
		Name:           "tobd",
		SubjectPrefix:  defaultPrefix,
		ConnectTimeout: 2 * time.Second,
		ReconnectWait:  time.Second,
		MaxReconnects:  -1,
		FlushTimeout:   time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.URL == "" {
		c.URL = d.URL
	}
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = d.SubjectPrefix
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.ReconnectWait == 0 {
		c.ReconnectWait = d.ReconnectWait
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = d.MaxReconnects
	}
	if c.FlushTimeout == 0 {
		c.FlushTimeout = d.FlushTimeout
	}
	return c
}

// Conn is the part of *nats.Conn the publisher uses.
type Conn interface {
	PublishMsg(m *nats.Msg) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// Publisher encodes book updates and publishes them. It is safe for one
// producer goroutine plus concurrent Close.
type Publisher struct {
	cfg     Config
	conn    Conn
	session string
	metrics *obs.Metrics

	mu     sync.Mutex
	closed bool
}

// Connect dials NATS and returns a publisher on that connection.
func Connect(cfg Config, session string, metrics *obs.Metrics) (*Publisher, error) {
	cfg = cfg.withDefaults()
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.Timeout(cfg.ConnectTimeout),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.FlusherTimeout(cfg.FlushTimeout),
		nats.RetryOnFailedConnect(true),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logs.Info("nats connection closed")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logs.Errorf("nats disconnected, reconnecting: %+v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logs.Infof("nats reconnected to %s", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "connect nats %s", cfg.URL)
	}
	return New(nc, cfg, session, metrics)
}

// New wraps an existing connection.
func New(conn Conn, cfg Config, session string, metrics *obs.Metrics) (*Publisher, error) {
	if conn == nil {
		return nil, exception.ErrNilInstance
	}
	return &Publisher{
		cfg:     cfg.withDefaults(),
		conn:    conn,
		session: session,
		metrics: metrics,
	}, nil
}

// Subject returns the subject of a symbol, e.g. "tob.42".
func Subject(prefix string, idx schema.SymbolIndex) string {
	return prefix + "." + strconv.FormatUint(uint64(idx), 10)
}

// Publish sends one update on its symbol subject.
func (p *Publisher) Publish(u schema.BookUpdate) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return exception.ErrClosed
	}

	msg := nats.NewMsg(Subject(p.cfg.SubjectPrefix, u.Symbol))
	msg.Data = codec.EncodeUpdate(nil, u)
	msg.Header.Set(HeaderSeq, strconv.FormatUint(uint64(u.Seq), 10))
	if p.session != "" {
		msg.Header.Set(HeaderSession, p.session)
	}
	if u.Stale {
		msg.Header.Set(HeaderStale, "1")
	}

	if err := p.conn.PublishMsg(msg); err != nil {
		p.metrics.Inc(obs.CounterPublishFailed)
		return errors.Wrapf(err, "publish %s", msg.Subject)
	}
	p.metrics.Inc(obs.CounterPublished)
	return nil
}

// Flush waits until the server has processed everything published so far.
func (p *Publisher) Flush() error {
	return p.conn.FlushTimeout(p.cfg.FlushTimeout)
}

// Close flushes and closes the connection. Closing twice is a no-op.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := p.conn.FlushTimeout(p.cfg.FlushTimeout)
	p.conn.Close()
	return err
}
