package publish

import (
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tob/internal/codec"
	"tob/internal/obs"
	"tob/internal/schema"
	"tob/pkg/exception"
)

type fakeConn struct {
	msgs    []*nats.Msg
	fail    error
	flushes int
	closed  bool
}

func (c *fakeConn) PublishMsg(m *nats.Msg) error {
	if c.fail != nil {
		return c.fail
	}
	c.msgs = append(c.msgs, m)
	return nil
}

func (c *fakeConn) FlushTimeout(time.Duration) error {
	c.flushes++
	return nil
}

func (c *fakeConn) Close() { c.closed = true }

func TestSubject(t *testing.T) {
	assert.Equal(t, "tob.0", Subject("tob", 0))
	assert.Equal(t, "md.tob.1023", Subject("md.tob", 1023))
}

func TestPublishEncodesUpdate(t *testing.T) {
	conn := &fakeConn{}
	m := obs.NewMetrics()
	p, err := New(conn, Config{}, "sess-1", m)
	require.NoError(t, err)

	u := schema.BookUpdate{
		Symbol: 42,
		Seq:    7,
		Stale:  true,
		Kind:   schema.KindAdd,
		Side:   schema.SideBid,
		State:  schema.TopOfBook{Bid: schema.Quote{Price: 1000000, Qty: 100}},
	}
	require.NoError(t, p.Publish(u))
	require.Len(t, conn.msgs, 1)

	msg := conn.msgs[0]
	assert.Equal(t, "tob.42", msg.Subject)
	assert.Equal(t, "sess-1", msg.Header.Get(HeaderSession))
	assert.Equal(t, "7", msg.Header.Get(HeaderSeq))
	assert.Equal(t, "1", msg.Header.Get(HeaderStale))
	got, ok := codec.DecodeUpdate(msg.Data)
	require.True(t, ok)
	assert.Equal(t, u, got)
	assert.Equal(t, uint64(1), m.Load(obs.CounterPublished))

	require.NoError(t, p.Flush())
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, conn.closed)
	assert.Equal(t, 2, conn.flushes)
	require.ErrorIs(t, p.Publish(u), exception.ErrClosed)
}

func TestPublishFailureCounted(t *testing.T) {
	conn := &fakeConn{fail: errors.New("boom")}
	m := obs.NewMetrics()
	p, err := New(conn, Config{SubjectPrefix: "x"}, "", m)
	require.NoError(t, err)

	require.Error(t, p.Publish(schema.BookUpdate{Symbol: 1}))
	assert.Equal(t, uint64(1), m.Load(obs.CounterPublishFailed))
	assert.Zero(t, m.Load(obs.CounterPublished))

	_, err = New(nil, Config{}, "", nil)
	require.ErrorIs(t, err, exception.ErrNilInstance)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{URL: "nats://example:4222", MaxReconnects: 5}.withDefaults()
	assert.Equal(t, "nats://example:4222", cfg.URL)
	assert.Equal(t, 5, cfg.MaxReconnects)
	assert.Equal(t, "tob", cfg.SubjectPrefix)
	assert.Equal(t, time.Second, cfg.FlushTimeout)
}
