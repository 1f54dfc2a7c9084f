package uds

import (
	"context"
	"net"
	"time"

	"github.com/yanun0323/errors"

	"tob/pkg/exception"
)

const unixNetwork = "unix"

// Client dials the ingress socket of a running daemon.
type Client struct {
	addr   net.UnixAddr
	dialer net.Dialer
}

func NewClient(path string) (*Client, error) {
	if path == "" {
		return nil, exception.ErrEmptyPathUDS
	}
	return &Client{addr: net.UnixAddr{Name: path, Net: unixNetwork}}, nil
}

func (c *Client) Path() string {
	if c == nil {
		return ""
	}
	return c.addr.Name
}

// Dial opens one stream connection without retrying.
func (c *Client) Dial() (*net.UnixConn, error) {
	if c == nil {
		return nil, exception.ErrNilClientUDS
	}
	return net.DialUnix(unixNetwork, nil, &c.addr)
}

// DialContext opens a stream connection, aborting the attempt when ctx ends.
func (c *Client) DialContext(ctx context.Context) (*net.UnixConn, error) {
	if c == nil {
		return nil, exception.ErrNilClientUDS
	}
	conn, err := c.dialer.DialContext(ctx, unixNetwork, c.addr.Name)
	if err != nil {
		return nil, err
	}
	return conn.(*net.UnixConn), nil
}

// DialRetry keeps dialing every interval until the socket accepts, ctx ends,
// or attempts run out. attempts <= 0 retries until ctx ends.
func (c *Client) DialRetry(ctx context.Context, attempts int, interval time.Duration) (*net.UnixConn, error) {
	if c == nil {
		return nil, exception.ErrNilClientUDS
	}
	var lastErr error
	for i := 0; attempts <= 0 || i < attempts; i++ {
		conn, err := c.DialContext(ctx)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if attempts > 0 && i == attempts-1 {
			break
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Wrap(ctx.Err(), "dial uds").With("path", c.addr.Name)
		case <-timer.C:
		}
	}
	return nil, errors.Wrapf(lastErr, "dial uds after %d attempts", attempts).With("path", c.addr.Name)
}
