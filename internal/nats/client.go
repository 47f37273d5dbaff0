package nats

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Client sends control requests to elements served by a Bridge.
type Client struct {
	conn    *nats.Conn
	timeout time.Duration
}

// Dial connects to the NATS server at url. Requests time out after timeout.
func Dial(url string, timeout time.Duration) (*Client, error) {
	conn, err := nats.Connect(url,
		nats.Name("camsrc-control"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(5),
	)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, timeout: timeout}, nil
}

// Control sends m to element and waits for its reply. A reply reporting a
// failure is returned together with an error carrying its message.
func (c *Client) Control(element string, m ControlMessage) (ControlReply, error) {
	if m.Timestamp == "" {
		m.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	data, err := m.Marshal()
	if err != nil {
		return ControlReply{}, err
	}

	msg, err := c.conn.Request(SubjectControl(element), data, c.timeout)
	if err != nil {
		return ControlReply{}, fmt.Errorf("control %s: %w", element, err)
	}
	reply, err := UnmarshalReply(msg.Data)
	if err != nil {
		return ControlReply{}, fmt.Errorf("invalid control reply: %w", err)
	}
	if !reply.OK {
		return reply, fmt.Errorf("%s %s: %s", element, m.Action, reply.Error)
	}
	return reply, nil
}

// Close closes the connection.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
