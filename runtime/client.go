package runtime

import "mystiko/contract"

// Client is the dispatcher-side view of one session: its write path plus
// the authenticated identity. The username is set once on login and only
// touched by the session's own read goroutine; room membership lives in
// the registry, never here.
type Client struct {
	username string
	sink     contract.FrameSink
}

func NewClient(sink contract.FrameSink) *Client {
	return &Client{sink: sink}
}

func (c *Client) Username() string { return c.username }

func (c *Client) Authenticated() bool { return c.username != "" }
