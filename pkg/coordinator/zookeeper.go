package coordinator

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/burrow/pkg/log"
)

const sessionTimeout = 10 * time.Second

// SessionState is the observable coordinator session state.
type SessionState int32

const (
	StateSuspended SessionState = iota
	StateConnected
	StateLost
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "CONNECTED"
	case StateLost:
		return "LOST"
	default:
		return "SUSPENDED"
	}
}

// EventType classifies watch notifications.
type EventType int

const (
	EventCreated EventType = iota
	EventDeleted
	EventDataChanged
	EventChildrenChanged
	EventSession
)

// Event is a watch notification delivered on a watch channel. Watches are
// one-shot; re-arm after every event.
type Event struct {
	Type EventType
	Path string
}

// Client wraps a ZooKeeper connection with YAML payloads, watchability, and
// an observable session state.
type Client struct {
	servers []string
	logger  zerolog.Logger

	mu    sync.RWMutex
	conn  *zk.Conn
	state atomic.Int32

	closed chan struct{}
}

// Connect dials the coordinator. hosts is a comma-separated endpoint list.
func Connect(hosts string) (*Client, error) {
	c := &Client{
		servers: strings.Split(hosts, ","),
		logger:  log.WithComponent("coordinator"),
		closed:  make(chan struct{}),
	}
	if err := c.dial(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) dial() error {
	conn, sessionCh, err := zk.Connect(c.servers, sessionTimeout, zk.WithLogInfo(false))
	if err != nil {
		return fmt.Errorf("failed to connect to coordinator: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.state.Store(int32(StateSuspended))

	go c.watchSession(sessionCh)
	return nil
}

// watchSession tracks session transitions from the connection's event stream.
func (c *Client) watchSession(events <-chan zk.Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type != zk.EventSession {
				continue
			}
			switch ev.State {
			case zk.StateHasSession:
				c.state.Store(int32(StateConnected))
				c.logger.Info().Msg("Coordinator session established")
			case zk.StateExpired:
				c.state.Store(int32(StateLost))
				c.logger.Warn().Msg("Coordinator session expired")
			case zk.StateDisconnected, zk.StateConnecting:
				if SessionState(c.state.Load()) != StateLost {
					c.state.Store(int32(StateSuspended))
				}
			}
		case <-c.closed:
			return
		}
	}
}

// State returns the current session state.
func (c *Client) State() SessionState {
	return SessionState(c.state.Load())
}

// Reconnect re-establishes a lost session with a fresh connection. A live or
// merely suspended session is left alone; the underlying client recovers
// those on its own.
func (c *Client) Reconnect() error {
	if c.State() != StateLost {
		return nil
	}
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.mu.Unlock()
	return c.dial()
}

// Close tears the connection down.
func (c *Client) Close() {
	close(c.closed)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
	}
}

func (c *Client) connection() *zk.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// Get reads a node's raw payload.
func (c *Client) Get(path string) ([]byte, error) {
	data, _, err := c.connection().Get(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", path, err)
	}
	return data, nil
}

// GetYAML reads a node and decodes its YAML payload into out.
func (c *Client) GetYAML(path string, out interface{}) error {
	data, err := c.Get(path)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// Exists reports whether a node exists.
func (c *Client) Exists(path string) (bool, error) {
	ok, _, err := c.connection().Exists(path)
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", path, err)
	}
	return ok, nil
}

// Create makes a node. Ephemeral nodes vanish with the session.
func (c *Client) Create(path string, data []byte, ephemeral bool) error {
	var flags int32
	if ephemeral {
		flags = zk.FlagEphemeral
	}
	_, err := c.connection().Create(path, data, flags, zk.WorldACL(zk.PermAll))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	return nil
}

// CreateOrSet creates the node or overwrites its payload when it already
// exists.
func (c *Client) CreateOrSet(path string, data []byte, ephemeral bool) error {
	err := c.Create(path, data, ephemeral)
	if err == nil {
		return nil
	}
	if !IsNodeExists(err) {
		return err
	}
	if _, err := c.connection().Set(path, data, -1); err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}
	return nil
}

// CreateRecursive creates the node, making persistent parents as needed.
// A pre-existing leaf surfaces as a NodeExists error.
func (c *Client) CreateRecursive(path string, data []byte) error {
	err := c.Create(path, data, false)
	if err == nil || IsNodeExists(err) {
		return err
	}
	if !IsNoNode(err) {
		return err
	}

	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	node := ""
	for _, part := range parts[:len(parts)-1] {
		node += "/" + part
		if err := c.Create(node, nil, false); err != nil && !IsNodeExists(err) {
			return err
		}
	}
	return c.Create(path, data, false)
}

// Delete removes a node.
func (c *Client) Delete(path string) error {
	if err := c.connection().Delete(path, -1); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// EnsureDeleted removes a node, treating absence as success.
func (c *Client) EnsureDeleted(path string) error {
	err := c.Delete(path)
	if err != nil && !IsNoNode(err) {
		return err
	}
	return nil
}

// Children lists a node's children.
func (c *Client) Children(path string) ([]string, error) {
	children, _, err := c.connection().Children(path)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", path, err)
	}
	return children, nil
}

// MergeUpdate reads the node's YAML mapping, folds updates in, and writes it
// back.
func (c *Client) MergeUpdate(path string, updates map[string]interface{}) error {
	current := make(map[string]interface{})
	if err := c.GetYAML(path, &current); err != nil {
		return err
	}
	for k, v := range updates {
		current[k] = v
	}
	data, err := yaml.Marshal(current)
	if err != nil {
		return fmt.Errorf("failed to encode update for %s: %w", path, err)
	}
	if _, err := c.connection().Set(path, data, -1); err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}
	return nil
}

// WatchExists reports whether the node exists and returns a one-shot channel
// delivering the next change to it.
func (c *Client) WatchExists(path string) (bool, <-chan Event, error) {
	ok, _, zkCh, err := c.connection().ExistsW(path)
	if err != nil {
		return false, nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}
	return ok, translate(zkCh), nil
}

// WatchChildren lists the node's children and returns a one-shot channel
// delivering the next membership change.
func (c *Client) WatchChildren(path string) ([]string, <-chan Event, error) {
	children, _, zkCh, err := c.connection().ChildrenW(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to watch children of %s: %w", path, err)
	}
	return children, translate(zkCh), nil
}

func translate(zkCh <-chan zk.Event) <-chan Event {
	ch := make(chan Event, 1)
	go func() {
		defer close(ch)
		ev, ok := <-zkCh
		if !ok {
			return
		}
		out := Event{Path: ev.Path}
		switch ev.Type {
		case zk.EventNodeCreated:
			out.Type = EventCreated
		case zk.EventNodeDeleted:
			out.Type = EventDeleted
		case zk.EventNodeDataChanged:
			out.Type = EventDataChanged
		case zk.EventNodeChildrenChanged:
			out.Type = EventChildrenChanged
		default:
			out.Type = EventSession
		}
		ch <- out
	}()
	return ch
}

// IsNoNode reports a missing-node error.
func IsNoNode(err error) bool {
	return errors.Is(err, zk.ErrNoNode)
}

// IsNodeExists reports an idempotent-write collision.
func IsNodeExists(err error) bool {
	return errors.Is(err, zk.ErrNodeExists)
}

// IsConnectionLoss reports a transient session error.
func IsConnectionLoss(err error) bool {
	return errors.Is(err, zk.ErrConnectionClosed) ||
		errors.Is(err, zk.ErrSessionExpired) ||
		errors.Is(err, zk.ErrNoServer)
}
