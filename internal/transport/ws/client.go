package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/vedran77/tandem/internal/domain"
	"github.com/vedran77/tandem/internal/logging"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 4096
	sendBufSize    = 256
)

// Client represents a single WebSocket connection.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	session   domain.Session
	partnerID string
	logger    logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// subs maps each open topic to the func that stops its stream.
	subs map[string]context.CancelFunc
	mu   sync.Mutex

	send chan []byte
}

func NewClient(ctx context.Context, hub *Hub, conn *websocket.Conn, sess domain.Session, partnerID string, logger logging.Logger) *Client {
	ctx, cancel := context.WithCancel(ctx)
	conn.SetReadLimit(maxMessageSize)
	return &Client{
		hub:       hub,
		conn:      conn,
		session:   sess,
		partnerID: partnerID,
		logger:    logger.With("user_id", sess.AccountID),
		ctx:       ctx,
		cancel:    cancel,
		subs:      make(map[string]context.CancelFunc),
		send:      make(chan []byte, sendBufSize),
	}
}

// Subscribe opens topic, replacing a stream already open under that name.
func (c *Client) Subscribe(topic string) error {
	open, ok := c.hub.topics[topic]
	if !ok {
		return errUnknownTopic
	}

	ctx, cancel := context.WithCancel(c.ctx)
	if err := open(ctx, c, topic); err != nil {
		cancel()
		return err
	}

	c.mu.Lock()
	if prev, ok := c.subs[topic]; ok {
		prev()
	}
	c.subs[topic] = cancel
	c.mu.Unlock()

	c.logger.Debug(c.ctx, "subscription opened", "topic", topic)
	return nil
}

func (c *Client) Unsubscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cancel, ok := c.subs[topic]; ok {
		cancel()
		delete(c.subs, topic)
	}
}

// Close stops every stream and both pumps.
func (c *Client) Close() {
	c.mu.Lock()
	for topic, cancel := range c.subs {
		cancel()
		delete(c.subs, topic)
	}
	c.mu.Unlock()
	c.cancel()
}

// ReadPump reads messages from the WebSocket and routes them. It returns
// when the connection ends.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.leave(c)
		c.Close()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		var event Event
		err := wsjson.Read(c.ctx, c.conn, &event)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || c.ctx.Err() != nil {
				c.logger.Debug(c.ctx, "ws client disconnected")
			} else {
				c.logger.Warn(c.ctx, "ws read failed", "error", err)
			}
			return
		}

		c.handleEvent(&event)
	}
}

// WritePump writes messages from the send channel to the WebSocket.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message := <-c.send:
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.logger.Warn(c.ctx, "ws write failed", "error", err)
				c.cancel()
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				c.logger.Warn(c.ctx, "ws ping failed", "error", err)
				c.cancel()
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleEvent routes an incoming client event.
func (c *Client) handleEvent(event *Event) {
	switch event.Type {
	case EventTypeSubscribe:
		if event.Topic == "" {
			c.sendError("INVALID_PAYLOAD", "topic required")
			return
		}
		if err := c.Subscribe(event.Topic); err != nil {
			if errors.Is(err, errUnknownTopic) {
				c.sendError("UNKNOWN_TOPIC", "unknown topic: "+event.Topic)
				return
			}
			c.logger.Error(c.ctx, "subscribe failed", "topic", event.Topic, "error", err)
			c.sendError("SUBSCRIBE_FAILED", "could not subscribe to "+event.Topic)
		}

	case EventTypeUnsubscribe:
		c.Unsubscribe(event.Topic)

	case EventTypeTypingStart:
		if err := c.hub.services.Typing.Keystroke(c.ctx, c.session); err != nil {
			c.sendError("TYPING_FAILED", err.Error())
		}

	case EventTypeTypingStop:
		if err := c.hub.services.Typing.Stop(c.ctx, c.session); err != nil {
			c.sendError("TYPING_FAILED", err.Error())
		}

	case EventTypePing:
		c.sendEvent(EventTypePong, "", nil)

	default:
		c.sendError("UNKNOWN_EVENT", "unknown event type: "+event.Type)
	}
}

func (c *Client) sendError(code, message string) {
	c.sendEvent(EventTypeError, "", ErrorPayload{Code: code, Message: message})
}

func (c *Client) sendEvent(eventType, topic string, payload any) {
	evt, err := NewEvent(eventType, topic, payload)
	if err != nil {
		c.logger.Error(c.ctx, "ws marshal failed", "type", eventType, "error", err)
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	c.enqueue(data)
}

// enqueue drops the connection when the client stops draining its buffer.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	case <-c.ctx.Done():
	default:
		c.logger.Warn(c.ctx, "dropping slow ws client")
		c.cancel()
	}
}
