/*
Package live drives a recording session over a WebSocket.

The device streams its microphone as binary frames and sends commands as JSON text
frames; every session transition is pushed back as a STATE frame. Each profile has at
most one live session: a new connection kicks the previous one.
*/
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"speechquest/internal/app/apperr"
	"speechquest/internal/app/mission"
	"speechquest/internal/app/recorder"
	"speechquest/internal/pkg/errs"
	"speechquest/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum size of one inbound frame; audio arrives in chunks.
	maxMessageSize = 256 << 10

	// WsCloseCodeSessionKicked tells the client its session was replaced by a new connection.
	WsCloseCodeSessionKicked = 4001
)

// Client is one connected device bound to one recording session.
type Client struct {
	ProfileID string

	conn    *websocket.Conn
	mic     *recorder.StreamMicrophone
	session *mission.Session
	manager *Manager

	// ctx ends when the connection does; in-flight speech calls follow it.
	ctx    context.Context
	cancel context.CancelFunc
	ops    sync.WaitGroup

	send      chan []byte
	sendMu    sync.Mutex
	sendShut  bool
	closeOnce sync.Once

	logger zerolog.Logger
}

// NewClient wraps an upgraded connection. Attach binds the session before the pumps start.
func NewClient(conn *websocket.Conn, profileID string, mic *recorder.StreamMicrophone) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ProfileID: profileID,
		conn:      conn,
		mic:       mic,
		ctx:       ctx,
		cancel:    cancel,
		send:      make(chan []byte, 64),
		logger:    logx.Component("live").With().Str("profile_id", profileID).Logger(),
	}
}

// Attach binds the recording session driven by this client.
func (c *Client) Attach(s *mission.Session) {
	c.session = s
	c.logger = c.logger.With().Str("session_id", s.ID()).Logger()
}

// PushState queues a STATE frame. It is used as the session observer, so it never blocks.
func (c *Client) PushState(snap mission.Snapshot) {
	if err := c.sendMessage(NewMessage(TypeState, snap)); err != nil {
		c.logger.Warn().Err(err).Str("state", string(snap.State)).Msg("Dropped state frame")
	}
}

// SendError queues an ERROR frame for err.
func (c *Client) SendError(err error) {
	customErr := apperr.ToCustom(err)
	if customErr.Status >= http.StatusInternalServerError {
		c.logger.Error().Err(err).Int("code", customErr.Code).Msg("Live session operation failed")
	}
	payload := ErrorPayload{Code: customErr.Code, Message: customErr.Message}

	if qErr := c.sendMessage(NewMessage(TypeError, payload)); qErr != nil {
		c.logger.Error().Err(qErr).Msg("Failed to queue error message")
	}
}

// ReadPump reads frames until the connection ends, then releases the session.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		switch kind {
		case websocket.BinaryMessage:
			if err := c.session.Feed(data); err != nil {
				c.SendError(err)
			}
		case websocket.TextMessage:
			c.processCommand(data)
		}
	}
}

func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Live session cleanup starting.")

	if c.manager != nil {
		c.manager.Unregister(c)
	}

	c.cancel()
	if err := c.session.Close(); err != nil {
		c.logger.Warn().Err(err).Msg("Session close error")
	}
	c.ops.Wait()
	c.closeSend()

	if err := c.conn.Close(); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

func (c *Client) processCommand(data []byte) {
	var in inboundMessage
	if err := json.Unmarshal(data, &in); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON")
		c.SendError(errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	switch in.Type {
	case TypeStart:
		var p StartPayload
		if len(in.Payload) > 0 {
			if err := json.Unmarshal(in.Payload, &p); err != nil {
				c.SendError(errs.NewError(errs.ErrInvalidJSONFormat))
				return
			}
		}
		c.handleStart(p)

	case TypeStop:
		c.report(c.session.Stop(c.ctx))

	case TypeReset:
		c.report(c.session.Reset())

	case TypeAnalyze:
		c.async(func(ctx context.Context) error { return c.session.Analyze(ctx) })

	case TypeClone:
		var p ClonePayload
		if len(in.Payload) > 0 {
			if err := json.Unmarshal(in.Payload, &p); err != nil {
				c.SendError(errs.NewError(errs.ErrInvalidJSONFormat))
				return
			}
		}
		c.async(func(ctx context.Context) error { return c.session.Clone(ctx, p.Name, p.Description) })

	default:
		c.logger.Warn().Str("msg_type", string(in.Type)).Msg("Client sent unsupported message type")
		c.SendError(errs.NewError(errs.ErrInvalidParams))
	}
}

func (c *Client) handleStart(p StartPayload) {
	if p.Format != "" {
		if err := c.mic.SetFormat(p.Format); err != nil {
			c.SendError(errs.NewError(errs.ErrUnsupportedAudio))
			return
		}
	}
	c.mic.Grant(p.PermissionGranted)
	c.report(c.session.Start(c.ctx))
}

// async runs a remote step off the read loop so pings and RESET frames keep flowing.
func (c *Client) async(fn func(ctx context.Context) error) {
	c.ops.Add(1)
	go func() {
		defer c.ops.Done()
		err := fn(c.ctx)
		if c.ctx.Err() != nil {
			return
		}
		c.report(err)
	}()
}

func (c *Client) report(err error) {
	if err != nil {
		c.logger.Debug().Err(err).Msg("Session command rejected")
		c.SendError(err)
	}
}

// WritePump writes queued frames and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !c.writeQueuedMessage(message, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedMessage returns false when the pump should stop.
func (c *Client) writeQueuedMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

// sendMessage marshals data and queues it without blocking.
func (c *Client) sendMessage(data any) error {
	messageBytes, err := json.Marshal(data)
	if err != nil {
		return err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendShut {
		return fmt.Errorf("client send queue closed")
	}

	select {
	case c.send <- messageBytes:
		return nil
	default:
		return fmt.Errorf("client send queue full (%d)", len(c.send))
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		c.sendMu.Lock()
		c.sendShut = true
		close(c.send)
		c.sendMu.Unlock()
	})
}

// Kick closes the connection with close code 4001 because a newer connection took over.
func (c *Client) Kick(reason string) {
	c.logger.Warn().
		Int("close_code", WsCloseCodeSessionKicked).
		Str("reason", reason).
		Msg("Sending WS Kick message and closing connection.")

	c.closeWith(WsCloseCodeSessionKicked, reason)
}

func (c *Client) closeWith(code int, reason string) {
	closeMessage := websocket.FormatCloseMessage(code, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(writeWait)); err != nil {
		c.logger.Warn().Err(err).Int("close_code", code).Msg("Failed to send WS close message.")
	}

	c.cancel()
	c.closeSend()
}
