// Package feed is the producer side of the streaming backbone: it reads an
// audio stream off a WebSocket connection and writes the decoded PCM bytes,
// plus out-of-band markers, into an SRB ring.
package feed

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"streambridge/internal/config"
	"streambridge/pkg/srb"

	"github.com/gorilla/websocket"
)

// Sink is the subset of *srb.Ring the feed client needs. Declaring it
// narrowly here, rather than depending on the concrete type, keeps this
// package's only hard dependency on pkg/srb to the call sites below.
type Sink interface {
	Write(src []byte, timeout time.Duration) (int, error)
	PutAnchorAtCurrent(payload any) srb.Anchor
	SignalWriterFinished()
}

// Client is the WebSocket feed client.
type Client struct {
	config *config.FeedConfig
	sink   Sink
	conn   *websocket.Conn
	mutex  sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc

	lastSampleRate int
	lastChannels   int

	enableDebug bool
}

// NewClient creates a feed client that writes decoded audio into sink.
func NewClient(parentCtx context.Context, cfg *config.FeedConfig, sink Sink, enableDebug bool) *Client {
	ctx, cancel := context.WithCancel(parentCtx)
	return &Client{
		config:      cfg,
		sink:        sink,
		ctx:         ctx,
		cancel:      cancel,
		enableDebug: enableDebug,
	}
}

// Start begins the connect/reconnect loop in the background.
func (c *Client) Start() error {
	go c.connectLoop()
	return nil
}

// Stop tears down the connection and stops reconnecting.
func (c *Client) Stop() error {
	c.cancel()

	c.mutex.Lock()
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			log.Printf("feed: failed to close connection: %v", err)
		}
	}
	c.mutex.Unlock()

	return nil
}

// IsConnected reports whether a WebSocket connection is currently open.
func (c *Client) IsConnected() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.conn != nil
}

func (c *Client) connectLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			if err := c.connect(); err != nil {
				log.Printf("feed: connection failed: %v (retrying in %.1fs)", err, c.config.ReconnectDelay.Seconds())
				select {
				case <-c.ctx.Done():
					return
				case <-time.After(c.config.ReconnectDelay):
					continue
				}
			}
			c.messageLoop()
		}
	}
}

func (c *Client) connect() error {
	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = c.config.WriteTimeout

	conn, _, err := dialer.Dial(c.config.URL, nil)
	if err != nil {
		return err
	}

	conn.SetReadLimit(c.config.MaxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set read deadline: %w", err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	})

	c.mutex.Lock()
	c.conn = conn
	c.mutex.Unlock()

	if c.enableDebug {
		log.Println("feed: connected")
	}
	return nil
}

func (c *Client) messageLoop() {
	defer func() {
		c.mutex.Lock()
		if c.conn != nil {
			c.conn.Close()
			c.conn = nil
		}
		c.mutex.Unlock()
		if c.enableDebug {
			log.Println("feed: disconnected")
		}
	}()

	go c.pingLoop()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			c.mutex.RLock()
			conn := c.conn
			c.mutex.RUnlock()
			if conn == nil {
				return
			}

			_, message, err := conn.ReadMessage()
			if err != nil {
				log.Printf("feed: receive error: %v", err)
				return
			}

			if err := c.handleMessage(message); err != nil {
				log.Printf("feed: failed to handle message: %v", err)
			}
		}
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.mutex.RLock()
			conn := c.conn
			c.mutex.RUnlock()
			if conn == nil {
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("feed: failed to send ping: %v", err)
				return
			}
		}
	}
}

func (c *Client) handleMessage(message []byte) error {
	var generic GenericMessage
	if err := json.Unmarshal(message, &generic); err != nil {
		return fmt.Errorf("failed to parse message envelope: %w", err)
	}

	switch generic.Action {
	case "streamChunk":
		var msg StreamChunkMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return fmt.Errorf("failed to parse stream chunk: %w", err)
		}
		return c.handleChunk(&msg)

	case "streamComplete":
		var msg StreamCompleteMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return fmt.Errorf("failed to parse stream complete: %w", err)
		}
		c.sink.PutAnchorAtCurrent(Marker{
			Kind:           MarkerUtteranceBoundary,
			ConversationID: msg.Data.ConversationID,
			ChatID:         msg.Data.ChatID,
		})
		if c.enableDebug {
			log.Printf("feed: utterance boundary placed for chat %s", msg.Data.ChatID)
		}

	case "streamSilence":
		var msg StreamSilenceMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return fmt.Errorf("failed to parse stream silence: %w", err)
		}
		c.sink.PutAnchorAtCurrent(Marker{
			Kind:           MarkerSilenceGap,
			ConversationID: msg.Data.ConversationID,
			ChatID:         msg.Data.ChatID,
		})

	default:
		log.Printf("feed: unhandled action %q", generic.Action)
	}

	return nil
}

func (c *Client) handleChunk(msg *StreamChunkMessage) error {
	raw, err := base64.StdEncoding.DecodeString(msg.Data.Buffer)
	if err != nil {
		return fmt.Errorf("failed to decode base64 payload: %w", err)
	}

	chunk, sawFormatChunk, err := decodeWAVChunk(raw)
	if err != nil {
		return fmt.Errorf("failed to decode wav chunk: %w", err)
	}

	if sawFormatChunk && (chunk.sampleRate != c.lastSampleRate || chunk.channels != c.lastChannels) {
		c.lastSampleRate = chunk.sampleRate
		c.lastChannels = chunk.channels
		c.sink.PutAnchorAtCurrent(Marker{
			Kind:           MarkerFormatChange,
			ConversationID: msg.Data.ConversationID,
			ChatID:         msg.Data.ChatID,
			SampleRate:     chunk.sampleRate,
			Channels:       chunk.channels,
		})
	}

	written := 0
	for written < len(chunk.pcm) {
		n, err := c.sink.Write(chunk.pcm[written:], c.config.WriteTimeout)
		written += n
		if err != nil {
			return fmt.Errorf("failed to write pcm into ring: %w", err)
		}
		if n == 0 {
			break
		}
	}

	if c.enableDebug {
		log.Printf("feed: wrote %d PCM bytes for chat %s", written, msg.Data.ChatID)
	}
	return nil
}
