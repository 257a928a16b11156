package internal

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// streamEnvelope is the JSON wire format on the live image channel. The
// client sends join/leave, the relay pushes image events. Data is raw JPEG
// bytes (base64 on the wire, courtesy of encoding/json).
type streamEnvelope struct {
	Event string `json:"event"`
	Room  string `json:"room"`
	Token string `json:"token,omitempty"`
	Data  []byte `json:"data,omitempty"`
}

const (
	eventJoin  = "join"
	eventLeave = "leave"
	eventImage = "image"

	streamWriteWait = 10 * time.Second
)

// EncodedFrame is one still image delivered to a subscriber: the raw JPEG
// bytes plus the inline base64 form ready for display or export.
type EncodedFrame struct {
	Room   string
	Data   []byte
	Base64 string
}

// Subscription is one room's live feed. Frames arrive on Frames() in delivery
// order, deduplicated, latest-frame-only: an unread frame is overwritten when
// a newer one lands. The channel closes on Unsubscribe or connection loss.
type Subscription struct {
	ID   string
	Room string

	mu          sync.Mutex
	closed      bool
	lastEncoded string
	frames      chan EncodedFrame
}

// Frames returns the delivery channel. A closed channel means the
// subscription is dead; resubscribe to keep watching.
func (s *Subscription) Frames() <-chan EncodedFrame {
	return s.frames
}

// deliverResult says what happened to a frame handed to deliver, so the
// duplicate counter only sees real duplicates and not post-close arrivals.
type deliverResult int

const (
	deliverOK deliverResult = iota
	deliverDuplicate
	deliverClosed
)

// deliver hands a frame to the subscriber unless it duplicates the previous
// one or the subscription is closed. Only the read loop calls this, so the
// drain-then-send below never races another sender.
func (s *Subscription) deliver(frame EncodedFrame) deliverResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return deliverClosed
	}
	if frame.Base64 == s.lastEncoded {
		return deliverDuplicate
	}
	s.lastEncoded = frame.Base64
	for {
		select {
		case s.frames <- frame:
			return deliverOK
		default:
			// Latest frame wins: drop the unread one.
			select {
			case <-s.frames:
			default:
			}
		}
	}
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.frames)
}

// StreamClient multiplexes every room subscription over one websocket
// connection, keyed by room name. One connection per client was chosen over
// one per subscription: the teardown contract holds either way, and a single
// channel keeps the relay's fan-out cheap when a wall of cameras is open.
type StreamClient struct {
	url        string
	logger     *zap.Logger
	dialer     *websocket.Dialer
	stats      *StreamStats
	frameLimit *RateLimiter

	mu   sync.Mutex
	conn *websocket.Conn
	subs map[string]*Subscription

	writeMu sync.Mutex
}

// frameRateCap bounds how many frames per room per second reach the renderer.
// Anything above this is wasted work in a terminal.
const frameRateCap = 15

func NewStreamClient(url string, logger *zap.Logger) *StreamClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamClient{
		url:        url,
		logger:     logger,
		dialer:     websocket.DefaultDialer,
		stats:      NewStreamStats(),
		frameLimit: NewRateLimiter(frameRateCap, time.Second),
	}
}

// Stats exposes the delivery counters for the UI footer.
func (c *StreamClient) Stats() *StreamStats {
	return c.stats
}

// Subscribe joins a room on the shared channel and returns the handle frames
// arrive on. Subscribing to a room that already has a live subscription (for
// example after a token renewal) tears the old one down first, so there is
// never more than one active join per room from this client.
func (c *StreamClient) Subscribe(room, token string) (*Subscription, error) {
	c.mu.Lock()
	old := c.subs[room]
	if old != nil {
		delete(c.subs, room)
	}
	if c.subs == nil {
		c.subs = make(map[string]*Subscription)
	}
	if c.conn == nil {
		conn, _, err := c.dialer.Dial(c.url, nil)
		if err != nil {
			c.mu.Unlock()
			return nil, err
		}
		c.conn = conn
		c.stats.IncConnects()
		go c.readLoop(conn)
	}
	sub := &Subscription{
		ID:     uuid.NewString(),
		Room:   room,
		frames: make(chan EncodedFrame, 1),
	}
	c.subs[room] = sub
	c.mu.Unlock()

	if old != nil {
		old.close()
		_ = c.writeEnvelope(streamEnvelope{Event: eventLeave, Room: room})
	}
	if err := c.writeEnvelope(streamEnvelope{Event: eventJoin, Room: room, Token: token}); err != nil {
		c.Unsubscribe(sub)
		return nil, err
	}
	c.logger.Debug("joined room", zap.String("room", room), zap.String("subscription", sub.ID))
	return sub, nil
}

// Unsubscribe removes the room's frame handler, tells the relay we left, and
// closes the shared connection once the last subscription is gone. After it
// returns, no further frames are delivered for that subscription, even if the
// relay keeps pushing images for the room.
func (c *StreamClient) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	c.mu.Lock()
	current, ok := c.subs[sub.Room]
	if !ok || current != sub {
		c.mu.Unlock()
		sub.close()
		return
	}
	delete(c.subs, sub.Room)
	last := len(c.subs) == 0
	conn := c.conn
	c.mu.Unlock()

	sub.close()
	c.frameLimit.Forget(sub.Room)
	if conn != nil {
		_ = c.writeEnvelope(streamEnvelope{Event: eventLeave, Room: sub.Room})
		if last {
			c.closeConn(conn)
		}
	}
	c.logger.Debug("left room", zap.String("room", sub.Room))
}

// Close tears down every subscription and the connection.
func (c *StreamClient) Close() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	conn := c.conn
	c.mu.Unlock()

	for _, sub := range subs {
		sub.close()
		_ = c.writeEnvelope(streamEnvelope{Event: eventLeave, Room: sub.Room})
	}
	if conn != nil {
		c.closeConn(conn)
	}
}

func (c *StreamClient) readLoop(conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}
		var env streamEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			c.logger.Debug("discarding malformed stream payload", zap.Error(err))
			continue
		}
		if env.Event != eventImage {
			continue
		}
		c.dispatch(env.Room, env.Data)
	}
}

// dispatch routes one image event. Frames for rooms without a live
// subscription are discarded; the rest go through duplicate suppression in
// deliver.
func (c *StreamClient) dispatch(room string, data []byte) {
	c.mu.Lock()
	sub := c.subs[room]
	c.mu.Unlock()
	if sub == nil {
		return
	}
	if !c.frameLimit.Allow(room) {
		c.stats.IncRateLimited()
		return
	}
	c.stats.AddFrame(len(data))
	frame := EncodedFrame{Room: room, Data: data, Base64: encodeFrameBase64(data)}
	if sub.deliver(frame) == deliverDuplicate {
		c.stats.IncDuplicates()
	}
}

func (c *StreamClient) handleDisconnect(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		// We closed this connection on purpose; nothing to clean up.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	c.stats.IncDisconnects()
	c.logger.Warn("stream channel lost", zap.Error(err))
}

func (c *StreamClient) writeEnvelope(env streamEnvelope) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return websocket.ErrCloseSent
	}
	encoded, err := json.Marshal(env)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteMessage(websocket.TextMessage, encoded)
}

func (c *StreamClient) closeConn(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	c.writeMu.Lock()
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	_ = conn.Close()
}
