package network

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"voxelstream/internal/config"
)

// Handler receives a decoded client message on the session's reader
// goroutine. Handlers must not block.
type Handler func(ctx context.Context, session *Session, env Envelope)

var ErrQueueFull = errors.New("session queue full")

type outbound struct {
	kind int
	data []byte
}

// Session is one connected stream client.
type Session struct {
	id      string
	name    string
	limiter *rate.Limiter
	out     chan outbound
	done    chan struct{}
	once    sync.Once

	mu   sync.Mutex
	seen map[string]uint64
}

func newSession(name string, queue int, limit rate.Limit, burst int) *Session {
	return &Session{
		id:      uuid.NewString(),
		name:    name,
		limiter: rate.NewLimiter(limit, burst),
		out:     make(chan outbound, queue),
		done:    make(chan struct{}),
		seen:    make(map[string]uint64),
	}
}

func (s *Session) ID() string   { return s.id }
func (s *Session) Name() string { return s.name }

// AllowEdit consumes one edit/highlight token.
func (s *Session) AllowEdit() bool { return s.limiter.Allow() }

// NeedsChunk reports whether the session has not yet been sent this version
// of the chunk.
func (s *Session) NeedsChunk(key string, version uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[key] != version
}

func (s *Session) markSent(key string, version uint64) {
	s.mu.Lock()
	s.seen[key] = version
	s.mu.Unlock()
}

// Forget drops chunks the session no longer needs to track.
func (s *Session) Forget(keep map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.seen {
		if !keep[key] {
			delete(s.seen, key)
		}
	}
}

func (s *Session) enqueue(kind int, data []byte) error {
	select {
	case <-s.done:
		return websocket.ErrCloseSent
	default:
	}
	select {
	case s.out <- outbound{kind: kind, data: data}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *Session) close() {
	s.once.Do(func() { close(s.done) })
}

// Server accepts stream clients over websocket. The first client message
// must be a subscribe; the server answers with a welcome.
type Server struct {
	logger    *log.Logger
	upgrader  websocket.Upgrader
	codec     *FrameCodec
	chunkSize int
	queue     int
	editRate  rate.Limit
	editBurst int
	seq       atomic.Uint64

	mu       sync.RWMutex
	handlers map[MessageType][]Handler
	sessions map[string]*Session
}

func NewServer(cfg config.ServerConfig, chunkSize int, logger *log.Logger) (*Server, error) {
	codec, err := NewFrameCodec(cfg.CompressionLevel)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(log.Writer(), "network ", log.LstdFlags|log.Lmicroseconds)
	}
	queue := cfg.MaxQueue
	if queue <= 0 {
		queue = 64
	}
	burst := cfg.EditBurst
	if burst <= 0 {
		burst = 1
	}
	return &Server{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		codec:     codec,
		chunkSize: chunkSize,
		queue:     queue,
		editRate:  rate.Limit(cfg.EditsPerSecond),
		editBurst: burst,
		handlers:  make(map[MessageType][]Handler),
		sessions:  make(map[string]*Session),
	}, nil
}

func (s *Server) Codec() *FrameCodec { return s.codec }

func (s *Server) Close() {
	s.mu.Lock()
	for _, sess := range s.sessions {
		sess.close()
	}
	s.mu.Unlock()
	s.codec.Close()
}

func (s *Server) Register(msgType MessageType, handler Handler) {
	s.mu.Lock()
	s.handlers[msgType] = append(s.handlers[msgType], handler)
	s.mu.Unlock()
}

func (s *Server) handlersFor(msgType MessageType) []Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Handler(nil), s.handlers[msgType]...)
}

// Sessions returns the connected sessions ordered by id.
func (s *Server) Sessions() []*Session {
	s.mu.RLock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Send queues a JSON message for one session.
func (s *Server) Send(sess *Session, msgType MessageType, payload any) error {
	data, err := s.prepare(msgType, payload)
	if err != nil {
		return err
	}
	return sess.enqueue(websocket.TextMessage, data)
}

// Broadcast queues a JSON message for every session. Sessions whose queue is
// full miss this message.
func (s *Server) Broadcast(msgType MessageType, payload any) {
	data, err := s.prepare(msgType, payload)
	if err != nil {
		s.logger.Printf("encode %s: %v", msgType, err)
		return
	}
	for _, sess := range s.Sessions() {
		if err := sess.enqueue(websocket.TextMessage, data); errors.Is(err, ErrQueueFull) {
			s.logger.Printf("session %s: dropped %s, queue full", sess.id, msgType)
		}
	}
}

// SendChunk queues a chunk frame unless the session already has this
// version. It reports whether the frame was queued.
func (s *Server) SendChunk(sess *Session, key string, frame ChunkFrame) (bool, error) {
	if !sess.NeedsChunk(key, frame.Version) {
		return false, nil
	}
	data, err := s.codec.Encode(frame)
	if err != nil {
		return false, err
	}
	if err := sess.enqueue(websocket.BinaryMessage, data); err != nil {
		return false, err
	}
	sess.markSent(key, frame.Version)
	return true, nil
}

func (s *Server) prepare(msgType MessageType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return Encode(Envelope{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Seq:       s.seq.Add(1),
		Payload:   raw,
	})
}

// Handler upgrades the request and serves the session until either side
// closes.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := s.handshake(conn)
		if sess == nil {
			return
		}
		s.mu.Lock()
		s.sessions[sess.id] = sess
		s.mu.Unlock()
		s.logger.Printf("session %s (%s) joined from %s", sess.id, sess.name, r.RemoteAddr)
		defer func() {
			s.mu.Lock()
			delete(s.sessions, sess.id)
			s.mu.Unlock()
			sess.close()
			s.logger.Printf("session %s left", sess.id)
		}()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case <-sess.done:
					writeErr <- nil
					_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
					_ = conn.Close()
					return
				case msg := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(msg.kind, msg.data); err != nil {
						writeErr <- err
						cancel()
						return
					}
				}
			}
		}()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			kind, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if kind != websocket.TextMessage {
				continue
			}
			env, err := Decode(msg)
			if err != nil {
				s.logger.Printf("session %s: decode message: %v", sess.id, err)
				continue
			}
			if (env.Type == MessageEdit || env.Type == MessageHighlight) && !sess.AllowEdit() {
				_ = s.Send(sess, MessageError, ErrorMessage{Code: "rate_limited", Message: string(env.Type) + " rate exceeded"})
				continue
			}
			for _, h := range s.handlersFor(env.Type) {
				h(ctx, sess, env)
			}
		}

		cancel()
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) *Session {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}
	env, err := Decode(msg)
	if err != nil || env.Type != MessageSubscribe {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected subscribe"), time.Now().Add(time.Second))
		return nil
	}
	sub, err := DecodePayload[Subscribe](env)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
		return nil
	}
	if sub.Name == "" {
		sub.Name = "viewer"
	}

	sess := newSession(sub.Name, s.queue, s.editRate, s.editBurst)
	welcome, err := s.prepare(MessageWelcome, Welcome{SessionID: sess.id, ChunkSize: s.chunkSize})
	if err != nil {
		return nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, welcome); err != nil {
		return nil
	}
	return sess
}
