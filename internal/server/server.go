package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"

	"voxelstream/internal/config"
	"voxelstream/internal/environment"
	"voxelstream/internal/network"
	"voxelstream/internal/noise"
	"voxelstream/internal/physics"
	"voxelstream/internal/world"
)

type inputKind int

const (
	inputMove inputKind = iota
	inputJump
	inputEdit
	inputHighlight
)

// input is one client request queued for the tick goroutine.
type input struct {
	kind    inputKind
	session string
	dir     mgl64.Vec3
	target  mgl32.Vec3
	flag    bool // placing for edits, visible for highlights
}

// Server owns the world state. Everything below the inbox is touched only by
// the tick goroutine; HTTP handlers read through the chunk cache, which is
// safe for concurrent readers.
type Server struct {
	cfg      *config.Config
	logger   *log.Logger
	memo     *noise.Memo
	chunks   *world.ChunkCache
	resolver *physics.Resolver
	net      *network.Server
	mux      *http.ServeMux
	inbox    chan input
	now      timeSource
	engine   *tickEngine

	observer physics.Observer
	walk     mgl64.Vec3
	clock    time.Time
	cycle    *environment.Cycle
	spawned  bool
	golden   int

	tick      atomic.Uint64
	listening atomic.Value // string
}

func New(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	logger := log.New(log.Writer(), "voxelstream ", log.LstdFlags|log.Lmicroseconds)
	memo := noise.NewMemo(cfg.Cache.NoiseMemo)
	generator, err := world.NewTerrainGenerator(cfg, memo, log.New(log.Writer(), "generator ", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		return nil, err
	}
	netSrv, err := network.NewServer(cfg.Server, cfg.World.ChunkSize, log.New(log.Writer(), "network ", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		return nil, err
	}

	queue := cfg.Server.MaxQueue
	if queue <= 0 {
		queue = 64
	}
	srv := &Server{
		cfg:      cfg,
		logger:   logger,
		memo:     memo,
		chunks:   world.NewChunkCache(cfg.Cache, cfg.World.ChunkSize, generator, log.New(log.Writer(), "chunk-cache ", log.LstdFlags|log.Lmicroseconds)),
		resolver: physics.NewResolver(cfg.Physics),
		net:      netSrv,
		mux:      http.NewServeMux(),
		inbox:    make(chan input, queue),
		now:      time.Now,
		observer: physics.Observer{Position: mgl64.Vec3{cfg.Physics.Spawn.X, 0, cfg.Physics.Spawn.Z}},
	}
	srv.engine = newTickEngine(srv, cfg.Server.TickRate.Duration())
	srv.registerHandlers()
	srv.routes()
	return srv, nil
}

func (s *Server) registerHandlers() {
	s.net.Register(network.MessageMove, s.onMove)
	s.net.Register(network.MessageJump, s.onJump)
	s.net.Register(network.MessageEdit, s.onEdit)
	s.net.Register(network.MessageHighlight, s.onHighlight)
}

func (s *Server) routes() {
	s.mux.Handle("/ws", s.net.Handler())
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/chunks", s.handleChunks)
}

// Handler exposes the HTTP routes.
func (s *Server) Handler() http.Handler { return s.mux }

// Addr is the bound listen address once Run has started listening.
func (s *Server) Addr() string {
	addr, _ := s.listening.Load().(string)
	return addr
}

func (s *Server) Run(ctx context.Context) error {
	defer s.net.Close()
	defer s.chunks.Close()

	ln, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Server.Listen, err)
	}
	s.listening.Store(ln.Addr().String())
	httpSrv := &http.Server{Handler: s.mux, ReadHeaderTimeout: 5 * time.Second}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Printf("listening on %s", ln.Addr())
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			cancel()
		}
	}()

	s.engine.now = s.now
	s.engine.Start(ctx)

	<-ctx.Done()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		s.logger.Printf("http shutdown: %v", err)
	}
	s.engine.Wait()

	hits, misses := s.memo.Stats()
	s.logger.Printf("stopped after %d ticks (noise memo %d hits, %d misses)", s.tick.Load(), hits, misses)
	select {
	case err := <-serveErr:
		return err
	default:
		return nil
	}
}

// tickFrame runs one frame: inputs, streaming, collision, then publishing.
// Physics and lighting run on the frame's simulated clock.
func (s *Server) tickFrame(ctx context.Context, f frame) {
	if s.cycle == nil {
		s.cycle = environment.NewCycle(s.cfg.Environment, f.clock.Add(-f.delta))
	}
	s.clock = f.clock
	tick := f.seq
	s.tick.Store(tick)

	s.drainInbox()

	if err := s.chunks.EnsureNeighborhood(ctx, s.observer.Position); err != nil {
		s.logger.Printf("tick %d: stream chunks: %v", tick, err)
	}
	if !s.spawned {
		s.spawn()
	}
	if s.spawned {
		s.resolver.Step(&s.observer, s.walk, s.columns(), s.clock)
	}
	s.publish(tick)
}

// spawn stands the observer on the column under the spawn point once its
// chunk is streamed.
func (s *Server) spawn() {
	x, z := s.observer.Position.X(), s.observer.Position.Z()
	ch, ok := s.chunks.ChunkAt(x, z)
	if !ok {
		return
	}
	height, ok := ch.ColumnHeight(int(math.Round(x)), int(math.Round(z)))
	if !ok {
		return
	}
	s.observer.Position[1] = float64(height) - 0.5 + s.resolver.EyeHeight()
	s.observer.Grounded = height > 0
	s.resolver.Reset(s.clock)
	s.spawned = true
	s.logger.Printf("observer spawned at %.1f %.1f %.1f in chunk %s", x, s.observer.Position.Y(), z, ch.Key())
}

func (s *Server) columns() []physics.Column {
	candidates := s.chunks.Candidates(s.observer.Position, s.cfg.Physics.BoundaryMargin)
	out := make([]physics.Column, len(candidates))
	for n, ch := range candidates {
		out[n] = ch
	}
	return out
}

func (s *Server) drainInbox() {
	for {
		select {
		case in := <-s.inbox:
			s.apply(in)
		default:
			return
		}
	}
}

func (s *Server) apply(in input) {
	switch in.kind {
	case inputMove:
		s.walk = in.dir
	case inputJump:
		s.observer.Jump(s.resolver.JumpSpeed())
	case inputEdit:
		s.edit(in.target, in.flag)
	case inputHighlight:
		for _, ch := range s.chunks.Active() {
			ch.Highlight(in.flag, in.target)
		}
	}
}

// edit applies a voxel edit to the owning chunk. Targets in chunks that are
// not streamed are dropped.
func (s *Server) edit(target mgl32.Vec3, placing bool) bool {
	x, z := math.Round(float64(target.X())), math.Round(float64(target.Z()))
	ch, ok := s.chunks.ChunkAt(x, z)
	if !ok {
		return false
	}
	before := ch.GoldenCollected()
	if !ch.EditVoxel(!placing, target) {
		return false
	}
	s.golden += ch.GoldenCollected() - before
	return true
}

func (s *Server) publish(tick uint64) {
	active := s.chunks.Active()
	keys := make([]string, len(active))
	keep := make(map[string]bool, len(active))
	for n, ch := range active {
		keys[n] = string(ch.Key())
		keep[keys[n]] = true
	}

	s.net.Broadcast(network.MessageFrame, network.Frame{
		Tick:            tick,
		Observer:        [3]float64{s.observer.Position.X(), s.observer.Position.Y(), s.observer.Position.Z()},
		Grounded:        s.observer.Grounded,
		Lighting:        s.cycle.State(s.clock),
		ActiveChunks:    keys,
		GoldenCollected: s.golden,
	})

	sessions := s.net.Sessions()
	if len(sessions) == 0 {
		return
	}
	for _, ch := range active {
		snap := ch.Snapshot()
		frame := network.ChunkFrame{
			CenterX:   int32(snap.CenterX),
			CenterZ:   int32(snap.CenterZ),
			Version:   snap.Version,
			Positions: snap.Positions,
			Types:     snap.Types,
		}
		for _, sess := range sessions {
			if _, err := s.net.SendChunk(sess, string(snap.Key), frame); err != nil && !errors.Is(err, network.ErrQueueFull) {
				s.logger.Printf("session %s: send chunk %s: %v", sess.ID(), snap.Key, err)
			}
		}
	}
	for _, sess := range sessions {
		sess.Forget(keep)
	}
}

func (s *Server) enqueue(in input) {
	select {
	case s.inbox <- in:
	default:
		s.logger.Printf("session %s: input queue full, dropping request", in.session)
	}
}

func (s *Server) onMove(ctx context.Context, sess *network.Session, env network.Envelope) {
	m, err := network.DecodePayload[network.Move](env)
	if err != nil {
		return
	}
	s.enqueue(input{kind: inputMove, session: sess.ID(), dir: mgl64.Vec3(m.Dir)})
}

func (s *Server) onJump(ctx context.Context, sess *network.Session, env network.Envelope) {
	s.enqueue(input{kind: inputJump, session: sess.ID()})
}

func (s *Server) onEdit(ctx context.Context, sess *network.Session, env network.Envelope) {
	e, err := network.DecodePayload[network.Edit](env)
	if err != nil {
		return
	}
	s.enqueue(input{kind: inputEdit, session: sess.ID(), target: mgl32.Vec3(e.Target), flag: e.Placing})
}

func (s *Server) onHighlight(ctx context.Context, sess *network.Session, env network.Envelope) {
	h, err := network.DecodePayload[network.Highlight](env)
	if err != nil {
		return
	}
	s.enqueue(input{kind: inputHighlight, session: sess.ID(), target: mgl32.Vec3(h.Target), flag: h.Visible})
}

func (s *Server) handleHealth(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, map[string]any{"status": "ok", "tick": s.tick.Load()})
}

func (s *Server) handleChunks(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	active := s.chunks.Active()
	out := make([]network.ChunkSummary, 0, len(active))
	for _, ch := range active {
		snap := ch.Snapshot()
		out = append(out, network.ChunkSummary{
			Key:     string(snap.Key),
			CenterX: snap.CenterX,
			CenterZ: snap.CenterZ,
			Version: snap.Version,
			Voxels:  snap.Count,
			Golden:  ch.GoldenCollected(),
		})
	}
	writeJSON(rw, out)
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(v)
}
