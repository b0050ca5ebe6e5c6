package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

const (
	defaultDebounceWindow = 2000 * time.Millisecond
	defaultConcatTimeout  = 100 * time.Millisecond
	defaultMaxSignatures  = 1024
)

type IngestResult string

const (
	IngestResultSuppressed IngestResult = "suppressed"
	IngestResultStarted    IngestResult = "started"
	IngestResultAppended   IngestResult = "appended"
	IngestResultRejected   IngestResult = "rejected"
)

// CommitFunc persists a reassembled message. It runs on its own goroutine,
// never under the gate lock.
type CommitFunc func(ctx context.Context, sender string, content string, receivedAt time.Time)

type IngestionGateConfig struct {
	DebounceWindow time.Duration
	ConcatTimeout  time.Duration
	MaxSignatures  int
}

// IngestionGate suppresses duplicate fragments and merges fragments from the
// same sender that arrive within the concatenation timeout. One mutex guards
// the signature set and the session map; commits happen asynchronously.
type IngestionGate struct {
	mu              sync.Mutex
	debounceWindow  time.Duration
	concatTimeout   time.Duration
	maxSignatures   int
	signatures      map[string]struct{}
	lastSignatureAt time.Time
	sessions        map[string]*reassemblySession
	generation      uint64
	closed          bool

	commit CommitFunc
	// commitMu guards inflight and idle; idle is closed whenever inflight
	// drops to zero.
	commitMu sync.Mutex
	inflight int
	idle     chan struct{}
	ctx      context.Context
	now      func() time.Time
	logger   Logger
}

type reassemblySession struct {
	sender         string
	buffer         strings.Builder
	receivedAt     time.Time
	lastFragmentAt time.Time
	timer          *time.Timer
	generation     uint64
}

type IngestionGateOption func(*IngestionGate)

func WithIngestionClock(now func() time.Time) IngestionGateOption {
	return func(g *IngestionGate) {
		if now != nil {
			g.now = now
		}
	}
}

func WithIngestionLogger(logger Logger) IngestionGateOption {
	return func(g *IngestionGate) {
		g.logger = glog.Ensure(logger)
	}
}

func NewIngestionGate(cfg IngestionGateConfig, commit CommitFunc, opts ...IngestionGateOption) *IngestionGate {
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = defaultDebounceWindow
	}
	if cfg.ConcatTimeout <= 0 {
		cfg.ConcatTimeout = defaultConcatTimeout
	}
	if cfg.MaxSignatures <= 0 {
		cfg.MaxSignatures = defaultMaxSignatures
	}
	gate := &IngestionGate{
		debounceWindow: cfg.DebounceWindow,
		concatTimeout:  cfg.ConcatTimeout,
		maxSignatures:  cfg.MaxSignatures,
		signatures:     map[string]struct{}{},
		sessions:       map[string]*reassemblySession{},
		commit:         commit,
		ctx:            context.Background(),
		now:            func() time.Time { return time.Now().UTC() },
		logger:         glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(gate)
		}
	}
	return gate
}

// OnRawFragment accepts one captured fragment. It only does bookkeeping under
// the lock and returns quickly; persistence happens on a background goroutine.
func (g *IngestionGate) OnRawFragment(sender string, content string, capturedAt time.Time) IngestResult {
	if g == nil {
		return IngestResultRejected
	}
	sender = strings.TrimSpace(sender)
	if sender == "" || content == "" {
		return IngestResultRejected
	}

	var flushed *pendingCommit

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		g.logger.Warn("ingestion gate closed, dropping fragment", "sender", sender)
		return IngestResultRejected
	}
	now := g.now()
	if capturedAt.IsZero() {
		capturedAt = now
	}

	if !g.lastSignatureAt.IsZero() && now.Sub(g.lastSignatureAt) > g.debounceWindow {
		g.signatures = map[string]struct{}{}
	}
	signature := fragmentSignature(sender, content)
	if _, seen := g.signatures[signature]; seen {
		g.mu.Unlock()
		g.logger.Debug("duplicate fragment suppressed", "sender", sender)
		return IngestResultSuppressed
	}
	if len(g.signatures) >= g.maxSignatures {
		g.signatures = map[string]struct{}{}
	}
	g.signatures[signature] = struct{}{}
	g.lastSignatureAt = now

	result := IngestResultStarted
	session, ok := g.sessions[sender]
	if ok && now.Sub(session.lastFragmentAt) <= g.concatTimeout {
		session.buffer.WriteString(content)
		session.lastFragmentAt = now
		g.armLocked(session)
		result = IngestResultAppended
	} else {
		if ok {
			flushed = g.detachLocked(session)
		}
		g.sessions[sender] = g.startLocked(sender, content, capturedAt, now)
	}
	g.mu.Unlock()

	if flushed != nil {
		g.dispatch(*flushed)
	}
	return result
}

type pendingCommit struct {
	sender     string
	content    string
	receivedAt time.Time
}

func (g *IngestionGate) startLocked(sender string, content string, capturedAt time.Time, now time.Time) *reassemblySession {
	session := &reassemblySession{
		sender:         sender,
		receivedAt:     capturedAt,
		lastFragmentAt: now,
	}
	session.buffer.WriteString(content)
	g.armLocked(session)
	return session
}

// armLocked (re)starts the deferred commit timer. The generation guards
// against a timer that already fired before Stop could cancel it.
func (g *IngestionGate) armLocked(session *reassemblySession) {
	if session.timer != nil {
		session.timer.Stop()
	}
	g.generation++
	generation := g.generation
	session.generation = generation
	sender := session.sender
	session.timer = time.AfterFunc(g.concatTimeout, func() {
		g.expire(sender, generation)
	})
}

func (g *IngestionGate) detachLocked(session *reassemblySession) *pendingCommit {
	if session.timer != nil {
		session.timer.Stop()
	}
	delete(g.sessions, session.sender)
	return &pendingCommit{
		sender:     session.sender,
		content:    session.buffer.String(),
		receivedAt: session.receivedAt,
	}
}

func (g *IngestionGate) expire(sender string, generation uint64) {
	g.mu.Lock()
	session, ok := g.sessions[sender]
	if !ok || session.generation != generation {
		g.mu.Unlock()
		return
	}
	pending := g.detachLocked(session)
	g.mu.Unlock()
	g.dispatch(*pending)
}

func (g *IngestionGate) dispatch(pending pendingCommit) {
	if g.commit == nil {
		g.logger.Warn("ingestion gate has no committer, dropping message", "sender", pending.sender)
		return
	}
	g.beginCommit()
	go func() {
		defer g.endCommit()
		g.commit(g.ctx, pending.sender, pending.content, pending.receivedAt)
	}()
}

func (g *IngestionGate) beginCommit() {
	g.commitMu.Lock()
	defer g.commitMu.Unlock()
	if g.inflight == 0 {
		g.idle = make(chan struct{})
	}
	g.inflight++
}

func (g *IngestionGate) endCommit() {
	g.commitMu.Lock()
	defer g.commitMu.Unlock()
	g.inflight--
	if g.inflight == 0 {
		close(g.idle)
	}
}

// idleSignal returns nil when nothing is in flight.
func (g *IngestionGate) idleSignal() <-chan struct{} {
	g.commitMu.Lock()
	defer g.commitMu.Unlock()
	if g.inflight == 0 {
		return nil
	}
	return g.idle
}

// Flush commits every open session now and waits for all outstanding commits.
func (g *IngestionGate) Flush(ctx context.Context) error {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	pending := make([]pendingCommit, 0, len(g.sessions))
	for _, session := range g.sessions {
		pending = append(pending, *g.detachLocked(session))
	}
	g.mu.Unlock()

	for _, item := range pending {
		g.dispatch(item)
	}
	return g.Wait(ctx)
}

// Wait blocks until in-flight commits finish or ctx is done.
func (g *IngestionGate) Wait(ctx context.Context) error {
	if g == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	idle := g.idleSignal()
	if idle == nil {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close rejects further fragments and flushes open sessions.
func (g *IngestionGate) Close(ctx context.Context) error {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	return g.Flush(ctx)
}

// OpenSessions returns the number of senders with an uncommitted buffer.
func (g *IngestionGate) OpenSessions() int {
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

func fragmentSignature(sender string, content string) string {
	sum := sha256.Sum256([]byte(sender + "\x00" + content))
	return hex.EncodeToString(sum[:])
}
