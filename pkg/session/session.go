// Package session implements a stateful, full-duplex streaming
// conversation runtime. A Session owns one transport connection,
// multiplexes discrete and realtime input onto it, relays model output
// as ordered events, executes server-issued function calls, and tracks
// the continuity state needed to survive connection churn.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sonacove/livebridge/pkg/tools"
	"github.com/sonacove/livebridge/pkg/transport"
	"github.com/sonacove/livebridge/pkg/wire"
)

const (
	setupTimeout  = 15 * time.Second
	closeTimeout  = 5 * time.Second
	pingInterval  = 20 * time.Second
	commandBuffer = 64
	inboundBuffer = 64
)

// Dependencies carries everything a Session needs. Conn is required;
// the rest defaults sensibly.
type Dependencies struct {
	Conn     transport.Conn
	Config   Config
	Registry *tools.Registry
	Logger   *slog.Logger
	Metrics  *Metrics
}

// Session is a live conversation over one transport connection.
// All protocol state is owned by a single loop goroutine; the exported
// methods communicate with it through channels and are safe for
// concurrent use.
type Session struct {
	id       string
	cfg      Config
	conn     transport.Conn
	logger   *slog.Logger
	metrics  *Metrics
	registry *tools.Registry
	orch     *tools.Orchestrator

	ctx    context.Context
	cancel context.CancelFunc

	events      chan Event
	inbound     chan []byte
	readErr     chan error
	commands    chan command
	toolResults chan []tools.Result
	closeReq    chan struct{}
	done        chan struct{}

	closeOnce   sync.Once
	closeReason string
	started     bool

	// Snapshots of loop-owned state for concurrent accessors.
	mu          sync.RWMutex
	state       State
	usage       Usage
	compression Compression
	handle      string
	resumable   bool
	terminalErr error

	// Loop-owned. Never touched outside the loop goroutine (and
	// Start, which runs before the loop exists).
	detector           *activityDetector
	relay              *outputRelay
	cont               *continuity
	serverTurn         int
	generationInFlight bool
	turnCallIDs        map[int][]string
	pendingBatches     int
	drainC             <-chan time.Time
	drainTimer         *time.Timer

	// Per-modality arrival sequence numbers. Modalities are independent
	// streams; ordering holds within a modality, never across them.
	audioSeq uint64
	videoSeq uint64
	textSeq  uint64
}

type command interface{}

type cmdClientContent struct {
	turns        []wire.Content
	turnComplete bool
}

type cmdRealtimeAudio struct{ data []byte }

type cmdRealtimeVideo struct {
	data []byte
	mime string
}

type cmdRealtimeText struct{ text string }

type cmdActivity struct{ start bool }

type cmdAudioStreamEnd struct{}

type cmdToolResponse struct{ responses []wire.FunctionResponse }

// New builds a Session over an existing connection. The returned
// session is idle until Start.
func New(deps Dependencies) (*Session, error) {
	if deps.Conn == nil {
		return nil, NewInvalidConfigError("transport connection is required", "conn")
	}
	cfg := deps.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	id := newSessionID()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session_id", id)

	registry := deps.Registry
	if registry == nil {
		registry = tools.NewRegistry()
	}

	s := &Session{
		id:       id,
		cfg:      cfg,
		conn:     deps.Conn,
		logger:   logger,
		metrics:  deps.Metrics,
		registry: registry,
		orch: tools.NewOrchestrator(registry,
			tools.WithCallTimeout(cfg.ToolTimeout),
			tools.WithLogger(logger)),
		events:      make(chan Event, cfg.EventBuffer),
		inbound:     make(chan []byte, inboundBuffer),
		readErr:     make(chan error, 1),
		commands:    make(chan command, commandBuffer),
		toolResults: make(chan []tools.Result, 8),
		closeReq:    make(chan struct{}),
		done:        make(chan struct{}),
		state:       StateNew,
		relay:       &outputRelay{},
		cont:        newContinuity(&cfg),
		turnCallIDs: make(map[int][]string),
	}
	if cfg.Realtime.Detection.Automatic {
		s.detector = newActivityDetector(cfg.Realtime.Detection, cfg.InputFormat)
	}
	s.handle = cfg.ResumptionHandle
	return s, nil
}

// Dial opens a connection, builds a session, and completes the setup
// handshake. deps.Conn is ignored.
func Dial(ctx context.Context, dialer transport.Dialer, endpoint string, deps Dependencies) (*Session, error) {
	conn, err := dialer.Dial(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	deps.Conn = conn
	s, err := New(deps)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Redial opens a fresh session that resumes where s left off, using
// the latest resumption handle s received. The old session must be
// terminal.
func Redial(ctx context.Context, dialer transport.Dialer, endpoint string, s *Session) (*Session, error) {
	if !s.State().Terminal() {
		return nil, NewInvalidStateError("redial", s.State())
	}
	handle, ok := s.ResumptionHandle()
	if !ok {
		return nil, NewResumptionExpiredError("")
	}
	cfg := s.cfg
	cfg.ResumptionHandle = handle
	return Dial(ctx, dialer, endpoint, Dependencies{
		Config:   cfg,
		Registry: s.registry,
		Logger:   s.logger,
		Metrics:  s.metrics,
	})
}

// Start sends the setup message, waits for the server acknowledgment,
// and launches the session goroutines. The session lives until ctx is
// cancelled, Close is called, or the connection ends.
func (s *Session) Start(ctx context.Context) error {
	if s.started {
		return NewInvalidStateError("start", s.State())
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.setState(StateAwaitingSetup)
	s.metrics.SessionStarted()

	setup := s.cfg.setupMessage(s.registry.Declarations())
	frame, err := wire.EncodeClientMessage(&wire.ClientMessage{Setup: setup})
	if err != nil {
		return s.failStart(NewMalformedMessageError(err.Error()))
	}
	if err := s.conn.WriteFrame(frame); err != nil {
		return s.failStart(NewTransportClosedError(err))
	}
	s.setState(StateAwaitingSetupComplete)

	first, err := s.readFirstFrame()
	if err != nil {
		if s.cfg.ResumptionHandle != "" && errors.Is(err, transport.ErrClosed) {
			return s.failStart(NewResumptionExpiredError(s.cfg.ResumptionHandle))
		}
		return s.failStart(NewTransportClosedError(err))
	}
	msg, err := wire.DecodeServerMessage(first)
	if err != nil {
		return s.failStart(NewMalformedMessageError(err.Error()))
	}
	if msg.SetupComplete == nil {
		return s.failStart(NewMalformedMessageError(
			fmt.Sprintf("expected setupComplete as first server message, got %s", serverVariantName(msg))))
	}

	s.setState(StateActive)
	s.logger.Info("session active", "model", s.cfg.Model, "modality", s.cfg.ResponseModality,
		"resumed", s.cfg.ResumptionHandle != "")

	go s.readLoop()
	go s.run()
	if p, ok := s.conn.(transport.Pinger); ok {
		go s.pingLoop(p)
	}
	return nil
}

func (s *Session) readFirstFrame() ([]byte, error) {
	type frame struct {
		data []byte
		err  error
	}
	ch := make(chan frame, 1)
	go func() {
		data, err := s.conn.ReadFrame()
		ch <- frame{data, err}
	}()
	select {
	case f := <-ch:
		return f.data, f.err
	case <-time.After(setupTimeout):
		return nil, fmt.Errorf("setup acknowledgment timed out after %s", setupTimeout)
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	}
}

func (s *Session) failStart(e error) error {
	s.logger.Warn("session setup failed", "error", e)
	s.mu.Lock()
	s.state = StateFailed
	s.terminalErr = e
	s.mu.Unlock()
	s.cancel()
	s.conn.Close()
	s.events <- &ClosedEvent{Reason: "setup failed", Err: e}
	close(s.events)
	close(s.done)
	s.metrics.SessionEnded("failed")
	return e
}

// ID returns the engine-assigned session identifier.
func (s *Session) ID() string { return s.id }

// Events returns the ordered output stream. The channel is closed
// after a ClosedEvent once the session is terminal.
func (s *Session) Events() <-chan Event { return s.events }

// Done is closed when the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the terminal error, or nil after an orderly shutdown.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.terminalErr
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Usage returns the latest cumulative token usage.
func (s *Session) Usage() Usage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usage
}

// CompressionState returns the context window compression status.
func (s *Session) CompressionState() Compression {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.compression
}

// ResumptionHandle returns the newest resumption handle and whether
// the session can currently be resumed with it.
func (s *Session) ResumptionHandle() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handle, s.resumable && s.handle != ""
}

// SendText submits one complete user text turn.
func (s *Session) SendText(text string) error {
	return s.SendTurns([]wire.Content{{
		Role:  "user",
		Parts: []wire.Part{{Text: text}},
	}}, true)
}

// SendTurns submits discrete conversational turns. turnComplete
// signals the model may respond.
func (s *Session) SendTurns(turns []wire.Content, turnComplete bool) error {
	if err := s.permit("clientContent", false); err != nil {
		return err
	}
	return s.submit(cmdClientContent{turns: turns, turnComplete: turnComplete}, "clientContent")
}

// SendAudio streams one PCM chunk of realtime microphone audio.
func (s *Session) SendAudio(pcm []byte) error {
	if err := s.permit("realtimeInput", false); err != nil {
		return err
	}
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	return s.submit(cmdRealtimeAudio{data: buf}, "realtimeInput")
}

// SendVideo streams one encoded realtime video frame.
func (s *Session) SendVideo(frame []byte, mimeType string) error {
	if err := s.permit("realtimeInput", false); err != nil {
		return err
	}
	buf := make([]byte, len(frame))
	copy(buf, frame)
	return s.submit(cmdRealtimeVideo{data: buf, mime: mimeType}, "realtimeInput")
}

// SendRealtimeText streams low-latency text input outside the discrete
// turn structure.
func (s *Session) SendRealtimeText(text string) error {
	if err := s.permit("realtimeInput", false); err != nil {
		return err
	}
	return s.submit(cmdRealtimeText{text: text}, "realtimeInput")
}

// ActivityStart explicitly opens a user activity window. Only valid
// when automatic detection is disabled.
func (s *Session) ActivityStart() error {
	return s.sendActivity(true)
}

// ActivityEnd explicitly closes the user activity window. Only valid
// when automatic detection is disabled.
func (s *Session) ActivityEnd() error {
	return s.sendActivity(false)
}

func (s *Session) sendActivity(start bool) error {
	if s.cfg.Realtime.Detection.Automatic {
		return NewInvalidConfigError(
			"explicit activity signals are not permitted while automatic detection is enabled",
			"realtime.detection.automatic")
	}
	if err := s.permit("realtimeInput", false); err != nil {
		return err
	}
	return s.submit(cmdActivity{start: start}, "realtimeInput")
}

// EndAudioStream signals that the realtime audio stream is paused or
// gone, as opposed to the user being silent.
func (s *Session) EndAudioStream() error {
	if err := s.permit("realtimeInput", false); err != nil {
		return err
	}
	return s.submit(cmdAudioStreamEnd{}, "realtimeInput")
}

// SendToolResponse submits function results produced outside the
// orchestrator. Each call ID is accepted at most once per session.
// Permitted while Active or Draining.
func (s *Session) SendToolResponse(responses ...wire.FunctionResponse) error {
	if len(responses) == 0 {
		return NewMalformedMessageError("at least one function response is required")
	}
	if err := s.permit("toolResponse", true); err != nil {
		return err
	}
	ids := make([]string, len(responses))
	for i, r := range responses {
		if r.ID == "" {
			return NewMalformedMessageError("function response id is required")
		}
		ids[i] = r.ID
	}
	if dup, ok := s.orch.MarkResolvedBatch(ids); !ok {
		return NewDuplicateResponseError(dup)
	}
	return s.submit(cmdToolResponse{responses: responses}, "toolResponse")
}

// Close shuts the session down in an orderly fashion. Safe to call
// multiple times and from any goroutine.
func (s *Session) Close() error {
	if !s.started {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		return s.conn.Close()
	}
	s.closeOnce.Do(func() { close(s.closeReq) })
	select {
	case <-s.done:
	case <-time.After(closeTimeout):
		s.cancel()
		<-s.done
	}
	return nil
}

// permit gates caller operations on the current state. The loop
// re-checks before acting; a message that slips past a transition is
// dropped there.
func (s *Session) permit(op string, allowDraining bool) error {
	state := s.State()
	if state == StateActive {
		return nil
	}
	if allowDraining && state == StateDraining {
		return nil
	}
	return NewInvalidStateError(op, state)
}

func (s *Session) submit(cmd command, op string) error {
	select {
	case s.commands <- cmd:
		return nil
	case <-s.done:
		return NewInvalidStateError(op, s.State())
	}
}

// run is the owner goroutine: the only goroutine that mutates protocol
// state after Start returns.
func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			s.finish(nil, "context cancelled")
			return
		case <-s.closeReq:
			reason := s.closeReason
			if reason == "" {
				reason = "client close"
			}
			s.finish(nil, reason)
			return
		case err := <-s.readErr:
			if s.flushInbound() {
				return
			}
			if s.State() == StateDraining {
				s.finish(nil, "server closed after goaway")
				return
			}
			s.finish(NewTransportClosedError(err), "transport error")
			return
		case data := <-s.inbound:
			if s.handleFrame(data) {
				return
			}
		case cmd := <-s.commands:
			if s.handleCommand(cmd) {
				return
			}
		case results := <-s.toolResults:
			if s.handleToolResults(results) {
				return
			}
		case <-s.drainC:
			s.finish(nil, "goaway drain deadline")
			return
		}
	}
}

// flushInbound processes frames the read loop delivered before the
// transport closed. The read loop sends the error only after every
// preceding frame, so a goAway or resumption handle buffered behind
// content is still seen before the close is classified. Returns true
// when a flushed frame made the session terminal.
func (s *Session) flushInbound() bool {
	for {
		select {
		case data := <-s.inbound:
			if s.handleFrame(data) {
				return true
			}
		default:
			return false
		}
	}
}

func (s *Session) readLoop() {
	for {
		data, err := s.conn.ReadFrame()
		if err != nil {
			select {
			case s.readErr <- err:
			case <-s.ctx.Done():
			}
			return
		}
		select {
		case s.inbound <- data:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) pingLoop(p transport.Pinger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := p.Ping(); err != nil {
				s.logger.Debug("keepalive ping failed", "error", err)
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// handleFrame processes one server frame. Returns true when the
// session became terminal.
func (s *Session) handleFrame(data []byte) bool {
	msg, err := wire.DecodeServerMessage(data)
	if err != nil {
		e := NewMalformedMessageError(err.Error())
		s.emit(&ErrorEvent{Err: e})
		s.finish(e, "malformed server message")
		return true
	}

	if msg.UsageMetadata != nil {
		usage, activated := s.cont.observeUsage(msg.UsageMetadata)
		s.mu.Lock()
		s.usage = usage
		s.compression = s.cont.compression
		s.mu.Unlock()
		s.metrics.ObserveTokens(usage)
		s.emit(&UsageEvent{Usage: usage})
		if activated {
			s.logger.Info("context window compression activated",
				"trigger_tokens", s.cont.compression.TriggerTokens,
				"total_tokens", usage.TotalTokens)
			s.emit(&CompressionEvent{Compression: s.cont.compression})
		}
	}

	switch {
	case msg.SetupComplete != nil:
		// Exactly one acknowledgment per connection; a second one is a
		// protocol violation.
		e := NewMalformedMessageError("unexpected setupComplete after session became active")
		s.emit(&ErrorEvent{Err: e})
		s.finish(e, "protocol violation")
		return true
	case msg.ServerContent != nil:
		s.handleServerContent(msg.ServerContent)
	case msg.ToolCall != nil:
		s.dispatchToolCalls(msg.ToolCall.FunctionCalls)
	case msg.ToolCallCancellation != nil:
		s.orch.Cancel(msg.ToolCallCancellation.IDs)
		s.emit(&ToolCallsCancelledEvent{IDs: msg.ToolCallCancellation.IDs})
	case msg.GoAway != nil:
		s.handleGoAway(msg.GoAway)
	case msg.SessionResumptionUpdate != nil:
		s.cont.observeResumption(msg.SessionResumptionUpdate)
		s.mu.Lock()
		s.handle = s.cont.handle
		s.resumable = s.cont.resumable
		s.mu.Unlock()
		s.emit(&ResumptionUpdateEvent{Handle: s.cont.handle, Resumable: s.cont.resumable})
	}
	return false
}

func (s *Session) handleServerContent(sc *wire.ServerContent) {
	if sc.Interrupted {
		// Server-confirmed abort. Closes the turn whether or not we
		// already barged in locally.
		s.interruptTurn("server reported user activity")
		s.closeServerTurn()
		return
	}

	if !s.generationInFlight && hasContent(sc) {
		s.beginServerTurn()
	}

	for _, ev := range s.relay.route(sc, s.serverTurn) {
		if chunk, ok := ev.(*AudioChunkEvent); ok {
			s.metrics.ObserveAudio("out", len(chunk.Data))
		}
		s.emit(ev)
	}

	if sc.GenerationComplete && s.generationInFlight && !s.relay.isCancelled(s.serverTurn) {
		s.emit(&GenerationCompleteEvent{Turn: s.serverTurn})
	}
	if sc.TurnComplete {
		if s.generationInFlight && !s.relay.isCancelled(s.serverTurn) {
			s.emit(&TurnCompleteEvent{Turn: s.serverTurn, Transcript: s.relay.outputTranscript()})
		}
		s.closeServerTurn()
	}
}

func (s *Session) closeServerTurn() {
	s.generationInFlight = false
	delete(s.turnCallIDs, s.serverTurn)
	s.maybeFinishDrain()
}

func hasContent(sc *wire.ServerContent) bool {
	return sc.ModelTurn != nil || sc.InputTranscription != nil || sc.OutputTranscription != nil
}

func (s *Session) beginServerTurn() {
	s.serverTurn++
	s.generationInFlight = true
	s.relay.beginTurn()
	s.metrics.TurnStarted()
}

// interruptTurn aborts the in-flight model turn: pending tool calls
// are cancelled, trailing chunks are dropped on arrival, and the
// consumer is told to flush its playback buffer. The turn stays open
// until the server confirms with interrupted or turnComplete, so
// trailing chunks are not mistaken for a new turn.
func (s *Session) interruptTurn(cause string) {
	if !s.generationInFlight {
		return
	}
	turn := s.serverTurn
	if s.relay.isCancelled(turn) {
		return
	}
	s.relay.markCancelled(turn)
	if ids := s.turnCallIDs[turn]; len(ids) > 0 {
		s.orch.Cancel(ids)
		delete(s.turnCallIDs, turn)
	}
	s.logger.Debug("turn interrupted", "turn", turn, "cause", cause)
	s.metrics.TurnInterrupted()
	s.emit(&InterruptedEvent{Turn: turn})
}

func (s *Session) dispatchToolCalls(calls []wire.FunctionCall) {
	if len(calls) == 0 {
		return
	}
	if !s.generationInFlight {
		s.beginServerTurn()
	}
	turn := s.serverTurn
	ids := make([]string, len(calls))
	for i, call := range calls {
		ids[i] = call.ID
		s.emit(&ToolCallEvent{Turn: turn, ID: call.ID, Name: call.Name})
	}
	s.turnCallIDs[turn] = append(s.turnCallIDs[turn], ids...)
	s.pendingBatches++

	go func() {
		results := s.orch.ExecuteBatch(s.ctx, calls)
		select {
		case s.toolResults <- results:
		case <-s.ctx.Done():
		}
	}()
}

// handleToolResults sends one response batch back to the server.
// Cancelled and duplicate calls produce no response by contract.
func (s *Session) handleToolResults(results []tools.Result) bool {
	s.pendingBatches--

	var responses []wire.FunctionResponse
	var ids []string
	for _, res := range results {
		s.metrics.ObserveToolCall(string(res.Outcome))
		if res.Response != nil {
			responses = append(responses, *res.Response)
			ids = append(ids, res.ID)
		}
	}

	state := s.State()
	if len(responses) > 0 && (state == StateActive || state == StateDraining) {
		if terminal := s.writeClientMessage(&wire.ClientMessage{
			ToolResponse: &wire.ToolResponse{FunctionResponses: responses},
		}); terminal {
			return true
		}
		s.emit(&ToolResponsesSentEvent{IDs: ids})
	}
	s.maybeFinishDrain()
	return false
}

func (s *Session) handleGoAway(ga *wire.GoAway) {
	if s.State() != StateActive {
		s.logger.Debug("goAway ignored", "state", s.State())
		return
	}
	grace := s.cfg.DrainGrace
	if ga.TimeLeftMs > 0 {
		grace = time.Duration(ga.TimeLeftMs) * time.Millisecond
	}
	s.setState(StateDraining)
	s.logger.Info("server requested drain", "grace", grace)
	s.emit(&GoAwayEvent{TimeLeft: grace})
	s.drainTimer = time.NewTimer(grace)
	s.drainC = s.drainTimer.C
	s.maybeFinishDrain()
}

// maybeFinishDrain closes the session once a draining session has no
// in-flight work left.
func (s *Session) maybeFinishDrain() {
	if s.State() != StateDraining {
		return
	}
	if s.generationInFlight || s.pendingBatches > 0 || s.orch.ActiveCount() > 0 {
		return
	}
	s.finishAsync("drain complete")
}

// finishAsync requests an orderly close from within the loop without
// terminating the current handler early.
func (s *Session) finishAsync(reason string) {
	s.closeOnce.Do(func() {
		s.logger.Debug("scheduling close", "reason", reason)
		s.closeReason = reason
		close(s.closeReq)
	})
}

// handleCommand processes one caller request. Returns true when the
// session became terminal.
func (s *Session) handleCommand(cmd command) bool {
	state := s.State()

	switch c := cmd.(type) {
	case cmdToolResponse:
		if state != StateActive && state != StateDraining {
			s.dropCommand("toolResponse", state)
			return false
		}
		if terminal := s.writeClientMessage(&wire.ClientMessage{
			ToolResponse: &wire.ToolResponse{FunctionResponses: c.responses},
		}); terminal {
			return true
		}
		ids := make([]string, len(c.responses))
		for i, r := range c.responses {
			ids[i] = r.ID
		}
		s.emit(&ToolResponsesSentEvent{IDs: ids})
		return false

	case cmdClientContent:
		if state != StateActive {
			s.dropCommand("clientContent", state)
			return false
		}
		return s.handleClientContent(c)

	case cmdRealtimeAudio:
		if state != StateActive {
			s.dropCommand("realtimeInput", state)
			return false
		}
		s.audioSeq++
		return s.handleRealtimeAudio(c.data)

	case cmdRealtimeVideo:
		if state != StateActive {
			s.dropCommand("realtimeInput", state)
			return false
		}
		s.videoSeq++
		s.logger.Debug("realtime video frame", "seq", s.videoSeq, "mime", c.mime)
		return s.writeClientMessage(&wire.ClientMessage{
			RealtimeInput: &wire.RealtimeInput{Video: &wire.Blob{MIMEType: c.mime, Data: c.data}},
		})

	case cmdRealtimeText:
		if state != StateActive {
			s.dropCommand("realtimeInput", state)
			return false
		}
		s.textSeq++
		s.logger.Debug("realtime text", "seq", s.textSeq)
		return s.writeClientMessage(&wire.ClientMessage{
			RealtimeInput: &wire.RealtimeInput{Text: c.text},
		})

	case cmdActivity:
		if state != StateActive {
			s.dropCommand("realtimeInput", state)
			return false
		}
		if c.start && s.cfg.Realtime.Handling == wire.StartOfActivityInterrupts {
			s.interruptTurn("explicit activity start")
		}
		s.emit(&ActivityEvent{Start: c.start})
		ri := &wire.RealtimeInput{}
		if c.start {
			ri.ActivityStart = &wire.ActivityStart{}
		} else {
			ri.ActivityEnd = &wire.ActivityEnd{}
		}
		return s.writeClientMessage(&wire.ClientMessage{RealtimeInput: ri})

	case cmdAudioStreamEnd:
		if state != StateActive {
			s.dropCommand("realtimeInput", state)
			return false
		}
		// A vanished stream also abandons any open detection window.
		if s.detector != nil && s.detector.windowOpen() {
			s.detector.reset()
			s.emit(&ActivityEvent{Start: false})
			if terminal := s.writeClientMessage(&wire.ClientMessage{
				RealtimeInput: &wire.RealtimeInput{ActivityEnd: &wire.ActivityEnd{}},
			}); terminal {
				return true
			}
		}
		return s.writeClientMessage(&wire.ClientMessage{
			RealtimeInput: &wire.RealtimeInput{AudioStreamEnd: true},
		})
	}
	return false
}

func (s *Session) handleClientContent(c cmdClientContent) bool {
	// An explicit turn boundary supersedes a pending automatic window:
	// the window is closed quietly rather than committed as its own
	// turn.
	if c.turnComplete && s.detector != nil && s.detector.windowOpen() {
		s.detector.reset()
		if terminal := s.writeClientMessage(&wire.ClientMessage{
			RealtimeInput: &wire.RealtimeInput{ActivityEnd: &wire.ActivityEnd{}},
		}); terminal {
			return true
		}
	}

	if s.generationInFlight && s.cfg.Realtime.Handling == wire.StartOfActivityInterrupts {
		s.interruptTurn("client content during generation")
	}

	return s.writeClientMessage(&wire.ClientMessage{
		ClientContent: &wire.ClientContent{Turns: c.turns, TurnComplete: c.turnComplete},
	})
}

func (s *Session) handleRealtimeAudio(pcm []byte) bool {
	s.metrics.ObserveAudio("in", len(pcm))

	if s.detector == nil {
		// Manual mode: forward everything; the caller owns boundaries.
		return s.writeAudioFrame(pcm)
	}

	det := s.detector.feed(pcm)

	if det.Started {
		s.logger.Debug("activity window opened", "audio_seq", s.audioSeq)
		if s.cfg.Realtime.Handling == wire.StartOfActivityInterrupts {
			s.interruptTurn("detected user speech")
		}
		s.emit(&ActivityEvent{Start: true})
		if terminal := s.writeClientMessage(&wire.ClientMessage{
			RealtimeInput: &wire.RealtimeInput{ActivityStart: &wire.ActivityStart{}},
		}); terminal {
			return true
		}
	}

	// With full coverage every chunk is forwarded as it arrives; with
	// activity-only coverage just the window frames (including prefix
	// padding) go out.
	var forward [][]byte
	if s.cfg.Realtime.Coverage == wire.TurnIncludesAllInput {
		forward = [][]byte{pcm}
	} else {
		forward = det.Window
	}
	for _, frame := range forward {
		if terminal := s.writeAudioFrame(frame); terminal {
			return true
		}
	}

	if det.Ended {
		s.emit(&ActivityEvent{Start: false})
		if terminal := s.writeClientMessage(&wire.ClientMessage{
			RealtimeInput: &wire.RealtimeInput{ActivityEnd: &wire.ActivityEnd{}},
		}); terminal {
			return true
		}
	}
	return false
}

func (s *Session) writeAudioFrame(pcm []byte) bool {
	return s.writeClientMessage(&wire.ClientMessage{
		RealtimeInput: &wire.RealtimeInput{
			Audio: &wire.Blob{MIMEType: s.cfg.InputFormat.MIMEType(), Data: pcm},
		},
	})
}

// writeClientMessage encodes and sends one frame. Returns true when
// the write failed and the session became terminal.
func (s *Session) writeClientMessage(msg *wire.ClientMessage) bool {
	frame, err := wire.EncodeClientMessage(msg)
	if err != nil {
		e := NewMalformedMessageError(err.Error())
		s.emit(&ErrorEvent{Err: e})
		s.logger.Warn("dropping unencodable frame", "error", err)
		return false
	}
	if err := s.conn.WriteFrame(frame); err != nil {
		if s.State() == StateDraining {
			s.finish(nil, "server closed after goaway")
			return true
		}
		s.finish(NewTransportClosedError(err), "write failed")
		return true
	}
	return false
}

func (s *Session) dropCommand(op string, state State) {
	s.logger.Debug("dropping message", "op", op, "state", state)
	s.emit(&ErrorEvent{Err: NewInvalidStateError(op, state)})
}

// finish moves the session to a terminal state, cancels in-flight
// work, and emits the final ClosedEvent. Loop-only.
func (s *Session) finish(terminalErr *Error, reason string) {
	if s.drainTimer != nil {
		s.drainTimer.Stop()
	}
	s.cancel()
	s.orch.CancelAll()
	s.conn.Close()

	to := StateClosed
	outcome := "closed"
	if terminalErr != nil {
		to = StateFailed
		outcome = "failed"
	}
	s.mu.Lock()
	from := s.state
	s.state = to
	if terminalErr != nil {
		s.terminalErr = terminalErr
	}
	s.mu.Unlock()

	if terminalErr != nil {
		s.logger.Warn("session failed", "reason", reason, "error", terminalErr)
	} else {
		s.logger.Info("session closed", "reason", reason)
	}
	s.metrics.SessionEnded(outcome)

	s.emitFinal(&StateChangedEvent{From: from, To: to})
	var err error
	if terminalErr != nil {
		err = terminalErr
	}
	s.emitFinal(&ClosedEvent{Reason: reason, Err: err})
	close(s.events)
}

// emit delivers an event in order. It blocks when the consumer lags,
// which backpressures the whole session; shutdown unblocks it.
func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// emitFinal never blocks; shutdown events are dropped rather than
// stall teardown when the consumer is gone.
func (s *Session) emitFinal(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}

func (s *Session) setState(to State) {
	s.mu.Lock()
	from := s.state
	if !validTransition(from, to) {
		s.mu.Unlock()
		s.logger.Error("illegal state transition", "from", from, "to", to)
		return
	}
	s.state = to
	s.mu.Unlock()
	s.emit(&StateChangedEvent{From: from, To: to})
}

func serverVariantName(msg *wire.ServerMessage) string {
	switch {
	case msg.ServerContent != nil:
		return "serverContent"
	case msg.ToolCall != nil:
		return "toolCall"
	case msg.ToolCallCancellation != nil:
		return "toolCallCancellation"
	case msg.GoAway != nil:
		return "goAway"
	case msg.SessionResumptionUpdate != nil:
		return "sessionResumptionUpdate"
	default:
		return "unknown"
	}
}

func newSessionID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("s_%d", time.Now().UnixNano())
	}
	return "s_" + hex.EncodeToString(buf)
}
