package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cardroom/internal/gameview"
	"cardroom/internal/realtime"
	"cardroom/internal/room"
	"cardroom/internal/roomsvc"
	"cardroom/internal/turns"
	"cardroom/internal/types"
)

// Service is the room service surface the session consumes.
type Service interface {
	GetRoom(ctx context.Context, roomID string) (*room.Room, error)
	GetTurnState(ctx context.Context, roomID string) (*types.TurnState, error)
	UpdateRoom(ctx context.Context, roomID string, update roomsvc.RoomUpdate) (*room.Room, error)
	AddParticipant(ctx context.Context, roomID, userID string) (*room.Room, error)
	RemoveParticipant(ctx context.Context, roomID, userID string) error
	SubmitTurn(ctx context.Context, roomID string, turn types.TurnSubmission) (*types.TurnState, error)
}

// SyncChannel is the slice of realtime.Channel the session owns.
type SyncChannel interface {
	Ready() bool
	Send(ctx context.Context, payload string) error
	Close()
}

// ChannelOpener dials the realtime endpoint for a room. Injected so tests
// can stand in a fake; DialOpener is the production one.
type ChannelOpener func(ctx context.Context, roomID string, onSignal func(realtime.Signal)) (SyncChannel, error)

// DialOpener connects to wsBase + "/rooms/{id}/ws".
func DialOpener(wsBase string, log *zap.Logger) ChannelOpener {
	return func(ctx context.Context, roomID string, onSignal func(realtime.Signal)) (SyncChannel, error) {
		return realtime.Dial(ctx, wsBase+"/rooms/"+roomID+"/ws", onSignal, log)
	}
}

// noticeTTL is how long a user-visible error notice stays up.
const noticeTTL = 5 * time.Second

type notice struct {
	text    string
	expires time.Time
}

type msg interface{ isSessionMsg() }

type signalMsg struct{ sig realtime.Signal }

type fetchDone struct {
	seq  int
	room *room.Room
	turn *types.TurnState
	err  error
}

type submitDone struct{ outcome turns.Outcome }

type applyRoom struct{ room *room.Room }

type beginSelect struct{}

type toggleCard struct{ card string }

type submitTurn struct{ skip bool }

type noticeMsg struct{ text string }

type getView struct{ reply chan View }

func (signalMsg) isSessionMsg()  {}
func (fetchDone) isSessionMsg()  {}
func (submitDone) isSessionMsg() {}
func (applyRoom) isSessionMsg()  {}
func (beginSelect) isSessionMsg() {}
func (toggleCard) isSessionMsg() {}
func (submitTurn) isSessionMsg() {}
func (noticeMsg) isSessionMsg()  {}
func (getView) isSessionMsg()    {}

// Session is the single owner of what one viewer knows about one room and
// how fresh it is. One goroutine owns all of its state; every input -
// channel signals, fetch completions, user intents - arrives as a message
// on the inbox. Stop closes the realtime channel on every exit path and
// discards anything still in flight.
type Session struct {
	roomID   string
	svc      Service
	opener   ChannelOpener
	registry *gameview.Registry
	machine  *room.Machine
	ctrl     *turns.Controller
	log      *zap.Logger
	now      func() time.Time

	inbox    chan msg
	ctx      context.Context
	cancel   context.CancelFunc
	loopDone chan struct{}
	started  bool

	// loop-owned from Start onward
	channel       SyncChannel
	turn          *types.TurnState
	fetchInFlight bool
	fetchOwed     bool
	seq           int
	notices       []notice
}

type Config struct {
	RoomID      string
	ViewerID    string
	Service     Service
	OpenChannel ChannelOpener
	Registry    *gameview.Registry
	Log         *zap.Logger
	Now         func() time.Time // test hook, defaults to time.Now
}

func New(cfg Config) *Session {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		roomID:   cfg.RoomID,
		svc:      cfg.Service,
		opener:   cfg.OpenChannel,
		registry: cfg.Registry,
		machine:  room.NewMachine(cfg.ViewerID),
		log:      cfg.Log.With(zap.String("room_id", cfg.RoomID)),
		now:      cfg.Now,
		inbox:    make(chan msg, 64),
		ctx:      ctx,
		cancel:   cancel,
		loopDone: make(chan struct{}),
	}
	s.ctrl = turns.NewController(cfg.Service, s, s.log)
	return s
}

// Start activates the session: fetch the room, and if play is under way
// open the realtime channel and fetch the turn state. For a room still in
// setup no channel is needed; for a terminal room there is nothing to sync.
func (s *Session) Start(ctx context.Context) error {
	r, err := s.svc.GetRoom(ctx, s.roomID)
	if err != nil {
		return fmt.Errorf("fetch room: %w", err)
	}
	s.machine.Replace(r)

	if r.Status.IsStarted() {
		ch, err := s.opener(ctx, s.roomID, s.onSignal)
		if err != nil {
			return fmt.Errorf("open realtime channel: %w", err)
		}
		s.channel = ch

		ts, err := s.svc.GetTurnState(ctx, s.roomID)
		if err != nil {
			ch.Close()
			return fmt.Errorf("fetch turn state: %w", err)
		}
		s.turn = ts
	}

	s.started = true
	go s.loop()
	return nil
}

// Stop deactivates the session: the channel is closed unconditionally, the
// pending selection is discarded, and any late-arriving fetch result is
// dropped instead of applied. Safe to call more than once.
func (s *Session) Stop() {
	s.cancel()
	if s.started {
		<-s.loopDone
	}
}

func (s *Session) onSignal(sig realtime.Signal) {
	select {
	case s.inbox <- signalMsg{sig: sig}:
	case <-s.ctx.Done():
	}
}

func (s *Session) post(m msg) {
	select {
	case s.inbox <- m:
	case <-s.ctx.Done():
	}
}

func (s *Session) loop() {
	defer close(s.loopDone)
	defer s.shutdown()
	for {
		select {
		case <-s.ctx.Done():
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case signalMsg:
				s.handleSignal()

			case fetchDone:
				s.handleFetchDone(msg)

			case submitDone:
				s.handleSubmitDone(msg.outcome)

			case applyRoom:
				s.machine.Replace(msg.room)

			case beginSelect:
				if s.turn != nil {
					s.ctrl.Pending().Begin(s.turn.Turn)
				}

			case toggleCard:
				if s.ctrl.Pending().Started() {
					s.ctrl.Pending().Toggle(msg.card)
				}

			case submitTurn:
				s.startSubmit(msg.skip)

			case noticeMsg:
				s.pushNotice(msg.text)

			case getView:
				msg.reply <- s.view()
			}
		}
	}
}

func (s *Session) shutdown() {
	if s.channel != nil {
		s.channel.Close()
	}
	s.ctrl.Pending().Clear()
}

// handleSignal coalesces refresh signals: at most one fetch in flight, and
// however many signals arrive meanwhile, exactly one follow-up fetch.
func (s *Session) handleSignal() {
	if s.machine.Status().IsTerminal() {
		return
	}
	if s.fetchInFlight {
		s.fetchOwed = true
		return
	}
	s.startFetch()
}

func (s *Session) startFetch() {
	s.fetchInFlight = true
	s.seq++
	seq := s.seq
	go func() {
		fd := fetchDone{seq: seq}
		fd.room, fd.err = s.svc.GetRoom(s.ctx, s.roomID)
		if fd.err == nil && fd.room.Status.IsStarted() {
			fd.turn, fd.err = s.svc.GetTurnState(s.ctx, s.roomID)
		}
		select {
		case s.inbox <- fd:
		case <-s.ctx.Done():
			// deactivated mid-fetch; result must not be applied
		}
	}()
}

func (s *Session) handleFetchDone(fd fetchDone) {
	s.fetchInFlight = false

	switch {
	case fd.seq != s.seq:
		// stale generation, drop

	case fd.err != nil:
		// No retry here: the view keeps showing the last known snapshot.
		s.log.Warn("refresh fetch failed", zap.Error(fd.err))

	default:
		s.machine.Replace(fd.room)
		if fd.turn != nil {
			s.turn = fd.turn
			s.ctrl.Pending().Invalidate(fd.turn.Turn)
		}
		if fd.room.Status.IsTerminal() && s.channel != nil {
			// game over, nothing further will be signaled
			s.channel.Close()
		}
	}

	if s.fetchOwed {
		s.fetchOwed = false
		s.startFetch()
	}
}

func (s *Session) startSubmit(skip bool) {
	go func() {
		var outcome turns.Outcome
		if skip {
			outcome = s.ctrl.SubmitSkip(s.ctx, s.roomID)
		} else {
			outcome = s.ctrl.Submit(s.ctx, s.roomID)
		}
		select {
		case s.inbox <- submitDone{outcome: outcome}:
		case <-s.ctx.Done():
		}
	}()
}

func (s *Session) handleSubmitDone(outcome turns.Outcome) {
	switch outcome.Kind {
	case turns.OutcomeAccepted:
		if outcome.State != nil {
			s.turn = outcome.State
		}
	case turns.OutcomeRejected, turns.OutcomeFailed:
		s.pushNotice(outcome.Message)
	}
}

func (s *Session) pushNotice(text string) {
	s.notices = append(s.notices, notice{text: text, expires: s.now().Add(noticeTTL)})
}

func (s *Session) activeNotices() []string {
	now := s.now()
	kept := s.notices[:0]
	var out []string
	for _, n := range s.notices {
		if now.Before(n.expires) {
			kept = append(kept, n)
			out = append(out, n.text)
		}
	}
	s.notices = kept
	return out
}
