package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardroom/internal/gameview"
	"cardroom/internal/realtime"
	"cardroom/internal/room"
	"cardroom/internal/roomsvc"
	"cardroom/internal/session"
	"cardroom/internal/types"
)

type fakeService struct {
	mu   sync.Mutex
	room room.Room
	turn types.TurnState

	roomCalls int32
	turnCalls int32

	getRoomHook func(ctx context.Context, n int32) error
	submitErr   error
	submitted   []types.TurnSubmission
}

func (f *fakeService) setRoom(r room.Room) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.room = r
}

func (f *fakeService) setTurn(ts types.TurnState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turn = ts
}

func (f *fakeService) GetRoom(ctx context.Context, roomID string) (*room.Room, error) {
	n := atomic.AddInt32(&f.roomCalls, 1)
	if f.getRoomHook != nil {
		if err := f.getRoomHook(ctx, n); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.room
	return &r, nil
}

func (f *fakeService) GetTurnState(ctx context.Context, roomID string) (*types.TurnState, error) {
	atomic.AddInt32(&f.turnCalls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	ts := f.turn
	return &ts, nil
}

func (f *fakeService) UpdateRoom(ctx context.Context, roomID string, update roomsvc.RoomUpdate) (*room.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if update.Size != nil {
		f.room.Size = *update.Size
	}
	if update.Status != nil {
		f.room.Status = *update.Status
	}
	r := f.room
	return &r, nil
}

func (f *fakeService) AddParticipant(ctx context.Context, roomID, userID string) (*room.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.room.Participants = append(f.room.Participants, room.Participant{ID: userID})
	r := f.room
	return &r, nil
}

func (f *fakeService) RemoveParticipant(ctx context.Context, roomID, userID string) error {
	return nil
}

func (f *fakeService) SubmitTurn(ctx context.Context, roomID string, turn types.TurnSubmission) (*types.TurnState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, turn)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.turn.Turn++
	ts := f.turn
	return &ts, nil
}

type fakeChannel struct {
	mu     sync.Mutex
	ready  bool
	sent   []string
	closes int
}

func (c *fakeChannel) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

func (c *fakeChannel) setReady(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = v
}

func (c *fakeChannel) Send(ctx context.Context, payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, payload)
	return nil
}

func (c *fakeChannel) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *fakeChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
}

func (c *fakeChannel) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

type fakeOpener struct {
	mu     sync.Mutex
	ch     *fakeChannel
	signal func(realtime.Signal)
	opens  int
}

func (o *fakeOpener) open(ctx context.Context, roomID string, onSignal func(realtime.Signal)) (session.SyncChannel, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	o.ch.setReady(true)
	o.signal = onSignal
	return o.ch, nil
}

func (o *fakeOpener) emit() {
	o.mu.Lock()
	fn := o.signal
	o.mu.Unlock()
	if fn != nil {
		fn(realtime.Signal{Payload: types.RefreshToken, Timestamp: time.Now()})
	}
}

func (o *fakeOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

func startedRoom() room.Room {
	return room.Room{
		ID:   "r1",
		Game: room.Game{ID: "g1", Name: "Regicide", MinSize: 1, MaxSize: 4},
		Admin: room.Participant{ID: "alice"},
		Participants: []room.Participant{
			{ID: "alice"}, {ID: "bob"},
		},
		Size:   2,
		Status: room.StatusStarted,
	}
}

func newTestSession(t *testing.T, svc *fakeService, viewer string) (*session.Session, *fakeOpener) {
	t.Helper()
	opener := &fakeOpener{ch: &fakeChannel{}}
	s := session.New(session.Config{
		RoomID:      "r1",
		ViewerID:    viewer,
		Service:     svc,
		OpenChannel: opener.open,
		Registry:    gameview.NewRegistry(),
	})
	t.Cleanup(s.Stop)
	return s, opener
}

func TestSession_CreatedRoomNeedsNoChannel(t *testing.T) {
	svc := &fakeService{}
	r := startedRoom()
	r.Status = room.StatusCreated
	r.Participants = r.Participants[:1]
	svc.setRoom(r)

	s, opener := newTestSession(t, svc, "alice")
	require.NoError(t, s.Start(context.Background()))

	assert.Equal(t, 0, opener.openCount())
	v := s.View()
	require.NotNil(t, v.Room)
	assert.True(t, v.Room.Status.IsCreated())
	assert.True(t, v.IsAdmin)
	assert.False(t, v.ChannelReady)
	assert.Nil(t, v.Turn)
}

func TestSession_TerminalRoomRendersMessage(t *testing.T) {
	svc := &fakeService{}
	r := startedRoom()
	r.Status = room.StatusCanceled
	svc.setRoom(r)

	s, opener := newTestSession(t, svc, "alice")
	require.NoError(t, s.Start(context.Background()))

	assert.Equal(t, 0, opener.openCount(), "terminal rooms have nothing to sync")
	v := s.View()
	assert.Equal(t, []string{"Game has been canceled."}, v.Frame.Lines)
}

func TestSession_StartedRoomOpensChannelAndFetchesTurn(t *testing.T) {
	svc := &fakeService{}
	svc.setRoom(startedRoom())
	svc.setTurn(types.TurnState{Turn: 1, ActivePlayerID: "alice", Status: types.GameStatusPlaying})

	s, opener := newTestSession(t, svc, "alice")
	require.NoError(t, s.Start(context.Background()))

	assert.Equal(t, 1, opener.openCount())
	v := s.View()
	require.NotNil(t, v.Turn)
	assert.Equal(t, 1, v.Turn.Turn)
	assert.True(t, v.IsActivePlayer)
	assert.True(t, v.ChannelReady)
	assert.True(t, v.Frame.CanAct)
}

func TestSession_SignalCoalescing(t *testing.T) {
	svc := &fakeService{}
	svc.setRoom(startedRoom())
	svc.setTurn(types.TurnState{Turn: 1, ActivePlayerID: "alice", Status: types.GameStatusPlaying})

	entered := make(chan struct{}, 16)
	release := make(chan struct{})
	svc.getRoomHook = func(ctx context.Context, n int32) error {
		if n < 2 {
			return nil // the synchronous activation fetch
		}
		entered <- struct{}{}
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s, opener := newTestSession(t, svc, "alice")
	require.NoError(t, s.Start(context.Background()))
	require.EqualValues(t, 1, atomic.LoadInt32(&svc.roomCalls))

	// first signal starts a fetch that blocks inside the service
	opener.emit()
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatalf("fetch never started after signal")
	}

	// pile on more signals while the fetch is in flight
	for i := 0; i < 7; i++ {
		opener.emit()
	}

	close(release)

	// exactly one follow-up fetch, no matter how many signals queued up
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&svc.roomCalls) == 3
	}, time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 3, atomic.LoadInt32(&svc.roomCalls),
		"no further fetches may trail in")
}

func TestSession_StopClosesChannelAndDiscardsLateFetch(t *testing.T) {
	svc := &fakeService{}
	svc.setRoom(startedRoom())
	svc.setTurn(types.TurnState{Turn: 1, ActivePlayerID: "alice", Status: types.GameStatusPlaying})

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	svc.getRoomHook = func(ctx context.Context, n int32) error {
		if n < 2 {
			return nil
		}
		entered <- struct{}{}
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s, opener := newTestSession(t, svc, "alice")
	require.NoError(t, s.Start(context.Background()))

	opener.emit()
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatalf("fetch never started")
	}

	s.Stop()
	close(release)

	assert.GreaterOrEqual(t, opener.ch.closeCount(), 1, "channel must be closed on exit")
	// a view after deactivation reflects nothing new
	v := s.View()
	assert.Nil(t, v.Room)
}

func TestSession_TurnAdvanceInvalidatesSelection(t *testing.T) {
	svc := &fakeService{}
	svc.setRoom(startedRoom())
	svc.setTurn(types.TurnState{Turn: 1, ActivePlayerID: "alice", Status: types.GameStatusPlaying})

	s, opener := newTestSession(t, svc, "alice")
	require.NoError(t, s.Start(context.Background()))

	s.BeginSelection()
	s.ToggleCard("QH")
	require.Eventually(t, func() bool {
		return len(s.View().PendingCards) == 1
	}, time.Second, 10*time.Millisecond)

	// someone else's turn lands server-side; a refresh signal arrives
	svc.setTurn(types.TurnState{Turn: 2, ActivePlayerID: "bob", Status: types.GameStatusPlaying})
	opener.emit()

	require.Eventually(t, func() bool {
		v := s.View()
		return v.Turn != nil && v.Turn.Turn == 2 && len(v.PendingCards) == 0
	}, time.Second, 10*time.Millisecond, "stale selection must not survive the turn advance")
}

func TestSession_SubmitAcceptedNotifiesPeers(t *testing.T) {
	svc := &fakeService{}
	svc.setRoom(startedRoom())
	svc.setTurn(types.TurnState{Turn: 1, ActivePlayerID: "alice", Status: types.GameStatusPlaying})

	s, opener := newTestSession(t, svc, "alice")
	require.NoError(t, s.Start(context.Background()))

	s.BeginSelection()
	s.ToggleCard("QH")
	s.SubmitTurn()

	require.Eventually(t, func() bool {
		v := s.View()
		return v.Turn != nil && v.Turn.Turn == 2
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, opener.ch.sentCount(), "peers must receive one refresh")
	assert.Empty(t, s.View().PendingCards)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	require.Len(t, svc.submitted, 1)
	assert.Equal(t, []string{"QH"}, svc.submitted[0].Cards)
}

func TestSession_RejectionShowsNoticeThatExpires(t *testing.T) {
	svc := &fakeService{}
	svc.setRoom(startedRoom())
	svc.setTurn(types.TurnState{Turn: 1, ActivePlayerID: "alice", Status: types.GameStatusPlaying})
	svc.submitErr = &roomsvc.APIError{Status: 400, Message: "Invalid turn."}

	var mu sync.Mutex
	cur := time.Now()
	opener := &fakeOpener{ch: &fakeChannel{}}
	s := session.New(session.Config{
		RoomID:      "r1",
		ViewerID:    "alice",
		Service:     svc,
		OpenChannel: opener.open,
		Registry:    gameview.NewRegistry(),
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return cur
		},
	})
	t.Cleanup(s.Stop)
	require.NoError(t, s.Start(context.Background()))

	s.BeginSelection()
	s.ToggleCard("QH")
	s.SubmitTurn()

	require.Eventually(t, func() bool {
		v := s.View()
		return len(v.Notices) == 1 && v.Notices[0] == "Invalid turn."
	}, time.Second, 10*time.Millisecond)

	v := s.View()
	assert.Empty(t, v.PendingCards, "rejected selection is dropped")
	require.NotNil(t, v.Turn)
	assert.Equal(t, 1, v.Turn.Turn, "state is otherwise unchanged")
	assert.Equal(t, 0, opener.ch.sentCount(), "no refresh for a refused action")

	// five seconds later the notice is gone
	mu.Lock()
	cur = cur.Add(6 * time.Second)
	mu.Unlock()
	assert.Empty(t, s.View().Notices)
}

func TestSession_TransportFailureShowsGenericNotice(t *testing.T) {
	svc := &fakeService{}
	svc.setRoom(startedRoom())
	svc.setTurn(types.TurnState{Turn: 1, ActivePlayerID: "alice", Status: types.GameStatusPlaying})
	svc.submitErr = errors.New("connection reset")

	s, _ := newTestSession(t, svc, "alice")
	require.NoError(t, s.Start(context.Background()))

	s.SkipTurn()
	require.Eventually(t, func() bool {
		n := s.View().Notices
		return len(n) == 1 && n[0] == "Something went wrong. Try again later."
	}, time.Second, 10*time.Millisecond)
}

func TestSession_TerminalFetchClosesChannelAndMutesSignals(t *testing.T) {
	svc := &fakeService{}
	svc.setRoom(startedRoom())
	svc.setTurn(types.TurnState{Turn: 3, ActivePlayerID: "alice", Status: types.GameStatusPlaying})

	s, opener := newTestSession(t, svc, "alice")
	require.NoError(t, s.Start(context.Background()))

	finished := startedRoom()
	finished.Status = room.StatusFinished
	svc.setRoom(finished)
	opener.emit()

	require.Eventually(t, func() bool {
		v := s.View()
		return v.Room != nil && v.Room.Status.IsFinished()
	}, time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, opener.ch.closeCount(), 1)
	assert.Equal(t, []string{"The game is over."}, s.View().Frame.Lines)

	// signals after a terminal status trigger no more fetches
	calls := atomic.LoadInt32(&svc.roomCalls)
	opener.emit()
	opener.emit()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, calls, atomic.LoadInt32(&svc.roomCalls))
}

func TestSession_ManualRefreshAfterConnectionLoss(t *testing.T) {
	svc := &fakeService{}
	svc.setRoom(startedRoom())
	svc.setTurn(types.TurnState{Turn: 1, ActivePlayerID: "alice", Status: types.GameStatusPlaying})

	s, opener := newTestSession(t, svc, "alice")
	require.NoError(t, s.Start(context.Background()))

	opener.ch.setReady(false)
	require.Eventually(t, func() bool {
		return !s.View().ChannelReady
	}, time.Second, 10*time.Millisecond)

	// nothing arrives while disconnected, so nothing is fetched
	calls := atomic.LoadInt32(&svc.roomCalls)
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, calls, atomic.LoadInt32(&svc.roomCalls))

	// the view being re-activated retriggers one coalesced fetch
	s.Refresh()
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&svc.roomCalls) == calls+1
	}, time.Second, 10*time.Millisecond)
}

func TestSession_SetupOpsReplaceSnapshot(t *testing.T) {
	svc := &fakeService{}
	r := startedRoom()
	r.Status = room.StatusCreated
	r.Participants = r.Participants[:1]
	svc.setRoom(r)

	s, _ := newTestSession(t, svc, "bob")
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.View().CanJoin)

	require.NoError(t, s.Join(context.Background()))
	require.Eventually(t, func() bool {
		v := s.View()
		return v.IsParticipant && !v.CanJoin
	}, time.Second, 10*time.Millisecond)
}

func TestSession_ResizeByAdmin(t *testing.T) {
	svc := &fakeService{}
	r := startedRoom()
	r.Status = room.StatusCreated
	r.Participants = r.Participants[:1]
	svc.setRoom(r)

	s, _ := newTestSession(t, svc, "alice")
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.Resize(context.Background(), 3))
	require.Eventually(t, func() bool {
		v := s.View()
		return v.Room != nil && v.Room.Size == 3
	}, time.Second, 10*time.Millisecond)
}
