package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoSeatRoom() *Room {
	return &Room{
		ID:           "r1",
		Game:         Game{ID: "g1", Name: "Regicide", MinSize: 2, MaxSize: 4},
		Admin:        Participant{ID: "alice", Name: "Alice"},
		Participants: []Participant{{ID: "alice", Name: "Alice"}},
		Size:         2,
		Status:       StatusCreated,
	}
}

func TestMachine_SetupScenario(t *testing.T) {
	r := twoSeatRoom()

	admin := NewMachine("alice")
	admin.Replace(r)
	require.True(t, admin.IsAdmin())
	assert.True(t, admin.IsParticipant())
	assert.False(t, admin.CanJoin(), "admin already joined")
	assert.False(t, admin.CanStart(), "one seat still open")

	// second participant joins
	r2 := twoSeatRoom()
	r2.Participants = append(r2.Participants, Participant{ID: "bob", Name: "Bob"})
	admin.Replace(r2)
	assert.True(t, admin.CanStart())

	bob := NewMachine("bob")
	bob.Replace(r2)
	assert.False(t, bob.IsAdmin())
	assert.False(t, bob.CanStart(), "only the admin can start")
	assert.False(t, bob.CanJoin(), "already joined")

	carol := NewMachine("carol")
	carol.Replace(r2)
	assert.False(t, carol.CanJoin(), "room is full")
}

func TestMachine_CanJoinOnlyWhileCreated(t *testing.T) {
	r := twoSeatRoom()
	m := NewMachine("bob")
	m.Replace(r)
	assert.True(t, m.CanJoin())

	started := twoSeatRoom()
	started.Status = StatusStarted
	m.Replace(started)
	assert.False(t, m.CanJoin())
}

func TestMachine_NilSnapshotResets(t *testing.T) {
	m := NewMachine("alice")
	m.Replace(twoSeatRoom())
	require.True(t, m.IsAdmin())

	m.Replace(nil)
	assert.False(t, m.IsAdmin())
	assert.False(t, m.IsParticipant())
	assert.Equal(t, StatusCreated, m.Status())
}

func TestValidateResize(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Room)
		user    string
		newSize int
		wantErr error
	}{
		{"admin grows within bounds", nil, "alice", 3, nil},
		{"admin shrinks to min", nil, "alice", 2, nil},
		{"below game min", nil, "alice", 1, ErrSizeOutOfRange},
		{"above game max", nil, "alice", 5, ErrSizeOutOfRange},
		{"non-admin", nil, "bob", 3, ErrNotAdmin},
		{
			"below joined count",
			func(r *Room) {
				r.Participants = append(r.Participants,
					Participant{ID: "bob"}, Participant{ID: "carol"})
				r.Size = 3
			},
			"alice", 2, ErrSizeBelowJoined,
		},
		{
			"wrong status",
			func(r *Room) { r.Status = StatusStarted },
			"alice", 3, ErrWrongStatus,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := twoSeatRoom()
			if tc.mutate != nil {
				tc.mutate(r)
			}
			err := r.ValidateResize(tc.user, tc.newSize)
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestValidateStart(t *testing.T) {
	r := twoSeatRoom()
	assert.ErrorIs(t, r.ValidateStart("alice"), ErrNotFull)
	assert.ErrorIs(t, r.ValidateStart("bob"), ErrNotAdmin)

	r.Participants = append(r.Participants, Participant{ID: "bob"})
	assert.NoError(t, r.ValidateStart("alice"))

	r.Status = StatusStarted
	assert.ErrorIs(t, r.ValidateStart("alice"), ErrWrongStatus)
}

func TestValidateJoin(t *testing.T) {
	r := twoSeatRoom()
	assert.NoError(t, r.ValidateJoin("bob"))
	assert.ErrorIs(t, r.ValidateJoin("alice"), ErrAlreadyJoined)

	r.Participants = append(r.Participants, Participant{ID: "bob"})
	assert.ErrorIs(t, r.ValidateJoin("carol"), ErrRoomFull)
}
