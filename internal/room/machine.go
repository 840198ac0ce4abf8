package room

// Machine holds the locally known room snapshot for one viewer and the
// permissions derived from it. It never mutates the room itself; all writes
// go through the room service and come back as a fresh snapshot via Replace.
type Machine struct {
	viewerID string
	room     *Room

	isAdmin       bool
	isParticipant bool
	canJoin       bool
	canStart      bool
}

func NewMachine(viewerID string) *Machine {
	return &Machine{viewerID: viewerID}
}

// Replace swaps in a whole new snapshot and recomputes every derived flag.
// A nil room resets the machine to "nothing known".
func (m *Machine) Replace(r *Room) {
	m.room = r
	if r == nil {
		m.isAdmin, m.isParticipant, m.canJoin, m.canStart = false, false, false, false
		return
	}
	m.isAdmin = m.viewerID != "" && m.viewerID == r.Admin.ID
	m.isParticipant = m.viewerID != "" && r.HasParticipant(m.viewerID)
	m.canJoin = m.viewerID != "" && r.Status.IsCreated() && !m.isParticipant && !r.IsFull()
	m.canStart = m.isAdmin && r.Status.IsCreated() && len(r.Participants) == r.Size
}

func (m *Machine) Room() *Room          { return m.room }
func (m *Machine) ViewerID() string     { return m.viewerID }
func (m *Machine) IsAdmin() bool        { return m.isAdmin }
func (m *Machine) IsParticipant() bool  { return m.isParticipant }
func (m *Machine) CanJoin() bool        { return m.canJoin }
func (m *Machine) CanStart() bool       { return m.canStart }

// CanResize reports whether a resize to newSize is worth attempting. The
// authority re-validates regardless; this only gates the UI.
func (m *Machine) CanResize(newSize int) bool {
	if m.room == nil {
		return false
	}
	return m.room.ValidateResize(m.viewerID, newSize) == nil
}

// Status returns the known status, or StatusCreated when nothing has been
// fetched yet (a fresh viewer always starts at the setup screen).
func (m *Machine) Status() Status {
	if m.room == nil {
		return StatusCreated
	}
	return m.room.Status
}
