package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/diagnosis/terminfinder/services/appointments/internal/domain"
	"github.com/google/uuid"
)

// MemoryRepository keeps every entity in a flat table keyed by id and
// rebuilds the nested appointment view on read. Transactions work on a copy
// of the tables that replaces the live state only on commit.
type MemoryRepository struct {
	mu    sync.RWMutex
	state memoryState
}

type appointmentRow struct {
	domain.Appointment
	seq int64
}

type suggestedDateRow struct {
	domain.SuggestedDate
	seq int64
}

type participantRow struct {
	domain.Participant
	seq int64
}

type votingRow struct {
	domain.Voting
	seq int64
}

type memoryState struct {
	customers      map[uuid.UUID]domain.Customer
	appointments   map[uuid.UUID]appointmentRow
	suggestedDates map[uuid.UUID]suggestedDateRow
	participants   map[uuid.UUID]participantRow
	votings        map[uuid.UUID]votingRow
	seq            int64
}

func newMemoryState() memoryState {
	return memoryState{
		customers:      map[uuid.UUID]domain.Customer{},
		appointments:   map[uuid.UUID]appointmentRow{},
		suggestedDates: map[uuid.UUID]suggestedDateRow{},
		participants:   map[uuid.UUID]participantRow{},
		votings:        map[uuid.UUID]votingRow{},
	}
}

// Rows are replaced, never mutated in place, so copying the maps is enough.
func (s memoryState) clone() memoryState {
	c := memoryState{
		customers:      make(map[uuid.UUID]domain.Customer, len(s.customers)),
		appointments:   make(map[uuid.UUID]appointmentRow, len(s.appointments)),
		suggestedDates: make(map[uuid.UUID]suggestedDateRow, len(s.suggestedDates)),
		participants:   make(map[uuid.UUID]participantRow, len(s.participants)),
		votings:        make(map[uuid.UUID]votingRow, len(s.votings)),
		seq:            s.seq,
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.appointments {
		c.appointments[k] = v
	}
	for k, v := range s.suggestedDates {
		c.suggestedDates[k] = v
	}
	for k, v := range s.participants {
		c.participants[k] = v
	}
	for k, v := range s.votings {
		c.votings[k] = v
	}
	return c
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{state: newMemoryState()}
}

// AddCustomer provisions a tenant. Customers are managed outside the
// service; this exists for local runs and tests.
func (r *MemoryRepository) AddCustomer(c domain.Customer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.customers[c.ID] = c
}

func (r *MemoryRepository) CustomerExists(_ context.Context, customerID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.state.customers[customerID]
	return ok && c.Active(), nil
}

func (r *MemoryRepository) AppointmentExists(_ context.Context, customerID, appointmentID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.state.visibleAppointment(customerID, appointmentID)
	return ok, nil
}

func (r *MemoryRepository) AppointmentExistsWithAdmin(_ context.Context, customerID, appointmentID, adminID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.state.visibleAppointment(customerID, appointmentID)
	return ok && a.AdminID == adminID, nil
}

func (r *MemoryRepository) AppointmentExistsByAdmin(_ context.Context, customerID, adminID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.state.visibleAppointmentByAdmin(customerID, adminID)
	return ok, nil
}

func (r *MemoryRepository) AppointmentIsStarted(_ context.Context, customerID, appointmentID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.state.visibleAppointment(customerID, appointmentID)
	return ok && a.Status == domain.AppointmentStarted, nil
}

func (r *MemoryRepository) ParticipantExists(_ context.Context, customerID, appointmentID, participantID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.participantExists(customerID, appointmentID, participantID), nil
}

func (r *MemoryRepository) SuggestedDateExists(_ context.Context, customerID, appointmentID, suggestedDateID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.suggestedDateExists(customerID, appointmentID, suggestedDateID), nil
}

func (r *MemoryRepository) GetAppointment(_ context.Context, customerID, appointmentID uuid.UUID) (*domain.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.state.visibleAppointment(customerID, appointmentID)
	if !ok {
		return nil, nil
	}
	return r.state.assemble(row), nil
}

func (r *MemoryRepository) GetAppointmentByAdmin(_ context.Context, customerID, adminID uuid.UUID) (*domain.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.state.visibleAppointmentByAdmin(customerID, adminID)
	if !ok {
		return nil, nil
	}
	return r.state.assemble(row), nil
}

func (r *MemoryRepository) GetAppointmentPassword(_ context.Context, customerID, appointmentID uuid.UUID) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.state.visibleAppointment(customerID, appointmentID)
	if !ok {
		return "", domain.ErrNotFound
	}
	return row.Password, nil
}

func (r *MemoryRepository) GetAppointmentPasswordByAdmin(_ context.Context, customerID, adminID uuid.UUID) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.state.visibleAppointmentByAdmin(customerID, adminID)
	if !ok {
		return "", domain.ErrNotFound
	}
	return row.Password, nil
}

func (r *MemoryRepository) GetStatusByAdmin(_ context.Context, customerID, adminID uuid.UUID) (domain.AppointmentStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.state.visibleAppointmentByAdmin(customerID, adminID)
	if !ok {
		return domain.AppointmentUndefined, domain.ErrNotFound
	}
	return row.Status, nil
}

func (r *MemoryRepository) SetStatusByAdmin(_ context.Context, customerID, adminID uuid.UUID, from, to domain.AppointmentStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.state.visibleAppointmentByAdmin(customerID, adminID)
	if !ok || row.Status != from {
		return false, nil
	}
	row.Status = to
	r.state.appointments[row.ID] = row
	return true, nil
}

func (r *MemoryRepository) CountParticipants(_ context.Context, customerID, appointmentID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, p := range r.state.participants {
		if p.CustomerID == customerID && p.AppointmentID == appointmentID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) CountSuggestedDates(_ context.Context, customerID, appointmentID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.state.suggestedDates {
		if s.CustomerID == customerID && s.AppointmentID == appointmentID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) GetParticipants(_ context.Context, customerID, appointmentID uuid.UUID) ([]domain.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.state.visibleAppointment(customerID, appointmentID); !ok {
		return nil, nil
	}
	return r.state.participantsOf(appointmentID), nil
}

func (r *MemoryRepository) GetSuggestedDates(_ context.Context, customerID, appointmentID uuid.UUID) ([]domain.SuggestedDate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.state.visibleAppointment(customerID, appointmentID); !ok {
		return nil, nil
	}
	return r.state.suggestedDatesOf(appointmentID), nil
}

func (r *MemoryRepository) DeleteParticipant(ctx context.Context, p *domain.Participant) (bool, error) {
	var deleted bool
	err := r.WithTx(ctx, func(tx Tx) error {
		var err error
		deleted, err = tx.DeleteParticipant(ctx, p)
		return err
	})
	return deleted, err
}

func (r *MemoryRepository) DeleteSuggestedDate(ctx context.Context, s *domain.SuggestedDate) (bool, error) {
	var deleted bool
	err := r.WithTx(ctx, func(tx Tx) error {
		var err error
		deleted, err = tx.DeleteSuggestedDate(ctx, s)
		return err
	})
	return deleted, err
}

func (r *MemoryRepository) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{state: r.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.state = tx.state
	return nil
}

type memoryTx struct {
	state memoryState
}

func (t *memoryTx) AppointmentExists(_ context.Context, customerID, appointmentID uuid.UUID) (bool, error) {
	_, ok := t.state.visibleAppointment(customerID, appointmentID)
	return ok, nil
}

func (t *memoryTx) SuggestedDateExists(_ context.Context, customerID, appointmentID, suggestedDateID uuid.UUID) (bool, error) {
	return t.state.suggestedDateExists(customerID, appointmentID, suggestedDateID), nil
}

func (t *memoryTx) ParticipantExists(_ context.Context, customerID, appointmentID, participantID uuid.UUID) (bool, error) {
	return t.state.participantExists(customerID, appointmentID, participantID), nil
}

func (t *memoryTx) ParticipantVotingExists(_ context.Context, customerID, appointmentID, participantID, votingID uuid.UUID) (bool, error) {
	v, ok := t.state.votingIn(customerID, appointmentID, votingID)
	return ok && v.ParticipantID == participantID, nil
}

func (t *memoryTx) SuggestedDateVotingExists(_ context.Context, customerID, appointmentID, suggestedDateID, votingID uuid.UUID) (bool, error) {
	v, ok := t.state.votingIn(customerID, appointmentID, votingID)
	return ok && v.SuggestedDateID == suggestedDateID, nil
}

func (t *memoryTx) VotingFor(_ context.Context, customerID, appointmentID, participantID, suggestedDateID uuid.UUID) (*domain.Voting, error) {
	for _, v := range t.state.votings {
		if v.CustomerID == customerID && v.AppointmentID == appointmentID &&
			v.ParticipantID == participantID && v.SuggestedDateID == suggestedDateID {
			found := v.Voting
			return &found, nil
		}
	}
	return nil, nil
}

func (t *memoryTx) InsertAppointment(_ context.Context, a *domain.Appointment) error {
	row := *a
	row.SuggestedDates, row.Participants = nil, nil
	t.state.appointments[a.ID] = appointmentRow{Appointment: row, seq: t.state.next()}
	return nil
}

func (t *memoryTx) UpdateAppointment(_ context.Context, a *domain.Appointment) error {
	row, ok := t.state.appointments[a.ID]
	if !ok || row.CustomerID != a.CustomerID {
		return nil
	}
	row.CreatorName = a.CreatorName
	row.Subject = a.Subject
	row.Description = a.Description
	row.Place = a.Place
	if a.Password != "" {
		row.Password = a.Password
	}
	t.state.appointments[a.ID] = row
	return nil
}

func (t *memoryTx) InsertSuggestedDate(_ context.Context, s *domain.SuggestedDate) error {
	t.state.suggestedDates[s.ID] = suggestedDateRow{SuggestedDate: flatSuggestedDate(s), seq: t.state.next()}
	return nil
}

func (t *memoryTx) UpdateSuggestedDate(_ context.Context, s *domain.SuggestedDate) error {
	row, ok := t.state.suggestedDates[s.ID]
	if !ok {
		return nil
	}
	row.SuggestedDate = flatSuggestedDate(s)
	t.state.suggestedDates[s.ID] = row
	return nil
}

func (t *memoryTx) InsertParticipant(_ context.Context, p *domain.Participant) error {
	row := *p
	row.Votings = nil
	t.state.participants[p.ID] = participantRow{Participant: row, seq: t.state.next()}
	return nil
}

func (t *memoryTx) UpdateParticipant(_ context.Context, p *domain.Participant) error {
	row, ok := t.state.participants[p.ID]
	if !ok {
		return nil
	}
	row.Name = p.Name
	t.state.participants[p.ID] = row
	return nil
}

func (t *memoryTx) InsertVoting(_ context.Context, v *domain.Voting) error {
	t.state.votings[v.ID] = votingRow{Voting: *v, seq: t.state.next()}
	return nil
}

func (t *memoryTx) UpdateVoting(_ context.Context, v *domain.Voting) error {
	row, ok := t.state.votings[v.ID]
	if !ok {
		return nil
	}
	row.Status = v.Status
	t.state.votings[v.ID] = row
	return nil
}

func (t *memoryTx) DeleteParticipant(_ context.Context, p *domain.Participant) (bool, error) {
	if !t.state.participantExists(p.CustomerID, p.AppointmentID, p.ID) {
		return false, nil
	}
	delete(t.state.participants, p.ID)
	for id, v := range t.state.votings {
		if v.ParticipantID == p.ID {
			delete(t.state.votings, id)
		}
	}
	return true, nil
}

func (t *memoryTx) DeleteSuggestedDate(_ context.Context, s *domain.SuggestedDate) (bool, error) {
	if !t.state.suggestedDateExists(s.CustomerID, s.AppointmentID, s.ID) {
		return false, nil
	}
	delete(t.state.suggestedDates, s.ID)
	return true, nil
}

func (s *memoryState) next() int64 {
	s.seq++
	return s.seq
}

func (s memoryState) visibleAppointment(customerID, appointmentID uuid.UUID) (appointmentRow, bool) {
	a, ok := s.appointments[appointmentID]
	if !ok || a.CustomerID != customerID || !a.Status.Visible() {
		return appointmentRow{}, false
	}
	return a, true
}

func (s memoryState) visibleAppointmentByAdmin(customerID, adminID uuid.UUID) (appointmentRow, bool) {
	for _, a := range s.appointments {
		if a.AdminID == adminID && a.CustomerID == customerID && a.Status.Visible() {
			return a, true
		}
	}
	return appointmentRow{}, false
}

func (s memoryState) participantExists(customerID, appointmentID, participantID uuid.UUID) bool {
	p, ok := s.participants[participantID]
	if !ok || p.CustomerID != customerID || p.AppointmentID != appointmentID {
		return false
	}
	_, visible := s.visibleAppointment(customerID, appointmentID)
	return visible
}

func (s memoryState) votingIn(customerID, appointmentID, votingID uuid.UUID) (votingRow, bool) {
	v, ok := s.votings[votingID]
	if !ok || v.CustomerID != customerID || v.AppointmentID != appointmentID {
		return votingRow{}, false
	}
	_, visible := s.visibleAppointment(customerID, appointmentID)
	return v, visible
}

func (s memoryState) suggestedDateExists(customerID, appointmentID, suggestedDateID uuid.UUID) bool {
	d, ok := s.suggestedDates[suggestedDateID]
	if !ok || d.CustomerID != customerID || d.AppointmentID != appointmentID {
		return false
	}
	_, visible := s.visibleAppointment(customerID, appointmentID)
	return visible
}

func (s memoryState) assemble(row appointmentRow) *domain.Appointment {
	a := row.Appointment
	a.SuggestedDates = s.suggestedDatesOf(a.ID)
	a.Participants = s.participantsOf(a.ID)
	return &a
}

func (s memoryState) suggestedDatesOf(appointmentID uuid.UUID) []domain.SuggestedDate {
	rows := make([]suggestedDateRow, 0)
	for _, d := range s.suggestedDates {
		if d.AppointmentID == appointmentID {
			rows = append(rows, d)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	out := make([]domain.SuggestedDate, 0, len(rows))
	for _, row := range rows {
		d := row.SuggestedDate
		d.Votings = s.votingsWhere(func(v votingRow) bool { return v.SuggestedDateID == d.ID })
		out = append(out, d)
	}
	return out
}

func (s memoryState) participantsOf(appointmentID uuid.UUID) []domain.Participant {
	rows := make([]participantRow, 0)
	for _, p := range s.participants {
		if p.AppointmentID == appointmentID {
			rows = append(rows, p)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	out := make([]domain.Participant, 0, len(rows))
	for _, row := range rows {
		p := row.Participant
		p.Votings = s.votingsWhere(func(v votingRow) bool { return v.ParticipantID == p.ID })
		out = append(out, p)
	}
	return out
}

func (s memoryState) votingsWhere(match func(votingRow) bool) []domain.Voting {
	rows := make([]votingRow, 0)
	for _, v := range s.votings {
		if match(v) {
			rows = append(rows, v)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	out := make([]domain.Voting, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Voting)
	}
	return out
}

func flatSuggestedDate(s *domain.SuggestedDate) domain.SuggestedDate {
	row := *s
	row.Votings = nil
	row.StartTime = copyTime(s.StartTime)
	row.EndTime = copyTime(s.EndTime)
	return row
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

var _ Repository = (*MemoryRepository)(nil)
