package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/diagnosis/terminfinder/services/appointments/internal/domain"
	"github.com/diagnosis/terminfinder/services/appointments/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testParams = &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.subjects...)
}

type fixture struct {
	svc        AppointmentService
	repo       *repository.MemoryRepository
	customerID uuid.UUID
	events     *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := repository.NewMemoryRepository()
	customerID := uuid.New()
	repo.AddCustomer(domain.Customer{ID: customerID, Name: "test", Status: domain.CustomerStarted})
	pub := &recordingPublisher{}
	return &fixture{
		svc:        NewAppointmentService(repo, NewPasswordGuard(repo, testParams), pub),
		repo:       repo,
		customerID: customerID,
		events:     pub,
	}
}

func day(d int) domain.SuggestedDate {
	start := time.Date(2026, time.November, d, 0, 0, 0, 0, time.UTC)
	return domain.SuggestedDate{StartDate: start, EndDate: start}
}

func (f *fixture) create(t *testing.T, a domain.Appointment) *domain.Appointment {
	t.Helper()
	saved, err := f.svc.SaveAppointment(context.Background(), f.customerID, &a)
	require.NoError(t, err, "create appointment")
	require.NotNil(t, saved, "created appointment")
	return saved
}

func (f *fixture) read(t *testing.T, adminID uuid.UUID) *domain.Appointment {
	t.Helper()
	a, err := f.svc.GetAppointmentByAdmin(context.Background(), f.customerID, adminID)
	require.NoError(t, err)
	require.NotNil(t, a, "appointment should be visible")
	return a
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestSaveAppointment_Create(t *testing.T) {
	f := newFixture(t)

	a := f.create(t, domain.Appointment{
		CreatorName:    "Alice",
		Subject:        "Team dinner",
		SuggestedDates: []domain.SuggestedDate{day(1), day(2)},
	})

	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.NotEqual(t, uuid.Nil, a.AdminID)
	assert.NotEqual(t, a.ID, a.AdminID)
	assert.Equal(t, f.customerID, a.CustomerID)
	assert.Equal(t, domain.AppointmentStarted, a.Status)
	require.Len(t, a.SuggestedDates, 2)
	for _, d := range a.SuggestedDates {
		assert.NotEqual(t, uuid.Nil, d.ID)
		assert.Equal(t, a.ID, d.AppointmentID)
		assert.Equal(t, f.customerID, d.CustomerID)
	}
	assert.Equal(t, []string{"appointment.created"}, f.events.published())
}

func TestSaveAppointment_CreateIgnoresClientStatus(t *testing.T) {
	f := newFixture(t)

	a := f.create(t, domain.Appointment{
		Subject:        "Status from client",
		Status:         domain.AppointmentDeleted,
		SuggestedDates: []domain.SuggestedDate{day(1)},
	})

	assert.Equal(t, domain.AppointmentStarted, a.Status)
}

func TestSaveAppointment_IdempotentRepost(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, domain.Appointment{
		Subject:        "Repost",
		SuggestedDates: []domain.SuggestedDate{day(1), day(2)},
	})

	// Add a participant voting on both dates
	_, err := f.svc.SaveParticipants(context.Background(), f.customerID, created.ID, []domain.Participant{{
		Name: "Bob",
		Votings: []domain.Voting{
			{SuggestedDateID: created.SuggestedDates[0].ID, Status: domain.VoteAccepted},
			{SuggestedDateID: created.SuggestedDates[1].ID, Status: domain.VoteDeclined},
		},
	}})
	require.NoError(t, err)

	before := f.read(t, created.AdminID)
	want := mustJSON(t, before)

	_, err = f.svc.SaveAppointment(context.Background(), f.customerID, before)
	require.NoError(t, err)

	assert.Equal(t, want, mustJSON(t, f.read(t, created.AdminID)))
}

func TestSaveAppointment_SelectiveOverwrite(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, domain.Appointment{
		Subject:        "Before",
		Place:          "Office",
		SuggestedDates: []domain.SuggestedDate{day(1), day(2)},
	})

	edit := f.read(t, created.AdminID)
	edit.Subject = "After"
	edit.SuggestedDates[1].Description = "evening"
	_, err := f.svc.SaveAppointment(context.Background(), f.customerID, edit)
	require.NoError(t, err)

	got := f.read(t, created.AdminID)
	assert.Equal(t, "After", got.Subject)
	assert.Equal(t, "Office", got.Place)
	require.Len(t, got.SuggestedDates, 2)
	assert.Equal(t, "", got.SuggestedDates[0].Description)
	assert.Equal(t, "evening", got.SuggestedDates[1].Description)
	assert.Equal(t, created.SuggestedDates[0].ID, got.SuggestedDates[0].ID)
}

func TestSaveAppointment_NeverDeletesOmittedChildren(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, domain.Appointment{
		Subject:        "Keep",
		SuggestedDates: []domain.SuggestedDate{day(1), day(2)},
		Participants:   []domain.Participant{{Name: "Carol"}},
	})

	edit := f.read(t, created.AdminID)
	edit.SuggestedDates = edit.SuggestedDates[:1]
	edit.Participants = nil
	_, err := f.svc.SaveAppointment(context.Background(), f.customerID, edit)
	require.NoError(t, err)

	got := f.read(t, created.AdminID)
	assert.Len(t, got.SuggestedDates, 2)
	assert.Len(t, got.Participants, 1)
}

func TestSaveAppointment_IgnoresUnknownChildIDs(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, domain.Appointment{
		Subject:        "Unknown ids",
		SuggestedDates: []domain.SuggestedDate{day(1)},
	})

	stray := day(5)
	stray.ID = uuid.New()
	edit := f.read(t, created.AdminID)
	edit.SuggestedDates = append(edit.SuggestedDates, stray)
	edit.Participants = []domain.Participant{{ID: uuid.New(), Name: "Ghost"}}
	_, err := f.svc.SaveAppointment(context.Background(), f.customerID, edit)
	require.NoError(t, err)

	got := f.read(t, created.AdminID)
	assert.Len(t, got.SuggestedDates, 1)
	assert.Empty(t, got.Participants)
}

func TestSaveAppointment_IgnoresChildrenOfOtherAppointments(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, domain.Appointment{Subject: "First", SuggestedDates: []domain.SuggestedDate{day(1)}})
	second := f.create(t, domain.Appointment{Subject: "Second", SuggestedDates: []domain.SuggestedDate{day(2)}})

	foreign := first.SuggestedDates[0]
	foreign.Description = "hijacked"
	edit := f.read(t, second.AdminID)
	edit.SuggestedDates = append(edit.SuggestedDates, foreign)
	_, err := f.svc.SaveAppointment(context.Background(), f.customerID, edit)
	require.NoError(t, err)

	assert.Equal(t, "", f.read(t, first.AdminID).SuggestedDates[0].Description)
	assert.Len(t, f.read(t, second.AdminID).SuggestedDates, 1)
}

func TestSaveAppointment_UnknownAppointment(t *testing.T) {
	f := newFixture(t)

	saved, err := f.svc.SaveAppointment(context.Background(), f.customerID, &domain.Appointment{
		ID:             uuid.New(),
		Subject:        "Nobody",
		SuggestedDates: []domain.SuggestedDate{day(1)},
	})

	require.NoError(t, err)
	assert.Nil(t, saved)
	assert.Empty(t, f.events.published())
}

func TestSaveAppointment_Limits(t *testing.T) {
	tests := []struct {
		name  string
		input domain.Appointment
		limit domain.Limit
	}{
		{
			name:  "no suggested dates",
			input: domain.Appointment{Subject: "Empty"},
			limit: domain.LimitMinSuggestedDates,
		},
		{
			name:  "too many suggested dates",
			input: domain.Appointment{Subject: "Busy", SuggestedDates: make([]domain.SuggestedDate, domain.MaxSuggestedDates+1)},
			limit: domain.LimitMaxSuggestedDates,
		},
		{
			name: "too many participants",
			input: domain.Appointment{
				Subject:        "Crowd",
				SuggestedDates: []domain.SuggestedDate{day(1)},
				Participants:   make([]domain.Participant, domain.MaxParticipants+1),
			},
			limit: domain.LimitMaxParticipants,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			a := tt.input

			saved, err := f.svc.SaveAppointment(context.Background(), f.customerID, &a)

			assert.Nil(t, saved)
			var limitErr *domain.LimitError
			require.True(t, errors.As(err, &limitErr), "expected limit error, got %v", err)
			assert.Equal(t, tt.limit, limitErr.Limit)
			assert.True(t, errors.Is(err, domain.ErrLimitExceeded))
		})
	}
}

func TestSaveAppointment_LimitCountsPersistedRows(t *testing.T) {
	f := newFixture(t)
	dates := make([]domain.SuggestedDate, domain.MaxSuggestedDates)
	created := f.create(t, domain.Appointment{Subject: "Full", SuggestedDates: dates})

	edit := f.read(t, created.AdminID)
	edit.SuggestedDates = append(edit.SuggestedDates, day(1))
	_, err := f.svc.SaveAppointment(context.Background(), f.customerID, edit)

	var limitErr *domain.LimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, domain.LimitMaxSuggestedDates, limitErr.Limit)

	// Resubmitting the persisted rows alone adds nothing
	edit = f.read(t, created.AdminID)
	_, err = f.svc.SaveAppointment(context.Background(), f.customerID, edit)
	assert.NoError(t, err)
}

func TestPasswordNeverLeaves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.create(t, domain.Appointment{
		Subject:        "Secret",
		Password:       "hunter2",
		SuggestedDates: []domain.SuggestedDate{day(1)},
	})
	assert.Empty(t, created.Password, "create result")

	read, err := f.svc.GetAppointment(ctx, f.customerID, created.ID)
	require.NoError(t, err)
	assert.Empty(t, read.Password, "read by id")
	assert.Empty(t, f.read(t, created.AdminID).Password, "read by admin")

	paused, err := f.svc.SetStatus(ctx, f.customerID, created.AdminID, domain.AppointmentPaused)
	require.NoError(t, err)
	require.NotNil(t, paused)
	assert.Empty(t, paused.Password, "status result")

	protected, err := f.svc.IsProtected(ctx, f.customerID, created.ID)
	require.NoError(t, err)
	assert.True(t, protected)

	hash, err := f.repo.GetAppointmentPassword(ctx, f.customerID, created.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash, "password must be stored hashed")
}

func TestVerifySecret(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, domain.Appointment{
		Subject:        "Secret",
		Password:       "hunter2",
		SuggestedDates: []domain.SuggestedDate{day(1)},
	})

	ok, err := f.svc.VerifySecret(ctx, f.customerID, created.ID, "hunter2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.VerifySecret(ctx, f.customerID, created.ID, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.VerifySecretByAdmin(ctx, f.customerID, created.AdminID, "hunter2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifySecret_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	open := f.create(t, domain.Appointment{Subject: "Open", SuggestedDates: []domain.SuggestedDate{day(1)}})

	_, err := f.svc.VerifySecret(ctx, f.customerID, open.ID, "anything")
	assert.ErrorIs(t, err, domain.ErrNotProtected)

	_, err = f.svc.VerifySecret(ctx, f.customerID, uuid.New(), "anything")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.IsProtected(ctx, f.customerID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSaveAppointment_UpdateKeepsPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, domain.Appointment{
		Subject:        "Secret",
		Password:       "hunter2",
		SuggestedDates: []domain.SuggestedDate{day(1)},
	})

	edit := f.read(t, created.AdminID)
	edit.Subject = "Still secret"
	_, err := f.svc.SaveAppointment(ctx, f.customerID, edit)
	require.NoError(t, err)

	ok, err := f.svc.VerifySecret(ctx, f.customerID, created.ID, "hunter2")
	require.NoError(t, err)
	assert.True(t, ok)

	edit = f.read(t, created.AdminID)
	edit.Password = "changed"
	_, err = f.svc.SaveAppointment(ctx, f.customerID, edit)
	require.NoError(t, err)

	ok, err = f.svc.VerifySecret(ctx, f.customerID, created.ID, "changed")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSetStatus(t *testing.T) {
	tests := []struct {
		name   string
		from   domain.AppointmentStatus
		to     domain.AppointmentStatus
		wantOK bool
	}{
		{"started to paused", domain.AppointmentStarted, domain.AppointmentPaused, true},
		{"paused to started", domain.AppointmentPaused, domain.AppointmentStarted, true},
		{"started to started", domain.AppointmentStarted, domain.AppointmentStarted, false},
		{"paused to paused", domain.AppointmentPaused, domain.AppointmentPaused, false},
		{"started to deleted", domain.AppointmentStarted, domain.AppointmentDeleted, false},
		{"paused to deleted", domain.AppointmentPaused, domain.AppointmentDeleted, false},
		{"started to undefined", domain.AppointmentStarted, domain.AppointmentUndefined, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			created := f.create(t, domain.Appointment{Subject: "Status", SuggestedDates: []domain.SuggestedDate{day(1)}})
			if tt.from == domain.AppointmentPaused {
				_, err := f.repo.SetStatusByAdmin(ctx, f.customerID, created.AdminID, domain.AppointmentStarted, domain.AppointmentPaused)
				require.NoError(t, err)
			}

			got, err := f.svc.SetStatus(ctx, f.customerID, created.AdminID, tt.to)

			require.NoError(t, err)
			if !tt.wantOK {
				assert.Nil(t, got)
				assert.Equal(t, tt.from, f.read(t, created.AdminID).Status, "status must not change")
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.to, got.Status)
			assert.Equal(t, tt.to, f.read(t, created.AdminID).Status)
		})
	}
}

// staleStatusRepo answers status reads with a value another request has
// already moved past.
type staleStatusRepo struct {
	*repository.MemoryRepository
	status domain.AppointmentStatus
}

func (r staleStatusRepo) GetStatusByAdmin(context.Context, uuid.UUID, uuid.UUID) (domain.AppointmentStatus, error) {
	return r.status, nil
}

func TestSetStatus_LosesRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, domain.Appointment{Subject: "Race", SuggestedDates: []domain.SuggestedDate{day(1)}})

	got, err := f.svc.SetStatus(ctx, f.customerID, created.AdminID, domain.AppointmentPaused)
	require.NoError(t, err)
	require.NotNil(t, got)

	stale := staleStatusRepo{MemoryRepository: f.repo, status: domain.AppointmentStarted}
	svc := NewAppointmentService(stale, NewPasswordGuard(f.repo, testParams), f.events)
	got, err = svc.SetStatus(ctx, f.customerID, created.AdminID, domain.AppointmentPaused)

	require.NoError(t, err)
	assert.Nil(t, got, "second pause must conflict")
	assert.Equal(t, domain.AppointmentPaused, f.read(t, created.AdminID).Status)
}

func TestSetStatus_UnknownAdmin(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.SetStatus(context.Background(), f.customerID, uuid.New(), domain.AppointmentPaused)

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeletedAppointmentIsInvisible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, domain.Appointment{Subject: "Gone", SuggestedDates: []domain.SuggestedDate{day(1)}})
	_, err := f.repo.SetStatusByAdmin(ctx, f.customerID, created.AdminID, domain.AppointmentStarted, domain.AppointmentDeleted)
	require.NoError(t, err)

	a, err := f.svc.GetAppointment(ctx, f.customerID, created.ID)
	require.NoError(t, err)
	assert.Nil(t, a)

	exists, err := f.svc.AppointmentExists(ctx, f.customerID, created.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	saved, err := f.svc.SaveSuggestedDates(ctx, f.customerID, created.ID, []domain.SuggestedDate{day(3)})
	require.NoError(t, err)
	assert.Nil(t, saved)

	got, err := f.svc.SetStatus(ctx, f.customerID, created.AdminID, domain.AppointmentStarted)
	require.NoError(t, err)
	assert.Nil(t, got, "deleted appointments cannot be revived")
}

func TestSaveParticipants_Paused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, domain.Appointment{Subject: "Paused", SuggestedDates: []domain.SuggestedDate{day(1)}})
	_, err := f.svc.SetStatus(ctx, f.customerID, created.AdminID, domain.AppointmentPaused)
	require.NoError(t, err)

	saved, err := f.svc.SaveParticipants(ctx, f.customerID, created.ID, []domain.Participant{{Name: "Late"}})

	assert.ErrorIs(t, err, domain.ErrPaused)
	assert.Nil(t, saved)
}

func TestSaveParticipants_DropsUnresolvedVotings(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, domain.Appointment{Subject: "Votes", SuggestedDates: []domain.SuggestedDate{day(1)}})

	saved, err := f.svc.SaveParticipants(context.Background(), f.customerID, created.ID, []domain.Participant{{
		Name: "Dave",
		Votings: []domain.Voting{
			{SuggestedDateID: created.SuggestedDates[0].ID, Status: domain.VoteAccepted},
			{SuggestedDateID: uuid.New(), Status: domain.VoteAccepted},
		},
	}})

	require.NoError(t, err)
	require.Len(t, saved, 1)
	require.Len(t, saved[0].Votings, 1)
	assert.Equal(t, created.SuggestedDates[0].ID, saved[0].Votings[0].SuggestedDateID)
	assert.Equal(t, saved[0].ID, saved[0].Votings[0].ParticipantID)
}

func TestSaveAppointment_DedupesVotingsSubmittedTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, domain.Appointment{
		Subject:        "Twice",
		SuggestedDates: []domain.SuggestedDate{day(1)},
		Participants:   []domain.Participant{{Name: "Eve"}},
	})
	dateID, participantID := created.SuggestedDates[0].ID, created.Participants[0].ID

	edit := f.read(t, created.AdminID)
	edit.SuggestedDates[0].Votings = []domain.Voting{{ParticipantID: participantID, Status: domain.VoteAccepted}}
	edit.Participants[0].Votings = []domain.Voting{{SuggestedDateID: dateID, Status: domain.VoteAccepted}}
	_, err := f.svc.SaveAppointment(ctx, f.customerID, edit)
	require.NoError(t, err)

	got := f.read(t, created.AdminID)
	assert.Len(t, got.Participants[0].Votings, 1)
	assert.Len(t, got.SuggestedDates[0].Votings, 1)
}

func TestSaveParticipants_UpdatesVotingStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, domain.Appointment{Subject: "Change vote", SuggestedDates: []domain.SuggestedDate{day(1)}})

	saved, err := f.svc.SaveParticipants(ctx, f.customerID, created.ID, []domain.Participant{{
		Name:    "Frank",
		Votings: []domain.Voting{{SuggestedDateID: created.SuggestedDates[0].ID, Status: domain.VoteAccepted}},
	}})
	require.NoError(t, err)

	saved[0].Votings[0].Status = domain.VoteQuestionable
	saved, err = f.svc.SaveParticipants(ctx, f.customerID, created.ID, saved)
	require.NoError(t, err)

	require.Len(t, saved[0].Votings, 1)
	assert.Equal(t, domain.VoteQuestionable, saved[0].Votings[0].Status)
}

func TestSaveParticipants_IgnoresVotingOfAnotherParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, domain.Appointment{Subject: "Ownership", SuggestedDates: []domain.SuggestedDate{day(1)}})
	dateID := created.SuggestedDates[0].ID

	saved, err := f.svc.SaveParticipants(ctx, f.customerID, created.ID, []domain.Participant{
		{Name: "Alice", Votings: []domain.Voting{{SuggestedDateID: dateID, Status: domain.VoteAccepted}}},
		{Name: "Bob"},
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)
	aliceVote := saved[0].Votings[0]

	bob := saved[1]
	bob.Votings = []domain.Voting{{ID: aliceVote.ID, SuggestedDateID: dateID, Status: domain.VoteDeclined}}
	_, err = f.svc.SaveParticipants(ctx, f.customerID, created.ID, []domain.Participant{bob})
	require.NoError(t, err)

	got := f.read(t, created.AdminID)
	require.Len(t, got.Participants, 2)
	require.Len(t, got.Participants[0].Votings, 1)
	assert.Equal(t, domain.VoteAccepted, got.Participants[0].Votings[0].Status, "alice's vote must not change")
	assert.Empty(t, got.Participants[1].Votings)
}

func TestSaveAppointment_IgnoresVotingMovedToAnotherDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, domain.Appointment{
		Subject:        "Other date",
		SuggestedDates: []domain.SuggestedDate{day(1), day(2)},
		Participants:   []domain.Participant{{Name: "Cleo"}},
	})
	_, err := f.svc.SaveParticipants(ctx, f.customerID, created.ID, []domain.Participant{{
		ID:      created.Participants[0].ID,
		Name:    "Cleo",
		Votings: []domain.Voting{{SuggestedDateID: created.SuggestedDates[0].ID, Status: domain.VoteAccepted}},
	}})
	require.NoError(t, err)

	edit := f.read(t, created.AdminID)
	vote := edit.SuggestedDates[0].Votings[0]
	vote.Status = domain.VoteDeclined
	edit.SuggestedDates[0].Votings = nil
	edit.SuggestedDates[1].Votings = []domain.Voting{vote}
	edit.Participants[0].Votings = nil
	_, err = f.svc.SaveAppointment(ctx, f.customerID, edit)
	require.NoError(t, err)

	got := f.read(t, created.AdminID)
	require.Len(t, got.SuggestedDates[0].Votings, 1)
	assert.Equal(t, domain.VoteAccepted, got.SuggestedDates[0].Votings[0].Status)
	assert.Empty(t, got.SuggestedDates[1].Votings)
}

func TestSaveParticipants_NewVotingForVotedDateUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, domain.Appointment{Subject: "Revote", SuggestedDates: []domain.SuggestedDate{day(1)}})
	dateID := created.SuggestedDates[0].ID

	saved, err := f.svc.SaveParticipants(ctx, f.customerID, created.ID, []domain.Participant{{
		Name:    "Alice",
		Votings: []domain.Voting{{SuggestedDateID: dateID, Status: domain.VoteAccepted}},
	}})
	require.NoError(t, err)
	first := saved[0].Votings[0].ID

	for _, status := range []domain.VotingStatus{domain.VoteDeclined, domain.VoteQuestionable} {
		alice := saved[0]
		alice.Votings = []domain.Voting{{SuggestedDateID: dateID, Status: status}}
		saved, err = f.svc.SaveParticipants(ctx, f.customerID, created.ID, []domain.Participant{alice})
		require.NoError(t, err)
	}

	require.Len(t, saved[0].Votings, 1, "one voting per participant and date")
	assert.Equal(t, first, saved[0].Votings[0].ID)
	assert.Equal(t, domain.VoteQuestionable, saved[0].Votings[0].Status)
}

func TestDeleteParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, domain.Appointment{Subject: "Leave", SuggestedDates: []domain.SuggestedDate{day(1)}})
	saved, err := f.svc.SaveParticipants(ctx, f.customerID, created.ID, []domain.Participant{{
		Name:    "Gina",
		Votings: []domain.Voting{{SuggestedDateID: created.SuggestedDates[0].ID, Status: domain.VoteAccepted}},
	}})
	require.NoError(t, err)

	p := &domain.Participant{ID: saved[0].ID, CustomerID: f.customerID, AppointmentID: created.ID}
	deleted, err := f.svc.DeleteParticipant(ctx, p)
	require.NoError(t, err)
	assert.True(t, deleted)

	got := f.read(t, created.AdminID)
	assert.Empty(t, got.Participants)
	assert.Empty(t, got.SuggestedDates[0].Votings, "votings go with their participant")

	deleted, err = f.svc.DeleteParticipant(ctx, p)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDeleteSuggestedDates_Floor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, domain.Appointment{Subject: "Floor", SuggestedDates: []domain.SuggestedDate{day(1), day(2)}})
	both := []domain.SuggestedDate{{ID: created.SuggestedDates[0].ID}, {ID: created.SuggestedDates[1].ID}}

	n, err := f.svc.DeleteSuggestedDates(ctx, f.customerID, created.ID, both)
	var limitErr *domain.LimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, domain.LimitMinSuggestedDates, limitErr.Limit)
	assert.Zero(t, n)
	assert.Len(t, f.read(t, created.AdminID).SuggestedDates, 2)

	n, err = f.svc.DeleteSuggestedDates(ctx, f.customerID, created.ID, both[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, f.read(t, created.AdminID).SuggestedDates, 1)
}

func TestDeleteSuggestedDates_RepeatedID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, domain.Appointment{Subject: "Twice", SuggestedDates: []domain.SuggestedDate{day(1), day(2)}})
	first := domain.SuggestedDate{ID: created.SuggestedDates[0].ID}

	n, err := f.svc.DeleteSuggestedDates(ctx, f.customerID, created.ID, []domain.SuggestedDate{first, first})

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got := f.read(t, created.AdminID)
	require.Len(t, got.SuggestedDates, 1)
	assert.Equal(t, created.SuggestedDates[1].ID, got.SuggestedDates[0].ID)
}

func TestSaveSuggestedDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, domain.Appointment{Subject: "More dates", SuggestedDates: []domain.SuggestedDate{day(1)}})

	edit := created.SuggestedDates[0]
	edit.Description = "morning"
	saved, err := f.svc.SaveSuggestedDates(ctx, f.customerID, created.ID, []domain.SuggestedDate{edit, day(2)})

	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, created.SuggestedDates[0].ID, saved[0].ID)
	assert.Equal(t, "morning", saved[0].Description)
	assert.NotEqual(t, uuid.Nil, saved[1].ID)
	assert.Contains(t, f.events.published(), "appointment.suggested_dates.changed")
}

// Walks the lifecycle of one poll from creation through deleting a date
// while paused.
func TestAppointmentLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Create with one suggested date
	a := f.create(t, domain.Appointment{
		CreatorName:    "Alice",
		Subject:        "Lunch",
		SuggestedDates: []domain.SuggestedDate{day(1)},
	})
	require.Len(t, a.SuggestedDates, 1)
	dateID := a.SuggestedDates[0].ID

	// Vote
	participants, err := f.svc.SaveParticipants(ctx, f.customerID, a.ID, []domain.Participant{{
		Name:    "Bob",
		Votings: []domain.Voting{{SuggestedDateID: dateID, Status: domain.VoteAccepted}},
	}})
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.NotEqual(t, uuid.Nil, participants[0].ID)
	require.Len(t, participants[0].Votings, 1)
	assert.NotEqual(t, uuid.Nil, participants[0].Votings[0].ID)

	// Pause, twice
	paused, err := f.svc.SetStatus(ctx, f.customerID, a.AdminID, domain.AppointmentPaused)
	require.NoError(t, err)
	require.NotNil(t, paused)
	assert.Equal(t, domain.AppointmentPaused, paused.Status)

	again, err := f.svc.SetStatus(ctx, f.customerID, a.AdminID, domain.AppointmentPaused)
	require.NoError(t, err)
	assert.Nil(t, again)

	// Delete the only date
	deleted, err := f.svc.DeleteSuggestedDate(ctx, &domain.SuggestedDate{ID: dateID, CustomerID: f.customerID, AppointmentID: a.ID})
	require.NoError(t, err)
	assert.True(t, deleted)

	got := f.read(t, a.AdminID)
	assert.Empty(t, got.SuggestedDates)
	require.Len(t, got.Participants, 1)
	assert.Equal(t, participants[0].ID, got.Participants[0].ID)
	require.Len(t, got.Participants[0].Votings, 1)
	assert.Equal(t, participants[0].Votings[0].ID, got.Participants[0].Votings[0].ID)

	assert.Equal(t, []string{
		"appointment.created",
		"appointment.participants.changed",
		"appointment.status_changed",
		"appointment.suggested_dates.changed",
	}, f.events.published())
}
