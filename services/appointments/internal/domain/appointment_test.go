package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseAppointmentStatus(t *testing.T) {
	tests := map[string]AppointmentStatus{
		"started":  AppointmentStarted,
		" Paused ": AppointmentPaused,
		"DELETED":  AppointmentDeleted,
		"archived": AppointmentUndefined,
		"":         AppointmentUndefined,
	}
	for in, want := range tests {
		if got := ParseAppointmentStatus(in); got != want {
			t.Errorf("ParseAppointmentStatus(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestCanTransitionTo(t *testing.T) {
	all := []AppointmentStatus{AppointmentUndefined, AppointmentStarted, AppointmentPaused, AppointmentDeleted}
	allowed := map[[2]AppointmentStatus]bool{
		{AppointmentStarted, AppointmentPaused}: true,
		{AppointmentPaused, AppointmentStarted}: true,
	}
	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]AppointmentStatus{from, to}]
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestVotingStatusJSON(t *testing.T) {
	var v Voting
	if err := json.Unmarshal([]byte(`{"status":"Questionable"}`), &v); err != nil {
		t.Fatal(err)
	}
	if v.Status != VoteQuestionable {
		t.Errorf("got %s", v.Status)
	}
	if err := json.Unmarshal([]byte(`{"status":"maybe"}`), &v); err != nil {
		t.Fatal(err)
	}
	if v.Status != VoteUndefined {
		t.Errorf("unknown status should be undefined, got %s", v.Status)
	}
}

func TestLimitError(t *testing.T) {
	var err error = &LimitError{Limit: LimitMaxParticipants}
	if !errors.Is(err, ErrLimitExceeded) {
		t.Errorf("LimitError must match ErrLimitExceeded")
	}
	if err.Error() != "limit exceeded: max_participants" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestPasswordHelpers(t *testing.T) {
	a := &Appointment{Password: "hash"}
	if !a.IsProtected() {
		t.Errorf("expected protected")
	}
	a.ClearPassword()
	if a.IsProtected() {
		t.Errorf("expected password to be cleared")
	}
	var missing *Appointment
	missing.ClearPassword()
	if missing.IsProtected() {
		t.Errorf("nil appointment is not protected")
	}
}
