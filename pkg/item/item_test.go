package item

import (
	"errors"
	"testing"
)

func TestNewItemDefaults(t *testing.T) {
	wi := New("Fix login bug", "Users cannot log in", CategoryBug)

	if wi.ID == "" {
		t.Error("expected generated id")
	}
	if wi.Status != StatusPending {
		t.Errorf("expected pending status, got %s", wi.Status)
	}
	if wi.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		name string
		path []Status
		ok   bool
	}{
		{"happy path complete", []Status{StatusProcessing, StatusCompleted}, true},
		{"happy path failed", []Status{StatusProcessing, StatusFailed}, true},
		{"single requeue", []Status{StatusProcessing, StatusPending, StatusProcessing, StatusCompleted}, true},
		{"pending to completed skips processing", []Status{StatusCompleted}, false},
		{"pending to failed skips processing", []Status{StatusFailed}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wi := New("title", "desc", CategoryTask)
			var err error
			for _, to := range tt.path {
				if err = wi.Transition(to); err != nil {
					break
				}
			}
			if tt.ok && err != nil {
				t.Errorf("unexpected transition error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected transition error, got nil")
			}
		})
	}
}

func TestSecondRequeueRejected(t *testing.T) {
	wi := New("title", "desc", CategoryTask)

	steps := []Status{StatusProcessing, StatusPending, StatusProcessing}
	for _, to := range steps {
		if err := wi.Transition(to); err != nil {
			t.Fatalf("setup transition to %s failed: %v", to, err)
		}
	}

	err := wi.Transition(StatusPending)
	if err == nil {
		t.Fatal("expected second Processing -> Pending to be rejected")
	}

	var transitionErr *TransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("expected *TransitionError, got %T", err)
	}
	if transitionErr.From != StatusProcessing || transitionErr.To != StatusPending {
		t.Errorf("unexpected transition error contents: %+v", transitionErr)
	}
}

func TestRequeueClearsAssignment(t *testing.T) {
	wi := New("title", "desc", CategoryTask)
	if err := wi.Transition(StatusProcessing); err != nil {
		t.Fatal(err)
	}
	wi.AssignedTo = "persona-1"

	if err := wi.Transition(StatusPending); err != nil {
		t.Fatal(err)
	}
	if wi.AssignedTo != "" {
		t.Errorf("expected assignment cleared on requeue, got %q", wi.AssignedTo)
	}
}

func TestTerminalStatesAreFinal(t *testing.T) {
	for _, terminal := range []Status{StatusCompleted, StatusFailed} {
		wi := New("title", "desc", CategoryTask)
		if err := wi.Transition(StatusProcessing); err != nil {
			t.Fatal(err)
		}
		if err := wi.Transition(terminal); err != nil {
			t.Fatal(err)
		}

		for _, to := range ValidStatuses() {
			if err := wi.Transition(to); err == nil {
				t.Errorf("expected %s -> %s to be rejected", terminal, to)
			}
		}
	}
}

func TestIsValidStatus(t *testing.T) {
	if !IsValidStatus(StatusPending) {
		t.Error("pending should be valid")
	}
	if IsValidStatus(Status("bogus")) {
		t.Error("bogus should be invalid")
	}
}
