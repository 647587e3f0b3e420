package systemd

import (
	"errors"
	"testing"
)

func TestNotifierStates(t *testing.T) {
	var sent []string
	n := NewNotifier(nil)
	n.send = func(state string) (bool, error) {
		sent = append(sent, state)
		return true, nil
	}

	n.Ready()
	n.Status("%d live streams", 3)
	n.Stopping()

	want := []string{"READY=1", "STATUS=3 live streams", "STOPPING=1"}
	if len(sent) != len(want) {
		t.Fatalf("sent = %v", sent)
	}
	for i := range want {
		if sent[i] != want[i] {
			t.Errorf("sent[%d] = %q, want %q", i, sent[i], want[i])
		}
	}
}

func TestNotifierSwallowsErrors(t *testing.T) {
	n := NewNotifier(nil)
	n.send = func(string) (bool, error) { return false, errors.New("socket gone") }

	// Must not panic or block.
	n.Ready()
}

func TestNotifierWithoutSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	NewNotifier(nil).Ready()
}
