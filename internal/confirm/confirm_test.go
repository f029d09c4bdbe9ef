package confirm

import (
	"bytes"
	"strings"
	"testing"
)

func TestNonInteractiveConfirmAlwaysAborts(t *testing.T) {
	nc := NonInteractive{}
	got, err := nc.Confirm("overwrite device with home?")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if got != Abort {
		t.Errorf("Confirm() = %v, want Abort", got)
	}
}

func TestNonInteractiveMenuErrors(t *testing.T) {
	nc := NonInteractive{}
	if _, err := nc.Menu("pick a side", []Option{{Key: "h", Label: "home"}}); err == nil {
		t.Fatal("expected an error from a non-interactive menu")
	}
}

func TestTerminalConfirmYes(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(strings.NewReader("y\n"), &out)
	got, err := term.Confirm("proceed?")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if got != Yes {
		t.Errorf("Confirm() = %v, want Yes", got)
	}
}

func TestTerminalConfirmNo(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(strings.NewReader("no\n"), &out)
	got, err := term.Confirm("proceed?")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if got != No {
		t.Errorf("Confirm() = %v, want No", got)
	}
}

func TestTerminalConfirmUnrecognizedIsAbort(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(strings.NewReader("maybe\n"), &out)
	got, err := term.Confirm("proceed?")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if got != Abort {
		t.Errorf("Confirm() = %v, want Abort", got)
	}
}

func TestTerminalMenuSelectsByKey(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(strings.NewReader("d\n"), &out)
	got, err := term.Menu("pick a side", []Option{
		{Key: "h", Label: "show home"},
		{Key: "d", Label: "show device"},
	})
	if err != nil {
		t.Fatalf("Menu: %v", err)
	}
	if got != "d" {
		t.Errorf("Menu() = %q, want %q", got, "d")
	}
}

func TestTerminalMenuUnrecognizedKeyErrors(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(strings.NewReader("z\n"), &out)
	_, err := term.Menu("pick a side", []Option{{Key: "h", Label: "show home"}})
	if err == nil {
		t.Fatal("expected an error for an unrecognized menu choice")
	}
}
