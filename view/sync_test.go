package view

import (
	"strings"
	"testing"
)

type fakeFrame struct {
	fragment   string
	navEvents  int
	focusCalls int
}

func (f *fakeFrame) Fragment() string { return f.fragment }
func (f *fakeFrame) SetFragment(fragment string) {
	f.fragment = fragment
	f.navEvents++
}
func (f *fakeFrame) Focus() { f.focusCalls++ }

func TestFragmentSyncLoad(t *testing.T) {

	// wrapper loaded with #ch3 already set
	frame := &fakeFrame{}
	s := NewFragmentSync(frame)

	s.OnLoad("#ch3")

	if frame.fragment != "#ch3" {
		t.Errorf("frame fragment = %q, want #ch3", frame.fragment)
	}
	if frame.navEvents != 1 {
		t.Errorf("navigation events = %d, want exactly 1", frame.navEvents)
	}
	if frame.focusCalls != 1 {
		t.Errorf("focus calls = %d, want 1", frame.focusCalls)
	}
}

func TestFragmentSyncIdempotent(t *testing.T) {

	frame := &fakeFrame{}
	s := NewFragmentSync(frame)

	s.OnLoad("#ch3")
	s.OnFragmentChanged("#ch3")
	s.OnFragmentChanged("#ch3")

	if frame.navEvents != 1 {
		t.Errorf("reapplying a current fragment navigated again: %d events", frame.navEvents)
	}

	s.OnFragmentChanged("#ch4")
	if frame.fragment != "#ch4" || frame.navEvents != 2 {
		t.Errorf("fragment change not applied: %q, %d events", frame.fragment, frame.navEvents)
	}
}

func TestFragmentSyncEmptyFragment(t *testing.T) {

	frame := &fakeFrame{}
	s := NewFragmentSync(frame)

	s.OnLoad("")
	if frame.navEvents != 0 {
		t.Errorf("empty fragment should not navigate the frame")
	}
	if frame.focusCalls != 1 {
		t.Errorf("focus must move into the frame regardless of fragment")
	}

	// clearing back to empty after a real fragment is a change
	s.OnFragmentChanged("#ch2")
	s.OnFragmentChanged("")
	if frame.navEvents != 1 {
		t.Errorf("navigation events = %d, want 1", frame.navEvents)
	}
}

func TestFragmentSyncBeforeLoad(t *testing.T) {

	frame := &fakeFrame{}
	s := NewFragmentSync(frame)

	s.OnFragmentChanged("#early")
	if frame.navEvents != 0 {
		t.Errorf("events before load must be ignored")
	}
}

func TestNavigationScriptAgreesOnFrameID(t *testing.T) {

	script := NavigationScript()
	if !strings.Contains(script, `getElementById("`+FrameElementID+`")`) {
		t.Errorf("script does not locate the frame by FrameElementID:\n%s", script)
	}
	if !strings.Contains(script, `"hashchange"`) || !strings.Contains(script, `"load"`) {
		t.Errorf("script misses an event registration:\n%s", script)
	}
}
