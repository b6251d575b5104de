package view

import (
	"fmt"
)

// FrameElementID is the id of the single content frame inside every wrapper
// page. The wrapper generator and the in-browser synchronizer locate the
// frame by this exact identifier - change it in one place only.
const FrameElementID = "section"

// Frame is the synchronizer's view of the embedded content frame.
type Frame interface {
	Fragment() string
	SetFragment(fragment string)
	Focus()
}

// FragmentSync propagates the wrapper page's location fragment into the
// content frame. Propagation is one-directional, wrapper to frame, and
// guarded by the last applied fragment so reapplying a current fragment never
// triggers a second navigation inside the frame.
//
// In the browser this logic runs as the generated navigation script; the Go
// form models the same state machine against the two events the wrapper
// receives, load and fragment change.
type FragmentSync struct {
	frame       Frame
	loaded      bool
	lastApplied string
	applied     bool
}

func NewFragmentSync(frame Frame) *FragmentSync {
	return &FragmentSync{frame: frame}
}

// OnLoad handles the wrapper's load event: the current fragment is applied to
// the frame and input focus moves into it so keyboard scrolling works without
// an extra click.
func (s *FragmentSync) OnLoad(wrapperFragment string) {
	s.loaded = true
	s.apply(wrapperFragment)
	s.frame.Focus()
}

// OnFragmentChanged handles any later change of the wrapper's fragment.
// Events arriving before load are ignored, load delivers the then-current
// fragment itself.
func (s *FragmentSync) OnFragmentChanged(wrapperFragment string) {
	if !s.loaded {
		return
	}
	s.apply(wrapperFragment)
}

func (s *FragmentSync) apply(fragment string) {
	if s.applied && fragment == s.lastApplied {
		return
	}
	s.lastApplied = fragment
	s.applied = true
	if len(fragment) > 0 {
		s.frame.SetFragment(fragment)
	}
}

// NavigationScript emits the browser-side rendition of FragmentSync, written
// into every styled rendition next to the wrapper pages.
func NavigationScript() string {
	return fmt.Sprintf(`(() => {
	"use strict";

	const frame = document.getElementById(%q);
	let lastApplied = null;

	const applyFragment = () => {
		const fragment = window.location.hash;
		if (fragment === lastApplied) {
			return;
		}
		lastApplied = fragment;
		if (fragment !== "") {
			frame.contentWindow.location.hash = fragment;
		}
	};

	window.addEventListener("load", () => {
		applyFragment();
		frame.contentWindow.focus();
	});
	window.addEventListener("hashchange", applyFragment);
})();
`, FrameElementID)
}
