package matcher

import (
	"bytes"
	"testing"
)

func TestMatch_DotfileNeverMatches(t *testing.T) {
	reg := NewRegistry(DefaultSpecs())
	r, err := reg.Match(".hidden-vasprun.xml", bytes.NewReader([]byte("vasp.6.3")), Options{Strict: true})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if r != nil {
		t.Errorf("expected dotfile to never match, got %+v", r)
	}
}

func TestMatch_StrictExcludesPlaceholders(t *testing.T) {
	reg := NewRegistry(DefaultSpecs())
	r, err := reg.Match("nomad.empty", bytes.NewReader([]byte("")), Options{Strict: true})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if r != nil {
		t.Errorf("expected placeholder parser to be excluded in strict mode, got %+v", r)
	}

	r, err = reg.Match("nomad.empty", bytes.NewReader([]byte("")), Options{Strict: false})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if r == nil || r.ParserID != "parsers/empty" {
		t.Errorf("expected placeholder parser to match in non-strict mode, got %+v", r)
	}
}

func TestMatch_ContentRegex(t *testing.T) {
	reg := NewRegistry(DefaultSpecs())
	r, err := reg.Match("vasprun.xml", bytes.NewReader([]byte("this is vasp.6.3.2 output")), Options{Strict: true})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if r == nil || r.ParserID != "parsers/vasp" {
		t.Fatalf("expected parsers/vasp to match, got %+v", r)
	}
}

func TestMatch_FirstPositiveMatchWins(t *testing.T) {
	specs := []ParserSpec{
		{ID: "a", Strict: true},
		{ID: "b", Strict: true},
	}
	reg := NewRegistry(specs)
	r, err := reg.Match("anything.txt", bytes.NewReader([]byte("content")), Options{Strict: true})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if r == nil || r.ParserID != "a" {
		t.Fatalf("expected first registered parser to win, got %+v", r)
	}
}
