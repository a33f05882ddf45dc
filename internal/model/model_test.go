package model

import "testing"

func TestSegmentTypeValid(t *testing.T) {
	for _, st := range []SegmentType{Narrative, Dialogue, Action, Thought} {
		if !st.Valid() {
			t.Errorf("%q should be valid", st)
		}
	}
	for _, st := range []SegmentType{"", "monologue", "Dialogue"} {
		if st.Valid() {
			t.Errorf("%q should be invalid", st)
		}
	}
}

func TestClampIntimacy(t *testing.T) {
	tests := map[int]int{-3: 1, 0: 1, 1: 1, 7: 7, 10: 10, 42: 10}
	for in, want := range tests {
		if got := ClampIntimacy(in); got != want {
			t.Errorf("ClampIntimacy(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestPersonaMatches(t *testing.T) {
	p := Persona{Name: "Kim Minji", Aliases: []string{"Minji", "the captain"}}
	for _, name := range []string{"kim minji", "MINJI", " The Captain "} {
		if !p.Matches(name) {
			t.Errorf("expected %q to match", name)
		}
	}
	if p.Matches("Minjun") {
		t.Errorf("unexpected match")
	}
}

func TestRelationshipTypeValid(t *testing.T) {
	if len(RelationshipTypes) != 9 {
		t.Fatalf("expected 9 relationship types, got %d", len(RelationshipTypes))
	}
	if RelationshipType("nemesis").Valid() {
		t.Fatalf("nemesis is not a recognized type")
	}
	if !Mentor.Valid() {
		t.Fatalf("mentor should be valid")
	}
}
