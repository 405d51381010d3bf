package command

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"What's in front of me?", "what is in front of me"},
		{"whats infront of me", "what is in front of me"},
		{"Who’s in front of me", "who is in front of me"},
		{"  STOP!!  ", "stop"},
		{"read   the\ttext.", "read the text"},
		{"don't", "dont"},
		{"", ""},
		{"?!", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	if got := Similarity("abc", "abc"); got != 1 {
		t.Errorf("identical strings scored %v", got)
	}
	if got := Similarity("", ""); got != 1 {
		t.Errorf("empty strings scored %v", got)
	}
	if got := Similarity("abc", "xyz"); got != 0 {
		t.Errorf("disjoint strings scored %v", got)
	}
	// "star" is the only shared block: 2*4/11.
	if got, want := Similarity("restar", "start"), 8.0/11.0; got != want {
		t.Errorf("Similarity(restar, start) = %v, want %v", got, want)
	}
	if got := Similarity("what is in fronta me", "what is in front of me"); got < 0.9 {
		t.Errorf("near-identical phrase scored %v", got)
	}
}
