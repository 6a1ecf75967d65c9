package commands

import "testing"

func TestValidateEntryName(t *testing.T) {
	valid := []string{"a", "Profile1", "my-profile_2"}
	for _, name := range valid {
		if err := ValidateEntryName(name); err != nil {
			t.Errorf("ValidateEntryName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{"", "1abc", "-abc", "has space", "has.dot"}
	for _, name := range invalid {
		if err := ValidateEntryName(name); err == nil {
			t.Errorf("ValidateEntryName(%q) = nil, want error", name)
		}
	}
}

func TestSuggestCommand(t *testing.T) {
	candidates := []string{"help", "branch", "resume", "session-stats"}

	tests := []struct {
		name       string
		want       string
		wantExists bool
	}{
		{"hep", "help", true},
		{"helpp", "help", true},
		{"branh", "branch", true},
		{"xyz", "", false},
		{"resum", "resume", true},
	}

	for _, tt := range tests {
		got, ok := SuggestCommand(tt.name, candidates)
		if ok != tt.wantExists || (ok && got != tt.want) {
			t.Errorf("SuggestCommand(%q) = (%q, %v), want (%q, %v)", tt.name, got, ok, tt.want, tt.wantExists)
		}
	}
}

func TestSuggestCommandAmbiguous(t *testing.T) {
	candidates := []string{"cat", "car", "bat"}
	if _, ok := SuggestCommand("ca", candidates); ok {
		t.Error("expected no suggestion when multiple candidates are within edit distance 1")
	}
}
