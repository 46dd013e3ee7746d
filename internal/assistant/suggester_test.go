package assistant

import (
	"context"
	"reflect"
	"testing"
)

func TestSuggest_ParsesArray(t *testing.T) {
	_, caller := newStubCaller(`{
		"role": "assistant",
		"content": [{"type": "text", "text": "[\"Book venue\", \"Send invites\", \"Order cake\"]"}]
	}`)
	s := NewSuggester(caller, nil)

	got := s.Suggest(context.Background(), "Plan birthday party", "")
	want := []string{"Book venue", "Send invites", "Order cake"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Suggest() = %v, want %v", got, want)
	}
}

func TestSuggest_ToleratesSurroundingProse(t *testing.T) {
	_, caller := newStubCaller(`{
		"role": "assistant",
		"content": [{"type": "text", "text": "Here you go:\n` + "```json\\n" + `[\"a\", \"b\", \"c\"]\n` + "```" + `"}]
	}`)
	s := NewSuggester(caller, nil)

	got := s.Suggest(context.Background(), "Some task", "with context")
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Suggest() = %v, want %v", got, want)
	}
}

func TestSuggest_NonJSONDegradesToEmpty(t *testing.T) {
	_, caller := newStubCaller(`{
		"role": "assistant",
		"content": [{"type": "text", "text": "Sure! First you should book a venue."}]
	}`)
	s := NewSuggester(caller, nil)

	got := s.Suggest(context.Background(), "Plan birthday party", "")
	if len(got) != 0 {
		t.Errorf("Suggest() = %v, want empty", got)
	}
}

func TestSuggest_ModelFaultDegradesToEmpty(t *testing.T) {
	_, caller := newStubCaller() // transport errors on first call
	s := NewSuggester(caller, nil)

	got := s.Suggest(context.Background(), "Plan birthday party", "")
	if got == nil || len(got) != 0 {
		t.Errorf("Suggest() = %v, want empty non-nil slice", got)
	}
}

func TestSuggest_CapsAtThree(t *testing.T) {
	_, caller := newStubCaller(`{
		"role": "assistant",
		"content": [{"type": "text", "text": "[\"a\", \"b\", \"c\", \"d\", \"e\"]"}]
	}`)
	s := NewSuggester(caller, nil)

	got := s.Suggest(context.Background(), "Big task", "")
	if len(got) != 3 {
		t.Errorf("len(Suggest()) = %d, want 3", len(got))
	}
}

func TestParseSuggestions(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    []string
		wantErr bool
	}{
		{"plain array", `["x","y"]`, []string{"x", "y"}, false},
		{"fenced array", "```json\n[\"x\"]\n```", []string{"x"}, false},
		{"no array", "nothing here", nil, true},
		{"not strings", `[1,2,3]`, nil, true},
		{"empty array", `[]`, []string{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSuggestions(tt.text)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSuggestions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseSuggestions() = %v, want %v", got, tt.want)
			}
		})
	}
}
