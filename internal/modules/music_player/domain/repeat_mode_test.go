package domain

import (
	"errors"
	"testing"
)

func TestRepeatMode_String(t *testing.T) {
	tests := []struct {
		name string
		mode RepeatMode
		want string
	}{
		{name: "off", mode: RepeatModeOff, want: "off"},
		{name: "track", mode: RepeatModeTrack, want: "track"},
		{name: "queue", mode: RepeatModeQueue, want: "queue"},
		{name: "unknown", mode: RepeatMode(7), want: "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.mode.String(); got != tt.want {
				t.Errorf("RepeatMode.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRepeatMode_IotaValues(t *testing.T) {
	if RepeatModeOff != 0 || RepeatModeTrack != 1 || RepeatModeQueue != 2 {
		t.Errorf("unexpected repeat mode values: %d %d %d",
			RepeatModeOff, RepeatModeTrack, RepeatModeQueue)
	}
}

func TestRepeatMode_IsValid(t *testing.T) {
	for _, m := range []RepeatMode{RepeatModeOff, RepeatModeTrack, RepeatModeQueue} {
		if !m.IsValid() {
			t.Errorf("expected %v to be valid", m)
		}
	}
	for _, m := range []RepeatMode{-1, 3, 42} {
		if m.IsValid() {
			t.Errorf("expected %d to be invalid", m)
		}
	}
}

func TestParseRepeatMode(t *testing.T) {
	tests := []struct {
		input   string
		want    RepeatMode
		wantErr bool
	}{
		{input: "off", want: RepeatModeOff},
		{input: "none", want: RepeatModeOff},
		{input: "Track", want: RepeatModeTrack},
		{input: "2", want: RepeatModeQueue},
		{input: "shuffle", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRepeatMode(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRepeatMode) {
					t.Errorf("expected ErrInvalidRepeatMode, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseRepeatMode(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
