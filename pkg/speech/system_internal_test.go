package speech

import (
	"reflect"
	"testing"
)

func TestSystemArgs(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("say", func(t *testing.T) {
		s := newSystem("/usr/bin/say", cfg)
		got := s.args("Turn left", cfg.voiceOr(Voice{}))
		want := []string{"-r", "200", "-v", "Alex", "--", "Turn left"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("args = %v, want %v", got, want)
		}
	})

	t.Run("espeak drops mac voice", func(t *testing.T) {
		s := newSystem("/usr/bin/espeak-ng", cfg)
		got := s.args("Turn left", cfg.voiceOr(Voice{}))
		want := []string{"-s", "200", "--", "Turn left"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("args = %v, want %v", got, want)
		}
	})

	t.Run("espeak keeps language voice", func(t *testing.T) {
		s := newSystem("/usr/bin/espeak-ng", cfg)
		got := s.args("hola", Voice{Name: "es", Rate: 150})
		want := []string{"-s", "150", "-v", "es", "--", "hola"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("args = %v, want %v", got, want)
		}
	})
}

func TestSystem_RejectsEmptyText(t *testing.T) {
	s := newSystem("/usr/bin/say", DefaultConfig())
	if err := s.Speak(t.Context(), "  ", Voice{}); err != ErrEmptyText {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
}
