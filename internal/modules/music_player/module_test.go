package music_player

import (
	"errors"
	"slices"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/sglre6355/melodicord/internal/bot"
)

func TestMusicPlayerModule_EveryCommandHasHandler(t *testing.T) {
	m := &MusicPlayerModule{}
	handlers := m.CommandHandlers()

	var names []string
	for _, cmd := range m.Commands() {
		names = append(names, cmd.Name)
		if _, ok := handlers[cmd.Name]; !ok {
			t.Errorf("command %q has no handler", cmd.Name)
		}
	}

	for name := range handlers {
		if !slices.Contains(names, name) {
			t.Errorf("handler %q has no command definition", name)
		}
	}
}

func TestMusicPlayerModule_InitRequiresSession(t *testing.T) {
	m := &MusicPlayerModule{}

	err := m.Init(bot.ModuleDependencies{})
	if !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
	if err := m.Shutdown(); err != nil {
		t.Errorf("Shutdown() on an uninitialized module error = %v", err)
	}
}

func TestSessionUserID(t *testing.T) {
	s := &discordgo.Session{State: discordgo.NewState()}
	if got := sessionUserID(s); got != 0 {
		t.Errorf("expected 0 before ready, got %d", got)
	}

	s.State.User = &discordgo.User{ID: "123"}
	if got := sessionUserID(s); got != 123 {
		t.Errorf("expected 123, got %d", got)
	}
}
