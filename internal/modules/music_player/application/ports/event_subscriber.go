package ports

import (
	"context"

	"github.com/sglre6355/melodicord/internal/modules/music_player/domain"
)

// EventSubscriber defines the interface for subscribing to events.
// Handlers are registered with the subscriber and invoked when events occur.
type EventSubscriber interface {
	Subscribe(kind domain.EventKind, handler func(context.Context, domain.Event)) error
}
