package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.BritishEnglish

	message.SetString(lang, "notification.new_request", "%s wants to join %s")
	message.SetString(lang, "notification.new_reserve", "%s joined reserve for %s")
	message.SetString(lang, "notification.player_withdrew", "%s can't make it for %s")
	message.SetString(lang, "notification.promoted", "You've been promoted to confirmed for %s! Kick-off %s.")
	message.SetString(lang, "notification.fallback_venue", "your game")
}

var messageKeys = map[Kind]string{
	KindNewRequest:     "notification.new_request",
	KindNewReserve:     "notification.new_reserve",
	KindPlayerWithdrew: "notification.player_withdrew",
	KindPromoted:       "notification.promoted",
}

// Renderer turns intents into inbox copy.
type Renderer struct {
	printer *message.Printer
	clock   func() time.Time
}

func NewRenderer(tag language.Tag, clock func() time.Time) *Renderer {
	if clock == nil {
		clock = time.Now
	}
	return &Renderer{printer: message.NewPrinter(tag), clock: clock}
}

// Render returns the message for intent.
func (r *Renderer) Render(intent Intent) (string, error) {
	key, ok := messageKeys[intent.Kind]
	if !ok {
		return "", fmt.Errorf("unknown notification kind %q", intent.Kind)
	}
	venue := strings.TrimSpace(intent.Venue)
	if venue == "" {
		venue = r.printer.Sprintf("notification.fallback_venue")
	}
	if intent.Kind == KindPromoted {
		kickOff := humanize.RelTime(intent.StartsAt, r.clock(), "ago", "from now")
		return r.printer.Sprintf(key, venue, kickOff), nil
	}
	return r.printer.Sprintf(key, intent.PlayerName, venue), nil
}
