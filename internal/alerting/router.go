package alerting

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"chain-alerts/internal/scan"
)

// Route names the destination channels of one alert kind: a quiet default
// and a live channel, switched by a single runtime mode flag.
type Route struct {
	Default string
	Live    string
}

// Router maps an alert's kind to a destination channel and delegates
// delivery to the Notifier. One alert's delivery failure is independent
// of the others.
type Router struct {
	notifier Notifier
	channels map[string]string
	routes   map[Kind]Route
	live     bool
	logger   zerolog.Logger
}

// NewRouter wires routing tables into a router. channels maps channel
// names to notifier channel ids; routes maps alert kinds to channel
// names; live selects each kind's live channel instead of its default.
func NewRouter(notifier Notifier, channels map[string]string, routes map[Kind]Route, live bool, logger zerolog.Logger) *Router {
	return &Router{
		notifier: notifier,
		channels: channels,
		routes:   routes,
		live:     live,
		logger:   logger.With().Str("component", "alert_router").Logger(),
	}
}

// Validate checks that every requested kind resolves to a channel id.
// Run this before scanning: a missing mapping is fatal and must abort
// the run before any checkpoint write.
func (r *Router) Validate(kinds []Kind) error {
	for _, kind := range kinds {
		if _, err := r.resolve(kind); err != nil {
			return err
		}
	}
	return nil
}

// Route renders and delivers one alert. Delivery failures are returned
// to the caller but never abort processing of subsequent alerts.
func (r *Router) Route(ctx context.Context, alert Alert) error {
	channelID, err := r.resolve(alert.Kind)
	if err != nil {
		return err
	}

	text := Render(alert)
	if err := r.notifier.Send(ctx, channelID, text); err != nil {
		return fmt.Errorf("deliver %s alert for tx %s: %w", alert.Kind, alert.TxHash.Hex(), err)
	}

	r.logger.Info().
		Str("kind", string(alert.Kind)).
		Str("tx", alert.TxHash.Hex()).
		Uint64("block", alert.Block).
		Bool("live", r.live).
		Msg("alert routed")
	return nil
}

// ChannelFor returns the channel id an alert of the given kind routes
// to under the current mode. Callers persisting delivery records use it
// to stamp the destination.
func (r *Router) ChannelFor(kind Kind) (string, error) {
	return r.resolve(kind)
}

func (r *Router) resolve(kind Kind) (string, error) {
	route, ok := r.routes[kind]
	if !ok {
		return "", scan.NewConfigError(string(kind), "no channel route configured")
	}

	name := route.Default
	if r.live {
		name = route.Live
	}

	channelID, ok := r.channels[name]
	if !ok || channelID == "" {
		return "", scan.NewConfigError(string(kind), "channel %q not present in channel table", name)
	}
	return channelID, nil
}
