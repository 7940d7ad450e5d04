package searxng

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultKeepAliveInterval = 600 * time.Second
	defaultPingTimeout       = 10 * time.Second
)

var pingWords = []string{"nutrition", "oats", "fiber", "protein", "sugar"}

// Pinger is the part of the client the keep-alive task needs
type Pinger interface {
	Ping(ctx context.Context, word string) error
}

// KeepAlive periodically pings a SearXNG instance so its container stays warm
type KeepAlive struct {
	pinger      Pinger
	interval    time.Duration
	pingTimeout time.Duration
	logger      zerolog.Logger
	onPing      func(ok bool)
}

// NewKeepAlive creates the keep-alive task. Zero durations use 600s and 10s.
func NewKeepAlive(pinger Pinger, interval, pingTimeout time.Duration, logger zerolog.Logger) *KeepAlive {
	if interval <= 0 {
		interval = defaultKeepAliveInterval
	}
	if pingTimeout <= 0 {
		pingTimeout = defaultPingTimeout
	}
	return &KeepAlive{
		pinger:      pinger,
		interval:    interval,
		pingTimeout: pingTimeout,
		logger:      logger.With().Str("component", "searxng_keepalive").Logger(),
	}
}

// OnPing registers a callback invoked after every ping
func (k *KeepAlive) OnPing(fn func(ok bool)) {
	k.onPing = fn
}

// Run pings immediately and then every interval until ctx is done.
// Ping failures are logged and never stop the loop.
func (k *KeepAlive) Run(ctx context.Context) error {
	k.logger.Info().Dur("interval", k.interval).Msg("keep-alive started")

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		k.ping(ctx)

		select {
		case <-ctx.Done():
			k.logger.Info().Msg("keep-alive stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (k *KeepAlive) ping(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, k.pingTimeout)
	defer cancel()

	word := pingWords[rand.IntN(len(pingWords))]
	err := k.pinger.Ping(pingCtx, word)
	if err != nil && ctx.Err() == nil {
		k.logger.Warn().Err(err).Msg("keep-alive ping failed")
	} else if err == nil {
		k.logger.Debug().Str("word", word).Msg("keep-alive ping ok")
	}

	if k.onPing != nil && ctx.Err() == nil {
		k.onPing(err == nil)
	}
}
