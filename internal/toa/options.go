package toa

import (
	"crypto/rand"
	"io"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
)

// Options tunes a handshake and the commands run on the resulting session.
type Options struct {
	AuthTimeout     time.Duration `default:"15s"`   // whole handshake
	ExchangeTimeout time.Duration `default:"5s"`    // each request/response pair
	SettleDelay     time.Duration `default:"100ms"` // after enabling notifications
	PacketDelay     time.Duration `default:"100ms"` // between song upload packets

	Random io.Reader
	Logger *logrus.Logger
}

// Option is a functional option for configuring an Authenticator
type Option func(*Options)

func WithAuthTimeout(d time.Duration) Option {
	return func(o *Options) { o.AuthTimeout = d }
}

func WithExchangeTimeout(d time.Duration) Option {
	return func(o *Options) { o.ExchangeTimeout = d }
}

func WithSettleDelay(d time.Duration) Option {
	return func(o *Options) { o.SettleDelay = d }
}

// PacketDelay sets the pause between song upload packets.
func PacketDelay(d time.Duration) Option {
	return func(o *Options) { o.PacketDelay = d }
}

// WithRandom replaces the source of challenges and session tags.
func WithRandom(r io.Reader) Option {
	return func(o *Options) { o.Random = r }
}

func WithLogger(l *logrus.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

func newOptions(opts ...Option) Options {
	o := Options{}
	defaults.SetDefaults(&o)
	for _, opt := range opts {
		opt(&o)
	}
	if o.Random == nil {
		o.Random = rand.Reader
	}
	if o.Logger == nil {
		o.Logger = logrus.New()
	}
	return o
}
