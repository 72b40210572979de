package host

import (
	"github.com/rs/zerolog"

	"github.com/justyntemme/claphost/pkg/param"
	"github.com/justyntemme/claphost/pkg/process"
)

// DefaultErrorThreshold is the number of consecutive process errors after
// which an instance is considered failed.
const DefaultErrorThreshold = 16

// Info identifies the host to plugins.
type Info struct {
	Name    string
	Vendor  string
	URL     string
	Version string
}

// DefaultInfo is announced to plugins unless WithInfo overrides it.
var DefaultInfo = Info{
	Name:    "claphost",
	Vendor:  "claphost",
	URL:     "https://github.com/justyntemme/claphost",
	Version: "0.1.0",
}

type options struct {
	log            zerolog.Logger
	info           Info
	maxEvents      int
	queueCapacity  int
	errorThreshold int
}

func defaultOptions() options {
	return options{
		log:            zerolog.Nop(),
		info:           DefaultInfo,
		maxEvents:      process.DefaultMaxEvents,
		queueCapacity:  param.DefaultQueueCapacity,
		errorThreshold: DefaultErrorThreshold,
	}
}

// Option configures a Library or an Instance. Options given to Open become
// the defaults of every instance the library creates.
type Option func(*options)

// WithLogger sets the logger. Instances add their id and plugin id to it.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithInfo sets the host identity announced to plugins.
func WithInfo(info Info) Option {
	return func(o *options) {
		o.info = info
	}
}

// WithMaxEvents sets the per-block event capacity of the process driver.
func WithMaxEvents(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxEvents = n
		}
	}
}

// WithQueueCapacity sets how many parameter changes may wait for the next
// block.
func WithQueueCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueCapacity = n
		}
	}
}

// WithErrorThreshold sets how many consecutive process errors fail the
// instance. Zero disables the check.
func WithErrorThreshold(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.errorThreshold = n
		}
	}
}
