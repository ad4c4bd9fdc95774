package deferred

import "github.com/joeycumines/logiface"

// deferredOptions holds configuration options for Deferred creation.
type deferredOptions struct {
	scheduler Scheduler
	logger    *logiface.Logger[logiface.Event]
	hasLogger bool
}

// --- Deferred Options ---

// Option configures a [Deferred] instance. Options propagate through
// [Deferred.Then] to the chained deferreds it creates.
type Option interface {
	applyDeferred(*deferredOptions)
}

// optionImpl implements Option.
type optionImpl struct {
	applyDeferredFunc func(*deferredOptions)
}

func (o *optionImpl) applyDeferred(opts *deferredOptions) {
	o.applyDeferredFunc(opts)
}

// WithScheduler sets the [Scheduler] used to dispatch first-level Then
// handlers. Defaults to [DefaultScheduler].
func WithScheduler(s Scheduler) Option {
	return &optionImpl{func(opts *deferredOptions) {
		opts.scheduler = s
	}}
}

// WithLogger sets a structured logger for this Deferred and its chain,
// overriding the package-level logger configured via [SetLogger]. A nil
// logger disables logging for the chain.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *deferredOptions) {
		opts.logger = logger
		opts.hasLogger = true
	}}
}

// resolveDeferredOptions applies Option instances to deferredOptions.
func resolveDeferredOptions(opts []Option) *deferredOptions {
	cfg := &deferredOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		opt.applyDeferred(cfg)
	}
	if cfg.scheduler == nil {
		cfg.scheduler = defaultScheduler
	}
	return cfg
}
