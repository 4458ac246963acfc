package protocol

import (
	"errors"
	"fmt"
	"slices"
)

// Disposable is a resource released when a Support is disposed.
type Disposable interface {
	Dispose() error
}

// DisposeFunc adapts a function to Disposable.
type DisposeFunc func() error

// Dispose implements Disposable.
func (f DisposeFunc) Dispose() error {
	return f()
}

// InitFunc receives the configuration map passed to Init.
type InitFunc func(config map[string]any) error

// DoOnInit registers a callback run on every Init call, in registration order.
func (s *Support) DoOnInit(fn InitFunc) {
	if fn == nil {
		return
	}
	s.lifecycleMu.Lock()
	s.initFuncs = append(s.initFuncs, fn)
	s.lifecycleMu.Unlock()
}

// Init replays every registered init callback with config.
//
// Init may be called repeatedly, for example on reconfiguration. Callbacks
// run in registration order; the first failure stops the replay and is
// returned wrapped in ErrInitFailed. Init on a disposed support does nothing.
func (s *Support) Init(config map[string]any) error {
	if s.disposed.Load() {
		return nil
	}

	s.lifecycleMu.Lock()
	fns := slices.Clone(s.initFuncs)
	s.lifecycleMu.Unlock()

	for i, fn := range fns {
		if err := fn(config); err != nil {
			return fmt.Errorf("%w: callback %d: %w", ErrInitFailed, i, err)
		}
	}

	s.logger.Info("protocol support initialised", "protocol", s.id, "callbacks", len(fns))
	return nil
}

// DoOnDispose registers a resource to release on Dispose.
// If the support is already disposed the resource is released immediately.
func (s *Support) DoOnDispose(d Disposable) {
	if isNil(d) {
		return
	}

	s.lifecycleMu.Lock()
	if !s.disposed.Load() {
		s.disposables = append(s.disposables, d)
		s.lifecycleMu.Unlock()
		return
	}
	s.lifecycleMu.Unlock()

	if err := d.Dispose(); err != nil {
		s.logger.Warn("late dispose failed", "protocol", s.id, "error", err)
	}
}

// Dispose releases registered resources and clears every capability table.
//
// Only the first call has any effect. Resources are released in
// registration order; a failure does not stop the remaining releases and
// all failures are returned joined.
func (s *Support) Dispose() error {
	if !s.disposed.CompareAndSwap(false, true) {
		return nil
	}

	s.lifecycleMu.Lock()
	disposables := s.disposables
	s.disposables = nil
	s.lifecycleMu.Unlock()

	var errs []error
	for _, d := range disposables {
		if err := d.Dispose(); err != nil {
			errs = append(errs, err)
		}
	}

	s.codecs.reset()
	s.authenticators.reset()
	s.configMetadata.reset()
	s.defaultMetadata.reset()
	s.expands.reset()

	if len(errs) > 0 {
		s.logger.Warn("protocol support disposed with errors",
			"protocol", s.id,
			"resources", len(disposables),
			"errors", len(errs),
		)
	} else {
		s.logger.Info("protocol support disposed", "protocol", s.id, "resources", len(disposables))
	}

	return errors.Join(errs...)
}

// IsDisposed reports whether Dispose has been called.
func (s *Support) IsDisposed() bool {
	return s.disposed.Load()
}
