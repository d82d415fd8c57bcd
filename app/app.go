// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package app provides helpers for common wsgate.App implementation patterns.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/z5labs/wsgate"
	"github.com/z5labs/wsgate/internal/try"
)

type runFunc func(context.Context) error

func (f runFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Recover will wrap the given [wsgate.App] with panic recovery.
// The recovered value is returned as a [try.PanicError] which
// unwraps to the value itself when it implements [error].
func Recover(app wsgate.App) wsgate.App {
	return runFunc(func(ctx context.Context) (err error) {
		defer try.Recover(&err)

		return app.Run(ctx)
	})
}

// RecoverBuilder will wrap the given [wsgate.AppBuilder] with panic recovery.
func RecoverBuilder[T any](builder wsgate.AppBuilder[T]) wsgate.AppBuilder[T] {
	return wsgate.AppBuilderFunc[T](func(ctx context.Context, cfg T) (_ wsgate.App, err error) {
		defer try.Recover(&err)

		return builder.Build(ctx, cfg)
	})
}

// WithSignalNotifications wraps a given [wsgate.App] in an implementation
// that cancels the [context.Context] that's passed to app.Run if an [os.Signal]
// is received by the running process. For a [wsgi.Server] this closes the
// listener and lets Run return.
func WithSignalNotifications(app wsgate.App, signals ...os.Signal) wsgate.App {
	return runFunc(func(ctx context.Context) error {
		sigCtx, cancel := signal.NotifyContext(ctx, signals...)
		defer cancel()

		return app.Run(sigCtx)
	})
}

// LifecycleHook represents functionality that needs to be performed
// at a specific "time" relative to the execution of [wsgate.App.Run].
type LifecycleHook interface {
	Run(context.Context) error
}

// LifecycleHookFunc is a convenient helper type for implementing a [LifecycleHook]
// from just a regular func.
type LifecycleHookFunc func(context.Context) error

// Run implements the [LifecycleHook] interface.
func (f LifecycleHookFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// ComposeLifecycleHooks combines multiple [LifecycleHook]s into a single hook.
// Each hook is called sequentially and each hook is called irregardless if a
// previous hook returned an error or not. Any and all errors are then returned
// after all hooks have been ran.
func ComposeLifecycleHooks(hooks ...LifecycleHook) LifecycleHook {
	return LifecycleHookFunc(func(ctx context.Context) error {
		errs := make([]error, 0, len(hooks))
		for _, hook := range hooks {
			err := hook.Run(ctx)
			if err == nil {
				continue
			}
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})
}

type shutdowner interface {
	Shutdown(context.Context) error
}

// Shutdown returns a [LifecycleHook] which calls Shutdown on v, if it has one.
// It's meant for flushing telemetry providers once the server stops.
func Shutdown(v any) LifecycleHook {
	return LifecycleHookFunc(func(ctx context.Context) error {
		s, ok := v.(shutdowner)
		if !ok || s == nil {
			return nil
		}
		return s.Shutdown(ctx)
	})
}

// Lifecycle
type Lifecycle struct {
	// PostRun is always executed regardless if the underlying [wsgate.App]
	// returns an error or panics.
	PostRun LifecycleHook
}

// WithLifecycleHooks wraps a given [wsgate.App] in an implementation
// that runs [LifecycleHook]s around the execution of app.Run.
func WithLifecycleHooks(app wsgate.App, lifecycle Lifecycle) wsgate.App {
	return runFunc(func(ctx context.Context) (err error) {
		defer runPostRunHook(ctx, lifecycle.PostRun, &err)
		defer try.Recover(&err)

		return app.Run(ctx)
	})
}

func runPostRunHook(ctx context.Context, hook LifecycleHook, err *error) {
	if hook == nil {
		return
	}

	// the app context is usually cancelled by now but
	// hooks still need a live context to flush
	hookErr := hook.Run(context.WithoutCancel(ctx))
	*err = errors.Join(*err, hookErr)
}
