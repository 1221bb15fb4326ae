package kafka

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// ConsumerHook runs around each handler invocation. BeforeHandle may
// rewrite the context or payload; an error from it skips the handler and
// routes the message straight to error processing.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, km kafka.Message) (context.Context, []byte, error)
	AfterHandle(ctx context.Context, km kafka.Message, err error)
}

type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, km kafka.Message) (context.Context, []byte, error) {
	return ctx, km.Value, nil
}

func (NoopHook) AfterHandle(context.Context, kafka.Message, error) {}

// HookError tags a rejection raised by a hook rather than the handler.
type HookError struct {
	Code string
	Err  error
}

func (e *HookError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *HookError) Unwrap() error { return e.Err }

// HookFuncs adapts plain functions; nil members are no-ops.
type HookFuncs struct {
	Before func(context.Context, kafka.Message) (context.Context, []byte, error)
	After  func(context.Context, kafka.Message, error)
}

func (h HookFuncs) BeforeHandle(ctx context.Context, km kafka.Message) (context.Context, []byte, error) {
	if h.Before == nil {
		return ctx, km.Value, nil
	}
	return h.Before(ctx, km)
}

func (h HookFuncs) AfterHandle(ctx context.Context, km kafka.Message, err error) {
	if h.After != nil {
		h.After(ctx, km, err)
	}
}

// HookChain applies Before hooks in order, threading the rewritten payload
// through, and After hooks in reverse. A panicking hook becomes a
// HookError instead of killing the worker.
type HookChain struct {
	hooks []ConsumerHook
}

func NewHookChain(hooks ...ConsumerHook) *HookChain {
	chain := &HookChain{}
	for _, h := range hooks {
		if h != nil {
			chain.hooks = append(chain.hooks, h)
		}
	}
	return chain
}

func (c *HookChain) BeforeHandle(ctx context.Context, km kafka.Message) (_ context.Context, _ []byte, err error) {
	for _, h := range c.hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = &HookError{Code: "ERR_PANIC", Err: fmt.Errorf("hook panic: %v", r)}
				}
			}()
			ctx, km.Value, err = h.BeforeHandle(ctx, km)
		}()
		if err != nil {
			return ctx, km.Value, err
		}
	}
	return ctx, km.Value, nil
}

func (c *HookChain) AfterHandle(ctx context.Context, km kafka.Message, err error) {
	for i := len(c.hooks) - 1; i >= 0; i-- {
		func() {
			defer func() { _ = recover() }()
			c.hooks[i].AfterHandle(ctx, km, err)
		}()
	}
}

// RequireValue rejects tombstones and empty payloads before they reach a
// handler.
var RequireValue = HookFuncs{
	Before: func(ctx context.Context, km kafka.Message) (context.Context, []byte, error) {
		if len(km.Value) == 0 {
			return ctx, nil, &HookError{Code: "ERR_EMPTY_PAYLOAD"}
		}
		return ctx, km.Value, nil
	},
}
