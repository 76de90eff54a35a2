// Package command defines the contract every operation implements and the
// shared execute template composed over it.
//
// A command never defends against malformed input: Execute decodes the
// envelope into the typed request, runs struct and semantic validation and
// only then calls Process. Nothing a command does can panic past Execute.
package command

import (
	"context"
	"fmt"

	"github.com/amirasaad/settlement/pkg/hub"
)

// Request is the typed view of an inbound envelope.
type Request[T any] struct {
	Kind     hub.Kind
	Envelope hub.Envelope
	Data     T
}

// Command is a unit of business logic over the typed request T.
type Command[T any] interface {
	// CanHandle reports whether the command serves kind.
	CanHandle(kind hub.Kind) bool
	// Validate checks semantic constraints struct tags cannot express.
	Validate(req T) error
	// Process runs the operation. Errors become failed results.
	Process(ctx context.Context, req Request[T]) (Result, error)
}

// Operation is a command with its request type erased, as stored by the
// registry.
type Operation interface {
	CanHandle(kind hub.Kind) bool
	Execute(ctx context.Context, kind hub.Kind, env hub.Envelope) Result
}

// Bind erases the request type of cmd.
func Bind[T any](cmd Command[T]) Operation {
	return bound[T]{cmd: cmd}
}

type bound[T any] struct {
	cmd Command[T]
}

func (b bound[T]) CanHandle(kind hub.Kind) bool { return b.cmd.CanHandle(kind) }

func (b bound[T]) Execute(ctx context.Context, kind hub.Kind, env hub.Envelope) Result {
	return Execute(ctx, b.cmd, kind, env)
}

// Execute decodes env, validates and processes it with cmd. Validation
// failures return MessageInvalidData without calling Process; errors and
// panics raised by Process become failed results.
func Execute[T any](ctx context.Context, cmd Command[T], kind hub.Kind, env hub.Envelope) (res Result) {
	var data T
	if err := Decode(env.Data, &data); err != nil {
		return Fail(MessageInvalidData, err.Error())
	}
	if errs := validateStruct(data); len(errs) > 0 {
		return Fail(MessageInvalidData, errs...)
	}
	if err := cmd.Validate(data); err != nil {
		return Fail(MessageInvalidData, err.Error())
	}

	defer func() {
		if r := recover(); r != nil {
			res = Fail(fmt.Sprint(r))
		}
	}()

	out, err := cmd.Process(ctx, Request[T]{Kind: kind, Envelope: env, Data: data})
	if err != nil {
		return FromError(err)
	}
	return out.Normalize()
}
