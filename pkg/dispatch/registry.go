// Package dispatch maps inbound envelopes to the operation bound to their
// kind and publishes the result.
package dispatch

import (
	"context"
	"log/slog"

	"github.com/amirasaad/settlement/pkg/command"
	"github.com/amirasaad/settlement/pkg/hub"
)

// Registry is the kind to operation table. It is built once and never
// mutated, so lookups need no locking.
type Registry struct {
	table map[hub.Kind]command.Operation
	bound map[hub.Kind]bool
}

// NewRegistry binds every kind to the single operation that handles it.
// A kind handled by no operation, or by more than one, is bound to the
// unhandled operation.
func NewRegistry(logger *slog.Logger, ops ...command.Operation) *Registry {
	r := &Registry{
		table: make(map[hub.Kind]command.Operation, len(hub.Kinds())),
		bound: make(map[hub.Kind]bool, len(hub.Kinds())),
	}
	for _, kind := range hub.Kinds() {
		var matches []command.Operation
		for _, op := range ops {
			if op.CanHandle(kind) {
				matches = append(matches, op)
			}
		}
		switch len(matches) {
		case 1:
			r.table[kind] = matches[0]
			r.bound[kind] = true
		case 0:
			logger.Warn("no operation handles kind", "kind", kind)
			r.table[kind] = unhandled{}
		default:
			logger.Warn("ambiguous operations for kind", "kind", kind, "count", len(matches))
			r.table[kind] = unhandled{}
		}
	}
	return r
}

// Lookup returns the operation bound to kind. Every known kind resolves.
func (r *Registry) Lookup(kind hub.Kind) (command.Operation, bool) {
	op, ok := r.table[kind]
	return op, ok
}

// Bound reports whether kind has a dedicated operation.
func (r *Registry) Bound(kind hub.Kind) bool { return r.bound[kind] }

type unhandled struct{}

func (unhandled) CanHandle(hub.Kind) bool { return false }

func (unhandled) Execute(context.Context, hub.Kind, hub.Envelope) command.Result {
	return command.Fail(command.MessageUnsupported)
}
