package vm

import (
	"fmt"

	"github.com/seloria/seloria/core"
)

// Handler applies one op's effects to ctx.SP, returning an error to abort
// and roll back the entire enclosing transaction.
type Handler func(ctx *Context, op *core.Op) error

var registry = make(map[core.OpType]Handler)

// Register installs h as the handler for opType. Called from each
// vm/modules/* package's init(); a duplicate registration is a programming
// error and panics at import time rather than silently shadowing.
func Register(opType core.OpType, h Handler) {
	if _, dup := registry[opType]; dup {
		panic(fmt.Sprintf("vm: duplicate handler registered for %s", opType))
	}
	registry[opType] = h
}

func lookup(opType core.OpType) (Handler, bool) {
	h, ok := registry[opType]
	return h, ok
}
