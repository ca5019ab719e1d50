package emu

import (
	"fmt"

	"github.com/pkg/errors"
)

// FatalKind classifies a fatal emulation error.
type FatalKind int

// Fatal error kinds.
const (
	// UnknownOpcode is an opcode no handler accepts, or a form the
	// instruction set forbids.
	UnknownOpcode FatalKind = iota
	// IllegalPrivilege is a saved-status access from User or System mode.
	IllegalPrivilege
	// UnsupportedHardware is a hardware feature this core does not model.
	UnsupportedHardware
	// InternalError is a state the core should never reach.
	InternalError
)

func (k FatalKind) String() string {
	switch k {
	case UnknownOpcode:
		return "unknown opcode"
	case IllegalPrivilege:
		return "illegal privilege operation"
	case UnsupportedHardware:
		return "unsupported hardware mode"
	case InternalError:
		return "internal error"
	}
	return "fatal"
}

// FatalError stops emulation. Dump holds the register state captured where the
// error was detected.
type FatalError struct {
	Kind   FatalKind
	Addr   uint32
	Opcode uint32
	Thumb  bool
	Detail string
	Dump   string
}

func (e *FatalError) Error() string {
	width := 8
	if e.Thumb {
		width = 4
	}
	return fmt.Sprintf("%s at 0x%08x (opcode 0x%0*x): %s", e.Kind, e.Addr, width, e.Opcode, e.Detail)
}

// IsFatal reports whether err is a FatalError of the given kind.
func IsFatal(err error, kind FatalKind) bool {
	fe, ok := errors.Cause(err).(*FatalError)
	return ok && fe.Kind == kind
}

// AsFatal returns the FatalError behind err, if any.
func AsFatal(err error) (*FatalError, bool) {
	fe, ok := errors.Cause(err).(*FatalError)
	return fe, ok
}

func (e *Emulator) fatal(kind FatalKind, format string, args ...interface{}) error {
	return errors.WithStack(&FatalError{
		Kind:   kind,
		Addr:   e.curPC,
		Opcode: e.curOp,
		Thumb:  e.regFile.Thumb(),
		Detail: fmt.Sprintf(format, args...),
		Dump:   e.regFile.Dump(),
	})
}
