// Package faults defines the node's error taxonomy: which failures are
// silent per-record rejections, which mean the chain is temporarily
// unreachable, and which are fatal at startup or during a run.
package faults

import "errors"

// StructuralReject marks a malformed OPR, malformed transaction entry,
// missing/bad signature, or balance-overdrawing transaction. Callers log
// and drop the offending record; a StructuralReject is never fatal.
var StructuralReject = errors.New("faults: structural reject")

// ChainUnavailable marks a failure reaching the external chain adapter
// (network failure, timeout, node restart). The driver sleeps and
// retries; read-side RPCs surface this as the application error code.
var ChainUnavailable = errors.New("faults: chain unavailable")

// ConfigurationFault marks an unknown network, missing burn address, or
// unparsable constant — fatal at startup.
var ConfigurationFault = errors.New("faults: configuration fault")

// StorageFault marks a KV read/write error. Fatal: the driver must exit
// rather than risk advancing past a height with partial state.
var StorageFault = errors.New("faults: storage fault")

// Wrap annotates err with msg and associates it with one of the sentinel
// categories above via errors.Is.
func Wrap(category error, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &fault{category: category, msg: msg, err: err}
}

type fault struct {
	category error
	msg      string
	err      error
}

func (f *fault) Error() string {
	if f.msg == "" {
		return f.err.Error()
	}
	return f.msg + ": " + f.err.Error()
}

func (f *fault) Unwrap() []error {
	return []error{f.category, f.err}
}
