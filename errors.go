package lfq

import (
	"errors"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates the operation cannot proceed immediately.
//
// For Enqueue: the queue is full (backpressure)
// For Dequeue: the queue is empty (no data available)
//
// ErrWouldBlock is a control flow signal, not a failure. The caller should
// retry the operation later (with backoff or yield) rather than propagating
// the error.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency.
var ErrWouldBlock = iox.ErrWouldBlock

// ErrClosed indicates the counterpart side of a queue has closed and no
// further progress is possible. Unlike ErrWouldBlock it is terminal: a
// retry will never succeed.
//
// iox has no "closed" semantic to delegate to (the components it was built
// for are all bounded and never close), so ErrClosed is a local sentinel
// following the same errors.Is-wrapped-predicate shape as IsWouldBlock.
var ErrClosed = errors.New("lfq: closed")

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsClosed reports whether err is ErrClosed or wraps it.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Delegates to [iox.IsSemantic], and also reports true for ErrClosed.
func IsSemantic(err error) bool {
	return iox.IsSemantic(err) || IsClosed(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}
