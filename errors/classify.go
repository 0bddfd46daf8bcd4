package errors

import (
	stderrors "errors"
	"io/fs"
	"net/http"
	"syscall"
)

// transientErrnos are kernel-level conditions worth retrying: the resource
// was busy or the call was interrupted, not missing or forbidden.
var transientErrnos = []syscall.Errno{
	syscall.EAGAIN,
	syscall.EBUSY,
	syscall.EINTR,
	syscall.ETIMEDOUT,
}

// ClassifyIO converts a raw I/O error into the taxonomy: interrupted, busy,
// and timed-out conditions become TRANSIENT_IO, everything else becomes
// PERMANENT_IO with the HTTP status matched to the cause. Cancellation
// passes through as CANCELLED and already-classified errors are returned
// unchanged. op names the failing operation ("open", "read", "write").
func ClassifyIO(op, path string, err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	if IsCancelled(err) {
		return Cancelled(op).WithCause(err).WithDetail("path", path)
	}
	for _, errno := range transientErrnos {
		if stderrors.Is(err, errno) {
			return TransientIO(op, path, err)
		}
	}
	switch {
	case stderrors.Is(err, fs.ErrNotExist):
		appErr := PermanentIO(op, path, err)
		appErr.HTTPStatus = http.StatusNotFound
		return appErr.WithDetail("reason", "not_found")
	case stderrors.Is(err, fs.ErrPermission):
		appErr := PermanentIO(op, path, err)
		appErr.HTTPStatus = http.StatusForbidden
		return appErr.WithDetail("reason", "permission")
	}
	return PermanentIO(op, path, err)
}
