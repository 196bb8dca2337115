package errors

import stdErrors "errors"

// ErrKeyNotFound is returned by Remove and UpdateIf when the target key
// has no entry in the index. Callers distinguish it from other failures
// with errors.Is.
var ErrKeyNotFound = stdErrors.New("grausdb: key not found")

// ErrPredicateNotSatisfied is returned by UpdateIf when a supplied
// predicate evaluates to false. No mutation is performed; the caller can
// tell this apart from a hard failure with errors.Is.
var ErrPredicateNotSatisfied = stdErrors.New("grausdb: predicate not satisfied")

// IsCorruptLog reports whether err (or one wrapped inside it) carries one
// of the corruption-flavored codes: a record that couldn't be decoded at a
// non-tail position, or a location that doesn't decode to the expected key.
func IsCorruptLog(err error) bool {
	se, ok := AsStorageError(err)
	if ok && se.Code() == ErrorCodeSegmentCorrupted {
		return true
	}
	if ie, ok := AsIndexError(err); ok && ie.Code() == ErrorCodeIndexCorrupted {
		return true
	}
	return false
}

// IsIO reports whether err is a StorageError carrying a plain I/O failure
// code (as opposed to a corruption finding).
func IsIO(err error) bool {
	se, ok := AsStorageError(err)
	if !ok {
		return false
	}
	switch se.Code() {
	case ErrorCodeIO, ErrorCodePermissionDenied, ErrorCodeDiskFull, ErrorCodeFilesystemReadonly,
		ErrorCodeHeaderReadFailure, ErrorCodePayloadReadFailure:
		return true
	}
	return false
}
