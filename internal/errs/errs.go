// Package errs provides the error taxonomy for a processing run. Row-local
// errors are recorded on the row and the run continues; run-fatal errors abort
// the remaining rows and surface to the HTTP caller.
package errs

import (
	cr "github.com/cockroachdb/errors"
)

var (
	// ErrMalformedTime - a row's date/time fields could not be parsed. Row-local.
	ErrMalformedTime = cr.New("malformed date/time")

	// ErrAuth - the access-control provider rejected the client credentials.
	// Run-fatal: without a token no further issuance is possible.
	ErrAuth = cr.New("access token request failed")

	// ErrIssuance - the provider rejected one PIN request. Row-local.
	ErrIssuance = cr.New("PIN issuance failed")

	// ErrSheetAccess - reading or writing the worksheet failed. Run-fatal:
	// without reliable sheet access the report cannot be trusted.
	ErrSheetAccess = cr.New("sheet access failed")
)

func New(msg string) error {
	return cr.New(msg)
}

func Newf(format string, args ...any) error {
	return cr.Newf(format, args...)
}

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Wrap(err, msg)
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return cr.Wrapf(err, format, args...)
}

// Mark associates err with a taxonomy sentinel so callers can classify it
// with Is without losing the underlying cause.
func Mark(err error, mark error) error {
	if err == nil {
		return mark
	}
	return cr.Mark(err, mark)
}

func Is(err error, ref error) bool {
	return cr.Is(err, ref)
}
