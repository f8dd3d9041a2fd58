// Package errs holds the error kinds returned by the resolvers.
package errs

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

var (
	ErrNetworkNotFound      = errors.New("network not found")
	ErrAddressNotFound      = errors.New("address not found")
	ErrNoCandidates         = errors.New("no candidates")
	ErrVIPNotConfigured     = errors.New("vip not configured")
	ErrServiceNotConfigured = errors.New("service not configured")
	ErrUnsupportedVendor    = errors.New("unsupported database vendor")
)

// Error is a resolution failure of a known kind. Quiet errors are not logged
// by Raise; callers that probe speculatively set it.
type Error struct {
	Kind  error
	Msg   string
	Quiet bool
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

// New builds an Error of the given kind.
func New(kind error, quiet bool, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Quiet: quiet}
}

// Raise logs err at error level unless it is quiet and returns it.
func Raise(log logrus.FieldLogger, err *Error) error {
	if !err.Quiet && log != nil {
		log.Error(err.Msg)
	}
	return err
}

// IsQuiet reports whether err is an Error flagged quiet.
func IsQuiet(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Quiet
}

// Resolution reports whether err is one of the resolver's own kinds, as
// opposed to a registry or transport failure.
func Resolution(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
