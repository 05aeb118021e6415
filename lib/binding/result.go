package binding

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/dBind/lib/store"
)

// Result is the domain outcome of a binding operation. Results are not errors,
// every value is a regular answer the caller branches on.
type Result uint8

const (
	ResultSent         Result = iota + 1 // new binding created, code issued
	ResultResent                         // pending binding exists, a fresh code was issued
	ResultSuccess                        // verify or update applied (or update was a no-op rename)
	ResultInvalidState                   // operation not allowed in the current state
	ResultInvalidCode                    // verification code does not match
	ResultInvalidUser                    // channel id is bound to another user
	ResultNotFound                       // no binding for the old channel id
)

var resultNames = map[Result]string{
	ResultSent:         "SENT",
	ResultResent:       "RESENT",
	ResultSuccess:      "SUCCESS",
	ResultInvalidState: "INVALID_STATE",
	ResultInvalidCode:  "INVALID_CODE",
	ResultInvalidUser:  "INVALID_USER",
	ResultNotFound:     "NOT_FOUND",
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(r))
}

// ParseResult converts the wire name of a result back into a Result
func ParseResult(s string) (Result, error) {
	for r, name := range resultNames {
		if name == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown binding result %q", s)
}

func (r Result) MarshalText() ([]byte, error) {
	if _, ok := resultNames[r]; !ok {
		return nil, fmt.Errorf("cannot marshal unknown binding result %d", uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Result) UnmarshalText(text []byte) error {
	parsed, err := ParseResult(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrConflict is returned when a conditional write lost against a concurrent request
	// for the same channel id. The request can be resent as is.
	ErrConflict = store.NewError(store.RetCConflict, "binding was modified concurrently")

	// ErrInvalidArgument is returned when a required identifier is empty
	ErrInvalidArgument = errors.New("missing required argument")
)
