package crawlerr

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Kind classifies crawler failures
type Kind int

const (
	// KindAccess is a failure to read or interpret a remote resource
	KindAccess Kind = iota
	// KindMultipleAccess aggregates several access failures
	KindMultipleAccess
	// KindSystem is an internal failure unrelated to the resource
	KindSystem
	// KindSitemaps is a malformed sitemap document
	KindSitemaps
	// KindConfig is an invalid configuration
	KindConfig
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindAccess:
		return "access"
	case KindMultipleAccess:
		return "multiple_access"
	case KindSystem:
		return "system"
	case KindSitemaps:
		return "sitemaps"
	case KindConfig:
		return "config"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the single error type raised by the crawler core.
// Causes is never nil; an error built without causes carries an empty slice.
type Error struct {
	Kind   Kind
	Msg    string
	Causes []error
}

// New creates an error of the given kind
func New(kind Kind, msg string, causes ...error) *Error {
	cs := make([]error, 0, len(causes))
	for _, c := range causes {
		if c != nil {
			cs = append(cs, c)
		}
	}
	return &Error{Kind: kind, Msg: msg, Causes: cs}
}

// NewAccess creates an access error wrapping cause
func NewAccess(msg string, cause error) *Error {
	return New(KindAccess, msg, cause)
}

// NewMultiple aggregates access failures
func NewMultiple(msg string, causes []error) *Error {
	return New(KindMultipleAccess, msg, causes...)
}

// NewSystem creates a system error
func NewSystem(msg string, cause error) *Error {
	return New(KindSystem, msg, cause)
}

// NewSitemaps creates a sitemap format error
func NewSitemaps(msg string, cause error) *Error {
	return New(KindSitemaps, msg, cause)
}

func (e *Error) Error() string {
	if len(e.Causes) == 0 {
		return e.Msg
	}
	if len(e.Causes) == 1 {
		return fmt.Sprintf("%s: %v", e.Msg, e.Causes[0])
	}
	return fmt.Sprintf("%s (%d causes)", e.Msg, len(e.Causes))
}

// Unwrap exposes every cause to errors.Is and errors.As
func (e *Error) Unwrap() []error {
	return e.Causes
}

// Format prints each cause on its own line with %+v
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			io.WriteString(s, e.Kind.String()+": "+e.Msg)
			for i, c := range e.Causes {
				fmt.Fprintf(s, "\nCaused %d: %+v", i+1, c)
			}
			return
		}
		io.WriteString(s, e.Error())
	case 's':
		io.WriteString(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

// IsKind reports whether any error in err's tree is a crawler error of kind
func IsKind(err error, kind Kind) bool {
	var ce *Error
	if !errors.As(err, &ce) {
		return false
	}
	if ce.Kind == kind {
		return true
	}
	for _, c := range ce.Causes {
		if IsKind(c, kind) {
			return true
		}
	}
	return false
}

// Join flattens errs into a multiple-access error, or returns nil when errs has no
// non-nil entries. A single error is returned as-is.
func Join(msg string, errs []error) error {
	var kept []error
	for _, err := range errs {
		if err != nil {
			kept = append(kept, err)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return NewMultiple(msg, kept)
}

// Summary lists the causes of err, one per line
func Summary(err error) string {
	var ce *Error
	if !errors.As(err, &ce) || len(ce.Causes) == 0 {
		return err.Error()
	}
	lines := make([]string, 0, len(ce.Causes)+1)
	lines = append(lines, ce.Msg)
	for _, c := range ce.Causes {
		lines = append(lines, "  - "+c.Error())
	}
	return strings.Join(lines, "\n")
}
