package abicache

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// LookupError reports that an interface could be read neither from the store
// nor from the lookup service.
type LookupError struct {
	Address common.Address
	Err     error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup interface %s: %v", e.Address.Hex(), e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// FormatError reports interface JSON that could not be parsed.
type FormatError struct {
	Address common.Address
	Source  string
	Err     error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("parse %s interface %s: %v", e.Source, e.Address.Hex(), e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

var errNoFetcher = errors.New("no lookup service configured")
