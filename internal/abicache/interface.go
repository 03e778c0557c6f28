package abicache

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Interface is a resolved contract interface. It is shared read-only by every
// registry entry that references the address.
type Interface struct {
	Address common.Address
	ABI     abi.ABI
	Raw     []byte
}

// Parse builds an Interface from raw ABI JSON. source names where raw came from
// and is only used in the error.
func Parse(address common.Address, raw []byte, source string) (*Interface, error) {
	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return nil, &FormatError{Address: address, Source: source, Err: err}
	}
	return &Interface{
		Address: address,
		ABI:     parsed,
		Raw:     append([]byte(nil), raw...),
	}, nil
}

// MethodBySelector returns the method whose 4-byte ID equals selector.
func (i *Interface) MethodBySelector(selector [4]byte) (*abi.Method, bool) {
	method, err := i.ABI.MethodById(selector[:])
	if err != nil {
		return nil, false
	}
	return method, true
}

// Selectors returns the ID of every declared method keyed by canonical signature.
func (i *Interface) Selectors() map[string][4]byte {
	out := make(map[string][4]byte, len(i.ABI.Methods))
	for _, method := range i.ABI.Methods {
		var sel [4]byte
		copy(sel[:], method.ID)
		out[method.Sig] = sel
	}
	return out
}

// Signatures returns the canonical signatures of every declared method in sorted order.
func (i *Interface) Signatures() []string {
	sigs := make([]string, 0, len(i.ABI.Methods))
	for _, method := range i.ABI.Methods {
		sigs = append(sigs, method.Sig)
	}
	sort.Strings(sigs)
	return sigs
}
