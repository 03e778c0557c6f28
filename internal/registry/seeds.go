package registry

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// FactorySeed describes a factory to resolve at startup.
type FactorySeed struct {
	Address common.Address
	Name    string
	Version uint8
}

// RouterSeed describes a router and the factories it delegates to.
type RouterSeed struct {
	Address   common.Address
	Name      string
	Version   uint8
	Factories []common.Address
}

// Seeds is the fixed startup catalog.
type Seeds struct {
	Factories []FactorySeed
	Routers   []RouterSeed
}

// Validate checks address uniqueness and that every factory reference is declared.
func (s Seeds) Validate() error {
	if len(s.Routers) == 0 {
		return fmt.Errorf("at least one router seed is required")
	}

	factories := make(map[common.Address]struct{}, len(s.Factories))
	for _, f := range s.Factories {
		if _, ok := factories[f.Address]; ok {
			return fmt.Errorf("duplicate factory address: %s", f.Address.Hex())
		}
		factories[f.Address] = struct{}{}
	}

	routers := make(map[common.Address]struct{}, len(s.Routers))
	for _, r := range s.Routers {
		if _, ok := routers[r.Address]; ok {
			return fmt.Errorf("duplicate router address: %s", r.Address.Hex())
		}
		routers[r.Address] = struct{}{}
		for _, f := range r.Factories {
			if _, ok := factories[f]; !ok {
				return fmt.Errorf("router %s references undeclared factory %s", r.Name, f.Hex())
			}
		}
	}
	return nil
}

// ParseAddress converts a hex string into an address. Mixed-case input must
// carry a valid EIP-55 checksum.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %s", input)
	}
	body := strings.TrimPrefix(strings.TrimPrefix(input, "0x"), "0X")
	if body != strings.ToLower(body) && body != strings.ToUpper(body) {
		mixed, err := common.NewMixedcaseAddressFromString("0x" + body)
		if err != nil {
			return common.Address{}, fmt.Errorf("invalid address: %s", input)
		}
		if !mixed.ValidChecksum() {
			return common.Address{}, fmt.Errorf("bad address checksum: %s", input)
		}
	}
	return common.HexToAddress(input), nil
}
