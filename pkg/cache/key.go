package cache

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownKey is returned by ParseKey for names outside the registry.
var ErrUnknownKey = errors.New("unknown cache key")

// Key identifies one logical cached resource.
// The set of keys is closed; call sites use the constants below.
type Key uint8

const (
	// KeyProductsAll holds the full product catalog.
	KeyProductsAll Key = iota + 1

	// KeyNewArrivals holds the new arrivals subset of the catalog.
	KeyNewArrivals

	// KeyTimeSale holds the current time sale promotion.
	KeyTimeSale

	keySentinel
)

var keyNames = [...]string{
	KeyProductsAll: "products_all",
	KeyNewArrivals: "new_arrivals",
	KeyTimeSale:    "time_sale",
}

// Valid reports whether k belongs to the registry.
func (k Key) Valid() bool {
	return k > 0 && k < keySentinel
}

// String returns the stable name the key is stored under.
//
// Example:
//
//	KeyNewArrivals.String() == "new_arrivals"
func (k Key) String() string {
	if !k.Valid() {
		return fmt.Sprintf("key(%d)", uint8(k))
	}
	return keyNames[k]
}

// Keys returns every registered key in declaration order.
func Keys() []Key {
	keys := make([]Key, 0, int(keySentinel)-1)
	for k := KeyProductsAll; k < keySentinel; k++ {
		keys = append(keys, k)
	}
	return keys
}

// ParseKey maps a stored name back to its Key.
// Only used at boundaries that receive names as text (admin API, tooling).
func ParseKey(name string) (Key, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, k := range Keys() {
		if keyNames[k] == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKey, name)
}

// MarshalText encodes the key as its stored name.
func (k Key) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKey, uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a stored name through ParseKey.
func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// storageName builds the backend name for key under namespace.
// Format: namespace:key
func storageName(namespace string, k Key) string {
	return namespace + ":" + k.String()
}
