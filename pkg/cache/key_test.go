package cache

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{name: "products", key: KeyProductsAll, want: "products_all"},
		{name: "new arrivals", key: KeyNewArrivals, want: "new_arrivals"},
		{name: "time sale", key: KeyTimeSale, want: "time_sale"},
		{name: "zero value", key: Key(0), want: "key(0)"},
		{name: "out of range", key: Key(200), want: "key(200)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("Key.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestKeys_Unique ensures no two registered resources share a stored name
func TestKeys_Unique(t *testing.T) {
	keys := Keys()
	if len(keys) != 3 {
		t.Fatalf("len(Keys()) = %d, want 3", len(keys))
	}

	seen := make(map[string]Key)
	for _, k := range keys {
		if !k.Valid() {
			t.Errorf("registered key %d is not valid", k)
		}
		if prev, dup := seen[k.String()]; dup {
			t.Errorf("keys %d and %d share name %q", prev, k, k.String())
		}
		seen[k.String()] = k
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		input   string
		want    Key
		wantErr bool
	}{
		{input: "products_all", want: KeyProductsAll},
		{input: "NEW_ARRIVALS", want: KeyNewArrivals},
		{input: "  time_sale ", want: KeyTimeSale},
		{input: "cart", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseKey(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKey(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownKey) {
					t.Errorf("ParseKey(%q) error = %v, want ErrUnknownKey", tt.input, err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseKey(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestKey_TextRoundTrip(t *testing.T) {
	data, err := json.Marshal(map[string]Key{"key": KeyTimeSale})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"key":"time_sale"}` {
		t.Errorf("Marshal = %s, want {\"key\":\"time_sale\"}", data)
	}

	var decoded struct {
		Key Key `json:"key"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.Key != KeyTimeSale {
		t.Errorf("decoded key = %v, want %v", decoded.Key, KeyTimeSale)
	}

	if _, err := json.Marshal(Key(99)); err == nil {
		t.Error("Marshal of unregistered key should fail")
	}
}

func TestStorageName(t *testing.T) {
	got := storageName(DefaultNamespace, KeyNewArrivals)
	if got != "storefront:cache:new_arrivals" {
		t.Errorf("storageName() = %v, want storefront:cache:new_arrivals", got)
	}
}
