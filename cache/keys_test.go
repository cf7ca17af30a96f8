package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uintPtr(v uint) *uint { return &v }

func mustDerive(t *testing.T, serviceID uint, tenantID *uint, userID uint, params map[string]any) string {
	t.Helper()
	key, err := DeriveKey(serviceID, tenantID, userID, params)
	require.NoError(t, err)
	return key
}

func TestDeriveKeyDeterministic(t *testing.T) {
	params := map[string]any{"cr_id": "1010123456", "language": "ar"}

	first := mustDerive(t, 3, uintPtr(7), 42, params)
	second := mustDerive(t, 3, uintPtr(7), 42, params)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64) // sha256 hex
}

func TestDeriveKeyIgnoresParamOrder(t *testing.T) {
	// Maps carry no order in Go, so build nested params where serialization
	// order could differ and confirm canonicalization holds.
	a := map[string]any{
		"language": "ar",
		"filters":  map[string]any{"year": 2024, "active": true},
		"cr_id":    "1010123456",
	}
	b := map[string]any{
		"cr_id":    "1010123456",
		"filters":  map[string]any{"active": true, "year": 2024},
		"language": "ar",
	}

	assert.Equal(t, mustDerive(t, 3, uintPtr(7), 42, a), mustDerive(t, 3, uintPtr(7), 42, b))
}

func TestDeriveKeySensitivity(t *testing.T) {
	base := mustDerive(t, 3, uintPtr(7), 42, map[string]any{"cr_id": "1010123456"})

	assert.NotEqual(t, base, mustDerive(t, 4, uintPtr(7), 42, map[string]any{"cr_id": "1010123456"}), "service change")
	assert.NotEqual(t, base, mustDerive(t, 3, uintPtr(8), 42, map[string]any{"cr_id": "1010123456"}), "tenant change")
	assert.NotEqual(t, base, mustDerive(t, 3, uintPtr(7), 43, map[string]any{"cr_id": "1010123456"}), "user change")
	assert.NotEqual(t, base, mustDerive(t, 3, uintPtr(7), 42, map[string]any{"cr_id": "1010999999"}), "param value change")
	assert.NotEqual(t, base, mustDerive(t, 3, uintPtr(7), 42, nil), "params dropped")
}

func TestDeriveKeyGlobalTenantMarker(t *testing.T) {
	// A management caller (no tenant) must never collide with any tenant.
	global := mustDerive(t, 3, nil, 42, nil)
	tenant := mustDerive(t, 3, uintPtr(0), 42, nil)

	assert.NotEqual(t, global, tenant)
}

func TestDeriveKeyNilParamsEqualsEmpty(t *testing.T) {
	assert.Equal(t,
		mustDerive(t, 3, uintPtr(7), 42, nil),
		mustDerive(t, 3, uintPtr(7), 42, map[string]any{}))
}

func TestDeriveKeyRejectsUnserializableParams(t *testing.T) {
	// A params value json cannot encode must error out, never alias the
	// no-params fingerprint.
	_, err := DeriveKey(3, uintPtr(7), 42, map[string]any{"bad": make(chan int)})
	assert.Error(t, err)
}
