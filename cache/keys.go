package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
)

// globalTenantMarker stands in for the tenant segment when a management-level
// caller has no tenant, so management lookups never collide with tenant ones.
const globalTenantMarker = "global"

// DeriveKey produces the stable fingerprint for one logical cache slot:
// sha256 over service id, tenant marker, user id and the canonical (key-sorted)
// JSON form of the request params, joined by a fixed delimiter.
//
// Identical logical inputs always hash identically: encoding/json marshals
// maps with sorted keys at every nesting level, and nil params collapse to the
// canonical empty object. Params that cannot be serialized are rejected
// rather than silently aliased to the no-params fingerprint. Pure function,
// no I/O.
func DeriveKey(serviceID uint, tenantID *uint, userID uint, params map[string]any) (string, error) {
	canonical := []byte("{}")
	if len(params) > 0 {
		b, err := json.Marshal(params)
		if err != nil {
			return "", fmt.Errorf("cache: params not serializable: %w", err)
		}
		canonical = b
	}

	tenant := globalTenantMarker
	if tenantID != nil {
		tenant = strconv.FormatUint(uint64(*tenantID), 10)
	}

	h := sha256.New()
	h.Write([]byte(strconv.FormatUint(uint64(serviceID), 10)))
	h.Write([]byte{'|'})
	h.Write([]byte(tenant))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatUint(uint64(userID), 10)))
	h.Write([]byte{'|'})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}
