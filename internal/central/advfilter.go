package central

// Advertising data field types that carry 16-bit service UUID lists.
const (
	adTypeUUID16Incomplete = 0x02 // Incomplete List of 16-bit Service Class UUIDs
	adTypeUUID16Complete   = 0x03 // Complete List of 16-bit Service Class UUIDs
)

// AdvertisesService16 reports whether an advertisement payload lists the
// given 16-bit service UUID. The payload is consecutive (length, type, data)
// fields; only the 16-bit UUID list fields are examined, each 2-byte slot is
// compared in little-endian order, and the first match wins. A field length
// that would run past the end of the buffer is clamped rather than read out
// of bounds; a zero field length ends the walk (trailing padding).
func AdvertisesService16(payload []byte, uuid uint16) bool {
	lo, hi := byte(uuid), byte(uuid>>8)
	for i := 0; i+1 < len(payload); {
		fieldLen := int(payload[i])
		if fieldLen == 0 {
			return false
		}
		end := i + 1 + fieldLen
		if end > len(payload) {
			end = len(payload)
		}
		if t := payload[i+1]; t == adTypeUUID16Incomplete || t == adTypeUUID16Complete {
			for slot := payload[i+2 : end]; len(slot) >= 2; slot = slot[2:] {
				if slot[0] == lo && slot[1] == hi {
					return true
				}
			}
		}
		i = end
	}
	return false
}
