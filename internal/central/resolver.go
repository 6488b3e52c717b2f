package central

// Resolver accumulates the handles of the thermometer service, the
// temperature measurement characteristic, and its client configuration
// descriptor as discovery events arrive. The zero value is ready to use.
//
// ObserveAttribute relies on attributes arriving in ascending handle order:
// the CCC descriptor that belongs to a characteristic is the nearest 0x2902
// after that characteristic's handle, so the first 0x2902 seen after the
// measurement characteristic is the one to record.
type Resolver struct {
	svc     HandleRange
	svcSet  bool
	measure uint16
	measSet bool
	ccc     uint16
	cccSet  bool
}

// ObserveServiceGroup records the first group whose UUID is the Health
// Thermometer service. Later matching groups are ignored; a well-behaved
// peripheral exposes exactly one instance.
func (r *Resolver) ObserveServiceGroup(uuid []byte, rng HandleRange) {
	if r.svcSet || !uuidIs16(uuid, ServiceHealthThermometer) {
		return
	}
	r.svc = rng
	r.svcSet = true
}

// ObserveAttribute records the measurement characteristic value handle and,
// once that is known, the first client configuration descriptor after it.
func (r *Resolver) ObserveAttribute(uuid []byte, handle uint16) {
	switch {
	case !r.measSet && uuidIs16(uuid, CharTemperatureMeasurement):
		r.measure = handle
		r.measSet = true
	case r.measSet && !r.cccSet && uuidIs16(uuid, DescClientCharacteristicConfig):
		r.ccc = handle
		r.cccSet = true
	}
}

// ServiceResolved reports whether a service handle range has been recorded.
func (r *Resolver) ServiceResolved() bool { return r.svcSet }

// CharacteristicResolved reports whether both the measurement and CCC
// handles have been recorded.
func (r *Resolver) CharacteristicResolved() bool { return r.measSet && r.cccSet }

// ServiceRange returns the recorded service handle range.
func (r *Resolver) ServiceRange() (HandleRange, bool) { return r.svc, r.svcSet }

// MeasurementHandle returns the recorded measurement characteristic handle.
func (r *Resolver) MeasurementHandle() (uint16, bool) { return r.measure, r.measSet }

// CCCHandle returns the recorded client configuration descriptor handle.
func (r *Resolver) CCCHandle() (uint16, bool) { return r.ccc, r.cccSet }

// uuidIs16 reports whether uuid is the 2-byte little-endian form of v.
func uuidIs16(uuid []byte, v uint16) bool {
	return len(uuid) == 2 && uuid[0] == byte(v) && uuid[1] == byte(v>>8)
}
