package types

// KeyID identifies a RAK by a short fingerprint of its verification key.
type KeyID string

// String returns the string form of the identifier.
func (id KeyID) String() string { return string(id) }

// ReportID identifies a report by the digest of its signed bytes.
type ReportID string

// String returns the string form of the identifier.
func (id ReportID) String() string { return string(id) }

// AlertID uniquely identifies an alert shown to the user.
type AlertID string

// String returns the string form of the identifier.
func (id AlertID) String() string { return string(id) }
