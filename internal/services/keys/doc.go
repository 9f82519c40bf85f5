// Package keys owns the device's Report Authorization Keys.
//
// Exactly one key is current at a time. Rotation retires the current key,
// which stays available for verification until its acceptance window ends,
// and creates a fresh one; both changes land in one keyring write. The
// broadcast token for a moment in time comes from the current key's ratchet
// at the index for that moment, and the ratchet cursor only moves forward.
//
// The first key is created under a passphrase that must pass a basic
// strength policy; later keys are sealed under the same passphrase.
package keys
