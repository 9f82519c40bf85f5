package keys

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
	"unicode"

	"tcncore/internal/crypto"
	"tcncore/internal/domain"
	"tcncore/internal/protocol/ratchet"
)

const (
	// minPassphraseLength defines the minimum number of characters required for a passphrase.
	minPassphraseLength = 12
)

var (
	// ErrWeakPassphrase is returned when the passphrase fails the strength policy.
	ErrWeakPassphrase = fmt.Errorf(
		"passphrase is too weak (must be at least %d characters and include upper, lower, "+
			"number, and symbol)",
		minPassphraseLength,
	)
)

// Policy holds the timing rules for keys and tokens.
type Policy struct {
	TokenInterval     time.Duration
	RotationPeriod    time.Duration
	AcceptanceWindow  time.Duration
	MaxHistoricalKeys int
}

// Service manages Report Authorization Keys using a backing store.
type Service struct {
	store  domain.KeyStore
	policy Policy
	log    *slog.Logger

	// mu serialises read-modify-write cycles on the keyring.
	mu sync.Mutex
}

// New returns a key service backed by the given store.
func New(s domain.KeyStore, policy Policy, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: s, policy: policy, log: log}
}

// Current returns the current key with its seed, creating the first key on
// first use.
func (s *Service) Current(passphrase string, now time.Time) (domain.ReportAuthorizationKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current(passphrase, now)
}

func (s *Service) current(passphrase string, now time.Time) (domain.ReportAuthorizationKey, error) {
	all, err := s.store.ListKeys()
	if err != nil {
		return domain.ReportAuthorizationKey{}, err
	}
	if cur, ok := currentOf(all); ok {
		return s.store.UnsealKey(passphrase, cur.ID)
	}
	if len(all) == 0 && !isSecurePassphrase(passphrase) {
		return domain.ReportAuthorizationKey{}, ErrWeakPassphrase
	}
	k, err := newKey(now)
	if err != nil {
		return domain.ReportAuthorizationKey{}, err
	}
	if err := s.store.StoreKeys(passphrase, k); err != nil {
		return domain.ReportAuthorizationKey{}, err
	}
	s.log.Info("report authorization key created", "key", k.ID)
	return k, nil
}

// Rotate retires the current key and returns a fresh one.
func (s *Service) Rotate(passphrase string, now time.Time) (domain.ReportAuthorizationKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rotate(passphrase, now)
}

func (s *Service) rotate(passphrase string, now time.Time) (domain.ReportAuthorizationKey, error) {
	all, err := s.store.ListKeys()
	if err != nil {
		return domain.ReportAuthorizationKey{}, err
	}
	cur, ok := currentOf(all)
	if !ok {
		return s.current(passphrase, now)
	}

	next, err := newKey(now)
	if err != nil {
		return domain.ReportAuthorizationKey{}, err
	}
	cur.RetiredAt = now.UTC()
	cur.ExpiresAt = now.UTC().Add(s.policy.AcceptanceWindow)
	if err := s.store.StoreKeys(passphrase, cur, next); err != nil {
		return domain.ReportAuthorizationKey{}, err
	}
	s.log.Info("report authorization key rotated", "retired", cur.ID, "current", next.ID)
	return next, nil
}

// RotateIfDue rotates when the current key is older than the rotation period.
func (s *Service) RotateIfDue(passphrase string, now time.Time) (domain.ReportAuthorizationKey, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.store.ListKeys()
	if err != nil {
		return domain.ReportAuthorizationKey{}, false, err
	}
	cur, ok := currentOf(all)
	if ok && (s.policy.RotationPeriod <= 0 || now.Sub(cur.CreatedAt) < s.policy.RotationPeriod) {
		k, err := s.store.UnsealKey(passphrase, cur.ID)
		return k, false, err
	}
	k, err := s.rotate(passphrase, now)
	return k, err == nil, err
}

// AllForVerification returns the verification keys of the current key and of
// every retired key still inside its acceptance window.
func (s *Service) AllForVerification(now time.Time) ([]domain.VerificationKey, error) {
	all, err := s.store.ListKeys()
	if err != nil {
		return nil, err
	}
	out := make([]domain.VerificationKey, 0, len(all))
	for _, k := range all {
		if !k.Expired(now) {
			out = append(out, k.VerificationKey)
		}
	}
	return out, nil
}

// NextToken returns the token to broadcast at now and its ratchet index. The
// index is derived from the time since the key was created; the stored
// cursor never moves backwards, even if the clock does.
func (s *Service) NextToken(passphrase string, now time.Time) (domain.Token, uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, err := s.current(passphrase, now)
	if err != nil {
		return domain.Token{}, 0, err
	}
	index := max(k.IndexAt(now, s.policy.TokenInterval), k.Cursor)

	m, err := crypto.DeriveRAK(k.Seed)
	if err != nil {
		return domain.Token{}, 0, err
	}
	defer m.Wipe()
	rt, err := ratchet.New(m.RatchetRoot[:], m.VerificationKey)
	if err != nil {
		return domain.Token{}, 0, err
	}
	tok := rt.Token(index)

	if index != k.Cursor {
		k.Cursor = index
		if err := s.store.StoreKeys(passphrase, k); err != nil {
			return domain.Token{}, 0, err
		}
	}
	return tok, index, nil
}

// MarkPublished records that the key's tokens before end have been reported.
func (s *Service) MarkPublished(id domain.KeyID, end uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.store.ListKeys()
	if err != nil {
		return err
	}
	for _, k := range all {
		if k.ID != id {
			continue
		}
		if end <= k.PublishedThrough {
			return nil
		}
		k.PublishedThrough = end
		return s.store.StoreKeys("", k)
	}
	return fmt.Errorf("mark published: unknown key %s", id)
}

// PruneExpired deletes keys past their acceptance window and trims retired
// history to the configured maximum, oldest first.
func (s *Service) PruneExpired(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.store.ListKeys()
	if err != nil {
		return 0, err
	}
	var drop []domain.KeyID
	var retired []domain.ReportAuthorizationKey
	for _, k := range all {
		switch {
		case k.Expired(now):
			drop = append(drop, k.ID)
		case k.Retired():
			retired = append(retired, k)
		}
	}
	if limit := s.policy.MaxHistoricalKeys; limit > 0 && len(retired) > limit {
		sort.Slice(retired, func(i, j int) bool { return retired[i].RetiredAt.Before(retired[j].RetiredAt) })
		for _, k := range retired[:len(retired)-limit] {
			drop = append(drop, k.ID)
		}
	}
	if len(drop) == 0 {
		return 0, nil
	}
	if err := s.store.DeleteKeys(drop...); err != nil {
		return 0, err
	}
	s.log.Info("report authorization keys pruned", "count", len(drop))
	return len(drop), nil
}

// Policy returns the timing rules the service was built with.
func (s *Service) Policy() Policy { return s.policy }

// Reportable returns every key still inside its acceptance window with its
// seed, oldest first. Retired keys are included so their past tokens can
// still be reported.
func (s *Service) Reportable(passphrase string, now time.Time) ([]domain.ReportAuthorizationKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.store.ListKeys()
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	out := make([]domain.ReportAuthorizationKey, 0, len(all))
	for _, meta := range all {
		if meta.Expired(now) {
			continue
		}
		k, err := s.store.UnsealKey(passphrase, meta.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

// List returns key metadata, oldest first. Seeds are never included.
func (s *Service) List() ([]domain.ReportAuthorizationKey, error) {
	all, err := s.store.ListKeys()
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return all, nil
}

// IsOwn reports whether vk belongs to one of this device's keys.
func (s *Service) IsOwn(vk domain.VerificationKey) (bool, error) {
	all, err := s.store.ListKeys()
	if err != nil {
		return false, err
	}
	for _, k := range all {
		if k.VerificationKey == vk {
			return true, nil
		}
	}
	return false, nil
}

// currentOf returns the newest key that has not been retired.
func currentOf(all []domain.ReportAuthorizationKey) (domain.ReportAuthorizationKey, bool) {
	var cur domain.ReportAuthorizationKey
	found := false
	for _, k := range all {
		if k.Retired() {
			continue
		}
		if !found || k.CreatedAt.After(cur.CreatedAt) {
			cur, found = k, true
		}
	}
	return cur, found
}

func newKey(now time.Time) (domain.ReportAuthorizationKey, error) {
	seed, err := crypto.NewSeed()
	if err != nil {
		return domain.ReportAuthorizationKey{}, err
	}
	vk, err := crypto.VerificationKeyFor(seed)
	if err != nil {
		return domain.ReportAuthorizationKey{}, err
	}
	return domain.ReportAuthorizationKey{
		ID:              crypto.KeyIDFor(vk),
		Seed:            seed,
		VerificationKey: vk,
		CreatedAt:       now.UTC(),
	}, nil
}

// isSecurePassphrase enforces a basic strength policy.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(passphrase) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}

// Compile-time assertion that Service implements domain.KeyService.
var _ domain.KeyService = (*Service)(nil)
