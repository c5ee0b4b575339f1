package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/invisicipher/secure-image-backend/interfaces"
)

// DefaultAppName is the application name embedded in challenge messages.
const DefaultAppName = "InvisiCipher"

// maxNonce bounds the random nonce embedded in challenge messages.
var maxNonce = big.NewInt(1_000_000)

type challengeEntry struct {
	message  string
	issuedAt time.Time
}

// MemoryChallengeStore is a mutex-guarded in-memory challenge map keyed by
// wallet address. A Put replaces any prior unconsumed challenge for the same
// address (last writer wins); Take is an atomic get-and-delete (first
// consumer wins). Entries older than the configured TTL are treated as
// absent; a zero TTL disables expiry.
type MemoryChallengeStore struct {
	mu      sync.Mutex
	entries map[interfaces.WalletAddress]challengeEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryChallengeStore creates a challenge store with the given lifetime.
func NewMemoryChallengeStore(ttl time.Duration) *MemoryChallengeStore {
	return &MemoryChallengeStore{
		entries: make(map[interfaces.WalletAddress]challengeEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put stores a challenge message for the address, replacing any prior entry.
func (s *MemoryChallengeStore) Put(address interfaces.WalletAddress, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[address] = challengeEntry{message: message, issuedAt: s.now()}
}

// Take removes and returns the outstanding challenge for the address.
// Expired entries are removed and reported as absent.
func (s *MemoryChallengeStore) Take(address interfaces.WalletAddress) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[address]
	if !ok {
		return "", false
	}
	delete(s.entries, address)

	if s.ttl > 0 && s.now().Sub(entry.issuedAt) > s.ttl {
		return "", false
	}
	return entry.message, true
}

// Issuer generates sign-in challenges and hands them to a ChallengeStore.
type Issuer struct {
	store   interfaces.ChallengeStore
	appName string
	now     func() time.Time
}

// NewIssuer creates a challenge issuer. An empty appName falls back to
// DefaultAppName.
func NewIssuer(store interfaces.ChallengeStore, appName string) *Issuer {
	if appName == "" {
		appName = DefaultAppName
	}
	return &Issuer{store: store, appName: appName, now: time.Now}
}

// Issue generates a fresh challenge for the address and stores it, replacing
// any prior unconsumed challenge. The nonce is drawn from crypto/rand; the
// commitment's unforgeability depends on the nonce being unpredictable.
func (i *Issuer) Issue(address interfaces.WalletAddress) (string, error) {
	nonce, err := rand.Int(rand.Reader, maxNonce)
	if err != nil {
		return "", fmt.Errorf("failed to generate challenge nonce: %w", err)
	}

	message := fmt.Sprintf("Authenticate with %s: %d-%d", i.appName, nonce, i.now().UnixMilli())
	i.store.Put(address, message)
	return message, nil
}

// Consume atomically removes and returns the outstanding challenge.
func (i *Issuer) Consume(address interfaces.WalletAddress) (string, bool) {
	return i.store.Take(address)
}
