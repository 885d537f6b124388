package auth

import "golang.org/x/crypto/bcrypt"

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

const dummyPassword = "catalog-service:no-such-user"

// PasswordHasher produces salted bcrypt hashes and verifies passwords
// against them.
type PasswordHasher struct {
	cost  int
	dummy []byte
}

// NewPasswordHasher builds a hasher with the given bcrypt cost. Out of range
// costs fall back to bcrypt.DefaultCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte(dummyPassword), cost)
	return &PasswordHasher{cost: cost, dummy: dummy}
}

// Hash hashes a plaintext password with a fresh random salt.
func (h *PasswordHasher) Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether plain matches hashed. A malformed or empty hash is
// simply a mismatch.
func (h *PasswordHasher) Verify(plain, hashed string) bool {
	if hashed == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

// VerifyNothing spends the same work as Verify against a fixed hash so that a
// lookup miss costs as much as a wrong password.
func (h *PasswordHasher) VerifyNothing(plain string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plain))
}
