package identity

import "golang.org/x/crypto/bcrypt"

// Hasher wraps bcrypt credential hashing. The minimum plaintext length is a
// caller concern; the hasher accepts whatever it is given.
type Hasher struct {
	cost int
}

// NewHasher constructs a Hasher. A cost of 0 selects bcrypt.DefaultCost.
func NewHasher(cost int) Hasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return Hasher{cost: cost}
}

// Hash derives a salted one-way hash from the plaintext.
func (h Hasher) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches the stored hash. Any mismatch or
// malformed hash yields false, never an error.
func (h Hasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
