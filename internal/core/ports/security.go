package ports

// PasswordHasher performs one-way credential hashing.
type PasswordHasher interface {
	// Hash returns a salted digest; repeated calls yield different strings.
	Hash(plaintext string) (string, error)
	// Verify reports whether plaintext matches hash. Malformed hashes fail closed.
	Verify(plaintext, hash string) bool
}

// TokenProvider issues and validates signed bearer tokens.
type TokenProvider interface {
	GenerateToken(identity string) (string, error)
	// ValidateToken returns the embedded subject or domain.ErrInvalidToken.
	ValidateToken(token string) (string, error)
}
