package service

// PasswordService hashes and verifies passwords. Encoded hashes are
// self-describing so parameters can change without a migration.
type PasswordService interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) bool
}
