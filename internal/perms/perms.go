// Package perms defines the permissions used for files and directories written by mcporch.
package perms

import "os"

const (
	// RegularFile is used for the servers file, settings and logs (0644).
	RegularFile os.FileMode = 0o644

	// SecureFile is used for a servers file whose descriptors carry environment values,
	// which may be resolved secrets (0600).
	SecureFile os.FileMode = 0o600

	// RegularDir is used for generated documentation directories (0755).
	RegularDir os.FileMode = 0o755
)
