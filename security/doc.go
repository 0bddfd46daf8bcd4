// Package security guards the file surface of the tool boundary.
//
// Roots holds the directories file operations may touch. Paths are made
// absolute and symlink-resolved before the containment check, and an empty
// allow-list rejects everything, so the default posture is closed.
//
//	roots, err := security.NewRoots("/var/data")
//	path, err := roots.Validate(req.Path) // resolved form, or PATH_SECURITY
//
// TLSConfig holds the server certificate settings, including optional
// mutual TLS via a client CA.
package security
