// Package cryptoutil holds the integrity primitives used when publishing and
// loading content snapshots: sha256 helpers, constant-time hash comparison
// and KMS-backed signing and verification.
package cryptoutil
