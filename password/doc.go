// Package password implements argon2id credential hashing with PHC-format
// encoding, constant-time verification, and parameter-upgrade detection.
package password
