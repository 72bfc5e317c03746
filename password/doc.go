// Package password implements argon2id hashing with PHC-formatted storage
// strings and rehash detection for cost upgrades.
package password
