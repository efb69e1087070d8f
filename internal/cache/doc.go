// Package cache holds directory listings fetched from the archive source, keyed
// by archive.Locator. Records are replaced rather than mutated, age out after a
// configurable TTL, and are reclaimed least-recently-used once the entry cap is
// reached. Concurrent misses for the same locator share a single upstream load,
// so the contents resolver never issues duplicate requests for one directory.
package cache
