// Package dbmanager owns the named SQLite databases guests reach through
// the sqlite capability.
//
// A name is created on first use. Every Execute is followed by a full
// snapshot (VACUUM INTO) saved under the name in a CheckpointStore,
// replacing the previous one, so a restarted process resumes from the last
// successful statement. Each handle has its own mutex; one capability call
// runs atomically against its checkpoint and no lock is held between calls.
//
// Query results are returned with every cell stringified (see Stringify).
package dbmanager
