// Package pathid extracts the platform-native stable identity of a live
// file: the inode number on Unix, the file index on Windows. The move
// correlator treats these as the single highest-confidence signal that two
// filesystem events concern the same underlying entity.
package pathid

// ID is a platform-native file identity. On Unix it is the inode number.
// On Windows it is the 64-bit file index reported by
// GetFileInformationByHandle. Windows and Unix identities are never
// compared against each other; a watch only ever runs on one platform.
type ID uint64

// Stat returns the identity and size of the file or directory at path, and
// whether it is a directory. Returns ok=false if the path no longer exists
// or cannot be stat'd (the caller should treat this as "identity unknown",
// not as an error: a Remove event routinely races the underlying file
// disappearing before it can be stat'd by a fallback cache lookup).
func Stat(path string) (id ID, size int64, isDir bool, ok bool) {
	return statPlatform(path)
}
