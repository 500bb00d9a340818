//go:build unix

package pathid

import "golang.org/x/sys/unix"

// statPlatform reads the inode number via a direct unix.Lstat syscall
// rather than os.Stat, mirroring the platform-specific event handling
// olandr-notify's inotify backend uses golang.org/x/sys/unix for: os.Stat's
// os.FileInfo does not expose the inode portably, and round-tripping
// through it to reach Sys().(*syscall.Stat_t) on every call is slower than
// calling unix.Lstat once.
func statPlatform(path string) (id ID, size int64, isDir bool, ok bool) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return 0, 0, false, false
	}
	return ID(st.Ino), st.Size, (st.Mode & unix.S_IFMT) == unix.S_IFDIR, true
}
