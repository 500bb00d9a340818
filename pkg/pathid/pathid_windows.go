//go:build windows

package pathid

import (
	"golang.org/x/sys/windows"
)

// statPlatform opens path and reads its BY_HANDLE_FILE_INFORMATION to
// derive a stable file index, the Windows analogue of a Unix inode. Unlike
// Unix, acquiring this identity requires a live handle, so a vanishing
// file yields ok=false earlier than on Unix.
func statPlatform(path string) (id ID, size int64, isDir bool, ok bool) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, 0, false, false
	}

	h, err := windows.CreateFile(
		p,
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS,
		0,
	)
	if err != nil {
		return 0, 0, false, false
	}
	defer windows.CloseHandle(h)

	var info windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(h, &info); err != nil {
		return 0, 0, false, false
	}

	fileIndex := (ID(info.FileIndexHigh) << 32) | ID(info.FileIndexLow)
	size = int64(info.FileSizeHigh)<<32 | int64(info.FileSizeLow)
	isDir = info.FileAttributes&windows.FILE_ATTRIBUTE_DIRECTORY != 0

	return fileIndex, size, isDir, true
}
