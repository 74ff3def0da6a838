package fsops

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/spf13/afero"
)

// CaptureTime returns the EXIF DateTime of a JPEG file. Other files, and
// JPEGs without readable EXIF data, report false.
func CaptureTime(fileSystem afero.Fs, path string) (time.Time, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
	default:
		return time.Time{}, false
	}
	file, openErr := fileSystem.Open(filepath.Clean(path))
	if openErr != nil {
		return time.Time{}, false
	}
	defer file.Close()

	exifData, decodeErr := exif.Decode(file)
	if decodeErr != nil {
		return time.Time{}, false
	}
	captured, timeErr := exifData.DateTime()
	if timeErr != nil {
		return time.Time{}, false
	}
	return captured.UTC(), true
}
