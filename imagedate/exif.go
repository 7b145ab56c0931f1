package imagedate

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
)

var registerParsers sync.Once

// exifDateFields are checked in order. DateTime comes first because that is
// the tag older exports were sorted by.
var exifDateFields = []exif.FieldName{
	exif.DateTime,
	exif.DateTimeOriginal,
	exif.DateTimeDigitized,
}

// ExifReader reads JPEG and TIFF metadata with goexif.
type ExifReader struct{}

func (ExifReader) DateTaken(path string) (time.Time, error) {
	// Register camera makernote data parsing. Nikon and Canon are supported.
	registerParsers.Do(func() {
		exif.RegisterParsers(mknote.All...)
	})

	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, fmt.Errorf("exif decode: %w", err)
	}

	for _, field := range exifDateFields {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}

		s, err := tag.StringVal()
		if err != nil {
			continue
		}

		t, err := ParseExifTime(s)
		if err != nil {
			continue
		}

		return t, nil
	}

	return time.Time{}, errors.New("exif: no date tag")
}

// ParseExifTime parses "YYYY:MM:DD HH:MM:SS" in local time. Trailing NULs
// and anything after the seconds (sub-seconds, zone offsets) are ignored.
func ParseExifTime(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
	if len(s) > len(ExifLayout) {
		s = s[:len(ExifLayout)]
	}
	return time.ParseInLocation(ExifLayout, s, time.Local)
}
