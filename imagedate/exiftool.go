package imagedate

import (
	"fmt"
	"time"

	"github.com/barasher/go-exiftool"
)

var exiftoolDateFields = []string{
	"DateTimeOriginal",
	"CreateDate",
	"DateCreated",
	"ModifyDate",
}

// ExiftoolReader asks an exiftool process for dates. It covers PNG, GIF and
// BMP files that goexif cannot parse. Requires the exiftool binary.
type ExiftoolReader struct {
	et *exiftool.Exiftool
}

func NewExiftoolReader() (*ExiftoolReader, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("start exiftool: %w", err)
	}
	return &ExiftoolReader{et: et}, nil
}

func (r *ExiftoolReader) DateTaken(path string) (time.Time, error) {
	infos := r.et.ExtractMetadata(path)
	if len(infos) == 0 {
		return time.Time{}, fmt.Errorf("exiftool: no metadata for %s", path)
	}

	info := infos[0]
	if info.Err != nil {
		return time.Time{}, info.Err
	}

	for _, field := range exiftoolDateFields {
		s, err := info.GetString(field)
		if err != nil {
			continue
		}
		t, err := ParseExifTime(s)
		if err != nil {
			continue
		}
		return t, nil
	}

	return time.Time{}, fmt.Errorf("exiftool: no date field in %s", path)
}

func (r *ExiftoolReader) Close() error {
	return r.et.Close()
}
