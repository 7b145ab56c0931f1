// Package imagedate works out when an image was taken. It tries embedded
// metadata, then a timestamp in the file name, then the file's modification
// time.
package imagedate

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/choiway/photomerge/photo"
)

// ExifLayout is the timestamp format used by EXIF date tags.
const ExifLayout = "2006:01:02 15:04:05"

// NameLayout is the timestamp written into renamed files.
const NameLayout = "20060102_150405"

var (
	filenameDate = regexp.MustCompile(`(\d{4})[-_]?(\d{2})[-_]?(\d{2})[-_]?(\d{2})[-_]?(\d{2})[-_]?(\d{2})`)
	nameStamp    = regexp.MustCompile(`\d{8}_\d{6}`)

	// NNNN_ sequence numbers written by the renamer
	sequence = regexp.MustCompile(`(^|_)\d{4}_(\d{8}_\d{6})`)
)

// Reader extracts a capture time from a file's metadata.
type Reader interface {
	DateTaken(path string) (time.Time, error)
}

type Resolver struct {
	readers       []Reader
	filenameFirst bool
	log           *zap.Logger
}

type Option func(*Resolver)

// WithFilenameFirst checks the file name before metadata.
func WithFilenameFirst(on bool) Option {
	return func(r *Resolver) { r.filenameFirst = on }
}

// WithReaders replaces the metadata readers. They are tried in order.
func WithReaders(readers ...Reader) Option {
	return func(r *Resolver) { r.readers = readers }
}

func WithLogger(log *zap.Logger) Option {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		readers: []Reader{ExifReader{}},
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the capture time of path and where it came from.
func (r *Resolver) Resolve(path string) (time.Time, photo.DateSource, error) {
	name := filepath.Base(path)

	if r.filenameFirst {
		if t, ok := r.fromName(name); ok {
			return t, photo.DateSourceFilename, nil
		}
		if t, ok := r.fromMetadata(path); ok {
			return t, photo.DateSourceEXIF, nil
		}
	} else {
		if t, ok := r.fromMetadata(path); ok {
			return t, photo.DateSourceEXIF, nil
		}
		if t, ok := r.fromName(name); ok {
			return t, photo.DateSourceFilename, nil
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, "", &photo.OpError{Op: "imagedate.resolve", Kind: photo.KindFileAccess, Path: path, Err: err}
	}

	return info.ModTime(), photo.DateSourceMtime, nil
}

func (r *Resolver) fromMetadata(path string) (time.Time, bool) {
	for _, reader := range r.readers {
		t, err := reader.DateTaken(path)
		if err != nil {
			r.log.Debug("no metadata date", zap.String("path", path), zap.Error(err))
			continue
		}
		return t, true
	}
	return time.Time{}, false
}

func (r *Resolver) fromName(name string) (time.Time, bool) {
	t, ok := FromFilename(name)
	if !ok && filenameDate.MatchString(name) {
		r.log.Debug("invalid date in filename", zap.String("name", name))
	}
	return t, ok
}

// FromFilename parses the first YYYYMMDDHHMMSS-like run in name, allowing a
// single - or _ between parts. Only the first run is considered and it must
// be a real calendar date and time. A sequence number in front of the stamp
// (0007_20190304_050607.jpg) is ignored.
func FromFilename(name string) (time.Time, bool) {
	name = sequence.ReplaceAllString(name, "${1}${2}")

	m := filenameDate.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}

	var parts [6]int
	for i := range parts {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return time.Time{}, false
		}
		parts[i] = n
	}

	year, month, day, hour, minute, second := parts[0], parts[1], parts[2], parts[3], parts[4], parts[5]
	if year < 1 || month < 1 || month > 12 || day < 1 || hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.Local)
	// time.Date normalises overflow, e.g. Feb 30 becomes Mar 2
	if t.Day() != day || t.Month() != time.Month(month) {
		return time.Time{}, false
	}

	return t, true
}

// TimeString reuses a YYYYMMDD_HHMMSS chunk already in name, otherwise it
// formats t.
func TimeString(name string, t time.Time) string {
	if s := nameStamp.FindString(name); s != "" {
		return s
	}
	return t.Format(NameLayout)
}
