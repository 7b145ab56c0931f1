// Package photo holds the types shared by the collect, rename and catalog steps.
package photo

import "time"

// DateSource records where a photo's capture time came from.
type DateSource string

const (
	DateSourceEXIF     DateSource = "exif"
	DateSourceFilename DateSource = "filename"
	DateSourceMtime    DateSource = "mtime"
)

// Status values stored with each photo record.
const (
	StatusCopied    = "copied"
	StatusDuplicate = "duplicate"
	StatusRenamed   = "renamed"
	StatusFailed    = "failed"
)

type Photo struct {
	ID         int64
	InsertedAt time.Time
	Hash       string
	Size       int64
	SourcePath string
	Path       string
	FinalPath  string
	DateTaken  time.Time
	DateSource DateSource
	Flagged    bool
	Status     string
}

// CurrentPath is where the file lives now: the renamed path if the photo was
// renamed, otherwise the collected copy.
func (p Photo) CurrentPath() string {
	if p.FinalPath != "" {
		return p.FinalPath
	}
	return p.Path
}
