package imagedate

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/choiway/photomerge/internal/fixture"
	"github.com/choiway/photomerge/photo"
)

func TestFromFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
		ok   bool
	}{
		{"compact", "IMG_20190304_050607.jpg", time.Date(2019, 3, 4, 5, 6, 7, 0, time.Local), true},
		{"dashes", "2019-03-04_05-06-07.png", time.Date(2019, 3, 4, 5, 6, 7, 0, time.Local), true},
		{"no separators", "Screenshot20211231235959.png", time.Date(2021, 12, 31, 23, 59, 59, 0, time.Local), true},
		{"renamed", "0003_20190304_050607.jpg", time.Date(2019, 3, 4, 5, 6, 7, 0, time.Local), true},
		{"renamed flagged", "web_0003_20190304_050607.jpg", time.Date(2019, 3, 4, 5, 6, 7, 0, time.Local), true},
		{"feb 30", "20190230_101010.jpg", time.Time{}, false},
		{"month 13", "20191304_101010.jpg", time.Time{}, false},
		{"hour 24", "20190304_240000.jpg", time.Time{}, false},
		{"year zero", "00000101_000000.jpg", time.Time{}, false},
		{"no digits", "holiday.jpg", time.Time{}, false},
		{"too short", "IMG_2019.jpg", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FromFilename(tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimeString(t *testing.T) {
	ts := time.Date(2022, 7, 1, 9, 8, 7, 0, time.Local)

	if got := TimeString("IMG_20190304_050607.jpg", ts); got != "20190304_050607" {
		t.Fatalf("expected reused stamp, got %s", got)
	}
	if got := TimeString("DSC0001.jpg", ts); got != "20220701_090807" {
		t.Fatalf("expected formatted time, got %s", got)
	}
	// dashed names are parsed by FromFilename but not reused verbatim
	if got := TimeString("2019-03-04_05-06-07.jpg", ts); got != "20220701_090807" {
		t.Fatalf("got %s", got)
	}
}

func TestParseExifTime(t *testing.T) {
	want := time.Date(2018, 1, 2, 3, 4, 5, 0, time.Local)

	for _, in := range []string{"2018:01:02 03:04:05", "2018:01:02 03:04:05\x00", "2018:01:02 03:04:05+02:00"} {
		got, err := ParseExifTime(in)
		if err != nil {
			t.Fatalf("ParseExifTime(%q): %v", in, err)
		}
		if !got.Equal(want) {
			t.Fatalf("ParseExifTime(%q) = %v", in, got)
		}
	}

	if _, err := ParseExifTime("    :  :     :  :  "); err == nil {
		t.Fatalf("expected error for blank exif date")
	}
}

func TestExifReader_DateTaken(t *testing.T) {
	dir := t.TempDir()
	p := fixture.WriteFile(t, dir, "a.jpg", fixture.JPEGWithDateTime("2015:06:07 08:09:10"))

	got, err := ExifReader{}.DateTaken(p)
	if err != nil {
		t.Fatalf("DateTaken error: %v", err)
	}
	if want := time.Date(2015, 6, 7, 8, 9, 10, 0, time.Local); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	plain := fixture.WriteFile(t, dir, "b.jpg", []byte("not an image"))
	if _, err := (ExifReader{}).DateTaken(plain); err == nil {
		t.Fatalf("expected error for file without exif")
	}
}

func TestResolver_ExifFirst(t *testing.T) {
	dir := t.TempDir()
	p := fixture.WriteFile(t, dir, "IMG_20200101_000000.jpg", fixture.JPEGWithDateTime("2015:06:07 08:09:10"))

	got, src, err := NewResolver().Resolve(p)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if src != photo.DateSourceEXIF {
		t.Fatalf("source = %s", src)
	}
	if want := time.Date(2015, 6, 7, 8, 9, 10, 0, time.Local); !got.Equal(want) {
		t.Fatalf("got %v", got)
	}
}

func TestResolver_FilenameFirst(t *testing.T) {
	dir := t.TempDir()
	p := fixture.WriteFile(t, dir, "IMG_20200101_000000.jpg", fixture.JPEGWithDateTime("2015:06:07 08:09:10"))

	got, src, err := NewResolver(WithFilenameFirst(true)).Resolve(p)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if src != photo.DateSourceFilename {
		t.Fatalf("source = %s", src)
	}
	if want := time.Date(2020, 1, 1, 0, 0, 0, 0, time.Local); !got.Equal(want) {
		t.Fatalf("got %v", got)
	}
}

func TestResolver_FallsBackToMtime(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Date(2010, 10, 10, 10, 10, 10, 0, time.Local)
	p := fixture.WriteFileAt(t, dir, "holiday.png", []byte("png-ish"), mtime)

	got, src, err := NewResolver().Resolve(p)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if src != photo.DateSourceMtime {
		t.Fatalf("source = %s", src)
	}
	if !got.Equal(mtime) {
		t.Fatalf("got %v, want %v", got, mtime)
	}
}

func TestResolver_MissingFile(t *testing.T) {
	_, _, err := NewResolver().Resolve(filepath.Join(t.TempDir(), "gone.jpg"))
	if !photo.IsKind(err, photo.KindFileAccess) {
		t.Fatalf("expected file_access error, got %v", err)
	}
}

type stubReader struct {
	t   time.Time
	err error
}

func (s stubReader) DateTaken(string) (time.Time, error) { return s.t, s.err }

func TestResolver_TriesReadersInOrder(t *testing.T) {
	dir := t.TempDir()
	p := fixture.WriteFile(t, dir, "x.bmp", []byte("bmp"))
	want := time.Date(2001, 2, 3, 4, 5, 6, 0, time.Local)

	r := NewResolver(WithReaders(stubReader{err: errors.New("nope")}, stubReader{t: want}))
	got, src, err := r.Resolve(p)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if src != photo.DateSourceEXIF || !got.Equal(want) {
		t.Fatalf("got %v from %s", got, src)
	}
}
