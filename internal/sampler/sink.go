package sampler

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
)

// Sink persists accepted frames. Writes to distinct sequence indexes are
// independent and may run concurrently.
type Sink interface {
	Write(seq int, img image.Image) (string, error)
}

// DirSink writes frames into a directory as frame_%06d.<ext> so that
// lexical filename order matches timestamp order no matter in which order
// writes complete.
type DirSink struct {
	dir     string
	ext     string
	quality int
}

// NewDirSink creates the output directory (and parents) once and returns a
// sink for it. format selects the encoding: "png", or "jpg"/"jpeg".
func NewDirSink(dir, format string) (*DirSink, error) {
	ext := strings.ToLower(strings.TrimPrefix(format, "."))
	switch ext {
	case "":
		ext = "jpg"
	case "jpg", "jpeg", "png":
	default:
		return nil, fmt.Errorf("unsupported frame format %q", format)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &DirSink{dir: dir, ext: ext, quality: 90}, nil
}

func (s *DirSink) Write(seq int, img image.Image) (string, error) {
	path := filepath.Join(s.dir, fmt.Sprintf("frame_%06d.%s", seq, s.ext))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if s.ext == "png" {
		err = png.Encode(f, img)
	} else {
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: s.quality})
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", path, err)
	}
	return path, nil
}
