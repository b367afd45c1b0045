package upload

import (
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"wpguard/internal/platform/config"
)

func configWith(blacklist string, minPixels, maxPixels int64) config.UploadConfig {
	cfg := config.DefaultConfig().Upload
	cfg.Blacklist = blacklist
	cfg.MinPixels = minPixels
	cfg.MaxPixels = maxPixels
	return cfg
}

// writeImage encodes a w×h image in format into dir and returns its path.
func writeImage(t *testing.T, dir, name, format string, w, h int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	switch format {
	case "png":
		err = png.Encode(f, img)
	case "jpeg":
		err = jpeg.Encode(f, img, nil)
	case "gif":
		err = gif.Encode(f, img, nil)
	case "bmp":
		err = bmp.Encode(f, img)
	case "tiff":
		err = tiff.Encode(f, img, nil)
	default:
		t.Fatalf("unsupported format %s", format)
	}
	if err != nil {
		t.Fatalf("encode %s: %v", format, err)
	}
	return path
}

type fixedProber struct {
	dims Dimensions
	ok   bool
}

func (p fixedProber) Probe(context.Context, string) (Dimensions, string, bool) {
	return p.dims, "png", p.ok
}

type recordingMetrics struct {
	mu      sync.Mutex
	uploads []string
}

func (m *recordingMetrics) IncUploadExamined(verdict, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, verdict+":"+reason)
}
func (m *recordingMetrics) IncChangelogCheck(string, string) {}
func (m *recordingMetrics) IncChangelogAlert(string)         {}
func (m *recordingMetrics) IncWatchlistToggle(string)        {}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(topic string, _ ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
}
