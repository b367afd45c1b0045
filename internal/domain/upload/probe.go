package upload

import (
	"bufio"
	"context"
	"image"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Prober measures the pixel dimensions of the file at path. ok is false when
// the file is not a decodable image.
type Prober interface {
	Probe(ctx context.Context, path string) (dims Dimensions, format string, ok bool)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, path string) (Dimensions, string, bool)

func (f ProberFunc) Probe(ctx context.Context, path string) (Dimensions, string, bool) {
	return f(ctx, path)
}

// HeaderProber reads only the image header through image.DecodeConfig.
// Pixel data is never decoded.
type HeaderProber struct{}

func (HeaderProber) Probe(ctx context.Context, path string) (Dimensions, string, bool) {
	if ctx.Err() != nil {
		return Dimensions{}, "", false
	}
	f, err := os.Open(path)
	if err != nil {
		return Dimensions{}, "", false
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(bufio.NewReader(f))
	if err != nil {
		return Dimensions{}, "", false
	}
	return Dimensions{Width: cfg.Width, Height: cfg.Height}, format, true
}
