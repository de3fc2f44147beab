// Package convert post-processes widget snapshots into derived images
// served by the web layer.
package convert

import (
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/disintegration/gift"
)

// Thumbnail scales img to fit within maxW x maxH, preserving aspect, and
// drops it to grayscale. This is the small preview variant of a snapshot.
func Thumbnail(img image.Image, maxW, maxH int) *image.RGBA {
	g := gift.New(
		gift.ResizeToFit(maxW, maxH, gift.LinearResampling),
		gift.Grayscale(),
	)
	out := image.NewRGBA(g.Bounds(img.Bounds()))
	g.Draw(out, img)
	return out
}

// ThumbnailFile reads a PNG snapshot from srcPath and writes its thumbnail
// to dstPath.
func ThumbnailFile(srcPath, dstPath string, maxW, maxH int) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("convert: open snapshot: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return fmt.Errorf("convert: decode snapshot: %w", err)
	}

	out, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("convert: create thumbnail: %w", err)
	}
	defer out.Close()

	if err := png.Encode(out, Thumbnail(img, maxW, maxH)); err != nil {
		return fmt.Errorf("convert: encode thumbnail: %w", err)
	}
	return nil
}
