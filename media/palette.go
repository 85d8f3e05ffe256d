package media

import (
	"cmp"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"slices"
)

// DefaultPaletteSize is the number of colors extracted per recipe.
const DefaultPaletteSize = 4

// maxSamples bounds the number of pixels read from large images.
const maxSamples = 40000

type bucket struct {
	key     uint16
	r, g, b uint64
	count   int
}

// Palette returns up to n dominant colors of the image at path as #rrggbb.
// Pixels are grouped into 4-bit-per-channel buckets; each color is the mean
// of its bucket. Fully transparent pixels are ignored.
func Palette(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return paletteOf(img, n), nil
}

func paletteOf(img image.Image, n int) []string {
	bounds := img.Bounds()
	step := 1
	if pixels := bounds.Dx() * bounds.Dy(); pixels > maxSamples {
		step = pixels/maxSamples + 1
	}

	buckets := make(map[uint16]*bucket)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i++
			if i%step != 0 {
				continue
			}
			r, g, b, a := img.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			r8, g8, b8 := r>>8, g>>8, b>>8
			k := uint16(r8>>4)<<8 | uint16(g8>>4)<<4 | uint16(b8>>4)
			bk, ok := buckets[k]
			if !ok {
				bk = &bucket{key: k}
				buckets[k] = bk
			}
			bk.r += uint64(r8)
			bk.g += uint64(g8)
			bk.b += uint64(b8)
			bk.count++
		}
	}

	ranked := make([]*bucket, 0, len(buckets))
	for _, bk := range buckets {
		ranked = append(ranked, bk)
	}
	slices.SortFunc(ranked, func(a, b *bucket) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return cmp.Compare(a.key, b.key)
	})

	colors := make([]string, 0, min(n, len(ranked)))
	for _, bk := range ranked[:min(n, len(ranked))] {
		c := uint64(bk.count)
		colors = append(colors, fmt.Sprintf("#%02x%02x%02x", bk.r/c, bk.g/c, bk.b/c))
	}
	return colors
}
