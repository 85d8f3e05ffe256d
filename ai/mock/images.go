package mock

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/poiesic/larder/core"
)

// MockImageGenerator is a test double for ai.ImageGenerator.
type MockImageGenerator struct {
	// GenerateImagesFunc is called by GenerateImages if set.
	// If nil, writes one small solid-color PNG into dir.
	GenerateImagesFunc func(ctx context.Context, recipe *core.Recipe, dir string) ([]string, error)

	mu        sync.Mutex
	callCount int
}

func NewMockImageGenerator() *MockImageGenerator {
	return &MockImageGenerator{}
}

func (m *MockImageGenerator) GenerateImages(ctx context.Context, recipe *core.Recipe, dir string) ([]string, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.GenerateImagesFunc != nil {
		return m.GenerateImagesFunc(ctx, recipe, dir)
	}

	path := filepath.Join(dir, "generated_01.png")
	if err := WriteSolidPNG(path, color.RGBA{R: 200, G: 60, B: 40, A: 255}); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

func (m *MockImageGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func (m *MockImageGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.GenerateImagesFunc = nil
}

// WriteSolidPNG writes an 8x8 PNG filled with c, creating parent directories.
func WriteSolidPNG(path string, c color.Color) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
