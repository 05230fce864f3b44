package convert

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"

	"fileconverter/config"
	"fileconverter/models"
	"fileconverter/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		GotenbergURL:  "http://example.invalid",
		RenderTimeout: time.Second,
		PdftoppmPath:  "pdftoppm",
		Pdf2DocxPath:  "pdf2docx",
		RasterDPI:     72,
		ImageQuality:  90,
	}
}

// trackingStore counts storage accesses so tests can assert a rejected
// pair never touches storage.
type trackingStore struct {
	inner storage.Storage
	gets  int
	puts  int
}

func (s *trackingStore) Put(ctx context.Context, localPath, key string) (string, error) {
	s.puts++
	return s.inner.Put(ctx, localPath, key)
}

func (s *trackingStore) Get(ctx context.Context, key string) (string, error) {
	s.gets++
	return s.inner.Get(ctx, key)
}

func (s *trackingStore) Delete(ctx context.Context, key string) bool {
	return s.inner.Delete(ctx, key)
}

func (s *trackingStore) Usage(ctx context.Context) (storage.Usage, error) {
	return s.inner.Usage(ctx)
}

func (s *trackingStore) Sweep(ctx context.Context, area string, olderThan time.Duration) (int, error) {
	return s.inner.Sweep(ctx, area, olderThan)
}

func newTestStore(t *testing.T) *trackingStore {
	t.Helper()
	local, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	return &trackingStore{inner: local}
}

func writePNG(t *testing.T, path string, withAlpha bool) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if withAlpha {
				img.SetNRGBA(x, y, color.NRGBA{R: 255, A: 0})
			} else {
				img.SetNRGBA(x, y, color.NRGBA{R: 10, G: 120, B: 200, A: 255})
			}
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
}

func writeJPEG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 50, B: 50, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
}

func putInput(t *testing.T, store storage.Storage, localPath, name string) models.InputRef {
	t.Helper()
	key := storage.AreaInput + "/" + name
	if _, err := store.Put(context.Background(), localPath, key); err != nil {
		t.Fatalf("failed to store input: %v", err)
	}
	return models.InputRef{Key: key, Filename: name}
}

func TestSupportedMatrix(t *testing.T) {
	images := []string{"jpg", "jpeg", "png", "webp"}
	for _, src := range images {
		for _, tgt := range append(images, "pdf") {
			if !Supported(src, tgt) {
				t.Errorf("expected %s -> %s supported", src, tgt)
			}
		}
	}
	for _, tgt := range []string{"docx", "jpg", "png"} {
		if !Supported("pdf", tgt) {
			t.Errorf("expected pdf -> %s supported", tgt)
		}
	}
	if !Supported("docx", "pdf") {
		t.Error("expected docx -> pdf supported")
	}

	for _, pair := range [][2]string{
		{"pdf", "webp"}, {"pdf", "jpeg"}, {"docx", "png"}, {"docx", "docx"},
		{"gif", "png"}, {"png", "docx"}, {"txt", "pdf"},
	} {
		if Supported(pair[0], pair[1]) {
			t.Errorf("expected %s -> %s unsupported", pair[0], pair[1])
		}
	}
}

func TestDispatchUnsupportedSkipsStorage(t *testing.T) {
	store := newTestStore(t)
	d := NewDispatcher(testConfig(), store)

	outcome, err := d.Dispatch(context.Background(),
		models.InputRef{Key: "input/anim.gif", Filename: "anim.gif"}, "png")
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if outcome.Failure == nil || outcome.Failure.Kind != models.FailureUnsupported {
		t.Fatalf("expected unsupported failure, got %+v", outcome)
	}
	if store.gets != 0 || store.puts != 0 {
		t.Fatalf("storage touched for unsupported pair: gets=%d puts=%d", store.gets, store.puts)
	}
}

func TestDispatchPNGToJPGFlattensAlpha(t *testing.T) {
	store := newTestStore(t)
	d := NewDispatcher(testConfig(), store)
	ctx := context.Background()

	srcPath := filepath.Join(t.TempDir(), "src.png")
	writePNG(t, srcPath, true)
	input := putInput(t, store, srcPath, "photo.png")

	outcome, err := d.Dispatch(ctx, input, "jpg")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if !outcome.Succeeded() || len(outcome.Outputs) != 1 {
		t.Fatalf("expected one output, got %+v", outcome)
	}
	out := outcome.Outputs[0]
	if !strings.HasSuffix(out.Filename, "_photo.jpg") {
		t.Fatalf("unexpected output name %q", out.Filename)
	}

	path, err := store.Get(ctx, out.Key)
	if err != nil {
		t.Fatalf("output blob missing: %v", err)
	}
	f, _ := os.Open(path)
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		t.Fatalf("output is not a decodable image: %v", err)
	}

	// Fully transparent source pixels must come out white.
	r, g, b, _ := img.At(2, 2).RGBA()
	if r>>8 < 240 || g>>8 < 240 || b>>8 < 240 {
		t.Fatalf("alpha was not flattened onto white: r=%d g=%d b=%d", r>>8, g>>8, b>>8)
	}
}

func TestDispatchJPGToPNG(t *testing.T) {
	store := newTestStore(t)
	d := NewDispatcher(testConfig(), store)
	ctx := context.Background()

	srcPath := filepath.Join(t.TempDir(), "src.jpg")
	writeJPEG(t, srcPath)
	input := putInput(t, store, srcPath, "scan.jpg")

	outcome, err := d.Dispatch(ctx, input, "png")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if !outcome.Succeeded() {
		t.Fatalf("expected success, got %+v", outcome.Failure)
	}
	path, err := store.Get(ctx, outcome.Outputs[0].Key)
	if err != nil {
		t.Fatalf("output blob missing: %v", err)
	}
	f, _ := os.Open(path)
	defer f.Close()
	if _, err := png.Decode(f); err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
}

func TestDispatchCorruptImage(t *testing.T) {
	store := newTestStore(t)
	d := NewDispatcher(testConfig(), store)
	ctx := context.Background()

	srcPath := filepath.Join(t.TempDir(), "bad.jpg")
	if err := os.WriteFile(srcPath, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	input := putInput(t, store, srcPath, "bad.jpg")

	outcome, err := d.Dispatch(ctx, input, "png")
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if outcome.Failure == nil || outcome.Failure.Kind != models.FailureCodec {
		t.Fatalf("expected codec failure, got %+v", outcome)
	}
}

func TestDispatchImageToPDF(t *testing.T) {
	store := newTestStore(t)
	d := NewDispatcher(testConfig(), store)
	ctx := context.Background()

	srcPath := filepath.Join(t.TempDir(), "src.png")
	writePNG(t, srcPath, false)
	input := putInput(t, store, srcPath, "diagram.png")

	outcome, err := d.Dispatch(ctx, input, "pdf")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if !outcome.Succeeded() || len(outcome.Outputs) != 1 {
		t.Fatalf("expected one output, got %+v", outcome)
	}

	path, err := store.Get(ctx, outcome.Outputs[0].Key)
	if err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	pages, err := pdfapi.PageCountFile(path)
	if err != nil {
		t.Fatalf("output is not a valid PDF: %v", err)
	}
	if pages != 1 {
		t.Fatalf("expected a one-page document, got %d pages", pages)
	}
}

func TestDispatchPDFToImages(t *testing.T) {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		t.Skip("pdftoppm not installed")
	}

	store := newTestStore(t)
	d := NewDispatcher(testConfig(), store)
	ctx := context.Background()

	// Build a one-page PDF fixture from a generated image.
	imgPath := filepath.Join(t.TempDir(), "page.png")
	writePNG(t, imgPath, false)
	pdfPath := filepath.Join(t.TempDir(), "doc.pdf")
	if err := pdfapi.ImportImagesFile([]string{imgPath}, pdfPath, nil, nil); err != nil {
		t.Fatalf("failed to build PDF fixture: %v", err)
	}
	input := putInput(t, store, pdfPath, "doc.pdf")

	outcome, err := d.Dispatch(ctx, input, "png")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if !outcome.Succeeded() {
		t.Fatalf("expected success, got %+v", outcome.Failure)
	}
	if len(outcome.Outputs) != 1 {
		t.Fatalf("expected one page output, got %d", len(outcome.Outputs))
	}
	if !strings.Contains(outcome.Outputs[0].Filename, "_page_1.png") {
		t.Fatalf("unexpected page name %q", outcome.Outputs[0].Filename)
	}
}
