// Package convert maps (source format, target format) pairs onto
// conversion strategies. Each dispatch yields either one or more
// output blobs or a single classified failure; intermediate files are
// always removed, a failed dispatch never leaves partial outputs in
// storage.
package convert

import (
	"context"
	"fmt"
	"os"
	"strings"

	"fileconverter/config"
	"fileconverter/models"
	"fileconverter/storage"
)

// conversions is the format-compatibility matrix. Pairs outside this
// table are rejected before any storage access.
var conversions = map[string][]string{
	"jpg":  {"jpg", "jpeg", "png", "webp", "pdf"},
	"jpeg": {"jpg", "jpeg", "png", "webp", "pdf"},
	"png":  {"jpg", "jpeg", "png", "webp", "pdf"},
	"webp": {"jpg", "jpeg", "png", "webp", "pdf"},
	"pdf":  {"docx", "jpg", "png"},
	"docx": {"pdf"},
}

// Supported reports whether the (source, target) pair is convertible.
func Supported(source, target string) bool {
	for _, t := range conversions[strings.ToLower(source)] {
		if t == strings.ToLower(target) {
			return true
		}
	}
	return false
}

// produced is one local output file awaiting upload, with its final
// display name (already collision-resistant).
type produced struct {
	path string
	name string
}

type Dispatcher struct {
	cfg      *config.Config
	store    storage.Storage
	renderer *Renderer
}

func NewDispatcher(cfg *config.Config, store storage.Storage) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg,
		store:    store,
		renderer: NewRenderer(cfg.GotenbergURL, cfg.RenderTimeout),
	}
}

// Dispatch converts a single input to the target format. Classified
// conversion problems come back inside the outcome; a non-nil error
// means an infrastructure fault (storage, scratch space) that the
// caller's retry policy owns.
func (d *Dispatcher) Dispatch(ctx context.Context, input models.InputRef, targetFormat string) (models.ConversionOutcome, error) {
	source := models.FileExtension(input.Filename)
	target := strings.ToLower(targetFormat)

	if !Supported(source, target) {
		return failure(input.Filename, models.FailureUnsupported,
			fmt.Sprintf("unsupported conversion: %s -> %s", source, target)), nil
	}

	localIn, err := d.store.Get(ctx, input.Key)
	if err != nil {
		return models.ConversionOutcome{}, fmt.Errorf("failed to fetch input %s: %w", input.Key, err)
	}

	workDir, err := os.MkdirTemp("", "convert-")
	if err != nil {
		return models.ConversionOutcome{}, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	outputs, fail := d.run(ctx, workDir, localIn, input.Filename, source, target)
	if fail != nil {
		return models.ConversionOutcome{Failure: fail}, nil
	}

	refs := make([]models.OutputRef, 0, len(outputs))
	for _, out := range outputs {
		key := storage.AreaOutput + "/" + out.name
		if _, err := d.store.Put(ctx, out.path, key); err != nil {
			// Never leave a partially stored result behind.
			for _, ref := range refs {
				d.store.Delete(ctx, ref.Key)
			}
			return models.ConversionOutcome{}, fmt.Errorf("failed to store output %s: %w", key, err)
		}
		refs = append(refs, models.OutputRef{Key: key, Filename: out.name})
	}
	return models.ConversionOutcome{Outputs: refs}, nil
}

func (d *Dispatcher) run(ctx context.Context, workDir, localIn, originalName, source, target string) ([]produced, *models.ConversionFailure) {
	switch {
	case isImage(source) && isImage(target):
		return d.reencodeImage(workDir, localIn, originalName, source, target)
	case isImage(source) && target == "pdf":
		return d.imageToPDF(workDir, localIn, originalName, source)
	case source == "pdf" && target == "docx":
		return d.pdfToDocx(ctx, workDir, localIn, originalName)
	case source == "pdf":
		return d.pdfToImages(ctx, workDir, localIn, originalName, target)
	case source == "docx" && target == "pdf":
		return d.docxToPDF(ctx, workDir, localIn, originalName)
	}
	// Unreachable while run stays in sync with the matrix.
	return nil, &models.ConversionFailure{
		Filename: originalName,
		Kind:     models.FailureUnsupported,
		Message:  fmt.Sprintf("no strategy for %s -> %s", source, target),
	}
}

func isImage(format string) bool {
	switch format {
	case "jpg", "jpeg", "png", "webp":
		return true
	}
	return false
}

func failure(filename string, kind models.FailureKind, msg string) models.ConversionOutcome {
	return models.ConversionOutcome{Failure: &models.ConversionFailure{
		Filename: filename,
		Kind:     kind,
		Message:  msg,
	}}
}

// outputName derives the collision-resistant display name for a
// single-output conversion.
func outputName(originalName, target string) string {
	return models.UniqueFilename(models.OutputFilename(originalName, target))
}
