package convert

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"

	"fileconverter/models"
)

func decodeImage(path, source string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if source == "webp" {
		return webp.Decode(f)
	}
	img, _, err := image.Decode(f)
	return img, err
}

// flattenAlpha composites the image onto a white background. Targets
// without an alpha channel (jpg) and the PDF wrap both need this.
func flattenAlpha(img image.Image) image.Image {
	bounds := img.Bounds()
	bg := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

func (d *Dispatcher) encodeImage(img image.Image, target, outPath string) error {
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	switch target {
	case "jpg", "jpeg":
		return jpeg.Encode(f, flattenAlpha(img), &jpeg.Options{Quality: d.cfg.ImageQuality})
	case "png":
		return png.Encode(f, img)
	case "webp":
		return webp.Encode(f, img, &webp.Options{Quality: float32(d.cfg.ImageQuality)})
	}
	return fmt.Errorf("unknown image target %q", target)
}

func (d *Dispatcher) reencodeImage(workDir, localIn, originalName, source, target string) ([]produced, *models.ConversionFailure) {
	img, err := decodeImage(localIn, source)
	if err != nil {
		return nil, &models.ConversionFailure{
			Filename: originalName,
			Kind:     models.FailureCodec,
			Message:  fmt.Sprintf("failed to decode %s image: %v", source, err),
		}
	}

	name := outputName(originalName, target)
	outPath := filepath.Join(workDir, name)
	if err := d.encodeImage(img, target, outPath); err != nil {
		return nil, &models.ConversionFailure{
			Filename: originalName,
			Kind:     models.FailureCodec,
			Message:  fmt.Sprintf("failed to encode %s image: %v", target, err),
		}
	}
	return []produced{{path: outPath, name: name}}, nil
}

// imageToPDF wraps a single image as a one-page document. The image is
// flattened to an opaque JPEG first so transparency never ends up in
// the page.
func (d *Dispatcher) imageToPDF(workDir, localIn, originalName, source string) ([]produced, *models.ConversionFailure) {
	img, err := decodeImage(localIn, source)
	if err != nil {
		return nil, &models.ConversionFailure{
			Filename: originalName,
			Kind:     models.FailureCodec,
			Message:  fmt.Sprintf("failed to decode %s image: %v", source, err),
		}
	}

	pagePath := filepath.Join(workDir, "page.jpg")
	if err := d.encodeImage(img, "jpg", pagePath); err != nil {
		return nil, &models.ConversionFailure{
			Filename: originalName,
			Kind:     models.FailureCodec,
			Message:  fmt.Sprintf("failed to prepare page image: %v", err),
		}
	}

	name := outputName(originalName, "pdf")
	outPath := filepath.Join(workDir, name)
	if err := pdfapi.ImportImagesFile([]string{pagePath}, outPath, nil, nil); err != nil {
		os.Remove(outPath)
		return nil, &models.ConversionFailure{
			Filename: originalName,
			Kind:     models.FailureCodec,
			Message:  fmt.Sprintf("failed to build PDF page: %v", err),
		}
	}
	return []produced{{path: outPath, name: name}}, nil
}
