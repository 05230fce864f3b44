package convert

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"

	"fileconverter/models"
)

// pdfToImages rasterizes every page at the configured DPI via
// pdftoppm, the renderer poppler ships. Multi-page inputs fan out into
// one output per page.
func (d *Dispatcher) pdfToImages(ctx context.Context, workDir, localIn, originalName, target string) ([]produced, *models.ConversionFailure) {
	pages, err := pdfapi.PageCountFile(localIn)
	if err != nil {
		return nil, &models.ConversionFailure{
			Filename: originalName,
			Kind:     models.FailureCodec,
			Message:  fmt.Sprintf("failed to read PDF: %v", err),
		}
	}
	if pages < 1 {
		return nil, &models.ConversionFailure{
			Filename: originalName,
			Kind:     models.FailureCodec,
			Message:  "PDF has no pages",
		}
	}

	formatFlag := "-png"
	if target == "jpg" {
		formatFlag = "-jpeg"
	}

	prefix := filepath.Join(workDir, "page")
	cmd := exec.CommandContext(ctx, d.cfg.PdftoppmPath,
		"-r", fmt.Sprint(d.cfg.RasterDPI),
		formatFlag,
		localIn,
		prefix,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			// The job-level budget fired; let the lifecycle engine own it.
			return nil, &models.ConversionFailure{
				Filename: originalName,
				Kind:     models.FailureTimeout,
				Message:  "rasterization aborted by execution budget",
			}
		}
		return nil, &models.ConversionFailure{
			Filename: originalName,
			Kind:     models.FailureExternalProcess,
			Message:  fmt.Sprintf("pdftoppm failed: %v: %s", err, strings.TrimSpace(stderr.String())),
		}
	}

	matches, err := filepath.Glob(prefix + "-*." + target)
	if err != nil || len(matches) == 0 {
		return nil, &models.ConversionFailure{
			Filename: originalName,
			Kind:     models.FailureExternalProcess,
			Message:  "pdftoppm produced no pages",
		}
	}
	// pdftoppm zero-pads page numbers, lexical order is page order.
	sort.Strings(matches)

	base := strings.TrimSuffix(models.SanitizeFilename(originalName), filepath.Ext(originalName))
	outputs := make([]produced, 0, len(matches))
	for i, path := range matches {
		name := models.UniqueFilename(fmt.Sprintf("%s_page_%d.%s", base, i+1, target))
		outputs = append(outputs, produced{path: path, name: name})
	}
	return outputs, nil
}

// pdfToDocx performs structural extraction into an editable document
// through the pdf2docx CLI.
func (d *Dispatcher) pdfToDocx(ctx context.Context, workDir, localIn, originalName string) ([]produced, *models.ConversionFailure) {
	name := outputName(originalName, "docx")
	outPath := filepath.Join(workDir, name)

	cmd := exec.CommandContext(ctx, d.cfg.Pdf2DocxPath, "convert", localIn, outPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, &models.ConversionFailure{
				Filename: originalName,
				Kind:     models.FailureTimeout,
				Message:  "document extraction aborted by execution budget",
			}
		}
		return nil, &models.ConversionFailure{
			Filename: originalName,
			Kind:     models.FailureExternalProcess,
			Message:  fmt.Sprintf("pdf2docx failed: %v: %s", err, strings.TrimSpace(stderr.String())),
		}
	}
	return []produced{{path: outPath, name: name}}, nil
}

// docxToPDF renders through the external headless renderer under its
// own hard timeout; the timeout is a distinct failure kind.
func (d *Dispatcher) docxToPDF(ctx context.Context, workDir, localIn, originalName string) ([]produced, *models.ConversionFailure) {
	name := outputName(originalName, "pdf")
	outPath := filepath.Join(workDir, name)

	if fail := d.renderer.RenderPDF(ctx, localIn, outPath, originalName); fail != nil {
		return nil, fail
	}
	return []produced{{path: outPath, name: name}}, nil
}
