package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"fileconverter/models"
)

// Renderer converts office documents to PDF through a Gotenberg
// instance (headless LibreOffice behind an HTTP API). Every render is
// bounded by the configured timeout; the HTTP client itself has none
// so the context is the single source of truth.
type Renderer struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

func NewRenderer(baseURL string, timeout time.Duration) *Renderer {
	return &Renderer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 0},
		timeout: timeout,
	}
}

// RenderPDF renders inputPath to outPath. A renderer that exceeds the
// timeout yields the timeout failure kind, any other renderer problem
// the external-process kind.
func (r *Renderer) RenderPDF(ctx context.Context, inputPath, outPath, originalName string) *models.ConversionFailure {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	file, err := os.Open(inputPath)
	if err != nil {
		return &models.ConversionFailure{
			Filename: originalName,
			Kind:     models.FailureExternalProcess,
			Message:  fmt.Sprintf("failed to open input: %v", err),
		}
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("files", filepath.Base(inputPath))
	if err == nil {
		_, err = io.Copy(part, file)
	}
	if err == nil {
		err = writer.Close()
	}
	if err != nil {
		return &models.ConversionFailure{
			Filename: originalName,
			Kind:     models.FailureExternalProcess,
			Message:  fmt.Sprintf("failed to build render request: %v", err),
		}
	}

	url := fmt.Sprintf("%s/forms/libreoffice/convert", r.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return &models.ConversionFailure{
			Filename: originalName,
			Kind:     models.FailureExternalProcess,
			Message:  fmt.Sprintf("failed to create render request: %v", err),
		}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &models.ConversionFailure{
				Filename: originalName,
				Kind:     models.FailureTimeout,
				Message:  fmt.Sprintf("renderer exceeded %s timeout", r.timeout),
			}
		}
		return &models.ConversionFailure{
			Filename: originalName,
			Kind:     models.FailureExternalProcess,
			Message:  fmt.Sprintf("renderer request failed: %v", err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &models.ConversionFailure{
			Filename: originalName,
			Kind:     models.FailureExternalProcess,
			Message:  fmt.Sprintf("renderer returned status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	outFile, err := os.Create(outPath)
	if err != nil {
		return &models.ConversionFailure{
			Filename: originalName,
			Kind:     models.FailureExternalProcess,
			Message:  fmt.Sprintf("failed to create output file: %v", err),
		}
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, resp.Body); err != nil {
		os.Remove(outPath)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &models.ConversionFailure{
				Filename: originalName,
				Kind:     models.FailureTimeout,
				Message:  fmt.Sprintf("renderer exceeded %s timeout", r.timeout),
			}
		}
		return &models.ConversionFailure{
			Filename: originalName,
			Kind:     models.FailureExternalProcess,
			Message:  fmt.Sprintf("failed to save rendered PDF: %v", err),
		}
	}
	return nil
}
