// Package imaging turns uploaded receipts into images a vision model accepts.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
	"go.uber.org/zap"

	"github.com/garyjia/expense-drafts/internal/application/port"
)

const (
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimePDF  = "application/pdf"
)

// passthrough formats are sent to the provider as uploaded
var passthrough = map[string]bool{
	MimePNG:      true,
	MimeJPEG:     true,
	"image/jpg":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Converter renders PDFs and HEIC photos to PNG
type Converter struct {
	maxPages int
	logger   *zap.Logger
}

// NewConverter creates a converter that renders at most maxPages PDF pages
func NewConverter(maxPages int, logger *zap.Logger) *Converter {
	if maxPages < 1 {
		maxPages = 1
	}
	return &Converter{maxPages: maxPages, logger: logger}
}

// Prepare returns image bytes and their MIME type. PDFs have their first pages
// stacked into one PNG; HEIC/HEIF and other decodable images become PNG.
func (c *Converter) Prepare(data []byte, mime string) ([]byte, string, error) {
	mime = NormalizeMime(mime)

	switch {
	case mime == MimePDF:
		out, err := c.pdfToPNG(data)
		if err != nil {
			return nil, "", fmt.Errorf("converting PDF to image: %w", err)
		}
		return out, MimePNG, nil
	case IsHEIC(data, mime):
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, "", fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		out, err := encodePNG(img)
		if err != nil {
			return nil, "", err
		}
		return out, MimePNG, nil
	case passthrough[mime]:
		if mime == "image/jpg" {
			mime = MimeJPEG
		}
		return data, mime, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("unsupported receipt format %q: %w", mime, err)
	}
	out, err := encodePNG(img)
	if err != nil {
		return nil, "", err
	}
	return out, MimePNG, nil
}

func (c *Converter) pdfToPNG(data []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}
	if pages > c.maxPages {
		c.logger.Debug("Truncating PDF pages",
			zap.Int("total_pages", pages),
			zap.Int("max_pages", c.maxPages))
		pages = c.maxPages
	}

	images := make([]image.Image, 0, pages)
	for n := 0; n < pages; n++ {
		img, err := doc.Image(n)
		if err != nil {
			return nil, fmt.Errorf("rendering PDF page %d: %w", n+1, err)
		}
		images = append(images, img)
	}

	return encodePNG(stack(images))
}

// stack places images top to bottom on a white canvas
func stack(images []image.Image) image.Image {
	if len(images) == 1 {
		return images[0]
	}

	width, height := 0, 0
	for _, img := range images {
		b := img.Bounds()
		if b.Dx() > width {
			width = b.Dx()
		}
		height += b.Dy()
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	y := 0
	for _, img := range images {
		b := img.Bounds()
		draw.Draw(canvas, image.Rect(0, y, b.Dx(), y+b.Dy()), img, b.Min, draw.Over)
		y += b.Dy()
	}
	return canvas
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// NormalizeMime lowercases mime and drops parameters. Empty means JPEG.
func NormalizeMime(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if mime == "" {
		return MimeJPEG
	}
	return mime
}

// IsHEIC checks the MIME type and the ISO-BMFF ftyp brand
func IsHEIC(data []byte, mime string) bool {
	if mime == "image/heic" || mime == "image/heif" {
		return true
	}
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

// convertingExtractor prepares receipts before handing them to a vision provider
type convertingExtractor struct {
	next      port.Extractor
	converter *Converter
	logger    *zap.Logger
}

// NewConvertingExtractor wraps next so it only ever sees formats vision models accept
func NewConvertingExtractor(next port.Extractor, converter *Converter, logger *zap.Logger) port.Extractor {
	return &convertingExtractor{next: next, converter: converter, logger: logger}
}

func (e *convertingExtractor) Extract(ctx context.Context, data []byte, mime string) (map[string]any, error) {
	prepared, preparedMime, err := e.converter.Prepare(data, mime)
	if err != nil {
		e.logger.Warn("Failed to prepare receipt image",
			zap.String("mime", mime),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", port.ErrUnreadableReceipt, err)
	}
	if preparedMime != NormalizeMime(mime) {
		e.logger.Debug("Converted receipt image",
			zap.String("from", mime),
			zap.String("to", preparedMime),
			zap.Int("size", len(prepared)))
	}
	return e.next.Extract(ctx, prepared, preparedMime)
}

func (e *convertingExtractor) Name() string {
	return e.next.Name()
}
