package imaging

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/expense-drafts/internal/application/port"
	"github.com/garyjia/expense-drafts/internal/infrastructure/resilience"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestNormalizeMime(t *testing.T) {
	tests := map[string]string{
		"":                           MimeJPEG,
		" IMAGE/PNG ":                MimePNG,
		"application/pdf; charset=x": MimePDF,
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeMime(in), in)
	}
}

func TestIsHEIC(t *testing.T) {
	ftyp := append([]byte{0, 0, 0, 24}, []byte("ftypheic0000")...)
	assert.True(t, IsHEIC(ftyp, "application/octet-stream"))
	assert.True(t, IsHEIC(nil, "image/heif"))

	mp4 := append([]byte{0, 0, 0, 24}, []byte("ftypisom0000")...)
	assert.False(t, IsHEIC(mp4, "video/mp4"))
	assert.False(t, IsHEIC([]byte("short"), MimeJPEG))
}

func TestConverter_Passthrough(t *testing.T) {
	c := NewConverter(1, zap.NewNop())
	data := []byte("not decoded")

	out, mime, err := c.Prepare(data, "image/jpg")
	require.NoError(t, err)
	assert.Equal(t, MimeJPEG, mime)
	assert.Equal(t, data, out)

	out, mime, err = c.Prepare(data, "IMAGE/WEBP")
	require.NoError(t, err)
	assert.Equal(t, "image/webp", mime)
	assert.Equal(t, data, out)
}

func TestConverter_DecodesOtherImages(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, solid(4, 3, color.Black), nil))

	c := NewConverter(1, zap.NewNop())
	out, mime, err := c.Prepare(buf.Bytes(), "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, MimePNG, mime)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
}

func TestConverter_RejectsGarbage(t *testing.T) {
	c := NewConverter(2, zap.NewNop())

	_, _, err := c.Prepare([]byte("%PDF-garbage"), MimePDF)
	assert.Error(t, err)

	_, _, err = c.Prepare([]byte("????"), "image/tiff")
	assert.Error(t, err)
}

func TestStack(t *testing.T) {
	top := solid(4, 2, color.Black)
	bottom := solid(2, 3, color.Black)

	out := stack([]image.Image{top, bottom})
	assert.Equal(t, image.Rect(0, 0, 4, 5), out.Bounds())

	// area right of the narrower page stays white
	r, g, b, _ := out.At(3, 4).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, b})

	assert.Same(t, top, stack([]image.Image{top}))
}

type recordingExtractor struct {
	calls   int
	gotMime string
	gotData []byte
}

func (r *recordingExtractor) Extract(ctx context.Context, data []byte, mime string) (map[string]any, error) {
	r.calls++
	r.gotMime, r.gotData = mime, data
	return map[string]any{"merchant": "x"}, nil
}

func (r *recordingExtractor) Name() string { return "fake:model" }

func TestConvertingExtractor(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(2, 2, color.White), nil))

	inner := &recordingExtractor{}
	e := NewConvertingExtractor(inner, NewConverter(1, zap.NewNop()), zap.NewNop())
	assert.Equal(t, "fake:model", e.Name())

	out, err := e.Extract(context.Background(), buf.Bytes(), "")
	require.NoError(t, err)
	assert.Equal(t, "x", out["merchant"])
	assert.Equal(t, MimeJPEG, inner.gotMime)

	_, err = e.Extract(context.Background(), []byte("junk"), MimePDF)
	assert.ErrorIs(t, err, port.ErrUnreadableReceipt)
	assert.Equal(t, 1, inner.calls)
}

func TestConvertingExtractor_GarbageLeavesBreakerClosed(t *testing.T) {
	inner := &recordingExtractor{}
	cb := resilience.NewBreaker("extractor", resilience.Config{MaxFailures: 5, OpenTimeout: time.Hour}, zap.NewNop())
	e := NewConvertingExtractor(resilience.GuardExtractor(inner, cb), NewConverter(1, zap.NewNop()), zap.NewNop())

	for i := 0; i < 5; i++ {
		_, err := e.Extract(context.Background(), []byte("not an image"), "application/octet-stream")
		assert.ErrorIs(t, err, port.ErrUnreadableReceipt)
	}
	assert.Equal(t, 0, inner.calls)
	assert.Equal(t, gobreaker.StateClosed, cb.State())

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(2, 2, color.White)))
	out, err := e.Extract(context.Background(), buf.Bytes(), MimePNG)
	require.NoError(t, err)
	assert.Equal(t, "x", out["merchant"])
	assert.Equal(t, 1, inner.calls)
}
