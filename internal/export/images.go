package export

import (
	"bytes"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"
	"unicode/utf8"

	"github.com/skip2/go-qrcode"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/ivlev/story2video/internal/analyzer"
	"github.com/ivlev/story2video/internal/system"
)

const defaultThumbnailWidth = 480

// Thumbnail scales an encoded image to width pixels, keeping its aspect ratio, as JPEG.
func Thumbnail(data []byte, width int) ([]byte, error) {
	if width <= 0 {
		width = defaultThumbnailWidth
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return encodeJPEG(dst)
}

const defaultCoverSize = 512

// Cover crops the most detailed square of an encoded image and scales it to size pixels, as JPEG.
func Cover(data []byte, size int) ([]byte, error) {
	if size <= 0 {
		size = defaultCoverSize
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	crop, err := analyzer.Focus(analyzer.NewEdgeDetector(), src, 0)
	if err != nil {
		return nil, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, xdraw.Src, nil)
	return encodeJPEG(dst)
}

// ToJPEG re-encodes an image in any registered format as JPEG.
func ToJPEG(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return encodeJPEG(src)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	b := img.Bounds()
	buf := system.GetBuffer(b.Dx() * b.Dy() / 4)
	defer system.PutBuffer(buf)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

// shareTextLimit keeps the QR payload well inside medium error correction capacity.
const shareTextLimit = 1200

// ShareCard encodes the scene narration and the story prompt as a QR code PNG.
func ShareCard(narration, prompt string) ([]byte, error) {
	text := narration + "\n\n" + prompt
	if len(text) > shareTextLimit {
		text = truncateUTF8(text, shareTextLimit-3) + "..."
	}
	return qrcode.Encode(text, qrcode.Medium, 512)
}

func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return strings.TrimSpace(s[:n])
}
