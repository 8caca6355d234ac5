package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/gif" // Register GIF decoder
	_ "image/png" // Register PNG decoder
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"inkwell/internal/featureflags"
	"inkwell/internal/models"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	AvatarMaxSize         = 512
	DefaultAvatarMaxBytes = 5 << 20
	JPEGQuality           = 82
	WebPQuality           = 70

	avatarDir    = "avatars"
	uploadsRoute = "/uploads"
)

type AvatarInput struct {
	UserID      uint
	Filename    string
	ContentType string
	Content     []byte
}

// ImageService normalises uploaded avatars and stores them on local disk.
type ImageService struct {
	uploadDir string
	maxBytes  int64
	flags     *featureflags.Manager
}

func NewImageService(uploadDir string, maxBytes int64, flags *featureflags.Manager) *ImageService {
	if maxBytes <= 0 {
		maxBytes = DefaultAvatarMaxBytes
	}
	return &ImageService{uploadDir: uploadDir, maxBytes: maxBytes, flags: flags}
}

// SaveAvatar decodes the upload, fits it inside AvatarMaxSize and writes it
// as jpeg, or webp when the avatar_webp flag is on for the user. It returns
// the public URL of the stored file.
func (s *ImageService) SaveAvatar(_ context.Context, in AvatarInput) (string, error) {
	if len(in.Content) == 0 {
		return "", models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxBytes {
		return "", models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxBytes/(1024*1024)))
	}

	detectedType := http.DetectContentType(in.Content)
	if !isAllowedImageMIME(detectedType) {
		return "", models.NewValidationError("Invalid image type")
	}

	decoded, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}
	sourceMimeType := decodedFormatToMime(format)
	if sourceMimeType == "" {
		return "", models.NewValidationError("Unsupported image format")
	}
	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") && !isMatchingContentType(provided, sourceMimeType) {
		return "", models.NewValidationError("Image content type mismatch")
	}

	fitted := flattenOnWhite(resizeToFit(decoded, AvatarMaxSize, AvatarMaxSize))

	ext := ".jpg"
	var encoded []byte
	if s.flags != nil && s.flags.Enabled(featureflags.AvatarWebP, in.UserID) {
		ext = ".webp"
		encoded, err = encodeWebP(fitted, WebPQuality)
	} else {
		encoded, err = encodeJPEG(fitted, JPEGQuality)
	}
	if err != nil {
		return "", models.NewInternalError(err)
	}

	name := uuid.NewString() + ext
	if err := writeBytesToFile(filepath.Join(s.uploadDir, avatarDir, name), encoded); err != nil {
		return "", models.NewInternalError(err)
	}
	return path.Join(uploadsRoute, avatarDir, name), nil
}

// RemoveAvatar deletes a previously stored avatar. URLs that do not point at
// this service's avatar directory are ignored.
func (s *ImageService) RemoveAvatar(url string) {
	prefix := path.Join(uploadsRoute, avatarDir) + "/"
	if !strings.HasPrefix(url, prefix) {
		return
	}
	name := strings.TrimPrefix(url, prefix)
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return
	}
	_ = os.Remove(filepath.Join(s.uploadDir, avatarDir, name))
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

// flattenOnWhite composites transparent pixels onto white, since jpeg has no alpha.
func flattenOnWhite(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == d {
		return true
	}
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}

func writeBytesToFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
