package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"net/http"
	"path"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
)

var ErrUnsupportedImage = errors.New("filestore: unsupported image format")

/* =======================================================================
   WebP options (env driven)
======================================================================= */

type WebPOptions struct {
	MaxW        int     // resize keeping aspect
	MaxH        int
	TargetKB    int     // 0 = encode once with Quality
	Quality     float32
	MinQ        float32
	MaxQ        float32
	ToleranceKB int
	MinW        int
	MinH        int
	ScaleStep   float32 // 0 < step < 1
}

func WebPOptionsFromEnv() WebPOptions {
	return WebPOptions{
		MaxW:        envInt("IMAGE_WEBP_MAX_W", 1600),
		MaxH:        envInt("IMAGE_WEBP_MAX_H", 1600),
		TargetKB:    envInt("IMAGE_WEBP_TARGET_KB", 0),
		Quality:     envFloat("IMAGE_WEBP_QUALITY", 80),
		MinQ:        envFloat("IMAGE_WEBP_MIN_Q", 45),
		MaxQ:        envFloat("IMAGE_WEBP_MAX_Q", 85),
		ToleranceKB: envInt("IMAGE_WEBP_TOLERANCE_KB", 8),
		MinW:        envInt("IMAGE_WEBP_MIN_W", 480),
		MinH:        envInt("IMAGE_WEBP_MIN_H", 480),
		ScaleStep:   envFloat("IMAGE_WEBP_SCALE_STEP", 0.85),
	}
}

func (o WebPOptions) withDefaults() WebPOptions {
	if o.Quality <= 0 {
		o.Quality = 80
	}
	if o.MinQ <= 0 {
		o.MinQ = 45
	}
	if o.MaxQ <= 0 {
		o.MaxQ = 85
	}
	if o.MinQ > o.MaxQ {
		o.MinQ, o.MaxQ = o.MaxQ, o.MinQ
	}
	if o.ToleranceKB <= 0 {
		o.ToleranceKB = 8
	}
	if o.MinW <= 0 {
		o.MinW = 480
	}
	if o.MinH <= 0 {
		o.MinH = 480
	}
	if o.ScaleStep <= 0 || o.ScaleStep >= 1 {
		o.ScaleStep = 0.85
	}
	return o
}

/* =======================================================================
   Decode / resize / encode
======================================================================= */

// decodeImage sniffs the bytes. JPEG and PNG go through imaging so EXIF
// orientation from phone cameras is applied.
func decodeImage(all []byte) (image.Image, error) {
	if len(all) == 0 {
		return nil, fmt.Errorf("empty file")
	}
	head := all
	if len(head) > 512 {
		head = head[:512]
	}
	ct := http.DetectContentType(head)
	switch {
	case strings.Contains(ct, "jpeg"), strings.Contains(ct, "png"):
		return imaging.Decode(bytes.NewReader(all), imaging.AutoOrientation(true))
	case strings.Contains(ct, "webp"):
		return webp.Decode(bytes.NewReader(all))
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, ct)
}

func scaleTo(src image.Image, nw, nh int) image.Image {
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

func downscaleIfNeeded(src image.Image, maxW, maxH int) image.Image {
	if maxW <= 0 && maxH <= 0 {
		return src
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if (maxW <= 0 || w <= maxW) && (maxH <= 0 || h <= maxH) {
		return src
	}
	scale := 1.0
	if maxW > 0 {
		scale = math.Min(scale, float64(maxW)/float64(w))
	}
	if maxH > 0 {
		scale = math.Min(scale, float64(maxH)/float64(h))
	}
	return scaleTo(src, int(math.Round(float64(w)*scale)), int(math.Round(float64(h)*scale)))
}

func encodeQ(img image.Image, q float32) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := webp.Encode(buf, img, &webp.Options{Quality: q}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeToWebP encodes once when TargetKB is 0. Otherwise it binary-searches
// the quality and shrinks the image until the target fits or MinW/MinH is hit.
func encodeToWebP(img image.Image, opt WebPOptions) ([]byte, error) {
	opt = opt.withDefaults()
	if opt.TargetKB <= 0 {
		return encodeQ(img, opt.Quality)
	}

	limit := (opt.TargetKB + opt.ToleranceKB) * 1024
	cur := img
	var last []byte
	for attempt := 0; attempt < 6; attempt++ {
		low, high := opt.MinQ, opt.MaxQ
		var best []byte
		for i := 0; i < 8; i++ {
			q := (low + high) / 2
			data, err := encodeQ(cur, q)
			if err != nil {
				return nil, err
			}
			if len(data) <= limit {
				best = data
				low = q
			} else {
				high = q
			}
		}
		if best == nil {
			var err error
			if best, err = encodeQ(cur, opt.MinQ); err != nil {
				return nil, err
			}
		}
		last = best
		if len(best) <= limit {
			return best, nil
		}

		b := cur.Bounds()
		cw, ch := b.Dx(), b.Dy()
		if cw <= opt.MinW && ch <= opt.MinH {
			return best, nil
		}
		scale := math.Sqrt(float64(limit)/float64(len(best))) * 0.95
		scale = math.Max(0.5, math.Min(scale, float64(opt.ScaleStep)))
		nw := max(int(math.Round(float64(cw)*scale)), opt.MinW)
		nh := max(int(math.Round(float64(ch)*scale)), opt.MinH)
		if nw >= cw && nh >= ch {
			return best, nil
		}
		cur = scaleTo(cur, nw, nh)
	}
	return last, nil
}

/* =======================================================================
   ImageOptimizer: a FileStore decorator
======================================================================= */

// ImageOptimizer re-encodes JPEG/PNG/WebP uploads as WebP before handing
// them to Next. Anything else, or an image that fails to decode, is stored
// as received.
type ImageOptimizer struct {
	Next    FileStore
	Options WebPOptions
	Log     *logrus.Logger
}

func NewImageOptimizer(next FileStore, opts WebPOptions, log *logrus.Logger) *ImageOptimizer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ImageOptimizer{Next: next, Options: opts, Log: log}
}

func isOptimizable(contentType string) bool {
	ct := strings.ToLower(contentType)
	return ct == "image/jpeg" || ct == "image/jpg" || ct == "image/png" || ct == "image/webp"
}

// Optimize returns the WebP bytes for data.
func (o *ImageOptimizer) Optimize(data []byte) ([]byte, error) {
	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}
	img = downscaleIfNeeded(img, o.Options.MaxW, o.Options.MaxH)
	return encodeToWebP(img, o.Options)
}

func (o *ImageOptimizer) Put(ctx context.Context, bucket, p string, data []byte, contentType string) (string, error) {
	if !isOptimizable(contentType) {
		return o.Next.Put(ctx, bucket, p, data, contentType)
	}
	out, err := o.Optimize(data)
	if err != nil {
		o.Log.WithError(err).Warnf("[FileStore] keep original %s", p)
		return o.Next.Put(ctx, bucket, p, data, contentType)
	}
	webpPath := strings.TrimSuffix(p, path.Ext(p)) + ".webp"
	return o.Next.Put(ctx, bucket, webpPath, out, "image/webp")
}

func (o *ImageOptimizer) Delete(ctx context.Context, locator string) error {
	return o.Next.Delete(ctx, locator)
}

var _ FileStore = (*ImageOptimizer)(nil)
