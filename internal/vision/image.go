package vision

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrBadImage marks submissions that could not be decoded into an image.
var ErrBadImage = errors.New("undecodable image")

// DecodeDataURL decodes a "data:image/...;base64,<payload>" string into raw
// image bytes. A bare base64 string (no data-URL header) is accepted too.
func DecodeDataURL(s string) ([]byte, error) {
	payload := s
	if strings.HasPrefix(s, "data:") {
		i := strings.IndexByte(s, ',')
		if i < 0 {
			return nil, fmt.Errorf("%w: malformed data URL", ErrBadImage)
		}
		payload = s[i+1:]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	return data, nil
}

// decodeImage parses raw bytes into an image. JPEG, PNG, WebP and BMP are
// registered.
func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	return img, nil
}

// toCHW converts an image to CHW float32 with per-channel normalization:
// pixel = (pixel - mean) / std. The image is resized to targetW x targetH
// with nearest-neighbour sampling, which is sufficient for model input.
func toCHW(img image.Image, targetW, targetH int, mean, std [3]float32) []float32 {
	bounds := img.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()

	data := make([]float32, 3*targetH*targetW)
	plane := targetH * targetW

	for y := 0; y < targetH; y++ {
		srcY := bounds.Min.Y + y*srcH/targetH
		for x := 0; x < targetW; x++ {
			srcX := bounds.Min.X + x*srcW/targetW
			r, g, b, _ := img.At(srcX, srcY).RGBA()

			idx := y*targetW + x
			data[idx] = (float32(r>>8) - mean[0]) / std[0]
			data[plane+idx] = (float32(g>>8) - mean[1]) / std[1]
			data[2*plane+idx] = (float32(b>>8) - mean[2]) / std[2]
		}
	}

	return data
}

func preprocessForDetection(img image.Image, w, h int) []float32 {
	return toCHW(img, w, h, [3]float32{127.5, 127.5, 127.5}, [3]float32{128.0, 128.0, 128.0})
}

func preprocessForEmbedding(img image.Image, w, h int) []float32 {
	return toCHW(img, w, h, [3]float32{127.5, 127.5, 127.5}, [3]float32{127.5, 127.5, 127.5})
}

func preprocessForLandmarks(img image.Image, w, h int) []float32 {
	return toCHW(img, w, h, [3]float32{0, 0, 0}, [3]float32{255, 255, 255})
}

// cropFace extracts a face region with 10% padding on each side, clamped to
// the image bounds. Returns nil for a degenerate box.
func cropFace(img image.Image, bbox [4]float32) image.Image {
	bounds := img.Bounds()

	x1, y1 := int(bbox[0]), int(bbox[1])
	x2, y2 := int(bbox[2]), int(bbox[3])

	w := x2 - x1
	h := y2 - y1
	if w <= 0 || h <= 0 {
		return nil
	}

	x1 -= w / 10
	y1 -= h / 10
	x2 += w / 10
	y2 += h / 10

	if x1 < bounds.Min.X {
		x1 = bounds.Min.X
	}
	if y1 < bounds.Min.Y {
		y1 = bounds.Min.Y
	}
	if x2 > bounds.Max.X {
		x2 = bounds.Max.X
	}
	if y2 > bounds.Max.Y {
		y2 = bounds.Max.Y
	}
	if x2-x1 <= 0 || y2-y1 <= 0 {
		return nil
	}

	crop := image.NewRGBA(image.Rect(0, 0, x2-x1, y2-y1))
	for cy := y1; cy < y2; cy++ {
		for cx := x1; cx < x2; cx++ {
			crop.Set(cx-x1, cy-y1, img.At(cx, cy))
		}
	}

	return crop
}
