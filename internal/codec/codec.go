package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	// ErrMalformed 帧数据不是合法的压缩图像
	ErrMalformed = errors.New("frame is not a valid image")
	// ErrTooLarge 帧超出配置的大小上限
	ErrTooLarge = errors.New("frame exceeds size limit")
)

// maxPixelDim 像素尺寸硬上限，防止小字节数的解压炸弹
const maxPixelDim = 4096

// Decode 把一帧压缩图像字节解码为像素矩阵。maxBytes <= 0 表示不限制字节数。
// 纯函数，无副作用。
func Decode(buf []byte, maxBytes int) (image.Image, error) {
	if len(buf) == 0 {
		return nil, ErrMalformed
	}
	if maxBytes > 0 && len(buf) > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(buf))
	}

	// 先只读图像头，校验尺寸后再做完整解码
	cfg, _, err := image.DecodeConfig(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, ErrMalformed
	}
	if cfg.Width > maxPixelDim || cfg.Height > maxPixelDim {
		return nil, fmt.Errorf("%w: %dx%d pixels", ErrTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return img, nil
}

// Downscale 等比缩小图像到 maxSize 以内并返回缩放系数，
// 调用方用该系数把推理返回的坐标换算回原始帧像素空间。
// 图像本身已小于 maxSize 时原样返回，系数为 1。
func Downscale(img image.Image, maxSize int) (image.Image, float64) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if maxSize <= 0 || (width <= maxSize && height <= maxSize) {
		return img, 1
	}

	var scale float64
	var newWidth, newHeight int
	if width > height {
		scale = float64(maxSize) / float64(width)
		newWidth = maxSize
		newHeight = int(float64(height) * scale)
	} else {
		scale = float64(maxSize) / float64(height)
		newHeight = maxSize
		newWidth = int(float64(width) * scale)
	}
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return resized, scale
}
