package assetdb

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/chai2010/tiff"
	"golang.org/x/image/bmp"
)

// TextureData is a decoded image, 8-bit RGBA rows top to bottom.
type TextureData struct {
	Width  int
	Height int
	RGBA   []byte
}

// decoderCache is the one-entry cache mapping the last requested image
// id to its decoded result. Constructing a decoder run is expensive; a
// request for a different id evicts the entry, and a failed request is
// remembered so it is not retried on every call.
type decoderCache struct {
	valid bool
	id    uint32
	data  *TextureData
	err   error
}

// ImageData decodes the image by id, going through the caller-supplied
// loader for file-backed sources. The result, success or failure, is
// cached until a different id is requested.
func (d *Document) ImageData(id uint32) (*TextureData, error) {
	if !d.open {
		return nil, &OpenError{Reason: "document is not open"}
	}
	if int(id) >= len(d.images) {
		return nil, indexErr("image", int(id), len(d.images))
	}
	if d.cache.valid && d.cache.id == id {
		return d.cache.data, d.cache.err
	}
	data, err := d.decodeImage(&d.images[id])
	d.cache = decoderCache{valid: true, id: id, data: data, err: err}
	return data, err
}

// TextureImageData decodes the image referenced by a texture.
func (d *Document) TextureImageData(id uint32) (*TextureData, error) {
	if !d.open {
		return nil, &OpenError{Reason: "document is not open"}
	}
	if int(id) >= len(d.textures) {
		return nil, indexErr("texture", int(id), len(d.textures))
	}
	return d.ImageData(d.textures[id].Image)
}

func (d *Document) decodeImage(img *Image) (*TextureData, error) {
	raw := img.Blob
	if raw == nil {
		b, ok := d.opts.Loader.Load(img.Key)
		if !ok {
			return nil, &ResourceError{Key: img.Key}
		}
		// every successful load gets a close, even when decoding fails
		defer d.opts.Loader.Close(img.Key)
		raw = b
	}
	im, err := decodePixels(raw, img.Key)
	if err != nil {
		return nil, err
	}
	return rgbaData(im), nil
}

func decodePixels(data []byte, key string) (image.Image, error) {
	ft := strings.TrimPrefix(strings.ToLower(filepath.Ext(key)), ".")
	if im, err := readImage(bytes.NewReader(data), ft); err == nil {
		return im, nil
	}
	im, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &UnsupportedError{Kind: "image", Detail: key + ": " + err.Error()}
	}
	return im, nil
}

func readImage(rd io.Reader, ft string) (image.Image, error) {
	switch ft {
	case "jpeg", "jpg":
		return jpeg.Decode(rd)
	case "png":
		return png.Decode(rd)
	case "gif":
		return gif.Decode(rd)
	case "bmp":
		return bmp.Decode(rd)
	case "tif", "tiff":
		return tiff.Decode(rd)
	default:
		return nil, errors.New("unknow format")
	}
}

func rgbaData(img image.Image) *TextureData {
	bd := img.Bounds()
	buf := make([]byte, 0, bd.Dx()*bd.Dy()*4)
	for y := 0; y < bd.Dy(); y++ {
		for x := 0; x < bd.Dx(); x++ {
			cl := img.At(bd.Min.X+x, bd.Min.Y+y)
			r, g, b, a := color.RGBAModel.Convert(cl).RGBA()
			buf = append(buf, byte(r&0xff), byte(g&0xff), byte(b&0xff), byte(a&0xff))
		}
	}
	return &TextureData{Width: bd.Dx(), Height: bd.Dy(), RGBA: buf}
}
