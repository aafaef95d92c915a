package analyzer

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/anime-shed/forgery-inspector-go/internal/imaging"
)

func solidGray(width, height int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func checkerboard(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if (x+y)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

// fillBlock paints a size x size square at (x, y).
func fillBlock(img *image.Gray, x, y, size int, v uint8) {
	for yy := y; yy < y+size && yy < img.Rect.Dy(); yy++ {
		for xx := x; xx < x+size && xx < img.Rect.Dx(); xx++ {
			img.SetGray(xx, yy, color.Gray{Y: v})
		}
	}
}

func rasterOf(img *image.Gray) imaging.Raster {
	return imaging.Raster{
		Samples:  img.Pix,
		Width:    img.Rect.Dx(),
		Height:   img.Rect.Dy(),
		Channels: 1,
	}
}

func gradientRGBA(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 255 / width), uint8(y * 255 / height), 128, 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode failed: %v", err)
	}
	return buf.Bytes()
}

// withTextChunk inserts a tEXt chunk right after the PNG IHDR chunk.
func withTextChunk(t *testing.T, data []byte, keyword, text string) []byte {
	t.Helper()
	const ihdrEnd = 8 + 8 + 13 + 4
	if len(data) < ihdrEnd {
		t.Fatal("png too short")
	}

	payload := append([]byte(keyword), 0)
	payload = append(payload, text...)

	var chunk bytes.Buffer
	binary.Write(&chunk, binary.BigEndian, uint32(len(payload)))
	chunk.WriteString("tEXt")
	chunk.Write(payload)
	crc := crc32.ChecksumIEEE(append([]byte("tEXt"), payload...))
	binary.Write(&chunk, binary.BigEndian, crc)

	out := make([]byte, 0, len(data)+chunk.Len())
	out = append(out, data[:ihdrEnd]...)
	out = append(out, chunk.Bytes()...)
	out = append(out, data[ihdrEnd:]...)
	return out
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("jpeg encode failed: %v", err)
	}
	return buf.Bytes()
}

// exifTag is an ASCII-valued EXIF tag.
type exifTag struct {
	id   uint16
	text string
}

const (
	tagSoftware         = 0x0131
	tagDateTime         = 0x0132
	tagExifIFDPointer   = 0x8769
	tagDateTimeOriginal = 0x9003
)

// withEXIF inserts an APP1 EXIF segment after the JPEG SOI marker. ifd0 tags
// go in the primary IFD; exifIFD tags, if any, in an Exif sub-IFD.
func withEXIF(t *testing.T, data []byte, ifd0, exifIFD []exifTag) []byte {
	t.Helper()
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Fatal("not a jpeg")
	}

	order := binary.BigEndian
	ifdSize := func(n int) int { return 2 + 12*n + 4 }
	dataSize := func(tags []exifTag) int {
		n := 0
		for _, tag := range tags {
			if l := len(tag.text) + 1; l > 4 {
				n += l + l%2
			}
		}
		return n
	}

	ifd0Count := len(ifd0)
	if len(exifIFD) > 0 {
		ifd0Count++
	}
	ifd0Offset := 8
	subOffset := ifd0Offset + ifdSize(ifd0Count) + dataSize(ifd0)

	var tiff bytes.Buffer
	tiff.WriteString("MM")
	binary.Write(&tiff, order, uint16(42))
	binary.Write(&tiff, order, uint32(ifd0Offset))

	writeIFD := func(offset int, tags []exifTag, pointer bool) {
		count := len(tags)
		if pointer {
			count++
		}
		valueOffset := offset + ifdSize(count)
		var values bytes.Buffer

		binary.Write(&tiff, order, uint16(count))
		for _, tag := range tags {
			val := append([]byte(tag.text), 0)
			binary.Write(&tiff, order, tag.id)
			binary.Write(&tiff, order, uint16(2)) // ASCII
			binary.Write(&tiff, order, uint32(len(val)))
			if len(val) <= 4 {
				inline := make([]byte, 4)
				copy(inline, val)
				tiff.Write(inline)
				continue
			}
			binary.Write(&tiff, order, uint32(valueOffset+values.Len()))
			values.Write(val)
			if len(val)%2 == 1 {
				values.WriteByte(0)
			}
		}
		if pointer {
			binary.Write(&tiff, order, uint16(tagExifIFDPointer))
			binary.Write(&tiff, order, uint16(4)) // LONG
			binary.Write(&tiff, order, uint32(1))
			binary.Write(&tiff, order, uint32(subOffset))
		}
		binary.Write(&tiff, order, uint32(0))
		tiff.Write(values.Bytes())
	}

	writeIFD(ifd0Offset, ifd0, len(exifIFD) > 0)
	if len(exifIFD) > 0 {
		if tiff.Len() != subOffset {
			t.Fatalf("exif layout mismatch: at %d, want %d", tiff.Len(), subOffset)
		}
		writeIFD(subOffset, exifIFD, false)
	}

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)
	var segment bytes.Buffer
	segment.Write([]byte{0xFF, 0xE1})
	binary.Write(&segment, binary.BigEndian, uint16(len(payload)+2))
	segment.Write(payload)

	out := make([]byte, 0, len(data)+segment.Len())
	out = append(out, data[:2]...)
	out = append(out, segment.Bytes()...)
	out = append(out, data[2:]...)
	return out
}
