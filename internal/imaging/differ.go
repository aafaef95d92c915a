package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"time"

	apperrors "github.com/anime-shed/forgery-inspector-go/internal/errors"

	"golang.org/x/image/draw"
)

// localDiffer computes |A - B| per RGB channel in-process.
type localDiffer struct{}

// NewLocalDiffer creates an in-process differ. The result is a PNG-encoded
// RGB image so no further loss is introduced.
func NewLocalDiffer() Differ {
	return &localDiffer{}
}

func (d *localDiffer) Difference(ctx context.Context, a, b []byte) ([]byte, error) {
	imgA, _, err := image.Decode(bytes.NewReader(a))
	if err != nil {
		return nil, apperrors.NewImageDecodeError("failed to decode first difference operand", err)
	}
	imgB, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, apperrors.NewImageDecodeError("failed to decode second difference operand", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	diff := DifferenceImage(imgA, imgB)

	var buf bytes.Buffer
	if err := png.Encode(&buf, diff); err != nil {
		return nil, apperrors.NewImageDecodeError("failed to encode difference image", err)
	}
	return buf.Bytes(), nil
}

// DifferenceImage returns the per-channel absolute difference of a and b.
// b is rescaled to a's size when the dimensions disagree. Alpha is ignored.
func DifferenceImage(a, b image.Image) *image.NRGBA {
	na := toNRGBA(a, a.Bounds().Dx(), a.Bounds().Dy())
	nb := toNRGBA(b, na.Rect.Dx(), na.Rect.Dy())

	out := image.NewNRGBA(na.Rect)
	for i := 0; i < len(na.Pix); i += 4 {
		out.Pix[i] = absDiff(na.Pix[i], nb.Pix[i])
		out.Pix[i+1] = absDiff(na.Pix[i+1], nb.Pix[i+1])
		out.Pix[i+2] = absDiff(na.Pix[i+2], nb.Pix[i+2])
		out.Pix[i+3] = 0xff
	}
	return out
}

func toNRGBA(img image.Image, width, height int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	src := img.Bounds()
	if src.Dx() == width && src.Dy() == height {
		draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Src)
	} else {
		draw.BiLinear.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)
	}
	return dst
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

// differenceRequest is the payload accepted by the numeric-compute service.
type differenceRequest struct {
	Image1  string `json:"image1"`
	Image2  string `json:"image2"`
	Quality int    `json:"quality,omitempty"`
}

type qualityKey struct{}

// WithQuality records the JPEG quality that produced the operands of a
// Difference call. The remote differ forwards it; local differencing ignores it.
func WithQuality(ctx context.Context, quality int) context.Context {
	return context.WithValue(ctx, qualityKey{}, quality)
}

// QualityFromContext returns the quality set by WithQuality, or 0.
func QualityFromContext(ctx context.Context) int {
	q, _ := ctx.Value(qualityKey{}).(int)
	return q
}

// remoteDiffer delegates differencing to an external numeric-compute
// service over HTTP.
type remoteDiffer struct {
	endpoint string
	client   *http.Client
}

// NewRemoteDiffer creates a differ that POSTs base64 image pairs to endpoint
// and reads the raw difference bytes from the response body. It makes a
// single attempt per call.
func NewRemoteDiffer(endpoint string, timeout time.Duration) Differ {
	transport := &http.Transport{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	return &remoteDiffer{
		endpoint: endpoint,
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}
}

func (d *remoteDiffer) Difference(ctx context.Context, a, b []byte) ([]byte, error) {
	payload, err := json.Marshal(differenceRequest{
		Image1:  base64.StdEncoding.EncodeToString(a),
		Image2:  base64.StdEncoding.EncodeToString(b),
		Quality: QualityFromContext(ctx),
	})
	if err != nil {
		return nil, apperrors.NewImageDecodeError("failed to build difference request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.NewImageDecodeError("invalid difference service URL", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/octet-stream, image/*")
	req.Header.Set("User-Agent", "Forgery-Inspector/1.0")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, apperrors.NewImageDecodeError("difference service request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		appErr := apperrors.NewImageDecodeError(fmt.Sprintf("difference service returned status %d", resp.StatusCode), nil)
		appErr.Details = string(bytes.TrimSpace(detail))
		return nil, appErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewImageDecodeError("failed to read difference service response", err)
	}
	if len(body) == 0 {
		return nil, apperrors.NewImageDecodeError("difference service returned an empty body", nil)
	}
	return body, nil
}
