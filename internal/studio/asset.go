package studio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"portrait-studio-bot/internal/imaging"
)

// Asset is an image as it travels through the studio: a base64 payload plus
// its mime type. Width and height are best effort and stay zero when the
// payload was never probed. Assets are values; a transformation returns a
// new one.
type Asset struct {
	Data     string
	MimeType string
	Width    int
	Height   int
}

func AssetFromBytes(raw []byte, mimeType string) Asset {
	a := Asset{
		Data:     base64.StdEncoding.EncodeToString(raw),
		MimeType: strings.TrimSpace(mimeType),
	}
	if w, h, err := imaging.ProbeSize(raw); err == nil {
		a.Width = w
		a.Height = h
	}
	return a
}

var dataURLRegex = regexp.MustCompile(`^data:([^;]+);base64,`)

func AssetFromDataURL(value string) (Asset, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Asset{}, errors.New("empty image payload")
	}

	mime := "image/png"
	if matches := dataURLRegex.FindStringSubmatch(value); len(matches) == 2 {
		mime = matches[1]
	}

	raw, err := base64.StdEncoding.DecodeString(stripDataURLPrefix(value))
	if err != nil {
		return Asset{}, fmt.Errorf("decode base64: %w", err)
	}
	return AssetFromBytes(raw, mime), nil
}

func (a Asset) Bytes() ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(a.Data)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return raw, nil
}

func (a Asset) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", a.MimeType, a.Data)
}

func (a Asset) HasSize() bool {
	return a.Width > 0 && a.Height > 0
}

func stripDataURLPrefix(value string) string {
	if idx := strings.IndexByte(value, ','); idx >= 0 {
		return value[idx+1:]
	}
	return value
}
