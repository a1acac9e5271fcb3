package images

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// MaxUploadBytes is the ceiling for uploaded and captured image payloads.
const MaxUploadBytes = 2 * 1024 * 1024

var (
	ErrTooLarge   = errors.New("image exceeds the 2 MiB upload limit")
	ErrNotImage   = errors.New("file is not an image")
	ErrEmptyURL   = errors.New("image URL is empty")
	ErrOutOfRange = errors.New("image index out of range")
)

// Kind distinguishes editable remote URLs from inline payloads. Inline
// entries carry data URLs and must never be offered for URL editing.
type Kind string

const (
	KindURL    Kind = "url"
	KindInline Kind = "inline"
)

// Origin records how an entry got into the list.
type Origin string

const (
	OriginManual Origin = "manual"
	OriginUpload Origin = "upload"
	OriginCamera Origin = "camera"
)

type Entry struct {
	Kind   Kind   `json:"kind"`
	Origin Origin `json:"origin"`
	Value  string `json:"value"`
}

// DataURL validates and encodes a raw image payload as a base64 data URL.
// Rejections happen before any encoding work, so a failed call leaves no
// partial state behind.
func DataURL(contentType string, data []byte) (string, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: content type %q", ErrNotImage, contentType)
	}
	if len(data) > MaxUploadBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// StagingList is the ordered set of images being assembled for a product
// before save. It is in-memory only; nothing is uploaded anywhere until the
// product mutation carries the values upstream.
type StagingList struct {
	entries []Entry
}

func NewStagingList() *StagingList {
	return &StagingList{}
}

// FromURLs seeds a list from a product's existing image URLs, for editing.
func FromURLs(urls []string) *StagingList {
	list := NewStagingList()
	for _, u := range urls {
		if u == "" {
			continue
		}
		kind := KindURL
		if strings.HasPrefix(u, "data:") {
			kind = KindInline
		}
		list.entries = append(list.entries, Entry{Kind: kind, Origin: OriginManual, Value: u})
	}
	return list
}

func (l *StagingList) AddURL(url string) error {
	if strings.TrimSpace(url) == "" {
		return ErrEmptyURL
	}
	l.entries = append(l.entries, Entry{Kind: KindURL, Origin: OriginManual, Value: url})
	return nil
}

func (l *StagingList) AddUpload(contentType string, data []byte) error {
	return l.addInline(OriginUpload, contentType, data)
}

func (l *StagingList) AddCapturedFrame(contentType string, data []byte) error {
	return l.addInline(OriginCamera, contentType, data)
}

func (l *StagingList) addInline(origin Origin, contentType string, data []byte) error {
	value, err := DataURL(contentType, data)
	if err != nil {
		return err
	}
	l.entries = append(l.entries, Entry{Kind: KindInline, Origin: origin, Value: value})
	return nil
}

// RemoveAt drops the entry at index i, preserving the order of the rest.
func (l *StagingList) RemoveAt(i int) error {
	if i < 0 || i >= len(l.entries) {
		return ErrOutOfRange
	}
	l.entries = append(l.entries[:i], l.entries[i+1:]...)
	return nil
}

func (l *StagingList) Len() int {
	return len(l.entries)
}

func (l *StagingList) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Values returns the image values in order, the shape the product model
// carries upstream.
func (l *StagingList) Values() []string {
	values := make([]string, len(l.entries))
	for i, e := range l.entries {
		values[i] = e.Value
	}
	return values
}
