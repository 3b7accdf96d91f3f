// Package output exposes produced media in the representation a caller asks for.
package output

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"strings"
)

// Format selects a representation.
type Format int

const (
	Bytes Format = iota
	FileFormat
	DataURL
)

func (f Format) String() string {
	switch f {
	case FileFormat:
		return "file"
	case DataURL:
		return "dataurl"
	default:
		return "bytes"
	}
}

// ParseFormat accepts bytes, file or dataurl; empty means bytes.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bytes", "raw":
		return Bytes, nil
	case "file":
		return FileFormat, nil
	case "dataurl", "data-url", "base64":
		return DataURL, nil
	}
	return Bytes, fmt.Errorf("unknown output format %q", s)
}

// Artifact is one produced output.
type Artifact struct {
	Name     string
	MimeType string
	Data     []byte
}

// File is a named, typed wrapper around an artifact's content.
type File struct {
	Name string
	Type string
	Size int64
	data []byte
}

// Reader returns a fresh reader over the file content.
func (f *File) Reader() io.Reader { return bytes.NewReader(f.data) }

// Bytes returns the file content.
func (f *File) Bytes() []byte { return f.data }

// Representation holds exactly one of its fields, according to Format.
type Representation struct {
	Format  Format
	Bytes   []byte
	File    *File
	DataURL string
}

// Represent converts an artifact into the requested format.
func Represent(a Artifact, format Format) (Representation, error) {
	switch format {
	case Bytes:
		return Representation{Format: Bytes, Bytes: a.Data}, nil
	case FileFormat:
		name := a.Name
		if name == "" {
			name = "output" + Extension(a.MimeType)
		}
		return Representation{Format: FileFormat, File: &File{
			Name: name,
			Type: a.MimeType,
			Size: int64(len(a.Data)),
			data: a.Data,
		}}, nil
	case DataURL:
		return Representation{Format: DataURL, DataURL: EncodeDataURL(a.MimeType, a.Data)}, nil
	}
	return Representation{}, fmt.Errorf("unknown output format %d", format)
}

// EncodeDataURL renders data as data:<mime>;base64,<payload>.
func EncodeDataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Extension returns the file extension for a (possibly parameterized) MIME type.
func Extension(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	base = strings.ToLower(strings.TrimSpace(base))
	switch base {
	case "video/webm", "audio/webm":
		return ".webm"
	case "video/mp4", "audio/mp4":
		return ".mp4"
	case "video/x-matroska":
		return ".mkv"
	case "application/vnd.apple.mpegurl", "application/x-mpegurl":
		return ".m3u8"
	case "video/mp2t":
		return ".ts"
	}
	if exts, err := mime.ExtensionsByType(base); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

// ContentType guesses the MIME type of a package file from its name.
func ContentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".m3u8"):
		return "application/vnd.apple.mpegurl"
	case strings.HasSuffix(name, ".ts"):
		return "video/mp2t"
	case strings.HasSuffix(name, ".webm"):
		return "video/webm"
	case strings.HasSuffix(name, ".mp4"):
		return "video/mp4"
	}
	return "application/octet-stream"
}
