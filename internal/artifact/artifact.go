// Package artifact reads and writes the serialized vocabulary and model blobs produced
// by the training pipeline.
//
// An artifact is a JSON envelope carrying its kind, a format version and the payload.
// Files may be gzip-compressed; compression is detected from the magic bytes, not the
// file name. Readers accept exactly FormatVersion; payload fields unknown to this build
// are ignored so training can add optional fields without a version bump.
package artifact

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"
)

// FormatVersion is the envelope version this build reads and writes.
const FormatVersion = 1

var (
	ErrNotFound = errors.New("artifact not found")
	ErrCorrupt  = errors.New("artifact corrupt")
)

// Kind names what an artifact holds.
type Kind string

const (
	KindVocabulary Kind = "vocabulary"
	KindModel      Kind = "model"
)

// Header describes a loaded artifact without its payload.
type Header struct {
	Kind          Kind              `json:"kind"`
	FormatVersion int               `json:"format_version"`
	CreatedAt     time.Time         `json:"created_at,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type envelope struct {
	Header
	Payload json.RawMessage `json:"payload"`
}

var gzipMagic = []byte{0x1f, 0x8b}

// Load decodes the artifact at path into v. The file is closed before Load returns on
// every path. Missing files fail with ErrNotFound; anything unreadable, of the wrong
// kind or of another format version fails with ErrCorrupt.
func Load(path string, kind Kind, v any) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Header{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Header{}, fmt.Errorf("open artifact %s: %w", path, err)
	}
	defer f.Close()

	hdr, err := Decode(f, kind, v)
	if err != nil {
		return Header{}, fmt.Errorf("%s: %w", path, err)
	}

	log.Debug().
		Str("path", path).
		Str("kind", string(hdr.Kind)).
		Int("format_version", hdr.FormatVersion).
		Msg("artifact loaded")

	return hdr, nil
}

// Decode reads an artifact envelope from r into v.
func Decode(r io.Reader, kind Kind, v any) (Header, error) {
	br := bufio.NewReader(r)

	var src io.Reader = br
	if magic, err := br.Peek(len(gzipMagic)); err == nil && bytes.Equal(magic, gzipMagic) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return Header{}, fmt.Errorf("%w: gzip header: %v", ErrCorrupt, err)
		}
		defer zr.Close()
		src = zr
	}

	var env envelope
	if err := json.NewDecoder(src).Decode(&env); err != nil {
		return Header{}, fmt.Errorf("%w: decode envelope: %v", ErrCorrupt, err)
	}
	if env.Kind != kind {
		return Header{}, fmt.Errorf("%w: expected %s artifact, got %q", ErrCorrupt, kind, env.Kind)
	}
	if env.FormatVersion != FormatVersion {
		return Header{}, fmt.Errorf("%w: unsupported format version %d (want %d)", ErrCorrupt, env.FormatVersion, FormatVersion)
	}
	if len(env.Payload) == 0 || bytes.Equal(env.Payload, []byte("null")) {
		return Header{}, fmt.Errorf("%w: empty payload", ErrCorrupt)
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return Header{}, fmt.Errorf("%w: decode %s payload: %v", ErrCorrupt, kind, err)
	}

	return env.Header, nil
}

// SaveOptions controls how Save writes an artifact.
type SaveOptions struct {
	Compress bool
	Metadata map[string]string
}

// Save writes v as an artifact of the given kind. The file is written to a temporary
// name in the same directory and renamed into place.
func Save(path string, kind Kind, v any, opts SaveOptions) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", kind, err)
	}

	data, err := json.Marshal(envelope{
		Header: Header{
			Kind:          kind,
			FormatVersion: FormatVersion,
			CreatedAt:     time.Now().UTC(),
			Metadata:      opts.Metadata,
		},
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp, data, opts.Compress); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp artifact: %w", err)
	}

	return os.Rename(tmp.Name(), path)
}

func write(w io.Writer, data []byte, compress bool) error {
	if !compress {
		_, err := w.Write(data)
		return err
	}

	zw := gzip.NewWriter(w)
	if _, err := zw.Write(data); err != nil {
		return fmt.Errorf("compress artifact: %w", err)
	}
	return zw.Close()
}
