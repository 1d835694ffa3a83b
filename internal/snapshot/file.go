package snapshot

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/rwaddinsall/hcf2025/internal/cryptoutil"
	"github.com/rwaddinsall/hcf2025/internal/xerrors"
)

// DefaultPath is where the site build expects the snapshot, relative to the
// project root.
const DefaultPath = "src/data/strapi-content.json"

// maxDocumentBytes bounds what Decode will read.
const maxDocumentBytes = 64 << 20

// Encode renders the document as 2-space indented JSON. HTML in content
// fields is written as-is rather than <-escaped.
func Encode(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, xerrors.Wrap(err, "encode snapshot")
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Written describes a file produced by WriteFile.
type Written struct {
	Path   string
	Bytes  int
	SHA256 string
	Data   []byte
}

// WriteFile encodes doc and writes it to path, creating parent directories.
// The write goes to a temp file in the same directory that is synced and
// renamed over path, so readers see the old or the new file, never half.
func WriteFile(path string, doc *Document) (*Written, error) {
	data, err := Encode(doc)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, xerrors.Wrapf(err, "create snapshot dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".strapi-content-*.tmp")
	if err != nil {
		return nil, xerrors.Wrap(err, "create temp snapshot")
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return nil, xerrors.Wrap(err, "write snapshot data")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return nil, xerrors.Wrap(err, "fsync snapshot")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return nil, xerrors.Wrap(err, "close snapshot")
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return nil, xerrors.Wrap(err, "chmod snapshot")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return nil, xerrors.Wrapf(err, "rename snapshot to %s", path)
	}

	return &Written{
		Path:   path,
		Bytes:  len(data),
		SHA256: cryptoutil.SHA256Hex(data),
		Data:   data,
	}, nil
}

// ReadFile loads a snapshot written by WriteFile.
func ReadFile(path string) (*Document, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, xerrors.Wrapf(err, "open snapshot %s", path)
	}
	defer f.Close()

	doc, err := Decode(f)
	if err != nil {
		return nil, xerrors.Wrapf(err, "read snapshot %s", path)
	}
	return doc, nil
}

// Decode parses a snapshot. Missing or null collections come back empty so
// consumers never see a nil list.
func Decode(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxDocumentBytes+1))
	if err != nil {
		return nil, xerrors.Wrap(err, "read snapshot")
	}
	if len(data) > maxDocumentBytes {
		return nil, xerrors.Newf("snapshot exceeds %d bytes", maxDocumentBytes)
	}
	return Unmarshal(data)
}

func Unmarshal(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, xerrors.Wrap(err, "decode snapshot")
	}
	doc.normalize()
	return &doc, nil
}
