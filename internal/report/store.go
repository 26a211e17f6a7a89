package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Meta is the bundle metadata persisted as meta.json.
type Meta struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	TS    string `json:"ts"`
}

// NewFolder creates a uniquely named report directory under historyDir.
// The name combines a UTC second-resolution timestamp with a millisecond
// tiebreaker; if two calls land on the same millisecond a counter suffix
// keeps the folders distinct.
func NewFolder(historyDir string, now time.Time) (string, error) {
	if err := os.MkdirAll(historyDir, 0o755); err != nil {
		return "", fmt.Errorf("create history dir: %w", err)
	}
	base := fmt.Sprintf("report_%s_%05d", now.UTC().Format("20060102T150405Z"), now.UnixMilli()%100000)
	name := base
	for i := 1; ; i++ {
		path := filepath.Join(historyDir, name)
		err := os.Mkdir(path, 0o755)
		if err == nil {
			return path, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("create report folder: %w", err)
		}
		name = fmt.Sprintf("%s_%d", base, i)
	}
}

// WriteMeta persists the bundle metadata into folder.
func WriteMeta(folder, title, text string, ts time.Time) error {
	meta := Meta{Title: title, Text: text, TS: ts.UTC().Format(time.RFC3339)}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(folder, "meta.json"), b, 0o644)
}

// ReadMeta loads meta.json back from folder.
func ReadMeta(folder string) (Meta, error) {
	var meta Meta
	b, err := os.ReadFile(filepath.Join(folder, "meta.json"))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(b, &meta)
	return meta, err
}

// CopyInto copies each source path into folder, keeping the base name.
// Missing sources are skipped, not fatal. Returns the destination paths of
// the files actually copied.
func CopyInto(folder string, paths []string) []string {
	var copied []string
	for _, src := range paths {
		if _, err := os.Stat(src); err != nil {
			continue
		}
		dst := filepath.Join(folder, filepath.Base(src))
		if err := copyFile(src, dst); err != nil {
			continue
		}
		copied = append(copied, dst)
	}
	return copied
}

// SaveArtifact writes an in-memory artifact into the bundle folder under
// name (directory components are stripped), with no delivery side effects.
// Returns the destination path.
func SaveArtifact(folder, name string, data []byte) (string, error) {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "", errors.New("artifact name is empty")
	}
	dst := filepath.Join(folder, base)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("save artifact: %w", err)
	}
	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
