// Package backup exports one user's pantry into a signed tar.zst archive and restores it.
package backup

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"
)

const (
	manifestFileName = "manifest.yaml"
	ingredientsEntry = "data/ingredients.json"
	sessionsEntry    = "data/sessions.json"
	checksEntry      = "data/checks.json"

	// maxEntrySize bounds how much of one archive member is read into memory.
	maxEntrySize = 64 << 20
)

// BuildConfig configures backup creation.
type BuildConfig struct {
	Source Source
	UserID string
	Output string
	Signer *Signer
	Now    func() time.Time
	Stdout io.Writer
}

// Build exports the user's data from Source and writes the signed archive to Output.
func Build(ctx context.Context, cfg BuildConfig) (*Manifest, error) {
	if cfg.Source == nil {
		return nil, errors.New("source is required")
	}
	if strings.TrimSpace(cfg.UserID) == "" {
		return nil, errors.New("user id is required")
	}
	if cfg.Output == "" {
		return nil, errors.New("output path is required")
	}
	if cfg.Signer == nil {
		return nil, errors.New("signer is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Stdout == nil {
		cfg.Stdout = io.Discard
	}

	snap, err := cfg.Source.Export(ctx, cfg.UserID)
	if err != nil {
		return nil, err
	}

	docs := []struct {
		name  string
		count int
		value any
	}{
		{ingredientsEntry, len(snap.Ingredients), nonNil(snap.Ingredients)},
		{sessionsEntry, len(snap.Sessions), nonNil(snap.Sessions)},
		{checksEntry, len(snap.Checks), nonNil(snap.Checks)},
	}

	manifest := &Manifest{
		Version:          manifestVersion,
		CreatedAt:        cfg.Now().UTC().Truncate(time.Second),
		UserID:           cfg.UserID,
		Signer:           cfg.Signer.Recipient(),
		SigningPublicKey: cfg.Signer.PublicKeyBase64(),
	}
	bodies := make(map[string][]byte, len(docs))
	for _, d := range docs {
		body, err := json.MarshalIndent(d.value, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", d.name, err)
		}
		sum := sha256.Sum256(body)
		manifest.Entries = append(manifest.Entries, ManifestEntry{
			Name:   d.name,
			Count:  d.count,
			Size:   int64(len(body)),
			SHA256: hex.EncodeToString(sum[:]),
		})
		bodies[d.name] = body
	}

	payload, err := manifest.SigningBytes()
	if err != nil {
		return nil, fmt.Errorf("marshal manifest for signing: %w", err)
	}
	sig, err := cfg.Signer.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("sign manifest: %w", err)
	}
	manifest.Signature = sig

	manifestBytes, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}

	if err := writeArchive(cfg.Output, manifest.CreatedAt, manifestBytes, manifest.Entries, bodies); err != nil {
		return nil, err
	}

	fmt.Fprintf(cfg.Stdout, "wrote backup %s (%d ingredients, %d sessions, %d checks)\n",
		cfg.Output, len(snap.Ingredients), len(snap.Sessions), len(snap.Checks))
	return manifest, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeArchive(output string, modTime time.Time, manifest []byte, entries []ManifestEntry, bodies map[string][]byte) (err error) {
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	encoder, err := zstd.NewWriter(file)
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	tw := tar.NewWriter(encoder)

	write := func(name string, body []byte) error {
		header := &tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(body)),
			ModTime:  modTime,
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("write header for %q: %w", name, err)
		}
		if _, err := tw.Write(body); err != nil {
			return fmt.Errorf("write %q: %w", name, err)
		}
		return nil
	}

	if err := write(manifestFileName, manifest); err != nil {
		return err
	}
	for _, e := range entries {
		if err := write(e.Name, bodies[e.Name]); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("close zstd: %w", err)
	}
	return nil
}

// Verify reads the archive at archivePath, checks the manifest signature and every entry
// checksum, and returns the decoded contents.
func Verify(ctx context.Context, archivePath string, signer *Signer) (*Manifest, Snapshot, error) {
	if signer == nil {
		return nil, Snapshot{}, errors.New("signer is required")
	}

	manifestBytes, files, err := readArchive(ctx, archivePath)
	if err != nil {
		return nil, Snapshot{}, err
	}
	if len(manifestBytes) == 0 {
		return nil, Snapshot{}, errors.New("backup missing manifest.yaml")
	}

	var manifest Manifest
	if err := yaml.Unmarshal(manifestBytes, &manifest); err != nil {
		return nil, Snapshot{}, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if manifest.Version != manifestVersion {
		return nil, Snapshot{}, fmt.Errorf("unsupported manifest version %q", manifest.Version)
	}
	if manifest.Signature == "" {
		return nil, Snapshot{}, errors.New("manifest missing signature")
	}

	payload, err := manifest.SigningBytes()
	if err != nil {
		return nil, Snapshot{}, fmt.Errorf("marshal manifest for verification: %w", err)
	}
	if err := signer.Verify(payload, manifest.Signature, manifest.SigningPublicKey); err != nil {
		return nil, Snapshot{}, fmt.Errorf("verify manifest signature: %w", err)
	}

	for _, e := range manifest.Entries {
		body, ok := files[e.Name]
		if !ok {
			return nil, Snapshot{}, fmt.Errorf("backup missing entry %q", e.Name)
		}
		sum := sha256.Sum256(body)
		if got := hex.EncodeToString(sum[:]); got != e.SHA256 || int64(len(body)) != e.Size {
			return nil, Snapshot{}, fmt.Errorf("entry %q does not match manifest checksum", e.Name)
		}
	}

	var snap Snapshot
	targets := map[string]any{
		ingredientsEntry: &snap.Ingredients,
		sessionsEntry:    &snap.Sessions,
		checksEntry:      &snap.Checks,
	}
	for name, dest := range targets {
		if _, ok := manifest.entry(name); !ok {
			continue
		}
		if err := json.Unmarshal(files[name], dest); err != nil {
			return nil, Snapshot{}, fmt.Errorf("decode %s: %w", name, err)
		}
	}
	return &manifest, snap, nil
}

func readArchive(ctx context.Context, archivePath string) ([]byte, map[string][]byte, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open backup: %w", err)
	}
	defer file.Close()

	decoder, err := zstd.NewReader(file)
	if err != nil {
		return nil, nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer decoder.Close()

	var (
		manifest []byte
		files    = map[string][]byte{}
	)
	tr := tar.NewReader(decoder)
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read tar entry: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		name := path.Clean(header.Name)
		if strings.HasPrefix(name, "../") || path.IsAbs(name) {
			return nil, nil, fmt.Errorf("invalid entry path %q", header.Name)
		}
		if header.Size > maxEntrySize {
			return nil, nil, fmt.Errorf("entry %q exceeds %d bytes", name, maxEntrySize)
		}

		var buf bytes.Buffer
		if _, err := io.Copy(&buf, io.LimitReader(tr, maxEntrySize)); err != nil {
			return nil, nil, fmt.Errorf("read %q: %w", name, err)
		}
		if name == manifestFileName {
			manifest = buf.Bytes()
			continue
		}
		files[name] = buf.Bytes()
	}
	return manifest, files, nil
}

// RestoreConfig configures Restore.
type RestoreConfig struct {
	Archive string
	Source  Source
	Signer  *Signer
	Stdout  io.Writer
}

// Restore verifies the archive and upserts its ingredients for the manifest's user. Sessions and
// check records are history and are not written back.
func Restore(ctx context.Context, cfg RestoreConfig) (int, error) {
	if cfg.Source == nil {
		return 0, errors.New("source is required")
	}
	if cfg.Stdout == nil {
		cfg.Stdout = io.Discard
	}

	manifest, snap, err := Verify(ctx, cfg.Archive, cfg.Signer)
	if err != nil {
		return 0, err
	}
	for _, ing := range snap.Ingredients {
		if err := ing.validate(); err != nil {
			return 0, fmt.Errorf("ingredient %q: %w", ing.ID, err)
		}
	}

	n, err := cfg.Source.RestoreIngredients(ctx, manifest.UserID, snap.Ingredients)
	if err != nil {
		return 0, err
	}
	fmt.Fprintf(cfg.Stdout, "restored %d ingredients for %s from backup taken %s\n",
		n, manifest.UserID, manifest.CreatedAt.Format(time.RFC3339))
	return n, nil
}

// Uploader stores an object; *s3.Bucket satisfies it.
type Uploader interface {
	PutObject(ctx context.Context, key string, r io.Reader, size int64, sha256 string) error
}

// Upload copies the archive at archivePath to key.
func Upload(ctx context.Context, up Uploader, archivePath, key string) error {
	if up == nil {
		return errors.New("uploader is required")
	}
	data, err := os.ReadFile(archivePath)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	sum := sha256.Sum256(data)
	if err := up.PutObject(ctx, key, bytes.NewReader(data), int64(len(data)), hex.EncodeToString(sum[:])); err != nil {
		return fmt.Errorf("upload backup: %w", err)
	}
	return nil
}

// ObjectKey is the conventional key of a backup in the bucket.
func ObjectKey(userID string, createdAt time.Time) string {
	return fmt.Sprintf("backups/%s/%s.tar.zst", userID, createdAt.UTC().Format("20060102T150405Z"))
}
