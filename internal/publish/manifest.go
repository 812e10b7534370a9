package publish

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/hapislab/csvpack/internal/store"
)

// ManifestKey is the store key the manifest is written under.
const ManifestKey = "manifest.json"

// ManifestVersion is the current manifest layout.
const ManifestVersion = 1

// Manifest lists the records of one push.
type Manifest struct {
	Version     int       `json:"version"`
	PublishedAt time.Time `json:"published_at"`
	Objects     []Object  `json:"objects"`
}

// Object describes one published record.
type Object struct {
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	PayloadSize int64  `json:"payload_size"`
	Codec       string `json:"codec"`
	Format      string `json:"format"`
	Digest      string `json:"blake3"`
}

// TotalSize returns the summed size of all objects.
func (m *Manifest) TotalSize() int64 {
	var n int64
	for _, o := range m.Objects {
		n += o.Size
	}
	return n
}

// WriteManifest writes m to st under ManifestKey.
func WriteManifest(ctx context.Context, st store.Store, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := st.WriteObject(ctx, ManifestKey, data); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// ReadManifest reads the manifest from st.
func ReadManifest(ctx context.Context, st store.Store) (*Manifest, error) {
	data, err := st.ReadObject(ctx, ManifestKey)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}

// digest returns the hex BLAKE3 digest of data.
func digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
