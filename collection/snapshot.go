package collection

import (
	"bytes"
	"cmp"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/patrikhermansson/hanndb/core"
	"github.com/patrikhermansson/hanndb/hnsw"
	"github.com/patrikhermansson/hanndb/internal/codec"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/btree"
)

// snapshot is the gob payload of a serialized collection. Keys is indexed by
// slot and holds the zero value for tombstones.
type snapshot[K cmp.Ordered] struct {
	Name      string
	Dimension int
	Keys      []K
	Index     *hnsw.Index
}

// Serialize captures the whole collection, graph included, so that Restore
// resumes with identical search results and identical future inserts.
func (c *Collection[K]) Serialize() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var buf bytes.Buffer
	snap := snapshot[K]{Name: c.name, Dimension: c.dimension, Keys: c.keys, Index: c.index}
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, fmt.Errorf("failed to encode collection %q: %w", c.name, err)
	}
	frame, err := codec.Encode(buf.Bytes(), c.compression)
	if err != nil {
		return nil, fmt.Errorf("failed to frame collection %q: %w", c.name, err)
	}
	log.Debug().Msgf("Serialized collection %q: %d bytes payload, %d bytes framed", c.name, buf.Len(), len(frame))
	return frame, nil
}

// Restore rebuilds a collection from Serialize output. Any malformed input
// fails with an error matching core.ErrCorruptState.
// Options override the stored name; the compression option applies to later
// Serialize calls.
func Restore[K cmp.Ordered](data []byte, opts ...Option) (*Collection[K], error) {
	payload, err := codec.Decode(data)
	if err != nil {
		return nil, corrupt(err)
	}
	var snap snapshot[K]
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&snap); err != nil {
		return nil, corrupt(err)
	}
	if snap.Index == nil {
		return nil, core.Corrupt("snapshot has no index")
	}
	if snap.Index.Dimension() != snap.Dimension {
		return nil, core.Corrupt("collection dimension %d differs from index dimension %d", snap.Dimension, snap.Index.Dimension())
	}
	if len(snap.Keys) != snap.Index.Size() {
		return nil, core.Corrupt("key table has %d slots, index has %d", len(snap.Keys), snap.Index.Size())
	}

	ids := btree.NewBTreeG[idEntry[K]](idLess[K])
	for i, id := range snap.Keys {
		ref := hnsw.NodeRef(i)
		if snap.Index.IsDeleted(ref) {
			continue
		}
		if _, dup := ids.Set(idEntry[K]{id: id, ref: ref}); dup {
			return nil, core.Corrupt("id %v is live in more than one slot", id)
		}
	}

	o := defaultOptions()
	o.name = snap.Name
	c := build[K](snap.Index, resolve(o, opts))
	c.ids = ids
	c.keys = snap.Keys
	c.obs.Size(c.index.Len(), c.index.Size()-c.index.Len())
	log.Info().Msgf("Restored collection %q: %d records, dimension %d", c.name, ids.Len(), c.dimension)
	return c, nil
}

func corrupt(err error) error {
	if errors.Is(err, core.ErrCorruptState) {
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrCorruptState, err)
}

// Save writes the serialized collection to w.
func (c *Collection[K]) Save(w io.Writer) error {
	data, err := c.Serialize()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Load reads a collection written by Save.
func Load[K cmp.Ordered](r io.Reader, opts ...Option) (*Collection[K], error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection: %w", err)
	}
	return Restore[K](data, opts...)
}

// SaveFile writes the collection to path, replacing any previous file only
// once the new one is complete.
func (c *Collection[K]) SaveFile(path string) error {
	data, err := c.Serialize()
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	log.Info().Msgf("Saved collection %q to %s", c.name, path)
	return nil
}

// LoadFile reads a collection written by SaveFile.
func LoadFile[K cmp.Ordered](path string, opts ...Option) (*Collection[K], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load[K](f, opts...)
}
