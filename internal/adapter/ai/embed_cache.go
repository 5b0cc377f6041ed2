package ai

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/fairyhunter13/resume-match-pipeline/internal/observability"
)

// Cache file layout: a 5-byte header (magic "EMBC" + version) followed by
// length-prefixed records: key length (uint16), key bytes, vector dimension
// (uint32), then dim float32 values, all little-endian. Corrupt or
// truncated entries are skipped, never fatal.
var embedCacheMagic = []byte("EMBC")

const embedCacheVersion = byte(1)

// flushEvery is how many writes accumulate before the cache flushes to disk.
const flushEvery = 1000

// EmbedCache is an on-disk content-hash cache of embedding vectors keyed by
// (model, text). Reads are lock-free against an in-memory map; writes take
// a single-writer lock and flush with an atomic replace.
type EmbedCache struct {
	path string

	mu      sync.RWMutex
	entries map[string][]float32
	dirty   int
}

// cacheKey hashes (model, text) into the cache key.
func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// OpenEmbedCache loads (or creates) the cache file for a model under dir.
// The file name carries a hash of the model so switching models never mixes
// vector spaces.
func OpenEmbedCache(dir, model string) (*EmbedCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("op=embedcache.Open: %w", err)
	}
	nameSum := sha256.Sum256([]byte(model))
	path := filepath.Join(dir, "embed_cache."+hex.EncodeToString(nameSum[:8]))

	c := &EmbedCache{path: path, entries: map[string][]float32{}}
	if err := c.loadFile(); err != nil {
		// a corrupt file is replaced on next flush
		slog.Warn("embed cache unreadable, starting empty",
			slog.String("path", path), slog.Any("error", err))
	}
	return c, nil
}

// Get returns the cached vector for (model, text) key k, if present.
func (c *EmbedCache) Get(k string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[k]
	if ok {
		observability.EmbedCacheEvents.WithLabelValues("hit").Inc()
	} else {
		observability.EmbedCacheEvents.WithLabelValues("miss").Inc()
	}
	return v, ok
}

// Put stores a vector and flushes to disk every flushEvery writes.
func (c *EmbedCache) Put(k string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[k] = vec
	c.dirty++
	if c.dirty >= flushEvery {
		if err := c.flushLocked(); err != nil {
			slog.Warn("embed cache flush failed", slog.Any("error", err))
		}
	}
}

// Len returns the number of cached vectors.
func (c *EmbedCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close flushes any pending writes.
func (c *EmbedCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dirty == 0 {
		return nil
	}
	return c.flushLocked()
}

// flushLocked writes the whole map to a temp file and atomically replaces
// the cache file. Callers hold the write lock.
func (c *EmbedCache) flushLocked() error {
	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".embed_cache.*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	w := bufio.NewWriter(tmp)
	if _, err := w.Write(embedCacheMagic); err != nil {
		return err
	}
	if err := w.WriteByte(embedCacheVersion); err != nil {
		return err
	}
	for k, vec := range c.entries {
		if err := writeRecord(w, k, vec); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return err
	}
	c.dirty = 0
	return nil
}

func writeRecord(w *bufio.Writer, key string, vec []float32) error {
	if err := binary.Write(w, binary.LittleEndian, uint16(len(key))); err != nil {
		return err
	}
	if _, err := w.WriteString(key); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(vec))); err != nil {
		return err
	}
	for _, f := range vec {
		if err := binary.Write(w, binary.LittleEndian, math.Float32bits(f)); err != nil {
			return err
		}
	}
	return nil
}

func (c *EmbedCache) loadFile() error {
	f, err := os.Open(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	r := bufio.NewReader(f)
	header := make([]byte, len(embedCacheMagic)+1)
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("short header: %w", err)
	}
	if string(header[:len(embedCacheMagic)]) != string(embedCacheMagic) {
		return errors.New("bad magic")
	}
	if header[len(embedCacheMagic)] != embedCacheVersion {
		return fmt.Errorf("unsupported cache version %d", header[len(embedCacheMagic)])
	}

	loaded, skipped := 0, 0
	for {
		key, vec, err := readRecord(r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// truncated tail: keep what we have
			skipped++
			break
		}
		c.entries[key] = vec
		loaded++
	}
	slog.Debug("embed cache loaded",
		slog.String("path", c.path),
		slog.Int("entries", loaded),
		slog.Int("skipped", skipped))
	return nil
}

func readRecord(r *bufio.Reader) (string, []float32, error) {
	var keyLen uint16
	if err := binary.Read(r, binary.LittleEndian, &keyLen); err != nil {
		return "", nil, err
	}
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return "", nil, err
	}
	var dim uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return "", nil, err
	}
	// guard absurd dimensions from corrupt length prefixes
	if dim > 1<<16 {
		return "", nil, fmt.Errorf("implausible vector dimension %d", dim)
	}
	vec := make([]float32, dim)
	for i := range vec {
		var bits uint32
		if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
			return "", nil, err
		}
		vec[i] = math.Float32frombits(bits)
	}
	return string(key), vec, nil
}
