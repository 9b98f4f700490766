// Package cache remembers compile outcomes across runs. A key covers the
// fragment text, its execution context, the dependency set, the target and
// the toolchain command, so any change to those invalidates the entry.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vmihailenco/msgpack/v5"

	"fencecheck/internal/deps"
	"fencecheck/internal/fragment"
	"fencecheck/internal/result"
)

// Current schema version - increment when Entry format or generated crate roots change
const schemaVersion uint16 = 2

const defaultMemEntries = 512

// Key is a SHA-256 digest of everything that influences a compile outcome.
type Key [sha256.Size]byte

func (k Key) String() string { return hex.EncodeToString(k[:]) }

// KeyFor hashes the inputs of one (fragment, target) compilation.
func KeyFor(frag fragment.CodeFragment, ctx result.Context, set *deps.Set, target string, command []string) Key {
	h := sha256.New()
	write := func(parts ...string) {
		for _, p := range parts {
			h.Write([]byte(p))
			h.Write([]byte{0})
		}
	}
	write("fencecheck/v1", frag.Lang, frag.RawText, ctx.Kind.String(), ctx.Detail)
	write(ctx.Features...)
	if set != nil {
		for _, d := range set.List() {
			write(d.Name, d.Version, strings.Join(d.Features, ","), fmt.Sprint(d.NoDefaultFeatures))
		}
	}
	write(target)
	write(command...)
	var k Key
	copy(k[:], h.Sum(nil))
	return k
}

// Entry is the persisted outcome together with the page position it was
// recorded at, so a moved example still hits.
type Entry struct {
	Schema     uint16            `msgpack:"schema"`
	Stored     time.Time         `msgpack:"stored"`
	AnchorFile string            `msgpack:"anchor_file"`
	AnchorLine int               `msgpack:"anchor_line"`
	Outcome    result.TestResult `msgpack:"outcome"`
}

// Cache is a msgpack store under dir fronted by an in-memory LRU.
// Thread-safe for concurrent access.
type Cache struct {
	mu  sync.RWMutex
	dir string
	mem *lru.Cache[Key, Entry]
}

// DefaultDir returns $XDG_CACHE_HOME/<app> or ~/.cache/<app>.
func DefaultDir(app string) (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, app), nil
}

// Open initializes a cache rooted at dir.
func Open(dir string) (*Cache, error) {
	return OpenSize(dir, defaultMemEntries)
}

// OpenSize is Open with an explicit in-memory entry limit.
func OpenSize(dir string, entries int) (*Cache, error) {
	if entries <= 0 {
		entries = defaultMemEntries
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	mem, err := lru.New[Key, Entry](entries)
	if err != nil {
		return nil, err
	}
	return &Cache{dir: dir, mem: mem}, nil
}

// Dir returns the on-disk root.
func (c *Cache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

func (c *Cache) pathFor(key Key) string {
	hexKey := key.String()
	// шардируем по первым двум символам, чтобы не держать тысячи файлов в одном каталоге
	return filepath.Join(c.dir, "results", hexKey[:2], hexKey+".mp")
}

// Put stores the outcome of a compile. Only passed and compile-failed
// results are cacheable; timeouts and infrastructure faults are retried.
func (c *Cache) Put(key Key, r result.TestResult) error {
	if c == nil || !Cacheable(r) {
		return nil
	}
	e := Entry{
		Schema:     schemaVersion,
		Stored:     time.Now().UTC(),
		AnchorFile: r.SourceFile,
		AnchorLine: r.Line,
		Outcome:    r,
	}
	e.Outcome.Cached = false
	c.mem.Add(key, e)

	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		_ = os.Remove(tmp) // после Rename файла уже нет
	}()

	if err := msgpack.NewEncoder(f).Encode(&e); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	return os.Rename(tmp, p)
}

// Get returns the cached outcome rebased onto frag, or false on a miss.
// Corrupt or stale-schema entries count as misses.
func (c *Cache) Get(key Key, frag fragment.CodeFragment) (result.TestResult, bool, error) {
	if c == nil {
		return result.TestResult{}, false, nil
	}
	if e, ok := c.mem.Get(key); ok {
		return rebase(e, frag), true, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	p := c.pathFor(key)
	f, err := os.Open(p) // #nosec G304 -- path is derived from a hex digest
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return result.TestResult{}, false, nil
		}
		return result.TestResult{}, false, err
	}
	defer f.Close()

	var e Entry
	if err := msgpack.NewDecoder(f).Decode(&e); err != nil {
		return result.TestResult{}, false, nil
	}
	if e.Schema != schemaVersion {
		return result.TestResult{}, false, nil
	}
	c.mem.Add(key, e)
	return rebase(e, frag), true, nil
}

// Len reports the number of entries held in memory.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.mem.Len()
}

// DropAll invalidates the cache.
func (c *Cache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mem.Purge()
	// тривиально: переименуем каталог и удалим
	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.RemoveAll(old); err != nil {
		return err
	}
	return os.MkdirAll(c.dir, 0o750)
}

// Cacheable reports whether r is a stable outcome worth remembering.
func Cacheable(r result.TestResult) bool {
	switch r.Status {
	case result.StatusPassed:
		return true
	case result.StatusFailed:
		return r.Failure == result.FailureCompile
	default:
		return false
	}
}

// rebase moves a stored outcome onto frag. Diagnostics pointing into the
// page where the outcome was recorded follow the fence to its new line.
func rebase(e Entry, frag fragment.CodeFragment) result.TestResult {
	out := e.Outcome
	shift := frag.Line - e.AnchorLine
	out.FragmentID = frag.ID()
	out.SourceFile = frag.SourceFile
	out.Line = frag.Line
	out.Index = frag.Index
	out.DurationMS = out.Duration.Milliseconds()
	out.Cached = true
	out.Diagnostics = nil
	for _, d := range e.Outcome.Diagnostics {
		if d.File == e.AnchorFile && d.Line > 0 {
			d.File = frag.SourceFile
			d.Line += shift
		}
		out.Diagnostics = append(out.Diagnostics, d)
	}
	return out
}
