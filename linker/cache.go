package linker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shibukawa/sourcelink"
	"github.com/shibukawa/sourcelink/jsondoc"
	"github.com/shibukawa/sourcelink/luatable"
)

type format int

const (
	formatUnknown format = iota
	formatLua
	formatJSON
	formatXLSX
)

func formatOf(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".lua":
		return formatLua
	case ".json", ".jsonc":
		return formatJSON
	case ".xlsx":
		return formatXLSX
	default:
		return formatUnknown
	}
}

// document is one parsed text source. Exactly one of lua/json is set,
// matching the file's format.
type document struct {
	source string
	format format
	lua    *luatable.Chunk
	json   *jsondoc.Document
}

func (d *document) locate(path string) (*sourcelink.Node, error) {
	segments, err := pathSegments(path)
	if err != nil {
		return nil, err
	}

	switch d.format {
	case formatLua:
		node, err := d.lua.Locate(segments)
		if err != nil {
			return nil, err
		}

		return node.Export(), nil
	case formatJSON:
		node, err := d.json.Locate(segments)
		if err != nil {
			return nil, err
		}

		return node.Export(), nil
	default:
		return nil, sourcelink.ErrUnsupportedFormat
	}
}

// cacheEntry remembers the file identity the parse was taken from. An entry
// is only served while mtime and size still match the file on disk.
type cacheEntry struct {
	doc     *document
	modTime time.Time
	size    int64
}

// parseCache caches parsed text documents by absolute path. It holds no
// lock: callers coordinate concurrent access themselves, matching the
// engine-wide synchronous contract.
type parseCache struct {
	entries map[string]*cacheEntry
}

func newParseCache() *parseCache {
	return &parseCache{entries: make(map[string]*cacheEntry)}
}

// get returns the cached parse for path, reparsing whenever the file changed
// since the entry was taken. A stale entry is never returned.
func (c *parseCache) get(path string, maxDepth int) (*document, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", sourcelink.ErrFileNotFound, path)
		}

		return nil, err
	}

	if entry, ok := c.entries[path]; ok {
		if entry.modTime.Equal(info.ModTime()) && entry.size == info.Size() {
			return entry.doc, nil
		}

		delete(c.entries, path)
	}

	doc, err := parseFile(path, maxDepth)
	if err != nil {
		return nil, err
	}

	c.entries[path] = &cacheEntry{doc: doc, modTime: info.ModTime(), size: info.Size()}

	return doc, nil
}

func (c *parseCache) invalidate(path string) {
	delete(c.entries, path)
}

func (c *parseCache) clear() {
	c.entries = make(map[string]*cacheEntry)
}

// parseFile reads and parses a text source fresh from disk, bypassing the
// cache. Write paths use this directly so a patch is always computed against
// the bytes currently on disk.
func parseFile(path string, maxDepth int) (*document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", sourcelink.ErrFileNotFound, path)
		}

		return nil, err
	}

	source := string(data)

	switch formatOf(path) {
	case formatLua:
		chunk, err := luatable.Parse(source, luatable.Options{MaxDepth: maxDepth})
		if err != nil {
			return nil, err
		}

		return &document{source: source, format: formatLua, lua: chunk}, nil
	case formatJSON:
		doc, err := jsondoc.Parse(source, jsondoc.Options{MaxDepth: maxDepth})
		if err != nil {
			return nil, err
		}

		return &document{source: source, format: formatJSON, json: doc}, nil
	default:
		return nil, fmt.Errorf("%w: %s", sourcelink.ErrUnsupportedFormat, filepath.Ext(path))
	}
}
