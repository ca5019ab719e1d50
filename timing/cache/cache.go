// Package cache provides the ROM fetch buffer using Akita cache components.
//
// The buffer decides whether a cartridge access is sequential: an access to
// a block already held in the buffer is served at the sequential wait state,
// anything else pays the non-sequential one and fills the block.
package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds fetch buffer geometry.
type Config struct {
	Size          int // bytes
	Associativity int // ways per set
	BlockSize     int // bytes, a power of two
}

// DefaultConfig returns a fully associative buffer of sixteen 16-byte
// blocks.
func DefaultConfig() Config {
	return Config{
		Size:          256,
		Associativity: 16,
		BlockSize:     16,
	}
}

// AccessResult contains the result of a buffer access.
type AccessResult struct {
	// Hit indicates whether the block was already buffered.
	Hit bool
	// Data is the value read, little-endian.
	Data uint64
}

// Statistics holds fetch buffer statistics.
type Statistics struct {
	Reads     uint64
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// BackingStore is the memory behind the buffer.
type BackingStore interface {
	// Read fetches size bytes at addr.
	Read(addr uint64, size int) []byte
}

// Cache is a read-only buffer built on an Akita cache directory. The
// directory tracks tags and LRU order; block contents live in one flat slice.
type Cache struct {
	config    Config
	directory *akitacache.DirectoryImpl
	blocks    []byte
	backing   BackingStore
	stats     Statistics
}

// New creates a new fetch buffer with the given configuration.
func New(config Config, backing BackingStore) *Cache {
	sets := config.Size / (config.Associativity * config.BlockSize)
	if sets < 1 {
		sets = 1
	}

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(sets, config.Associativity, config.BlockSize,
			akitacache.NewLRUVictimFinder()),
		blocks:  make([]byte, sets*config.Associativity*config.BlockSize),
		backing: backing,
	}
}

// Config returns the buffer configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns buffer statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears buffer statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

// slot returns the storage of a directory block.
func (c *Cache) slot(block *akitacache.Block) []byte {
	start := (block.SetID*c.config.Associativity + block.WayID) * c.config.BlockSize
	return c.blocks[start : start+c.config.BlockSize]
}

func (c *Cache) align(addr uint64) uint64 {
	return addr &^ uint64(c.config.BlockSize-1)
}

// Read reads size bytes at addr. The access must not cross a block.
func (c *Cache) Read(addr uint64, size int) AccessResult {
	c.stats.Reads++
	base := c.align(addr)

	block := c.directory.Lookup(0, base)
	hit := block != nil && block.IsValid
	if hit {
		c.stats.Hits++
		c.directory.Visit(block)
	} else {
		c.stats.Misses++
		block = c.fill(base)
	}

	return AccessResult{
		Hit:  hit,
		Data: littleEndian(c.slot(block)[addr-base:], size),
	}
}

// fill loads the block at base into the least recently used way.
func (c *Cache) fill(base uint64) *akitacache.Block {
	victim := c.directory.FindVictim(base)
	if victim.IsValid {
		c.stats.Evictions++
	}

	data := c.slot(victim)
	clear(data)
	if c.backing != nil {
		copy(data, c.backing.Read(base, c.config.BlockSize))
	}

	victim.Tag = base
	victim.IsValid = true
	victim.IsDirty = false
	c.directory.Visit(victim)
	return victim
}

// Invalidate drops the block holding addr.
func (c *Cache) Invalidate(addr uint64) {
	if block := c.directory.Lookup(0, c.align(addr)); block != nil {
		block.IsValid = false
	}
}

// Reset invalidates every block and clears the statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}

func littleEndian(data []byte, size int) uint64 {
	if size > len(data) {
		size = len(data)
	}
	var v uint64
	for i := size - 1; i >= 0; i-- {
		v = v<<8 | uint64(data[i])
	}
	return v
}
