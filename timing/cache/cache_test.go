package cache_test

import (
	"encoding/binary"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/agbsim/timing/cache"
)

var _ = Describe("Cache", func() {
	var (
		c   *cache.Cache
		rom []byte
	)

	BeforeEach(func() {
		rom = make([]byte, 0x200)
		for i := 0; i < len(rom); i += 4 {
			binary.LittleEndian.PutUint32(rom[i:], uint32(0xA0000000+i))
		}
		// 2 sets, 2 ways, 16B blocks
		c = cache.New(cache.Config{
			Size:          64,
			Associativity: 2,
			BlockSize:     16,
		}, cache.NewSliceBacking(rom))
	})

	Describe("Read operations", func() {
		It("should miss on cold buffer", func() {
			result := c.Read(0x10, 4)
			Expect(result.Hit).To(BeFalse())
			Expect(result.Data).To(Equal(uint64(0xA0000010)))

			stats := c.Stats()
			Expect(stats.Reads).To(Equal(uint64(1)))
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Hits).To(BeZero())
		})

		It("should hit on the rest of the block", func() {
			c.Read(0x20, 2)

			for _, addr := range []uint64{0x22, 0x24, 0x2C} {
				result := c.Read(addr, 2)
				Expect(result.Hit).To(BeTrue())
				Expect(result.Data).To(Equal(uint64(binary.LittleEndian.Uint16(rom[addr:]))))
			}
			Expect(c.Read(0x30, 2).Hit).To(BeFalse())
		})

		It("should read zeros past the end of the backing", func() {
			result := c.Read(0x1000, 4)
			Expect(result.Hit).To(BeFalse())
			Expect(result.Data).To(BeZero())
		})
	})

	Describe("Eviction", func() {
		It("should evict the least recently used block of a set", func() {
			c.Read(0x00, 4)
			c.Read(0x20, 4)
			c.Read(0x00, 4)
			c.Read(0x40, 4)

			Expect(c.Stats().Evictions).To(Equal(uint64(1)))
			Expect(c.Read(0x00, 4).Hit).To(BeTrue())
			Expect(c.Read(0x20, 4).Hit).To(BeFalse())
		})
	})

	Describe("Invalidation", func() {
		It("should drop a single block", func() {
			c.Read(0x00, 4)
			c.Read(0x10, 4)
			c.Invalidate(0x04)

			Expect(c.Read(0x00, 4).Hit).To(BeFalse())
			Expect(c.Read(0x10, 4).Hit).To(BeTrue())
		})

		It("should drop everything on reset", func() {
			c.Read(0x00, 4)
			c.Reset()

			Expect(c.Stats()).To(Equal(cache.Statistics{}))
			Expect(c.Read(0x00, 4).Hit).To(BeFalse())
		})

		It("should see new backing bytes after a reset", func() {
			backing := cache.NewSliceBacking([]byte{1, 2, 3, 4})
			c = cache.New(cache.DefaultConfig(), backing)
			Expect(c.Read(0, 4).Data).To(Equal(uint64(0x04030201)))

			backing.Replace([]byte{5, 6, 7, 8})
			Expect(c.Read(0, 4).Data).To(Equal(uint64(0x04030201)))
			c.Reset()
			Expect(c.Read(0, 4).Data).To(Equal(uint64(0x08070605)))
		})
	})

	It("should clear statistics", func() {
		c.Read(0x00, 4)
		c.ResetStats()
		Expect(c.Stats().Reads).To(BeZero())
		Expect(c.Read(0x00, 4).Hit).To(BeTrue())
	})
})
