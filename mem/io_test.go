package mem_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/agbsim/emu"
	"github.com/sarchlab/agbsim/ioreg"
	"github.com/sarchlab/agbsim/mem"
)

type ioCall struct {
	what  string
	n     int
	value uint16
}

type fakeListener struct {
	calls    []ioCall
	counters [4]uint16
}

func (l *fakeListener) DMAControl(n int, value uint16) {
	l.calls = append(l.calls, ioCall{"dma", n, value})
}

func (l *fakeListener) TimerControl(n int, value uint16) {
	l.calls = append(l.calls, ioCall{"timer", n, value})
}

func (l *fakeListener) TimerCounter(n int) uint16 {
	return l.counters[n]
}

func (l *fakeListener) Halt() {
	l.calls = append(l.calls, ioCall{what: "halt"})
}

var _ = Describe("IO registers", func() {
	var (
		m        *mem.Memory
		listener *fakeListener
	)

	io := func(offset uint32) uint32 {
		return ioreg.IOBase + offset
	}

	BeforeEach(func() {
		listener = &fakeListener{}
		m = mem.NewMemory(mem.WithListener(listener))
	})

	It("should report released keys at reset", func() {
		Expect(m.Read(io(ioreg.KEYINPUT), emu.Half)).To(Equal(uint32(ioreg.KeysReleased)))
		m.Write(io(ioreg.KEYINPUT), emu.Half, 0)
		Expect(m.ReadIO16(ioreg.KEYINPUT)).To(Equal(ioreg.KeysReleased))
	})

	It("should clear IF bits written as one", func() {
		m.WriteIO16(ioreg.IF, 0x0F)
		m.Write(io(ioreg.IF), emu.Half, 0x05)
		Expect(m.ReadIO16(ioreg.IF)).To(Equal(uint16(0x0A)))
	})

	It("should clear IF bits from the high byte of a word write to IE", func() {
		m.WriteIO16(ioreg.IF, 0x0003)
		m.Write(io(ioreg.IE), emu.Word, 0x0001<<16|0x2001)
		Expect(m.ReadIO16(ioreg.IE)).To(Equal(uint16(0x2001)))
		Expect(m.ReadIO16(ioreg.IF)).To(Equal(uint16(0x0002)))
	})

	It("should clear IF bits from a byte write", func() {
		m.WriteIO16(ioreg.IF, 0x0101)
		m.Write(io(ioreg.IF)+1, emu.Byte, 0x01)
		Expect(m.ReadIO16(ioreg.IF)).To(Equal(uint16(0x0001)))
	})

	It("should keep the video flags of DISPSTAT", func() {
		m.WriteIO16(ioreg.DISPSTAT, ioreg.StatVBlank)
		m.Write(io(ioreg.DISPSTAT), emu.Half, uint32(ioreg.StatVBlankIRQ|ioreg.StatHBlank))
		Expect(m.ReadIO16(ioreg.DISPSTAT)).To(Equal(ioreg.StatVBlank | ioreg.StatVBlankIRQ))
	})

	It("should ignore writes to VCOUNT", func() {
		m.WriteIO16(ioreg.VCOUNT, 100)
		m.Write(io(ioreg.VCOUNT), emu.Half, 3)
		Expect(m.Read(io(ioreg.VCOUNT), emu.Half)).To(Equal(uint32(100)))
	})

	It("should forward DMA control writes", func() {
		cnt := io(ioreg.DMAChannelOffset(3, ioreg.DMACNTL))
		m.Write(cnt, emu.Word, uint32(ioreg.DMAEnable)<<16|8)

		Expect(m.ReadIO16(ioreg.DMAChannelOffset(3, ioreg.DMACNTL))).To(Equal(uint16(8)))
		Expect(listener.calls).To(Equal([]ioCall{{"dma", 3, ioreg.DMAEnable}}))
	})

	It("should not forward DMA address writes", func() {
		m.Write(io(ioreg.DMAChannelOffset(1, ioreg.DMASAD)), emu.Word, 0x02000000)
		Expect(listener.calls).To(BeEmpty())
		Expect(m.ReadIO16(ioreg.DMAChannelOffset(1, ioreg.DMASAD) + 2)).To(Equal(uint16(0x0200)))
	})

	It("should forward timer control and keep the reload value", func() {
		m.Write(io(ioreg.TimerOffset(2, ioreg.TimerCNTL)), emu.Word, uint32(ioreg.TimerStart)<<16|0xFF00)

		Expect(m.ReadIO16(ioreg.TimerOffset(2, ioreg.TimerCNTL))).To(Equal(uint16(0xFF00)))
		Expect(listener.calls).To(Equal([]ioCall{{"timer", 2, ioreg.TimerStart}}))
	})

	It("should read live timer counters", func() {
		listener.counters[1] = 0x1234
		m.WriteIO16(ioreg.TimerOffset(1, ioreg.TimerCNTH), ioreg.TimerStart)

		Expect(m.Read(io(ioreg.TimerOffset(1, ioreg.TimerCNTL)), emu.Half)).To(Equal(uint32(0x1234)))
		Expect(m.Read(io(ioreg.TimerOffset(1, ioreg.TimerCNTL)), emu.Word)).
			To(Equal(uint32(ioreg.TimerStart)<<16 | 0x1234))
		Expect(m.Read(io(ioreg.TimerOffset(1, ioreg.TimerCNTL))+1, emu.Byte)).To(Equal(uint32(0x12)))
	})

	It("should halt on a HALTCNT write", func() {
		m.Write(io(ioreg.HALTCNT), emu.Byte, 0)
		Expect(listener.calls).To(Equal([]ioCall{{what: "halt"}}))
	})

	It("should not halt on a POSTFLG write", func() {
		m.Write(io(ioreg.POSTFLG), emu.Byte, 1)
		Expect(listener.calls).To(BeEmpty())
		Expect(m.Read(io(ioreg.POSTFLG), emu.Byte)).To(Equal(uint32(1)))
	})

	It("should store plain registers", func() {
		m.Write(io(ioreg.DISPCNT), emu.Half, 0x0403)
		Expect(m.Read(io(ioreg.DISPCNT), emu.Half)).To(Equal(uint32(0x0403)))
		m.Write(io(ioreg.DISPCNT), emu.Byte, 0x05)
		Expect(m.ReadIO16(ioreg.DISPCNT)).To(Equal(uint16(0x0405)))
	})

	It("should work without a listener", func() {
		m = mem.NewMemory()
		m.Write(io(ioreg.HALTCNT), emu.Byte, 0)
		m.Write(io(ioreg.DMAChannelOffset(0, ioreg.DMACNTH)), emu.Half, uint32(ioreg.DMAEnable))
		Expect(m.ReadIO16(ioreg.DMAChannelOffset(0, ioreg.DMACNTH))).To(Equal(ioreg.DMAEnable))
	})

	It("should drive a real core", func() {
		m = mem.NewMemory()
		e := emu.NewEmulator(m)
		m.SetListener(e)

		Expect(m.LoadROM([]byte{
			0x00, 0x00, 0xA0, 0xE1, // mov r0, r0
			0x00, 0x00, 0xA0, 0xE1,
		})).To(Succeed())
		m.Write(io(ioreg.TimerOffset(0, ioreg.TimerCNTL)), emu.Word, uint32(ioreg.TimerStart)<<16|0x10)

		result := e.Step()
		Expect(result.Err).ToNot(HaveOccurred())
		Expect(m.Read(io(ioreg.TimerOffset(0, ioreg.TimerCNTL)), emu.Half)).
			To(Equal(uint32(0x10 + result.Cycles)))
	})
})
