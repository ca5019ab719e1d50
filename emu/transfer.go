package emu

import (
	"math/bits"

	"github.com/sarchlab/agbsim/insts"
)

// loadWord reads the aligned word containing addr and rotates it so the
// addressed byte lands in bits 7-0.
func (e *Emulator) loadWord(addr uint32) (uint32, int) {
	v, cycles := e.bus.ReadTimed(addr&^3, Word)
	return RotateRight(v, (addr&3)*8), cycles
}

// Halfword transfer kinds, the SH field of the opcode.
const (
	halfUnsigned   = 1
	halfSignedByte = 2
	halfSigned     = 3
)

// loadHalf performs LDRH, LDRSB or LDRSH including the odd-address
// behaviour of the bus.
func (e *Emulator) loadHalf(addr uint32, kind uint32) (uint32, int) {
	switch kind {
	case halfSignedByte:
		v, cycles := e.bus.ReadTimed(addr, Byte)
		return SignExtend(v, 8), cycles
	case halfSigned:
		if addr&1 != 0 {
			v, cycles := e.bus.ReadTimed(addr, Byte)
			return SignExtend(v, 8), cycles
		}
		v, cycles := e.bus.ReadTimed(addr, Half)
		return SignExtend(v, 16), cycles
	}

	v, cycles := e.bus.ReadTimed(addr&^1, Half)
	if addr&1 != 0 {
		v = RotateRight(v, 8)
	}
	return v, cycles
}

func offsetAddress(base, offset uint32, up bool) uint32 {
	if up {
		return base + offset
	}
	return base - offset
}

func (e *Emulator) armSingleTransfer(op uint32) (int, error) {
	pre := Bit(op, 24)
	up := Bit(op, 23)
	byteOp := Bit(op, 22)
	load := Bit(op, 20)
	rn := Bits(op, 19, 16)
	rd := Bits(op, 15, 12)

	var offset uint32
	if Bit(op, 25) {
		offset, _ = Shift(insts.ShiftType(Bits(op, 6, 5)), e.reg(op&0xF), Bits(op, 11, 7), e.regFile.C(), true)
	} else {
		offset = op & 0xFFF
	}

	base := e.reg(rn)
	target := offsetAddress(base, offset, up)
	addr := base
	if pre {
		addr = target
	}
	// Post-indexed transfers always write back.
	writeBack := (!pre || Bit(op, 21)) && rn != RegPC

	if load {
		var v uint32
		var cycles int
		if byteOp {
			v, cycles = e.bus.ReadTimed(addr, Byte)
		} else {
			v, cycles = e.loadWord(addr)
		}
		if writeBack {
			e.regFile.R[rn] = target
		}
		e.setReg(rd, v)
		return cycles + 1, nil
	}

	v := e.reg(rd)
	if rd == RegPC {
		v = e.storedPC()
	}

	var cycles int
	if byteOp {
		cycles = e.bus.WriteTimed(addr, Byte, v&0xFF)
	} else {
		cycles = e.bus.WriteTimed(addr&^3, Word, v)
	}
	if writeBack {
		e.regFile.R[rn] = target
	}
	return cycles, nil
}

func (e *Emulator) armHalfwordTransfer(op uint32) (int, error) {
	pre := Bit(op, 24)
	up := Bit(op, 23)
	load := Bit(op, 20)
	rn := Bits(op, 19, 16)
	rd := Bits(op, 15, 12)
	kind := Bits(op, 6, 5)

	if !pre && Bit(op, 21) {
		return 0, e.fatal(UnknownOpcode, "post-indexed halfword transfer with write-back")
	}
	if !load && kind != halfUnsigned {
		return 0, e.fatal(UnknownOpcode, "signed store")
	}

	var offset uint32
	if Bit(op, 22) {
		offset = Bits(op, 11, 8)<<4 | op&0xF
	} else {
		offset = e.reg(op & 0xF)
	}

	base := e.reg(rn)
	target := offsetAddress(base, offset, up)
	addr := base
	if pre {
		addr = target
	}
	writeBack := (!pre || Bit(op, 21)) && rn != RegPC

	if load {
		v, cycles := e.loadHalf(addr, kind)
		if writeBack {
			e.regFile.R[rn] = target
		}
		e.setReg(rd, v)
		return cycles + 1, nil
	}

	v := e.reg(rd)
	if rd == RegPC {
		v = e.storedPC()
	}
	cycles := e.bus.WriteTimed(addr&^1, Half, v&0xFFFF)
	if writeBack {
		e.regFile.R[rn] = target
	}
	return cycles, nil
}

func (e *Emulator) armSwap(op uint32) (int, error) {
	rn := Bits(op, 19, 16)
	rd := Bits(op, 15, 12)
	rm := op & 0xF
	if rn == RegPC || rd == RegPC || rm == RegPC {
		return 0, e.fatal(UnknownOpcode, "swap through r15")
	}

	addr := e.regFile.R[rn]
	source := e.regFile.R[rm]

	if Bit(op, 22) {
		old, readCycles := e.bus.ReadTimed(addr, Byte)
		writeCycles := e.bus.WriteTimed(addr, Byte, source&0xFF)
		e.regFile.R[rd] = old
		return readCycles + writeCycles + 1, nil
	}

	old, readCycles := e.loadWord(addr)
	writeCycles := e.bus.WriteTimed(addr&^3, Word, source)
	e.regFile.R[rd] = old
	return readCycles + writeCycles + 1, nil
}

// blockTransfer describes one LDM/STM, including the Thumb forms.
type blockTransfer struct {
	rn        uint32
	list      uint32
	pre       bool
	up        bool
	writeBack bool
	load      bool
	// userBank transfers the User mode registers.
	userBank bool
	// restoreStatus copies the SPSR into the CPSR after R15 is loaded.
	restoreStatus bool
}

func (e *Emulator) armBlockTransfer(op uint32) (int, error) {
	list := op & 0xFFFF
	load := Bit(op, 20)
	s := Bit(op, 22)

	t := blockTransfer{
		rn:        Bits(op, 19, 16),
		list:      list,
		pre:       Bit(op, 24),
		up:        Bit(op, 23),
		writeBack: Bit(op, 21),
		load:      load,
	}
	if s {
		if load && list&(1<<RegPC) != 0 {
			t.restoreStatus = true
		} else {
			t.userBank = true
		}
	}
	return e.transferBlock(t)
}

// transferBlock moves registers in ascending order to or from consecutive
// words. An empty list transfers R15 and moves the base by 0x40.
func (e *Emulator) transferBlock(t blockTransfer) (int, error) {
	list := t.list
	size := uint32(bits.OnesCount32(list)) * 4
	if list == 0 {
		list = 1 << RegPC
		size = 0x40
	}

	base := e.reg(t.rn)
	var addr, newBase uint32
	if t.up {
		newBase = base + size
		addr = base
		if t.pre {
			addr += 4
		}
	} else {
		newBase = base - size
		addr = newBase
		if !t.pre {
			addr += 4
		}
	}

	writeBack := t.writeBack && t.rn != RegPC
	cycles := 0

	if !t.load {
		first := true
		for r := uint32(0); r < 16; r++ {
			if list&(1<<r) == 0 {
				continue
			}

			var v uint32
			switch {
			case r == RegPC:
				v = e.storedPC()
			case t.userBank:
				v = e.regFile.UserReg(int(r))
			default:
				v = e.regFile.R[r]
			}
			cycles += e.bus.WriteTimed(addr&^3, Word, v)
			addr += 4

			// The base is updated after the first store, so a base that is
			// not first in the list stores its new value.
			if first && writeBack {
				e.regFile.R[t.rn] = newBase
			}
			first = false
		}
		return cycles, nil
	}

	var loaded [16]uint32
	for r := uint32(0); r < 16; r++ {
		if list&(1<<r) == 0 {
			continue
		}
		v, c := e.bus.ReadTimed(addr&^3, Word)
		loaded[r] = v
		cycles += c
		addr += 4
	}

	if writeBack && list&(1<<t.rn) == 0 {
		e.regFile.R[t.rn] = newBase
	}

	for r := uint32(0); r < 15; r++ {
		if list&(1<<r) == 0 {
			continue
		}
		if t.userBank {
			e.regFile.SetUserReg(int(r), loaded[r])
		} else {
			e.regFile.R[r] = loaded[r]
		}
	}

	if list&(1<<RegPC) != 0 {
		if t.restoreStatus {
			if err := e.restoreSPSR(); err != nil {
				return cycles + 1, err
			}
		}
		e.branchTo(loaded[RegPC])
	}
	return cycles + 1, nil
}
