package emu

import "encoding/binary"

// BIOSSize is the size of the boot ROM region.
const BIOSSize = 0x4000

// builtinBIOS is the minimal firmware mapped when no boot ROM is supplied.
// Only the vectors the core can reach are populated: software interrupts
// never get here because BIOS calls are served by the SyscallHandler.
var builtinBIOS = []struct {
	addr   uint32
	opcode uint32
}{
	{0x000, 0xE3A0F302}, // mov pc, #0x08000000
	{0x008, 0xE1B0F00E}, // movs pc, lr
	{0x018, 0xEA000042}, // b 0x128

	// IRQ dispatcher: call the handler pointer at 0x03FFFFFC.
	{0x128, 0xE92D500F}, // stmfd sp!, {r0-r3, r12, lr}
	{0x12C, 0xE3A00301}, // mov r0, #0x04000000
	{0x130, 0xE28FE000}, // add lr, pc, #0
	{0x134, 0xE510F004}, // ldr pc, [r0, #-4]
	{0x138, 0xE8BD500F}, // ldmfd sp!, {r0-r3, r12, lr}
	{0x13C, 0xE25EF004}, // subs pc, lr, #4
}

// BuiltinBIOS returns a boot ROM image holding the reset, SWI and IRQ
// vectors and the IRQ dispatcher.
func BuiltinBIOS() []byte {
	image := make([]byte, BIOSSize)
	for _, w := range builtinBIOS {
		binary.LittleEndian.PutUint32(image[w.addr:], w.opcode)
	}
	return image
}
