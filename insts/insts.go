// Package insts provides ARMv4T instruction classification and disassembly.
//
// Both instruction sets are classified through flat dispatch tables that are
// built once by NewDecoder. The 32-bit set is keyed by bits 27-20 and 7-4 of
// the opcode (4096 entries), the 16-bit set by bits 15-8 (256 entries).
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	kind := decoder.ARM(0xE3A00001) // mov r0, #1
//	fmt.Println(kind)               // data-processing
package insts
