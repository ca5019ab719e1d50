package emu

import "github.com/sarchlab/agbsim/insts"

// ConditionHolds evaluates cond against the given flags. The second result is
// false for the reserved NV code, which has no meaning on ARMv4T.
func ConditionHolds(cond insts.Cond, n, z, c, v bool) (bool, bool) {
	switch cond {
	case insts.CondEQ:
		return z, true
	case insts.CondNE:
		return !z, true
	case insts.CondCS:
		return c, true
	case insts.CondCC:
		return !c, true
	case insts.CondMI:
		return n, true
	case insts.CondPL:
		return !n, true
	case insts.CondVS:
		return v, true
	case insts.CondVC:
		return !v, true
	case insts.CondHI:
		return c && !z, true
	case insts.CondLS:
		return !c || z, true
	case insts.CondGE:
		return n == v, true
	case insts.CondLT:
		return n != v, true
	case insts.CondGT:
		return !z && n == v, true
	case insts.CondLE:
		return z || n != v, true
	case insts.CondAL:
		return true, true
	}
	return false, false
}

// CheckCondition evaluates cond against the current CPSR flags.
func (r *RegFile) CheckCondition(cond insts.Cond) (bool, bool) {
	return ConditionHolds(cond, r.N(), r.Z(), r.C(), r.V())
}
