package core

import "strconv"

// UnitID identifies one physical peripheral instance (e.g. a base address or
// a controller index). Matching is by value; 0 is never a valid unit.
type UnitID uint32

func (u UnitID) Valid() bool { return u != 0 }

func (u UnitID) String() string { return "unit:" + strconv.FormatUint(uint64(u), 16) }

// Owner is implemented by peripheral objects; the object pointer is its
// identity and Unit reports the hardware unit it owns.
type Owner interface {
	comparable
	Unit() UnitID
}
