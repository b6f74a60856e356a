package core

// Select resolves the object owning unit u. No match is not an error: an
// interrupt for a unit without a registered owner is simply ignored by the
// caller. If two objects claim the same unit, the earlier slot wins.
func Select[T Owner](r *Registry[T], u UnitID) (T, bool) {
	return r.First(func(o T) bool { return o.Unit() == u })
}
