package core

import (
	"errors"
	"testing"

	"periph-go/errcode"
)

type obj struct {
	name string
	unit UnitID
}

func (o *obj) Unit() UnitID { return o.unit }

func live(r *Registry[*obj]) []string {
	var out []string
	r.Each(func(o *obj) bool { out = append(out, o.name); return true })
	return out
}

func TestRegistry_CapacityThreeScenario(t *testing.T) {
	r := NewRegistry[*obj](3)
	x := &obj{name: "x", unit: 1}
	y := &obj{name: "y", unit: 2}

	for _, it := range []*obj{x, y, x} {
		if err := r.Push(it); err != nil {
			t.Fatalf("push %s: %v", it.name, err)
		}
	}
	if got := live(r); len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Fatalf("live after pushes = %v, want [x y]", got)
	}

	r.Pop(x)
	if got := live(r); len(got) != 1 || got[0] != "y" {
		t.Fatalf("live after pop(x) = %v, want [y]", got)
	}
	if r.IsEmpty() {
		t.Fatal("registry should not be empty")
	}

	r.Pop(y)
	if !r.IsEmpty() {
		t.Fatal("registry should be empty")
	}
}

func TestRegistry_GeneratedSequencesStayUnique(t *testing.T) {
	pool := []*obj{{name: "a"}, {name: "b"}, {name: "c"}, {name: "d"}, {name: "e"}}
	for seed := uint32(1); seed <= 200; seed++ {
		r := NewRegistry[*obj](3)
		want := map[*obj]bool{}
		x := seed
		for step := 0; step < 40; step++ {
			// xorshift keeps the sequences reproducible per seed.
			x ^= x << 13
			x ^= x >> 17
			x ^= x << 5
			it := pool[x%uint32(len(pool))]
			if x&0x100 == 0 {
				err := r.Push(it)
				switch {
				case want[it]:
					if err != nil {
						t.Fatalf("seed %d step %d: re-push %s: %v", seed, step, it.name, err)
					}
				case len(want) == 3:
					if !errors.Is(err, errcode.RegistryFull) {
						t.Fatalf("seed %d step %d: push on full = %v", seed, step, err)
					}
				default:
					if err != nil {
						t.Fatalf("seed %d step %d: push %s: %v", seed, step, it.name, err)
					}
					want[it] = true
				}
			} else {
				r.Pop(it)
				delete(want, it)
			}

			seen := map[*obj]bool{}
			r.Each(func(o *obj) bool {
				if seen[o] {
					t.Fatalf("seed %d step %d: %s live twice", seed, step, o.name)
				}
				seen[o] = true
				return true
			})
			if len(seen) != len(want) {
				t.Fatalf("seed %d step %d: live=%d want %d", seed, step, len(seen), len(want))
			}
			for o := range want {
				if !seen[o] {
					t.Fatalf("seed %d step %d: %s missing", seed, step, o.name)
				}
			}
			if r.IsEmpty() != (len(want) == 0) {
				t.Fatalf("seed %d step %d: IsEmpty=%v with %d outstanding", seed, step, r.IsEmpty(), len(want))
			}
		}
	}
}

func TestRegistry_SaturatesWithoutStoring(t *testing.T) {
	r := NewRegistry[*obj](2)
	a, b, c := &obj{name: "a"}, &obj{name: "b"}, &obj{name: "c"}
	_ = r.Push(a)
	_ = r.Push(b)

	err := r.Push(c)
	if !errors.Is(err, errcode.RegistryFull) {
		t.Fatalf("err = %v, want registry_full", err)
	}
	if _, ok := r.Find(c); ok {
		t.Fatal("c must not be stored")
	}
	// Re-pushing a live entry on a full registry is still a no-op.
	if err := r.Push(a); err != nil {
		t.Fatalf("re-push on full registry: %v", err)
	}
}

func TestRegistry_PopFreesFirstSlotForReuse(t *testing.T) {
	r := NewRegistry[*obj](3)
	a, b, c := &obj{name: "a"}, &obj{name: "b"}, &obj{name: "c"}
	_ = r.Push(a)
	_ = r.Push(b)
	r.Pop(a)
	_ = r.Push(c)

	if i, ok := r.Find(c); !ok || i != 0 {
		t.Fatalf("c at slot %d (ok=%v), want 0", i, ok)
	}
	if r.Len() != 2 {
		t.Fatalf("len=%d", r.Len())
	}
}

func TestRegistry_ZeroValueIgnored(t *testing.T) {
	r := NewRegistry[*obj](1)
	if err := r.Push(nil); err != nil {
		t.Fatalf("push(nil): %v", err)
	}
	if !r.IsEmpty() {
		t.Fatal("nil must never become a live entry")
	}
}

func TestRegistry_EachAllowsMutation(t *testing.T) {
	r := NewRegistry[*obj](4)
	a, b := &obj{name: "a"}, &obj{name: "b"}
	_ = r.Push(a)
	_ = r.Push(b)

	var seen []string
	r.Each(func(o *obj) bool {
		seen = append(seen, o.name)
		r.Pop(o)
		return true
	})
	if len(seen) != 2 || !r.IsEmpty() {
		t.Fatalf("seen=%v empty=%v", seen, r.IsEmpty())
	}
}

func TestSelect(t *testing.T) {
	r := NewRegistry[*obj](4)
	a := &obj{name: "a", unit: 0x10}
	b := &obj{name: "b", unit: 0x20}
	dup := &obj{name: "dup", unit: 0x10}
	_ = r.Push(a)
	_ = r.Push(b)
	_ = r.Push(dup)

	cases := []struct {
		unit UnitID
		want string
		ok   bool
	}{
		{0x10, "a", true},
		{0x20, "b", true},
		{0x30, "", false},
	}
	for _, tc := range cases {
		got, ok := Select(r, tc.unit)
		if ok != tc.ok {
			t.Fatalf("unit %v: ok=%v want %v", tc.unit, ok, tc.ok)
		}
		if ok && got.name != tc.want {
			t.Fatalf("unit %v: got %s want %s", tc.unit, got.name, tc.want)
		}
	}

	r.Pop(a)
	if got, _ := Select(r, 0x10); got != dup {
		t.Fatalf("after pop(a) want dup, got %v", got)
	}
}

func TestUnitValid(t *testing.T) {
	if UnitID(0).Valid() || !UnitID(7).Valid() {
		t.Fatal("Valid mismatch")
	}
}
