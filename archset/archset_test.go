package archset

import (
	"testing"

	"github.com/appsworld/machotbd/types"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		cpu     types.CPU
		sub     types.CPUSubtype
		want    string
		wantOk  bool
	}{
		{"arm64", types.CPUArm64, types.CPUSubtypeArm64All, "arm64", true},
		{"arm64e masks capability bits", types.CPUArm64, types.CPUSubtypeArm64E | 0x80000000, "arm64e", true},
		{"x86_64", types.CPUAmd64, types.CPUSubtypeX8664All, "x86_64", true},
		{"unknown cpu", types.CPU(0xdead), 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := Lookup(tt.cpu, tt.sub)
			if ok != tt.wantOk {
				t.Fatalf("Lookup() ok = %v, want %v", ok, tt.wantOk)
			}
			if ok && d.Name != tt.want {
				t.Fatalf("Lookup() name = %q, want %q", d.Name, tt.want)
			}
		})
	}
}

func TestByName(t *testing.T) {
	d, ok := ByName("arm64")
	if !ok || d.CPU != types.CPUArm64 {
		t.Fatalf("ByName(arm64) = %+v, %v", d, ok)
	}
	if _, ok := ByName("not-a-real-arch"); ok {
		t.Fatal("ByName() on unknown name should report false")
	}
}

func TestTableIndicesAssignedOnce(t *testing.T) {
	for i, d := range Table() {
		if int(d.Index) != i {
			t.Fatalf("Table()[%d].Index = %d, want %d", i, d.Index, i)
		}
	}
}

func TestArchSetSetAndTest(t *testing.T) {
	arm64, _ := ByName("arm64")
	x8664, _ := ByName("x86_64")

	var s ArchSet
	if !s.Empty() {
		t.Fatal("zero-value ArchSet should be Empty")
	}
	s = s.Set(arm64)
	if !s.Test(arm64) {
		t.Fatal("ArchSet should contain arm64 after Set")
	}
	if s.Test(x8664) {
		t.Fatal("ArchSet should not contain x86_64 before Set")
	}
	if s.PopCount() != 1 {
		t.Fatalf("PopCount() = %d, want 1", s.PopCount())
	}

	s2 := FromDescriptor(x8664)
	merged := s.Or(s2)
	if !merged.Test(arm64) || !merged.Test(x8664) {
		t.Fatal("Or() should union both members")
	}
	if merged.PopCount() != 2 {
		t.Fatalf("PopCount() = %d, want 2", merged.PopCount())
	}
}

func TestArchSetNamesAscendingByTableIndex(t *testing.T) {
	arm64, _ := ByName("arm64")
	i386, _ := ByName("i386")

	s := FromDescriptor(arm64).Or(FromDescriptor(i386))
	names := s.Names()
	if len(names) != 2 || names[0] != "i386" || names[1] != "arm64" {
		t.Fatalf("Names() = %v, want [i386 arm64] (ascending table index)", names)
	}
}

func TestCompare(t *testing.T) {
	arm64, _ := ByName("arm64")
	x8664, _ := ByName("x86_64")
	i386, _ := ByName("i386")

	one := FromDescriptor(arm64)
	two := FromDescriptor(arm64).Or(FromDescriptor(x8664))

	if c := Compare(one, two); c >= 0 {
		t.Fatalf("Compare(popcount 1, popcount 2) = %d, want < 0", c)
	}
	if c := Compare(two, one); c <= 0 {
		t.Fatalf("Compare(popcount 2, popcount 1) = %d, want > 0", c)
	}
	if c := Compare(one, one); c != 0 {
		t.Fatalf("Compare(x, x) = %d, want 0", c)
	}

	// Equal popcount: tie-break on raw bitset value.
	a := FromDescriptor(i386)
	b := FromDescriptor(arm64)
	if a.PopCount() != b.PopCount() {
		t.Fatal("test setup assumes both are singleton sets")
	}
	wantSign := 0
	if a < b {
		wantSign = -1
	} else if a > b {
		wantSign = 1
	}
	gotSign := 0
	if c := Compare(a, b); c < 0 {
		gotSign = -1
	} else if c > 0 {
		gotSign = 1
	}
	if gotSign != wantSign {
		t.Fatalf("Compare() tie-break disagrees with raw bitset ordering: got sign %d, want %d", gotSign, wantSign)
	}
}

func TestArchSetString(t *testing.T) {
	arm64, _ := ByName("arm64")
	s := FromDescriptor(arm64)
	if got, want := s.String(), "[arm64]"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
