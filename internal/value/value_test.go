package value

import (
	"math"
	"testing"
)

func TestAddCheckedOverflow(t *testing.T) {
	if _, err := AddChecked(1, 2); err != nil {
		t.Fatalf("AddChecked(1,2): unexpected error %v", err)
	}
	if _, err := AddChecked(math.MaxInt64, 1); err == nil {
		t.Fatalf("AddChecked(MaxInt64,1): expected overflow error")
	}
}

func TestAddWrapAndSat(t *testing.T) {
	if got := AddWrap(math.MaxInt64, 1); got != math.MinInt64 {
		t.Fatalf("AddWrap(MaxInt64,1) = %d, want %d", got, math.MinInt64)
	}
	if got := AddSat(math.MaxInt64, 1); got != math.MaxInt64 {
		t.Fatalf("AddSat(MaxInt64,1) = %d, want %d", got, math.MaxInt64)
	}
	if got := AddSat(math.MinInt64, -1); got != math.MinInt64 {
		t.Fatalf("AddSat(MinInt64,-1) = %d, want %d", got, math.MinInt64)
	}
}

func TestDivByZeroAndMinIntOverflow(t *testing.T) {
	if _, err := DivChecked(1, 0); err == nil {
		t.Fatalf("DivChecked(1,0): expected division-by-zero error")
	}
	if _, err := DivChecked(math.MinInt64, -1); err == nil {
		t.Fatalf("DivChecked(MinInt64,-1): expected overflow error")
	}
	if _, err := ModChecked(1, 0); err == nil {
		t.Fatalf("ModChecked(1,0): expected division-by-zero error")
	}
}

func TestCmp3WayAntisymmetry(t *testing.T) {
	pairs := [][2]Value{
		{Int(1), Int(2)},
		{Int(5), Int(5)},
		{Float(1.5), Int(2)},
		{Str("a"), Str("b")},
	}
	for _, p := range pairs {
		ab, abOK := Cmp3Way(p[0], p[1])
		ba, baOK := Cmp3Way(p[1], p[0])
		if abOK != baOK {
			t.Fatalf("Cmp3Way orderedness mismatch for %v/%v", p[0].Inspect(), p[1].Inspect())
		}
		if abOK && OrderingToInt(ab) != -OrderingToInt(ba) {
			t.Errorf("cmp_3way(a,b) != -cmp_3way(b,a) for %s,%s", p[0].Inspect(), p[1].Inspect())
		}
	}
}

func TestCompareUnorderedAcrossCategories(t *testing.T) {
	if o := Compare(Str("x"), Int(1)); o != Unordered {
		t.Fatalf("Compare(string,integer) = %v, want Unordered", o)
	}
	if o := Compare(Float(math.NaN()), Float(1)); o != Unordered {
		t.Fatalf("Compare(NaN,1) = %v, want Unordered", o)
	}
	if Eq(Float(math.NaN()), Float(math.NaN())) {
		t.Fatalf("Eq(NaN,NaN) should be false (unordered treated as unequal)")
	}
}

func TestCountof(t *testing.T) {
	cases := []struct {
		v    Value
		want int64
	}{
		{Arr([]Value{Int(1), Int(2), Int(3)}), 3},
		{Obj(NewObjectData()), 0},
		{Nil(), 0},
	}
	for _, c := range cases {
		got, err := c.v.Countof()
		if err != nil {
			t.Fatalf("Countof: unexpected error %v", err)
		}
		if got != c.want {
			t.Errorf("Countof(%s) = %d, want %d", c.v.Inspect(), got, c.want)
		}
	}
}

func TestTypeofInvariantAcrossCopy(t *testing.T) {
	v := Int(42)
	copied := v
	if v.TypeOf() != copied.TypeOf() {
		t.Fatalf("typeof changed across copy: %s vs %s", v.TypeOf(), copied.TypeOf())
	}
	if v.TypeOf() != "integer" {
		t.Fatalf("typeof(integer) = %q", v.TypeOf())
	}
}

func TestRepeatStringBinaryDoubling(t *testing.T) {
	got, err := RepeatString("ab", 3)
	if err != nil {
		t.Fatalf("RepeatString: unexpected error %v", err)
	}
	if got != "ababab" {
		t.Fatalf("RepeatString(ab,3) = %q, want %q", got, "ababab")
	}
}

func TestBitwiseStringOpAlignment(t *testing.T) {
	and, err := BitwiseStringOp(OpAndB, "\xFF\xFF\xFF", "\x0F\x0F")
	if err != nil {
		t.Fatalf("BitwiseStringOp AND: unexpected error %v", err)
	}
	if and != "\x0F\x0F" {
		t.Fatalf("AND truncates to shorter operand: got %q", and)
	}
	or, err := BitwiseStringOp(OpOrB, "\xF0", "\x0F\x0F")
	if err != nil {
		t.Fatalf("BitwiseStringOp OR: unexpected error %v", err)
	}
	if or != "\xFF\x0F" {
		t.Fatalf("OR zero-pads the shorter operand: got %q", or)
	}
}

func TestObjectDataInsertionOrderPreservedAcrossDelete(t *testing.T) {
	o := NewObjectData()
	o.Set("a", Int(1))
	o.Set("b", Int(2))
	o.Set("c", Int(3))
	o.Delete("b")
	o.Set("d", Int(4))
	want := []string{"a", "c", "d"}
	got := o.Keys()
	if len(got) != len(want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Keys() = %v, want %v", got, want)
		}
	}
}
