package evcompat

import "testing"

func TestDecodeVersion(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want VersionCode
	}{
		// Dotted form, with and without tags.
		{"1.4.11", MakeVersion(1, 4, 11)},
		{"1.4.11-stable", MakeVersion(1, 4, 11)},
		{"1.4.11_stable", MakeVersion(1, 4, 11)},
		{"1.4.11-", MakeVersion(1, 4, 11)},
		{"1.4.11_", MakeVersion(1, 4, 11)},
		{"1.4.0-beta", MakeVersion(1, 4, 0)},
		{"2.0.1-rc", MakeVersion(2, 0, 1)},
		{"2.0.10-stable", MakeVersion(2, 0, 10)},
		{"1.4.99", MakeVersion(1, 4, 99)},

		// A revision letter is allowed only right before the separator,
		// and never contributes to the code.
		{"1.4.14b-stable", MakeVersion(1, 4, 14)},
		{"1.4.14b_stable", MakeVersion(1, 4, 14)},
		{"1.4.14b", VersionUnknownOther},
		{"1.4.11x", VersionUnknownOther},
		{"1.4.11xy", VersionUnknownOther},

		// Lettered form.
		{"1.3", MakeVersion(1, 3, 0)},
		{"1.3e", versionOld(1, 3, 'e')},
		{"1.0c", MakeVersion(1, 0, 3)},
		{"1.1b", MakeVersion(1, 1, 2)},
		{"10.2", MakeVersion(10, 2, 0)},
		{"1.3e-rc", VersionUnknownOther},
		{"1.3-rc", VersionUnknownOther},
		{"1.3ee", VersionUnknownOther},

		// Unrecognised shapes.
		{"", VersionUnknownOther},
		{"banana", VersionUnknownOther},
		{"1", VersionUnknownOther},
		{"1.", VersionUnknownOther},
		{".1.2", VersionUnknownOther},
		{"1..2", VersionUnknownOther},
		{"1.2.3.4", VersionUnknownOther},
		{"v1.2.3", VersionUnknownOther},
	} {
		t.Run(tc.in, func(t *testing.T) {
			if got := DecodeVersion(tc.in); got != tc.want {
				t.Fatalf("DecodeVersion(%q) = %v (0x%08x), want %v (0x%08x)",
					tc.in, got, uint32(got), tc.want, uint32(tc.want))
			}
		})
	}
}

func TestMakeVersion_Packing(t *testing.T) {
	v := MakeVersion(1, 4, 14)
	if uint32(v) != 1<<24|4<<16|14<<8 {
		t.Fatalf("unexpected packing: 0x%08x", uint32(v))
	}
	if v.Major() != 1 || v.Minor() != 4 || v.Patch() != 14 {
		t.Fatalf("accessors disagree: %d.%d.%d", v.Major(), v.Minor(), v.Patch())
	}
	if v.String() != "1.4.14" {
		t.Fatalf("String() = %q", v.String())
	}
}

func TestVersionCode_StringSentinels(t *testing.T) {
	for _, tc := range []struct {
		v    VersionCode
		want string
	}{
		{VersionUnknownOld, "pre-1.0c"},
		{VersionUnknownOther, "unknown"},
		{versionOld(1, 0, 'c'), "1.0.3"},
	} {
		if got := tc.v.String(); got != tc.want {
			t.Errorf("String(0x%08x) = %q, want %q", uint32(tc.v), got, tc.want)
		}
	}
}

func TestVersionCode_Ordering(t *testing.T) {
	// The packing must order releases, including lettered ones, correctly.
	ordered := []VersionCode{
		VersionUnknownOld,
		VersionUnknownOther,
		versionOld(1, 0, 'a'),
		versionOld(1, 0, 'c'),
		MakeVersion(1, 0, 5),
		versionOld(1, 1, 'b'),
		versionOld(1, 3, 'b'),
		MakeVersion(1, 3, 5),
		MakeVersion(1, 4, 0),
		MakeVersion(1, 4, 14),
		MakeVersion(1, 4, 99),
		MakeVersion(2, 0, 1),
		MakeVersion(2, 1, 12),
	}
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1] >= ordered[i] {
			t.Fatalf("ordering violated at %d: %v >= %v", i, ordered[i-1], ordered[i])
		}
	}
}

func TestVersionCode_Sentinels(t *testing.T) {
	if VersionUnknownOld != 0 {
		t.Fatal("VersionUnknownOld must be the zero code")
	}
	if VersionUnknownOther != MakeVersion(0, 0, 99) {
		t.Fatal("VersionUnknownOther must pack as 0.0.99")
	}
	if DecodeVersion("0.0.99") != VersionUnknownOther {
		t.Fatal("expected 0.0.99 to round-trip onto the sentinel")
	}
}
