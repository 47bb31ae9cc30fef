package domain

import (
	"net/http"
	"testing"
)

func TestDecodePermissions(t *testing.T) {
	cases := []struct {
		name string
		bits int
		want PermissionSet
	}{
		{
			name: "standard only",
			bits: 0b00001,
			want: PermissionSet{IsStandard: true},
		},
		{
			name: "admin with standard",
			bits: 0b00101,
			want: PermissionSet{IsAdmin: true, IsStandard: true},
		},
		{
			name: "superadmin",
			bits: 0b10000,
			want: PermissionSet{IsSuperadmin: true},
		},
		{
			name: "all bits",
			bits: 0b11111,
			want: PermissionSet{IsSuperadmin: true, IsHSZC: true, IsAdmin: true, IsPrivileged: true, IsStandard: true},
		},
		{
			name: "no bits",
			bits: 0,
			want: PermissionSet{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DecodePermissions(tc.bits)
			if got != tc.want {
				t.Fatalf("DecodePermissions(%b) = %+v, want %+v", tc.bits, got, tc.want)
			}
			if got.Encode() != tc.bits {
				t.Fatalf("Encode() = %b, want %b", got.Encode(), tc.bits)
			}
		})
	}
}

func TestDecodeTableAccess(t *testing.T) {
	got := DecodeTableAccess(0b0101)
	want := TableAccessSet{CanUpdate: true, CanRead: true}
	if got != want {
		t.Fatalf("DecodeTableAccess(0101) = %+v, want %+v", got, want)
	}
	if got.Encode() != 0b0101 {
		t.Fatalf("Encode() = %b, want 0101", got.Encode())
	}
}

func TestTableAccessAllows(t *testing.T) {
	readOnly := DecodeTableAccess(0b0001)
	if !readOnly.Allows(http.MethodGet) {
		t.Fatalf("read grant should allow GET")
	}
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		if readOnly.Allows(method) {
			t.Fatalf("read grant should not allow %s", method)
		}
	}

	full := DecodeTableAccess(0b1111)
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		if !full.Allows(method) {
			t.Fatalf("full grant should allow %s", method)
		}
	}

	if full.Allows(http.MethodHead) {
		t.Fatalf("unknown method should be denied")
	}
}

func TestAvailableGrants(t *testing.T) {
	user := User{
		TableAccess: []TableGrant{
			{Table: TableDescriptor{Name: "kompetencia", IsAvailable: true}, Access: 0b0001},
			{Table: TableDescriptor{Name: "hidden", IsAvailable: false}, Access: 0b1111},
		},
	}

	grants := user.AvailableGrants()
	if len(grants) != 1 {
		t.Fatalf("expected 1 available grant, got %d", len(grants))
	}
	if grants[0].Table.Name != "kompetencia" {
		t.Fatalf("expected kompetencia, got %s", grants[0].Table.Name)
	}
}
