package validators

import "testing"

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"  Plano   Básico \n", 0, "Plano Básico"},
		{"Plano Básico", 8, "Plano Bá"},
		{"Plano Básico", 6, "Plano"},
		{"", 10, ""},
	}
	for _, tc := range cases {
		if got := SanitizeString(tc.in, tc.max); got != tc.want {
			t.Fatalf("SanitizeString(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}
