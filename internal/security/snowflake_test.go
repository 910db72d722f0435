package security

import "testing"

func TestParseSnowflake(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    uint64
		wantErr bool
	}{
		{"valid", "123456789012345678", 123456789012345678, false},
		{"small id", "1", 1, false},
		{"empty", "", 0, true},
		{"zero", "0", 0, true},
		{"letters", "abc123", 0, true},
		{"negative", "-5", 0, true},
		{"overflow", "99999999999999999999999", 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseSnowflake(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseSnowflake(%q) succeeded, want error", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSnowflake(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("ParseSnowflake(%q) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}
