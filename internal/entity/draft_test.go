package entity

import "testing"

func f(v float64) *float64 { return &v }

func TestCheckAmounts(t *testing.T) {
	tests := []struct {
		name            string
		net, tax, gross *float64
		wantErr         bool
	}{
		{"exact", f(100), f(19), f(119), false},
		{"within tolerance", f(100), f(19), f(119.01), false},
		{"violation", f(100), f(19), f(125), true},
		{"negative drift", f(100), f(19), f(118.50), true},
		{"incomplete amounts skip the check", f(100), nil, f(119), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := InvoiceDraft{NetAmount: tt.net, TaxAmount: tt.tax, GrossAmount: tt.gross}
			err := d.CheckAmounts()
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckAmounts() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.gross != nil && *d.GrossAmount != *tt.gross {
				t.Fatalf("gross mutated to %v; violations must be flagged, not corrected", *d.GrossAmount)
			}
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		prefix, sep string
		year        bool
		padding     int
		counter     int64
		want        string
	}{
		{"RE", "-", true, 5, 42, "RE-2026-00042"},
		{"RE", "-", false, 5, 42, "RE-00042"},
		{"", "/", true, 0, 7, "2026/7"},
		{"INV", "", false, 3, 9, "INV009"},
	}
	for _, tt := range tests {
		got := FormatNumber(tt.prefix, tt.sep, tt.year, tt.padding, 2026, tt.counter)
		if got != tt.want {
			t.Errorf("FormatNumber(%q,%q,%v,%d,2026,%d) = %q, want %q",
				tt.prefix, tt.sep, tt.year, tt.padding, tt.counter, got, tt.want)
		}
	}
}
