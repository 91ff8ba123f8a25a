package extract

import "testing"

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"59,99", 59.99, false},
		{"59.99", 59.99, false},
		{"1.234,56", 1234.56, false},
		{"1,234.56", 1234.56, false},
		{"1.234", 1234, false},
		{"1.234.567,89", 1234567.89, false},
		{"1,234,567.89", 1234567.89, false},
		{"19", 19, false},
		{"-12,50", -12.50, false},
		{"119,00 €", 119, false},
		{"EUR 42,00", 42, false},
		{"", 0, true},
		{"abc", 0, true},
		{"12,34,56.78.90", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDecimal(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDecimal(%q) = %v, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDecimal(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDecimal(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
