package repository

import (
	"testing"
	"time"

	"github.com/belegwerk/einvoice/internal/common"
)

func TestPoolLimits(t *testing.T) {
	cases := []struct {
		name         string
		cfg          common.DatabaseConfig
		wantOpen     int
		wantIdle     int
		wantLifetime time.Duration
	}{
		{
			name:         "configured values pass through",
			cfg:          common.DatabaseConfig{MaxOpenConns: 25, MaxIdleConns: 5, ConnMaxLifetime: time.Hour},
			wantOpen:     25,
			wantIdle:     5,
			wantLifetime: time.Hour,
		},
		{
			name:         "zero values fall back to defaults",
			cfg:          common.DatabaseConfig{},
			wantOpen:     10,
			wantIdle:     10,
			wantLifetime: 30 * time.Minute,
		},
		{
			name:         "idle defaults to open bound",
			cfg:          common.DatabaseConfig{MaxOpenConns: 4},
			wantOpen:     4,
			wantIdle:     4,
			wantLifetime: 30 * time.Minute,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			open, idle, lifetime := poolLimits(tc.cfg)
			if open != tc.wantOpen || idle != tc.wantIdle || lifetime != tc.wantLifetime {
				t.Errorf("poolLimits() = (%d, %d, %v), want (%d, %d, %v)",
					open, idle, lifetime, tc.wantOpen, tc.wantIdle, tc.wantLifetime)
			}
		})
	}
}
