package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeBreakdown(t *testing.T) {
	tests := []struct {
		name        string
		total       int64
		bps         int
		advanceBPS  int
		wantComm    int64
		wantNet     int64
		wantAdvance int64
		wantFinal   int64
	}{
		{"1000 rupees at 10% / 30% advance", 100000, 1000, 3000, 10000, 90000, 27000, 63000},
		{"odd amount rounds half-up", 99999, 1000, 3000, 10000, 89999, 27000, 62999},
		{"zero commission", 100000, 0, 3000, 0, 100000, 30000, 70000},
		{"full commission", 100000, 10000, 3000, 100000, 0, 0, 0},
		{"tiny amount", 1, 1000, 3000, 0, 1, 0, 1},
		{"prime paise", 12347, 1000, 3000, 1235, 11112, 3334, 7778},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := ComputeBreakdown(tt.total, tt.bps, tt.advanceBPS)
			assert.Equal(t, tt.wantComm, b.CommissionPaise)
			assert.Equal(t, tt.wantNet, b.NetPaise)
			assert.Equal(t, tt.wantAdvance, b.AdvancePaise)
			assert.Equal(t, tt.wantFinal, b.FinalPaise)
		})
	}
}

func TestBreakdownInvariants(t *testing.T) {
	amounts := []int64{1, 99, 100, 999, 12347, 100000, 99999, 1000000, 123456789}
	rates := []int{0, 250, 1000, 2500, 5000, 9999, 10000}

	for _, total := range amounts {
		for _, bps := range rates {
			for _, adv := range rates {
				b := ComputeBreakdown(total, bps, adv)
				assert.Equal(t, total, b.CommissionPaise+b.NetPaise,
					"commission+net must equal total for %d @ %dbps", total, bps)
				assert.Equal(t, b.NetPaise, b.AdvancePaise+b.FinalPaise,
					"advance+final must equal net for %d @ %dbps/%dbps", total, bps, adv)
				assert.GreaterOrEqual(t, b.CommissionPaise, int64(0))
				assert.GreaterOrEqual(t, b.AdvancePaise, int64(0))
				assert.GreaterOrEqual(t, b.FinalPaise, int64(0))
			}
		}
	}
}
