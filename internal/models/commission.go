package models

import (
	"time"

	"github.com/google/uuid"
)

// CommissionSetting is versioned; the calculator always picks the most
// recent active row whose effective_from has passed. Percentage is stored in
// basis points to keep all arithmetic integral.
type CommissionSetting struct {
	ID            uuid.UUID `json:"id"`
	CommissionBPS int       `json:"commission_bps"`
	EffectiveFrom time.Time `json:"effective_from"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

// Breakdown is the full fee split shown alongside every price-bearing
// message. All values are integer paise; Advance+Final == Net and
// Commission+Net == Total hold exactly.
type Breakdown struct {
	TotalPaise      int64 `json:"total_paise"`
	CommissionBPS   int   `json:"commission_bps"`
	CommissionPaise int64 `json:"commission_paise"`
	NetPaise        int64 `json:"net_paise"`
	AdvancePaise    int64 `json:"advance_paise"`
	FinalPaise      int64 `json:"final_paise"`
}
