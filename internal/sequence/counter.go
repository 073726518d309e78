// Package sequence hands out gapless-per-pool, strictly increasing numbers.
// Each pool is identified by a (domain, base_code) pair so unrelated
// numbering concerns can share the counter table without colliding.
package sequence

import "time"

// DomainVoucher is the pool namespace reserved for accounting vouchers.
const DomainVoucher = "voucher"

// Counter is the persisted high-water mark for one numbering pool.
type Counter struct {
	Domain    string
	BaseCode  string
	LastValue int64
	UpdatedAt time.Time
}

// BaseCode builds the voucher pool key from a business unit and a YYYYMMDD date.
func BaseCode(businessUnit, date string) string {
	return businessUnit + date
}
