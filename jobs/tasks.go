package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskVoucherBackfill posts vouchers for historical documents that have none.
	TaskVoucherBackfill = "voucher:backfill"
)

// VoucherBackfillPayload bounds one backfill run. Dates are YYYYMMDD.
type VoucherBackfillPayload struct {
	BusinessUnit string `json:"business_unit"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	PreparedBy   string `json:"prepared_by"`
	TaxPolicy    string `json:"tax_policy,omitempty"`
}

// NewVoucherBackfillTask constructs an Asynq task.
func NewVoucherBackfillTask(payload VoucherBackfillPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskVoucherBackfill, data), nil
}
