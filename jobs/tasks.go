package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the queue background reconciliation runs on.
	QueueDefault = "default"

	// TaskLedgerIntegrity rescans journal groups for balance violations.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskInventoryAudit compares the stock cache against the movement log.
	TaskInventoryAudit = "inventory:audit"
	// TaskARAudit compares cached receivable paid amounts against allocations.
	TaskARAudit = "ar:audit"
	// TaskAPAudit compares cached payable paid amounts against allocations.
	TaskAPAudit = "ap:audit"
)

// LedgerIntegrityPayload bounds the integrity scan.
type LedgerIntegrityPayload struct {
	// JournalType restricts the scan to one journal; empty scans all.
	JournalType string `json:"journal_type,omitempty"`
}

func NewLedgerIntegrityTask(journalType string) (*asynq.Task, error) {
	data, err := json.Marshal(LedgerIntegrityPayload{JournalType: journalType})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}

// InventoryAuditPayload narrows the audit to one product or warehouse.
type InventoryAuditPayload struct {
	ProductID   int64 `json:"product_id,omitempty"`
	WarehouseID int64 `json:"warehouse_id,omitempty"`
}

func NewInventoryAuditTask(payload InventoryAuditPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventoryAudit, data), nil
}

func NewARAuditTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskARAudit, []byte(`{}`)), nil
}

func NewAPAuditTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskAPAudit, []byte(`{}`)), nil
}
