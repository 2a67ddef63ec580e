package model

import (
	"time"

	"github.com/uptrace/bun"
	"gopkg.in/guregu/null.v3"
)

const (
	AuditCohort   = "cohort"
	AuditDatasets = "datasets"
)

// Identity is the caller as reported by the authenticating gateway.
type Identity struct {
	UserID   null.String `json:"userId"`
	UserName null.String `json:"userName"`
}

// PrivacyAudit records a request that went below a privacy threshold.
type PrivacyAudit struct {
	bun.BaseModel `bun:"privacy_audits,alias:pa"`

	ID        string      `bun:",pk" json:"id"`
	Kind      string      `bun:",notnull" json:"kind"`
	UserID    null.String `json:"userId"`
	UserName  null.String `json:"userName"`
	Module    string      `bun:",notnull" json:"module"`
	TaskID    null.String `json:"taskId"`
	CohortIDs []int64     `bun:",array" json:"cohortIds"`
	// Value is the cohort size or dataset count that was checked.
	Value     int       `bun:",notnull" json:"value"`
	Threshold int       `bun:",notnull" json:"threshold"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"createdAt"`
}
