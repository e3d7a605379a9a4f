// internal/model/deal.go
package model

import "time"

type DealStage string

const (
	StageApplicationProcessing DealStage = "application_processing"
	StageVerificationNeeded    DealStage = "verification_needed"
	StageActivationNeeded      DealStage = "activation_needed"
	StageCompleted             DealStage = "completed"
	StageUnsuccessful          DealStage = "unsuccessful"
)

// DealStages lists the pipeline stages in board order.
var DealStages = []DealStage{
	StageApplicationProcessing,
	StageVerificationNeeded,
	StageActivationNeeded,
	StageCompleted,
	StageUnsuccessful,
}

func (s DealStage) Valid() bool {
	for _, st := range DealStages {
		if s == st {
			return true
		}
	}
	return false
}

// Closed reports whether the stage ends the pipeline.
func (s DealStage) Closed() bool {
	return s == StageCompleted || s == StageUnsuccessful
}

// ConvertedDealProbability is the probability given to a deal created from a lead.
const ConvertedDealProbability = 25

type Deal struct {
	ID                string    `db:"id" json:"id"`
	UserID            string    `db:"user_id" json:"user_id"`
	ClientID          *string   `db:"client_id" json:"client_id,omitempty"`
	Title             string    `db:"title" json:"title"`
	Amount            *float64  `db:"amount" json:"amount,omitempty"`
	Stage             DealStage `db:"stage" json:"stage"`
	ClientName        string    `db:"client_name" json:"client_name"`
	ExpectedCloseDate *Date     `db:"expected_close_date" json:"expected_close_date,omitempty"`
	Probability       *float64  `db:"probability" json:"probability,omitempty"`
	ProductType       *string   `db:"product_type" json:"product_type,omitempty"`
	InterestRate      *float64  `db:"interest_rate" json:"interest_rate,omitempty"`
	Tenure            *float64  `db:"tenure" json:"tenure,omitempty"`
	ApplicationNumber *string   `db:"application_number" json:"application_number,omitempty"`
	BDINumber         *string   `db:"bdi_number" json:"bdi_number,omitempty"`
	CompletedDate     *Date     `db:"completed_date" json:"completed_date,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

func (d Deal) RecordID() string { return d.ID }
func (d Deal) OwnerID() string  { return d.UserID }

// DealInput is the create payload and partial patch for a deal.
// CompletedDate is a NullDate so a patch can clear the column.
type DealInput struct {
	ClientID          *string    `json:"client_id,omitempty"`
	Title             *string    `json:"title,omitempty"`
	Amount            *float64   `json:"amount,omitempty"`
	Stage             *DealStage `json:"stage,omitempty"`
	ClientName        *string    `json:"client_name,omitempty"`
	ExpectedCloseDate *Date      `json:"expected_close_date,omitempty"`
	Probability       *float64   `json:"probability,omitempty"`
	ProductType       *string    `json:"product_type,omitempty"`
	InterestRate      *float64   `json:"interest_rate,omitempty"`
	Tenure            *float64   `json:"tenure,omitempty"`
	ApplicationNumber *string    `json:"application_number,omitempty"`
	BDINumber         *string    `json:"bdi_number,omitempty"`
	CompletedDate     *NullDate  `json:"completed_date,omitempty"`
}

// DealStats summarises a deal list.
type DealStats struct {
	Total          int     `json:"total"`
	Active         int     `json:"active"`
	Completed      int     `json:"completed"`
	Unsuccessful   int     `json:"unsuccessful"`
	TotalValue     float64 `json:"totalValue"`
	CompletedValue float64 `json:"completedValue"`
}
