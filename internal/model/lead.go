// internal/model/lead.go
package model

import "time"

type Lead struct {
	ID                  string     `db:"id" json:"id"`
	UserID              string     `db:"user_id" json:"user_id"`
	FullName            string     `db:"full_name" json:"full_name"`
	Email               *string    `db:"email" json:"email,omitempty"`
	Phone               *string    `db:"phone" json:"phone,omitempty"`
	CompanyName         *string    `db:"company_name" json:"company_name,omitempty"`
	MonthlySalary       *float64   `db:"monthly_salary" json:"monthly_salary,omitempty"`
	LoanAmountRequested *float64   `db:"loan_amount_requested" json:"loan_amount_requested,omitempty"`
	ProductInterest     StringList `db:"product_interest" json:"product_interest,omitempty"`
	QualificationStatus string     `db:"qualification_status" json:"qualification_status"`
	LastContactDate     *string    `db:"last_contact_date" json:"last_contact_date,omitempty"`
	UrgencyLevel        string     `db:"urgency_level" json:"urgency_level"`
	Location            *string    `db:"location" json:"location,omitempty"`
	EmploymentYears     *float64   `db:"employment_years" json:"employment_years,omitempty"`
	ExistingLoans       *float64   `db:"existing_loans" json:"existing_loans,omitempty"`
	ReferralSource      *string    `db:"referral_source" json:"referral_source,omitempty"`
	BankName            *string    `db:"bank_name" json:"bank_name,omitempty"`
	ProductType         *string    `db:"product_type" json:"product_type,omitempty"`
	Product             *string    `db:"product" json:"product,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

func (l Lead) RecordID() string { return l.ID }
func (l Lead) OwnerID() string  { return l.UserID }

// LeadInput is both the create payload and the partial patch for a lead.
// Nil fields are left out of the request body.
type LeadInput struct {
	FullName            *string   `json:"full_name,omitempty"`
	Email               *string   `json:"email,omitempty"`
	Phone               *string   `json:"phone,omitempty"`
	CompanyName         *string   `json:"company_name,omitempty"`
	MonthlySalary       *float64  `json:"monthly_salary,omitempty"`
	LoanAmountRequested *float64  `json:"loan_amount_requested,omitempty"`
	ProductInterest     *[]string `json:"product_interest,omitempty"`
	QualificationStatus *string   `json:"qualification_status,omitempty"`
	LastContactDate     *string   `json:"last_contact_date,omitempty"`
	UrgencyLevel        *string   `json:"urgency_level,omitempty"`
	Location            *string   `json:"location,omitempty"`
	EmploymentYears     *float64  `json:"employment_years,omitempty"`
	ExistingLoans       *float64  `json:"existing_loans,omitempty"`
	ReferralSource      *string   `json:"referral_source,omitempty"`
	BankName            *string   `json:"bank_name,omitempty"`
	ProductType         *string   `json:"product_type,omitempty"`
	Product             *string   `json:"product,omitempty"`
}
