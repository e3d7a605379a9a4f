// internal/model/client.go
package model

import "time"

type Client struct {
	ID                 string     `db:"id" json:"id"`
	UserID             string     `db:"user_id" json:"user_id"`
	FullName           string     `db:"full_name" json:"full_name"`
	PhotoURL           *string    `db:"photo_url" json:"photo_url,omitempty"`
	Email              *string    `db:"email" json:"email,omitempty"`
	Phone              *string    `db:"phone" json:"phone,omitempty"`
	CompanyName        *string    `db:"company_name" json:"company_name,omitempty"`
	Designation        *string    `db:"designation" json:"designation,omitempty"`
	MonthlySalary      *float64   `db:"monthly_salary" json:"monthly_salary,omitempty"`
	RelationshipStatus string     `db:"relationship_status" json:"relationship_status"`
	TotalLoanAmount    *float64   `db:"total_loan_amount" json:"total_loan_amount,omitempty"`
	Products           StringList `db:"products" json:"products,omitempty"`
	LastInteraction    *string    `db:"last_interaction" json:"last_interaction,omitempty"`
	ClientSince        *Date      `db:"client_since" json:"client_since,omitempty"`
	DOB                *Date      `db:"dob" json:"dob,omitempty"`
	Nationality        *string    `db:"nationality" json:"nationality,omitempty"`
	VisaStatus         *string    `db:"visa_status" json:"visa_status,omitempty"`
	EmiratesID         *string    `db:"emirates_id" json:"emirates_id,omitempty"`
	Passport           *string    `db:"passport" json:"passport,omitempty"`
	AECBScore          *float64   `db:"aecb_score" json:"aecb_score,omitempty"`
	Emirate            *string    `db:"emirate" json:"emirate,omitempty"`
	CompanyLandline    *string    `db:"company_landline" json:"company_landline,omitempty"`
	CompanyWebsite     *string    `db:"company_website" json:"company_website,omitempty"`
	OfficialEmail      *string    `db:"official_email" json:"official_email,omitempty"`
	LTVRatio           *float64   `db:"ltv_ratio" json:"ltv_ratio,omitempty"`
	PaymentHistory     *string    `db:"payment_history" json:"payment_history,omitempty"`
	RiskCategory       *string    `db:"risk_category" json:"risk_category,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

func (c Client) RecordID() string { return c.ID }
func (c Client) OwnerID() string  { return c.UserID }

const RelationshipActive = "active"

// ClientInput is the create payload and partial patch for a client.
type ClientInput struct {
	FullName           *string   `json:"full_name,omitempty"`
	PhotoURL           *string   `json:"photo_url,omitempty"`
	Email              *string   `json:"email,omitempty"`
	Phone              *string   `json:"phone,omitempty"`
	CompanyName        *string   `json:"company_name,omitempty"`
	Designation        *string   `json:"designation,omitempty"`
	MonthlySalary      *float64  `json:"monthly_salary,omitempty"`
	RelationshipStatus *string   `json:"relationship_status,omitempty"`
	TotalLoanAmount    *float64  `json:"total_loan_amount,omitempty"`
	Products           *[]string `json:"products,omitempty"`
	LastInteraction    *string   `json:"last_interaction,omitempty"`
	ClientSince        *Date     `json:"client_since,omitempty"`
	DOB                *Date     `json:"dob,omitempty"`
	Nationality        *string   `json:"nationality,omitempty"`
	VisaStatus         *string   `json:"visa_status,omitempty"`
	EmiratesID         *string   `json:"emirates_id,omitempty"`
	Passport           *string   `json:"passport,omitempty"`
	AECBScore          *float64  `json:"aecb_score,omitempty"`
	Emirate            *string   `json:"emirate,omitempty"`
	CompanyLandline    *string   `json:"company_landline,omitempty"`
	CompanyWebsite     *string   `json:"company_website,omitempty"`
	OfficialEmail      *string   `json:"official_email,omitempty"`
	LTVRatio           *float64  `json:"ltv_ratio,omitempty"`
	PaymentHistory     *string   `json:"payment_history,omitempty"`
	RiskCategory       *string   `json:"risk_category,omitempty"`
}
