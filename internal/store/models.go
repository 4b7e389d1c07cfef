package store

import (
	"time"
)

// Profile carries the Telegram identity fields stored for a user.
type Profile struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string
}

// User is one bot user with activity counters.
type User struct {
	UserID          int64      `db:"user_id"`
	Username        string     `db:"username"`
	FirstName       string     `db:"first_name"`
	LastName        string     `db:"last_name"`
	FirstSeen       time.Time  `db:"first_seen"`
	LastActivity    time.Time  `db:"last_activity"`
	SurveyCompleted bool       `db:"survey_completed"`
	ActiveDays      int        `db:"active_days"`
	LastActiveDate  *time.Time `db:"last_active_date"`
}

// SurveyResponse is one survey attempt. Answer fields stay nil until answered.
type SurveyResponse struct {
	ID                  int64      `db:"id"`
	UserID              int64      `db:"user_id"`
	Region              *string    `db:"region"`
	HasBusiness         *string    `db:"has_business"`
	IsUnder25           *string    `db:"is_under_25"`
	HasExperience       *string    `db:"has_experience"`
	OfficialIncome      *string    `db:"official_income"`
	WorkPlan            *string    `db:"work_plan"`
	MicroResult         *string    `db:"micro_result"`
	SubsidyInterest     *string    `db:"subsidy_interest"`
	DesiredOutcome      *string    `db:"desired_outcome"`
	ImportanceLevel     *string    `db:"importance_level"`
	InvestmentReadiness *string    `db:"investment_readiness"`
	Completed           bool       `db:"completed"`
	CreatedAt           time.Time  `db:"created_at"`
	CompletedAt         *time.Time `db:"completed_at"`
}

// Answers returns the answered fields keyed by column name.
func (r *SurveyResponse) Answers() map[string]string {
	out := make(map[string]string, len(AnswerFields))
	if r == nil {
		return out
	}
	for _, f := range AnswerFields {
		if v := r.field(f); v != nil {
			out[f] = *v
		}
	}
	return out
}

// Answer returns the value of one answer column.
func (r *SurveyResponse) Answer(field string) (string, bool) {
	if r == nil {
		return "", false
	}
	v := r.field(field)
	if v == nil {
		return "", false
	}
	return *v, true
}

func (r *SurveyResponse) field(name string) *string {
	switch name {
	case "region":
		return r.Region
	case "has_business":
		return r.HasBusiness
	case "is_under_25":
		return r.IsUnder25
	case "has_experience":
		return r.HasExperience
	case "official_income":
		return r.OfficialIncome
	case "work_plan":
		return r.WorkPlan
	case "micro_result":
		return r.MicroResult
	case "subsidy_interest":
		return r.SubsidyInterest
	case "desired_outcome":
		return r.DesiredOutcome
	case "importance_level":
		return r.ImportanceLevel
	case "investment_readiness":
		return r.InvestmentReadiness
	}
	return nil
}

// Bucket is the activity snapshot of one UTC calendar day.
type Bucket struct {
	Date           time.Time `db:"bucket_date"`
	DailyUsers     int       `db:"daily_users"`
	WeeklyUsers    int       `db:"weekly_users"`
	MonthlyUsers   int       `db:"monthly_users"`
	DailySurveys   int       `db:"daily_surveys"`
	WeeklySurveys  int       `db:"weekly_surveys"`
	MonthlySurveys int       `db:"monthly_surveys"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Text is one localized message template.
type Text struct {
	Key       string    `db:"key"`
	Category  string    `db:"category"`
	Language  string    `db:"language"`
	Text      string    `db:"text"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Totals aggregates lifetime counters.
type Totals struct {
	Users            int `db:"users"`
	CompletedUsers   int `db:"completed_users"`
	CompletedSurveys int `db:"completed_surveys"`
	OpenSurveys      int `db:"open_surveys"`
}
