package models

import "time"

// Attendance is one calendar day for one user. Date is stored as YYYY-MM-DD.
type Attendance struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"not null;uniqueIndex:idx_attendance_user_date" json:"user_id"`
	Date        string     `gorm:"size:10;not null;uniqueIndex:idx_attendance_user_date;index" json:"date"`
	CheckIn     *time.Time `json:"check_in"`
	CheckOut    *time.Time `json:"check_out"`
	Status      string     `gorm:"size:20;not null" json:"status"`
	WorkMinutes int        `gorm:"not null;default:0" json:"work_minutes"`
	Note        string     `gorm:"size:512" json:"note"`
	IPAddress   string     `gorm:"size:45" json:"ip_address"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Attendance) TableName() string { return "attendances" }
