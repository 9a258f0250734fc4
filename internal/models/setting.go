package models

import (
	"time"

	"gorm.io/datatypes"
)

// OrgSettingsID is the primary key of the singleton settings row.
const OrgSettingsID = 1

type PermissionSettings struct {
	EmployeesCanViewTeam bool `json:"employees_can_view_team"`
}

type AttendanceSettings struct {
	WorkStartTime    string `json:"work_start_time"` // HH:MM, local server time
	LateGraceMinutes int    `json:"late_grace_minutes"`
}

type MobileSettings struct {
	CheckInEnabled  bool `json:"check_in_enabled"`
	RequireLocation bool `json:"require_location"`
}

type ThemeSettings struct {
	PrimaryColor string `json:"primary_color"`
	LogoURL      string `json:"logo_url"`
}

// OrgSettings is the typed organization-wide configuration.
type OrgSettings struct {
	Permissions PermissionSettings `json:"permissions"`
	Attendance  AttendanceSettings `json:"attendance"`
	Mobile      MobileSettings     `json:"mobile"`
	Theme       ThemeSettings      `json:"theme"`
}

func DefaultOrgSettings() OrgSettings {
	return OrgSettings{
		Attendance: AttendanceSettings{WorkStartTime: "09:00", LateGraceMinutes: 15},
		Mobile:     MobileSettings{CheckInEnabled: true},
		Theme:      ThemeSettings{PrimaryColor: "#2563eb"},
	}
}

type OrgSetting struct {
	ID        uint                            `gorm:"primaryKey" json:"id"`
	Settings  datatypes.JSONType[OrgSettings] `json:"settings"`
	UpdatedBy *uint                           `json:"updated_by"`
	CreatedAt time.Time                       `json:"created_at"`
	UpdatedAt time.Time                       `json:"updated_at"`
}

func (OrgSetting) TableName() string { return "org_settings" }
