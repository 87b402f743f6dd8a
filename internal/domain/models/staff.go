package models

type StaffRole string

const (
	RoleDriver    StaffRole = "DRIVER"
	RoleConductor StaffRole = "CONDUCTOR"
)

type StaffStatus string

const (
	StaffAvailable StaffStatus = "AVAILABLE"
	StaffOnTrip    StaffStatus = "ON_TRIP"
	StaffOnLeave   StaffStatus = "ON_LEAVE"
)

type Staff struct {
	ID        int64
	CompanyID int64
	Name      string
	Role      StaffRole
	Status    StaffStatus
}
