package model

// Role is a named authorization grant. The role name doubles as the authority
// string checked by the access layer (e.g. "ROLE_ADMIN"). Membership is owned
// by User.Roles; role-centric queries go through the users_roles join table
// instead of a back-reference field.
type Role struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;size:50;not null"`
}
