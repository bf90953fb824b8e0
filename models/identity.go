package models

// Identity is the authenticated caller as seen by the services.
type Identity struct {
	UserID string
	Role   string
}

func (i Identity) IsStudent() bool    { return i.Role == RoleStudent }
func (i Identity) IsInstructor() bool { return i.Role == RoleInstructor }
func (i Identity) IsManager() bool    { return i.Role == RoleManager }
