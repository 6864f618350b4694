package rbac

// Role names. Keep these stable; they match the role claim issued by the booking subsystem.
const (
	RoleDoctor  = "doctor"
	RolePatient = "patient"
	RoleAdmin   = "admin"
)

// IsParticipantRole reports whether role can be a party to an appointment.
func IsParticipantRole(role string) bool { return role == RoleDoctor || role == RolePatient }
