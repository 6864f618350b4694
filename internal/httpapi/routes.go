package httpapi

import (
	"telehealth-calls/internal/rbac"

	"github.com/gin-gonic/gin"
)

// RegisterCallRoutes mounts the call lifecycle routes on an authenticated group.
// limit guards the mutating routes; pass nil to disable it.
func RegisterCallRoutes(r gin.IRouter, h Handlers, limit gin.HandlerFunc) {
	mutating := func(roles ...string) []gin.HandlerFunc {
		chain := []gin.HandlerFunc{rbac.RequireAnyRole(roles...)}
		if limit != nil {
			chain = append(chain, limit)
		}
		return chain
	}

	appts := r.Group("/appointments/:id")
	{
		appts.POST("/create-room", append(mutating(rbac.RoleDoctor), h.CreateRoom)...)
		appts.GET("/call-status", rbac.RequireAnyRole(rbac.RoleDoctor, rbac.RolePatient, rbac.RoleAdmin), h.CallStatus)
		appts.GET("/calls", rbac.RequireAnyRole(rbac.RoleDoctor, rbac.RolePatient, rbac.RoleAdmin), h.CallHistory)
		appts.GET("/call-events", rbac.RequireAnyRole(rbac.RoleDoctor, rbac.RolePatient), h.CallEvents)
	}

	callsGroup := r.Group("/calls/:callId")
	{
		callsGroup.POST("/join", append(mutating(rbac.RolePatient), h.JoinCall)...)
		callsGroup.POST("/end", append(mutating(rbac.RoleDoctor, rbac.RolePatient), h.EndCall)...)
	}
}
