package ginserver

import (
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"staypay/internal/app/policies"
	domainbooking "staypay/internal/domain/booking"
)

const principalContextKey = "staypay.principal"

// Headers set by the authenticating proxy in front of the service.
const (
	headerUserID        = "X-User-ID"
	headerUserEmail     = "X-User-Email"
	headerUserFirstName = "X-User-First-Name"
	headerUserLastName  = "X-User-Last-Name"
	headerUserRoles     = "X-User-Roles"
)

const roleHost = "host"

type principal struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Roles     []string
}

func (p principal) HasRole(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return false
	}
	for _, r := range p.Roles {
		if strings.ToLower(r) == role {
			return true
		}
	}
	return false
}

func (p principal) Payer() policies.PayerInfo {
	return policies.PayerInfo{ID: p.ID, Email: p.Email, FirstName: p.FirstName, LastName: p.LastName}
}

// Actor is the principal as seen by the booking state machine.
func (p principal) Actor() domainbooking.Actor {
	kind := domainbooking.ActorGuest
	if p.HasRole(roleHost) {
		kind = domainbooking.ActorHost
	}
	return domainbooking.Actor{ID: p.ID, Kind: kind}
}

// IdentityHeaders turns the proxy identity headers into a principal. Requests
// without X-User-ID stay anonymous.
func IdentityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerUserID))
		if id == "" {
			c.Next()
			return
		}
		setPrincipal(c, principal{
			ID:        id,
			Email:     strings.TrimSpace(c.GetHeader(headerUserEmail)),
			FirstName: strings.TrimSpace(c.GetHeader(headerUserFirstName)),
			LastName:  strings.TrimSpace(c.GetHeader(headerUserLastName)),
			Roles:     splitRoles(c.GetHeader(headerUserRoles)),
		})
		c.Next()
	}
}

func splitRoles(raw string) []string {
	var roles []string
	for _, r := range strings.Split(raw, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

func setPrincipal(c *gin.Context, p principal) {
	c.Set(principalContextKey, p)
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

func requireRole(c *gin.Context, role string) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return principal{}, false
	}
	if role != "" && !p.HasRole(role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
		return principal{}, false
	}
	return p, true
}
