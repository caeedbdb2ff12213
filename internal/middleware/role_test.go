package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func roleRouter(role string, withContext bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if withContext {
		r.Use(func(c *gin.Context) { c.Set(ContextUserRole, role) })
	}
	r.POST("/admin/challenges", RequireRole("admin"), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return r
}

func TestRequireRoleAllowsListedRole(t *testing.T) {
	w := httptest.NewRecorder()
	roleRouter("admin", true).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/challenges", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRequireRoleRejectsOtherRole(t *testing.T) {
	w := httptest.NewRecorder()
	roleRouter("candidate", true).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/challenges", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRoleRejectsMissingContext(t *testing.T) {
	w := httptest.NewRecorder()
	roleRouter("", false).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/challenges", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
