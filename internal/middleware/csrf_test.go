package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func csrfTestRouter(userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/mutate", func(c *gin.Context) {
		if userID != "" {
			c.Set(CtxUserID, userID)
		}
	}, VerifyCSRF(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestCSRFToken_DeterministicPerUser(t *testing.T) {
	alice := uuid.NewString()
	bob := uuid.NewString()

	assert.Equal(t, CSRFToken(alice), CSRFToken(alice))
	assert.NotEqual(t, CSRFToken(alice), CSRFToken(bob))
	assert.Len(t, CSRFToken(alice), 64) // hex-encoded SHA-256
}

func TestVerifyCSRF_HeaderToken(t *testing.T) {
	userID := uuid.NewString()
	r := csrfTestRouter(userID)

	req := httptest.NewRequest(http.MethodPost, "/mutate", nil)
	req.Header.Set("X-CSRF-Token", CSRFToken(userID))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestVerifyCSRF_FormToken(t *testing.T) {
	userID := uuid.NewString()
	r := csrfTestRouter(userID)

	form := url.Values{"csrf_token": {CSRFToken(userID)}}
	req := httptest.NewRequest(http.MethodPost, "/mutate", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestVerifyCSRF_MissingToken(t *testing.T) {
	r := csrfTestRouter(uuid.NewString())

	req := httptest.NewRequest(http.MethodPost, "/mutate", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestVerifyCSRF_WrongToken(t *testing.T) {
	userID := uuid.NewString()
	r := csrfTestRouter(userID)

	// A valid token for a different user must not pass.
	req := httptest.NewRequest(http.MethodPost, "/mutate", nil)
	req.Header.Set("X-CSRF-Token", CSRFToken(uuid.NewString()))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/mutate", nil)
	req.Header.Set("X-CSRF-Token", "not-a-token")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestVerifyCSRF_RequiresAuthenticatedSubject(t *testing.T) {
	// No user id in the context means authentication never happened.
	r := csrfTestRouter("")

	req := httptest.NewRequest(http.MethodPost, "/mutate", nil)
	req.Header.Set("X-CSRF-Token", CSRFToken(uuid.NewString()))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
