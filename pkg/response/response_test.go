package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func run(method string, handler gin.HandlerFunc) (*httptest.ResponseRecorder, Response) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, "/", nil)
	handler(c)

	var body Response
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		err      error
		wantCode int
		wantErr  string
	}{
		{"get success", http.MethodGet, nil, http.StatusOK, ""},
		{"post success", http.MethodPost, nil, http.StatusCreated, ""},
		{"not found", http.MethodGet, gorm.ErrRecordNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"duplicate", http.MethodPost, gorm.ErrDuplicatedKey, http.StatusConflict, ErrCodeDuplicateResource},
		{"unexpected", http.MethodGet, errors.New("disk on fire"), http.StatusInternalServerError, ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := run(tt.method, func(c *gin.Context) { Handle(c, "ok", tt.err) })
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantErr == "" {
				assert.True(t, body.Success)
				assert.Equal(t, "ok", body.Data)
				return
			}
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.wantErr, body.Error.Code)
			assert.NotContains(t, body.Error.Message, "disk on fire")
		})
	}
}

func TestErrorHelpers(t *testing.T) {
	w, body := run(http.MethodGet, func(c *gin.Context) { ValidationFailed(c, "size must be positive") })
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrCodeValidationFailed, body.Error.Code)
	assert.Equal(t, "size must be positive", body.Error.Message)

	w, body = run(http.MethodGet, func(c *gin.Context) { TooManyRequests(c, "slow down") })
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, ErrCodeRateLimited, body.Error.Code)
}
