package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestGin(s *Server) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/ws", s.ServeWs)
	return engine
}

func TestServeWs_MissingIdentity(t *testing.T) {
	engine := newTestGin(NewServer(&recordingRouter{}, nil, []string{"*"}))

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"no user_id", "?username=alice", "Missing user_id"},
		{"no username", "?user_id=u1", "Missing username"},
		{"neither", "", "Missing user_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/ws"+tt.query, nil)
			engine.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}

func TestServeWs_DirtyUsernameRejected(t *testing.T) {
	engine := newTestGin(NewServer(&recordingRouter{}, nil, []string{"*"}))

	tests := []struct {
		name  string
		query string
	}{
		{"forbidden word", "?user_id=u1&username=geEk"},
		{"markup characters", "?user_id=u1&username=a%22b"},
		{"angle brackets", "?user_id=u1&username=%3Cscript%3E"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/ws"+tt.query, nil)
			engine.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "name")
		})
	}
}

func TestServeWs_OriginRejected(t *testing.T) {
	engine := newTestGin(NewServer(&recordingRouter{}, nil, []string{"http://localhost:3000"}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws?user_id=u1&username=alice", nil)
	req.Header.Set("Origin", "http://evil.example")
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestValidateOrigin(t *testing.T) {
	allowed := []string{"http://localhost:3000"}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.NoError(t, validateOrigin(req, allowed), "no Origin header passes")

	req.Header.Set("Origin", "http://localhost:3000")
	assert.NoError(t, validateOrigin(req, allowed))

	req.Header.Set("Origin", "http://other.example")
	assert.Error(t, validateOrigin(req, allowed))

	assert.NoError(t, validateOrigin(req, []string{"*"}), "wildcard allows everything")
}
