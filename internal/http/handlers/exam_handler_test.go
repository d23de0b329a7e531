package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestExamHandler_GetTest_InvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ExamHandler{exams: nil}
	r.GET("/tests/:id", handler.GetTest)

	req, _ := http.NewRequest("GET", "/tests/not-a-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExamHandler_SubmitAttempt_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ExamHandler{exams: nil}
	r.POST("/tests/:id/attempts", handler.SubmitAttempt)

	req, _ := http.NewRequest("POST", "/tests/11111111-1111-1111-1111-111111111111/attempts", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExamHandler_Dashboard_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ExamHandler{exams: nil}
	r.GET("/dashboard", handler.Dashboard)

	req, _ := http.NewRequest("GET", "/dashboard", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExamHandler_ListMyAttempts_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ExamHandler{exams: nil}
	r.GET("/attempts/my", handler.ListMyAttempts)

	req, _ := http.NewRequest("GET", "/attempts/my", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
