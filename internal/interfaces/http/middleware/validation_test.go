package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercesync/backend/internal/interfaces/http/dto"
)

func TestSetupValidator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	SetupValidator()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)

	type probe struct {
		Kind      string `json:"kind" binding:"entitykind"`
		System    string `json:"system" binding:"syncsystem"`
		Direction string `json:"direction" binding:"syncdirection"`
	}

	t.Run("accepts known domain values", func(t *testing.T) {
		err := v.Struct(probe{Kind: "product", System: "shopify", Direction: "pull"})
		assert.NoError(t, err)
	})

	t.Run("rejects unknown domain values", func(t *testing.T) {
		err := v.Struct(probe{Kind: "warehouse", System: "ebay", Direction: "sideways"})
		require.Error(t, err)
		validationErrors, ok := err.(validator.ValidationErrors)
		require.True(t, ok)
		assert.Len(t, validationErrors, 3)
	})

	t.Run("uses json names in field errors", func(t *testing.T) {
		err := v.Struct(probe{Kind: "bogus", System: "SHOPIFY", Direction: "push"})
		require.Error(t, err)
		validationErrors := err.(validator.ValidationErrors)
		assert.Equal(t, "kind", validationErrors[0].Field())
	})
}

func TestHandleValidationError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	SetupValidator()

	type createReq struct {
		Kind string `json:"kind" binding:"required,entitykind"`
	}

	r := gin.New()
	r.POST("/things", func(c *gin.Context) {
		var req createReq
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusCreated)
	})

	t.Run("lists failed fields", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/things", strings.NewReader(`{"kind":"starship"}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeBadRequest, resp.Error.Code)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "kind", resp.Error.Details[0].Field)
		assert.Equal(t, "Unknown entity kind", resp.Error.Details[0].Message)
	})

	t.Run("valid body passes binding", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/things", strings.NewReader(`{"kind":"inventory"}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
	})
}

func TestFormatValidationErrors(t *testing.T) {
	t.Run("non-validator errors produce no details", func(t *testing.T) {
		resp := FormatValidationErrors(errors.New("unexpected EOF"), "req-1")
		require.NotNil(t, resp.Error)
		assert.Empty(t, resp.Error.Details)
		assert.Equal(t, "req-1", resp.Error.RequestID)
	})
}
