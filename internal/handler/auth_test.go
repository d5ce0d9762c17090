package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avendal/tenant-identity/internal/config"
	"github.com/avendal/tenant-identity/internal/handler"
)

func postJSON(h echo.HandlerFunc, path, body string) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return rec, h(e.NewContext(req, rec))
}

func TestRegisterPasswordMismatch(t *testing.T) {
	// No repositories wired: a mismatch must be rejected before anything
	// touches the database, so no account or company can be created.
	h := handler.NewAuthHandler(config.Config{}, nil, nil, nil, nil, nil)

	rec, err := postJSON(h.Register, "/v1/auth/register", `{
		"company_name": "Acme",
		"username": "jim",
		"email": "jim@test.com",
		"password": "cat123",
		"password_confirm": "dog123"
	}`)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "passwords must match")
}

func TestRegisterValidatesInput(t *testing.T) {
	h := handler.NewAuthHandler(config.Config{}, nil, nil, nil, nil, nil)

	cases := map[string]string{
		"missing email": `{"company_name":"Acme","username":"jim","password":"cat123","password_confirm":"cat123"}`,
		"bad email":     `{"company_name":"Acme","username":"jim","email":"not-an-email","password":"cat123","password_confirm":"cat123"}`,
		"short pass":    `{"company_name":"Acme","username":"jim","email":"jim@test.com","password":"cat","password_confirm":"cat"}`,
		"no company":    `{"username":"jim","email":"jim@test.com","password":"cat123","password_confirm":"cat123"}`,
	}
	for name, body := range cases {
		rec, err := postJSON(h.Register, "/v1/auth/register", body)
		require.NoError(t, err, name)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}
