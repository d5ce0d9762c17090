package handler_test

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avendal/tenant-identity/internal/handler"
	"github.com/avendal/tenant-identity/internal/middleware"
	"github.com/avendal/tenant-identity/internal/repository"
)

func newAssetHandler(t *testing.T) (*handler.AssetHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return handler.NewAssetHandler(repository.NewAssetRepo(db)), mock
}

// assetGetCtx builds a session context for GET /v1/assets/:token as the JWT
// middleware would leave it.
func assetGetCtx(token string, companyID uint64) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/assets/"+token, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("token")
	c.SetParamValues(token)
	c.Set(middleware.CtxAccountID, uint64(5))
	c.Set(middleware.CtxCompanyID, companyID)
	return c, rec
}

const assetSelect = "SELECT id, token, name, company_id, created_at FROM assets WHERE token=? LIMIT 1"

func TestAssetGet(t *testing.T) {
	h, mock := newAssetHandler(t)

	mock.ExpectQuery(assetSelect).
		WithArgs("tok-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "token", "name", "company_id", "created_at"}).
			AddRow(1, "tok-1", "forklift", 1, time.Now()))

	c, rec := assetGetCtx("tok-1", 1)
	require.NoError(t, h.Get(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "forklift")
}

func TestAssetGetCrossCompanyReadsAsMissing(t *testing.T) {
	h, mock := newAssetHandler(t)

	// The asset exists but belongs to company 2; company 1 must get the
	// exact answer a nonexistent token gets.
	mock.ExpectQuery(assetSelect).
		WithArgs("tok-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "token", "name", "company_id", "created_at"}).
			AddRow(1, "tok-1", "forklift", 2, time.Now()))
	mock.ExpectQuery(assetSelect).
		WithArgs("no-such").
		WillReturnError(sql.ErrNoRows)

	c, rec := assetGetCtx("tok-1", 1)
	require.NoError(t, h.Get(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c2, rec2 := assetGetCtx("no-such", 1)
	require.NoError(t, h.Get(c2))
	assert.Equal(t, http.StatusNotFound, rec2.Code)
	assert.Equal(t, rec.Body.String(), rec2.Body.String())
}
