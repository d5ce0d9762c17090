package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/avendal/tenant-identity/internal/authz"
	"github.com/avendal/tenant-identity/internal/model"
	"github.com/avendal/tenant-identity/internal/repository"
)

// AssetHandler exposes company-owned assets. Assets are addressed only by
// their opaque token, and an asset belonging to another company answers
// exactly like a missing one, so existence is never confirmed to
// non-owners.
type AssetHandler struct {
	Assets *repository.AssetRepo
}

func NewAssetHandler(assets *repository.AssetRepo) *AssetHandler {
	return &AssetHandler{Assets: assets}
}

type assetPart struct {
	Token     string    `json:"token"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type createAssetReq struct {
	Name string `json:"name"`
}

func (r createAssetReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 128)),
	)
}

func toAssetPart(a *model.Asset) assetPart {
	return assetPart{Token: a.Token, Name: a.Name, CreatedAt: a.CreatedAt}
}

// Create registers a new asset under the caller's company with a freshly
// generated token.
func (h *AssetHandler) Create(c echo.Context) error {
	var req createAssetReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := req.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	asset := &model.Asset{
		Token:     uuid.NewString(),
		Name:      req.Name,
		CompanyID: companyID(c),
	}
	if err := h.Assets.Create(ctx, asset); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create asset failed"})
	}
	return c.JSON(http.StatusCreated, toAssetPart(asset))
}

// List returns the caller's company assets.
func (h *AssetHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	assets, err := h.Assets.ListByCompany(ctx, companyID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list assets failed"})
	}
	out := make([]assetPart, 0, len(assets))
	for _, a := range assets {
		out = append(out, toAssetPart(a))
	}
	return c.JSON(http.StatusOK, out)
}

// Get resolves an asset by token. Missing tokens and tokens owned by other
// companies both answer 404.
func (h *AssetHandler) Get(c echo.Context) error {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	asset, err := h.Assets.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load asset failed"})
	}
	if !authz.OwnsAsset(viewer(c), asset) {
		// Deliberately indistinguishable from a missing asset.
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	return c.JSON(http.StatusOK, toAssetPart(asset))
}
