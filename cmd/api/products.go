package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"souq/internal/catalog"
	"souq/internal/store"
)

// CatalogPage is the windowed product list the storefront renders, plus
// the paging and connectivity state that drives it.
type CatalogPage struct {
	Products []catalog.Product `json:"products"`
	Page     int               `json:"page"`
	Total    int               `json:"total"`
	HasMore  bool              `json:"has_more"`
	Offline  bool              `json:"offline"`
}

// viewerFromRequest resolves the requesting user when a bearer token is
// present. The catalog routes are public, so every failure mode here is
// simply an anonymous viewer.
func (app *application) viewerFromRequest(r *http.Request) *store.User {
	authHeader := r.Header.Get("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil
	}

	jwtToken, err := app.authenticator.ValidateAccessToken(parts[1])
	if err != nil {
		return nil
	}

	claims, _ := jwtToken.Claims.(jwt.MapClaims)
	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return nil
	}

	user, err := app.store.Procedures.CurrentProfile(r.Context(), userID)
	if err != nil {
		return nil
	}
	return user
}

// redactProducts strips the wholesale price for viewers whose role does
// not grant it. The snapshot slices are shared, so redaction always works
// on a copy.
func redactProducts(products []catalog.Product, viewer *store.User) []catalog.Product {
	if viewer != nil && viewer.CanSeeWholesalePrice() {
		return products
	}

	out := make([]catalog.Product, len(products))
	for i, p := range products {
		p.WholesalePrice = nil
		out[i] = p
	}
	return out
}

func (app *application) catalogPage(r *http.Request) CatalogPage {
	snap := app.catalog.Snapshot()
	return CatalogPage{
		Products: redactProducts(snap.Visible, app.viewerFromRequest(r)),
		Page:     snap.Page,
		Total:    len(snap.Filtered),
		HasMore:  snap.HasMore,
		Offline:  app.catalog.Offline(),
	}
}

// getCatalogProductsHandler godoc
//
//	@Summary		Fetches the current product window
//	@Description	Returns the visible page window of the live catalog view. With category, new or limit params set, performs a one-shot filtered load instead.
//	@Tags			catalog
//	@Produce		json
//	@Param			category	query		string	false	"Category ID filter"
//	@Param			new			query		bool	false	"Only products inside the new-product window"
//	@Param			limit		query		int		false	"Row cap"
//	@Success		200	{object}	CatalogPage
//	@Failure		500	{object}	ErrorInternalServerResponse	"Internal Server Error"
//	@Router			/catalog/products [get]
func (app *application) getCatalogProductsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := catalog.LoadOptions{
		CategoryID: q.Get("category"),
		NewOnly:    q.Get("new") == "true",
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		opts.Limit = limit
	}

	// No filters: serve the shared live window.
	if opts == (catalog.LoadOptions{}) {
		if err := app.jsonResponse(w, http.StatusOK, app.catalogPage(r)); err != nil {
			app.internalServerError(w, r, err)
		}
		return
	}

	list, err := app.loader.Load(r.Context(), opts)
	switch {
	case errors.Is(err, catalog.ErrOffline):
		list = nil
	case err != nil:
		app.internalServerError(w, r, err)
		return
	}

	page := CatalogPage{
		Products: redactProducts(list, app.viewerFromRequest(r)),
		Page:     1,
		Total:    len(list),
		HasMore:  false,
		Offline:  app.catalog.Offline(),
	}
	if err := app.jsonResponse(w, http.StatusOK, page); err != nil {
		app.internalServerError(w, r, err)
	}
}

// loadMoreProductsHandler godoc
//
//	@Summary		Reveals the next product page
//	@Description	Extends the visible window by one page and returns it
//	@Tags			catalog
//	@Produce		json
//	@Success		200	{object}	CatalogPage
//	@Failure		500	{object}	ErrorInternalServerResponse	"Internal Server Error"
//	@Router			/catalog/products/more [post]
func (app *application) loadMoreProductsHandler(w http.ResponseWriter, r *http.Request) {
	app.catalog.LoadMore()

	if err := app.jsonResponse(w, http.StatusOK, app.catalogPage(r)); err != nil {
		app.internalServerError(w, r, err)
	}
}

// searchProductsHandler godoc
//
//	@Summary		Searches products by name
//	@Description	Applies a free-text name filter and returns the first page of matches
//	@Tags			catalog
//	@Produce		json
//	@Param			q	query		string	false	"Search query"
//	@Success		200	{object}	CatalogPage
//	@Failure		500	{object}	ErrorInternalServerResponse	"Internal Server Error"
//	@Router			/catalog/products/search [get]
func (app *application) searchProductsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	// An HTTP request is a settled keystroke burst, so the debounced
	// query is flushed immediately instead of waiting out the delay.
	app.catalog.Search(query)
	app.catalog.FlushSearch()

	if err := app.jsonResponse(w, http.StatusOK, app.catalogPage(r)); err != nil {
		app.internalServerError(w, r, err)
	}
}

type CreateProductPayload struct {
	Name           string   `json:"name" validate:"required,max=255"`
	ProductCode    string   `json:"product_code" validate:"required,max=100"`
	BoxQuantity    int      `json:"box_quantity" validate:"required,gt=0"`
	PiecePrice     float64  `json:"piece_price" validate:"required,gt=0"`
	WholesalePrice *float64 `json:"wholesale_price,omitempty" validate:"omitempty,gt=0"`
	IsNew          bool     `json:"is_new"`
	CategoryID     *string  `json:"category_id,omitempty" validate:"omitempty,uuid"`
}

// createProductHandler godoc
//
//	@Summary		Creates a product
//	@Description	Admin-only. The insert fans out to every catalog view through the change feed.
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CreateProductPayload		true	"Product fields"
//	@Success		201		{object}	catalog.Product
//	@Failure		400		{object}	ErrorBadRequestResponse		"Bad request"
//	@Failure		500		{object}	ErrorInternalServerResponse	"Internal Server Error"
//	@Security		ApiKeyAuth
//	@Router			/admin/products [post]
func (app *application) createProductHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateProductPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	product := catalog.Product{
		Name:           payload.Name,
		ProductCode:    payload.ProductCode,
		BoxQuantity:    payload.BoxQuantity,
		PiecePrice:     payload.PiecePrice,
		WholesalePrice: payload.WholesalePrice,
		IsNew:          payload.IsNew,
		CategoryID:     payload.CategoryID,
	}

	if err := app.store.Products.Create(r.Context(), &product); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, product.WithDerivedPrices()); err != nil {
		app.internalServerError(w, r, err)
	}
}

type UpdateProductPayload struct {
	Name           *string  `json:"name,omitempty" validate:"omitempty,max=255"`
	ProductCode    *string  `json:"product_code,omitempty" validate:"omitempty,max=100"`
	BoxQuantity    *int     `json:"box_quantity,omitempty" validate:"omitempty,gt=0"`
	PiecePrice     *float64 `json:"piece_price,omitempty" validate:"omitempty,gt=0"`
	WholesalePrice *float64 `json:"wholesale_price,omitempty" validate:"omitempty,gt=0"`
	IsNew          *bool    `json:"is_new,omitempty"`
	CategoryID     *string  `json:"category_id,omitempty" validate:"omitempty,uuid"`
}

// updateProductHandler godoc
//
//	@Summary		Updates a product
//	@Description	Admin-only. Patched fields fan out to catalog views as an in-place row update.
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			productID	path		string						true	"Product ID"
//	@Param			payload		body		UpdateProductPayload		true	"Fields to update"
//	@Success		200			{object}	catalog.Product
//	@Failure		400			{object}	ErrorBadRequestResponse		"Bad request"
//	@Failure		404			{object}	ErrorBadRequestResponse		"Not found"
//	@Failure		500			{object}	ErrorInternalServerResponse	"Internal Server Error"
//	@Security		ApiKeyAuth
//	@Router			/admin/products/{productID} [patch]
func (app *application) updateProductHandler(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	var payload UpdateProductPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	patch := map[string]interface{}{}
	if payload.Name != nil {
		patch["name"] = *payload.Name
	}
	if payload.ProductCode != nil {
		patch["product_code"] = *payload.ProductCode
	}
	if payload.BoxQuantity != nil {
		patch["box_quantity"] = *payload.BoxQuantity
	}
	if payload.PiecePrice != nil {
		patch["piece_price"] = *payload.PiecePrice
	}
	if payload.WholesalePrice != nil {
		patch["wholesale_price"] = *payload.WholesalePrice
	}
	if payload.IsNew != nil {
		patch["is_new"] = *payload.IsNew
	}
	if payload.CategoryID != nil {
		patch["category_id"] = *payload.CategoryID
	}
	if len(patch) == 0 {
		app.badRequestResponse(w, r, errors.New("no fields to update"))
		return
	}

	ctx := r.Context()

	if err := app.store.Products.Update(ctx, productID, patch); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	product, err := app.store.Products.GetByID(ctx, productID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, product.WithDerivedPrices()); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deleteProductHandler godoc
//
//	@Summary		Deletes a product
//	@Description	Admin-only. Removes the row and its stored image; views drop it via the change feed.
//	@Tags			admin
//	@Produce		json
//	@Param			productID	path		string						true	"Product ID"
//	@Success		204			{object}	nil
//	@Failure		404			{object}	ErrorBadRequestResponse		"Not found"
//	@Failure		500			{object}	ErrorInternalServerResponse	"Internal Server Error"
//	@Security		ApiKeyAuth
//	@Router			/admin/products/{productID} [delete]
func (app *application) deleteProductHandler(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	ctx := r.Context()

	product, err := app.store.Products.GetByID(ctx, productID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.store.Products.Delete(ctx, productID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	// Best effort: a dangling Cloudinary asset is preferable to failing
	// the delete after the row is gone.
	if product.ImageURL != nil && *product.ImageURL != "" {
		if err := app.deletePhotoFromCloudinary(*product.ImageURL); err != nil {
			app.logger.Errorw("failed to delete product image", "product", productID, "error", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// uploadProductImageHandler godoc
//
//	@Summary		Uploads a product image
//	@Description	Admin-only. Accepts a multipart "image" file up to 10MB (jpeg, png, webp or gif).
//	@Tags			admin
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			productID	path		string						true	"Product ID"
//	@Param			image		formData	file						true	"Image file"
//	@Success		200			{object}	map[string]string			"Image URL"
//	@Failure		400			{object}	ErrorBadRequestResponse		"Bad request"
//	@Failure		404			{object}	ErrorBadRequestResponse		"Not found"
//	@Failure		500			{object}	ErrorInternalServerResponse	"Internal Server Error"
//	@Security		ApiKeyAuth
//	@Router			/admin/products/{productID}/image [post]
func (app *application) uploadProductImageHandler(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	file, _, err := app.parseImageForm(w, r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	defer file.Close()

	imageURL, err := app.uploadToCloudinary(file, "products", fmt.Sprintf("product_%s", productID))
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	// The version parameter defeats stale URL caches after an overwrite.
	imageURL = versionedURL(imageURL)

	if err := app.store.Products.Update(r.Context(), productID, map[string]interface{}{
		"image_url": imageURL,
	}); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"image_url": imageURL}); err != nil {
		app.internalServerError(w, r, err)
	}
}

type SetProductCategoriesPayload struct {
	CategoryIDs []string `json:"category_ids" validate:"required,dive,uuid"`
}

// setProductCategoriesHandler godoc
//
//	@Summary		Replaces a product's category associations
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			productID	path		string							true	"Product ID"
//	@Param			payload		body		SetProductCategoriesPayload		true	"Category IDs"
//	@Success		204			{object}	nil
//	@Failure		400			{object}	ErrorBadRequestResponse			"Bad request"
//	@Failure		500			{object}	ErrorInternalServerResponse		"Internal Server Error"
//	@Security		ApiKeyAuth
//	@Router			/admin/products/{productID}/categories [put]
func (app *application) setProductCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	var payload SetProductCategoriesPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := app.store.Products.SetCategories(r.Context(), productID, payload.CategoryIDs); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
