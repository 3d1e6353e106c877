package main

import (
	"errors"
	"fmt"
	"math/rand"
	"net/http"

	"github.com/go-chi/chi/v5"

	"souq/internal/catalog"
	"souq/internal/store"
)

// randomCategoryColor picks a saturated, mid-lightness HSL color so every
// category chip stays readable against white text.
func randomCategoryColor() string {
	hue := rand.Intn(360)
	saturation := 60 + rand.Intn(20)
	lightness := 50 + rand.Intn(20)
	return fmt.Sprintf("hsl(%d, %d%%, %d%%)", hue, saturation, lightness)
}

// getCategoriesHandler godoc
//
//	@Summary		Lists categories
//	@Description	Returns every category, newest first. Offline deployments get an empty list flagged offline.
//	@Tags			catalog
//	@Produce		json
//	@Success		200	{object}	map[string]interface{}
//	@Failure		500	{object}	ErrorInternalServerResponse	"Internal Server Error"
//	@Router			/catalog/categories [get]
func (app *application) getCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	if !app.monitor.Online() {
		resp := map[string]interface{}{
			"categories": []catalog.Category{},
			"offline":    true,
		}
		if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
			app.internalServerError(w, r, err)
		}
		return
	}

	categories, err := app.store.Categories.List(r.Context())
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if categories == nil {
		categories = []catalog.Category{}
	}

	resp := map[string]interface{}{
		"categories": categories,
		"offline":    false,
	}
	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

type CreateCategoryPayload struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
	Color       *string `json:"color,omitempty" validate:"omitempty,max=50"`
}

// createCategoryHandler godoc
//
//	@Summary		Creates a category
//	@Description	Admin-only. The slug is derived from the name with a random suffix; a collision is retried once.
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CreateCategoryPayload		true	"Category fields"
//	@Success		201		{object}	catalog.Category
//	@Failure		400		{object}	ErrorBadRequestResponse		"Bad request"
//	@Failure		409		{object}	ErrorBadRequestResponse		"Slug conflict"
//	@Failure		500		{object}	ErrorInternalServerResponse	"Internal Server Error"
//	@Security		ApiKeyAuth
//	@Router			/admin/categories [post]
func (app *application) createCategoryHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateCategoryPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	color := payload.Color
	if color == nil {
		c := randomCategoryColor()
		color = &c
	}

	category := catalog.Category{
		Name:        payload.Name,
		Slug:        app.slugs.Generate(payload.Name),
		Description: payload.Description,
		Color:       color,
	}

	ctx := r.Context()

	err := app.store.Categories.Create(ctx, &category)
	if errors.Is(err, store.ErrDuplicateSlug) {
		// One retry with a timestamped slug; a second collision is
		// terminal.
		category.Slug = app.slugs.Disambiguate(category.Slug)
		err = app.store.Categories.Create(ctx, &category)
	}
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateSlug):
			app.conflictResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, category); err != nil {
		app.internalServerError(w, r, err)
	}
}

type UpdateCategoryPayload struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=255"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
	Color       *string `json:"color,omitempty" validate:"omitempty,max=50"`
}

// updateCategoryHandler godoc
//
//	@Summary		Updates a category
//	@Description	Admin-only. Renaming a category regenerates its slug.
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			categoryID	path		string						true	"Category ID"
//	@Param			payload		body		UpdateCategoryPayload		true	"Fields to update"
//	@Success		200			{object}	catalog.Category
//	@Failure		400			{object}	ErrorBadRequestResponse		"Bad request"
//	@Failure		404			{object}	ErrorBadRequestResponse		"Not found"
//	@Failure		409			{object}	ErrorBadRequestResponse		"Slug conflict"
//	@Failure		500			{object}	ErrorInternalServerResponse	"Internal Server Error"
//	@Security		ApiKeyAuth
//	@Router			/admin/categories/{categoryID} [patch]
func (app *application) updateCategoryHandler(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "categoryID")

	var payload UpdateCategoryPayload
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
		patch["slug"] = app.slugs.Generate(*payload.Name)
	}
	if payload.Description != nil {
		patch["description"] = *payload.Description
	}
	if payload.Color != nil {
		patch["color"] = *payload.Color
	}
	if len(patch) == 0 {
		app.badRequestResponse(w, r, errors.New("no fields to update"))
		return
	}

	ctx := r.Context()

	err := app.store.Categories.Update(ctx, categoryID, patch)
	if errors.Is(err, store.ErrDuplicateSlug) && payload.Name != nil {
		patch["slug"] = app.slugs.Disambiguate(patch["slug"].(string))
		err = app.store.Categories.Update(ctx, categoryID, patch)
	}
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		case errors.Is(err, store.ErrDuplicateSlug):
			app.conflictResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	category, err := app.store.Categories.GetByID(ctx, categoryID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, category); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deleteCategoryHandler godoc
//
//	@Summary		Deletes a category
//	@Description	Admin-only. Products keep existing; their category link is cleared by the schema.
//	@Tags			admin
//	@Produce		json
//	@Param			categoryID	path		string						true	"Category ID"
//	@Success		204			{object}	nil
//	@Failure		404			{object}	ErrorBadRequestResponse		"Not found"
//	@Failure		500			{object}	ErrorInternalServerResponse	"Internal Server Error"
//	@Security		ApiKeyAuth
//	@Router			/admin/categories/{categoryID} [delete]
func (app *application) deleteCategoryHandler(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "categoryID")

	imageURL, err := app.store.Categories.Delete(r.Context(), categoryID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if imageURL != "" {
		if err := app.deletePhotoFromCloudinary(imageURL); err != nil {
			app.logger.Errorw("failed to delete category image", "category", categoryID, "error", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// uploadCategoryImageHandler godoc
//
//	@Summary		Uploads a category image
//	@Description	Admin-only. Accepts a multipart "image" file up to 10MB (jpeg, png, webp or gif).
//	@Tags			admin
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			categoryID	path		string						true	"Category ID"
//	@Param			image		formData	file						true	"Image file"
//	@Success		200			{object}	map[string]string			"Image URL"
//	@Failure		400			{object}	ErrorBadRequestResponse		"Bad request"
//	@Failure		404			{object}	ErrorBadRequestResponse		"Not found"
//	@Failure		500			{object}	ErrorInternalServerResponse	"Internal Server Error"
//	@Security		ApiKeyAuth
//	@Router			/admin/categories/{categoryID}/image [post]
func (app *application) uploadCategoryImageHandler(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "categoryID")

	file, _, err := app.parseImageForm(w, r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	defer file.Close()

	imageURL, err := app.uploadToCloudinary(file, "categories", fmt.Sprintf("category_%s", categoryID))
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	imageURL = versionedURL(imageURL)

	if err := app.store.Categories.Update(r.Context(), categoryID, map[string]interface{}{
		"image": imageURL,
	}); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"image": imageURL}); err != nil {
		app.internalServerError(w, r, err)
	}
}
