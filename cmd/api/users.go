package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"souq/internal/store"
)

// getCurrentUserHandler godoc
//
//	@Summary		Fetches the authenticated user's profile
//	@Tags			users
//	@Produce		json
//	@Success		200	{object}	store.User
//	@Failure		401	{object}	ErrorBadRequestResponse		"Unauthorized"
//	@Failure		500	{object}	ErrorInternalServerResponse	"Internal Server Error"
//	@Security		ApiKeyAuth
//	@Router			/users/me [get]
func (app *application) getCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	if err := app.jsonResponse(w, http.StatusOK, user); err != nil {
		app.internalServerError(w, r, err)
	}
}

type UpdateUserPayload struct {
	Username    *string `json:"username,omitempty" validate:"omitempty,max=100"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	Address     *string `json:"address,omitempty" validate:"omitempty,max=255"`
	Governorate *string `json:"governorate,omitempty" validate:"omitempty,max=100"`
}

// updateUserHandler godoc
//
//	@Summary		Updates the authenticated user's profile
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		UpdateUserPayload	true	"Fields to update"
//	@Success		200		{object}	store.User
//	@Failure		400		{object}	ErrorBadRequestResponse		"Bad request"
//	@Failure		500		{object}	ErrorInternalServerResponse	"Internal Server Error"
//	@Security		ApiKeyAuth
//	@Router			/users/ [put]
func (app *application) updateUserHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	var payload UpdateUserPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	patch := map[string]interface{}{}
	if payload.Username != nil {
		patch["username"] = *payload.Username
	}
	if payload.Phone != nil {
		patch["phone"] = *payload.Phone
	}
	if payload.Address != nil {
		patch["address"] = *payload.Address
	}
	if payload.Governorate != nil {
		patch["governorate"] = *payload.Governorate
	}
	if len(patch) == 0 {
		app.badRequestResponse(w, r, errors.New("no fields to update"))
		return
	}

	ctx := r.Context()

	if err := app.store.Users.UpdateProfile(ctx, user.ID, patch); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateUsername):
			app.conflictResponse(w, r, err)
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	updated, err := app.store.Users.GetByID(ctx, user.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, updated); err != nil {
		app.internalServerError(w, r, err)
	}
}

type RegisterPushTokenPayload struct {
	Token      string          `json:"token" validate:"required"`
	DeviceInfo json.RawMessage `json:"device_info,omitempty"`
}

// registerPushTokenHandler godoc
//
//	@Summary		Registers an Expo push token for the authenticated user
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		RegisterPushTokenPayload	true	"Push token"
//	@Success		204		{object}	nil
//	@Failure		400		{object}	ErrorBadRequestResponse		"Bad request"
//	@Failure		500		{object}	ErrorInternalServerResponse	"Internal Server Error"
//	@Security		ApiKeyAuth
//	@Router			/users/push-token [post]
func (app *application) registerPushTokenHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	var payload RegisterPushTokenPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := app.store.PushTokens.AddOrUpdate(r.Context(), user.ID, payload.Token, payload.DeviceInfo); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type RemovePushTokenPayload struct {
	Token string `json:"token" validate:"required"`
}

// removePushTokenHandler godoc
//
//	@Summary		Removes an Expo push token for the authenticated user
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		RemovePushTokenPayload		true	"Push token"
//	@Success		204		{object}	nil
//	@Failure		400		{object}	ErrorBadRequestResponse		"Bad request"
//	@Failure		500		{object}	ErrorInternalServerResponse	"Internal Server Error"
//	@Security		ApiKeyAuth
//	@Router			/users/push-token [delete]
func (app *application) removePushTokenHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	var payload RemovePushTokenPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := app.store.PushTokens.Remove(r.Context(), user.ID, payload.Token); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type UpdateUserRolePayload struct {
	Role    string `json:"role" validate:"required"`
	IsAdmin bool   `json:"is_admin"`
}

// updateUserRoleHandler godoc
//
//	@Summary		Sets a user's role and admin flag
//	@Description	Admin-only. The role gates which price fields the user can see.
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			userID	path		string						true	"User ID"
//	@Param			payload	body		UpdateUserRolePayload		true	"New role"
//	@Success		204		{object}	nil
//	@Failure		400		{object}	ErrorBadRequestResponse		"Bad request"
//	@Failure		404		{object}	ErrorBadRequestResponse		"Not found"
//	@Failure		500		{object}	ErrorInternalServerResponse	"Internal Server Error"
//	@Security		ApiKeyAuth
//	@Router			/admin/users/{userID}/role [put]
func (app *application) updateUserRoleHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var payload UpdateUserRolePayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if !store.IsValidRole(payload.Role) {
		app.badRequestResponse(w, r, errors.New("unknown role: "+payload.Role))
		return
	}

	if err := app.store.Users.SetRole(r.Context(), userID, payload.Role, payload.IsAdmin); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	app.logger.Infow("user role updated", "user", userID, "role", payload.Role, "admin", payload.IsAdmin)

	w.WriteHeader(http.StatusNoContent)
}
