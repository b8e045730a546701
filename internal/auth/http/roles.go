package http

import (
	"net/http"

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/service"
	"github.com/aussiebroadwan/bartab-accounts/pkg/authsdk"
	"github.com/aussiebroadwan/bartab-accounts/pkg/httpx"
	"github.com/aussiebroadwan/bartab-accounts/pkg/idx"
)

type RolesHandler struct {
	RolesService *service.RolesService
}

var errRoleNotFound = authsdk.NewAPIError(http.StatusNotFound, authsdk.ErrorCodeNotFound, "Role not found")

// HandleList handles the list roles endpoint
//
//	@Summary		List all roles
//	@Description	Returns every role ordered by name.
//	@Tags			Roles
//	@Produce		json
//	@Success		200	{array}		authsdk.Role		"List of roles"
//	@Failure		401	{object}	authsdk.APIError	"Unauthorized - missing or invalid token"
//	@Failure		500	{object}	authsdk.APIError	"Internal server error"
//	@Security		BearerAuth
//	@Router			/v1/roles [get].
func (h *RolesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	roles, err := h.RolesService.ListAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	response := make([]authsdk.Role, len(roles))
	for i, role := range roles {
		response[i] = toSDKRole(role)
	}
	httpx.WriteJSON(w, http.StatusOK, response)
}

// HandleGet godoc
//
//	@Summary		Get a role
//	@Tags			Roles
//	@Produce		json
//	@Param			id	path		string				true	"Role ID"
//	@Success		200	{object}	authsdk.Role		"The role"
//	@Failure		401	{object}	authsdk.APIError	"Unauthorized - missing or invalid token"
//	@Failure		404	{object}	authsdk.APIError	"Role not found"
//	@Security		BearerAuth
//	@Router			/v1/roles/{id} [get].
func (h *RolesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !idx.Valid(id) {
		errRoleNotFound.WriteError(w)
		return
	}

	role, err := h.RolesService.GetRoleByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toSDKRole(role))
}

// HandleCreate godoc
//
//	@Summary		Create a role
//	@Description	Only the names Admin, Client and Livreur are accepted. Requires the Admin role.
//	@Tags			Roles
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.RoleRequest	true	"Role name"
//	@Success		201		{object}	authsdk.Role		"The created role"
//	@Failure		400		{object}	authsdk.APIError	"Invalid role name"
//	@Failure		401		{object}	authsdk.APIError	"Unauthorized - missing or invalid token"
//	@Failure		403		{object}	authsdk.APIError	"Forbidden - Admin role required"
//	@Failure		409		{object}	authsdk.APIError	"Role already exists"
//	@Security		BearerAuth
//	@Router			/v1/roles [post].
func (h *RolesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var body authsdk.RoleRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		authsdk.ErrInvalidBody.WriteError(w)
		return
	}

	role, err := h.RolesService.Create(r.Context(), body.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toSDKRole(role))
}

// HandleRename godoc
//
//	@Summary		Rename a role
//	@Description	Requires the Admin role.
//	@Tags			Roles
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Role ID"
//	@Param			body	body		authsdk.RoleRequest	true	"New name"
//	@Success		200		{object}	authsdk.Role		"The renamed role"
//	@Failure		400		{object}	authsdk.APIError	"Invalid role name"
//	@Failure		403		{object}	authsdk.APIError	"Forbidden - Admin role required"
//	@Failure		404		{object}	authsdk.APIError	"Role not found"
//	@Failure		409		{object}	authsdk.APIError	"Name already taken"
//	@Security		BearerAuth
//	@Router			/v1/roles/{id} [put].
func (h *RolesHandler) HandleRename(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !idx.Valid(id) {
		errRoleNotFound.WriteError(w)
		return
	}

	var body authsdk.RoleRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		authsdk.ErrInvalidBody.WriteError(w)
		return
	}

	role, err := h.RolesService.Rename(r.Context(), id, body.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toSDKRole(role))
}

// HandleDelete godoc
//
//	@Summary		Delete a role
//	@Description	Detaches the role from every user. Requires the Admin role.
//	@Tags			Roles
//	@Param			id	path	string	true	"Role ID"
//	@Success		204	"Deleted"
//	@Failure		403	{object}	authsdk.APIError	"Forbidden - Admin role required"
//	@Failure		404	{object}	authsdk.APIError	"Role not found"
//	@Security		BearerAuth
//	@Router			/v1/roles/{id} [delete].
func (h *RolesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !idx.Valid(id) {
		errRoleNotFound.WriteError(w)
		return
	}

	if err := h.RolesService.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
