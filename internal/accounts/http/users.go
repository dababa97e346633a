package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/wellmeet/internal/accounts/domain"
	"github.com/aussiebroadwan/wellmeet/internal/accounts/predicate"
	"github.com/aussiebroadwan/wellmeet/internal/accounts/service"
	"github.com/aussiebroadwan/wellmeet/pkg/accountsdk"
	"github.com/aussiebroadwan/wellmeet/pkg/httpx"
	"github.com/aussiebroadwan/wellmeet/pkg/slogx"
)

// DefaultPageSize applies when page_size is omitted.
const DefaultPageSize = 10

// UsersHandler serves the authenticated user endpoints. Authentication and
// the Admin-only routes are enforced by middleware in the router; the
// self-or-admin checks live here because they depend on the path id.
type UsersHandler struct {
	UserService *service.UserService
}

// HandleMe handles GET /v1/users/me
//
//	@Summary		Current user
//	@Description	Returns the account the bearer token was issued for.
//	@Tags			Users
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	accountsdk.UserResponse
//	@Failure		401	{object}	accountsdk.ErrorResponse	"Invalid or missing bearer token"
//	@Failure		404	{object}	accountsdk.ErrorResponse	"Account no longer exists"
//	@Router			/v1/users/me [get].
func (h *UsersHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		httpx.WriteUnauthorized(w)
		return
	}

	user, err := h.UserService.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// HandleCreate handles POST /v1/users
//
//	@Summary		Create a user
//	@Description	Creates an account with an explicit role. Requires Admin.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		accountsdk.CreateUserRequest	true	"New account"
//	@Success		201		{object}	accountsdk.UserResponse
//	@Failure		400		{object}	accountsdk.ErrorResponse	"Missing or malformed field"
//	@Failure		401		{object}	accountsdk.ErrorResponse	"Invalid or missing bearer token"
//	@Failure		403		{object}	accountsdk.ErrorResponse	"Caller is not an Admin"
//	@Failure		409		{object}	accountsdk.ErrorResponse	"Username or email already exists"
//	@Failure		500		{object}	accountsdk.ErrorResponse	"Internal server error"
//	@Router			/v1/users [post].
func (h *UsersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req accountsdk.CreateUserRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		slogx.FromContext(r.Context()).Warn("create user rejected", "reason", err.Error())
		writeInvalidArgument(w, msgBadBody)
		return
	}

	var role domain.Role
	if req.Role != "" {
		parsed, err := domain.ParseRole(req.Role)
		if err != nil {
			writeInvalidArgument(w, fmt.Sprintf("Role '%s' is not valid.", req.Role))
			return
		}
		role = parsed
	}

	user, err := h.UserService.Register(r.Context(), &domain.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      role,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

// HandleList handles GET /v1/users
//
//	@Summary		List users
//	@Description	Returns one page of users ordered by id. Filters combine with AND.
//	@Description	The filter parameter takes an AIP-160 expression over role, username, email, name and created_at.
//	@Tags			Users
//	@Produce		json
//	@Security		BearerAuth
//	@Param			page			query		int		false	"1-based page number"	default(1)
//	@Param			page_size		query		int		false	"Page size, at most 100"	default(10)
//	@Param			role			query		string	false	"Exact role"	Enums(Admin, User)
//	@Param			username		query		string	false	"Username contains (case-insensitive)"
//	@Param			email			query		string	false	"Email contains (case-insensitive)"
//	@Param			name			query		string	false	"First or last name contains (case-insensitive)"
//	@Param			created_from	query		string	false	"Created at or after (RFC 3339)"
//	@Param			created_to		query		string	false	"Created at or before (RFC 3339)"
//	@Param			filter			query		string	false	"AIP-160 filter, e.g. role = \"Admin\" AND username:\"ali\""
//	@Success		200				{object}	accountsdk.ListUsersResponse
//	@Failure		400				{object}	accountsdk.ErrorResponse	"Invalid paging or filter"
//	@Failure		401				{object}	accountsdk.ErrorResponse	"Invalid or missing bearer token"
//	@Failure		403				{object}	accountsdk.ErrorResponse	"Caller is not an Admin"
//	@Failure		500				{object}	accountsdk.ErrorResponse	"Internal server error"
//	@Router			/v1/users [get].
func (h *UsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	pageNumber, pageSize, filter, err := parseListQuery(r.URL.Query())
	if err != nil {
		slogx.FromContext(r.Context()).Warn("list users rejected", "reason", err.Error())
		writeInvalidArgument(w, err.Error())
		return
	}

	page, err := h.UserService.List(r.Context(), pageNumber, pageSize, filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := accountsdk.ListUsersResponse{
		Data:         make([]accountsdk.UserResponse, len(page.Data)),
		TotalRecords: page.TotalRecords,
		PageNumber:   page.PageNumber,
		PageSize:     page.PageSize,
		TotalPages:   page.TotalPages(),
	}
	for i, u := range page.Data {
		resp.Data[i] = toUserResponse(u)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleGet handles GET /v1/users/{id}
//
//	@Summary		Get a user
//	@Description	Admins may fetch any user; everyone else only themselves.
//	@Tags			Users
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		int	true	"User id"
//	@Success		200	{object}	accountsdk.UserResponse
//	@Failure		400	{object}	accountsdk.ErrorResponse	"Malformed id"
//	@Failure		401	{object}	accountsdk.ErrorResponse	"Invalid or missing bearer token"
//	@Failure		403	{object}	accountsdk.ErrorResponse	"Not your account"
//	@Failure		404	{object}	accountsdk.ErrorResponse	"No such user"
//	@Router			/v1/users/{id} [get].
func (h *UsersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorizeTarget(w, r)
	if !ok {
		return
	}

	user, err := h.UserService.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// HandleUpdate handles PATCH /v1/users/{id}
//
//	@Summary		Update a user
//	@Description	Applies the provided fields only. Admins may update anyone and change roles;
//	@Description	everyone else may update only themselves and not their role. Passwords cannot be changed here.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		int							true	"User id"
//	@Param			request	body		accountsdk.UpdateUserRequest	true	"Fields to change"
//	@Success		200		{object}	accountsdk.UserResponse
//	@Failure		400		{object}	accountsdk.ErrorResponse	"Malformed id or field"
//	@Failure		401		{object}	accountsdk.ErrorResponse	"Invalid or missing bearer token"
//	@Failure		403		{object}	accountsdk.ErrorResponse	"Not your account, or role change by a non-admin"
//	@Failure		404		{object}	accountsdk.ErrorResponse	"No such user"
//	@Failure		409		{object}	accountsdk.ErrorResponse	"Username or email already exists"
//	@Failure		500		{object}	accountsdk.ErrorResponse	"Internal server error"
//	@Router			/v1/users/{id} [patch].
func (h *UsersHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorizeTarget(w, r)
	if !ok {
		return
	}

	var req accountsdk.UpdateUserRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		slogx.FromContext(r.Context()).Warn("update user rejected", "reason", err.Error())
		writeInvalidArgument(w, msgBadBody)
		return
	}

	in := domain.UpdateInput{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	if req.Role != nil {
		if !isAdmin(r) {
			httpx.WriteForbidden(w)
			return
		}
		role, err := domain.ParseRole(*req.Role)
		if err != nil {
			writeInvalidArgument(w, fmt.Sprintf("Role '%s' is not valid.", *req.Role))
			return
		}
		in.Role = &role
	}

	user, err := h.UserService.Update(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// HandleDelete handles DELETE /v1/users/{id}
//
//	@Summary		Delete a user
//	@Description	Permanently removes the user. Requires Admin.
//	@Tags			Users
//	@Security		BearerAuth
//	@Param			id	path	int	true	"User id"
//	@Success		204	"Deleted"
//	@Failure		400	{object}	accountsdk.ErrorResponse	"Malformed id"
//	@Failure		401	{object}	accountsdk.ErrorResponse	"Invalid or missing bearer token"
//	@Failure		403	{object}	accountsdk.ErrorResponse	"Caller is not an Admin"
//	@Failure		404	{object}	accountsdk.ErrorResponse	"No such user"
//	@Failure		500	{object}	accountsdk.ErrorResponse	"Internal server error"
//	@Router			/v1/users/{id} [delete].
func (h *UsersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if _, err := h.UserService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// authorizeTarget parses the path id and lets the request through for
// Admins and for callers acting on their own account.
func (h *UsersHandler) authorizeTarget(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return 0, false
	}

	self, _ := httpx.UserIDFromContext(r.Context())
	if id != self && !isAdmin(r) {
		slogx.FromContext(r.Context()).Warn("access to another account denied", "target_id", id)
		httpx.WriteForbidden(w)
		return 0, false
	}
	return id, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		writeInvalidArgument(w, "User id must be a positive integer.")
		return 0, false
	}
	return id, true
}

func isAdmin(r *http.Request) bool {
	return httpx.RoleFromContext(r.Context()) == string(domain.RoleAdmin)
}

// parseListQuery reads paging and filters from the query string. Plain
// parameters and the AIP filter may be combined as long as they do not
// constrain the same field twice.
func parseListQuery(q url.Values) (int, int, domain.FilterSet, error) {
	var f domain.FilterSet

	pageNumber, err := intParam(q, "page", 1)
	if err != nil {
		return 0, 0, f, err
	}
	pageSize, err := intParam(q, "page_size", DefaultPageSize)
	if err != nil {
		return 0, 0, f, err
	}

	if v := strings.TrimSpace(q.Get("role")); v != "" {
		role, err := domain.ParseRole(v)
		if err != nil {
			return 0, 0, f, fmt.Errorf("Role '%s' is not valid.", v)
		}
		f.Role = &role
	}
	f.Username = q.Get("username")
	f.Email = q.Get("email")
	f.Name = q.Get("name")

	if f.CreatedFrom, err = timeParam(q, "created_from"); err != nil {
		return 0, 0, f, err
	}
	if f.CreatedTo, err = timeParam(q, "created_to"); err != nil {
		return 0, 0, f, err
	}

	if expr := q.Get("filter"); strings.TrimSpace(expr) != "" {
		parsed, err := predicate.ParseFilter(expr)
		if err != nil {
			return 0, 0, f, fmt.Errorf("Invalid filter: %v", err)
		}
		if f, err = mergeFilters(f, parsed); err != nil {
			return 0, 0, f, err
		}
	}

	return pageNumber, pageSize, f, nil
}

func intParam(q url.Values, key string, def int) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer.", key)
	}
	return v, nil
}

func timeParam(q url.Values, key string) (*time.Time, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be an RFC 3339 timestamp.", key)
	}
	return &t, nil
}

func mergeFilters(a, b domain.FilterSet) (domain.FilterSet, error) {
	dup := func(name string) (domain.FilterSet, error) {
		return a, fmt.Errorf("%s is constrained by both a parameter and the filter.", name)
	}

	if b.Role != nil {
		if a.Role != nil {
			return dup("role")
		}
		a.Role = b.Role
	}
	for _, field := range []struct {
		name     string
		dst, src *string
	}{
		{"username", &a.Username, &b.Username},
		{"email", &a.Email, &b.Email},
		{"name", &a.Name, &b.Name},
	} {
		if *field.src == "" {
			continue
		}
		if strings.TrimSpace(*field.dst) != "" {
			return dup(field.name)
		}
		*field.dst = *field.src
	}
	if b.CreatedFrom != nil {
		if a.CreatedFrom != nil {
			return dup("created_from")
		}
		a.CreatedFrom = b.CreatedFrom
	}
	if b.CreatedTo != nil {
		if a.CreatedTo != nil {
			return dup("created_to")
		}
		a.CreatedTo = b.CreatedTo
	}
	return a, nil
}
