package accountsdk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Me returns the user the session belongs to.
func (s *Session) Me(ctx context.Context) (*UserResponse, error) {
	return s.getUser(ctx, "/v1/users/me")
}

// GetUser fetches a user by id. Non-admins may only fetch themselves.
func (s *Session) GetUser(ctx context.Context, id int64) (*UserResponse, error) {
	return s.getUser(ctx, userPath(id))
}

func (s *Session) getUser(ctx context.Context, path string) (*UserResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var user UserResponse
	if err := decodeJSON(resp, &user, http.StatusOK); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser creates a user with an explicit role. Requires Admin.
func (s *Session) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/users", req)
	if err != nil {
		return nil, err
	}

	var user UserResponse
	if err := decodeJSON(resp, &user, http.StatusCreated); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers returns one page of users. Requires Admin.
func (s *Session) ListUsers(ctx context.Context, params ListUsersParams) (*ListUsersResponse, error) {
	path := "/v1/users"
	if q := params.query().Encode(); q != "" {
		path += "?" + q
	}

	resp, err := s.doAuthRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var page ListUsersResponse
	if err := decodeJSON(resp, &page, http.StatusOK); err != nil {
		return nil, err
	}
	return &page, nil
}

// UpdateUser applies a partial update. Non-admins may only update themselves
// and may not change their role.
func (s *Session) UpdateUser(ctx context.Context, id int64, req UpdateUserRequest) (*UserResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPatch, userPath(id), req)
	if err != nil {
		return nil, err
	}

	var user UserResponse
	if err := decodeJSON(resp, &user, http.StatusOK); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes a user. Requires Admin.
func (s *Session) DeleteUser(ctx context.Context, id int64) error {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, userPath(id), nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

func userPath(id int64) string {
	return "/v1/users/" + strconv.FormatInt(id, 10)
}

func (p ListUsersParams) query() url.Values {
	q := url.Values{}
	setInt := func(key string, v int) {
		if v != 0 {
			q.Set(key, strconv.Itoa(v))
		}
	}
	setStr := func(key, v string) {
		if v != "" {
			q.Set(key, v)
		}
	}
	setTime := func(key string, v *time.Time) {
		if v != nil {
			q.Set(key, v.UTC().Format(time.RFC3339Nano))
		}
	}

	setInt("page", p.Page)
	setInt("page_size", p.PageSize)
	setStr("role", p.Role)
	setStr("username", p.Username)
	setStr("email", p.Email)
	setStr("name", p.Name)
	setTime("created_from", p.CreatedFrom)
	setTime("created_to", p.CreatedTo)
	setStr("filter", p.Filter)
	return q
}
