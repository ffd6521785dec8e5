package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uranghalus/dutaassets-sub001/internal/shared"
)

type stubPermissionSource struct {
	perms map[int64][]string
	err   error
}

func (s *stubPermissionSource) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.perms[userID], nil
}

func requestWithUser(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	sess := &shared.Session{}
	sess.SetUser(userID)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAnyAllowsMatchingPermission(t *testing.T) {
	source := &stubPermissionSource{perms: map[int64][]string{7: {"stock.view"}}}
	mw := Middleware{Source: source}

	rec := httptest.NewRecorder()
	mw.RequireAny("stock.view", "stock.edit")(okHandler()).ServeHTTP(rec, requestWithUser("7"))

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAnyRejectsMissingPermission(t *testing.T) {
	source := &stubPermissionSource{perms: map[int64][]string{7: {"asset.view"}}}
	mw := Middleware{Source: source}

	rec := httptest.NewRecorder()
	mw.RequireAny("stock.edit")(okHandler()).ServeHTTP(rec, requestWithUser("7"))

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAllNeedsEveryPermission(t *testing.T) {
	source := &stubPermissionSource{perms: map[int64][]string{7: {"stock.view", "stock.edit"}}}
	mw := Middleware{Source: source}

	rec := httptest.NewRecorder()
	mw.RequireAll("stock.view", "stock.edit")(okHandler()).ServeHTTP(rec, requestWithUser("7"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mw.RequireAll("stock.view", "requisition.approve")(okHandler()).ServeHTTP(rec, requestWithUser("7"))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAnyRejectsAnonymous(t *testing.T) {
	source := &stubPermissionSource{}
	mw := Middleware{Source: source}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	mw.RequireAny("stock.view")(okHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAnyReportsLookupFailure(t *testing.T) {
	source := &stubPermissionSource{err: errors.New("db down")}
	mw := Middleware{Source: source}

	rec := httptest.NewRecorder()
	mw.RequireAny("stock.view")(okHandler()).ServeHTTP(rec, requestWithUser("7"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
