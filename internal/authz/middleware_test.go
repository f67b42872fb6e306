package authz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/archivum-dms/archivum/internal/shared"
)

func guardedRequest(principal *shared.Principal) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	if principal != nil {
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), *principal))
	}
	return req
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequirePermission(t *testing.T) {
	store := newFakeStore()
	store.grant(roleSupervisor, shared.PermDocumentsView+".department", "")
	store.grant(roleSupervisor, shared.PermDocumentsEdit+".station", "")
	user := uuid.New()
	store.assign(user, roleSupervisor, "supervisor")

	mw := Middleware{Service: newTestService(t, store), Logger: testLogger()}

	rr := httptest.NewRecorder()
	mw.RequirePermission(shared.PermDocumentsView)(okHandler()).
		ServeHTTP(rr, guardedRequest(&shared.Principal{UserID: user}))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	mw.RequirePermission(shared.PermDocumentsEdit)(okHandler()).
		ServeHTTP(rr, guardedRequest(&shared.Principal{UserID: user}))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	mw.RequirePermission(shared.PermDocumentsArchive)(okHandler()).
		ServeHTTP(rr, guardedRequest(&shared.Principal{UserID: user}))
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequirePermissionWithoutPrincipalDenies(t *testing.T) {
	mw := Middleware{Service: newTestService(t, newFakeStore()), Logger: testLogger()}
	guard := mw.RequirePermission(shared.PermDocumentsView)(okHandler())

	rr := httptest.NewRecorder()
	guard.ServeHTTP(rr, guardedRequest(nil))
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequirePermissionDeniesOnStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.listErr = storeErr("list active assignments", context.DeadlineExceeded)

	mw := Middleware{Service: newTestService(t, store), Logger: testLogger()}
	guard := mw.RequirePermission(shared.PermDocumentsView)(okHandler())

	rr := httptest.NewRecorder()
	guard.ServeHTTP(rr, guardedRequest(&shared.Principal{UserID: uuid.New()}))
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequireScope(t *testing.T) {
	store := newFakeStore()
	store.grant(roleSupervisor, shared.PermDocumentsApprove+".department", "")
	user := uuid.New()
	store.assign(user, roleSupervisor, "supervisor")

	mw := Middleware{Service: newTestService(t, store), Logger: testLogger()}

	rr := httptest.NewRecorder()
	mw.RequireScope(shared.PermDocumentsApprove, ScopeStation)(okHandler()).
		ServeHTTP(rr, guardedRequest(&shared.Principal{UserID: user}))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	mw.RequireScope(shared.PermDocumentsApprove, ScopeAll)(okHandler()).
		ServeHTTP(rr, guardedRequest(&shared.Principal{UserID: user}))
	require.Equal(t, http.StatusForbidden, rr.Code)
}
