package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/darigo/apiserver/internal/auth"
	"github.com/darigo/apiserver/internal/metrics"
	"github.com/darigo/apiserver/internal/services"
	"github.com/darigo/apiserver/internal/store/memstore"
	"github.com/darigo/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "handlers-test-secret-0123456789abcdef"

type harness struct {
	t           *testing.T
	router      http.Handler
	users       *memstore.UserRepository
	userService *services.UserService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zap.NewNop()
	users := memstore.NewUserRepository()
	properties := memstore.NewPropertyRepository()
	codec, err := auth.NewCodec(testSecret, time.Hour)
	require.NoError(t, err)

	userService := services.NewUserService(users, properties, codec, logger)
	userService.SetBcryptCost(bcrypt.MinCost)
	propertyService := services.NewPropertyService(properties, users, logger)
	statsService := services.NewStatsService(users, properties)
	m := metrics.New()
	resolver := auth.NewResolver(codec, users)
	authn := NewAuthenticator(resolver, auth.NewPolicy(users), m, logger)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			AuthRouter(r, NewAuthHandler(userService, resolver, logger), authn, nil)
		})
		r.Route("/properties", func(r chi.Router) {
			PropertyRouter(r, NewPropertyHandler(propertyService, m, logger, 0), authn)
		})
		r.Route("/users", func(r chi.Router) {
			UserRouter(r, NewUserHandler(userService, statsService, logger, 0), authn)
		})
		r.Route("/admin", func(r chi.Router) {
			AdminRouter(r, NewAdminHandler(userService, propertyService, statsService, m, logger), authn)
		})
	})

	return &harness{t: t, router: router, users: users, userService: userService}
}

func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *harness) register(name, email string) (string, types.User) {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/api/auth/register", "", map[string]any{
		"name":            name,
		"email":           email,
		"phone":           "07701234567",
		"password":        "secret-pass-1",
		"confirmPassword": "secret-pass-1",
	})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp AuthResponse
	require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token, resp.User
}

func (h *harness) admin() (string, types.User) {
	h.t.Helper()
	_, _, err := h.userService.ProvisionAdmin(context.Background(), "Admin", "admin@darigo.iq", "admin-pass-1")
	require.NoError(h.t, err)
	session, err := h.userService.Login(context.Background(), "admin@darigo.iq", "admin-pass-1")
	require.NoError(h.t, err)
	return session.Token, session.User
}

func (h *harness) createProperty(token string, body map[string]any) types.Property {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/api/properties", token, body)
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	var p types.Property
	require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func sampleProperty() map[string]any {
	return map[string]any{
		"title":    "Family house in Karrada",
		"type":     "sale",
		"category": "house",
		"price":    125000,
		"area":     240,
		"rooms":    4,
		"location": map[string]any{"city": "Baghdad", "district": "Karrada"},
	}
}

func TestRegisterLoginAndMe(t *testing.T) {
	h := newHarness(t)
	token, user := h.register("Ali Hassan", "Ali@Example.com")

	assert.Equal(t, "ali@example.com", user.Email)
	assert.Equal(t, "+9647701234567", user.Phone)
	assert.Equal(t, types.RoleIndividual, user.Role)

	rec := h.do(http.MethodPost, "/api/auth/register", "", map[string]any{
		"name":            "Someone Else",
		"email":           "ALI@example.com",
		"phone":           "07701234567",
		"password":        "secret-pass-1",
		"confirmPassword": "secret-pass-1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": "ali@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid email or password", decode[ErrorResponse](t, rec).Error)

	rec = h.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": "ali@example.com", "password": "secret-pass-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[AuthResponse](t, rec).Token)

	rec = h.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user.ID, decode[types.User](t, rec).ID)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = h.do(http.MethodPost, "/api/auth/verify-token", "", map[string]any{"token": token})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)
	valid := func() map[string]any {
		return map[string]any{
			"name":            "Ali Hassan",
			"email":           "ali@example.com",
			"phone":           "07701234567",
			"password":        "secret-pass-1",
			"confirmPassword": "secret-pass-1",
		}
	}

	tests := []struct {
		name  string
		edit  func(map[string]any)
		field string
	}{
		{"bad phone", func(b map[string]any) { b["phone"] = "12345" }, "phone"},
		{"short password", func(b map[string]any) { b["password"] = "short"; b["confirmPassword"] = "short" }, "password"},
		{"mismatched confirmation", func(b map[string]any) { b["confirmPassword"] = "other-pass-1" }, "confirmPassword"},
		{"admin self-registration", func(b map[string]any) { b["userType"] = "admin" }, "userType"},
		{"agency without license", func(b map[string]any) { b["userType"] = "agency"; b["agencyName"] = "Dar Agency" }, "licenseNumber"},
		{"bad email", func(b map[string]any) { b["email"] = "not-an-email" }, "email"},
		{"name made of tags", func(b map[string]any) { b["name"] = "<b></b>" }, "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := valid()
			tt.edit(body)
			rec := h.do(http.MethodPost, "/api/auth/register", "", body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, decode[ErrorResponse](t, rec).Fields, tt.field)
		})
	}
}

func TestRegisterAgencyKeepsAgencyInfo(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/api/auth/register", "", map[string]any{
		"name":            "Dar Realty",
		"email":           "office@dar.iq",
		"phone":           "+964 770 123 4567",
		"password":        "secret-pass-1",
		"confirmPassword": "secret-pass-1",
		"userType":        "agency",
		"agencyName":      "Dar Realty Office",
		"licenseNumber":   "BG-20931",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := decode[AuthResponse](t, rec).User
	assert.Equal(t, types.RoleAgency, user.Role)
	require.NotNil(t, user.AgencyInfo)
	assert.Equal(t, "BG-20931", user.AgencyInfo.LicenseNumber)
}

func TestModerationMakesPropertyPublic(t *testing.T) {
	h := newHarness(t)
	ownerToken, owner := h.register("Owner A", "a@x.com")
	adminToken, _ := h.admin()

	body := sampleProperty()
	body["status"] = "approved"
	body["isPublished"] = true
	body["owner"] = "someone-else"
	created := h.createProperty(ownerToken, body)
	assert.Equal(t, types.StatusPending, created.Status)
	assert.False(t, created.IsPublished)
	assert.Equal(t, owner.ID, created.OwnerID)

	list := decode[ListResponse[types.Property]](t, h.do(http.MethodGet, "/api/properties", "", nil))
	assert.Zero(t, list.Total)

	rec := h.do(http.MethodPatch, "/api/admin/properties/"+created.ID+"/status", adminToken, map[string]any{"status": "approved"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decode[types.Property](t, rec)
	assert.Equal(t, types.StatusApproved, approved.Status)
	assert.True(t, approved.IsPublished)
	assert.NotNil(t, approved.PublishedAt)

	list = decode[ListResponse[types.Property]](t, h.do(http.MethodGet, "/api/properties?city=Baghdad&sortBy=price&sortOrder=asc", "", nil))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, created.ID, list.Items[0].ID)
	require.NotNil(t, list.Items[0].Owner)
	assert.Equal(t, owner.ID, list.Items[0].Owner.ID)

	rec = h.do(http.MethodPatch, "/api/admin/properties/"+created.ID+"/status", adminToken, map[string]any{"status": "rejected"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[types.Property](t, rec).IsPublished)

	list = decode[ListResponse[types.Property]](t, h.do(http.MethodGet, "/api/properties", "", nil))
	assert.Zero(t, list.Total)
}

func TestModerationRejectsUnknownTarget(t *testing.T) {
	h := newHarness(t)
	ownerToken, _ := h.register("Owner A", "a@x.com")
	adminToken, _ := h.admin()
	created := h.createProperty(ownerToken, sampleProperty())

	for _, status := range []string{"sold", "published", "APPROVED"} {
		rec := h.do(http.MethodPatch, "/api/admin/properties/"+created.ID+"/status", adminToken, map[string]any{"status": status})
		assert.Equal(t, http.StatusBadRequest, rec.Code, status)
	}

	rec := h.do(http.MethodGet, "/api/properties/"+created.ID, ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.StatusPending, decode[types.Property](t, rec).Status)
}

func TestModerationRejectsPaddedTargets(t *testing.T) {
	h := newHarness(t)
	ownerToken, _ := h.register("Owner A", "a@x.com")
	adminToken, _ := h.admin()
	created := h.createProperty(ownerToken, sampleProperty())
	path := "/api/admin/properties/" + created.ID + "/status"
	require.Equal(t, http.StatusOK, h.do(http.MethodPatch, path, adminToken, map[string]any{"status": "approved"}).Code)

	for _, status := range []string{"rejected\t", " approved ", "pending\n"} {
		rec := h.do(http.MethodPatch, path, adminToken, map[string]any{"status": status})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%q", status)
	}
	rec := h.do(http.MethodPatch, "/api/properties/"+created.ID+"/close", ownerToken, map[string]any{"status": "sold "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/api/properties/"+created.ID, ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stored := decode[types.Property](t, rec)
	assert.Equal(t, types.StatusApproved, stored.Status)
	assert.True(t, stored.IsPublished)
}

func TestListQueryBounds(t *testing.T) {
	h := newHarness(t)
	token, _ := h.register("Owner A", "a@x.com")

	for _, query := range []string{
		"page=9223372036854775807",
		"page=1000001",
		"page=0",
		"limit=-5",
		"minPrice=NaN",
		"maxPrice=Inf",
		"minArea=-Infinity",
		"maxArea=abc",
	} {
		rec := h.do(http.MethodGet, "/api/properties?"+query, "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}

	rec := h.do(http.MethodGet, "/api/properties/user/my-properties?page=9223372036854775807", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/api/properties?page=1000000&minPrice=1.5e3", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decode[ListResponse[types.Property]](t, rec)
	assert.Equal(t, 1000000, list.Page)
	assert.Empty(t, list.Items)
}

func TestNonOwnerMutationsAreNotFound(t *testing.T) {
	h := newHarness(t)
	ownerToken, _ := h.register("Owner A", "a@x.com")
	otherToken, _ := h.register("Other B", "b@x.com")
	adminToken, _ := h.admin()
	created := h.createProperty(ownerToken, sampleProperty())

	rec := h.do(http.MethodPut, "/api/properties/"+created.ID, otherToken, map[string]any{"title": "Hijacked title"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = h.do(http.MethodDelete, "/api/properties/"+created.ID, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = h.do(http.MethodPatch, "/api/properties/"+created.ID+"/close", otherToken, map[string]any{"status": "sold"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Admins moderate; they do not edit through the owner routes.
	rec = h.do(http.MethodPut, "/api/properties/"+created.ID, adminToken, map[string]any{"title": "Admin title"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodGet, "/api/properties/"+created.ID, ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Family house in Karrada", decode[types.Property](t, rec).Title)

	rec = h.do(http.MethodPut, "/api/properties/"+created.ID, ownerToken, map[string]any{"title": "Renovated house", "status": "approved"})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[types.Property](t, rec)
	assert.Equal(t, "Renovated house", updated.Title)
	assert.Equal(t, types.StatusPending, updated.Status)
}

func TestHiddenPropertyVisibility(t *testing.T) {
	h := newHarness(t)
	ownerToken, _ := h.register("Owner A", "a@x.com")
	otherToken, _ := h.register("Other B", "b@x.com")
	adminToken, _ := h.admin()
	created := h.createProperty(ownerToken, sampleProperty())
	path := "/api/properties/" + created.ID

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, path, "", nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, path, otherToken, nil).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, path, ownerToken, nil).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, path, adminToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/properties/does-not-exist", "", nil).Code)

	mine := decode[ListResponse[types.Property]](t, h.do(http.MethodGet, "/api/properties/user/my-properties", ownerToken, nil))
	assert.Equal(t, 1, mine.Total)
}

func TestCredentialRejections(t *testing.T) {
	h := newHarness(t)
	token, user := h.register("Owner A", "a@x.com")

	foreign, err := auth.NewCodec("some-other-secret-0123456789abcdef", time.Hour)
	require.NoError(t, err)
	forged, err := foreign.Issue(user)
	require.NoError(t, err)

	stale, err := auth.NewCodec(testSecret, time.Minute, auth.WithClock(func() time.Time {
		return time.Now().Add(-time.Hour)
	}))
	require.NoError(t, err)
	expired, err := stale.Issue(user)
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{"missing", "", "unauthorized"},
		{"wrong scheme", "Token " + token, "unauthorized"},
		{"wrong secret", "Bearer " + forged, "unauthorized"},
		{"expired", "Bearer " + expired, "token expired"},
		{"too short", "Bearer abc", "unauthorized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/users/profile", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.message, decode[ErrorResponse](t, rec).Error)
		})
	}
}

func TestDisabledAccountIsRejected(t *testing.T) {
	h := newHarness(t)
	token, user := h.register("Owner A", "a@x.com")
	adminToken, admin := h.admin()

	rec := h.do(http.MethodPatch, "/api/admin/users/"+user.ID+"/toggle-status", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[types.User](t, rec).IsActive)

	rec = h.do(http.MethodGet, "/api/users/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "account is disabled", decode[ErrorResponse](t, rec).Error)

	rec = h.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": "a@x.com", "password": "secret-pass-1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "account is disabled", decode[ErrorResponse](t, rec).Error)

	rec = h.do(http.MethodPatch, "/api/admin/users/"+admin.ID+"/toggle-status", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoleIsRecheckedPerRequest(t *testing.T) {
	h := newHarness(t)
	userToken, _ := h.register("Owner A", "a@x.com")
	adminToken, admin := h.admin()

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/api/admin/stats", userToken, nil).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/admin/stats", adminToken, nil).Code)

	_, err := h.users.SetRole(context.Background(), admin.ID, types.RoleIndividual)
	require.NoError(t, err)

	rec := h.do(http.MethodGet, "/api/admin/stats", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "admin access required", decode[ErrorResponse](t, rec).Error)
}

func TestCloseAndReviews(t *testing.T) {
	h := newHarness(t)
	ownerToken, _ := h.register("Owner A", "a@x.com")
	reviewerToken, _ := h.register("Reviewer B", "b@x.com")
	adminToken, _ := h.admin()
	created := h.createProperty(ownerToken, sampleProperty())
	path := "/api/properties/" + created.ID

	rec := h.do(http.MethodPost, path+"/reviews", reviewerToken, map[string]any{"rating": 5})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, http.StatusOK, h.do(http.MethodPatch, "/api/admin/properties/"+created.ID+"/status", adminToken, map[string]any{"status": "approved"}).Code)

	rec = h.do(http.MethodPost, path+"/reviews", reviewerToken, map[string]any{"rating": 6})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, path+"/reviews", reviewerToken, map[string]any{"rating": 4, "comment": "Nice <i>garden</i>"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reviewed := decode[types.Property](t, rec)
	assert.Equal(t, 1, reviewed.TotalReviews)
	assert.InDelta(t, 4.0, reviewed.AverageRating, 0.001)
	assert.Equal(t, "Nice garden", reviewed.Reviews[0].Comment)

	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, path+"/reviews", reviewerToken, map[string]any{"rating": 3}).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, path+"/reviews", ownerToken, map[string]any{"rating": 5}).Code)

	rec = h.do(http.MethodPatch, path+"/close", ownerToken, map[string]any{"status": "approved"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPatch, path+"/close", ownerToken, map[string]any{"status": "sold", "soldTo": "buyer-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sold := decode[types.Property](t, rec)
	assert.Equal(t, types.StatusSold, sold.Status)
	assert.False(t, sold.IsPublished)
	assert.NotNil(t, sold.SoldAt)

	list := decode[ListResponse[types.Property]](t, h.do(http.MethodGet, "/api/properties", "", nil))
	assert.Zero(t, list.Total)
}

func TestPropertyValidation(t *testing.T) {
	h := newHarness(t)
	token, _ := h.register("Owner A", "a@x.com")

	tests := []struct {
		name  string
		edit  func(map[string]any)
		field string
	}{
		{"missing title", func(b map[string]any) { delete(b, "title") }, "title"},
		{"bad type", func(b map[string]any) { b["type"] = "lease" }, "type"},
		{"bad category", func(b map[string]any) { b["category"] = "castle" }, "category"},
		{"negative price", func(b map[string]any) { b["price"] = -1 }, "price"},
		{"empty location", func(b map[string]any) { b["location"] = map[string]any{"neighborhood": "X"} }, "location"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := sampleProperty()
			tt.edit(body)
			rec := h.do(http.MethodPost, "/api/properties", token, body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, decode[ErrorResponse](t, rec).Fields, tt.field)
		})
	}

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/properties?sortBy=owner", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/properties?minPrice=cheap", "", nil).Code)
}

func TestMediaUploadWithoutStorage(t *testing.T) {
	h := newHarness(t)
	token, _ := h.register("Owner A", "a@x.com")
	created := h.createProperty(token, sampleProperty())

	var buf bytes.Buffer
	w := newMultipart(t, &buf, "photo.png", "image/png", []byte("\x89PNG\r\n\x1a\nrest"))
	req := httptest.NewRequest(http.MethodPost, "/api/properties/"+created.ID+"/media", &buf)
	req.Header.Set("Content-Type", w)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUserProfileAndSearch(t *testing.T) {
	h := newHarness(t)
	token, _ := h.register("Owner A", "a@x.com")
	h.register("Hidden Person", "hidden@x.com")
	h.admin()

	rec := h.do(http.MethodPut, "/api/users/profile", token, map[string]any{
		"name":  "Owner Renamed",
		"phone": "0780 123 4567",
		"role":  "admin",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[types.User](t, rec)
	assert.Equal(t, "Owner Renamed", updated.Name)
	assert.Equal(t, "+9647801234567", updated.Phone)
	assert.Equal(t, types.RoleIndividual, updated.Role)

	search := decode[ListResponse[types.OwnerSummary]](t, h.do(http.MethodGet, "/api/users/search?q=renamed", "", nil))
	require.Equal(t, 1, search.Total)
	assert.Equal(t, "Owner Renamed", search.Items[0].Name)

	admins := decode[ListResponse[types.OwnerSummary]](t, h.do(http.MethodGet, "/api/users/search?userType=admin", "", nil))
	assert.Zero(t, admins.Total)

	stats := decode[types.PropertyCounts](t, h.do(http.MethodGet, "/api/users/stats", token, nil))
	assert.Zero(t, stats.Total)

	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/api/users/account", token, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/users/profile", token, nil).Code)
}
