package apitest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	lendingApi "lendhub.GO/api/lending"
	"lendhub.GO/core/cache"
	enrollmentEntity "lendhub.GO/model/entity/enrollment"
	lendingEntity "lendhub.GO/model/entity/lending"
)

const (
	testUser = "admin"
	testPass = "secret"
)

func apiTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	tmpFile := filepath.Join(os.TempDir(), fmt.Sprintf("lending_api_test_%s_%d.db", t.Name(), time.Now().UnixNano()))
	t.Cleanup(func() { os.Remove(tmpFile) })
	db, err := gorm.Open(sqlite.Open(tmpFile), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")
	if err := db.AutoMigrate(
		&lendingEntity.InventoryPool{},
		&lendingEntity.LoanRequest{},
		&enrollmentEntity.EnrollmentWindow{},
		&enrollmentEntity.ProjectApplication{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func lendingTestServer(t *testing.T, db *gorm.DB) *echo.Echo {
	t.Helper()
	// The pools snapshot cache is process-wide; stale entries from another
	// test must not leak into this one.
	cache.GetInstance().Flush()
	e := echo.New()
	apiGroup := e.Group("/api")
	apiGroup.Use(middleware.BasicAuth(func(user, pass string, c echo.Context) (bool, error) {
		return user == testUser && pass == testPass, nil
	}))
	lendingApi.RegisterLendingRoutes(apiGroup, db)
	return e
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

type testIdentity struct {
	id   string
	role string
}

var (
	asAdmin    = testIdentity{"admin-1", "ADMIN"}
	asFaculty  = testIdentity{"faculty-1", "FACULTY"}
	asStudent  = testIdentity{"student-1", "STUDENT"}
	asStudent2 = testIdentity{"student-2", "STUDENT"}
)

func doJSON(e *echo.Echo, method, path string, body interface{}, who testIdentity) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", basicAuth(testUser, testPass))
	if who.id != "" {
		req.Header.Set("X-User-Id", who.id)
		req.Header.Set("X-User-Role", who.role)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return body
}

func createPool(t *testing.T, e *echo.Echo, resourceID, kind string, total int) {
	t.Helper()
	rec := doJSON(e, http.MethodPost, "/api/lending/pools", map[string]interface{}{
		"resource_id":    resourceID,
		"kind":           kind,
		"name":           "Test " + resourceID,
		"total_quantity": total,
	}, asAdmin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create pool: status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func reserveBody(resourceID string, qty int) map[string]interface{} {
	return map[string]interface{}{
		"resource_id":      resourceID,
		"quantity":         qty,
		"required_by_date": time.Now().Add(7 * 24 * time.Hour).Format(time.RFC3339),
		"purpose":          "course work",
	}
}

// ---------- Auth ----------

func TestLendingAPI_NoAuth_Returns401(t *testing.T) {
	e := lendingTestServer(t, apiTestDB(t))

	req := httptest.NewRequest(http.MethodGet, "/api/lending/pools", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestLendingAPI_MissingIdentity_Returns401(t *testing.T) {
	e := lendingTestServer(t, apiTestDB(t))

	rec := doJSON(e, http.MethodPost, "/api/lending/requests", reserveBody("BK-1", 1), testIdentity{})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

// ---------- Pools ----------

func TestLendingAPI_CreatePool_AdminOnly(t *testing.T) {
	e := lendingTestServer(t, apiTestDB(t))

	rec := doJSON(e, http.MethodPost, "/api/lending/pools", map[string]interface{}{
		"resource_id":    "BK-1",
		"kind":           "LIBRARY_ITEM",
		"name":           "Some book",
		"total_quantity": 5,
	}, asStudent)
	if rec.Code != http.StatusForbidden {
		t.Errorf("student create: status = %d, want 403", rec.Code)
	}

	createPool(t, e, "BK-1", "LIBRARY_ITEM", 5)

	rec = doJSON(e, http.MethodGet, "/api/lending/pools/BK-1", nil, asStudent)
	if rec.Code != http.StatusOK {
		t.Fatalf("get pool: status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	pool := body["pool"].(map[string]interface{})
	if pool["available_quantity"].(float64) != 5 {
		t.Errorf("available = %v, want 5", pool["available_quantity"])
	}
}

func TestLendingAPI_CreatePool_BadKind(t *testing.T) {
	e := lendingTestServer(t, apiTestDB(t))

	rec := doJSON(e, http.MethodPost, "/api/lending/pools", map[string]interface{}{
		"resource_id":    "X",
		"kind":           "FURNITURE",
		"total_quantity": 1,
	}, asAdmin)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestLendingAPI_PoolsList_Cached(t *testing.T) {
	e := lendingTestServer(t, apiTestDB(t))
	createPool(t, e, "BK-1", "LIBRARY_ITEM", 5)

	rec := doJSON(e, http.MethodGet, "/api/lending/pools", nil, asStudent)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if _, cached := decodeBody(t, rec)["cached"]; cached {
		t.Error("first read served from cache")
	}

	rec = doJSON(e, http.MethodGet, "/api/lending/pools", nil, asStudent)
	if decodeBody(t, rec)["cached"] != true {
		t.Error("second read not served from cache")
	}

	// A mutation invalidates the snapshot.
	createPool(t, e, "BK-2", "LIBRARY_ITEM", 3)
	rec = doJSON(e, http.MethodGet, "/api/lending/pools", nil, asStudent)
	body := decodeBody(t, rec)
	if _, cached := body["cached"]; cached {
		t.Error("read after mutation served from stale cache")
	}
	if pools := body["pools"].([]interface{}); len(pools) != 2 {
		t.Errorf("pools = %d, want 2", len(pools))
	}
}

func TestLendingAPI_PoolSnapshot_Cached(t *testing.T) {
	e := lendingTestServer(t, apiTestDB(t))
	createPool(t, e, "BK-1", "LIBRARY_ITEM", 5)

	rec := doJSON(e, http.MethodGet, "/api/lending/pools/BK-1", nil, asStudent)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if _, cached := decodeBody(t, rec)["cached"]; cached {
		t.Error("first read served from cache")
	}

	rec = doJSON(e, http.MethodGet, "/api/lending/pools/BK-1", nil, asStudent)
	if decodeBody(t, rec)["cached"] != true {
		t.Error("second read not served from the snapshot")
	}

	// Restocking the resource drops its snapshot.
	rec = doJSON(e, http.MethodPost, "/api/lending/pools/BK-1/restock", map[string]interface{}{"delta": 3}, asAdmin)
	if rec.Code != http.StatusOK {
		t.Fatalf("restock: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(e, http.MethodGet, "/api/lending/pools/BK-1", nil, asStudent)
	body := decodeBody(t, rec)
	if _, cached := body["cached"]; cached {
		t.Error("read after restock served from stale snapshot")
	}
	pool := body["pool"].(map[string]interface{})
	if pool["total_quantity"].(float64) != 8 || pool["available_quantity"].(float64) != 8 {
		t.Errorf("pool = %v, want 8/8 after restock", pool)
	}
}

func TestLendingAPI_Restock(t *testing.T) {
	e := lendingTestServer(t, apiTestDB(t))
	createPool(t, e, "BK-1", "LIBRARY_ITEM", 5)

	rec := doJSON(e, http.MethodPost, "/api/lending/pools/BK-1/restock", map[string]interface{}{"delta": 3}, asStudent)
	if rec.Code != http.StatusForbidden {
		t.Errorf("student restock: status = %d, want 403", rec.Code)
	}

	rec = doJSON(e, http.MethodPost, "/api/lending/pools/BK-1/restock", map[string]interface{}{"delta": 3}, asAdmin)
	if rec.Code != http.StatusOK {
		t.Fatalf("restock: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	pool := decodeBody(t, rec)["pool"].(map[string]interface{})
	if pool["total_quantity"].(float64) != 8 || pool["available_quantity"].(float64) != 8 {
		t.Errorf("pool = %v, want 8/8", pool)
	}

	// Shrinking below zero is refused.
	rec = doJSON(e, http.MethodPost, "/api/lending/pools/BK-1/restock", map[string]interface{}{"delta": -100}, asAdmin)
	if rec.Code != http.StatusConflict {
		t.Errorf("impossible shrink: status = %d, want 409", rec.Code)
	}
}

// ---------- Requests ----------

func TestLendingAPI_ReserveFlow(t *testing.T) {
	e := lendingTestServer(t, apiTestDB(t))
	createPool(t, e, "BK-1", "LIBRARY_ITEM", 5)

	rec := doJSON(e, http.MethodPost, "/api/lending/requests", reserveBody("BK-1", 3), asStudent)
	if rec.Code != http.StatusCreated {
		t.Fatalf("reserve: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	request := decodeBody(t, rec)["request"].(map[string]interface{})
	if request["status"] != "APPROVED" {
		t.Errorf("status = %v, want APPROVED", request["status"])
	}

	rec = doJSON(e, http.MethodGet, "/api/lending/pools/BK-1", nil, asStudent)
	pool := decodeBody(t, rec)["pool"].(map[string]interface{})
	if pool["available_quantity"].(float64) != 2 {
		t.Errorf("available = %v, want 2", pool["available_quantity"])
	}
}

func TestLendingAPI_Reserve_InsufficientStock409(t *testing.T) {
	e := lendingTestServer(t, apiTestDB(t))
	createPool(t, e, "BK-1", "LIBRARY_ITEM", 5)

	if rec := doJSON(e, http.MethodPost, "/api/lending/requests", reserveBody("BK-1", 3), asStudent); rec.Code != http.StatusCreated {
		t.Fatalf("first reserve: status = %d", rec.Code)
	}
	rec := doJSON(e, http.MethodPost, "/api/lending/requests", reserveBody("BK-1", 3), asStudent2)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second reserve: status = %d, want 409", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["available"].(float64) != 2 || body["requested"].(float64) != 3 {
		t.Errorf("conflict body = %v, want available 2, requested 3", body)
	}
}

func TestLendingAPI_Reserve_BadDate(t *testing.T) {
	e := lendingTestServer(t, apiTestDB(t))
	createPool(t, e, "BK-1", "LIBRARY_ITEM", 5)

	body := reserveBody("BK-1", 1)
	body["required_by_date"] = "next tuesday"
	rec := doJSON(e, http.MethodPost, "/api/lending/requests", body, asStudent)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestLendingAPI_RequestVisibility(t *testing.T) {
	e := lendingTestServer(t, apiTestDB(t))
	createPool(t, e, "BK-1", "LIBRARY_ITEM", 5)

	rec := doJSON(e, http.MethodPost, "/api/lending/requests", reserveBody("BK-1", 1), asStudent)
	id := decodeBody(t, rec)["request"].(map[string]interface{})["id"].(string)

	if rec := doJSON(e, http.MethodGet, "/api/lending/requests/"+id, nil, asStudent2); rec.Code != http.StatusForbidden {
		t.Errorf("foreign student get: status = %d, want 403", rec.Code)
	}
	if rec := doJSON(e, http.MethodGet, "/api/lending/requests/"+id, nil, asFaculty); rec.Code != http.StatusOK {
		t.Errorf("faculty get: status = %d, want 200", rec.Code)
	}

	rec = doJSON(e, http.MethodGet, "/api/lending/requests/"+id, nil, asStudent)
	if rec.Code != http.StatusOK {
		t.Fatalf("own get: status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if _, ok := body["expiry"]; !ok {
		t.Error("approved request detail missing expiry info")
	}
	if _, ok := body["overdue"]; !ok {
		t.Error("request detail missing overdue report")
	}
}

func TestLendingAPI_LabComponentApprovalFlow(t *testing.T) {
	e := lendingTestServer(t, apiTestDB(t))
	createPool(t, e, "LAB-1", "LAB_COMPONENT", 10)

	// Missing justification is a 400.
	rec := doJSON(e, http.MethodPost, "/api/lending/requests", reserveBody("LAB-1", 2), asStudent)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("no justification: status = %d, want 400", rec.Code)
	}

	body := reserveBody("LAB-1", 2)
	body["justification_ref"] = "proj-1"
	rec = doJSON(e, http.MethodPost, "/api/lending/requests", body, asStudent)
	if rec.Code != http.StatusCreated {
		t.Fatalf("reserve: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	request := decodeBody(t, rec)["request"].(map[string]interface{})
	if request["status"] != "PENDING" {
		t.Errorf("status = %v, want PENDING", request["status"])
	}
	id := request["id"].(string)

	patch := func(who testIdentity, action string) *httptest.ResponseRecorder {
		return doJSON(e, http.MethodPatch, "/api/lending/requests/"+id,
			map[string]interface{}{"action": action}, who)
	}

	if rec := patch(asStudent, "approve"); rec.Code != http.StatusForbidden {
		t.Errorf("student approve: status = %d, want 403", rec.Code)
	}
	if rec := patch(asFaculty, "approve"); rec.Code != http.StatusOK {
		t.Fatalf("approve: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	// Replayed approval conflicts with the current state.
	if rec := patch(asFaculty, "approve"); rec.Code != http.StatusConflict {
		t.Errorf("re-approve: status = %d, want 409", rec.Code)
	}
	if rec := patch(asStudent, "collect"); rec.Code != http.StatusOK {
		t.Fatalf("collect: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec := patch(asStudent, "user_return"); rec.Code != http.StatusOK {
		t.Fatalf("user_return: status = %d", rec.Code)
	}
	rec = patch(asFaculty, "return")
	if rec.Code != http.StatusOK {
		t.Fatalf("return: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	request = decodeBody(t, rec)["request"].(map[string]interface{})
	if request["status"] != "RETURNED" {
		t.Errorf("final status = %v, want RETURNED", request["status"])
	}

	// Stock is whole again after the verified return.
	rec = doJSON(e, http.MethodGet, "/api/lending/pools/LAB-1", nil, asStudent)
	pool := decodeBody(t, rec)["pool"].(map[string]interface{})
	if pool["available_quantity"].(float64) != 10 {
		t.Errorf("available = %v, want 10", pool["available_quantity"])
	}
}

func TestLendingAPI_UnknownAction400(t *testing.T) {
	e := lendingTestServer(t, apiTestDB(t))
	createPool(t, e, "BK-1", "LIBRARY_ITEM", 5)

	rec := doJSON(e, http.MethodPost, "/api/lending/requests", reserveBody("BK-1", 1), asStudent)
	id := decodeBody(t, rec)["request"].(map[string]interface{})["id"].(string)

	rec = doJSON(e, http.MethodPatch, "/api/lending/requests/"+id,
		map[string]interface{}{"action": "teleport"}, asFaculty)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestLendingAPI_DismissRestoresStock(t *testing.T) {
	e := lendingTestServer(t, apiTestDB(t))
	createPool(t, e, "BK-1", "LIBRARY_ITEM", 5)

	rec := doJSON(e, http.MethodPost, "/api/lending/requests", reserveBody("BK-1", 2), asStudent)
	id := decodeBody(t, rec)["request"].(map[string]interface{})["id"].(string)

	rec = doJSON(e, http.MethodPatch, "/api/lending/requests/"+id,
		map[string]interface{}{"action": "dismiss"}, asStudent)
	if rec.Code != http.StatusOK {
		t.Fatalf("dismiss: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(e, http.MethodGet, "/api/lending/pools/BK-1", nil, asStudent)
	pool := decodeBody(t, rec)["pool"].(map[string]interface{})
	if pool["available_quantity"].(float64) != 5 {
		t.Errorf("available = %v, want 5", pool["available_quantity"])
	}

	// Dismissing again is an idempotent 200.
	rec = doJSON(e, http.MethodPatch, "/api/lending/requests/"+id,
		map[string]interface{}{"action": "dismiss"}, asStudent)
	if rec.Code != http.StatusOK {
		t.Errorf("second dismiss: status = %d, want 200", rec.Code)
	}
}
