package graphqltest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	gqlregistry "lendhub.GO/graphql/registry"
	"lendhub.GO/graphqlserver"
	enrollmentEntity "lendhub.GO/model/entity/enrollment"
	lendingEntity "lendhub.GO/model/entity/lending"
	lendingSvc "lendhub.GO/service/lending"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
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

func exec(t *testing.T, db *gorm.DB, query string) map[string]interface{} {
	t.Helper()
	schema, err := graphqlserver.NewSchema(db, lendingSvc.DefaultPolicy())
	if err != nil {
		t.Fatalf("parse schema: %v", err)
	}
	resp := schema.Exec(context.Background(), query, "", nil)
	if len(resp.Errors) > 0 {
		t.Fatalf("query errors: %v", resp.Errors)
	}
	var data map[string]interface{}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	return data
}

func TestGraphQL_SchemaParses(t *testing.T) {
	if _, err := graphqlserver.NewSchema(testDB(t), lendingSvc.DefaultPolicy()); err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
}

func TestGraphQL_Pools(t *testing.T) {
	db := testDB(t)
	db.Create(&lendingEntity.InventoryPool{
		ResourceID: "BK-1", Kind: lendingEntity.KindLibraryItem,
		Name: "Some book", TotalQuantity: 5, AvailableQuantity: 3,
	})

	data := exec(t, db, `{ pools { resourceId availableQuantity totalQuantity } }`)
	pools := data["pools"].([]interface{})
	if len(pools) != 1 {
		t.Fatalf("pools = %d, want 1", len(pools))
	}
	pool := pools[0].(map[string]interface{})
	if pool["resourceId"] != "BK-1" || pool["availableQuantity"].(float64) != 3 {
		t.Errorf("pool = %v", pool)
	}

	data = exec(t, db, `{ pool(resourceId: "NOPE") { resourceId } }`)
	if data["pool"] != nil {
		t.Errorf("unknown pool = %v, want null", data["pool"])
	}
}

func TestGraphQL_RequestDerivedFields(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	// Mid-range offset so the real clock in the resolver still rounds up to
	// three days.
	due := now.Add(-60 * time.Hour)
	collected := now.Add(-5 * 24 * time.Hour)
	req := &lendingEntity.LoanRequest{
		ID:             uuid.NewString(),
		ResourceID:     "BK-1",
		RequesterID:    "student-1",
		Quantity:       1,
		Status:         lendingEntity.StatusCollected,
		RequestedAt:    collected,
		RequiredByDate: due,
		CollectedAt:    &collected,
	}
	if err := db.Create(req).Error; err != nil {
		t.Fatalf("seed request: %v", err)
	}

	data := exec(t, db, `{ request(id: "`+req.ID+`") { status overdue overdueDays fine } }`)
	got := data["request"].(map[string]interface{})
	if got["overdue"] != true {
		t.Error("overdue = false, want true")
	}
	if got["overdueDays"].(float64) != 3 {
		t.Errorf("overdueDays = %v, want 3", got["overdueDays"])
	}
	if got["fine"].(float64) != 15 {
		t.Errorf("fine = %v, want 15", got["fine"])
	}
}

func TestGraphQL_EnrollmentWindow(t *testing.T) {
	db := testDB(t)
	db.Create(&enrollmentEntity.EnrollmentWindow{
		ProjectID: "proj-1", OwnerID: "faculty-1", Cap: 3,
		Status: enrollmentEntity.WindowOpen, ApprovedCount: 2,
	})

	data := exec(t, db, `{ enrollmentWindow(projectId: "proj-1") { cap approvedCount status } }`)
	w := data["enrollmentWindow"].(map[string]interface{})
	if w["cap"].(float64) != 3 || w["approvedCount"].(float64) != 2 || w["status"] != "OPEN" {
		t.Errorf("window = %v", w)
	}
}

func TestGraphQL_Extension(t *testing.T) {
	db := testDB(t)
	gqlregistry.Register("echoargs", func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return args, nil
	})

	data := exec(t, db, `{ extension(name: "echoargs", args: "{\"k\":\"v\"}") }`)
	raw, ok := data["extension"].(string)
	if !ok {
		t.Fatalf("extension = %v, want JSON string", data["extension"])
	}
	var decoded map[string]string
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatalf("decode extension result: %v", err)
	}
	if decoded["k"] != "v" {
		t.Errorf("decoded = %v, want k=v", decoded)
	}
}
