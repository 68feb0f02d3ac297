package graphqlserver

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	"gorm.io/gorm"

	"lendhub.GO/graphql"
	"lendhub.GO/graphql/registry"
	enrollmentEntity "lendhub.GO/model/entity/enrollment"
	lendingEntity "lendhub.GO/model/entity/lending"
	enrollmentRepo "lendhub.GO/model/repository/enrollment"
	lendingRepo "lendhub.GO/model/repository/lending"
	lendingSvc "lendhub.GO/service/lending"
)

// RootResolver is the root for graphql-go. Read-only: every field maps to a
// repository read plus derived overdue/expiry info; no field mutates state.
type RootResolver struct {
	DB     *gorm.DB
	Policy lendingSvc.Policy
}

// Pool is the availability view of one lendable resource.
type Pool struct {
	ResourceId        string
	Kind              string
	Name              string
	Location          string
	TotalQuantity     int32
	AvailableQuantity int32
}

// Request is the loan request view with derived overdue/fine/expiry fields.
type Request struct {
	Id                 gql.ID
	ResourceId         string
	RequesterId        string
	Quantity           int32
	Status             string
	Purpose            string
	RequestedAt        string
	RequiredByDate     string
	ApprovedAt         *string
	CollectedAt        *string
	ReturnedAt         *string
	Overdue            bool
	OverdueDays        int32
	Fine               float64
	SecondsUntilExpiry *int32
}

// EnrollmentWindow is the admission view of one project.
type EnrollmentWindow struct {
	ProjectId     string
	Cap           int32
	Status        string
	ApprovedCount int32
}

func (r *RootResolver) Pools(ctx context.Context) ([]*Pool, error) {
	list, err := lendingRepo.NewPoolRepository(r.DB).List()
	if err != nil {
		return nil, err
	}
	out := make([]*Pool, 0, len(list))
	for i := range list {
		out = append(out, poolView(&list[i]))
	}
	return out, nil
}

func (r *RootResolver) Pool(ctx context.Context, args struct{ ResourceId string }) (*Pool, error) {
	pool, err := lendingRepo.NewPoolRepository(r.DB).FindByResourceID(args.ResourceId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return poolView(pool), nil
}

func (r *RootResolver) Request(ctx context.Context, args struct{ Id gql.ID }) (*Request, error) {
	req, err := lendingRepo.NewRequestRepository(r.DB).FindByID(string(args.Id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.requestView(req), nil
}

func (r *RootResolver) Requests(ctx context.Context, args struct {
	RequesterId *string
	Status      *string
}) ([]*Request, error) {
	repo := lendingRepo.NewRequestRepository(r.DB)
	status := lendingEntity.Status("")
	if args.Status != nil {
		status = lendingEntity.Status(*args.Status)
	}
	var list []lendingEntity.LoanRequest
	var err error
	if args.RequesterId != nil && *args.RequesterId != "" {
		list, err = repo.ListByRequester(*args.RequesterId, status)
	} else {
		list, err = repo.ListAll(status)
	}
	if err != nil {
		return nil, err
	}
	out := make([]*Request, 0, len(list))
	for i := range list {
		out = append(out, r.requestView(&list[i]))
	}
	return out, nil
}

func (r *RootResolver) EnrollmentWindow(ctx context.Context, args struct{ ProjectId string }) (*EnrollmentWindow, error) {
	w, err := enrollmentRepo.NewEnrollmentRepository(r.DB).FindWindow(args.ProjectId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return windowView(w), nil
}

// ExtensionArgs for extension(name, args).
type ExtensionArgs struct {
	Name string
	Args *string
}

func (r *RootResolver) Extension(ctx context.Context, args ExtensionArgs) (*string, error) {
	var m map[string]interface{}
	if args.Args != nil && *args.Args != "" {
		_ = json.Unmarshal([]byte(*args.Args), &m)
	}
	if m == nil {
		m = make(map[string]interface{})
	}
	out, err := registry.Resolve(ctx, args.Name, m)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func poolView(p *lendingEntity.InventoryPool) *Pool {
	return &Pool{
		ResourceId:        p.ResourceID,
		Kind:              string(p.Kind),
		Name:              p.Name,
		Location:          p.Location,
		TotalQuantity:     int32(p.TotalQuantity),
		AvailableQuantity: int32(p.AvailableQuantity),
	}
}

func (r *RootResolver) requestView(req *lendingEntity.LoanRequest) *Request {
	now := time.Now()
	view := &Request{
		Id:             gql.ID(req.ID),
		ResourceId:     req.ResourceID,
		RequesterId:    req.RequesterID,
		Quantity:       int32(req.Quantity),
		Status:         string(req.Status),
		Purpose:        req.Purpose,
		RequestedAt:    req.RequestedAt.Format(time.RFC3339),
		RequiredByDate: req.RequiredByDate.Format(time.RFC3339),
		ApprovedAt:     formatTime(req.ApprovedAt),
		CollectedAt:    formatTime(req.CollectedAt),
		ReturnedAt:     formatTime(req.ReturnedAt),
	}
	if req.Status == lendingEntity.StatusCollected || req.Status == lendingEntity.StatusOverdue {
		days := lendingSvc.OverdueDays(req.RequiredByDate, now)
		view.Overdue = days > 0
		view.OverdueDays = int32(days)
		view.Fine = lendingSvc.Fine(days, r.Policy.FineRatePerDay)
	}
	if req.Status == lendingEntity.StatusApproved && req.ApprovedAt != nil {
		remaining, expired := lendingSvc.TimeUntilExpiry(*req.ApprovedAt, r.Policy.HoldWindow, now)
		secs := int32(0)
		if !expired {
			secs = int32(remaining.Seconds())
		}
		view.SecondsUntilExpiry = &secs
	}
	return view
}

func windowView(w *enrollmentEntity.EnrollmentWindow) *EnrollmentWindow {
	return &EnrollmentWindow{
		ProjectId:     w.ProjectID,
		Cap:           int32(w.Cap),
		Status:        string(w.Status),
		ApprovedCount: int32(w.ApprovedCount),
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

// NewSchema parses the schema and returns a graphql-go Schema.
func NewSchema(db *gorm.DB, policy lendingSvc.Policy) (*gql.Schema, error) {
	return gql.ParseSchema(graphql.Schema(), &RootResolver{DB: db, Policy: policy}, gql.UseFieldResolvers())
}

// Handler returns an http.Handler for GraphQL (relay format).
func Handler(schema *gql.Schema) *relay.Handler {
	return &relay.Handler{Schema: schema}
}
