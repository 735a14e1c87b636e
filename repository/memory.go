package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/coverbridge/ichra-enrollment/models"
	"github.com/coverbridge/ichra-enrollment/utils"
	"github.com/google/uuid"
)

// MemoryStore is a transient, map-backed implementation of the
// persistence gateway. IDs auto-increment, nothing survives process
// exit. It exists so the enrollment state machine can be exercised
// without a database; swapping it for the gorm implementation must not
// change handler behavior.
type MemoryStore struct {
	mu sync.Mutex

	users       map[uint]models.User
	businesses  map[uint]models.Business
	plans       map[uint]models.IchraPlan
	enrollments map[uint]models.Enrollment

	nextUserID       uint
	nextBusinessID   uint
	nextPlanID       uint
	nextEnrollmentID uint
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:            make(map[uint]models.User),
		businesses:       make(map[uint]models.Business),
		plans:            make(map[uint]models.IchraPlan),
		enrollments:      make(map[uint]models.Enrollment),
		nextUserID:       1,
		nextBusinessID:   1,
		nextPlanID:       1,
		nextEnrollmentID: 1,
	}
}

// acquire locks the store unless the context already carries a
// transaction on this store (the lock is then held by the TxManager).
func (s *MemoryStore) acquire(ctx context.Context) func() {
	if tx, ok := ctx.Value(TxContextKey).(*MemoryStore); ok && tx == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type memorySnapshot struct {
	users       map[uint]models.User
	businesses  map[uint]models.Business
	plans       map[uint]models.IchraPlan
	enrollments map[uint]models.Enrollment

	nextUserID       uint
	nextBusinessID   uint
	nextPlanID       uint
	nextEnrollmentID uint
}

func (s *MemoryStore) snapshot() memorySnapshot {
	return memorySnapshot{
		users:            copyMap(s.users),
		businesses:       copyMap(s.businesses),
		plans:            copyMap(s.plans),
		enrollments:      copyMap(s.enrollments),
		nextUserID:       s.nextUserID,
		nextBusinessID:   s.nextBusinessID,
		nextPlanID:       s.nextPlanID,
		nextEnrollmentID: s.nextEnrollmentID,
	}
}

func (s *MemoryStore) restore(snap memorySnapshot) {
	s.users = snap.users
	s.businesses = snap.businesses
	s.plans = snap.plans
	s.enrollments = snap.enrollments
	s.nextUserID = snap.nextUserID
	s.nextBusinessID = snap.nextBusinessID
	s.nextPlanID = snap.nextPlanID
	s.nextEnrollmentID = snap.nextEnrollmentID
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MemoryTxManager implements TxManager over a MemoryStore: it holds
// the store lock for the duration of fn and rolls the whole store back
// to its pre-transaction snapshot if fn fails.
type MemoryTxManager struct {
	store *MemoryStore
}

func NewMemoryTxManager(store *MemoryStore) *MemoryTxManager {
	return &MemoryTxManager{store: store}
}

func (m *MemoryTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	snap := m.store.snapshot()

	defer func() {
		if r := recover(); r != nil {
			m.store.restore(snap)
			err = fmt.Errorf("panic in transaction: %v", r)
		}
	}()

	ctx = context.WithValue(ctx, TxContextKey, m.store)

	if err := fn(ctx); err != nil {
		m.store.restore(snap)
		return err
	}

	return nil
}

// sortedIDs returns map keys ascending; callers reverse for newest-first.
func sortedIDs[V any](m map[uint]V) []uint {
	ids := make([]uint, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func paginate[T any](items []*T, limit, offset int) []*T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// MemoryUserRepository implements UserRepository over a MemoryStore
type MemoryUserRepository struct {
	store *MemoryStore
}

func NewMemoryUserRepository(store *MemoryStore) UserRepository {
	return &MemoryUserRepository{store: store}
}

func (r *MemoryUserRepository) ByID(ctx context.Context, id uint) (*models.User, error) {
	defer r.store.acquire(ctx)()

	user, ok := r.store.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (r *MemoryUserRepository) ByEmail(ctx context.Context, email string) (*models.User, error) {
	defer r.store.acquire(ctx)()

	for _, id := range sortedIDs(r.store.users) {
		if r.store.users[id].Email == email {
			user := r.store.users[id]
			return &user, nil
		}
	}
	return nil, nil
}

func (r *MemoryUserRepository) ByUsername(ctx context.Context, username string) (*models.User, error) {
	defer r.store.acquire(ctx)()

	for _, id := range sortedIDs(r.store.users) {
		if r.store.users[id].Username == username {
			user := r.store.users[id]
			return &user, nil
		}
	}
	return nil, nil
}

func (r *MemoryUserRepository) Save(ctx context.Context, entity *models.User) error {
	defer r.store.acquire(ctx)()

	if entity.ID == 0 {
		entity.ID = r.store.nextUserID
		r.store.nextUserID++
	} else if entity.ID >= r.store.nextUserID {
		r.store.nextUserID = entity.ID + 1
	}
	if entity.UUID == uuid.Nil {
		entity.UUID = uuid.New()
	}
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = utils.UTCNow()
	}
	r.store.users[entity.ID] = *entity
	return nil
}

func (r *MemoryUserRepository) ByFilter(ctx context.Context, filter models.UserFilter, orderBy string, limit, offset int) ([]*models.User, error) {
	defer r.store.acquire(ctx)()

	var out []*models.User
	ids := sortedIDs(r.store.users)
	// Newest first, matching the relational default ordering
	for i := len(ids) - 1; i >= 0; i-- {
		user := r.store.users[ids[i]]
		if matchUser(&user, filter) {
			u := user
			out = append(out, &u)
		}
	}
	return paginate(out, limit, offset), nil
}

func (r *MemoryUserRepository) Count(ctx context.Context, filter models.UserFilter) (int64, error) {
	defer r.store.acquire(ctx)()

	var count int64
	for _, user := range r.store.users {
		u := user
		if matchUser(&u, filter) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryUserRepository) Exists(ctx context.Context, filter models.UserFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func matchUser(u *models.User, f models.UserFilter) bool {
	if f.ID != nil && u.ID != *f.ID {
		return false
	}
	if f.UUID != nil && u.UUID != *f.UUID {
		return false
	}
	if f.Username != nil && u.Username != *f.Username {
		return false
	}
	if f.Email != nil && u.Email != *f.Email {
		return false
	}
	if f.Role != nil && u.Role != *f.Role {
		return false
	}
	return true
}

// MemoryBusinessRepository implements BusinessRepository over a MemoryStore
type MemoryBusinessRepository struct {
	store *MemoryStore
}

func NewMemoryBusinessRepository(store *MemoryStore) BusinessRepository {
	return &MemoryBusinessRepository{store: store}
}

func (r *MemoryBusinessRepository) ByID(ctx context.Context, id uint) (*models.Business, error) {
	defer r.store.acquire(ctx)()

	business, ok := r.store.businesses[id]
	if !ok {
		return nil, nil
	}
	return &business, nil
}

func (r *MemoryBusinessRepository) ByUserID(ctx context.Context, userID uint) (*models.Business, error) {
	defer r.store.acquire(ctx)()

	ids := sortedIDs(r.store.businesses)
	for i := len(ids) - 1; i >= 0; i-- {
		if r.store.businesses[ids[i]].UserID == userID {
			business := r.store.businesses[ids[i]]
			return &business, nil
		}
	}
	return nil, nil
}

func (r *MemoryBusinessRepository) ListByUser(ctx context.Context, userID uint) ([]*models.Business, error) {
	defer r.store.acquire(ctx)()

	var out []*models.Business
	ids := sortedIDs(r.store.businesses)
	for i := len(ids) - 1; i >= 0; i-- {
		if r.store.businesses[ids[i]].UserID == userID {
			business := r.store.businesses[ids[i]]
			out = append(out, &business)
		}
	}
	return out, nil
}

func (r *MemoryBusinessRepository) UpdateStatus(ctx context.Context, businessID uint, status string) error {
	defer r.store.acquire(ctx)()

	business, ok := r.store.businesses[businessID]
	if !ok {
		return fmt.Errorf("business %d not found for status update", businessID)
	}
	business.Status = status
	r.store.businesses[businessID] = business
	return nil
}

func (r *MemoryBusinessRepository) Save(ctx context.Context, entity *models.Business) error {
	defer r.store.acquire(ctx)()

	if entity.ID == 0 {
		entity.ID = r.store.nextBusinessID
		r.store.nextBusinessID++
	} else if entity.ID >= r.store.nextBusinessID {
		r.store.nextBusinessID = entity.ID + 1
	}
	if entity.UUID == uuid.Nil {
		entity.UUID = uuid.New()
	}
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = utils.UTCNow()
	}
	r.store.businesses[entity.ID] = *entity
	return nil
}

func (r *MemoryBusinessRepository) ByFilter(ctx context.Context, filter models.BusinessFilter, orderBy string, limit, offset int) ([]*models.Business, error) {
	defer r.store.acquire(ctx)()

	var out []*models.Business
	ids := sortedIDs(r.store.businesses)
	for i := len(ids) - 1; i >= 0; i-- {
		business := r.store.businesses[ids[i]]
		if matchBusiness(&business, filter) {
			b := business
			out = append(out, &b)
		}
	}
	return paginate(out, limit, offset), nil
}

func (r *MemoryBusinessRepository) Count(ctx context.Context, filter models.BusinessFilter) (int64, error) {
	defer r.store.acquire(ctx)()

	var count int64
	for _, business := range r.store.businesses {
		b := business
		if matchBusiness(&b, filter) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryBusinessRepository) Exists(ctx context.Context, filter models.BusinessFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func matchBusiness(b *models.Business, f models.BusinessFilter) bool {
	if f.ID != nil && b.ID != *f.ID {
		return false
	}
	if f.UUID != nil && b.UUID != *f.UUID {
		return false
	}
	if f.UserID != nil && b.UserID != *f.UserID {
		return false
	}
	if f.Status != nil && b.Status != *f.Status {
		return false
	}
	if f.CreatedAfter != nil && b.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && b.CreatedAt.After(*f.CreatedBefore) {
		return false
	}
	return true
}

// MemoryIchraPlanRepository implements IchraPlanRepository over a MemoryStore
type MemoryIchraPlanRepository struct {
	store *MemoryStore
}

func NewMemoryIchraPlanRepository(store *MemoryStore) IchraPlanRepository {
	return &MemoryIchraPlanRepository{store: store}
}

func (r *MemoryIchraPlanRepository) ByID(ctx context.Context, id uint) (*models.IchraPlan, error) {
	defer r.store.acquire(ctx)()

	plan, ok := r.store.plans[id]
	if !ok {
		return nil, nil
	}
	return &plan, nil
}

func (r *MemoryIchraPlanRepository) List(ctx context.Context) ([]*models.IchraPlan, error) {
	defer r.store.acquire(ctx)()

	var out []*models.IchraPlan
	for _, id := range sortedIDs(r.store.plans) {
		plan := r.store.plans[id]
		out = append(out, &plan)
	}
	return out, nil
}

func (r *MemoryIchraPlanRepository) Save(ctx context.Context, entity *models.IchraPlan) error {
	defer r.store.acquire(ctx)()

	if entity.ID == 0 {
		entity.ID = r.store.nextPlanID
		r.store.nextPlanID++
	} else if entity.ID >= r.store.nextPlanID {
		r.store.nextPlanID = entity.ID + 1
	}
	r.store.plans[entity.ID] = *entity
	return nil
}

func (r *MemoryIchraPlanRepository) ByFilter(ctx context.Context, filter models.IchraPlanFilter, orderBy string, limit, offset int) ([]*models.IchraPlan, error) {
	defer r.store.acquire(ctx)()

	var out []*models.IchraPlan
	for _, id := range sortedIDs(r.store.plans) {
		plan := r.store.plans[id]
		if matchPlan(&plan, filter) {
			p := plan
			out = append(out, &p)
		}
	}
	return paginate(out, limit, offset), nil
}

func (r *MemoryIchraPlanRepository) Count(ctx context.Context, filter models.IchraPlanFilter) (int64, error) {
	defer r.store.acquire(ctx)()

	var count int64
	for _, plan := range r.store.plans {
		p := plan
		if matchPlan(&p, filter) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryIchraPlanRepository) Exists(ctx context.Context, filter models.IchraPlanFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func matchPlan(p *models.IchraPlan, f models.IchraPlanFilter) bool {
	if f.ID != nil && p.ID != *f.ID {
		return false
	}
	if f.Name != nil && p.Name != *f.Name {
		return false
	}
	if f.IsPopular != nil && utils.IsTrue(p.IsPopular) != *f.IsPopular {
		return false
	}
	return true
}

// MemoryEnrollmentRepository implements EnrollmentRepository over a MemoryStore
type MemoryEnrollmentRepository struct {
	store *MemoryStore
}

func NewMemoryEnrollmentRepository(store *MemoryStore) EnrollmentRepository {
	return &MemoryEnrollmentRepository{store: store}
}

func (r *MemoryEnrollmentRepository) ByID(ctx context.Context, id uint) (*models.Enrollment, error) {
	defer r.store.acquire(ctx)()

	enrollment, ok := r.store.enrollments[id]
	if !ok {
		return nil, nil
	}
	return &enrollment, nil
}

func (r *MemoryEnrollmentRepository) ListByBusiness(ctx context.Context, businessID uint) ([]*models.Enrollment, error) {
	defer r.store.acquire(ctx)()

	return r.listByBusinessLocked(businessID), nil
}

func (r *MemoryEnrollmentRepository) listByBusinessLocked(businessID uint) []*models.Enrollment {
	var out []*models.Enrollment
	for _, id := range sortedIDs(r.store.enrollments) {
		if r.store.enrollments[id].BusinessID == businessID {
			enrollment := r.store.enrollments[id]
			out = append(out, &enrollment)
		}
	}
	// Newest first: creation timestamp descending, id as tiebreaker
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r *MemoryEnrollmentRepository) LatestByBusiness(ctx context.Context, businessID uint) (*models.Enrollment, error) {
	defer r.store.acquire(ctx)()

	enrollments := r.listByBusinessLocked(businessID)
	if len(enrollments) == 0 {
		return nil, nil
	}
	return enrollments[0], nil
}

func (r *MemoryEnrollmentRepository) UpdateClasses(ctx context.Context, enrollmentID uint, classes models.EmployeeClassList, status string) error {
	defer r.store.acquire(ctx)()

	enrollment, ok := r.store.enrollments[enrollmentID]
	if !ok {
		return fmt.Errorf("enrollment %d not found for update", enrollmentID)
	}
	enrollment.EmployeeClasses = classes
	enrollment.Status = status
	r.store.enrollments[enrollmentID] = enrollment
	return nil
}

func (r *MemoryEnrollmentRepository) UpdateCompletion(ctx context.Context, enrollmentID uint, notes string, status string) error {
	defer r.store.acquire(ctx)()

	enrollment, ok := r.store.enrollments[enrollmentID]
	if !ok {
		return fmt.Errorf("enrollment %d not found for update", enrollmentID)
	}
	enrollment.AdditionalNotes = notes
	enrollment.Status = status
	r.store.enrollments[enrollmentID] = enrollment
	return nil
}

func (r *MemoryEnrollmentRepository) Save(ctx context.Context, entity *models.Enrollment) error {
	defer r.store.acquire(ctx)()

	if entity.ID == 0 {
		entity.ID = r.store.nextEnrollmentID
		r.store.nextEnrollmentID++
	} else if entity.ID >= r.store.nextEnrollmentID {
		r.store.nextEnrollmentID = entity.ID + 1
	}
	if entity.UUID == uuid.Nil {
		entity.UUID = uuid.New()
	}
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = utils.UTCNow()
	}
	if entity.EmployeeClasses == nil {
		entity.EmployeeClasses = models.EmployeeClassList{}
	}
	r.store.enrollments[entity.ID] = *entity
	return nil
}

func (r *MemoryEnrollmentRepository) ByFilter(ctx context.Context, filter models.EnrollmentFilter, orderBy string, limit, offset int) ([]*models.Enrollment, error) {
	defer r.store.acquire(ctx)()

	var out []*models.Enrollment
	ids := sortedIDs(r.store.enrollments)
	for i := len(ids) - 1; i >= 0; i-- {
		enrollment := r.store.enrollments[ids[i]]
		if matchEnrollment(&enrollment, filter) {
			e := enrollment
			out = append(out, &e)
		}
	}
	return paginate(out, limit, offset), nil
}

func (r *MemoryEnrollmentRepository) Count(ctx context.Context, filter models.EnrollmentFilter) (int64, error) {
	defer r.store.acquire(ctx)()

	var count int64
	for _, enrollment := range r.store.enrollments {
		e := enrollment
		if matchEnrollment(&e, filter) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryEnrollmentRepository) Exists(ctx context.Context, filter models.EnrollmentFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func matchEnrollment(e *models.Enrollment, f models.EnrollmentFilter) bool {
	if f.ID != nil && e.ID != *f.ID {
		return false
	}
	if f.UUID != nil && e.UUID != *f.UUID {
		return false
	}
	if f.BusinessID != nil && e.BusinessID != *f.BusinessID {
		return false
	}
	if f.PlanID != nil && e.PlanID != *f.PlanID {
		return false
	}
	if f.Status != nil && e.Status != *f.Status {
		return false
	}
	if f.CreatedAfter != nil && e.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && e.CreatedAt.After(*f.CreatedBefore) {
		return false
	}
	return true
}
