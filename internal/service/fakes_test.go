package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/user-management-api/internal/models"
	"github.com/noah-isme/user-management-api/internal/repository"
	appErrors "github.com/noah-isme/user-management-api/pkg/errors"
)

// memDB is an in-memory stand-in for the relational store. fakeUoW runs each
// unit of work against a clone and only keeps it on success.
type memDB struct {
	users        map[string]models.User
	dialects     map[string][]models.UserDialect
	stats        map[string]models.UserStatistics
	history      []models.EloHistory
	comparisons  map[string]models.JobComparison
	claims       []models.JobClaim
	completions  []models.JobCompletion
	audits       []models.AuditLog
	records      []models.VerificationRecord
	requirements map[string]models.UserVerificationRequirement

	rows     int64
	auditErr error
}

func newMemDB() *memDB {
	return &memDB{
		users:        map[string]models.User{},
		dialects:     map[string][]models.UserDialect{},
		stats:        map[string]models.UserStatistics{},
		comparisons:  map[string]models.JobComparison{},
		requirements: map[string]models.UserVerificationRequirement{},
	}
}

func (db *memDB) clone() *memDB {
	c := newMemDB()
	for k, v := range db.users {
		c.users[k] = v
	}
	for k, v := range db.dialects {
		c.dialects[k] = append([]models.UserDialect(nil), v...)
	}
	for k, v := range db.stats {
		c.stats[k] = v
	}
	for k, v := range db.comparisons {
		c.comparisons[k] = v
	}
	for k, v := range db.requirements {
		c.requirements[k] = v
	}
	c.history = append(c.history, db.history...)
	c.claims = append(c.claims, db.claims...)
	c.completions = append(c.completions, db.completions...)
	c.audits = append(c.audits, db.audits...)
	c.records = append(c.records, db.records...)
	c.auditErr = db.auditErr
	return c
}

func (db *memDB) touch() { db.rows++ }

func (db *memDB) seedUser(u models.User) models.User {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = models.RoleTranscriber
	}
	if u.Status == "" {
		u.Status = models.UserStatusActive
	}
	if u.Availability == "" {
		u.Availability = models.AvailabilityAvailable
	}
	if u.EloRating == 0 {
		u.EloRating = DefaultBaselineRating
	}
	if u.Email == "" {
		u.Email = u.ID + "@example.test"
	}
	if u.IDNumber == "" {
		u.IDNumber = "ID-" + u.ID
	}
	db.users[u.ID] = u
	db.stats[u.ID] = models.UserStatistics{UserID: u.ID}
	return u
}

func (db *memDB) seedUserWithPassword(u models.User, password string) models.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	u.PasswordHash = string(hash)
	return db.seedUser(u)
}

func (db *memDB) repositories() *repository.Repositories {
	return &repository.Repositories{
		Users:                    memUsers{db},
		Dialects:                 memDialects{db},
		Statistics:               memStats{db},
		EloHistory:               memHistory{db},
		Comparisons:              memComparisons{db},
		JobClaims:                memClaims{db},
		JobCompletions:           memCompletions{db},
		AuditLogs:                memAudits{db},
		VerificationRecords:      memRecords{db},
		VerificationRequirements: memRequirements{db},
	}
}

type fakeUoW struct {
	db    *memDB
	calls int
}

func newFakeUoW() *fakeUoW {
	return &fakeUoW{db: newMemDB()}
}

func (u *fakeUoW) Do(ctx context.Context, fn repository.TxFunc) (int64, error) {
	u.calls++
	tx := u.db.clone()
	if err := fn(ctx, tx.repositories()); err != nil {
		return 0, err
	}
	rows := tx.rows
	tx.rows = 0
	*u.db = *tx
	return rows, nil
}

func (u *fakeUoW) Read() *repository.Repositories {
	return u.db.repositories()
}

type memUsers struct{ db *memDB }

func (r memUsers) EmailExists(_ context.Context, email string) (bool, error) {
	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (r memUsers) IDNumberExists(_ context.Context, idNumber string) (bool, error) {
	for _, u := range r.db.users {
		if u.IDNumber == idNumber {
			return true, nil
		}
	}
	return false, nil
}

func (r memUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	u, ok := r.db.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

func (r memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, email) {
			copy := u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r memUsers) LockForUpdate(ctx context.Context, id string) (*models.User, error) {
	return r.FindByID(ctx, id)
}

func (r memUsers) List(_ context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var out []models.User
	for _, u := range r.sorted() {
		if filter.Dialect != "" {
			found := false
			for _, d := range r.db.dialects[u.ID] {
				if d.DialectCode == filter.Dialect {
					found = true
				}
			}
			if !found {
				continue
			}
		}
		if filter.MinElo != nil && u.EloRating < *filter.MinElo {
			continue
		}
		if filter.MaxElo != nil && u.EloRating > *filter.MaxElo {
			continue
		}
		if filter.MaxWorkload != nil {
			active, _ := memClaims{r.db}.CountActiveByUser(context.Background(), u.ID)
			if active > *filter.MaxWorkload {
				continue
			}
		}
		out = append(out, u)
	}
	total := len(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (r memUsers) ListAll(_ context.Context) ([]models.User, error) {
	return r.sorted(), nil
}

func (r memUsers) sorted() []models.User {
	out := make([]models.User, 0, len(r.db.users))
	for _, u := range r.db.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r memUsers) Create(_ context.Context, user *models.User) error {
	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, user.Email) {
			return &pq.Error{Code: "23505", Constraint: "users_email_key"}
		}
		if u.IDNumber == user.IDNumber {
			return &pq.Error{Code: "23505", Constraint: "users_id_number_key"}
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = strings.ToLower(user.Email)
	r.db.users[user.ID] = *user
	r.db.touch()
	return nil
}

func (r memUsers) Update(_ context.Context, user *models.User) error {
	if _, ok := r.db.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	stored := *user
	stored.Dialects, stored.Statistics, stored.EloHistory = nil, nil, nil
	r.db.users[user.ID] = stored
	r.db.touch()
	return nil
}

func (r memUsers) UpdateAvailability(_ context.Context, id string, availability models.Availability) error {
	u, ok := r.db.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Availability = availability
	r.db.users[id] = u
	r.db.touch()
	return nil
}

func (r memUsers) UpdateRating(_ context.Context, id string, rating float64) error {
	u, ok := r.db.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.EloRating = rating
	r.db.users[id] = u
	r.db.touch()
	return nil
}

func (r memUsers) Delete(ctx context.Context, id string) error {
	if _, ok := r.db.users[id]; !ok {
		return sql.ErrNoRows
	}
	if has, _ := r.HasVerificationsAsVerifier(ctx, id); has {
		return fmt.Errorf("delete user: %w", repository.ErrReferenced)
	}
	if has, _ := r.HasEloHistory(ctx, id); has {
		return fmt.Errorf("delete user: %w", repository.ErrReferenced)
	}
	delete(r.db.users, id)
	delete(r.db.dialects, id)
	delete(r.db.stats, id)
	for i := range r.db.audits {
		if r.db.audits[i].UserID != nil && *r.db.audits[i].UserID == id {
			r.db.audits[i].UserID = nil
		}
	}
	r.db.touch()
	return nil
}

func (r memUsers) HasVerificationsAsVerifier(_ context.Context, id string) (bool, error) {
	for _, rec := range r.db.records {
		if rec.VerifierID == id {
			return true, nil
		}
	}
	return false, nil
}

func (r memUsers) HasEloHistory(_ context.Context, id string) (bool, error) {
	for _, h := range r.db.history {
		if h.UserID == id {
			return true, nil
		}
	}
	return false, nil
}

type memDialects struct{ db *memDB }

func (r memDialects) ListByUser(_ context.Context, userID string) ([]models.UserDialect, error) {
	return append([]models.UserDialect(nil), r.db.dialects[userID]...), nil
}

func (r memDialects) ListByUsers(_ context.Context, userIDs []string) (map[string][]models.UserDialect, error) {
	out := make(map[string][]models.UserDialect, len(userIDs))
	for _, id := range userIDs {
		if ds := r.db.dialects[id]; len(ds) > 0 {
			out[id] = append([]models.UserDialect(nil), ds...)
		}
	}
	return out, nil
}

func (r memDialects) Add(_ context.Context, dialect *models.UserDialect) error {
	if dialect.ID == "" {
		dialect.ID = uuid.NewString()
	}
	r.db.dialects[dialect.UserID] = append(r.db.dialects[dialect.UserID], *dialect)
	r.db.touch()
	return nil
}

func (r memDialects) Replace(ctx context.Context, userID string, dialects []models.UserDialect) error {
	delete(r.db.dialects, userID)
	r.db.touch()
	for i := range dialects {
		dialects[i].UserID = userID
		if err := r.Add(ctx, &dialects[i]); err != nil {
			return err
		}
	}
	return nil
}

type memStats struct{ db *memDB }

func (r memStats) Create(_ context.Context, userID string) error {
	r.db.stats[userID] = models.UserStatistics{UserID: userID}
	r.db.touch()
	return nil
}

func (r memStats) FindByUser(_ context.Context, userID string) (*models.UserStatistics, error) {
	s, ok := r.db.stats[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (r memStats) IncrementClaimed(_ context.Context, userID string) error {
	s, ok := r.db.stats[userID]
	if !ok {
		return sql.ErrNoRows
	}
	s.JobsClaimed++
	r.db.stats[userID] = s
	r.db.touch()
	return nil
}

func (r memStats) RecordCompletion(_ context.Context, userID string, durationSeconds int64, accuracy *float64) error {
	s, ok := r.db.stats[userID]
	if !ok {
		return sql.ErrNoRows
	}
	if accuracy != nil {
		s.AverageAccuracy = (s.AverageAccuracy*float64(s.AccuracySamples) + *accuracy) / float64(s.AccuracySamples+1)
		s.AccuracySamples++
	}
	s.JobsCompleted++
	s.TotalDurationSeconds += durationSeconds
	r.db.stats[userID] = s
	r.db.touch()
	return nil
}

func (r memStats) RecordComparison(_ context.Context, userID string, score float64) error {
	s, ok := r.db.stats[userID]
	if !ok {
		return sql.ErrNoRows
	}
	s.AverageScore = (s.AverageScore*float64(s.ComparisonsCount) + score) / float64(s.ComparisonsCount+1)
	s.ComparisonsCount++
	r.db.stats[userID] = s
	r.db.touch()
	return nil
}

type memHistory struct{ db *memDB }

func (r memHistory) Append(_ context.Context, entry *models.EloHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	for _, h := range r.db.history {
		if h.ComparisonID == entry.ComparisonID {
			return &pq.Error{Code: "23505", Constraint: "elo_history_comparison_key"}
		}
	}
	r.db.history = append(r.db.history, *entry)
	r.db.touch()
	return nil
}

func (r memHistory) LatestByUser(_ context.Context, userID string) (*models.EloHistory, error) {
	for i := len(r.db.history) - 1; i >= 0; i-- {
		if r.db.history[i].UserID == userID {
			h := r.db.history[i]
			return &h, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r memHistory) ListByUser(_ context.Context, userID string, limit int) ([]models.EloHistory, error) {
	var out []models.EloHistory
	for i := len(r.db.history) - 1; i >= 0; i-- {
		if r.db.history[i].UserID == userID {
			out = append(out, r.db.history[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type memComparisons struct{ db *memDB }

func (r memComparisons) Create(_ context.Context, c *models.JobComparison) error {
	if _, ok := r.db.users[c.UserID]; !ok {
		return &pq.Error{Code: "23503"}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	r.db.comparisons[c.ID] = *c
	r.db.touch()
	return nil
}

func (r memComparisons) FindByID(_ context.Context, id string) (*models.JobComparison, error) {
	c, ok := r.db.comparisons[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

type memClaims struct{ db *memDB }

func (r memClaims) Create(_ context.Context, claim *models.JobClaim) error {
	for _, c := range r.db.claims {
		if c.JobID == claim.JobID && c.Status == models.JobClaimActive {
			return &pq.Error{Code: "23505", Constraint: "job_claims_active_job_key"}
		}
	}
	if claim.ID == "" {
		claim.ID = uuid.NewString()
	}
	if claim.Status == "" {
		claim.Status = models.JobClaimActive
	}
	r.db.claims = append(r.db.claims, *claim)
	r.db.touch()
	return nil
}

func (r memClaims) FindByID(_ context.Context, id string) (*models.JobClaim, error) {
	for _, c := range r.db.claims {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r memClaims) ActiveByJob(_ context.Context, jobID string) (*models.JobClaim, error) {
	for _, c := range r.db.claims {
		if c.JobID == jobID && c.Status == models.JobClaimActive {
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r memClaims) CountActiveByUser(_ context.Context, userID string) (int, error) {
	n := 0
	for _, c := range r.db.claims {
		if c.UserID == userID && c.Status == models.JobClaimActive {
			n++
		}
	}
	return n, nil
}

func (r memClaims) ListByUser(_ context.Context, userID string) ([]models.JobClaim, error) {
	var out []models.JobClaim
	for _, c := range r.db.claims {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r memClaims) UpdateStatus(_ context.Context, id string, status models.JobClaimStatus, at time.Time) error {
	for i, c := range r.db.claims {
		if c.ID == id && c.Status == models.JobClaimActive {
			r.db.claims[i].Status = status
			r.db.claims[i].ReleasedAt = &at
			r.db.touch()
			return nil
		}
	}
	return sql.ErrNoRows
}

type memCompletions struct{ db *memDB }

func (r memCompletions) Create(_ context.Context, c *models.JobCompletion) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	r.db.completions = append(r.db.completions, *c)
	r.db.touch()
	return nil
}

func (r memCompletions) ListByUser(_ context.Context, userID string) ([]models.JobCompletion, error) {
	var out []models.JobCompletion
	for _, c := range r.db.completions {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

type memAudits struct{ db *memDB }

func (r memAudits) Append(_ context.Context, entry *models.AuditLog) error {
	if r.db.auditErr != nil {
		return r.db.auditErr
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	r.db.audits = append(r.db.audits, *entry)
	r.db.touch()
	return nil
}

func (r memAudits) ListByUser(_ context.Context, userID string, limit int) ([]models.AuditLog, error) {
	var out []models.AuditLog
	for i := len(r.db.audits) - 1; i >= 0; i-- {
		a := r.db.audits[i]
		if a.UserID != nil && *a.UserID == userID {
			out = append(out, a)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type memRecords struct{ db *memDB }

func (r memRecords) Create(_ context.Context, rec *models.VerificationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	r.db.records = append(r.db.records, *rec)
	r.db.touch()
	return nil
}

func (r memRecords) FindByID(_ context.Context, id string) (*models.VerificationRecord, error) {
	for _, rec := range r.db.records {
		if rec.ID == id {
			return &rec, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r memRecords) ListBySubject(_ context.Context, subjectID string) ([]models.VerificationRecord, error) {
	var out []models.VerificationRecord
	for i := len(r.db.records) - 1; i >= 0; i-- {
		if r.db.records[i].SubjectID == subjectID {
			out = append(out, r.db.records[i])
		}
	}
	return out, nil
}

type memRequirements struct{ db *memDB }

func (r memRequirements) Create(_ context.Context, req *models.UserVerificationRequirement) error {
	for _, existing := range r.db.requirements {
		if existing.Name == req.Name {
			return &pq.Error{Code: "23505", Constraint: "user_verification_requirements_name_key"}
		}
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	r.db.requirements[req.ID] = *req
	r.db.touch()
	return nil
}

func (r memRequirements) FindByID(_ context.Context, id string) (*models.UserVerificationRequirement, error) {
	req, ok := r.db.requirements[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &req, nil
}

func (r memRequirements) FindByName(_ context.Context, name string) (*models.UserVerificationRequirement, error) {
	for _, req := range r.db.requirements {
		if req.Name == name {
			return &req, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r memRequirements) List(_ context.Context, activeOnly bool) ([]models.UserVerificationRequirement, error) {
	var out []models.UserVerificationRequirement
	for _, req := range r.db.requirements {
		if activeOnly && !req.Active {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memRequirements) Update(_ context.Context, req *models.UserVerificationRequirement) error {
	if _, ok := r.db.requirements[req.ID]; !ok {
		return sql.ErrNoRows
	}
	r.db.requirements[req.ID] = *req
	r.db.touch()
	return nil
}

func (r memRequirements) Delete(_ context.Context, id string) error {
	if _, ok := r.db.requirements[id]; !ok {
		return sql.ErrNoRows
	}
	for _, rec := range r.db.records {
		if rec.RequirementID != nil && *rec.RequirementID == id {
			return fmt.Errorf("delete verification requirement: %w", repository.ErrReferenced)
		}
	}
	delete(r.db.requirements, id)
	r.db.touch()
	return nil
}

// recordingDispatcher captures dispatched events.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []dispatched
}

type dispatched struct {
	Topic   string
	UserID  string
	Payload map[string]interface{}
}

func (d *recordingDispatcher) Dispatch(_ context.Context, topic, userID string, payload interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	raw, _ := json.Marshal(payload)
	var decoded map[string]interface{}
	_ = json.Unmarshal(raw, &decoded)
	d.events = append(d.events, dispatched{Topic: topic, UserID: userID, Payload: decoded})
}

func (d *recordingDispatcher) topics() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Topic)
	}
	return out
}

// memCache is an in-memory CacheRepository.
type memCache struct {
	values      map[string][]byte
	generations map[string]int64
	getErr      error
	setErr      error
}

func newMemCache() *memCache {
	return &memCache{values: map[string][]byte{}, generations: map[string]int64{}}
}

func (c *memCache) Generation(_ context.Context, key string) (int64, error) {
	if c.getErr != nil {
		return 0, c.getErr
	}
	return c.generations[key], nil
}

func (c *memCache) Invalidate(_ context.Context, key string) error {
	delete(c.values, key)
	c.generations[key]++
	return nil
}

func (c *memCache) SetIfGeneration(ctx context.Context, key string, gen int64, value interface{}, ttl time.Duration) (bool, error) {
	if c.generations[key] != gen {
		return false, nil
	}
	if err := c.Set(ctx, key, value, ttl); err != nil {
		return false, err
	}
	return true, nil
}

func (c *memCache) Get(_ context.Context, key string, dest interface{}) error {
	if c.getErr != nil {
		return c.getErr
	}
	raw, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if c.setErr != nil {
		return c.setErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = raw
	return nil
}

