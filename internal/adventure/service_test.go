package adventure

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"backend-nearvibe/internal/filter"
	"backend-nearvibe/internal/shared/apperr"
	"backend-nearvibe/internal/shared/geo"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/redis/go-redis/v9"
)

const (
	advID  = "8a5e2c1e-6f1b-4d3a-9c1e-2b7f0e9d4a11"
	advID2 = "3c0d7e52-1b44-4f0e-8d7a-5e9b1c2a6f30"
	userID = "0b6f3c9a-7d2e-4a51-b8c4-9e1f2d3a4b5c"
)

var adventureCols = []string{"id", "title", "description", "lng", "lat", "address", "duration", "category", "images", "rating", "created_by", "created_at", "updated_at"}

func addAdventureRow(rows *pgxmock.Rows, id, title string, rating *float64) *pgxmock.Rows {
	now := time.Now()
	return rows.AddRow(id, title, "desc", 106.8, -6.2, "Jl. Braga", 90, []string{"Hiking"}, []string{}, rating, userID, now, now)
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events [][]byte
}

func (p *recordingPublisher) Broadcast(topic string, payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, payload)
}

func TestDiscoverNoFilters(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM adventures\s*$`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(23))
	mock.ExpectQuery(`ORDER BY created_at DESC LIMIT \$1 OFFSET \$2`).
		WithArgs(10, 10).
		WillReturnRows(addAdventureRow(pgxmock.NewRows(adventureCols), advID, "Braga walk", nil))

	svc := NewService(mock, nil, nil, nil)
	page, err := svc.Discover(context.Background(), filter.Query{}, 2, 0)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if page.Pagination != (Pagination{Total: 23, Page: 2, Size: 10, PageCount: 3}) {
		t.Fatalf("unexpected pagination: %+v", page.Pagination)
	}
	if len(page.Adventures) != 1 || page.Adventures[0].Rating != nil {
		t.Fatalf("expected one unrated adventure, got %+v", page.Adventures)
	}
	if page.Adventures[0].Location.Coordinates != [2]float64{106.8, -6.2} {
		t.Fatalf("unexpected coordinates %v", page.Adventures[0].Location.Coordinates)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDiscoverAllFacets(t *testing.T) {
	mock := newMock(t)

	d := 120
	r := 4.0
	q := filter.Query{
		Categories:  []string{"Hiking", "Food"},
		MaxDuration: &d,
		MinRating:   &r,
		Near:        &filter.Near{Point: geo.Point{Lng: 106.8, Lat: -6.2}, RadiusMeters: 5000},
	}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM adventures WHERE category && \$1::text\[\] AND duration <= \$2 AND rating >= \$3 AND ST_DWithin\(location, ST_SetSRID\(ST_MakePoint\(\$4,\$5\), 4326\)::geography, \$6\)`).
		WithArgs([]string{"Hiking", "Food"}, 120, 4.0, 106.8, -6.2, 5000.0).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	rating := 4.5
	mock.ExpectQuery(`LIMIT \$7 OFFSET \$8`).
		WithArgs([]string{"Hiking", "Food"}, 120, 4.0, 106.8, -6.2, 5000.0, 100, 0).
		WillReturnRows(addAdventureRow(pgxmock.NewRows(adventureCols), advID, "Braga walk", &rating))

	svc := NewService(mock, nil, nil, nil)
	page, err := svc.Discover(context.Background(), q, -3, 500)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if page.Pagination.Page != 1 || page.Pagination.Size != MaxPageSize || page.Pagination.PageCount != 1 {
		t.Fatalf("unexpected pagination: %+v", page.Pagination)
	}
	if page.Adventures[0].Rating == nil || *page.Adventures[0].Rating != 4.5 {
		t.Fatalf("expected rating 4.5")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDiscoverEmpty(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT COUNT`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`ORDER BY created_at DESC`).
		WithArgs(10, 0).
		WillReturnRows(pgxmock.NewRows(adventureCols))

	svc := NewService(mock, nil, nil, nil)
	page, err := svc.Discover(context.Background(), filter.Query{}, 1, 10)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if page.Adventures == nil || len(page.Adventures) != 0 || page.Pagination.PageCount != 0 {
		t.Fatalf("expected empty non-nil page, got %+v", page)
	}
	raw, _ := json.Marshal(page)
	if string(raw) != `{"adventures":[],"pagination":{"total":0,"page":1,"limit":10,"pages":0}}` {
		t.Fatalf("unexpected body %s", raw)
	}
}

func TestDiscoverGatewayError(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT COUNT`).WillReturnError(errDB)

	svc := NewService(mock, nil, nil, nil)
	_, err := svc.Discover(context.Background(), filter.Query{}, 1, 10)
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}

	mock.ExpectQuery(`SELECT COUNT`).WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery(`ORDER BY created_at DESC`).WithArgs(10, 0).WillReturnError(errDB)
	_, err = svc.Discover(context.Background(), filter.Query{}, 1, 10)
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestDiscoverServesFromCache(t *testing.T) {
	mock := newMock(t)
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer rdb.Close()

	mock.ExpectQuery(`SELECT COUNT`).WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`ORDER BY created_at DESC`).
		WithArgs(10, 0).
		WillReturnRows(addAdventureRow(pgxmock.NewRows(adventureCols), advID, "Braga walk", nil))

	svc := NewService(mock, NewCache(rdb, time.Minute, nil), nil, nil)
	first, err := svc.Discover(context.Background(), filter.Query{}, 1, 10)
	if err != nil {
		t.Fatalf("first discover: %v", err)
	}
	second, err := svc.Discover(context.Background(), filter.Query{}, 1, 10)
	if err != nil {
		t.Fatalf("cached discover: %v", err)
	}
	if len(second.Adventures) != 1 || second.Adventures[0].ID != first.Adventures[0].ID {
		t.Fatalf("expected cached page")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNearby(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`ORDER BY ST_Distance`).
		WithArgs(106.8, -6.2, 10000.0, nearbyLimit).
		WillReturnRows(addAdventureRow(addAdventureRow(pgxmock.NewRows(adventureCols), advID, "near", nil), advID2, "far", nil))

	svc := NewService(mock, nil, nil, nil)
	results, err := svc.Nearby(context.Background(), -6.2, 106.8)
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	if len(results) != 2 || results[0].Title != "near" {
		t.Fatalf("unexpected results %+v", results)
	}

	mock.ExpectQuery(`ORDER BY ST_Distance`).WithArgs(0.0, 0.0, 10000.0, nearbyLimit).WillReturnError(errDB)
	if _, err := svc.Nearby(context.Background(), 0, 0); !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestGet(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, nil, nil, nil)

	if _, err := svc.Get(context.Background(), "not-a-uuid"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found for malformed id, got %v", err)
	}

	mock.ExpectQuery(`FROM adventures WHERE id=\$1`).
		WithArgs(advID).
		WillReturnRows(addAdventureRow(pgxmock.NewRows(adventureCols), advID, "Braga walk", nil))
	a, err := svc.Get(context.Background(), advID)
	if err != nil || a.ID != advID || a.CreatedBy != userID {
		t.Fatalf("get: %+v %v", a, err)
	}

	mock.ExpectQuery(`FROM adventures WHERE id=\$1`).
		WithArgs(advID2).
		WillReturnRows(pgxmock.NewRows(adventureCols))
	if _, err := svc.Get(context.Background(), advID2); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreate(t *testing.T) {
	mock := newMock(t)
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer rdb.Close()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO adventures`).
		WithArgs(pgxmock.AnyArg(), "Braga walk", "old town", 107.6, -6.9, "Bandung", 60, []string{"Culture", "Food"}, []string{}, userID).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	pub := &recordingPublisher{}
	svc := NewService(mock, NewCache(rdb, time.Minute, nil), pub, nil)
	a, err := svc.Create(context.Background(), userID, CreateInput{
		Title:       "  Braga walk ",
		Description: "old town",
		Location:    Location{Coordinates: [2]float64{107.6, -6.9}, Address: "Bandung"},
		Duration:    60,
		Category:    []string{"Culture", " Food", "Culture", ""},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.CreatedBy != userID || a.Location.Type != "Point" || a.Rating != nil {
		t.Fatalf("unexpected adventure %+v", a)
	}

	gen, _ := srv.Get(generationKey)
	if gen != "1" {
		t.Fatalf("expected cache generation bump, got %q", gen)
	}

	if len(pub.topics) != 1 || pub.topics[0] != Topic {
		t.Fatalf("expected one event on %s", Topic)
	}
	var ev CreatedEvent
	if err := json.Unmarshal(pub.events[0], &ev); err != nil || ev.Type != EventCreated || ev.Adventure.ID != a.ID {
		t.Fatalf("unexpected event %s (%v)", pub.events[0], err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(nil, nil, nil, nil)
	good := CreateInput{Title: "x", Duration: 30, Category: []string{"Food"}, Location: Location{Coordinates: [2]float64{1, 1}}}

	if _, err := svc.Create(context.Background(), "", good); !errors.Is(err, apperr.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}

	bad := []func(CreateInput) CreateInput{
		func(in CreateInput) CreateInput { in.Title = " "; return in },
		func(in CreateInput) CreateInput { in.Duration = 0; return in },
		func(in CreateInput) CreateInput { in.Category = []string{" "}; return in },
		func(in CreateInput) CreateInput { in.Location.Coordinates = [2]float64{181, 0}; return in },
		func(in CreateInput) CreateInput { in.Location.Coordinates = [2]float64{0, -91}; return in },
	}
	for i, mutate := range bad {
		if _, err := svc.Create(context.Background(), userID, mutate(good)); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestCreateInsertError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`INSERT INTO adventures`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errDB)

	pub := &recordingPublisher{}
	svc := NewService(mock, nil, pub, nil)
	_, err := svc.Create(context.Background(), userID, CreateInput{Title: "x", Duration: 30, Category: []string{"Food"}})
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("failed create must not publish")
	}
}

func TestAddReviewRecomputesRating(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs(advID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`INSERT INTO adventure_reviews`).
		WithArgs(pgxmock.AnyArg(), advID, userID, 4, "lovely").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow("rev-1", time.Now()))
	mock.ExpectQuery(`SELECT rating FROM adventure_reviews`).WithArgs(advID).
		WillReturnRows(pgxmock.NewRows([]string{"rating"}).AddRow(4).AddRow(5).AddRow(3))
	avg := 4.0
	mock.ExpectExec(`UPDATE adventures SET rating`).
		WithArgs(advID, &avg).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	svc := NewService(mock, nil, nil, nil)
	review, err := svc.AddReview(context.Background(), userID, advID, ReviewInput{Rating: 4, Comment: "lovely"})
	if err != nil {
		t.Fatalf("add review: %v", err)
	}
	if review.ID != "rev-1" || review.UserID != userID {
		t.Fatalf("unexpected review %+v", review)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAddReviewMissingAdventure(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs(advID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	svc := NewService(mock, nil, nil, nil)
	_, err := svc.AddReview(context.Background(), userID, advID, ReviewInput{Rating: 5})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAddReviewRollsBackOnFailure(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs(advID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`INSERT INTO adventure_reviews`).
		WithArgs(pgxmock.AnyArg(), advID, userID, 5, "").
		WillReturnError(errDB)
	mock.ExpectRollback()

	svc := NewService(mock, nil, nil, nil)
	_, err := svc.AddReview(context.Background(), userID, advID, ReviewInput{Rating: 5})
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAddReviewValidation(t *testing.T) {
	svc := NewService(nil, nil, nil, nil)
	if _, err := svc.AddReview(context.Background(), "", advID, ReviewInput{Rating: 3}); !errors.Is(err, apperr.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	for _, r := range []int{0, 6, -1} {
		if _, err := svc.AddReview(context.Background(), userID, advID, ReviewInput{Rating: r}); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("rating %d: expected validation error, got %v", r, err)
		}
	}
	if _, err := svc.AddReview(context.Background(), userID, "nope", ReviewInput{Rating: 3}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReviews(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT id, adventure_id, user_id, rating, comment, created_at`).
		WithArgs(advID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "adventure_id", "user_id", "rating", "comment", "created_at"}).
			AddRow("rev-1", advID, userID, 5, "nice", time.Now()))

	svc := NewService(mock, nil, nil, nil)
	reviews, err := svc.Reviews(context.Background(), advID)
	if err != nil || len(reviews) != 1 {
		t.Fatalf("reviews: %v", err)
	}

	mock.ExpectQuery(`SELECT id, adventure_id`).WithArgs(advID).WillReturnError(errDB)
	if _, err := svc.Reviews(context.Background(), advID); !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestReconcileRatings(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT adventure_id::text, rating FROM adventure_reviews`).
		WillReturnRows(pgxmock.NewRows([]string{"adventure_id", "rating"}).
			AddRow(advID, 2).AddRow(advID, 3).AddRow(advID2, 5))
	first := 2.5
	second := 5.0
	mock.ExpectExec(`UPDATE adventures SET rating=\$2`).WithArgs(advID, &first).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE adventures SET rating=\$2`).WithArgs(advID2, &second).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE adventures SET rating=NULL`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	svc := NewService(mock, nil, nil, nil)
	n, err := svc.ReconcileRatings(context.Background())
	if err != nil || n != 3 {
		t.Fatalf("expected 3 touched, got %d (%v)", n, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReconcileRatingsError(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT adventure_id::text`).WillReturnError(errDB)
	mock.ExpectRollback()

	svc := NewService(mock, nil, nil, nil)
	if _, err := svc.ReconcileRatings(context.Background()); !errors.Is(err, errDB) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestReviewsRowError(t *testing.T) {
	mock := newMock(t)
	cols := []string{"id", "adventure_id", "user_id", "rating", "comment", "created_at"}
	mock.ExpectQuery(`SELECT id, adventure_id, user_id, rating, comment, created_at`).
		WithArgs(advID).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("rev-1", advID, userID, 5, "nice", time.Now()).
			AddRow("rev-2", advID, userID, 4, "ok", time.Now()).
			RowError(1, errDB))

	svc := NewService(mock, nil, nil, nil)
	if _, err := svc.Reviews(context.Background(), advID); !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("expected upstream error for interrupted rows, got %v", err)
	}
}

func TestDiscoverCapsHugePage(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT COUNT`).WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`ORDER BY created_at DESC`).
		WithArgs(10, (MaxPage-1)*10).
		WillReturnRows(pgxmock.NewRows(adventureCols))

	svc := NewService(mock, nil, nil, nil)
	page, err := svc.Discover(context.Background(), filter.Query{}, math.MaxInt, 10)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if page.Pagination.Page != MaxPage || len(page.Adventures) != 0 {
		t.Fatalf("expected empty capped page, got %+v", page.Pagination)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// invalidatingQuerier bumps the cache generation once the page query has
// been answered, the way a concurrent Create would.
type invalidatingQuerier struct {
	pgxmock.PgxPoolIface
	cache *Cache
}

func (q invalidatingQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	rows, err := q.PgxPoolIface.Query(ctx, sql, args...)
	q.cache.Invalidate(ctx)
	return rows, err
}

func TestDiscoverDoesNotCacheAcrossInvalidate(t *testing.T) {
	mock := newMock(t)
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer rdb.Close()
	cache := NewCache(rdb, time.Minute, nil)

	mock.ExpectQuery(`SELECT COUNT`).WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`ORDER BY created_at DESC`).
		WithArgs(10, 0).
		WillReturnRows(addAdventureRow(pgxmock.NewRows(adventureCols), advID, "old snapshot", nil))

	svc := NewService(invalidatingQuerier{PgxPoolIface: mock, cache: cache}, cache, nil, nil)
	if _, err := svc.Discover(context.Background(), filter.Query{}, 1, 10); err != nil {
		t.Fatalf("discover: %v", err)
	}

	if p, ok := lookup(cache, filter.Query{}, 1, 10); ok {
		t.Fatalf("page read before a write was cached under the new generation: %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

var errDB = errors.New("db error")
