package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/repositories"
	"github.com/Dosada05/tournament-engine/storage"
	"github.com/jonboulle/clockwork"
)

// memDB is the shared state behind the fake repositories. fakeTx snapshots it
// and restores the snapshot when the transaction function fails.
type memDB struct {
	mu           sync.Mutex
	tournaments  map[string]*models.Tournament
	matches      map[string]*models.Match
	participants map[string][]*models.Participant
	holds        map[string]*models.EntryFeeHold
	wallets      map[string]int64
	users        map[string]*models.User
}

func newMemDB() *memDB {
	return &memDB{
		tournaments:  make(map[string]*models.Tournament),
		matches:      make(map[string]*models.Match),
		participants: make(map[string][]*models.Participant),
		holds:        make(map[string]*models.EntryFeeHold),
		wallets:      make(map[string]int64),
		users:        make(map[string]*models.User),
	}
}

func cloneMatch(m *models.Match) *models.Match {
	c := *m
	if m.Metadata != nil {
		c.Metadata = make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func cloneTournament(t *models.Tournament) *models.Tournament {
	c := *t
	return &c
}

type memSnapshot struct {
	tournaments map[string]*models.Tournament
	matches     map[string]*models.Match
	holds       map[string]*models.EntryFeeHold
	wallets     map[string]int64
}

func (db *memDB) snapshot() memSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	s := memSnapshot{
		tournaments: make(map[string]*models.Tournament, len(db.tournaments)),
		matches:     make(map[string]*models.Match, len(db.matches)),
		holds:       make(map[string]*models.EntryFeeHold, len(db.holds)),
		wallets:     make(map[string]int64, len(db.wallets)),
	}
	for k, v := range db.tournaments {
		s.tournaments[k] = cloneTournament(v)
	}
	for k, v := range db.matches {
		s.matches[k] = cloneMatch(v)
	}
	for k, v := range db.holds {
		h := *v
		s.holds[k] = &h
	}
	for k, v := range db.wallets {
		s.wallets[k] = v
	}
	return s
}

func (db *memDB) restore(s memSnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.tournaments, db.matches, db.holds, db.wallets = s.tournaments, s.matches, s.holds, s.wallets
}

type fakeTx struct {
	db      *memDB
	commits int
	aborts  int
}

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context, exec repositories.SQLExecutor) error) error {
	snap := f.db.snapshot()
	if err := fn(ctx, nil); err != nil {
		f.db.restore(snap)
		f.aborts++
		return err
	}
	f.commits++
	return nil
}

type fakeMatchRepo struct {
	db *memDB
	// beforeUpdate runs ahead of every Update; tests use it to simulate a
	// concurrent writer.
	beforeUpdate func(id string)
	bulkErr      error
}

func (r *fakeMatchRepo) BulkCreate(_ context.Context, _ repositories.SQLExecutor, matches []*models.Match) error {
	if r.bulkErr != nil {
		return r.bulkErr
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, m := range matches {
		r.db.matches[m.ID] = cloneMatch(m)
	}
	return nil
}

func (r *fakeMatchRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id string) (*models.Match, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m, ok := r.db.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return cloneMatch(m), nil
}

func (r *fakeMatchRepo) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID string, filter repositories.MatchFilter) ([]*models.Match, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]*models.Match, 0)
	for _, m := range r.db.matches {
		if m.TournamentID != tournamentID {
			continue
		}
		if filter.Round != nil && m.RoundNumber != *filter.Round {
			continue
		}
		if filter.Status != nil && m.Status != *filter.Status {
			continue
		}
		out = append(out, cloneMatch(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RoundNumber != out[j].RoundNumber {
			return out[i].RoundNumber < out[j].RoundNumber
		}
		return out[i].MatchNumberInRound < out[j].MatchNumberInRound
	})
	return out, nil
}

func (r *fakeMatchRepo) Update(_ context.Context, _ repositories.SQLExecutor, m *models.Match) error {
	if r.beforeUpdate != nil {
		r.beforeUpdate(m.ID)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stored, ok := r.db.matches[m.ID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if stored.Version != m.Version {
		return fmt.Errorf("%w: match %s", repositories.ErrMatchVersionConflict, m.ID)
	}
	m.Version++
	r.db.matches[m.ID] = cloneMatch(m)
	return nil
}

// bumpVersion simulates another writer committing an update to match id.
func (db *memDB) bumpVersion(id string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if m, ok := db.matches[id]; ok {
		m.Version++
	}
}

type fakeTournamentRepo struct {
	db *memDB
}

func (r *fakeTournamentRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id string) (*models.Tournament, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	return cloneTournament(t), nil
}

func (r *fakeTournamentRepo) GetForUpdate(ctx context.Context, exec repositories.SQLExecutor, id string) (*models.Tournament, error) {
	return r.GetByID(ctx, exec, id)
}

func (r *fakeTournamentRepo) ListByStatus(_ context.Context, _ repositories.SQLExecutor, status models.TournamentStatus) ([]*models.Tournament, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*models.Tournament
	for _, t := range r.db.tournaments {
		if t.Status == status {
			out = append(out, cloneTournament(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTournamentRepo) Update(_ context.Context, _ repositories.SQLExecutor, t *models.Tournament) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.tournaments[t.ID]; !ok {
		return repositories.ErrTournamentNotFound
	}
	r.db.tournaments[t.ID] = cloneTournament(t)
	return nil
}

type fakeParticipantRepo struct {
	db *memDB
}

func (r *fakeParticipantRepo) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID string, status *models.ParticipantStatus) ([]*models.Participant, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]*models.Participant, 0)
	for _, p := range r.db.participants[tournamentID] {
		if status != nil && p.Status != *status {
			continue
		}
		c := *p
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Seed, out[j].Seed
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return *a < *b
	})
	return out, nil
}

type fakeEntryFeeRepo struct {
	db *memDB
	// failMark makes MarkRefunded fail for the given hold id.
	failMark string
}

func (r *fakeEntryFeeRepo) ListHeldByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID string) ([]*models.EntryFeeHold, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*models.EntryFeeHold
	for _, h := range r.db.holds {
		if h.TournamentID == tournamentID && h.Status == models.EntryFeeHeld {
			c := *h
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeEntryFeeRepo) MarkRefunded(_ context.Context, _ repositories.SQLExecutor, holdID string, at time.Time) error {
	if holdID == r.failMark {
		return errors.New("ledger unavailable")
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	h, ok := r.db.holds[holdID]
	if !ok || h.Status != models.EntryFeeHeld {
		return repositories.ErrEntryFeeHoldNotFound
	}
	h.Status = models.EntryFeeRefunded
	h.UpdatedAt = at
	return nil
}

func (r *fakeEntryFeeRepo) CreditWallet(_ context.Context, _ repositories.SQLExecutor, userID string, amount int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.wallets[userID]; !ok {
		return repositories.ErrWalletNotFound
	}
	r.db.wallets[userID] += amount
	return nil
}

type fakeUserRepo struct {
	db *memDB
}

func (r *fakeUserRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id string) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

type publishedEvent struct {
	TournamentID string
	Type         string
	Payload      interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(tournamentID, eventType string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{TournamentID: tournamentID, Type: eventType, Payload: payload})
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fakeUploader struct {
	uploads map[string][]byte
	err     error
}

func (u *fakeUploader) Upload(_ context.Context, key string, _ string, reader io.Reader) (*storage.UploadResult, error) {
	if u.err != nil {
		return nil, u.err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, err
	}
	if u.uploads == nil {
		u.uploads = make(map[string][]byte)
	}
	u.uploads[key] = buf.Bytes()
	return &storage.UploadResult{Key: key, Location: u.GetPublicURL(key)}, nil
}

func (u *fakeUploader) Delete(_ context.Context, key string) error {
	delete(u.uploads, key)
	return nil
}

func (u *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}

var testNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

// testEnv wires every service against one memDB.
type testEnv struct {
	db           *memDB
	tx           *fakeTx
	matches      *fakeMatchRepo
	tournaments  *fakeTournamentRepo
	participants *fakeParticipantRepo
	fees         *fakeEntryFeeRepo
	users        *fakeUserRepo
	publisher    *recordingPublisher
	clock        *clockwork.FakeClock
}

func newTestEnv() *testEnv {
	db := newMemDB()
	env := &testEnv{
		db:           db,
		tx:           &fakeTx{db: db},
		matches:      &fakeMatchRepo{db: db},
		tournaments:  &fakeTournamentRepo{db: db},
		participants: &fakeParticipantRepo{db: db},
		fees:         &fakeEntryFeeRepo{db: db},
		users:        &fakeUserRepo{db: db},
		publisher:    &recordingPublisher{},
		clock:        clockwork.NewFakeClockAt(testNow),
	}
	env.addUser("admin", models.RoleAdmin)
	env.addUser("org", models.RoleOrganizer)
	env.addUser("org2", models.RoleOrganizer)
	env.addUser("player", models.RolePlayer)
	return env
}

func (e *testEnv) addUser(id string, role models.UserRole) {
	e.db.users[id] = &models.User{ID: id, Nickname: id, Role: role, CreatedAt: testNow}
}

func (e *testEnv) addTournament(t *models.Tournament) *models.Tournament {
	if t.OrganizerID == "" {
		t.OrganizerID = "org"
	}
	if t.BracketType == "" {
		t.BracketType = models.BracketSingleElimination
	}
	e.db.tournaments[t.ID] = cloneTournament(t)
	return t
}

// addEntrants registers confirmed seeded users seed1..seedN.
func (e *testEnv) addEntrants(tournamentID string, n int) []string {
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		seed := i + 1
		id := fmt.Sprintf("seed%d", seed)
		ids[i] = id
		e.db.participants[tournamentID] = append(e.db.participants[tournamentID], &models.Participant{
			ID:            "tp-" + id,
			TournamentID:  tournamentID,
			ParticipantID: id,
			Type:          models.ParticipantUser,
			Seed:          &seed,
			Status:        models.ParticipantStatusConfirmed,
			CreatedAt:     testNow,
		})
	}
	return ids
}

func (e *testEnv) tournament(id string) *models.Tournament {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	return cloneTournament(e.db.tournaments[id])
}

func (e *testEnv) match(id string) *models.Match {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	return cloneMatch(e.db.matches[id])
}

// matchAt returns the stored match at round/number of tournamentID.
func (e *testEnv) matchAt(tournamentID string, round, number int) *models.Match {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	for _, m := range e.db.matches {
		if m.TournamentID == tournamentID && m.RoundNumber == round && m.MatchNumberInRound == number {
			return cloneMatch(m)
		}
	}
	return nil
}

func (e *testEnv) authorizer() ManagerAuthorizer {
	return NewUserAuthorizer(e.users)
}

func (e *testEnv) decisionService(cfg DecisionConfig) DecisionService {
	return NewDecisionService(
		e.tx, e.tournaments, e.participants, e.matches,
		e.authorizer(),
		NewEntryFeeRefunder(e.fees, e.clock, nil),
		brackets.NewSingleEliminationGenerator(),
		NewProgression(nil),
		e.publisher, e.clock, cfg, nil,
	)
}

func (e *testEnv) matchService() MatchService {
	return NewMatchService(e.tx, e.matches, e.tournaments, e.authorizer(), NewProgression(nil), e.publisher, e.clock, nil)
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }
