package suggestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"sorter_server/config"
	"sorter_server/core/domain"
	"sorter_server/core/service/settings"
)

type memSettings struct {
	values map[string]string
}

func (m *memSettings) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memSettings) Set(_ context.Context, key, value string) error {
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[key] = value
	return nil
}

type fakeRepo struct {
	suggestions map[string]*domain.Suggestion
	decisions   map[string]string
	moved       []string
	failed      map[string]string
	proposals   map[string]*domain.Proposal
	counts      map[string]int
}

func newFakeRepo(items ...*domain.Suggestion) *fakeRepo {
	r := &fakeRepo{
		suggestions: map[string]*domain.Suggestion{},
		decisions:   map[string]string{},
		failed:      map[string]string{},
		proposals:   map[string]*domain.Proposal{},
	}
	for _, s := range items {
		r.suggestions[s.MessageUID] = s
	}
	return r
}

func (r *fakeRepo) Save(_ context.Context, s *domain.Suggestion) error {
	r.suggestions[s.MessageUID] = s
	return nil
}

func (r *fakeRepo) List(_ context.Context, includeAll bool) ([]*domain.Suggestion, error) {
	var out []*domain.Suggestion
	for _, s := range r.suggestions {
		if includeAll || s.Status == domain.SuggestionOpen {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeRepo) FindByUID(_ context.Context, uid string) (*domain.Suggestion, error) {
	s, ok := r.suggestions[uid]
	if !ok {
		return nil, errors.New("not found")
	}
	return s, nil
}

func (r *fakeRepo) StatusCounts(context.Context) (map[string]int, error) {
	if r.counts != nil {
		return r.counts, nil
	}
	counts := map[string]int{}
	for _, s := range r.suggestions {
		counts[s.Status]++
	}
	return counts, nil
}

func (r *fakeRepo) RecordDecision(_ context.Context, uid, decision string) (*domain.Suggestion, error) {
	s, ok := r.suggestions[uid]
	if !ok {
		return nil, errors.New("not found")
	}
	r.decisions[uid] = decision
	now := time.Now().UTC()
	s.Status = domain.SuggestionDecided
	s.Decision = decision
	s.DecidedAt = &now
	return s, nil
}

func (r *fakeRepo) MarkMoved(_ context.Context, uid string) error {
	r.moved = append(r.moved, uid)
	if s, ok := r.suggestions[uid]; ok {
		s.MoveStatus = domain.MoveMoved
	}
	return nil
}

func (r *fakeRepo) MarkFailed(_ context.Context, uid, message string) error {
	r.failed[uid] = message
	return nil
}

func (r *fakeRepo) UpdateProposal(_ context.Context, uid string, proposal *domain.Proposal) error {
	r.proposals[uid] = proposal
	return nil
}

func (r *fakeRepo) KnownUIDs(context.Context) (map[string]bool, error) { return nil, nil }

type fakeBox struct {
	folders []string
	ensured []string
	moves   []string
	moveErr error
}

func (f *fakeBox) FetchUnseen(context.Context, []string, map[string]map[string]bool, map[string]bool) (map[string]map[string][]byte, error) {
	return nil, nil
}

func (f *fakeBox) MoveMessage(_ context.Context, uid, target, _ string) error {
	if f.moveErr != nil {
		return f.moveErr
	}
	f.moves = append(f.moves, uid+"->"+target)
	return nil
}

func (f *fakeBox) AddTag(context.Context, string, string, string) error { return nil }

func (f *fakeBox) EnsureFolderPath(_ context.Context, path string) (string, error) {
	f.ensured = append(f.ensured, path)
	return path, nil
}

func (f *fakeBox) ListFolders(context.Context) ([]string, error) {
	return f.folders, nil
}

type fakeProfiles struct {
	profiles []domain.FolderProfile
	upserts  []string
}

func (f *fakeProfiles) List(context.Context) ([]domain.FolderProfile, error) {
	return f.profiles, nil
}

func (f *fakeProfiles) Upsert(_ context.Context, name string, _ []float64) error {
	f.upserts = append(f.upserts, name)
	return nil
}

type memCache struct {
	data    map[string][]byte
	deletes []string
}

func (c *memCache) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	_, ok := c.data[key]
	return ok, nil
}

func (c *memCache) SetJSON(_ context.Context, key string, _ any, _ time.Duration) error {
	if c.data == nil {
		c.data = map[string][]byte{}
	}
	c.data[key] = []byte("cached")
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.deletes = append(c.deletes, key)
	delete(c.data, key)
	return nil
}

func newTestService(repo *fakeRepo, box *fakeBox, profiles *fakeProfiles, mode string) *Service {
	cfg := &config.Config{MoveMode: mode}
	resolver := settings.NewResolver(cfg, &memSettings{})
	return NewService(repo, profiles, box, resolver, nil, 0)
}

func openSuggestion(uid string) *domain.Suggestion {
	return &domain.Suggestion{
		MessageUID: uid,
		SrcFolder:  "INBOX",
		Status:     domain.SuggestionOpen,
		Ranked: []domain.RankedCandidate{
			{Name: "Finance/Invoices", Score: 0.91, Rating: 91},
			{Name: "Archive", Score: 0.40, Rating: 40},
		},
	}
}

func TestDecideAcceptMovesInConfirmMode(t *testing.T) {
	repo := newFakeRepo(openSuggestion("42"))
	box := &fakeBox{}
	profiles := &fakeProfiles{profiles: []domain.FolderProfile{{Name: "Finance/Invoices"}}}
	svc := newTestService(repo, box, profiles, domain.MoveModeConfirm)

	result, err := svc.Decide(context.Background(), "42", DecisionRequest{Decision: "accept"})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !result.Moved {
		t.Fatal("expected move in CONFIRM mode")
	}
	if len(box.moves) != 1 || box.moves[0] != "42->Finance/Invoices" {
		t.Fatalf("unexpected moves %v", box.moves)
	}
	if repo.decisions["42"] != DecisionAccept {
		t.Fatalf("decision not recorded: %v", repo.decisions)
	}
	if len(repo.moved) != 1 {
		t.Fatalf("MarkMoved not called: %v", repo.moved)
	}
	if len(profiles.upserts) != 1 || profiles.upserts[0] != "Finance/Invoices" {
		t.Fatalf("profile not refreshed: %v", profiles.upserts)
	}
}

func TestDecideAcceptAutoModeRecordsOnly(t *testing.T) {
	repo := newFakeRepo(openSuggestion("7"))
	box := &fakeBox{}
	svc := newTestService(repo, box, &fakeProfiles{}, domain.MoveModeAuto)

	result, err := svc.Decide(context.Background(), "7", DecisionRequest{})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if result.Moved {
		t.Fatal("AUTO mode must not move at decision time")
	}
	if len(box.moves) != 0 {
		t.Fatalf("unexpected moves %v", box.moves)
	}
	if repo.decisions["7"] != DecisionAccept {
		t.Fatal("empty decision should default to accept")
	}
}

func TestDecideExplicitTargetWins(t *testing.T) {
	repo := newFakeRepo(openSuggestion("9"))
	box := &fakeBox{}
	svc := newTestService(repo, box, &fakeProfiles{}, domain.MoveModeConfirm)

	_, err := svc.Decide(context.Background(), "9", DecisionRequest{
		Decision:     "accept",
		TargetFolder: "Personal/Travel",
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if len(box.moves) != 1 || box.moves[0] != "9->Personal/Travel" {
		t.Fatalf("unexpected moves %v", box.moves)
	}
}

func TestDecideAcceptProposalCreatesFolder(t *testing.T) {
	s := openSuggestion("13")
	s.Proposal = &domain.Proposal{
		Parent:   "Finance",
		Name:     "Receipts",
		FullPath: "Finance/Receipts",
		Status:   domain.ProposalPending,
	}
	repo := newFakeRepo(s)
	box := &fakeBox{}
	svc := newTestService(repo, box, &fakeProfiles{}, domain.MoveModeConfirm)

	_, err := svc.Decide(context.Background(), "13", DecisionRequest{
		Decision:       "accept",
		AcceptProposal: true,
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if len(box.ensured) == 0 || box.ensured[0] != "Finance/Receipts" {
		t.Fatalf("proposal folder not created: %v", box.ensured)
	}
	proposal := repo.proposals["13"]
	if proposal == nil || proposal.Status != domain.ProposalAccepted {
		t.Fatalf("proposal not marked accepted: %+v", proposal)
	}
}

func TestDecideRejectMarksProposalRejected(t *testing.T) {
	s := openSuggestion("21")
	s.Proposal = &domain.Proposal{FullPath: "Misc/New", Status: domain.ProposalPending}
	repo := newFakeRepo(s)
	box := &fakeBox{}
	svc := newTestService(repo, box, &fakeProfiles{}, domain.MoveModeConfirm)

	result, err := svc.Decide(context.Background(), "21", DecisionRequest{Decision: "reject"})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if result.Moved || len(box.moves) != 0 {
		t.Fatal("reject must not move")
	}
	if repo.decisions["21"] != DecisionReject {
		t.Fatalf("decision not recorded: %v", repo.decisions)
	}
	proposal := repo.proposals["21"]
	if proposal == nil || proposal.Status != domain.ProposalRejected {
		t.Fatalf("proposal not marked rejected: %+v", proposal)
	}
}

func TestDecideDryRunChecksFolderOnly(t *testing.T) {
	repo := newFakeRepo(openSuggestion("33"))
	box := &fakeBox{folders: []string{"INBOX", "Finance/Invoices"}}
	svc := newTestService(repo, box, &fakeProfiles{}, domain.MoveModeConfirm)

	result, err := svc.Decide(context.Background(), "33", DecisionRequest{
		Decision: "accept",
		DryRun:   true,
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !result.DryRun || !result.FolderExists {
		t.Fatalf("unexpected dry-run result %+v", result)
	}
	if result.Moved || len(box.moves) != 0 {
		t.Fatal("dry run must not move")
	}
}

func TestDecideMoveFailureMarksFailed(t *testing.T) {
	repo := newFakeRepo(openSuggestion("55"))
	box := &fakeBox{moveErr: errors.New("mailbox gone")}
	svc := newTestService(repo, box, &fakeProfiles{}, domain.MoveModeConfirm)

	_, err := svc.Decide(context.Background(), "55", DecisionRequest{Decision: "accept"})
	if err == nil {
		t.Fatal("expected move error")
	}
	if repo.failed["55"] != "mailbox gone" {
		t.Fatalf("MarkFailed not recorded: %v", repo.failed)
	}
}

func TestDecideRejectsUnknownVerdict(t *testing.T) {
	repo := newFakeRepo(openSuggestion("1"))
	svc := newTestService(repo, &fakeBox{}, &fakeProfiles{}, domain.MoveModeConfirm)

	if _, err := svc.Decide(context.Background(), "1", DecisionRequest{Decision: "maybe"}); err == nil {
		t.Fatal("expected error for unknown decision")
	}
}

func TestDecideUnknownUID(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeBox{}, &fakeProfiles{}, domain.MoveModeConfirm)

	if _, err := svc.Decide(context.Background(), "nope", DecisionRequest{Decision: "accept"}); err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestOverviewUsesCache(t *testing.T) {
	repo := newFakeRepo(openSuggestion("2"))
	cache := &memCache{}
	cfg := &config.Config{MoveMode: domain.MoveModeConfirm}
	resolver := settings.NewResolver(cfg, &memSettings{})
	svc := NewService(repo, &fakeProfiles{}, &fakeBox{}, resolver, cache, time.Minute)

	first, err := svc.Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if first.OpenCount != 1 {
		t.Fatalf("open count = %d, want 1", first.OpenCount)
	}
	if _, ok := cache.data[overviewCacheKey]; !ok {
		t.Fatal("overview not cached")
	}

	// A second read hits the cache, not the repo.
	repo.counts = map[string]int{domain.SuggestionOpen: 99}
	second, err := svc.Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if second.OpenCount == 99 {
		t.Fatal("expected cached overview")
	}

	svc.InvalidateOverview(context.Background())
	if len(cache.deletes) == 0 {
		t.Fatal("invalidation did not delete cache key")
	}
}
