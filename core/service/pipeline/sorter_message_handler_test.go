package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"sorter_server/config"
	"sorter_server/core/domain"
	"sorter_server/core/port/out"
	"sorter_server/core/service/catalog"
	"sorter_server/core/service/classification"
	"sorter_server/core/service/filter"
	"sorter_server/core/service/settings"
)

type memSettings struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *memSettings) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memSettings) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[key] = value
	return nil
}

type fakeMailbox struct {
	mu       sync.Mutex
	moves    []string // "uid->target"
	tags     []string // "uid:tag"
	ensured  []string
	moveErr  error
	ensureFn func(path string) (string, error)
}

func (f *fakeMailbox) FetchUnseen(context.Context, []string, map[string]map[string]bool, map[string]bool) (map[string]map[string][]byte, error) {
	return nil, nil
}

func (f *fakeMailbox) MoveMessage(_ context.Context, uid, target, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.moveErr != nil {
		return f.moveErr
	}
	f.moves = append(f.moves, uid+"->"+target)
	return nil
}

func (f *fakeMailbox) AddTag(_ context.Context, uid, _, tag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags = append(f.tags, uid+":"+tag)
	return nil
}

func (f *fakeMailbox) EnsureFolderPath(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ensureFn != nil {
		return f.ensureFn(path)
	}
	f.ensured = append(f.ensured, path)
	return path, nil
}

func (f *fakeMailbox) ListFolders(context.Context) ([]string, error) { return nil, nil }

type fakeParser struct {
	msg *domain.MailMessage
	err error
}

func (f *fakeParser) Parse([]byte) (*domain.MailMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	clone := *f.msg
	return &clone, nil
}

type fakeSuggestions struct {
	mu     sync.Mutex
	saved  []*domain.Suggestion
	moved  []string
	failed map[string]string
}

func (f *fakeSuggestions) Save(_ context.Context, s *domain.Suggestion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, s)
	return nil
}

func (f *fakeSuggestions) List(context.Context, bool) ([]*domain.Suggestion, error) {
	return nil, nil
}
func (f *fakeSuggestions) FindByUID(context.Context, string) (*domain.Suggestion, error) {
	return nil, nil
}
func (f *fakeSuggestions) StatusCounts(context.Context) (map[string]int, error) { return nil, nil }
func (f *fakeSuggestions) RecordDecision(context.Context, string, string) (*domain.Suggestion, error) {
	return nil, nil
}

func (f *fakeSuggestions) MarkMoved(_ context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moved = append(f.moved, uid)
	return nil
}

func (f *fakeSuggestions) MarkFailed(_ context.Context, uid, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed == nil {
		f.failed = map[string]string{}
	}
	f.failed[uid] = msg
	return nil
}

func (f *fakeSuggestions) UpdateProposal(context.Context, string, *domain.Proposal) error {
	return nil
}
func (f *fakeSuggestions) KnownUIDs(context.Context) (map[string]bool, error) { return nil, nil }

type fakeProfiles struct {
	mu       sync.Mutex
	profiles []domain.FolderProfile
	upserts  map[string][]float64
}

func (f *fakeProfiles) List(context.Context) ([]domain.FolderProfile, error) {
	return f.profiles, nil
}

func (f *fakeProfiles) Upsert(_ context.Context, name string, centroid []float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upserts == nil {
		f.upserts = map[string][]float64{}
	}
	f.upserts[name] = centroid
	return nil
}

type fakeProcessed struct {
	mu     sync.Mutex
	marked []string
}

func (f *fakeProcessed) Mark(_ context.Context, folder, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, folder+"/"+uid)
	return nil
}

func (f *fakeProcessed) ByFolders(context.Context, []string) (map[string]map[string]bool, error) {
	return map[string]map[string]bool{}, nil
}

type fakeHits struct {
	mu   sync.Mutex
	hits []*domain.FilterHit
}

func (f *fakeHits) Record(_ context.Context, hit *domain.FilterHit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits = append(f.hits, hit)
	return nil
}

type fakeEmbedder struct {
	vector []float64
	err    error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float64, error) {
	return f.vector, f.err
}

type scriptedChat struct {
	reply string
	err   error
}

func (s *scriptedChat) StreamChat(_ context.Context, _ string, fn func(out.ChatChunk) error) error {
	if s.err != nil {
		return s.err
	}
	return fn(out.ChatChunk{Text: s.reply})
}

type handlerFixture struct {
	handler     *Handler
	mailbox     *fakeMailbox
	suggestions *fakeSuggestions
	profiles    *fakeProfiles
	processed   *fakeProcessed
	hits        *fakeHits
	settings    *memSettings
	resolver    *settings.Resolver
}

func newFixture(t *testing.T, chat out.ChatStreamer, embedder out.Embedder, msg *domain.MailMessage) *handlerFixture {
	t.Helper()
	cfg := &config.Config{
		IMAPInbox:           "INBOX",
		AITagPrefix:         "SmartSorter",
		ProcessedTag:        "SmartSorter/Processed",
		MoveMode:            domain.MoveModeConfirm,
		AnalysisModule:      "full",
		MatchThreshold:      50,
		CreateThreshold:     78,
		AutoThreshold:       92,
		MaxSuggestions:      3,
		ContextWindowTokens: 8192,
		ReservedTokens:      512,
		BodySnippetChars:    1200,
		CatalogPathFloor:    20,
		EmbedPromptMaxChars: 8000,
		PlaceholderTokens:   []string{"NAME", "YYYY", "TODO"},
	}
	repo := &memSettings{}
	resolver := settings.NewResolver(cfg, repo)

	catalogStore := catalog.NewStore(repo)
	err := catalogStore.Update(context.Background(), domain.FolderCatalog{
		Templates: []domain.FolderTemplate{
			{Name: "Finance", Children: []domain.FolderChild{{Name: "Invoices"}}},
			{Name: "Travel"},
		},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	classifier := classification.NewClassifier(chat, catalogStore,
		classification.PromptSizing{
			ContextWindowTokens: cfg.ContextWindowTokens,
			ReservedTokens:      cfg.ReservedTokens,
			BodySnippetChars:    cfg.BodySnippetChars,
			CatalogPathFloor:    cfg.CatalogPathFloor,
			MatchThreshold:      cfg.MatchThreshold,
		},
		classification.Thresholds{Match: cfg.MatchThreshold, Create: cfg.CreateThreshold, Max: cfg.MaxSuggestions},
		cfg.PlaceholderTokens)

	mailbox := &fakeMailbox{}
	fx := &handlerFixture{
		mailbox:     mailbox,
		suggestions: &fakeSuggestions{},
		profiles:    &fakeProfiles{},
		processed:   &fakeProcessed{},
		hits:        &fakeHits{},
		settings:    repo,
		resolver:    resolver,
	}
	fx.handler = NewHandler(cfg, HandlerDeps{
		Parser:      &fakeParser{msg: msg},
		Mailbox:     mailbox,
		Filters:     filter.NewStore(repo),
		Embedder:    embedder,
		Classifier:  classifier,
		Tagger:      NewTagger(mailbox, resolver, catalogStore),
		Suggestions: fx.suggestions,
		Profiles:    fx.profiles,
		Processed:   fx.processed,
		FilterHits:  fx.hits,
		Settings:    resolver,
	})
	return fx
}

func invoiceMessage() *domain.MailMessage {
	received := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	return &domain.MailMessage{
		Subject:    "Invoice 4711",
		From:       "billing@example.com",
		Body:       "Please find the invoice attached.",
		Date:       "Thu, 20 Aug 2026 09:00:00 +0000",
		MessageID:  "<msg-1@example.com>",
		ReceivedAt: &received,
	}
}

func TestHandleKeywordMatchShortCircuitsLLM(t *testing.T) {
	ctx := context.Background()
	// a chat stub that fails the test if consulted
	chat := &scriptedChat{err: errors.New("llm must not be called")}
	fx := newFixture(t, chat, &fakeEmbedder{}, invoiceMessage())

	rules := []domain.KeywordFilterRule{{
		Name:         "invoices",
		Enabled:      true,
		TargetFolder: "Finance/Invoices",
		Tags:         []string{"bill"},
		Match:        domain.KeywordMatch{Mode: domain.MatchAny, Terms: []string{"invoice"}},
	}}
	if err := filter.NewStore(fx.settings).Update(ctx, rules); err != nil {
		t.Fatalf("rules: %v", err)
	}

	if err := fx.handler.Handle(ctx, "101", []byte("raw"), "INBOX"); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(fx.mailbox.moves) != 1 || fx.mailbox.moves[0] != "101->Finance/Invoices" {
		t.Errorf("moves = %v", fx.mailbox.moves)
	}
	if len(fx.hits.hits) != 1 || fx.hits.hits[0].RuleName != "invoices" {
		t.Errorf("hits = %+v", fx.hits.hits)
	}
	if len(fx.processed.marked) != 1 || fx.processed.marked[0] != "INBOX/101" {
		t.Errorf("processed = %v", fx.processed.marked)
	}
	if len(fx.suggestions.saved) != 0 {
		t.Error("keyword match must not create a suggestion")
	}
	var sawProcessedTag, sawRuleTag bool
	for _, tag := range fx.mailbox.tags {
		if tag == "101:SmartSorter/Processed" {
			sawProcessedTag = true
		}
		if strings.HasSuffix(tag, "/bill") {
			sawRuleTag = true
		}
	}
	if !sawProcessedTag || !sawRuleTag {
		t.Errorf("tags = %v", fx.mailbox.tags)
	}
}

func TestHandleBelowCreateThresholdClearsRanking(t *testing.T) {
	ctx := context.Background()
	chat := &scriptedChat{reply: `{"ranked":[{"name":"Finance/Invoices","rating":40}]}`}
	fx := newFixture(t, chat, &fakeEmbedder{vector: []float64{1, 0}}, invoiceMessage())

	if err := fx.handler.Handle(ctx, "102", []byte("raw"), "INBOX"); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(fx.suggestions.saved) != 1 {
		t.Fatalf("saved = %d suggestions", len(fx.suggestions.saved))
	}
	s := fx.suggestions.saved[0]
	if len(s.Ranked) != 0 {
		t.Errorf("ranked should be cleared, got %v", s.Ranked)
	}
	if s.Category == nil || s.Category.Status != domain.CategoryUnmatched {
		t.Errorf("category = %+v", s.Category)
	}
	if s.Status != domain.SuggestionOpen || s.MoveStatus != domain.MovePending {
		t.Errorf("status = %q/%q", s.Status, s.MoveStatus)
	}
	if len(fx.mailbox.moves) != 0 {
		t.Errorf("no move expected, got %v", fx.mailbox.moves)
	}
}

func TestHandleAutoMoveAboveThreshold(t *testing.T) {
	ctx := context.Background()
	chat := &scriptedChat{reply: `{"ranked":[{"name":"Finance/Invoices","rating":95}],"extras":["invoice"]}`}
	embedder := &fakeEmbedder{vector: []float64{1, 0}}
	fx := newFixture(t, chat, embedder, invoiceMessage())
	fx.profiles.profiles = []domain.FolderProfile{{Name: "Finance/Invoices", Centroid: []float64{0, 1}}}

	if err := fx.resolver.SetMoveMode(ctx, domain.MoveModeAuto); err != nil {
		t.Fatalf("set mode: %v", err)
	}
	if err := fx.handler.Handle(ctx, "103", []byte("raw"), "INBOX"); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(fx.mailbox.moves) != 1 || fx.mailbox.moves[0] != "103->Finance/Invoices" {
		t.Fatalf("moves = %v", fx.mailbox.moves)
	}
	if len(fx.suggestions.moved) != 1 || fx.suggestions.moved[0] != "103" {
		t.Errorf("moved = %v", fx.suggestions.moved)
	}
	centroid, ok := fx.profiles.upserts["Finance/Invoices"]
	if !ok {
		t.Fatal("profile centroid should be updated after auto move")
	}
	want := domain.BlendCentroid([]float64{0, 1}, []float64{1, 0})
	for i := range want {
		if centroid[i] != want[i] {
			t.Errorf("centroid = %v, want %v", centroid, want)
		}
	}
}

func TestHandleAutoMoveFailureRecorded(t *testing.T) {
	ctx := context.Background()
	chat := &scriptedChat{reply: `{"ranked":[{"name":"Finance/Invoices","rating":95}]}`}
	fx := newFixture(t, chat, &fakeEmbedder{vector: []float64{1, 0}}, invoiceMessage())
	fx.mailbox.moveErr = errors.New("mailbox gone")

	if err := fx.resolver.SetMoveMode(ctx, domain.MoveModeAuto); err != nil {
		t.Fatalf("set mode: %v", err)
	}
	if err := fx.handler.Handle(ctx, "104", []byte("raw"), "INBOX"); err != nil {
		t.Fatalf("auto-move failure must not propagate: %v", err)
	}

	if msg, ok := fx.suggestions.failed["104"]; !ok || msg == "" {
		t.Errorf("failed = %v", fx.suggestions.failed)
	}
	if len(fx.suggestions.moved) != 0 {
		t.Error("failed move must not be marked moved")
	}
}

func TestHandleConfirmModeDoesNotMove(t *testing.T) {
	ctx := context.Background()
	chat := &scriptedChat{reply: `{"ranked":[{"name":"Finance/Invoices","rating":95}]}`}
	fx := newFixture(t, chat, &fakeEmbedder{vector: []float64{1, 0}}, invoiceMessage())

	if err := fx.handler.Handle(ctx, "105", []byte("raw"), "INBOX"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(fx.mailbox.moves) != 0 {
		t.Errorf("confirm mode must not move, got %v", fx.mailbox.moves)
	}
	if len(fx.mailbox.tags) != 0 {
		t.Errorf("confirm mode must not tag, got %v", fx.mailbox.tags)
	}
	if len(fx.suggestions.saved) != 1 {
		t.Errorf("saved = %d", len(fx.suggestions.saved))
	}
}

func TestHandleReplyAutoMovesBelowThreshold(t *testing.T) {
	ctx := context.Background()
	chat := &scriptedChat{reply: `{"ranked":[{"name":"Finance/Invoices","rating":80}]}`}
	msg := invoiceMessage()
	msg.InReplyTo = "<parent@example.com>"
	fx := newFixture(t, chat, &fakeEmbedder{vector: []float64{1, 0}}, msg)

	if err := fx.resolver.SetMoveMode(ctx, domain.MoveModeAuto); err != nil {
		t.Fatalf("set mode: %v", err)
	}
	if err := fx.handler.Handle(ctx, "106", []byte("raw"), "INBOX"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(fx.mailbox.moves) != 1 {
		t.Errorf("thread reply should auto-move regardless of rating, moves = %v", fx.mailbox.moves)
	}
}

func TestHandleModuleOffSkipsEverything(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, &scriptedChat{err: errors.New("must not run")}, &fakeEmbedder{}, invoiceMessage())
	if err := fx.resolver.SetAnalysisModule(ctx, "off"); err != nil {
		t.Fatalf("set module: %v", err)
	}
	if err := fx.handler.Handle(ctx, "107", []byte("raw"), "INBOX"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(fx.suggestions.saved) != 0 || len(fx.mailbox.moves) != 0 || len(fx.mailbox.tags) != 0 {
		t.Error("module off must produce no side effects")
	}
}
