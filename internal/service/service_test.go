package service

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	config "github.com/maheshrc27/autopost/configs"
	"github.com/maheshrc27/autopost/internal/clock"
	"github.com/maheshrc27/autopost/internal/models"
	"github.com/maheshrc27/autopost/internal/platform"
	"github.com/maheshrc27/autopost/internal/repository"
	"github.com/maheshrc27/autopost/internal/storage"
	"github.com/maheshrc27/autopost/internal/transfer"
	"github.com/maheshrc27/autopost/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeGenerator struct {
	mu       sync.Mutex
	calls    int
	text     string
	image    []byte
	keywords []string
	err      error
}

func (g *fakeGenerator) GenerateText(ctx context.Context, c *models.Category) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.text, g.err
}

func (g *fakeGenerator) GenerateImage(ctx context.Context, c *models.Category, text string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.image, g.err
}

func (g *fakeGenerator) CollectKeywords(ctx context.Context, c *models.Category) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.keywords, g.err
}

func (g *fakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeArchive struct{}

func (fakeArchive) ArchiveImage(ctx context.Context, userID int64, image []byte) (string, error) {
	return "https://cdn.example.com/generated/1.png", nil
}

type fakePublisher struct {
	mu       sync.Mutex
	requests []*platform.Request
	publish  func(req *platform.Request) *platform.Result
}

func (p *fakePublisher) Type() models.PlatformType { return models.PlatformTelegram }

func (p *fakePublisher) Publish(ctx context.Context, req *platform.Request) *platform.Result {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	if p.publish != nil {
		return p.publish(req)
	}
	return &platform.Result{Success: true, URL: "https://t.me/bakery/1"}
}

func (p *fakePublisher) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

type fakeNotifier struct {
	sent map[int64][]string
}

func (n *fakeNotifier) Notify(ctx context.Context, chatID int64, text string) error {
	if n.sent == nil {
		n.sent = map[int64][]string{}
	}
	n.sent[chatID] = append(n.sent[chatID], text)
	return nil
}

type env struct {
	cfg        config.Config
	db         *sqlx.DB
	guard      *storage.Guard
	clock      *clock.Fake
	ledger     LedgerService
	generator  *fakeGenerator
	publisher  *fakePublisher
	registry   *platform.Registry
	records    repository.PublishRecordRepository
	user       *models.User
	category   *models.Category
	connection *models.PlatformConnection
}

func testConfig() config.Config {
	return config.Config{
		SecretKey:     testSecret,
		BotSecret:     "bot-secret",
		TokensPerUnit: 100,
		TokenDuration: time.Hour,
		WelcomeTokens: 50,
		Pricing:       config.Pricing{Text: 10, Image: 30, Keywords: 5},
	}
}

func newEnv(t *testing.T, cfg config.Config) *env {
	t.Helper()
	ctx := context.Background()

	db, err := storage.Open(storage.DriverSQLite, filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	e := &env{
		cfg:       cfg,
		db:        db,
		guard:     storage.NewGuard(db, storage.GuardConfig{MaxRetries: 3, RetryDelay: time.Millisecond, StaleAfter: time.Minute}),
		clock:     clock.NewFake(time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)),
		generator: &fakeGenerator{text: "# Sourdough\nFeed the starter twice a day.", image: []byte("\x89PNG\r\n\x1a\n")},
		publisher: &fakePublisher{},
		records:   repository.NewPublishRecordRepository(db),
	}
	e.registry = platform.NewRegistry(e.publisher)
	e.ledger = NewLedgerService(cfg, e.guard, repository.NewBalanceRepository(db))

	sealed, err := utils.SealJSON(&models.Credentials{BotToken: "123:abc"}, []byte(testSecret))
	require.NoError(t, err)

	e.user = &models.User{TelegramChatID: 1001, Username: "alice"}
	_, err = repository.NewUserRepository(db).Create(ctx, nil, e.user)
	require.NoError(t, err)
	account := &models.Account{UserID: e.user.ID, Name: "bakery"}
	_, err = repository.NewAccountRepository(db).Create(ctx, nil, account)
	require.NoError(t, err)
	e.category = &models.Category{AccountID: account.ID, Name: "recipes", Keywords: "bread"}
	_, err = repository.NewCategoryRepository(db).Create(ctx, nil, e.category)
	require.NoError(t, err)
	e.connection = &models.PlatformConnection{
		AccountID:    account.ID,
		PlatformType: models.PlatformTelegram,
		ExternalID:   "@bakery",
		Credentials:  sealed,
		IsActive:     true,
	}
	_, err = repository.NewConnectionRepository(db).Create(ctx, nil, e.connection)
	require.NoError(t, err)

	return e
}

func (e *env) publishService() PublishService {
	return NewPublishService(
		e.cfg,
		e.guard,
		repository.NewCategoryRepository(e.db),
		repository.NewAccountRepository(e.db),
		repository.NewConnectionRepository(e.db),
		repository.NewClaimRepository(e.db),
		e.records,
		e.ledger,
		e.generator,
		fakeArchive{},
		e.registry,
		e.clock,
	)
}

func (e *env) target() Target {
	return Target{CategoryID: e.category.ID, PlatformType: models.PlatformTelegram, PlatformID: e.connection.ID}
}

func (e *env) listRecords(t *testing.T) []*models.PublishRecord {
	t.Helper()
	records, err := e.records.List(context.Background(), nil, models.PublishRecordFilter{UserID: e.user.ID})
	require.NoError(t, err)
	return records
}

func (e *env) balance(t *testing.T) int64 {
	t.Helper()
	b, err := e.ledger.Balance(context.Background(), e.user.ID)
	require.NoError(t, err)
	return b
}

func TestLedger_DebitAndRefundRoundTrip(t *testing.T) {
	e := newEnv(t, testConfig())
	ctx := context.Background()

	assert.Equal(t, int64(50), e.balance(t))

	require.NoError(t, e.ledger.Debit(ctx, e.user.ID, 30))
	assert.Equal(t, int64(20), e.balance(t))

	err := e.ledger.Debit(ctx, e.user.ID, 30)
	assert.ErrorIs(t, err, ErrInsufficientTokens)
	assert.Equal(t, int64(20), e.balance(t))

	require.NoError(t, e.ledger.Credit(ctx, e.user.ID, 30))
	assert.Equal(t, int64(50), e.balance(t))
}

func TestLedger_SpendRefundsOnPanic(t *testing.T) {
	e := newEnv(t, testConfig())

	err := e.ledger.Spend(context.Background(), e.user.ID, "test", 20, func(ctx context.Context) error {
		panic("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, int64(50), e.balance(t))
}

func TestLedger_TopUpIsCreditedOnce(t *testing.T) {
	e := newEnv(t, testConfig())
	ctx := context.Background()

	credited, err := e.ledger.TopUp(ctx, e.user.ID, 100, "pay_1")
	require.NoError(t, err)
	assert.True(t, credited)

	credited, err = e.ledger.TopUp(ctx, e.user.ID, 100, "pay_1")
	require.NoError(t, err)
	assert.False(t, credited)

	assert.Equal(t, int64(150), e.balance(t))
}

func TestGeneration_ShortBalanceRejectsBeforeGenerating(t *testing.T) {
	cfg := testConfig()
	cfg.WelcomeTokens = 25
	e := newEnv(t, cfg)
	svc := NewGenerationService(e.guard, repository.NewCategoryRepository(e.db), repository.NewAccountRepository(e.db), e.ledger, e.generator, fakeArchive{})

	_, err := svc.Generate(context.Background(), e.user.ID, &transfer.GenerateRequest{CategoryID: e.category.ID, Image: true})

	assert.ErrorIs(t, err, ErrInsufficientTokens)
	assert.Zero(t, e.generator.Calls())
	assert.Equal(t, int64(25), e.balance(t))
}

func TestGeneration_ChargesRequestedOperations(t *testing.T) {
	e := newEnv(t, testConfig())
	e.generator.keywords = []string{"bread", "rye"}
	svc := NewGenerationService(e.guard, repository.NewCategoryRepository(e.db), repository.NewAccountRepository(e.db), e.ledger, e.generator, fakeArchive{})

	resp, err := svc.Generate(context.Background(), e.user.ID, &transfer.GenerateRequest{CategoryID: e.category.ID, Text: true, Keywords: true})

	require.NoError(t, err)
	assert.Equal(t, int64(15), resp.TokensSpent)
	assert.Equal(t, int64(35), resp.Balance)
	assert.Equal(t, []string{"bread", "rye"}, resp.Keywords)
	assert.NotEmpty(t, resp.Text)
}

func TestGeneration_OtherUsersCategory(t *testing.T) {
	e := newEnv(t, testConfig())
	svc := NewGenerationService(e.guard, repository.NewCategoryRepository(e.db), repository.NewAccountRepository(e.db), e.ledger, e.generator, fakeArchive{})

	_, err := svc.Generate(context.Background(), e.user.ID+1, &transfer.GenerateRequest{CategoryID: e.category.ID, Text: true})

	assert.ErrorIs(t, err, ErrNotOwner)
	assert.Zero(t, e.generator.Calls())
}

func TestPublish_SuccessRecordsCost(t *testing.T) {
	e := newEnv(t, testConfig())

	out := e.publishService().Publish(context.Background(), e.target(), TriggerInfo{Trigger: models.TriggerManual, Minute: e.clock.Now(), SubTarget: "7"})

	require.Equal(t, StatusPublished, out.Status, "%v", out.Err)
	assert.Equal(t, "https://t.me/bakery/1", out.URL)
	assert.Equal(t, int64(40), e.balance(t))

	require.Equal(t, 1, e.publisher.Calls())
	req := e.publisher.requests[0]
	assert.Equal(t, "@bakery", req.Routing.ExternalID)
	assert.Equal(t, "7", req.Routing.SubTarget)
	assert.Equal(t, "123:abc", req.Credentials.BotToken)
	assert.Nil(t, req.Image)

	records := e.listRecords(t)
	require.Len(t, records, 1)
	assert.True(t, records[0].Success)
	assert.Equal(t, int64(10), records[0].TokensSpent)
	assert.Equal(t, models.TriggerManual, records[0].Trigger)
}

func TestPublish_AdapterFailureRefundsAndRecords(t *testing.T) {
	cfg := testConfig()
	cfg.WelcomeTokens = 40
	cfg.Pricing.Text = 40
	e := newEnv(t, cfg)

	var balanceDuringCall int64
	e.publisher.publish = func(req *platform.Request) *platform.Result {
		balanceDuringCall = e.balance(t)
		return &platform.Result{Err: &platform.PublishError{Kind: platform.ErrNetwork, Platform: models.PlatformTelegram, Message: "timeout"}}
	}

	out := e.publishService().Publish(context.Background(), e.target(), TriggerInfo{Trigger: models.TriggerManual, Minute: e.clock.Now()})

	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, int64(0), balanceDuringCall)
	assert.Equal(t, int64(40), e.balance(t))

	records := e.listRecords(t)
	require.Len(t, records, 1)
	assert.False(t, records[0].Success)
	assert.Zero(t, records[0].TokensSpent)
	assert.Contains(t, records[0].ErrorMessage, "timeout")
}

func TestPublish_AdapterPanicRefunds(t *testing.T) {
	e := newEnv(t, testConfig())
	e.publisher.publish = func(req *platform.Request) *platform.Result { panic("adapter bug") }

	out := e.publishService().Publish(context.Background(), e.target(), TriggerInfo{Trigger: models.TriggerManual, Minute: e.clock.Now()})

	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, int64(50), e.balance(t))
	records := e.listRecords(t)
	require.Len(t, records, 1)
	assert.False(t, records[0].Success)
}

func TestPublish_InsufficientBalanceRecordsAttempt(t *testing.T) {
	cfg := testConfig()
	cfg.WelcomeTokens = 5
	e := newEnv(t, cfg)

	out := e.publishService().Publish(context.Background(), e.target(), TriggerInfo{Trigger: models.TriggerManual, Minute: e.clock.Now()})

	assert.Equal(t, StatusInsufficient, out.Status)
	assert.Zero(t, e.generator.Calls())
	assert.Zero(t, e.publisher.Calls())
	assert.Equal(t, int64(5), e.balance(t))

	records := e.listRecords(t)
	require.Len(t, records, 1)
	assert.False(t, records[0].Success)
	assert.Zero(t, records[0].TokensSpent)
}

func TestPublish_MissingTargetHasNoSideEffects(t *testing.T) {
	e := newEnv(t, testConfig())
	target := e.target()
	target.CategoryID = 9999

	out := e.publishService().Publish(context.Background(), target, TriggerInfo{Trigger: models.TriggerScheduled, ScheduleID: 1, Minute: e.clock.Now()})

	assert.Equal(t, StatusSkipped, out.Status)
	assert.ErrorIs(t, out.Err, ErrTargetUnavailable)
	assert.Zero(t, e.generator.Calls())
	assert.Empty(t, e.listRecords(t))
	assert.Equal(t, int64(50), e.balance(t))
}

func TestPublish_InactiveConnectionIsSkipped(t *testing.T) {
	e := newEnv(t, testConfig())
	require.NoError(t, repository.NewConnectionRepository(e.db).SetActive(context.Background(), nil, e.connection.ID, false))

	out := e.publishService().Publish(context.Background(), e.target(), TriggerInfo{Trigger: models.TriggerManual, Minute: e.clock.Now()})

	assert.Equal(t, StatusSkipped, out.Status)
	assert.Zero(t, e.publisher.Calls())
	assert.Empty(t, e.listRecords(t))
}

func TestPublish_ScheduledMinuteIsPublishedOnce(t *testing.T) {
	e := newEnv(t, testConfig())
	trigger := TriggerInfo{Trigger: models.TriggerScheduled, ScheduleID: 42, Minute: e.clock.Now()}

	// Two instances evaluate the same due minute.
	first, second := e.publishService(), e.publishService()

	var wg sync.WaitGroup
	outcomes := make([]*PublishOutcome, 2)
	for i, svc := range []PublishService{first, second} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = svc.Publish(context.Background(), e.target(), trigger)
		}()
	}
	wg.Wait()

	statuses := []PublishStatus{outcomes[0].Status, outcomes[1].Status}
	assert.ElementsMatch(t, []PublishStatus{StatusPublished, StatusDuplicate}, statuses)
	assert.Equal(t, 1, e.publisher.Calls())
	assert.Len(t, e.listRecords(t), 1)
	assert.Equal(t, int64(40), e.balance(t))

	// The next minute is a fresh claim.
	trigger.Minute = trigger.Minute.Add(time.Minute)
	out := first.Publish(context.Background(), e.target(), trigger)
	assert.Equal(t, StatusPublished, out.Status)
}

func TestPublishNow_SurfacesFailureAfterRefund(t *testing.T) {
	e := newEnv(t, testConfig())
	e.publisher.publish = func(req *platform.Request) *platform.Result {
		return &platform.Result{Err: &platform.PublishError{Kind: platform.ErrAuth, Platform: models.PlatformTelegram, Message: "bot was kicked"}}
	}

	_, err := e.publishService().PublishNow(context.Background(), e.user.ID, e.target(), "")

	assert.ErrorIs(t, err, ErrPublishFailed)
	assert.Equal(t, int64(50), e.balance(t))
}

func TestPublishNow_RejectsOtherUser(t *testing.T) {
	e := newEnv(t, testConfig())

	_, err := e.publishService().PublishNow(context.Background(), e.user.ID+1, e.target(), "")

	assert.ErrorIs(t, err, ErrNotOwner)
	assert.Zero(t, e.publisher.Calls())
}

func TestScheduleService_SaveRejectsMismatch(t *testing.T) {
	e := newEnv(t, testConfig())
	svc := NewScheduleService(e.guard, repository.NewScheduleRepository(e.db))
	ctx := context.Background()

	bad := &models.PlatformSchedule{Enabled: true, Days: models.CodeList{"mon"}, Times: models.CodeList{"09:00", "18:00"}, PostsPerDay: 3}
	out := svc.Save(ctx, e.category.ID, models.PlatformTelegram, e.connection.ID, bad)
	assert.False(t, out.OK())
	assert.Equal(t, storage.KindInvalid, out.Kind)
	assert.False(t, out.Value)

	got := svc.Get(ctx, e.category.ID, models.PlatformTelegram, e.connection.ID)
	require.True(t, got.OK())
	assert.Nil(t, got.Value)

	good := &models.PlatformSchedule{Enabled: true, Days: models.CodeList{"Wednesday", "MON"}, Times: models.CodeList{"18:00", "09:00"}}
	out = svc.Save(ctx, e.category.ID, models.PlatformTelegram, e.connection.ID, good)
	require.True(t, out.OK(), "%v", out.Err())

	due := svc.ListDue(ctx, "wednesday", "18:00")
	require.True(t, due.OK())
	require.Len(t, due.Value, 1)
	assert.Equal(t, 2, due.Value[0].PostsPerDay)
	assert.Equal(t, models.CodeList{"mon", "wed"}, due.Value[0].Days)
}

func TestPaymentService_TopUp(t *testing.T) {
	e := newEnv(t, testConfig())
	svc := NewPaymentService(e.cfg, e.ledger)

	var event transfer.PaymentEvent
	event.EventType = EventPaymentPaid
	event.Object.ID = "ord_1"
	event.Object.Quantity = 2
	event.Object.Metadata.InternalCustomerID = strconv.FormatInt(e.user.ID, 10)

	credited, err := svc.HandlePayment(context.Background(), &event)
	require.NoError(t, err)
	assert.True(t, credited)

	credited, err = svc.HandlePayment(context.Background(), &event)
	require.NoError(t, err)
	assert.False(t, credited)

	assert.Equal(t, int64(250), e.balance(t))
}

func TestNotificationService_LowBalanceOnlyWhenShort(t *testing.T) {
	cfg := testConfig()
	e := newEnv(t, cfg)
	notifier := &fakeNotifier{}
	svc := NewNotificationService(e.guard, repository.NewNotificationRepository(e.db), repository.NewUserRepository(e.db), e.records, e.ledger, notifier)
	ctx := context.Background()

	sent, err := svc.Deliver(ctx, e.user.ID, models.NotificationLowBalance, e.clock.Now())
	require.NoError(t, err)
	assert.False(t, sent)

	require.NoError(t, e.ledger.Debit(ctx, e.user.ID, 45))
	sent, err = svc.Deliver(ctx, e.user.ID, models.NotificationLowBalance, e.clock.Now())
	require.NoError(t, err)
	assert.True(t, sent)
	require.Len(t, notifier.sent[1001], 1)
	assert.Contains(t, notifier.sent[1001][0], "5 tokens")
}

func TestNotificationService_Digest(t *testing.T) {
	e := newEnv(t, testConfig())
	notifier := &fakeNotifier{}
	svc := NewNotificationService(e.guard, repository.NewNotificationRepository(e.db), repository.NewUserRepository(e.db), e.records, e.ledger, notifier)
	ctx := context.Background()

	sent, err := svc.Deliver(ctx, e.user.ID, models.NotificationDigest, e.clock.Now())
	require.NoError(t, err)
	assert.False(t, sent, "nothing happened yet")

	e.publishService().Publish(ctx, e.target(), TriggerInfo{Trigger: models.TriggerManual, Minute: e.clock.Now()})

	sent, err = svc.Deliver(ctx, e.user.ID, models.NotificationDigest, e.clock.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Contains(t, notifier.sent[1001][0], "1 published, 0 failed, 10 tokens spent")
}

func TestAuthService_IssueToken(t *testing.T) {
	e := newEnv(t, testConfig())
	svc := NewAuthService(e.cfg, NewUserService(e.guard, repository.NewUserRepository(e.db)))
	ctx := context.Background()

	_, _, err := svc.IssueToken(ctx, "wrong", 1001, "alice")
	assert.True(t, errors.Is(err, ErrBadBotSecret))

	token, userID, err := svc.IssueToken(ctx, "bot-secret", 1001, "alice")
	require.NoError(t, err)
	assert.Equal(t, e.user.ID, userID)

	claims, err := utils.ValidateToken(e.cfg.SecretKey, token)
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(userID, 10), claims.UserID)
	assert.Equal(t, int64(1001), claims.ChatID)

	_, newID, err := svc.IssueToken(ctx, "bot-secret", 2002, "bob")
	require.NoError(t, err)
	assert.NotEqual(t, userID, newID)
}
