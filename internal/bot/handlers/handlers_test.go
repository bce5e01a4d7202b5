package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"geojobs/internal/config"
	"geojobs/internal/models"
	"geojobs/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

type sentMessage struct {
	text string
	opts []interface{}
}

func (m sentMessage) keyboard() *tele.ReplyMarkup {
	for _, opt := range m.opts {
		if kb, ok := opt.(*tele.ReplyMarkup); ok {
			return kb
		}
	}
	return nil
}

// fakeContext records what handlers send. Methods a handler should not
// reach panic through the nil embedded interface.
type fakeContext struct {
	tele.Context

	sender    *tele.User
	chat      *tele.Chat
	message   *tele.Message
	callback  *tele.Callback
	args      []string
	sent      []sentMessage
	edited    []string
	responses []*tele.CallbackResponse
}

func newFakeContext(userID int64) *fakeContext {
	return &fakeContext{
		sender: &tele.User{ID: userID, FirstName: "Анна"},
		chat:   &tele.Chat{ID: userID},
	}
}

func (f *fakeContext) Sender() *tele.User        { return f.sender }
func (f *fakeContext) Chat() *tele.Chat          { return f.chat }
func (f *fakeContext) Message() *tele.Message    { return f.message }
func (f *fakeContext) Callback() *tele.Callback  { return f.callback }
func (f *fakeContext) Args() []string            { return f.args }
func (f *fakeContext) Recipient() tele.Recipient { return f.chat }

func (f *fakeContext) Text() string {
	if f.message == nil {
		return ""
	}
	return f.message.Text
}

func (f *fakeContext) Send(what interface{}, opts ...interface{}) error {
	f.sent = append(f.sent, sentMessage{text: fmt.Sprint(what), opts: opts})
	return nil
}

func (f *fakeContext) Reply(what interface{}, opts ...interface{}) error {
	return f.Send(what, opts...)
}

func (f *fakeContext) Edit(what interface{}, opts ...interface{}) error {
	f.edited = append(f.edited, fmt.Sprint(what))
	return nil
}

func (f *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	if len(resp) == 0 {
		resp = []*tele.CallbackResponse{nil}
	}
	f.responses = append(f.responses, resp...)
	return nil
}

type fakeState struct {
	mu          sync.Mutex
	searches    map[int64]models.ScanFilter
	subscribers map[int64]bool
	err         error
}

func newFakeState() *fakeState {
	return &fakeState{
		searches:    make(map[int64]models.ScanFilter),
		subscribers: make(map[int64]bool),
	}
}

func (s *fakeState) SetSearchState(_ context.Context, userID int64, filter models.ScanFilter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.searches[userID] = filter
	return nil
}

func (s *fakeState) GetSearchState(_ context.Context, userID int64) (models.ScanFilter, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return models.ScanFilter{}, false, s.err
	}
	f, ok := s.searches[userID]
	return f, ok, nil
}

func (s *fakeState) Subscribe(_ context.Context, chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	was := s.subscribers[chatID]
	s.subscribers[chatID] = true
	return !was, nil
}

func (s *fakeState) Unsubscribe(_ context.Context, chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	was := s.subscribers[chatID]
	delete(s.subscribers, chatID)
	return was, nil
}

func (s *fakeState) IsSubscribed(_ context.Context, chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	return s.subscribers[chatID], nil
}

func newTestContext(t *testing.T) (*Context, *memory.Store, *fakeState) {
	t.Helper()

	repo := memory.New()
	state := newFakeState()
	return &Context{
		Repo:   repo,
		State:  state,
		Config: &config.Config{SearchPageSize: 3},
		Logger: zap.NewNop(),
	}, repo, state
}

func seedJobs(t *testing.T, repo *memory.Store, employers, candidates int) {
	t.Helper()

	ctx := context.Background()
	id := int64(1)
	for i := 0; i < employers; i++ {
		require.NoError(t, repo.Insert(ctx, &models.ParsedJob{
			RawID:         id,
			IsCandidate:   models.Bool(false),
			IsEmployer:    models.Bool(true),
			PositionTitle: models.String(fmt.Sprintf("Геодезист %d", id)),
			City:          models.String("Москва"),
		}))
		id++
	}
	for i := 0; i < candidates; i++ {
		require.NoError(t, repo.Insert(ctx, &models.ParsedJob{
			RawID:       id,
			IsCandidate: models.Bool(true),
			IsEmployer:  models.Bool(false),
		}))
		id++
	}
}

func TestHandleJob(t *testing.T) {
	hctx, repo, _ := newTestContext(t)
	require.NoError(t, repo.Insert(context.Background(), &models.ParsedJob{
		RawID:         42,
		IsCandidate:   models.Bool(false),
		IsEmployer:    models.Bool(true),
		PositionTitle: models.String("Инженер-геодезист"),
		URL:           models.String("https://t.me/geojobs/42"),
	}))

	c := newFakeContext(1)
	c.args = []string{"42"}

	require.NoError(t, HandleJob(hctx)(c))
	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0].text, "Инженер\\-геодезист")
	assert.Contains(t, c.sent[0].text, "\\#42")
	require.NotNil(t, c.sent[0].keyboard())
	assert.Equal(t, "https://t.me/geojobs/42", c.sent[0].keyboard().InlineKeyboard[0][0].URL)
}

func TestHandleJobNotFound(t *testing.T) {
	hctx, _, _ := newTestContext(t)

	c := newFakeContext(1)
	c.args = []string{"9999"}

	require.NoError(t, HandleJob(hctx)(c))
	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0].text, "не найдено")
}

func TestHandleJobBadArgs(t *testing.T) {
	hctx, _, _ := newTestContext(t)

	for _, args := range [][]string{nil, {"abc"}, {"0"}, {"1", "2"}} {
		c := newFakeContext(1)
		c.args = args

		require.NoError(t, HandleJob(hctx)(c))
		require.Len(t, c.sent, 1)
		assert.NotContains(t, c.sent[0].text, "\\#", "args %v", args)
	}
}

func TestHandleSearchPaginates(t *testing.T) {
	hctx, repo, state := newTestContext(t)
	seedJobs(t, repo, 7, 2)

	c := newFakeContext(5)
	c.message = &tele.Message{Text: "/search is_employer=true", Payload: "is_employer=true"}

	require.NoError(t, HandleSearch(hctx)(c))

	// summary, three cards, pagination controls
	require.Len(t, c.sent, 5)
	assert.Contains(t, c.sent[0].text, "Найдено объявлений:* 7")
	assert.Contains(t, c.sent[1].text, "\\#1")
	assert.Contains(t, c.sent[3].text, "\\#3")
	assert.Equal(t, "📄 Показано 3 из 7", c.sent[4].text)
	kb := c.sent[4].keyboard()
	require.NotNil(t, kb)
	next := kb.InlineKeyboard[0][1].Unique
	assert.Equal(t, "page:3:3", next)

	saved, ok := state.searches[5]
	require.True(t, ok)
	assert.Equal(t, models.Bool(true), saved.IsEmployer)

	// second page
	page := newFakeContext(5)
	page.callback = &tele.Callback{Data: "\f" + next, Message: &tele.Message{Text: "📄 Показано 3 из 7"}}
	require.NoError(t, HandleCallback(hctx)(page))

	require.Len(t, page.sent, 4)
	assert.Contains(t, page.sent[0].text, "\\#4")
	assert.Equal(t, "📄 Показано 6 из 7", page.sent[3].text)
	assert.Equal(t, "page:6:6", page.sent[3].keyboard().InlineKeyboard[0][1].Unique)
	assert.Equal(t, []string{"📄 Показано 3 из 7"}, page.edited)
	assert.Len(t, page.responses, 1)

	// last page has no controls
	last := newFakeContext(5)
	last.callback = &tele.Callback{Data: "\fpage:6:6"}
	require.NoError(t, HandleCallback(hctx)(last))

	require.Len(t, last.sent, 1)
	assert.Contains(t, last.sent[0].text, "\\#7")
}

func TestHandleSearchNoResults(t *testing.T) {
	hctx, repo, _ := newTestContext(t)
	seedJobs(t, repo, 2, 0)

	c := newFakeContext(5)
	c.message = &tele.Message{Payload: "city=Тверь"}

	require.NoError(t, HandleSearch(hctx)(c))
	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0].text, "не найдены")
}

func TestHandleSearchBadQuery(t *testing.T) {
	hctx, _, state := newTestContext(t)

	c := newFakeContext(5)
	c.message = &tele.Message{Payload: "salary=100"}

	require.NoError(t, HandleSearch(hctx)(c))
	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0].text, "unknown filter")
	assert.Empty(t, state.searches)
}

func TestSearchPageExpired(t *testing.T) {
	hctx, _, _ := newTestContext(t)

	c := newFakeContext(5)
	c.callback = &tele.Callback{Data: "\fpage:3:3"}

	require.NoError(t, HandleCallback(hctx)(c))
	assert.Empty(t, c.sent)
	require.Len(t, c.responses, 1)
	assert.True(t, c.responses[0].ShowAlert)
}

func TestHandleStats(t *testing.T) {
	hctx, repo, _ := newTestContext(t)
	seedJobs(t, repo, 4, 3)

	c := newFakeContext(1)
	require.NoError(t, HandleStats(hctx)(c))

	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0].text, "Всего объявлений: 7")
	assert.Contains(t, c.sent[0].text, "Вакансий: 4")
	assert.Contains(t, c.sent[0].text, "Резюме: 3")
}

func TestSubscription(t *testing.T) {
	hctx, _, state := newTestContext(t)

	c := newFakeContext(77)
	require.NoError(t, HandleSubscribe(hctx)(c))
	assert.True(t, state.subscribers[77])

	require.NoError(t, HandleDigest(hctx)(c))
	assert.Contains(t, c.sent[1].text, "Включена")
	assert.Equal(t, "digest_off", c.sent[1].keyboard().InlineKeyboard[0][0].Unique)

	toggle := newFakeContext(77)
	toggle.callback = &tele.Callback{Data: "\fdigest_off"}
	require.NoError(t, HandleCallback(hctx)(toggle))
	assert.False(t, state.subscribers[77])
	require.Len(t, toggle.edited, 1)
	assert.Contains(t, toggle.edited[0], "Отключена")

	require.NoError(t, HandleUnsubscribe(hctx)(c))
	assert.False(t, state.subscribers[77])
}

func TestSubscriptionStateFailure(t *testing.T) {
	hctx, _, state := newTestContext(t)
	state.err = errors.New("redis down")

	c := newFakeContext(77)
	require.NoError(t, HandleSubscribe(hctx)(c))
	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0].text, "Ошибка")
}

func TestHandleTextRoutes(t *testing.T) {
	hctx, repo, _ := newTestContext(t)
	seedJobs(t, repo, 1, 1)

	vacancies := newFakeContext(1)
	vacancies.message = &tele.Message{Text: "🏢 Вакансии"}
	require.NoError(t, HandleText(hctx)(vacancies))
	require.Len(t, vacancies.sent, 2)
	assert.Contains(t, vacancies.sent[1].text, "\\#1")

	query := newFakeContext(1)
	query.message = &tele.Message{Text: "is_candidate=да"}
	require.NoError(t, HandleText(hctx)(query))
	require.Len(t, query.sent, 2)
	assert.Contains(t, query.sent[1].text, "\\#2")

	other := newFakeContext(1)
	other.message = &tele.Message{Text: "привет"}
	require.NoError(t, HandleText(hctx)(other))
	require.Len(t, other.sent, 1)
	assert.Contains(t, other.sent[0].text, "Не понял")
}

func TestUnknownCallback(t *testing.T) {
	hctx, _, _ := newTestContext(t)

	c := newFakeContext(1)
	c.callback = &tele.Callback{Data: "\fsomething:else"}

	require.NoError(t, HandleCallback(hctx)(c))
	require.Len(t, c.responses, 1)
	assert.Contains(t, c.responses[0].Text, "Неизвестное")
}

func TestHandleHelp(t *testing.T) {
	hctx, _, _ := newTestContext(t)

	general := newFakeContext(1)
	require.NoError(t, HandleHelp(hctx)(general))
	require.Len(t, general.sent, 1)
	assert.Contains(t, general.sent[0].text, "salary_at_least")
	assert.Contains(t, general.sent[0].text, "published_after")
	assert.NotContains(t, general.sent[0].text, "after_raw_id")

	key := newFakeContext(1)
	key.args = []string{"Salary-At-Least"}
	require.NoError(t, HandleHelp(hctx)(key))
	require.Len(t, key.sent, 1)
	assert.Contains(t, key.sent[0].text, "зарплата не ниже")
	assert.Contains(t, key.sent[0].text, "/search salary_at_least=")

	unknown := newFakeContext(1)
	unknown.args = []string{"colour"}
	require.NoError(t, HandleHelp(hctx)(unknown))
	require.Len(t, unknown.sent, 1)
	assert.Contains(t, unknown.sent[0].text, "Неизвестный ключ")
}
