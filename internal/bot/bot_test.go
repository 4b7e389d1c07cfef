package bot

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/surveybot/core/telegram"
	"github.com/m3rciful/surveybot/core/telegram/callbacks"
	"github.com/m3rciful/surveybot/core/telegram/state"
	"github.com/m3rciful/surveybot/internal/activity"
	"github.com/m3rciful/surveybot/internal/questions"
	"github.com/m3rciful/surveybot/internal/reports"
	"github.com/m3rciful/surveybot/internal/store"
	"github.com/m3rciful/surveybot/internal/store/storetest"
	"github.com/m3rciful/surveybot/internal/survey"
	"github.com/m3rciful/surveybot/internal/texts"
)

const (
	adminID   int64 = 99
	channelID int64 = -100500
)

type sent struct {
	what any
	opts *tele.SendOptions
}

type fakeContext struct {
	tele.Context
	sender   *tele.User
	update   tele.Update
	store    map[string]any
	sent     []sent
	edited   []string
	response []*tele.CallbackResponse
}

func newFakeContext(userID int64) *fakeContext {
	return &fakeContext{
		sender: &tele.User{ID: userID, Username: "anna_k"},
		update: tele.Update{ID: 1, Message: &tele.Message{}},
		store:  map[string]any{},
	}
}

func textContext(userID int64, text string) *fakeContext {
	c := newFakeContext(userID)
	c.update.Message = &tele.Message{Text: text}
	return c
}

func commandContext(userID int64, payload string) *fakeContext {
	c := newFakeContext(userID)
	c.update.Message = &tele.Message{Payload: payload}
	return c
}

func callbackContext(userID int64, unique, payload string) *fakeContext {
	c := newFakeContext(userID)
	data := "\f" + unique
	if payload != "" {
		data += "|" + payload
	}
	c.update = tele.Update{ID: 2, Callback: &tele.Callback{Data: data}}
	return c
}

func (f *fakeContext) Sender() *tele.User        { return f.sender }
func (f *fakeContext) Chat() *tele.Chat          { return &tele.Chat{ID: f.sender.ID} }
func (f *fakeContext) Update() tele.Update       { return f.update }
func (f *fakeContext) Message() *tele.Message    { return f.update.Message }
func (f *fakeContext) Callback() *tele.Callback  { return f.update.Callback }
func (f *fakeContext) Get(key string) any        { return f.store[key] }
func (f *fakeContext) Set(key string, value any) { f.store[key] = value }
func (f *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	f.response = append(f.response, resp...)
	return nil
}

func (f *fakeContext) Text() string {
	if f.update.Message != nil {
		return f.update.Message.Text
	}
	return ""
}

func (f *fakeContext) Send(what interface{}, opts ...interface{}) error {
	s := sent{what: what}
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			s.opts = so
		}
	}
	f.sent = append(f.sent, s)
	return nil
}

func (f *fakeContext) EditOrSend(what interface{}, opts ...interface{}) error {
	if s, ok := what.(string); ok {
		f.edited = append(f.edited, s)
	}
	return nil
}

func (f *fakeContext) texts() []string {
	var out []string
	for _, s := range f.sent {
		if text, ok := s.what.(string); ok {
			out = append(out, text)
		}
	}
	return out
}

func (f *fakeContext) last() sent {
	if len(f.sent) == 0 {
		return sent{}
	}
	return f.sent[len(f.sent)-1]
}

type outMessage struct {
	to   string
	text string
}

type fakeOutbox struct {
	mu   sync.Mutex
	msgs []outMessage
	fail map[string]bool
}

func (o *fakeOutbox) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	text, _ := what.(string)
	if o.fail[to.Recipient()] {
		return nil, errors.New("forbidden: bot was blocked by the user")
	}
	o.msgs = append(o.msgs, outMessage{to: to.Recipient(), text: text})
	return &tele.Message{}, nil
}

func (o *fakeOutbox) to(recipient string) []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []string
	for _, m := range o.msgs {
		if m.to == recipient {
			out = append(out, m.text)
		}
	}
	return out
}

type fixture struct {
	h        *Handlers
	reg      *tg.Registry
	fsm      *state.FSM
	sessions *state.MemoryManager
	catalog  *texts.Catalog
	outbox   *fakeOutbox
	store    *store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := storetest.Open(t)
	ctx := context.Background()
	catalog := texts.NewCatalog(st, texts.Options{})
	if err := catalog.Init(ctx); err != nil {
		t.Fatalf("catalog init: %v", err)
	}
	agg := activity.New(st)
	sessions := state.NewMemoryManager(time.Hour)
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	engine, err := survey.New(survey.Options{
		Graph:    questions.Default(),
		Store:    st,
		Sessions: sessions,
		Texts:    catalog,
		Activity: agg,
		Now:      clock,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	f := &fixture{
		fsm:      state.NewFSM(sessions),
		sessions: sessions,
		catalog:  catalog,
		outbox:   &fakeOutbox{fail: map[string]bool{}},
		store:    st,
		reg:      tg.NewRegistry(),
	}
	f.h, err = New(Settings{
		ChannelID:     channelID,
		AdminPassword: "secret",
		FAQURL:        "https://example.org/faq",
		IsAdmin:       func(id int64) bool { return id == adminID },
	}, Deps{
		Engine:   engine,
		Catalog:  catalog,
		Reporter: reports.New(st, agg, t.TempDir()),
		Store:    st,
		FSM:      f.fsm,
		Outbox:   f.outbox,
		Now:      clock,
	})
	if err != nil {
		t.Fatalf("new handlers: %v", err)
	}
	if err := f.h.Register(f.reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	return f
}

func (f *fixture) callback(t *testing.T, c *fakeContext) {
	t.Helper()
	key, _ := callbacks.ParseCallbackData(c.Callback())
	h, ok := f.reg.Callback(key)
	if !ok {
		t.Fatalf("callback %q not registered", key)
	}
	if err := h(c); err != nil {
		t.Fatalf("callback %q: %v", key, err)
	}
}

func (f *fixture) text(t *testing.T, c *fakeContext) {
	t.Helper()
	if err := f.fsm.ManagerHandler(c); err != nil {
		t.Fatalf("fsm handler: %v", err)
	}
}

func (f *fixture) session(t *testing.T, userID int64) state.Session {
	t.Helper()
	s, err := f.sessions.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	return s
}

func contains(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func TestSurveyThroughButtonsAndText(t *testing.T) {
	f := newFixture(t)
	const userID = 7

	start := commandContext(userID, "")
	if err := f.h.onStart(start); err != nil {
		t.Fatalf("start: %v", err)
	}
	if start.last().opts == nil || start.last().opts.ReplyMarkup == nil {
		t.Fatal("welcome message has no menu")
	}

	f.callback(t, callbackContext(userID, CbSurveyStart, ""))

	graph := questions.Default()
	var final *fakeContext
	for i := 0; i < 20; i++ {
		s := f.session(t, userID)
		if !s.Active() {
			break
		}
		if s.State == survey.StateCheckpoint {
			f.callback(t, callbackContext(userID, CbSurveyContinue, ""))
			continue
		}
		q, err := graph.Get(s.QuestionID)
		if err != nil {
			t.Fatalf("get question: %v", err)
		}
		if !q.Choice() {
			f.text(t, textContext(userID, "Москва"))
			continue
		}
		idx := 0
		if q.ID == "investment_readiness" {
			idx = 1
		}
		final = callbackContext(userID, CbSurveyAnswer, callbacks.KeyIndex(q.ID, idx, payloadSep))
		f.callback(t, final)
	}

	if f.session(t, userID).Active() {
		t.Fatal("session still active after the last question")
	}
	last := final.last()
	text, _ := last.what.(string)
	if !strings.Contains(text, "Грант для предпринимателей") {
		t.Fatalf("expected the under-25 final message, got %q", text)
	}
	if last.opts == nil || last.opts.ReplyMarkup == nil || len(last.opts.ReplyMarkup.InlineKeyboard) != 4 {
		t.Fatalf("final message must carry the four next-step buttons")
	}

	summary := f.outbox.to("-100500")
	if len(summary) != 1 {
		t.Fatalf("expected one channel post, got %d", len(summary))
	}
	for _, want := range []string{"anna\\_k", "Готов частично", "Москва"} {
		if !strings.Contains(summary[0], want) {
			t.Fatalf("summary misses %q:\n%s", want, summary[0])
		}
	}

	resp, err := f.store.LatestCompletedResponse(context.Background(), userID)
	if err != nil || resp == nil {
		t.Fatalf("latest completed: %v %v", resp, err)
	}
	if v, _ := resp.Answer("investment_readiness"); v != "Готов частично" {
		t.Fatalf("investment_readiness = %q", v)
	}
}

func TestStaleButtonRepromptsCurrentQuestion(t *testing.T) {
	f := newFixture(t)
	const userID = 8
	f.callback(t, callbackContext(userID, CbSurveyStart, ""))

	c := callbackContext(userID, CbSurveyAnswer, callbacks.KeyIndex("work_plan", 0, payloadSep))
	f.callback(t, c)

	stale := f.catalog.Resolve(context.Background(), "stale_answer", texts.CategorySurvey)
	if !contains(c.texts(), stale) {
		t.Fatalf("expected stale notice, got %v", c.texts())
	}
	if s := f.session(t, userID); s.QuestionID != "region" {
		t.Fatalf("session moved to %q", s.QuestionID)
	}
}

func TestAnswerWithoutSurveyIsExpired(t *testing.T) {
	f := newFixture(t)
	c := callbackContext(9, CbSurveyAnswer, callbacks.KeyIndex("has_business", 0, payloadSep))
	f.callback(t, c)
	if len(c.response) != 1 || c.response[0].Text != "Кнопка устарела" {
		t.Fatalf("expected expired-button answer, got %+v", c.response)
	}
}

func TestCancelEndsSurvey(t *testing.T) {
	f := newFixture(t)
	const userID = 10
	f.callback(t, callbackContext(userID, CbSurveyStart, ""))
	c := commandContext(userID, "")
	if err := f.h.onCancel(c); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if f.session(t, userID).Active() {
		t.Fatal("session survived /cancel")
	}
}

func TestAdminLogin(t *testing.T) {
	f := newFixture(t)
	if err := f.h.onAdmin(commandContext(adminID, "")); err != nil {
		t.Fatalf("admin: %v", err)
	}
	if s := f.session(t, adminID); s.State != StateAdminPassword {
		t.Fatalf("state = %q", s.State)
	}

	wrong := textContext(adminID, "guess")
	f.text(t, wrong)
	if s := f.session(t, adminID); s.Active() {
		t.Fatalf("wrong password left state %q", s.State)
	}

	_ = f.h.onAdmin(commandContext(adminID, ""))
	ok := textContext(adminID, " secret ")
	f.text(t, ok)
	if s := f.session(t, adminID); s.State != StateAdminPanel {
		t.Fatalf("state = %q", s.State)
	}
	if m := ok.last().opts; m == nil || m.ReplyMarkup == nil || len(m.ReplyMarkup.InlineKeyboard) != 3 {
		t.Fatal("admin panel keyboard missing")
	}
}

func TestAdminCallbacksAreGated(t *testing.T) {
	f := newFixture(t)

	outsider := callbackContext(5, CbMailing, "")
	f.callback(t, outsider)
	denied := f.catalog.Resolve(context.Background(), "access_denied", texts.CategorySystem)
	if !contains(outsider.texts(), denied) {
		t.Fatalf("non-admin got %v", outsider.texts())
	}

	idle := callbackContext(adminID, CbConfirmMailing, "")
	f.callback(t, idle)
	if len(idle.response) != 1 {
		t.Fatalf("confirm outside the mailing flow must be answered as expired, got %+v", idle.response)
	}
}

func TestMailingBroadcastsToEveryUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []int64{1, 2, 3} {
		if _, _, err := f.store.GetOrCreateUser(ctx, store.Profile{UserID: id}, time.Now()); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	f.outbox.fail["3"] = true
	if err := f.sessions.Put(ctx, adminID, state.Session{State: StateAdminPanel}); err != nil {
		t.Fatalf("put: %v", err)
	}

	f.callback(t, callbackContext(adminID, CbMailing, ""))
	f.text(t, textContext(adminID, "Новости проекта"))
	s := f.session(t, adminID)
	if s.State != StateAdminMailingConfirm || s.Data[dataMailingText] != "Новости проекта" {
		t.Fatalf("unexpected session %+v", s)
	}

	f.callback(t, callbackContext(adminID, CbConfirmMailing, ""))
	f.h.Wait()

	for _, id := range []string{"1", "2"} {
		if got := f.outbox.to(id); len(got) != 1 || got[0] != "Новости проекта" {
			t.Fatalf("user %s got %v", id, got)
		}
	}
	report := f.outbox.to("99")
	if len(report) != 1 || !strings.Contains(report[0], "Доставлено: 2") || !strings.Contains(report[0], "ошибок: 1") {
		t.Fatalf("admin report %v", report)
	}
	if s := f.session(t, adminID); s.State != StateAdminPanel {
		t.Fatalf("state after mailing = %q", s.State)
	}
}

func TestCancelMailingKeepsPanel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.sessions.Put(ctx, adminID, state.Session{State: StateAdminMailing})
	c := callbackContext(adminID, CbCancelMailing, "cancel")
	f.callback(t, c)
	if len(c.edited) != 1 {
		t.Fatalf("expected the prompt to be replaced, got %v", c.edited)
	}
	if s := f.session(t, adminID); s.State != StateAdminPanel {
		t.Fatalf("state = %q", s.State)
	}
}

func TestActivityWorkbookIsSentAndRemoved(t *testing.T) {
	f := newFixture(t)
	_ = f.sessions.Put(context.Background(), adminID, state.Session{State: StateAdminPanel})
	c := callbackContext(adminID, CbActivityStats, "")
	f.callback(t, c)

	doc, ok := c.last().what.(*tele.Document)
	if !ok {
		t.Fatalf("expected a document, got %T", c.last().what)
	}
	if !strings.HasSuffix(doc.FileName, ".xlsx") {
		t.Fatalf("file name %q", doc.FileName)
	}
	if _, err := os.Stat(doc.File.FileLocal); !os.IsNotExist(err) {
		t.Fatalf("workbook left on disk: %v", err)
	}
}

func TestSetText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := commandContext(adminID, "survey checkpoint Почти готово!")
	if err := f.h.onSetText(c); err != nil {
		t.Fatalf("settext: %v", err)
	}
	if got := f.catalog.Resolve(ctx, "checkpoint", texts.CategorySurvey); got != "Почти готово!" {
		t.Fatalf("checkpoint text = %q", got)
	}

	bad := commandContext(adminID, "nope key text")
	_ = f.h.onSetText(bad)
	usage := f.catalog.Resolve(ctx, "settext_usage", texts.CategorySystem)
	if !contains(bad.texts(), usage) {
		t.Fatalf("expected usage, got %v", bad.texts())
	}
}

func TestStatsRejectsBadDate(t *testing.T) {
	f := newFixture(t)
	c := commandContext(adminID, "вчера")
	if err := f.h.onStats(c); err != nil {
		t.Fatalf("stats: %v", err)
	}
	usage := f.catalog.Resolve(context.Background(), "stats_usage", texts.CategorySystem)
	if !contains(c.texts(), usage) {
		t.Fatalf("expected usage, got %v", c.texts())
	}

	ok := commandContext(adminID, "2026-06-01")
	if err := f.h.onStats(ok); err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !contains(ok.texts(), "Всего пользователей") {
		t.Fatalf("stats text %v", ok.texts())
	}
}
