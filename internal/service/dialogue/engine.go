// Package dialogue is the per-session workflow engine. Each turn classifies
// the message, merges entities into the active flow's slots, and either asks
// for what is missing, asks for confirmation, or commits against the airline
// backend.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Domenick1991/airbot/internal/cache"
	"github.com/Domenick1991/airbot/internal/domain"
	"github.com/Domenick1991/airbot/internal/kafka"
	"github.com/Domenick1991/airbot/internal/nlu"
	"github.com/Domenick1991/airbot/internal/recommend"
	"github.com/Domenick1991/airbot/internal/repository"
	"github.com/Domenick1991/airbot/internal/service/airline"
)

var ErrInvalidInput = errors.New("invalid input")

type Settings struct {
	MinYear        int
	MaxAdvanceDays int
	WorkflowTTL    time.Duration
	BackendTimeout time.Duration
	SeatsCacheTTL  time.Duration
	CommitGuardTTL time.Duration
	// MinFlowMargin is how far an embedding match must beat the runner-up
	// intent before it may start a flow from idle.
	MinFlowMargin float64
}

func DefaultSettings() Settings {
	return Settings{
		MinYear:        2025,
		MaxAdvanceDays: 365,
		WorkflowTTL:    30 * time.Minute,
		BackendTimeout: 5 * time.Second,
		SeatsCacheTTL:  time.Minute,
		CommitGuardTTL: 24 * time.Hour,
		MinFlowMargin:  0.1,
	}
}

type MessageInput struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Text      string `json:"message"`
}

type StateSummary struct {
	Flow                domain.Flow       `json:"flow"`
	Step                domain.Step       `json:"step"`
	Slots               map[string]string `json:"slots,omitempty"`
	PendingConfirmation bool              `json:"pending_confirmation"`
	PendingAction       string            `json:"pending_action,omitempty"`
	LastError           string            `json:"last_error,omitempty"`
}

// Reply is what the transport returns for one turn. Outcome is completed,
// abandoned or failed when a flow ended or failed during the turn.
type Reply struct {
	MessageID       int64                   `json:"message_id,omitempty"`
	Text            string                  `json:"response"`
	Intent          domain.Intent           `json:"intent"`
	Confidence      float64                 `json:"confidence"`
	Recommendations []domain.Recommendation `json:"recommendations"`
	State           StateSummary            `json:"workflow_state"`
	Outcome         domain.Step             `json:"outcome,omitempty"`
}

type Engine struct {
	classifier Classifier
	backend    Backend
	cache      StateCache
	advisor    Advisor
	store      StateStore
	messages   MessageLog
	publisher  EventPublisher
	topic      string
	metrics    Metrics
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
	settings   Settings
	seats      *cache.TTL[[]string]
	locks      *keyedMutex
}

type EngineOption func(*Engine)

func WithStore(store StateStore) EngineOption {
	return func(e *Engine) {
		e.store = store
	}
}

func WithMessageLog(messages MessageLog) EngineOption {
	return func(e *Engine) {
		e.messages = messages
	}
}

func WithPublisher(publisher EventPublisher, topic string) EngineOption {
	return func(e *Engine) {
		e.publisher = publisher
		e.topic = topic
	}
}

func WithMetrics(m Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

func WithIDGenerator(newID func() string) EngineOption {
	return func(e *Engine) {
		e.newID = newID
	}
}

// WithSettings overrides the defaults; zero fields keep their default.
func WithSettings(s Settings) EngineOption {
	return func(e *Engine) {
		d := e.settings
		if s.MinYear != 0 {
			d.MinYear = s.MinYear
		}
		if s.MaxAdvanceDays != 0 {
			d.MaxAdvanceDays = s.MaxAdvanceDays
		}
		if s.WorkflowTTL > 0 {
			d.WorkflowTTL = s.WorkflowTTL
		}
		if s.BackendTimeout > 0 {
			d.BackendTimeout = s.BackendTimeout
		}
		if s.SeatsCacheTTL > 0 {
			d.SeatsCacheTTL = s.SeatsCacheTTL
		}
		if s.CommitGuardTTL > 0 {
			d.CommitGuardTTL = s.CommitGuardTTL
		}
		if s.MinFlowMargin > 0 {
			d.MinFlowMargin = s.MinFlowMargin
		}
		e.settings = d
	}
}

// WithSeatsCache shares the available-seat cache, e.g. to report its stats.
func WithSeatsCache(seats *cache.TTL[[]string]) EngineOption {
	return func(e *Engine) {
		e.seats = seats
	}
}

func NewEngine(classifier Classifier, backend Backend, stateCache StateCache, advisor Advisor, opts ...EngineOption) *Engine {
	e := &Engine{
		classifier: classifier,
		backend:    backend,
		cache:      stateCache,
		advisor:    advisor,
		metrics:    noopMetrics{},
		logger:     slog.Default(),
		now:        time.Now,
		newID:      uuid.NewString,
		settings:   DefaultSettings(),
		locks:      newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.seats == nil {
		e.seats = cache.NewTTL[[]string](cache.WithClock[[]string](e.now))
	}
	return e
}

// turn carries everything learned while handling one message.
type turn struct {
	in        MessageInput
	cls       domain.Classification
	state     *domain.WorkflowState
	booking   *domain.ExternalBooking
	filled    bool
	outcome   domain.Step
	endedFlow domain.Flow
}

func (e *Engine) ProcessMessage(ctx context.Context, in MessageInput) (*Reply, error) {
	if strings.TrimSpace(in.SessionID) == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.UserID) == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	started := time.Now()

	// classification may be slow, so it runs before taking the session lock
	// against a peek at the state
	hint := hintFor(e.peekState(ctx, in.SessionID))
	cls := e.classifier.Classify(ctx, in.Text, hint)

	unlock := e.locks.Lock(in.SessionID)
	t, text := e.runTurn(ctx, in, cls, hint)
	unlock()

	reply := &Reply{
		Text:       text,
		Intent:     t.cls.Intent,
		Confidence: t.cls.Confidence,
		State:      summarize(t.state),
		Outcome:    t.outcome,
	}
	reply.Recommendations = e.advisor.Recommend(t.cls.Intent, t.cls.Entities, recommend.Outcome{
		Flow:      t.flow(),
		Step:      t.state.Step,
		Completed: t.outcome == domain.StepCompleted,
		Booking:   t.booking,
	})
	if reply.Recommendations == nil {
		reply.Recommendations = []domain.Recommendation{}
	}

	e.afterTurn(ctx, in, reply, t)
	e.metrics.ObserveTurn(string(reply.Intent), time.Since(started))
	e.logger.InfoContext(ctx, "turn processed",
		"session_id", in.SessionID,
		"intent", reply.Intent,
		"confidence", reply.Confidence,
		"flow", reply.State.Flow,
		"step", reply.State.Step,
	)
	return reply, nil
}

func (t *turn) flow() domain.Flow {
	if t.endedFlow != "" {
		return t.endedFlow
	}
	return t.state.Flow
}

func (e *Engine) runTurn(ctx context.Context, in MessageInput, cls domain.Classification, hint nlu.Hint) (*turn, string) {
	state, invalid := e.loadState(ctx, in)
	if h := hintFor(state); h != hint {
		cls = e.classifier.Classify(ctx, in.Text, h)
	}
	t := &turn{in: in, cls: cls, state: state}

	var text string
	if invalid != nil {
		e.logger.ErrorContext(ctx, "workflow state failed invariant check, resetting",
			"session_id", in.SessionID, "flow", state.Flow, "step", state.Step, "error", invalid)
		e.metrics.InvariantReset()
		t.state = domain.NewIdleState(in.SessionID, in.UserID, e.now())
		text = resetApology
	} else {
		text = e.dispatch(ctx, t)
	}

	// the turn may have committed, so its outcome is saved even if the client left
	e.saveState(context.WithoutCancel(ctx), t.state)
	return t, text
}

func hintFor(s *domain.WorkflowState) nlu.Hint {
	if s == nil {
		return nlu.Hint{ActiveFlow: domain.FlowNone}
	}
	return nlu.Hint{
		PendingConfirmation: s.PendingConfirmation || s.Step == domain.StepFailed,
		ActiveFlow:          s.Flow,
	}
}

func (e *Engine) dispatch(ctx context.Context, t *turn) string {
	st := t.state
	if !st.Active() {
		return e.handleIdle(ctx, t)
	}
	schema := schemas[st.Flow]

	switch {
	case st.Step == domain.StepCommitting:
		return e.handleCommitting(t)
	case t.cls.Intent == domain.IntentAbandon:
		return e.abandon(t, "")
	case e.switchesFlow(t, schema):
		return e.switchFlow(ctx, t)
	case st.Step == schema.confirmStep:
		return e.handleConfirm(ctx, t, schema)
	case st.Step == domain.StepFailed:
		return e.handleFailed(ctx, t, schema)
	default:
		return e.handleCollecting(ctx, t, schema)
	}
}

func (e *Engine) handleIdle(ctx context.Context, t *turn) string {
	intent := t.cls.Intent
	if flow, ok := flowByIntent[intent]; ok {
		if t.cls.Source != domain.SourceRule && t.cls.Margin < e.settings.MinFlowMargin {
			return flowGuessText(flow)
		}
		return e.startFlow(ctx, t, flow, "")
	}

	switch intent {
	case domain.IntentCheckStatus:
		return e.checkStatus(ctx, t)
	case domain.IntentConfirm, domain.IntentDeny:
		return nothingToConfirm + " What can I help you with?"
	case domain.IntentAbandon:
		return nothingToCancel + " What can I help you with?"
	case domain.IntentGreeting:
		return greetingText
	case domain.IntentHelp:
		return helpText
	case domain.IntentOther:
		return offTopicText
	case domain.IntentUnknown:
		if _, ok := t.cls.First(domain.EntityBookingID); ok {
			return e.checkStatus(ctx, t)
		}
		return clarifyText
	}
	if p, ok := e.advisor.Answer(intent); ok {
		return p.Text
	}
	return clarifyText
}

func (e *Engine) startFlow(ctx context.Context, t *turn, flow domain.Flow, prefix string) string {
	schema := schemas[flow]
	st := domain.NewIdleState(t.in.SessionID, t.in.UserID, e.now())
	st.Flow = flow
	st.Step = schema.slots[0].step
	t.state = st

	problems := e.fill(ctx, t, schema)
	return e.advance(ctx, t, schema, problems, prefix+flowIntros[flow])
}

// switchesFlow reports whether a rule-matched request for another flow should
// replace the active one. A pending confirmation is never switched away from.
func (e *Engine) switchesFlow(t *turn, schema *flowSchema) bool {
	if t.cls.Source != domain.SourceRule || t.state.Step == schema.confirmStep {
		return false
	}
	flow, ok := flowByIntent[t.cls.Intent]
	return ok && flow != t.state.Flow
}

func (e *Engine) switchFlow(ctx context.Context, t *turn) string {
	old := t.state.Flow
	e.reset(t)
	prefix := fmt.Sprintf("Okay, I've set the %s aside. ", flowNames[old])
	return e.startFlow(ctx, t, flowByIntent[t.cls.Intent], prefix)
}

func (e *Engine) handleConfirm(ctx context.Context, t *turn, schema *flowSchema) string {
	switch t.cls.Intent {
	case domain.IntentConfirm:
		return e.commit(ctx, t, schema)
	case domain.IntentDeny:
		return e.abandon(t, fmt.Sprintf("No problem, I won't %s. Nothing has been changed. What else can I help you with?", schema.action))
	default:
		return yesNoPrompt(schema.action)
	}
}

func (e *Engine) handleFailed(ctx context.Context, t *turn, schema *flowSchema) string {
	switch t.cls.Intent {
	case domain.IntentConfirm:
		t.state.ConfirmationID = e.newID()
		return e.commit(ctx, t, schema)
	case domain.IntentDeny:
		return e.abandon(t, "")
	}

	problems := e.fill(ctx, t, schema)
	if t.filled {
		t.state.LastError = ""
		return e.advance(ctx, t, schema, problems, "")
	}
	text := fmt.Sprintf("Your last request didn't go through: %s %s", t.state.LastError, retryPrompt())
	if len(problems) > 0 {
		text = strings.Join(problems, " ") + " " + text
	}
	return text
}

func (e *Engine) handleCommitting(t *turn) string {
	st := t.state
	if e.now().Sub(st.UpdatedAt) <= 2*e.settings.BackendTimeout {
		return stillWorking
	}
	// the process handling the commit never came back
	st.Step = domain.StepFailed
	st.ConfirmationID = ""
	st.LastError = "I couldn't confirm whether it went through, so please check your bookings before trying again."
	t.outcome = domain.StepFailed
	return fmt.Sprintf("Sorry, %s %s", st.LastError, retryPrompt())
}

func (e *Engine) handleCollecting(ctx context.Context, t *turn, schema *flowSchema) string {
	problems := e.fill(ctx, t, schema)
	if t.filled || len(problems) > 0 {
		return e.advance(ctx, t, schema, problems, "")
	}

	var prefix string
	switch intent := t.cls.Intent; intent {
	case domain.IntentConfirm, domain.IntentDeny:
		prefix = nothingToConfirm
	case domain.IntentGreeting:
		prefix = "Hello again!"
	case domain.IntentHelp:
		prefix = helpText
	case domain.IntentCheckStatus:
		prefix = e.checkStatus(ctx, t)
	case domain.IntentOther:
		prefix = "I can only help with airline services."
	case domain.IntentUnknown:
		prefix = "Sorry, I didn't catch that."
	default:
		if p, ok := e.advisor.Answer(intent); ok {
			prefix = p.Text
		}
	}
	return e.advance(ctx, t, schema, nil, prefix)
}

// fill validates the slot candidates of this message in schema order and
// stores the accepted ones. It returns the rejection messages.
func (e *Engine) fill(ctx context.Context, t *turn, schema *flowSchema) []string {
	if t.state.Step == schema.confirmStep {
		return nil
	}
	candidates := e.candidates(t, schema)
	var problems []string
	for _, spec := range schema.slots {
		value, ok := candidates[spec.name]
		if !ok {
			continue
		}
		norm, problem := e.validateSlot(ctx, t, spec.name, value)
		if problem != "" {
			problems = append(problems, problem)
			continue
		}
		if norm == "" {
			continue
		}
		if spec.name == domain.SlotBookingID && t.state.Slots[spec.name] != norm {
			// seats and dates were checked against the previous booking
			delete(t.state.Slots, domain.SlotSeat)
			delete(t.state.Slots, domain.SlotNewDate)
		}
		t.state.Slots[spec.name] = norm
		t.filled = true
	}
	return problems
}

func (e *Engine) candidates(t *turn, schema *flowSchema) map[string]string {
	out := make(map[string]string)
	set := func(slot, value string) {
		if !schema.declares(slot) {
			return
		}
		if _, taken := out[slot]; !taken {
			out[slot] = value
		}
	}

	var airports []string
	for _, ent := range t.cls.Entities {
		switch ent.Type {
		case domain.EntityOrigin:
			set(domain.SlotOrigin, ent.Value)
		case domain.EntityDestination:
			set(domain.SlotDestination, ent.Value)
		case domain.EntityAirport:
			airports = append(airports, ent.Value)
		case domain.EntityDate:
			set(domain.SlotDate, ent.Value)
			set(domain.SlotNewDate, ent.Value)
		case domain.EntityBookingID:
			set(domain.SlotBookingID, ent.Value)
		case domain.EntitySeat:
			set(domain.SlotSeat, ent.Value)
		case domain.EntityPassengerName:
			set(domain.SlotPassengerName, ent.Value)
		}
	}

	// untyped airports fill origin first, then destination
	for _, code := range airports {
		for _, slot := range []string{domain.SlotOrigin, domain.SlotDestination} {
			if !schema.declares(slot) {
				break
			}
			if _, taken := out[slot]; taken || t.state.Slots[slot] != "" {
				continue
			}
			out[slot] = code
			break
		}
	}

	if t.state.Step == domain.StepCollectingName && len(t.cls.Entities) == 0 &&
		t.cls.Source != domain.SourceRule && looksLikeName(t.in.Text) {
		out[domain.SlotPassengerName] = t.in.Text
	}
	return out
}

// validateSlot returns the normalized value, or a problem message. An empty
// value with no problem means the candidate can't be judged yet.
func (e *Engine) validateSlot(ctx context.Context, t *turn, slot, value string) (string, string) {
	switch slot {
	case domain.SlotOrigin:
		return validateAirport(value, t.state.Slots[domain.SlotDestination])
	case domain.SlotDestination:
		return validateAirport(value, t.state.Slots[domain.SlotOrigin])
	case domain.SlotDate, domain.SlotNewDate:
		return validateDate(value, e.dateRules())
	case domain.SlotPassengerName:
		return validateName(value)
	case domain.SlotBookingID:
		id, problem := validateBookingIDFormat(value)
		if problem != "" {
			return "", problem
		}
		return e.validateBooking(ctx, t, id)
	case domain.SlotSeat:
		bookingID := t.state.Slots[domain.SlotBookingID]
		if bookingID == "" {
			return "", ""
		}
		seats, err := e.availableSeats(ctx, bookingID)
		if err != nil {
			return "", "I couldn't load the seat map right now. Please try again in a moment."
		}
		return validateSeat(value, seats)
	}
	return "", ""
}

func (e *Engine) validateBooking(ctx context.Context, t *turn, id string) (string, string) {
	booking, err := callBackend(ctx, e, "get_booking", func(ctx context.Context) (*domain.ExternalBooking, error) {
		return e.backend.GetBooking(ctx, id, t.in.UserID)
	})
	switch {
	case errors.Is(err, airline.ErrNotFound):
		return "", fmt.Sprintf("I couldn't find booking %s on your account. Please check the booking ID.", id)
	case err != nil:
		return "", fmt.Sprintf("I couldn't reach the booking system to look up %s. Please try again in a moment.", id)
	case booking == nil:
		return "", fmt.Sprintf("I couldn't find booking %s on your account. Please check the booking ID.", id)
	case booking.Status == domain.BookingStatusCancelled:
		return "", fmt.Sprintf("Booking %s has already been cancelled.", id)
	}
	t.booking = booking
	return id, ""
}

func (e *Engine) dateRules() dateRules {
	return dateRules{
		today:          e.now(),
		minYear:        e.settings.MinYear,
		maxAdvanceDays: e.settings.MaxAdvanceDays,
	}
}

func (e *Engine) availableSeats(ctx context.Context, bookingID string) ([]string, error) {
	key := seatsKey(bookingID)
	if seats, ok := e.seats.Get(key); ok {
		return seats, nil
	}
	seats, err := callBackend(ctx, e, "list_available_seats", func(ctx context.Context) ([]string, error) {
		return e.backend.ListAvailableSeats(ctx, bookingID)
	})
	if err != nil {
		return nil, err
	}
	e.seats.Set(key, seats, e.settings.SeatsCacheTTL)
	return seats, nil
}

func seatsKey(bookingID string) string {
	return "seats:" + bookingID
}

// advance moves the flow to its next step after slots changed (or didn't)
// and renders the reply.
func (e *Engine) advance(ctx context.Context, t *turn, schema *flowSchema, problems []string, prefix string) string {
	st := t.state
	parts := make([]string, 0, len(problems)+2)
	if prefix != "" {
		parts = append(parts, prefix)
	}
	parts = append(parts, problems...)

	missing := schema.missing(st.Slots)
	if len(missing) == 0 {
		return e.enterConfirm(ctx, t, schema, parts)
	}

	st.Step = missing[0].step
	st.PendingConfirmation = false
	st.PendingAction = ""
	st.ConfirmationID = ""
	st.RequestID = ""

	prompt := missing[0].prompt
	if missing[0].name == domain.SlotSeat {
		seats, err := e.availableSeats(ctx, st.Slots[domain.SlotBookingID])
		switch {
		case err != nil:
			prompt = "I couldn't load the seat map right now. Tell me the seat you'd like, or try again in a moment."
		case len(seats) == 0:
			return e.abandon(t, strings.Join(append(parts,
				fmt.Sprintf("There are no other seats available on booking %s right now, so I can't change your seat.", st.Slots[domain.SlotBookingID])), " "))
		default:
			prompt = fmt.Sprintf("%s Available seats: %s.", prompt, strings.Join(seats, ", "))
		}
	}
	parts = append(parts, stillNeeded(missing, prompt))
	return strings.Join(parts, " ")
}

func (e *Engine) enterConfirm(ctx context.Context, t *turn, schema *flowSchema, parts []string) string {
	st := t.state
	st.Step = schema.confirmStep
	st.PendingConfirmation = true
	st.PendingAction = schema.action
	st.ConfirmationID = e.newID()
	st.RequestID = st.ConfirmationID
	st.LastError = ""

	booking := t.booking
	if booking == nil && schema.declares(domain.SlotBookingID) {
		booking, _ = callBackend(ctx, e, "get_booking", func(ctx context.Context) (*domain.ExternalBooking, error) {
			return e.backend.GetBooking(ctx, st.Slots[domain.SlotBookingID], t.in.UserID)
		})
		t.booking = booking
	}

	parts = append(parts, confirmSummary(st, booking))
	if disclosure, ok := e.advisor.Disclosure(st.Flow); ok {
		parts = append(parts, "Please note: "+disclosure)
	}
	parts = append(parts, yesNoPrompt(schema.action))
	return strings.Join(parts, " ")
}

// commit performs the side effect of a confirmed flow. The state leaves the
// confirm step and is saved before the call, and the commit guard admits a
// confirmation id only once. A client that hangs up mid-commit doesn't abort
// it; callBackend still bounds the call.
func (e *Engine) commit(ctx context.Context, t *turn, schema *flowSchema) string {
	ctx = context.WithoutCancel(ctx)
	st := t.state
	if st.ConfirmationID == "" {
		st.ConfirmationID = e.newID()
	}
	if st.RequestID == "" {
		st.RequestID = st.ConfirmationID
	}
	st.Step = domain.StepCommitting
	st.PendingConfirmation = false
	e.saveState(ctx, st)

	acquired, err := e.cache.AcquireCommit(ctx, st.ConfirmationID, e.settings.CommitGuardTTL)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to acquire commit guard", "session_id", st.SessionID, "error", err)
		return e.fail(t, schema, fmt.Errorf("%w: commit guard: %w", airline.ErrTransient, err))
	}
	if !acquired {
		e.logger.WarnContext(ctx, "confirmation already submitted", "session_id", st.SessionID, "confirmation_id", st.ConfirmationID)
		t.endedFlow = st.Flow
		e.reset(t)
		return "That request has already been submitted. Please check your bookings to see the result."
	}

	text, err := e.execute(ctx, t)
	if err != nil {
		e.logger.WarnContext(ctx, "commit failed", "session_id", st.SessionID, "flow", st.Flow, "error", err)
		return e.fail(t, schema, err)
	}

	e.logger.InfoContext(ctx, "flow completed", "session_id", st.SessionID, "flow", st.Flow)
	t.outcome = domain.StepCompleted
	t.endedFlow = st.Flow
	st.Step = domain.StepCompleted
	e.reset(t)
	return text
}

func (e *Engine) execute(ctx context.Context, t *turn) (string, error) {
	s := t.state.Slots
	bookingID := s[domain.SlotBookingID]

	switch t.state.Flow {
	case domain.FlowBooking:
		booking, err := callBackend(ctx, e, "create_booking", func(ctx context.Context) (*domain.ExternalBooking, error) {
			return e.backend.CreateBooking(ctx, airline.CreateBookingInput{
				UserID:        t.in.UserID,
				Origin:        s[domain.SlotOrigin],
				Destination:   s[domain.SlotDestination],
				Date:          s[domain.SlotDate],
				PassengerName: s[domain.SlotPassengerName],
				RequestID:     t.state.RequestID,
			})
		})
		if err != nil {
			return "", err
		}
		t.booking = booking
		return bookedText(booking), nil

	case domain.FlowCancellation:
		refund, err := callBackend(ctx, e, "cancel_booking", func(ctx context.Context) (int64, error) {
			return e.backend.CancelBooking(ctx, bookingID)
		})
		if err != nil {
			return "", err
		}
		return cancelledText(bookingID, refund), nil

	case domain.FlowDateChange:
		fee, err := callBackend(ctx, e, "change_date", func(ctx context.Context) (int64, error) {
			return e.backend.ChangeDate(ctx, bookingID, s[domain.SlotNewDate])
		})
		if err != nil {
			return "", err
		}
		return dateChangedText(bookingID, s[domain.SlotNewDate], fee), nil

	case domain.FlowSeatUpgrade:
		cost, err := callBackend(ctx, e, "upgrade_seat", func(ctx context.Context) (int64, error) {
			return e.backend.UpgradeSeat(ctx, bookingID, s[domain.SlotSeat])
		})
		if err != nil {
			return "", err
		}
		e.seats.Delete(seatsKey(bookingID))
		return seatChangedText(bookingID, s[domain.SlotSeat], cost), nil
	}
	return "", fmt.Errorf("no action for flow %q", t.state.Flow)
}

// fail parks the flow in the failed step with its slots intact so the user
// can retry or walk away.
func (e *Engine) fail(t *turn, schema *flowSchema, err error) string {
	st := t.state
	st.Step = domain.StepFailed
	st.PendingConfirmation = false
	st.ConfirmationID = ""
	st.LastError = failureMessage(err)
	t.outcome = domain.StepFailed
	return fmt.Sprintf("Sorry, I couldn't %s: %s %s", schema.action, st.LastError, retryPrompt())
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "the booking system took too long to respond."
	case errors.Is(err, airline.ErrNotFound):
		return "the booking could not be found."
	case errors.Is(err, airline.ErrRejected):
		detail := strings.TrimPrefix(err.Error(), airline.ErrRejected.Error()+": ")
		return fmt.Sprintf("the airline rejected the request (%s).", detail)
	case errors.Is(err, airline.ErrTransient):
		return "the booking system is temporarily unavailable."
	default:
		return "something went wrong on our side."
	}
}

// abandon ends the active flow without touching the backend.
func (e *Engine) abandon(t *turn, text string) string {
	flow := t.state.Flow
	if text == "" {
		text = fmt.Sprintf("Okay, I've stopped the %s. Nothing has been changed. What else can I help you with?", flowNames[flow])
	}
	t.outcome = domain.StepAbandoned
	t.endedFlow = flow
	t.state.Step = domain.StepAbandoned
	e.reset(t)
	return text
}

func (e *Engine) reset(t *turn) {
	t.state = domain.NewIdleState(t.in.SessionID, t.in.UserID, e.now())
}

func (e *Engine) checkStatus(ctx context.Context, t *turn) string {
	if ent, ok := t.cls.First(domain.EntityBookingID); ok {
		booking, err := callBackend(ctx, e, "get_booking", func(ctx context.Context) (*domain.ExternalBooking, error) {
			return e.backend.GetBooking(ctx, ent.Value, t.in.UserID)
		})
		switch {
		case errors.Is(err, airline.ErrNotFound):
			return fmt.Sprintf("I couldn't find booking %s on your account. Please check the booking ID.", ent.Value)
		case err != nil:
			return "I couldn't reach the booking system right now. Please try again in a moment."
		}
		t.booking = booking
		return renderBooking(booking)
	}

	bookings, err := callBackend(ctx, e, "list_user_bookings", func(ctx context.Context) ([]domain.ExternalBooking, error) {
		return e.backend.ListUserBookings(ctx, t.in.UserID)
	})
	switch {
	case err != nil:
		return "I couldn't reach the booking system right now. Please try again in a moment."
	case len(bookings) == 0:
		return "You don't have any active bookings. Would you like to book a flight?"
	}
	return renderBookingList(bookings)
}

type callResult[T any] struct {
	value T
	err   error
}

// callBackend runs fn under the backend timeout. A backend that ignores its
// context is abandoned once the deadline passes.
func callBackend[T any](ctx context.Context, e *Engine, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, e.settings.BackendTimeout)
	defer cancel()

	started := time.Now()
	done := make(chan callResult[T], 1)
	go func() {
		v, err := fn(ctx)
		done <- callResult[T]{value: v, err: err}
	}()

	var res callResult[T]
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = fmt.Errorf("%w: %s: %w", airline.ErrTransient, op, ctx.Err())
	}
	e.metrics.ObserveBackendCall(op, callOutcome(res.err), time.Since(started))
	return res.value, res.err
}

func callOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, airline.ErrNotFound):
		return "not_found"
	case errors.Is(err, airline.ErrRejected):
		return "rejected"
	default:
		return "transient"
	}
}

// peekState reads the state without validating it; only the hint is derived
// from it.
func (e *Engine) peekState(ctx context.Context, sessionID string) *domain.WorkflowState {
	if st, err := e.cache.GetState(ctx, sessionID); err == nil && st != nil {
		return st
	}
	if e.store != nil {
		if st, err := e.store.LoadState(ctx, sessionID); err == nil {
			return st
		}
	}
	return nil
}

// loadState returns the session's state, or a fresh idle one. A structurally
// invalid state is returned with the reason it failed.
func (e *Engine) loadState(ctx context.Context, in MessageInput) (*domain.WorkflowState, error) {
	st, err := e.cache.GetState(ctx, in.SessionID)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to read workflow cache", "session_id", in.SessionID, "error", err)
	}
	if st == nil && e.store != nil {
		st, err = e.store.LoadState(ctx, in.SessionID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			e.logger.WarnContext(ctx, "failed to load workflow snapshot", "session_id", in.SessionID, "error", err)
		}
		if err != nil {
			st = nil
		}
	}
	if st == nil {
		return domain.NewIdleState(in.SessionID, in.UserID, e.now()), nil
	}

	if st.Slots == nil {
		st.Slots = map[string]string{}
	}
	if st.UserID == "" {
		st.UserID = in.UserID
	}
	return st, checkInvariants(st)
}

// saveState writes the cache and the durable snapshot. Both are best effort.
func (e *Engine) saveState(ctx context.Context, st *domain.WorkflowState) {
	st.UpdatedAt = e.now()
	if err := e.cache.SetState(ctx, st, e.settings.WorkflowTTL); err != nil {
		e.logger.WarnContext(ctx, "failed to cache workflow state", "session_id", st.SessionID, "error", err)
	}
	if e.store == nil {
		return
	}
	if err := e.store.SaveState(ctx, st); err != nil {
		e.logger.WarnContext(ctx, "failed to persist workflow state", "session_id", st.SessionID, "error", err)
	}
}

// afterTurn appends the exchange to the message log and publishes it. The
// reply is already decided, so failures are only logged.
func (e *Engine) afterTurn(ctx context.Context, in MessageInput, reply *Reply, t *turn) {
	ctx = context.WithoutCancel(ctx)
	if e.messages != nil {
		msg := &domain.Message{
			SessionID:  in.SessionID,
			UserID:     in.UserID,
			Text:       in.Text,
			Intent:     reply.Intent,
			Confidence: reply.Confidence,
			Response:   reply.Text,
			CreatedAt:  e.now(),
		}
		if err := e.messages.Append(ctx, msg); err != nil {
			e.logger.WarnContext(ctx, "failed to append message", "session_id", in.SessionID, "error", err)
		} else {
			reply.MessageID = msg.ID
		}
	}

	if e.publisher == nil || e.topic == "" {
		return
	}
	event := kafka.ConversationEvent{
		SessionID:  in.SessionID,
		UserID:     in.UserID,
		MessageID:  reply.MessageID,
		Text:       in.Text,
		Intent:     string(reply.Intent),
		Confidence: reply.Confidence,
		Flow:       string(t.flow()),
		Step:       string(reply.State.Step),
		Response:   reply.Text,
		OccurredAt: e.now(),
	}
	if err := e.publisher.Publish(ctx, e.topic, in.SessionID, event); err != nil {
		e.logger.WarnContext(ctx, "failed to publish conversation event", "session_id", in.SessionID, "error", err)
	}
}

func (e *Engine) RecordFeedback(ctx context.Context, fb domain.Feedback) error {
	if strings.TrimSpace(fb.SessionID) == "" {
		return fmt.Errorf("%w: session_id is required", ErrInvalidInput)
	}
	if fb.Rating < 1 || fb.Rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}
	if e.messages == nil {
		e.logger.InfoContext(ctx, "feedback received without a message log", "session_id", fb.SessionID, "rating", fb.Rating)
		return nil
	}
	if err := e.messages.SaveFeedback(ctx, fb); err != nil {
		if errors.Is(err, repository.ErrInvalidReference) {
			return fmt.Errorf("%w: unknown message_id", ErrInvalidInput)
		}
		return fmt.Errorf("save feedback: %w", err)
	}
	return nil
}

// ExpireIdle abandons active workflows untouched for longer than idle.
// Workflows in the middle of a commit are left alone.
func (e *Engine) ExpireIdle(ctx context.Context, idle time.Duration) (int, error) {
	if e.store == nil {
		return 0, nil
	}
	cutoff := e.now().Add(-idle)
	ids, err := e.store.ListIdle(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list idle sessions: %w", err)
	}

	expired := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if e.expire(ctx, id, cutoff) {
			expired++
		}
	}
	if expired > 0 {
		e.metrics.IdleExpired(expired)
		e.logger.InfoContext(ctx, "expired idle workflows", "count", expired)
	}
	return expired, nil
}

func (e *Engine) expire(ctx context.Context, sessionID string, cutoff time.Time) bool {
	unlock := e.locks.Lock(sessionID)
	defer unlock()

	st := e.peekState(ctx, sessionID)
	if !st.Active() || st.Step == domain.StepCommitting || st.UpdatedAt.After(cutoff) {
		return false
	}
	e.logger.InfoContext(ctx, "abandoning idle workflow", "session_id", sessionID, "flow", st.Flow, "step", st.Step)
	e.saveState(ctx, domain.NewIdleState(sessionID, st.UserID, e.now()))
	return true
}

func summarize(st *domain.WorkflowState) StateSummary {
	slots := make(map[string]string, len(st.Slots))
	for k, v := range st.Slots {
		slots[k] = v
	}
	return StateSummary{
		Flow:                st.Flow,
		Step:                st.Step,
		Slots:               slots,
		PendingConfirmation: st.PendingConfirmation,
		PendingAction:       st.PendingAction,
		LastError:           st.LastError,
	}
}
