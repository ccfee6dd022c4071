package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/iabalyuk/advisorbot/calendar"
	"github.com/iabalyuk/advisorbot/model"
	"github.com/rs/zerolog"
)

// MaxFieldButtons caps the field list; Telegram rejects keyboards with more
// than 100 buttons.
const MaxFieldButtons = 90

// EventKind tells how an event reached the bot.
type EventKind int

const (
	// EventCommand is a slash command; Payload is the command without the slash.
	EventCommand EventKind = iota
	// EventButton is an inline button press; Payload is the button data.
	EventButton
	// EventText is a plain message; Payload is its text.
	EventText
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventButton:
		return "button"
	case EventText:
		return "text"
	}
	return "unknown"
}

// Event is one user interaction.
type Event struct {
	UserID  int64
	Kind    EventKind
	Payload string
}

// Button is an inline keyboard button.
type Button struct {
	Label string
	Data  string
}

// Reply is one outgoing message. Text is Telegram HTML; buttons are laid out
// one per row.
type Reply struct {
	Text    string
	Buttons []Button
}

// Directory is the query surface the machine needs.
type Directory interface {
	Lookup(ctx context.Context, predicate string) ([]model.Advisor, error)
	Fields(ctx context.Context) ([]string, error)
	ByField(ctx context.Context, field string) ([]model.Advisor, error)
	Advisor(ctx context.Context, id model.AdvisorID) (model.Advisor, error)
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock replaces time.Now, which picks the month shown in schedules.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithLocation sets the timezone the current month is taken in.
func WithLocation(loc *time.Location) Option {
	return func(m *Machine) { m.loc = loc }
}

// Machine drives every user's conversation. Sessions are independent; events
// for one user are handled one at a time, events for different users run in
// parallel.
type Machine struct {
	dir Directory
	log zerolog.Logger
	now func() time.Time
	loc *time.Location

	mu       sync.Mutex
	sessions map[int64]*session
}

// NewMachine creates a Machine that answers from dir.
func NewMachine(dir Directory, log zerolog.Logger, opts ...Option) *Machine {
	m := &Machine{
		dir:      dir,
		log:      log.With().Str("component", "conversation").Logger(),
		now:      time.Now,
		loc:      time.UTC,
		sessions: make(map[int64]*session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle applies ev to its user's session and returns the messages to send.
// The error classifies a failed interaction (see model.Outcome); the returned
// replies already tell the user what happened, so callers only log it.
func (m *Machine) Handle(ctx context.Context, ev Event) ([]Reply, error) {
	s := m.session(ev.UserID)
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.state.Name()
	replies, err := m.dispatch(ctx, s, ev)
	m.log.Debug().
		Int64("user_id", ev.UserID).
		Stringer("kind", ev.Kind).
		Str("from", before).
		Str("to", s.state.Name()).
		Str("outcome", model.Outcome(err)).
		Msg("Handled event")
	return replies, err
}

// State returns the user's current state; users never seen are Idle.
func (m *Machine) State(userID int64) State {
	s := m.session(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Sessions returns the number of users with a session.
func (m *Machine) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Machine) session(userID int64) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		s = &session{state: Idle{}}
		m.sessions[userID] = s
	}
	return s
}

func (m *Machine) dispatch(ctx context.Context, s *session, ev Event) ([]Reply, error) {
	switch ev.Kind {
	case EventCommand:
		switch ev.Payload {
		case "start":
			return m.mainMenu(s, textWelcome), nil
		case "help":
			return help(), nil
		}
		return single(textUnknownCommand), nil
	case EventButton:
		return m.button(ctx, s, ev.Payload)
	case EventText:
		if _, ok := s.state.(AwaitingSearch); !ok {
			return nil, nil
		}
		return m.search(ctx, s, ev.Payload)
	}
	return nil, fmt.Errorf("event kind %d: %w", ev.Kind, model.ErrProtocol)
}

func (m *Machine) button(ctx context.Context, s *session, data string) ([]Reply, error) {
	switch data {
	case DataListFields:
		return m.listFields(ctx, s)
	case DataSearch:
		s.state = AwaitingSearch{}
		return []Reply{{Text: textSearchPrompt, Buttons: []Button{buttonMainMenu}}}, nil
	case DataHelp:
		return help(), nil
	case DataMainMenu:
		return m.mainMenu(s, textMainMenu), nil
	}
	if token, ok := strings.CutPrefix(data, PrefixField); ok {
		return m.selectField(ctx, s, token)
	}
	if id, ok := strings.CutPrefix(data, PrefixSchedule); ok && id != "" {
		return m.showSchedule(ctx, model.AdvisorID(id))
	}
	s.state = Idle{}
	return single(textStartOver), fmt.Errorf("button %q: %w", data, model.ErrProtocol)
}

func (m *Machine) mainMenu(s *session, text string) []Reply {
	s.state = Idle{}
	return []Reply{{Text: text, Buttons: mainMenuButtons}}
}

func help() []Reply {
	return []Reply{{Text: textHelp, Buttons: []Button{buttonMainMenu}}}
}

func single(text string) []Reply {
	return []Reply{{Text: text}}
}

// listFields shows one button per research field. Each display gets a new
// generation, so buttons from an older list no longer resolve.
func (m *Machine) listFields(ctx context.Context, s *session) ([]Reply, error) {
	fields, err := m.dir.Fields(ctx)
	if err != nil {
		s.state = Idle{}
		return single(textGenericError), err
	}
	if len(fields) == 0 {
		s.state = Idle{}
		return []Reply{{Text: textFieldsUnavailable, Buttons: []Button{buttonMainMenu}}},
			fmt.Errorf("research fields: %w", model.ErrNotFound)
	}
	if len(fields) > MaxFieldButtons {
		m.log.Warn().Int("fields", len(fields)).Int("shown", MaxFieldButtons).Msg("Too many research fields, list truncated")
		fields = fields[:MaxFieldButtons]
	}

	s.generation++
	tokens := make(map[string]string, len(fields))
	buttons := make([]Button, 0, len(fields)+1)
	for i, field := range fields {
		token := fmt.Sprintf("%d.%d", s.generation, i)
		tokens[token] = field
		buttons = append(buttons, Button{Label: "📚 " + field, Data: PrefixField + token})
	}
	buttons = append(buttons, buttonMainMenu)

	s.state = FieldSelection{Generation: s.generation, Tokens: tokens}
	return []Reply{{Text: textChooseField, Buttons: buttons}}, nil
}

// selectField resolves a field token against the list currently on display.
// The session stays in FieldSelection so the user can keep browsing.
func (m *Machine) selectField(ctx context.Context, s *session, token string) ([]Reply, error) {
	var field string
	var found bool
	if fs, ok := s.state.(FieldSelection); ok {
		field, found = fs.Tokens[token]
	}
	if !found {
		s.state = Idle{}
		return single(textStartOver), fmt.Errorf("field token %q: %w", token, model.ErrProtocol)
	}

	advisors, err := m.dir.ByField(ctx, field)
	if err != nil {
		s.state = Idle{}
		return single(textGenericError), err
	}
	if len(advisors) == 0 {
		return []Reply{{Text: fieldEmpty(field), Buttons: []Button{buttonFieldList}}},
			fmt.Errorf("field %q: %w", field, model.ErrNotFound)
	}

	replies := make([]Reply, 0, len(advisors)+1)
	replies = append(replies, Reply{Text: fieldAdvisorsHeader(field)})
	for _, a := range advisors {
		replies = append(replies, Reply{
			Text:    formatProfile(a),
			Buttons: []Button{scheduleButton(a.ID), buttonFieldList},
		})
	}
	return replies, nil
}

// search runs the query typed after the search prompt. The session always
// ends in Idle.
func (m *Machine) search(ctx context.Context, s *session, query string) ([]Reply, error) {
	s.state = Idle{}
	query = strings.TrimSpace(query)

	advisors, err := m.dir.Lookup(ctx, query)
	if err != nil {
		return single(textSearchError), err
	}
	if len(advisors) == 0 {
		return []Reply{{Text: searchEmpty(query), Buttons: []Button{buttonMainMenu}}},
			fmt.Errorf("search %q: %w", query, model.ErrNotFound)
	}

	replies := make([]Reply, 0, len(advisors)+1)
	replies = append(replies, Reply{Text: textSearchResults})
	for _, a := range advisors {
		replies = append(replies, Reply{
			Text:    formatProfile(a),
			Buttons: []Button{scheduleButton(a.ID), buttonMainMenu},
		})
	}
	return replies, nil
}

// showSchedule renders the advisor's availability for the current month.
// It is accepted in any state and leaves the state unchanged.
func (m *Machine) showSchedule(ctx context.Context, id model.AdvisorID) ([]Reply, error) {
	advisor, err := m.dir.Advisor(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return single(textAdvisorNotFound), fmt.Errorf("advisor %q: %w", id, err)
	}
	if err != nil {
		return single(textScheduleError), err
	}

	back := []Button{buttonFieldList}
	availability, err := calendar.ForMonth(advisor.Calendar, advisor.OfficeHours, m.now().In(m.loc))
	if notice, ok := calendar.Notice(err); ok {
		return []Reply{{Text: formatSchedule(advisor, notice), Buttons: back}}, nil
	}
	if err != nil {
		m.log.Error().Err(err).Str("advisor_id", string(id)).Msg("Advisor calendar is malformed")
		return single(textScheduleError), err
	}
	return []Reply{{Text: formatSchedule(advisor, calendar.Render(availability)), Buttons: back}}, nil
}
