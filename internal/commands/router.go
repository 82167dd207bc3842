// Package commands routes chat events to the conversation, the ledger and the rate service,
// independently of the chat platform carrying them.
package commands

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/susu3304/finbot/internal/common"
	"github.com/susu3304/finbot/internal/conversation"
	"github.com/susu3304/finbot/internal/db"
	"github.com/susu3304/finbot/internal/rates"
	"github.com/susu3304/finbot/internal/report"
)

// Event is one inbound chat message or button press.
type Event struct {
	SenderID    int64
	DisplayName string
	Handle      string
	Text        string
}

type InlineButton struct {
	Label string
	Data  string
}

// Reply is one outbound message. Keyboard rows replace the reply keyboard;
// Inline buttons are attached to the message itself.
type Reply struct {
	Text           string
	HTML           bool
	Keyboard       [][]string
	OneTime        bool
	RemoveKeyboard bool
	Inline         []InlineButton
}

// TokenIssuer mints web API tokens for a chat identity.
type TokenIssuer interface {
	IssueToken(identity int64) (string, error)
}

type Router struct {
	ledger    db.Ledger
	sessions  *conversation.Store
	machine   *conversation.Machine
	rates     rates.Fetcher
	ratesBase string
	symbol    string
	tokens    TokenIssuer
	log       *slog.Logger

	randMu   sync.Mutex
	randIntn func(n int) int
}

type Option func(*Router)

func WithCurrencySymbol(symbol string) Option {
	return func(r *Router) { r.symbol = symbol }
}

func WithRatesBase(base string) Option {
	return func(r *Router) { r.ratesBase = strings.ToUpper(base) }
}

// WithTokenIssuer enables /token.
func WithTokenIssuer(t TokenIssuer) Option {
	return func(r *Router) { r.tokens = t }
}

// WithRand replaces the tip picker.
func WithRand(intn func(n int) int) Option {
	return func(r *Router) { r.randIntn = intn }
}

func NewRouter(ledger db.Ledger, sessions *conversation.Store, fetcher rates.Fetcher, logger *slog.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		ledger:    ledger,
		sessions:  sessions,
		machine:   conversation.NewMachine(ledger),
		rates:     fetcher,
		ratesBase: "USD",
		symbol:    "₽",
		log:       logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.randIntn == nil {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		r.randIntn = func(n int) int {
			r.randMu.Lock()
			defer r.randMu.Unlock()
			return rng.Intn(n)
		}
	}
	return r
}

// Dispatch handles one event for its sender. Events from the same sender are
// processed one at a time; Dispatch never returns an error, failures become a reply.
func (r *Router) Dispatch(ctx context.Context, ev Event) []Reply {
	sess := r.sessions.Acquire(ev.SenderID)
	defer sess.Release()

	state := sess.State
	if err := r.ledger.Register(ctx, ev.SenderID, ev.DisplayName, ev.Handle); err != nil {
		return r.fail(sess, state, "register", err)
	}

	op, replies, err := r.route(ctx, sess, ev)
	if err != nil {
		return r.fail(sess, state, op, err)
	}
	return replies
}

func (r *Router) route(ctx context.Context, sess *conversation.Session, ev Event) (string, []Reply, error) {
	text := ev.Text

	switch {
	case text == StartCommand:
		sess.Reset()
		return "start", []Reply{{Text: greetingText, HTML: true, Keyboard: mainKeyboard()}}, nil

	case text == HelpCommand:
		return "help", []Reply{{Text: helpText, HTML: true}}, nil

	case text == CancelCommand:
		msg := nothingToDrop
		if r.machine.Cancel(sess) {
			msg = cancelledText
		}
		return "cancel", []Reply{{Text: msg, Keyboard: mainKeyboard()}}, nil

	case text == SkipCommand && sess.State == conversation.AwaitingComment:
		d, err := r.machine.Skip(ctx, sess)
		if err != nil {
			return "recordTransaction", nil, err
		}
		return "recordTransaction", r.confirm(d), nil

	case text == FinancesLabel || text == BalanceCommand || text == ReportCommand:
		replies, err := r.finances(ctx, ev.SenderID)
		return "finances", replies, err

	case text == RatesLabel || text == RatesCommand:
		replies, err := r.exchangeRates(ctx)
		return "rates", replies, err

	case text == TipsLabel || text == TipsCommand || text == AnotherTipAction:
		return "tips", []Reply{r.tip()}, nil

	case text == AddLabel || text == AddCommand:
		r.machine.Start(sess)
		return "addTransaction", []Reply{{Text: askKindText, Keyboard: kindKeyboard(), OneTime: true}}, nil

	case text == TokenCommand:
		replies, err := r.token(ev.SenderID)
		return "token", replies, err

	case sess.State != conversation.Idle:
		replies, err := r.dialogue(ctx, sess, text)
		return "recordTransaction", replies, err
	}

	return "unknown", []Reply{{Text: unknownText, Keyboard: mainKeyboard()}}, nil
}

func (r *Router) dialogue(ctx context.Context, sess *conversation.Session, text string) ([]Reply, error) {
	d, err := r.machine.Handle(ctx, sess, text)

	var verr *common.ValidationError
	if errors.As(err, &verr) {
		return []Reply{rejection(verr)}, nil
	}
	if err != nil {
		return nil, err
	}
	if d != nil {
		return r.confirm(d), nil
	}

	switch sess.State {
	case conversation.AwaitingCategory:
		return []Reply{{Text: askCategoryText, Keyboard: categoryKeyboard(), OneTime: true}}, nil
	case conversation.AwaitingAmount:
		return []Reply{{Text: askAmountText, RemoveKeyboard: true}}, nil
	case conversation.AwaitingComment:
		return []Reply{{Text: askCommentText}}, nil
	}
	return nil, nil
}

// rejection re-prompts for the step that refused the input.
func rejection(verr *common.ValidationError) Reply {
	switch verr.Field {
	case "kind":
		return Reply{Text: badKindText, Keyboard: kindKeyboard(), OneTime: true}
	case "category":
		return Reply{Text: badCategoryText, Keyboard: categoryKeyboard(), OneTime: true}
	case "amount":
		if verr.Reason == conversation.ReasonNonPositive {
			return Reply{Text: nonPositiveText}
		}
		return Reply{Text: badAmountText}
	}
	return Reply{Text: unknownText, Keyboard: mainKeyboard()}
}

func (r *Router) confirm(d *conversation.Draft) []Reply {
	return []Reply{{Text: confirmationText(d, r.symbol), HTML: true, Keyboard: mainKeyboard()}}
}

func (r *Router) finances(ctx context.Context, identity int64) ([]Reply, error) {
	balance, err := r.ledger.Balance(ctx, identity)
	if err != nil {
		return nil, err
	}
	rows, err := r.ledger.MonthlySummary(ctx, identity)
	if err != nil {
		return nil, err
	}
	return []Reply{{Text: report.Render(report.Build(balance, rows), r.symbol), HTML: true}}, nil
}

func (r *Router) exchangeRates(ctx context.Context) ([]Reply, error) {
	cache := rates.NewRequestCache(r.rates)
	quotes, err := cache.Fetch(ctx, r.ratesBase)
	if err != nil {
		return nil, err
	}
	return []Reply{{Text: RenderRates(r.ratesBase, quotes), HTML: true}}, nil
}

func (r *Router) token(identity int64) ([]Reply, error) {
	if r.tokens == nil {
		return []Reply{{Text: apiDisabledText}}, nil
	}
	tok, err := r.tokens.IssueToken(identity)
	if err != nil {
		return nil, err
	}
	return []Reply{{Text: tokenText(tok), HTML: true}}, nil
}

// fail is the single place where errors become user-facing text. state is the
// session state the event arrived in.
func (r *Router) fail(sess *conversation.Session, state conversation.State, op string, err error) []Reply {
	attrs := []any{
		slog.String("op", op),
		slog.Int64("user_id", sess.UserID),
		slog.String("error", err.Error()),
	}

	switch {
	case errors.Is(err, common.ErrValidation):
		r.log.Debug("rejected input", attrs...)
		return []Reply{{Text: unknownText, Keyboard: mainKeyboard()}}

	case errors.Is(err, common.ErrUpstreamUnavailable):
		r.log.Warn("upstream unavailable", attrs...)
		return []Reply{{Text: ratesFailedText}}
	}

	r.log.Error("request failed", append(attrs, slog.String("state", state.String()))...)
	sess.Reset()

	switch op {
	case "register":
		return []Reply{{Text: registerFailedText}}
	case "recordTransaction":
		return []Reply{{Text: recordFailedText, Keyboard: mainKeyboard()}}
	case "finances":
		return []Reply{{Text: financesFailedText}}
	}
	return []Reply{{Text: genericFailedText}}
}
