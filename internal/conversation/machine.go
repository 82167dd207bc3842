package conversation

import (
	"context"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/susu3304/finbot/internal/common"
	"github.com/susu3304/finbot/internal/db"
)

const (
	IncomeLabel  = "📈 Income"
	ExpenseLabel = "📉 Expense"

	CommandPrefix = "/"
	SkipCommand   = "/skip"

	// ReasonNonPositive is the ValidationError reason for a zero or negative amount.
	ReasonNonPositive = "must be greater than zero"

	maxIntegerDigits  = 12
	maxFractionDigits = 4
)

// plainAmount matches a plain decimal after ',' has become '.'. Exponents are not accepted.
var plainAmount = regexp.MustCompile(`^-?([0-9]+)(?:\.([0-9]+))?$`)

// Categories are offered as suggestions; any other text is accepted too.
var Categories = []string{
	"🍔 Food",
	"🚕 Transport",
	"🏠 Housing",
	"🎮 Entertainment",
	"💊 Health",
	"👕 Clothes",
}

// Recorder persists a finished draft.
type Recorder interface {
	RecordTransaction(ctx context.Context, identity int64, kind db.Kind, category string, amount decimal.Decimal, comment string) error
}

// Machine applies messages to sessions. Callers must hold the session (Store.Acquire).
type Machine struct {
	ledger Recorder
}

func NewMachine(ledger Recorder) *Machine {
	return &Machine{ledger: ledger}
}

// Start begins transaction entry, discarding any draft in progress.
func (m *Machine) Start(sess *Session) {
	sess.Draft = Draft{}
	sess.State = AwaitingKind
	sess.touch()
}

// Cancel abandons the dialogue. It reports whether anything was in progress.
func (m *Machine) Cancel(sess *Session) bool {
	active := sess.State != Idle
	sess.Reset()
	return active
}

// Handle applies one message. It returns the recorded draft once the comment step commits.
//
// A *common.ValidationError leaves the session unchanged. Any other error has already
// reset the session to Idle.
func (m *Machine) Handle(ctx context.Context, sess *Session, text string) (*Draft, error) {
	switch sess.State {
	case AwaitingKind:
		kind, err := ParseKind(text)
		if err != nil {
			return nil, err
		}
		sess.Draft.Kind = kind
		sess.State = AwaitingCategory

	case AwaitingCategory:
		category, err := ParseCategory(text)
		if err != nil {
			return nil, err
		}
		sess.Draft.Category = category
		sess.State = AwaitingAmount

	case AwaitingAmount:
		amount, err := ParseAmount(text)
		if err != nil {
			return nil, err
		}
		sess.Draft.Amount = amount
		sess.State = AwaitingComment

	case AwaitingComment:
		return m.commit(ctx, sess, text)

	default:
		return nil, common.NewValidationError("message", text, "no transaction entry in progress")
	}

	sess.touch()
	return nil, nil
}

// Skip finishes the comment step with an empty comment.
func (m *Machine) Skip(ctx context.Context, sess *Session) (*Draft, error) {
	if sess.State != AwaitingComment {
		return nil, common.NewValidationError("command", SkipCommand, "only valid while entering a comment")
	}
	return m.commit(ctx, sess, "")
}

func (m *Machine) commit(ctx context.Context, sess *Session, comment string) (*Draft, error) {
	d := sess.Draft
	d.Comment = comment

	// The draft is discarded whatever the outcome.
	sess.Reset()

	if err := m.ledger.RecordTransaction(ctx, sess.UserID, d.Kind, d.Category, d.Amount, d.Comment); err != nil {
		return nil, common.NewPersistenceError("recordTransaction", sess.UserID, err)
	}
	return &d, nil
}

// ParseKind accepts exactly the income and expense labels.
func ParseKind(text string) (db.Kind, error) {
	switch text {
	case IncomeLabel:
		return db.KindIncome, nil
	case ExpenseLabel:
		return db.KindExpense, nil
	}
	return "", common.NewValidationError("kind", text, "choose income or expense")
}

// ParseCategory accepts any non-blank text that is not a command.
func ParseCategory(text string) (string, error) {
	category := strings.TrimSpace(text)
	if category == "" {
		return "", common.NewValidationError("category", text, "empty")
	}
	if strings.HasPrefix(category, CommandPrefix) {
		return "", common.NewValidationError("category", text, "commands are not categories")
	}
	return category, nil
}

// ParseAmount reads a positive decimal, accepting ',' as the decimal separator.
func ParseAmount(text string) (decimal.Decimal, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	m := plainAmount.FindStringSubmatch(normalized)
	if m == nil {
		return decimal.Zero, common.NewValidationError("amount", text, "not a number")
	}
	if len(strings.TrimLeft(m[1], "0")) > maxIntegerDigits || len(m[2]) > maxFractionDigits {
		return decimal.Zero, common.NewValidationError("amount", text, "too many digits")
	}
	amount, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, common.NewValidationError("amount", text, "not a number")
	}
	if !amount.IsPositive() {
		return decimal.Zero, common.NewValidationError("amount", text, ReasonNonPositive)
	}
	return amount, nil
}
