package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/susu3304/finbot/internal/common"
	"github.com/susu3304/finbot/internal/db"
)

type recorded struct {
	identity int64
	kind     db.Kind
	category string
	amount   decimal.Decimal
	comment  string
}

type fakeRecorder struct {
	calls []recorded
	err   error
}

func (f *fakeRecorder) RecordTransaction(_ context.Context, identity int64, kind db.Kind, category string, amount decimal.Decimal, comment string) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, recorded{identity, kind, category, amount, comment})
	return nil
}

func startedSession(t *testing.T, m *Machine, userID int64) *Session {
	t.Helper()
	sess := NewStore().Acquire(userID)
	t.Cleanup(sess.Release)
	m.Start(sess)
	require.Equal(t, AwaitingKind, sess.State)
	return sess
}

func TestMachine_FullDialogue(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{}
	m := NewMachine(rec)
	sess := startedSession(t, m, 42)

	steps := []struct {
		input string
		want  State
	}{
		{ExpenseLabel, AwaitingCategory},
		{"  Coffee  ", AwaitingAmount},
		{"3,75", AwaitingComment},
	}
	for _, s := range steps {
		d, err := m.Handle(ctx, sess, s.input)
		require.NoError(t, err, s.input)
		assert.Nil(t, d)
		assert.Equal(t, s.want, sess.State, s.input)
	}

	d, err := m.Handle(ctx, sess, "morning flat white")
	require.NoError(t, err)
	require.NotNil(t, d)

	assert.Equal(t, Idle, sess.State)
	assert.Equal(t, Draft{}, sess.Draft)

	require.Len(t, rec.calls, 1)
	got := rec.calls[0]
	assert.Equal(t, int64(42), got.identity)
	assert.Equal(t, db.KindExpense, got.kind)
	assert.Equal(t, "Coffee", got.category)
	assert.Equal(t, "3.75", got.amount.String())
	assert.Equal(t, "morning flat white", got.comment)
	assert.Equal(t, "morning flat white", d.Comment)
}

func TestMachine_KindSelection(t *testing.T) {
	tests := []struct {
		input string
		want  db.Kind
		ok    bool
	}{
		{IncomeLabel, db.KindIncome, true},
		{ExpenseLabel, db.KindExpense, true},
		{"income", "", false},
		{"📈 income", "", false},
		{" " + IncomeLabel, "", false},
		{"", "", false},
		{"/start", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			m := NewMachine(&fakeRecorder{})
			sess := startedSession(t, m, 1)

			_, err := m.Handle(context.Background(), sess, tt.input)
			if !tt.ok {
				assert.ErrorIs(t, err, common.ErrValidation)
				assert.Equal(t, AwaitingKind, sess.State)
				assert.Empty(t, sess.Draft.Kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, AwaitingCategory, sess.State)
			assert.Equal(t, tt.want, sess.Draft.Kind)
		})
	}
}

func TestMachine_CategoryRejectsCommands(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(&fakeRecorder{})
	sess := startedSession(t, m, 1)
	_, err := m.Handle(ctx, sess, IncomeLabel)
	require.NoError(t, err)

	for _, input := range []string{"/help", " /skip", "   "} {
		_, err := m.Handle(ctx, sess, input)
		assert.ErrorIs(t, err, common.ErrValidation, input)
		assert.Equal(t, AwaitingCategory, sess.State)
	}

	_, err = m.Handle(ctx, sess, "Freelance")
	require.NoError(t, err)
	assert.Equal(t, "Freelance", sess.Draft.Category)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"12,5", "12.5", true},
		{"12.5", "12.5", true},
		{" 100 ", "100", true},
		{"0,01", "0.01", true},
		{"0", "", false},
		{"0.00", "", false},
		{"-3", "", false},
		{"abc", "", false},
		{"", "", false},
		{"1,000.50", "", false},
		{"1e3", "", false},
		{"1e100000000", "", false},
		{"1E-2", "", false},
		{".5", "", false},
		{"+5", "", false},
		{"١٢", "", false},
		{"0000000000000000012", "12", true},
		{"999999999999.9999", "999999999999.9999", true},
		{"1000000000000", "", false},
		{"1.00001", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if !tt.ok {
				assert.ErrorIs(t, err, common.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}

	comma, err := ParseAmount("12,5")
	require.NoError(t, err)
	point, err := ParseAmount("12.5")
	require.NoError(t, err)
	assert.True(t, comma.Equal(point))
}

func TestMachine_AmountRejectionKeepsState(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(&fakeRecorder{})
	sess := startedSession(t, m, 1)
	_, _ = m.Handle(ctx, sess, IncomeLabel)
	_, _ = m.Handle(ctx, sess, "Salary")

	for _, input := range []string{"0", "-3", "abc", "1e100000000"} {
		_, err := m.Handle(ctx, sess, input)
		assert.ErrorIs(t, err, common.ErrValidation)
		assert.Equal(t, AwaitingAmount, sess.State)
		assert.True(t, sess.Draft.Amount.IsZero())
	}
}

func TestMachine_SkipStoresEmptyComment(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{}
	m := NewMachine(rec)
	sess := startedSession(t, m, 7)

	_, err := m.Skip(ctx, sess)
	assert.ErrorIs(t, err, common.ErrValidation, "skip before the comment step")
	assert.Equal(t, AwaitingKind, sess.State)

	for _, in := range []string{IncomeLabel, "Gift", "20"} {
		_, err := m.Handle(ctx, sess, in)
		require.NoError(t, err)
	}

	d, err := m.Skip(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, "", d.Comment)
	assert.Equal(t, Idle, sess.State)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, "", rec.calls[0].comment)
}

func TestMachine_PersistenceFailureResets(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{err: errors.New("database is locked")}
	m := NewMachine(rec)
	sess := startedSession(t, m, 9)

	for _, in := range []string{IncomeLabel, "Gift", "20"} {
		_, err := m.Handle(ctx, sess, in)
		require.NoError(t, err)
	}

	d, err := m.Handle(ctx, sess, "birthday")
	assert.Nil(t, d)
	assert.ErrorIs(t, err, common.ErrPersistence)
	assert.Equal(t, Idle, sess.State)
	assert.Equal(t, Draft{}, sess.Draft)
}

func TestMachine_StartRestartsAndCancel(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(&fakeRecorder{})
	sess := startedSession(t, m, 3)

	_, _ = m.Handle(ctx, sess, ExpenseLabel)
	_, _ = m.Handle(ctx, sess, "Rent")
	require.Equal(t, AwaitingAmount, sess.State)

	m.Start(sess)
	assert.Equal(t, AwaitingKind, sess.State)
	assert.Equal(t, Draft{}, sess.Draft)

	assert.True(t, m.Cancel(sess))
	assert.Equal(t, Idle, sess.State)
	assert.False(t, m.Cancel(sess))
}

func TestMachine_IdleRejectsInput(t *testing.T) {
	store := NewStore()
	sess := store.Acquire(1)
	defer sess.Release()

	_, err := NewMachine(&fakeRecorder{}).Handle(context.Background(), sess, "hello")
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Equal(t, Idle, sess.State)
}
