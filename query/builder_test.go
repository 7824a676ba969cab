package query_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/quote-engine/query"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type widget struct {
	ID    int64
	Name  string
	Qty   int
	Price float64
}

var (
	widgetID    = query.NewField("id", "id", func(w *widget) *int64 { return &w.ID })
	widgetName  = query.NewField("name", "name", func(w *widget) *string { return &w.Name })
	widgetQty   = query.NewField("qty", "qty", func(w *widget) *int { return &w.Qty })
	widgetPrice = query.NewField("price", "unit_price", func(w *widget) *float64 { return &w.Price })
	widgets     = query.NewTable[widget]("widgets", widgetID, widgetName, widgetQty, widgetPrice)
)

// countingExecutor fails the test if the backend is reached.
type countingExecutor struct {
	dialect query.Dialect
	calls   int
}

func (c *countingExecutor) Dialect() query.Dialect { return c.dialect }

func (c *countingExecutor) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	c.calls++
	return nil, errors.New("backend must not be reached")
}

// =============================================================================
// RENDERING
// =============================================================================

func TestRender_SQLite_ClausesInCallOrder(t *testing.T) {
	spec, err := query.New[widget](nil).
		Select(widgetName, widgetQty).
		From(widgets).
		Where(widgetName.Eq("bolt"), widgetQty.Between(1, 10)).
		OrderBy(widgetQty, true).
		OrderByNamed("name", false).
		Build(query.ArityMany)
	require.NoError(t, err)

	st := spec.Render(query.SQLite)
	assert.Equal(t,
		"SELECT name, qty FROM widgets WHERE name = ? AND qty BETWEEN ? AND ? ORDER BY qty ASC, name DESC",
		st.SQL)
	assert.Equal(t, []any{"bolt", 1, 10}, st.Args)
}

func TestRender_Postgres_NumberedPlaceholders(t *testing.T) {
	spec, err := query.New[widget](nil).
		From(widgets).
		Where(widgetQty.In(1, 2, 3), query.MatchesFold(widgetName, "%bo%")).
		WhereNamed("price", query.GreaterOrEqual, 2.5).
		Build(query.ArityMany)
	require.NoError(t, err)

	st := spec.Render(query.Postgres)
	assert.Equal(t,
		"SELECT id, name, qty, unit_price FROM widgets WHERE qty IN ($1, $2, $3) AND name ILIKE $4 ESCAPE '\\' AND unit_price >= $5",
		st.SQL)
	assert.Equal(t, []any{1, 2, 3, "%bo%", 2.5}, st.Args)
}

func TestRender_SQLite_FoldsILike(t *testing.T) {
	spec, err := query.New[widget](nil).
		From(widgets).
		WhereNamed("name", query.ILike, "BOLT%").
		Build(query.ArityMany)
	require.NoError(t, err)

	st := spec.Render(query.SQLite)
	assert.Equal(t, "SELECT id, name, qty, unit_price FROM widgets WHERE LOWER(name) LIKE LOWER(?) ESCAPE '\\'", st.SQL)
}

func TestRender_One_LimitsToTwoRows(t *testing.T) {
	spec, err := query.New[widget](nil).From(widgets).Where(widgetID.Eq(7)).Build(query.ArityOne)
	require.NoError(t, err)

	st := spec.Render(query.SQLite)
	assert.Equal(t, "SELECT id, name, qty, unit_price FROM widgets WHERE id = ? LIMIT 2", st.SQL)
}

func TestRender_ListLimit(t *testing.T) {
	spec, err := query.New[widget](nil).From(widgets).OrderBy(widgetID, false).Limit(5).Build(query.ArityMany)
	require.NoError(t, err)

	assert.Equal(t, "SELECT id, name, qty, unit_price FROM widgets ORDER BY id DESC LIMIT 5", spec.Render(query.SQLite).SQL)
}

func TestRender_InAcceptsSliceOperand(t *testing.T) {
	spec, err := query.New[widget](nil).
		From(widgets).
		WhereNamed("name", query.In, []string{"nut", "bolt"}).
		Build(query.ArityMany)
	require.NoError(t, err)

	st := spec.Render(query.SQLite)
	assert.Equal(t, "SELECT id, name, qty, unit_price FROM widgets WHERE name IN (?, ?)", st.SQL)
	assert.Equal(t, []any{"nut", "bolt"}, st.Args)
}

// =============================================================================
// POLICIES
// =============================================================================

func TestSelect_LastCallWins(t *testing.T) {
	spec, err := query.New[widget](nil).
		Select(widgetName).
		SelectNamed("qty", "price").
		From(widgets).
		Build(query.ArityMany)
	require.NoError(t, err)

	assert.Equal(t, "SELECT qty, unit_price FROM widgets", spec.Render(query.SQLite).SQL)
}

func TestSelect_NoFieldsMeansAll(t *testing.T) {
	spec, err := query.New[widget](nil).Select(widgetName).Select().From(widgets).Build(query.ArityMany)
	require.NoError(t, err)

	assert.Len(t, spec.Columns(), 4)
}

// =============================================================================
// VALIDATION (must fail before any backend call)
// =============================================================================

func TestWhere_BetweenWithOneOperand_Rejected(t *testing.T) {
	exec := &countingExecutor{dialect: query.SQLite}

	_, err := query.New[widget](exec).
		From(widgets).
		WhereNamed("qty", query.Between, 1).
		List(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, query.ErrValidation)
	assert.Contains(t, err.Error(), "BETWEEN requires exactly 2 operands")
	assert.Zero(t, exec.calls, "backend must not be called")
}

func TestWhere_InWithoutOperands_Rejected(t *testing.T) {
	exec := &countingExecutor{dialect: query.SQLite}

	_, err := query.New[widget](exec).From(widgets).WhereNamed("qty", query.In).List(context.Background())
	assert.ErrorIs(t, err, query.ErrValidation)

	_, err = query.New[widget](exec).From(widgets).Where(widgetQty.In()).List(context.Background())
	assert.ErrorIs(t, err, query.ErrValidation)

	_, err = query.New[widget](exec).From(widgets).WhereNamed("qty", query.In, []int{}).List(context.Background())
	assert.ErrorIs(t, err, query.ErrValidation)

	assert.Zero(t, exec.calls)
}

func TestOrderBy_UnknownField_Rejected(t *testing.T) {
	exec := &countingExecutor{dialect: query.SQLite}

	_, err := query.New[widget](exec).From(widgets).OrderByNamed("colour", true).List(context.Background())

	var verr *query.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "colour", verr.Field)
	assert.Equal(t, "widgets", verr.Table)
	assert.Contains(t, err.Error(), `"colour"`)
	assert.Zero(t, exec.calls)
}

func TestSelectAndWhere_UnknownField_Rejected(t *testing.T) {
	_, err := query.New[widget](nil).SelectNamed("weight").From(widgets).Build(query.ArityMany)
	assert.ErrorIs(t, err, query.ErrValidation)

	_, err = query.New[widget](nil).From(widgets).WhereNamed("weight", query.Equal, 1).Build(query.ArityMany)
	assert.ErrorIs(t, err, query.ErrValidation)
}

func TestWhere_OperandTypeMismatch_Rejected(t *testing.T) {
	_, err := query.New[widget](nil).From(widgets).WhereNamed("qty", query.Equal, "ten").Build(query.ArityMany)

	require.ErrorIs(t, err, query.ErrValidation)
	assert.Contains(t, err.Error(), "does not match field type int")
}

func TestWhere_PatternOnNonTextField_Rejected(t *testing.T) {
	_, err := query.New[widget](nil).From(widgets).WhereNamed("qty", query.Like, "1%").Build(query.ArityMany)
	assert.ErrorIs(t, err, query.ErrValidation)
}

func TestFrom_MissingOrRepeated_Rejected(t *testing.T) {
	_, err := query.New[widget](nil).Where(widgetID.Eq(1)).Build(query.ArityOne)
	assert.ErrorIs(t, err, query.ErrValidation)

	_, err = query.New[widget](nil).From(widgets).From(widgets).Build(query.ArityOne)
	assert.ErrorIs(t, err, query.ErrValidation)
}

func TestFirstErrorIsKept(t *testing.T) {
	_, err := query.New[widget](nil).
		From(widgets).
		WhereNamed("qty", query.Between, 1).
		OrderByNamed("colour", true).
		Build(query.ArityMany)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "BETWEEN")
}

func TestNewTable_DuplicateFieldPanics(t *testing.T) {
	assert.Panics(t, func() {
		query.NewTable[widget]("widgets", widgetID, widgetName, widgetName)
	})
}

// =============================================================================
// OPERATORS & OPTIONAL
// =============================================================================

func TestOperatorSymbols(t *testing.T) {
	cases := map[query.Operator]string{
		query.Equal:          "=",
		query.NotEqual:       "<>",
		query.GreaterThan:    ">",
		query.LessThan:       "<",
		query.GreaterOrEqual: ">=",
		query.LessOrEqual:    "<=",
		query.Like:           "LIKE",
		query.ILike:          "ILIKE",
		query.Between:        "BETWEEN",
		query.In:             "IN",
	}
	for op, sym := range cases {
		assert.Equal(t, sym, op.Symbol(), op.String())
	}
}

func TestParseOperator(t *testing.T) {
	op, err := query.ParseOperator("GREATER_OR_EQUAL")
	require.NoError(t, err)
	assert.Equal(t, query.GreaterOrEqual, op)

	op, err = query.ParseOperator("<>")
	require.NoError(t, err)
	assert.Equal(t, query.NotEqual, op)

	_, err = query.ParseOperator("~")
	assert.Error(t, err)
}

func TestOptional(t *testing.T) {
	none := query.None[widget]()
	_, ok := none.Get()
	assert.False(t, ok)
	assert.Equal(t, "fallback", none.OrElse(widget{Name: "fallback"}).Name)

	some := query.Some(widget{ID: 3})
	got, ok := some.Get()
	assert.True(t, ok)
	assert.Equal(t, int64(3), got.ID)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `cepea\_2024`, query.EscapeLike("cepea_2024"))
	assert.Equal(t, `100\%`, query.EscapeLike("100%"))
	assert.Equal(t, `a\\b`, query.EscapeLike(`a\b`))
	assert.Equal(t, "plain", query.EscapeLike("plain"))
}

func TestRender_LikeCarriesEscapeClause(t *testing.T) {
	spec, err := query.New[widget](nil).From(widgets).Where(query.Matches(widgetName, "b%")).Build(query.ArityMany)
	require.NoError(t, err)

	assert.Equal(t, `SELECT id, name, qty, unit_price FROM widgets WHERE name LIKE ? ESCAPE '\'`, spec.Render(query.SQLite).SQL)
	assert.Equal(t, `SELECT id, name, qty, unit_price FROM widgets WHERE name LIKE $1 ESCAPE '\'`, spec.Render(query.Postgres).SQL)
}
