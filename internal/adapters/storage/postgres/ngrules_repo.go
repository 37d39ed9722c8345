package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cattery-breeding/internal/domain/ngrules"
)

type NGRulesRepo struct {
	db *sql.DB
}

func NewNGRulesRepo(db *sql.DB) *NGRulesRepo {
	return &NGRulesRepo{db: db}
}

const ruleColumns = `
	id, name, type, active, description,
	male_conditions, female_conditions, male_names, female_names,
	generation_limit, created_at, updated_at`

func (r *NGRulesRepo) List(ctx context.Context, activeOnly bool) ([]ngrules.Rule, error) {
	q := `SELECT ` + ruleColumns + ` FROM ng_rules`
	if activeOnly {
		q += ` WHERE active`
	}
	q += ` ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ngrules.Rule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *NGRulesRepo) Create(ctx context.Context, rule ngrules.Rule) (ngrules.Rule, error) {
	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ng_rules (`+ruleColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		rule.ID,
		rule.Name,
		string(rule.Type),
		rule.Active,
		rule.Description,
		toJSONList(rule.MaleConditions),
		toJSONList(rule.FemaleConditions),
		toJSONList(rule.MaleNames),
		toJSONList(rule.FemaleNames),
		toNullInt(rule.GenerationLimit),
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		return ngrules.Rule{}, err
	}
	return rule, nil
}

// Update lee, aplica el patch y escribe dentro de una transacción.
func (r *NGRulesRepo) Update(ctx context.Context, id string, p ngrules.Patch) (ngrules.Rule, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ngrules.Rule{}, ngrules.ErrNotFound
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ngrules.Rule{}, err
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := scanRule(tx.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM ng_rules WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ngrules.Rule{}, ngrules.ErrNotFound
	}
	if err != nil {
		return ngrules.Rule{}, err
	}

	next := p.Apply(cur)
	next.UpdatedAt = time.Now().UTC()

	if _, err := tx.ExecContext(ctx, `
		UPDATE ng_rules
		SET
			name = $2,
			type = $3,
			active = $4,
			description = $5,
			male_conditions = $6,
			female_conditions = $7,
			male_names = $8,
			female_names = $9,
			generation_limit = $10,
			updated_at = $11
		WHERE id = $1
	`,
		id,
		next.Name,
		string(next.Type),
		next.Active,
		next.Description,
		toJSONList(next.MaleConditions),
		toJSONList(next.FemaleConditions),
		toJSONList(next.MaleNames),
		toJSONList(next.FemaleNames),
		toNullInt(next.GenerationLimit),
		next.UpdatedAt,
	); err != nil {
		return ngrules.Rule{}, err
	}

	if err := tx.Commit(); err != nil {
		return ngrules.Rule{}, err
	}
	return next, nil
}

func (r *NGRulesRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM ng_rules WHERE id = $1`, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ngrules.ErrNotFound
	}
	return nil
}

func scanRule(s rowScanner) (ngrules.Rule, error) {
	var rule ngrules.Rule
	var typ string
	var maleCond, femaleCond, maleNames, femaleNames []byte
	var limit sql.NullInt64

	if err := s.Scan(
		&rule.ID,
		&rule.Name,
		&typ,
		&rule.Active,
		&rule.Description,
		&maleCond,
		&femaleCond,
		&maleNames,
		&femaleNames,
		&limit,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		return ngrules.Rule{}, err
	}

	rule.Type = ngrules.RuleType(typ)
	rule.GenerationLimit = fromNullInt(limit)

	var err error
	for _, f := range []struct {
		raw []byte
		dst *[]string
	}{
		{maleCond, &rule.MaleConditions},
		{femaleCond, &rule.FemaleConditions},
		{maleNames, &rule.MaleNames},
		{femaleNames, &rule.FemaleNames},
	} {
		if *f.dst, err = fromJSONList(f.raw); err != nil {
			return ngrules.Rule{}, fmt.Errorf("rule %s payload: %w", rule.ID, err)
		}
	}
	return rule, nil
}
