package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"cattery-breeding/internal/domain/animals"
)

type AnimalsRepo struct {
	db *sql.DB
}

func NewAnimalsRepo(db *sql.DB) *AnimalsRepo {
	return &AnimalsRepo{db: db}
}

const animalColumns = `
	id, name, gender, birth_date, tags,
	is_in_house, mother_id, father_id,
	created_at, updated_at`

func (r *AnimalsRepo) Create(ctx context.Context, a animals.Animal) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO animals (`+animalColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		a.ID,
		a.Name,
		string(a.Gender),
		toNullDate(a.BirthDate),
		toJSONList(a.Tags),
		a.IsInHouse,
		a.MotherID,
		a.FatherID,
		a.CreatedAt,
		a.UpdatedAt,
	)
	return err
}

func (r *AnimalsRepo) GetByID(ctx context.Context, id string) (animals.Animal, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return animals.Animal{}, animals.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+animalColumns+` FROM animals WHERE id = $1`, id)
	a, err := scanAnimal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return animals.Animal{}, animals.ErrNotFound
	}
	return a, err
}

func (r *AnimalsRepo) List(ctx context.Context, filter animals.ListFilter) ([]animals.Animal, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT ` + animalColumns + ` FROM animals WHERE TRUE`)

	args := []any{}
	argN := 1

	if filter.Gender != "" {
		sb.WriteString(fmt.Sprintf(" AND gender = $%d", argN))
		args = append(args, string(filter.Gender))
		argN++
	}
	if filter.InHouseOnly {
		sb.WriteString(" AND is_in_house")
	}
	if filter.MotherID != "" {
		sb.WriteString(fmt.Sprintf(" AND mother_id = $%d", argN))
		args = append(args, filter.MotherID)
	}
	sb.WriteString(" ORDER BY created_at ASC")

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]animals.Animal, 0)
	for rows.Next() {
		a, err := scanAnimal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAnimal(s rowScanner) (animals.Animal, error) {
	var a animals.Animal
	var gender string
	var bd sql.NullTime
	var tags []byte

	if err := s.Scan(
		&a.ID,
		&a.Name,
		&gender,
		&bd,
		&tags,
		&a.IsInHouse,
		&a.MotherID,
		&a.FatherID,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return animals.Animal{}, err
	}

	a.Gender = animals.Gender(gender)
	a.BirthDate = fromNullDate(bd)
	list, err := fromJSONList(tags)
	if err != nil {
		return animals.Animal{}, fmt.Errorf("animal %s tags: %w", a.ID, err)
	}
	a.Tags = list
	return a, nil
}
