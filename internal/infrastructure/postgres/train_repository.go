package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/train"
)

type trainRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Source      string    `db:"source"`
	Destination string    `db:"destination"`
	Date        time.Time `db:"date"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r *trainRow) toEntity() *train.Train {
	return &train.Train{
		ID: r.ID, Name: r.Name, Source: r.Source, Destination: r.Destination,
		Date: r.Date, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

type TrainRepository struct{ db *sqlx.DB }

func NewTrainRepository(db *sqlx.DB) *TrainRepository { return &TrainRepository{db: db} }

func (r *TrainRepository) Create(ctx context.Context, t *train.Train) error {
	query := `INSERT INTO trains (name, source, destination, date, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, t.Name, t.Source, t.Destination, t.Date, t.CreatedAt, t.UpdatedAt).Scan(&t.ID); err != nil {
		return fmt.Errorf("列車作成に失敗: %w", err)
	}
	return nil
}

func (r *TrainRepository) GetByID(ctx context.Context, id string) (*train.Train, error) {
	var row trainRow
	query := `SELECT id, name, source, destination, date, created_at, updated_at FROM trains WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, train.ErrTrainNotFound
		}
		return nil, fmt.Errorf("列車取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *TrainRepository) Search(ctx context.Context, filter train.SearchFilter) ([]*train.Train, error) {
	query := `SELECT id, name, source, destination, date, created_at, updated_at FROM trains`
	var conds []string
	var args []interface{}

	if filter.Source != "" {
		args = append(args, filter.Source)
		conds = append(conds, "LOWER(source) = LOWER($"+strconv.Itoa(len(args))+")")
	}
	if filter.Destination != "" {
		args = append(args, filter.Destination)
		conds = append(conds, "LOWER(destination) = LOWER($"+strconv.Itoa(len(args))+")")
	}
	if filter.Date != nil {
		args = append(args, *filter.Date)
		conds = append(conds, "date = $"+strconv.Itoa(len(args)))
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY date, name"

	var rows []trainRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("列車検索に失敗: %w", err)
	}
	trains := make([]*train.Train, len(rows))
	for i := range rows {
		trains[i] = rows[i].toEntity()
	}
	return trains, nil
}

var _ train.Repository = (*TrainRepository)(nil)
