package postgres

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/gridsense/store"
)

// CreateExperience appends one experience row. The store is append-only;
// there is no update path.
func (d *DB) CreateExperience(ctx context.Context, create *store.CreateExperience) (*store.Experience, error) {
	id := uuid.NewString()
	stmt := `
		INSERT INTO experience (
			id, state, action, next_state, reward, embedding,
			domain_tag, company, user_intent, feedback_type, created_ts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	var vector any
	if len(create.Embedding) > 0 {
		vector = pgvector.NewVector(create.Embedding)
	}

	_, err := d.db.ExecContext(ctx, stmt,
		id,
		create.State,
		create.Action,
		create.NextState,
		create.Reward,
		vector,
		create.Metadata.DomainTag,
		create.Metadata.Company,
		create.Metadata.UserIntent,
		create.Metadata.FeedbackType,
		create.Metadata.Timestamp,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert experience")
	}

	return &store.Experience{
		ID:        id,
		State:     create.State,
		Action:    create.Action,
		NextState: create.NextState,
		Reward:    create.Reward,
		Metadata:  create.Metadata,
	}, nil
}

// MatchSimilar performs cosine similarity search using pgvector.
// The <=> operator computes cosine distance (1 - cosine_similarity),
// so ordering by distance ASC returns most similar first.
func (d *DB) MatchSimilar(ctx context.Context, opts *store.MatchSimilarOptions) ([]store.Match, error) {
	where, args := []string{"embedding IS NOT NULL"}, []any{}

	vector := pgvector.NewVector(opts.Vector)
	args = append(args, vector)
	similarityExpr := "1 - (embedding <=> $1)"

	if opts.DomainTag != "" {
		where = append(where, "domain_tag = "+placeholder(len(args)+1))
		args = append(args, opts.DomainTag)
	}
	if opts.MinSimilarity > 0 {
		where = append(where, similarityExpr+" >= "+placeholder(len(args)+1))
		args = append(args, opts.MinSimilarity)
	}

	query := `
		SELECT action, reward, ` + similarityExpr + ` AS similarity
		FROM experience
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY embedding <=> $1
		LIMIT ` + placeholder(len(args)+1)
	args = append(args, opts.Limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to match similar experiences")
	}
	defer rows.Close()

	matches := []store.Match{}
	for rows.Next() {
		var m store.Match
		if err := rows.Scan(&m.Action, &m.Reward, &m.Similarity); err != nil {
			return nil, errors.Wrap(err, "failed to scan match")
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// BestActions ranks action texts near the query vector by average reward.
// Rows outside a fixed similarity neighborhood do not contribute.
func (d *DB) BestActions(ctx context.Context, opts *store.BestActionsOptions) ([]store.ActionStat, error) {
	const neighborhood = 0.3

	query := `
		SELECT action, AVG(reward) AS avg_reward, COUNT(*) AS times_used
		FROM experience
		WHERE embedding IS NOT NULL
			AND 1 - (embedding <=> $1) >= $2
		GROUP BY action
		HAVING AVG(reward) >= $3
		ORDER BY avg_reward DESC, times_used DESC
		LIMIT $4
	`

	vector := pgvector.NewVector(opts.Vector)
	rows, err := d.db.QueryContext(ctx, query, vector, neighborhood, opts.MinReward, opts.Limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to rank best actions")
	}
	defer rows.Close()

	stats := []store.ActionStat{}
	for rows.Next() {
		var s store.ActionStat
		if err := rows.Scan(&s.Action, &s.AvgReward, &s.TimesUsed); err != nil {
			return nil, errors.Wrap(err, "failed to scan action stat")
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// ListExperiences lists experiences, newest first.
func (d *DB) ListExperiences(ctx context.Context, find *store.FindExperience) ([]*store.Experience, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.DomainTag != nil {
		where, args = append(where, "domain_tag = "+placeholder(len(args)+1)), append(args, *find.DomainTag)
	}
	if find.Company != nil {
		where, args = append(where, "company = "+placeholder(len(args)+1)), append(args, *find.Company)
	}

	query := `
		SELECT id, state, action, next_state, reward,
			domain_tag, company, user_intent, feedback_type, created_ts
		FROM experience
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC
	`
	if find.Limit > 0 {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list experiences")
	}
	defer rows.Close()

	list := []*store.Experience{}
	for rows.Next() {
		var exp store.Experience
		err := rows.Scan(
			&exp.ID,
			&exp.State,
			&exp.Action,
			&exp.NextState,
			&exp.Reward,
			&exp.Metadata.DomainTag,
			&exp.Metadata.Company,
			&exp.Metadata.UserIntent,
			&exp.Metadata.FeedbackType,
			&exp.Metadata.Timestamp,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan experience")
		}
		list = append(list, &exp)
	}
	return list, rows.Err()
}
